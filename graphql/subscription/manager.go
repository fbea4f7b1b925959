// Package subscription implements a registry of live GraphQL subscriptions and delivers events to
// them, on top of the two-phase subscribe/execute model the executor package already exposes:
// Subscribe resolves a subscription's root field to obtain (or set up) an event source, and each
// subsequent event is run back through the executor as its own request, with the event as the
// request's initial value.
package subscription

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/relay-tools/graphqlrt/graphql"
	"github.com/relay-tools/graphqlrt/graphql/ast"
	"github.com/relay-tools/graphqlrt/graphql/executor"
	"github.com/relay-tools/graphqlrt/graphql/schema"
)

// Key identifies a single live subscription. Keys are only unique within the Manager that issued
// them, and are reused (starting again from 1) once a Manager has no outstanding subscriptions.
type Key uint64

// Params describes a subscription operation to register with a Manager.
type Params struct {
	Context context.Context

	// Either Query or Document must be set. If Document is set, it's assumed to already be parsed
	// and validated against Schema.
	Query    string
	Document *ast.Document

	Schema         *graphql.Schema
	OperationName  string
	VariableValues map[string]interface{}

	// InitialValue is passed to the root subscription field's resolver, exactly as it would be for
	// graphql.Subscribe.
	InitialValue interface{}

	IdleHandler func()
}

// Result is delivered to a subscription's callback once per event.
type Result struct {
	Data   *interface{}
	Errors []*graphql.Error
}

// Callback receives one Result per delivered event, until the subscription is unsubscribed.
type Callback func(Result)

type registration struct {
	key            Key
	document       *ast.Document
	schema         *graphql.Schema
	operationName  string
	variableValues map[string]interface{}
	idleHandler    func()
	fieldName      string
	arguments      map[string]interface{}
	callback       Callback
}

// Manager tracks live subscriptions and delivers events to the ones that match. The zero value is
// not usable; construct one with NewManager.
type Manager struct {
	mu            sync.Mutex
	nextKey       Key
	registrations map[Key]*registration
	byField       map[string]map[Key]struct{}
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{
		registrations: map[Key]*registration{},
		byField:       map[string]map[Key]struct{}{},
	}
}

// Subscribe validates and parses (if necessary) the given subscription document, locates its
// single root field, resolves it (exactly as graphql.Subscribe would, giving the resolver a chance
// to set up whatever event source it subscribes to), and registers callback to be invoked by
// Deliver for subsequent events. It returns a Key that can later be passed to Unsubscribe.
func (m *Manager) Subscribe(p Params, callback Callback) (Key, error) {
	doc := p.Document
	if doc == nil {
		parsed, errs := graphql.ParseAndValidate(p.Query, p.Schema)
		if len(errs) > 0 {
			return 0, fmt.Errorf("%v", errs[0].Message)
		}
		doc = parsed
	}
	if !graphql.IsSubscription(doc, p.OperationName) {
		return 0, fmt.Errorf("not a subscription operation")
	}

	req := &graphql.Request{
		Context:        p.Context,
		Document:       doc,
		Schema:         p.Schema,
		OperationName:  p.OperationName,
		VariableValues: p.VariableValues,
		InitialValue:   p.InitialValue,
		IdleHandler:    p.IdleHandler,
	}

	fieldName, arguments, err := executor.RootSubscriptionField(p.Context, &executor.Request{
		Document:       doc,
		Schema:         p.Schema,
		OperationName:  p.OperationName,
		VariableValues: p.VariableValues,
	})
	if err != nil {
		return 0, err
	}

	if _, errs := graphql.Subscribe(req); len(errs) > 0 {
		return 0, fmt.Errorf("%v", errs[0].Message)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextKey++
	key := m.nextKey
	m.registrations[key] = &registration{
		key:            key,
		document:       doc,
		schema:         p.Schema,
		operationName:  p.OperationName,
		variableValues: p.VariableValues,
		idleHandler:    p.IdleHandler,
		fieldName:      fieldName,
		arguments:      arguments,
		callback:       callback,
	}
	if m.byField[fieldName] == nil {
		m.byField[fieldName] = map[Key]struct{}{}
	}
	m.byField[fieldName][key] = struct{}{}
	return key, nil
}

// Unsubscribe removes a subscription. It's a no-op if key is unknown (for example, because it was
// already unsubscribed). Once the Manager has no subscriptions left, its key allocator resets, so
// the next Subscribe call returns Key(1) again.
func (m *Manager) Unsubscribe(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.registrations[key]
	if !ok {
		return
	}
	delete(m.registrations, key)
	if set := m.byField[reg.fieldName]; set != nil {
		delete(set, key)
		if len(set) == 0 {
			delete(m.byField, reg.fieldName)
		}
	}
	if len(m.registrations) == 0 {
		m.nextKey = 0
	}
}

// Filter decides whether a delivery should reach a registration that subscribed with the
// argument named name set to value. Deliver calls it once per argument the subscription was
// registered with; a registration is only delivered to if Filter returns true for all of them.
type Filter func(name string, value interface{}) bool

// Deliver runs every still-registered subscription on field name whose recorded arguments all
// satisfy filter through the executor again, with subject as the event's initial value, and
// invokes each matching registration's callback with the result.
func (m *Manager) Deliver(ctx context.Context, name string, filter Filter, subject interface{}) {
	m.mu.Lock()
	var matches []*registration
	for key := range m.byField[name] {
		reg, ok := m.registrations[key]
		if !ok {
			continue
		}
		matched := true
		for argName, argValue := range reg.arguments {
			if !filter(argName, argValue) {
				matched = false
				break
			}
		}
		if matched {
			matches = append(matches, reg)
		}
	}
	m.mu.Unlock()

	for _, reg := range matches {
		reg.deliver(ctx, subject)
	}
}

// DeliverExact delivers to every registration on field name whose recorded arguments all appear in
// arguments with equal values (a registration argument missing from arguments fails the match;
// extra entries in arguments that the registration doesn't have are ignored).
func (m *Manager) DeliverExact(ctx context.Context, name string, arguments map[string]interface{}, subject interface{}) {
	m.Deliver(ctx, name, func(argName string, value interface{}) bool {
		expected, ok := arguments[argName]
		return ok && reflect.DeepEqual(expected, value)
	}, subject)
}

// DeliverAll delivers to every registration on field name, regardless of its arguments.
func (m *Manager) DeliverAll(ctx context.Context, name string, subject interface{}) {
	m.Deliver(ctx, name, func(string, interface{}) bool { return true }, subject)
}

func (reg *registration) deliver(ctx context.Context, subject interface{}) {
	data, errs := executor.ExecuteRequest(ctx, &executor.Request{
		Document:             reg.document,
		Schema:               reg.schema,
		OperationName:        reg.operationName,
		VariableValues:       reg.variableValues,
		InitialValue:         subject,
		IdleHandler:          reg.idleHandler,
		DefaultAwaitStrategy: schema.AwaitStrategyDeferred,
	})

	var dataInterface interface{} = data
	result := Result{Data: &dataInterface}
	for _, err := range errs {
		result.Errors = append(result.Errors, graphqlError(err))
	}
	reg.callback(result)
}

func graphqlError(err *executor.Error) *graphql.Error {
	locations := make([]graphql.Location, len(err.Locations))
	for i, loc := range err.Locations {
		locations[i] = graphql.Location{Line: loc.Line, Column: loc.Column}
	}
	return &graphql.Error{
		Message:   err.Message,
		Locations: locations,
		Path:      err.Path,
	}
}
