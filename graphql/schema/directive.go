package schema

import (
	"fmt"
	"strings"
)

type DirectiveLocation string

const (
	DirectiveLocationQuery              = "QUERY"
	DirectiveLocationMutation           = "MUTATION"
	DirectiveLocationSubscription       = "SUBSCRIPTION"
	DirectiveLocationField              = "FIELD"
	DirectiveLocationFragmentDefinition = "FRAGMENT_DEFINITION"
	DirectiveLocationFragmentSpread     = "FRAGMENT_SPREAD"
	DirectiveLocationInlineFragment     = "INLINE_FRAGMENT"

	DirectiveLocationSchema               = "SCHEMA"
	DirectiveLocationScalar               = "SCALAR"
	DirectiveLocationObject               = "OBJECT"
	DirectiveLocationFieldDefinition      = "FIELD_DEFINITION"
	DirectiveLocationArgumentDefinition   = "ARGUMENT_DEFINITION"
	DirectiveLocationInterface            = "INTERFACE"
	DirectiveLocationUnion                = "UNION"
	DirectiveLocationEnum                 = "ENUM"
	DirectiveLocationEnumValue            = "ENUM_VALUE"
	DirectiveLocationInputObject          = "INPUT_OBJECT"
	DirectiveLocationInputFieldDefinition = "INPUT_FIELD_DEFINITION"
)

type DirectiveDefinition struct {
	Description string
	Arguments   map[string]*InputValueDefinition
	Locations   []DirectiveLocation

	// If non-nil, this function will be invoked during field collection for each selection with
	// this directive present. If the function returns false, the selection will be skipped.
	FieldCollectionFilter func(arguments map[string]interface{}) bool

	// If non-nil, this function will be invoked during field collection for each selection with
	// this directive present, and the returned strategy (if not AwaitStrategyUnspecified) overrides
	// the async-resolution strategy inherited from the enclosing selection set. The override is
	// recorded for the whole selection set in which the annotated selection is collected: it applies
	// to every field of that set, siblings of a fragment's fields included, and is inherited by their
	// sub-selections unless overridden again. It is not limited to the fragment's own fields.
	AwaitStrategyOverride func(arguments map[string]interface{}) AwaitStrategy
}

// AwaitStrategy names one of the strategies an executor may use to resolve a field whose resolver
// returns a ResolvePromise rather than an immediate value. The zero value, AwaitStrategyUnspecified,
// means "inherit whatever strategy the enclosing selection set is using."
type AwaitStrategy string

const (
	AwaitStrategyUnspecified AwaitStrategy = ""

	// AwaitStrategyDeferred blocks the calling goroutine until the promise resolves, invoking the
	// request's idle handler in between polls. This is the default, and the only strategy available
	// for mutation root fields, which must resolve one at a time in document order.
	AwaitStrategyDeferred AwaitStrategy = "DEFERRED"

	// AwaitStrategyQueued defers resolution of the promise to a single FIFO worker shared by the
	// request, preserving submission order but allowing the caller to keep collecting further
	// promises before any of them resolve.
	AwaitStrategyQueued AwaitStrategy = "QUEUED"

	// AwaitStrategyThreaded resolves the promise on a dedicated goroutine, allowing resolvers
	// beneath this selection set to run concurrently with one another.
	AwaitStrategyThreaded AwaitStrategy = "THREADED"
)

// AwaitDirective lets a query place a fragment spread, inline fragment, or field on a different
// async-resolution strategy than the one its parent selection set is using. The chosen strategy
// applies to every field of the selection set containing the annotated selection, not only to the
// annotated selection's own fields.
var AwaitDirective = &DirectiveDefinition{
	Description: "The @await directive selects the strategy used to resolve asynchronous fields within the annotated selection.",
	Arguments: map[string]*InputValueDefinition{
		"strategy": {
			Type: NewNonNullType(&EnumType{
				Name: "AwaitStrategy",
				Values: map[string]*EnumValueDefinition{
					"DEFERRED": {Value: AwaitStrategyDeferred},
					"QUEUED":   {Value: AwaitStrategyQueued},
					"THREADED": {Value: AwaitStrategyThreaded},
				},
			}),
		},
	},
	Locations: []DirectiveLocation{DirectiveLocationField, DirectiveLocationFragmentSpread, DirectiveLocationInlineFragment},
	AwaitStrategyOverride: func(arguments map[string]interface{}) AwaitStrategy {
		if s, ok := arguments["strategy"].(AwaitStrategy); ok {
			return s
		}
		return AwaitStrategyUnspecified
	},
}

func referencesDirective(node interface{}, directive *DirectiveDefinition) bool {
	visited := map[interface{}]struct{}{}
	foundReference := false

	Inspect(node, func(node interface{}) bool {
		if _, ok := visited[node]; ok {
			return false
		}
		visited[node] = struct{}{}
		if node == directive {
			foundReference = true
		}
		return !foundReference
	})

	return foundReference
}

func (d *DirectiveDefinition) shallowValidate() error {
	for name, arg := range d.Arguments {
		if !isName(name) || strings.HasPrefix(name, "__") {
			return fmt.Errorf("illegal directive argument name: %v", name)
		} else if referencesDirective(arg, d) {
			return fmt.Errorf("directive is self-referencing via %v argument", name)
		}
	}
	return nil
}

type Directive struct {
	Definition *DirectiveDefinition
	Arguments  []*Argument
}

// SkipDirective and IncludeDirective are defined in builtins.go alongside the other built-in
// schema members.
