package parser

import (
	"fmt"

	"github.com/relay-tools/graphqlrt/graphql/ast"
	"github.com/relay-tools/graphqlrt/graphql/scanner"
	"github.com/relay-tools/graphqlrt/graphql/token"
)

type Error struct {
	message string
	Line    int
	Column  int
}

func (err *Error) Error() string {
	return err.message
}

// DefaultMaxSelectionSetDepth is the selection set nesting limit ParseDocument applies when no
// Option overrides it.
const DefaultMaxSelectionSetDepth = 512

// Option customizes a single ParseDocument or ParseValue call.
type Option func(*parser)

// WithMaxSelectionSetDepth overrides the selection set nesting limit. A query nesting its braces
// deeper than this is rejected with a parse error instead of being walked at execution time.
func WithMaxSelectionSetDepth(n int) Option {
	return func(p *parser) {
		p.maxSelectionSetDepth = n
	}
}

// WithMaxRecursionDepth overrides the total parser recursion limit (selection sets, nested list
// types, nested list/object values all count against it). Guards against stack exhaustion on
// pathologically nested input that wouldn't otherwise trip WithMaxSelectionSetDepth, e.g. a deeply
// nested list-of-lists value.
func WithMaxRecursionDepth(n int) Option {
	return func(p *parser) {
		p.maxRecursion = n
	}
}

func ParseDocument(src []byte, opts ...Option) (doc *ast.Document, errs []*Error) {
	p := newParser(src, opts)
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*Error); ok {
				errs = p.errors
			} else {
				panic(r)
			}
		}
	}()
	return p.parseDocument(), p.errors
}

func ParseValue(src []byte, opts ...Option) (value ast.Value, errs []*Error) {
	p := newParser(src, opts)
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*Error); ok {
				errs = p.errors
			} else {
				panic(r)
			}
		}
	}()
	return p.parseValue(false), p.errors
}

type parserToken struct {
	Token    token.Token
	Value    string
	Position token.Position
}

type parser struct {
	errors               []*Error
	tokens               []*parserToken
	eof                  *parserToken
	recursion            int
	maxRecursion         int
	selectionSetDepth    int
	maxSelectionSetDepth int
}

func newParser(src []byte, opts []Option) *parser {
	var tokens []*parserToken
	s := scanner.New(src, 0)
	for s.Scan() {
		tokens = append(tokens, &parserToken{
			Token:    s.Token(),
			Value:    s.StringValue(),
			Position: s.Position(),
		})
	}
	ret := &parser{
		errors:               make([]*Error, len(s.Errors())),
		tokens:               tokens,
		eof:                  &parserToken{Position: s.EndPosition()},
		maxSelectionSetDepth: DefaultMaxSelectionSetDepth,
		maxRecursion:         maxRecursion,
	}
	for i, err := range s.Errors() {
		ret.errors[i] = &Error{
			message: err.Error(),
			Line:    err.Line,
			Column:  err.Column,
		}
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func isOperationTypeName(s string) bool {
	switch s {
	case "query", "mutation", "subscription":
		return true
	default:
		return false
	}
}

const maxRecursion = 1000

func (p *parser) enter() {
	p.recursion++
	if p.maxRecursion > 0 && p.recursion > p.maxRecursion {
		panic(p.errorf("maximum recursion depth exceeded"))
	}
}

func (p *parser) exit() {
	p.recursion--
}

func (p *parser) peek() *parserToken {
	if len(p.tokens) > 0 {
		return p.tokens[0]
	}
	return p.eof
}

func (p *parser) consumeToken() {
	if len(p.tokens) > 0 {
		p.tokens = p.tokens[1:]
	}
}

func (p *parser) errorf(message string, args ...interface{}) *Error {
	return p.errorfAt(p.peek().Position, message, args...)
}

func (p *parser) errorfAt(pos token.Position, message string, args ...interface{}) *Error {
	err := &Error{
		message: fmt.Sprintf(message, args...),
		Line:    pos.Line,
		Column:  pos.Column,
	}
	p.errors = append(p.errors, err)
	return err
}

func (p *parser) parseDocument() *ast.Document {
	p.enter()

	ret := &ast.Document{}
	for {
		ret.Definitions = append(ret.Definitions, p.parseDefinition())
		if p.peek() == p.eof {
			break
		}
	}

	p.exit()
	return ret
}

func (p *parser) parseDefinition() ast.Definition {
	p.enter()

	var ret ast.Definition
	if t := p.peek(); t.Token == token.NAME && t.Value == "fragment" {
		ret = p.parseFragmentDefinition()
	} else {
		ret = p.parseOperationDefinition()
	}

	p.exit()
	return ret
}

func (p *parser) parseFragmentDefinition() *ast.FragmentDefinition {
	p.enter()

	fragment := p.peek().Position
	if t := p.peek(); t.Token != token.NAME || t.Value != "fragment" {
		panic(p.errorf(`expected "fragment"`))
	}
	p.consumeToken()

	name := p.parseName()
	if name.Name == "on" {
		panic(p.errorfAt(name.NamePosition, `fragment name must not be "on"`))
	}

	ret := &ast.FragmentDefinition{
		Fragment:      fragment,
		Name:          name,
		TypeCondition: p.parseTypeCondition(),
		Directives:    p.parseOptionalDirectives(),
		SelectionSet:  p.parseSelectionSet(),
	}

	p.exit()
	return ret
}

func (p *parser) parseOperationDefinition() *ast.OperationDefinition {
	p.enter()

	ret := &ast.OperationDefinition{}
	if ss := p.parseOptionalSelectionSet(); ss != nil {
		ret.SelectionSet = ss
	} else {
		if t := p.peek(); t.Token != token.NAME || !isOperationTypeName(t.Value) {
			panic(p.errorf("expected operation type"))
		} else {
			ret.OperationType = &ast.OperationType{Value: t.Value, ValuePosition: t.Position}
			p.consumeToken()
		}

		if t := p.peek(); t.Token == token.NAME {
			ret.Name = p.parseName()
		}

		ret.VariableDefinitions = p.parseOptionalVariableDefinitions()
		ret.Directives = p.parseOptionalDirectives()
		ret.SelectionSet = p.parseSelectionSet()
	}

	p.exit()
	return ret
}

func (p *parser) parseOptionalSelectionSet() *ast.SelectionSet {
	p.enter()

	var ret *ast.SelectionSet
	if t := p.peek(); t.Token == token.PUNCTUATOR && t.Value == "{" {
		ret = p.parseSelectionSet()
	}

	p.exit()
	return ret
}

func (p *parser) parseSelectionSet() *ast.SelectionSet {
	p.enter()

	opening := p.peek().Position
	if t := p.peek(); t.Token != token.PUNCTUATOR || t.Value != "{" {
		panic(p.errorf("expected selection set"))
	}
	p.consumeToken()

	p.selectionSetDepth++
	if p.maxSelectionSetDepth > 0 && p.selectionSetDepth > p.maxSelectionSetDepth {
		panic(p.errorfAt(opening, "selection set exceeds maximum nesting depth of %v", p.maxSelectionSetDepth))
	}

	ret := &ast.SelectionSet{Opening: opening}
	for {
		if t := p.peek(); t.Token == token.PUNCTUATOR && t.Value == "}" {
			if len(ret.Selections) == 0 {
				panic(p.errorf("expected selection"))
			}
			ret.Closing = t.Position
			p.consumeToken()
			break
		}
		ret.Selections = append(ret.Selections, p.parseSelection())
	}

	p.selectionSetDepth--
	p.exit()
	return ret
}

func (p *parser) parseField() *ast.Field {
	p.enter()

	ret := &ast.Field{}
	ret.Name = p.parseName()
	if t := p.peek(); t.Token == token.PUNCTUATOR && t.Value == ":" {
		p.consumeToken()
		ret.Alias = ret.Name
		ret.Name = p.parseName()
	}
	ret.Arguments = p.parseOptionalArguments()
	ret.Directives = p.parseOptionalDirectives()
	ret.SelectionSet = p.parseOptionalSelectionSet()

	p.exit()
	return ret
}

func (p *parser) parseTypeCondition() *ast.NamedType {
	p.enter()

	if t := p.peek(); t.Token != token.NAME || t.Value != "on" {
		panic(p.errorf(`expected "on"`))
	}
	p.consumeToken()
	ret := p.parseNamedType()

	p.exit()
	return ret
}

func (p *parser) parseSelection() ast.Selection {
	p.enter()

	if t := p.peek(); t.Token != token.PUNCTUATOR || t.Value != "..." {
		ret := p.parseField()
		p.exit()
		return ret
	}
	ellipsis := p.peek().Position
	p.consumeToken()

	if t := p.peek(); t.Token == token.NAME && t.Value != "on" {
		ret := &ast.FragmentSpread{
			Ellipsis:     ellipsis,
			FragmentName: p.parseName(),
			Directives:   p.parseOptionalDirectives(),
		}
		p.exit()
		return ret
	}

	ret := &ast.InlineFragment{Ellipsis: ellipsis}
	if t := p.peek(); t.Token == token.NAME {
		ret.TypeCondition = p.parseTypeCondition()
	}
	ret.Directives = p.parseOptionalDirectives()
	ret.SelectionSet = p.parseSelectionSet()

	p.exit()
	return ret
}

func (p *parser) parseOptionalArguments() []*ast.Argument {
	p.enter()

	var ret []*ast.Argument
	if t := p.peek(); t.Token == token.PUNCTUATOR && t.Value == "(" {
		p.consumeToken()

		for {
			if t := p.peek(); t.Token == token.PUNCTUATOR && t.Value == ")" {
				if len(ret) == 0 {
					panic(p.errorf("expected argument"))
				}
				p.consumeToken()
				break
			}
			ret = append(ret, p.parseArgument())
		}
	}

	p.exit()
	return ret
}

func (p *parser) parseOptionalVariableDefinitions() []*ast.VariableDefinition {
	p.enter()

	var ret []*ast.VariableDefinition
	if t := p.peek(); t.Token == token.PUNCTUATOR && t.Value == "(" {
		p.consumeToken()

		for {
			if t := p.peek(); t.Token == token.PUNCTUATOR && t.Value == ")" {
				if len(ret) == 0 {
					panic(p.errorf("variable definition"))
				}
				p.consumeToken()
				break
			}
			ret = append(ret, p.parseVariableDefinition())
		}
	}

	p.exit()
	return ret
}

func (p *parser) parseVariableDefinition() *ast.VariableDefinition {
	p.enter()

	variable := p.parseVariable()

	if t := p.peek(); t.Token != token.PUNCTUATOR || t.Value != ":" {
		panic(p.errorf("expected colon"))
	}
	p.consumeToken()

	typ := p.parseType()

	ret := &ast.VariableDefinition{
		Variable: variable,
		Type:     typ,
	}
	if t := p.peek(); t.Token == token.PUNCTUATOR && t.Value == "=" {
		p.consumeToken()
		ret.DefaultValue = p.parseValue(true)
	}

	p.exit()
	return ret
}

func (p *parser) parseType() ast.Type {
	p.enter()

	var ret ast.Type
	if t := p.peek(); t.Token == token.PUNCTUATOR && t.Value == "[" {
		opening := t.Position
		p.consumeToken()
		typ := p.parseType()
		closing := p.peek().Position
		if t := p.peek(); t.Token != token.PUNCTUATOR || t.Value != "]" {
			panic(p.errorf("expected ]"))
		}
		p.consumeToken()
		ret = &ast.ListType{
			Type:    typ,
			Opening: opening,
			Closing: closing,
		}
	} else {
		ret = p.parseNamedType()
	}
	if t := p.peek(); t.Token == token.PUNCTUATOR && t.Value == "!" {
		p.consumeToken()
		ret = &ast.NonNullType{
			Type: ret,
		}
	}

	p.exit()
	return ret
}

func (p *parser) parseArgument() *ast.Argument {
	p.enter()

	ret := &ast.Argument{}
	ret.Name = p.parseName()
	if t := p.peek(); t.Token != token.PUNCTUATOR || t.Value != ":" {
		panic(p.errorf("expected colon"))
	}
	p.consumeToken()
	ret.Value = p.parseValue(false)

	p.exit()
	return ret
}

func (p *parser) parseOptionalDirectives() []*ast.Directive {
	p.enter()

	var ret []*ast.Directive
	for {
		t := p.peek()
		if t.Token != token.PUNCTUATOR || t.Value != "@" {
			break
		}
		at := t.Position
		p.consumeToken()
		ret = append(ret, &ast.Directive{
			At:        at,
			Name:      p.parseName(),
			Arguments: p.parseOptionalArguments(),
		})
	}

	p.exit()
	return ret
}

func (p *parser) parseNamedType() *ast.NamedType {
	p.enter()

	ret := &ast.NamedType{
		Name: p.parseName(),
	}

	p.exit()
	return ret
}

func (p *parser) parseName() *ast.Name {
	p.enter()

	ret := &ast.Name{}
	if t := p.peek(); t.Token == token.NAME {
		ret.Name = t.Value
		ret.NamePosition = t.Position
		p.consumeToken()
	} else {
		panic(p.errorf("expected name"))
	}

	p.exit()
	return ret
}

func (p *parser) parseVariable() *ast.Variable {
	p.enter()

	t := p.peek()
	if t.Token != token.PUNCTUATOR || t.Value != "$" {
		panic(p.errorf("expected variable"))
	}
	dollar := t.Position
	p.consumeToken()
	ret := &ast.Variable{
		Dollar: dollar,
		Name:   p.parseName(),
	}

	p.exit()
	return ret
}

func (p *parser) parseValue(constant bool) ast.Value {
	p.enter()

	var ret ast.Value

	switch t := p.peek(); t.Token {
	case token.INT_VALUE:
		p.consumeToken()
		ret = &ast.IntValue{
			Value:   t.Value,
			Literal: t.Position,
		}
	case token.FLOAT_VALUE:
		p.consumeToken()
		ret = &ast.FloatValue{
			Value:   t.Value,
			Literal: t.Position,
		}
	case token.STRING_VALUE:
		p.consumeToken()
		ret = &ast.StringValue{
			Value:   t.Value,
			Literal: t.Position,
		}
	case token.NAME:
		p.consumeToken()
		switch v := t.Value; v {
		case "true", "false":
			ret = &ast.BooleanValue{
				Value:   v == "true",
				Literal: t.Position,
			}
		case "null":
			ret = &ast.NullValue{Literal: t.Position}
		default:
			ret = &ast.EnumValue{
				Value:   v,
				Literal: t.Position,
			}
		}
	case token.PUNCTUATOR:
		switch v := t.Value; v {
		case "$":
			if constant {
				panic(p.errorf("expected constant value"))
			}
			ret = p.parseVariable()
		case "[":
			opening := t.Position
			p.consumeToken()
			var values []ast.Value
			var closing token.Position
			for {
				if t := p.peek(); t.Token == token.PUNCTUATOR && t.Value == "]" {
					closing = t.Position
					p.consumeToken()
					break
				}
				values = append(values, p.parseValue(constant))
			}
			ret = &ast.ListValue{
				Values:  values,
				Opening: opening,
				Closing: closing,
			}
		case "{":
			opening := t.Position
			p.consumeToken()
			var fields []*ast.ObjectField
			var closing token.Position
			for {
				t := p.peek()
				if t.Token == token.PUNCTUATOR && t.Value == "}" {
					closing = t.Position
					p.consumeToken()
					break
				}
				name := p.parseName()
				if t := p.peek(); t.Token != token.PUNCTUATOR || t.Value != ":" {
					panic(p.errorf("expected colon"))
				}
				p.consumeToken()
				value := p.parseValue(constant)
				fields = append(fields, &ast.ObjectField{
					Name:  name,
					Value: value,
				})
			}
			ret = &ast.ObjectValue{
				Fields:  fields,
				Opening: opening,
				Closing: closing,
			}
		}
	}

	if ret == nil {
		panic(p.errorf("expected value"))
	}

	p.exit()
	return ret
}
