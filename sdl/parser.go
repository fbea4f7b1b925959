package sdl

import (
	"fmt"

	"github.com/relay-tools/graphqlrt/graphql/ast"
	"github.com/relay-tools/graphqlrt/graphql/scanner"
	"github.com/relay-tools/graphqlrt/graphql/token"
)

// Error describes a single SDL parse error.
type Error struct {
	message string
	Line    int
	Column  int
}

func (err *Error) Error() string {
	return err.message
}

// DefaultMaxRecursionDepth bounds total parser recursion (nested list types, nested list/object
// default values) when no Option overrides it.
const DefaultMaxRecursionDepth = 1000

// Option customizes a single ParseDocument call.
type Option func(*parser)

// WithMaxRecursionDepth overrides the total parser recursion limit.
func WithMaxRecursionDepth(n int) Option {
	return func(p *parser) {
		p.maxRecursion = n
	}
}

// ParseDocument parses a GraphQL SDL (schema) document.
func ParseDocument(src []byte, opts ...Option) (doc *Document, errs []*Error) {
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

type parserToken struct {
	Token    token.Token
	Value    string
	Position token.Position
}

type parser struct {
	errors       []*Error
	tokens       []*parserToken
	eof          *parserToken
	recursion    int
	maxRecursion int
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
		errors:       make([]*Error, len(s.Errors())),
		tokens:       tokens,
		eof:          &parserToken{Position: s.EndPosition()},
		maxRecursion: DefaultMaxRecursionDepth,
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

func (p *parser) peekAt(n int) *parserToken {
	if len(p.tokens) > n {
		return p.tokens[n]
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

func (p *parser) isKeyword(t *parserToken, keyword string) bool {
	return t.Token == token.NAME && t.Value == keyword
}

func (p *parser) isPunctuator(t *parserToken, value string) bool {
	return t.Token == token.PUNCTUATOR && t.Value == value
}

func (p *parser) parseDocument() *Document {
	p.enter()

	ret := &Document{}
	for p.peek() != p.eof {
		ret.Definitions = append(ret.Definitions, p.parseDefinition())
	}

	p.exit()
	return ret
}

// parseOptionalDescription consumes a leading string value as a description, if present. A
// description can't precede "extend", so callers check for "extend" first.
func (p *parser) parseOptionalDescription() *ast.StringValue {
	if t := p.peek(); t.Token == token.STRING_VALUE {
		p.consumeToken()
		return &ast.StringValue{Value: t.Value, Literal: t.Position}
	}
	return nil
}

func (p *parser) parseDefinition() Definition {
	p.enter()
	defer p.exit()

	if t := p.peek(); p.isKeyword(t, "extend") {
		return p.parseExtension()
	}

	description := p.parseOptionalDescription()

	switch t := p.peek(); {
	case p.isKeyword(t, "schema"):
		return p.parseSchemaDefinition(description, false)
	case p.isKeyword(t, "scalar"):
		return p.parseScalarTypeDefinition(description, false)
	case p.isKeyword(t, "type"):
		return p.parseObjectTypeDefinition(description, false)
	case p.isKeyword(t, "interface"):
		return p.parseInterfaceTypeDefinition(description, false)
	case p.isKeyword(t, "union"):
		return p.parseUnionTypeDefinition(description, false)
	case p.isKeyword(t, "enum"):
		return p.parseEnumTypeDefinition(description, false)
	case p.isKeyword(t, "input"):
		return p.parseInputObjectTypeDefinition(description, false)
	case p.isKeyword(t, "directive"):
		def := p.parseDirectiveDefinition()
		def.Description = description
		return def
	default:
		panic(p.errorf("expected type system definition"))
	}
}

func (p *parser) parseExtension() Definition {
	p.enter()
	defer p.exit()

	if t := p.peek(); !p.isKeyword(t, "extend") {
		panic(p.errorf(`expected "extend"`))
	}
	p.consumeToken()

	switch t := p.peek(); {
	case p.isKeyword(t, "schema"):
		return p.parseSchemaDefinition(nil, true)
	case p.isKeyword(t, "scalar"):
		return p.parseScalarTypeDefinition(nil, true)
	case p.isKeyword(t, "type"):
		return p.parseObjectTypeDefinition(nil, true)
	case p.isKeyword(t, "interface"):
		return p.parseInterfaceTypeDefinition(nil, true)
	case p.isKeyword(t, "union"):
		return p.parseUnionTypeDefinition(nil, true)
	case p.isKeyword(t, "enum"):
		return p.parseEnumTypeDefinition(nil, true)
	case p.isKeyword(t, "input"):
		return p.parseInputObjectTypeDefinition(nil, true)
	default:
		panic(p.errorf("expected extendable type system definition"))
	}
}

func (p *parser) parseSchemaDefinition(description *ast.StringValue, extend bool) *SchemaDefinition {
	p.enter()
	defer p.exit()

	keyword := p.peek().Position
	p.consumeToken() // "schema"

	ret := &SchemaDefinition{
		Schema:      keyword,
		Description: description,
		Directives:  p.parseOptionalDirectives(),
		Extend:      extend,
	}

	if t := p.peek(); p.isPunctuator(t, "{") {
		p.consumeToken()
		for {
			if t := p.peek(); p.isPunctuator(t, "}") {
				p.consumeToken()
				break
			}
			ret.OperationTypes = append(ret.OperationTypes, p.parseOperationTypeDefinition())
		}
	} else if !extend {
		panic(p.errorf("expected {"))
	}

	return ret
}

func (p *parser) parseOperationTypeDefinition() *OperationTypeDefinition {
	p.enter()
	defer p.exit()

	op := p.parseName()
	if t := p.peek(); !p.isPunctuator(t, ":") {
		panic(p.errorf("expected colon"))
	}
	p.consumeToken()

	return &OperationTypeDefinition{
		Operation: op,
		Type:      p.parseNamedType(),
	}
}

func (p *parser) parseScalarTypeDefinition(description *ast.StringValue, extend bool) *ScalarTypeDefinition {
	p.enter()
	defer p.exit()

	keyword := p.peek().Position
	p.consumeToken() // "scalar"

	return &ScalarTypeDefinition{
		Keyword:     keyword,
		Description: description,
		Name:        p.parseName(),
		Directives:  p.parseOptionalDirectives(),
		Extend:      extend,
	}
}

func (p *parser) parseObjectTypeDefinition(description *ast.StringValue, extend bool) *ObjectTypeDefinition {
	p.enter()
	defer p.exit()

	keyword := p.peek().Position
	p.consumeToken() // "type"

	return &ObjectTypeDefinition{
		Keyword:               keyword,
		Description:           description,
		Name:                  p.parseName(),
		ImplementedInterfaces: p.parseOptionalImplementsInterfaces(),
		Directives:            p.parseOptionalDirectives(),
		Fields:                p.parseOptionalFieldsDefinition(),
		Extend:                extend,
	}
}

func (p *parser) parseOptionalImplementsInterfaces() []*ast.NamedType {
	if t := p.peek(); !p.isKeyword(t, "implements") {
		return nil
	}
	p.consumeToken()

	if t := p.peek(); p.isPunctuator(t, "&") {
		p.consumeToken()
	}

	var ret []*ast.NamedType
	ret = append(ret, p.parseNamedType())
	for {
		if t := p.peek(); p.isPunctuator(t, "&") {
			p.consumeToken()
			ret = append(ret, p.parseNamedType())
		} else {
			break
		}
	}
	return ret
}

func (p *parser) parseOptionalFieldsDefinition() []*FieldDefinition {
	if t := p.peek(); !p.isPunctuator(t, "{") {
		return nil
	}
	p.consumeToken()

	var ret []*FieldDefinition
	for {
		if t := p.peek(); p.isPunctuator(t, "}") {
			p.consumeToken()
			break
		}
		ret = append(ret, p.parseFieldDefinition())
	}
	if len(ret) == 0 {
		panic(p.errorf("expected at least one field"))
	}
	return ret
}

func (p *parser) parseFieldDefinition() *FieldDefinition {
	p.enter()
	defer p.exit()

	description := p.parseOptionalDescription()
	name := p.parseName()
	args := p.parseOptionalArgumentsDefinition()

	if t := p.peek(); !p.isPunctuator(t, ":") {
		panic(p.errorf("expected colon"))
	}
	p.consumeToken()

	return &FieldDefinition{
		Description: description,
		Name:        name,
		Arguments:   args,
		Type:        p.parseType(),
		Directives:  p.parseOptionalDirectives(),
	}
}

func (p *parser) parseOptionalArgumentsDefinition() []*InputValueDefinition {
	if t := p.peek(); !p.isPunctuator(t, "(") {
		return nil
	}
	p.consumeToken()

	var ret []*InputValueDefinition
	for {
		if t := p.peek(); p.isPunctuator(t, ")") {
			p.consumeToken()
			break
		}
		ret = append(ret, p.parseInputValueDefinition())
	}
	if len(ret) == 0 {
		panic(p.errorf("expected at least one argument"))
	}
	return ret
}

func (p *parser) parseInputValueDefinition() *InputValueDefinition {
	p.enter()
	defer p.exit()

	description := p.parseOptionalDescription()
	name := p.parseName()

	if t := p.peek(); !p.isPunctuator(t, ":") {
		panic(p.errorf("expected colon"))
	}
	p.consumeToken()

	typ := p.parseType()

	var defaultValue ast.Value
	if t := p.peek(); p.isPunctuator(t, "=") {
		p.consumeToken()
		defaultValue = p.parseValue()
	}

	return &InputValueDefinition{
		Description:  description,
		Name:         name,
		Type:         typ,
		DefaultValue: defaultValue,
		Directives:   p.parseOptionalDirectives(),
	}
}

func (p *parser) parseInterfaceTypeDefinition(description *ast.StringValue, extend bool) *InterfaceTypeDefinition {
	p.enter()
	defer p.exit()

	keyword := p.peek().Position
	p.consumeToken() // "interface"

	return &InterfaceTypeDefinition{
		Keyword:     keyword,
		Description: description,
		Name:        p.parseName(),
		Directives:  p.parseOptionalDirectives(),
		Fields:      p.parseOptionalFieldsDefinition(),
		Extend:      extend,
	}
}

func (p *parser) parseUnionTypeDefinition(description *ast.StringValue, extend bool) *UnionTypeDefinition {
	p.enter()
	defer p.exit()

	keyword := p.peek().Position
	p.consumeToken() // "union"

	ret := &UnionTypeDefinition{
		Keyword:     keyword,
		Description: description,
		Name:        p.parseName(),
		Directives:  p.parseOptionalDirectives(),
		Extend:      extend,
	}

	if t := p.peek(); p.isPunctuator(t, "=") {
		p.consumeToken()
		if t := p.peek(); p.isPunctuator(t, "|") {
			p.consumeToken()
		}
		ret.MemberTypes = append(ret.MemberTypes, p.parseNamedType())
		for {
			if t := p.peek(); p.isPunctuator(t, "|") {
				p.consumeToken()
				ret.MemberTypes = append(ret.MemberTypes, p.parseNamedType())
			} else {
				break
			}
		}
	}

	return ret
}

func (p *parser) parseEnumTypeDefinition(description *ast.StringValue, extend bool) *EnumTypeDefinition {
	p.enter()
	defer p.exit()

	keyword := p.peek().Position
	p.consumeToken() // "enum"

	ret := &EnumTypeDefinition{
		Keyword:     keyword,
		Description: description,
		Name:        p.parseName(),
		Directives:  p.parseOptionalDirectives(),
		Extend:      extend,
	}

	if t := p.peek(); p.isPunctuator(t, "{") {
		p.consumeToken()
		for {
			if t := p.peek(); p.isPunctuator(t, "}") {
				p.consumeToken()
				break
			}
			ret.Values = append(ret.Values, p.parseEnumValueDefinition())
		}
		if len(ret.Values) == 0 {
			panic(p.errorf("expected at least one enum value"))
		}
	}

	return ret
}

func (p *parser) parseEnumValueDefinition() *EnumValueDefinition {
	p.enter()
	defer p.exit()

	description := p.parseOptionalDescription()
	name := p.parseName()
	if name.Name == "true" || name.Name == "false" || name.Name == "null" {
		panic(p.errorfAt(name.NamePosition, "%v is not a legal enum value name", name.Name))
	}

	return &EnumValueDefinition{
		Description: description,
		Name:        name,
		Directives:  p.parseOptionalDirectives(),
	}
}

func (p *parser) parseInputObjectTypeDefinition(description *ast.StringValue, extend bool) *InputObjectTypeDefinition {
	p.enter()
	defer p.exit()

	keyword := p.peek().Position
	p.consumeToken() // "input"

	ret := &InputObjectTypeDefinition{
		Keyword:     keyword,
		Description: description,
		Name:        p.parseName(),
		Directives:  p.parseOptionalDirectives(),
		Extend:      extend,
	}

	if t := p.peek(); p.isPunctuator(t, "{") {
		p.consumeToken()
		for {
			if t := p.peek(); p.isPunctuator(t, "}") {
				p.consumeToken()
				break
			}
			ret.Fields = append(ret.Fields, p.parseInputValueDefinition())
		}
		if len(ret.Fields) == 0 {
			panic(p.errorf("expected at least one field"))
		}
	}

	return ret
}

func (p *parser) parseDirectiveDefinition() *DirectiveDefinition {
	p.enter()
	defer p.exit()

	keyword := p.peek().Position
	p.consumeToken() // "directive"

	if t := p.peek(); !p.isPunctuator(t, "@") {
		panic(p.errorf("expected @"))
	}
	p.consumeToken()

	name := p.parseName()
	args := p.parseOptionalArgumentsDefinition()

	repeatable := false
	if t := p.peek(); p.isKeyword(t, "repeatable") {
		p.consumeToken()
		repeatable = true
	}

	if t := p.peek(); !p.isKeyword(t, "on") {
		panic(p.errorf(`expected "on"`))
	}
	p.consumeToken()

	if t := p.peek(); p.isPunctuator(t, "|") {
		p.consumeToken()
	}

	var locations []*ast.Name
	locations = append(locations, p.parseName())
	for {
		if t := p.peek(); p.isPunctuator(t, "|") {
			p.consumeToken()
			locations = append(locations, p.parseName())
		} else {
			break
		}
	}

	return &DirectiveDefinition{
		Keyword:    keyword,
		Name:       name,
		Arguments:  args,
		Repeatable: repeatable,
		Locations:  locations,
	}
}

func (p *parser) parseOptionalDirectives() []*ast.Directive {
	p.enter()
	defer p.exit()

	var ret []*ast.Directive
	for {
		t := p.peek()
		if !p.isPunctuator(t, "@") {
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
	return ret
}

func (p *parser) parseOptionalArguments() []*ast.Argument {
	p.enter()
	defer p.exit()

	var ret []*ast.Argument
	if t := p.peek(); p.isPunctuator(t, "(") {
		p.consumeToken()
		for {
			if t := p.peek(); p.isPunctuator(t, ")") {
				if len(ret) == 0 {
					panic(p.errorf("expected argument"))
				}
				p.consumeToken()
				break
			}
			ret = append(ret, p.parseArgument())
		}
	}
	return ret
}

func (p *parser) parseArgument() *ast.Argument {
	p.enter()
	defer p.exit()

	ret := &ast.Argument{Name: p.parseName()}
	if t := p.peek(); !p.isPunctuator(t, ":") {
		panic(p.errorf("expected colon"))
	}
	p.consumeToken()
	ret.Value = p.parseValue()
	return ret
}

func (p *parser) parseType() ast.Type {
	p.enter()
	defer p.exit()

	var ret ast.Type
	if t := p.peek(); p.isPunctuator(t, "[") {
		opening := t.Position
		p.consumeToken()
		inner := p.parseType()
		closing := p.peek().Position
		if t := p.peek(); !p.isPunctuator(t, "]") {
			panic(p.errorf("expected ]"))
		}
		p.consumeToken()
		ret = &ast.ListType{Type: inner, Opening: opening, Closing: closing}
	} else {
		ret = p.parseNamedType()
	}

	if t := p.peek(); p.isPunctuator(t, "!") {
		p.consumeToken()
		ret = &ast.NonNullType{Type: ret}
	}
	return ret
}

func (p *parser) parseNamedType() *ast.NamedType {
	p.enter()
	defer p.exit()
	return &ast.NamedType{Name: p.parseName()}
}

func (p *parser) parseName() *ast.Name {
	p.enter()
	defer p.exit()

	if t := p.peek(); t.Token == token.NAME {
		p.consumeToken()
		return &ast.Name{Name: t.Value, NamePosition: t.Position}
	}
	panic(p.errorf("expected name"))
}

// parseValue parses a constant value, as used in default values and SDL directive arguments.
// Variables are never legal in SDL documents.
func (p *parser) parseValue() ast.Value {
	p.enter()
	defer p.exit()

	var ret ast.Value
	switch t := p.peek(); t.Token {
	case token.INT_VALUE:
		p.consumeToken()
		ret = &ast.IntValue{Value: t.Value, Literal: t.Position}
	case token.FLOAT_VALUE:
		p.consumeToken()
		ret = &ast.FloatValue{Value: t.Value, Literal: t.Position}
	case token.STRING_VALUE:
		p.consumeToken()
		ret = &ast.StringValue{Value: t.Value, Literal: t.Position}
	case token.NAME:
		p.consumeToken()
		switch v := t.Value; v {
		case "true", "false":
			ret = &ast.BooleanValue{Value: v == "true", Literal: t.Position}
		case "null":
			ret = &ast.NullValue{Literal: t.Position}
		default:
			ret = &ast.EnumValue{Value: v, Literal: t.Position}
		}
	case token.PUNCTUATOR:
		switch v := t.Value; v {
		case "[":
			opening := t.Position
			p.consumeToken()
			var values []ast.Value
			var closing token.Position
			for {
				if t := p.peek(); p.isPunctuator(t, "]") {
					closing = t.Position
					p.consumeToken()
					break
				}
				values = append(values, p.parseValue())
			}
			ret = &ast.ListValue{Values: values, Opening: opening, Closing: closing}
		case "{":
			opening := t.Position
			p.consumeToken()
			var fields []*ast.ObjectField
			var closing token.Position
			for {
				t := p.peek()
				if p.isPunctuator(t, "}") {
					closing = t.Position
					p.consumeToken()
					break
				}
				name := p.parseName()
				if t := p.peek(); !p.isPunctuator(t, ":") {
					panic(p.errorf("expected colon"))
				}
				p.consumeToken()
				fields = append(fields, &ast.ObjectField{Name: name, Value: p.parseValue()})
			}
			ret = &ast.ObjectValue{Fields: fields, Opening: opening, Closing: closing}
		}
	}

	if ret == nil {
		panic(p.errorf("expected value"))
	}
	return ret
}
