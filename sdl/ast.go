// Package sdl parses the GraphQL type-system definition language (schema documents, as opposed to
// the executable-document language handled by graphql/parser) and builds a *schema.Schema from the
// result.
//
// SDL and executable documents share an identical lexical grammar and largely overlap in their
// grammar for types, values, directives, and names, so this package reuses graphql/ast's Type,
// Value, Directive, Argument, and Name node types rather than redefining them.
package sdl

import (
	"github.com/relay-tools/graphqlrt/graphql/ast"
	"github.com/relay-tools/graphqlrt/graphql/token"
)

// Node is any SDL syntax tree node.
type Node interface {
	Position() token.Position
}

// Document is the root of a parsed SDL document: a sequence of type-system definitions and
// extensions.
type Document struct {
	Definitions []Definition
}

func (*Document) Position() token.Position { return token.Position{Line: 1, Column: 1} }

// Definition is any top-level SDL definition or extension.
type Definition interface {
	Node
}

// SchemaDefinition declares the root operation types. Extend is true for "extend schema" forms.
type SchemaDefinition struct {
	Schema              token.Position
	Description         *ast.StringValue
	Directives          []*ast.Directive
	OperationTypes      []*OperationTypeDefinition
	Extend              bool
}

func (n *SchemaDefinition) Position() token.Position { return n.Schema }

// OperationTypeDefinition binds an operation type (query, mutation, subscription) to a named
// object type, e.g. "query: Query".
type OperationTypeDefinition struct {
	Operation *ast.Name
	Type      *ast.NamedType
}

func (n *OperationTypeDefinition) Position() token.Position { return n.Operation.Position() }

// ScalarTypeDefinition declares a scalar type.
type ScalarTypeDefinition struct {
	Keyword     token.Position
	Description *ast.StringValue
	Name        *ast.Name
	Directives  []*ast.Directive
	Extend      bool
}

func (n *ScalarTypeDefinition) Position() token.Position { return n.Keyword }

// ObjectTypeDefinition declares an object type.
type ObjectTypeDefinition struct {
	Keyword               token.Position
	Description           *ast.StringValue
	Name                  *ast.Name
	ImplementedInterfaces []*ast.NamedType
	Directives            []*ast.Directive
	Fields                []*FieldDefinition
	Extend                bool
}

func (n *ObjectTypeDefinition) Position() token.Position { return n.Keyword }

// InterfaceTypeDefinition declares an interface type.
type InterfaceTypeDefinition struct {
	Keyword     token.Position
	Description *ast.StringValue
	Name        *ast.Name
	Directives  []*ast.Directive
	Fields      []*FieldDefinition
	Extend      bool
}

func (n *InterfaceTypeDefinition) Position() token.Position { return n.Keyword }

// UnionTypeDefinition declares a union type.
type UnionTypeDefinition struct {
	Keyword     token.Position
	Description *ast.StringValue
	Name        *ast.Name
	Directives  []*ast.Directive
	MemberTypes []*ast.NamedType
	Extend      bool
}

func (n *UnionTypeDefinition) Position() token.Position { return n.Keyword }

// EnumTypeDefinition declares an enum type.
type EnumTypeDefinition struct {
	Keyword     token.Position
	Description *ast.StringValue
	Name        *ast.Name
	Directives  []*ast.Directive
	Values      []*EnumValueDefinition
	Extend      bool
}

func (n *EnumTypeDefinition) Position() token.Position { return n.Keyword }

// EnumValueDefinition declares a single value of an enum type.
type EnumValueDefinition struct {
	Description *ast.StringValue
	Name        *ast.Name
	Directives  []*ast.Directive
}

func (n *EnumValueDefinition) Position() token.Position { return n.Name.Position() }

// InputObjectTypeDefinition declares an input object type.
type InputObjectTypeDefinition struct {
	Keyword     token.Position
	Description *ast.StringValue
	Name        *ast.Name
	Directives  []*ast.Directive
	Fields      []*InputValueDefinition
	Extend      bool
}

func (n *InputObjectTypeDefinition) Position() token.Position { return n.Keyword }

// FieldDefinition declares a single field of an object or interface type.
type FieldDefinition struct {
	Description *ast.StringValue
	Name        *ast.Name
	Arguments   []*InputValueDefinition
	Type        ast.Type
	Directives  []*ast.Directive
}

func (n *FieldDefinition) Position() token.Position { return n.Name.Position() }

// InputValueDefinition declares a single input value, used both for field arguments and for the
// fields of an input object type.
type InputValueDefinition struct {
	Description  *ast.StringValue
	Name         *ast.Name
	Type         ast.Type
	DefaultValue ast.Value
	Directives   []*ast.Directive
}

func (n *InputValueDefinition) Position() token.Position { return n.Name.Position() }

// DirectiveDefinition declares a directive.
type DirectiveDefinition struct {
	Keyword     token.Position
	Description *ast.StringValue
	Name        *ast.Name
	Arguments   []*InputValueDefinition
	Repeatable  bool
	Locations   []*ast.Name
}

func (n *DirectiveDefinition) Position() token.Position { return n.Keyword }
