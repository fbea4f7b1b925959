package schema

import (
	"fmt"

	"github.com/relay-tools/graphqlrt/graphql/ast"
)

type ScalarType struct {
	Name        string
	Description string
	Directives  []*Directive

	// LiteralCoercion coerces an AST literal into this scalar's internal Go representation. It
	// should return nil if coercion is impossible.
	LiteralCoercion func(ast.Value) interface{}

	// VariableValueCoercion coerces a decoded variable or argument value into this scalar's
	// internal Go representation. It should return nil if coercion is impossible.
	VariableValueCoercion func(interface{}) interface{}

	// ResultCoercion serializes this scalar's internal Go representation into a response value. It
	// should return nil if the given value cannot be represented.
	ResultCoercion func(interface{}) interface{}
}

func (t *ScalarType) String() string {
	return t.Name
}

func (t *ScalarType) IsInputType() bool {
	return true
}

func (t *ScalarType) IsOutputType() bool {
	return true
}

func (t *ScalarType) IsSubTypeOf(other Type) bool {
	return t.IsSameType(other)
}

func (t *ScalarType) IsSameType(other Type) bool {
	return t == other
}

func (t *ScalarType) TypeName() string {
	return t.Name
}

func (t *ScalarType) CoerceVariableValue(value interface{}) (interface{}, error) {
	if t.VariableValueCoercion == nil {
		return nil, fmt.Errorf("%v cannot coerce variable values", t.Name)
	}
	if coerced := t.VariableValueCoercion(value); coerced != nil {
		return coerced, nil
	}
	return nil, fmt.Errorf("cannot coerce to %v", t.Name)
}

func (t *ScalarType) CoerceResult(value interface{}) (interface{}, error) {
	if t.ResultCoercion == nil {
		return nil, fmt.Errorf("%v cannot coerce results", t.Name)
	}
	if coerced := t.ResultCoercion(value); coerced != nil {
		return coerced, nil
	}
	return nil, fmt.Errorf("%v cannot represent value: %v", t.Name, value)
}

func IsScalarType(t Type) bool {
	_, ok := t.(*ScalarType)
	return ok
}
