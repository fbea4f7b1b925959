package schema

import (
	"fmt"
	"reflect"

	"github.com/relay-tools/graphqlrt/graphql/ast"
)

type ListType struct {
	Type Type
}

func NewListType(t Type) *ListType {
	return &ListType{
		Type: t,
	}
}

func (t *ListType) String() string {
	return "[" + t.Type.String() + "]"
}

func (t *ListType) IsInputType() bool {
	return t.Type.IsInputType()
}

func (t *ListType) IsOutputType() bool {
	return t.Type.IsOutputType()
}

func (t *ListType) IsSubTypeOf(other Type) bool {
	return t.IsSameType(other) || t.Type.IsSubTypeOf(other)
}

func (t *ListType) IsSameType(other Type) bool {
	if nn, ok := other.(*ListType); ok {
		return t.Type.IsSameType(nn.Type)
	}
	return false
}

func (t *ListType) Unwrap() Type {
	return t.Type
}

// coerceVariableValue coerces a decoded JSON-like variable value into this list type's internal Go
// representation. If allowItemToListCoercion is true and value isn't a slice, it's treated as a
// single-element list, per the GraphQL spec's input coercion rules.
func (t *ListType) coerceVariableValue(value interface{}, allowItemToListCoercion bool) (interface{}, error) {
	rv := reflect.ValueOf(value)
	if value == nil || rv.Kind() != reflect.Slice {
		if !allowItemToListCoercion {
			return nil, fmt.Errorf("cannot coerce to %v", t)
		}
		coerced, err := coerceVariableValue(value, t.Type, true)
		if err != nil {
			return nil, err
		}
		return []interface{}{coerced}, nil
	}

	result := make([]interface{}, rv.Len())
	for i := range result {
		coerced, err := coerceVariableValue(rv.Index(i).Interface(), t.Type, false)
		if err != nil {
			return nil, err
		}
		result[i] = coerced
	}
	return result, nil
}

// coerceLiteral coerces an AST literal into this list type's internal Go representation, following
// the same item-to-list coercion rule as coerceVariableValue.
func (t *ListType) coerceLiteral(from ast.Value, variableValues map[string]interface{}, allowItemToListCoercion bool) (interface{}, error) {
	if fromList, ok := from.(*ast.ListValue); ok {
		result := make([]interface{}, len(fromList.Values))
		for i, value := range fromList.Values {
			coerced, err := coerceLiteral(value, t.Type, variableValues, false)
			if err != nil {
				return nil, err
			}
			result[i] = coerced
		}
		return result, nil
	}
	if !allowItemToListCoercion {
		return nil, fmt.Errorf("cannot coerce to %v", t)
	}
	coerced, err := coerceLiteral(from, t.Type, variableValues, true)
	if err != nil {
		return nil, err
	}
	return []interface{}{coerced}, nil
}

func (t *ListType) shallowValidate() error {
	return nil
}

func IsListType(t Type) bool {
	_, ok := t.(*ListType)
	return ok
}
