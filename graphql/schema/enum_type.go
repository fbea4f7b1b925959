package schema

import (
	"fmt"

	"github.com/relay-tools/graphqlrt/graphql/ast"
)

type EnumType struct {
	Name        string
	Description string
	Directives  []*Directive
	Values      map[string]*EnumValueDefinition
}

type EnumValueDefinition struct {
	Description string
	Directives  []*Directive

	// Value is this enum value's internal Go representation. If nil, the enum's name (as it
	// appears in the schema) is used directly.
	Value interface{}

	// DeprecationReason, if non-empty, marks this value as deprecated for introspection.
	DeprecationReason string
}

func (t *EnumType) valueForName(name string) (interface{}, bool) {
	def, ok := t.Values[name]
	if !ok {
		return nil, false
	}
	if def.Value != nil {
		return def.Value, true
	}
	return name, true
}

func (t *EnumType) nameForValue(value interface{}) (string, bool) {
	for name, def := range t.Values {
		if def.Value != nil {
			if def.Value == value {
				return name, true
			}
		} else if name == value {
			return name, true
		}
	}
	return "", false
}

func (t *EnumType) CoerceLiteral(from ast.Value) (interface{}, error) {
	enumValue, ok := from.(*ast.EnumValue)
	if !ok {
		return nil, fmt.Errorf("cannot coerce to %v", t.Name)
	}
	if v, ok := t.valueForName(enumValue.Value); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%v is not a valid %v value", enumValue.Value, t.Name)
}

func (t *EnumType) CoerceVariableValue(value interface{}) (interface{}, error) {
	name, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("cannot coerce to %v", t.Name)
	}
	if v, ok := t.valueForName(name); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%v is not a valid %v value", name, t.Name)
}

func (t *EnumType) CoerceResult(value interface{}) (interface{}, error) {
	if name, ok := t.nameForValue(value); ok {
		return name, nil
	}
	return nil, fmt.Errorf("%v cannot represent value: %v", t.Name, value)
}

func (t *EnumType) String() string {
	return t.Name
}

func (t *EnumType) IsInputType() bool {
	return true
}

func (t *EnumType) IsOutputType() bool {
	return true
}

func (t *EnumType) IsSubTypeOf(other Type) bool {
	return t.IsSameType(other)
}

func (t *EnumType) IsSameType(other Type) bool {
	return t == other
}

func (t *EnumType) TypeName() string {
	return t.Name
}

func (d *EnumType) shallowValidate() error {
	if len(d.Values) == 0 {
		return fmt.Errorf("%v must have at least one field", d.Name)
	} else {
		for name := range d.Values {
			if !isName(name) || name == "true" || name == "false" || name == "null" {
				return fmt.Errorf("illegal field name: %v", name)
			}
		}
	}
	return nil
}

func IsEnumType(t Type) bool {
	_, ok := t.(*EnumType)
	return ok
}
