package sdl

import (
	"fmt"

	"github.com/relay-tools/graphqlrt/graphql/ast"
	"github.com/relay-tools/graphqlrt/graphql/schema"
)

// FieldResolveFunc resolves a single field declared in an SDL document.
type FieldResolveFunc = func(*schema.FieldContext) (interface{}, error)

// TypeResolvers binds the field resolvers (and, for object types that can be ambiguous, an
// IsTypeOf check) for a single named type declared in an SDL document. SDL carries no executable
// code, so this is the minimal seam an application needs to supply in order to make a parsed
// schema document executable.
type TypeResolvers struct {
	Fields map[string]FieldResolveFunc

	// IsTypeOf determines whether a resolved value is an instance of this object type. Required
	// for object types that are union members or ambiguous interface implementations; see
	// schema.ObjectType.IsTypeOf.
	IsTypeOf func(interface{}) bool
}

// Resolvers maps type names to the resolvers that make that type's fields (and, for object types,
// its IsTypeOf check) executable.
type Resolvers map[string]TypeResolvers

type buildError struct {
	message string
}

func (e *buildError) Error() string { return e.message }

func errorf(format string, args ...interface{}) error {
	return &buildError{message: fmt.Sprintf(format, args...)}
}

// builder accumulates the named types produced while walking a Document, so that forward
// references (a field whose type is declared later in the document, or recursively refers back to
// its own containing type) can be resolved once every type stub exists.
type builder struct {
	resolvers Resolvers

	// intern is used purely to deduplicate dynamically-constructed List/NonNull wrapper types
	// encountered while resolving the same AST Type node more than once during the build (e.g. a
	// type referenced from multiple fields). It is not the Schema ultimately returned by
	// BuildSchema; schema.New constructs that one independently from the SchemaDefinition this
	// builder assembles.
	intern *schema.Schema

	named map[string]schema.NamedType

	objectDefs    map[string]*ObjectTypeDefinition
	interfaceDefs map[string]*InterfaceTypeDefinition
	unionDefs     map[string]*UnionTypeDefinition
	enumDefs      map[string]*EnumTypeDefinition
	inputDefs     map[string]*InputObjectTypeDefinition
	scalarDefs    map[string]*ScalarTypeDefinition

	directiveDefs map[string]*schema.DirectiveDefinition

	schemaDef *SchemaDefinition
}

// BuildSchema walks a parsed SDL document and produces a *schema.Schema, binding field resolvers
// (and IsTypeOf checks) from resolvers by type and field name.
func BuildSchema(doc *Document, resolvers Resolvers) (*schema.Schema, error) {
	b := &builder{
		resolvers:     resolvers,
		intern:        &schema.Schema{},
		named:         map[string]schema.NamedType{},
		objectDefs:    map[string]*ObjectTypeDefinition{},
		interfaceDefs: map[string]*InterfaceTypeDefinition{},
		unionDefs:     map[string]*UnionTypeDefinition{},
		enumDefs:      map[string]*EnumTypeDefinition{},
		inputDefs:     map[string]*InputObjectTypeDefinition{},
		scalarDefs:    map[string]*ScalarTypeDefinition{},
		directiveDefs: map[string]*schema.DirectiveDefinition{},
	}

	if err := b.collectStubs(doc); err != nil {
		return nil, err
	}
	if err := b.applyExtensions(doc); err != nil {
		return nil, err
	}
	// Directive definitions are resolved before fields/types so that @directive usages on types
	// and fields below can be looked up by name; resolving a directive's argument types only
	// requires the referenced named types to exist as stubs, not to be fully populated yet.
	if err := b.populateDirectives(doc); err != nil {
		return nil, err
	}
	if err := b.populateFields(); err != nil {
		return nil, err
	}

	def := &schema.SchemaDefinition{
		DirectiveDefinitions: b.directiveDefs,
	}
	for _, named := range b.named {
		def.AdditionalTypes = append(def.AdditionalTypes, named)
	}

	if b.schemaDef != nil {
		for _, opType := range b.schemaDef.OperationTypes {
			obj, ok := b.objectDefs[opType.Type.Name.Name]
			if !ok {
				return nil, errorf("schema refers to undeclared type: %v", opType.Type.Name.Name)
			}
			resolved := b.named[obj.Name.Name].(*schema.ObjectType)
			switch opType.Operation.Name {
			case "query":
				def.Query = resolved
			case "mutation":
				def.Mutation = resolved
			case "subscription":
				def.Subscription = resolved
			default:
				return nil, errorf("unknown root operation type: %v", opType.Operation.Name)
			}
		}
	} else if query, ok := b.named["Query"].(*schema.ObjectType); ok {
		// Per the GraphQL spec, a schema definition may be omitted if the root operation types use
		// their default names (Query, Mutation, Subscription).
		def.Query = query
		if mutation, ok := b.named["Mutation"].(*schema.ObjectType); ok {
			def.Mutation = mutation
		}
		if subscription, ok := b.named["Subscription"].(*schema.ObjectType); ok {
			def.Subscription = subscription
		}
	}

	return schema.New(def)
}

func (b *builder) collectStubs(doc *Document) error {
	for _, rawDef := range doc.Definitions {
		switch def := rawDef.(type) {
		case *SchemaDefinition:
			if def.Extend {
				continue
			}
			if b.schemaDef != nil {
				return errorf("multiple schema definitions")
			}
			b.schemaDef = def
		case *ScalarTypeDefinition:
			if def.Extend {
				continue
			}
			if err := b.checkUnused(def.Name.Name); err != nil {
				return err
			}
			b.scalarDefs[def.Name.Name] = def
			b.named[def.Name.Name] = &schema.ScalarType{Name: def.Name.Name, Description: description(def.Description)}
		case *ObjectTypeDefinition:
			if def.Extend {
				continue
			}
			if err := b.checkUnused(def.Name.Name); err != nil {
				return err
			}
			b.objectDefs[def.Name.Name] = def
			b.named[def.Name.Name] = &schema.ObjectType{
				Name:        def.Name.Name,
				Description: description(def.Description),
				Fields:      map[string]*schema.FieldDefinition{},
				IsTypeOf:    b.resolvers[def.Name.Name].IsTypeOf,
			}
		case *InterfaceTypeDefinition:
			if def.Extend {
				continue
			}
			if err := b.checkUnused(def.Name.Name); err != nil {
				return err
			}
			b.interfaceDefs[def.Name.Name] = def
			b.named[def.Name.Name] = &schema.InterfaceType{
				Name:        def.Name.Name,
				Description: description(def.Description),
				Fields:      map[string]*schema.FieldDefinition{},
			}
		case *UnionTypeDefinition:
			if def.Extend {
				continue
			}
			if err := b.checkUnused(def.Name.Name); err != nil {
				return err
			}
			b.unionDefs[def.Name.Name] = def
			b.named[def.Name.Name] = &schema.UnionType{Name: def.Name.Name, Description: description(def.Description)}
		case *EnumTypeDefinition:
			if def.Extend {
				continue
			}
			if err := b.checkUnused(def.Name.Name); err != nil {
				return err
			}
			b.enumDefs[def.Name.Name] = def
			b.named[def.Name.Name] = &schema.EnumType{
				Name:        def.Name.Name,
				Description: description(def.Description),
				Values:      map[string]*schema.EnumValueDefinition{},
			}
		case *InputObjectTypeDefinition:
			if def.Extend {
				continue
			}
			if err := b.checkUnused(def.Name.Name); err != nil {
				return err
			}
			b.inputDefs[def.Name.Name] = def
			b.named[def.Name.Name] = &schema.InputObjectType{
				Name:        def.Name.Name,
				Description: description(def.Description),
				Fields:      map[string]*schema.InputValueDefinition{},
			}
		case *DirectiveDefinition:
			// Directive definitions carry no forward-referenced fields of their own types, so
			// they're resolved in populateDirectives once every named type stub exists.
		default:
			return errorf("unsupported definition type: %T", rawDef)
		}
	}
	return nil
}

func (b *builder) checkUnused(name string) error {
	if _, ok := b.named[name]; ok {
		return errorf("multiple definitions for type: %v", name)
	}
	if _, ok := schema.BuiltInTypes[name]; ok {
		return errorf("%v is a built-in type and cannot be redefined", name)
	}
	return nil
}

func (b *builder) applyExtensions(doc *Document) error {
	for _, rawDef := range doc.Definitions {
		switch def := rawDef.(type) {
		case *SchemaDefinition:
			if !def.Extend {
				continue
			}
			if b.schemaDef == nil {
				b.schemaDef = &SchemaDefinition{}
			}
			b.schemaDef.OperationTypes = append(b.schemaDef.OperationTypes, def.OperationTypes...)
		case *ScalarTypeDefinition:
			if !def.Extend {
				continue
			}
			base, ok := b.scalarDefs[def.Name.Name]
			if !ok {
				return errorf("cannot extend undeclared scalar: %v", def.Name.Name)
			}
			base.Directives = append(base.Directives, def.Directives...)
		case *ObjectTypeDefinition:
			if !def.Extend {
				continue
			}
			base, ok := b.objectDefs[def.Name.Name]
			if !ok {
				return errorf("cannot extend undeclared type: %v", def.Name.Name)
			}
			base.ImplementedInterfaces = append(base.ImplementedInterfaces, def.ImplementedInterfaces...)
			base.Directives = append(base.Directives, def.Directives...)
			base.Fields = append(base.Fields, def.Fields...)
		case *InterfaceTypeDefinition:
			if !def.Extend {
				continue
			}
			base, ok := b.interfaceDefs[def.Name.Name]
			if !ok {
				return errorf("cannot extend undeclared interface: %v", def.Name.Name)
			}
			base.Directives = append(base.Directives, def.Directives...)
			base.Fields = append(base.Fields, def.Fields...)
		case *UnionTypeDefinition:
			if !def.Extend {
				continue
			}
			base, ok := b.unionDefs[def.Name.Name]
			if !ok {
				return errorf("cannot extend undeclared union: %v", def.Name.Name)
			}
			base.MemberTypes = append(base.MemberTypes, def.MemberTypes...)
		case *EnumTypeDefinition:
			if !def.Extend {
				continue
			}
			base, ok := b.enumDefs[def.Name.Name]
			if !ok {
				return errorf("cannot extend undeclared enum: %v", def.Name.Name)
			}
			base.Values = append(base.Values, def.Values...)
		case *InputObjectTypeDefinition:
			if !def.Extend {
				continue
			}
			base, ok := b.inputDefs[def.Name.Name]
			if !ok {
				return errorf("cannot extend undeclared input object: %v", def.Name.Name)
			}
			base.Fields = append(base.Fields, def.Fields...)
		}
	}
	return nil
}

func description(s *ast.StringValue) string {
	if s == nil {
		return ""
	}
	return s.Value
}

func (b *builder) populateFields() error {
	for name, def := range b.objectDefs {
		obj := b.named[name].(*schema.ObjectType)
		for _, iface := range def.ImplementedInterfaces {
			ifaceType, ok := b.named[iface.Name.Name].(*schema.InterfaceType)
			if !ok {
				return errorf("%v implements undeclared interface: %v", name, iface.Name.Name)
			}
			obj.ImplementedInterfaces = append(obj.ImplementedInterfaces, ifaceType)
		}
		directives, err := b.buildDirectives(def.Directives)
		if err != nil {
			return err
		}
		obj.Directives = directives
		fields, err := b.buildFields(name, def.Fields)
		if err != nil {
			return err
		}
		obj.Fields = fields
	}

	for name, def := range b.interfaceDefs {
		iface := b.named[name].(*schema.InterfaceType)
		directives, err := b.buildDirectives(def.Directives)
		if err != nil {
			return err
		}
		iface.Directives = directives
		fields, err := b.buildFields(name, def.Fields)
		if err != nil {
			return err
		}
		iface.Fields = fields
	}

	for name, def := range b.unionDefs {
		union := b.named[name].(*schema.UnionType)
		directives, err := b.buildDirectives(def.Directives)
		if err != nil {
			return err
		}
		union.Directives = directives
		for _, member := range def.MemberTypes {
			obj, ok := b.named[member.Name.Name].(*schema.ObjectType)
			if !ok {
				return errorf("%v union member is not a declared object type: %v", name, member.Name.Name)
			}
			union.MemberTypes = append(union.MemberTypes, obj)
		}
	}

	for name, def := range b.enumDefs {
		enum := b.named[name].(*schema.EnumType)
		directives, err := b.buildDirectives(def.Directives)
		if err != nil {
			return err
		}
		enum.Directives = directives
		for _, value := range def.Values {
			valueDirectives, err := b.buildDirectives(value.Directives)
			if err != nil {
				return err
			}
			enum.Values[value.Name.Name] = &schema.EnumValueDefinition{
				Description: description(value.Description),
				Directives:  valueDirectives,
			}
		}
	}

	for name, def := range b.inputDefs {
		input := b.named[name].(*schema.InputObjectType)
		directives, err := b.buildDirectives(def.Directives)
		if err != nil {
			return err
		}
		input.Directives = directives
		for _, field := range def.Fields {
			typ, err := b.resolveType(field.Type)
			if err != nil {
				return err
			}
			var defaultValue interface{}
			if field.DefaultValue != nil {
				coerced, err := schema.CoerceLiteral(field.DefaultValue, typ, nil)
				if err != nil {
					return errorf("%v.%v default value: %v", name, field.Name.Name, err)
				}
				if coerced == nil {
					defaultValue = schema.Null
				} else {
					defaultValue = coerced
				}
			}
			fieldDirectives, err := b.buildDirectives(field.Directives)
			if err != nil {
				return err
			}
			input.Fields[field.Name.Name] = &schema.InputValueDefinition{
				Description:  description(field.Description),
				Type:         typ,
				DefaultValue: defaultValue,
				Directives:   fieldDirectives,
			}
		}
	}

	for name, def := range b.scalarDefs {
		scalar := b.named[name].(*schema.ScalarType)
		directives, err := b.buildDirectives(def.Directives)
		if err != nil {
			return err
		}
		scalar.Directives = directives
	}

	return nil
}

// buildDirectives resolves a list of directive usages (name + arguments) against the directive
// definitions already collected by populateDirectives.
func (b *builder) buildDirectives(directives []*ast.Directive) ([]*schema.Directive, error) {
	var ret []*schema.Directive
	for _, d := range directives {
		def, ok := b.directiveDefs[d.Name.Name]
		if !ok {
			return nil, errorf("undeclared directive: @%v", d.Name.Name)
		}

		var args []*schema.Argument
		for _, arg := range d.Arguments {
			argDef, ok := def.Arguments[arg.Name.Name]
			if !ok {
				return nil, errorf("@%v has no argument named %v", d.Name.Name, arg.Name.Name)
			}
			value, err := schema.CoerceLiteral(arg.Value, argDef.Type, nil)
			if err != nil {
				return nil, errorf("@%v(%v: ...): %v", d.Name.Name, arg.Name.Name, err)
			}
			args = append(args, &schema.Argument{Name: arg.Name.Name, Value: value})
		}

		ret = append(ret, &schema.Directive{Definition: def, Arguments: args})
	}
	return ret, nil
}

func (b *builder) buildFields(typeName string, defs []*FieldDefinition) (map[string]*schema.FieldDefinition, error) {
	fields := map[string]*schema.FieldDefinition{}
	for _, field := range defs {
		typ, err := b.resolveType(field.Type)
		if err != nil {
			return nil, err
		}

		args := map[string]*schema.InputValueDefinition{}
		for _, arg := range field.Arguments {
			argType, err := b.resolveType(arg.Type)
			if err != nil {
				return nil, err
			}
			var defaultValue interface{}
			if arg.DefaultValue != nil {
				coerced, err := schema.CoerceLiteral(arg.DefaultValue, argType, nil)
				if err != nil {
					return nil, errorf("%v.%v(%v): %v", typeName, field.Name.Name, arg.Name.Name, err)
				}
				if coerced == nil {
					defaultValue = schema.Null
				} else {
					defaultValue = coerced
				}
			}
			argDirectives, err := b.buildDirectives(arg.Directives)
			if err != nil {
				return nil, err
			}
			args[arg.Name.Name] = &schema.InputValueDefinition{
				Description:  description(arg.Description),
				Type:         argType,
				DefaultValue: defaultValue,
				Directives:   argDirectives,
			}
		}

		fieldDirectives, err := b.buildDirectives(field.Directives)
		if err != nil {
			return nil, err
		}

		fields[field.Name.Name] = &schema.FieldDefinition{
			Description: description(field.Description),
			Arguments:   args,
			Type:        typ,
			Directives:  fieldDirectives,
			Resolve:     b.resolvers[typeName].Fields[field.Name.Name],
		}
	}
	return fields, nil
}

func (b *builder) populateDirectives(doc *Document) error {
	for _, rawDef := range doc.Definitions {
		def, ok := rawDef.(*DirectiveDefinition)
		if !ok {
			continue
		}

		args := map[string]*schema.InputValueDefinition{}
		for _, arg := range def.Arguments {
			argType, err := b.resolveType(arg.Type)
			if err != nil {
				return err
			}
			args[arg.Name.Name] = &schema.InputValueDefinition{
				Description: description(arg.Description),
				Type:        argType,
			}
		}

		locations := make([]schema.DirectiveLocation, len(def.Locations))
		for i, loc := range def.Locations {
			locations[i] = schema.DirectiveLocation(loc.Name)
		}

		b.directiveDefs[def.Name.Name] = &schema.DirectiveDefinition{
			Description: description(def.Description),
			Arguments:   args,
			Locations:   locations,
		}
	}
	return nil
}

// resolveType resolves a parsed ast.Type (NamedType/ListType/NonNullType) to a schema.Type,
// looking up named types among this document's declared and built-in types, and interning
// dynamically-constructed List/NonNull wrappers so repeated references to the same type (e.g.
// "[String]" appearing on two different fields) share one instance.
func (b *builder) resolveType(t ast.Type) (schema.Type, error) {
	switch t := t.(type) {
	case *ast.NamedType:
		if named, ok := b.named[t.Name.Name]; ok {
			return named, nil
		}
		if builtin, ok := schema.BuiltInTypes[t.Name.Name]; ok {
			return builtin, nil
		}
		return nil, errorf("undeclared type: %v", t.Name.Name)
	case *ast.ListType:
		inner, err := b.resolveType(t.Type)
		if err != nil {
			return nil, err
		}
		return b.intern.Wrap(schema.KindList, inner), nil
	case *ast.NonNullType:
		inner, err := b.resolveType(t.Type)
		if err != nil {
			return nil, err
		}
		return b.intern.Wrap(schema.KindNonNull, inner), nil
	default:
		return nil, errorf("unsupported type node: %T", t)
	}
}
