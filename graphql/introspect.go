package graphql

import (
	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/introspection"
	"github.com/vektah/gqlparser/v2/ast"
)

func (r *Request) introspectQuerySchema(field graphql.CollectedField) (any, error) {
	return r.introspectSchema(introspection.WrapSchema(Schema), field.SelectionSet)
}

func (r *Request) introspectQueryType(field graphql.CollectedField) (any, error) {
	args := field.ArgumentMap(r.params.Variables)
	def, ok := Schema.Types[stringArg(args, "name")]
	if !ok {
		return nil, nil
	}
	return r.introspectType(introspection.WrapTypeFromDef(Schema, def), field.SelectionSet)
}

func (r *Request) introspectSchema(obj *introspection.Schema, sel ast.SelectionSet) (any, error) {
	return r.resolveObject(sel, "__Schema", func(field graphql.CollectedField) (any, error) {
		switch field.Name {
		case "description":
			return obj.Description(), nil
		case "types":
			return introspectList(obj.Types(), func(t introspection.Type) (any, error) {
				return r.introspectType(&t, field.SelectionSet)
			})
		case "queryType":
			return r.introspectType(obj.QueryType(), field.SelectionSet)
		case "mutationType":
			return r.introspectType(obj.MutationType(), field.SelectionSet)
		case "subscriptionType":
			return r.introspectType(obj.SubscriptionType(), field.SelectionSet)
		case "directives":
			return introspectList(obj.Directives(), func(d introspection.Directive) (any, error) {
				return r.introspectDirective(d, field.SelectionSet)
			})
		}
		return nil, nil
	})
}

func (r *Request) introspectType(obj *introspection.Type, sel ast.SelectionSet) (any, error) {
	if obj == nil {
		return nil, nil
	}
	return r.resolveObject(sel, "__Type", func(field graphql.CollectedField) (any, error) {
		switch field.Name {
		case "kind":
			return obj.Kind(), nil
		case "name":
			return obj.Name(), nil
		case "description":
			return obj.Description(), nil
		case "specifiedByURL":
			return obj.SpecifiedByURL(), nil
		case "fields":
			fields := obj.Fields(r.includeDeprecated(field))
			if fields == nil {
				return nil, nil
			}
			return introspectList(fields, func(f introspection.Field) (any, error) {
				return r.introspectField(f, field.SelectionSet)
			})
		case "interfaces":
			return r.introspectTypes(obj.Interfaces(), field.SelectionSet)
		case "possibleTypes":
			return r.introspectTypes(obj.PossibleTypes(), field.SelectionSet)
		case "enumValues":
			values := obj.EnumValues(r.includeDeprecated(field))
			if values == nil {
				return nil, nil
			}
			return introspectList(values, func(v introspection.EnumValue) (any, error) {
				return r.introspectEnumValue(v, field.SelectionSet)
			})
		case "inputFields":
			values := obj.InputFields()
			if values == nil {
				return nil, nil
			}
			return r.introspectInputValues(values, field.SelectionSet)
		case "ofType":
			return r.introspectType(obj.OfType(), field.SelectionSet)
		}
		return nil, nil
	})
}

func (r *Request) introspectTypes(types []introspection.Type, sel ast.SelectionSet) (any, error) {
	if types == nil {
		return nil, nil
	}
	return introspectList(types, func(t introspection.Type) (any, error) {
		return r.introspectType(&t, sel)
	})
}

func (r *Request) introspectField(obj introspection.Field, sel ast.SelectionSet) (any, error) {
	return r.resolveObject(sel, "__Field", func(field graphql.CollectedField) (any, error) {
		switch field.Name {
		case "name":
			return obj.Name, nil
		case "description":
			return obj.Description(), nil
		case "isDeprecated":
			return obj.IsDeprecated(), nil
		case "deprecationReason":
			return obj.DeprecationReason(), nil
		case "args":
			return r.introspectInputValues(obj.Args, field.SelectionSet)
		case "type":
			return r.introspectType(obj.Type, field.SelectionSet)
		}
		return nil, nil
	})
}

func (r *Request) introspectInputValues(values []introspection.InputValue, sel ast.SelectionSet) (any, error) {
	return introspectList(values, func(obj introspection.InputValue) (any, error) {
		return r.resolveObject(sel, "__InputValue", func(field graphql.CollectedField) (any, error) {
			switch field.Name {
			case "name":
				return obj.Name, nil
			case "description":
				return obj.Description(), nil
			case "defaultValue":
				return obj.DefaultValue, nil
			case "type":
				return r.introspectType(obj.Type, field.SelectionSet)
			}
			return nil, nil
		})
	})
}

func (r *Request) introspectEnumValue(obj introspection.EnumValue, sel ast.SelectionSet) (any, error) {
	return r.resolveObject(sel, "__EnumValue", func(field graphql.CollectedField) (any, error) {
		switch field.Name {
		case "name":
			return obj.Name, nil
		case "description":
			return obj.Description(), nil
		case "isDeprecated":
			return obj.IsDeprecated(), nil
		case "deprecationReason":
			return obj.DeprecationReason(), nil
		}
		return nil, nil
	})
}

func (r *Request) introspectDirective(obj introspection.Directive, sel ast.SelectionSet) (any, error) {
	return r.resolveObject(sel, "__Directive", func(field graphql.CollectedField) (any, error) {
		switch field.Name {
		case "name":
			return obj.Name, nil
		case "description":
			return obj.Description(), nil
		case "locations":
			return obj.Locations, nil
		case "args":
			return r.introspectInputValues(obj.Args, field.SelectionSet)
		}
		return nil, nil
	})
}

func (r *Request) includeDeprecated(field graphql.CollectedField) bool {
	args := field.ArgumentMap(r.params.Variables)
	include, _ := args["includeDeprecated"].(bool)
	return include
}

func introspectList[T any](items []T, fn func(T) (any, error)) (any, error) {
	result := make([]any, len(items))
	for i, item := range items {
		res, err := fn(item)
		if err != nil {
			return nil, err
		}
		result[i] = res
	}
	return result, nil
}
