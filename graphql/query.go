package graphql

import (
	"context"
	"fmt"
	"slices"

	"github.com/nasdf/osmdag/core"
	"github.com/nasdf/osmdag/document"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
)

func (r *Request) executeQuery(ctx context.Context, set ast.SelectionSet) (map[string]any, error) {
	return r.resolveObject(set, "Query", func(field graphql.CollectedField) (any, error) {
		args := field.ArgumentMap(r.params.Variables)
		switch field.Name {
		case "__type":
			return r.introspectQueryType(field)
		case "__schema":
			return r.introspectQuerySchema(field)
		case "document":
			return r.queryDocument(ctx, args, field.SelectionSet)
		case "heads":
			heads, err := r.db.Heads(ctx, stringArg(args, "id"))
			if err != nil {
				return nil, err
			}
			return append([]string{}, heads...), nil
		case "query":
			return r.queryBBox(ctx, args, field.SelectionSet)
		case "changes":
			return r.db.GetChanges(ctx, stringArg(args, "changeset"))
		default:
			return nil, fmt.Errorf("unsupported query %s", field.Name)
		}
	})
}

func (r *Request) queryDocument(ctx context.Context, args map[string]any, sel ast.SelectionSet) (any, error) {
	heads, err := r.db.Get(ctx, stringArg(args, "id"))
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(heads))
	for v := range heads {
		versions = append(versions, v)
	}
	slices.Sort(versions)

	docs := make([]document.Document, len(versions))
	for i, v := range versions {
		docs[i] = heads[v]
	}
	return r.resolveDocuments(docs, sel)
}

func (r *Request) queryBBox(ctx context.Context, args map[string]any, sel ast.SelectionSet) (any, error) {
	bbox, err := bboxArg(args["bbox"])
	if err != nil {
		return nil, err
	}
	var opts []core.Option
	if order := stringArg(args, "order"); order != "" {
		opts = append(opts, core.WithOrder(order))
	}
	docs, err := r.db.Query(ctx, bbox, opts...)
	if err != nil {
		return nil, err
	}
	return r.resolveDocuments(docs, sel)
}

func (r *Request) resolveDocuments(docs []document.Document, sel ast.SelectionSet) (any, error) {
	result := make([]any, len(docs))
	for i, doc := range docs {
		res, err := r.resolveDocument(doc, sel)
		if err != nil {
			return nil, err
		}
		result[i] = res
	}
	return result, nil
}

func (r *Request) resolveDocument(doc document.Document, sel ast.SelectionSet) (map[string]any, error) {
	value := doc.Value
	if value == nil {
		value = &document.Value{}
	}
	return r.resolveObject(sel, "Document", func(field graphql.CollectedField) (any, error) {
		switch field.Name {
		case "id":
			return doc.ID, nil
		case "version":
			return doc.Version, nil
		case "deleted":
			return doc.Deleted, nil
		case "type":
			return optional(value.Type), nil
		case "lat":
			if !value.IsPoint() {
				return nil, nil
			}
			return value.Lat, nil
		case "lon":
			if !value.IsPoint() {
				return nil, nil
			}
			return value.Lon, nil
		case "refs":
			if value.Refs == nil {
				return nil, nil
			}
			return value.Refs, nil
		case "members":
			return r.resolveMembers(value.Members, field.SelectionSet)
		case "changeset":
			return optional(value.Changeset), nil
		case "tags":
			return r.resolveTags(value.Tags, field.SelectionSet)
		case "timestamp":
			return optional(value.Timestamp), nil
		default:
			return nil, fmt.Errorf("unknown field %s", field.Name)
		}
	})
}

func (r *Request) resolveMembers(members []document.Member, sel ast.SelectionSet) (any, error) {
	if members == nil {
		return nil, nil
	}
	result := make([]any, len(members))
	for i, m := range members {
		res, err := r.resolveObject(sel, "Member", func(field graphql.CollectedField) (any, error) {
			switch field.Name {
			case "ref":
				return m.Ref, nil
			case "role":
				return optional(m.Role), nil
			case "type":
				return optional(m.Type), nil
			default:
				return nil, fmt.Errorf("unknown field %s", field.Name)
			}
		})
		if err != nil {
			return nil, err
		}
		result[i] = res
	}
	return result, nil
}

func (r *Request) resolveTags(tags map[string]string, sel ast.SelectionSet) (any, error) {
	if tags == nil {
		return nil, nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	result := make([]any, len(keys))
	for i, k := range keys {
		res, err := r.resolveObject(sel, "Tag", func(field graphql.CollectedField) (any, error) {
			switch field.Name {
			case "key":
				return k, nil
			case "value":
				return tags[k], nil
			default:
				return nil, fmt.Errorf("unknown field %s", field.Name)
			}
		})
		if err != nil {
			return nil, err
		}
		result[i] = res
	}
	return result, nil
}

// optional returns nil for empty strings so they resolve to null.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
