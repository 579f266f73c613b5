package graphql

import (
	"context"
	"fmt"

	"github.com/nasdf/osmdag/core"
	"github.com/nasdf/osmdag/document"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
)

func (r *Request) executeMutation(ctx context.Context, set ast.SelectionSet) (map[string]any, error) {
	return r.resolveObject(set, "Mutation", func(field graphql.CollectedField) (any, error) {
		args := field.ArgumentMap(r.params.Variables)
		switch field.Name {
		case "create":
			return r.createMutation(ctx, args, field.SelectionSet)
		case "put":
			return r.putMutation(ctx, args, field.SelectionSet)
		case "delete":
			return r.deleteMutation(ctx, args, field.SelectionSet)
		case "batch":
			return r.batchMutation(ctx, args)
		default:
			return nil, fmt.Errorf("unsupported mutation %s", field.Name)
		}
	})
}

func (r *Request) createMutation(ctx context.Context, args map[string]any, sel ast.SelectionSet) (any, error) {
	value, err := valueArg(args["input"])
	if err != nil {
		return nil, err
	}
	id, n, err := r.db.Create(ctx, value)
	if err != nil {
		return nil, err
	}
	return r.resolveDocument(document.Document{ID: id, Version: n.Version, Value: value}, sel)
}

func (r *Request) putMutation(ctx context.Context, args map[string]any, sel ast.SelectionSet) (any, error) {
	id := stringArg(args, "id")
	value, err := valueArg(args["input"])
	if err != nil {
		return nil, err
	}
	links, err := stringsArg(args["links"])
	if err != nil {
		return nil, err
	}
	n, err := r.db.Put(ctx, id, value, core.WithLinks(links...))
	if err != nil {
		return nil, err
	}
	return r.resolveDocument(document.Document{ID: id, Version: n.Version, Value: value}, sel)
}

func (r *Request) deleteMutation(ctx context.Context, args map[string]any, sel ast.SelectionSet) (any, error) {
	id := stringArg(args, "id")
	versions, err := stringsArg(args["versions"])
	if err != nil {
		return nil, err
	}
	n, err := r.db.Del(ctx, id, core.WithKeys(versions...))
	if err != nil {
		return nil, err
	}
	return r.resolveDocument(document.Document{ID: id, Version: n.Version, Deleted: true}, sel)
}

func (r *Request) batchMutation(ctx context.Context, args map[string]any) (any, error) {
	rows, err := rowsArg(args["rows"])
	if err != nil {
		return nil, err
	}
	nodes, err := r.db.Batch(ctx, rows)
	if err != nil {
		return nil, err
	}
	versions := make([]string, len(nodes))
	for i, n := range nodes {
		versions[i] = n.Version
	}
	return versions, nil
}
