package graphql

import (
	"context"

	"github.com/nasdf/osmdag/core"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Request is a single parsed GraphQL operation.
type Request struct {
	db        *core.DB
	query     *ast.QueryDocument
	operation *ast.OperationDefinition
	params    QueryParams
}

// NewRequest parses and validates the operation described by params.
func NewRequest(db *core.DB, params QueryParams) (*Request, error) {
	query, errs := gqlparser.LoadQuery(Schema, params.Query)
	if errs != nil {
		return nil, errs
	}
	var operation *ast.OperationDefinition
	if params.OperationName != "" {
		operation = query.Operations.ForName(params.OperationName)
	} else if len(query.Operations) == 1 {
		operation = query.Operations[0]
	}
	if operation == nil {
		return nil, gqlerror.Errorf("operation is not defined")
	}
	return &Request{
		db:        db,
		query:     query,
		operation: operation,
		params:    params,
	}, nil
}

// Execute runs the operation and returns its result data.
func (r *Request) Execute(ctx context.Context) (map[string]any, error) {
	switch r.operation.Operation {
	case ast.Mutation:
		return r.executeMutation(ctx, r.operation.SelectionSet)
	case ast.Query:
		return r.executeQuery(ctx, r.operation.SelectionSet)
	default:
		return nil, gqlerror.Errorf("unsupported operation %s", r.operation.Operation)
	}
}

func (r *Request) collectFields(sel ast.SelectionSet, satisfies ...string) []graphql.CollectedField {
	reqCtx := &graphql.OperationContext{
		RawQuery:  r.params.Query,
		Variables: r.params.Variables,
		Doc:       r.query,
	}
	return graphql.CollectFields(reqCtx, sel, satisfies)
}

// resolveObject returns a map containing the result of fn for every field in the selection.
func (r *Request) resolveObject(sel ast.SelectionSet, typeName string, fn func(graphql.CollectedField) (any, error)) (map[string]any, error) {
	fields := r.collectFields(sel, typeName)
	result := make(map[string]any, len(fields))
	for _, field := range fields {
		if field.Name == "__typename" {
			result[field.Alias] = typeName
			continue
		}
		val, err := fn(field)
		if _, ok := err.(*gqlerror.Error); ok {
			return nil, err
		}
		if err != nil {
			return nil, gqlerror.ErrorPosf(field.Position, "%s", err.Error())
		}
		result[field.Alias] = val
	}
	return result, nil
}
