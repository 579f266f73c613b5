package graphql

import (
	"context"

	"github.com/nasdf/osmdag/core"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// QueryParams contains all of the parameters for a query.
type QueryParams struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// QueryResponse contains all of the fields for a response.
type QueryResponse struct {
	Data       any            `json:"data,omitempty"`
	Errors     gqlerror.List  `json:"errors,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// NewQueryResponse returns a new GraphQL compliant response.
func NewQueryResponse(data any, err error) QueryResponse {
	response := QueryResponse{
		Data: data,
	}
	switch t := err.(type) {
	case nil:
		response.Errors = nil
	case gqlerror.List:
		response.Errors = t
	case *gqlerror.Error:
		response.Errors = gqlerror.List{t}
	default:
		response.Errors = gqlerror.List{gqlerror.Wrap(err)}
	}
	return response
}

// Execute runs the operation described by params against the db.
func Execute(ctx context.Context, db *core.DB, params QueryParams) QueryResponse {
	req, err := NewRequest(db, params)
	if err != nil {
		return NewQueryResponse(nil, err)
	}
	data, err := req.Execute(ctx)
	if err != nil {
		return NewQueryResponse(nil, err)
	}
	return NewQueryResponse(data, nil)
}
