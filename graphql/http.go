package graphql

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nasdf/osmdag/core"
)

// Handler returns an http.Handler that can serve GraphQL requests.
func Handler(db *core.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params QueryParams
		var err error
		switch r.Method {
		case http.MethodGet:
			params, err = ParseGetQueryParams(r)
		case http.MethodPost:
			params, err = ParsePostQueryParams(r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to parse request: %v", err), http.StatusBadRequest)
			return
		}
		res := Execute(r.Context(), db, params)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(res); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// ParseGetQueryParams returns the query params encoded in the request url.
func ParseGetQueryParams(r *http.Request) (QueryParams, error) {
	values := r.URL.Query()
	params := QueryParams{
		Query:         values.Get("query"),
		OperationName: values.Get("operationName"),
	}
	if !values.Has("variables") {
		return params, nil
	}
	err := json.Unmarshal([]byte(values.Get("variables")), &params.Variables)
	if err != nil {
		return params, err
	}
	return params, nil
}

// ParsePostQueryParams returns the query params encoded in the request body.
func ParsePostQueryParams(r *http.Request) (QueryParams, error) {
	var params QueryParams
	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		return params, err
	}
	return params, nil
}
