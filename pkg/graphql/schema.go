// Package graphql serves a graphql-go schema over HTTP.
package graphql

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/catalog/pkg/bind"
	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/response"
	"github.com/shashiranjanraj/catalog/pkg/validate"
)

// NewSchema creates a query-only schema. Without a mutation root every
// mutation is rejected during validation.
func NewSchema(query *graphql.Object) (graphql.Schema, error) {
	return graphql.NewSchema(graphql.SchemaConfig{
		Query: query,
	})
}

// Request is the standard GraphQL-over-HTTP body.
type Request struct {
	Query         string                 `json:"query"         validate:"required"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// Handler executes POST {query, variables, operationName} bodies, or a GET
// with ?query=. Results, including GraphQL errors, are written with 200 as
// the GraphQL-over-HTTP convention expects.
func Handler(schema graphql.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		switch r.Method {
		case http.MethodGet:
			req.Query = r.URL.Query().Get("query")
			req.OperationName = r.URL.Query().Get("operationName")
			if errs := validate.Struct(req); validate.HasErrors(errs) {
				response.ValidationError(w, errs)
				return
			}
		case http.MethodPost:
			errs, err := bind.JSON(w, r, &req)
			if err != nil {
				response.Error(w, http.StatusBadRequest, err.Error())
				return
			}
			if validate.HasErrors(errs) {
				response.ValidationError(w, errs)
				return
			}
		default:
			w.Header().Set("Allow", "GET, POST")
			response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        r.Context(),
		})
		if result.HasErrors() {
			logger.WithCtx(r.Context()).Debug("graphql: query returned errors", "errors", len(result.Errors))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result) //nolint:errcheck
	}
}
