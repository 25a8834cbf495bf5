// Package graphql exposes read-only catalogue queries:
//
//	{ products { id name price available } }
//	{ product(id: 1) { id name price description dateCreated version } }
//
// Reads go through ProductService, so they share its cache.
package graphql

import (
	"context"
	"time"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
	schema "github.com/shashiranjanraj/catalog/pkg/graphql"
)

// ProductReader is the read half of services.ProductService.
type ProductReader interface {
	List(ctx context.Context) ([]models.ProductSummary, error)
	Get(ctx context.Context, id uint) (models.Product, error)
}

var summaryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ProductSummary",
	Fields: graphql.Fields{
		"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"name":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"price":     &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
		"available": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
	},
})

var productType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Product",
	Fields: graphql.Fields{
		"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"name":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"price":       &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
		"available":   &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		"description": &graphql.Field{Type: graphql.String},
		"dateCreated": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"version":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

// NewSchema builds the query root over products.
func NewSchema(products ProductReader) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"products": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(summaryType))),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					list, err := products.List(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, len(list))
					for i, s := range list {
						out[i] = summaryFields(s)
					}
					return out, nil
				},
			},
			"product": &graphql.Field{
				Type: productType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(int)
					if id <= 0 {
						return nil, nil
					}
					prod, err := products.Get(p.Context, uint(id))
					if repositories.IsNotFound(err) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return productFields(prod), nil
				},
			},
		},
	})
	return schema.NewSchema(query)
}

func summaryFields(s models.ProductSummary) map[string]interface{} {
	return map[string]interface{}{
		"id":        int(s.ID),
		"name":      s.Name,
		"price":     s.Price.InexactFloat64(),
		"available": s.Available,
	}
}

func productFields(p models.Product) map[string]interface{} {
	m := summaryFields(p.Summary())
	m["description"] = p.Description
	m["dateCreated"] = p.DateCreated.UTC().Format(time.RFC3339Nano)
	m["version"] = p.Version.String()
	return m
}
