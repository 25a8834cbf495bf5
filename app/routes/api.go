// Package routes declares the catalog's HTTP surface.
package routes

import (
	"net/http"

	"github.com/shashiranjanraj/catalog/app/controllers"
	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/pkg/ctx"
	"github.com/shashiranjanraj/catalog/pkg/middleware"
	"github.com/shashiranjanraj/catalog/pkg/rbac"
	"github.com/shashiranjanraj/catalog/pkg/router"
)

// API holds the handlers mounted by RegisterAPI.
type API struct {
	Products *controllers.ProductController
	Auth     *controllers.AuthController
	Authn    middleware.Authenticator
	Feed     http.Handler // websocket change feed
	Events   http.Handler // server-sent events change feed
	GraphQL  http.Handler
}

// RegisterAPI mounts every route. Reads are public; writes need an
// authenticated admin or editor.
func RegisterAPI(r *router.Router, api API) {
	g := r.Group("/api")
	g.Post("/login", "auth.login", ctx.Wrap(api.Auth.Login))

	g.Get("/products", "products.index", ctx.Wrap(api.Products.Index))
	g.Get("/products/feed", "products.feed", api.Feed.ServeHTTP)
	g.Get("/products/events", "products.events", api.Events.ServeHTTP)
	g.Get("/products/{id}", "products.show", ctx.Wrap(api.Products.Show))

	authed := g.Group("", middleware.Authenticate(api.Authn))
	authed.Get("/products/{id}/history", "products.history", ctx.Wrap(api.Products.History))

	writers := authed.Group("", rbac.HasRole(models.RoleAdmin, models.RoleEditor))
	writers.Post("/products", "products.store", ctx.Wrap(api.Products.Store))
	writers.Put("/products/{id}", "products.update", ctx.Wrap(api.Products.Update))
	writers.Delete("/products/{id}", "products.destroy", ctx.Wrap(api.Products.Destroy))

	r.Handle("/graphql", "graphql", api.GraphQL)
}
