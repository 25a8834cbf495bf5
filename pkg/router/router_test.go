package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoParam(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(r.Method + " " + chi.URLParam(r, "id")))
}

func header(name string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("X-Chain", name)
			next.ServeHTTP(w, r)
		})
	}
}

func serve(r *Router, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestGroupRoutesAndMiddlewareOrder(t *testing.T) {
	r := New()
	api := r.Group("/api", header("api"))
	products := api.Group("products", header("products"))
	products.Get("/{id}", "products.show", echoParam)
	products.Put("/{id}", "products.update", echoParam, header("route"))
	products.Delete("/{id}", "products.destroy", echoParam)

	rec := serve(r, http.MethodPut, "/api/products/7")
	assert.Equal(t, "PUT 7", rec.Body.String())
	assert.Equal(t, []string{"api", "products", "route"}, rec.Header().Values("X-Chain"))

	assert.Equal(t, "DELETE 7", serve(r, http.MethodDelete, "/api/products/7").Body.String())
	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodPost, "/api/products/7").Code)
}

func TestURL(t *testing.T) {
	r := New()
	r.Get("/api/products/{id}", "products.show", echoParam)

	url, err := r.URL("products.show", map[string]string{"id": "3"})
	require.NoError(t, err)
	assert.Equal(t, "/api/products/3", url)

	_, err = r.URL("products.show", nil)
	assert.Error(t, err)
	_, err = r.URL("missing", nil)
	assert.Error(t, err)
}

func TestRoutesListing(t *testing.T) {
	r := New()
	r.Post("/api/login", "auth.login", echoParam)
	r.Get("/api/products", "products.index", echoParam)
	r.Post("/api/products", "products.store", echoParam)
	r.Handle("/metrics", "metrics", http.NotFoundHandler())
	r.Get("/unnamed", "", echoParam)

	assert.Equal(t, []RouteInfo{
		{Name: "auth.login", Method: http.MethodPost, Path: "/api/login"},
		{Name: "products.index", Method: http.MethodGet, Path: "/api/products"},
		{Name: "products.store", Method: http.MethodPost, Path: "/api/products"},
		{Name: "metrics", Method: "*", Path: "/metrics"},
	}, r.Routes())
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/", joinPath())
	assert.Equal(t, "/", joinPath("", "/"))
	assert.Equal(t, "/api/products", joinPath("/api/", "/products/"))
}
