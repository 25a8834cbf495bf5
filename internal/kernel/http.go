// Package kernel assembles the HTTP handler: global middleware, the API
// routes and the operational endpoints.
package kernel

import (
	"context"
	"net/http"
	"time"

	"github.com/shashiranjanraj/catalog/app/routes"
	"github.com/shashiranjanraj/catalog/pkg/metrics"
	"github.com/shashiranjanraj/catalog/pkg/middleware"
	"github.com/shashiranjanraj/catalog/pkg/reqid"
	"github.com/shashiranjanraj/catalog/pkg/response"
	"github.com/shashiranjanraj/catalog/pkg/router"
)

// Pinger reports store reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures NewRouter.
type Options struct {
	API          routes.API
	Store        Pinger
	Limiter      *middleware.RateLimiter // nil disables rate limiting
	MaxBodyBytes int64
}

// NewRouter builds the router with the global middleware stack
// (outermost → innermost):
//
//  1. Prometheus metrics for accurate total latency
//  2. Recovery before anything can panic
//  3. Request ID before anything logs
//  4. Logger with request_id from context
//  5. CORS
//  6. Rate limiter, rejecting abusers early
//  7. Body size cap
func NewRouter(opts Options) *router.Router {
	r := router.New()

	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions()))
	if opts.Limiter != nil {
		r.Use(opts.Limiter.Middleware)
	}
	if opts.MaxBodyBytes > 0 {
		r.Use(middleware.MaxBody(opts.MaxBodyBytes))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { response.NotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/metrics", "metrics", metrics.Handler())
	r.Get("/healthz", "healthz", healthz(opts.Store))

	routes.RegisterAPI(r, opts.API)
	return r
}

// healthz answers 200 while the store is reachable and 503 otherwise.
func healthz(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				response.Err(w, err)
				return
			}
		}
		response.Success(w, map[string]string{"status": "ok"})
	}
}
