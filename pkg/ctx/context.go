// Package ctx provides a single-argument request context for catalog handlers.
//
// Instead of accepting (http.ResponseWriter, *http.Request), a handler
// receives one *Context with helpers for params, binding and responses:
//
//	func (pc *ProductController) Show(c *ctx.Context) {
//	    id, ok := c.ParamUint("id")
//	    if !ok {
//	        return // 404 already sent
//	    }
//	    ...
//	    c.Success(summary)
//	}
//
//	router.Get("/products/{id}", "products.show", ctx.Wrap(pc.Show))
package ctx

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/catalog/pkg/bind"
	"github.com/shashiranjanraj/catalog/pkg/middleware"
	"github.com/shashiranjanraj/catalog/pkg/response"
	"github.com/shashiranjanraj/catalog/pkg/validate"
)

// HandlerFunc is the context-aware handler signature.
type HandlerFunc func(c *Context)

// Wrap converts a HandlerFunc to a standard http.HandlerFunc so it can be
// passed to any router method.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := acquire(w, r)
		defer release(c)
		h(c)
	}
}

// Context wraps a request/response pair.
type Context struct {
	W      http.ResponseWriter
	R      *http.Request
	status int // written status code (0 = not written yet)
}

// pool recycles Context objects to reduce GC pressure.
var pool = sync.Pool{
	New: func() any { return &Context{} },
}

func acquire(w http.ResponseWriter, r *http.Request) *Context {
	c := pool.Get().(*Context)
	c.W = w
	c.R = r
	c.status = 0
	return c
}

func release(c *Context) {
	c.W = nil
	c.R = nil
	pool.Put(c)
}

// ─── Request helpers ──────────────────────────────────────────────────────────

// Param returns a URL path parameter (e.g. "/products/{id}" → c.Param("id")).
func (c *Context) Param(key string) string {
	return chi.URLParam(c.R, key)
}

// ParamUint parses a numeric path parameter. A malformed value names no
// resource, so it is answered with 404 and ok is false.
func (c *Context) ParamUint(key string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(key), 10, 0)
	if err != nil || n == 0 {
		c.NotFound()
		return 0, false
	}
	return uint(n), true
}

// Query returns a URL query parameter.
func (c *Context) Query(key string) string {
	return c.R.URL.Query().Get(key)
}

// Header returns a request header value.
func (c *Context) Header(key string) string {
	return c.R.Header.Get(key)
}

// Context returns the request's context.Context.
func (c *Context) Context() context.Context { return c.R.Context() }

// Actor names the authenticated caller, or "anonymous".
func (c *Context) Actor() string { return middleware.ActorFromCtx(c.R) }

// ─── Binding / Validation ─────────────────────────────────────────────────────

// BindJSON decodes the JSON body into dest and runs validation.
// On validation failure it sends a 422 and returns false; a malformed body
// gets a 400 and an oversized one a 413.
//
//	var input CreateProductInput
//	if !c.BindJSON(&input) {
//	    return // response already sent
//	}
func (c *Context) BindJSON(dest any) bool {
	errs, err := bind.JSON(c.W, c.R, dest)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.Error(http.StatusRequestEntityTooLarge, err.Error())
			return false
		}
		c.Error(http.StatusBadRequest, err.Error())
		return false
	}
	if validate.HasErrors(errs) {
		c.ValidationError(errs)
		return false
	}
	return true
}

// ─── Response helpers ─────────────────────────────────────────────────────────

// SetHeader sets a response header.
func (c *Context) SetHeader(key, value string) {
	c.W.Header().Set(key, value)
}

// Success sends a 200 JSON envelope: {"status":200,"data":...}
func (c *Context) Success(data any) {
	c.status = http.StatusOK
	response.Success(c.W, data)
}

// Created sends a 201 JSON envelope.
func (c *Context) Created(data any) {
	c.status = http.StatusCreated
	response.Created(c.W, data)
}

// NoContent sends a bare 204.
func (c *Context) NoContent() {
	c.status = http.StatusNoContent
	response.NoContent(c.W)
}

// Error sends a JSON error envelope with the given status and message.
func (c *Context) Error(code int, message string) {
	c.status = code
	response.Error(c.W, code, message)
}

// Err sends err with the status its error code maps to.
func (c *Context) Err(err error) {
	c.status = response.StatusOf(err)
	response.Err(c.W, err)
}

// Conflict sends a 409 carrying the current record.
func (c *Context) Conflict(message string, current any) {
	c.status = http.StatusConflict
	response.Conflict(c.W, message, current)
}

// ValidationError sends a 422 Unprocessable Entity with field-level errors.
func (c *Context) ValidationError(errs map[string]string) {
	c.status = http.StatusUnprocessableEntity
	response.ValidationError(c.W, errs)
}

// NotFound sends a 404.
func (c *Context) NotFound() {
	c.status = http.StatusNotFound
	response.NotFound(c.W)
}

// WrittenStatus returns the HTTP status code that was written to the response,
// or 0 if no response has been written yet.
func (c *Context) WrittenStatus() int { return c.status }
