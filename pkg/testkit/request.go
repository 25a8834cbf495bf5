package testkit

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Request describes one call fired by Do.
type Request struct {
	Method  string
	Path    string
	Body    interface{} // marshalled as JSON unless it is already []byte or string
	Headers map[string]string
}

// Do serves req against handler and returns the recorded response.
func Do(t *testing.T, handler http.Handler, req Request) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	switch b := req.Body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	case string:
		body = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err, "testkit: marshal request body")
		body = bytes.NewReader(raw)
	}

	r := httptest.NewRequest(req.Method, req.Path, body)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		r.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	return rec
}

// DecodeJSON unmarshals the recorded body into out.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), "body: %s", rec.Body.String())
}

// AssertJSONBody compares two JSON documents after normalising both, so key
// order and whitespace never matter.
func AssertJSONBody(t *testing.T, expected string, rec *httptest.ResponseRecorder) {
	t.Helper()

	var expVal, actVal interface{}
	require.NoError(t, json.Unmarshal([]byte(expected), &expVal), "expected body is not valid JSON")
	if !assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &actVal), "actual body is not valid JSON\nbody: %s", rec.Body.String()) {
		return
	}
	assert.Equal(t, expVal, actVal, "response body mismatch")
}
