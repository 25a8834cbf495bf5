package reqid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, header string) (string, string) {
	t.Helper()
	var seen string
	h := Middleware()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = FromCtx(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		r.Header.Set(Header, header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return seen, rec.Header().Get(Header)
}

func TestGeneratesUUID(t *testing.T) {
	seen, echoed := capture(t, "")
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, echoed)
}

func TestHonoursUpstreamID(t *testing.T) {
	seen, echoed := capture(t, "gateway-42")
	assert.Equal(t, "gateway-42", seen)
	assert.Equal(t, "gateway-42", echoed)
}

func TestReplacesOversizedID(t *testing.T) {
	seen, _ := capture(t, strings.Repeat("x", 500))
	assert.NotEqual(t, strings.Repeat("x", 500), seen)
}

func TestReplacesUnprintableID(t *testing.T) {
	for _, bad := range []string{"two words", "line\nbreak", "tab\there", "caf\xc3\xa9"} {
		seen, echoed := capture(t, bad)
		assert.NotEqual(t, bad, seen)
		assert.Equal(t, seen, echoed)
	}
}
