package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintRoutes(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printRoutes(&out))

	text := out.String()
	assert.Contains(t, text, "METHOD")
	for _, name := range []string{
		"auth.login", "products.index", "products.show", "products.store",
		"products.update", "products.destroy", "products.history", "products.feed", "products.events", "graphql",
	} {
		assert.Contains(t, text, name)
	}
	assert.Regexp(t, `PUT\s+/api/products/\{id\}\s+products.update`, text)
}
