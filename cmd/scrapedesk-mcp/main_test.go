package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/use-agent/scrapedesk/projector"
)

func TestFieldNames(t *testing.T) {
	fields := map[string]any{"price": ".p", "name": ".n", "url": "a"}

	assert.Equal(t, []string{"name", "price", "url"}, fieldNames(fields, nil))
	assert.Equal(t, []string{"url", "price", "name"}, fieldNames(fields, []string{"url", "missing", "price", "url"}))
}

func TestProjectionTextReportsHiddenRows(t *testing.T) {
	payload := projector.Normalize([]byte(`[{"name":"A","price":"1"},{"name":"","price":"2"}]`))
	text, err := projectionText(projector.Project(payload, []string{"name", "price"}))

	assert.NoError(t, err)
	assert.Contains(t, text, "| A | 1 |")
	assert.Contains(t, text, `(1 rows without a "name" value were hidden)`)
}
