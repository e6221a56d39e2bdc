package schema_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/effective-security/seoagent/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Dimension string

// AnalyticsRequest is a search analytics request.
type AnalyticsRequest struct {
	SiteURL    string      `json:"site_url" jsonschema:"title=Site,description=Property URL,example=sc-domain:example.com"`
	Dimensions []Dimension `json:"dimensions,omitempty" jsonschema:"description=Group by,enum=query,enum=page"`
	Filter     *Filter     `json:"filter,omitempty" jsonschema:"description=Optional filter"`
	Pairs      []*Filter   `json:"pairs,omitempty"`
}

// Filter is a dimension filter.
type Filter struct {
	Dimension  string `json:"dimension" jsonschema:"description=Dimension to filter"`
	Expression string `json:"expression" jsonschema:"description=Value to match"`
}

func TestSchema(t *testing.T) {
	t.Parallel()

	s, err := schema.New(reflect.TypeOf(AnalyticsRequest{}))
	require.NoError(t, err)
	require.NotNil(t, s.Parameters)

	assert.Equal(t, "object", s.Parameters.Type)
	assert.Equal(t, []string{"site_url"}, s.Parameters.Required)

	site, ok := s.Parameters.Properties.Get("site_url")
	require.True(t, ok)
	assert.Equal(t, "string", site.Type)
	assert.Equal(t, "Property URL", site.Description)

	filter, ok := s.Parameters.Properties.Get("filter")
	require.True(t, ok)
	assert.Equal(t, "object", filter.Type)
	assert.Equal(t, []string{"dimension", "expression"}, filter.Required)

	pairs, ok := s.Parameters.Properties.Get("pairs")
	require.True(t, ok)
	require.NotNil(t, pairs.Items)
	assert.Equal(t, "object", pairs.Items.Type)

	// cached
	s2, err := schema.New(reflect.TypeOf(AnalyticsRequest{}))
	require.NoError(t, err)
	assert.Same(t, s, s2)

	assert.Contains(t, s.String(), `"site_url"`)
	assert.Same(t, s.Parameters, schema.Parameters(AnalyticsRequest{}))
}

func TestFromAny(t *testing.T) {
	t.Parallel()

	m := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"target": map[string]any{
				"type":        "string",
				"description": "domain",
			},
		},
		"required": []string{"target"},
	}
	s := schema.MustFromAny(m)
	assert.Equal(t, "object", s.Type)
	assert.Equal(t, []string{"target"}, s.Required)

	s2, err := schema.FromAny(json.RawMessage(`{"type":"object","properties":{"a":{"type":"integer"}}}`))
	require.NoError(t, err)
	a, ok := s2.Properties.Get("a")
	require.True(t, ok)
	assert.Equal(t, "integer", a.Type)

	_, err = schema.FromAny(json.RawMessage(`{`))
	assert.Error(t, err)

	assert.Panics(t, func() {
		schema.MustFromAny(func() {})
	})

	back := schema.ToMap(s)
	assert.Equal(t, "object", back["type"])
	props := back["properties"].(map[string]any)
	assert.Contains(t, props, "target")

	empty := schema.ToMap(nil)
	assert.Equal(t, "object", empty["type"])
}
