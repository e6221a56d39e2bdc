package schema

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepWithString struct {
	Goal  string `json:"goal" jsonschema:"title=Goal,description=What the step achieves"`
	Notes string `json:"notes,omitempty" jsonschema:"title=Notes,description=Optional notes"`
}

type stepWithPointer struct {
	Goal  string  `json:"goal" jsonschema:"title=Goal,description=What the step achieves"`
	Notes *string `json:"notes,omitempty" jsonschema:"title=Notes,description=Optional notes"`
}

func TestNewResponseFormat(t *testing.T) {
	for _, typ := range []reflect.Type{
		reflect.TypeOf(stepWithString{}),
		reflect.TypeOf(stepWithPointer{}),
	} {
		t.Run(typ.Name(), func(t *testing.T) {
			rf, err := NewResponseFormat(typ, true)
			require.NoError(t, err)

			assert.Equal(t, "json_schema", rf.Type)
			assert.Equal(t, typ.Name(), rf.JSONSchema.Name)
			assert.True(t, rf.JSONSchema.Strict)
			assert.Contains(t, rf.JSONSchema.Schema.Properties, "notes")
			assert.NotContains(t, rf.JSONSchema.Schema.Required, "notes")
			assert.Contains(t, rf.JSONSchema.Schema.Required, "goal")
			require.NotNil(t, rf.JSONSchema.Schema.AdditionalProperties)
			assert.False(t, *rf.JSONSchema.Schema.AdditionalProperties)
		})
	}
}

type planWithSteps struct {
	Summary string           `json:"summary" jsonschema:"title=Summary"`
	Steps   []stepWithString `json:"steps" jsonschema:"title=Steps"`
}

func TestNewResponseFormat_Nested(t *testing.T) {
	rf, err := NewResponseFormat(reflect.TypeOf(&planWithSteps{}), false)
	require.NoError(t, err)

	assert.Equal(t, FormatJSONSchema, rf.Type)
	assert.Equal(t, "planWithSteps", rf.JSONSchema.Name)
	assert.False(t, rf.JSONSchema.Strict)

	steps := rf.JSONSchema.Schema.Properties["steps"]
	require.NotNil(t, steps)
	assert.Equal(t, "array", steps.Type)
	require.NotNil(t, steps.Items)
	assert.Contains(t, steps.Items.Properties, "goal")
	require.NotNil(t, steps.Items.AdditionalProperties)
	assert.False(t, *steps.Items.AdditionalProperties)
}
