package schema

import (
	"reflect"

	"github.com/effective-security/x/values"
	"github.com/invopop/jsonschema"
)

// Response format types
const (
	FormatJSONSchema = "json_schema"
	FormatJSONObject = "json_object"
)

// ResponseFormat asks the model for a JSON document instead of free text
type ResponseFormat struct {
	Type       string       `json:"type"`
	JSONSchema *NamedSchema `json:"json_schema,omitempty"`
}

// NamedSchema is the schema of a json_schema response format
type NamedSchema struct {
	Name   string    `json:"name"`
	Strict bool      `json:"strict"`
	Schema *Property `json:"schema"`
}

// Property is a node of the subset of JSON schema accepted by
// structured outputs: no references, defaults or examples.
type Property struct {
	Type                 string               `json:"type,omitempty"`
	Title                string               `json:"title,omitempty"`
	Description          string               `json:"description,omitempty"`
	Enum                 []any                `json:"enum,omitempty"`
	Items                *Property            `json:"items,omitempty"`
	Properties           map[string]*Property `json:"properties,omitempty"`
	AdditionalProperties *bool                `json:"additionalProperties,omitempty"`
	Required             []string             `json:"required,omitempty"`
}

// NewResponseFormat returns the json_schema response format of the type.
// Objects never accept additional properties.
func NewResponseFormat(t reflect.Type, strict bool) (*ResponseFormat, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	sc, err := New(t)
	if err != nil {
		return nil, err
	}
	return &ResponseFormat{
		Type: FormatJSONSchema,
		JSONSchema: &NamedSchema{
			Name:   values.StringsCoalesce(t.Name(), "response"),
			Strict: strict,
			Schema: toProperty(sc.Parameters),
		},
	}, nil
}

var closed = false

func toProperty(in *jsonschema.Schema) *Property {
	if in == nil {
		return nil
	}

	p := &Property{
		Type:        in.Type,
		Title:       in.Title,
		Description: in.Description,
		Enum:        in.Enum,
		Required:    in.Required,
		Items:       toProperty(in.Items),
	}
	if in.Type == "object" {
		p.AdditionalProperties = &closed
	}
	if in.Properties != nil {
		p.Properties = make(map[string]*Property, in.Properties.Len())
		for pair := in.Properties.Oldest(); pair != nil; pair = pair.Next() {
			p.Properties[pair.Key] = toProperty(pair.Value)
		}
	}
	return p
}
