package json

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/bububa/ljson"
	"github.com/effective-security/seoagent/pkg/llmutils"
	"github.com/effective-security/seoagent/pkg/schema"
	"github.com/go-playground/validator/v10"
)

// Encoder for JSON output, tolerant to text around the JSON
type Encoder struct {
	schema *schema.Schema
}

// NewEncoder returns Encoder for the type of req
func NewEncoder(req any) (*Encoder, error) {
	s, err := schema.New(reflect.TypeOf(req))
	if err != nil {
		return nil, err
	}
	return &Encoder{
		schema: s,
	}, nil
}

func (e *Encoder) Marshal(req any) ([]byte, error) {
	return json.MarshalIndent(req, "", "  ")
}

func (e *Encoder) Unmarshal(bs []byte, ret any) error {
	data := llmutils.CleanJSON(bs)
	return ljson.Unmarshal(data, ret)
}

func (e *Encoder) Validate(req any) error {
	return validator.New().Struct(req)
}

func (e *Encoder) GetFormatInstructions() string {
	var b bytes.Buffer
	b.WriteString("\nRespond with JSON in the following JSON schema:\n")
	b.WriteString("```json\n")
	b.WriteString(e.schema.String())
	b.WriteString("\n```")
	b.WriteString("\nMake sure to return an instance of the JSON, not the schema itself.\n")
	b.WriteString("Use the exact field names as they are defined in the schema.\n")
	return b.String()
}

// Schema returns the reflected schema
func (e *Encoder) Schema() *schema.Schema {
	return e.schema
}
