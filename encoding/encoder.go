package encoding

import (
	"github.com/cockroachdb/errors"
	dummyenc "github.com/effective-security/seoagent/encoding/dummy"
	jsonenc "github.com/effective-security/seoagent/encoding/json"
	tomlenc "github.com/effective-security/seoagent/encoding/toml"
	yamlenc "github.com/effective-security/seoagent/encoding/yaml"
)

// SchemaEncoder encodes and decodes structured model output
type SchemaEncoder interface {
	Marshal(req any) ([]byte, error)
	Unmarshal([]byte, any) error
	// GetFormatInstructions returns the wrapped message with message schema for the prompt
	GetFormatInstructions() string
}

// Validator is implemented by encoders that validate decoded values
type Validator interface {
	Validate(any) error
}

// Mode of the encoding
type Mode = string

const (
	ModeJSON       Mode = "json"
	ModeJSONSchema Mode = "json_schema"
	ModeYAML       Mode = "yaml"
	ModeTOML       Mode = "toml"
	ModePlainText  Mode = "plain_text"
)

// ModeDefault is the default mode for the encoder.
var ModeDefault = ModeJSONSchema

// Modes returns supported modes
func Modes() []Mode {
	return []Mode{ModeJSON, ModeJSONSchema, ModeYAML, ModeTOML, ModePlainText}
}

// PredefinedSchemaEncoder returns encoder for the mode
func PredefinedSchemaEncoder(mode Mode, req any) (SchemaEncoder, error) {
	var (
		enc SchemaEncoder
		err error
	)
	switch mode {
	case ModeJSON, ModeJSONSchema:
		enc, err = jsonenc.NewEncoder(req)
	case ModeYAML:
		enc = yamlenc.NewEncoder(req)
	case ModeTOML:
		enc = tomlenc.NewEncoder(req)
	case ModePlainText:
		enc = dummyenc.NewEncoder()
	default:
		return nil, errors.Newf("no predefined encoder: %s", mode)
	}
	return enc, err
}

var (
	_ SchemaEncoder = (*dummyenc.Encoder)(nil)
	_ SchemaEncoder = (*jsonenc.Encoder)(nil)
	_ SchemaEncoder = (*tomlenc.Encoder)(nil)
	_ SchemaEncoder = (*yamlenc.Encoder)(nil)
)
