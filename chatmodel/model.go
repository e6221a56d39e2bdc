package chatmodel

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

var (
	// ErrFailedUnmarshalInput is returned by output parsers
	ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")
)

// OutputParser is an interface for parsing the output of an LLM call.
type OutputParser[T any] interface {
	// Parse parses the output of an LLM call.
	// If the parser fails to parse the input, it should return ErrFailedUnmarshalInput error.
	Parse(text string) (*T, error)
	// GetFormatInstructions returns a string describing the format of the output.
	GetFormatInstructions() string
	// Type returns the string type key uniquely identifying this class of parser
	Type() string
}

// ContentProvider is implemented by values that can be placed in the chat history.
type ContentProvider interface {
	GetContent() string
}

// Stringer is implemented by values that render themselves.
type Stringer interface {
	String() string
}

// Stringify returns text representation of the value.
func Stringify(s any) string {
	return string(ToBytes(s))
}

// ToBytes returns bytes representation of the value.
func ToBytes(s any) []byte {
	if v, ok := s.(Stringer); ok {
		return []byte(v.String())
	}
	if v, ok := s.(ContentProvider); ok {
		return []byte(v.GetContent())
	}
	bs, _ := json.Marshal(s)
	return bs
}
