package tools

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/pkg/schema"
	"github.com/invopop/jsonschema"
)

//go:generate mockgen -source=tool.go -destination=../mocks/mocktools/tools_mock.gen.go -package mocktools

// ITool is a tool for the llm agent to interact with external SEO providers.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	Description() string
	// Parameters returns the JSON schema of the arguments.
	Parameters() *jsonschema.Schema
	// Call executes the tool with JSON encoded arguments.
	// Provider errors should be returned as *Failure.
	Call(ctx context.Context, args string) (*Result, error)
}

// Callback receives tool lifecycle events
type Callback interface {
	OnToolStart(ctx context.Context, tool ITool, input string)
	OnToolEnd(ctx context.Context, tool ITool, input string, output *Result)
	OnToolError(ctx context.Context, tool ITool, input string, err error)
	OnToolNotFound(ctx context.Context, name string)
}

// Func is a typed tool: the arguments are decoded into I
// and the schema is reflected from I.
type Func[I any] struct {
	name        string
	description string
	params      *jsonschema.Schema
	run         func(context.Context, *I) (*Result, error)
}

// NewFunc returns a typed tool.
// It panics if the schema of I can not be reflected.
func NewFunc[I any](name, description string, run func(context.Context, *I) (*Result, error)) *Func[I] {
	var in I
	s, err := schema.New(reflect.TypeOf(in))
	if err != nil {
		panic(err)
	}
	return &Func[I]{
		name:        name,
		description: description,
		params:      s.Parameters,
		run:         run,
	}
}

func (f *Func[I]) Name() string {
	return f.name
}

func (f *Func[I]) Description() string {
	return f.description
}

func (f *Func[I]) Parameters() *jsonschema.Schema {
	return f.params
}

// Call decodes the arguments and runs the tool.
func (f *Func[I]) Call(ctx context.Context, args string) (*Result, error) {
	in := new(I)
	if args != "" {
		if err := json.Unmarshal([]byte(args), in); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "invalid arguments for %s", f.name), ErrMalformedArguments)
		}
	}
	return f.run(ctx, in)
}
