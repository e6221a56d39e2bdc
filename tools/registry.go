package tools

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/pkg/llmutils"
	"github.com/effective-security/seoagent/pkg/metricskey"
	"github.com/effective-security/seoagent/pkg/schema"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/seoagent", "tools")

var (
	// ErrUnknownTool is returned when the tool name is not registered
	ErrUnknownTool = errors.New("unknown tool")
	// ErrMalformedArguments is returned when the arguments do not match the tool schema
	ErrMalformedArguments = errors.New("malformed tool arguments")
	// ErrDuplicateTool is returned when two tools have the same name
	ErrDuplicateTool = errors.New("duplicate tool")
)

// MaxRetries is the upper bound of upstream retries
const MaxRetries = 3

// Descriptor describes a tool for discovery
type Descriptor struct {
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description" yaml:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty" yaml:"-"`
}

// Invocation is a request to run a named tool
type Invocation struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type entry struct {
	tool      ITool
	validator *gojsonschema.Schema
}

// Registry is a static set of tools, resolved by name.
// It is safe for concurrent use as it is not modified after creation.
type Registry struct {
	entries map[string]*entry
	order   []string
	retries int
}

// Option configures Registry
type Option func(*Registry)

// WithRetries sets the number of repeated calls on upstream_unavailable failures.
// The value is capped by MaxRetries.
func WithRetries(n int) Option {
	return func(r *Registry) {
		r.retries = min(max(n, 0), MaxRetries)
	}
}

// NewRegistry returns Registry with the tools
func NewRegistry(list []ITool, opts ...Option) (*Registry, error) {
	r := &Registry{
		entries: make(map[string]*entry, len(list)),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, t := range list {
		name := strings.ToLower(t.Name())
		if name == "" {
			return nil, errors.Newf("tool name is empty: %T", t)
		}
		if _, ok := r.entries[name]; ok {
			return nil, errors.Wrapf(ErrDuplicateTool, "%s", t.Name())
		}
		r.entries[name] = &entry{
			tool:      t,
			validator: compileValidator(t),
		}
		r.order = append(r.order, name)
	}
	return r, nil
}

func compileValidator(t ITool) *gojsonschema.Schema {
	m := schema.ToMap(t.Parameters())
	// draft 2020-12 is not supported by the validator
	delete(m, "$schema")
	delete(m, "$id")

	v, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(m))
	if err != nil {
		logger.KV(xlog.WARNING,
			"reason", "schema_not_compiled",
			"tool", t.Name(),
			"err", err.Error())
		return nil
	}
	return v
}

// Len returns the number of tools
func (r *Registry) Len() int {
	return len(r.order)
}

// Tools returns the tools in registration order
func (r *Registry) Tools() []ITool {
	res := make([]ITool, 0, len(r.order))
	for _, name := range r.order {
		res = append(res, r.entries[name].tool)
	}
	return res
}

// ListTools returns tool descriptors in registration order
func (r *Registry) ListTools() []Descriptor {
	res := make([]Descriptor, 0, len(r.order))
	for _, t := range r.Tools() {
		res = append(res, Descriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return res
}

// Names returns the tool names in registration order
func (r *Registry) Names() []string {
	res := make([]string, 0, len(r.order))
	for _, t := range r.Tools() {
		res = append(res, t.Name())
	}
	return res
}

// Resolve returns the tool by name, case-insensitive
func (r *Registry) Resolve(name string) (ITool, error) {
	if e, ok := r.entries[strings.ToLower(strings.TrimSpace(name))]; ok {
		return e.tool, nil
	}
	return nil, errors.Wrapf(ErrUnknownTool, "%s", name)
}

// ByPrefix returns tools which names start with the prefix
func (r *Registry) ByPrefix(prefix string) []ITool {
	prefix = strings.ToLower(prefix)
	var res []ITool
	for _, name := range r.order {
		if strings.HasPrefix(name, prefix) {
			res = append(res, r.entries[name].tool)
		}
	}
	return res
}

// Subset returns a new Registry with only the named tools.
// Unknown names are rejected.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	sub := &Registry{
		entries: make(map[string]*entry, len(names)),
		retries: r.retries,
	}
	for _, n := range names {
		key := strings.ToLower(n)
		e, ok := r.entries[key]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownTool, "%s", n)
		}
		if _, ok := sub.entries[key]; ok {
			continue
		}
		sub.entries[key] = e
		sub.order = append(sub.order, key)
	}
	return sub, nil
}

// LLMTools returns function definitions for the model
func (r *Registry) LLMTools() []llms.Tool {
	res := make([]llms.Tool, 0, len(r.order))
	for _, t := range r.Tools() {
		res = append(res, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return res
}

type toolsDescription struct {
	Tools []Descriptor `json:"tools" yaml:"tools"`
}

// Describe returns the tool names and descriptions for a prompt
func (r *Registry) Describe() string {
	d := toolsDescription{Tools: r.ListTools()}
	for i := range d.Tools {
		d.Tools[i].Parameters = nil
	}
	return llmutils.BackticksJSON(llmutils.ToJSONIndent(d))
}

// Validate checks the arguments against the tool schema
func (r *Registry) Validate(name, args string) error {
	e, ok := r.entries[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return errors.Wrapf(ErrUnknownTool, "%s", name)
	}
	return e.validate(args)
}

func (e *entry) validate(args string) error {
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(args), &obj); err != nil {
		return errors.Wrapf(ErrMalformedArguments, "%s: arguments must be a JSON object", e.tool.Name())
	}
	if e.validator == nil {
		return nil
	}
	res, err := e.validator.Validate(gojsonschema.NewGoLoader(obj))
	if err != nil {
		return errors.Wrapf(ErrMalformedArguments, "%s: %s", e.tool.Name(), err.Error())
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, re := range res.Errors() {
			msgs = append(msgs, re.String())
		}
		return errors.Wrapf(ErrMalformedArguments, "%s: %s", e.tool.Name(), strings.Join(msgs, "; "))
	}
	return nil
}

// Invoke resolves, validates and calls the tool.
//
// Unknown tools return ErrUnknownTool and invalid arguments return
// ErrMalformedArguments, without calling the tool.
// Provider errors are returned as a failed Result, not as error.
// The error is also returned when ctx is cancelled.
func (r *Registry) Invoke(ctx context.Context, inv Invocation, cb Callback) (*Result, error) {
	e, ok := r.entries[strings.ToLower(strings.TrimSpace(inv.Name))]
	if !ok {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, inv.Name)
		if cb != nil {
			cb.OnToolNotFound(ctx, inv.Name)
		}
		return nil, errors.Wrapf(ErrUnknownTool, "%s", inv.Name)
	}
	tool := e.tool
	name := tool.Name()

	if err := e.validate(inv.Arguments); err != nil {
		metricskey.StatsToolCallsRejected.IncrCounter(1, name)
		if cb != nil {
			cb.OnToolError(ctx, tool, inv.Arguments, err)
		}
		return nil, err
	}

	if cb != nil {
		cb.OnToolStart(ctx, tool, inv.Arguments)
	}

	var (
		res *Result
		err error
	)
	for attempt := 0; attempt <= r.retries; attempt++ {
		started := time.Now()
		res, err = tool.Call(ctx, inv.Arguments)
		metricskey.PerfToolCall.MeasureSince(started, name)

		if err == nil || ctx.Err() != nil {
			break
		}
		f := Classify(name, err)
		if !f.Retryable() || attempt == r.retries {
			break
		}
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "retry",
			"tool", name,
			"attempt", attempt+1,
			"err", err.Error())
	}

	if ctx.Err() != nil {
		if cb != nil {
			cb.OnToolError(ctx, tool, inv.Arguments, ctx.Err())
		}
		return nil, errors.WithStack(ctx.Err())
	}

	if err != nil {
		f := Classify(name, err)
		res = FailedResult(name, f)
	} else if res == nil {
		res = NewResult(name, nil)
	}
	if res.Tool == "" {
		res.Tool = name
	}

	if res.Failure != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name, string(res.Failure.Kind))
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "tool_failed",
			"tool", name,
			"kind", res.Failure.Kind,
			"err", res.Failure.Message)
		if cb != nil {
			cb.OnToolError(ctx, tool, inv.Arguments, res.Failure)
		}
	} else {
		metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
		if cb != nil {
			cb.OnToolEnd(ctx, tool, inv.Arguments, res)
		}
	}
	return res, nil
}
