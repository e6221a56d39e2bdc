package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/pkg/schema"
	"github.com/effective-security/seoagent/tools"
	"github.com/invopop/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// RemoteTool is a tool served by a remote MCP server
type RemoteTool struct {
	client      *Client
	name        string
	remoteName  string
	description string
	params      *jsonschema.Schema
}

var _ tools.ITool = (*RemoteTool)(nil)

func newRemoteTool(c *Client, t *mcpsdk.Tool) (*RemoteTool, error) {
	if t.Name == "" {
		return nil, errors.New("tool name is empty")
	}
	params, err := schema.FromAny(t.InputSchema)
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid input schema")
	}
	if params.Type == "" {
		params.Type = "object"
	}

	name := t.Name
	if p := c.cfg.ToolPrefix; p != "" && !strings.HasPrefix(name, p) {
		name = p + name
	}
	return &RemoteTool{
		client:      c,
		name:        name,
		remoteName:  t.Name,
		description: t.Description,
		params:      params,
	}, nil
}

func (t *RemoteTool) Name() string {
	return t.name
}

func (t *RemoteTool) Description() string {
	return t.description
}

func (t *RemoteTool) Parameters() *jsonschema.Schema {
	return t.params
}

// Server returns the name of the server
func (t *RemoteTool) Server() string {
	return t.client.Name()
}

// Call implements tools.ITool
func (t *RemoteTool) Call(ctx context.Context, input string) (*tools.Result, error) {
	args := map[string]any{}
	if strings.TrimSpace(input) != "" {
		if err := json.Unmarshal([]byte(input), &args); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "arguments must be a JSON object"), tools.ErrMalformedArguments)
		}
	}

	res, err := t.client.CallTool(ctx, t.remoteName, args)
	if err != nil {
		return nil, err
	}
	return ToResult(t.name, res)
}

// ToResult converts the MCP result to the normalized Result.
// Structured content and JSON object text become metrics,
// other text is kept as is.
// A result with IsError is returned as *tools.Failure.
func ToResult(name string, res *mcpsdk.CallToolResult) (*tools.Result, error) {
	text := contentText(res.Content)
	if res.IsError {
		return nil, textFailure(text)
	}

	out := &tools.Result{Tool: name}
	if res.StructuredContent != nil {
		m, err := toMetrics(res.StructuredContent)
		if err == nil {
			out.Metrics = m
			return out, nil
		}
	}

	var m tools.Metrics
	if trimmed := strings.TrimSpace(text); strings.HasPrefix(trimmed, "{") &&
		json.Unmarshal([]byte(trimmed), &m) == nil {
		out.Metrics = m
		return out, nil
	}
	out.Text = text
	return out, nil
}

func toMetrics(v any) (tools.Metrics, error) {
	if m, ok := v.(map[string]any); ok {
		return tools.Metrics(m), nil
	}
	js, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var m tools.Metrics
	if err := json.Unmarshal(js, &m); err != nil {
		return nil, errors.WithStack(err)
	}
	return m, nil
}

func contentText(content []mcpsdk.Content) string {
	var parts []string
	for _, c := range content {
		switch v := c.(type) {
		case *mcpsdk.TextContent:
			parts = append(parts, v.Text)
		case *mcpsdk.EmbeddedResource:
			if v.Resource != nil && v.Resource.Text != "" {
				parts = append(parts, v.Resource.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

var (
	authHints        = []string{"401", "403", "unauthorized", "forbidden", "authentication", "credentials", "permission"}
	rateLimitHints   = []string{"429", "rate limit", "rate-limit", "too many requests", "quota"}
	malformedHints   = []string{"400", "invalid", "malformed", "missing required", "unknown tool", "bad request", "not found"}
	unavailableHints = []string{"500", "502", "503", "504", "timeout", "timed out", "unavailable"}
)

// textFailure classifies a tool error message reported by the server
func textFailure(text string) *tools.Failure {
	msg := strings.TrimSpace(text)
	if msg == "" {
		msg = "tool reported an error"
	}
	return tools.NewFailure(classifyText(msg), "%s", msg)
}

func classifyText(msg string) tools.FailureKind {
	lower := strings.ToLower(msg)
	// failures reported by seoagent servers carry the kind
	for _, kind := range []tools.FailureKind{
		tools.FailureAuth,
		tools.FailureRateLimit,
		tools.FailureMalformedRequest,
		tools.FailureUpstreamUnavailable,
	} {
		if strings.Contains(lower, "("+string(kind)+")") {
			return kind
		}
	}
	contains := func(hints []string) bool {
		for _, h := range hints {
			if strings.Contains(lower, h) {
				return true
			}
		}
		return false
	}
	switch {
	case contains(rateLimitHints):
		return tools.FailureRateLimit
	case contains(authHints):
		return tools.FailureAuth
	case contains(unavailableHints):
		return tools.FailureUpstreamUnavailable
	case contains(malformedHints):
		return tools.FailureMalformedRequest
	default:
		return tools.FailureUpstreamUnavailable
	}
}

// callFailure classifies protocol and transport errors
func callFailure(err error) *tools.Failure {
	if errors.Is(err, mcpsdk.ErrConnectionClosed) ||
		errors.Is(err, context.DeadlineExceeded) {
		return tools.NewFailure(tools.FailureUpstreamUnavailable, "%s", err.Error()).WithCause(err)
	}
	return tools.NewFailure(classifyText(err.Error()), "%s", err.Error()).WithCause(err)
}
