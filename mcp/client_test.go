package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/effective-security/seoagent/tools"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rankedArgs struct {
	Target string `json:"target"`
}

func newTestServer() *mcpsdk.Server {
	s := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "dataforseo", Version: "test"}, nil)
	s.AddTool(&mcpsdk.Tool{
		Name:        "ranked_keywords",
		Description: "Keywords the domain ranks for",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"target": map[string]any{"type": "string"},
			},
			"required": []any{"target"},
		},
	}, func(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var args rankedArgs
		_ = json.Unmarshal(req.Params.Arguments, &args)
		switch args.Target {
		case "throttled.com":
			return &mcpsdk.CallToolResult{
				IsError: true,
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "HTTP 429: Too Many Requests"}},
			}, nil
		case "text.com":
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "no data for the target"}},
			}, nil
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: `{"target":"` + args.Target + `","total_keywords":1520}`}},
		}, nil
	})
	s.AddTool(&mcpsdk.Tool{
		Name:        "backlinks_summary",
		Description: "Backlinks",
		InputSchema: map[string]any{"type": "object"},
	}, func(_ context.Context, _ *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		return &mcpsdk.CallToolResult{
			Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: "ignored"}},
			StructuredContent: map[string]any{"backlinks": 18500},
		}, nil
	})
	return s
}

func useInMemory(t *testing.T, server *mcpsdk.Server) {
	t.Helper()
	prev := transportBuilder
	t.Cleanup(func() { transportBuilder = prev })

	transportBuilder = func(_ *ServerConfig) (mcpsdk.Transport, error) {
		ct, st := mcpsdk.NewInMemoryTransports()
		if _, err := server.Connect(context.Background(), st, nil); err != nil {
			return nil, err
		}
		return ct, nil
	}
}

func TestLoadTools(t *testing.T) {
	useInMemory(t, newTestServer())
	ctx := context.Background()

	ts, err := LoadTools(ctx, []ServerConfig{{Name: "dataforseo", URL: "http://localhost/mcp", ToolPrefix: "dataforseo_"}}, "test")
	require.NoError(t, err)
	defer ts.Close()

	reg, err := tools.NewRegistry(ts.Tools())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dataforseo_ranked_keywords", "dataforseo_backlinks_summary"}, reg.Names())

	rt, err := reg.Resolve("dataforseo_ranked_keywords")
	require.NoError(t, err)
	assert.Equal(t, "dataforseo", rt.(*RemoteTool).Server())
	assert.Equal(t, []string{"target"}, rt.Parameters().Required)

	res, err := reg.Invoke(ctx, tools.Invocation{Name: "dataforseo_ranked_keywords", Arguments: `{"target":"example.com"}`}, nil)
	require.NoError(t, err)
	require.False(t, res.Failed(), res.String())
	assert.Equal(t, "dataforseo_ranked_keywords", res.Tool)
	assert.Equal(t, "example.com", res.Metrics["target"])
	assert.EqualValues(t, 1520, res.Metrics["total_keywords"])

	res, err = reg.Invoke(ctx, tools.Invocation{Name: "dataforseo_ranked_keywords", Arguments: `{"target":"text.com"}`}, nil)
	require.NoError(t, err)
	assert.Equal(t, "no data for the target", res.Text)
	assert.Empty(t, res.Metrics)

	res, err = reg.Invoke(ctx, tools.Invocation{Name: "dataforseo_ranked_keywords", Arguments: `{"target":"throttled.com"}`}, nil)
	require.NoError(t, err)
	require.True(t, res.Failed())
	assert.Equal(t, tools.FailureRateLimit, res.Failure.Kind)
	assert.Equal(t, "HTTP 429: Too Many Requests", res.Failure.Message)

	res, err = reg.Invoke(ctx, tools.Invocation{Name: "dataforseo_backlinks_summary", Arguments: `{}`}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 18500, res.Metrics["backlinks"])

	// arguments are validated before the remote call
	_, err = reg.Invoke(ctx, tools.Invocation{Name: "dataforseo_ranked_keywords", Arguments: `{}`}, nil)
	assert.ErrorIs(t, err, tools.ErrMalformedArguments)
}

func TestRemoteUnknownTool(t *testing.T) {
	useInMemory(t, newTestServer())
	ctx := context.Background()

	c := NewClient(ServerConfig{Name: "dataforseo", URL: "http://localhost/mcp"}, "test")
	defer c.Close()

	_, err := c.CallTool(ctx, "keyword_ideas", nil)
	require.Error(t, err)
	f, ok := tools.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, tools.FailureMalformedRequest, f.Kind)
}

func TestTransport(t *testing.T) {
	_, err := buildTransport(&ServerConfig{Name: "gsc", Transport: TransportStdio})
	assert.EqualError(t, err, "gsc: stdio command is empty")
	_, err = buildTransport(&ServerConfig{Name: "dataforseo"})
	assert.EqualError(t, err, "dataforseo: URL is empty")
	_, err = buildTransport(&ServerConfig{Name: "x", Transport: "ws", URL: "ws://localhost"})
	assert.EqualError(t, err, "x: unsupported transport: ws")

	tr, err := buildTransport(&ServerConfig{Name: "gsc", Command: "gsc-mcp", Env: map[string]string{"GSC_SKIP_OAUTH": "true"}})
	require.NoError(t, err)
	cmd := tr.(*mcpsdk.CommandTransport).Command
	assert.Contains(t, cmd.Env, "GSC_SKIP_OAUTH=true")

	tr, err = buildTransport(&ServerConfig{Name: "dataforseo", URL: "https://mcp.example.com/mcp", Headers: map[string]string{"Authorization": "Basic x"}})
	require.NoError(t, err)
	st := tr.(*mcpsdk.StreamableClientTransport)
	assert.Equal(t, "https://mcp.example.com/mcp", st.Endpoint)
	assert.IsType(t, &headerTransport{}, st.HTTPClient.Transport)

	tr, err = buildTransport(&ServerConfig{Name: "sse", Transport: "SSE", URL: "https://mcp.example.com/sse"})
	require.NoError(t, err)
	assert.IsType(t, &mcpsdk.SSEClientTransport{}, tr)
}

func TestClassifyText(t *testing.T) {
	tcases := map[string]tools.FailureKind{
		"401 Unauthorized":                       tools.FailureAuth,
		"Invalid credentials":                    tools.FailureAuth,
		"Rate limit exceeded":                    tools.FailureRateLimit,
		"quota exhausted for today":              tools.FailureRateLimit,
		"invalid site_url":                       tools.FailureMalformedRequest,
		"upstream timed out":                     tools.FailureUpstreamUnavailable,
		"something went wrong":                   tools.FailureUpstreamUnavailable,
		`calling "tools/call": unknown tool "x"`: tools.FailureMalformedRequest,
	}
	for msg, exp := range tcases {
		assert.Equal(t, exp, classifyText(msg), msg)
	}
}
