// Package seoserver exposes the tool registry as an MCP server.
package seoserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/pkg/schema"
	"github.com/effective-security/seoagent/tools"
	"github.com/effective-security/xlog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/seoagent/mcp", "seoserver")

// DefaultEndpointPath is the path of the streamable HTTP endpoint
const DefaultEndpointPath = "/mcp"

// New returns MCP server with the tools of the registry
func New(reg *tools.Registry, version string) (*server.MCPServer, error) {
	s := server.NewMCPServer(
		"seoagent",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("SEO data tools for Google Search Console and DataForSEO."),
	)

	for _, d := range reg.ListTools() {
		raw, err := json.Marshal(schema.ToMap(d.Parameters))
		if err != nil {
			return nil, err
		}
		s.AddTool(mcp.NewToolWithRawSchema(d.Name, d.Description, raw), handler(reg, d.Name))
	}

	logger.KV(xlog.INFO, "status", "created", "tools", reg.Len())
	return s, nil
}

func handler(reg *tools.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := "{}"
		if raw := req.GetRawArguments(); raw != nil {
			js, err := json.Marshal(raw)
			if err != nil {
				return mcp.NewToolResultError("arguments must be a JSON object"), nil
			}
			args = string(js)
		}

		res, err := reg.Invoke(ctx, tools.Invocation{Name: name, Arguments: args}, nil)
		if err != nil {
			kind := tools.FailureUpstreamUnavailable
			if errors.Is(err, tools.ErrMalformedArguments) || errors.Is(err, tools.ErrUnknownTool) {
				kind = tools.FailureMalformedRequest
			}
			// the kind in parentheses lets clients classify the failure
			return mcp.NewToolResultErrorf("Tool `%s` failed (%s): %s", name, kind, err.Error()), nil
		}
		if res.Failed() {
			return mcp.NewToolResultError(res.String()), nil
		}
		return mcp.NewToolResultText(res.String()), nil
	}
}

// ServeStdio serves the MCP server over stdin and stdout
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// NewHTTPHandler returns the streamable HTTP handler
func NewHTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s, server.WithEndpointPath(DefaultEndpointPath))
}
