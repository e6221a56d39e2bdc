// Package mcp connects to remote MCP servers and adapts their tools
// to tools.ITool.
package mcp

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/tools"
	"github.com/effective-security/xlog"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/seoagent", "mcp")

// Transport types
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportSSE   = "sse"
)

// DefaultCallTimeout is applied to tool calls without a deadline
const DefaultCallTimeout = 2 * time.Minute

// ServerConfig describes a remote MCP server
type ServerConfig struct {
	// Name identifies the server, for example: gsc or dataforseo
	Name string `json:"name" yaml:"name"`
	// Transport is one of stdio, http or sse.
	// If empty, stdio is used when Command is set, otherwise http.
	Transport string `json:"transport,omitempty" yaml:"transport,omitempty"`
	// Command and Args start the stdio server
	Command string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
	// Env is added to the environment of the stdio server
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	// URL of the http or sse server
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// Headers are added to http requests
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	// ToolPrefix is prepended to tool names that do not already start with it
	ToolPrefix string `json:"tool_prefix,omitempty" yaml:"tool_prefix,omitempty"`
}

// TransportType returns the effective transport
func (c *ServerConfig) TransportType() string {
	if c.Transport != "" {
		return strings.ToLower(c.Transport)
	}
	if c.Command != "" {
		return TransportStdio
	}
	return TransportHTTP
}

// transportBuilder is overridden in tests
var transportBuilder = buildTransport

// Client is a lazily connected MCP client session
type Client struct {
	cfg     ServerConfig
	impl    *mcpsdk.Client
	lock    sync.Mutex
	session *mcpsdk.ClientSession
}

// NewClient returns Client for the server
func NewClient(cfg ServerConfig, version string) *Client {
	impl := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "seoagent", Version: version}, nil)
	return &Client{
		cfg:  cfg,
		impl: impl,
	}
}

// Name returns the server name
func (c *Client) Name() string {
	return c.cfg.Name
}

func (c *Client) connect(ctx context.Context) (*mcpsdk.ClientSession, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.session != nil {
		return c.session, nil
	}

	transport, err := transportBuilder(&c.cfg)
	if err != nil {
		return nil, err
	}
	session, err := c.impl.Connect(ctx, transport, nil)
	if err != nil {
		return nil, tools.NewFailure(tools.FailureUpstreamUnavailable, "unable to connect to %s server", c.cfg.Name).WithCause(err)
	}

	logger.ContextKV(ctx, xlog.INFO,
		"status", "connected",
		"server", c.cfg.Name,
		"transport", c.cfg.TransportType())

	c.session = session
	return session, nil
}

// Tools returns the tools of the server
func (c *Client) Tools(ctx context.Context) ([]tools.ITool, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	var list []tools.ITool
	for t, err := range session.Tools(ctx, nil) {
		if err != nil {
			return nil, errors.Wrapf(err, "unable to list tools of %s", c.cfg.Name)
		}
		rt, err := newRemoteTool(c, t)
		if err != nil {
			logger.ContextKV(ctx, xlog.WARNING,
				"reason", "invalid_tool",
				"server", c.cfg.Name,
				"tool", t.Name,
				"err", err.Error())
			continue
		}
		list = append(list, rt)
	}
	return list, nil
}

// CallTool calls the tool on the server.
// Protocol and transport errors are returned as *tools.Failure.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCallTimeout)
		defer cancel()
	}

	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		if errors.Is(err, mcpsdk.ErrConnectionClosed) {
			c.reset()
		}
		return nil, callFailure(err)
	}
	return res, nil
}

// reset drops the session, the next call reconnects
func (c *Client) reset() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.session != nil {
		_ = c.session.Close()
		c.session = nil
	}
}

// Close closes the session
func (c *Client) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

func buildTransport(cfg *ServerConfig) (mcpsdk.Transport, error) {
	switch cfg.TransportType() {
	case TransportStdio:
		if cfg.Command == "" {
			return nil, errors.Newf("%s: stdio command is empty", cfg.Name)
		}
		// #nosec G204 -- command is from the operator config
		cmd := exec.Command(cfg.Command, cfg.Args...)
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return &mcpsdk.CommandTransport{Command: cmd}, nil
	case TransportHTTP:
		if cfg.URL == "" {
			return nil, errors.Newf("%s: URL is empty", cfg.Name)
		}
		return &mcpsdk.StreamableClientTransport{
			Endpoint:   cfg.URL,
			HTTPClient: httpClient(cfg.Headers),
		}, nil
	case TransportSSE:
		if cfg.URL == "" {
			return nil, errors.Newf("%s: URL is empty", cfg.Name)
		}
		return &mcpsdk.SSEClientTransport{
			Endpoint:   cfg.URL,
			HTTPClient: httpClient(cfg.Headers),
		}, nil
	default:
		return nil, errors.Newf("%s: unsupported transport: %s", cfg.Name, cfg.Transport)
	}
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	return t.base.RoundTrip(r)
}

func httpClient(headers map[string]string) *http.Client {
	if len(headers) == 0 {
		return http.DefaultClient
	}
	return &http.Client{
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			headers: headers,
		},
	}
}
