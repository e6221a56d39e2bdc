package config

import (
	"context"
	"encoding/base64"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/mcp"
	"github.com/effective-security/seoagent/pkg/llmfactory"
	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/tools"
	"github.com/effective-security/seoagent/tools/dataforseo"
	"github.com/effective-security/seoagent/tools/gsc"
	"github.com/effective-security/seoagent/tools/tavily"
	"github.com/effective-security/xlog"
	"google.golang.org/api/option"
)

// MCP server names and tool prefixes
const (
	ServerGSC        = "gsc"
	ServerDataForSEO = "dataforseo"
)

// NewLLMFactory returns the factory of the configured provider,
// or the one described by the LLM config file.
func (c *Config) NewLLMFactory() (llmfactory.Factory, error) {
	if c.LLMConfig != "" {
		return llmfactory.Load(c.LLMConfig)
	}

	p := &llmfactory.ProviderConfig{Name: c.LLMProvider}
	switch c.LLMProvider {
	case ProviderOpenAI:
		p.Type = string(llms.ProviderOpenAI)
		p.Token = c.OpenAI.APIKey
		p.DefaultModel = c.OpenAI.Model
		p.BaseURL = c.OpenAI.BaseURL
	case ProviderAnthropic:
		p.Type = string(llms.ProviderAnthropic)
		p.Token = c.Anthropic.APIKey
		p.DefaultModel = c.Anthropic.Model
	case ProviderGoogleAI:
		p.Type = string(llms.ProviderGoogleAI)
		p.Token = c.Google.APIKey
		p.DefaultModel = c.Google.Model
	case ProviderBedrock:
		p.Type = string(llms.ProviderBedrock)
		p.Region = c.Bedrock.Region
		p.DefaultModel = c.Bedrock.Model
	default:
		return nil, &ConfigurationError{Invalid: []string{"LLM_PROVIDER"}}
	}

	return llmfactory.New(&llmfactory.Config{
		Providers:       []*llmfactory.ProviderConfig{p},
		DefaultProvider: p.Name,
	}), nil
}

// MCPServers returns the remote servers of the mcp tool mode
func (c *Config) MCPServers() []mcp.ServerConfig {
	var servers []mcp.ServerConfig

	if fields := strings.Fields(c.GSC.MCPCommand); len(fields) > 0 {
		servers = append(servers, mcp.ServerConfig{
			Name:      ServerGSC,
			Transport: mcp.TransportStdio,
			Command:   fields[0],
			Args:      fields[1:],
			Env: map[string]string{
				"GSC_CREDENTIALS": c.GSC.Credentials,
				"GSC_SKIP_OAUTH":  strconv.FormatBool(c.GSC.SkipOAuth),
			},
			ToolPrefix: ServerGSC + "_",
		})
	}

	if c.DataForSEO.MCPURL != "" {
		srv := mcp.ServerConfig{
			Name:       ServerDataForSEO,
			Transport:  mcp.TransportHTTP,
			URL:        c.DataForSEO.MCPURL,
			ToolPrefix: ServerDataForSEO + "_",
		}
		if c.DataForSEO.Login != "" {
			auth := base64.StdEncoding.EncodeToString([]byte(c.DataForSEO.Login + ":" + c.DataForSEO.Password))
			srv.Headers = map[string]string{"Authorization": "Basic " + auth}
		}
		servers = append(servers, srv)
	}
	return servers
}

// NewRegistry returns the tool registry of the configured tool mode,
// the returned closer releases MCP sessions.
// gscOpts are passed to the Search Console client in native mode.
func (c *Config) NewRegistry(ctx context.Context, version string, gscOpts ...option.ClientOption) (*tools.Registry, io.Closer, error) {
	var (
		list   []tools.ITool
		closer io.Closer = nopCloser{}
	)

	switch c.ToolMode {
	case ToolModeMCP:
		ts, err := mcp.LoadTools(ctx, c.MCPServers(), version)
		if err != nil {
			return nil, nil, err
		}
		list = ts.Tools()
		closer = ts
	default:
		gc, err := gsc.New(ctx, c.GSC.Credentials, gscOpts...)
		if err != nil {
			return nil, nil, err
		}
		var dopts []dataforseo.Option
		if c.DataForSEO.BaseURL != "" {
			dopts = append(dopts, dataforseo.WithBaseURL(c.DataForSEO.BaseURL))
		}
		dopts = append(dopts, dataforseo.WithDefaults(c.DataForSEO.Location, c.DataForSEO.Language))
		dc, err := dataforseo.New(c.DataForSEO.Login, c.DataForSEO.Password, dopts...)
		if err != nil {
			return nil, nil, errors.WithStack(err)
		}
		list = append(gc.Tools(), dc.Tools()...)
	}

	if c.TavilyAPIKey != "" {
		ws, err := tavily.New(c.TavilyAPIKey)
		if err != nil {
			_ = closer.Close()
			return nil, nil, err
		}
		list = append(list, ws)
	}

	reg, err := tools.NewRegistry(list, tools.WithRetries(c.UpstreamRetries))
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	logger.ContextKV(ctx, xlog.INFO,
		"mode", c.ToolMode,
		"tools", reg.Len())
	return reg, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
