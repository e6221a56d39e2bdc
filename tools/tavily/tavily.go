// Package tavily provides a web search tool.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	tavilygo "github.com/diverged/tavily-go"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/seoagent/pkg/llmutils"
	"github.com/effective-security/seoagent/pkg/schema"
	"github.com/effective-security/seoagent/tools"
	"github.com/invopop/jsonschema"
)

// ToolName is the name of the web search tool
const ToolName = "web_search"

// SearchRequest represents the tool input.
type SearchRequest struct {
	Query          string   `json:"query" yaml:"query" jsonschema:"title=Search Query,description=The query to search web."`
	IncludeDomains []string `json:"include_domains,omitempty" yaml:"include_domains,omitempty" jsonschema:"description=Only include results from the domains."`
}

// SearchResult represents the structure for a search response
type SearchResult struct {
	Results []tavilyModels.SearchResult `json:"results" yaml:"results"`
	Answer  string                      `json:"answer,omitempty" yaml:"answer,omitempty"`
}

// Tool is a tool that provides a web search functionality
type Tool struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ tools.ITool = (*Tool)(nil)

// New returns web search tool
func New(apiKey string) (*Tool, error) {
	if apiKey == "" {
		return nil, errors.Errorf("TAVILY_API_KEY is not set")
	}
	return &Tool{
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}, nil
}

func (t *Tool) WithBaseURL(baseURL string) *Tool {
	t.baseURL = baseURL
	return t
}

func (t *Tool) WithHTTPClient(client *http.Client) *Tool {
	t.httpClient = client
	return t
}

func (t *Tool) Name() string {
	return ToolName
}

func (t *Tool) Description() string {
	return "A tool that provides a web search functionality. Use it for SEO news, guidelines and competitors."
}

func (t *Tool) Parameters() *jsonschema.Schema {
	return schema.Parameters(SearchRequest{})
}

// Run performs the search
func (t *Tool) Run(_ context.Context, req *SearchRequest) (*SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, tools.NewFailure(tools.FailureMalformedRequest, "empty query")
	}

	client := tavilygo.NewClient(t.apiKey)
	if t.baseURL != "" {
		client.BaseURL = t.baseURL
	}
	if t.httpClient != nil {
		client.HTTPClient = t.httpClient
	}

	searchResp, err := tavilygo.Search(client, tavilyModels.SearchRequest{
		Query:          req.Query,
		SearchDepth:    "basic",
		IncludeAnswer:  true,
		IncludeDomains: req.IncludeDomains,
	})
	if err != nil {
		return nil, classify(err)
	}

	return &SearchResult{
		Results: searchResp.Results,
		Answer:  searchResp.Answer,
	}, nil
}

// Call implements tools.ITool
func (t *Tool) Call(ctx context.Context, input string) (*tools.Result, error) {
	var req SearchRequest
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to unmarshal input"), tools.ErrMalformedArguments)
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return nil, err
	}
	return &tools.Result{
		Tool: ToolName,
		Metrics: tools.Metrics{
			"results_count": len(out.Results),
		},
		Text: out.String(),
	}, nil
}

func (r *SearchResult) String() string {
	var buf bytes.Buffer
	if r.Answer != "" {
		fmt.Fprintf(&buf, "ANSWER: %s\n", r.Answer)
	}

	for _, result := range r.Results {
		fmt.Fprintf(&buf, "- URL: %s\n", result.URL)
		fmt.Fprintf(&buf, "  TITLE: %s\n", result.Title)
		fmt.Fprintf(&buf, "  SCORE: %f\n", result.Score)
		fmt.Fprintf(&buf, "  CONTENT: %s\n", result.Content)
	}

	return buf.String()
}

// classify maps the client error text to a failure kind,
// as the client does not expose the status code
func classify(err error) error {
	msg := err.Error()
	kind := tools.FailureUpstreamUnavailable
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		kind = tools.FailureAuth
	case strings.Contains(msg, "429"):
		kind = tools.FailureRateLimit
	case strings.Contains(msg, "400") || strings.Contains(msg, "422"):
		kind = tools.FailureMalformedRequest
	}
	return tools.NewFailure(kind, "search failed").WithCause(err)
}
