// Package googleai implements llms.Model with the Gemini API.
package googleai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

var (
	ErrMissingAPIKey       = errors.New("googleai: missing API key")
	ErrNoContentInResponse = errors.New("googleai: no content in generation response")
)

// Roles of genai contents
const (
	RoleModel = "model"
	RoleUser  = "user"
)

// DefaultModel is used when the model is not set
const DefaultModel = "gemini-2.5-flash"

// Option configures GoogleAI
type Option func(*options)

type options struct {
	apiKey     string
	model      string
	httpClient *http.Client
	baseURL    string
}

// WithAPIKey sets the API key.
func WithAPIKey(apiKey string) Option {
	return func(o *options) {
		o.apiKey = apiKey
	}
}

// WithDefaultModel sets the model.
func WithDefaultModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// GoogleAI is a Gemini model.
type GoogleAI struct {
	client *genai.Client
	model  string
}

var _ llms.Model = (*GoogleAI)(nil)

// New returns GoogleAI
func New(ctx context.Context, opts ...Option) (*GoogleAI, error) {
	o := &options{model: DefaultModel}
	for _, opt := range opts {
		opt(o)
	}
	if o.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := &genai.ClientConfig{
		APIKey:     o.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "googleai: failed to create client")
	}
	return &GoogleAI{client: client, model: o.model}, nil
}

// GetName implements the Model interface.
func (g *GoogleAI) GetName() string {
	return g.model
}

// GetProviderType implements the Model interface.
func (g *GoogleAI) GetProviderType() llms.ProviderType {
	return llms.ProviderGoogleAI
}

// GenerateContent implements the Model interface.
func (g *GoogleAI) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(llms.CallOptions{Model: g.model}, options...)

	cfg := &genai.GenerateContentConfig{
		StopSequences:   opts.StopWords,
		MaxOutputTokens: int32(opts.MaxTokens),
	}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(opts.TopP))
	}
	if opts.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(opts.TopK))
	}
	if opts.Seed != 0 {
		cfg.Seed = genai.Ptr(int32(opts.Seed))
	}

	var err error
	if cfg.Tools, err = ConvertTools(opts.Tools); err != nil {
		return nil, err
	}
	if len(cfg.Tools) == 0 && opts.ResponseFormat != nil {
		cfg.ResponseMIMEType = "application/json"
	}

	history, system, err := ToContents(messages)
	if err != nil {
		return nil, err
	}
	cfg.SystemInstruction = system

	resp, err := g.client.Models.GenerateContent(ctx, opts.Model, history, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "googleai: failed to generate content")
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrNoContentInResponse
	}
	return ToResponse(resp.Candidates[0], resp.UsageMetadata)
}

// ToResponse converts the first candidate into a single choice.
func ToResponse(candidate *genai.Candidate, usage *genai.GenerateContentResponseUsageMetadata) (*llms.ContentResponse, error) {
	var text strings.Builder
	choice := &llms.ContentChoice{
		StopReason:     string(candidate.FinishReason),
		GenerationInfo: map[string]any{},
	}
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			switch {
			case part.FunctionCall != nil:
				args, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					return nil, errors.Wrap(err, "googleai: failed to marshal function call arguments")
				}
				choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
					ID:   part.FunctionCall.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      part.FunctionCall.Name,
						Arguments: string(args),
					},
				})
			case part.Text != "" && !part.Thought:
				text.WriteString(part.Text)
			}
		}
	}
	choice.Content = text.String()

	if usage != nil {
		choice.GenerationInfo["InputTokens"] = int64(usage.PromptTokenCount)
		choice.GenerationInfo["OutputTokens"] = int64(usage.CandidatesTokenCount + usage.ToolUsePromptTokenCount + usage.ThoughtsTokenCount)
		choice.GenerationInfo["TotalTokens"] = int64(usage.TotalTokenCount)
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

// ToContents converts the messages into the history and the system instruction.
func ToContents(messages []llms.Message) ([]*genai.Content, *genai.Content, error) {
	var system *genai.Content
	history := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		parts, err := toParts(m.Parts)
		if err != nil {
			return nil, nil, err
		}
		c := &genai.Content{Parts: parts}
		switch m.Role {
		case llms.RoleSystem:
			system = c
			continue
		case llms.RoleAI:
			c.Role = RoleModel
		case llms.RoleHuman, llms.RoleTool:
			c.Role = RoleUser
		default:
			return nil, nil, errors.WithMessagef(llms.ErrUnexpectedRole, "%v", m.Role)
		}
		history = append(history, c)
	}
	return history, system, nil
}

func toParts(parts []llms.ContentPart) ([]*genai.Part, error) {
	res := make([]*genai.Part, 0, len(parts))
	for _, part := range parts {
		switch p := part.(type) {
		case llms.TextContent:
			res = append(res, &genai.Part{Text: p.Text})
		case llms.ToolCall:
			if p.FunctionCall == nil {
				continue
			}
			var args map[string]any
			if p.FunctionCall.Arguments != "" {
				if err := json.Unmarshal([]byte(p.FunctionCall.Arguments), &args); err != nil {
					return nil, errors.Wrap(err, "googleai: failed to unmarshal tool call arguments")
				}
			}
			res = append(res, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   p.ID,
				Name: p.FunctionCall.Name,
				Args: args,
			}})
		case llms.ToolCallResponse:
			res = append(res, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       p.ToolCallID,
				Name:     p.Name,
				Response: map[string]any{"output": p.Content},
			}})
		default:
			return nil, errors.Errorf("googleai: unsupported part %T", part)
		}
	}
	return res, nil
}

// ConvertTools converts the tool definitions to function declarations.
func ConvertTools(tools []llms.Tool) ([]*genai.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for i, tool := range tools {
		if tool.Type != "function" || tool.Function == nil {
			return nil, errors.Errorf("tool [%d]: unsupported type %q, want 'function'", i, tool.Type)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  ConvertSchema(tool.Function.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// ConvertSchema converts a JSON schema to a genai.Schema.
func ConvertSchema(s *jsonschema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        convertType(s.Type),
		Description: s.Description,
		Required:    s.Required,
	}
	for _, e := range s.Enum {
		if v, ok := e.(string); ok {
			out.Enum = append(out.Enum, v)
		}
	}
	if s.Properties != nil && s.Properties.Len() > 0 {
		out.Properties = make(map[string]*genai.Schema, s.Properties.Len())
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			out.Properties[pair.Key] = ConvertSchema(pair.Value)
		}
	}
	if s.Items != nil {
		out.Items = ConvertSchema(s.Items)
	}
	return out
}

func convertType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}
