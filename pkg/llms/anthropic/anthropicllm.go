// Package anthropic implements llms.Model with the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/x/values"
)

var (
	ErrMissingToken           = errors.New("anthropic: missing API key")
	ErrMissingModel           = errors.New("anthropic: model is required")
	ErrUnsupportedMessageType = errors.New("anthropic: unsupported message type")
	ErrInvalidContentType     = errors.New("anthropic: invalid content type")
)

// DefaultMaxTokens is used when the call does not set MaxTokens.
const DefaultMaxTokens = 4096

// Option configures LLM
type Option func(*options)

type options struct {
	token      string
	model      string
	baseURL    string
	httpClient *http.Client
}

// WithToken sets the API key.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithModel sets the model.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithBaseURL sets the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// LLM is an Anthropic model.
type LLM struct {
	client anthropic.Client
	model  string
}

var _ llms.Model = (*LLM)(nil)

// New returns LLM
func New(opts ...Option) (*LLM, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.token == "" {
		return nil, ErrMissingToken
	}
	if o.model == "" {
		return nil, ErrMissingModel
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(o.token),
		option.WithMaxRetries(2),
		option.WithRequestTimeout(5 * time.Minute),
	}
	if o.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(o.httpClient))
	}

	return &LLM{
		client: anthropic.NewClient(sdkOpts...),
		model:  o.model,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderAnthropic
}

// GenerateContent implements the Model interface.
// Text blocks and tool use blocks of the reply are merged into a single choice.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(llms.CallOptions{Model: o.model}, options...)

	params, err := NewParams(messages, &opts)
	if err != nil {
		return nil, err
	}

	result, err := o.client.Messages.New(ctx, *params)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic: failed to create message")
	}

	var text strings.Builder
	choice := &llms.ContentChoice{
		StopReason: string(result.StopReason),
		GenerationInfo: map[string]any{
			"InputTokens":  result.Usage.InputTokens,
			"OutputTokens": result.Usage.OutputTokens,
			"TotalTokens":  result.Usage.InputTokens + result.Usage.OutputTokens,
			"ID":           result.ID,
		},
	}
	for _, block := range result.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(content.Text)
		case anthropic.ToolUseBlock:
			args, err := json.Marshal(content.Input)
			if err != nil {
				return nil, errors.Wrap(err, "anthropic: failed to marshal tool use arguments")
			}
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   content.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      content.Name,
					Arguments: string(args),
				},
			})
		}
	}
	choice.Content = text.String()
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

// NewParams builds the Messages API request.
func NewParams(messages []llms.Message, opts *llms.CallOptions) (*anthropic.MessageNewParams, error) {
	msgs, system, err := ToMessages(messages)
	if err != nil {
		return nil, err
	}

	params := &anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.Model),
		Messages:  msgs,
		MaxTokens: values.NumbersCoalesce(int64(opts.MaxTokens), DefaultMaxTokens),
		Tools:     ToTools(opts.Tools),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = anthropic.Float(opts.TopP)
	}
	if len(opts.StopWords) > 0 {
		params.StopSequences = opts.StopWords
	}
	return params, nil
}

// ToTools converts the tool definitions.
func ToTools(tools []llms.Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	res := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		if tool.Function == nil {
			continue
		}
		var properties map[string]any
		var required []string
		if p := tool.Function.Parameters; p != nil {
			required = p.Required
			if p.Properties != nil {
				properties = make(map[string]any)
				for pair := p.Properties.Oldest(); pair != nil; pair = pair.Next() {
					properties[pair.Key] = pair.Value
				}
			}
		}
		res = append(res, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Function.Name,
				Description: anthropic.String(tool.Function.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: properties,
					Required:   required,
				},
			},
		})
	}
	return res
}

// ToMessages converts the messages and returns the system prompt separately.
// Tool responses are sent as user messages with tool result blocks.
func ToMessages(messages []llms.Message) ([]anthropic.MessageParam, string, error) {
	res := make([]anthropic.MessageParam, 0, len(messages))
	var system []string
	for _, msg := range messages {
		if len(msg.Parts) == 0 {
			continue
		}
		var blocks []anthropic.ContentBlockParamUnion
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case llms.TextContent:
				if msg.Role == llms.RoleSystem {
					system = append(system, p.Text)
					continue
				}
				blocks = append(blocks, anthropic.NewTextBlock(p.Text))
			case llms.ToolCall:
				if msg.Role != llms.RoleAI || p.FunctionCall == nil {
					return nil, "", errors.WithMessagef(ErrInvalidContentType, "tool call in %s message", msg.Role)
				}
				var input json.RawMessage
				if err := json.Unmarshal([]byte(values.StringsCoalesce(p.FunctionCall.Arguments, "{}")), &input); err != nil {
					return nil, "", errors.Wrap(err, "anthropic: failed to unmarshal tool call arguments")
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(p.ID, input, p.FunctionCall.Name))
			case llms.ToolCallResponse:
				if msg.Role != llms.RoleTool {
					return nil, "", errors.WithMessagef(ErrInvalidContentType, "tool response in %s message", msg.Role)
				}
				blocks = append(blocks, anthropic.NewToolResultBlock(p.ToolCallID, p.Content, false))
			default:
				return nil, "", errors.WithMessagef(ErrInvalidContentType, "%T", part)
			}
		}

		switch msg.Role {
		case llms.RoleSystem:
		case llms.RoleHuman, llms.RoleTool:
			res = append(res, anthropic.NewUserMessage(blocks...))
		case llms.RoleAI:
			res = append(res, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, "", errors.WithMessagef(ErrUnsupportedMessageType, "%v", msg.Role)
		}
	}
	return res, strings.Join(system, "\n"), nil
}
