package openai

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/pkg/schema"
	"github.com/effective-security/x/values"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// ErrEmptyResponse is returned when the API returns no choices.
var ErrEmptyResponse = errors.New("openai: empty response")

// LLM is a chat completions model of OpenAI or an OpenAI compatible API.
type LLM struct {
	client   openai.Client
	model    string
	provider llms.ProviderType
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(opts ...Option) (*LLM, error) {
	o := &options{
		provider:   llms.ProviderOpenAI,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.token == "" {
		return nil, errors.Errorf("%s: API key is required", o.provider)
	}

	defaultURL := DefaultBaseURL
	if o.provider == llms.ProviderPerplexity {
		defaultURL = DefaultPerplexityBaseURL
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(o.token),
		option.WithBaseURL(values.StringsCoalesce(o.baseURL, defaultURL)),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.organization != "" {
		sdkOpts = append(sdkOpts, option.WithOrganization(o.organization))
	}
	if o.httpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(o.httpClient))
	}

	return &LLM{
		client:   openai.NewClient(sdkOpts...),
		model:    values.StringsCoalesce(o.model, DefaultModel),
		provider: o.provider,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return o.provider
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(llms.CallOptions{Model: o.model}, options...)

	params, err := NewParams(messages, &opts)
	if err != nil {
		return nil, err
	}

	result, err := o.client.Chat.Completions.New(ctx, *params)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: failed to create chat completion", o.provider)
	}
	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	c := result.Choices[0]
	choice := &llms.ContentChoice{
		Content:    c.Message.Content,
		StopReason: c.FinishReason,
		GenerationInfo: map[string]any{
			"InputTokens":  result.Usage.PromptTokens,
			"OutputTokens": result.Usage.CompletionTokens,
			"TotalTokens":  result.Usage.TotalTokens,
			"ID":           result.ID,
		},
	}
	for _, tc := range c.Message.ToolCalls {
		choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
			ID:   tc.ID,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

// NewParams builds the chat completion request.
func NewParams(messages []llms.Message, opts *llms.CallOptions) (*openai.ChatCompletionNewParams, error) {
	msgs, err := ToMessages(messages)
	if err != nil {
		return nil, err
	}

	params := &openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(opts.Model),
		Messages: msgs,
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = openai.Float(opts.TopP)
	}
	if opts.Seed != 0 {
		params.Seed = openai.Int(int64(opts.Seed))
	}
	if len(opts.StopWords) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: opts.StopWords}
	}
	if choice, ok := opts.ToolChoice.(string); ok && choice != "" {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(choice)}
	}

	for _, t := range opts.Tools {
		if t.Type != "function" || t.Function == nil {
			return nil, errors.Errorf("tool type %q not supported", t.Type)
		}
		fn := shared.FunctionDefinitionParam{
			Name:        t.Function.Name,
			Description: openai.String(t.Function.Description),
			Parameters:  shared.FunctionParameters(schema.ToMap(t.Function.Parameters)),
		}
		if t.Function.Strict {
			fn.Strict = openai.Bool(true)
		}
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(fn))
	}

	if rf := opts.ResponseFormat; rf != nil && len(params.Tools) == 0 {
		switch {
		case rf.JSONSchema != nil:
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
					JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
						Name:   rf.JSONSchema.Name,
						Strict: openai.Bool(rf.JSONSchema.Strict),
						Schema: rf.JSONSchema.Schema,
					},
				},
			}
		case rf.Type == schema.FormatJSONObject:
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			}
		}
	}
	return params, nil
}

// ToMessages converts the messages to chat completion messages.
// A tool message must hold exactly one ToolCallResponse.
func ToMessages(messages []llms.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llms.RoleSystem:
			out = append(out, openai.SystemMessage(textOf(m)))
		case llms.RoleHuman:
			out = append(out, openai.UserMessage(textOf(m)))
		case llms.RoleAI:
			asst := openai.ChatCompletionAssistantMessageParam{}
			if text := textOf(m); text != "" {
				asst.Content.OfString = openai.String(text)
			}
			for _, p := range m.Parts {
				tc, ok := p.(llms.ToolCall)
				if !ok || tc.FunctionCall == nil {
					continue
				}
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.FunctionCall.Name,
							Arguments: tc.FunctionCall.Arguments,
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case llms.RoleTool:
			if len(m.Parts) != 1 {
				return nil, errors.Errorf("expected exactly one part for role %v, got %d", m.Role, len(m.Parts))
			}
			resp, ok := m.Parts[0].(llms.ToolCallResponse)
			if !ok {
				return nil, errors.Errorf("expected part of type ToolCallResponse for role %v, got %T", m.Role, m.Parts[0])
			}
			out = append(out, openai.ToolMessage(resp.Content, resp.ToolCallID))
		default:
			return nil, errors.WithMessagef(llms.ErrUnexpectedRole, "%v", m.Role)
		}
	}
	return out, nil
}

func textOf(m llms.Message) string {
	var text string
	for _, p := range m.Parts {
		if tc, ok := p.(llms.TextContent); ok {
			if text != "" {
				text += "\n"
			}
			text += tc.Text
		}
	}
	return text
}
