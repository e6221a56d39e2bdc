// Package bedrock implements llms.Model for Anthropic models hosted on Amazon Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/pkg/schema"
	"github.com/effective-security/x/values"
)

// Defaults
const (
	DefaultModel     = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	DefaultMaxTokens = 4096

	anthropicVersion = "bedrock-2023-05-31"
)

// ErrUnsupportedModel is returned for non Anthropic model IDs
var ErrUnsupportedModel = errors.New("bedrock: only anthropic models are supported")

// InvokeModelAPI is the subset of the Bedrock runtime client used by LLM
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Option configures LLM
type Option func(*options)

type options struct {
	modelID         string
	region          string
	accessKeyID     string
	secretAccessKey string
	client          InvokeModelAPI
}

// WithModel sets the model ID or inference profile.
func WithModel(modelID string) Option {
	return func(o *options) {
		o.modelID = modelID
	}
}

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithStaticCredentials sets the access keys,
// otherwise the default AWS credentials chain is used.
func WithStaticCredentials(accessKeyID, secretAccessKey string) Option {
	return func(o *options) {
		o.accessKeyID = accessKeyID
		o.secretAccessKey = secretAccessKey
	}
}

// WithClient sets the Bedrock runtime client.
func WithClient(client InvokeModelAPI) Option {
	return func(o *options) {
		o.client = client
	}
}

// LLM is a Bedrock model
type LLM struct {
	modelID string
	client  InvokeModelAPI
}

var _ llms.Model = (*LLM)(nil)

// New returns LLM
func New(ctx context.Context, opts ...Option) (*LLM, error) {
	o := &options{modelID: DefaultModel}
	for _, opt := range opts {
		opt(o)
	}
	if provider(o.modelID) != "anthropic" {
		return nil, errors.WithMessagef(ErrUnsupportedModel, "%s", o.modelID)
	}

	if o.client == nil {
		var loadOpts []func(*config.LoadOptions) error
		if o.region != "" {
			loadOpts = append(loadOpts, config.WithRegion(o.region))
		}
		if o.accessKeyID != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(o.accessKeyID, o.secretAccessKey, "")))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "bedrock: failed to load AWS config")
		}
		o.client = bedrockruntime.NewFromConfig(cfg)
	}

	return &LLM{modelID: o.modelID, client: o.client}, nil
}

// provider returns the model vendor,
// inference profiles are prefixed with the region, e.g. us.anthropic.claude...
func provider(modelID string) string {
	parts := strings.Split(modelID, ".")
	if len(parts) >= 2 && len(parts[0]) == 2 {
		return parts[1]
	}
	return parts[0]
}

// GetName implements the Model interface.
func (l *LLM) GetName() string {
	return l.modelID
}

// GetProviderType implements the Model interface.
func (l *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderBedrock
}

// GenerateContent implements the Model interface.
func (l *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(llms.CallOptions{Model: l.modelID}, options...)

	input, err := NewInput(messages, &opts)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	out, err := l.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(opts.Model),
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, errors.Wrap(err, "bedrock: failed to invoke model")
	}

	var output anthropicOutput
	if err = json.Unmarshal(out.Body, &output); err != nil {
		return nil, errors.Wrap(err, "bedrock: failed to decode response")
	}
	return output.toResponse()
}

type anthropicContent struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Input     any    `json:"input,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Input is the InvokeModel body of the Anthropic messages format
type Input struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	Temperature      float64            `json:"temperature,omitempty"`
	TopP             float64            `json:"top_p,omitempty"`
	TopK             int                `json:"top_k,omitempty"`
	StopSequences    []string           `json:"stop_sequences,omitempty"`
	Tools            []anthropicTool    `json:"tools,omitempty"`
}

type anthropicOutput struct {
	ID         string             `json:"id"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// NewInput builds the request body.
func NewInput(messages []llms.Message, opts *llms.CallOptions) (*Input, error) {
	input := &Input{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        values.NumbersCoalesce(opts.MaxTokens, DefaultMaxTokens),
		Temperature:      opts.Temperature,
		TopP:             opts.TopP,
		TopK:             opts.TopK,
		StopSequences:    opts.StopWords,
	}

	var system []string
	for _, m := range messages {
		msg := anthropicMessage{Role: "user"}
		switch m.Role {
		case llms.RoleSystem:
		case llms.RoleHuman, llms.RoleTool:
		case llms.RoleAI:
			msg.Role = "assistant"
		default:
			return nil, errors.WithMessagef(llms.ErrUnexpectedRole, "%v", m.Role)
		}

		for _, part := range m.Parts {
			switch p := part.(type) {
			case llms.TextContent:
				if m.Role == llms.RoleSystem {
					system = append(system, p.Text)
					continue
				}
				msg.Content = append(msg.Content, anthropicContent{Type: "text", Text: p.Text})
			case llms.ToolCall:
				if p.FunctionCall == nil {
					continue
				}
				var args map[string]any
				if err := json.Unmarshal([]byte(values.StringsCoalesce(p.FunctionCall.Arguments, "{}")), &args); err != nil {
					return nil, errors.Wrap(err, "bedrock: failed to unmarshal tool call arguments")
				}
				msg.Content = append(msg.Content, anthropicContent{Type: "tool_use", ID: p.ID, Name: p.FunctionCall.Name, Input: args})
			case llms.ToolCallResponse:
				msg.Content = append(msg.Content, anthropicContent{Type: "tool_result", ToolUseID: p.ToolCallID, Content: p.Content})
			}
		}
		if len(msg.Content) > 0 {
			input.Messages = append(input.Messages, msg)
		}
	}
	input.System = strings.Join(system, "\n")

	for _, t := range opts.Tools {
		if t.Function == nil {
			continue
		}
		input.Tools = append(input.Tools, anthropicTool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: schema.ToMap(t.Function.Parameters),
		})
	}
	return input, nil
}

func (o *anthropicOutput) toResponse() (*llms.ContentResponse, error) {
	var text strings.Builder
	choice := &llms.ContentChoice{
		StopReason: o.StopReason,
		GenerationInfo: map[string]any{
			"InputTokens":  o.Usage.InputTokens,
			"OutputTokens": o.Usage.OutputTokens,
			"TotalTokens":  o.Usage.InputTokens + o.Usage.OutputTokens,
			"ID":           o.ID,
		},
	}
	for _, c := range o.Content {
		switch c.Type {
		case "text":
			text.WriteString(c.Text)
		case "tool_use":
			args, err := json.Marshal(c.Input)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   c.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      c.Name,
					Arguments: string(args),
				},
			})
		}
	}
	choice.Content = text.String()
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}
