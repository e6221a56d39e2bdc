package assistants

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/pkg/llmutils"
	"github.com/effective-security/seoagent/pkg/metricskey"
	"github.com/effective-security/seoagent/tools"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

// DefaultMaxEmptyResponses is the number of repeated model calls
// when the model returns neither text nor tool calls.
const DefaultMaxEmptyResponses = 2

// DecideInput is the context of a Thinking step
type DecideInput struct {
	Agent    IAgent
	Messages []llms.Message
	Tools    []llms.Tool
	Callback Callback
}

// Decider produces the next Step.
// The loop driver does not depend on where the decision comes from.
type Decider interface {
	Decide(ctx context.Context, in *DecideInput) (Step, error)
}

// ModelDecider asks the model for the next step
type ModelDecider struct {
	LLM     llms.Model
	Options []llms.CallOption
}

// NewModelDecider returns ModelDecider
func NewModelDecider(llm llms.Model, opts ...llms.CallOption) *ModelDecider {
	return &ModelDecider{
		LLM:     llm,
		Options: opts,
	}
}

// Decide calls the model and converts the response to Step
func (d *ModelDecider) Decide(ctx context.Context, in *DecideInput) (Step, error) {
	opts := d.Options
	if len(in.Tools) > 0 {
		if !d.LLM.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
			return nil, errors.WithStack(ErrNoTools)
		}
		opts = append(slices.Clone(opts), llms.WithTools(in.Tools))
	}

	agentName := in.Agent.Name()
	modelName := d.LLM.GetName()

	for attempt := 0; ; attempt++ {
		if in.Callback != nil {
			in.Callback.OnLLMCallStart(ctx, in.Agent, d.LLM, in.Messages)
		}

		bytesSent := llmutils.CountMessagesContentSize(in.Messages)
		metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(in.Messages)), agentName, modelName)
		metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), agentName, modelName)

		started := time.Now()
		resp, err := d.LLM.GenerateContent(ctx, in.Messages, opts...)
		metricskey.PerfLLMCall.MeasureSince(started, agentName, modelName)
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate content from LLM")
		}

		if in.Callback != nil {
			in.Callback.OnLLMCallEnd(ctx, in.Agent, d.LLM, resp)
		}

		tokensIn, tokensOut, _ := llmutils.CountTokens(resp)
		metricskey.StatsLLMBytesReceived.IncrCounter(float64(llmutils.CountResponseContentSize(resp)), agentName, modelName)
		metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), agentName, modelName)
		metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), agentName, modelName)

		if step := StepFromResponse(resp); step != nil {
			return step, nil
		}
		if attempt >= DefaultMaxEmptyResponses {
			return Abort{Reason: "the model returned an empty response"}, nil
		}

		metricskey.StatsAgentLLMRetried.IncrCounter(1, agentName)
		logger.ContextKV(ctx, xlog.WARNING,
			"agent", agentName,
			"status", "retrying_empty_response",
			"attempt", attempt+1,
		)
	}
}

// stop reasons that end the run
var abortReasons = []string{"content_filter", "refusal", "SAFETY", "PROHIBITED_CONTENT"}

// StepFromResponse converts the model response to Step.
// Nil is returned for a response with neither text nor tool calls.
func StepFromResponse(resp *llms.ContentResponse) Step {
	if resp == nil {
		return nil
	}

	var (
		calls []tools.Invocation
		text  []string
	)
	for _, choice := range resp.Choices {
		if slices.Contains(abortReasons, choice.StopReason) {
			return Abort{
				Reason: values.StringsCoalesce(strings.TrimSpace(choice.Content), "stopped by the model: "+choice.StopReason),
			}
		}
		for i, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			calls = append(calls, tools.Invocation{
				ID:        values.StringsCoalesce(tc.ID, fmt.Sprintf("%s_%d", tc.FunctionCall.Name, i)),
				Name:      tc.FunctionCall.Name,
				Arguments: tc.FunctionCall.Arguments,
			})
		}
		if c := strings.TrimSpace(choice.Content); c != "" {
			text = append(text, c)
		}
	}

	if len(calls) > 0 {
		return CallTool{
			Invocation: calls[0],
			Thought:    strings.Join(text, "\n\n"),
			Deferred:   calls[1:],
		}
	}
	if len(text) > 0 {
		return FinalAnswer{Text: strings.Join(text, "\n\n")}
	}
	return nil
}
