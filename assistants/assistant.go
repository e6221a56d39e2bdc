package assistants

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/pkg/metricskey"
	"github.com/effective-security/seoagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

// Agent answers queries with an explicit loop:
// Thinking produces a Step, ToolCalling runs a single tool invocation,
// Responding formats the final answer.
type Agent struct {
	llm         llms.Model
	reg         *tools.Registry
	cfg         *Config
	name        string
	description string
}

var _ IAgent = (*Agent)(nil)

// NewAgent returns Agent over the model and the tools
func NewAgent(llm llms.Model, reg *tools.Registry, options ...Option) *Agent {
	if reg == nil {
		reg, _ = tools.NewRegistry(nil)
	}
	return &Agent{
		llm:         llm,
		reg:         reg,
		cfg:         NewConfig(options...),
		name:        "SEO Agent",
		description: "An SEO analyst that answers questions with Search Console and DataForSEO data.",
	}
}

// WithName sets the name of the Agent.
func (a *Agent) WithName(name string) *Agent {
	a.name = name
	return a
}

// WithDescription sets the description of the Agent.
func (a *Agent) WithDescription(description string) *Agent {
	a.description = description
	return a
}

// Name returns the name of the Agent.
func (a *Agent) Name() string {
	return a.name
}

// Description returns the description of the Agent.
func (a *Agent) Description() string {
	return a.description
}

// Registry returns the tools of the Agent
func (a *Agent) Registry() *tools.Registry {
	return a.reg
}

// Config returns the config of the Agent
func (a *Agent) Config() *Config {
	return a.cfg
}

// Run executes the loop and returns the final answer.
// A run that exceeds the step limit returns CouldNotComplete without error.
func (a *Agent) Run(ctx context.Context, query string) (string, error) {
	res, err := a.Execute(ctx, query)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

// Execute runs the loop with per call options
func (a *Agent) Execute(ctx context.Context, query string, options ...Option) (*RunResult, error) {
	started := time.Now()
	defer metricskey.PerfAgentRun.MeasureSince(started, a.name)

	cfg := a.cfg.Apply(options...)
	callback := cfg.CallbackHandler
	if callback != nil {
		callback.OnAgentStart(ctx, a, query)
	}

	res, err := a.run(ctx, cfg, query)
	if err != nil {
		metricskey.StatsAgentRunsAborted.IncrCounter(1, a.name, "error")
		if callback != nil {
			callback.OnAgentError(ctx, a, query, err)
		}
		return nil, err
	}

	switch {
	case res.State == StateDone:
		metricskey.StatsAgentRunsSucceeded.IncrCounter(1, a.name)
	case errors.Is(res.Reason, ErrMaxSteps):
		metricskey.StatsAgentRunsAborted.IncrCounter(1, a.name, "max_steps")
	default:
		metricskey.StatsAgentRunsAborted.IncrCounter(1, a.name, "aborted")
	}

	if callback != nil {
		callback.OnAgentEnd(ctx, a, query, res)
	}
	return res, nil
}

func (a *Agent) run(ctx context.Context, cfg *Config, query string) (*RunResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is empty")
	}

	reg := a.reg
	if cfg.Planner != nil && reg.Len() > 0 {
		sub, err := cfg.Planner.PlanTools(ctx, query, reg)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to plan tools")
		}
		reg = sub
	}

	systemPrompt, err := cfg.Instructions(reg, cfg.MaxSteps)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to format system prompt")
	}

	messages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, systemPrompt),
	}
	if cfg.Store != nil {
		history := cfg.Store.Messages(ctx)
		logger.ContextKV(ctx, xlog.DEBUG,
			"agent", a.name,
			"message_history", len(history))
		messages = append(messages, history...)
	}
	userMessage := llms.MessageFromTextParts(llms.RoleHuman, query)
	messages = append(messages, userMessage)

	decider := cfg.Decider
	if decider == nil {
		decider = NewModelDecider(a.llm, cfg.GetCallOptions()...)
	}

	res := &RunResult{
		Query: query,
		Tools: reg.Names(),
	}
	llmTools := reg.LLMTools()
	callback := cfg.CallbackHandler

	var (
		state   = StateThinking
		pending CallTool
		answer  string
	)
	transition := func(to State) {
		if callback != nil {
			callback.OnStateChange(ctx, a, state, to)
		}
		logger.ContextKV(ctx, xlog.DEBUG,
			"agent", a.name,
			"step", res.Steps,
			"from", state.String(),
			"to", to.String())
		state = to
	}

	for !state.Terminal() {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}

		switch state {
		case StateThinking:
			if res.Steps >= cfg.MaxSteps {
				res.Reason = errors.Wrapf(ErrMaxSteps, "%d steps", res.Steps)
				answer = CouldNotComplete
				logger.ContextKV(ctx, xlog.WARNING,
					"agent", a.name,
					"status", "max_steps",
					"query", slices.StringUpto(query, 64),
					"steps", res.Steps)
				transition(StateAborted)
				continue
			}

			res.Steps++
			metricskey.StatsAgentSteps.IncrCounter(1, a.name)

			step, err := decider.Decide(ctx, &DecideInput{
				Agent:    a,
				Messages: messages,
				Tools:    llmTools,
				Callback: callback,
			})
			if err != nil {
				return nil, err
			}

			switch s := step.(type) {
			case CallTool:
				pending = s
			case FinalAnswer:
				answer = s.Text
			case Abort:
				res.Reason = errors.Wrap(ErrAborted, s.Reason)
				answer = "I could not complete this request: " + s.Reason
			default:
				return nil, errors.Newf("unexpected step: %T", step)
			}
			transition(step.Next())

		case StateToolCalling:
			msgs, err := a.callTool(ctx, callback, reg, res, pending)
			if err != nil {
				return nil, err
			}
			messages = append(messages, msgs...)
			transition(StateThinking)

		case StateResponding:
			answer = strings.TrimSpace(answer)
			messages = append(messages, llms.MessageFromTextParts(llms.RoleAI, answer))
			transition(StateDone)
		}
	}

	res.Answer = answer
	res.State = state

	if cfg.Store != nil {
		err = cfg.Store.Add(ctx, userMessage, llms.MessageFromTextParts(llms.RoleAI, answer))
		if err != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"agent", a.name,
				"status", "failed_to_store_history",
				"err", err.Error())
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"agent", a.name,
		"state", state.String(),
		"steps", res.Steps,
		"tool_calls", res.ToolCalls(),
		"messages", len(messages),
		"answer", slices.StringUpto(answer, 64))

	return res, nil
}

const deferredObservation = "Not executed: only one tool can be called per step. Call it again in the next step if it is still needed."

// callTool invokes the pending tool and returns the messages with the observation.
// Rejections and provider failures are observations, not errors.
func (a *Agent) callTool(ctx context.Context, callback Callback, reg *tools.Registry, res *RunResult, step CallTool) ([]llms.Message, error) {
	inv := step.Invocation
	calls := make([]llms.ToolCall, 0, 1+len(step.Deferred))
	for _, c := range append([]tools.Invocation{inv}, step.Deferred...) {
		calls = append(calls, llms.ToolCall{
			ID:   c.ID,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      c.Name,
				Arguments: c.Arguments,
			},
		})
	}
	msgs := []llms.Message{llms.MessageFromToolCalls(llms.RoleAI, calls...)}

	if step.Thought != "" {
		logger.ContextKV(ctx, xlog.DEBUG,
			"agent", a.name,
			"thought", slices.StringUpto(step.Thought, 128))
	}

	rec := InvocationRecord{
		Step:      res.Steps,
		Name:      inv.Name,
		Arguments: inv.Arguments,
	}

	var observation string
	result, err := reg.Invoke(ctx, inv, callback)
	switch {
	case err == nil:
		rec.Result = result
		observation = result.String()
	case ctx.Err() != nil:
		return nil, err
	case errors.Is(err, tools.ErrUnknownTool):
		rec.Rejected = err.Error()
		observation = fmt.Sprintf("Tool `%s` not found. Use the exact name of one of the available tools: %s",
			inv.Name, strings.Join(reg.Names(), ", "))
	default:
		rec.Rejected = err.Error()
		observation = fmt.Sprintf("Tool `%s` failed (%s): %s", inv.Name, tools.FailureMalformedRequest, err.Error())
	}
	res.Invocations = append(res.Invocations, rec)

	logger.ContextKV(ctx, xlog.DEBUG,
		"agent", a.name,
		"tool", inv.Name,
		"called", rec.Called(),
		"failed", rec.Result != nil && rec.Result.Failed(),
		"deferred", len(step.Deferred))

	msgs = append(msgs, llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
		ToolCallID: inv.ID,
		Name:       inv.Name,
		Content:    observation,
	}))
	for _, d := range step.Deferred {
		msgs = append(msgs, llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: d.ID,
			Name:       d.Name,
			Content:    deferredObservation,
		}))
	}
	return msgs, nil
}
