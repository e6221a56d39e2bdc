package assistants

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/seoagent/pkg/llms"
	"github.com/effective-security/seoagent/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/seoagent", "assistants")

//go:generate mockgen -destination=../mocks/mockassistants/assistants_mock.gen.go -package mockassistants github.com/effective-security/seoagent/assistants IAgent

var (
	// ErrMaxSteps is the reason of a run that exceeded the step limit
	ErrMaxSteps = errors.New("step limit exceeded")
	// ErrAborted is the reason of a run aborted by the decision source
	ErrAborted = errors.New("aborted")
	// ErrNoTools is returned when the model can not call tools
	ErrNoTools = errors.New("the model does not support function calling")
)

// CouldNotComplete is the answer of a run that did not reach a final answer
const CouldNotComplete = "I could not complete this request within the allowed number of steps. Please narrow the question or try again."

// IAgent answers a query
type IAgent interface {
	// Name returns the name of the Agent.
	Name() string
	// Run executes the loop for the query and returns the final answer.
	Run(ctx context.Context, query string) (string, error)
}

// Callback receives agent and tool lifecycle events
type Callback interface {
	tools.Callback
	OnAgentStart(ctx context.Context, agent IAgent, query string)
	OnAgentEnd(ctx context.Context, agent IAgent, query string, res *RunResult)
	OnAgentError(ctx context.Context, agent IAgent, query string, err error)
	OnStateChange(ctx context.Context, agent IAgent, from, to State)
	OnLLMCallStart(ctx context.Context, agent IAgent, llm llms.Model, payload []llms.Message)
	OnLLMCallEnd(ctx context.Context, agent IAgent, llm llms.Model, resp *llms.ContentResponse)
}

// ToolPlanner narrows the tools exposed for a query
type ToolPlanner interface {
	PlanTools(ctx context.Context, query string, reg *tools.Registry) (*tools.Registry, error)
}

// InstructionsFunc returns the system prompt for the tools exposed in the run
type InstructionsFunc func(reg *tools.Registry, maxSteps int) (string, error)

// DefaultInstructions is a minimal system prompt
func DefaultInstructions(reg *tools.Registry, maxSteps int) (string, error) {
	s := fmt.Sprintf("You are a helpful assistant. Use at most one tool per step, at most %d steps.", maxSteps)
	if reg != nil && reg.Len() > 0 {
		s += "\n\n# TOOLS\n" + reg.Describe()
	}
	return s, nil
}
