package assistants

import (
	"strings"

	"github.com/effective-security/seoagent/tools"
)

// State of the agent loop
type State int

// States
const (
	StateThinking State = iota
	StateToolCalling
	StateResponding
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateThinking:
		return "thinking"
	case StateToolCalling:
		return "tool_calling"
	case StateResponding:
		return "responding"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Terminal returns true for Done and Aborted
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// Step is the decision produced by Thinking:
// CallTool, FinalAnswer or Abort.
type Step interface {
	// Next returns the state the loop transitions to
	Next() State
}

// CallTool requests a single tool invocation
type CallTool struct {
	Invocation tools.Invocation
	// Thought is the text the model produced along with the call
	Thought string
	// Deferred are further calls requested in the same step,
	// they are not executed and the model is asked to repeat them.
	Deferred []tools.Invocation
}

// Next returns StateToolCalling
func (CallTool) Next() State { return StateToolCalling }

// FinalAnswer completes the run
type FinalAnswer struct {
	Text string
}

// Next returns StateResponding
func (FinalAnswer) Next() State { return StateResponding }

// Abort stops the run
type Abort struct {
	Reason string
}

// Next returns StateAborted
func (Abort) Next() State { return StateAborted }

// InvocationRecord describes a tool invocation of a run
type InvocationRecord struct {
	Step      int           `json:"step" yaml:"step" toml:"step"`
	Name      string        `json:"name" yaml:"name" toml:"name"`
	Arguments string        `json:"arguments" yaml:"arguments" toml:"arguments"`
	Result    *tools.Result `json:"result,omitempty" yaml:"result,omitempty" toml:"result,omitempty"`
	// Rejected is set when the invocation was refused before the tool was called
	Rejected string `json:"rejected,omitempty" yaml:"rejected,omitempty" toml:"rejected,omitempty"`
}

// Called returns true if the tool was called
func (r InvocationRecord) Called() bool {
	return r.Rejected == ""
}

// RunResult is the outcome of a run
type RunResult struct {
	Query  string `json:"query" yaml:"query" toml:"query"`
	Answer string `json:"answer" yaml:"answer" toml:"answer"`
	State  State  `json:"-" yaml:"-" toml:"-"`
	Steps  int    `json:"steps" yaml:"steps" toml:"steps"`
	// Tools are the names of the tools exposed to the model
	Tools       []string           `json:"tools,omitempty" yaml:"tools,omitempty" toml:"tools,omitempty"`
	Invocations []InvocationRecord `json:"invocations,omitempty" yaml:"invocations,omitempty" toml:"invocations,omitempty"`
	// Reason is set for an aborted run
	Reason error `json:"-" yaml:"-" toml:"-"`
}

// ToolCalls returns the number of tools actually called
func (r *RunResult) ToolCalls() int {
	n := 0
	for _, inv := range r.Invocations {
		if inv.Called() {
			n++
		}
	}
	return n
}

// String returns the answer without surrounding space
func (r *RunResult) String() string {
	return strings.TrimSpace(r.Answer)
}

// GetContent returns the answer
func (r *RunResult) GetContent() string {
	return r.Answer
}
