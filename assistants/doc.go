// Package assistants provides the agent loop: a finite state machine that
// alternates model decisions and single tool invocations until a final answer,
// an abort, or the step limit.
package assistants
