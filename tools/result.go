package tools

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Metrics is a normalized mapping from metric name to value.
// Values are scalars, or lists of Metrics for tabular data.
type Metrics map[string]any

// Keys returns sorted metric names
func (m Metrics) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// Result is the normalized outcome of a tool invocation.
// Exactly one of Metrics/Text or Failure is set.
type Result struct {
	Tool    string   `json:"tool" yaml:"tool" toml:"tool"`
	Metrics Metrics  `json:"metrics,omitempty" yaml:"metrics,omitempty" toml:"metrics,omitempty"`
	Text    string   `json:"text,omitempty" yaml:"text,omitempty" toml:"text,omitempty"`
	Failure *Failure `json:"failure,omitempty" yaml:"failure,omitempty" toml:"failure,omitempty"`
}

// NewResult returns successful Result
func NewResult(tool string, metrics Metrics) *Result {
	return &Result{
		Tool:    tool,
		Metrics: metrics,
	}
}

// FailedResult returns Result with the failure
func FailedResult(tool string, f *Failure) *Result {
	if f.Tool == "" {
		f.Tool = tool
	}
	return &Result{
		Tool:    tool,
		Failure: f,
	}
}

// Failed returns true if the result is a failure
func (r *Result) Failed() bool {
	return r.Failure != nil
}

// String returns the observation text provided to the model.
func (r *Result) String() string {
	if r.Failure != nil {
		return fmt.Sprintf("Tool `%s` failed (%s): %s", r.Tool, r.Failure.Kind, r.Failure.Message)
	}
	var b strings.Builder
	if len(r.Metrics) > 0 {
		js, err := json.Marshal(r.Metrics)
		if err != nil {
			b.WriteString(fmt.Sprintf("%v", map[string]any(r.Metrics)))
		} else {
			b.Write(js)
		}
	}
	if r.Text != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.Text)
	}
	if b.Len() == 0 {
		return "No data returned."
	}
	return b.String()
}
