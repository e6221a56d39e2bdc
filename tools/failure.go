package tools

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// FailureKind is the category of a provider failure
type FailureKind string

const (
	// FailureAuth is returned when credentials are missing, invalid or not permitted
	FailureAuth FailureKind = "authentication_failure"
	// FailureRateLimit is returned when the provider throttles the caller
	FailureRateLimit FailureKind = "rate_limit"
	// FailureMalformedRequest is returned when the provider rejects the request
	FailureMalformedRequest FailureKind = "malformed_request"
	// FailureUpstreamUnavailable is returned on provider outage, timeout or unexpected response
	FailureUpstreamUnavailable FailureKind = "upstream_unavailable"
)

// Failure is a typed provider failure.
type Failure struct {
	Kind    FailureKind `json:"kind" yaml:"kind" toml:"kind"`
	Tool    string      `json:"tool,omitempty" yaml:"tool,omitempty" toml:"tool,omitempty"`
	Status  int         `json:"status,omitempty" yaml:"status,omitempty" toml:"status,omitempty"`
	Message string      `json:"message" yaml:"message" toml:"message"`

	cause error
}

// NewFailure returns Failure
func NewFailure(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithCause sets the underlying error
func (f *Failure) WithCause(err error) *Failure {
	f.cause = err
	return f
}

// WithStatus sets the provider status code
func (f *Failure) WithStatus(status int) *Failure {
	f.Status = status
	return f
}

func (f *Failure) Error() string {
	if f.Tool != "" {
		return fmt.Sprintf("%s: %s: %s", f.Tool, f.Kind, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap returns the underlying error
func (f *Failure) Unwrap() error {
	return f.cause
}

// Retryable returns true for failures that may succeed on a repeated call
func (f *Failure) Retryable() bool {
	return f.Kind == FailureUpstreamUnavailable
}

// KindFromHTTPStatus maps HTTP status code to FailureKind
func KindFromHTTPStatus(status int) FailureKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return FailureAuth
	case status == http.StatusTooManyRequests:
		return FailureRateLimit
	case status >= 400 && status < 500:
		return FailureMalformedRequest
	default:
		return FailureUpstreamUnavailable
	}
}

// AsFailure returns Failure from the error chain
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Classify converts any error returned by a tool into Failure.
// Errors that are not Failure are treated as upstream unavailable,
// except malformed arguments.
func Classify(tool string, err error) *Failure {
	if err == nil {
		return nil
	}
	f, ok := AsFailure(err)
	if !ok {
		kind := FailureUpstreamUnavailable
		if errors.Is(err, ErrMalformedArguments) {
			kind = FailureMalformedRequest
		}
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		f = NewFailure(kind, "%s", msg).WithCause(err)
	}
	if f.Tool == "" {
		f.Tool = tool
	}
	return f
}
