// Package aierr defines the single error taxonomy shared by every conduit
// capability. It collapses the several per-concern error struct styles
// common in provider SDKs (rate limit, validation, stream, tool execution)
// into one struct carrying a Kind, following each with its own constructor.
package aierr

import (
	"errors"
	"fmt"
	"time"
)

// Kind categorizes an AIError for programmatic handling (retry policy,
// user-facing messaging).
type Kind string

const (
	KindInvalidRequest   Kind = "invalid_request"
	KindAuthentication   Kind = "authentication"
	KindRateLimit        Kind = "rate_limit"
	KindProviderOverload Kind = "provider_overload"
	KindTimeout          Kind = "timeout"
	KindNetwork          Kind = "network"
	KindStream           Kind = "stream"
	KindToolExecution    Kind = "tool_execution"
	KindMissingTool      Kind = "missing_tool"
	KindContentFilter    Kind = "content_filter"
	KindUnsupported      Kind = "unsupported"
	KindCancelled        Kind = "cancelled"
	KindInternal         Kind = "internal"
)

// defaultRetryable reports whether a Kind is retryable absent an explicit
// override.
func defaultRetryable(k Kind) bool {
	switch k {
	case KindRateLimit, KindProviderOverload, KindTimeout, KindNetwork:
		return true
	default:
		return false
	}
}

// AIError is the single error type returned by every conduit operation that
// can fail. Provider field identifies which backend produced it, empty for
// errors raised by conduit itself (e.g. local validation).
type AIError struct {
	Kind       Kind
	Message    string
	Provider   string
	Retryable  bool
	Suggestion string
	Cause      error

	// RetryAfter is the backend-reported cooldown for KindRateLimit errors,
	// as parsed from a Retry-After header. Zero means the backend reported
	// no delay (callers should fall back to their own backoff policy).
	RetryAfter time.Duration
}

func (e *AIError) Error() string {
	msg := fmt.Sprintf("conduit: %s: %s", e.Kind, e.Message)
	if e.Provider != "" {
		msg = fmt.Sprintf("%s (provider=%s)", msg, e.Provider)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *AIError) Unwrap() error { return e.Cause }

func (e *AIError) Is(target error) bool {
	var other *AIError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

func newErr(kind Kind, provider, message string, cause error) *AIError {
	return &AIError{
		Kind:      kind,
		Message:   message,
		Provider:  provider,
		Retryable: defaultRetryable(kind),
		Cause:     cause,
	}
}

// New constructs an AIError of the given kind.
func New(kind Kind, provider, message string) *AIError {
	return newErr(kind, provider, message, nil)
}

// Wrap constructs an AIError of the given kind wrapping cause.
func Wrap(kind Kind, provider, message string, cause error) *AIError {
	return newErr(kind, provider, message, cause)
}

// NewInvalidRequest reports a request that failed validation before dispatch.
func NewInvalidRequest(provider, message string) *AIError {
	return New(KindInvalidRequest, provider, message)
}

// NewAuthentication reports a rejected or missing credential.
func NewAuthentication(provider, message string) *AIError {
	e := New(KindAuthentication, provider, message)
	e.Suggestion = "check that the configured API key or token is valid and has not expired"
	return e
}

// NewRateLimit reports a provider-side rate limit rejection.
func NewRateLimit(provider, message string) *AIError {
	e := New(KindRateLimit, provider, message)
	e.Suggestion = "retry after a backoff; consider lowering request concurrency"
	return e
}

// NewRateLimitAfter reports a provider-side rate limit rejection that carried
// a Retry-After delay. The kernel does not sleep for retryAfter itself
// (§4.2: 429 is surfaced, not retried, within a single Dispatch call) — it
// is the caller's (ChatSession/ToolExecutor retry policy) decision to honor.
func NewRateLimitAfter(provider, message string, retryAfter time.Duration) *AIError {
	e := NewRateLimit(provider, message)
	e.RetryAfter = retryAfter
	return e
}

// NewProviderOverload reports a transient provider capacity error (e.g. 503).
func NewProviderOverload(provider, message string) *AIError {
	return New(KindProviderOverload, provider, message)
}

// NewTimeout reports a request that exceeded its deadline.
func NewTimeout(provider, message string, cause error) *AIError {
	return Wrap(KindTimeout, provider, message, cause)
}

// NewNetwork reports a transport-level failure (connection refused, DNS, etc).
func NewNetwork(provider, message string, cause error) *AIError {
	return Wrap(KindNetwork, provider, message, cause)
}

// NewStream reports a malformed or interrupted streaming response.
func NewStream(provider, message string, cause error) *AIError {
	return Wrap(KindStream, provider, message, cause)
}

// NewToolExecution reports a tool handler returning an error.
func NewToolExecution(toolName, message string, cause error) *AIError {
	e := Wrap(KindToolExecution, "", message, cause)
	e.Message = fmt.Sprintf("tool %q: %s", toolName, message)
	return e
}

// NewMissingTool reports a tool call referencing a name with no registered
// handler.
func NewMissingTool(toolName string) *AIError {
	e := New(KindMissingTool, "", fmt.Sprintf("no handler registered for tool %q", toolName))
	e.Suggestion = "register a handler for this tool name, or use the emit-error missing-tool policy"
	return e
}

// NewContentFilter reports output withheld or redacted by provider-side
// content moderation.
func NewContentFilter(provider, message string) *AIError {
	return New(KindContentFilter, provider, message)
}

// NewUnsupported reports a capability or parameter not supported by the
// selected provider or model.
func NewUnsupported(provider, message string) *AIError {
	return New(KindUnsupported, provider, message)
}

// NewCancelled reports an operation that stopped because its context was
// cancelled.
func NewCancelled(provider string) *AIError {
	return New(KindCancelled, provider, "operation cancelled")
}

// NewInternal reports a conduit-internal invariant violation, not a
// provider or caller error.
func NewInternal(message string, cause error) *AIError {
	return Wrap(KindInternal, "", message, cause)
}

// IsRetryable reports whether err is an AIError marked retryable.
func IsRetryable(err error) bool {
	var e *AIError
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// KindOf extracts the Kind of err if it is (or wraps) an AIError.
func KindOf(err error) (Kind, bool) {
	var e *AIError
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
