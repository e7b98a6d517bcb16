// Package toolexec implements the tool registry, invocation, and retry
// policy that drives the tool-calling state machine.
package toolexec

import (
	"context"
	"sync"

	"github.com/conduit-ai/conduit/pkg/content"
	"github.com/conduit-ai/conduit/pkg/provider/aierr"
	"github.com/conduit-ai/conduit/pkg/provider/types"
)

// Handler is the type-erased, invocable form of a registered tool: it
// parses the raw JSON argument string itself (typically into a Generable
// Args type) and returns a string output suitable for re-injection into the
// conversation.
type Handler interface {
	Name() string
	Description() string
	Schema() map[string]interface{}
	Invoke(ctx context.Context, argsJSON string) (string, error)
}

// MissingToolPolicy controls behavior when a call references an
// unregistered tool name.
type MissingToolPolicy int

const (
	// MissingToolThrow fails the call with a missing-tool AIError.
	MissingToolThrow MissingToolPolicy = iota
	// MissingToolEmitError returns a formatted error string as the tool's
	// output instead of failing, letting the conversation continue.
	MissingToolEmitError
)

// RetryPolicy controls how invocation failures are retried.
type RetryPolicy int

const (
	RetryNone RetryPolicy = iota
	RetryRetryableErrors
	RetryAllExceptCancelled
)

// Executor holds a name -> Handler registry and drives invocation per the
// configured missing-tool and retry policies. Its registry is mutex-
// guarded so registration and lookup may be called from any goroutine.
type Executor struct {
	mu            sync.RWMutex
	handlers      map[string]Handler
	missingPolicy MissingToolPolicy
	retryPolicy   RetryPolicy
	maxAttempts   int
}

// NewExecutor returns an Executor with the given missing-tool policy and a
// default retry policy of none (one attempt).
func NewExecutor(missingPolicy MissingToolPolicy) *Executor {
	return &Executor{handlers: map[string]Handler{}, missingPolicy: missingPolicy, maxAttempts: 1}
}

// Register adds or replaces the handler for its own name.
func (e *Executor) Register(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[h.Name()] = h
}

// SetRetryPolicy configures retry behavior; maxAttempts applies to
// RetryRetryableErrors and RetryAllExceptCancelled (ignored for RetryNone).
func (e *Executor) SetRetryPolicy(policy RetryPolicy, maxAttempts int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retryPolicy = policy
	if maxAttempts > 0 {
		e.maxAttempts = maxAttempts
	}
}

// Execute looks up and invokes the named tool with the given raw JSON
// argument string, applying the configured retry policy.
func (e *Executor) Execute(ctx context.Context, name, argsJSON string) (string, error) {
	e.mu.RLock()
	h, ok := e.handlers[name]
	policy := e.retryPolicy
	maxAttempts := e.maxAttempts
	e.mu.RUnlock()

	if !ok {
		if e.missingPolicy == MissingToolEmitError {
			return "error: no tool registered named \"" + name + "\"", nil
		}
		return "", aierr.NewMissingTool(name)
	}

	// Validate arguments parse as JSON content before invocation; a parse
	// failure is not retried regardless of policy.
	if _, err := content.FromJSON(argsJSON); err != nil {
		return "", aierr.Wrap(aierr.KindToolExecution, "", "invalid arguments for tool \""+name+"\"", err)
	}

	attempts := 1
	if policy != RetryNone {
		attempts = maxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := h.Invoke(ctx, argsJSON)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", aierr.NewCancelled("")
		}
		if kind, ok := aierr.KindOf(err); ok && kind == aierr.KindCancelled {
			break
		}
		if policy == RetryNone {
			break
		}
		if policy == RetryRetryableErrors && !aierr.IsRetryable(err) {
			break
		}
		// RetryAllExceptCancelled retries any non-cancellation error.
	}
	return "", aierr.NewToolExecution(name, "invocation failed", lastErr)
}

// CallAssembler tracks in-progress tool-call deltas during a stream, keyed
// by call id, and returns the assembled calls from Completed. It builds no
// messages itself.
type CallAssembler struct {
	order []string
	calls map[string]*types.ToolCall
}

// NewCallAssembler returns an empty CallAssembler.
func NewCallAssembler() *CallAssembler {
	return &CallAssembler{calls: map[string]*types.ToolCall{}}
}

// Append records a fragment for call id (name may be empty on continuation
// fragments).
func (c *CallAssembler) Append(id, name, argsFragment string) {
	tc, ok := c.calls[id]
	if !ok {
		tc = &types.ToolCall{ID: id}
		c.calls[id] = tc
		c.order = append(c.order, id)
	}
	if name != "" {
		tc.Name = name
	}
	tc.Arguments += argsFragment
}

// Completed returns all tool calls assembled so far, in first-seen order.
func (c *CallAssembler) Completed() []types.ToolCall {
	out := make([]types.ToolCall, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.calls[id])
	}
	return out
}
