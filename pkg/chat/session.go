// Package chat implements ChatSession, the thread-safe conversation
// orchestrator that drives the generate -> tool-execute -> generate loop.
package chat

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/conduit-ai/conduit/pkg/internal/obs"
	"github.com/conduit-ai/conduit/pkg/provider"
	"github.com/conduit-ai/conduit/pkg/provider/aierr"
	"github.com/conduit-ai/conduit/pkg/provider/types"
	"github.com/conduit-ai/conduit/pkg/streampipe"
	"github.com/conduit-ai/conduit/pkg/toolexec"
)

// WarmupPolicy controls when a session's provider is warmed up, for
// backends where that concept applies (local-inference hosts).
type WarmupPolicy int

const (
	WarmupLazy WarmupPolicy = iota
	WarmupEager
)

// WarmupFunc performs a backend's warmup operation; sessions that don't
// need one may leave this nil.
type WarmupFunc func(ctx context.Context) error

// Session is a thread-safe conversation log that drives the generate ->
// tool-execute -> generate loop. All reads and writes of the message list
// are guarded by mu, matching the provider kernel's actor-equivalent
// discipline.
type Session struct {
	mu       sync.Mutex
	messages []types.Message

	provider    provider.TextGenerator
	modelID     string
	baseConfig  types.GenerateConfig
	executor    *toolexec.Executor
	maxToolHops int

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// NewSession constructs a session. executor may be nil if the session never
// needs tool calling. warmup, if non-nil and policy is WarmupEager, runs
// immediately.
func NewSession(p provider.TextGenerator, modelID string, cfg types.GenerateConfig, executor *toolexec.Executor, policy WarmupPolicy, warmup WarmupFunc) (*Session, error) {
	s := &Session{
		provider:    p,
		modelID:     modelID,
		baseConfig:  cfg,
		executor:    executor,
		maxToolHops: 25,
	}
	if policy == WarmupEager && warmup != nil {
		if err := warmup(context.Background()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SetSystemPrompt replaces the first message if it is a system message, or
// inserts one at index 0 otherwise.
func (s *Session) SetSystemPrompt(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sysMsg := types.SystemMessage(text)
	if len(s.messages) > 0 && s.messages[0].Role == types.RoleSystem {
		s.messages[0] = sysMsg
		return
	}
	s.messages = append([]types.Message{sysMsg}, s.messages...)
}

// ClearHistory keeps the system message, if present, and removes all
// others.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) > 0 && s.messages[0].Role == types.RoleSystem {
		s.messages = s.messages[:1]
		return
	}
	s.messages = nil
}

// UndoLastExchange pops a trailing assistant message, then a trailing user
// message beneath it, if present.
func (s *Session) UndoLastExchange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.messages); n > 0 && s.messages[n-1].Role == types.RoleAssistant {
		s.messages = s.messages[:n-1]
	}
	if n := len(s.messages); n > 0 && s.messages[n-1].Role == types.RoleUser {
		s.messages = s.messages[:n-1]
	}
}

// InjectHistory merges h into the session: an existing system message is
// kept; otherwise a system message from h (if any) is adopted. All
// non-system messages from h are appended.
func (s *Session) InjectHistory(h []types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hasSystem := len(s.messages) > 0 && s.messages[0].Role == types.RoleSystem
	if !hasSystem {
		for _, m := range h {
			if m.Role == types.RoleSystem {
				s.messages = append([]types.Message{m}, s.messages...)
				break
			}
		}
	}
	for _, m := range h {
		if m.Role != types.RoleSystem {
			s.messages = append(s.messages, m)
		}
	}
}

// Messages returns a snapshot copy of the current message log.
func (s *Session) Messages() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// UserMessageCount reports how many user-role messages the log currently
// holds.
func (s *Session) UserMessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.Role == types.RoleUser {
			n++
		}
	}
	return n
}

func (s *Session) appendMessage(m types.Message) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
}

func (s *Session) snapshot() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Cancel propagates cancellation to the provider's in-flight operation, if
// the provider also implements provider.AIProvider.
func (s *Session) Cancel() {
	s.cancelMu.Lock()
	cancel := s.cancel
	s.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}
	if ap, ok := s.provider.(provider.AIProvider); ok {
		ap.CancelGeneration()
	}
}

// Send appends a user message, runs the generate/tool-execute loop to
// completion, and returns the final assistant text.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()
	defer cancel()

	tracer := obs.Tracer("conduit/chat")
	ctx, end := obs.StartSpan(ctx, tracer, "chat.send")
	var finalErr error
	defer func() { end(finalErr) }()

	s.appendMessage(types.UserMessage(text))

	for hop := 0; hop < s.maxToolHops; hop++ {
		msgs := s.snapshot()
		result, err := s.provider.Generate(ctx, msgs, s.modelID, s.baseConfig)
		if err != nil {
			finalErr = err
			return "", err
		}

		if result.FinishReason != types.FinishToolCall || len(result.ToolCalls) == 0 {
			s.appendMessage(assistantMessageFromResult(result))
			return result.Text, nil
		}

		s.appendMessage(assistantMessageFromResult(result))

		if s.executor == nil {
			finalErr = aierr.New(aierr.KindMissingTool, "", "provider requested tool calls but no executor is configured")
			return "", finalErr
		}

		for _, call := range result.ToolCalls {
			out, terr := s.executor.Execute(ctx, call.Name, call.Arguments)
			if terr != nil {
				out = terr.Error()
			}
			s.appendMessage(types.ToolMessage(call.ID, call.Name, out))
		}
	}

	finalErr = aierr.New(aierr.KindInternal, "", "exceeded max tool-call hops without resolution")
	return "", finalErr
}

func assistantMessageFromResult(result types.GenerationResult) types.Message {
	parts := []types.ContentPart{types.TextPart{Text: result.Text}}
	for _, tc := range result.ToolCalls {
		parts = append(parts, types.ToolCallPart{ToolCall: tc})
	}
	return types.Message{Role: types.RoleAssistant, Content: parts}
}

// Stream runs the same loop as Send but yields text fragments from the
// final (non-tool-invoking) turn only; fragments from intermediate turns
// that resolve to tool calls are consumed internally, not yielded.
func (s *Session) Stream(ctx context.Context, text string) (<-chan string, <-chan error) {
	out := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		ctx, cancel := context.WithCancel(ctx)
		s.cancelMu.Lock()
		s.cancel = cancel
		s.cancelMu.Unlock()
		defer cancel()

		s.appendMessage(types.UserMessage(text))

		for hop := 0; hop < s.maxToolHops; hop++ {
			msgs := s.snapshot()
			chunks, errs := s.provider.StreamWithMetadata(ctx, msgs, s.modelID, s.baseConfig)

			var finalText string
			calls := streampipe.NewToolCallAccumulator()
			var finishReason types.FinishReason
			buffered := make([]string, 0, 16)

			for c := range chunks {
				switch c.Kind {
				case types.ChunkText:
					finalText += c.TextDelta
					buffered = append(buffered, c.TextDelta)
				case types.ChunkToolCallDelta:
					calls.Append(c.ToolCallIndex, c.ToolCallID, c.ToolCallName, c.ArgumentsDelta)
				case types.ChunkMetadata:
					if c.IsFinal {
						finishReason = c.FinishReason
					}
				}
			}
			if err, ok := <-errs; ok {
				errCh <- err
				return
			}

			toolCalls := calls.Completed()
			if finishReason != types.FinishToolCall || len(toolCalls) == 0 {
				for _, frag := range buffered {
					out <- frag
				}
				s.appendMessage(types.Message{Role: types.RoleAssistant, Content: []types.ContentPart{types.TextPart{Text: finalText}}})
				return
			}

			parts := []types.ContentPart{types.TextPart{Text: finalText}}
			for _, tc := range toolCalls {
				parts = append(parts, types.ToolCallPart{ToolCall: tc})
			}
			s.appendMessage(types.Message{Role: types.RoleAssistant, Content: parts})

			if s.executor == nil {
				errCh <- aierr.New(aierr.KindMissingTool, "", "provider requested tool calls but no executor is configured")
				return
			}
			for _, call := range toolCalls {
				result, terr := s.executor.Execute(ctx, call.Name, call.Arguments)
				if terr != nil {
					result = terr.Error()
				}
				s.appendMessage(types.ToolMessage(call.ID, call.Name, result))
			}
		}
		errCh <- aierr.New(aierr.KindInternal, "", "exceeded max tool-call hops without resolution")
	}()

	return out, errCh
}
