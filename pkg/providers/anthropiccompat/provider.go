// Package anthropiccompat implements the Anthropic-compatible remote HTTP
// dialect: a separate top-level system prompt, content-block messages, and
// tool_use/tool_result blocks, on top of the shared provider kernel.
package anthropiccompat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/conduit-ai/conduit/pkg/provider"
	"github.com/conduit-ai/conduit/pkg/provider/aierr"
	"github.com/conduit-ai/conduit/pkg/provider/types"
	"github.com/conduit-ai/conduit/pkg/sse"
	"github.com/conduit-ai/conduit/pkg/streampipe"
)

// Config configures an Anthropic-compatible provider instance.
type Config struct {
	BaseURL string // e.g. "https://api.anthropic.com/v1"
	Auth    provider.Auth
	Version string // anthropic-version header, e.g. "2023-06-01"
}

// Provider implements provider.TextGenerator and provider.AIProvider.
type Provider struct {
	cfg    Config
	kernel *provider.Kernel
}

// New constructs a Provider bound to cfg.
func New(name string, cfg Config) *Provider {
	if cfg.Version == "" {
		cfg.Version = "2023-06-01"
	}
	return &Provider{cfg: cfg, kernel: provider.NewKernel(name, cfg.Auth)}
}

func (p *Provider) CancelGeneration() { p.kernel.CancelGeneration() }

func (p *Provider) Availability(ctx context.Context) provider.Availability {
	if p.cfg.Auth.Resolve() == "" {
		return provider.Availability{Available: false, Reason: "no credential resolved"}
	}
	return provider.Availability{Available: true}
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type wireMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type wireTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []wireMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	TopK        *int          `json:"top_k,omitempty"`
	StopSeqs    []string      `json:"stop_sequences,omitempty"`
	Tools       []wireTool    `json:"tools,omitempty"`
}

func splitSystemAndMessages(messages []types.Message) (string, []wireMessage) {
	var system string
	var out []wireMessage
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			system = m.Text()
			continue
		}
		role := string(m.Role)
		if m.Role == types.RoleTool {
			role = "user"
		}
		var blocks []contentBlock
		hasText := false
		for _, part := range m.Content {
			switch v := part.(type) {
			case types.TextPart:
				blocks = append(blocks, contentBlock{Type: "text", Text: v.Text})
				hasText = true
			case types.ToolCallPart:
				blocks = append(blocks, contentBlock{Type: "tool_use", ID: v.ToolCall.ID, Name: v.ToolCall.Name, Input: json.RawMessage(v.ToolCall.Arguments)})
			case types.ToolResultPart:
				blocks = append(blocks, contentBlock{Type: "tool_result", ToolUseID: v.ToolCallID, Content: v.Content})
			}
		}
		if !hasText && len(blocks) == 0 {
			blocks = append(blocks, contentBlock{Type: "text", Text: ""})
		}
		out = append(out, wireMessage{Role: role, Content: blocks})
	}
	return system, out
}

// EncodeRequest implements provider.RequestEncoder.
func (p *Provider) EncodeRequest(ctx context.Context, messages []types.Message, modelID string, cfg types.GenerateConfig, streaming bool) (*http.Request, error) {
	system, wireMessages := splitSystemAndMessages(messages)
	maxTokens := 1024
	if cfg.MaxTokens != nil {
		maxTokens = *cfg.MaxTokens
	}
	req := wireRequest{
		Model:       modelID,
		System:      system,
		Messages:    wireMessages,
		Stream:      streaming,
		MaxTokens:   maxTokens,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		TopK:        cfg.TopK,
		StopSeqs:    cfg.StopSequences,
	}
	for _, t := range cfg.Tools {
		req.Tools = append(req.Tools, wireTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", p.cfg.Version)
	return httpReq, nil
}

type wireResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func mapStopReason(s string) types.FinishReason {
	switch s {
	case "end_turn", "stop_sequence":
		return types.FinishStop
	case "max_tokens":
		return types.FinishMaxTokens
	case "tool_use":
		return types.FinishToolCall
	default:
		return types.FinishStop
	}
}

// DecodeResult implements provider.ResponseDecoder for non-streaming calls.
func (p *Provider) DecodeResult(resp *http.Response) (types.GenerationResult, error) {
	defer resp.Body.Close()
	var wr wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return types.GenerationResult{}, aierr.Wrap(aierr.KindStream, p.kernel.Name, "failed to decode response body", err)
	}
	var text string
	var calls []types.ToolCall
	for _, block := range wr.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			calls = append(calls, types.ToolCall{ID: block.ID, Name: block.Name, Arguments: string(block.Input)})
		}
	}
	return types.GenerationResult{
		Text:         text,
		ToolCalls:    calls,
		FinishReason: mapStopReason(wr.StopReason),
		Usage: types.Usage{
			PromptTokens:     wr.Usage.InputTokens,
			CompletionTokens: wr.Usage.OutputTokens,
			TotalTokens:      wr.Usage.InputTokens + wr.Usage.OutputTokens,
		},
	}, nil
}

type streamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// DecodeStream implements provider.ResponseDecoder for streaming calls.
func (p *Provider) DecodeStream(ctx context.Context, resp *http.Response) (<-chan types.GenerationChunk, <-chan error) {
	out := make(chan types.GenerationChunk)
	errCh := make(chan error, 1)

	go func() {
		defer resp.Body.Close()
		defer close(out)
		defer close(errCh)

		asm := streampipe.NewAssembler()
		lb := sse.NewLineBuffer(0)
		parser := sse.NewParser()
		buf := make([]byte, 4096)
		var finishReason types.FinishReason
		var usage types.Usage

		emit := func(ev sse.Event) {
			var se streamEvent
			if err := json.Unmarshal([]byte(ev.Data), &se); err != nil {
				return
			}
			switch se.Type {
			case "content_block_start":
				if se.ContentBlock.Type == "tool_use" {
					out <- asm.ToolCallDelta(se.Index, se.ContentBlock.ID, se.ContentBlock.Name, "")
				}
			case "content_block_delta":
				switch se.Delta.Type {
				case "text_delta":
					out <- asm.TextDelta(se.Delta.Text)
				case "input_json_delta":
					out <- asm.ToolCallDelta(se.Index, "", "", se.Delta.PartialJSON)
				}
			case "message_delta":
				if se.Delta.StopReason != "" {
					finishReason = mapStopReason(se.Delta.StopReason)
				}
				usage.CompletionTokens = se.Usage.OutputTokens
			case "message_stop":
			}
		}

		for {
			select {
			case <-ctx.Done():
				errCh <- aierr.NewCancelled(p.kernel.Name)
				return
			default:
			}

			n, err := resp.Body.Read(buf)
			if n > 0 {
				lb.Append(buf[:n])
				for {
					line, ok, overflow := lb.Next()
					if overflow {
						errCh <- aierr.New(aierr.KindStream, p.kernel.Name, "SSE line exceeded buffer")
						return
					}
					if !ok {
						break
					}
					if ev, dispatched := parser.Feed(line); dispatched {
						emit(ev)
					}
				}
			}
			if err != nil {
				if err == io.EOF {
					if ev, dispatched := parser.Flush(); dispatched {
						emit(ev)
					}
					out <- asm.Final(finishReason, usage, nil)
					return
				}
				errCh <- aierr.NewNetwork(p.kernel.Name, "stream read failed", err)
				return
			}
		}
	}()

	return out, errCh
}

// Generate implements provider.TextGenerator.
func (p *Provider) Generate(ctx context.Context, messages []types.Message, modelID string, cfg types.GenerateConfig) (types.GenerationResult, error) {
	resp, err := p.kernel.Dispatch(ctx, p, messages, modelID, cfg, false)
	if err != nil {
		return types.GenerationResult{}, err
	}
	return p.DecodeResult(resp)
}

// StreamWithMetadata implements provider.TextGenerator.
func (p *Provider) StreamWithMetadata(ctx context.Context, messages []types.Message, modelID string, cfg types.GenerateConfig) (<-chan types.GenerationChunk, <-chan error) {
	resp, err := p.kernel.Dispatch(ctx, p, messages, modelID, cfg, true)
	if err != nil {
		out := make(chan types.GenerationChunk)
		errCh := make(chan error, 1)
		close(out)
		errCh <- err
		close(errCh)
		return out, errCh
	}
	return p.DecodeStream(ctx, resp)
}

// CountTokens implements provider.TokenCounter using the shared character
// heuristic. The Anthropic-compatible dialect's count-tokens endpoint is
// vendor-specific and not assumed uniform across dialect implementors, so
// this reports an estimate rather than dispatching a second request.
func (p *Provider) CountTokens(ctx context.Context, text string, modelID string) (provider.TokenCount, error) {
	return provider.EstimateMessageTokens(text), nil
}
