// Package ollama implements the local HTTP server dialect spoken by Ollama
// and compatible local runtimes: newline-delimited JSON responses rather
// than SSE framing, and no remote provider authentication. It has no model
// pull or list API; the tags endpoint is used only to probe availability.
package ollama

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

// Config configures an Ollama-compatible provider instance.
type Config struct {
	BaseURL string // e.g. "http://localhost:11434"
}

// Provider implements provider.TextGenerator and provider.AIProvider
// against a local Ollama-compatible HTTP server. There is no remote
// credential to resolve; availability instead probes server reachability.
type Provider struct {
	cfg    Config
	kernel *provider.Kernel
}

// New constructs a Provider bound to cfg.
func New(name string, cfg Config) *Provider {
	return &Provider{cfg: cfg, kernel: provider.NewKernel(name, provider.NoAuth())}
}

func (p *Provider) CancelGeneration() { p.kernel.CancelGeneration() }

// Availability probes the server's tags endpoint; a local runtime being
// unreachable is the normal "not running" case, not a hard failure.
func (p *Provider) Availability(ctx context.Context) provider.Availability {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return provider.Availability{Available: false, Reason: err.Error()}
	}
	resp, err := p.kernel.HTTPClient.Do(req)
	if err != nil {
		return provider.Availability{Available: false, Reason: "server unreachable: " + err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return provider.Availability{Available: false, Reason: "server returned non-200 for /api/tags"}
	}
	return provider.Availability{Available: true}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        *int     `json:"seed,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  wireOptions   `json:"options,omitempty"`
}

// EncodeRequest implements provider.RequestEncoder.
func (p *Provider) EncodeRequest(ctx context.Context, messages []types.Message, modelID string, cfg types.GenerateConfig, streaming bool) (*http.Request, error) {
	req := chatRequest{
		Model:  modelID,
		Stream: streaming,
		Options: wireOptions{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			TopK:        cfg.TopK,
			Stop:        cfg.StopSequences,
			Seed:        cfg.Seed,
			NumPredict:  cfg.MaxTokens,
		},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, wireMessage{Role: string(m.Role), Content: m.Text()})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

type chatResponse struct {
	Message         wireMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

func mapDoneReason(s string) types.FinishReason {
	switch s {
	case "length":
		return types.FinishMaxTokens
	case "stop", "":
		return types.FinishStop
	default:
		return types.FinishStop
	}
}

// DecodeResult implements provider.ResponseDecoder for non-streaming calls.
// Ollama's non-streaming response is a single JSON object, not NDJSON.
func (p *Provider) DecodeResult(resp *http.Response) (types.GenerationResult, error) {
	defer resp.Body.Close()
	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return types.GenerationResult{}, aierr.Wrap(aierr.KindStream, p.kernel.Name, "failed to decode response body", err)
	}
	return types.GenerationResult{
		Text:         cr.Message.Content,
		FinishReason: mapDoneReason(cr.DoneReason),
		Usage: types.Usage{
			PromptTokens:     cr.PromptEvalCount,
			CompletionTokens: cr.EvalCount,
			TotalTokens:      cr.PromptEvalCount + cr.EvalCount,
		},
	}, nil
}

// DecodeStream implements provider.ResponseDecoder for streaming calls.
// Ollama streams one JSON object per line rather than SSE-framed events, so
// the shared line buffer is reused without the SSE field parser on top.
func (p *Provider) DecodeStream(ctx context.Context, resp *http.Response) (<-chan types.GenerationChunk, <-chan error) {
	out := make(chan types.GenerationChunk)
	errCh := make(chan error, 1)

	go func() {
		defer resp.Body.Close()
		defer close(out)
		defer close(errCh)

		asm := streampipe.NewAssembler()
		lb := sse.NewLineBuffer(0)
		buf := make([]byte, 4096)

		emitLine := func(line string) bool {
			if line == "" {
				return true
			}
			var cr chatResponse
			if err := json.Unmarshal([]byte(line), &cr); err != nil {
				return true
			}
			if cr.Message.Content != "" {
				out <- asm.TextDelta(cr.Message.Content)
			}
			if cr.Done {
				usage := types.Usage{
					PromptTokens:     cr.PromptEvalCount,
					CompletionTokens: cr.EvalCount,
					TotalTokens:      cr.PromptEvalCount + cr.EvalCount,
				}
				out <- asm.Final(mapDoneReason(cr.DoneReason), usage, nil)
				return false
			}
			return true
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
						errCh <- aierr.New(aierr.KindStream, p.kernel.Name, "response line exceeded buffer")
						return
					}
					if !ok {
						break
					}
					if !emitLine(line) {
						return
					}
				}
			}
			if err != nil {
				if err == io.EOF {
					if remainder := lb.Drain(); remainder != "" && !emitLine(remainder) {
						return
					}
					// No done line arrived: still close with a final chunk.
					out <- asm.Final(types.FinishStop, types.Usage{}, nil)
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
// heuristic. Ollama's `/api/show` exposes a model's context window but not
// a tokenizer endpoint generic across every model family it serves, so
// conduit reports an estimate here rather than special-casing per family.
func (p *Provider) CountTokens(ctx context.Context, text string, modelID string) (provider.TokenCount, error) {
	return provider.EstimateMessageTokens(text), nil
}
