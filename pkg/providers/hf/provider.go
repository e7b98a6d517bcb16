// Package hf implements a HuggingFace Inference API-compatible remote HTTP
// dialect: chat-completions request/response shapes largely mirroring the
// OpenAI dialect, plus feature-extraction embeddings and an estimate-only
// token counter (the Inference API does not expose a tokenizer endpoint for
// every hosted model).
package hf

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/conduit-ai/conduit/pkg/provider"
	"github.com/conduit-ai/conduit/pkg/provider/aierr"
	"github.com/conduit-ai/conduit/pkg/provider/types"
)

// Config configures a HuggingFace Inference provider instance.
type Config struct {
	BaseURL string // e.g. "https://api-inference.huggingface.co"
	Auth    provider.Auth
}

// Provider implements provider.TextGenerator, provider.EmbeddingGenerator
// and provider.TokenCounter over the HuggingFace Inference API.
type Provider struct {
	cfg    Config
	kernel *provider.Kernel
}

// New constructs a Provider bound to cfg.
func New(name string, cfg Config) *Provider {
	return &Provider{cfg: cfg, kernel: provider.NewKernel(name, cfg.Auth)}
}

func (p *Provider) CancelGeneration() { p.kernel.CancelGeneration() }

func (p *Provider) Availability(ctx context.Context) provider.Availability {
	if p.cfg.Auth.Resolve() == "" {
		return provider.Availability{Available: false, Reason: "no credential resolved"}
	}
	return provider.Availability{Available: true}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

// EncodeRequest implements provider.RequestEncoder. Streaming chat
// completions are not implemented for this dialect; Dispatch is always
// invoked non-streaming.
func (p *Provider) EncodeRequest(ctx context.Context, messages []types.Message, modelID string, cfg types.GenerateConfig, streaming bool) (*http.Request, error) {
	req := chatRequest{
		Model:       modelID,
		Stream:      false,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
		Stop:        cfg.StopSequences,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, wireMessage{Role: string(m.Role), Content: m.Text()})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

type chatResponse struct {
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func mapFinishReason(s string) types.FinishReason {
	switch s {
	case "length":
		return types.FinishMaxTokens
	case "stop", "eos_token", "":
		return types.FinishStop
	default:
		return types.FinishStop
	}
}

// DecodeResult implements provider.ResponseDecoder.
func (p *Provider) DecodeResult(resp *http.Response) (types.GenerationResult, error) {
	defer resp.Body.Close()
	var wr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return types.GenerationResult{}, aierr.Wrap(aierr.KindStream, p.kernel.Name, "failed to decode response body", err)
	}
	if len(wr.Choices) == 0 {
		return types.GenerationResult{}, aierr.New(aierr.KindStream, p.kernel.Name, "response contained no choices")
	}
	choice := wr.Choices[0]
	return types.GenerationResult{
		Text:         choice.Message.Content,
		FinishReason: mapFinishReason(choice.FinishReason),
		Usage: types.Usage{
			PromptTokens:     wr.Usage.PromptTokens,
			CompletionTokens: wr.Usage.CompletionTokens,
			TotalTokens:      wr.Usage.TotalTokens,
		},
	}, nil
}

// DecodeStream implements provider.ResponseDecoder. This dialect has no
// streaming support; calling it is a programming error by the caller since
// Generate/StreamWithMetadata never dispatch with streaming=true.
func (p *Provider) DecodeStream(ctx context.Context, resp *http.Response) (<-chan types.GenerationChunk, <-chan error) {
	out := make(chan types.GenerationChunk)
	errCh := make(chan error, 1)
	close(out)
	errCh <- aierr.NewUnsupported(p.kernel.Name, "streaming is not supported by this provider")
	close(errCh)
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

// StreamWithMetadata implements provider.TextGenerator by falling back to a
// single non-streaming call, delivered as one text chunk followed by the
// terminal chunk. HuggingFace Inference deployments frequently disable SSE
// for hosted chat models, so conduit degrades gracefully here rather than
// failing outright.
func (p *Provider) StreamWithMetadata(ctx context.Context, messages []types.Message, modelID string, cfg types.GenerateConfig) (<-chan types.GenerationChunk, <-chan error) {
	out := make(chan types.GenerationChunk, 2)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		result, err := p.Generate(ctx, messages, modelID, cfg)
		if err != nil {
			errCh <- err
			return
		}
		if result.Text != "" {
			out <- types.GenerationChunk{Kind: types.ChunkText, TextDelta: result.Text}
		}
		out <- types.GenerationChunk{
			Kind:         types.ChunkMetadata,
			IsFinal:      true,
			FinishReason: result.FinishReason,
			Usage:        result.Usage,
		}
	}()
	return out, errCh
}

type embeddingRequest struct {
	Inputs []string `json:"inputs"`
}

// Embed implements provider.EmbeddingGenerator.
func (p *Provider) Embed(ctx context.Context, text string, modelID string) (types.EmbeddingResult, error) {
	results, err := p.EmbedBatch(ctx, []string{text}, modelID)
	if err != nil {
		return types.EmbeddingResult{}, err
	}
	return results[0], nil
}

// EmbedBatch implements provider.EmbeddingGenerator via the
// feature-extraction pipeline.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string, modelID string) ([]types.EmbeddingResult, error) {
	if len(texts) == 0 {
		return nil, aierr.NewInvalidRequest(p.kernel.Name, "EmbedBatch requires at least one input")
	}
	body, err := json.Marshal(embeddingRequest{Inputs: texts})
	if err != nil {
		return nil, err
	}
	url := p.cfg.BaseURL + "/pipeline/feature-extraction/" + modelID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	p.cfg.Auth.Apply(req)

	client := p.kernel.HTTPClient
	resp, err := client.Do(req)
	if err != nil {
		return nil, aierr.NewNetwork(p.kernel.Name, "embedding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, aierr.New(aierr.KindProviderOverload, p.kernel.Name, "embedding request returned non-200 status")
	}

	var vectors [][]float64
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, aierr.Wrap(aierr.KindStream, p.kernel.Name, "failed to decode embedding response", err)
	}

	out := make([]types.EmbeddingResult, len(vectors))
	for i, v := range vectors {
		out[i] = types.EmbeddingResult{Embeddings: [][]float64{v}}
	}
	return out, nil
}

// CountTokens implements provider.TokenCounter using the shared character
// heuristic, since the Inference API exposes no tokenizer endpoint uniform
// across hosted models.
func (p *Provider) CountTokens(ctx context.Context, text string, modelID string) (provider.TokenCount, error) {
	return provider.EstimateMessageTokens(text), nil
}
