// Package openaicompat implements the OpenAI-compatible remote HTTP
// dialect on top of the shared provider kernel: chat-completions request
// encoding, SSE-framed streaming, and tool-call delta assembly matching the
// OpenAI wire format that many vendors (OpenAI itself, OpenRouter, Azure
// OpenAI, Moonshot, MiniMax) share, plus the embeddings, audio-
// transcriptions, and image-generation endpoints this family of vendors
// also exposes under the same wire conventions.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/conduit-ai/conduit/pkg/provider"
	"github.com/conduit-ai/conduit/pkg/provider/aierr"
	"github.com/conduit-ai/conduit/pkg/provider/types"
	"github.com/conduit-ai/conduit/pkg/sse"
	"github.com/conduit-ai/conduit/pkg/streampipe"
)

// Config configures an OpenAI-compatible provider instance.
type Config struct {
	BaseURL string // e.g. "https://api.openai.com/v1"
	Auth    provider.Auth
}

// Provider implements provider.TextGenerator, provider.AIProvider,
// provider.TokenCounter, provider.EmbeddingGenerator, provider.Transcriber
// and provider.ImageGenerator over the kernel.
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
	if p.cfg.Auth.Resolve() == "" && p.cfg.Auth.Kind != provider.AuthNone {
		return provider.Availability{Available: false, Reason: "no credential resolved"}
	}
	return provider.Availability{Available: true}
}

// wireMessage is the OpenAI chat-completions message shape.
type wireMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []wireCall `json:"tool_calls,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
}

type wireCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string                 `json:"name"`
		Description string                 `json:"description"`
		Parameters  map[string]interface{} `json:"parameters"`
	} `json:"function"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Seed        *int          `json:"seed,omitempty"`
	Tools       []wireTool    `json:"tools,omitempty"`
	ToolChoice  interface{}   `json:"tool_choice,omitempty"`
}

func encodeMessages(messages []types.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wm := wireMessage{Role: string(m.Role), Content: m.Text()}
		for _, part := range m.Content {
			switch v := part.(type) {
			case types.ToolCallPart:
				wc := wireCall{ID: v.ToolCall.ID, Type: "function"}
				wc.Function.Name = v.ToolCall.Name
				wc.Function.Arguments = v.ToolCall.Arguments
				wm.ToolCalls = append(wm.ToolCalls, wc)
			case types.ToolResultPart:
				wm.ToolCallID = v.ToolCallID
				wm.Content = v.Content
			}
		}
		out = append(out, wm)
	}
	return out
}

func encodeToolChoice(choice types.ToolChoice) interface{} {
	switch choice.Mode {
	case types.ToolChoiceAuto, "":
		return nil
	case types.ToolChoiceRequired:
		return "required"
	case types.ToolChoiceNone:
		return "none"
	case types.ToolChoiceByName:
		return map[string]interface{}{"type": "function", "function": map[string]string{"name": choice.Name}}
	default:
		return nil
	}
}

// EncodeRequest implements provider.RequestEncoder.
func (p *Provider) EncodeRequest(ctx context.Context, messages []types.Message, modelID string, cfg types.GenerateConfig, streaming bool) (*http.Request, error) {
	req := wireRequest{
		Model:       modelID,
		Messages:    encodeMessages(messages),
		Stream:      streaming,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
		Stop:        cfg.StopSequences,
		Seed:        cfg.Seed,
		ToolChoice:  encodeToolChoice(cfg.ToolChoice),
	}
	for _, t := range cfg.Tools {
		wt := wireTool{Type: "function"}
		wt.Function.Name = t.Name
		wt.Function.Description = t.Description
		wt.Function.Parameters = t.Parameters
		req.Tools = append(req.Tools, wt)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

type wireResponse struct {
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
	case "stop":
		return types.FinishStop
	case "length":
		return types.FinishMaxTokens
	case "tool_calls":
		return types.FinishToolCall
	case "content_filter":
		return types.FinishContentFilter
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
	if len(wr.Choices) == 0 {
		return types.GenerationResult{}, aierr.New(aierr.KindStream, p.kernel.Name, "response contained no choices")
	}
	choice := wr.Choices[0]
	var calls []types.ToolCall
	for _, c := range choice.Message.ToolCalls {
		calls = append(calls, types.ToolCall{ID: c.ID, Name: c.Function.Name, Arguments: c.Function.Arguments})
	}
	return types.GenerationResult{
		Text:         choice.Message.Content,
		ToolCalls:    calls,
		FinishReason: mapFinishReason(choice.FinishReason),
		Usage: types.Usage{
			PromptTokens:     wr.Usage.PromptTokens,
			CompletionTokens: wr.Usage.CompletionTokens,
			TotalTokens:      wr.Usage.TotalTokens,
		},
	}, nil
}

type streamDelta struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
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

		emit := func(ev sse.Event) bool {
			if ev.Data == "[DONE]" {
				return false
			}
			var delta streamDelta
			if err := json.Unmarshal([]byte(ev.Data), &delta); err != nil {
				return true
			}
			if len(delta.Choices) > 0 {
				ch := delta.Choices[0]
				if ch.Delta.Content != "" {
					out <- asm.TextDelta(ch.Delta.Content)
				}
				for _, tc := range ch.Delta.ToolCalls {
					out <- asm.ToolCallDelta(tc.Index, tc.ID, tc.Function.Name, tc.Function.Arguments)
				}
				if ch.FinishReason != nil {
					finishReason = mapFinishReason(*ch.FinishReason)
				}
			}
			if delta.Usage != nil {
				usage = types.Usage{
					PromptTokens:     delta.Usage.PromptTokens,
					CompletionTokens: delta.Usage.CompletionTokens,
					TotalTokens:      delta.Usage.TotalTokens,
				}
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
						errCh <- aierr.New(aierr.KindStream, p.kernel.Name, "SSE line exceeded buffer")
						return
					}
					if !ok {
						break
					}
					if ev, dispatched := parser.Feed(line); dispatched {
						if !emit(ev) {
							out <- asm.Final(finishReason, usage, nil)
							return
						}
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
// heuristic. The OpenAI-compatible dialect has no uniform tokenizer
// endpoint across the vendors sharing this wire shape (OpenAI exposes
// tokenization only through the separate tiktoken library, not the API),
// so conduit reports an estimate.
func (p *Provider) CountTokens(ctx context.Context, text string, modelID string) (provider.TokenCount, error) {
	return provider.EstimateMessageTokens(text), nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed implements provider.EmbeddingGenerator.
func (p *Provider) Embed(ctx context.Context, text string, modelID string) (types.EmbeddingResult, error) {
	results, err := p.EmbedBatch(ctx, []string{text}, modelID)
	if err != nil {
		return types.EmbeddingResult{}, err
	}
	return results[0], nil
}

// EmbedBatch implements provider.EmbeddingGenerator. Results are returned
// index-sorted regardless of the order the backend emits them in, per
// §4.1's ordering guarantee.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string, modelID string) ([]types.EmbeddingResult, error) {
	if len(texts) == 0 {
		return nil, aierr.NewInvalidRequest(p.kernel.Name, "EmbedBatch requires at least one input")
	}
	body, err := json.Marshal(embeddingRequest{Model: modelID, Input: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	p.cfg.Auth.Apply(req)

	resp, err := p.kernel.HTTPClient.Do(req)
	if err != nil {
		return nil, aierr.NewNetwork(p.kernel.Name, "embedding request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, aierr.New(aierr.KindProviderOverload, p.kernel.Name, "embedding request returned non-200 status")
	}

	var er embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, aierr.Wrap(aierr.KindStream, p.kernel.Name, "failed to decode embedding response", err)
	}
	out := make([]types.EmbeddingResult, len(texts))
	for _, d := range er.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = types.EmbeddingResult{
			Embeddings: [][]float64{d.Embedding},
			Usage: types.Usage{
				PromptTokens: er.Usage.PromptTokens,
				TotalTokens:  er.Usage.TotalTokens,
			},
		}
	}
	return out, nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe implements provider.Transcriber using the multipart
// audio-transcriptions endpoint (Whisper-compatible).
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string, modelID string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio"+extensionFor(mimeType))
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return "", err
	}
	if err := mw.WriteField("model", modelID); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	p.cfg.Auth.Apply(req)

	resp, err := p.kernel.HTTPClient.Do(req)
	if err != nil {
		return "", aierr.NewNetwork(p.kernel.Name, "transcription request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", aierr.New(aierr.KindProviderOverload, p.kernel.Name, "transcription request returned non-200 status")
	}

	var tr transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", aierr.Wrap(aierr.KindStream, p.kernel.Name, "failed to decode transcription response", err)
	}
	return tr.Text, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/webm":
		return ".webm"
	default:
		return ".bin"
	}
}

// imageSizeMenu is the fixed set of sizes this dialect's image endpoint
// accepts, keyed by aspect class (square, landscape, portrait).
var imageSizeMenu = [][2]int{{1024, 1024}, {1792, 1024}, {1024, 1792}}

// maxImagePromptLen is this dialect's documented prompt-length cap.
const maxImagePromptLen = 4000

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// GenerateImage implements provider.ImageGenerator. NegativePrompt is
// accepted but ignored: this dialect's image endpoint has no negative-
// prompt parameter.
func (p *Provider) GenerateImage(ctx context.Context, prompt string, cfg provider.ImageGenerationConfig) (provider.GeneratedImage, error) {
	if len(prompt) > maxImagePromptLen {
		return provider.GeneratedImage{}, aierr.NewInvalidRequest(p.kernel.Name, fmt.Sprintf("prompt exceeds %d characters", maxImagePromptLen))
	}
	width, height := cfg.Width, cfg.Height
	if width == 0 || height == 0 {
		width, height = 1024, 1024
	}
	size := provider.NearestSupportedSize(width, height, imageSizeMenu)

	body, err := json.Marshal(imageRequest{
		Model:          "dall-e-3",
		Prompt:         prompt,
		Size:           fmt.Sprintf("%dx%d", size[0], size[1]),
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return provider.GeneratedImage{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return provider.GeneratedImage{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	p.cfg.Auth.Apply(req)

	resp, err := p.kernel.HTTPClient.Do(req)
	if err != nil {
		return provider.GeneratedImage{}, aierr.NewNetwork(p.kernel.Name, "image request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		msg := strings.ToLower(errBody.Error.Message)
		if strings.Contains(msg, "content policy") || strings.Contains(msg, "safety") {
			return provider.GeneratedImage{}, aierr.NewContentFilter(p.kernel.Name, errBody.Error.Message)
		}
		return provider.GeneratedImage{}, aierr.New(aierr.KindProviderOverload, p.kernel.Name, "image request returned non-200 status")
	}

	var ir imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return provider.GeneratedImage{}, aierr.Wrap(aierr.KindStream, p.kernel.Name, "failed to decode image response", err)
	}
	if len(ir.Data) == 0 {
		return provider.GeneratedImage{}, aierr.New(aierr.KindStream, p.kernel.Name, "image response contained no data")
	}
	raw, err := base64.StdEncoding.DecodeString(ir.Data[0].B64JSON)
	if err != nil {
		return provider.GeneratedImage{}, aierr.Wrap(aierr.KindStream, p.kernel.Name, "failed to decode base64 image payload", err)
	}
	return provider.GeneratedImage{
		Data:   raw,
		Format: provider.ImagePNG,
		Metadata: provider.GeneratedImageMetadata{
			RevisedPrompt: ir.Data[0].RevisedPrompt,
			Model:         "dall-e-3",
		},
	}, nil
}
