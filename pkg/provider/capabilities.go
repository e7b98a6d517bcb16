// Package provider defines the capability contracts every backend adapter
// implements piecewise, plus the shared kernel remote HTTP providers build
// on.
package provider

import (
	"context"

	"github.com/conduit-ai/conduit/pkg/provider/types"
)

// TokenCount reports a token count, flagging whether it is exact or an
// estimate (for backends without a tokenizer).
type TokenCount struct {
	Count      int
	IsEstimate bool
}

// TextGenerator is implemented by any backend capable of text generation,
// remote or local.
type TextGenerator interface {
	// Generate runs a single-shot completion over a conversation and
	// returns the full result. Fails with an invalid-request AIError when
	// messages is empty.
	Generate(ctx context.Context, messages []types.Message, modelID string, cfg types.GenerateConfig) (types.GenerationResult, error)

	// StreamWithMetadata runs a streaming completion, delivering chunks on
	// the returned channel. The channel is closed after the final chunk
	// (IsFinal==true) or after an error is sent on errCh. Exactly one of
	// the two channels ever carries a terminal signal.
	StreamWithMetadata(ctx context.Context, messages []types.Message, modelID string, cfg types.GenerateConfig) (<-chan types.GenerationChunk, <-chan error)
}

// Stream is a convenience wrapper over g.StreamWithMetadata that forwards
// only the non-empty text deltas, followed by any error from the stream.
func Stream(ctx context.Context, g TextGenerator, messages []types.Message, modelID string, cfg types.GenerateConfig) (<-chan string, <-chan error) {
	chunks, errs := g.StreamWithMetadata(ctx, messages, modelID, cfg)
	out := make(chan string)
	outErr := make(chan error, 1)
	go func() {
		defer close(out)
		for c := range chunks {
			if c.Kind == types.ChunkText && c.TextDelta != "" {
				out <- c.TextDelta
			}
		}
		if err, ok := <-errs; ok {
			outErr <- err
		}
		close(outErr)
	}()
	return out, outErr
}

// Availability reports whether a provider instance is currently usable.
type Availability struct {
	Available bool
	Reason    string
}

// AIProvider is the superset contract every concrete provider satisfies:
// capability discovery, availability, and global cancellation.
type AIProvider interface {
	Availability(ctx context.Context) Availability
	CancelGeneration()
}

// EmbeddingGenerator is implemented by backends that can produce embedding
// vectors.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string, modelID string) (types.EmbeddingResult, error)
	// EmbedBatch preserves input order in the returned slice regardless of
	// the order results complete in.
	EmbedBatch(ctx context.Context, texts []string, modelID string) ([]types.EmbeddingResult, error)
}

// TokenCounter is implemented by backends that can report token counts,
// exact or estimated.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string, modelID string) (TokenCount, error)
}

// EstimateTokens implements the ~4-chars-per-token heuristic for backends
// without a real tokenizer (rounding up). It adds no chat-formatting
// overhead; EstimateMessageTokens does.
func EstimateTokens(text string) TokenCount {
	n := len(text) / 4
	if len(text)%4 != 0 {
		n++
	}
	return TokenCount{Count: n, IsEstimate: true}
}

// EstimateMessageTokens applies EstimateTokens plus the 4-tokens-per-message
// chat overhead heuristic.
func EstimateMessageTokens(text string) TokenCount {
	tc := EstimateTokens(text)
	tc.Count += 4
	return tc
}

// Transcriber is implemented by backends capable of speech-to-text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string, modelID string) (string, error)
}

// ImageFormat identifies the encoding of generated image bytes.
type ImageFormat string

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"
	ImageWebP ImageFormat = "webp"
)

// ImageGenerationConfig configures an image-generation request.
type ImageGenerationConfig struct {
	Width          int
	Height         int
	QualityPreset  string
	Style          string
	NegativePrompt string
}

// GeneratedImageMetadata carries optional provider-reported details about a
// generated image.
type GeneratedImageMetadata struct {
	RevisedPrompt string
	Model         string
}

// GeneratedImage is the result of an image-generation request.
type GeneratedImage struct {
	Data     []byte
	Format   ImageFormat
	Metadata GeneratedImageMetadata
}

// ImageGenerator is implemented by backends capable of image generation.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, cfg ImageGenerationConfig) (GeneratedImage, error)
}

// NearestSupportedSize maps a requested (width, height) to the nearest entry
// in a fixed menu of supported sizes, by aspect-ratio class: square is
// width/height <= 1.5 (and the reciprocal for portrait), anything wider is
// landscape.
func NearestSupportedSize(width, height int, menu [][2]int) [2]int {
	if len(menu) == 0 {
		return [2]int{width, height}
	}
	ratio := float64(width) / float64(height)
	class := func(w, h int) int {
		r := float64(w) / float64(h)
		switch {
		case r <= 1.0/1.5 && r > 0:
			return -1 // portrait
		case r <= 1.5:
			return 0 // square-ish
		default:
			return 1 // landscape
		}
	}
	wantClass := class(width, height)
	best := menu[0]
	bestScore := -1.0
	for i, m := range menu {
		if class(m[0], m[1]) != wantClass {
			continue
		}
		r := float64(m[0]) / float64(m[1])
		score := 1 - absF(r-ratio)
		if i == 0 || score > bestScore {
			bestScore = score
			best = m
		}
	}
	if bestScore < 0 {
		// No size shares the aspect class; fall back to closest by area.
		bestArea := -1
		wantArea := width * height
		for _, m := range menu {
			area := m[0] * m[1]
			d := area - wantArea
			if d < 0 {
				d = -d
			}
			if bestArea == -1 || d < bestArea {
				bestArea = d
				best = m
			}
		}
	}
	return best
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
