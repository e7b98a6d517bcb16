package openaicompat

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-ai/conduit/pkg/provider"
	"github.com/conduit-ai/conduit/pkg/provider/aierr"
	"github.com/conduit-ai/conduit/pkg/provider/types"
)

func TestGenerateNonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`))
	}))
	defer srv.Close()

	p := New("openai-test", Config{BaseURL: srv.URL, Auth: provider.BearerAuth("sk-test")})
	result, err := p.Generate(context.Background(), []types.Message{types.UserMessage("hi")}, "gpt-test", types.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Text)
	assert.Equal(t, types.FinishStop, result.FinishReason)
	assert.Equal(t, 7, result.Usage.TotalTokens)
}

func TestGenerateEmptyMessagesFails(t *testing.T) {
	p := New("openai-test", Config{BaseURL: "http://unused", Auth: provider.NoAuth()})
	_, err := p.Generate(context.Background(), nil, "gpt-test", types.DefaultConfig())
	assert.Error(t, err)
}

func TestGenerateRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := New("openai-test", Config{BaseURL: srv.URL, Auth: provider.NoAuth()})
	_, err := p.Generate(context.Background(), []types.Message{types.UserMessage("hi")}, "gpt-test", types.DefaultConfig())
	require.Error(t, err)
}

func TestStreamWithMetadataAssemblesChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"},\"finish_reason\":null}]}\n\n"))
		flusher.Flush()
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"lo\"},\"finish_reason\":\"stop\"}]}\n\n"))
		flusher.Flush()
		w.Write([]byte("data: [DONE]\n\n"))
		flusher.Flush()
	}))
	defer srv.Close()

	p := New("openai-test", Config{BaseURL: srv.URL, Auth: provider.NoAuth()})
	chunks, errs := p.StreamWithMetadata(context.Background(), []types.Message{types.UserMessage("hi")}, "gpt-test", types.DefaultConfig())

	var text string
	var sawFinal bool
	for c := range chunks {
		if c.Kind == types.ChunkText {
			text += c.TextDelta
		}
		if c.IsFinal {
			sawFinal = true
			assert.Equal(t, types.FinishStop, c.FinishReason)
		}
	}
	err, ok := <-errs
	assert.False(t, ok, "unexpected error: %v", err)
	assert.Equal(t, "Hello", text)
	assert.True(t, sawFinal)
}

func TestEmbedBatchPreservesInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		// Backend emits results out of order; EmbedBatch must re-sort by index.
		w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}],"usage":{"prompt_tokens":4,"total_tokens":4}}`))
	}))
	defer srv.Close()

	p := New("openai-test", Config{BaseURL: srv.URL, Auth: provider.NoAuth()})
	results, err := p.EmbedBatch(context.Background(), []string{"first", "second"}, "text-embedding-test")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []float64{1, 0}, results[0].Embeddings[0])
	assert.Equal(t, []float64{0, 1}, results[1].Embeddings[0])
}

func TestEmbedBatchRejectsEmptyInput(t *testing.T) {
	p := New("openai-test", Config{BaseURL: "http://unused", Auth: provider.NoAuth()})
	_, err := p.EmbedBatch(context.Background(), nil, "text-embedding-test")
	require.Error(t, err)
	kind, ok := aierr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, aierr.KindInvalidRequest, kind)
}

func TestCountTokensReportsEstimate(t *testing.T) {
	p := New("openai-test", Config{BaseURL: "http://unused", Auth: provider.NoAuth()})
	tc, err := p.CountTokens(context.Background(), "hello world", "gpt-test")
	require.NoError(t, err)
	assert.True(t, tc.IsEstimate)
	assert.Greater(t, tc.Count, 0)
}

func TestTranscribeSendsMultipartAndParsesText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-test", r.FormValue("model"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"the quick brown fox"}`))
	}))
	defer srv.Close()

	p := New("openai-test", Config{BaseURL: srv.URL, Auth: provider.NoAuth()})
	text, err := p.Transcribe(context.Background(), []byte("fake-audio-bytes"), "audio/wav", "whisper-test")
	require.NoError(t, err)
	assert.Equal(t, "the quick brown fox", text)
}

func TestGenerateImageRejectsOverlongPrompt(t *testing.T) {
	p := New("openai-test", Config{BaseURL: "http://unused", Auth: provider.NoAuth()})
	_, err := p.GenerateImage(context.Background(), strings.Repeat("a", maxImagePromptLen+1), provider.ImageGenerationConfig{})
	require.Error(t, err)
	kind, ok := aierr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, aierr.KindInvalidRequest, kind)
}

func TestGenerateImageDecodesBase64Payload(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4e, 0x47}
	b64 := base64.StdEncoding.EncodeToString(png)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"b64_json":"` + b64 + `","revised_prompt":"a cat"}]}`))
	}))
	defer srv.Close()

	p := New("openai-test", Config{BaseURL: srv.URL, Auth: provider.NoAuth()})
	img, err := p.GenerateImage(context.Background(), "a cat", provider.ImageGenerationConfig{Width: 1024, Height: 1024})
	require.NoError(t, err)
	assert.Equal(t, png, img.Data)
	assert.Equal(t, provider.ImagePNG, img.Format)
	assert.Equal(t, "a cat", img.Metadata.RevisedPrompt)
}

func TestGenerateImageMapsContentPolicyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Your request was rejected by our content policy"}}`))
	}))
	defer srv.Close()

	p := New("openai-test", Config{BaseURL: srv.URL, Auth: provider.NoAuth()})
	_, err := p.GenerateImage(context.Background(), "a cat", provider.ImageGenerationConfig{})
	require.Error(t, err)
	kind, ok := aierr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, aierr.KindContentFilter, kind)
}
