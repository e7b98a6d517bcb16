package anthropiccompat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-ai/conduit/pkg/provider"
	"github.com/conduit-ai/conduit/pkg/provider/types"
)

func TestGenerateNonStreaming(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = buf
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"hi there"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`))
	}))
	defer srv.Close()

	p := New("anthropic-test", Config{BaseURL: srv.URL, Auth: provider.BearerAuth("key")})
	messages := []types.Message{types.SystemMessage("be terse"), types.UserMessage("hi")}
	result, err := p.Generate(context.Background(), messages, "claude-test", types.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "hi there", result.Text)
	assert.Equal(t, types.FinishStop, result.FinishReason)
	assert.Equal(t, 5, result.Usage.TotalTokens)
	assert.Contains(t, string(gotBody), `"system":"be terse"`)
}

func TestGenerateToolUseResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"tool_use","id":"call_1","name":"lookup","input":{"q":"x"}}],"stop_reason":"tool_use","usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	p := New("anthropic-test", Config{BaseURL: srv.URL, Auth: provider.NoAuth()})
	result, err := p.Generate(context.Background(), []types.Message{types.UserMessage("hi")}, "claude-test", types.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "lookup", result.ToolCalls[0].Name)
	assert.Equal(t, types.FinishToolCall, result.FinishReason)
}

func TestStreamWithMetadataAssemblesText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		w.Write([]byte("event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hel\"}}\n\n"))
		flusher.Flush()
		w.Write([]byte("event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"lo\"}}\n\n"))
		flusher.Flush()
		w.Write([]byte("event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":2}}\n\n"))
		flusher.Flush()
	}))
	defer srv.Close()

	p := New("anthropic-test", Config{BaseURL: srv.URL, Auth: provider.NoAuth()})
	chunks, errs := p.StreamWithMetadata(context.Background(), []types.Message{types.UserMessage("hi")}, "claude-test", types.DefaultConfig())

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
