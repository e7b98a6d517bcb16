package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conduit-ai/conduit/pkg/provider/types"
)

type stubGenerator struct {
	chunks []types.GenerationChunk
}

func (s stubGenerator) Generate(ctx context.Context, messages []types.Message, modelID string, cfg types.GenerateConfig) (types.GenerationResult, error) {
	return types.GenerationResult{}, nil
}

func (s stubGenerator) StreamWithMetadata(ctx context.Context, messages []types.Message, modelID string, cfg types.GenerateConfig) (<-chan types.GenerationChunk, <-chan error) {
	out := make(chan types.GenerationChunk, len(s.chunks))
	errCh := make(chan error)
	for _, c := range s.chunks {
		out <- c
	}
	close(out)
	close(errCh)
	return out, errCh
}

func TestStreamExtractsOnlyTextDeltas(t *testing.T) {
	gen := stubGenerator{chunks: []types.GenerationChunk{
		{Kind: types.ChunkText, TextDelta: "Hel"},
		{Kind: types.ChunkToolCallDelta, ToolCallIndex: 0},
		{Kind: types.ChunkText, TextDelta: "lo"},
		{Kind: types.ChunkMetadata, IsFinal: true},
	}}
	out, errs := Stream(context.Background(), gen, nil, "model", types.GenerateConfig{})
	var got string
	for s := range out {
		got += s
	}
	_, ok := <-errs
	assert.False(t, ok)
	assert.Equal(t, "Hello", got)
}

func TestEstimateTokensRoundsUp(t *testing.T) {
	tc := EstimateTokens("abcde")
	assert.True(t, tc.IsEstimate)
	assert.Equal(t, 2, tc.Count)
}

func TestEstimateMessageTokensAddsOverhead(t *testing.T) {
	tc := EstimateMessageTokens("abcd")
	assert.Equal(t, 1+4, tc.Count)
}

func TestNearestSupportedSizePicksMatchingAspectClass(t *testing.T) {
	menu := [][2]int{{1024, 1024}, {1792, 1024}, {1024, 1792}}
	got := NearestSupportedSize(1800, 1000, menu)
	assert.Equal(t, [2]int{1792, 1024}, got)

	got = NearestSupportedSize(900, 1600, menu)
	assert.Equal(t, [2]int{1024, 1792}, got)
}
