// Package streampipe assembles provider-raw streaming deltas into
// GenerationChunks, accumulates in-progress tool calls, and tracks metadata
// (token/sec, usage) across a stream's lifetime.
package streampipe

import (
	"time"

	"github.com/conduit-ai/conduit/pkg/provider/types"
)

// ToolCallAccumulator assembles tool-call argument fragments keyed by
// index, across however many deltas a backend splits them into.
type ToolCallAccumulator struct {
	order []int
	calls map[int]*types.ToolCall
}

// NewToolCallAccumulator returns an empty accumulator.
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{calls: map[int]*types.ToolCall{}}
}

// Append adds a delta fragment for the tool call at index. id and name are
// only meaningful on the first delta for that index; later deltas may pass
// them empty.
func (a *ToolCallAccumulator) Append(index int, id, name, argsDelta string) {
	c, ok := a.calls[index]
	if !ok {
		c = &types.ToolCall{}
		a.calls[index] = c
		a.order = append(a.order, index)
	}
	if id != "" {
		c.ID = id
	}
	if name != "" {
		c.Name = name
	}
	c.Arguments += argsDelta
}

// Completed returns all accumulated tool calls in the order their index
// was first seen.
func (a *ToolCallAccumulator) Completed() []types.ToolCall {
	out := make([]types.ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		out = append(out, *a.calls[idx])
	}
	return out
}

// MetadataAggregator tracks rolling token/sec and cumulative usage across a
// stream's lifetime.
type MetadataAggregator struct {
	firstChunkAt   time.Time
	cumulativeToks int
	now            func() time.Time
}

// NewMetadataAggregator returns an aggregator using the real clock. Tests
// may construct one directly with a fixed `now` field via NewMetadataAggregatorWithClock.
func NewMetadataAggregator() *MetadataAggregator {
	return &MetadataAggregator{now: time.Now}
}

// NewMetadataAggregatorWithClock allows deterministic testing of
// tokens-per-second.
func NewMetadataAggregatorWithClock(now func() time.Time) *MetadataAggregator {
	return &MetadataAggregator{now: now}
}

// RecordTokens registers n additional tokens delivered at the current clock
// time and returns the rolling tokens-per-second figure.
func (m *MetadataAggregator) RecordTokens(n int) float64 {
	now := m.now()
	if m.firstChunkAt.IsZero() {
		m.firstChunkAt = now
	}
	m.cumulativeToks += n
	elapsed := now.Sub(m.firstChunkAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.cumulativeToks) / elapsed
}

// Assembler converts a sequence of backend-neutral deltas into
// GenerationChunks, enforcing the single-terminal-chunk invariant.
type Assembler struct {
	toolCalls *ToolCallAccumulator
	meta      *MetadataAggregator
	emitted   bool
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{toolCalls: NewToolCallAccumulator(), meta: NewMetadataAggregator()}
}

// TextDelta emits a text chunk.
func (a *Assembler) TextDelta(text string) types.GenerationChunk {
	tps := a.meta.RecordTokens(estimateTokenCount(text))
	return types.GenerationChunk{Kind: types.ChunkText, TextDelta: text, Usage: types.Usage{CompletionTokens: int(tps)}}
}

// ToolCallDelta records a tool-call fragment and emits the corresponding
// chunk.
func (a *Assembler) ToolCallDelta(index int, id, name, argsDelta string) types.GenerationChunk {
	a.toolCalls.Append(index, id, name, argsDelta)
	return types.GenerationChunk{
		Kind:           types.ChunkToolCallDelta,
		ToolCallIndex:  index,
		ToolCallID:     id,
		ToolCallName:   name,
		ArgumentsDelta: argsDelta,
	}
}

// Final emits the single terminal chunk. Calling Final more than once
// panics, enforcing the at-most-one-terminal-chunk invariant at the
// producer rather than leaving it to callers to police.
func (a *Assembler) Final(reason types.FinishReason, usage types.Usage, warnings []types.Warning) types.GenerationChunk {
	if a.emitted {
		panic("streampipe: Final called more than once on the same Assembler")
	}
	a.emitted = true
	return types.GenerationChunk{
		Kind:         types.ChunkMetadata,
		IsFinal:      true,
		FinishReason: reason,
		Usage:        usage,
		Warnings:     warnings,
	}
}

// CompletedToolCalls returns all tool calls assembled so far.
func (a *Assembler) CompletedToolCalls() []types.ToolCall {
	return a.toolCalls.Completed()
}

func estimateTokenCount(s string) int {
	n := len(s) / 4
	if n == 0 && s != "" {
		n = 1
	}
	return n
}
