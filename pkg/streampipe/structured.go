package streampipe

import (
	"strings"

	"github.com/conduit-ai/conduit/pkg/content"
	"github.com/conduit-ai/conduit/pkg/jsonpartial"
	"github.com/conduit-ai/conduit/pkg/provider/aierr"
)

// MaxStructuredBufferBytes is the hard cap on buffered text for a
// structured-output stream; exceeding it fails fast with an invalid-request
// AIError rather than growing without bound.
const MaxStructuredBufferBytes = 1 << 20 // 1 MB

// mightChangeParseability is the cheap heuristic gating whether a new chunk
// is worth attempting to (re)parse at all.
func mightChangeParseability(chunk string) bool {
	return strings.ContainsAny(chunk, `{}[]":,`) || strings.ContainsAny(chunk, "0123456789") ||
		strings.ContainsAny(chunk, "tfn-")
}

// StructuredAccumulator wraps a raw text stream with the partial-JSON
// engine, yielding a typed partial snapshot whenever the decoded structure
// changes. One accumulator is single-stream, single-goroutine.
type StructuredAccumulator struct {
	buf           strings.Builder
	lastSnapshot  content.GeneratedContent
	haveSnapshot  bool
	everParsed    bool
	overflowed    bool
}

// NewStructuredAccumulator returns an empty accumulator.
func NewStructuredAccumulator() *StructuredAccumulator {
	return &StructuredAccumulator{}
}

// Feed appends a chunk of raw text and returns a snapshot plus whether it
// should be yielded (true only when it differs structurally from the
// previous yielded snapshot, or is the first successful parse).
func (s *StructuredAccumulator) Feed(chunk string) (content.GeneratedContent, bool, error) {
	if s.overflowed {
		return content.GeneratedContent{}, false, aierr.New(aierr.KindInternal, "", "structured output stream already failed")
	}
	if s.buf.Len()+len(chunk) > MaxStructuredBufferBytes {
		s.overflowed = true
		return content.GeneratedContent{}, false, aierr.New(aierr.KindInvalidRequest, "", "structured output exceeded 1MB buffer cap")
	}
	s.buf.WriteString(chunk)

	if !mightChangeParseability(chunk) {
		return content.GeneratedContent{}, false, nil
	}

	text := s.buf.String()

	// strict -> partial-decode -> repair, in that order.
	if c, err := content.FromJSON(text); err == nil {
		s.everParsed = true
		return s.maybeYield(c)
	}
	if c, _, err := content.FromPartialJSON(text); err == nil {
		s.everParsed = true
		return s.maybeYield(c)
	}
	if repaired, ok := jsonpartial.Repair(text); ok {
		if c, err := content.FromJSON(repaired); err == nil {
			s.everParsed = true
			return s.maybeYield(c)
		}
	}
	return content.GeneratedContent{}, false, nil
}

func (s *StructuredAccumulator) maybeYield(c content.GeneratedContent) (content.GeneratedContent, bool, error) {
	if s.haveSnapshot && c.Equal(s.lastSnapshot) {
		return content.GeneratedContent{}, false, nil
	}
	s.lastSnapshot = c
	s.haveSnapshot = true
	return c, true, nil
}

// Finish signals end-of-stream. It returns an invalid-request AIError when
// the accumulated text is non-empty but no parse ever succeeded.
func (s *StructuredAccumulator) Finish() error {
	if strings.TrimSpace(s.buf.String()) != "" && !s.everParsed {
		return aierr.New(aierr.KindInvalidRequest, "", "structured output stream ended without ever producing parseable JSON")
	}
	return nil
}
