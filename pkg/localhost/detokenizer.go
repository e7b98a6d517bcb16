package localhost

import "unicode/utf8"

// TokenDecoder turns accumulated token ids into decoded text. A real
// engine's vocabulary decode function satisfies this trivially.
type TokenDecoder interface {
	Decode(ids []int) string
}

// StreamingDetokenizer is a "naive" detokenizer: it appends token ids and
// only reveals text once decoding the full accumulated sequence yields
// strictly more text than was already revealed, avoiding emission of a
// partial multi-byte rune or partial BPE merge. Single-stream, single-
// goroutine use only.
type StreamingDetokenizer struct {
	decoder  TokenDecoder
	ids      []int
	revealed string
}

// NewStreamingDetokenizer returns a detokenizer backed by decoder.
func NewStreamingDetokenizer(decoder TokenDecoder) *StreamingDetokenizer {
	return &StreamingDetokenizer{decoder: decoder}
}

// Append adds one token id and returns the newly revealed text delta, if
// any. An empty return means the decode didn't grow (e.g. mid multi-byte
// rune), so nothing is yielded yet.
func (d *StreamingDetokenizer) Append(id int) string {
	d.ids = append(d.ids, id)
	full := d.decoder.Decode(d.ids)

	// Never reveal a trailing incomplete UTF-8 sequence even if the
	// decoder itself returns one (defensive against decoders that don't
	// guarantee valid boundaries).
	full = trimIncompleteRune(full)

	if len(full) <= len(d.revealed) || full[:len(d.revealed)] != d.revealed {
		// Decode failed to grow on the known-good prefix; nothing new is
		// safe to reveal yet.
		return ""
	}
	delta := full[len(d.revealed):]
	d.revealed = full
	return delta
}

// Remainder returns any buffered-but-unrevealed text at stream end (e.g. a
// deliberately withheld trailing partial sequence forced out once no more
// tokens are coming).
func (d *StreamingDetokenizer) Remainder() string {
	full := d.decoder.Decode(d.ids)
	if len(full) <= len(d.revealed) {
		return ""
	}
	return full[len(d.revealed):]
}

func trimIncompleteRune(s string) string {
	if s == "" {
		return s
	}
	if r, size := utf8.DecodeLastRuneInString(s); r == utf8.RuneError && size <= 1 {
		return s[:len(s)-size]
	}
	return s
}
