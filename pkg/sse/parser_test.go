package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func feedLines(p *Parser, lines []string) []Event {
	var out []Event
	for _, l := range lines {
		if ev, ok := p.Feed(l); ok {
			out = append(out, ev)
		}
	}
	if ev, ok := p.Flush(); ok {
		out = append(out, ev)
	}
	return out
}

func TestIDPersistsAcrossEvents(t *testing.T) {
	p := NewParser()
	events := feedLines(p, []string{"id:1", "data:first", "", "data:second", ""})
	assert.Len(t, events, 2)
	assert.Equal(t, "1", events[0].ID)
	assert.Equal(t, "first", events[0].Data)
	assert.Equal(t, "1", events[1].ID)
	assert.Equal(t, "second", events[1].Data)
	assert.Equal(t, "message", events[1].Event)
}

func TestRetryOnlyEventSuppressed(t *testing.T) {
	p := NewParser()
	events := feedLines(p, []string{"retry:1000", ""})
	assert.Empty(t, events)
}

func TestEmptyDataDispatches(t *testing.T) {
	p := NewParser()
	events := feedLines(p, []string{"data:", ""})
	assert.Len(t, events, 1)
	assert.Equal(t, "", events[0].Data)
}

func TestCommentsAndUnknownFieldsIgnored(t *testing.T) {
	p := NewParser()
	events := feedLines(p, []string{":this is a comment", "foo:bar", "data:x", ""})
	assert.Len(t, events, 1)
	assert.Equal(t, "x", events[0].Data)
}

func TestLineBufferFramingAcrossTerminators(t *testing.T) {
	for _, term := range []string{"\n", "\r\n", "\r"} {
		lb := NewLineBuffer(0)
		lb.Append([]byte("data:hello" + term + "data:world" + term))
		var lines []string
		for {
			line, ok, overflow := lb.Next()
			assert.False(t, overflow)
			if !ok {
				break
			}
			lines = append(lines, line)
		}
		assert.Equal(t, []string{"data:hello", "data:world"}, lines, "terminator %q", term)
	}
}

func TestLineBufferSplitCRLF(t *testing.T) {
	lb := NewLineBuffer(0)
	lb.Append([]byte("data:hello\r"))
	line, ok, _ := lb.Next()
	assert.True(t, ok, "a trailing CR ends the line")
	assert.Equal(t, "data:hello", line)
	lb.Append([]byte("\n"))
	_, ok, _ = lb.Next()
	assert.False(t, ok, "the LF completing the CRLF must not yield an empty line")
}
