// Package types holds the value model shared by every conduit capability:
// messages, generation configuration, results, chunks, tools, and usage.
package types

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentPart is one piece of a message's content. A message's content is
// either a plain string (represented as a single TextPart) or an ordered
// list of parts mixing text, image, audio, and blob references.
type ContentPart interface {
	PartType() string
}

// TextPart is literal text content.
type TextPart struct {
	Text string
}

func (TextPart) PartType() string { return "text" }

// ImagePart references image data, either inline or by URL.
type ImagePart struct {
	Data     []byte
	MimeType string
	URL      string
}

func (ImagePart) PartType() string { return "image" }

// AudioPart references audio data, either inline or by URL.
type AudioPart struct {
	Data     []byte
	MimeType string
	URL      string
}

func (AudioPart) PartType() string { return "audio" }

// BlobPart is an opaque typed byte blob (e.g. a document) that doesn't fit
// the text/image/audio categories.
type BlobPart struct {
	Data     []byte
	MimeType string
	Filename string
}

func (BlobPart) PartType() string { return "blob" }

// ToolCallPart records a tool call the assistant made, so it can be replayed
// in message history (e.g. alongside reasoning content the provider wants
// echoed back).
type ToolCallPart struct {
	ToolCall ToolCall
}

func (ToolCallPart) PartType() string { return "tool-call" }

// ToolResultPart carries the result of a tool invocation back to the model.
type ToolResultPart struct {
	ToolCallID string
	ToolName   string
	Content    string
	IsError    bool
}

func (ToolResultPart) PartType() string { return "tool-result" }

// Message is a single turn in a conversation. Content is never logically
// empty for user/assistant turns, except transiently while a streamed
// assistant turn is still being assembled (an empty string is a valid
// placeholder only in that window).
type Message struct {
	ID        string
	Role      Role
	Content   []ContentPart
	Timestamp time.Time
	Metadata  map[string]string
}

// Text returns the concatenation of all text parts, which is the common
// case for simple conversations.
func (m Message) Text() string {
	var out string
	for _, p := range m.Content {
		if t, ok := p.(TextPart); ok {
			out += t.Text
		}
	}
	return out
}

// IsEmpty reports whether the message has no content parts, or only
// empty text parts (whitespace-only text counts as content).
func (m Message) IsEmpty() bool {
	for _, p := range m.Content {
		switch v := p.(type) {
		case TextPart:
			if v.Text != "" {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// NewTextMessage builds a message with a single text content part.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentPart{TextPart{Text: text}}}
}

// SystemMessage builds a system message.
func SystemMessage(text string) Message { return NewTextMessage(RoleSystem, text) }

// UserMessage builds a user message.
func UserMessage(text string) Message { return NewTextMessage(RoleUser, text) }

// AssistantMessage builds an assistant message.
func AssistantMessage(text string) Message { return NewTextMessage(RoleAssistant, text) }

// ToolMessage builds a tool-result message for the given call ID.
func ToolMessage(toolCallID, toolName, content string) Message {
	return Message{
		Role: RoleTool,
		Content: []ContentPart{
			ToolResultPart{ToolCallID: toolCallID, ToolName: toolName, Content: content},
		},
	}
}
