package normalize

import (
	"fmt"
	"strings"

	"github.com/dshills/flowedit/pkg/flow"
)

// FallbackRole is assigned to messages whose role is blank
const FallbackRole = "user"

// Content part kinds
const (
	PartText  = "text"
	PartImage = "image_url"
)

// Message is the canonical form of a language-model message
type Message struct {
	Role    string
	Content []ContentPart
}

// ContentPart is exactly one of a text part or an image reference
type ContentPart struct {
	Type string
	Text string
	URL  string
}

// RenormalizeMessages rewrites a role/content message list into canonical form on every edit.
// A missing field stays missing.
func RenormalizeMessages(field string) Rule {
	return func(in Input, out flow.Config) {
		v, ok := out[field]
		if !ok {
			return
		}
		out[field] = EncodeMessages(DecodeMessages(v))
	}
}

// NormalizeMessages is the standalone form of RenormalizeMessages
func NormalizeMessages(v interface{}) []interface{} {
	return EncodeMessages(DecodeMessages(v))
}

// DecodeMessages reads any tolerated message list shape.
//
// Accepted shapes per message: a plain string (a user message), or an object with
// role and content. Content may be a string, a single part object, or a list of
// parts. Parts may be strings, {type:"text", text}, {type:"image_url", url},
// the legacy {imageUrl} and {image_url: {url}} / {image_url: "..."} forms, or
// untagged objects whose kind is inferred from the fields present.
// Anything else is skipped.
func DecodeMessages(v interface{}) []Message {
	if s, ok := v.(string); ok {
		if strings.TrimSpace(s) == "" {
			return []Message{}
		}
		return []Message{{Role: FallbackRole, Content: []ContentPart{{Type: PartText, Text: s}}}}
	}

	items, ok := flow.AsSlice(v)
	if !ok {
		return []Message{}
	}

	out := make([]Message, 0, len(items))
	for _, item := range items {
		switch msg := item.(type) {
		case string:
			out = append(out, Message{Role: FallbackRole, Content: decodeContent(msg)})
		case Message:
			out = append(out, canonicalMessage(msg))
		default:
			if m, ok := flow.AsMap(item); ok {
				role, _ := m["role"].(string)
				out = append(out, Message{Role: normalizeRole(role), Content: decodeContent(m["content"])})
			}
		}
	}
	return out
}

// EncodeMessages turns canonical messages back into configuration values
func EncodeMessages(msgs []Message) []interface{} {
	out := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		content := make([]interface{}, 0, len(m.Content))
		for _, p := range m.Content {
			content = append(content, p.value())
		}
		out = append(out, map[string]interface{}{
			"role":    m.Role,
			"content": content,
		})
	}
	return out
}

func (p ContentPart) value() map[string]interface{} {
	if p.Type == PartImage {
		return map[string]interface{}{"type": PartImage, "url": p.URL}
	}
	return map[string]interface{}{"type": PartText, "text": p.Text}
}

func canonicalMessage(m Message) Message {
	parts := make([]ContentPart, 0, len(m.Content))
	for _, p := range m.Content {
		if p.Type == PartImage {
			parts = append(parts, ContentPart{Type: PartImage, URL: p.URL})
		} else {
			parts = append(parts, ContentPart{Type: PartText, Text: p.Text})
		}
	}
	return Message{Role: normalizeRole(m.Role), Content: parts}
}

func normalizeRole(role string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		return FallbackRole
	}
	return role
}

func decodeContent(v interface{}) []ContentPart {
	switch c := v.(type) {
	case nil:
		return []ContentPart{}
	case string:
		if c == "" {
			return []ContentPart{}
		}
		return []ContentPart{{Type: PartText, Text: c}}
	}
	if m, ok := flow.AsMap(v); ok {
		return []ContentPart{decodePart(m)}
	}

	items, ok := flow.AsSlice(v)
	if !ok {
		return []ContentPart{}
	}
	parts := make([]ContentPart, 0, len(items))
	for _, item := range items {
		switch p := item.(type) {
		case string:
			parts = append(parts, ContentPart{Type: PartText, Text: p})
		case ContentPart:
			parts = append(parts, canonicalMessage(Message{Content: []ContentPart{p}}).Content[0])
		default:
			if m, ok := flow.AsMap(item); ok {
				parts = append(parts, decodePart(m))
			}
		}
	}
	return parts
}

// decodePart classifies one part object. An explicit tag wins; without one the
// part is text when it carries a non-null text field, an image when it carries
// any url field, and an empty text part otherwise.
func decodePart(m map[string]interface{}) ContentPart {
	tag, _ := m["type"].(string)
	switch tag {
	case PartText:
		return ContentPart{Type: PartText, Text: textOf(m)}
	case PartImage, "image":
		return ContentPart{Type: PartImage, URL: urlOf(m)}
	}

	if t, hasText := m["text"]; hasText && t != nil {
		return ContentPart{Type: PartText, Text: textOf(m)}
	}
	if url := urlOf(m); url != "" {
		return ContentPart{Type: PartImage, URL: url}
	}
	return ContentPart{Type: PartText}
}

func textOf(m map[string]interface{}) string {
	switch t := m["text"].(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// urlOf resolves the image reference from the current and legacy field names
func urlOf(m map[string]interface{}) string {
	if url, ok := m["url"].(string); ok && url != "" {
		return url
	}
	if url, ok := m["imageUrl"].(string); ok && url != "" {
		return url
	}
	if legacy, ok := m["image_url"].(string); ok {
		return legacy
	}
	if legacy, ok := flow.AsMap(m["image_url"]); ok {
		url, _ := legacy["url"].(string)
		return url
	}
	return ""
}
