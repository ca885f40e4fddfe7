package conv

import (
	"encoding/json"
	"strings"
)

// UnreadablePlaceholder stands in for rows whose payload cannot be decoded.
const UnreadablePlaceholder = "[unreadable message]"

type payload struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// DecodeMessage parses a row's message payload into a typed Message. The
// column holds either a JSON object or a JSON string wrapping one (some
// writers double-encode), so both forms are accepted. Anything else
// degrades to an unknown-typed placeholder rather than an error: one bad
// row must not take down the rest of the thread.
func DecodeMessage(row ChatRow) Message {
	msg := Message{
		ID:        row.ID,
		CreatedAt: row.CreatedAt,
		Type:      MessageUnknown,
		Content:   UnreadablePlaceholder,
	}

	p, ok := parsePayload(row.Message)
	if !ok {
		return msg
	}

	switch strings.ToLower(strings.TrimSpace(p.Type)) {
	case "human", "user":
		msg.Type = MessageHuman
	case "ai", "assistant":
		msg.Type = MessageAI
	default:
		msg.Type = MessageUnknown
	}

	msg.Content = p.Content
	if msg.Type == MessageUnknown && strings.TrimSpace(msg.Content) == "" {
		msg.Content = UnreadablePlaceholder
	}
	return msg
}

func parsePayload(raw string) (payload, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return payload{}, false
	}

	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err == nil {
		return p, true
	}

	var inner string
	if err := json.Unmarshal([]byte(raw), &inner); err != nil {
		return payload{}, false
	}
	if err := json.Unmarshal([]byte(inner), &p); err != nil {
		return payload{}, false
	}
	return p, true
}

// BuildThread decodes rows into messages, preserving the row order. Rows
// are expected oldest first.
func BuildThread(rows []ChatRow) []Message {
	out := make([]Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, DecodeMessage(row))
	}
	return out
}

// ThreadsEqual reports whether two message sequences have identical
// content. The UI uses it to skip replacing the displayed thread (and
// losing scroll position) on polls that returned nothing new.
func ThreadsEqual(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID ||
			a[i].Type != b[i].Type ||
			a[i].Content != b[i].Content ||
			!a[i].CreatedAt.Equal(b[i].CreatedAt) {
			return false
		}
	}
	return true
}
