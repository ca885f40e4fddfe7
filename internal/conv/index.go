package conv

import (
	"sort"
	"strings"
)

// BuildIndex collapses the flat row set into exactly one Conversation per
// distinct session id, most recent activity first. The display name comes
// from the session's newest named row, falling back to any other named row,
// else a label synthesized from the id. Rows with equal timestamps keep
// their input order, so callers that fetch with a deterministic tie-break
// (created_at DESC, id DESC) get a stable index.
func BuildIndex(rows []ChatRow) []Conversation {
	bySession := make(map[string]*Conversation, len(rows))
	order := make([]string, 0, len(rows))

	for _, row := range rows {
		name := rowName(row)
		c, ok := bySession[row.SessionID]
		if !ok {
			bySession[row.SessionID] = &Conversation{
				SessionID:   row.SessionID,
				CreatedAt:   row.CreatedAt,
				DisplayName: name,
			}
			order = append(order, row.SessionID)
			continue
		}
		if row.CreatedAt.After(c.CreatedAt) {
			c.CreatedAt = row.CreatedAt
			if name != "" {
				c.DisplayName = name
			}
		}
		if c.DisplayName == "" {
			c.DisplayName = name
		}
	}

	out := make([]Conversation, 0, len(order))
	for _, id := range order {
		c := *bySession[id]
		if c.DisplayName == "" {
			c.DisplayName = SynthesizeName(c.SessionID)
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

func rowName(row ChatRow) string {
	if !row.DisplayName.Valid {
		return ""
	}
	return strings.TrimSpace(row.DisplayName.String)
}

// SynthesizeName labels an unnamed session by its identifier prefix.
func SynthesizeName(sessionID string) string {
	id := strings.TrimSpace(sessionID)
	if len(id) > 8 {
		id = id[:8]
	}
	return "Chat " + id
}

// FilterConversations narrows the list by a case-insensitive substring
// match over display name and session id. The empty query returns the
// input unchanged; the underlying index is never mutated.
func FilterConversations(in []Conversation, query string) []Conversation {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return in
	}
	out := make([]Conversation, 0, len(in))
	for _, c := range in {
		if strings.Contains(strings.ToLower(c.DisplayName), q) ||
			strings.Contains(strings.ToLower(c.SessionID), q) {
			out = append(out, c)
		}
	}
	return out
}
