package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chatlens/internal/conv"
)

type Exporter struct {
	overrideDir string
	cwd         string
}

func New(overrideDir string) (*Exporter, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve cwd: %w", err)
	}
	return &Exporter{overrideDir: strings.TrimSpace(overrideDir), cwd: cwd}, nil
}

// Export writes the conversation's Markdown transcript to disk and returns
// the path it wrote.
func (e *Exporter) Export(c conv.Conversation, msgs []conv.Message, now time.Time) (string, error) {
	path := e.outputPath(c, now)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	md := BuildConversationMarkdown(c, msgs, now.UTC())
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

// BuildThreadMarkdown renders the message sequence as Markdown, one role
// heading per turn. Undecodable rows render as fenced text so their
// placeholder stays visible without breaking the document.
func BuildThreadMarkdown(msgs []conv.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		content := strings.TrimSpace(m.Content)

		switch m.Type {
		case conv.MessageHuman:
			b.WriteString("## You\n\n")
			b.WriteString(content + "\n\n")
		case conv.MessageAI:
			b.WriteString("## Assistant\n\n")
			b.WriteString(content + "\n\n")
		default:
			b.WriteString("## Unknown\n\n")
			b.WriteString("```text\n")
			b.WriteString(content + "\n")
			b.WriteString("```\n\n")
		}
	}
	return strings.TrimSpace(b.String()) + "\n"
}

func BuildConversationMarkdown(c conv.Conversation, msgs []conv.Message, now time.Time) string {
	var b strings.Builder
	b.WriteString("# " + c.DisplayName + "\n\n")
	b.WriteString("Exported: " + now.Format(time.RFC3339) + "\n\n")
	b.WriteString("```text\n")
	b.WriteString("session: " + c.SessionID + "\n")
	b.WriteString(fmt.Sprintf("messages: %d\n", len(msgs)))
	b.WriteString("last_activity: " + conv.FormatTime(c.CreatedAt) + "\n")
	b.WriteString("```\n\n")

	transcript := BuildThreadMarkdown(msgs)
	b.WriteString(transcript)
	if !strings.HasSuffix(transcript, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

func (e *Exporter) outputPath(c conv.Conversation, now time.Time) string {
	dir := e.overrideDir
	if dir == "" {
		dir = e.cwd
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.cwd, dir)
	}
	name := fmt.Sprintf("%s-%s.md", safeFileName(c.DisplayName), now.Format("20060102-150405"))
	return filepath.Join(dir, name)
}

func safeFileName(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "conversation"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "-")
	return replacer.Replace(s)
}
