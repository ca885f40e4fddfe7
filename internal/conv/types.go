package conv

import (
	"database/sql"
	"time"
)

type MessageType string

const (
	MessageHuman   MessageType = "human"
	MessageAI      MessageType = "ai"
	MessageUnknown MessageType = "unknown"
)

// ChatRow is one persisted message event. The hosted table is flat: every
// row carries the session id and the denormalized display name.
type ChatRow struct {
	ID          int64          `gorm:"primaryKey;autoIncrement"`
	SessionID   string         `gorm:"type:varchar(128);index;not null"`
	CreatedAt   time.Time      `gorm:"index"`
	DisplayName sql.NullString `gorm:"type:varchar(255)"`
	Message     string         `gorm:"type:text"`
}

func (ChatRow) TableName() string { return "chat_histories" }

// Conversation is the per-session summary shown in the list pane.
// CreatedAt is the newest created_at among the session's rows.
type Conversation struct {
	SessionID   string
	CreatedAt   time.Time
	DisplayName string
}

// Message is one decoded thread entry.
type Message struct {
	ID        int64
	Type      MessageType
	Content   string
	CreatedAt time.Time
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.Local().Format("2006-01-02 15:04")
}
