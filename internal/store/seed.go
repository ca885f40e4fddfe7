package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"chatlens/internal/conv"

	"github.com/google/uuid"
)

var seedTurns = []struct {
	role    string
	content string
}{
	{"human", "Hey, can you walk me through setting this up?"},
	{"ai", "Sure. Start by pointing the `-dsn` flag at your database, then the table is picked up automatically."},
	{"human", "And if the table is empty?"},
	{"ai", "An empty table just renders an empty list; rows appear on the next poll once something writes them."},
}

// Seed inserts n demo conversations so the UI has something to show
// against a fresh local database.
func Seed(ctx context.Context, s *Store, n int) error {
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		sessionID := uuid.NewString()
		base := now.Add(-time.Duration(i) * time.Hour)
		for j, turn := range seedTurns {
			payload, err := json.Marshal(map[string]string{
				"type":    turn.role,
				"content": turn.content,
			})
			if err != nil {
				return fmt.Errorf("encode seed payload: %w", err)
			}
			row := conv.ChatRow{
				SessionID: sessionID,
				CreatedAt: base.Add(time.Duration(j) * time.Minute),
				Message:   string(payload),
			}
			if i == 0 && j == 0 {
				row.DisplayName = sql.NullString{String: "Getting started", Valid: true}
			}
			if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
				return fmt.Errorf("insert seed row: %w", err)
			}
		}
	}
	return nil
}
