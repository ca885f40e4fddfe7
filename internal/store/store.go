package store

import (
	"context"
	"fmt"
	"strings"

	"chatlens/internal/conv"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the client connection to the chat table. It is constructed
// once at startup and closed on shutdown; nothing else owns the handle.
type Store struct {
	db *gorm.DB
}

// Open connects to the row store behind dsn. DSNs with a postgres scheme
// or keyword form talk to the hosted backend; anything else is treated as
// a local SQLite file. The SQLite path also creates the table, since a
// local database starts empty; the hosted table is managed out of band.
func Open(dsn string) (*Store, error) {
	hosted := isPostgresDSN(dsn)

	var dialector gorm.Dialector
	if hosted {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open chat store: %w", err)
	}

	if !hosted {
		if err := db.AutoMigrate(&conv.ChatRow{}); err != nil {
			return nil, fmt.Errorf("migrate chat table: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func isPostgresDSN(dsn string) bool {
	dsn = strings.TrimSpace(dsn)
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("resolve db handle: %w", err)
	}
	return db.Close()
}

// ListRows fetches the columns the conversation index needs, newest first.
// The id tie-break keeps the order deterministic when timestamps collide.
func (s *Store) ListRows(ctx context.Context) ([]conv.ChatRow, error) {
	var rows []conv.ChatRow
	if err := s.db.WithContext(ctx).
		Select("id", "session_id", "created_at", "display_name").
		Order("created_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list chat rows: %w", err)
	}
	return rows, nil
}

// SessionRows fetches every row of one session, oldest first.
func (s *Store) SessionRows(ctx context.Context, sessionID string) ([]conv.ChatRow, error) {
	var rows []conv.ChatRow
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return rows, nil
}

// RenameSession persists a display name across all rows of the session.
// The store has no conversation record, so the name is denormalized; a
// single idempotent UPDATE covers it.
func (s *Store) RenameSession(ctx context.Context, sessionID, name string) error {
	if err := s.db.WithContext(ctx).
		Model(&conv.ChatRow{}).
		Where("session_id = ?", sessionID).
		Update("display_name", name).Error; err != nil {
		return fmt.Errorf("rename session %s: %w", sessionID, err)
	}
	return nil
}
