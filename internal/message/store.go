// Package message provides PostgreSQL-backed storage for direct messages.
// Messages are append-only: once persisted, the only mutation ever applied
// is flipping the is_read flag through the batch MarkRead path.
package message

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Message is a direct message as constructed at send time. CreatedAt is
// assigned by the sender's routing operation, not by the store.
type Message struct {
	SenderID   string
	ReceiverID string
	Text       string // optional
	Image      string // optional reference/URL
	CreatedAt  time.Time
	IsRead     bool
}

// StoredMessage is a Message after persistence, carrying the store-assigned
// unique id.
type StoredMessage struct {
	ID string
	Message
}

// Store manages messages in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a message store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create persists a message and returns the stored copy with its assigned
// id. Empty text/image are stored as NULL.
func (s *Store) Create(ctx context.Context, m *Message) (*StoredMessage, error) {
	id := uuid.New().String()

	const query = `
		INSERT INTO messages (id, sender_id, receiver_id, text, image, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		id,
		m.SenderID,
		m.ReceiverID,
		nullable(m.Text),
		nullable(m.Image),
		m.IsRead,
		m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("message: insert: %w", err)
	}

	return &StoredMessage{ID: id, Message: *m}, nil
}

// MarkRead sets is_read=true for every message whose id is in ids and
// returns the number of rows actually updated. Stale or unknown ids simply
// do not count toward the result; they are not an error.
func (s *Store) MarkRead(ctx context.Context, ids []string) (int64, error) {
	const query = `
		UPDATE messages
		SET is_read = TRUE
		WHERE id = ANY($1)`

	res, err := s.db.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("message: mark read: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("message: rows affected: %w", err)
	}
	return count, nil
}

// Get retrieves a stored message by id. Returns nil if not found.
func (s *Store) Get(ctx context.Context, id string) (*StoredMessage, error) {
	const query = `
		SELECT id, sender_id, receiver_id, COALESCE(text, ''), COALESCE(image, ''), is_read, created_at
		FROM messages
		WHERE id = $1`

	var m StoredMessage
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.SenderID,
		&m.ReceiverID,
		&m.Text,
		&m.Image,
		&m.IsRead,
		&m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("message: get: %w", err)
	}
	return &m, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
