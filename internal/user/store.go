// Package user provides the narrow slice of the user profile store this
// server touches: existence checks at connect time and last-seen updates on
// disconnect. The rest of the profile model is owned elsewhere.
package user

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store reads and updates user profile records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a user store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Exists reports whether a user record with the given id exists.
func (s *Store) Exists(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("user: exists: %w", err)
	}
	return exists, nil
}

// UpdateLastSeen records the moment a user's connection closed. Updating an
// unknown user is not an error; zero rows simply match.
func (s *Store) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	const query = `UPDATE users SET last_seen = $2 WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query, userID, lastSeen); err != nil {
		return fmt.Errorf("user: update last seen: %w", err)
	}
	return nil
}
