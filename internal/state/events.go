package state

import (
	"context"
	"time"

	"github.com/google/uuid"

	"simplej/internal/errors"
)

// Event is one entry of the project's command history
type Event struct {
	ID        string    `db:"id" yaml:"-"`
	Operation string    `db:"operation" yaml:"operation"`
	Detail    string    `db:"detail" yaml:"detail,omitempty"`
	CreatedAt time.Time `db:"created_at" yaml:"at"`
}

// AppendEvent records that operation completed
func (s *Store) AppendEvent(ctx context.Context, operation, detail string) error {
	query := `INSERT INTO events (id, operation, detail, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, uuid.New().String(), operation, detail, time.Now().UTC()); err != nil {
		return errors.StateWriteError(err)
	}
	return nil
}

// Events returns the most recent events, newest first
func (s *Store) Events(ctx context.Context, limit int) ([]Event, error) {
	query := `
		SELECT id, operation, detail, created_at
		FROM events
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	var events []Event
	if err := s.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, errors.StateReadError(err)
	}
	return events, nil
}
