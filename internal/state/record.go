package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"simplej/internal/errors"
)

// Record is the durable state of one project. An empty string means the id
// is absent.
type Record struct {
	ImageID     string
	ContainerID string
}

// HasImage reports whether an image id is recorded
func (r Record) HasImage() bool {
	return r.ImageID != ""
}

// HasContainer reports whether a container id is recorded
func (r Record) HasContainer() bool {
	return r.ContainerID != ""
}

// Field names a clearable record field
type Field string

const (
	FieldImageID     Field = "image_id"
	FieldContainerID Field = "container_id"
)

type recordRow struct {
	ImageID     sql.NullString `db:"image_id"`
	ContainerID sql.NullString `db:"container_id"`
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// checkTransition enforces that a container id is only ever recorded while an
// image id is, or was, present.
func checkTransition(before, after Record) error {
	if after.ContainerID == "" || after.ContainerID == before.ContainerID {
		return nil
	}
	if after.ImageID == "" {
		return errors.StateInvariantViolation("container id recorded without an image id")
	}
	return nil
}

func loadRecord(ctx context.Context, q sqlx.QueryerContext) (Record, error) {
	var row recordRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT image_id, container_id FROM project_record WHERE id = 1`)
	if err == sql.ErrNoRows {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, errors.StateReadError(err)
	}
	return Record{ImageID: row.ImageID.String, ContainerID: row.ContainerID.String}, nil
}

func saveRecord(ctx context.Context, e sqlx.ExecerContext, r Record) error {
	query := `
		INSERT INTO project_record (id, image_id, container_id, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			image_id = excluded.image_id,
			container_id = excluded.container_id,
			updated_at = excluded.updated_at
	`
	if _, err := e.ExecContext(ctx, query, nullable(r.ImageID), nullable(r.ContainerID), time.Now().UTC()); err != nil {
		return errors.StateWriteError(err)
	}
	return nil
}

// Load returns the persisted record. A project with nothing recorded yields
// an empty record, never an error.
func (s *Store) Load(ctx context.Context) (Record, error) {
	return loadRecord(ctx, s.db)
}

// Save overwrites the persisted record
func (s *Store) Save(ctx context.Context, r Record) error {
	return s.Update(ctx, func(rec *Record) error {
		*rec = r
		return nil
	})
}

// Update loads the record, applies fn and saves the result in one exclusive
// transaction. When fn returns an error nothing is written.
func (s *Store) Update(ctx context.Context, fn func(*Record) error) error {
	return s.transaction(ctx, func(tx *sqlx.Tx) error {
		before, err := loadRecord(ctx, tx)
		if err != nil {
			return err
		}

		after := before
		if err := fn(&after); err != nil {
			return err
		}

		if after == before {
			return nil
		}

		if err := checkTransition(before, after); err != nil {
			return err
		}

		return saveRecord(ctx, tx, after)
	})
}

// ClearField removes field from the record and returns its previous value.
// An empty previous value means there was nothing to remove.
func (s *Store) ClearField(ctx context.Context, field Field) (string, error) {
	var previous string
	err := s.Update(ctx, func(rec *Record) error {
		switch field {
		case FieldImageID:
			previous = rec.ImageID
			rec.ImageID = ""
		case FieldContainerID:
			previous = rec.ContainerID
			rec.ContainerID = ""
		default:
			return fmt.Errorf("unknown record field %q", field)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}
