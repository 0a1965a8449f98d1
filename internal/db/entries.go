package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const entryColumns = `id, user_id, section_id, variant_id, position, content, created_at, updated_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var raw []byte
	if err := row.Scan(&e.ID, &e.UserID, &e.SectionID, &e.VariantID, &e.Position, &raw, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	content, err := decodeContent(raw)
	if err != nil {
		return nil, err
	}
	e.Content = content
	return &e, nil
}

// ListEntries returns a user's entries for a section in display order.
// A nil variantID selects the base CV.
func (db *DB) ListEntries(ctx context.Context, userID uuid.UUID, sectionID string, variantID *uuid.UUID) ([]Entry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM cv_entries
		 WHERE user_id = $1 AND section_id = $2 AND variant_id IS NOT DISTINCT FROM $3
		 ORDER BY position, created_at`,
		userID, sectionID, variantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s entries: %w", sectionID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// GetEntry returns one of the user's entries, or nil if it does not exist.
func (db *DB) GetEntry(ctx context.Context, userID, entryID uuid.UUID) (*Entry, error) {
	e, err := scanEntry(db.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM cv_entries WHERE id = $1 AND user_id = $2`,
		entryID, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get entry %s: %w", entryID, err)
	}
	return e, nil
}

// CreateEntry inserts e at the end of its section and sets its ID,
// position and timestamps.
func (db *DB) CreateEntry(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	content, err := encodeContent(e.Content)
	if err != nil {
		return err
	}
	err = db.pool.QueryRow(ctx,
		`INSERT INTO cv_entries (id, user_id, section_id, variant_id, position, content)
		 VALUES ($1, $2, $3, $4,
		   (SELECT COALESCE(MAX(position) + 1, 0) FROM cv_entries
		    WHERE user_id = $2 AND section_id = $3 AND variant_id IS NOT DISTINCT FROM $4),
		   $5)
		 RETURNING position, created_at, updated_at`,
		e.ID, e.UserID, e.SectionID, e.VariantID, content,
	).Scan(&e.Position, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create %s entry: %w", e.SectionID, err)
	}
	return nil
}

// UpdateEntry replaces the content of an existing entry. It returns false
// if the entry does not belong to the user.
func (db *DB) UpdateEntry(ctx context.Context, e *Entry) (bool, error) {
	content, err := encodeContent(e.Content)
	if err != nil {
		return false, err
	}
	err = db.pool.QueryRow(ctx,
		`UPDATE cv_entries SET content = $1, updated_at = NOW()
		 WHERE id = $2 AND user_id = $3
		 RETURNING updated_at`,
		content, e.ID, e.UserID,
	).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to update entry %s: %w", e.ID, err)
	}
	return true, nil
}

// DeleteEntry removes an entry. It returns false if nothing was deleted.
func (db *DB) DeleteEntry(ctx context.Context, userID, entryID uuid.UUID) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM cv_entries WHERE id = $1 AND user_id = $2`,
		entryID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete entry %s: %w", entryID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReorderEntries sets positions to the order of ids.
func (db *DB) ReorderEntries(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, id := range ids {
		if _, err := tx.Exec(ctx,
			`UPDATE cv_entries SET position = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3`,
			i, id, userID,
		); err != nil {
			return fmt.Errorf("failed to reorder entry %s: %w", id, err)
		}
	}
	return tx.Commit(ctx)
}
