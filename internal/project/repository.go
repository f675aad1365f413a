// Package project manages office projects and their sequential codes.
package project

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/scitech-admin-api/internal/database"
)

// sequenceName is the code_sequences row backing project codes.
const sequenceName = "project"

type Project struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	CreatedBy uuid.UUID `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository persists projects.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create allocates the next code and inserts the project in one transaction, so a
// rolled-back insert does not consume a code.
func (r *Repository) Create(ctx context.Context, prefix, title string, createdBy uuid.UUID) (*Project, error) {
	row := &database.Project{
		ID:        uuid.New(),
		Title:     title,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		seq, err := nextValue(ctx, tx, sequenceName)
		if err != nil {
			return err
		}
		row.Code = FormatCode(prefix, seq)

		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert project: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Project{
		ID:        row.ID,
		Code:      row.Code,
		Title:     row.Title,
		CreatedBy: row.CreatedBy,
		CreatedAt: row.CreatedAt,
	}, nil
}

// nextValue increments the named sequence, creating it at 1.
func nextValue(ctx context.Context, db bun.IDB, name string) (int64, error) {
	seq := &database.CodeSequence{Name: name, Value: 1}
	err := db.NewInsert().
		Model(seq).
		On("CONFLICT (name) DO UPDATE").
		Set("value = ?TableAlias.value + 1").
		Returning("value").
		Scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate code: %w", err)
	}
	return seq.Value, nil
}

// FormatCode renders seq as prefix plus at least four digits.
func FormatCode(prefix string, seq int64) string {
	return fmt.Sprintf("%s%04d", strings.TrimSpace(prefix), seq)
}
