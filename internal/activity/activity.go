package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/scitech-admin-api/internal/database"
	"github.com/redmonkez12/scitech-admin-api/internal/logging"
)

// Entry is one activity-log tuple.
type Entry struct {
	UserID        uuid.UUID
	Action        string
	ResourceType  string
	ResourceID    string
	ResourceTitle string
	Details       map[string]any
}

// Sink persists entries.
type Sink interface {
	Insert(ctx context.Context, e Entry, at time.Time) error
}

// Repository writes entries to user_logs.
type Repository struct {
	db bun.IDB
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, e Entry, at time.Time) error {
	row := &database.UserLog{
		ID:            uuid.New(),
		UserID:        e.UserID,
		Action:        e.Action,
		ResourceType:  e.ResourceType,
		ResourceID:    optional(e.ResourceID),
		ResourceTitle: optional(e.ResourceTitle),
		CreatedAt:     at.UTC(),
	}
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("failed to encode details: %w", err)
		}
		row.Details = raw
	}

	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert user log: %w", err)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Recorder writes entries best-effort: failures are logged and dropped.
type Recorder struct {
	sink   Sink
	logger *logging.Logger
	now    func() time.Time
}

func NewRecorder(sink Sink, logger *logging.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger, now: time.Now}
}

// Record never returns an error and never panics into the caller.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("activity log panicked", "action", e.Action, "panic", p)
		}
	}()

	if err := r.sink.Insert(ctx, e, r.now()); err != nil {
		r.logger.Warn("failed to record activity",
			"user_id", e.UserID,
			"action", e.Action,
			"resource_type", e.ResourceType,
			"error", err,
		)
	}
}

// RecordAsync runs Record on its own goroutine with a context detached from ctx's
// cancellation, so a finished request does not abort the write.
func (r *Recorder) RecordAsync(ctx context.Context, e Entry) {
	go r.Record(context.WithoutCancel(ctx), e)
}
