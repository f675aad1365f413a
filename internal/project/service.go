package project

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/redmonkez12/scitech-admin-api/internal/activity"
)

const maxTitleLength = 200

var (
	ErrTitleRequired = errors.New("title is required")
	ErrTitleTooLong  = errors.New("title must be at most 200 characters")
)

// Store persists projects.
type Store interface {
	Create(ctx context.Context, prefix, title string, createdBy uuid.UUID) (*Project, error)
}

// ActivityRecorder records activity without blocking the caller.
type ActivityRecorder interface {
	RecordAsync(ctx context.Context, e activity.Entry)
}

type Service struct {
	store      Store
	activity   ActivityRecorder
	codePrefix string
}

func NewService(store Store, recorder ActivityRecorder, codePrefix string) *Service {
	return &Service{store: store, activity: recorder, codePrefix: codePrefix}
}

// Create registers a project for actor under the next free code.
func (s *Service) Create(ctx context.Context, actor uuid.UUID, title string) (*Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, ErrTitleTooLong
	}

	p, err := s.store.Create(ctx, s.codePrefix, title, actor)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.activity.RecordAsync(ctx, activity.Entry{
		UserID:        actor,
		Action:        "create",
		ResourceType:  "project",
		ResourceID:    p.ID.String(),
		ResourceTitle: p.Title,
		Details:       map[string]any{"code": p.Code},
	})

	return p, nil
}
