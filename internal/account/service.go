// Package account holds administrator operations on other users' accounts.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/redmonkez12/scitech-admin-api/internal/activity"
	"github.com/redmonkez12/scitech-admin-api/internal/user"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrSelfApproval = errors.New("administrators cannot change their own approval")
)

// ApprovalStore flips the approval flag of an account.
type ApprovalStore interface {
	SetApproval(ctx context.Context, id uuid.UUID, approved bool) (*user.User, error)
}

// ActivityRecorder records activity without blocking the caller.
type ActivityRecorder interface {
	RecordAsync(ctx context.Context, e activity.Entry)
}

type Service struct {
	users    ApprovalStore
	activity ActivityRecorder
}

func NewService(users ApprovalStore, recorder ActivityRecorder) *Service {
	return &Service{users: users, activity: recorder}
}

// SetApproval grants or revokes login access for target on behalf of actor.
func (s *Service) SetApproval(ctx context.Context, actor, target uuid.UUID, approved bool) (*user.User, error) {
	if actor == target {
		return nil, ErrSelfApproval
	}

	updated, err := s.users.SetApproval(ctx, target, approved)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to set approval: %w", err)
	}

	action := "approve"
	if !approved {
		action = "revoke"
	}
	s.activity.RecordAsync(ctx, activity.Entry{
		UserID:        actor,
		Action:        action,
		ResourceType:  "user",
		ResourceID:    updated.ID.String(),
		ResourceTitle: updated.Email,
	})

	return updated, nil
}
