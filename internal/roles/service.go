// Package roles implements the role transition authority: the validation
// rules deciding whether a role change is permitted, the transactional state
// change applying it, and the append-only history recording it.
package roles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rolewarden/rolewarden/internal/domain"
	"github.com/rolewarden/rolewarden/internal/pkg/ctxlog"
)

// EventPublisher publishes domain events to interested sinks, best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any)
}

// EventUserRoleChanged is emitted after a role change commits.
const EventUserRoleChanged = "user_role_changed"

// Service is the role transition authority. It is stateless; all state lives
// in the store behind Repository.
type Service struct {
	repo      Repository
	publisher EventPublisher
}

// NewService creates a role service. publisher may be nil.
func NewService(repo Repository, publisher EventPublisher) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
	}
}

// ParseRole resolves a canonical role name to its Role. Matching is a
// case-sensitive exact match: callers must supply exact canonical names.
func ParseRole(value string) (domain.Role, bool) {
	for _, role := range domain.Roles() {
		if string(role) == value {
			return role, true
		}
	}
	return "", false
}

// AvailableRoles returns the canonical role names in declaration order.
func (s *Service) AvailableRoles() []string {
	roles := domain.Roles()
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return names
}

// ValidationResult is the outcome of ValidateRoleChange. Reason is a
// human-readable explanation whether or not the change is valid.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

// ValidateRoleChange checks whether changing userID's role to newRole on
// behalf of changedByID is permitted. It is read-only and applies its rules
// in order, short-circuiting at the first failure. A non-nil error means the
// store could not be consulted, not that the change is invalid.
func (s *Service) ValidateRoleChange(ctx context.Context, userID, newRole, changedByID string) (ValidationResult, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return ValidationResult{Reason: fmt.Sprintf("User with ID %s not found", userID)}, nil
	}
	if err != nil {
		return ValidationResult{}, fmt.Errorf("load subject user: %w", err)
	}

	actor, err := s.repo.GetUserByID(ctx, changedByID)
	if errors.Is(err, ErrUserNotFound) {
		return ValidationResult{Reason: fmt.Sprintf("User with ID %s not found", changedByID)}, nil
	}
	if err != nil {
		return ValidationResult{}, fmt.Errorf("load acting user: %w", err)
	}

	role, ok := ParseRole(newRole)
	if !ok {
		return ValidationResult{Reason: fmt.Sprintf("Invalid role: %s", newRole)}, nil
	}

	if user.Role == role {
		return ValidationResult{Reason: fmt.Sprintf("User already has the role %s", newRole)}, nil
	}

	if actor.Role != domain.RoleAdmin {
		return ValidationResult{Reason: "Only administrators can change user roles"}, nil
	}

	if user.Role == domain.RoleAdmin && role != domain.RoleAdmin {
		// Count against live store state so concurrent demotions cannot
		// leave the system without administrators.
		admins, err := s.repo.CountUsersWithRole(ctx, domain.RoleAdmin)
		if err != nil {
			return ValidationResult{}, fmt.Errorf("count administrators: %w", err)
		}
		if admins <= 1 {
			return ValidationResult{Reason: "Cannot change the role of the last administrator"}, nil
		}
	}

	return ValidationResult{Valid: true, Reason: "Role change is valid"}, nil
}

// ChangeInput holds the parameters of a role change.
type ChangeInput struct {
	UserID      string
	NewRole     string
	ChangedByID string
	Reason      *string
}

// ChangeResult describes an applied role change.
type ChangeResult struct {
	UserID       string    `json:"user_id"`
	PreviousRole string    `json:"previous_role"`
	NewRole      string    `json:"new_role"`
	ChangedAt    time.Time `json:"changed_at"`
	ChangedBy    string    `json:"changed_by"`
	Reason       *string   `json:"reason,omitempty"`
}

// ChangeUserRole applies a role change and records it, atomically. It is safe
// to call standalone: subject, actor, and role are re-verified here regardless
// of any prior ValidateRoleChange call. On success a notification is published
// best-effort; a delivery failure never affects the result.
//
// Returned errors are either one of the typed errors in this package or an
// opaque internal failure; in the latter case nothing was persisted.
func (s *Service) ChangeUserRole(ctx context.Context, input ChangeInput) (*ChangeResult, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			ctxlog.FromContext(ctx).Error("failed to rollback transaction", "error", err)
		}
	}()

	// Lock the subject row: concurrent changes to the same user serialize
	// here, so the previous-role snapshot cannot go stale before commit.
	user, err := s.repo.GetUserForUpdateTx(ctx, tx, input.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, input.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("load subject user: %w", err)
	}

	actor, err := s.repo.GetUserTx(ctx, tx, input.ChangedByID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrActorNotFound, input.ChangedByID)
	}
	if err != nil {
		return nil, fmt.Errorf("load acting user: %w", err)
	}

	role, ok := ParseRole(input.NewRole)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, input.NewRole)
	}

	previousRole := user.Role

	record := &domain.RoleChangeRecord{
		UserID:       user.ID,
		ChangedByID:  actor.ID,
		PreviousRole: string(previousRole),
		NewRole:      string(role),
		Reason:       input.Reason,
	}

	if err := s.repo.CreateRoleChangeTx(ctx, tx, record); err != nil {
		return nil, fmt.Errorf("create role change record: %w", err)
	}

	if err := s.repo.UpdateUserRoleTx(ctx, tx, user.ID, role); err != nil {
		return nil, fmt.Errorf("update user role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	RoleChangesTotal.WithLabelValues(string(role)).Inc()

	ctxlog.FromContext(ctx).Info("user role changed",
		"user_id", user.ID,
		"previous_role", previousRole,
		"new_role", role,
		"changed_by", actor.ID,
	)

	result := &ChangeResult{
		UserID:       user.ID,
		PreviousRole: string(previousRole),
		NewRole:      string(role),
		ChangedAt:    record.ChangedAt,
		ChangedBy:    actor.Email,
		Reason:       input.Reason,
	}

	// The change is durable at this point; delivery is best-effort.
	if s.publisher != nil {
		s.publisher.Publish(ctx, EventUserRoleChanged, result)
	}

	return result, nil
}

// ChangeHistory returns role change records, optionally filtered to a single
// subject, newest first, with the total size of the filtered set. On a
// storage failure it degrades to an empty page with total 0; the failure is
// logged, not propagated.
func (s *Service) ChangeHistory(ctx context.Context, userID *string, offset, limit int) ([]domain.RoleChangeRecord, int) {
	records, err := s.repo.ListRoleChanges(ctx, HistoryFilter{
		UserID: userID,
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		ctxlog.FromContext(ctx).Error("list role changes", "error", err)
		return []domain.RoleChangeRecord{}, 0
	}

	total, err := s.repo.CountRoleChanges(ctx, userID)
	if err != nil {
		ctxlog.FromContext(ctx).Error("count role changes", "error", err)
		return []domain.RoleChangeRecord{}, 0
	}

	return records, total
}
