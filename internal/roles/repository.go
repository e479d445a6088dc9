package roles

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rolewarden/rolewarden/internal/domain"
)

// Repository defines the storage contract for the role authority.
//
// Non-Tx reads observe live store state. The Tx methods run inside the
// transaction that makes a role change atomic with its audit record;
// GetUserForUpdateTx locks the subject row so concurrent changes to the same
// user serialize at the store.
type Repository interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	CountUsersWithRole(ctx context.Context, role domain.Role) (int, error)

	ListRoleChanges(ctx context.Context, filter HistoryFilter) ([]domain.RoleChangeRecord, error)
	CountRoleChanges(ctx context.Context, userID *string) (int, error)

	BeginTx(ctx context.Context) (pgx.Tx, error)
	GetUserForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.User, error)
	GetUserTx(ctx context.Context, tx pgx.Tx, id string) (*domain.User, error)
	UpdateUserRoleTx(ctx context.Context, tx pgx.Tx, id string, role domain.Role) error
	CreateRoleChangeTx(ctx context.Context, tx pgx.Tx, record *domain.RoleChangeRecord) error
}

// HistoryFilter holds filter and pagination options for history queries.
// Offset and Limit apply after newest-first ordering.
type HistoryFilter struct {
	UserID *string
	Offset int
	Limit  int
}
