// Package postgres provides the PostgreSQL implementation of the roles
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rolewarden/rolewarden/internal/domain"
	"github.com/rolewarden/rolewarden/internal/roles"
)

// Repository implements roles.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, password_hash, role, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Password,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, roles.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// CountUsersWithRole counts users currently holding the given role.
func (r *Repository) CountUsersWithRole(ctx context.Context, role domain.Role) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users with role: %w", err)
	}
	return count, nil
}

// ListRoleChanges retrieves a page of role change records, newest first.
// Ties on changed_at are broken by the insertion sequence.
func (r *Repository) ListRoleChanges(ctx context.Context, filter roles.HistoryFilter) ([]domain.RoleChangeRecord, error) {
	query := `
		SELECT id, seq, user_id, changed_by_id, previous_role, new_role, changed_at, reason
		FROM role_change_history
	`
	args := []interface{}{}
	argNum := 1

	if filter.UserID != nil {
		query += fmt.Sprintf(" WHERE user_id = $%d", argNum)
		args = append(args, *filter.UserID)
		argNum++
	}

	query += " ORDER BY changed_at DESC, seq DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
		argNum++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list role changes: %w", err)
	}
	defer rows.Close()

	records := make([]domain.RoleChangeRecord, 0)
	for rows.Next() {
		var record domain.RoleChangeRecord
		err := rows.Scan(
			&record.ID,
			&record.Seq,
			&record.UserID,
			&record.ChangedByID,
			&record.PreviousRole,
			&record.NewRole,
			&record.ChangedAt,
			&record.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan role change: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role changes: %w", err)
	}

	return records, nil
}

// CountRoleChanges counts history records, optionally for one subject.
func (r *Repository) CountRoleChanges(ctx context.Context, userID *string) (int, error) {
	query := `SELECT COUNT(*) FROM role_change_history`
	args := []interface{}{}

	if userID != nil {
		query += ` WHERE user_id = $1`
		args = append(args, *userID)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count role changes: %w", err)
	}
	return count, nil
}

// BeginTx starts a new transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// GetUserForUpdateTx retrieves a user inside a transaction, locking the row
// until the transaction ends.
func (r *Repository) GetUserForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return scanUser(tx.QueryRow(ctx, query, id))
}

// GetUserTx retrieves a user inside a transaction without locking.
func (r *Repository) GetUserTx(ctx context.Context, tx pgx.Tx, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(tx.QueryRow(ctx, query, id))
}

// UpdateUserRoleTx sets a user's role inside a transaction.
func (r *Repository) UpdateUserRoleTx(ctx context.Context, tx pgx.Tx, id string, role domain.Role) error {
	tag, err := tx.Exec(ctx, `UPDATE users SET role = $1, updated_at = now() WHERE id = $2`, role, id)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return roles.ErrUserNotFound
	}
	return nil
}

// CreateRoleChangeTx inserts an audit record inside a transaction. The
// identifier, sequence, and timestamp are store-assigned and written back
// into record.
func (r *Repository) CreateRoleChangeTx(ctx context.Context, tx pgx.Tx, record *domain.RoleChangeRecord) error {
	query := `
		INSERT INTO role_change_history (user_id, changed_by_id, previous_role, new_role, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, seq, changed_at
	`
	err := tx.QueryRow(ctx, query,
		record.UserID,
		record.ChangedByID,
		record.PreviousRole,
		record.NewRole,
		record.Reason,
	).Scan(&record.ID, &record.Seq, &record.ChangedAt)
	if err != nil {
		return fmt.Errorf("create role change record: %w", err)
	}
	return nil
}
