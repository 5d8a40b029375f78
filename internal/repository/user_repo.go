package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/clearpath/claims/internal/apperror"
	"github.com/clearpath/claims/internal/models"
)

// UserRepository reads the user directory. The engine never writes users;
// provisioning belongs to the external directory collaborator.
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, name, email, role, supervisor_level, assigned_supervisor1, assigned_supervisor2, is_active`

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("user")
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// AssignedEmployeeIDs returns the IDs of active employees whose supervisor
// slot 1 or 2 references the given supervisor.
func (r *UserRepository) AssignedEmployeeIDs(ctx context.Context, supervisorID string) ([]string, error) {
	query := `
		SELECT id FROM users
		WHERE is_active = 1 AND (assigned_supervisor1 = ? OR assigned_supervisor2 = ?)
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, supervisorID, supervisorID)
	if err != nil {
		r.logger.Error("Failed to resolve assigned employees",
			zap.String("supervisor_id", supervisorID), zap.Error(err))
		return nil, fmt.Errorf("failed to resolve assigned employees: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan employee id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Upsert writes a directory record. Only used by the deployment bootstrap and
// by tests; runtime request handling treats the directory as read-only.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, role, supervisor_level, assigned_supervisor1, assigned_supervisor2, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			supervisor_level = excluded.supervisor_level,
			assigned_supervisor1 = excluded.assigned_supervisor1,
			assigned_supervisor2 = excluded.assigned_supervisor2,
			is_active = excluded.is_active
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		string(user.Role),
		user.SupervisorLevel,
		user.AssignedSupervisor1,
		user.AssignedSupervisor2,
		user.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var role string
	var level sql.NullInt64
	var sup1, sup2 sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&role,
		&level,
		&sup1,
		&sup2,
		&user.IsActive,
	)
	if err != nil {
		return nil, err
	}

	user.Role = models.Role(role)
	if level.Valid {
		user.SupervisorLevel = int(level.Int64)
	}
	user.AssignedSupervisor1 = sup1.String
	user.AssignedSupervisor2 = sup2.String

	return &user, nil
}
