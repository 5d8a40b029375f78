package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clearpath/claims/internal/apperror"
	"github.com/clearpath/claims/internal/models"
)

// LeaveRepository persists leave requests, the simpler sibling of claims
type LeaveRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLeaveRepository creates a new leave repository
func NewLeaveRepository(db *sql.DB, logger *zap.Logger) *LeaveRepository {
	return &LeaveRepository{
		db:     db,
		logger: logger,
	}
}

const leaveColumns = `id, leave_id, employee_id, type, from_date, to_date, days, reason, status, approvals, timeline, version, created_at, updated_at`

// Create inserts a new leave request in pending status
func (r *LeaveRepository) Create(ctx context.Context, leave *models.LeaveRequest) error {
	approvals, err := marshalJSON(leave.Approvals)
	if err != nil {
		return err
	}
	timeline, err := marshalJSON(leave.Timeline)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO leaves (leave_id, employee_id, type, from_date, to_date, days, reason, status, approvals, timeline, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`

	result, err := r.db.ExecContext(ctx, query,
		leave.LeaveID,
		leave.EmployeeID,
		leave.Type,
		leave.FromDate,
		leave.ToDate,
		leave.Days,
		leave.Reason,
		string(leave.Status),
		approvals,
		timeline,
	)
	if err != nil {
		r.logger.Error("Failed to create leave request", zap.String("leave_id", leave.LeaveID), zap.Error(err))
		return fmt.Errorf("failed to create leave request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	leave.ID = id
	leave.Version = 1
	return nil
}

// GetByLeaveID retrieves a leave request by its human-readable ID
func (r *LeaveRepository) GetByLeaveID(ctx context.Context, leaveID string) (*models.LeaveRequest, error) {
	query := `SELECT ` + leaveColumns + ` FROM leaves WHERE leave_id = ?`

	leave, err := scanLeave(r.db.QueryRowContext(ctx, query, leaveID))
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("leave request")
	}
	if err != nil {
		r.logger.Error("Failed to get leave request", zap.String("leave_id", leaveID), zap.Error(err))
		return nil, fmt.Errorf("failed to get leave request: %w", err)
	}

	return leave, nil
}

// Update writes the leave document conditionally on the version read
func (r *LeaveRepository) Update(ctx context.Context, leave *models.LeaveRequest) error {
	approvals, err := marshalJSON(leave.Approvals)
	if err != nil {
		return err
	}
	timeline, err := marshalJSON(leave.Timeline)
	if err != nil {
		return err
	}

	query := `
		UPDATE leaves SET
			status = ?, approvals = ?, timeline = ?,
			version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE leave_id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(leave.Status),
		approvals,
		timeline,
		leave.LeaveID,
		leave.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update leave request", zap.String("leave_id", leave.LeaveID), zap.Error(err))
		return fmt.Errorf("failed to update leave request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.Concurrency("leave request")
	}

	leave.Version++
	return nil
}

// ListByEmployee returns an employee's leave requests, newest first
func (r *LeaveRepository) ListByEmployee(ctx context.Context, employeeID string) ([]*models.LeaveRequest, error) {
	query := `SELECT ` + leaveColumns + ` FROM leaves WHERE employee_id = ? ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, employeeID)
}

// ListAll returns every leave request, newest first
func (r *LeaveRepository) ListAll(ctx context.Context) ([]*models.LeaveRequest, error) {
	query := `SELECT ` + leaveColumns + ` FROM leaves ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query)
}

func (r *LeaveRepository) list(ctx context.Context, query string, args ...any) ([]*models.LeaveRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list leave requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}
	defer rows.Close()

	var leaves []*models.LeaveRequest
	for rows.Next() {
		leave, err := scanLeave(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leave request: %w", err)
		}
		leaves = append(leaves, leave)
	}

	return leaves, rows.Err()
}

func scanLeave(row rowScanner) (*models.LeaveRequest, error) {
	var leave models.LeaveRequest
	var status, approvals, timeline string
	var fromDate, toDate, createdAt, updatedAt time.Time

	err := row.Scan(
		&leave.ID,
		&leave.LeaveID,
		&leave.EmployeeID,
		&leave.Type,
		&fromDate,
		&toDate,
		&leave.Days,
		&leave.Reason,
		&status,
		&approvals,
		&timeline,
		&leave.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	leave.Status = models.LeaveStatus(status)
	leave.FromDate = fromDate
	leave.ToDate = toDate
	leave.CreatedAt = createdAt
	leave.UpdatedAt = updatedAt

	if err := json.Unmarshal([]byte(approvals), &leave.Approvals); err != nil {
		return nil, fmt.Errorf("invalid approvals document: %w", err)
	}
	if err := json.Unmarshal([]byte(timeline), &leave.Timeline); err != nil {
		return nil, fmt.Errorf("invalid timeline document: %w", err)
	}

	return &leave, nil
}
