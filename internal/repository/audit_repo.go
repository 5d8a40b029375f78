package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// AuditRecord is one system-wide audit entry, separate from the per-claim timeline
type AuditRecord struct {
	ID       int64          `json:"id"`
	ActorID  string         `json:"actor_id"`
	Action   string         `json:"action"`
	Resource string         `json:"resource"`
	Details  map[string]any `json:"details,omitempty"`
}

// AuditRepository appends to the audit log table
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts an audit record
func (r *AuditRepository) Append(ctx context.Context, rec AuditRecord) error {
	details := "{}"
	if rec.Details != nil {
		data, err := json.Marshal(rec.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
		details = string(data)
	}

	query := `INSERT INTO audit_log (actor_id, action, resource, details) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, rec.ActorID, rec.Action, rec.Resource, details); err != nil {
		r.logger.Error("Failed to append audit record",
			zap.String("action", rec.Action),
			zap.String("resource", rec.Resource),
			zap.Error(err))
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	return nil
}

// CountByResource returns the number of audit entries for a resource
func (r *AuditRepository) CountByResource(ctx context.Context, resource string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log WHERE resource = ?", resource).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return count, nil
}
