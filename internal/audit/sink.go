// Package audit is the fire-and-forget system-wide audit sink. A failed audit
// write must never abort the operation that triggered it.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/clearpath/claims/internal/repository"
)

// Sink records actor actions. Implementations swallow their own failures.
type Sink interface {
	Record(ctx context.Context, actorID, action, resource string, details map[string]any)
}

// DBSink writes audit records to the audit_log table
type DBSink struct {
	repo   *repository.AuditRepository
	logger *zap.Logger
}

// NewDBSink creates a database-backed audit sink
func NewDBSink(repo *repository.AuditRepository, logger *zap.Logger) *DBSink {
	return &DBSink{
		repo:   repo,
		logger: logger,
	}
}

// Record appends an audit entry. Errors are logged and dropped.
func (s *DBSink) Record(ctx context.Context, actorID, action, resource string, details map[string]any) {
	err := s.repo.Append(ctx, repository.AuditRecord{
		ActorID:  actorID,
		Action:   action,
		Resource: resource,
		Details:  details,
	})
	if err != nil {
		s.logger.Warn("Audit record dropped",
			zap.String("actor_id", actorID),
			zap.String("action", action),
			zap.String("resource", resource),
			zap.Error(err))
	}
}

// NopSink discards all records. Used in tests.
type NopSink struct{}

// Record discards the entry
func (NopSink) Record(ctx context.Context, actorID, action, resource string, details map[string]any) {}
