package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/clearpath/claims/internal/apperror"
	"github.com/clearpath/claims/internal/models"
)

// PolicyRepository persists policy versions. Rows are append-only: an update
// inserts a new version rather than mutating history.
type PolicyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *sql.DB, logger *zap.Logger) *PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores a new policy version
func (r *PolicyRepository) Insert(ctx context.Context, policy *models.Policy) error {
	doc, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to marshal policy: %w", err)
	}

	query := `INSERT INTO policies (version, document, created_at) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, policy.Version, string(doc), policy.CreatedAt); err != nil {
		r.logger.Error("Failed to insert policy", zap.String("version", policy.Version), zap.Error(err))
		return fmt.Errorf("failed to insert policy: %w", err)
	}

	return nil
}

// Latest returns the most recently published policy
func (r *PolicyRepository) Latest(ctx context.Context) (*models.Policy, error) {
	query := `SELECT document FROM policies ORDER BY created_at DESC, id DESC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query))
}

// ByVersion returns the policy with the given version
func (r *PolicyRepository) ByVersion(ctx context.Context, version string) (*models.Policy, error) {
	query := `SELECT document FROM policies WHERE version = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, version))
}

// Count returns the number of stored policy versions
func (r *PolicyRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM policies").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count policies: %w", err)
	}
	return count, nil
}

func (r *PolicyRepository) scanOne(row *sql.Row) (*models.Policy, error) {
	var doc string
	if err := row.Scan(&doc); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("policy")
		}
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	var policy models.Policy
	if err := json.Unmarshal([]byte(doc), &policy); err != nil {
		return nil, fmt.Errorf("invalid policy document: %w", err)
	}

	return &policy, nil
}
