// Package policy holds the versioned policy store and the claim validation
// engine that evaluates drafts against a policy.
package policy

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clearpath/claims/internal/apperror"
	"github.com/clearpath/claims/internal/models"
	"github.com/clearpath/claims/internal/repository"
)

// Store manages policy versions. Policies are append-only: publishing writes a
// new version, history is never mutated, and each claim records the version it
// was validated against.
type Store struct {
	repo   *repository.PolicyRepository
	logger *zap.Logger
}

// NewStore creates a new policy store
func NewStore(repo *repository.PolicyRepository, logger *zap.Logger) *Store {
	return &Store{
		repo:   repo,
		logger: logger,
	}
}

// Active returns the currently active (newest) policy
func (s *Store) Active(ctx context.Context) (*models.Policy, error) {
	return s.repo.Latest(ctx)
}

// ByVersion returns a historical policy version. Used to re-validate edits of
// a claim against the version it originally captured.
func (s *Store) ByVersion(ctx context.Context, version string) (*models.Policy, error) {
	return s.repo.ByVersion(ctx, version)
}

// Publish stores the policy as a new version and returns the stamped version.
// The previous active version remains untouched for claims referencing it.
func (s *Store) Publish(ctx context.Context, policy *models.Policy) (string, error) {
	if policy.ApprovalMode != models.ApprovalModeBoth && policy.ApprovalMode != models.ApprovalModeAny {
		return "", apperror.ValidationMsg("approval_mode must be %q or %q",
			models.ApprovalModeBoth, models.ApprovalModeAny)
	}
	if len(policy.ClaimCategories) == 0 {
		return "", apperror.ValidationMsg("claim_categories must not be empty")
	}
	if len(policy.PayoutChannels) == 0 {
		return "", apperror.ValidationMsg("payout_channels must not be empty")
	}

	now := time.Now().UTC()
	policy.CreatedAt = now
	policy.Version = fmt.Sprintf("v%s", now.Format("20060102T150405.000"))

	if err := s.repo.Insert(ctx, policy); err != nil {
		return "", err
	}

	s.logger.Info("Published policy version",
		zap.String("version", policy.Version),
		zap.String("approval_mode", string(policy.ApprovalMode)))

	return policy.Version, nil
}

// Bootstrap installs the default policy when the store is empty. This is the
// explicit deployment-time step; runtime reads never create policy state.
func (s *Store) Bootstrap(ctx context.Context) error {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if _, err := s.Publish(ctx, models.DefaultPolicy()); err != nil {
		return fmt.Errorf("failed to bootstrap default policy: %w", err)
	}

	s.logger.Info("Bootstrapped default policy")
	return nil
}
