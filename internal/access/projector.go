// Package access computes row-level visibility and single-document
// authorization from an actor's role and team assignment.
package access

import (
	"context"

	"go.uber.org/zap"

	"github.com/clearpath/claims/internal/apperror"
	"github.com/clearpath/claims/internal/models"
	"github.com/clearpath/claims/internal/repository"
)

// UserDirectory is the read-only slice of the user directory the projector needs
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	AssignedEmployeeIDs(ctx context.Context, supervisorID string) ([]string, error)
}

// awaitingApprovalStatuses is the fallback filter for supervisors with no
// explicit team assignment: claims still in or before the supervisor stage.
var awaitingApprovalStatuses = []models.Status{
	models.StatusSubmitted,
	models.StatusS1Approved,
	models.StatusS2Approved,
	models.StatusBothApproved,
}

// financeVisibleStatuses is everything past the supervisor stage
var financeVisibleStatuses = []models.Status{
	models.StatusBothApproved,
	models.StatusLegacyApproved,
	models.StatusFinanceApproved,
	models.StatusPaid,
}

// Projector computes claim visibility filters and mutation authorization
type Projector struct {
	directory UserDirectory
	logger    *zap.Logger
}

// NewProjector creates a new access projector
func NewProjector(directory UserDirectory, logger *zap.Logger) *Projector {
	return &Projector{
		directory: directory,
		logger:    logger,
	}
}

// VisibilityFilter computes the query filter projecting the claim collection
// for the actor. The same collection looks different per role:
//
//   - employee: own claims only
//   - supervisor: claims of assigned employees plus their own; with no
//     assignment, all claims awaiting approval (incomplete org-chart fallback)
//   - finance manager: everything past the supervisor stage
//   - admin: unrestricted
func (p *Projector) VisibilityFilter(ctx context.Context, actor *models.User) (repository.ClaimFilter, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return repository.ClaimFilter{Unrestricted: true}, nil

	case models.RoleFinanceManager:
		return repository.ClaimFilter{Statuses: financeVisibleStatuses}, nil

	case models.RoleSupervisor:
		assigned, err := p.directory.AssignedEmployeeIDs(ctx, actor.ID)
		if err != nil {
			return repository.ClaimFilter{}, err
		}
		if len(assigned) == 0 {
			// Deliberate fallback: an unassigned supervisor still sees the
			// approval queue instead of an empty dashboard.
			p.logger.Debug("Supervisor has no assigned employees, using status fallback",
				zap.String("supervisor_id", actor.ID))
			return repository.ClaimFilter{Statuses: awaitingApprovalStatuses}, nil
		}
		return repository.ClaimFilter{EmployeeIDs: append(assigned, actor.ID)}, nil

	case models.RoleEmployee:
		return repository.ClaimFilter{EmployeeIDs: []string{actor.ID}}, nil

	default:
		return repository.ClaimFilter{}, apperror.Forbidden()
	}
}

// CanAccess evaluates single-document authorization for the actor against one
// claim. Failures are generic: callers surface "access denied" without
// revealing anything else about the resource.
func (p *Projector) CanAccess(ctx context.Context, actor *models.User, claim *models.Claim) (bool, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return true, nil

	case models.RoleFinanceManager:
		// Oversight role: unconditional single-document access.
		return true, nil

	case models.RoleSupervisor:
		if claim.EmployeeID == actor.ID {
			return true, nil
		}
		assigned, err := p.directory.AssignedEmployeeIDs(ctx, actor.ID)
		if err != nil {
			return false, err
		}
		for _, id := range assigned {
			if id == claim.EmployeeID {
				return true, nil
			}
		}
		return false, nil

	case models.RoleEmployee:
		return claim.EmployeeID == actor.ID, nil

	default:
		return false, nil
	}
}
