// Package claim orchestrates the claim lifecycle: policy validation on entry,
// state-machine transitions on approval actions, and the projection rules that
// scope what each actor sees.
package claim

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clearpath/claims/internal/access"
	"github.com/clearpath/claims/internal/apperror"
	"github.com/clearpath/claims/internal/audit"
	"github.com/clearpath/claims/internal/models"
	"github.com/clearpath/claims/internal/notify"
	"github.com/clearpath/claims/internal/policy"
	"github.com/clearpath/claims/internal/repository"
	"github.com/clearpath/claims/internal/sequence"
	"github.com/clearpath/claims/internal/storage"
	"github.com/clearpath/claims/internal/workflow"
)

// CounterClaimID is the shared sequence counter name for claim IDs
const CounterClaimID = "claimId"

// Draft is the client-supplied portion of a claim. Totals are never read from
// a draft; the validation engine recomputes them.
type Draft struct {
	EmployeeID   string            `json:"employee_id,omitempty"` // set when filing on behalf of a report
	BusinessUnit string            `json:"business_unit"`
	Category     string            `json:"category"`
	LineItems    []models.LineItem `json:"line_items"`
	Advances     []models.Advance  `json:"advances"`
}

// Service owns all claim lifecycle operations
type Service struct {
	claims    *repository.ClaimRepository
	policies  *policy.Store
	directory access.UserDirectory
	projector *access.Projector
	seq       *sequence.Generator
	blobs     storage.BlobStore
	audit     audit.Sink
	notifier  notify.Notifier
	logger    *zap.Logger
}

// NewService creates a new claim service
func NewService(
	claims *repository.ClaimRepository,
	policies *policy.Store,
	directory access.UserDirectory,
	projector *access.Projector,
	seq *sequence.Generator,
	blobs storage.BlobStore,
	auditSink audit.Sink,
	notifier notify.Notifier,
	logger *zap.Logger,
) *Service {
	return &Service{
		claims:    claims,
		policies:  policies,
		directory: directory,
		projector: projector,
		seq:       seq,
		blobs:     blobs,
		audit:     auditSink,
		notifier:  notifier,
		logger:    logger,
	}
}

// Create validates the draft against the active policy and persists a new
// claim in submitted status. Error-level violations reject the submission
// outright; warnings are stored on the claim for downstream display.
func (s *Service) Create(ctx context.Context, actor *models.User, draft Draft) (*models.Claim, error) {
	employeeID, err := s.resolveEmployee(ctx, actor, draft.EmployeeID)
	if err != nil {
		return nil, err
	}

	active, err := s.policies.Active(ctx)
	if err != nil {
		return nil, err
	}

	claim := &models.Claim{
		EmployeeID:   employeeID,
		CreatedBy:    actor.ID,
		BusinessUnit: draft.BusinessUnit,
		Category:     draft.Category,
		LineItems:    draft.LineItems,
		Advances:     draft.Advances,
		Status:       models.StatusSubmitted,
	}

	result := policy.NewEngine(active).Validate(claim)
	if blocking := result.Blocking(); len(blocking) > 0 {
		return nil, apperror.Validation("claim failed policy validation", result.Violations)
	}

	seq, err := s.seq.Next(ctx, CounterClaimID)
	if err != nil {
		return nil, err
	}

	claim.ClaimID = sequence.FormatID("claim", time.Now().UTC().Year(), seq)
	claim.PolicyVersion = active.Version
	claim.Violations = result.Violations
	policy.ApplyTotals(claim, result.Totals)
	claim.AppendTimeline(actor.ID, "submitted", "")

	if err := s.claims.Create(ctx, nil, claim); err != nil {
		return nil, err
	}

	s.logger.Info("Claim created",
		zap.String("claim_id", claim.ClaimID),
		zap.String("employee_id", claim.EmployeeID),
		zap.String("policy_version", claim.PolicyVersion))

	s.audit.Record(ctx, actor.ID, "claim.create", claim.ClaimID, map[string]any{
		"employee_id": claim.EmployeeID,
		"grand_total": claim.GrandTotal.String(),
	})
	s.notifier.Notify(ctx, notify.Event{
		Type:       "submitted",
		ResourceID: claim.ClaimID,
		ActorID:    actor.ID,
		EmployeeID: claim.EmployeeID,
	})

	return claim, nil
}

// Get returns a single claim after authorization
func (s *Service) Get(ctx context.Context, actor *models.User, claimID string) (*models.Claim, error) {
	claim, err := s.claims.GetByClaimID(ctx, claimID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.projector.CanAccess(ctx, actor, claim)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperror.Forbidden()
	}

	return claim, nil
}

// List returns the claims visible to the actor under their role projection
func (s *Service) List(ctx context.Context, actor *models.User) ([]*models.Claim, error) {
	filter, err := s.projector.VisibilityFilter(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.claims.List(ctx, filter)
}

// Update edits a claim and re-runs validation against the policy version the
// claim originally captured. Editing a rejected claim resubmits it.
func (s *Service) Update(ctx context.Context, actor *models.User, claimID string, draft Draft) (*models.Claim, error) {
	var updated *models.Claim

	err := s.withConcurrencyRetry(func() error {
		claim, err := s.claims.GetByClaimID(ctx, claimID)
		if err != nil {
			return err
		}

		if !s.canMutateDocument(actor, claim) {
			return apperror.Forbidden()
		}

		if claim.Status != models.StatusSubmitted && claim.Status != models.StatusRejected {
			return apperror.State("claim %s cannot be edited in status %s", claimID, claim.Status)
		}

		// The policy version is captured once and never changes on edit.
		captured, err := s.policies.ByVersion(ctx, claim.PolicyVersion)
		if err != nil {
			return err
		}

		claim.BusinessUnit = draft.BusinessUnit
		claim.Category = draft.Category
		claim.LineItems = draft.LineItems
		claim.Advances = draft.Advances

		result := policy.NewEngine(captured).Validate(claim)
		if blocking := result.Blocking(); len(blocking) > 0 {
			return apperror.Validation("claim failed policy validation", result.Violations)
		}

		claim.Violations = result.Violations
		policy.ApplyTotals(claim, result.Totals)

		if claim.Status == models.StatusRejected {
			env, err := s.decisionEnv(ctx, claim)
			if err != nil {
				return err
			}
			machine := workflow.NewClaimMachine(claim.Status)
			if err := machine.Fire(workflow.TriggerResubmit, env); err != nil {
				return stateError(err, "resubmit", claim)
			}
			claim.Status = machine.State()
			claim.SupervisorApproval = nil
			claim.AppendTimeline(actor.ID, "resubmitted", "")
		} else {
			claim.AppendTimeline(actor.ID, "updated", "")
		}

		if err := s.claims.Update(ctx, claim); err != nil {
			return err
		}

		updated = claim
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor.ID, "claim.update", claimID, nil)
	return updated, nil
}

// SupervisorDecision applies a supervisor approval or rejection. The target
// status depends on the approval mode and on which supervisors the employee
// actually has assigned.
func (s *Service) SupervisorDecision(ctx context.Context, actor *models.User, claimID string, approve bool, reason, notes string) (*models.Claim, error) {
	if actor.Role != models.RoleSupervisor {
		return nil, apperror.Forbidden()
	}

	trigger := workflow.TriggerSupervisorReject
	if approve {
		var ok bool
		trigger, ok = workflow.TriggerForSupervisorApproval(actor.SupervisorLevel)
		if !ok {
			return nil, apperror.Forbidden()
		}
	} else if strings.TrimSpace(reason) == "" {
		return nil, apperror.ValidationMsg("a rejection reason is required")
	}

	action := "supervisor.reject"
	if approve {
		action = "supervisor.approve"
	}

	// Owning a claim grants a supervisor visibility, never the decision.
	gate := func(c *models.Claim) error {
		if c.EmployeeID == actor.ID {
			return apperror.Forbidden()
		}
		return nil
	}

	claim, err := s.applyTransition(ctx, actor, claimID, trigger, gate, func(c *models.Claim, newStatus models.Status) {
		status := "rejected"
		if approve {
			status = "approved"
		}
		c.SupervisorApproval = &models.Approval{
			ApprovedBy: actor.ID,
			ApprovedAt: time.Now().UTC(),
			Status:     status,
			Level:      actor.SupervisorLevel,
			Reason:     reason,
			Notes:      notes,
		}
		c.AppendTimeline(actor.ID, action, reason)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor.ID, action, claimID, map[string]any{"level": actor.SupervisorLevel})
	s.notifier.Notify(ctx, notify.Event{
		Type:       string(claim.Status),
		ResourceID: claim.ClaimID,
		ActorID:    actor.ID,
		EmployeeID: claim.EmployeeID,
		Note:       reason,
	})

	return claim, nil
}

// FinanceDecision applies the finance manager's approval or rejection. A
// rejection reason is required, never silently defaulted.
func (s *Service) FinanceDecision(ctx context.Context, actor *models.User, claimID string, approve bool, reason, notes string) (*models.Claim, error) {
	if actor.Role != models.RoleFinanceManager {
		return nil, apperror.Forbidden()
	}

	trigger := workflow.TriggerFinanceReject
	action := "finance.reject"
	if approve {
		trigger = workflow.TriggerFinanceApprove
		action = "finance.approve"
	} else if strings.TrimSpace(reason) == "" {
		return nil, apperror.ValidationMsg("a rejection reason is required")
	}

	claim, err := s.applyTransition(ctx, actor, claimID, trigger, nil, func(c *models.Claim, newStatus models.Status) {
		status := "rejected"
		if approve {
			status = "approved"
		}
		c.FinanceApproval = &models.Approval{
			ApprovedBy: actor.ID,
			ApprovedAt: time.Now().UTC(),
			Status:     status,
			Reason:     reason,
			Notes:      notes,
		}
		c.AppendTimeline(actor.ID, action, reason)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor.ID, action, claimID, nil)
	s.notifier.Notify(ctx, notify.Event{
		Type:       string(claim.Status),
		ResourceID: claim.ClaimID,
		ActorID:    actor.ID,
		EmployeeID: claim.EmployeeID,
		Note:       reason,
	})

	return claim, nil
}

// MarkPaid records the payout and moves the claim to its terminal paid status.
// The channel must be one of the policy's payout channels.
func (s *Service) MarkPaid(ctx context.Context, actor *models.User, claimID, channel, reference string) (*models.Claim, error) {
	if actor.Role != models.RoleFinanceManager && actor.Role != models.RoleAdmin {
		return nil, apperror.Forbidden()
	}

	active, err := s.policies.Active(ctx)
	if err != nil {
		return nil, err
	}
	if !active.HasPayoutChannel(channel) {
		return nil, apperror.ValidationMsg("payout channel %q is not permitted by the active policy", channel)
	}

	claim, err := s.applyTransition(ctx, actor, claimID, workflow.TriggerMarkPaid, nil, func(c *models.Claim, newStatus models.Status) {
		c.Payment = &models.Payment{
			PaidBy:    actor.ID,
			PaidAt:    time.Now().UTC(),
			Channel:   channel,
			Reference: reference,
		}
		c.AppendTimeline(actor.ID, "paid", channel)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor.ID, "claim.pay", claimID, map[string]any{
		"channel":     channel,
		"net_payable": claim.NetPayable.String(),
	})
	s.notifier.Notify(ctx, notify.Event{
		Type:       "paid",
		ResourceID: claim.ClaimID,
		ActorID:    actor.ID,
		EmployeeID: claim.EmployeeID,
	})

	return claim, nil
}

// Delete removes a claim still in an early lifecycle state and cascades
// best-effort deletion of its attachment blobs.
func (s *Service) Delete(ctx context.Context, actor *models.User, claimID string) error {
	claim, err := s.claims.GetByClaimID(ctx, claimID)
	if err != nil {
		return err
	}

	if !s.canMutateDocument(actor, claim) {
		return apperror.Forbidden()
	}
	if !claim.CanDelete() {
		return apperror.State("claim %s cannot be deleted in status %s", claimID, claim.Status)
	}

	if err := s.claims.Delete(ctx, claimID); err != nil {
		return err
	}

	for _, item := range claim.LineItems {
		for _, att := range item.Attachments {
			if att.StorageKey == "" {
				continue
			}
			if err := s.blobs.Remove(ctx, att.StorageKey); err != nil {
				s.logger.Warn("Failed to remove attachment blob",
					zap.String("claim_id", claimID),
					zap.String("storage_key", att.StorageKey),
					zap.Error(err))
			}
		}
	}

	s.audit.Record(ctx, actor.ID, "claim.delete", claimID, nil)
	return nil
}

// UploadAttachment stores attachment bytes after checking the policy's file
// type and size limits, returning the attachment record to embed in a draft.
func (s *Service) UploadAttachment(ctx context.Context, actor *models.User, content []byte, meta storage.FileMeta) (*models.Attachment, error) {
	active, err := s.policies.Active(ctx)
	if err != nil {
		return nil, err
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(meta.Name)), ".")
	allowed := false
	for _, t := range active.AllowedFileTypes {
		if strings.ToLower(t) == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, apperror.ValidationMsg("file type %q is not permitted", ext)
	}

	if len(content) > active.MaxFileSizeMB*1024*1024 {
		return nil, apperror.ValidationMsg("file exceeds the %d MB limit", active.MaxFileSizeMB)
	}

	stored, err := s.blobs.Save(ctx, content, meta)
	if err != nil {
		return nil, apperror.Dependency(err, "blob store")
	}

	s.audit.Record(ctx, actor.ID, "attachment.upload", stored.FileID, map[string]any{
		"name": meta.Name,
		"size": stored.Size,
	})

	return &models.Attachment{
		FileID:     stored.FileID,
		Name:       meta.Name,
		Size:       stored.Size,
		Mime:       stored.Mime,
		StorageKey: stored.StorageKey,
		Label:      meta.Label,
	}, nil
}

// applyTransition runs the load-fire-save cycle for one state machine trigger,
// with a single automatic retry when a concurrent writer wins the race. The
// optional gate runs after authorization for caller-specific checks on the
// loaded claim.
func (s *Service) applyTransition(ctx context.Context, actor *models.User, claimID string, trigger workflow.Trigger, gate func(*models.Claim) error, mutate func(*models.Claim, models.Status)) (*models.Claim, error) {
	var result *models.Claim

	err := s.withConcurrencyRetry(func() error {
		claim, err := s.claims.GetByClaimID(ctx, claimID)
		if err != nil {
			return err
		}

		allowed, err := s.projector.CanAccess(ctx, actor, claim)
		if err != nil {
			return err
		}
		if !allowed {
			return apperror.Forbidden()
		}

		if gate != nil {
			if err := gate(claim); err != nil {
				return err
			}
		}

		env, err := s.decisionEnv(ctx, claim)
		if err != nil {
			return err
		}

		machine := workflow.NewClaimMachine(claim.Status)
		if err := machine.Fire(trigger, env); err != nil {
			return stateError(err, trigger.String(), claim)
		}

		claim.Status = machine.State()
		mutate(claim, claim.Status)

		if err := s.claims.Update(ctx, claim); err != nil {
			return err
		}

		result = claim
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Claim transition applied",
		zap.String("claim_id", claimID),
		zap.String("trigger", trigger.String()),
		zap.String("status", result.Status.String()),
		zap.String("actor_id", actor.ID))

	return result, nil
}

// decisionEnv assembles the guard environment: the runtime approval mode and
// the employee's actual supervisor assignments.
func (s *Service) decisionEnv(ctx context.Context, claim *models.Claim) (workflow.Env, error) {
	active, err := s.policies.Active(ctx)
	if err != nil {
		return workflow.Env{}, err
	}

	employee, err := s.directory.GetByID(ctx, claim.EmployeeID)
	if err != nil {
		return workflow.Env{}, err
	}

	return workflow.Env{
		ApprovalMode:   active.ApprovalMode,
		HasSupervisor1: employee.HasSupervisor1(),
		HasSupervisor2: employee.HasSupervisor2(),
	}, nil
}

// withConcurrencyRetry retries the full read-modify-write cycle once when the
// conditional update reports a lost race.
func (s *Service) withConcurrencyRetry(fn func() error) error {
	err := fn()
	if apperror.IsKind(err, apperror.KindConcurrency) {
		s.logger.Warn("Claim update lost a concurrent race, retrying once")
		return fn()
	}
	return err
}

// resolveEmployee determines who the claim belongs to. A supervisor may file
// on behalf of an assigned report; everyone else files for themselves.
func (s *Service) resolveEmployee(ctx context.Context, actor *models.User, requested string) (string, error) {
	if requested == "" || requested == actor.ID {
		return actor.ID, nil
	}

	switch actor.Role {
	case models.RoleAdmin:
		return requested, nil
	case models.RoleSupervisor:
		assigned, err := s.directory.AssignedEmployeeIDs(ctx, actor.ID)
		if err != nil {
			return "", err
		}
		for _, id := range assigned {
			if id == requested {
				return requested, nil
			}
		}
		return "", apperror.Forbidden()
	default:
		return "", apperror.Forbidden()
	}
}

// canMutateDocument gates edit and delete: the owning employee, the filer, or
// an admin.
func (s *Service) canMutateDocument(actor *models.User, claim *models.Claim) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	default:
		return actor.ID == claim.EmployeeID || actor.ID == claim.CreatedBy
	}
}

// stateError converts a machine rejection into the domain error taxonomy,
// keeping illegal transitions distinct from authorization failures.
func stateError(err error, action string, claim *models.Claim) error {
	if errors.Is(err, workflow.ErrInvalidTransition) || errors.Is(err, workflow.ErrGuardFailed) {
		return apperror.State("cannot %s claim %s in status %s", strings.ToLower(action), claim.ClaimID, claim.Status)
	}
	return fmt.Errorf("transition failed: %w", err)
}
