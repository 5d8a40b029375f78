// Package leave implements the time-off workflow. Unlike claims it uses a
// fixed two-approver chain: two named executives approve in order, and either
// one may reject.
package leave

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clearpath/claims/internal/apperror"
	"github.com/clearpath/claims/internal/audit"
	"github.com/clearpath/claims/internal/models"
	"github.com/clearpath/claims/internal/notify"
	"github.com/clearpath/claims/internal/repository"
	"github.com/clearpath/claims/internal/sequence"
)

// CounterLeaveID is the shared sequence counter name for leave IDs
const CounterLeaveID = "leaveId"

// Draft is the client-supplied portion of a leave request
type Draft struct {
	Type     string    `json:"type"`
	FromDate time.Time `json:"from_date"`
	ToDate   time.Time `json:"to_date"`
	Days     float64   `json:"days"`
	Reason   string    `json:"reason"`
}

// Service owns the leave request lifecycle
type Service struct {
	leaves    *repository.LeaveRepository
	seq       *sequence.Generator
	approver1 string
	approver2 string
	audit     audit.Sink
	notifier  notify.Notifier
	logger    *zap.Logger
}

// NewService creates a leave service with the two configured approver IDs
func NewService(
	leaves *repository.LeaveRepository,
	seq *sequence.Generator,
	approver1, approver2 string,
	auditSink audit.Sink,
	notifier notify.Notifier,
	logger *zap.Logger,
) *Service {
	return &Service{
		leaves:    leaves,
		seq:       seq,
		approver1: approver1,
		approver2: approver2,
		audit:     auditSink,
		notifier:  notifier,
		logger:    logger,
	}
}

// Create files a new leave request in pending status
func (s *Service) Create(ctx context.Context, actor *models.User, draft Draft) (*models.LeaveRequest, error) {
	if draft.Type == "" {
		return nil, apperror.ValidationMsg("leave type is required")
	}
	if draft.ToDate.Before(draft.FromDate) {
		return nil, apperror.ValidationMsg("leave end date precedes the start date")
	}
	if draft.Days <= 0 {
		return nil, apperror.ValidationMsg("leave must cover at least part of a day")
	}

	seq, err := s.seq.Next(ctx, CounterLeaveID)
	if err != nil {
		return nil, err
	}

	leave := &models.LeaveRequest{
		LeaveID:    sequence.FormatID("leave", time.Now().UTC().Year(), seq),
		EmployeeID: actor.ID,
		Type:       draft.Type,
		FromDate:   draft.FromDate,
		ToDate:     draft.ToDate,
		Days:       draft.Days,
		Reason:     draft.Reason,
		Status:     models.LeaveStatusPending,
	}
	leave.AppendTimeline(actor.ID, "submitted", "")

	if err := s.leaves.Create(ctx, leave); err != nil {
		return nil, err
	}

	s.logger.Info("Leave request created",
		zap.String("leave_id", leave.LeaveID),
		zap.String("employee_id", leave.EmployeeID))

	s.audit.Record(ctx, actor.ID, "leave.create", leave.LeaveID, map[string]any{
		"type": leave.Type,
		"days": leave.Days,
	})
	s.notifier.Notify(ctx, notify.Event{
		Type:       "submitted",
		ResourceID: leave.LeaveID,
		ActorID:    actor.ID,
		EmployeeID: leave.EmployeeID,
	})

	return leave, nil
}

// Get returns a leave request visible to the actor
func (s *Service) Get(ctx context.Context, actor *models.User, leaveID string) (*models.LeaveRequest, error) {
	leave, err := s.leaves.GetByLeaveID(ctx, leaveID)
	if err != nil {
		return nil, err
	}
	if !s.canView(actor, leave) {
		return nil, apperror.Forbidden()
	}
	return leave, nil
}

// List returns the leave requests the actor may see. Employees see their own;
// the approvers and admins see everything.
func (s *Service) List(ctx context.Context, actor *models.User) ([]*models.LeaveRequest, error) {
	if actor.Role == models.RoleAdmin || s.isApprover(actor.ID) {
		return s.leaves.ListAll(ctx)
	}
	return s.leaves.ListByEmployee(ctx, actor.ID)
}

// Decide records an approval or rejection. Approvals must arrive in order:
// the first approver moves pending to first_approved, the second completes it.
// Either approver may reject at any point before completion.
func (s *Service) Decide(ctx context.Context, actor *models.User, leaveID string, approve bool, reason string) (*models.LeaveRequest, error) {
	if !s.isApprover(actor.ID) {
		return nil, apperror.Forbidden()
	}
	if !approve && strings.TrimSpace(reason) == "" {
		return nil, apperror.ValidationMsg("a rejection reason is required")
	}

	var result *models.LeaveRequest
	err := s.withConcurrencyRetry(func() error {
		leave, err := s.leaves.GetByLeaveID(ctx, leaveID)
		if err != nil {
			return err
		}

		next, err := s.nextStatus(leave, actor.ID, approve)
		if err != nil {
			return err
		}

		status := "rejected"
		action := "reject"
		if approve {
			status = "approved"
			action = "approve"
		}
		leave.Approvals = append(leave.Approvals, models.Approval{
			ApprovedBy: actor.ID,
			ApprovedAt: time.Now().UTC(),
			Status:     status,
			Reason:     reason,
		})
		leave.Status = next
		leave.AppendTimeline(actor.ID, action, reason)

		if err := s.leaves.Update(ctx, leave); err != nil {
			return err
		}

		result = leave
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := "leave.reject"
	if approve {
		action = "leave.approve"
	}
	s.audit.Record(ctx, actor.ID, action, leaveID, nil)
	s.notifier.Notify(ctx, notify.Event{
		Type:       string(result.Status),
		ResourceID: result.LeaveID,
		ActorID:    actor.ID,
		EmployeeID: result.EmployeeID,
		Note:       reason,
	})

	return result, nil
}

// nextStatus enforces the ordered two-step chain
func (s *Service) nextStatus(leave *models.LeaveRequest, actorID string, approve bool) (models.LeaveStatus, error) {
	switch leave.Status {
	case models.LeaveStatusPending:
		if !approve {
			return models.LeaveStatusRejected, nil
		}
		if actorID != s.approver1 {
			return "", apperror.State("leave %s awaits the first approver", leave.LeaveID)
		}
		return models.LeaveStatusFirstApproved, nil
	case models.LeaveStatusFirstApproved:
		if !approve {
			return models.LeaveStatusRejected, nil
		}
		if actorID != s.approver2 {
			return "", apperror.State("leave %s awaits the second approver", leave.LeaveID)
		}
		return models.LeaveStatusApproved, nil
	default:
		return "", apperror.State("leave %s is already %s", leave.LeaveID, leave.Status)
	}
}

func (s *Service) withConcurrencyRetry(fn func() error) error {
	err := fn()
	if apperror.IsKind(err, apperror.KindConcurrency) {
		s.logger.Warn("Leave update lost a concurrent race, retrying once")
		return fn()
	}
	return err
}

func (s *Service) isApprover(actorID string) bool {
	return actorID == s.approver1 || actorID == s.approver2
}

func (s *Service) canView(actor *models.User, leave *models.LeaveRequest) bool {
	if actor.Role == models.RoleAdmin || s.isApprover(actor.ID) {
		return true
	}
	return actor.ID == leave.EmployeeID
}
