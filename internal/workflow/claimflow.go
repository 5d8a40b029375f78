// Package workflow owns the claim approval state machine.
//
// The transition table is org-chart-aware: a single supervisor approval
// promotes a claim straight to both_approved when the approval mode is "any"
// or when the other supervisor slot is simply unassigned. The lone-supervisor
// promotion is a materialized business rule carried over deliberately; see
// DESIGN.md before "fixing" it.
package workflow

import "github.com/clearpath/claims/internal/models"

// anyModeOrNoSupervisor2 promotes a level-1 approval on its own
func anyModeOrNoSupervisor2(env Env) bool {
	return env.ApprovalMode == models.ApprovalModeAny || !env.HasSupervisor2
}

// anyModeOrNoSupervisor1 promotes a level-2 approval on its own
func anyModeOrNoSupervisor1(env Env) bool {
	return env.ApprovalMode == models.ApprovalModeAny || !env.HasSupervisor1
}

// newClaimBuilder assembles the full claim lifecycle transition table
func newClaimBuilder() *Builder {
	b := NewBuilder()

	b.Configure(models.StatusSubmitted).
		PermitIf(TriggerS1Approve, models.StatusBothApproved, anyModeOrNoSupervisor2).
		Permit(TriggerS1Approve, models.StatusS1Approved).
		PermitIf(TriggerS2Approve, models.StatusBothApproved, anyModeOrNoSupervisor1).
		Permit(TriggerS2Approve, models.StatusS2Approved).
		Permit(TriggerSupervisorReject, models.StatusRejected)

	// A level-2 approval on top of an existing level-1 approval always
	// completes the supervisor stage, and vice versa.
	b.Configure(models.StatusS1Approved).
		Permit(TriggerS2Approve, models.StatusBothApproved).
		PermitIf(TriggerS1Approve, models.StatusBothApproved, anyModeOrNoSupervisor2).
		Permit(TriggerS1Approve, models.StatusS1Approved).
		Permit(TriggerSupervisorReject, models.StatusRejected)

	b.Configure(models.StatusS2Approved).
		Permit(TriggerS1Approve, models.StatusBothApproved).
		PermitIf(TriggerS2Approve, models.StatusBothApproved, anyModeOrNoSupervisor1).
		Permit(TriggerS2Approve, models.StatusS2Approved).
		Permit(TriggerSupervisorReject, models.StatusRejected)

	b.Configure(models.StatusBothApproved).
		Permit(TriggerFinanceApprove, models.StatusFinanceApproved).
		Permit(TriggerFinanceReject, models.StatusRejected)

	// Documents imported from the previous system carry a legacy "approved"
	// status; finance treats them like both_approved.
	b.Configure(models.StatusLegacyApproved).
		Permit(TriggerFinanceApprove, models.StatusFinanceApproved).
		Permit(TriggerFinanceReject, models.StatusRejected)

	b.Configure(models.StatusFinanceApproved).
		Permit(TriggerMarkPaid, models.StatusPaid)

	// Rejected claims re-enter the chain only through an explicit resubmission.
	b.Configure(models.StatusRejected).
		Permit(TriggerResubmit, models.StatusSubmitted)

	return b
}

// NewClaimMachine returns a state machine positioned at the claim's status
func NewClaimMachine(current models.Status) StateMachine {
	return newClaimBuilder().Build(current)
}

// TriggerForSupervisorApproval maps a supervisor level to its approval trigger
func TriggerForSupervisorApproval(level int) (Trigger, bool) {
	switch level {
	case 1:
		return TriggerS1Approve, true
	case 2:
		return TriggerS2Approve, true
	default:
		return "", false
	}
}
