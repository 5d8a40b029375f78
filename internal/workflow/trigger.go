package workflow

// Trigger is an action an actor attempts against a claim
type Trigger string

const (
	TriggerS1Approve        Trigger = "S1_APPROVE"
	TriggerS2Approve        Trigger = "S2_APPROVE"
	TriggerSupervisorReject Trigger = "SUPERVISOR_REJECT"
	TriggerFinanceApprove   Trigger = "FINANCE_APPROVE"
	TriggerFinanceReject    Trigger = "FINANCE_REJECT"
	TriggerMarkPaid         Trigger = "MARK_PAID"
	TriggerResubmit         Trigger = "RESUBMIT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
