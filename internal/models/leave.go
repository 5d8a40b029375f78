package models

import "time"

// LeaveStatus is the leave-request lifecycle state
type LeaveStatus string

const (
	LeaveStatusPending       LeaveStatus = "pending"
	LeaveStatusFirstApproved LeaveStatus = "first_approved"
	LeaveStatusApproved      LeaveStatus = "approved"
	LeaveStatusRejected      LeaveStatus = "rejected"
)

// LeaveRequest is the simpler sibling workflow to a claim: time off approved
// in order by two fixed executive approvers.
type LeaveRequest struct {
	ID         int64           `json:"id"`
	LeaveID    string          `json:"leave_id"` // human-readable, shares the sequence generator with claims
	EmployeeID string          `json:"employee_id"`
	Type       string          `json:"type"` // casual, sick, earned
	FromDate   time.Time       `json:"from_date"`
	ToDate     time.Time       `json:"to_date"`
	Days       float64         `json:"days"`
	Reason     string          `json:"reason"`
	Status     LeaveStatus     `json:"status"`
	Approvals  []Approval      `json:"approvals"`
	Timeline   []TimelineEntry `json:"timeline"`
	Version    int64           `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// AppendTimeline appends an immutable timeline entry
func (l *LeaveRequest) AppendTimeline(actor, action, note string) {
	l.Timeline = append(l.Timeline, TimelineEntry{
		Actor:     actor,
		Action:    action,
		Note:      note,
		Timestamp: time.Now().UTC(),
	})
}
