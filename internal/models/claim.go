package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearpath/claims/internal/apperror"
)

// Status is the claim lifecycle state
type Status string

const (
	StatusSubmitted       Status = "submitted"
	StatusS1Approved      Status = "s1_approved"
	StatusS2Approved      Status = "s2_approved"
	StatusBothApproved    Status = "both_approved"
	StatusFinanceApproved Status = "finance_approved"
	StatusPaid            Status = "paid"
	StatusRejected        Status = "rejected"

	// StatusLegacyApproved appears in documents imported from the previous
	// system. Treated as both_approved by list filters only.
	StatusLegacyApproved Status = "approved"
)

var validStatuses = map[Status]bool{
	StatusSubmitted:       true,
	StatusS1Approved:      true,
	StatusS2Approved:      true,
	StatusBothApproved:    true,
	StatusFinanceApproved: true,
	StatusPaid:            true,
	StatusRejected:        true,
	StatusLegacyApproved:  true,
}

// IsValid returns true if the status is a known lifecycle state
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// BusinessUnits is the closed set of units a claim may be booked against
var BusinessUnits = []string{"Alliance", "Coinnovation", "General"}

// Claim is a reimbursement expense claim moving through the approval chain
type Claim struct {
	ID            int64                      `json:"id"`
	ClaimID       string                     `json:"claim_id"` // human-readable, assigned once
	EmployeeID    string                     `json:"employee_id"`
	CreatedBy     string                     `json:"created_by"` // may differ when a supervisor files on behalf
	BusinessUnit  string                     `json:"business_unit"`
	Category      string                     `json:"category"`
	LineItems     []LineItem                 `json:"line_items"`
	Advances      []Advance                  `json:"advances"`
	TotalsByHead  map[string]decimal.Decimal `json:"totals_by_head"`
	GrandTotal    decimal.Decimal            `json:"grand_total"`
	NetPayable    decimal.Decimal            `json:"net_payable"`
	Status        Status                     `json:"status"`
	PolicyVersion string                     `json:"policy_version"`
	Violations    []apperror.Violation       `json:"violations"`

	SupervisorApproval *Approval `json:"supervisor_approval,omitempty"`
	FinanceApproval    *Approval `json:"finance_approval,omitempty"`
	Payment            *Payment  `json:"payment,omitempty"`

	Timeline []TimelineEntry `json:"timeline"`

	// Version guards read-modify-write cycles; bumped on every update.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineItem is a single expense entry on a claim
type LineItem struct {
	Date        time.Time       `json:"date"`
	SubCategory string          `json:"sub_category"`
	Description string          `json:"description"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	GSTTotal    decimal.Decimal `json:"gst_total"`
	// AmountInINR is supplied by the client together with its FX rate and is
	// never derived from Amount here.
	AmountInINR decimal.Decimal `json:"amount_in_inr"`
	CityClass   string          `json:"city_class,omitempty"`
	Attachments []Attachment    `json:"attachments"`
}

// Attachment is an uploaded document backing a line item
type Attachment struct {
	FileID     string `json:"file_id"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	Mime       string `json:"mime"`
	StorageKey string `json:"storage_key"` // opaque handle into the blob store
	Label      string `json:"label"`       // document-type tag for required-document matching
}

// Advance is money already paid out against the claim
type Advance struct {
	Date   time.Time       `json:"date"`
	RefNo  string          `json:"ref_no"`
	Amount decimal.Decimal `json:"amount"`
}

// Approval records a single approval stage decision
type Approval struct {
	ApprovedBy string    `json:"approved_by"`
	ApprovedAt time.Time `json:"approved_at"`
	Status     string    `json:"status"` // "approved" or "rejected"
	Level      int       `json:"level,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Notes      string    `json:"notes,omitempty"`
}

// Payment records the terminal payout
type Payment struct {
	PaidBy    string    `json:"paid_by"`
	PaidAt    time.Time `json:"paid_at"`
	Channel   string    `json:"channel"`
	Reference string    `json:"reference,omitempty"`
}

// TimelineEntry is an immutable audit entry internal to the claim
type TimelineEntry struct {
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AppendTimeline appends an immutable timeline entry
func (c *Claim) AppendTimeline(actor, action, note string) {
	c.Timeline = append(c.Timeline, TimelineEntry{
		Actor:     actor,
		Action:    action,
		Note:      note,
		Timestamp: time.Now().UTC(),
	})
}

// IsReadyForFinance reports whether the finance manager may act on the claim
func (c *Claim) IsReadyForFinance() bool {
	return c.Status == StatusBothApproved || c.Status == StatusLegacyApproved
}

// CanDelete reports whether the claim is still in an early enough state to be
// deleted. Finance-approved and paid claims are permanent.
func (c *Claim) CanDelete() bool {
	return c.Status != StatusFinanceApproved && c.Status != StatusPaid
}

// HasBlockingViolations reports whether any error-level violation is present
func (c *Claim) HasBlockingViolations() bool {
	for _, v := range c.Violations {
		if v.Level == ViolationLevelError {
			return true
		}
	}
	return false
}

// Violation levels
const (
	ViolationLevelError = "error"
	ViolationLevelWarn  = "warn"
)
