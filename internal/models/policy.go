package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalMode controls how many supervisor signatures a claim needs
type ApprovalMode string

const (
	// ApprovalModeBoth requires every assigned supervisor to approve.
	ApprovalModeBoth ApprovalMode = "both"

	// ApprovalModeAny lets a single supervisor approval complete the stage.
	ApprovalModeAny ApprovalMode = "any"
)

// RuleSeverity controls whether a validation rule blocks submission
type RuleSeverity string

const (
	RuleHard RuleSeverity = "hard" // violation blocks submission
	RuleSoft RuleSeverity = "soft" // violation is recorded as a warning
)

// RulesBehavior holds the per-rule severity configuration
type RulesBehavior struct {
	MissingDocuments RuleSeverity `json:"missing_documents"`
	CapExceeded      RuleSeverity `json:"cap_exceeded"`
}

// Policy is the active validation and workflow configuration. Policies are
// immutable once referenced by a claim; updates publish a new version.
type Policy struct {
	Version                       string                     `json:"version"`
	ApprovalMode                  ApprovalMode               `json:"approval_mode"`
	ClaimCategories               []string                   `json:"claim_categories"`
	MaxAmountBeforeFinanceManager decimal.Decimal            `json:"max_amount_before_finance_manager"`
	AllowedFileTypes              []string                   `json:"allowed_file_types"`
	MaxFileSizeMB                 int                        `json:"max_file_size_mb"`
	PayoutChannels                []string                   `json:"payout_channels"`
	MealCaps                      map[string]decimal.Decimal `json:"meal_caps"`    // city class -> cap per line item
	LodgingCaps                   map[string]decimal.Decimal `json:"lodging_caps"` // city class -> cap per line item
	RequiredDocuments             map[string][]string        `json:"required_documents"`
	RulesBehavior                 RulesBehavior              `json:"rules_behavior"`
	CreatedAt                     time.Time                  `json:"created_at"`
}

// HasCategory reports whether the category is allowed by this policy
func (p *Policy) HasCategory(category string) bool {
	for _, c := range p.ClaimCategories {
		if c == category {
			return true
		}
	}
	return false
}

// HasPayoutChannel reports whether the channel is an allowed payout channel
func (p *Policy) HasPayoutChannel(channel string) bool {
	for _, c := range p.PayoutChannels {
		if c == channel {
			return true
		}
	}
	return false
}

// DefaultPolicy returns the bootstrap policy installed by the explicit
// deployment bootstrap step. Runtime reads never create policy state.
func DefaultPolicy() *Policy {
	return &Policy{
		ApprovalMode: ApprovalModeBoth,
		ClaimCategories: []string{
			"Travel",
			"Meals & Entertainment",
			"Lodging",
			"Office Supplies",
			"Training",
			"Other",
		},
		MaxAmountBeforeFinanceManager: decimal.NewFromInt(50000),
		AllowedFileTypes:              []string{"pdf", "jpg", "jpeg", "png"},
		MaxFileSizeMB:                 10,
		PayoutChannels:                []string{"Bank Transfer", "Payroll", "Cheque"},
		MealCaps: map[string]decimal.Decimal{
			"A":       decimal.NewFromInt(1500),
			"B":       decimal.NewFromInt(1000),
			"default": decimal.NewFromInt(750),
		},
		LodgingCaps: map[string]decimal.Decimal{
			"A":       decimal.NewFromInt(8000),
			"B":       decimal.NewFromInt(5000),
			"default": decimal.NewFromInt(3500),
		},
		RequiredDocuments: map[string][]string{
			"airfare": {"invoice", "boarding_pass"},
			"lodging": {"invoice"},
			"meals":   {"receipt"},
		},
		RulesBehavior: RulesBehavior{
			MissingDocuments: RuleHard,
			CapExceeded:      RuleSoft,
		},
	}
}
