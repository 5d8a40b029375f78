package policy

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/clearpath/claims/internal/apperror"
	"github.com/clearpath/claims/internal/models"
)

// Violation codes emitted by the validation engine
const (
	CodeCategoryInvalid        = "CATEGORY_INVALID"
	CodeBusinessUnitInvalid    = "BUSINESS_UNIT_INVALID"
	CodeAmountNotPositive      = "AMOUNT_NOT_POSITIVE"
	CodeDescriptionTooShort    = "DESCRIPTION_TOO_SHORT"
	CodeGSTRequired            = "GST_REQUIRED"
	CodeDocumentMissing        = "DOCUMENT_MISSING"
	CodeCapExceeded            = "CAP_EXCEEDED"
	CodeFinanceReviewSuggested = "FINANCE_REVIEW_SUGGESTED"
)

const minDescriptionLength = 10

// Totals are the server-side recomputed aggregates. Client-supplied totals are
// never trusted; these overwrite them on every validation.
type Totals struct {
	ByHead     map[string]decimal.Decimal
	GrandTotal decimal.Decimal
	NetPayable decimal.Decimal
}

// Result is the outcome of validating a draft against a policy
type Result struct {
	Violations []apperror.Violation
	Totals     Totals
}

// Blocking returns only the error-level violations
func (r Result) Blocking() []apperror.Violation {
	var blocking []apperror.Violation
	for _, v := range r.Violations {
		if v.Level == models.ViolationLevelError {
			blocking = append(blocking, v)
		}
	}
	return blocking
}

// Engine validates claim drafts against one policy version. It is pure: the
// policy is passed in at construction, no hidden global lookups, and the same
// draft against the same policy always yields the identical violation list.
type Engine struct {
	policy *models.Policy
}

// NewEngine creates a validation engine bound to a policy version
func NewEngine(policy *models.Policy) *Engine {
	return &Engine{policy: policy}
}

// Validate evaluates the draft and recomputes its totals. Rules are
// order-independent; the result lists violations in a deterministic order
// (claim-level rules first, then line items in sequence).
func (e *Engine) Validate(claim *models.Claim) Result {
	var violations []apperror.Violation

	if !e.policy.HasCategory(claim.Category) {
		violations = append(violations, apperror.Violation{
			Code:    CodeCategoryInvalid,
			Message: fmt.Sprintf("category %q is not in the active policy", claim.Category),
			Level:   models.ViolationLevelError,
		})
	}

	if !isValidBusinessUnit(claim.BusinessUnit) {
		violations = append(violations, apperror.Violation{
			Code:    CodeBusinessUnitInvalid,
			Message: fmt.Sprintf("business unit %q is not one of %s", claim.BusinessUnit, strings.Join(models.BusinessUnits, ", ")),
			Level:   models.ViolationLevelError,
		})
	}

	for i, item := range claim.LineItems {
		violations = append(violations, e.validateLineItem(i, item)...)
	}

	totals := computeTotals(claim)

	if totals.GrandTotal.GreaterThan(e.policy.MaxAmountBeforeFinanceManager) {
		// Routing guidance only: the claim still travels the normal chain.
		violations = append(violations, apperror.Violation{
			Code: CodeFinanceReviewSuggested,
			Message: fmt.Sprintf("grand total %s exceeds %s; finance review recommended",
				totals.GrandTotal.StringFixed(2), e.policy.MaxAmountBeforeFinanceManager.StringFixed(2)),
			Level: models.ViolationLevelWarn,
		})
	}

	return Result{
		Violations: violations,
		Totals:     totals,
	}
}

func (e *Engine) validateLineItem(index int, item models.LineItem) []apperror.Violation {
	var violations []apperror.Violation

	if !item.Amount.IsPositive() {
		violations = append(violations, apperror.Violation{
			Code:    CodeAmountNotPositive,
			Message: fmt.Sprintf("line %d: amount must be greater than zero", index+1),
			Level:   models.ViolationLevelError,
		})
	}

	if len(strings.TrimSpace(item.Description)) < minDescriptionLength {
		violations = append(violations, apperror.Violation{
			Code:    CodeDescriptionTooShort,
			Message: fmt.Sprintf("line %d: description must be at least %d characters", index+1, minDescriptionLength),
			Level:   models.ViolationLevelError,
		})
	}

	// GST is mandatory on air travel; supplied GST elsewhere is accepted as-is.
	if isAirTravel(item.SubCategory) && !item.GSTTotal.IsPositive() {
		violations = append(violations, apperror.Violation{
			Code:    CodeGSTRequired,
			Message: fmt.Sprintf("line %d: GST amount is required for air travel", index+1),
			Level:   models.ViolationLevelError,
		})
	}

	violations = append(violations, e.checkRequiredDocuments(index, item)...)
	violations = append(violations, e.checkCaps(index, item)...)

	return violations
}

func (e *Engine) checkRequiredDocuments(index int, item models.LineItem) []apperror.Violation {
	required, ok := e.policy.RequiredDocuments[kindOf(item.SubCategory)]
	if !ok {
		return nil
	}

	present := make(map[string]bool, len(item.Attachments))
	for _, att := range item.Attachments {
		present[strings.ToLower(att.Label)] = true
	}

	level := severityLevel(e.policy.RulesBehavior.MissingDocuments)

	var violations []apperror.Violation
	for _, label := range required {
		if !present[strings.ToLower(label)] {
			violations = append(violations, apperror.Violation{
				Code:    CodeDocumentMissing,
				Message: fmt.Sprintf("line %d: required document %q is missing", index+1, label),
				Level:   level,
			})
		}
	}

	return violations
}

func (e *Engine) checkCaps(index int, item models.LineItem) []apperror.Violation {
	var caps map[string]decimal.Decimal
	switch kindOf(item.SubCategory) {
	case "meals":
		caps = e.policy.MealCaps
	case "lodging":
		caps = e.policy.LodgingCaps
	default:
		return nil
	}

	limit, ok := capFor(caps, item.CityClass)
	if !ok || !item.AmountInINR.GreaterThan(limit) {
		return nil
	}

	return []apperror.Violation{{
		Code: CodeCapExceeded,
		Message: fmt.Sprintf("line %d: amount %s exceeds the %s cap of %s",
			index+1, item.AmountInINR.StringFixed(2), kindOf(item.SubCategory), limit.StringFixed(2)),
		Level: severityLevel(e.policy.RulesBehavior.CapExceeded),
	}}
}

// computeTotals recomputes totalsByHead, grandTotal and netPayable from the
// line items and advances. AmountInINR is the normalized reporting amount.
func computeTotals(claim *models.Claim) Totals {
	byHead := make(map[string]decimal.Decimal)
	grand := decimal.Zero

	for _, item := range claim.LineItems {
		byHead[item.SubCategory] = byHead[item.SubCategory].Add(item.AmountInINR)
		grand = grand.Add(item.AmountInINR)
	}

	advances := decimal.Zero
	for _, adv := range claim.Advances {
		advances = advances.Add(adv.Amount)
	}

	return Totals{
		ByHead:     byHead,
		GrandTotal: grand,
		NetPayable: grand.Sub(advances),
	}
}

// ApplyTotals overwrites the claim's aggregates with the recomputed values
func ApplyTotals(claim *models.Claim, totals Totals) {
	claim.TotalsByHead = totals.ByHead
	claim.GrandTotal = totals.GrandTotal
	claim.NetPayable = totals.NetPayable
}

func isValidBusinessUnit(unit string) bool {
	for _, u := range models.BusinessUnits {
		if u == unit {
			return true
		}
	}
	return false
}

func isAirTravel(subCategory string) bool {
	s := strings.ToLower(subCategory)
	return strings.Contains(s, "airfare") || strings.Contains(s, "flight")
}

// kindOf maps a free-form sub-category to the policy rule key it falls under
func kindOf(subCategory string) string {
	s := strings.ToLower(subCategory)
	switch {
	case strings.Contains(s, "airfare"), strings.Contains(s, "flight"):
		return "airfare"
	case strings.Contains(s, "lodging"), strings.Contains(s, "hotel"), strings.Contains(s, "accommodation"):
		return "lodging"
	case strings.Contains(s, "meal"), strings.Contains(s, "food"):
		return "meals"
	default:
		return s
	}
}

func capFor(caps map[string]decimal.Decimal, cityClass string) (decimal.Decimal, bool) {
	if cityClass != "" {
		if limit, ok := caps[cityClass]; ok {
			return limit, true
		}
	}
	limit, ok := caps["default"]
	return limit, ok
}

func severityLevel(severity models.RuleSeverity) string {
	if severity == models.RuleHard {
		return models.ViolationLevelError
	}
	return models.ViolationLevelWarn
}
