package policy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearpath/claims/internal/models"
)

func validClaim() *models.Claim {
	return &models.Claim{
		BusinessUnit: "Alliance",
		Category:     "Travel",
		LineItems: []models.LineItem{
			{
				SubCategory: "Taxi",
				Description: "Airport transfer for the client visit",
				Amount:      decimal.NewFromInt(900),
				AmountInINR: decimal.NewFromInt(900),
			},
		},
	}
}

func violationCodes(result Result) []string {
	var out []string
	for _, v := range result.Violations {
		out = append(out, v.Code)
	}
	return out
}

func TestValidateAcceptsCleanClaim(t *testing.T) {
	engine := NewEngine(models.DefaultPolicy())

	result := engine.Validate(validClaim())

	assert.Empty(t, result.Violations)
	assert.Empty(t, result.Blocking())
}

func TestValidateAirTravelRequiresGST(t *testing.T) {
	engine := NewEngine(models.DefaultPolicy())

	claim := validClaim()
	claim.LineItems = []models.LineItem{{
		SubCategory: "Airfare",
		Description: "Return flight to the regional office",
		Amount:      decimal.NewFromInt(12000),
		AmountInINR: decimal.NewFromInt(12000),
		GSTTotal:    decimal.Zero,
		Attachments: []models.Attachment{
			{Label: "invoice"},
			{Label: "boarding_pass"},
		},
	}}

	result := engine.Validate(claim)

	require.Len(t, result.Blocking(), 1)
	assert.Equal(t, CodeGSTRequired, result.Blocking()[0].Code)

	// Supplying GST clears the violation.
	claim.LineItems[0].GSTTotal = decimal.NewFromInt(600)
	result = engine.Validate(claim)
	assert.Empty(t, result.Blocking())
}

func TestValidateRequiredDocuments(t *testing.T) {
	engine := NewEngine(models.DefaultPolicy())

	claim := validClaim()
	claim.LineItems = []models.LineItem{{
		SubCategory: "Hotel",
		Description: "Two nights near the conference venue",
		Amount:      decimal.NewFromInt(4000),
		AmountInINR: decimal.NewFromInt(4000),
		CityClass:   "B",
	}}

	result := engine.Validate(claim)

	require.Len(t, result.Blocking(), 1)
	assert.Equal(t, CodeDocumentMissing, result.Blocking()[0].Code)

	claim.LineItems[0].Attachments = []models.Attachment{{Label: "Invoice"}}
	result = engine.Validate(claim)
	assert.Empty(t, result.Blocking(), "label matching is case-insensitive")
}

func TestValidateCapSeverityFollowsPolicy(t *testing.T) {
	overCap := func() *models.Claim {
		claim := validClaim()
		claim.LineItems = []models.LineItem{{
			SubCategory: "Meals",
			Description: "Team dinner after the quarterly review",
			Amount:      decimal.NewFromInt(2000),
			AmountInINR: decimal.NewFromInt(2000),
			CityClass:   "A",
			Attachments: []models.Attachment{{Label: "receipt"}},
		}}
		return claim
	}

	soft := models.DefaultPolicy()
	result := NewEngine(soft).Validate(overCap())
	require.Contains(t, violationCodes(result), CodeCapExceeded)
	assert.Empty(t, result.Blocking(), "soft cap records a warning only")

	hard := models.DefaultPolicy()
	hard.RulesBehavior.CapExceeded = models.RuleHard
	result = NewEngine(hard).Validate(overCap())
	require.Len(t, result.Blocking(), 1)
	assert.Equal(t, CodeCapExceeded, result.Blocking()[0].Code)
}

func TestValidateCapFallsBackToDefaultCityClass(t *testing.T) {
	engine := NewEngine(models.DefaultPolicy())

	claim := validClaim()
	claim.LineItems = []models.LineItem{{
		SubCategory: "Meals",
		Description: "Working lunch with the vendor team",
		Amount:      decimal.NewFromInt(800),
		AmountInINR: decimal.NewFromInt(800),
		CityClass:   "unknown-city",
		Attachments: []models.Attachment{{Label: "receipt"}},
	}}

	result := engine.Validate(claim)
	assert.Contains(t, violationCodes(result), CodeCapExceeded, "default cap of 750 applies")
}

func TestValidateClaimLevelRules(t *testing.T) {
	engine := NewEngine(models.DefaultPolicy())

	claim := validClaim()
	claim.Category = "Groceries"
	claim.BusinessUnit = "Marketing"
	claim.LineItems[0].Description = "short"
	claim.LineItems[0].Amount = decimal.Zero
	claim.LineItems[0].AmountInINR = decimal.Zero

	result := engine.Validate(claim)

	got := violationCodes(result)
	assert.Contains(t, got, CodeCategoryInvalid)
	assert.Contains(t, got, CodeBusinessUnitInvalid)
	assert.Contains(t, got, CodeAmountNotPositive)
	assert.Contains(t, got, CodeDescriptionTooShort)
}

func TestValidateRecomputesTotals(t *testing.T) {
	engine := NewEngine(models.DefaultPolicy())

	claim := validClaim()
	claim.LineItems = []models.LineItem{
		{
			SubCategory: "Taxi",
			Description: "Airport transfer for the client visit",
			Amount:      decimal.NewFromInt(900),
			AmountInINR: decimal.NewFromInt(900),
		},
		{
			SubCategory: "Taxi",
			Description: "Return transfer after the client visit",
			Amount:      decimal.NewFromInt(600),
			AmountInINR: decimal.NewFromInt(600),
		},
	}
	claim.Advances = []models.Advance{{Amount: decimal.NewFromInt(500)}}

	// Client-supplied totals are overwritten, never trusted.
	claim.GrandTotal = decimal.NewFromInt(999999)

	result := engine.Validate(claim)
	ApplyTotals(claim, result.Totals)

	assert.True(t, claim.GrandTotal.Equal(decimal.NewFromInt(1500)))
	assert.True(t, claim.NetPayable.Equal(decimal.NewFromInt(1000)))
	assert.True(t, claim.TotalsByHead["Taxi"].Equal(decimal.NewFromInt(1500)))
}

func TestValidateLargeClaimSuggestsFinanceReview(t *testing.T) {
	engine := NewEngine(models.DefaultPolicy())

	claim := validClaim()
	claim.LineItems = []models.LineItem{{
		SubCategory: "Training",
		Description: "Certification course for the platform team",
		Amount:      decimal.NewFromInt(60000),
		AmountInINR: decimal.NewFromInt(60000),
	}}

	result := engine.Validate(claim)

	assert.Contains(t, violationCodes(result), CodeFinanceReviewSuggested)
	assert.Empty(t, result.Blocking(), "routing guidance never blocks submission")
}

func TestValidateIsDeterministic(t *testing.T) {
	engine := NewEngine(models.DefaultPolicy())

	claim := validClaim()
	claim.LineItems[0].Description = "short"

	first := engine.Validate(claim)
	second := engine.Validate(claim)

	assert.Equal(t, first.Violations, second.Violations)
	assert.True(t, first.Totals.GrandTotal.Equal(second.Totals.GrandTotal))
}
