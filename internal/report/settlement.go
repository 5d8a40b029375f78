// Package report produces finance-facing exports of settled claims.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/clearpath/claims/internal/models"
	"github.com/clearpath/claims/internal/repository"
)

// SettlementReporter builds the Excel settlement report of paid claims
type SettlementReporter struct {
	claims *repository.ClaimRepository
	logger *zap.Logger
}

// NewSettlementReporter creates a new settlement reporter
func NewSettlementReporter(claims *repository.ClaimRepository, logger *zap.Logger) *SettlementReporter {
	return &SettlementReporter{
		claims: claims,
		logger: logger,
	}
}

var settlementHeaders = []string{
	"Claim ID", "Employee ID", "Business Unit", "Category",
	"Grand Total", "Advances", "Net Payable",
	"Paid By", "Paid At", "Channel", "Reference",
}

// Generate writes the settlement workbook of all paid claims to outputPath
func (r *SettlementReporter) Generate(ctx context.Context, outputPath string) error {
	claims, err := r.claims.List(ctx, repository.ClaimFilter{
		Unrestricted: true,
		Statuses:     []models.Status{models.StatusPaid},
	})
	if err != nil {
		return fmt.Errorf("failed to load paid claims: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	for col, header := range settlementHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		r.setCell(f, sheet, cell, header)
	}

	netTotal := decimal.Zero
	for i, claim := range claims {
		row := i + 2

		advances := decimal.Zero
		for _, adv := range claim.Advances {
			advances = advances.Add(adv.Amount)
		}

		paidBy, paidAt, channel, reference := "", "", "", ""
		if claim.Payment != nil {
			paidBy = claim.Payment.PaidBy
			paidAt = claim.Payment.PaidAt.Format("2006-01-02")
			channel = claim.Payment.Channel
			reference = claim.Payment.Reference
		}

		values := []any{
			claim.ClaimID,
			claim.EmployeeID,
			claim.BusinessUnit,
			claim.Category,
			claim.GrandTotal.StringFixed(2),
			advances.StringFixed(2),
			claim.NetPayable.StringFixed(2),
			paidBy,
			paidAt,
			channel,
			reference,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			r.setCell(f, sheet, cell, value)
		}

		netTotal = netTotal.Add(claim.NetPayable)
	}

	totalRow := len(claims) + 2
	cell, _ := excelize.CoordinatesToCellName(1, totalRow)
	r.setCell(f, sheet, cell, "Total")
	cell, _ = excelize.CoordinatesToCellName(7, totalRow)
	r.setCell(f, sheet, cell, netTotal.StringFixed(2))

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save settlement report: %w", err)
	}

	r.logger.Info("Settlement report generated",
		zap.String("output_path", outputPath),
		zap.Int("claims", len(claims)),
		zap.String("generated_at", time.Now().UTC().Format(time.RFC3339)))

	return nil
}

// setCell sets a cell value, logging instead of failing on bad coordinates
func (r *SettlementReporter) setCell(f *excelize.File, sheet, cell string, value any) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		r.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}
