package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/clearpath/claims/internal/apperror"
	"github.com/clearpath/claims/internal/models"
)

// ClaimFilter narrows a claim list query. Produced by the access projector;
// the repository only translates it to SQL.
type ClaimFilter struct {
	Unrestricted bool
	EmployeeIDs  []string
	Statuses     []models.Status
}

// ClaimRepository persists claim documents. Line items, advances, approvals
// and the timeline are stored as JSON columns, mirroring the document shape
// the rest of the system exchanges.
type ClaimRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *sql.DB, logger *zap.Logger) *ClaimRepository {
	return &ClaimRepository{
		db:     db,
		logger: logger,
	}
}

const claimColumns = `
	id, claim_id, employee_id, created_by, business_unit, category, status,
	policy_version, line_items, advances, totals_by_head, grand_total,
	net_payable, violations, supervisor_approval, finance_approval, payment,
	timeline, version, created_at, updated_at
`

// Create inserts a new claim in submitted status
func (r *ClaimRepository) Create(ctx context.Context, tx *sql.Tx, claim *models.Claim) error {
	query := `
		INSERT INTO claims (
			claim_id, employee_id, created_by, business_unit, category, status,
			policy_version, line_items, advances, totals_by_head, grand_total,
			net_payable, violations, supervisor_approval, finance_approval,
			payment, timeline, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`

	doc, err := marshalClaimDoc(claim)
	if err != nil {
		return err
	}

	args := []any{
		claim.ClaimID,
		claim.EmployeeID,
		claim.CreatedBy,
		claim.BusinessUnit,
		claim.Category,
		string(claim.Status),
		claim.PolicyVersion,
		doc.lineItems,
		doc.advances,
		doc.totalsByHead,
		claim.GrandTotal.String(),
		claim.NetPayable.String(),
		doc.violations,
		doc.supervisorApproval,
		doc.financeApproval,
		doc.payment,
		doc.timeline,
	}

	var result sql.Result
	if tx != nil {
		result, err = tx.ExecContext(ctx, query, args...)
	} else {
		result, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to create claim", zap.String("claim_id", claim.ClaimID), zap.Error(err))
		return fmt.Errorf("failed to create claim: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	claim.ID = id
	claim.Version = 1
	return nil
}

// GetByClaimID retrieves a claim by its human-readable ID
func (r *ClaimRepository) GetByClaimID(ctx context.Context, claimID string) (*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE claim_id = ?`

	row := r.db.QueryRowContext(ctx, query, claimID)
	claim, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound("claim")
	}
	if err != nil {
		r.logger.Error("Failed to get claim", zap.String("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	return claim, nil
}

// Update writes the full claim document conditionally on the version the
// caller read. A zero-row update means a concurrent writer won the race and
// the caller must reload and retry.
func (r *ClaimRepository) Update(ctx context.Context, claim *models.Claim) error {
	query := `
		UPDATE claims SET
			business_unit = ?, category = ?, status = ?, line_items = ?,
			advances = ?, totals_by_head = ?, grand_total = ?, net_payable = ?,
			violations = ?, supervisor_approval = ?, finance_approval = ?,
			payment = ?, timeline = ?, version = version + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE claim_id = ? AND version = ?
	`

	doc, err := marshalClaimDoc(claim)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query,
		claim.BusinessUnit,
		claim.Category,
		string(claim.Status),
		doc.lineItems,
		doc.advances,
		doc.totalsByHead,
		claim.GrandTotal.String(),
		claim.NetPayable.String(),
		doc.violations,
		doc.supervisorApproval,
		doc.financeApproval,
		doc.payment,
		doc.timeline,
		claim.ClaimID,
		claim.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update claim", zap.String("claim_id", claim.ClaimID), zap.Error(err))
		return fmt.Errorf("failed to update claim: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.Concurrency("claim")
	}

	claim.Version++
	return nil
}

// List returns claims matching the visibility filter, newest first
func (r *ClaimRepository) List(ctx context.Context, filter ClaimFilter) ([]*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims`

	var conditions []string
	var args []any

	if filter.Unrestricted {
		// Unrestricted lifts the ownership scope only; an explicit status
		// filter still narrows the result.
		if len(filter.Statuses) > 0 {
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Statuses)), ",")
			conditions = append(conditions, fmt.Sprintf("status IN (%s)", placeholders))
			for _, s := range filter.Statuses {
				args = append(args, string(s))
			}
		}
	} else {
		var parts []string
		if len(filter.EmployeeIDs) > 0 {
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.EmployeeIDs)), ",")
			parts = append(parts, fmt.Sprintf("employee_id IN (%s)", placeholders))
			for _, id := range filter.EmployeeIDs {
				args = append(args, id)
			}
		}
		if len(filter.Statuses) > 0 {
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Statuses)), ",")
			parts = append(parts, fmt.Sprintf("status IN (%s)", placeholders))
			for _, s := range filter.Statuses {
				args = append(args, string(s))
			}
		}
		if len(parts) == 0 {
			// An empty restricted filter matches nothing.
			return nil, nil
		}
		conditions = append(conditions, "("+strings.Join(parts, " OR ")+")")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list claims", zap.Error(err))
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var claims []*models.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}

// Delete removes a claim document. The caller is responsible for enforcing
// lifecycle rules and cascading blob deletion.
func (r *ClaimRepository) Delete(ctx context.Context, claimID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM claims WHERE claim_id = ?", claimID)
	if err != nil {
		r.logger.Error("Failed to delete claim", zap.String("claim_id", claimID), zap.Error(err))
		return fmt.Errorf("failed to delete claim: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("claim")
	}

	return nil
}

// claimDoc holds the JSON-encoded document columns
type claimDoc struct {
	lineItems          string
	advances           string
	totalsByHead       string
	violations         string
	supervisorApproval sql.NullString
	financeApproval    sql.NullString
	payment            sql.NullString
	timeline           string
}

func marshalClaimDoc(claim *models.Claim) (*claimDoc, error) {
	doc := &claimDoc{}

	var err error
	if doc.lineItems, err = marshalJSON(claim.LineItems); err != nil {
		return nil, err
	}
	if doc.advances, err = marshalJSON(claim.Advances); err != nil {
		return nil, err
	}
	if doc.totalsByHead, err = marshalJSON(claim.TotalsByHead); err != nil {
		return nil, err
	}
	if doc.violations, err = marshalJSON(claim.Violations); err != nil {
		return nil, err
	}
	if doc.timeline, err = marshalJSON(claim.Timeline); err != nil {
		return nil, err
	}
	if doc.supervisorApproval, err = marshalNullable(claim.SupervisorApproval); err != nil {
		return nil, err
	}
	if doc.financeApproval, err = marshalNullable(claim.FinanceApproval); err != nil {
		return nil, err
	}
	if doc.payment, err = marshalNullable(claim.Payment); err != nil {
		return nil, err
	}

	return doc, nil
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claim document: %w", err)
	}
	return string(data), nil
}

func marshalNullable[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	s, err := marshalJSON(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*models.Claim, error) {
	var claim models.Claim
	var status, lineItems, advances, totalsByHead, violations, timeline string
	var grandTotal, netPayable string
	var supervisorApproval, financeApproval, payment sql.NullString
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&claim.ID,
		&claim.ClaimID,
		&claim.EmployeeID,
		&claim.CreatedBy,
		&claim.BusinessUnit,
		&claim.Category,
		&status,
		&claim.PolicyVersion,
		&lineItems,
		&advances,
		&totalsByHead,
		&grandTotal,
		&netPayable,
		&violations,
		&supervisorApproval,
		&financeApproval,
		&payment,
		&timeline,
		&claim.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	claim.Status = models.Status(status)
	claim.CreatedAt = createdAt
	claim.UpdatedAt = updatedAt

	if claim.GrandTotal, err = decimal.NewFromString(grandTotal); err != nil {
		return nil, fmt.Errorf("invalid grand total %q: %w", grandTotal, err)
	}
	if claim.NetPayable, err = decimal.NewFromString(netPayable); err != nil {
		return nil, fmt.Errorf("invalid net payable %q: %w", netPayable, err)
	}

	if err := json.Unmarshal([]byte(lineItems), &claim.LineItems); err != nil {
		return nil, fmt.Errorf("invalid line items document: %w", err)
	}
	if err := json.Unmarshal([]byte(advances), &claim.Advances); err != nil {
		return nil, fmt.Errorf("invalid advances document: %w", err)
	}
	if err := json.Unmarshal([]byte(totalsByHead), &claim.TotalsByHead); err != nil {
		return nil, fmt.Errorf("invalid totals document: %w", err)
	}
	if err := json.Unmarshal([]byte(violations), &claim.Violations); err != nil {
		return nil, fmt.Errorf("invalid violations document: %w", err)
	}
	if err := json.Unmarshal([]byte(timeline), &claim.Timeline); err != nil {
		return nil, fmt.Errorf("invalid timeline document: %w", err)
	}

	if err := unmarshalNullable(supervisorApproval, &claim.SupervisorApproval); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(financeApproval, &claim.FinanceApproval); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(payment, &claim.Payment); err != nil {
		return nil, err
	}

	return &claim, nil
}

func unmarshalNullable[T any](src sql.NullString, dst **T) error {
	if !src.Valid || src.String == "" {
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(src.String), &v); err != nil {
		return fmt.Errorf("invalid claim document field: %w", err)
	}
	*dst = &v
	return nil
}
