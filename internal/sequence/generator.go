// Package sequence issues strictly increasing integers per named counter.
// Claim and leave IDs share the same generator.
package sequence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/clearpath/claims/pkg/database"
)

// Generator hands out monotonically increasing values per counter name.
// The increment is a single atomic UPSERT at the storage layer, so two
// submissions in the same instant can never receive the same value. Gaps are
// acceptable (a crash after incrementing is not rolled back); duplicates are not.
type Generator struct {
	db     *database.DB
	logger *zap.Logger
}

// NewGenerator creates a new sequence generator
func NewGenerator(db *database.DB, logger *zap.Logger) *Generator {
	return &Generator{
		db:     db,
		logger: logger,
	}
}

// Next atomically increments the named counter and returns the new value.
// A missing counter is created on first use starting at 1.
func (g *Generator) Next(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value
	`

	var value int64
	if err := g.db.QueryRowContext(ctx, query, name).Scan(&value); err != nil {
		g.logger.Error("Failed to advance counter", zap.String("counter", name), zap.Error(err))
		return 0, fmt.Errorf("failed to advance counter %s: %w", name, err)
	}

	return value, nil
}

// Initialize seeds a counter only if it does not exist yet. Used to backfill
// after importing legacy data; a no-op when the counter is already present.
func (g *Generator) Initialize(ctx context.Context, name string, start int64) error {
	query := `INSERT INTO counters (name, value) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`

	if _, err := g.db.ExecContext(ctx, query, name, start); err != nil {
		return fmt.Errorf("failed to initialize counter %s: %w", name, err)
	}

	return nil
}

// Current returns the counter's last issued value without advancing it.
// Returns 0 when the counter has never been used.
func (g *Generator) Current(ctx context.Context, name string) (int64, error) {
	var value int64
	err := g.db.QueryRowContext(ctx, "SELECT value FROM counters WHERE name = ?", name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read counter %s: %w", name, err)
	}
	return value, nil
}

// FormatID renders the human-readable entity ID, e.g. "claim_2026_00042".
// The year is the creation year; the counter itself never resets.
func FormatID(entity string, year int, seq int64) string {
	return fmt.Sprintf("%s_%d_%05d", entity, year, seq)
}
