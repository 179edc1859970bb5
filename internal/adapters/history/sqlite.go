// Package history implements ports.Storage over SQLite (pure Go, no CGo),
// adapted from the teacher's adapters/storage/sqlite.go: same single-writer
// connection, schema-on-open, and startup pruning shape, rescoped from
// per-market Gold/Silver rows to block-run summaries and opportunity
// records (spec section 9 "Opportunity history", a supplemented feature).
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aptosarb/arbcore/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS block_runs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    block_number    INTEGER  NOT NULL,
    detected_at     DATETIME NOT NULL,
    opportunities   INTEGER  NOT NULL DEFAULT 0,
    best_net_profit TEXT     NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS opportunities (
    id             TEXT PRIMARY KEY,
    strategy       TEXT     NOT NULL,
    block_number   INTEGER  NOT NULL,
    input_amount   TEXT     NOT NULL,
    expected_gross TEXT     NOT NULL,
    expected_net   TEXT     NOT NULL,
    gas_estimate   TEXT     NOT NULL,
    path           TEXT     NOT NULL,
    detected_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_block     ON block_runs(block_number DESC);
CREATE INDEX IF NOT EXISTS idx_opp_block      ON opportunities(block_number);
CREATE INDEX IF NOT EXISTS idx_opp_detected   ON opportunities(detected_at DESC);
`

const (
	retentionRuns          = 30 * 24 * time.Hour
	retentionOpportunities = 14 * 24 * time.Hour
)

// Store implements ports.Storage using SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, applies the schema, and
// prunes data past its retention window.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history.Open: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history.Open: apply schema: %w", err)
	}

	s := &Store{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveOpportunities persists one block-run summary row plus every
// opportunity in the batch (spec: ports.Storage.SaveOpportunities). The
// summary row carries the block number of the batch's last opportunity.
func (s *Store) SaveOpportunities(ctx context.Context, opportunities []domain.Opportunity) error {
	if len(opportunities) == 0 {
		return nil
	}

	now := time.Now().UTC()
	blockNumber, bestNet := summarize(opportunities)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history.SaveOpportunities: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO block_runs (block_number, detected_at, opportunities, best_net_profit) VALUES (?, ?, ?, ?)`,
		blockNumber, now, len(opportunities), bestNet.String(),
	); err != nil {
		return fmt.Errorf("history.SaveOpportunities: insert block_run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO opportunities
			(id, strategy, block_number, input_amount, expected_gross, expected_net, gas_estimate, path, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("history.SaveOpportunities: prepare: %w", err)
	}
	defer stmt.Close()

	for _, opp := range opportunities {
		if _, err := stmt.ExecContext(ctx,
			opp.ID,
			opp.Strategy,
			opp.BlockNumber,
			opp.InputAmount.String(),
			opp.ExpectedGross.String(),
			opp.ExpectedNet.String(),
			opp.GasEstimate.String(),
			pathString(opp.Path),
			opp.DetectedAt.UTC(),
		); err != nil {
			return fmt.Errorf("history.SaveOpportunities: insert opportunity %s: %w", opp.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history.SaveOpportunities: commit: %w", err)
	}
	return nil
}

// GetHistory returns opportunities detected within [from, to] (BETWEEN is
// inclusive at both ends), best net
// profit first. Path is not reconstructed into domain.Edge values: the
// stored form is a human-readable trail for audit, not a replay format.
func (s *Store) GetHistory(ctx context.Context, from, to time.Time) ([]domain.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy, block_number, input_amount, expected_gross, expected_net, gas_estimate, detected_at
		FROM opportunities
		WHERE detected_at BETWEEN ? AND ?
		ORDER BY CAST(expected_net AS REAL) DESC
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("history.GetHistory: query: %w", err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		var opp domain.Opportunity
		var inputAmount, expectedGross, expectedNet, gasEstimate string
		if err := rows.Scan(
			&opp.ID, &opp.Strategy, &opp.BlockNumber,
			&inputAmount, &expectedGross, &expectedNet, &gasEstimate,
			&opp.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("history.GetHistory: scan row: %w", err)
		}
		opp.InputAmount, _ = domain.ParseQuantity(inputAmount)
		opp.ExpectedGross, _ = domain.ParseQuantity(expectedGross)
		opp.ExpectedNet, _ = domain.ParseQuantity(expectedNet)
		opp.GasEstimate, _ = domain.ParseQuantity(gasEstimate)
		opps = append(opps, opp)
	}
	return opps, rows.Err()
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) pruneOld(ctx context.Context) {
	cutoffRuns := time.Now().UTC().Add(-retentionRuns)
	cutoffOpps := time.Now().UTC().Add(-retentionOpportunities)
	s.db.ExecContext(ctx, `DELETE FROM block_runs WHERE detected_at < ?`, cutoffRuns)
	s.db.ExecContext(ctx, `DELETE FROM opportunities WHERE detected_at < ?`, cutoffOpps)
}

func summarize(opps []domain.Opportunity) (blockNumber uint64, bestNet domain.Quantity) {
	bestNet = domain.ZeroQuantity
	for _, o := range opps {
		blockNumber = o.BlockNumber
		if o.ExpectedNet.GreaterThan(bestNet) {
			bestNet = o.ExpectedNet
		}
	}
	return blockNumber, bestNet
}

func pathString(path []domain.Edge) string {
	s := ""
	for i, e := range path {
		if i > 0 {
			s += "->"
		}
		s += fmt.Sprintf("%s/%s", e.Pair.AssetX, e.Exchange)
	}
	return s
}
