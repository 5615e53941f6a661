package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QueryService provides read-only access to projection tables. Queries
// are served over HTTP/JSON via the gateway mux, reading from PostgreSQL
// projections. All responses include as_of_sequence for freshness
// semantics.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetAuction returns a single auction by ID. Only settled or cancelled
// auctions appear here; live auctions exist only in core state.
func (qs *QueryService) GetAuction(ctx context.Context, auctionID uint64) (*AuctionResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	row := qs.db.QueryRowContext(ctx, `
		SELECT auction_id, kind, status, winner, win_price, amount, step, sequence, timestamp
		FROM projections.auction_history
		WHERE auction_id = $1
	`, auctionID)

	a, err := scanAuction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.AsOfSequence = asOfSeq
	return a, nil
}

// ListAuctions returns settled/cancelled auctions with cursor-based
// pagination, newest first. Kind and status filters are optional.
func (qs *QueryService) ListAuctions(
	ctx context.Context,
	kind *string,
	status *string,
	limit int,
	afterSequence *int64,
) ([]AuctionResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT auction_id, kind, status, winner, win_price, amount, step, sequence, timestamp
		FROM projections.auction_history
		WHERE TRUE
	`
	args := []interface{}{}
	argIdx := 1

	if kind != nil {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, *kind)
		argIdx++
	}

	if status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *status)
		argIdx++
	}

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []AuctionResponse
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		a.AsOfSequence = asOfSeq
		auctions = append(auctions, *a)
	}

	return auctions, rows.Err()
}

// GetStabilizationHistory returns stabilization verdicts, newest first,
// optionally filtered by asset.
func (qs *QueryService) GetStabilizationHistory(
	ctx context.Context,
	asset *string,
	limit int,
	afterSequence *int64,
) ([]StabilizationResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT asset, verdict, amount, step, sequence, timestamp
		FROM projections.stabilization_history
		WHERE TRUE
	`
	args := []interface{}{}
	argIdx := 1

	if asset != nil {
		query += fmt.Sprintf(" AND asset = $%d", argIdx)
		args = append(args, *asset)
		argIdx++
	}

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []StabilizationResponse
	for rows.Next() {
		var h StabilizationResponse
		var ts time.Time
		if err := rows.Scan(&h.Asset, &h.Verdict, &h.Amount, &h.Step, &h.Sequence, &ts); err != nil {
			return nil, err
		}
		h.Timestamp = ts.UnixMicro()
		h.AsOfSequence = asOfSeq
		history = append(history, h)
	}

	return history, rows.Err()
}

// GetSerpUpDeliveries returns the distribution legs of past serp-up
// adjustments for an asset, newest first.
func (qs *QueryService) GetSerpUpDeliveries(
	ctx context.Context,
	asset string,
	limit int,
) ([]DeliveryResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT asset, destination, account, amount, step, sequence
		FROM projections.serpup_deliveries
		WHERE asset = $1
		ORDER BY sequence DESC, destination
		LIMIT $2
	`, asset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []DeliveryResponse
	for rows.Next() {
		var d DeliveryResponse
		if err := rows.Scan(&d.Asset, &d.Destination, &d.Account, &d.Amount, &d.Step, &d.Sequence); err != nil {
			return nil, err
		}
		d.AsOfSequence = asOfSeq
		deliveries = append(deliveries, d)
	}

	return deliveries, rows.Err()
}

// GetSwapHistory returns past reserve-to-stable swaps, newest first.
func (qs *QueryService) GetSwapHistory(ctx context.Context, limit int) ([]SwapResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT supply, received, step, sequence, timestamp
		FROM projections.swap_history
		ORDER BY sequence DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var swaps []SwapResponse
	for rows.Next() {
		var s SwapResponse
		var ts time.Time
		if err := rows.Scan(&s.Supply, &s.Received, &s.Step, &s.Sequence, &ts); err != nil {
			return nil, err
		}
		s.Timestamp = ts.UnixMicro()
		s.AsOfSequence = asOfSeq
		swaps = append(swaps, s)
	}

	return swaps, rows.Err()
}

// GetPools returns the current treasury pool levels.
func (qs *QueryService) GetPools(ctx context.Context) ([]PoolResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT pool, balance, last_sequence
		FROM projections.pools
		ORDER BY pool
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []PoolResponse
	for rows.Next() {
		var p PoolResponse
		if err := rows.Scan(&p.Pool, &p.Balance, &p.LastSequence); err != nil {
			return nil, err
		}
		p.AsOfSequence = asOfSeq
		pools = append(pools, p)
	}

	return pools, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity and projection freshness.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	// Check hash chain continuity
	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		LEFT JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 0 AND e1.prev_hash != COALESCE(e2.state_hash, e1.prev_hash)
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var latest sql.NullInt64
	if err := qs.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM event_log.events`,
	).Scan(&latest); err != nil {
		return nil, err
	}
	report.LatestSequence = latest.Int64

	watermark, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}
	report.ProjectionsLagBy = report.LatestSequence - watermark
	if report.ProjectionsLagBy < 0 {
		report.ProjectionsLagBy = 0
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*AuctionResponse, error) {
	var a AuctionResponse
	var winner sql.NullString
	var winPrice sql.NullInt64
	var ts time.Time
	if err := row.Scan(
		&a.AuctionID, &a.Kind, &a.Status, &winner, &winPrice,
		&a.Amount, &a.Step, &a.Sequence, &ts,
	); err != nil {
		return nil, err
	}
	if winner.Valid {
		id, err := uuid.Parse(winner.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt winner uuid: %w", err)
		}
		a.Winner = &id
	}
	if winPrice.Valid {
		a.WinPrice = &winPrice.Int64
	}
	a.Timestamp = ts.UnixMicro()
	return &a, nil
}
