package projection

import (
	"context"
	"database/sql"

	"SerpEngine/internal/event"
)

// Table upserts for the history projections. Writes are idempotent so a
// replayed or duplicated output never double-counts.

func (pw *ProjectionWorker) upsertAuctionDealt(ctx context.Context, tx *sql.Tx, sequence int64, r *event.AuctionDealt) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.auction_history
			(auction_id, kind, status, winner, win_price, amount, step, sequence, timestamp)
		VALUES ($1, $2, 'dealt', $3, $4, $5, $6, $7, $8)
		ON CONFLICT (auction_id) DO UPDATE SET
			status = 'dealt', winner = $3, win_price = $4, sequence = $7
	`, r.AuctionID, r.Kind, r.Winner, r.Price, r.Amount, r.Step, sequence, r.Timestamp)
	return err
}

func (pw *ProjectionWorker) upsertAuctionCancelled(ctx context.Context, tx *sql.Tx, sequence int64, r *event.AuctionCancelled) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.auction_history
			(auction_id, kind, status, winner, win_price, amount, step, sequence, timestamp)
		VALUES ($1, $2, 'cancelled', NULL, NULL, $3, $4, $5, $6)
		ON CONFLICT (auction_id) DO UPDATE SET
			status = 'cancelled', sequence = $5
	`, r.AuctionID, r.Kind, r.Amount, r.Step, sequence, r.Timestamp)
	return err
}

func (pw *ProjectionWorker) insertStabilization(ctx context.Context, tx *sql.Tx, sequence int64, asset, verdict string, amount, step, timestampMicro int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.stabilization_history
			(sequence, asset, verdict, amount, step, timestamp)
		VALUES ($1, $2, $3, $4, $5, to_timestamp($6::DOUBLE PRECISION / 1000000))
		ON CONFLICT (sequence, asset) DO NOTHING
	`, sequence, asset, verdict, amount, step, timestampMicro)
	return err
}

func (pw *ProjectionWorker) insertDelivery(ctx context.Context, tx *sql.Tx, sequence int64, r *event.SerpUpDelivered) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.serpup_deliveries
			(sequence, asset, destination, account, amount, step, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sequence, destination) DO NOTHING
	`, sequence, r.Asset, r.Destination, r.Account, r.Amount, r.Step, r.Timestamp)
	return err
}

func (pw *ProjectionWorker) insertSwap(ctx context.Context, tx *sql.Tx, sequence int64, r *event.ReserveSwapped) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.swap_history
			(sequence, supply, received, step, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sequence) DO NOTHING
	`, sequence, r.Supply, r.Received, r.Step, r.Timestamp)
	return err
}

func (pw *ProjectionWorker) updatePools(ctx context.Context, tx *sql.Tx, sequence int64, pools PoolLevels) error {
	for asset, balance := range pools.SurplusPools {
		if err := pw.upsertPool(ctx, tx, "surplus:"+asset, int64(balance), sequence); err != nil {
			return err
		}
	}
	if err := pw.upsertPool(ctx, tx, "reserve", int64(pools.ReservePool), sequence); err != nil {
		return err
	}
	return pw.upsertPool(ctx, tx, "debt", int64(pools.DebtPool), sequence)
}

func (pw *ProjectionWorker) upsertPool(ctx context.Context, tx *sql.Tx, pool string, balance, sequence int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.pools (pool, balance, last_sequence)
		VALUES ($1, $2, $3)
		ON CONFLICT (pool) DO UPDATE SET balance = $2, last_sequence = $3
	`, pool, balance, sequence)
	return err
}
