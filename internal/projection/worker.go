package projection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"SerpEngine/internal/event"
)

// ProjectionOutput mirrors the data needed by projection workers.
// The orchestrator bridges between core.CoreOutput and this.
type ProjectionOutput struct {
	Sequence  int64
	EventType string
	Records   []Record
	Pools     PoolLevels
	Timestamp int64
}

// Record is one derived outbound record with its publish subject.
type Record struct {
	Subject string
	Record  any
}

// PoolLevels carries the treasury pool balances after the event.
type PoolLevels struct {
	SurplusPools map[string]uint64
	ReservePool  uint64
	DebtPool     uint64
}

// ProjectionWorker updates projection tables from processed events. The
// projection channel is non-blocking with drop: if projections fall
// behind, they are rebuilt from the event log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan ProjectionOutput
	log       zerolog.Logger
	lastSeq   int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan ProjectionOutput, log zerolog.Logger) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		log:       log,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.processOutput(ctx, output); err != nil {
				// Continue — projections are eventually consistent
				// and can be rebuilt from the event log
				pw.log.Warn().Err(err).Int64("sequence", output.Sequence).
					Msg("Projection update failed")
			}

			pw.lastSeq = output.Sequence
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output ProjectionOutput) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, rec := range output.Records {
		if err := pw.applyRecord(ctx, tx, output.Sequence, rec); err != nil {
			return fmt.Errorf("apply %s: %w", rec.Subject, err)
		}
	}

	if err := pw.updatePools(ctx, tx, output.Sequence, output.Pools); err != nil {
		return fmt.Errorf("pools projection: %w", err)
	}

	// Update projection watermark
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func (pw *ProjectionWorker) applyRecord(ctx context.Context, tx *sql.Tx, sequence int64, rec Record) error {
	switch r := rec.Record.(type) {
	case *event.AuctionDealt:
		return pw.upsertAuctionDealt(ctx, tx, sequence, r)
	case *event.AuctionCancelled:
		return pw.upsertAuctionCancelled(ctx, tx, sequence, r)
	case *event.SerpedUp:
		return pw.insertStabilization(ctx, tx, sequence, r.Asset, "serped_up", int64(r.Amount), int64(r.Step), r.Timestamp.UnixMicro())
	case *event.SerpDownTriggered:
		return pw.insertStabilization(ctx, tx, sequence, r.Asset, "serped_down", int64(len(r.AuctionIDs)), int64(r.Step), r.Timestamp.UnixMicro())
	case *event.PriceStable:
		return pw.insertStabilization(ctx, tx, sequence, r.Asset, "stable", 0, int64(r.Step), r.Timestamp.UnixMicro())
	case *event.SerpUpDelivered:
		return pw.insertDelivery(ctx, tx, sequence, r)
	case *event.ReserveSwapped:
		return pw.insertSwap(ctx, tx, sequence, r)
	default:
		// Unknown record types are skipped; projections only cover
		// what they have tables for.
		return nil
	}
}

// RebuildProjections rebuilds the history tables from the outbound log.
// Pool levels are not rebuilt here; they refresh on the next applied event.
func RebuildProjections(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	truncateStatements := []string{
		`TRUNCATE projections.auction_history`,
		`TRUNCATE projections.stabilization_history`,
		`TRUNCATE projections.serpup_deliveries`,
		`TRUNCATE projections.swap_history`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	rebuildStatements := []string{
		`INSERT INTO projections.auction_history
			(auction_id, kind, status, winner, win_price, amount, step, sequence, timestamp)
		SELECT
			(record->>'auction_id')::BIGINT,
			record->>'kind',
			'dealt',
			(record->>'winner')::UUID,
			(record->>'price')::BIGINT,
			(record->>'amount')::BIGINT,
			(record->>'step')::BIGINT,
			sequence,
			timestamp
		FROM event_log.outbound
		WHERE subject = '` + event.SubjectAuctionDealt + `'
		ON CONFLICT (auction_id) DO NOTHING`,

		`INSERT INTO projections.auction_history
			(auction_id, kind, status, winner, win_price, amount, step, sequence, timestamp)
		SELECT
			(record->>'auction_id')::BIGINT,
			record->>'kind',
			'cancelled',
			NULL,
			NULL,
			(record->>'amount')::BIGINT,
			(record->>'step')::BIGINT,
			sequence,
			timestamp
		FROM event_log.outbound
		WHERE subject = '` + event.SubjectAuctionCancelled + `'
		ON CONFLICT (auction_id) DO NOTHING`,

		`INSERT INTO projections.stabilization_history
			(sequence, asset, verdict, amount, step, timestamp)
		SELECT sequence, record->>'asset', 'serped_up',
			(record->>'amount')::BIGINT, (record->>'step')::BIGINT, timestamp
		FROM event_log.outbound
		WHERE subject = '` + event.SubjectSerpedUp + `'
		ON CONFLICT (sequence, asset) DO NOTHING`,

		`INSERT INTO projections.stabilization_history
			(sequence, asset, verdict, amount, step, timestamp)
		SELECT sequence, record->>'asset', 'serped_down',
			jsonb_array_length(record->'auction_ids'), (record->>'step')::BIGINT, timestamp
		FROM event_log.outbound
		WHERE subject = '` + event.SubjectSerpDown + `'
		ON CONFLICT (sequence, asset) DO NOTHING`,

		`INSERT INTO projections.stabilization_history
			(sequence, asset, verdict, amount, step, timestamp)
		SELECT sequence, record->>'asset', 'stable',
			0, (record->>'step')::BIGINT, timestamp
		FROM event_log.outbound
		WHERE subject = '` + event.SubjectPriceStable + `'
		ON CONFLICT (sequence, asset) DO NOTHING`,

		`INSERT INTO projections.serpup_deliveries
			(sequence, asset, destination, account, amount, step, timestamp)
		SELECT sequence, record->>'asset', record->>'destination', record->>'account',
			(record->>'amount')::BIGINT, (record->>'step')::BIGINT, timestamp
		FROM event_log.outbound
		WHERE subject = '` + event.SubjectSerpUpDelivered + `'
		ON CONFLICT (sequence, destination) DO NOTHING`,

		`INSERT INTO projections.swap_history
			(sequence, supply, received, step, timestamp)
		SELECT sequence, (record->>'supply')::BIGINT, (record->>'received')::BIGINT,
			(record->>'step')::BIGINT, timestamp
		FROM event_log.outbound
		WHERE subject = '` + event.SubjectReserveSwapped + `'
		ON CONFLICT (sequence) DO NOTHING`,
	}

	for _, stmt := range rebuildStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rebuild failed: %w", err)
		}
	}

	log.Info().Msg("Projection rebuild complete")
	return nil
}
