package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventLogWriter writes events and outbound records to Postgres using batch
// inserts. Multi-row INSERT is the portable choice; switch to pgx CopyFrom
// for production-grade throughput.
type EventLogWriter struct {
	db           *sql.DB
	batchSize    int
	flushTimeout time.Duration
}

// execer abstracts *sql.DB and *sql.Tx so batches can run standalone or
// inside the worker's transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// EventRow represents a row in event_log.events
type EventRow struct {
	Sequence       int64
	EventType      string
	IdempotencyKey string
	Partition      *string
	Payload        []byte // JSON-encoded event payload
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
	SourceSequence int64
}

// OutboundRow represents a row in event_log.outbound: a derived record
// (deal, cancellation, stabilization decision) keyed to the event that
// produced it.
type OutboundRow struct {
	Sequence  int64
	Ordinal   int32 // Position within the event's outbound batch
	Subject   string
	Record    []byte // JSON-encoded outbound record
	Timestamp time.Time
}

func NewEventLogWriter(db *sql.DB, batchSize int, flushTimeout time.Duration) *EventLogWriter {
	return &EventLogWriter{
		db:           db,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
	}
}

// WriteEventBatch writes a batch of events to event_log.events using multi-row INSERT.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, events []EventRow) error {
	return writeEvents(ctx, w.db, events)
}

// WriteEventBatchTx is WriteEventBatch inside an existing transaction.
func (w *EventLogWriter) WriteEventBatchTx(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	return writeEvents(ctx, tx, events)
}

func writeEvents(ctx context.Context, ex execer, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	// Build multi-row INSERT
	query := `INSERT INTO event_log.events
		(sequence, event_type, idempotency_key, partition, payload, state_hash, prev_hash, timestamp, source_sequence)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*9)

	for i, e := range events {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.Sequence, e.EventType, e.IdempotencyKey, e.Partition,
			e.Payload, e.StateHash, e.PrevHash, e.Timestamp, e.SourceSequence,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING" // Idempotent writes

	_, err := ex.ExecContext(ctx, query, args...)
	return err
}

// WriteOutboundBatch writes a batch of outbound records to event_log.outbound.
func (w *EventLogWriter) WriteOutboundBatch(ctx context.Context, records []OutboundRow) error {
	return writeOutbound(ctx, w.db, records)
}

// WriteOutboundBatchTx is WriteOutboundBatch inside an existing transaction.
func (w *EventLogWriter) WriteOutboundBatchTx(ctx context.Context, tx *sql.Tx, records []OutboundRow) error {
	return writeOutbound(ctx, tx, records)
}

func writeOutbound(ctx context.Context, ex execer, records []OutboundRow) error {
	if len(records) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.outbound
		(sequence, ordinal, subject, record, timestamp)
		VALUES `

	values := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*5)

	for i, r := range records {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args,
			r.Sequence, r.Ordinal, r.Subject, r.Record, r.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence, ordinal) DO NOTHING"

	_, err := ex.ExecContext(ctx, query, args...)
	return err
}

// MarshalOutboundRecord serializes an outbound record to JSON for storage.
func MarshalOutboundRecord(record interface{}) ([]byte, error) {
	return json.Marshal(record)
}
