package event

import (
	"time"

	"github.com/google/uuid"

	"SerpEngine/internal/ledger"
)

// PriceUpdate carries one oracle quote. Price partitions are gap-tolerant:
// the oracle relay may drop stale quotes, so only regressions are rejected.
// Idempotency key: update_id (UUID from the oracle relay).
type PriceUpdate struct {
	UpdateID  uuid.UUID // Idempotency key
	Asset     ledger.AssetID
	Quote     int64 // Fixed-point: price scale (decimal_precision=6, scale=1_000_000)
	Sequence  int64 // Source sequence from the oracle relay
	Timestamp time.Time
}

func (p *PriceUpdate) IdempotencyKey() string {
	return p.UpdateID.String()
}

func (p *PriceUpdate) EventType() EventType {
	return EventTypePriceUpdate
}

func (p *PriceUpdate) Partition() *string {
	part := PricePartition(ledger.AssetName(p.Asset))
	return &part
}

func (p *PriceUpdate) SourceSequence() int64 {
	return p.Sequence
}
