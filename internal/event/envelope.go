package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeReserveAuctionRequest
	EventTypeDilutionAuctionRequest
	EventTypeSurplusAuctionRequest
	EventTypeAuctionBid
	EventTypeAdminCloseAuction
	EventTypeAuctionSizeUpdate
	EventTypePriceUpdate
	EventTypeStepTick
	EventTypeTreasuryDeposit
	EventTypeTreasurySwap
)

// EventEnvelope wraps every event in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Ordering partition (nullable for global events)
	Partition *string

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// Partition returns the ordering partition (nil for global events)
	Partition() *string

	// SourceSequence returns upstream ordering key
	SourceSequence() int64
}

func (et EventType) String() string {
	switch et {
	case EventTypeReserveAuctionRequest:
		return "ReserveAuctionRequest"
	case EventTypeDilutionAuctionRequest:
		return "DilutionAuctionRequest"
	case EventTypeSurplusAuctionRequest:
		return "SurplusAuctionRequest"
	case EventTypeAuctionBid:
		return "AuctionBid"
	case EventTypeAdminCloseAuction:
		return "AdminCloseAuction"
	case EventTypeAuctionSizeUpdate:
		return "AuctionSizeUpdate"
	case EventTypePriceUpdate:
		return "PriceUpdate"
	case EventTypeStepTick:
		return "StepTick"
	case EventTypeTreasuryDeposit:
		return "TreasuryDeposit"
	case EventTypeTreasurySwap:
		return "TreasurySwap"
	default:
		return "Unknown"
	}
}

// Partition names used for source-sequence validation. Auction traffic is
// strictly ordered; price partitions tolerate gaps because stale oracle
// quotes may be dropped upstream.
const (
	PartitionAuctions = "auctions"
	PartitionSteps    = "steps"
	PartitionTreasury = "treasury"
	PartitionAdmin    = "admin"
)

// PricePartition builds the per-asset partition for oracle updates.
func PricePartition(assetSymbol string) string {
	return "prices:" + assetSymbol
}
