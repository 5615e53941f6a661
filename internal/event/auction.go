package event

import (
	"time"

	"github.com/google/uuid"

	"SerpEngine/internal/ledger"
)

// ReserveAuctionRequest asks the engine to sell treasury reserve asset for
// stable payment, typically on behalf of the contraction path.
// Idempotency key: request_id (UUID from the requesting subsystem).
type ReserveAuctionRequest struct {
	RequestID      uuid.UUID // Idempotency key
	RefundReceiver ledger.Account
	PaymentAsset   ledger.AssetID
	Amount         uint64
	Target         uint64
	Split          bool
	Sequence       int64     // Source sequence from the requesting subsystem
	Timestamp      time.Time // Versioned input timestamp (NOT wall-clock)
}

func (r *ReserveAuctionRequest) IdempotencyKey() string {
	return r.RequestID.String()
}

func (r *ReserveAuctionRequest) EventType() EventType {
	return EventTypeReserveAuctionRequest
}

func (r *ReserveAuctionRequest) Partition() *string {
	p := PartitionAuctions
	return &p
}

func (r *ReserveAuctionRequest) SourceSequence() int64 {
	return r.Sequence
}

// DilutionAuctionRequest asks the engine to sell freshly minted native
// token against outstanding system debt.
type DilutionAuctionRequest struct {
	RequestID    uuid.UUID // Idempotency key
	InitialPrice uint64
	Amount       uint64
	Sequence     int64
	Timestamp    time.Time
}

func (r *DilutionAuctionRequest) IdempotencyKey() string {
	return r.RequestID.String()
}

func (r *DilutionAuctionRequest) EventType() EventType {
	return EventTypeDilutionAuctionRequest
}

func (r *DilutionAuctionRequest) Partition() *string {
	p := PartitionAuctions
	return &p
}

func (r *DilutionAuctionRequest) SourceSequence() int64 {
	return r.Sequence
}

// SurplusAuctionRequest asks the engine to sell treasury stable surplus for
// native token.
type SurplusAuctionRequest struct {
	RequestID    uuid.UUID // Idempotency key
	SurplusAsset ledger.AssetID
	Amount       uint64
	Sequence     int64
	Timestamp    time.Time
}

func (r *SurplusAuctionRequest) IdempotencyKey() string {
	return r.RequestID.String()
}

func (r *SurplusAuctionRequest) EventType() EventType {
	return EventTypeSurplusAuctionRequest
}

func (r *SurplusAuctionRequest) Partition() *string {
	p := PartitionAuctions
	return &p
}

func (r *SurplusAuctionRequest) SourceSequence() int64 {
	return r.Sequence
}

// AuctionBid carries one bid on a live auction.
// Idempotency key: bid_id (UUID from the bid gateway).
type AuctionBid struct {
	BidID     uuid.UUID // Idempotency key
	AuctionID uint64
	Bidder    uuid.UUID
	Price     uint64
	Sequence  int64
	Timestamp time.Time
}

func (b *AuctionBid) IdempotencyKey() string {
	return b.BidID.String()
}

func (b *AuctionBid) EventType() EventType {
	return EventTypeAuctionBid
}

func (b *AuctionBid) Partition() *string {
	p := PartitionAuctions
	return &p
}

func (b *AuctionBid) SourceSequence() int64 {
	return b.Sequence
}

// AdminCloseAuction force-closes an auction at the current step, settling
// it like a normal deadline close.
type AdminCloseAuction struct {
	RequestID uuid.UUID // Idempotency key
	AuctionID uint64
	Sequence  int64
	Timestamp time.Time
}

func (a *AdminCloseAuction) IdempotencyKey() string {
	return a.RequestID.String()
}

func (a *AdminCloseAuction) EventType() EventType {
	return EventTypeAdminCloseAuction
}

func (a *AdminCloseAuction) Partition() *string {
	p := PartitionAdmin
	return &p
}

func (a *AdminCloseAuction) SourceSequence() int64 {
	return a.Sequence
}

// AuctionSizeUpdate adjusts the reserve auction lot-size cap.
type AuctionSizeUpdate struct {
	RequestID uuid.UUID // Idempotency key
	MaxLot    uint64
	Sequence  int64
	Timestamp time.Time
}

func (a *AuctionSizeUpdate) IdempotencyKey() string {
	return a.RequestID.String()
}

func (a *AuctionSizeUpdate) EventType() EventType {
	return EventTypeAuctionSizeUpdate
}

func (a *AuctionSizeUpdate) Partition() *string {
	p := PartitionAdmin
	return &p
}

func (a *AuctionSizeUpdate) SourceSequence() int64 {
	return a.Sequence
}
