package event

import (
	"time"
)

// Outbound records are derived facts the engine publishes after applying an
// event. They are not replayed; downstream consumers (projections excluded,
// which read the event log directly) subscribe to them over the outbound
// subjects.

// Outbound NATS subjects, one per record type.
const (
	SubjectAuctionDealt     = "serp.outbound.auction.dealt"
	SubjectAuctionCancelled = "serp.outbound.auction.cancelled"
	SubjectSerpUpDelivered  = "serp.outbound.serpup.delivered"
	SubjectSerpedUp         = "serp.outbound.serpup"
	SubjectSerpDown         = "serp.outbound.serpdown"
	SubjectPriceStable      = "serp.outbound.stable"
	SubjectReserveSwapped   = "serp.outbound.swap"
)

// AuctionDealt announces a settled auction with a winner.
type AuctionDealt struct {
	AuctionID uint64    `json:"auction_id"`
	Kind      string    `json:"kind"`
	Winner    string    `json:"winner"`
	Price     uint64    `json:"price"`
	Amount    uint64    `json:"amount"`
	Step      uint64    `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// AuctionCancelled announces an auction that closed with no bid.
type AuctionCancelled struct {
	AuctionID uint64    `json:"auction_id"`
	Kind      string    `json:"kind"`
	Amount    uint64    `json:"amount"`
	Step      uint64    `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// SerpUpDelivered announces one serp-up mint to one destination.
type SerpUpDelivered struct {
	Asset       string    `json:"asset"`
	Destination string    `json:"destination"`
	Account     string    `json:"account"`
	Amount      uint64    `json:"amount"`
	Step        uint64    `json:"step"`
	Timestamp   time.Time `json:"timestamp"`
}

// SerpedUp aggregates one expansion decision.
type SerpedUp struct {
	Asset     string    `json:"asset"`
	Amount    uint64    `json:"amount"`
	Step      uint64    `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// SerpDownTriggered announces a contraction auction.
type SerpDownTriggered struct {
	Asset      string    `json:"asset"`
	AuctionIDs []uint64  `json:"auction_ids"`
	Step       uint64    `json:"step"`
	Timestamp  time.Time `json:"timestamp"`
}

// PriceStable announces a no-action evaluation.
type PriceStable struct {
	Asset     string    `json:"asset"`
	Step      uint64    `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// ReserveSwapped announces a treasury reserve-to-stable conversion.
type ReserveSwapped struct {
	Supply    uint64    `json:"supply"`
	Received  uint64    `json:"received"`
	Step      uint64    `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}
