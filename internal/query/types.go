package query

import "github.com/google/uuid"

// AuctionResponse represents a settled or cancelled auction for API queries.
type AuctionResponse struct {
	AuctionID    uint64     `json:"auction_id"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	Winner       *uuid.UUID `json:"winner,omitempty"`
	WinPrice     *int64     `json:"win_price,omitempty"`
	Amount       int64      `json:"amount"`
	Step         int64      `json:"step"`
	Sequence     int64      `json:"sequence"`
	Timestamp    int64      `json:"timestamp"`
	AsOfSequence int64      `json:"as_of_sequence"`
}

// StabilizationResponse represents one stabilization verdict for an asset.
// Amount is the minted volume for serp-up verdicts and the opened auction
// count for serp-down verdicts.
type StabilizationResponse struct {
	Asset        string `json:"asset"`
	Verdict      string `json:"verdict"`
	Amount       int64  `json:"amount"`
	Step         int64  `json:"step"`
	Sequence     int64  `json:"sequence"`
	Timestamp    int64  `json:"timestamp"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// DeliveryResponse represents one serp-up distribution leg.
type DeliveryResponse struct {
	Asset        string `json:"asset"`
	Destination  string `json:"destination"`
	Account      string `json:"account"`
	Amount       int64  `json:"amount"`
	Step         int64  `json:"step"`
	Sequence     int64  `json:"sequence"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// SwapResponse represents a reserve-to-stable swap for API queries.
type SwapResponse struct {
	Supply       int64 `json:"supply"`
	Received     int64 `json:"received"`
	Step         int64 `json:"step"`
	Sequence     int64 `json:"sequence"`
	Timestamp    int64 `json:"timestamp"`
	AsOfSequence int64 `json:"as_of_sequence"`
}

// PoolResponse represents a treasury pool level.
type PoolResponse struct {
	Pool         string `json:"pool"`
	Balance      int64  `json:"balance"`
	LastSequence int64  `json:"last_sequence"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool    `json:"is_healthy"`
	HashChainBreaks  []int64 `json:"hash_chain_breaks,omitempty"`
	LatestSequence   int64   `json:"latest_sequence"`
	ProjectionsLagBy int64   `json:"projections_lag_by"`
}
