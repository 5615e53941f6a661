// Package auction owns the lifecycle of the three auction variants: reserve
// auctions selling treasury-held reserve asset for stable currency, dilution
// auctions selling freshly minted native token for reserve asset, and
// surplus auctions selling stable surplus for native token that is burned on
// settlement. Bid validation, soft-cap deadline extension and settlement all
// live here; the treasury and the stabilization controller only request
// auctions and read counters.
package auction

import (
	"errors"

	"SerpEngine/internal/ledger"
)

var (
	// ErrInvalidAmount rejects zero or counter-overflowing quantities at
	// auction creation.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAuctionNonExistent rejects operations on unknown auction ids.
	ErrAuctionNonExistent = errors.New("auction non-existent")
	// ErrInvalidBidPrice rejects bids that are too low or too late.
	ErrInvalidBidPrice = errors.New("invalid bid price")
)

// Kind tags the auction variant. The bid-handling algorithm is shared; only
// settlement differs per kind.
type Kind uint8

const (
	KindReserve Kind = iota + 1
	KindDilution
	KindSurplus
)

func (k Kind) String() string {
	switch k {
	case KindReserve:
		return "reserve"
	case KindDilution:
		return "dilution"
	case KindSurplus:
		return "surplus"
	default:
		return "unknown"
	}
}

// Bid is the current highest bid. Price is an amount of the auction's
// payment asset, already escrowed with the treasury.
type Bid struct {
	Bidder ledger.Account
	Price  uint64
}

// Auction is the registry record for one live auction. Amount is immutable
// after creation: lot splitting happens before the record exists, never
// after. EndStep zero means no deadline has been assigned yet; the first
// accepted bid sets it.
type Auction struct {
	ID     uint64
	Kind   Kind
	Amount uint64
	// Target is the payment floor for the first bid. Surplus auctions
	// have none: any positive first bid is acceptable.
	Target       uint64
	SoldAsset    ledger.AssetID
	PaymentAsset ledger.AssetID
	// RefundReceiver takes the reserved amount back if a reserve auction
	// closes without a bid. Unused by the other variants.
	RefundReceiver ledger.Account
	StartStep      uint64
	EndStep        uint64
	Bid            *Bid
}

// Config carries the soft-cap timing parameters, in time steps.
type Config struct {
	// CloseThreshold is the deadline assigned on the first accepted bid.
	CloseThreshold uint64
	// BidExtendPeriod is the minimum remaining lifetime after any accepted
	// bid; closer deadlines are pushed out.
	BidExtendPeriod uint64
}

// DefaultConfig mirrors the protocol defaults.
func DefaultConfig() Config {
	return Config{CloseThreshold: 100, BidExtendPeriod: 50}
}

// Decision is the outcome of the pure bid-evaluation function.
type Decision struct {
	// NewEndStep is the auction deadline after this bid.
	NewEndStep uint64
}

// OnNewBid decides whether a bid on a is acceptable at step now, and what
// the deadline becomes if it is. Pure: no state is touched. prev is the
// standing bid, nil for the first.
func OnNewBid(cfg Config, now uint64, a *Auction, bid Bid, prev *Bid) (Decision, error) {
	if a.EndStep != 0 && now >= a.EndStep {
		return Decision{}, ErrInvalidBidPrice
	}
	if bid.Price == 0 {
		return Decision{}, ErrInvalidBidPrice
	}
	if prev == nil {
		// First bid must clear the target. Surplus auctions carry a zero
		// target, so any positive price clears it.
		if bid.Price < a.Target {
			return Decision{}, ErrInvalidBidPrice
		}
	} else if bid.Price <= prev.Price {
		// Strictly greater. Equal bids are rejected, which removes ties
		// by construction.
		return Decision{}, ErrInvalidBidPrice
	}
	end := a.EndStep
	if end == 0 {
		end = now + cfg.CloseThreshold
	} else if end-now < cfg.BidExtendPeriod {
		end = now + cfg.BidExtendPeriod
	}
	return Decision{NewEndStep: end}, nil
}
