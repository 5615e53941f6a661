// Package price caches the most recent oracle quote per asset and derives
// the relative prices the stabilization controller and the serp-down path
// consume. Quotes arrive as events; the engine never reaches out to an
// external feed during execution.
package price

import (
	"errors"
	"fmt"
	"sort"

	"SerpEngine/internal/fixedpoint"
	"SerpEngine/internal/ledger"
)

var (
	// ErrPriceUnavailable is returned when no quote has been recorded for
	// an asset yet.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrInvalidPrice is returned for non-positive quotes.
	ErrInvalidPrice = errors.New("invalid price")
)

// Oracle holds the last quote per asset, in the common quote unit scaled by
// fixedpoint.PriceScale, plus each pegged asset's target peg. Single-writer:
// only the engine goroutine mutates it.
type Oracle struct {
	quotes map[ledger.AssetID]int64
	pegs   map[ledger.AssetID]int64
}

func NewOracle() *Oracle {
	// The reserve anchor is basket-pegged and steered like the stable set.
	pegs := make(map[ledger.AssetID]int64, len(ledger.StableAssets)+1)
	pegs[ledger.SETT] = fixedpoint.PriceScale
	for _, asset := range ledger.StableAssets {
		pegs[asset] = fixedpoint.PriceScale
	}
	return &Oracle{
		quotes: make(map[ledger.AssetID]int64),
		pegs:   pegs,
	}
}

// Record installs a new quote for asset. Stale quotes are the caller's
// problem: per-source sequencing happens upstream in the ingestion layer.
func (o *Oracle) Record(asset ledger.AssetID, quote int64) error {
	if !ledger.IsKnown(asset) {
		return fmt.Errorf("record quote for asset %d: %w", asset, ledger.ErrUnknownAsset)
	}
	if quote <= 0 {
		return fmt.Errorf("record quote %d for %s: %w", quote, ledger.AssetName(asset), ErrInvalidPrice)
	}
	o.quotes[asset] = quote
	return nil
}

// Quote returns the last recorded price of asset in the common unit.
func (o *Oracle) Quote(asset ledger.AssetID) (int64, error) {
	quote, ok := o.quotes[asset]
	if !ok {
		return 0, fmt.Errorf("%s: %w", ledger.AssetName(asset), ErrPriceUnavailable)
	}
	return quote, nil
}

// Peg returns the target price of a pegged asset.
func (o *Oracle) Peg(asset ledger.AssetID) (int64, error) {
	peg, ok := o.pegs[asset]
	if !ok {
		return 0, fmt.Errorf("%s has no peg: %w", ledger.AssetName(asset), ErrPriceUnavailable)
	}
	return peg, nil
}

// SetPeg overrides the target price of a pegged asset. Admin-only.
func (o *Oracle) SetPeg(asset ledger.AssetID, peg int64) error {
	if asset != ledger.SETT && !ledger.IsStable(asset) {
		return fmt.Errorf("set peg for %s: %w", ledger.AssetName(asset), ledger.ErrUnknownAsset)
	}
	if peg <= 0 {
		return fmt.Errorf("set peg %d for %s: %w", peg, ledger.AssetName(asset), ErrInvalidPrice)
	}
	o.pegs[asset] = peg
	return nil
}

// Relative returns base's price expressed in units of quote, e.g.
// Relative(SETT, SETTUSD) prices the reserve asset in the primary stable.
func (o *Oracle) Relative(base, quote ledger.AssetID) (int64, error) {
	basePrice, err := o.Quote(base)
	if err != nil {
		return 0, err
	}
	quotePrice, err := o.Quote(quote)
	if err != nil {
		return 0, err
	}
	rel, ok := fixedpoint.RelativePrice(basePrice, quotePrice)
	if !ok {
		return 0, fmt.Errorf("relative %s/%s: %w", ledger.AssetName(base), ledger.AssetName(quote), ErrInvalidPrice)
	}
	return rel, nil
}

// Deviation returns |market - peg| / peg for a pegged asset, scaled by
// fixedpoint.PriceScale, together with the direction: above is true when
// the market trades over peg.
func (o *Oracle) Deviation(asset ledger.AssetID) (ratio int64, above bool, err error) {
	market, err := o.Quote(asset)
	if err != nil {
		return 0, false, err
	}
	peg, err := o.Peg(asset)
	if err != nil {
		return 0, false, err
	}
	ratio, ok := fixedpoint.AbsDeviationRatio(market, peg)
	if !ok {
		return 0, false, fmt.Errorf("deviation for %s: %w", ledger.AssetName(asset), ErrInvalidPrice)
	}
	return ratio, market > peg, nil
}

// QuoteEntry is one row of a deterministic oracle dump.
type QuoteEntry struct {
	Asset ledger.AssetID
	Quote int64
}

// SortedQuotes returns recorded quotes in canonical asset order for the
// state hash and snapshots.
func (o *Oracle) SortedQuotes() []QuoteEntry {
	entries := make([]QuoteEntry, 0, len(o.quotes))
	for asset, quote := range o.quotes {
		entries = append(entries, QuoteEntry{Asset: asset, Quote: quote})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Asset < entries[j].Asset })
	return entries
}

// Restore installs a quote from a snapshot, bypassing validation.
func (o *Oracle) Restore(asset ledger.AssetID, quote int64) {
	o.quotes[asset] = quote
}
