// Package swap provides the exchange interface the treasury uses to convert
// reserve asset into stable currency without running an auction. The
// in-process implementation is a constant-product pool; deployments that
// route to an external venue supply their own Dex.
package swap

import (
	"errors"
	"fmt"

	"SerpEngine/internal/fixedpoint"
	"SerpEngine/internal/ledger"
)

var (
	// ErrNoLiquidity is returned when the requested pair has no pool.
	ErrNoLiquidity = errors.New("no liquidity for pair")
	// ErrPriceImpactTooHigh is returned when a trade would move the pool
	// price beyond the configured ceiling.
	ErrPriceImpactTooHigh = errors.New("price impact too high")
	// ErrBelowMinimum is returned when the swap output is under the
	// caller's floor.
	ErrBelowMinimum = errors.New("output below minimum")
	// ErrAboveMaximum is returned when an exact-target swap would cost
	// more supply than the caller's ceiling.
	ErrAboveMaximum = errors.New("cost above maximum")
)

// Dex executes spot conversions between two assets.
type Dex interface {
	// SwapExactSupply trades exactly supplyAmount of supply for target,
	// failing if the output would be under minTarget. Returns the target
	// amount delivered.
	SwapExactSupply(supply, target ledger.AssetID, supplyAmount, minTarget uint64) (uint64, error)
	// SwapExactTarget buys exactly targetAmount of target, failing if the
	// required supply would exceed maxSupply. Returns the supply spent.
	SwapExactTarget(supply, target ledger.AssetID, targetAmount, maxSupply uint64) (uint64, error)
	// SpotPrice returns target units per supply unit, scaled by
	// fixedpoint.PriceScale.
	SpotPrice(supply, target ledger.AssetID) (int64, error)
}

type pairKey struct {
	a, b ledger.AssetID
}

func orderedPair(a, b ledger.AssetID) (pairKey, bool) {
	if a < b {
		return pairKey{a: a, b: b}, false
	}
	return pairKey{a: b, b: a}, true
}

type pool struct {
	reserveA uint64 // reserve of the lower-numbered asset
	reserveB uint64
}

// ConstantProductDex is a deterministic x*y=k pool set. Fee-free: the
// treasury is the only trader and the pools model external liquidity, not a
// revenue source. Single-writer, like the rest of the engine state.
type ConstantProductDex struct {
	pools map[pairKey]*pool
	// maxPriceImpact caps how far a single trade may move the pool price,
	// scaled by fixedpoint.PriceScale. Zero disables the check.
	maxPriceImpact int64
}

func NewConstantProductDex(maxPriceImpact int64) *ConstantProductDex {
	return &ConstantProductDex{
		pools:          make(map[pairKey]*pool),
		maxPriceImpact: maxPriceImpact,
	}
}

// AddLiquidity seeds or tops up the pool for a pair.
func (d *ConstantProductDex) AddLiquidity(a, b ledger.AssetID, amountA, amountB uint64) error {
	key, swapped := orderedPair(a, b)
	if swapped {
		amountA, amountB = amountB, amountA
	}
	p, ok := d.pools[key]
	if !ok {
		p = &pool{}
		d.pools[key] = p
	}
	ra, okA := fixedpoint.CheckedAdd(p.reserveA, amountA)
	rb, okB := fixedpoint.CheckedAdd(p.reserveB, amountB)
	if !okA || !okB {
		return fmt.Errorf("add liquidity %s/%s: reserve overflow",
			ledger.AssetName(a), ledger.AssetName(b))
	}
	p.reserveA, p.reserveB = ra, rb
	return nil
}

func (d *ConstantProductDex) reserves(supply, target ledger.AssetID) (*pool, uint64, uint64, error) {
	key, swapped := orderedPair(supply, target)
	p, ok := d.pools[key]
	if !ok || p.reserveA == 0 || p.reserveB == 0 {
		return nil, 0, 0, fmt.Errorf("%s/%s: %w",
			ledger.AssetName(supply), ledger.AssetName(target), ErrNoLiquidity)
	}
	if swapped {
		return p, p.reserveB, p.reserveA, nil
	}
	return p, p.reserveA, p.reserveB, nil
}

func (d *ConstantProductDex) SpotPrice(supply, target ledger.AssetID) (int64, error) {
	_, supplyReserve, targetReserve, err := d.reserves(supply, target)
	if err != nil {
		return 0, err
	}
	price, ok := fixedpoint.MulDiv(targetReserve, fixedpoint.PriceScale, int64(supplyReserve))
	if !ok || price > uint64(1)<<62 {
		return 0, fmt.Errorf("spot price %s/%s overflow",
			ledger.AssetName(supply), ledger.AssetName(target))
	}
	return int64(price), nil
}

func (d *ConstantProductDex) SwapExactSupply(supply, target ledger.AssetID, supplyAmount, minTarget uint64) (uint64, error) {
	if supplyAmount == 0 {
		return 0, nil
	}
	p, supplyReserve, targetReserve, err := d.reserves(supply, target)
	if err != nil {
		return 0, err
	}
	newSupplyReserve, ok := fixedpoint.CheckedAdd(supplyReserve, supplyAmount)
	if !ok {
		return 0, fmt.Errorf("swap %s/%s: reserve overflow",
			ledger.AssetName(supply), ledger.AssetName(target))
	}
	// out = targetReserve * supplyAmount / (supplyReserve + supplyAmount)
	out, ok := fixedpoint.MulDiv(targetReserve, int64(supplyAmount), int64(newSupplyReserve))
	if !ok {
		return 0, fmt.Errorf("swap %s/%s: output overflow",
			ledger.AssetName(supply), ledger.AssetName(target))
	}
	if out < minTarget {
		return 0, fmt.Errorf("swap %s/%s: got %d, floor %d: %w",
			ledger.AssetName(supply), ledger.AssetName(target), out, minTarget, ErrBelowMinimum)
	}
	if d.maxPriceImpact > 0 {
		// Impact measured as the relative shrinkage of the target reserve.
		impact, ok := fixedpoint.MulDiv(out, fixedpoint.PriceScale, int64(targetReserve))
		if !ok || int64(impact) > d.maxPriceImpact {
			return 0, fmt.Errorf("swap %s/%s: impact %d over ceiling %d: %w",
				ledger.AssetName(supply), ledger.AssetName(target), impact, d.maxPriceImpact, ErrPriceImpactTooHigh)
		}
	}
	if _, swapped := orderedPair(supply, target); swapped {
		p.reserveB = newSupplyReserve
		p.reserveA = targetReserve - out
	} else {
		p.reserveA = newSupplyReserve
		p.reserveB = targetReserve - out
	}
	return out, nil
}

func (d *ConstantProductDex) SwapExactTarget(supply, target ledger.AssetID, targetAmount, maxSupply uint64) (uint64, error) {
	if targetAmount == 0 {
		return 0, nil
	}
	p, supplyReserve, targetReserve, err := d.reserves(supply, target)
	if err != nil {
		return 0, err
	}
	if targetAmount >= targetReserve {
		return 0, fmt.Errorf("%s/%s: target %d exceeds pool depth %d: %w",
			ledger.AssetName(supply), ledger.AssetName(target), targetAmount, targetReserve, ErrNoLiquidity)
	}
	remaining := targetReserve - targetAmount
	// in = supplyReserve * targetAmount / (targetReserve - targetAmount),
	// rounded up so the pool invariant never decreases.
	in, ok := fixedpoint.MulDiv(supplyReserve, int64(targetAmount), int64(remaining))
	if !ok {
		return 0, fmt.Errorf("swap %s/%s: cost overflow",
			ledger.AssetName(supply), ledger.AssetName(target))
	}
	in, ok = fixedpoint.CheckedAdd(in, 1)
	if !ok {
		return 0, fmt.Errorf("swap %s/%s: cost overflow",
			ledger.AssetName(supply), ledger.AssetName(target))
	}
	if in > maxSupply {
		return 0, fmt.Errorf("swap %s/%s: cost %d, ceiling %d: %w",
			ledger.AssetName(supply), ledger.AssetName(target), in, maxSupply, ErrAboveMaximum)
	}
	if d.maxPriceImpact > 0 {
		impact, ok := fixedpoint.MulDiv(targetAmount, fixedpoint.PriceScale, int64(targetReserve))
		if !ok || int64(impact) > d.maxPriceImpact {
			return 0, fmt.Errorf("swap %s/%s: impact %d over ceiling %d: %w",
				ledger.AssetName(supply), ledger.AssetName(target), impact, d.maxPriceImpact, ErrPriceImpactTooHigh)
		}
	}
	newSupplyReserve, ok := fixedpoint.CheckedAdd(supplyReserve, in)
	if !ok {
		return 0, fmt.Errorf("swap %s/%s: reserve overflow",
			ledger.AssetName(supply), ledger.AssetName(target))
	}
	if _, swapped := orderedPair(supply, target); swapped {
		p.reserveB = newSupplyReserve
		p.reserveA = remaining
	} else {
		p.reserveA = newSupplyReserve
		p.reserveB = remaining
	}
	return in, nil
}
