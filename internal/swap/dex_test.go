package swap

import (
	"errors"
	"testing"

	"SerpEngine/internal/ledger"
)

func TestSwapExactSupply(t *testing.T) {
	d := NewConstantProductDex(0)
	if err := d.AddLiquidity(ledger.SETT, ledger.SETTUSD, 1_000_000, 2_000_000); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	// out = 2_000_000 * 100_000 / 1_100_000 = 181_818
	out, err := d.SwapExactSupply(ledger.SETT, ledger.SETTUSD, 100_000, 0)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out != 181_818 {
		t.Errorf("out = %d, want 181818", out)
	}

	// Pool moved: a second identical trade yields less.
	out2, err := d.SwapExactSupply(ledger.SETT, ledger.SETTUSD, 100_000, 0)
	if err != nil {
		t.Fatalf("second swap: %v", err)
	}
	if out2 >= out {
		t.Errorf("second swap out = %d, want < %d", out2, out)
	}
}

func TestSwapExactTarget(t *testing.T) {
	d := NewConstantProductDex(0)
	if err := d.AddLiquidity(ledger.SETT, ledger.SETTUSD, 1_000_000, 2_000_000); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	// in = 1_000_000 * 200_000 / 1_800_000 = 111_111, rounded up to 111_112
	in, err := d.SwapExactTarget(ledger.SETT, ledger.SETTUSD, 200_000, 0x7fffffffffffffff)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if in != 111_112 {
		t.Errorf("in = %d, want 111112", in)
	}

	// Ceiling below the cost fails without moving the pool.
	_, err = d.SwapExactTarget(ledger.SETT, ledger.SETTUSD, 200_000, 100_000)
	if !errors.Is(err, ErrAboveMaximum) {
		t.Fatalf("err = %v, want ErrAboveMaximum", err)
	}

	// Asking for the full reserve is unfillable.
	_, err = d.SwapExactTarget(ledger.SETT, ledger.SETTUSD, 2_000_000, 0x7fffffffffffffff)
	if !errors.Is(err, ErrNoLiquidity) {
		t.Fatalf("err = %v, want ErrNoLiquidity", err)
	}
}

func TestSwapMinTarget(t *testing.T) {
	d := NewConstantProductDex(0)
	d.AddLiquidity(ledger.SETT, ledger.SETTUSD, 1_000_000, 2_000_000)
	_, err := d.SwapExactSupply(ledger.SETT, ledger.SETTUSD, 100_000, 200_000)
	if !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("err = %v, want ErrBelowMinimum", err)
	}
}

func TestSwapPriceImpactCeiling(t *testing.T) {
	d := NewConstantProductDex(50_000) // 5%
	d.AddLiquidity(ledger.SETT, ledger.SETTUSD, 1_000_000, 2_000_000)

	// Draining ~16% of the target reserve trips the ceiling.
	_, err := d.SwapExactSupply(ledger.SETT, ledger.SETTUSD, 200_000, 0)
	if !errors.Is(err, ErrPriceImpactTooHigh) {
		t.Fatalf("err = %v, want ErrPriceImpactTooHigh", err)
	}

	// A small trade passes.
	if _, err := d.SwapExactSupply(ledger.SETT, ledger.SETTUSD, 10_000, 0); err != nil {
		t.Fatalf("small swap: %v", err)
	}
}

func TestSwapNoLiquidity(t *testing.T) {
	d := NewConstantProductDex(0)
	if _, err := d.SwapExactSupply(ledger.SETT, ledger.SETTGBP, 1, 0); !errors.Is(err, ErrNoLiquidity) {
		t.Fatalf("err = %v, want ErrNoLiquidity", err)
	}
}

func TestSpotPriceBothDirections(t *testing.T) {
	d := NewConstantProductDex(0)
	d.AddLiquidity(ledger.SETT, ledger.SETTUSD, 1_000_000, 2_000_000)

	price, err := d.SpotPrice(ledger.SETT, ledger.SETTUSD)
	if err != nil || price != 2_000_000 {
		t.Errorf("SETT->SETTUSD = %d, %v; want 2000000", price, err)
	}
	price, err = d.SpotPrice(ledger.SETTUSD, ledger.SETT)
	if err != nil || price != 500_000 {
		t.Errorf("SETTUSD->SETT = %d, %v; want 500000", price, err)
	}
}
