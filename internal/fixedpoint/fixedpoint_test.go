package fixedpoint_test

import (
	"math"
	"testing"

	"SerpEngine/internal/fixedpoint"
)

func TestCheckedAdd(t *testing.T) {
	if v, ok := fixedpoint.CheckedAdd(1, 2); !ok || v != 3 {
		t.Errorf("CheckedAdd(1,2) = %d, %v", v, ok)
	}
	if _, ok := fixedpoint.CheckedAdd(math.MaxUint64, 1); ok {
		t.Error("expected overflow")
	}
	if v, ok := fixedpoint.CheckedAdd(math.MaxUint64, 0); !ok || v != math.MaxUint64 {
		t.Errorf("CheckedAdd(max,0) = %d, %v", v, ok)
	}
}

func TestCheckedSub(t *testing.T) {
	if v, ok := fixedpoint.CheckedSub(5, 3); !ok || v != 2 {
		t.Errorf("CheckedSub(5,3) = %d, %v", v, ok)
	}
	if _, ok := fixedpoint.CheckedSub(3, 5); ok {
		t.Error("expected underflow")
	}
}

func TestCheckedMul(t *testing.T) {
	if v, ok := fixedpoint.CheckedMul(6, 7); !ok || v != 42 {
		t.Errorf("CheckedMul(6,7) = %d, %v", v, ok)
	}
	if _, ok := fixedpoint.CheckedMul(math.MaxUint64, 2); ok {
		t.Error("expected overflow")
	}
	if v, ok := fixedpoint.CheckedMul(0, math.MaxUint64); !ok || v != 0 {
		t.Errorf("CheckedMul(0,max) = %d, %v", v, ok)
	}
}

func TestApplyRatio(t *testing.T) {
	// 10% of 1000
	if v, ok := fixedpoint.ApplyRatio(1000, 100_000); !ok || v != 100 {
		t.Errorf("ApplyRatio(1000, 10%%) = %d, %v", v, ok)
	}
	// Truncation: 10% of 5 = 0
	if v, ok := fixedpoint.ApplyRatio(5, 100_000); !ok || v != 0 {
		t.Errorf("ApplyRatio(5, 10%%) = %d, %v", v, ok)
	}
	if _, ok := fixedpoint.ApplyRatio(1000, -1); ok {
		t.Error("negative ratio should fail")
	}
}

func TestMulDiv_LargeIntermediate(t *testing.T) {
	// amount * mul overflows uint64 but the quotient fits
	amount := uint64(math.MaxUint64 / 2)
	v, ok := fixedpoint.MulDiv(amount, 2_000_000, 2_000_000)
	if !ok || v != amount {
		t.Errorf("MulDiv roundtrip = %d, %v", v, ok)
	}
}

func TestRelativePrice(t *testing.T) {
	// 2.0 / 4.0 = 0.5
	v, ok := fixedpoint.RelativePrice(2_000_000, 4_000_000)
	if !ok || v != 500_000 {
		t.Errorf("RelativePrice = %d, %v", v, ok)
	}
	if _, ok := fixedpoint.RelativePrice(1, 0); ok {
		t.Error("zero denominator should fail")
	}
}

func TestAbsDeviationRatio(t *testing.T) {
	// market 1.10, peg 1.00 -> 10%
	v, ok := fixedpoint.AbsDeviationRatio(1_100_000, 1_000_000)
	if !ok || v != 100_000 {
		t.Errorf("above peg: got %d, %v", v, ok)
	}
	// market 0.90, peg 1.00 -> 10% as well (absolute)
	v, ok = fixedpoint.AbsDeviationRatio(900_000, 1_000_000)
	if !ok || v != 100_000 {
		t.Errorf("below peg: got %d, %v", v, ok)
	}
	if v, _ := fixedpoint.AbsDeviationRatio(1_000_000, 1_000_000); v != 0 {
		t.Errorf("at peg: got %d", v)
	}
}
