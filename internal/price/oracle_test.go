package price

import (
	"errors"
	"testing"

	"SerpEngine/internal/fixedpoint"
	"SerpEngine/internal/ledger"
)

func TestRecordAndQuote(t *testing.T) {
	o := NewOracle()
	if _, err := o.Quote(ledger.SETT); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("err = %v, want ErrPriceUnavailable", err)
	}
	if err := o.Record(ledger.SETT, 2_500_000); err != nil {
		t.Fatalf("record: %v", err)
	}
	quote, err := o.Quote(ledger.SETT)
	if err != nil || quote != 2_500_000 {
		t.Errorf("quote = %d, %v; want 2500000", quote, err)
	}
	if err := o.Record(ledger.SETT, 0); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("zero quote err = %v, want ErrInvalidPrice", err)
	}
}

func TestRelative(t *testing.T) {
	o := NewOracle()
	o.Record(ledger.SETT, 2_000_000)    // 2.00
	o.Record(ledger.SETTUSD, 1_000_000) // 1.00
	rel, err := o.Relative(ledger.SETT, ledger.SETTUSD)
	if err != nil {
		t.Fatalf("relative: %v", err)
	}
	if rel != 2_000_000 {
		t.Errorf("SETT/SETTUSD = %d, want 2000000", rel)
	}
	if _, err := o.Relative(ledger.DNAR, ledger.SETTUSD); !errors.Is(err, ErrPriceUnavailable) {
		t.Errorf("missing base err = %v, want ErrPriceUnavailable", err)
	}
}

func TestDeviation(t *testing.T) {
	o := NewOracle()
	o.Record(ledger.SETTUSD, 1_100_000) // 10% over peg
	ratio, above, err := o.Deviation(ledger.SETTUSD)
	if err != nil {
		t.Fatalf("deviation: %v", err)
	}
	if ratio != 100_000 || !above {
		t.Errorf("deviation = %d above=%v, want 100000 above", ratio, above)
	}

	o.Record(ledger.SETTUSD, 950_000) // 5% under peg
	ratio, above, err = o.Deviation(ledger.SETTUSD)
	if err != nil {
		t.Fatalf("deviation: %v", err)
	}
	if ratio != 50_000 || above {
		t.Errorf("deviation = %d above=%v, want 50000 below", ratio, above)
	}
}

func TestSetPeg(t *testing.T) {
	o := NewOracle()
	if err := o.SetPeg(ledger.DNAR, fixedpoint.PriceScale); err == nil {
		t.Error("expected error pegging the native asset")
	}
	if err := o.SetPeg(ledger.SETT, 1_020_000); err != nil {
		t.Errorf("basket peg for reserve anchor: %v", err)
	}
	if err := o.SetPeg(ledger.SETTKWD, 3_250_000); err != nil {
		t.Fatalf("set peg: %v", err)
	}
	peg, err := o.Peg(ledger.SETTKWD)
	if err != nil || peg != 3_250_000 {
		t.Errorf("peg = %d, %v; want 3250000", peg, err)
	}
}

func TestSortedQuotesOrder(t *testing.T) {
	o := NewOracle()
	o.Record(ledger.SETTCHF, 1_010_000)
	o.Record(ledger.DNAR, 4_000_000)
	o.Record(ledger.SETT, 1_500_000)
	entries := o.SortedQuotes()
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Asset >= entries[i].Asset {
			t.Fatalf("quotes not sorted: %+v", entries)
		}
	}
}
