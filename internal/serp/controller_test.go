package serp

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"SerpEngine/internal/auction"
	"SerpEngine/internal/ledger"
	"SerpEngine/internal/price"
	"SerpEngine/internal/swap"
	"SerpEngine/internal/treasury"
)

type fixture struct {
	ctrl   *Controller
	oracle *price.Oracle
	eng    *auction.Engine
	tr     *treasury.Treasury
	book   *ledger.Book
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	book := ledger.NewBook()
	eng := auction.NewEngine(auction.DefaultConfig(), auction.NewRegistry(), book, zerolog.Nop())
	tr := treasury.New(treasury.DefaultConfig(), book, eng, swap.NewConstantProductDex(0), zerolog.Nop())
	oracle := price.NewOracle()
	return &fixture{
		ctrl:   NewController(cfg, oracle, tr, eng, book, zerolog.Nop()),
		oracle: oracle,
		eng:    eng,
		tr:     tr,
		book:   book,
	}
}

func TestDue(t *testing.T) {
	f := newFixture(t, Config{AdjustmentFrequency: 10})
	if f.ctrl.Due(5) || !f.ctrl.Due(20) {
		t.Error("Due disagrees with adjustment frequency")
	}
	zero := newFixture(t, Config{AdjustmentFrequency: 0})
	if zero.ctrl.Due(10) {
		t.Error("zero frequency must never fire")
	}
}

func TestEvaluateSkipsUnpricedAssets(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	results := f.ctrl.Evaluate(10)
	if len(results) != 6 {
		t.Fatalf("results = %d, want one per configured asset", len(results))
	}
	for _, res := range results {
		if res.Verdict != VerdictSkipped || !errors.Is(res.Err, price.ErrPriceUnavailable) {
			t.Errorf("%s: verdict=%v err=%v, want skipped/unavailable",
				ledger.AssetName(res.Asset), res.Verdict, res.Err)
		}
	}
}

func TestEvaluateStable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PeggedAssets = []ledger.AssetID{ledger.SETTUSD}
	f := newFixture(t, cfg)
	f.oracle.Record(ledger.SETTUSD, 1_000_000)

	results := f.ctrl.Evaluate(10)
	if len(results) != 1 || results[0].Verdict != VerdictStable {
		t.Fatalf("results = %+v, want single stable verdict", results)
	}
}

func TestSerpUpRouting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PeggedAssets = []ledger.AssetID{ledger.SETTUSD}
	f := newFixture(t, cfg)

	// issuance 1000, 10% over peg: serp-up amount 100, 10 to each of the
	// five destinations, residual 50 left unminted.
	f.book.Deposit(ledger.SETTUSD, ledger.UserAccount([16]byte{1}), 1000)
	f.oracle.Record(ledger.SETTUSD, 1_100_000)

	results := f.ctrl.Evaluate(10)
	res := results[0]
	if res.Verdict != VerdictSerpedUp || res.SerpUp != 100 {
		t.Fatalf("result = %+v, want serped-up 100", res)
	}
	if len(res.Deliveries) != 5 {
		t.Fatalf("deliveries = %d, want 5", len(res.Deliveries))
	}
	for _, d := range res.Deliveries {
		if d.Amount != 10 {
			t.Errorf("delivery %s = %d, want 10", d.Name, d.Amount)
		}
		if got := f.book.FreeBalance(ledger.SETTUSD, d.Account); got != 10 {
			t.Errorf("balance of %s = %d, want 10", d.Account.Path(), got)
		}
	}
	// 1000 + 5*10 minted; the unrouted 50 is never issued.
	if got := f.book.TotalIssuance(ledger.SETTUSD); got != 1050 {
		t.Errorf("issuance = %d, want 1050", got)
	}
}

func TestSerpDownOpensReserveAuction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PeggedAssets = []ledger.AssetID{ledger.SETTUSD}
	f := newFixture(t, cfg)

	f.book.Deposit(ledger.SETTUSD, ledger.UserAccount([16]byte{1}), 1000)
	f.book.Deposit(ledger.SETT, ledger.TreasuryAccount, 10_000)
	f.oracle.Record(ledger.SETTUSD, 900_000) // 10% under peg
	f.oracle.Record(ledger.SETT, 2_000_000)

	results := f.ctrl.Evaluate(10)
	res := results[0]
	if res.Verdict != VerdictSerpedDown || len(res.AuctionIDs) != 1 {
		t.Fatalf("result = %+v, want serped-down with one auction", res)
	}
	a, err := f.eng.Registry().Get(res.AuctionIDs[0])
	if err != nil {
		t.Fatalf("auction lookup: %v", err)
	}
	// contraction = 1000 * 10% = 100 of SETTUSD; at SETTUSD/SETT = 0.45
	// the reserve lot is 45.
	if a.Kind != auction.KindReserve || a.Target != 100 || a.Amount != 45 {
		t.Errorf("auction = %+v, want reserve amount=45 target=100", a)
	}
	if a.PaymentAsset != ledger.SETTUSD {
		t.Errorf("payment asset = %s, want SETTUSD", ledger.AssetName(a.PaymentAsset))
	}
}

func TestSerpDownAnchorOpensDilutionAuction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PeggedAssets = []ledger.AssetID{ledger.SETT}
	f := newFixture(t, cfg)

	f.book.Deposit(ledger.SETT, ledger.UserAccount([16]byte{1}), 1000)
	f.oracle.Record(ledger.SETT, 900_000) // 10% under basket peg
	f.oracle.Record(ledger.DNAR, 3_000_000)

	results := f.ctrl.Evaluate(10)
	res := results[0]
	if res.Verdict != VerdictSerpedDown || len(res.AuctionIDs) != 1 {
		t.Fatalf("result = %+v, want serped-down with one auction", res)
	}
	a, err := f.eng.Registry().Get(res.AuctionIDs[0])
	if err != nil {
		t.Fatalf("auction lookup: %v", err)
	}
	// contraction 100 SETT; at SETT/DNAR = 0.30 the native lot is 30.
	if a.Kind != auction.KindDilution || a.Target != 100 || a.Amount != 30 {
		t.Errorf("auction = %+v, want dilution amount=30 target=100", a)
	}
}

func TestSerpDownZeroContraction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PeggedAssets = []ledger.AssetID{ledger.SETTUSD}
	f := newFixture(t, cfg)

	// Tiny issuance truncates the contraction to zero.
	f.book.Deposit(ledger.SETTUSD, ledger.UserAccount([16]byte{1}), 1)
	f.oracle.Record(ledger.SETTUSD, 900_000)
	f.oracle.Record(ledger.SETT, 2_000_000)

	res := f.ctrl.Evaluate(10)[0]
	if res.Verdict != VerdictSkipped || !errors.Is(res.Err, auction.ErrInvalidAmount) {
		t.Fatalf("result = %+v, want skipped with ErrInvalidAmount", res)
	}
}

func TestEvaluateOrderIsConfigured(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PeggedAssets = []ledger.AssetID{ledger.SETTGBP, ledger.SETTUSD}
	f := newFixture(t, cfg)
	f.oracle.Record(ledger.SETTGBP, 1_000_000)
	f.oracle.Record(ledger.SETTUSD, 1_000_000)

	results := f.ctrl.Evaluate(10)
	if results[0].Asset != ledger.SETTGBP || results[1].Asset != ledger.SETTUSD {
		t.Errorf("evaluation order %v does not follow configuration", results)
	}
}
