package treasury

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"SerpEngine/internal/auction"
	"SerpEngine/internal/ledger"
	"SerpEngine/internal/swap"
)

var vault = ledger.UserAccount(uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000001"))

func newTestTreasury(t *testing.T) (*Treasury, *auction.Engine, *ledger.Book) {
	t.Helper()
	book := ledger.NewBook()
	eng := auction.NewEngine(auction.DefaultConfig(), auction.NewRegistry(), book, zerolog.Nop())
	dex := swap.NewConstantProductDex(0)
	return New(DefaultConfig(), book, eng, dex, zerolog.Nop()), eng, book
}

func TestDebtPoolArithmetic(t *testing.T) {
	tr, _, _ := newTestTreasury(t)
	if err := tr.RecordSystemDebt(500); err != nil {
		t.Fatalf("record debt: %v", err)
	}
	if got := tr.DebtPool(); got != 500 {
		t.Errorf("debt pool = %d, want 500", got)
	}
	if err := tr.RecordSystemDebt(math.MaxUint64); !errors.Is(err, ErrDebtPoolOverflow) {
		t.Fatalf("overflow err = %v, want ErrDebtPoolOverflow", err)
	}
	if got := tr.DebtPool(); got != 500 {
		t.Errorf("debt pool after rejected record = %d, want 500", got)
	}
}

func TestIssueStandardUnbackedRecordsDebt(t *testing.T) {
	tr, _, book := newTestTreasury(t)
	if err := tr.IssueStandard(ledger.SETTUSD, vault, 300, false); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if got := tr.DebtPool(); got != 300 {
		t.Errorf("debt pool = %d, want 300", got)
	}
	if got := book.FreeBalance(ledger.SETTUSD, vault); got != 300 {
		t.Errorf("issued balance = %d, want 300", got)
	}

	// Backed issue leaves the debt pool alone.
	if err := tr.IssueStandard(ledger.SETTUSD, vault, 100, true); err != nil {
		t.Fatalf("backed issue: %v", err)
	}
	if got := tr.DebtPool(); got != 300 {
		t.Errorf("debt pool after backed issue = %d, want 300", got)
	}
}

func TestReservePoolExcludesAuctionedAmount(t *testing.T) {
	tr, _, book := newTestTreasury(t)
	book.Deposit(ledger.SETT, vault, 1000)
	if err := tr.DepositReserve(vault, 1000); err != nil {
		t.Fatalf("deposit reserve: %v", err)
	}
	if got := tr.ReservePool(); got != 1000 {
		t.Errorf("reserve pool = %d, want 1000", got)
	}

	ids, err := tr.AuctionReserve(1, vault, ledger.SETTUSD, 400, 100, false)
	if err != nil || len(ids) != 1 {
		t.Fatalf("auction reserve: ids=%v err=%v", ids, err)
	}
	if got := tr.ReservePool(); got != 600 {
		t.Errorf("reserve pool with lot in auction = %d, want 600", got)
	}

	if _, err := tr.AuctionReserve(1, vault, ledger.SETTUSD, 601, 100, false); !errors.Is(err, ErrReserveNotEnough) {
		t.Fatalf("oversized auction err = %v, want ErrReserveNotEnough", err)
	}
	if err := tr.WithdrawReserve(vault, 601); !errors.Is(err, ErrReserveNotEnough) {
		t.Fatalf("oversized withdraw err = %v, want ErrReserveNotEnough", err)
	}
	if err := tr.WithdrawReserve(vault, 600); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
}

func TestAuctionReserveLotSplitting(t *testing.T) {
	tr, eng, book := newTestTreasury(t)
	tr.SetMaxReserveAuctionLot(100)
	book.Deposit(ledger.SETT, ledger.TreasuryAccount, 1000)

	ids, err := tr.AuctionReserve(1, vault, ledger.SETTUSD, 1000, 333, true)
	if err != nil {
		t.Fatalf("auction reserve: %v", err)
	}
	if len(ids) != 10 {
		t.Fatalf("lots = %d, want 10", len(ids))
	}
	if got := eng.Registry().TotalReserveInAuction(); got != 1000 {
		t.Errorf("total reserve in auction = %d, want 1000", got)
	}
	if got := eng.Registry().TotalTargetInAuction(ledger.SETTUSD); got != 333 {
		t.Errorf("total target in auction = %d, want 333", got)
	}
}

func TestAuctionSurplusBounds(t *testing.T) {
	tr, eng, _ := newTestTreasury(t)
	if err := tr.RecordSystemSurplus(ledger.SETTUSD, 100); err != nil {
		t.Fatalf("record surplus: %v", err)
	}
	if _, err := tr.AuctionSurplus(1, ledger.SETTUSD, 101); !errors.Is(err, ErrSurplusPoolNotEnough) {
		t.Fatalf("err = %v, want ErrSurplusPoolNotEnough", err)
	}
	if _, err := tr.AuctionSurplus(1, ledger.SETTUSD, 60); err != nil {
		t.Fatalf("auction surplus: %v", err)
	}
	if got := eng.Registry().TotalSurplusInAuction(ledger.SETTUSD); got != 60 {
		t.Errorf("surplus in auction = %d, want 60", got)
	}
	// The remaining 40 is all that is still auctionable.
	if _, err := tr.AuctionSurplus(1, ledger.SETTUSD, 41); !errors.Is(err, ErrSurplusPoolNotEnough) {
		t.Fatalf("second auction err = %v, want ErrSurplusPoolNotEnough", err)
	}
}

func TestAuctionReserveSplitSmallTarget(t *testing.T) {
	tr, eng, book := newTestTreasury(t)
	book.Deposit(ledger.SETT, ledger.TreasuryAccount, 5_000)
	tr.SetMaxReserveAuctionLot(100)

	// Target below the lot count: every lot still carries a positive
	// target, so no lot is rejected mid-split.
	ids, err := tr.AuctionReserve(1, vault, ledger.SETTUSD, 1_000, 5, true)
	if err != nil {
		t.Fatalf("auction reserve: %v", err)
	}
	if len(ids) != 5 {
		t.Fatalf("lots opened = %d, want 5", len(ids))
	}
	var sumAmount, sumTarget uint64
	for _, id := range ids {
		a, err := eng.Registry().Get(id)
		if err != nil {
			t.Fatalf("auction %d: %v", id, err)
		}
		if a.Target == 0 {
			t.Errorf("auction %d has zero target", id)
		}
		sumAmount += a.Amount
		sumTarget += a.Target
	}
	if sumAmount != 1_000 || sumTarget != 5 {
		t.Errorf("sums %d/%d, conservation violated", sumAmount, sumTarget)
	}
}

func TestAuctionReserveRejectsZeroTarget(t *testing.T) {
	tr, _, book := newTestTreasury(t)
	book.Deposit(ledger.SETT, ledger.TreasuryAccount, 5_000)
	tr.SetMaxReserveAuctionLot(100)

	if _, err := tr.AuctionReserve(1, vault, ledger.SETTUSD, 1_000, 0, true); !errors.Is(err, auction.ErrInvalidAmount) {
		t.Fatalf("zero target err = %v, want ErrInvalidAmount", err)
	}
	if _, err := tr.AuctionReserve(1, vault, ledger.SETTUSD, 0, 100, false); !errors.Is(err, auction.ErrInvalidAmount) {
		t.Fatalf("zero amount err = %v, want ErrInvalidAmount", err)
	}
	if _, err := tr.AuctionReserve(1, vault, ledger.DNAR, 1_000, 100, false); !errors.Is(err, auction.ErrInvalidAmount) {
		t.Fatalf("non-stable payment err = %v, want ErrInvalidAmount", err)
	}
}

func TestAuctionDilutionRequiresDebt(t *testing.T) {
	tr, _, _ := newTestTreasury(t)
	if _, err := tr.AuctionDilution(1, 100, 50); !errors.Is(err, ErrDebtPoolNotEnough) {
		t.Fatalf("err = %v, want ErrDebtPoolNotEnough", err)
	}
	tr.RecordSystemDebt(100)
	if _, err := tr.AuctionDilution(1, 100, 50); err != nil {
		t.Fatalf("auction dilution: %v", err)
	}
}

func TestOffsetSurplusAndDebt(t *testing.T) {
	tr, _, book := newTestTreasury(t)
	tr.RecordSystemDebt(80)
	tr.RecordSystemSurplus(ledger.SETTUSD, 50)

	if got := tr.OffsetSurplusAndDebt(); got != 50 {
		t.Errorf("offset = %d, want 50", got)
	}
	if got := tr.DebtPool(); got != 30 {
		t.Errorf("debt pool = %d, want 30", got)
	}
	if got := tr.SurplusPool(ledger.SETTUSD); got != 0 {
		t.Errorf("surplus pool = %d, want 0", got)
	}
	// Post-condition: after an offset at most one side is positive.
	if tr.DebtPool() > 0 && tr.SurplusPool(ledger.SETTUSD) > 0 {
		t.Error("both pools positive after offset")
	}
	if got := book.TotalIssuance(ledger.SETTUSD); got != 0 {
		t.Errorf("issuance after burn = %d, want 0", got)
	}
	if got := tr.OffsetSurplusAndDebt(); got != 0 {
		t.Errorf("repeat offset = %d, want 0", got)
	}
}

func TestOffsetSkipsAuctionedSurplus(t *testing.T) {
	tr, _, _ := newTestTreasury(t)
	tr.RecordSystemDebt(100)
	tr.RecordSystemSurplus(ledger.SETTUSD, 100)
	if _, err := tr.AuctionSurplus(1, ledger.SETTUSD, 70); err != nil {
		t.Fatalf("auction surplus: %v", err)
	}
	// Only the unauctioned 30 may be burned.
	if got := tr.OffsetSurplusAndDebt(); got != 30 {
		t.Errorf("offset = %d, want 30", got)
	}
	if got := tr.DebtPool(); got != 70 {
		t.Errorf("debt pool = %d, want 70", got)
	}
}

func TestOffsetSkipsBidEscrow(t *testing.T) {
	tr, eng, book := newTestTreasury(t)
	rival := ledger.UserAccount(uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002"))
	book.Deposit(ledger.SETT, ledger.TreasuryAccount, 1_000)
	book.Deposit(ledger.SETTUSD, vault, 200)
	book.Deposit(ledger.SETTUSD, rival, 150)

	ids, err := tr.AuctionReserve(1, vault, ledger.SETTUSD, 100, 100, false)
	if err != nil {
		t.Fatalf("auction reserve: %v", err)
	}
	if err := eng.PlaceBid(1, ids[0], vault, 100); err != nil {
		t.Fatalf("bid: %v", err)
	}
	tr.RecordSystemDebt(120)
	tr.RecordSystemSurplus(ledger.SETTUSD, 50)

	// The pool holds 150 but 100 of it is refundable bid escrow; only the
	// minted 50 may burn against the debt.
	if got := tr.OffsetSurplusAndDebt(); got != 50 {
		t.Errorf("offset = %d, want 50", got)
	}
	if got := tr.DebtPool(); got != 70 {
		t.Errorf("debt pool = %d, want 70", got)
	}

	// The escrow survived the offset: outbidding refunds it in full.
	if err := eng.PlaceBid(2, ids[0], rival, 150); err != nil {
		t.Fatalf("outbid: %v", err)
	}
	if got := book.FreeBalance(ledger.SETTUSD, vault); got != 200 {
		t.Errorf("refunded bidder balance = %d, want 200", got)
	}
}

func TestSwapReserveToStable(t *testing.T) {
	book := ledger.NewBook()
	eng := auction.NewEngine(auction.DefaultConfig(), auction.NewRegistry(), book, zerolog.Nop())
	dex := swap.NewConstantProductDex(0)
	if err := dex.AddLiquidity(ledger.SETT, ledger.SETTUSD, 1_000_000, 2_000_000); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	// The dex account mirrors the pool's stable side.
	book.Deposit(ledger.SETTUSD, ledger.DexAccount, 2_000_000)
	book.Deposit(ledger.SETT, ledger.TreasuryAccount, 500_000)
	tr := New(DefaultConfig(), book, eng, dex, zerolog.Nop())

	out, err := tr.SwapReserveToStable(100_000, 0)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out != 181_818 {
		t.Errorf("out = %d, want 181818", out)
	}
	if got := tr.SurplusPool(ledger.SETTUSD); got != 181_818 {
		t.Errorf("surplus pool = %d, want 181818", got)
	}
	if got := tr.ReservePool(); got != 400_000 {
		t.Errorf("reserve pool = %d, want 400000", got)
	}

	if _, err := tr.SwapReserveToStable(500_000, 0); !errors.Is(err, ErrReserveNotEnough) {
		t.Fatalf("oversized swap err = %v, want ErrReserveNotEnough", err)
	}
}
