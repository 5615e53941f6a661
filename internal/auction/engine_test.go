package auction

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"SerpEngine/internal/ledger"
)

var (
	seller = ledger.SystemAccount("contraction-origin")
	bidB   = ledger.UserAccount(uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001"))
	bidC   = ledger.UserAccount(uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002"))
)

func newTestEngine(t *testing.T) (*Engine, *ledger.Book) {
	t.Helper()
	book := ledger.NewBook()
	return NewEngine(DefaultConfig(), NewRegistry(), book, zerolog.Nop()), book
}

func fund(t *testing.T, book *ledger.Book, asset ledger.AssetID, who ledger.Account, amount uint64) {
	t.Helper()
	if err := book.Deposit(asset, who, amount); err != nil {
		t.Fatalf("fund %s: %v", who.Path(), err)
	}
}

func TestReserveAuctionScenario(t *testing.T) {
	e, book := newTestEngine(t)
	fund(t, book, ledger.SETT, ledger.TreasuryAccount, 200)
	fund(t, book, ledger.SETTUSD, bidB, 150)
	fund(t, book, ledger.SETTUSD, bidC, 150)

	id, err := e.NewReserveAuction(1, seller, ledger.SETTUSD, 200, 100)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := e.Registry().TotalReserveInAuction(); got != 200 {
		t.Errorf("reserve in auction = %d, want 200", got)
	}

	// Below target.
	if err := e.PlaceBid(1, id, bidB, 99); !errors.Is(err, ErrInvalidBidPrice) {
		t.Fatalf("low bid err = %v, want ErrInvalidBidPrice", err)
	}
	if a, _ := e.Registry().Get(id); a.Bid != nil {
		t.Fatal("rejected bid mutated current bid")
	}

	// At target: accepted, payment escrowed into the treasury.
	if err := e.PlaceBid(1, id, bidB, 100); err != nil {
		t.Fatalf("bid at target: %v", err)
	}
	if got := book.FreeBalance(ledger.SETTUSD, ledger.TreasuryAccount); got != 100 {
		t.Errorf("treasury stable = %d, want 100", got)
	}

	// Equal price: not strictly greater.
	if err := e.PlaceBid(2, id, bidC, 100); !errors.Is(err, ErrInvalidBidPrice) {
		t.Fatalf("equal bid err = %v, want ErrInvalidBidPrice", err)
	}

	out, err := e.OnAuctionEnded(id)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !out.Dealt || out.Winner != bidB || out.Price != 100 {
		t.Errorf("outcome = %+v, want dealt to bidB at 100", out)
	}
	if got := book.FreeBalance(ledger.SETT, bidB); got != 200 {
		t.Errorf("winner reserve = %d, want 200", got)
	}
	if got := e.Registry().TotalReserveInAuction(); got != 0 {
		t.Errorf("reserve in auction after close = %d, want 0", got)
	}
	if _, err := e.Registry().Get(id); !errors.Is(err, ErrAuctionNonExistent) {
		t.Errorf("auction still present after close: %v", err)
	}
}

func TestOutbidRefundsInFull(t *testing.T) {
	e, book := newTestEngine(t)
	fund(t, book, ledger.SETT, ledger.TreasuryAccount, 50)
	fund(t, book, ledger.SETTUSD, bidB, 100)
	fund(t, book, ledger.SETTUSD, bidC, 200)

	id, _ := e.NewReserveAuction(1, seller, ledger.SETTUSD, 50, 80)
	if err := e.PlaceBid(1, id, bidB, 80); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	if err := e.PlaceBid(2, id, bidC, 120); err != nil {
		t.Fatalf("outbid: %v", err)
	}
	// Previous bidder whole again; treasury holds only the highest bid.
	if got := book.FreeBalance(ledger.SETTUSD, bidB); got != 100 {
		t.Errorf("outbid bidder balance = %d, want 100", got)
	}
	if got := book.FreeBalance(ledger.SETTUSD, ledger.TreasuryAccount); got != 120 {
		t.Errorf("treasury escrow = %d, want 120", got)
	}
	h, ok := book.HoldFor(id)
	if !ok || h.Bidder != bidC {
		t.Errorf("hold = %+v ok=%v, want bidC", h, ok)
	}
}

func TestBidWithInsufficientBalanceLeavesStateUnchanged(t *testing.T) {
	e, book := newTestEngine(t)
	fund(t, book, ledger.SETT, ledger.TreasuryAccount, 50)
	fund(t, book, ledger.SETTUSD, bidB, 10)

	id, _ := e.NewReserveAuction(1, seller, ledger.SETTUSD, 50, 80)
	err := e.PlaceBid(1, id, bidB, 80)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	a, _ := e.Registry().Get(id)
	if a.Bid != nil || a.EndStep != 0 {
		t.Errorf("failed escrow mutated auction: %+v", a)
	}
}

func TestSoftCapDeadlines(t *testing.T) {
	e, book := newTestEngine(t)
	fund(t, book, ledger.SETT, ledger.TreasuryAccount, 10)
	fund(t, book, ledger.SETTUSD, bidB, 1000)
	fund(t, book, ledger.SETTUSD, bidC, 1000)

	id, _ := e.NewReserveAuction(1, seller, ledger.SETTUSD, 10, 5)

	// First accepted bid assigns end = now + closeThreshold.
	if err := e.PlaceBid(1, id, bidB, 5); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	a, _ := e.Registry().Get(id)
	if a.EndStep != 101 {
		t.Errorf("end after first bid = %d, want 101", a.EndStep)
	}

	// Plenty of time left: deadline unchanged.
	if err := e.PlaceBid(10, id, bidC, 6); err != nil {
		t.Fatalf("early rebid: %v", err)
	}
	if a.EndStep != 101 {
		t.Errorf("end after early rebid = %d, want 101", a.EndStep)
	}

	// Inside the extend window: pushed to now + bidExtendPeriod.
	if err := e.PlaceBid(90, id, bidB, 7); err != nil {
		t.Fatalf("late-window bid: %v", err)
	}
	if a.EndStep != 140 {
		t.Errorf("end after late-window bid = %d, want 140", a.EndStep)
	}

	// After the deadline: too late.
	if err := e.PlaceBid(140, id, bidC, 8); !errors.Is(err, ErrInvalidBidPrice) {
		t.Fatalf("late bid err = %v, want ErrInvalidBidPrice", err)
	}
}

func TestNoBidRoundTrip(t *testing.T) {
	e, book := newTestEngine(t)
	fund(t, book, ledger.SETT, ledger.TreasuryAccount, 300)

	id, _ := e.NewReserveAuction(1, seller, ledger.SETTUSD, 300, 100)
	out, err := e.OnAuctionEnded(id)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if out.Dealt {
		t.Errorf("outcome = %+v, want cancelled", out)
	}
	// The reserved amount flows back to its origin, nothing leaks.
	if got := book.FreeBalance(ledger.SETT, seller); got != 300 {
		t.Errorf("refund receiver = %d, want 300", got)
	}
	if got := e.Registry().TotalReserveInAuction(); got != 0 {
		t.Errorf("counter after cancel = %d, want 0", got)
	}
	if got := e.Registry().TotalTargetInAuction(ledger.SETTUSD); got != 0 {
		t.Errorf("target counter after cancel = %d, want 0", got)
	}
}

func TestDilutionAuctionMintsOnDeal(t *testing.T) {
	e, book := newTestEngine(t)
	fund(t, book, ledger.SETT, bidB, 500)

	if _, err := e.NewDilutionAuction(1, 0, 100); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero price err = %v, want ErrInvalidAmount", err)
	}
	id, err := e.NewDilutionAuction(1, 200, 100)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := e.Registry().TotalDilutionInAuction(); got != 100 {
		t.Errorf("dilution in auction = %d, want 100", got)
	}
	if err := e.PlaceBid(1, id, bidB, 200); err != nil {
		t.Fatalf("bid: %v", err)
	}
	out, err := e.OnAuctionEnded(id)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !out.Dealt {
		t.Fatalf("outcome = %+v, want dealt", out)
	}
	// Native minted to the winner, payment kept by the treasury.
	if got := book.FreeBalance(ledger.DNAR, bidB); got != 100 {
		t.Errorf("winner native = %d, want 100", got)
	}
	if got := book.TotalIssuance(ledger.DNAR); got != 100 {
		t.Errorf("native issuance = %d, want 100", got)
	}
	if got := book.FreeBalance(ledger.SETT, ledger.TreasuryAccount); got != 200 {
		t.Errorf("treasury reserve = %d, want 200", got)
	}
}

func TestSurplusAuctionBurnsPayment(t *testing.T) {
	e, book := newTestEngine(t)
	fund(t, book, ledger.SETTUSD, ledger.TreasuryAccount, 100)
	fund(t, book, ledger.DNAR, bidB, 60)

	if _, err := e.NewSurplusAuction(1, 0, ledger.SETTUSD); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount err = %v, want ErrInvalidAmount", err)
	}
	id, err := e.NewSurplusAuction(1, 100, ledger.SETTUSD)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := e.Registry().TotalSurplusInAuction(ledger.SETTUSD); got != 100 {
		t.Errorf("surplus in auction = %d, want 100", got)
	}

	// No floor: any positive first bid clears.
	if err := e.PlaceBid(1, id, bidB, 0); !errors.Is(err, ErrInvalidBidPrice) {
		t.Fatalf("zero bid err = %v, want ErrInvalidBidPrice", err)
	}
	if err := e.PlaceBid(1, id, bidB, 60); err != nil {
		t.Fatalf("bid: %v", err)
	}

	out, err := e.OnAuctionEnded(id)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !out.Dealt {
		t.Fatalf("outcome = %+v, want dealt", out)
	}
	if got := book.FreeBalance(ledger.SETTUSD, bidB); got != 100 {
		t.Errorf("winner surplus = %d, want 100", got)
	}
	// The winning native payment is burned outright.
	if got := book.TotalIssuance(ledger.DNAR); got != 0 {
		t.Errorf("native issuance after burn = %d, want 0", got)
	}
}

func TestCloseDueSweep(t *testing.T) {
	e, book := newTestEngine(t)
	fund(t, book, ledger.SETT, ledger.TreasuryAccount, 30)
	fund(t, book, ledger.SETTUSD, bidB, 100)

	first, _ := e.NewReserveAuction(1, seller, ledger.SETTUSD, 10, 5)
	second, _ := e.NewReserveAuction(1, seller, ledger.SETTUSD, 20, 5)
	if err := e.PlaceBid(1, first, bidB, 5); err != nil {
		t.Fatalf("bid: %v", err)
	}

	// Only the bid-bearing auction has a deadline; the other keeps waiting.
	outcomes := e.CloseDue(101)
	if len(outcomes) != 1 || outcomes[0].ID != first || !outcomes[0].Dealt {
		t.Fatalf("outcomes = %+v, want single deal of first auction", outcomes)
	}
	if _, err := e.Registry().Get(second); err != nil {
		t.Errorf("deadline-free auction closed by sweep: %v", err)
	}
	if outcomes := e.CloseDue(102); outcomes != nil {
		t.Errorf("second sweep closed %+v, want nothing", outcomes)
	}
}

func TestBidOnUnknownAuction(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.PlaceBid(1, 42, bidB, 10); !errors.Is(err, ErrAuctionNonExistent) {
		t.Fatalf("err = %v, want ErrAuctionNonExistent", err)
	}
}
