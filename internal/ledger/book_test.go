package ledger

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
)

var (
	alice = UserAccount(uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	bob   = UserAccount(uuid.MustParse("22222222-2222-2222-2222-222222222222"))
)

func TestDepositAndWithdraw(t *testing.T) {
	b := NewBook()
	if err := b.Deposit(SETTUSD, alice, 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := b.FreeBalance(SETTUSD, alice); got != 1000 {
		t.Errorf("balance = %d, want 1000", got)
	}
	if got := b.TotalIssuance(SETTUSD); got != 1000 {
		t.Errorf("issuance = %d, want 1000", got)
	}
	if err := b.Withdraw(SETTUSD, alice, 400); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := b.FreeBalance(SETTUSD, alice); got != 600 {
		t.Errorf("balance after withdraw = %d, want 600", got)
	}
	if got := b.TotalIssuance(SETTUSD); got != 600 {
		t.Errorf("issuance after withdraw = %d, want 600", got)
	}
}

func TestWithdrawInsufficient(t *testing.T) {
	b := NewBook()
	if err := b.Deposit(DNAR, alice, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	err := b.Withdraw(DNAR, alice, 101)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if got := b.FreeBalance(DNAR, alice); got != 100 {
		t.Errorf("balance after failed withdraw = %d, want 100", got)
	}
}

func TestTransfer(t *testing.T) {
	b := NewBook()
	if err := b.Deposit(SETT, alice, 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := b.Transfer(SETT, alice, bob, 200); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := b.FreeBalance(SETT, alice); got != 300 {
		t.Errorf("sender = %d, want 300", got)
	}
	if got := b.FreeBalance(SETT, bob); got != 200 {
		t.Errorf("receiver = %d, want 200", got)
	}
	if got := b.TotalIssuance(SETT); got != 500 {
		t.Errorf("issuance changed by transfer: %d", got)
	}
	err := b.Transfer(SETT, alice, bob, 301)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraw err = %v, want ErrInsufficientBalance", err)
	}
}

func TestDepositOverflow(t *testing.T) {
	b := NewBook()
	if err := b.Deposit(SETTUSD, alice, math.MaxUint64); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	err := b.Deposit(SETTUSD, bob, 1)
	if !errors.Is(err, ErrIssuanceOverflow) {
		t.Fatalf("err = %v, want ErrIssuanceOverflow", err)
	}
}

func TestUnknownAsset(t *testing.T) {
	b := NewBook()
	if err := b.Deposit(AssetID(99), alice, 1); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("err = %v, want ErrUnknownAsset", err)
	}
}

func TestHoldLifecycle(t *testing.T) {
	b := NewBook()
	b.AddHold(7, alice)
	if got := b.HoldCount(alice); got != 1 {
		t.Errorf("hold count = %d, want 1", got)
	}
	b.SwapHold(7, bob)
	if got := b.HoldCount(alice); got != 0 {
		t.Errorf("hold count after swap = %d, want 0", got)
	}
	h, ok := b.HoldFor(7)
	if !ok || h.Bidder != bob {
		t.Fatalf("hold = %+v ok=%v, want bidder bob", h, ok)
	}
	b.RemoveHold(7)
	if _, ok := b.HoldFor(7); ok {
		t.Error("hold survived removal")
	}
}

func TestDuplicateHoldPanics(t *testing.T) {
	b := NewBook()
	b.AddHold(1, alice)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate hold")
		}
	}()
	b.AddHold(1, bob)
}

func TestSortedBalancesDeterministic(t *testing.T) {
	b := NewBook()
	b.Deposit(SETTUSD, bob, 10)
	b.Deposit(SETTUSD, alice, 20)
	b.Deposit(DNAR, TreasuryAccount, 5)
	b.Deposit(SETT, alice, 0) // zero rows are skipped

	entries := b.SortedBalances()
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	if entries[0].Asset != DNAR || entries[0].Account != TreasuryAccount.Path() {
		t.Errorf("first entry = %+v, want DNAR treasury", entries[0])
	}
	if entries[1].Account >= entries[2].Account {
		t.Errorf("accounts not sorted within asset: %q >= %q",
			entries[1].Account, entries[2].Account)
	}
}

func TestParseAccountPathRoundTrip(t *testing.T) {
	for _, acct := range []Account{alice, TreasuryAccount, SettPayAccount} {
		got, err := ParseAccountPath(acct.Path())
		if err != nil {
			t.Fatalf("parse %q: %v", acct.Path(), err)
		}
		if got != acct {
			t.Errorf("round trip %q: got %+v want %+v", acct.Path(), got, acct)
		}
	}
	if _, err := ParseAccountPath("pool:x"); err == nil {
		t.Error("expected error for unknown scope")
	}
}
