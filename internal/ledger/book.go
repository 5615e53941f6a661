package ledger

import (
	"errors"
	"fmt"
	"sort"

	"SerpEngine/internal/fixedpoint"
)

var (
	// ErrInsufficientBalance is returned when a withdrawal or transfer
	// exceeds the payer's free balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrIssuanceOverflow is returned when a deposit would overflow the
	// asset's total issuance.
	ErrIssuanceOverflow = errors.New("total issuance overflow")
	// ErrUnknownAsset is returned for operations on an unregistered asset.
	ErrUnknownAsset = errors.New("unknown asset")
)

// Ledger is the balance interface consumed by the auction engine, the
// treasury and the stabilization controller. The engine owns a single Book
// behind this interface; tests substitute their own.
type Ledger interface {
	FreeBalance(asset AssetID, who Account) uint64
	TotalIssuance(asset AssetID) uint64
	Transfer(asset AssetID, from, to Account, amount uint64) error
	Deposit(asset AssetID, who Account, amount uint64) error
	Withdraw(asset AssetID, who Account, amount uint64) error
}

type balanceKey struct {
	asset AssetID
	who   Account
}

// Hold marks an account as the escrowed bidder of a live auction. Holds do
// not lock funds (the escrowed amount already moved to the treasury); they
// exist so the engine can assert, per auction, exactly one outstanding
// bidder reference at any time.
type Hold struct {
	Bidder Account
}

// Book is the in-memory multi-asset balance store. It is single-writer:
// the core engine mutates it from its one execution goroutine, so no
// locking is needed. All arithmetic is checked; balances never wrap.
type Book struct {
	balances map[balanceKey]uint64
	issuance map[AssetID]uint64
	holds    map[uint64]Hold
}

func NewBook() *Book {
	return &Book{
		balances: make(map[balanceKey]uint64),
		issuance: make(map[AssetID]uint64),
		holds:    make(map[uint64]Hold),
	}
}

func (b *Book) FreeBalance(asset AssetID, who Account) uint64 {
	return b.balances[balanceKey{asset: asset, who: who}]
}

func (b *Book) TotalIssuance(asset AssetID) uint64 {
	return b.issuance[asset]
}

// Transfer moves amount from one account to another. Issuance is unchanged.
func (b *Book) Transfer(asset AssetID, from, to Account, amount uint64) error {
	if !IsKnown(asset) {
		return fmt.Errorf("transfer %s: %w", AssetName(asset), ErrUnknownAsset)
	}
	if amount == 0 {
		return nil
	}
	fromKey := balanceKey{asset: asset, who: from}
	have := b.balances[fromKey]
	if have < amount {
		return fmt.Errorf("transfer %d %s from %s (have %d): %w",
			amount, AssetName(asset), from.Path(), have, ErrInsufficientBalance)
	}
	toKey := balanceKey{asset: asset, who: to}
	// Receiver overflow is impossible: issuance is capped at MaxUint64 and
	// the sum of all balances equals issuance.
	b.balances[fromKey] = have - amount
	b.balances[toKey] += amount
	return nil
}

// Deposit mints amount into who's balance, growing total issuance.
func (b *Book) Deposit(asset AssetID, who Account, amount uint64) error {
	if !IsKnown(asset) {
		return fmt.Errorf("deposit %s: %w", AssetName(asset), ErrUnknownAsset)
	}
	if amount == 0 {
		return nil
	}
	total, ok := fixedpoint.CheckedAdd(b.issuance[asset], amount)
	if !ok {
		return fmt.Errorf("deposit %d %s: %w", amount, AssetName(asset), ErrIssuanceOverflow)
	}
	b.issuance[asset] = total
	b.balances[balanceKey{asset: asset, who: who}] += amount
	return nil
}

// Withdraw burns amount from who's balance, shrinking total issuance.
func (b *Book) Withdraw(asset AssetID, who Account, amount uint64) error {
	if !IsKnown(asset) {
		return fmt.Errorf("withdraw %s: %w", AssetName(asset), ErrUnknownAsset)
	}
	if amount == 0 {
		return nil
	}
	key := balanceKey{asset: asset, who: who}
	have := b.balances[key]
	if have < amount {
		return fmt.Errorf("withdraw %d %s from %s (have %d): %w",
			amount, AssetName(asset), who.Path(), have, ErrInsufficientBalance)
	}
	b.balances[key] = have - amount
	b.issuance[asset] -= amount
	return nil
}

// AddHold records who as the escrowed bidder of auctionID. Exactly one hold
// may exist per auction.
func (b *Book) AddHold(auctionID uint64, who Account) {
	if _, exists := b.holds[auctionID]; exists {
		panic(fmt.Sprintf("ledger: duplicate hold for auction %d", auctionID))
	}
	b.holds[auctionID] = Hold{Bidder: who}
}

// SwapHold replaces the escrowed bidder of auctionID after an outbid.
func (b *Book) SwapHold(auctionID uint64, who Account) {
	if _, exists := b.holds[auctionID]; !exists {
		panic(fmt.Sprintf("ledger: swap on missing hold for auction %d", auctionID))
	}
	b.holds[auctionID] = Hold{Bidder: who}
}

// RemoveHold drops the escrowed bidder reference when an auction settles or
// is cancelled.
func (b *Book) RemoveHold(auctionID uint64) {
	if _, exists := b.holds[auctionID]; !exists {
		panic(fmt.Sprintf("ledger: remove on missing hold for auction %d", auctionID))
	}
	delete(b.holds, auctionID)
}

// HoldFor returns the escrowed bidder of auctionID, if any.
func (b *Book) HoldFor(auctionID uint64) (Hold, bool) {
	h, ok := b.holds[auctionID]
	return h, ok
}

// HoldCount returns the number of live auctions in which who is the
// escrowed bidder.
func (b *Book) HoldCount(who Account) int {
	n := 0
	for _, h := range b.holds {
		if h.Bidder == who {
			n++
		}
	}
	return n
}

// BalanceEntry is one row of a deterministic balance dump.
type BalanceEntry struct {
	Asset   AssetID
	Account string
	Amount  uint64
}

// SortedBalances returns every non-zero balance ordered by asset then
// account path. The state hasher and the snapshot writer both consume this.
func (b *Book) SortedBalances() []BalanceEntry {
	entries := make([]BalanceEntry, 0, len(b.balances))
	for key, amount := range b.balances {
		if amount == 0 {
			continue
		}
		entries = append(entries, BalanceEntry{
			Asset:   key.asset,
			Account: key.who.Path(),
			Amount:  amount,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Asset != entries[j].Asset {
			return entries[i].Asset < entries[j].Asset
		}
		return entries[i].Account < entries[j].Account
	})
	return entries
}

// IssuanceEntry is one row of a deterministic issuance dump.
type IssuanceEntry struct {
	Asset  AssetID
	Amount uint64
}

// SortedIssuance returns total issuance per asset in canonical asset order.
func (b *Book) SortedIssuance() []IssuanceEntry {
	entries := make([]IssuanceEntry, 0, len(b.issuance))
	for _, asset := range AllAssets {
		if amount := b.issuance[asset]; amount > 0 {
			entries = append(entries, IssuanceEntry{Asset: asset, Amount: amount})
		}
	}
	return entries
}

// RestoreBalance installs a balance row from a snapshot. It bypasses the
// checked deposit path; callers restore issuance separately.
func (b *Book) RestoreBalance(asset AssetID, who Account, amount uint64) {
	b.balances[balanceKey{asset: asset, who: who}] = amount
}

// RestoreIssuance installs an issuance row from a snapshot.
func (b *Book) RestoreIssuance(asset AssetID, amount uint64) {
	b.issuance[asset] = amount
}
