// Package treasury tracks the protocol-owned pools and connects them to the
// auction engine: stable surplus held by the treasury account, a scalar debt
// pool of unbacked issuance, and the reserve asset net of what open reserve
// auctions have locked. All mutation goes through checked arithmetic; the
// once-per-step surplus/debt offset is the only automatic mutation.
package treasury

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"SerpEngine/internal/auction"
	"SerpEngine/internal/fixedpoint"
	"SerpEngine/internal/ledger"
	"SerpEngine/internal/swap"
)

var (
	// ErrSurplusPoolNotEnough rejects surplus auctions exceeding the
	// unauctioned surplus.
	ErrSurplusPoolNotEnough = errors.New("surplus pool not enough")
	// ErrDebtPoolNotEnough rejects dilution auctions exceeding outstanding
	// debt.
	ErrDebtPoolNotEnough = errors.New("debt pool not enough")
	// ErrReserveNotEnough rejects operations exceeding the unauctioned
	// reserve.
	ErrReserveNotEnough = errors.New("reserve not enough")
	// ErrDebtPoolOverflow rejects debt records that would wrap the pool.
	ErrDebtPoolOverflow = errors.New("debt pool overflow")
)

// Config carries the treasury's policy knobs.
type Config struct {
	// PrimaryStable is the asset the debt offset burns.
	PrimaryStable ledger.AssetID
	// MaxReserveAuctionLot caps the size of a single reserve auction lot;
	// larger requests are split. Zero disables splitting.
	MaxReserveAuctionLot uint64
	// MaxLotCount bounds how many lots one request may produce.
	MaxLotCount uint32
	// SplitContraction decides whether serp-down reserve auctions are
	// lot-split like admin-requested ones are.
	SplitContraction bool
}

func DefaultConfig() Config {
	return Config{
		PrimaryStable:        ledger.SETTUSD,
		MaxReserveAuctionLot: 0,
		MaxLotCount:          100,
		SplitContraction:     false,
	}
}

// Treasury owns the pool counters. The surplus and reserve pools are views
// over the treasury account's balances; only the debt pool is a stored
// scalar. Single-writer, injected into the operations that need it rather
// than held as a process global.
type Treasury struct {
	cfg      Config
	book     ledger.Ledger
	auctions *auction.Engine
	dex      swap.Dex
	debtPool uint64
	log      zerolog.Logger
}

func New(cfg Config, book ledger.Ledger, auctions *auction.Engine, dex swap.Dex, log zerolog.Logger) *Treasury {
	return &Treasury{
		cfg:      cfg,
		book:     book,
		auctions: auctions,
		dex:      dex,
		log:      log.With().Str("component", "treasury").Logger(),
	}
}

// SurplusPool is the treasury's balance of a stable asset, including any
// amount currently offered by open surplus auctions.
func (t *Treasury) SurplusPool(asset ledger.AssetID) uint64 {
	return t.book.FreeBalance(asset, ledger.TreasuryAccount)
}

// spendableSurplus is the surplus the treasury may commit: the pool minus
// what open surplus auctions already offer and minus standing bid escrow,
// which stays refundable until its auction settles.
func (t *Treasury) spendableSurplus(asset ledger.AssetID) uint64 {
	available := t.SurplusPool(asset)
	for _, reserved := range []uint64{
		t.auctions.Registry().TotalSurplusInAuction(asset),
		t.auctions.Registry().TotalBidEscrow(asset),
	} {
		if reserved > available {
			return 0
		}
		available -= reserved
	}
	return available
}

// DebtPool is the outstanding unbacked issuance.
func (t *Treasury) DebtPool() uint64 { return t.debtPool }

// ReservePool is the treasury's reserve asset minus the amount locked in
// open reserve auctions and the refundable escrow of standing dilution
// bids.
func (t *Treasury) ReservePool() uint64 {
	held := t.book.FreeBalance(ledger.SETT, ledger.TreasuryAccount)
	locked := t.auctions.Registry().TotalReserveInAuction() +
		t.auctions.Registry().TotalBidEscrow(ledger.SETT)
	if locked > held {
		// Settlement decrements held and locked together, so locked can
		// never exceed held.
		panic(fmt.Sprintf("treasury: reserve locked %d exceeds held %d", locked, held))
	}
	return held - locked
}

// RecordSystemDebt adds unbacked issuance to the debt pool.
func (t *Treasury) RecordSystemDebt(amount uint64) error {
	total, ok := fixedpoint.CheckedAdd(t.debtPool, amount)
	if !ok {
		return fmt.Errorf("record debt %d on pool %d: %w", amount, t.debtPool, ErrDebtPoolOverflow)
	}
	t.debtPool = total
	return nil
}

// CoverDebt subtracts up to amount from the debt pool and returns the
// amount actually covered.
func (t *Treasury) CoverDebt(amount uint64) uint64 {
	if amount > t.debtPool {
		amount = t.debtPool
	}
	t.debtPool -= amount
	return amount
}

// RecordSystemSurplus mints backed stable currency straight into the
// surplus pool.
func (t *Treasury) RecordSystemSurplus(asset ledger.AssetID, amount uint64) error {
	return t.book.Deposit(asset, ledger.TreasuryAccount, amount)
}

// IssueStandard mints stable currency to who. Unbacked issue also records
// the amount as system debt, and rolls the mint back if the debt pool
// cannot take it.
func (t *Treasury) IssueStandard(asset ledger.AssetID, who ledger.Account, amount uint64, backed bool) error {
	if !backed {
		if err := t.RecordSystemDebt(amount); err != nil {
			return err
		}
	}
	if err := t.book.Deposit(asset, who, amount); err != nil {
		if !backed {
			t.debtPool -= amount
		}
		return err
	}
	return nil
}

// BurnStandard burns stable currency from who.
func (t *Treasury) BurnStandard(asset ledger.AssetID, who ledger.Account, amount uint64) error {
	return t.book.Withdraw(asset, who, amount)
}

// DepositReserve moves reserve asset from an external account into the
// treasury.
func (t *Treasury) DepositReserve(from ledger.Account, amount uint64) error {
	return t.book.Transfer(ledger.SETT, from, ledger.TreasuryAccount, amount)
}

// WithdrawReserve moves unauctioned reserve asset out of the treasury.
func (t *Treasury) WithdrawReserve(to ledger.Account, amount uint64) error {
	if amount > t.ReservePool() {
		return fmt.Errorf("withdraw %d of reserve pool %d: %w", amount, t.ReservePool(), ErrReserveNotEnough)
	}
	return t.book.Transfer(ledger.SETT, ledger.TreasuryAccount, to, amount)
}

// SplitContraction reports whether serp-down reserve auctions are lot-split
// like admin-requested ones.
func (t *Treasury) SplitContraction() bool { return t.cfg.SplitContraction }

// MaxReserveAuctionLot returns the current lot-size cap for reserve
// auctions.
func (t *Treasury) MaxReserveAuctionLot() uint64 { return t.cfg.MaxReserveAuctionLot }

// SetMaxReserveAuctionLot updates the lot-size cap for reserve auctions.
func (t *Treasury) SetMaxReserveAuctionLot(size uint64) {
	t.cfg.MaxReserveAuctionLot = size
	t.log.Info().Uint64("max_lot", size).Msg("reserve auction lot cap updated")
}

// AuctionSurplus opens a surplus auction, bounded by the surplus not
// already offered in open auctions.
func (t *Treasury) AuctionSurplus(now uint64, asset ledger.AssetID, amount uint64) (uint64, error) {
	available := t.spendableSurplus(asset)
	if amount > available {
		return 0, fmt.Errorf("auction %d of available surplus %d: %w", amount, available, ErrSurplusPoolNotEnough)
	}
	return t.auctions.NewSurplusAuction(now, amount, asset)
}

// AuctionDilution opens a dilution auction raising initialPrice of reserve
// asset against the debt pool.
func (t *Treasury) AuctionDilution(now uint64, initialPrice, amount uint64) (uint64, error) {
	if initialPrice > t.debtPool {
		return 0, fmt.Errorf("auction against debt %d with target %d: %w", t.debtPool, initialPrice, ErrDebtPoolNotEnough)
	}
	return t.auctions.NewDilutionAuction(now, initialPrice, amount)
}

// AuctionReserve opens one or more reserve auctions selling amount of
// reserve asset for target of payment, lot-split when the amount exceeds
// the configured cap. Returns the opened auction ids.
func (t *Treasury) AuctionReserve(now uint64, refundReceiver ledger.Account, payment ledger.AssetID, amount, target uint64, split bool) ([]uint64, error) {
	if amount == 0 || target == 0 {
		return nil, fmt.Errorf("reserve auction amount=%d target=%d: %w", amount, target, auction.ErrInvalidAmount)
	}
	if !ledger.IsStable(payment) {
		return nil, fmt.Errorf("reserve auction payment %s: %w", ledger.AssetName(payment), auction.ErrInvalidAmount)
	}
	if amount > t.ReservePool() {
		return nil, fmt.Errorf("auction %d of reserve pool %d: %w", amount, t.ReservePool(), ErrReserveNotEnough)
	}
	lots := auction.CreateLots(amount, target, t.cfg.MaxReserveAuctionLot, t.cfg.MaxLotCount, split)
	ids := make([]uint64, 0, len(lots))
	for _, lot := range lots {
		id, err := t.auctions.NewReserveAuction(now, refundReceiver, payment, lot.Amount, lot.Target)
		if err != nil {
			// Lots are validated up front: the splitter keeps every
			// amount and target positive and the pool covered the total.
			// A failure here would strand earlier lots.
			panic(fmt.Sprintf("treasury: lot %+v rejected after pre-check: %v", lot, err))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// OffsetSurplusAndDebt burns min(debt, spendable primary surplus) from
// the treasury and shrinks the debt pool by the same amount. Surplus
// offered by open auctions and standing bid escrow are not spendable.
// Runs once per step after the close sweep. A ledger burn failure means
// pool accounting diverged from balances and aborts the process.
func (t *Treasury) OffsetSurplusAndDebt() uint64 {
	available := t.spendableSurplus(t.cfg.PrimaryStable)
	amount := t.debtPool
	if available < amount {
		amount = available
	}
	if amount == 0 {
		return 0
	}
	if err := t.book.Withdraw(t.cfg.PrimaryStable, ledger.TreasuryAccount, amount); err != nil {
		panic(fmt.Sprintf("treasury: offset burn of %d failed: %v", amount, err))
	}
	t.debtPool -= amount
	t.log.Info().Uint64("amount", amount).Uint64("debt_pool", t.debtPool).
		Msg("surplus offset against debt")
	return amount
}

// SwapReserveToStable converts unauctioned reserve asset into the primary
// stable through the swap service, settling both legs against the dex
// account.
func (t *Treasury) SwapReserveToStable(supplyAmount, minTarget uint64) (uint64, error) {
	if supplyAmount > t.ReservePool() {
		return 0, fmt.Errorf("swap %d of reserve pool %d: %w", supplyAmount, t.ReservePool(), ErrReserveNotEnough)
	}
	out, err := t.dex.SwapExactSupply(ledger.SETT, t.cfg.PrimaryStable, supplyAmount, minTarget)
	if err != nil {
		return 0, fmt.Errorf("swap reserve to stable: %w", err)
	}
	// The pool already moved; the book legs mirror it and cannot fail
	// unless balances diverged from the pool reserves.
	if err := t.book.Transfer(ledger.SETT, ledger.TreasuryAccount, ledger.DexAccount, supplyAmount); err != nil {
		panic(fmt.Sprintf("treasury: swap supply leg failed: %v", err))
	}
	if err := t.book.Transfer(t.cfg.PrimaryStable, ledger.DexAccount, ledger.TreasuryAccount, out); err != nil {
		panic(fmt.Sprintf("treasury: swap target leg failed: %v", err))
	}
	t.log.Info().Uint64("supply", supplyAmount).Uint64("received", out).
		Msg("reserve swapped to stable")
	return out, nil
}

// RestoreDebtPool installs the debt pool from a snapshot.
func (t *Treasury) RestoreDebtPool(amount uint64) { t.debtPool = amount }
