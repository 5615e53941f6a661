package auction

import (
	"fmt"

	"github.com/rs/zerolog"

	"SerpEngine/internal/ledger"
)

// EscrowLedger is the subset of the book the auction engine needs: balance
// movement plus the per-auction bidder hold records.
type EscrowLedger interface {
	ledger.Ledger
	AddHold(auctionID uint64, who ledger.Account)
	SwapHold(auctionID uint64, who ledger.Account)
	RemoveHold(auctionID uint64)
	HoldFor(auctionID uint64) (ledger.Hold, bool)
}

// Outcome describes how an auction ended.
type Outcome struct {
	ID     uint64
	Kind   Kind
	Dealt  bool
	Winner ledger.Account
	Price  uint64
	Amount uint64
}

// Engine applies auction operations against the registry and the ledger
// book. Every operation is atomic: it completes all its ledger and counter
// mutations or performs none of them. Escrowed payments live in the treasury
// account; a hold on the book tracks which bidder they belong to.
type Engine struct {
	cfg  Config
	reg  *Registry
	book EscrowLedger
	log  zerolog.Logger
}

func NewEngine(cfg Config, reg *Registry, book EscrowLedger, log zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, reg: reg, book: book, log: log.With().Str("component", "auction").Logger()}
}

// Registry exposes the engine's registry for counter reads.
func (e *Engine) Registry() *Registry { return e.reg }

// NewReserveAuction opens an auction selling amount of reserve asset for a
// target quantity of the given stable payment asset. The reserve amount must
// already sit in the treasury account; refundReceiver takes it back if the
// auction closes with no bid.
func (e *Engine) NewReserveAuction(now uint64, refundReceiver ledger.Account, payment ledger.AssetID, amount, target uint64) (uint64, error) {
	if amount == 0 || target == 0 {
		return 0, fmt.Errorf("reserve auction amount=%d target=%d: %w", amount, target, ErrInvalidAmount)
	}
	if !ledger.IsStable(payment) {
		return 0, fmt.Errorf("reserve auction payment %s: %w", ledger.AssetName(payment), ErrInvalidAmount)
	}
	if err := e.reg.creditReserve(amount, target, payment); err != nil {
		return 0, err
	}
	id := e.reg.insert(&Auction{
		Kind:           KindReserve,
		Amount:         amount,
		Target:         target,
		SoldAsset:      ledger.SETT,
		PaymentAsset:   payment,
		RefundReceiver: refundReceiver,
		StartStep:      now,
	})
	e.log.Info().Uint64("auction_id", id).Uint64("amount", amount).
		Uint64("target", target).Str("payment", ledger.AssetName(payment)).
		Msg("reserve auction opened")
	return id, nil
}

// NewDilutionAuction opens an auction selling amount of freshly minted
// native token for at least initialPrice of reserve asset. Nothing is minted
// until the auction deals.
func (e *Engine) NewDilutionAuction(now uint64, initialPrice, amount uint64) (uint64, error) {
	if amount == 0 || initialPrice == 0 {
		return 0, fmt.Errorf("dilution auction price=%d amount=%d: %w", initialPrice, amount, ErrInvalidAmount)
	}
	if err := e.reg.creditDilution(amount); err != nil {
		return 0, err
	}
	id := e.reg.insert(&Auction{
		Kind:         KindDilution,
		Amount:       amount,
		Target:       initialPrice,
		SoldAsset:    ledger.DNAR,
		PaymentAsset: ledger.SETT,
		StartStep:    now,
	})
	e.log.Info().Uint64("auction_id", id).Uint64("amount", amount).
		Uint64("target", initialPrice).Msg("dilution auction opened")
	return id, nil
}

// NewSurplusAuction opens an auction selling amount of treasury stable
// surplus for native-token bids; the winning payment is burned on
// settlement. Surplus auctions have no first-bid floor and no deadline until
// a bid arrives.
func (e *Engine) NewSurplusAuction(now uint64, amount uint64, surplusAsset ledger.AssetID) (uint64, error) {
	if amount == 0 {
		return 0, fmt.Errorf("surplus auction amount=0: %w", ErrInvalidAmount)
	}
	if !ledger.IsStable(surplusAsset) {
		return 0, fmt.Errorf("surplus auction asset %s: %w", ledger.AssetName(surplusAsset), ErrInvalidAmount)
	}
	if err := e.reg.creditSurplus(surplusAsset, amount); err != nil {
		return 0, err
	}
	id := e.reg.insert(&Auction{
		Kind:         KindSurplus,
		Amount:       amount,
		SoldAsset:    surplusAsset,
		PaymentAsset: ledger.DNAR,
		StartStep:    now,
	})
	e.log.Info().Uint64("auction_id", id).Uint64("amount", amount).
		Str("asset", ledger.AssetName(surplusAsset)).Msg("surplus auction opened")
	return id, nil
}

// PlaceBid evaluates and, if acceptable, applies a bid: the new bidder's
// payment moves into treasury escrow, the outbid bidder is refunded in full,
// and the deadline follows the soft-cap rule. Rejected bids change nothing
// and surface the failure to the caller.
func (e *Engine) PlaceBid(now, id uint64, bidder ledger.Account, price uint64) error {
	a, err := e.reg.Get(id)
	if err != nil {
		return err
	}
	bid := Bid{Bidder: bidder, Price: price}
	decision, err := OnNewBid(e.cfg, now, a, bid, a.Bid)
	if err != nil {
		return fmt.Errorf("bid %d on auction %d at step %d: %w", price, id, now, err)
	}

	// Escrow the new payment first: this is the only fallible mutation, so
	// failure here leaves the operation without effect.
	if err := e.book.Transfer(a.PaymentAsset, bidder, ledger.TreasuryAccount, price); err != nil {
		return fmt.Errorf("escrow bid %d on auction %d: %w", price, id, err)
	}
	if prev := a.Bid; prev != nil {
		// Refund the outbid bidder in full. The escrow sits in the
		// treasury account; a refund can only fail if pool accounting has
		// diverged from the ledger, which is fatal.
		if err := e.book.Transfer(a.PaymentAsset, ledger.TreasuryAccount, prev.Bidder, prev.Price); err != nil {
			panic(fmt.Sprintf("auction %d: refund of outbid escrow failed: %v", id, err))
		}
		e.book.SwapHold(id, bidder)
	} else {
		e.book.AddHold(id, bidder)
	}
	a.Bid = &bid
	a.EndStep = decision.NewEndStep

	e.log.Debug().Uint64("auction_id", id).Uint64("price", price).
		Uint64("end_step", a.EndStep).Str("bidder", bidder.Path()).
		Msg("bid accepted")
	return nil
}

// OnAuctionEnded settles auction id at the current step: the winner, if any,
// receives the sold amount (reserve released for reserve auctions, minted
// for dilution and surplus); with no bid, reserved underlying returns to its
// origin. The registry record is removed either way. Ledger failures during
// settlement mean pool accounting diverged from balances and abort the
// process.
func (e *Engine) OnAuctionEnded(id uint64) (Outcome, error) {
	a, err := e.reg.Get(id)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{ID: a.ID, Kind: a.Kind, Amount: a.Amount}
	if a.Bid != nil {
		out.Dealt = true
		out.Winner = a.Bid.Bidder
		out.Price = a.Bid.Price
		e.settle(a)
		e.book.RemoveHold(a.ID)
	} else if a.Kind == KindReserve {
		// Nothing sold: the reserved amount goes back where it came from.
		if err := e.book.Transfer(ledger.SETT, ledger.TreasuryAccount, a.RefundReceiver, a.Amount); err != nil {
			panic(fmt.Sprintf("auction %d: release of reserved amount failed: %v", a.ID, err))
		}
	}
	e.reg.remove(a)
	e.log.Info().Uint64("auction_id", out.ID).Str("kind", out.Kind.String()).
		Bool("dealt", out.Dealt).Uint64("price", out.Price).
		Msg("auction ended")
	return out, nil
}

func (e *Engine) settle(a *Auction) {
	var err error
	switch a.Kind {
	case KindReserve:
		// Payment is already in the surplus pool; release the reserve.
		err = e.book.Transfer(ledger.SETT, ledger.TreasuryAccount, a.Bid.Bidder, a.Amount)
	case KindDilution:
		// Payment stays in the reserve pool; mint the native amount.
		err = e.book.Deposit(ledger.DNAR, a.Bid.Bidder, a.Amount)
	case KindSurplus:
		// Hand over the surplus and burn the escrowed native payment.
		if err = e.book.Transfer(a.SoldAsset, ledger.TreasuryAccount, a.Bid.Bidder, a.Amount); err == nil {
			err = e.book.Withdraw(ledger.DNAR, ledger.TreasuryAccount, a.Bid.Price)
		}
	}
	if err != nil {
		panic(fmt.Sprintf("auction %d (%s): settlement failed: %v", a.ID, a.Kind, err))
	}
}

// CloseDue settles every auction whose deadline has arrived, in id order.
// The end-of-step sweep calls this before the stabilization pass.
func (e *Engine) CloseDue(now uint64) []Outcome {
	var outcomes []Outcome
	for _, id := range e.reg.SortedIDs() {
		a := e.reg.auctions[id]
		if a.EndStep == 0 || a.EndStep > now {
			continue
		}
		out, err := e.OnAuctionEnded(id)
		if err != nil {
			panic(fmt.Sprintf("close sweep: auction %d vanished: %v", id, err))
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}
