package auction

import (
	"fmt"
	"sort"

	"SerpEngine/internal/fixedpoint"
	"SerpEngine/internal/ledger"
)

// Registry is the arena of live auctions keyed by a process-wide monotonic
// id. Deletion on close frees the slot logically; ids are never reused.
// It also owns the in-auction counters the treasury reads to size admin
// operations. Single-writer, like all engine state.
type Registry struct {
	nextID   uint64
	auctions map[uint64]*Auction

	totalReserveInAuction  uint64
	totalTargetInAuction   map[ledger.AssetID]uint64
	totalDilutionInAuction uint64
	totalSurplusInAuction  map[ledger.AssetID]uint64
}

func NewRegistry() *Registry {
	return &Registry{
		nextID:                1,
		auctions:              make(map[uint64]*Auction),
		totalTargetInAuction:  make(map[ledger.AssetID]uint64),
		totalSurplusInAuction: make(map[ledger.AssetID]uint64),
	}
}

// Get returns the live auction with the given id.
func (r *Registry) Get(id uint64) (*Auction, error) {
	a, ok := r.auctions[id]
	if !ok {
		return nil, fmt.Errorf("auction %d: %w", id, ErrAuctionNonExistent)
	}
	return a, nil
}

// Len returns the number of live auctions.
func (r *Registry) Len() int {
	return len(r.auctions)
}

// insert allocates the next id and stores a.
func (r *Registry) insert(a *Auction) uint64 {
	a.ID = r.nextID
	r.nextID++
	r.auctions[a.ID] = a
	return a.ID
}

// remove drops a settled auction and reverses the counter credit made at
// creation. The decrement matches the creation amount exactly, so counters
// cannot go negative.
func (r *Registry) remove(a *Auction) {
	switch a.Kind {
	case KindReserve:
		r.totalReserveInAuction -= a.Amount
		r.totalTargetInAuction[a.PaymentAsset] -= a.Target
	case KindDilution:
		r.totalDilutionInAuction -= a.Amount
	case KindSurplus:
		r.totalSurplusInAuction[a.SoldAsset] -= a.Amount
	}
	delete(r.auctions, a.ID)
}

func (r *Registry) creditReserve(amount, target uint64, payment ledger.AssetID) error {
	total, ok := fixedpoint.CheckedAdd(r.totalReserveInAuction, amount)
	if !ok {
		return fmt.Errorf("reserve-in-auction overflow: %w", ErrInvalidAmount)
	}
	targetTotal, ok := fixedpoint.CheckedAdd(r.totalTargetInAuction[payment], target)
	if !ok {
		return fmt.Errorf("target-in-auction overflow for %s: %w", ledger.AssetName(payment), ErrInvalidAmount)
	}
	r.totalReserveInAuction = total
	r.totalTargetInAuction[payment] = targetTotal
	return nil
}

func (r *Registry) creditDilution(amount uint64) error {
	total, ok := fixedpoint.CheckedAdd(r.totalDilutionInAuction, amount)
	if !ok {
		return fmt.Errorf("dilution-in-auction overflow: %w", ErrInvalidAmount)
	}
	r.totalDilutionInAuction = total
	return nil
}

func (r *Registry) creditSurplus(asset ledger.AssetID, amount uint64) error {
	total, ok := fixedpoint.CheckedAdd(r.totalSurplusInAuction[asset], amount)
	if !ok {
		return fmt.Errorf("surplus-in-auction overflow for %s: %w", ledger.AssetName(asset), ErrInvalidAmount)
	}
	r.totalSurplusInAuction[asset] = total
	return nil
}

// TotalReserveInAuction is the reserve asset locked in open reserve auctions.
func (r *Registry) TotalReserveInAuction() uint64 { return r.totalReserveInAuction }

// TotalTargetInAuction is the payment sought by open reserve auctions, per
// payment asset.
func (r *Registry) TotalTargetInAuction(asset ledger.AssetID) uint64 {
	return r.totalTargetInAuction[asset]
}

// TotalDilutionInAuction is the native amount offered by open dilution
// auctions.
func (r *Registry) TotalDilutionInAuction() uint64 { return r.totalDilutionInAuction }

// TotalSurplusInAuction is the stable surplus offered by open surplus
// auctions, per asset.
func (r *Registry) TotalSurplusInAuction(asset ledger.AssetID) uint64 {
	return r.totalSurplusInAuction[asset]
}

// TotalBidEscrow sums the standing bid payments held in the treasury
// account for the given payment asset. These amounts are refundable until
// their auctions settle, so no pool may spend them.
func (r *Registry) TotalBidEscrow(asset ledger.AssetID) uint64 {
	var total uint64
	for _, a := range r.auctions {
		if a.Bid != nil && a.PaymentAsset == asset {
			total += a.Bid.Price
		}
	}
	return total
}

// SortedIDs returns live auction ids in ascending order. The close sweep and
// the state hasher iterate in this order so replay is reproducible.
func (r *Registry) SortedIDs() []uint64 {
	ids := make([]uint64, 0, len(r.auctions))
	for id := range r.auctions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NextID exposes the id watermark for snapshots.
func (r *Registry) NextID() uint64 { return r.nextID }

// Restore reinstalls a snapshot record, advancing the id watermark and the
// counters as creation would have.
func (r *Registry) Restore(a *Auction) {
	if a.ID >= r.nextID {
		r.nextID = a.ID + 1
	}
	r.auctions[a.ID] = a
	switch a.Kind {
	case KindReserve:
		r.totalReserveInAuction += a.Amount
		r.totalTargetInAuction[a.PaymentAsset] += a.Target
	case KindDilution:
		r.totalDilutionInAuction += a.Amount
	case KindSurplus:
		r.totalSurplusInAuction[a.SoldAsset] += a.Amount
	}
}

// RestoreNextID forces the id watermark during snapshot restore, so ids
// allocated after a restart never collide with settled auctions.
func (r *Registry) RestoreNextID(next uint64) {
	if next > r.nextID {
		r.nextID = next
	}
}
