package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"SerpEngine/internal/event"
	"SerpEngine/internal/ledger"
)

// GRPCIngestService provides admin/manual event injection via gRPC.
// Intended for operator intervention and backfills, not high-throughput
// ingestion (use NATS for that).
type GRPCIngestService struct {
	eventChan chan<- event.Event
}

func NewGRPCIngestService(eventChan chan<- event.Event) *GRPCIngestService {
	return &GRPCIngestService{eventChan: eventChan}
}

// InjectDeposit manually injects a TreasuryDeposit event.
func (s *GRPCIngestService) InjectDeposit(
	ctx context.Context,
	account ledger.Account,
	asset ledger.AssetID,
	amount uint64,
	toTreasury bool,
) error {
	if amount == 0 {
		return fmt.Errorf("amount must be positive")
	}
	if !ledger.IsKnown(asset) {
		return fmt.Errorf("unknown asset %d", asset)
	}

	evt := &event.TreasuryDeposit{
		DepositID:  uuid.New(),
		Asset:      asset,
		Account:    account,
		Amount:     amount,
		ToTreasury: toTreasury,
		Sequence:   time.Now().UnixMicro(), // Admin-injected: use timestamp as sequence
		Timestamp:  time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectPrice manually injects a PriceUpdate event.
func (s *GRPCIngestService) InjectPrice(
	ctx context.Context,
	asset ledger.AssetID,
	quote int64,
	priceSequence int64,
) error {
	if quote <= 0 {
		return fmt.Errorf("quote must be positive")
	}

	evt := &event.PriceUpdate{
		UpdateID:  uuid.New(),
		Asset:     asset,
		Quote:     quote,
		Sequence:  priceSequence,
		Timestamp: time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectCloseAuction manually injects an AdminCloseAuction event.
func (s *GRPCIngestService) InjectCloseAuction(
	ctx context.Context,
	auctionID uint64,
) error {
	evt := &event.AdminCloseAuction{
		RequestID: uuid.New(),
		AuctionID: auctionID,
		Sequence:  time.Now().UnixMicro(),
		Timestamp: time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectLotSizeUpdate manually injects an AuctionSizeUpdate event.
func (s *GRPCIngestService) InjectLotSizeUpdate(
	ctx context.Context,
	maxLot uint64,
) error {
	evt := &event.AuctionSizeUpdate{
		RequestID: uuid.New(),
		MaxLot:    maxLot,
		Sequence:  time.Now().UnixMicro(),
		Timestamp: time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectTreasurySwap manually injects a TreasurySwap event.
func (s *GRPCIngestService) InjectTreasurySwap(
	ctx context.Context,
	supply, minTarget uint64,
) error {
	if supply == 0 {
		return fmt.Errorf("supply must be positive")
	}

	evt := &event.TreasurySwap{
		RequestID: uuid.New(),
		Supply:    supply,
		MinTarget: minTarget,
		Sequence:  time.Now().UnixMicro(),
		Timestamp: time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
