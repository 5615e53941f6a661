package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"SerpEngine/internal/event"
	"SerpEngine/internal/ledger"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The ingestion shell validates, parses, and converts
// raw events before sending to the deterministic core.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "ReserveAuctionRequest":
		return parseReserveAuctionRequest(raw.Data)
	case "DilutionAuctionRequest":
		return parseDilutionAuctionRequest(raw.Data)
	case "SurplusAuctionRequest":
		return parseSurplusAuctionRequest(raw.Data)
	case "AuctionBid":
		return parseAuctionBid(raw.Data)
	case "AdminCloseAuction":
		return parseAdminCloseAuction(raw.Data)
	case "AuctionSizeUpdate":
		return parseAuctionSizeUpdate(raw.Data)
	case "PriceUpdate":
		return parsePriceUpdate(raw.Data)
	case "StepTick":
		return parseStepTick(raw.Data)
	case "TreasuryDeposit":
		return parseTreasuryDeposit(raw.Data)
	case "TreasurySwap":
		return parseTreasurySwap(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers. Assets travel as
// symbols ("SETTUSD"), accounts as paths ("user:<uuid>", "system:treasury").

type reserveAuctionJSON struct {
	RequestID      string `json:"request_id"`
	RefundReceiver string `json:"refund_receiver"`
	PaymentAsset   string `json:"payment_asset"`
	Amount         uint64 `json:"amount"`
	Target         uint64 `json:"target"`
	Split          bool   `json:"split"`
	Sequence       int64  `json:"sequence"`
	TimestampUs    int64  `json:"timestamp_us"`
}

func parseReserveAuctionRequest(data []byte) (*event.ReserveAuctionRequest, error) {
	var j reserveAuctionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ReserveAuctionRequest: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	receiver, err := ledger.ParseAccountPath(j.RefundReceiver)
	if err != nil {
		return nil, fmt.Errorf("parse refund_receiver: %w", err)
	}
	payment, ok := ledger.ParseAsset(j.PaymentAsset)
	if !ok {
		return nil, fmt.Errorf("parse payment_asset: unknown symbol %q", j.PaymentAsset)
	}
	return &event.ReserveAuctionRequest{
		RequestID:      requestID,
		RefundReceiver: receiver,
		PaymentAsset:   payment,
		Amount:         j.Amount,
		Target:         j.Target,
		Split:          j.Split,
		Sequence:       j.Sequence,
		Timestamp:      time.UnixMicro(j.TimestampUs),
	}, nil
}

type dilutionAuctionJSON struct {
	RequestID    string `json:"request_id"`
	InitialPrice uint64 `json:"initial_price"`
	Amount       uint64 `json:"amount"`
	Sequence     int64  `json:"sequence"`
	TimestampUs  int64  `json:"timestamp_us"`
}

func parseDilutionAuctionRequest(data []byte) (*event.DilutionAuctionRequest, error) {
	var j dilutionAuctionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DilutionAuctionRequest: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	return &event.DilutionAuctionRequest{
		RequestID:    requestID,
		InitialPrice: j.InitialPrice,
		Amount:       j.Amount,
		Sequence:     j.Sequence,
		Timestamp:    time.UnixMicro(j.TimestampUs),
	}, nil
}

type surplusAuctionJSON struct {
	RequestID    string `json:"request_id"`
	SurplusAsset string `json:"surplus_asset"`
	Amount       uint64 `json:"amount"`
	Sequence     int64  `json:"sequence"`
	TimestampUs  int64  `json:"timestamp_us"`
}

func parseSurplusAuctionRequest(data []byte) (*event.SurplusAuctionRequest, error) {
	var j surplusAuctionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SurplusAuctionRequest: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	asset, ok := ledger.ParseAsset(j.SurplusAsset)
	if !ok {
		return nil, fmt.Errorf("parse surplus_asset: unknown symbol %q", j.SurplusAsset)
	}
	return &event.SurplusAuctionRequest{
		RequestID:    requestID,
		SurplusAsset: asset,
		Amount:       j.Amount,
		Sequence:     j.Sequence,
		Timestamp:    time.UnixMicro(j.TimestampUs),
	}, nil
}

type auctionBidJSON struct {
	BidID       string `json:"bid_id"`
	AuctionID   uint64 `json:"auction_id"`
	Bidder      string `json:"bidder"`
	Price       uint64 `json:"price"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseAuctionBid(data []byte) (*event.AuctionBid, error) {
	var j auctionBidJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AuctionBid: %w", err)
	}
	bidID, err := uuid.Parse(j.BidID)
	if err != nil {
		return nil, fmt.Errorf("parse bid_id: %w", err)
	}
	bidder, err := uuid.Parse(j.Bidder)
	if err != nil {
		return nil, fmt.Errorf("parse bidder: %w", err)
	}
	return &event.AuctionBid{
		BidID:     bidID,
		AuctionID: j.AuctionID,
		Bidder:    bidder,
		Price:     j.Price,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type adminCloseJSON struct {
	RequestID   string `json:"request_id"`
	AuctionID   uint64 `json:"auction_id"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseAdminCloseAuction(data []byte) (*event.AdminCloseAuction, error) {
	var j adminCloseJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AdminCloseAuction: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	return &event.AdminCloseAuction{
		RequestID: requestID,
		AuctionID: j.AuctionID,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type auctionSizeJSON struct {
	RequestID   string `json:"request_id"`
	MaxLot      uint64 `json:"max_lot"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseAuctionSizeUpdate(data []byte) (*event.AuctionSizeUpdate, error) {
	var j auctionSizeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AuctionSizeUpdate: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	return &event.AuctionSizeUpdate{
		RequestID: requestID,
		MaxLot:    j.MaxLot,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type priceUpdateJSON struct {
	UpdateID    string `json:"update_id"`
	Asset       string `json:"asset"`
	Quote       int64  `json:"quote"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parsePriceUpdate(data []byte) (*event.PriceUpdate, error) {
	var j priceUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PriceUpdate: %w", err)
	}
	updateID, err := uuid.Parse(j.UpdateID)
	if err != nil {
		return nil, fmt.Errorf("parse update_id: %w", err)
	}
	asset, ok := ledger.ParseAsset(j.Asset)
	if !ok {
		return nil, fmt.Errorf("parse asset: unknown symbol %q", j.Asset)
	}
	return &event.PriceUpdate{
		UpdateID:  updateID,
		Asset:     asset,
		Quote:     j.Quote,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type stepTickJSON struct {
	Step        uint64 `json:"step"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseStepTick(data []byte) (*event.StepTick, error) {
	var j stepTickJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse StepTick: %w", err)
	}
	return &event.StepTick{
		Step:      j.Step,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type treasuryDepositJSON struct {
	DepositID   string `json:"deposit_id"`
	Asset       string `json:"asset"`
	Account     string `json:"account"`
	Amount      uint64 `json:"amount"`
	ToTreasury  bool   `json:"to_treasury"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseTreasuryDeposit(data []byte) (*event.TreasuryDeposit, error) {
	var j treasuryDepositJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TreasuryDeposit: %w", err)
	}
	depositID, err := uuid.Parse(j.DepositID)
	if err != nil {
		return nil, fmt.Errorf("parse deposit_id: %w", err)
	}
	asset, ok := ledger.ParseAsset(j.Asset)
	if !ok {
		return nil, fmt.Errorf("parse asset: unknown symbol %q", j.Asset)
	}
	account, err := ledger.ParseAccountPath(j.Account)
	if err != nil {
		return nil, fmt.Errorf("parse account: %w", err)
	}
	return &event.TreasuryDeposit{
		DepositID:  depositID,
		Asset:      asset,
		Account:    account,
		Amount:     j.Amount,
		ToTreasury: j.ToTreasury,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type treasurySwapJSON struct {
	RequestID   string `json:"request_id"`
	Supply      uint64 `json:"supply"`
	MinTarget   uint64 `json:"min_target"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseTreasurySwap(data []byte) (*event.TreasurySwap, error) {
	var j treasurySwapJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TreasurySwap: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	return &event.TreasurySwap{
		RequestID: requestID,
		Supply:    j.Supply,
		MinTarget: j.MinTarget,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}
