package ingestion_test

import (
	"encoding/json"
	"testing"
	"time"

	"SerpEngine/internal/event"
	"SerpEngine/internal/ingestion"
	"SerpEngine/internal/ledger"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseReserveAuctionRequest(t *testing.T) {
	payload := map[string]interface{}{
		"request_id":      "550e8400-e29b-41d4-a716-446655440000",
		"refund_receiver": "user:660e8400-e29b-41d4-a716-446655440001",
		"payment_asset":   "SETTUSD",
		"amount":          uint64(1_000),
		"target":          uint64(500),
		"split":           true,
		"sequence":        int64(42),
		"timestamp_us":    int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "ReserveAuctionRequest")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	req, ok := evt.(*event.ReserveAuctionRequest)
	if !ok {
		t.Fatalf("expected *event.ReserveAuctionRequest, got %T", evt)
	}

	if req.PaymentAsset != ledger.SETTUSD {
		t.Errorf("payment_asset: got %d, want SETTUSD", req.PaymentAsset)
	}
	if req.RefundReceiver.Path() != "user:660e8400-e29b-41d4-a716-446655440001" {
		t.Errorf("refund_receiver: got %s", req.RefundReceiver.Path())
	}
	if req.Amount != 1_000 || req.Target != 500 {
		t.Errorf("amount/target: got %d/%d, want 1000/500", req.Amount, req.Target)
	}
	if !req.Split {
		t.Error("split: got false, want true")
	}
	if req.Sequence != 42 {
		t.Errorf("sequence: got %d, want 42", req.Sequence)
	}
	if req.EventType() != event.EventTypeReserveAuctionRequest {
		t.Errorf("event type: got %v, want ReserveAuctionRequest", req.EventType())
	}
}

func TestParseAuctionBid(t *testing.T) {
	payload := map[string]interface{}{
		"bid_id":       "550e8400-e29b-41d4-a716-446655440000",
		"auction_id":   uint64(7),
		"bidder":       "660e8400-e29b-41d4-a716-446655440001",
		"price":        uint64(2_500),
		"sequence":     int64(9),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "AuctionBid")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	bid, ok := evt.(*event.AuctionBid)
	if !ok {
		t.Fatalf("expected *event.AuctionBid, got %T", evt)
	}

	if bid.AuctionID != 7 {
		t.Errorf("auction_id: got %d, want 7", bid.AuctionID)
	}
	if bid.Price != 2_500 {
		t.Errorf("price: got %d, want 2_500", bid.Price)
	}
	if *bid.Partition() != "auctions" {
		t.Errorf("partition: got %s, want auctions", *bid.Partition())
	}
}

func TestParsePriceUpdate(t *testing.T) {
	payload := map[string]interface{}{
		"update_id":    "550e8400-e29b-41d4-a716-446655440000",
		"asset":        "SETTEUR",
		"quote":        int64(1_050_000),
		"sequence":     int64(100),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "PriceUpdate")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pu, ok := evt.(*event.PriceUpdate)
	if !ok {
		t.Fatalf("expected *event.PriceUpdate, got %T", evt)
	}

	if pu.Asset != ledger.SETTEUR {
		t.Errorf("asset: got %d, want SETTEUR", pu.Asset)
	}
	if pu.Quote != 1_050_000 {
		t.Errorf("quote: got %d, want 1_050_000", pu.Quote)
	}
	if *pu.Partition() != "prices:SETTEUR" {
		t.Errorf("partition: got %s, want prices:SETTEUR", *pu.Partition())
	}
}

func TestParseStepTick(t *testing.T) {
	payload := map[string]interface{}{
		"step":         uint64(1_024),
		"sequence":     int64(1_024),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "StepTick")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	st, ok := evt.(*event.StepTick)
	if !ok {
		t.Fatalf("expected *event.StepTick, got %T", evt)
	}

	if st.Step != 1_024 {
		t.Errorf("step: got %d, want 1_024", st.Step)
	}
	if st.IdempotencyKey() != "step-1024" {
		t.Errorf("idempotency key: got %s, want step-1024", st.IdempotencyKey())
	}
}

func TestParseTreasuryDeposit(t *testing.T) {
	payload := map[string]interface{}{
		"deposit_id":   "550e8400-e29b-41d4-a716-446655440000",
		"asset":        "SETT",
		"account":      "system:treasury",
		"amount":       uint64(50_000),
		"to_treasury":  true,
		"sequence":     int64(3),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "TreasuryDeposit")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	dep, ok := evt.(*event.TreasuryDeposit)
	if !ok {
		t.Fatalf("expected *event.TreasuryDeposit, got %T", evt)
	}

	if dep.Asset != ledger.SETT {
		t.Errorf("asset: got %d, want SETT", dep.Asset)
	}
	if !dep.ToTreasury {
		t.Error("to_treasury: got false, want true")
	}
	if dep.Amount != 50_000 {
		t.Errorf("amount: got %d, want 50_000", dep.Amount)
	}
}

func TestParseUnknownAsset_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"update_id":    "550e8400-e29b-41d4-a716-446655440000",
		"asset":        "DOGE",
		"quote":        int64(1),
		"sequence":     int64(0),
		"timestamp_us": int64(0),
	}

	raw := rawFromJSON(t, payload)
	if _, err := ingestion.ParseRawEvent(raw, "PriceUpdate"); err == nil {
		t.Fatal("expected error for unknown asset symbol")
	}
}

func TestParseUnknownEventType_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{}`)}
	_, err := ingestion.ParseRawEvent(raw, "NonExistentType")
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{invalid json`)}
	_, err := ingestion.ParseRawEvent(raw, "AuctionBid")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"bid_id":       "not-a-uuid",
		"auction_id":   uint64(1),
		"bidder":       "also-not-a-uuid",
		"price":        uint64(1),
		"sequence":     int64(0),
		"timestamp_us": int64(0),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "AuctionBid")
	if err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}
