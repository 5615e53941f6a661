package event

import (
	"encoding/json"
	"fmt"
)

// Encode serializes an event payload for the log and the wire.
func Encode(evt Event) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", evt.EventType(), err)
	}
	return data, nil
}

// Decode rebuilds a typed event from a logged or received payload.
func Decode(eventType EventType, payload []byte) (Event, error) {
	var evt Event
	switch eventType {
	case EventTypeReserveAuctionRequest:
		evt = &ReserveAuctionRequest{}
	case EventTypeDilutionAuctionRequest:
		evt = &DilutionAuctionRequest{}
	case EventTypeSurplusAuctionRequest:
		evt = &SurplusAuctionRequest{}
	case EventTypeAuctionBid:
		evt = &AuctionBid{}
	case EventTypeAdminCloseAuction:
		evt = &AdminCloseAuction{}
	case EventTypeAuctionSizeUpdate:
		evt = &AuctionSizeUpdate{}
	case EventTypePriceUpdate:
		evt = &PriceUpdate{}
	case EventTypeStepTick:
		evt = &StepTick{}
	case EventTypeTreasuryDeposit:
		evt = &TreasuryDeposit{}
	case EventTypeTreasurySwap:
		evt = &TreasurySwap{}
	default:
		return nil, fmt.Errorf("decode: unknown event type %d", eventType)
	}
	if err := json.Unmarshal(payload, evt); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return evt, nil
}
