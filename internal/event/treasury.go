package event

import (
	"time"

	"github.com/google/uuid"

	"SerpEngine/internal/ledger"
)

// TreasuryDeposit credits an external account with funds already confirmed
// off-engine, or moves confirmed reserve asset into the treasury. It is how
// bidders and vaults come to hold balances on the book.
// Idempotency key: deposit_id (UUID from the custody subsystem).
type TreasuryDeposit struct {
	DepositID uuid.UUID // Idempotency key
	Asset     ledger.AssetID
	Account   ledger.Account
	Amount    uint64
	// ToTreasury routes the deposit into the treasury account (reserve
	// top-up) instead of the named account.
	ToTreasury bool
	Sequence   int64
	Timestamp  time.Time
}

func (d *TreasuryDeposit) IdempotencyKey() string {
	return d.DepositID.String()
}

func (d *TreasuryDeposit) EventType() EventType {
	return EventTypeTreasuryDeposit
}

func (d *TreasuryDeposit) Partition() *string {
	p := PartitionTreasury
	return &p
}

func (d *TreasuryDeposit) SourceSequence() int64 {
	return d.Sequence
}

// TreasurySwap converts unauctioned treasury reserve into primary stable
// through the swap service. An admin operation, used to realize surplus
// without waiting for a reserve auction.
type TreasurySwap struct {
	RequestID uuid.UUID // Idempotency key
	Supply    uint64
	MinTarget uint64
	Sequence  int64
	Timestamp time.Time
}

func (s *TreasurySwap) IdempotencyKey() string {
	return s.RequestID.String()
}

func (s *TreasurySwap) EventType() EventType {
	return EventTypeTreasurySwap
}

func (s *TreasurySwap) Partition() *string {
	p := PartitionAdmin
	return &p
}

func (s *TreasurySwap) SourceSequence() int64 {
	return s.Sequence
}
