package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AccountScope separates bidder accounts from protocol-owned accounts.
type AccountScope uint8

const (
	ScopeUser AccountScope = iota
	ScopeSystem
)

// Account addresses a balance holder. It is comparable and safe to use as a
// map key. User accounts are keyed by UUID; system accounts by a well-known
// name so they survive restarts without a registry lookup.
type Account struct {
	Scope AccountScope
	ID    uuid.UUID
	Name  string
}

// UserAccount builds an account for an external bidder.
func UserAccount(id uuid.UUID) Account {
	return Account{Scope: ScopeUser, ID: id}
}

// SystemAccount builds a protocol-owned account. The treasury and the
// serp-up destinations are system accounts.
func SystemAccount(name string) Account {
	return Account{Scope: ScopeSystem, Name: name}
}

// Path renders a stable string form used in snapshots, projections and the
// state hash.
func (a Account) Path() string {
	if a.Scope == ScopeSystem {
		return "system:" + a.Name
	}
	return "user:" + a.ID.String()
}

// ParseAccountPath inverts Path. Snapshot restore uses it to rebuild map
// keys from persisted rows.
func ParseAccountPath(path string) (Account, error) {
	switch {
	case strings.HasPrefix(path, "system:"):
		return SystemAccount(strings.TrimPrefix(path, "system:")), nil
	case strings.HasPrefix(path, "user:"):
		id, err := uuid.Parse(strings.TrimPrefix(path, "user:"))
		if err != nil {
			return Account{}, fmt.Errorf("parse account %q: %w", path, err)
		}
		return UserAccount(id), nil
	default:
		return Account{}, fmt.Errorf("parse account %q: unknown scope", path)
	}
}

// Well-known system accounts.
var (
	// TreasuryAccount holds the surplus pool (stable balances), the
	// reserve pool (SETT balance) and auction escrow.
	TreasuryAccount = SystemAccount("treasury")
	// SettPayAccount receives the cashback share of serp-up deliveries.
	SettPayAccount = SystemAccount("settpay")
	// SIFAccount receives the investment-fund share of serp-up deliveries.
	SIFAccount = SystemAccount("sif")
	// CharityAccount receives the charity share of serp-up deliveries.
	CharityAccount = SystemAccount("charity")
	// ProtocolFundAccount receives the general treasury share of serp-up
	// deliveries, kept apart from the surplus pool.
	ProtocolFundAccount = SystemAccount("protocol-fund")
	// DexAccount mirrors the swap pools' side of treasury conversions.
	DexAccount = SystemAccount("dex")
)
