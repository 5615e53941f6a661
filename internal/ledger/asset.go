package ledger

// AssetID identifies a currency tracked by the book. IDs are wire-stable:
// they appear in events, snapshots and the state hash, so the table below
// is append-only.
type AssetID uint16

const (
	AssetUnknown AssetID = 0
	// DNAR is the native asset. It is minted by dilution auctions and
	// burned when surplus auctions settle.
	DNAR AssetID = 1
	// SETT is the reserve anchor backing the pegged set.
	SETT AssetID = 2
	SETTUSD AssetID = 3
	SETTGBP AssetID = 4
	SETTEUR AssetID = 5
	SETTKWD AssetID = 6
	SETTCHF AssetID = 7
)

var assetNames = map[AssetID]string{
	DNAR:    "DNAR",
	SETT:    "SETT",
	SETTUSD: "SETTUSD",
	SETTGBP: "SETTGBP",
	SETTEUR: "SETTEUR",
	SETTKWD: "SETTKWD",
	SETTCHF: "SETTCHF",
}

var assetIDs = map[string]AssetID{
	"DNAR":    DNAR,
	"SETT":    SETT,
	"SETTUSD": SETTUSD,
	"SETTGBP": SETTGBP,
	"SETTEUR": SETTEUR,
	"SETTKWD": SETTKWD,
	"SETTCHF": SETTCHF,
}

// StableAssets is the pegged set in canonical order. Iteration order matters
// for the state hash and the stabilization sweep, so callers range over this
// slice rather than a map.
var StableAssets = []AssetID{SETTUSD, SETTGBP, SETTEUR, SETTKWD, SETTCHF}

// AllAssets lists every known asset in canonical order.
var AllAssets = []AssetID{DNAR, SETT, SETTUSD, SETTGBP, SETTEUR, SETTKWD, SETTCHF}

// AssetName returns the symbol for id, or "UNKNOWN".
func AssetName(id AssetID) string {
	if name, ok := assetNames[id]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseAsset resolves a symbol to its AssetID.
func ParseAsset(symbol string) (AssetID, bool) {
	id, ok := assetIDs[symbol]
	return id, ok
}

// IsStable reports whether id belongs to the pegged set.
func IsStable(id AssetID) bool {
	return id >= SETTUSD && id <= SETTCHF
}

// IsKnown reports whether id names a registered asset.
func IsKnown(id AssetID) bool {
	_, ok := assetNames[id]
	return ok
}
