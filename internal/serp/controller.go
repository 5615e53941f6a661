// Package serp implements the stabilization controller: a periodic loop
// that, per pegged asset, compares the market price against the peg and
// either expands supply (serp-up: mint and route to the configured
// destinations) or contracts it (serp-down: open a buy-back auction sized
// via relative prices). Evaluation order and arithmetic are deterministic
// so replay reproduces every decision.
package serp

import (
	"fmt"

	"github.com/rs/zerolog"

	"SerpEngine/internal/auction"
	"SerpEngine/internal/fixedpoint"
	"SerpEngine/internal/ledger"
	"SerpEngine/internal/price"
	"SerpEngine/internal/treasury"
)

// Destination is one serp-up routing target.
type Destination struct {
	Name    string
	Account ledger.Account
	// Ratio of the serp-up amount delivered here, scaled by
	// fixedpoint.PriceScale.
	Ratio int64
}

// Config drives the controller.
type Config struct {
	// AdjustmentFrequency is the step interval between evaluations.
	AdjustmentFrequency uint64
	// PeggedAssets are evaluated in exactly this order.
	PeggedAssets []ledger.AssetID
	Destinations []Destination
}

// DefaultConfig routes five equal 10% shares; ratios summing under 100%
// deliberately leave the residual unminted.
func DefaultConfig() Config {
	return Config{
		AdjustmentFrequency: 10,
		PeggedAssets: append([]ledger.AssetID{ledger.SETT},
			ledger.StableAssets...),
		Destinations: []Destination{
			{Name: "serplus", Account: ledger.TreasuryAccount, Ratio: 100_000},
			{Name: "settpay", Account: ledger.SettPayAccount, Ratio: 100_000},
			{Name: "treasury", Account: ledger.ProtocolFundAccount, Ratio: 100_000},
			{Name: "sif", Account: ledger.SIFAccount, Ratio: 100_000},
			{Name: "charity", Account: ledger.CharityAccount, Ratio: 100_000},
		},
	}
}

// Verdict tags what Evaluate decided for one asset.
type Verdict uint8

const (
	VerdictStable Verdict = iota + 1
	VerdictSerpedUp
	VerdictSerpedDown
	VerdictSkipped
)

func (v Verdict) String() string {
	switch v {
	case VerdictStable:
		return "stable"
	case VerdictSerpedUp:
		return "serped-up"
	case VerdictSerpedDown:
		return "serped-down"
	case VerdictSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Delivery is one serp-up mint to a destination.
type Delivery struct {
	Name    string
	Account ledger.Account
	Amount  uint64
}

// Result records the decision taken for one pegged asset in one evaluation.
type Result struct {
	Asset      ledger.AssetID
	Verdict    Verdict
	Deviation  int64 // |market - peg| / peg, fixedpoint-scaled
	SerpUp     uint64
	Deliveries []Delivery
	AuctionIDs []uint64
	Err        error
}

// Controller evaluates the pegged set against the oracle and issues
// supply-adjustment commands to the treasury and the auction engine.
type Controller struct {
	cfg      Config
	oracle   *price.Oracle
	treasury *treasury.Treasury
	auctions *auction.Engine
	book     ledger.Ledger
	log      zerolog.Logger
}

func NewController(cfg Config, oracle *price.Oracle, tr *treasury.Treasury, auctions *auction.Engine, book ledger.Ledger, log zerolog.Logger) *Controller {
	return &Controller{
		cfg:      cfg,
		oracle:   oracle,
		treasury: tr,
		auctions: auctions,
		book:     book,
		log:      log.With().Str("component", "serp").Logger(),
	}
}

// Due reports whether the controller runs at this step.
func (c *Controller) Due(step uint64) bool {
	return c.cfg.AdjustmentFrequency > 0 && step%c.cfg.AdjustmentFrequency == 0
}

// Evaluate runs one full pass over the configured pegged assets, in
// configured order. Assets without a recorded price are skipped; every
// other asset produces exactly one Result, so a replayed log yields the
// same sequence of decisions.
func (c *Controller) Evaluate(step uint64) []Result {
	results := make([]Result, 0, len(c.cfg.PeggedAssets))
	for _, asset := range c.cfg.PeggedAssets {
		res := c.evaluateAsset(step, asset)
		c.log.Info().Uint64("step", step).Str("asset", ledger.AssetName(asset)).
			Str("verdict", res.Verdict.String()).Int64("deviation", res.Deviation).
			Uint64("serp_up", res.SerpUp).Msg("stabilization verdict")
		results = append(results, res)
	}
	return results
}

func (c *Controller) evaluateAsset(step uint64, asset ledger.AssetID) Result {
	res := Result{Asset: asset}
	ratio, above, err := c.oracle.Deviation(asset)
	if err != nil {
		res.Verdict = VerdictSkipped
		res.Err = err
		return res
	}
	res.Deviation = ratio
	if ratio == 0 {
		res.Verdict = VerdictStable
		return res
	}
	// amount = total_issuance * |deviation| / peg, fixed-point truncated.
	adjustment, ok := fixedpoint.ApplyRatio(c.book.TotalIssuance(asset), ratio)
	if !ok {
		res.Verdict = VerdictSkipped
		res.Err = fmt.Errorf("adjustment for %s: %w", ledger.AssetName(asset), auction.ErrInvalidAmount)
		return res
	}
	if above {
		return c.serpUp(res, asset, adjustment)
	}
	return c.serpDown(res, step, asset, adjustment)
}

// serpUp mints the expansion amount and routes it by the configured ratios.
// Delivery amounts are validated as a whole before any mint, so the routing
// is all-or-nothing; a mint failing after validation means issuance
// accounting broke.
func (c *Controller) serpUp(res Result, asset ledger.AssetID, amount uint64) Result {
	if amount == 0 {
		res.Verdict = VerdictStable
		return res
	}
	deliveries := make([]Delivery, 0, len(c.cfg.Destinations))
	var total uint64
	for _, dest := range c.cfg.Destinations {
		share, ok := fixedpoint.ApplyRatio(amount, dest.Ratio)
		if !ok {
			res.Verdict = VerdictSkipped
			res.Err = fmt.Errorf("serp-up share for %s/%s: %w", ledger.AssetName(asset), dest.Name, auction.ErrInvalidAmount)
			return res
		}
		sum, ok := fixedpoint.CheckedAdd(total, share)
		if !ok {
			res.Verdict = VerdictSkipped
			res.Err = fmt.Errorf("serp-up total for %s: %w", ledger.AssetName(asset), auction.ErrInvalidAmount)
			return res
		}
		total = sum
		deliveries = append(deliveries, Delivery{Name: dest.Name, Account: dest.Account, Amount: share})
	}
	if _, ok := fixedpoint.CheckedAdd(c.book.TotalIssuance(asset), total); !ok {
		res.Verdict = VerdictSkipped
		res.Err = fmt.Errorf("serp-up of %d %s: %w", total, ledger.AssetName(asset), ledger.ErrIssuanceOverflow)
		return res
	}
	for _, d := range deliveries {
		if d.Amount == 0 {
			continue
		}
		if err := c.treasury.IssueStandard(asset, d.Account, d.Amount, true); err != nil {
			panic(fmt.Sprintf("serp: pre-validated mint of %d %s to %s failed: %v",
				d.Amount, ledger.AssetName(asset), d.Account.Path(), err))
		}
	}
	res.Verdict = VerdictSerpedUp
	res.SerpUp = amount
	res.Deliveries = deliveries
	return res
}

// serpDown sizes a buy-back auction in reserve-asset terms via relative
// prices. The reserve anchor contracts through a dilution auction (mint
// native to raise reserve); every other pegged asset contracts through a
// reserve auction paid in that asset.
func (c *Controller) serpDown(res Result, step uint64, asset ledger.AssetID, contraction uint64) Result {
	if contraction == 0 {
		res.Verdict = VerdictSkipped
		res.Err = fmt.Errorf("serp-down for %s: %w", ledger.AssetName(asset), auction.ErrInvalidAmount)
		return res
	}
	res.Verdict = VerdictSerpedDown
	if asset == ledger.SETT {
		// Native amount equivalent to the reserve shortfall.
		rel, err := c.oracle.Relative(ledger.SETT, ledger.DNAR)
		if err != nil {
			res.Verdict = VerdictSkipped
			res.Err = err
			return res
		}
		native, ok := fixedpoint.ApplyRatio(contraction, rel)
		if !ok || native == 0 {
			res.Verdict = VerdictSkipped
			res.Err = fmt.Errorf("dilution sizing for %s: %w", ledger.AssetName(asset), auction.ErrInvalidAmount)
			return res
		}
		id, err := c.auctions.NewDilutionAuction(step, contraction, native)
		if err != nil {
			res.Verdict = VerdictSkipped
			res.Err = err
			return res
		}
		res.AuctionIDs = []uint64{id}
		return res
	}
	rel, err := c.oracle.Relative(asset, ledger.SETT)
	if err != nil {
		res.Verdict = VerdictSkipped
		res.Err = err
		return res
	}
	reserveAmount, ok := fixedpoint.ApplyRatio(contraction, rel)
	if !ok || reserveAmount == 0 {
		res.Verdict = VerdictSkipped
		res.Err = fmt.Errorf("reserve sizing for %s: %w", ledger.AssetName(asset), auction.ErrInvalidAmount)
		return res
	}
	ids, err := c.treasury.AuctionReserve(step, ledger.TreasuryAccount, asset, reserveAmount, contraction, c.treasury.SplitContraction())
	if err != nil {
		res.Verdict = VerdictSkipped
		res.Err = err
		return res
	}
	res.AuctionIDs = ids
	return res
}
