package core

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"SerpEngine/internal/auction"
	"SerpEngine/internal/event"
	"SerpEngine/internal/ledger"
	"SerpEngine/internal/observability"
	"SerpEngine/internal/price"
	"SerpEngine/internal/serp"
	"SerpEngine/internal/swap"
	"SerpEngine/internal/treasury"
)

// CoreConfig bundles the policy knobs the engine's domain components take.
type CoreConfig struct {
	Auction  auction.Config
	Treasury treasury.Config
	Serp     serp.Config
}

func DefaultCoreConfig() CoreConfig {
	return CoreConfig{
		Auction:  auction.DefaultConfig(),
		Treasury: treasury.DefaultConfig(),
		Serp:     serp.DefaultConfig(),
	}
}

// OutboundRecord is a derived fact addressed to an outbound subject. Not
// replayed; the publisher worker ships them after the event persists.
type OutboundRecord struct {
	Subject string
	Record  any
}

// CoreOutput is what one applied event produces: the log envelope, the
// derived outbound records, the pool levels after the event, and the raw
// state digest for debugging.
type CoreOutput struct {
	Envelope   *event.EventEnvelope
	Outbound   []OutboundRecord
	Pools      PoolSnapshot
	StateDelta []byte
}

// PoolSnapshot carries the treasury pool levels after an event was
// applied. The pool balance projection persists these.
type PoolSnapshot struct {
	SurplusPools map[string]uint64 `json:"surplus_pools"`
	ReservePool  uint64            `json:"reserve_pool"`
	DebtPool     uint64            `json:"debt_pool"`
}

// DeterministicCore is the single-threaded event processor. All balances,
// auctions, pools and prices live in memory behind it; the only wall-clock
// reads are for metrics. Identical event logs replay to identical state
// hashes.
type DeterministicCore struct {
	sequence    int64
	currentStep uint64

	hasher   *StateHasher
	book     *ledger.Book
	registry *auction.Registry
	auctions *auction.Engine
	treasury *treasury.Treasury
	oracle   *price.Oracle
	serp     *serp.Controller

	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics
	log               zerolog.Logger

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

func NewDeterministicCore(
	cfg CoreConfig,
	startSequence int64,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBIdempotencyChecker,
	dex swap.Dex,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *DeterministicCore {
	book := ledger.NewBook()
	registry := auction.NewRegistry()
	auctions := auction.NewEngine(cfg.Auction, registry, book, log)
	tr := treasury.New(cfg.Treasury, book, auctions, dex, log)
	oracle := price.NewOracle()

	return &DeterministicCore{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		book:              book,
		registry:          registry,
		auctions:          auctions,
		treasury:          tr,
		oracle:            oracle,
		serp:              serp.NewController(cfg.Serp, oracle, tr, auctions, book, log),
		idempotency:       NewIdempotencyChecker(1_000_000, dbChecker),
		sequenceValidator: NewSequenceValidator(),
		metrics:           metrics,
		log:               log.With().Str("component", "core").Logger(),
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}
}

// ProcessEvent is the main processing pipeline
func (c *DeterministicCore) ProcessEvent(evt event.Event) error {
	start := time.Now()
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate := c.idempotency.IsDuplicate(eventType, idempotencyKey)

	// Step 2: Sequence validation
	partition := *evt.Partition()
	sourceSequence := evt.SourceSequence()

	// Price partitions tolerate gaps; stale quotes are a silent no-op.
	if _, ok := evt.(*event.PriceUpdate); ok {
		if !c.sequenceValidator.ValidatePriceSequence(partition, sourceSequence) {
			if c.metrics != nil {
				c.metrics.CoreEventsRejected.WithLabelValues(eventType, "stale").Inc()
			}
			c.idempotency.MarkProcessed(eventType, idempotencyKey)
			return nil
		}
	} else {
		if err := c.sequenceValidator.ValidateSequence(partition, sourceSequence, idempotencyKey, isDuplicate); err != nil {
			return fmt.Errorf("sequence validation failed: %w", err)
		}
	}

	// If duplicate, skip processing
	if isDuplicate {
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "duplicate").Inc()
		}
		return nil
	}

	// Step 3: Dispatch. Handlers are atomic: a returned error means no
	// state was touched, and the event never enters the log.
	outbound, err := c.dispatchEvent(evt)
	if err != nil {
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "rejected").Inc()
		}
		c.log.Warn().Str("event_type", eventType).Str("key", idempotencyKey).
			Err(err).Msg("event rejected")
		return fmt.Errorf("dispatch failed: %w", err)
	}

	// Step 4: State digest and hash chain
	stateDigest := c.computeStateDigest()
	stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)

	// Step 5: Envelope
	payload, err := event.Encode(evt)
	if err != nil {
		panic(fmt.Sprintf("FATAL: applied event failed to encode: %v", err))
	}
	envelope := &event.EventEnvelope{
		Sequence:       c.sequence,
		IdempotencyKey: idempotencyKey,
		EventType:      evt.EventType(),
		Partition:      evt.Partition(),
		Timestamp:      eventTimestamp(evt),
		SourceSequence: sourceSequence,
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       c.hasher.GetPrevHash(),
	}
	c.sequence++

	// Step 6: Post-checks
	if err := c.postCheckInvariants(); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated after %s: %v", eventType, err))
	}

	output := CoreOutput{
		Envelope:   envelope,
		Outbound:   outbound,
		Pools:      c.snapshotPools(),
		StateDelta: stateDigest,
	}

	// Step 7: Emit. Persistence is a blocking send (backpressure stalls
	// the core rather than lose an event); projections are non-blocking
	// with drop, they rebuild from the event log if they fall behind.
	select {
	case c.persistChan <- output:
	default:
		if c.metrics != nil {
			c.metrics.PersistBackpressure.Inc()
		}
		c.persistChan <- output
	}

	select {
	case c.projectionChan <- output:
	default:
		if c.metrics != nil {
			c.metrics.ProjectionDrops.WithLabelValues("core").Inc()
		}
	}

	// Step 8: Mark as processed (add to LRU)
	c.idempotency.MarkProcessed(eventType, idempotencyKey)

	if c.metrics != nil {
		c.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
		c.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		c.metrics.CoreSequence.Set(float64(c.sequence))
		c.updatePoolGauges()
	}

	return nil
}

func (c *DeterministicCore) dispatchEvent(evt event.Event) ([]OutboundRecord, error) {
	switch e := evt.(type) {
	case *event.ReserveAuctionRequest:
		return c.handleReserveAuctionRequest(e)
	case *event.DilutionAuctionRequest:
		return c.handleDilutionAuctionRequest(e)
	case *event.SurplusAuctionRequest:
		return c.handleSurplusAuctionRequest(e)
	case *event.AuctionBid:
		return c.handleAuctionBid(e)
	case *event.AdminCloseAuction:
		return c.handleAdminCloseAuction(e)
	case *event.AuctionSizeUpdate:
		c.treasury.SetMaxReserveAuctionLot(e.MaxLot)
		return nil, nil
	case *event.PriceUpdate:
		return nil, c.oracle.Record(e.Asset, e.Quote)
	case *event.StepTick:
		return c.handleStepTick(e)
	case *event.TreasuryDeposit:
		return nil, c.handleTreasuryDeposit(e)
	case *event.TreasurySwap:
		return c.handleTreasurySwap(e)
	default:
		return nil, fmt.Errorf("unknown event type: %T", evt)
	}
}

func (c *DeterministicCore) handleReserveAuctionRequest(e *event.ReserveAuctionRequest) ([]OutboundRecord, error) {
	// The request covers a shortfall: its target becomes system debt, and
	// the auction's stable proceeds offset it at end of step.
	if err := c.treasury.RecordSystemDebt(e.Target); err != nil {
		return nil, err
	}
	ids, err := c.treasury.AuctionReserve(c.currentStep, e.RefundReceiver, e.PaymentAsset, e.Amount, e.Target, e.Split)
	if err != nil {
		c.treasury.CoverDebt(e.Target)
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.AuctionsOpened.WithLabelValues(auction.KindReserve.String()).Add(float64(len(ids)))
	}
	return nil, nil
}

func (c *DeterministicCore) handleDilutionAuctionRequest(e *event.DilutionAuctionRequest) ([]OutboundRecord, error) {
	if _, err := c.treasury.AuctionDilution(c.currentStep, e.InitialPrice, e.Amount); err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.AuctionsOpened.WithLabelValues(auction.KindDilution.String()).Inc()
	}
	return nil, nil
}

func (c *DeterministicCore) handleSurplusAuctionRequest(e *event.SurplusAuctionRequest) ([]OutboundRecord, error) {
	if _, err := c.treasury.AuctionSurplus(c.currentStep, e.SurplusAsset, e.Amount); err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.AuctionsOpened.WithLabelValues(auction.KindSurplus.String()).Inc()
	}
	return nil, nil
}

func (c *DeterministicCore) handleAuctionBid(e *event.AuctionBid) ([]OutboundRecord, error) {
	a, err := c.registry.Get(e.AuctionID)
	if err != nil {
		c.recordBidRejection("unknown")
		return nil, err
	}
	kind := a.Kind
	if err := c.auctions.PlaceBid(c.currentStep, e.AuctionID, ledger.UserAccount(e.Bidder), e.Price); err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientBalance):
			c.recordBidRejection("unfunded")
		case errors.Is(err, auction.ErrInvalidBidPrice):
			c.recordBidRejection("price")
		default:
			c.recordBidRejection("other")
		}
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.BidsAccepted.WithLabelValues(kind.String()).Inc()
	}
	return nil, nil
}

func (c *DeterministicCore) recordBidRejection(reason string) {
	if c.metrics != nil {
		c.metrics.BidsRejected.WithLabelValues(reason).Inc()
	}
}

func (c *DeterministicCore) handleAdminCloseAuction(e *event.AdminCloseAuction) ([]OutboundRecord, error) {
	out, err := c.auctions.OnAuctionEnded(e.AuctionID)
	if err != nil {
		return nil, err
	}
	return []OutboundRecord{c.outcomeRecord(out, e.Timestamp)}, nil
}

func (c *DeterministicCore) handleTreasuryDeposit(e *event.TreasuryDeposit) error {
	account := e.Account
	if e.ToTreasury {
		account = ledger.TreasuryAccount
	}
	return c.book.Deposit(e.Asset, account, e.Amount)
}

func (c *DeterministicCore) handleTreasurySwap(e *event.TreasurySwap) ([]OutboundRecord, error) {
	received, err := c.treasury.SwapReserveToStable(e.Supply, e.MinTarget)
	if err != nil {
		return nil, err
	}
	return []OutboundRecord{{
		Subject: event.SubjectReserveSwapped,
		Record: &event.ReserveSwapped{
			Supply:    e.Supply,
			Received:  received,
			Step:      c.currentStep,
			Timestamp: e.Timestamp,
		},
	}}, nil
}

// handleStepTick advances engine time and runs the end-of-step sweep:
// close due auctions, evaluate the pegged set when the controller is due,
// then offset surplus against debt.
func (c *DeterministicCore) handleStepTick(e *event.StepTick) ([]OutboundRecord, error) {
	// Steps are 1-based; 0 is the unset-deadline sentinel on auctions.
	if e.Step == 0 || e.Step <= c.currentStep {
		return nil, fmt.Errorf("step regression: current=%d, got=%d", c.currentStep, e.Step)
	}
	c.currentStep = e.Step

	var outbound []OutboundRecord

	for _, out := range c.auctions.CloseDue(e.Step) {
		outbound = append(outbound, c.outcomeRecord(out, e.Timestamp))
	}

	if c.serp.Due(e.Step) {
		for _, res := range c.serp.Evaluate(e.Step) {
			outbound = append(outbound, c.stabilizationRecords(res, e)...)
		}
	}

	offset := c.treasury.OffsetSurplusAndDebt()
	if c.metrics != nil {
		c.metrics.CoreStep.Set(float64(e.Step))
		c.metrics.OffsetVolume.Add(float64(offset))
	}
	return outbound, nil
}

func (c *DeterministicCore) outcomeRecord(out auction.Outcome, ts time.Time) OutboundRecord {
	if out.Dealt {
		if c.metrics != nil {
			c.metrics.AuctionsDealt.WithLabelValues(out.Kind.String()).Inc()
		}
		return OutboundRecord{
			Subject: event.SubjectAuctionDealt,
			Record: &event.AuctionDealt{
				AuctionID: out.ID,
				Kind:      out.Kind.String(),
				Winner:    out.Winner.Path(),
				Price:     out.Price,
				Amount:    out.Amount,
				Step:      c.currentStep,
				Timestamp: ts,
			},
		}
	}
	if c.metrics != nil {
		c.metrics.AuctionsCancelled.WithLabelValues(out.Kind.String()).Inc()
	}
	return OutboundRecord{
		Subject: event.SubjectAuctionCancelled,
		Record: &event.AuctionCancelled{
			AuctionID: out.ID,
			Kind:      out.Kind.String(),
			Amount:    out.Amount,
			Step:      c.currentStep,
			Timestamp: ts,
		},
	}
}

func (c *DeterministicCore) stabilizationRecords(res serp.Result, e *event.StepTick) []OutboundRecord {
	asset := ledger.AssetName(res.Asset)
	switch res.Verdict {
	case serp.VerdictStable:
		return []OutboundRecord{{
			Subject: event.SubjectPriceStable,
			Record:  &event.PriceStable{Asset: asset, Step: e.Step, Timestamp: e.Timestamp},
		}}
	case serp.VerdictSerpedUp:
		records := []OutboundRecord{{
			Subject: event.SubjectSerpedUp,
			Record:  &event.SerpedUp{Asset: asset, Amount: res.SerpUp, Step: e.Step, Timestamp: e.Timestamp},
		}}
		for _, d := range res.Deliveries {
			records = append(records, OutboundRecord{
				Subject: event.SubjectSerpUpDelivered,
				Record: &event.SerpUpDelivered{
					Asset:       asset,
					Destination: d.Name,
					Account:     d.Account.Path(),
					Amount:      d.Amount,
					Step:        e.Step,
					Timestamp:   e.Timestamp,
				},
			})
		}
		if c.metrics != nil {
			c.metrics.SerpUpVolume.WithLabelValues(asset).Add(float64(res.SerpUp))
		}
		return records
	case serp.VerdictSerpedDown:
		if c.metrics != nil {
			var total float64
			for _, id := range res.AuctionIDs {
				if a, err := c.registry.Get(id); err == nil {
					total += float64(a.Amount)
				}
			}
			c.metrics.SerpDownVolume.WithLabelValues(asset).Add(total)
		}
		return []OutboundRecord{{
			Subject: event.SubjectSerpDown,
			Record: &event.SerpDownTriggered{
				Asset:      asset,
				AuctionIDs: res.AuctionIDs,
				Step:       e.Step,
				Timestamp:  e.Timestamp,
			},
		}}
	default:
		// Skipped: unpriced or unactionable this round, nothing published.
		return nil
	}
}

// computeStateDigest serializes the full engine state in canonical order.
// Any divergence between two replicas shows up as a hash-chain fork at the
// first differing event.
func (c *DeterministicCore) computeStateDigest() []byte {
	h := sha256.New()
	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeStr := func(s string) {
		writeU64(uint64(len(s)))
		h.Write([]byte(s))
	}

	writeU64(c.currentStep)
	writeU64(c.treasury.DebtPool())
	writeU64(c.treasury.MaxReserveAuctionLot())

	for _, b := range c.book.SortedBalances() {
		writeU64(uint64(b.Asset))
		writeStr(b.Account)
		writeU64(b.Amount)
	}
	for _, i := range c.book.SortedIssuance() {
		writeU64(uint64(i.Asset))
		writeU64(i.Amount)
	}

	writeU64(c.registry.NextID())
	for _, id := range c.registry.SortedIDs() {
		a, err := c.registry.Get(id)
		if err != nil {
			panic(fmt.Sprintf("FATAL: registry id %d vanished during digest: %v", id, err))
		}
		writeU64(a.ID)
		writeU64(uint64(a.Kind))
		writeU64(a.Amount)
		writeU64(a.Target)
		writeU64(uint64(a.SoldAsset))
		writeU64(uint64(a.PaymentAsset))
		writeStr(a.RefundReceiver.Path())
		writeU64(a.StartStep)
		writeU64(a.EndStep)
		if a.Bid != nil {
			writeStr(a.Bid.Bidder.Path())
			writeU64(a.Bid.Price)
		}
	}

	for _, q := range c.oracle.SortedQuotes() {
		writeU64(uint64(q.Asset))
		writeU64(uint64(q.Quote))
	}

	return h.Sum(nil)
}

// postCheckInvariants cross-checks the derived counters against the
// registry and the escrow holds against the standing bids. These hold
// after every applied event; a violation means the engine state is
// corrupt and replaying would persist the corruption.
func (c *DeterministicCore) postCheckInvariants() error {
	var reserveTotal, dilutionTotal uint64
	targetTotals := make(map[ledger.AssetID]uint64)
	surplusTotals := make(map[ledger.AssetID]uint64)

	for _, id := range c.registry.SortedIDs() {
		a, err := c.registry.Get(id)
		if err != nil {
			return fmt.Errorf("auction %d listed but not retrievable: %w", id, err)
		}

		hold, held := c.book.HoldFor(id)
		if (a.Bid != nil) != held {
			return fmt.Errorf("auction %d: bid=%v but hold=%v", id, a.Bid != nil, held)
		}
		if a.Bid != nil && hold.Bidder != a.Bid.Bidder {
			return fmt.Errorf("auction %d: hold bidder %s != bid bidder %s",
				id, hold.Bidder.Path(), a.Bid.Bidder.Path())
		}
		if a.Bid != nil && a.EndStep == 0 {
			return fmt.Errorf("auction %d: standing bid without a deadline", id)
		}

		switch a.Kind {
		case auction.KindReserve:
			reserveTotal += a.Amount
			targetTotals[a.PaymentAsset] += a.Target
		case auction.KindDilution:
			dilutionTotal += a.Amount
		case auction.KindSurplus:
			surplusTotals[a.SoldAsset] += a.Amount
		}
	}

	if got := c.registry.TotalReserveInAuction(); got != reserveTotal {
		return fmt.Errorf("reserve counter %d != live total %d", got, reserveTotal)
	}
	if got := c.registry.TotalDilutionInAuction(); got != dilutionTotal {
		return fmt.Errorf("dilution counter %d != live total %d", got, dilutionTotal)
	}
	for _, asset := range ledger.StableAssets {
		if got := c.registry.TotalTargetInAuction(asset); got != targetTotals[asset] {
			return fmt.Errorf("%s target counter %d != live total %d",
				ledger.AssetName(asset), got, targetTotals[asset])
		}
		if got := c.registry.TotalSurplusInAuction(asset); got != surplusTotals[asset] {
			return fmt.Errorf("%s surplus counter %d != live total %d",
				ledger.AssetName(asset), got, surplusTotals[asset])
		}
		if inAuction := surplusTotals[asset]; inAuction > c.treasury.SurplusPool(asset) {
			return fmt.Errorf("%s surplus in auction %d exceeds pool %d",
				ledger.AssetName(asset), inAuction, c.treasury.SurplusPool(asset))
		}
	}

	// ReservePool panics internally if auctioned reserve exceeds holdings.
	_ = c.treasury.ReservePool()

	return nil
}

func (c *DeterministicCore) snapshotPools() PoolSnapshot {
	pools := PoolSnapshot{SurplusPools: make(map[string]uint64, len(ledger.StableAssets))}
	for _, asset := range ledger.StableAssets {
		pools.SurplusPools[ledger.AssetName(asset)] = c.treasury.SurplusPool(asset)
	}
	pools.ReservePool = c.treasury.ReservePool()
	pools.DebtPool = c.treasury.DebtPool()
	return pools
}

func (c *DeterministicCore) updatePoolGauges() {
	for _, asset := range ledger.StableAssets {
		c.metrics.SurplusPool.WithLabelValues(ledger.AssetName(asset)).
			Set(float64(c.treasury.SurplusPool(asset)))
	}
	c.metrics.ReservePool.Set(float64(c.treasury.ReservePool()))
	c.metrics.DebtPool.Set(float64(c.treasury.DebtPool()))
	c.metrics.AuctionsLive.Set(float64(c.registry.Len()))
}

func eventTimestamp(evt event.Event) time.Time {
	switch e := evt.(type) {
	case *event.ReserveAuctionRequest:
		return e.Timestamp
	case *event.DilutionAuctionRequest:
		return e.Timestamp
	case *event.SurplusAuctionRequest:
		return e.Timestamp
	case *event.AuctionBid:
		return e.Timestamp
	case *event.AdminCloseAuction:
		return e.Timestamp
	case *event.AuctionSizeUpdate:
		return e.Timestamp
	case *event.PriceUpdate:
		return e.Timestamp
	case *event.StepTick:
		return e.Timestamp
	case *event.TreasuryDeposit:
		return e.Timestamp
	case *event.TreasurySwap:
		return e.Timestamp
	default:
		return time.Time{}
	}
}

// --- Snapshot & restore ---

// BalanceSnapshot is one balance row in a snapshot.
type BalanceSnapshot struct {
	Asset   ledger.AssetID `json:"asset"`
	Account string         `json:"account"`
	Amount  uint64         `json:"amount"`
}

// IssuanceSnapshot is one issuance row in a snapshot.
type IssuanceSnapshot struct {
	Asset  ledger.AssetID `json:"asset"`
	Amount uint64         `json:"amount"`
}

// QuoteSnapshot is one recorded oracle quote in a snapshot.
type QuoteSnapshot struct {
	Asset ledger.AssetID `json:"asset"`
	Quote int64          `json:"quote"`
}

// AuctionSnapshot is one live auction in a snapshot. Accounts are stored
// as paths so the JSON stays readable.
type AuctionSnapshot struct {
	ID             uint64         `json:"id"`
	Kind           auction.Kind   `json:"kind"`
	Amount         uint64         `json:"amount"`
	Target         uint64         `json:"target"`
	SoldAsset      ledger.AssetID `json:"sold_asset"`
	PaymentAsset   ledger.AssetID `json:"payment_asset"`
	RefundReceiver string         `json:"refund_receiver,omitempty"`
	StartStep      uint64         `json:"start_step"`
	EndStep        uint64         `json:"end_step"`
	HasBid         bool           `json:"has_bid"`
	Bidder         string         `json:"bidder,omitempty"`
	BidPrice       uint64         `json:"bid_price,omitempty"`
}

// SnapshotState captures the full in-memory state for persistence.
type SnapshotState struct {
	Sequence        int64              `json:"sequence"`
	Step            uint64             `json:"step"`
	StateHash       [32]byte           `json:"state_hash"`
	Balances        []BalanceSnapshot  `json:"balances"`
	Issuance        []IssuanceSnapshot `json:"issuance"`
	DebtPool        uint64             `json:"debt_pool"`
	MaxReserveLot   uint64             `json:"max_reserve_lot"`
	Auctions        []AuctionSnapshot  `json:"auctions"`
	NextAuctionID   uint64             `json:"next_auction_id"`
	Quotes          []QuoteSnapshot    `json:"quotes"`
	SequenceState   map[string]int64   `json:"sequence_state"`
	IdempotencyKeys []string           `json:"idempotency_keys"`
}

// RestoreFromSnapshot installs a snapshot into an empty core. Events after
// the snapshot's sequence replay on top.
func (c *DeterministicCore) RestoreFromSnapshot(snap *SnapshotState) {
	c.sequence = snap.Sequence + 1 // Next sequence to assign
	c.currentStep = snap.Step
	c.hasher.SetPrevHash(snap.StateHash)

	for _, b := range snap.Balances {
		c.book.RestoreBalance(b.Asset, mustParseAccount(b.Account), b.Amount)
	}
	for _, i := range snap.Issuance {
		c.book.RestoreIssuance(i.Asset, i.Amount)
	}

	c.treasury.RestoreDebtPool(snap.DebtPool)
	if snap.MaxReserveLot > 0 {
		c.treasury.SetMaxReserveAuctionLot(snap.MaxReserveLot)
	}

	for _, as := range snap.Auctions {
		a := &auction.Auction{
			ID:           as.ID,
			Kind:         as.Kind,
			Amount:       as.Amount,
			Target:       as.Target,
			SoldAsset:    as.SoldAsset,
			PaymentAsset: as.PaymentAsset,
			StartStep:    as.StartStep,
			EndStep:      as.EndStep,
		}
		if as.RefundReceiver != "" {
			a.RefundReceiver = mustParseAccount(as.RefundReceiver)
		}
		if as.HasBid {
			bidder := mustParseAccount(as.Bidder)
			a.Bid = &auction.Bid{Bidder: bidder, Price: as.BidPrice}
			c.book.AddHold(a.ID, bidder)
		}
		c.registry.Restore(a)
	}
	c.registry.RestoreNextID(snap.NextAuctionID)

	for _, q := range snap.Quotes {
		c.oracle.Restore(q.Asset, q.Quote)
	}

	for partition, nextSeq := range snap.SequenceState {
		c.sequenceValidator.SetExpectedSequence(partition, nextSeq)
	}

	c.idempotency.lru.WarmFromKeys(snap.IdempotencyKeys)
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (c *DeterministicCore) CreateSnapshotState() *SnapshotState {
	snap := &SnapshotState{
		Sequence:        c.sequence - 1, // Last processed sequence
		Step:            c.currentStep,
		StateHash:       c.hasher.GetPrevHash(),
		DebtPool:        c.treasury.DebtPool(),
		MaxReserveLot:   c.treasury.MaxReserveAuctionLot(),
		NextAuctionID:   c.registry.NextID(),
		SequenceState:   c.sequenceValidator.GetAllPartitions(),
		IdempotencyKeys: c.idempotency.lru.GetAllKeys(),
	}

	for _, b := range c.book.SortedBalances() {
		snap.Balances = append(snap.Balances, BalanceSnapshot(b))
	}
	for _, i := range c.book.SortedIssuance() {
		snap.Issuance = append(snap.Issuance, IssuanceSnapshot(i))
	}
	for _, id := range c.registry.SortedIDs() {
		a, err := c.registry.Get(id)
		if err != nil {
			panic(fmt.Sprintf("FATAL: registry id %d vanished during snapshot: %v", id, err))
		}
		as := AuctionSnapshot{
			ID:           a.ID,
			Kind:         a.Kind,
			Amount:       a.Amount,
			Target:       a.Target,
			SoldAsset:    a.SoldAsset,
			PaymentAsset: a.PaymentAsset,
			StartStep:    a.StartStep,
			EndStep:      a.EndStep,
		}
		if a.Kind == auction.KindReserve {
			as.RefundReceiver = a.RefundReceiver.Path()
		}
		if a.Bid != nil {
			as.HasBid = true
			as.Bidder = a.Bid.Bidder.Path()
			as.BidPrice = a.Bid.Price
		}
		snap.Auctions = append(snap.Auctions, as)
	}
	for _, q := range c.oracle.SortedQuotes() {
		snap.Quotes = append(snap.Quotes, QuoteSnapshot(q))
	}
	return snap
}

func mustParseAccount(path string) ledger.Account {
	account, err := ledger.ParseAccountPath(path)
	if err != nil {
		panic(fmt.Sprintf("FATAL: corrupt account path in snapshot: %q: %v", path, err))
	}
	return account
}

// WarmLRU loads recent idempotency keys into the LRU cache, avoiding
// cold-path DB lookups for recently processed events after a restart.
func (c *DeterministicCore) WarmLRU(keys []string) {
	c.idempotency.lru.WarmFromKeys(keys)
}

// GetSequence returns the current global sequence number.
func (c *DeterministicCore) GetSequence() int64 {
	return c.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (c *DeterministicCore) GetStateHash() [32]byte {
	return c.hasher.GetPrevHash()
}

// CurrentStep returns the engine's time step.
func (c *DeterministicCore) CurrentStep() uint64 {
	return c.currentStep
}

// The accessors below expose the single-threaded state for recovery and
// tests. Never read them concurrently with ProcessEvent.

func (c *DeterministicCore) Book() *ledger.Book           { return c.book }
func (c *DeterministicCore) Registry() *auction.Registry  { return c.registry }
func (c *DeterministicCore) Treasury() *treasury.Treasury { return c.treasury }
func (c *DeterministicCore) Oracle() *price.Oracle        { return c.oracle }
