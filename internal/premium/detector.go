package premium

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"arb-scanner/internal/metrics"
	"arb-scanner/internal/state"
	"arb-scanner/internal/symbols"
	"arb-scanner/internal/transfer"
	"arb-scanner/pkg/types"
)

// dedupeToleranceBps suppresses re-publishing an unexpired opportunity
// whose premium moved by at most this much.
const dedupeToleranceBps = 5

const opportunityBufferSize = 256

// dedupeKey identifies an opportunity family for suppression.
type dedupeKey struct {
	asset  string
	source types.Venue
	target types.Venue
}

// Detector periodically rebuilds per-pair premium matrices from shared
// state, ranks them, gates on profitability and transfer feasibility,
// and publishes opportunities.
type Detector struct {
	cfg      Config
	state    *state.SharedState
	mappings *symbols.Mappings
	paths    *transfer.Paths
	logger   *slog.Logger

	out chan Opportunity

	mu     sync.RWMutex
	active map[dedupeKey]Opportunity
}

// NewDetector wires the detector over shared state.
func NewDetector(cfg Config, st *state.SharedState, mappings *symbols.Mappings, paths *transfer.Paths, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:      cfg,
		state:    st,
		mappings: mappings,
		paths:    paths,
		logger:   logger.With("component", "detector"),
		out:      make(chan Opportunity, opportunityBufferSize),
		active:   make(map[dedupeKey]Opportunity),
	}
}

// Opportunities returns the publish channel.
func (d *Detector) Opportunities() <-chan Opportunity { return d.out }

// Active returns all unexpired opportunities, for the read-only API.
// Never fails; empty before the pipeline converges.
func (d *Detector) Active() []Opportunity {
	now := types.NowMs()
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Opportunity, 0, len(d.active))
	for _, o := range d.active {
		if !o.IsExpired(now) {
			out = append(out, o)
		}
	}
	return out
}

// Run scans on the configured interval until ctx is cancelled.
func (d *Detector) Run(ctx context.Context) {
	interval := time.Duration(d.cfg.ScanIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !d.state.IsRunning() {
				return
			}
			d.Scan()
		}
	}
}

// pairWorking is the detector's local working set for one pair: built
// from a single state snapshot so no locks are held across ranking.
type pairWorking struct {
	matrix *Matrix
	asset  string
}

// Scan performs one detection pass.
func (d *Detector) Scan() {
	snapshot := d.state.Snapshot()
	now := types.NowMs()

	pairs := make(map[uint32]*pairWorking)
	for key, entry := range snapshot {
		if entry.USD.Mid == 0 {
			continue // raw-only entry, no USD normalization yet
		}
		if d.mappings.IsExcluded(key.Venue.String(), entry.Symbol) {
			continue
		}
		w, ok := pairs[key.PairID]
		if !ok {
			w = &pairWorking{matrix: NewMatrix(key.PairID), asset: entry.Symbol}
			pairs[key.PairID] = w
		}
		w.matrix.UpdatePriceAt(key.Venue, entry.USD.Mid, entry.USD.TimestampMs)
	}

	for _, w := range pairs {
		if w.matrix.VenueCount() < 2 {
			continue
		}
		best, ok := w.matrix.Best(now, d.cfg.MaxStalenessMs)
		if !ok {
			continue
		}
		net := d.cfg.NetBps(best.GrossBps)
		if !d.cfg.IsProfitable(net) {
			continue
		}
		d.evaluate(w.asset, best, net, now)
	}

	d.expire(now)
}

// evaluate runs the transfer gate and publishes when it passes.
func (d *Detector) evaluate(asset string, best Ranked, netBps int32, now uint64) {
	source, target := best.Buy, best.Sell

	path := d.paths.FindForAsset(asset, source.String(), target.String())
	status := PathAvailable
	switch {
	case !path.Known:
		// Empty wallet cache: feasibility unknown, not infeasible. The
		// strict policy flag rejects instead.
		if d.cfg.RequireTransferPath {
			return
		}
		status = PathUnknown
	case !path.HasPath():
		return
	}

	key := dedupeKey{asset: asset, source: source, target: target}
	d.mu.RLock()
	prev, exists := d.active[key]
	d.mu.RUnlock()
	if exists && !prev.IsExpired(now) && absI32(prev.GrossBps-best.GrossBps) <= dedupeToleranceBps {
		return
	}

	opp := d.build(asset, best, netBps, status, path, now)

	d.mu.Lock()
	d.active[key] = opp
	d.mu.Unlock()

	metrics.OpportunitiesEmitted.Inc()
	d.logger.Info("opportunity",
		"asset", asset,
		"source", source.String(), "target", target.String(),
		"gross_bps", best.GrossBps, "net_bps", netBps,
		"transfer_path", status.String(), "confidence", opp.Confidence)

	select {
	case d.out <- opp:
	default:
		// Consumers lagging; the active set still holds it.
	}
}

func (d *Detector) build(asset string, best Ranked, netBps int32, status PathStatus, path transfer.PathResult, now uint64) Opportunity {
	pairID := types.PairID(asset)

	var network string
	if len(path.Common) > 0 {
		network = path.Common[0]
	}

	route := []RouteStep{
		{Kind: StepTrade, Venue: best.Buy, PairID: pairID, Side: types.SideBuy, ExpectedPrice: best.BuyPrice},
		{Kind: StepWithdraw, Venue: best.Buy, Network: network, Chain: chainFor(network)},
	}
	// CEX→CEX settles over one shared network; a bridge leg only appears
	// between venues pinned to different chains.
	if srcChain, dstChain := venueChain(best.Buy), venueChain(best.Sell); srcChain != 0 && dstChain != 0 && srcChain != dstChain {
		route = append(route, RouteStep{Kind: StepBridge, Chain: srcChain, DestChain: dstChain})
	}
	route = append(route,
		RouteStep{Kind: StepDeposit, Venue: best.Sell, Network: network, Chain: chainFor(network)},
		RouteStep{Kind: StepTrade, Venue: best.Sell, PairID: pairID, Side: types.SideSell, ExpectedPrice: best.SellPrice},
	)

	return Opportunity{
		ID:              uuid.NewString(),
		DiscoveredMs:    now,
		ExpiresMs:       now + opportunityTTLMs,
		SourceVenue:     best.Buy,
		TargetVenue:     best.Sell,
		Asset:           asset,
		SourcePrice:     best.BuyPrice,
		TargetPrice:     best.SellPrice,
		GrossBps:        best.GrossBps,
		NetBps:          netBps,
		Route:           route,
		TransferPath:    status,
		Networks:        path.Common,
		EstimatedFeeBps: 2*d.cfg.TradingFeeBps + d.cfg.GasCostBps,
		MaxAmountUSD:    d.cfg.TargetNotionalUSD,
		Confidence:      d.confidence(asset, best, now),
	}
}

// confidence scores 0-100 from price freshness and how much of the
// target notional the buy venue's ask ladder covers.
func (d *Detector) confidence(asset string, best Ranked, now uint64) uint8 {
	pairID := types.PairID(asset)
	score := 100.0

	// Staleness penalty: linear up to 40 points at max staleness, taken
	// from the older of the two legs.
	oldest := uint64(0)
	for _, venue := range []types.Venue{best.Buy, best.Sell} {
		if e, ok := d.state.Price(venue, pairID); ok {
			if age := e.USD.AgeMs(now); age > oldest {
				oldest = age
			}
		}
	}
	if d.cfg.MaxStalenessMs > 0 {
		score -= 40 * float64(oldest) / float64(d.cfg.MaxStalenessMs)
	}

	// Depth penalty: 30 points when the buy-side book cannot cover the
	// target notional (scaled into the book's raw quote).
	if d.cfg.TargetNotionalUSD > 0 {
		notional := d.cfg.TargetNotionalUSD
		if e, ok := d.state.Price(best.Buy, pairID); ok && e.USD.Mid != 0 && e.Raw.Mid != 0 {
			notional *= e.Raw.Mid.Float() / e.USD.Mid.Float()
		}
		if _, covered := d.state.AvgFillPrice(best.Buy, pairID, notional); !covered {
			score -= 30
		}
	}

	if score < 0 {
		score = 0
	}
	return uint8(score)
}

// expire drops expired opportunities from the active set.
func (d *Detector) expire(now uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, o := range d.active {
		if o.IsExpired(now) {
			delete(d.active, k)
		}
	}
}

func absI32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// venueChain pins DEX venues to their settlement chain; CEX venues have
// none.
func venueChain(v types.Venue) types.Chain {
	switch v {
	case types.VenueUniswapV2, types.VenueUniswapV3, types.VenueSushiSwap:
		return types.ChainEthereum
	case types.VenueRaydium, types.VenueOrca:
		return types.ChainSolana
	default:
		return 0
	}
}
