package premium

import (
	"arb-scanner/pkg/types"
)

// opportunityTTLMs is how long a published opportunity stays valid.
const opportunityTTLMs = 30_000

// StepKind discriminates route steps.
type StepKind uint8

const (
	StepTrade StepKind = iota
	StepWithdraw
	StepBridge
	StepDeposit
)

func (k StepKind) String() string {
	switch k {
	case StepTrade:
		return "trade"
	case StepWithdraw:
		return "withdraw"
	case StepBridge:
		return "bridge"
	case StepDeposit:
		return "deposit"
	default:
		return "unknown"
	}
}

// RouteStep is one leg of an arbitrage route.
type RouteStep struct {
	Kind  StepKind    `json:"kind"`
	Venue types.Venue `json:"venue,omitempty"`

	// Trade
	PairID        uint32           `json:"pair_id,omitempty"`
	Side          types.TradeSide  `json:"side,omitempty"`
	ExpectedPrice types.FixedPoint `json:"expected_price,omitempty"`
	SlippageBps   uint16           `json:"slippage_bps,omitempty"`

	// Withdraw / Deposit / Bridge
	Network   string      `json:"network,omitempty"`
	Chain     types.Chain `json:"chain,omitempty"`
	DestChain types.Chain `json:"dest_chain,omitempty"`
}

// PathStatus records what the transfer check knew at detection time.
type PathStatus uint8

const (
	// PathAvailable means a viable withdraw/deposit network pair exists.
	PathAvailable PathStatus = iota
	// PathUnknown means the wallet cache had no data for one of the
	// venues; feasibility could not be evaluated.
	PathUnknown
)

func (s PathStatus) String() string {
	if s == PathUnknown {
		return "unknown"
	}
	return "available"
}

// Opportunity is a detected, transfer-checked cross-venue premium. It is
// ephemeral: it expires after a fixed TTL and is never persisted.
type Opportunity struct {
	ID           string `json:"id"`
	DiscoveredMs uint64 `json:"discovered_ms"`
	ExpiresMs    uint64 `json:"expires_ms"`

	SourceVenue types.Venue      `json:"source_venue"`
	TargetVenue types.Venue      `json:"target_venue"`
	Asset       string           `json:"asset"`
	SourcePrice types.FixedPoint `json:"source_price"`
	TargetPrice types.FixedPoint `json:"target_price"`
	GrossBps    int32            `json:"gross_bps"`
	NetBps      int32            `json:"net_bps"`

	Route        []RouteStep `json:"route"`
	TransferPath PathStatus  `json:"transfer_path"`
	Networks     []string    `json:"networks,omitempty"`

	EstimatedFeeBps int32   `json:"estimated_fee_bps"`
	MinAmountUSD    float64 `json:"min_amount_usd"`
	MaxAmountUSD    float64 `json:"max_amount_usd"`
	Confidence      uint8   `json:"confidence"`
}

// IsExpired reports whether the opportunity has passed its TTL at nowMs.
func (o *Opportunity) IsExpired(nowMs uint64) bool {
	return nowMs > o.ExpiresMs
}

// canonicalChains maps well-known canonical network names to chains for
// route annotation. Unlisted networks leave the chain unset.
var canonicalChains = map[string]types.Chain{
	"ERC20":    types.ChainEthereum,
	"BEP20":    types.ChainBsc,
	"POLYGON":  types.ChainPolygon,
	"ARBITRUM": types.ChainArbitrum,
	"OPTIMISM": types.ChainOptimism,
	"BASE":     types.ChainBase,
	"SOL":      types.ChainSolana,
	"SOLANA":   types.ChainSolana,
	"AVAXC":    types.ChainAvalanche,
}

// chainFor looks up the chain a canonical network settles on.
func chainFor(network string) types.Chain {
	return canonicalChains[network]
}
