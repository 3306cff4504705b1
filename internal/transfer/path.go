package transfer

import "strings"

// PathResult is the outcome of a transfer-path query.
//
// Known distinguishes "we have wallet data and there is no path" from
// "we have no wallet data at all". The detector treats the latter as
// unknown rather than rejecting the opportunity; a config flag flips
// that policy to strict.
type PathResult struct {
	Common []string // canonical networks viable end to end
	Source []string // source's withdraw-enabled native networks
	Target []string // target's deposit-enabled native networks
	Known  bool
}

// HasPath reports whether at least one viable network exists.
func (r PathResult) HasPath() bool { return len(r.Common) > 0 }

// Paths computes per-asset transfer feasibility between venues.
type Paths struct {
	cache   *WalletCache
	mapping *NetworkNameMapping // nil disables canonical matching
}

// NewPaths combines the wallet cache with an optional canonical network
// mapping.
func NewPaths(cache *WalletCache, mapping *NetworkNameMapping) *Paths {
	return &Paths{cache: cache, mapping: mapping}
}

// FindForAsset intersects the source venue's withdraw-enabled networks
// with the target venue's deposit-enabled networks for one asset.
// Resolution goes through the canonical mapping when loaded; otherwise a
// direct uppercase string intersection of the raw names is used.
func (p *Paths) FindForAsset(asset, sourceVenue, targetVenue string) PathResult {
	if p.cache.IsEmpty() || !p.cache.HasVenue(sourceVenue) || !p.cache.HasVenue(targetVenue) {
		return PathResult{Known: false}
	}

	source := p.cache.WithdrawNetworks(sourceVenue, asset)
	target := p.cache.DepositNetworks(targetVenue, asset)

	var common []string
	if p.mapping != nil {
		common = p.mapping.CommonNetworks(sourceVenue, targetVenue, source, target)
	} else {
		common = rawIntersection(source, target)
	}

	return PathResult{Common: common, Source: source, Target: target, Known: true}
}

// HasTransferPath reports whether a viable network exists. An unknown
// (empty-cache) result reports false here; callers that care about the
// distinction use FindForAsset.
func (p *Paths) HasTransferPath(asset, sourceVenue, targetVenue string) bool {
	return p.FindForAsset(asset, sourceVenue, targetVenue).HasPath()
}

// rawIntersection is the fallback when no canonical mapping is loaded:
// case-insensitive intersection of raw network names.
func rawIntersection(a, b []string) []string {
	set := make(map[string]struct{}, len(a))
	for _, n := range a {
		set[strings.ToUpper(n)] = struct{}{}
	}
	var common []string
	seen := make(map[string]struct{})
	for _, n := range b {
		u := strings.ToUpper(n)
		if _, dup := seen[u]; dup {
			continue
		}
		if _, hit := set[u]; hit {
			common = append(common, u)
			seen[u] = struct{}{}
		}
	}
	return common
}
