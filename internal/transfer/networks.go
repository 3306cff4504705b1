// Package transfer answers one question for the detector: can this
// asset actually move from the source venue to the target venue? It
// combines each venue's per-asset wallet status (deposit/withdraw
// switches per network) with a canonical network-name map that unifies
// the venues' private network spellings.
package transfer

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// NetworkNameMapping maps canonical network names ("ERC20", "TRC20") to
// each venue's native network ID, with a reverse index for
// (venue, network_id) → canonical lookups.
type NetworkNameMapping struct {
	// mappings: canonical name → venue name → native network ID (nil
	// when the venue does not support the network).
	mappings map[string]map[string]*string
	// reverse: (venue, native id) → canonical name. Keys are stored both
	// verbatim and lowercased for case-insensitive fallback.
	reverse map[[2]string]string
}

// LoadNetworkMapping reads the canonical map from a JSON file shaped
// { canonical_name: { venue_name: native_network_id | null } }.
func LoadNetworkMapping(path string) (*NetworkNameMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network mapping: %w", err)
	}

	var raw map[string]map[string]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse network mapping: %w", err)
	}
	return NewNetworkMapping(raw), nil
}

// NewNetworkMapping builds the mapping and its reverse index.
func NewNetworkMapping(raw map[string]map[string]*string) *NetworkNameMapping {
	m := &NetworkNameMapping{
		mappings: raw,
		reverse:  make(map[[2]string]string),
	}
	for canonical, venues := range raw {
		for venue, id := range venues {
			if id == nil {
				continue
			}
			m.reverse[[2]string{venue, *id}] = canonical
			m.reverse[[2]string{venue, strings.ToLower(*id)}] = canonical
		}
	}
	return m
}

// Len returns the number of canonical networks.
func (m *NetworkNameMapping) Len() int { return len(m.mappings) }

// Canonical resolves a venue's native network ID to its canonical name.
// Exact match first, then case-insensitive.
func (m *NetworkNameMapping) Canonical(venue, networkID string) (string, bool) {
	if c, ok := m.reverse[[2]string{venue, networkID}]; ok {
		return c, true
	}
	c, ok := m.reverse[[2]string{venue, strings.ToLower(networkID)}]
	return c, ok
}

// CommonNetworks maps both venues' native network lists to canonical
// names and intersects them.
func (m *NetworkNameMapping) CommonNetworks(venue1, venue2 string, networks1, networks2 []string) []string {
	set1 := make(map[string]struct{})
	for _, n := range networks1 {
		if c, ok := m.Canonical(venue1, n); ok {
			set1[c] = struct{}{}
		}
	}

	var common []string
	seen := make(map[string]struct{})
	for _, n := range networks2 {
		c, ok := m.Canonical(venue2, n)
		if !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		if _, hit := set1[c]; hit {
			common = append(common, c)
			seen[c] = struct{}{}
		}
	}
	return common
}

// networkMappingPaths are probed in order relative to the working
// directory; the first readable file wins.
var networkMappingPaths = []string{
	"network_name_mapping.json",
	"./network_name_mapping.json",
	"../network_name_mapping.json",
	"../../network_name_mapping.json",
}

// LoadDefaultNetworkMapping probes the standard locations. Returns nil
// when no file is found, which disables canonical matching (raw string
// intersection is used instead).
func LoadDefaultNetworkMapping() *NetworkNameMapping {
	for _, path := range networkMappingPaths {
		if m, err := LoadNetworkMapping(path); err == nil {
			return m
		}
	}
	return nil
}
