package transfer

import (
	"testing"
)

func strPtr(s string) *string { return &s }

func seededCache() *WalletCache {
	cache := NewWalletCache()
	cache.SetVenue("Binance", []AssetStatus{{
		Asset: "X",
		Networks: []NetworkStatus{
			{NetworkID: "BEP20", WithdrawEnabled: true, DepositEnabled: true},
			{NetworkID: "ERC20", WithdrawEnabled: true, DepositEnabled: true, Fee: 0.002},
			{NetworkID: "TRC20", WithdrawEnabled: false, DepositEnabled: true},
		},
	}})
	cache.SetVenue("Upbit", []AssetStatus{{
		Asset: "X",
		Networks: []NetworkStatus{
			{NetworkID: "ERC20", DepositEnabled: true, WithdrawEnabled: true},
			{NetworkID: "TRC20", DepositEnabled: true, WithdrawEnabled: false},
		},
	}})
	return cache
}

func identityMapping() *NetworkNameMapping {
	return NewNetworkMapping(map[string]map[string]*string{
		"BEP20": {"Binance": strPtr("BEP20"), "Upbit": strPtr("BEP20")},
		"ERC20": {"Binance": strPtr("ERC20"), "Upbit": strPtr("ERC20")},
		"TRC20": {"Binance": strPtr("TRC20"), "Upbit": strPtr("TRC20")},
	})
}

func TestFindCommonNetworksForAsset(t *testing.T) {
	t.Parallel()
	paths := NewPaths(seededCache(), identityMapping())

	res := paths.FindForAsset("X", "Binance", "Upbit")
	if !res.Known {
		t.Fatal("seeded cache must be known")
	}
	if len(res.Common) != 1 || res.Common[0] != "ERC20" {
		t.Errorf("common = %v, want [ERC20]", res.Common)
	}
	if len(res.Source) != 2 { // BEP20 + ERC20 withdraw-enabled
		t.Errorf("source = %v", res.Source)
	}
	if len(res.Target) != 2 { // ERC20 + TRC20 deposit-enabled
		t.Errorf("target = %v", res.Target)
	}
	if !res.HasPath() || !paths.HasTransferPath("X", "Binance", "Upbit") {
		t.Error("expected a viable path")
	}
}

func TestEmptyCacheIsUnknown(t *testing.T) {
	t.Parallel()
	paths := NewPaths(NewWalletCache(), identityMapping())

	res := paths.FindForAsset("X", "Binance", "Upbit")
	if res.Known {
		t.Error("empty cache must report unknown, not a definitive no")
	}
	if len(res.Common) != 0 || len(res.Source) != 0 || len(res.Target) != 0 {
		t.Error("empty cache must yield empty vectors")
	}
}

func TestMissingVenueIsUnknown(t *testing.T) {
	t.Parallel()
	cache := NewWalletCache()
	cache.SetVenue("Binance", []AssetStatus{{Asset: "X",
		Networks: []NetworkStatus{{NetworkID: "ERC20", WithdrawEnabled: true}}}})
	paths := NewPaths(cache, nil)

	if res := paths.FindForAsset("X", "Binance", "Upbit"); res.Known {
		t.Error("one missing venue must report unknown")
	}
}

func TestUnknownAssetHasNoPath(t *testing.T) {
	t.Parallel()
	paths := NewPaths(seededCache(), identityMapping())

	res := paths.FindForAsset("Y", "Binance", "Upbit")
	if !res.Known {
		t.Error("cache is populated, result is known")
	}
	if res.HasPath() {
		t.Error("unknown asset cannot have a path")
	}
}

func TestRawFallbackWithoutMapping(t *testing.T) {
	t.Parallel()
	paths := NewPaths(seededCache(), nil)

	res := paths.FindForAsset("X", "Binance", "Upbit")
	if len(res.Common) != 1 || res.Common[0] != "ERC20" {
		t.Errorf("raw intersection = %v, want [ERC20]", res.Common)
	}
}

func TestRawFallbackIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	cache := NewWalletCache()
	cache.SetVenue("A", []AssetStatus{{Asset: "X",
		Networks: []NetworkStatus{{NetworkID: "erc20", WithdrawEnabled: true}}}})
	cache.SetVenue("B", []AssetStatus{{Asset: "X",
		Networks: []NetworkStatus{{NetworkID: "ERC20", DepositEnabled: true}}}})

	res := NewPaths(cache, nil).FindForAsset("X", "A", "B")
	if len(res.Common) != 1 || res.Common[0] != "ERC20" {
		t.Errorf("common = %v", res.Common)
	}
}

func TestWithdrawOnlyDirectionality(t *testing.T) {
	t.Parallel()
	paths := NewPaths(seededCache(), identityMapping())

	// Reverse direction: Upbit's withdraw-enabled {ERC20} ∩ Binance's
	// deposit-enabled {BEP20, ERC20, TRC20}.
	res := paths.FindForAsset("X", "Upbit", "Binance")
	if len(res.Common) != 1 || res.Common[0] != "ERC20" {
		t.Errorf("common = %v", res.Common)
	}
	if len(res.Source) != 1 {
		t.Errorf("source withdraw networks = %v", res.Source)
	}
}
