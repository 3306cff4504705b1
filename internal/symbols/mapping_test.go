package symbols

import (
	"path/filepath"
	"testing"
)

func TestUpsertIsIdempotent(t *testing.T) {
	t.Parallel()
	m := New()

	entry := Mapping{Venue: "Binance", Symbol: "GTC", Canonical: "Gitcoin", Exclude: true}
	m.Upsert(entry)
	m.Upsert(entry)

	if m.Len() != 1 {
		t.Errorf("len = %d, want 1 after double upsert", m.Len())
	}
	got, ok := m.Get("Binance", "GTC")
	if !ok || got.Canonical != "Gitcoin" || !got.Exclude {
		t.Errorf("entry = %+v, %v", got, ok)
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	t.Parallel()
	m := New()

	m.Upsert(Mapping{Venue: "Binance", Symbol: "GTC", Canonical: "Gitcoin"})
	m.Upsert(Mapping{Venue: "Binance", Symbol: "GTC", Canonical: "GTC_BINANCE", Exclude: true})

	got, _ := m.Get("Binance", "GTC")
	if got.Canonical != "GTC_BINANCE" || !got.Exclude {
		t.Errorf("entry = %+v", got)
	}
	if m.Len() != 1 {
		t.Errorf("len = %d", m.Len())
	}
}

func TestGetAfterRemoveReturnsNothing(t *testing.T) {
	t.Parallel()
	m := New()

	m.Upsert(Mapping{Venue: "Binance", Symbol: "GTC", Canonical: "Gitcoin"})
	if !m.Remove("binance", "gtc") {
		t.Fatal("remove should report success")
	}
	if _, ok := m.Get("Binance", "GTC"); ok {
		t.Error("get after remove must return nothing")
	}
	if m.Remove("Binance", "GTC") {
		t.Error("second remove should report nothing removed")
	}
}

func TestLookupIsCaseInsensitiveNamePreserving(t *testing.T) {
	t.Parallel()
	m := New()

	m.Upsert(Mapping{Venue: "Upbit", Symbol: "Btc", Canonical: "BtcCanonical"})
	got, ok := m.Get("UPBIT", "bTC")
	if !ok {
		t.Fatal("lookup should be case-insensitive")
	}
	if got.Canonical != "BtcCanonical" {
		t.Error("canonical name must be case-preserving")
	}
}

func TestCanonicalFallsBackToSymbol(t *testing.T) {
	t.Parallel()
	m := New()

	if got := m.Canonical("Binance", "ETH"); got != "ETH" {
		t.Errorf("Canonical fallback = %q", got)
	}
}

func TestIsExcluded(t *testing.T) {
	t.Parallel()
	m := New()

	m.Upsert(Mapping{Venue: "Binance", Symbol: "GTC", Canonical: "GTC", Exclude: true})
	m.Upsert(Mapping{Venue: "Binance", Symbol: "ETH", Canonical: "ETH"})

	if !m.IsExcluded("Binance", "GTC") {
		t.Error("GTC should be excluded")
	}
	if m.IsExcluded("Binance", "ETH") || m.IsExcluded("Upbit", "GTC") {
		t.Error("only the mapped (venue, symbol) pair is excluded")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "symbol_mappings.json")
	m := New()
	m.Upsert(Mapping{Venue: "Binance", Symbol: "GTC", Canonical: "Gitcoin", Exclude: true, Notes: "different asset on Upbit"})
	m.Upsert(Mapping{Venue: "Upbit", Symbol: "BTC", Canonical: "BTC"})

	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 2 {
		t.Errorf("loaded len = %d", loaded.Len())
	}
	got, ok := loaded.Get("Binance", "GTC")
	if !ok || !got.Exclude || got.Notes == "" {
		t.Errorf("loaded entry = %+v, %v", got, ok)
	}
}

func TestLoadMissingFileYieldsEmpty(t *testing.T) {
	t.Parallel()

	m, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("len = %d, want 0", m.Len())
	}
}
