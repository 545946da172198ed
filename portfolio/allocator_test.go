package portfolio

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"balancedbuy/config"
	"balancedbuy/market"
	"balancedbuy/models"
)

type staticSource struct {
	entries []models.CatalogEntry
}

func (s *staticSource) FetchAll(ctx context.Context) ([]models.CatalogEntry, error) {
	return s.entries, nil
}

func entry(symbol, base, quote, minNotional, stepSize string) models.CatalogEntry {
	return models.CatalogEntry{
		Symbol:     symbol,
		BaseAsset:  base,
		QuoteAsset: quote,
		Filters: []models.SymbolFilter{
			{Kind: "LOT_SIZE", StepSize: stepSize},
			{Kind: "MIN_NOTIONAL", MinNotional: minNotional},
		},
	}
}

func testCatalog(t *testing.T) *market.Catalog {
	t.Helper()
	src := &staticSource{entries: []models.CatalogEntry{
		entry("ETHBTC", "ETH", "BTC", "0.0001", "0.001"),
		entry("LTCBTC", "LTC", "BTC", "0.0001", "0.01"),
		entry("XRPBTC", "XRP", "BTC", "0.0001", "1"),
		entry("ADABTC", "ADA", "BTC", "0.01", "1"),
	}}
	catalog, err := market.Load(context.Background(), src, []string{"USDT"})
	if err != nil {
		t.Fatalf("catalog load: %v", err)
	}
	return catalog
}

func weights(pairs ...interface{}) models.PortfolioWeights {
	var w models.PortfolioWeights
	for i := 0; i+1 < len(pairs); i += 2 {
		w = append(w, models.PortfolioWeight{
			Asset:  pairs[i].(string),
			Weight: decimal.RequireFromString(pairs[i+1].(string)),
		})
	}
	return w
}

func TestAllocateSplitsByWeight(t *testing.T) {
	a := NewAllocator(testCatalog(t), config.PolicyAbort, 8)

	allocs, err := a.Allocate(weights("ETH", "1", "LTC", "1", "XRP", "2"), decimal.RequireFromString("100"), "BTC")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if len(allocs) != 3 {
		t.Fatalf("expected 3 allocations, got %d", len(allocs))
	}

	want := []struct {
		market string
		spend  string
	}{
		{"ETHBTC", "25"},
		{"LTCBTC", "25"},
		{"XRPBTC", "50"},
	}
	for i, w := range want {
		if allocs[i].Market != w.market {
			t.Errorf("allocation %d market = %s, want %s", i, allocs[i].Market, w.market)
		}
		if !allocs[i].TargetSpend.Equal(decimal.RequireFromString(w.spend)) {
			t.Errorf("allocation %d target = %s, want %s", i, allocs[i].TargetSpend, w.spend)
		}
	}
}

func TestAllocateSumMatchesTotal(t *testing.T) {
	a := NewAllocator(testCatalog(t), config.PolicyAbort, 8)

	total := decimal.RequireFromString("1.5")
	allocs, err := a.Allocate(weights("ETH", "1", "LTC", "1", "XRP", "1"), total, "BTC")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	sum := decimal.Zero
	for _, alloc := range allocs {
		sum = sum.Add(alloc.TargetSpend)
	}
	// One rounding unit per entry at 8 fractional digits.
	tolerance := decimal.New(int64(len(allocs)), -8)
	if sum.Sub(total).Abs().GreaterThan(tolerance) {
		t.Errorf("allocated sum %s too far from total %s", sum, total)
	}
}

func TestAllocateZeroWeightIsInert(t *testing.T) {
	a := NewAllocator(testCatalog(t), config.PolicyAbort, 8)

	// DOGE has no BTC market and ADA's minimum is far above its share, but
	// at weight 0 neither may fail the run.
	allocs, err := a.Allocate(weights("ETH", "1", "DOGE", "0", "ADA", "0"), decimal.RequireFromString("1"), "BTC")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if len(allocs) != 3 {
		t.Fatalf("expected 3 allocations, got %d", len(allocs))
	}
	if !allocs[1].TargetSpend.IsZero() || !allocs[2].TargetSpend.IsZero() {
		t.Errorf("zero-weight entries must carry a zero target spend")
	}
}

func TestAllocateZeroTotalWeight(t *testing.T) {
	a := NewAllocator(testCatalog(t), config.PolicyAbort, 8)

	_, err := a.Allocate(weights("ETH", "0", "LTC", "0"), decimal.RequireFromString("1"), "BTC")
	if !errors.Is(err, models.ErrZeroWeightPortfolio) {
		t.Fatalf("expected ErrZeroWeightPortfolio, got %v", err)
	}
}

func TestAllocateEmptyPortfolio(t *testing.T) {
	a := NewAllocator(testCatalog(t), config.PolicyAbort, 8)

	if _, err := a.Allocate(nil, decimal.RequireFromString("1"), "BTC"); err == nil {
		t.Fatal("expected error for empty portfolio")
	}
}

func TestAllocateUnknownMarketIsFatal(t *testing.T) {
	a := NewAllocator(testCatalog(t), config.PolicyAbort, 8)

	_, err := a.Allocate(weights("ETH", "1", "DOGE", "1"), decimal.RequireFromString("1"), "BTC")
	var unknown *models.UnknownMarketError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownMarketError, got %v", err)
	}
}

func TestAllocateBelowMinNotionalAborts(t *testing.T) {
	a := NewAllocator(testCatalog(t), config.PolicyAbort, 8)

	// ADA's share of 0.004 is below its 0.01 minimum.
	_, err := a.Allocate(weights("ETH", "1", "ADA", "1"), decimal.RequireFromString("0.008"), "BTC")
	var belowMin *models.BelowMinNotionalError
	if !errors.As(err, &belowMin) {
		t.Fatalf("expected BelowMinNotionalError, got %v", err)
	}
	if belowMin.Market != "ADABTC" {
		t.Errorf("unexpected market: %s", belowMin.Market)
	}
	if belowMin.Phase != models.PhaseAllocation {
		t.Errorf("unexpected phase: %s", belowMin.Phase)
	}
}

func TestAllocateBelowMinNotionalSkipPolicy(t *testing.T) {
	a := NewAllocator(testCatalog(t), config.PolicySkip, 8)

	allocs, err := a.Allocate(weights("ETH", "1", "ADA", "1"), decimal.RequireFromString("0.008"), "BTC")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if len(allocs) != 1 {
		t.Fatalf("expected ADA to be skipped, got %d allocations", len(allocs))
	}
	if allocs[0].Market != "ETHBTC" {
		t.Errorf("unexpected surviving market: %s", allocs[0].Market)
	}
}

func TestEqualWeights(t *testing.T) {
	w, err := EqualWeights("btc, eth ,LTC")
	if err != nil {
		t.Fatalf("EqualWeights failed: %v", err)
	}
	if len(w) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(w))
	}
	for i, asset := range []string{"BTC", "ETH", "LTC"} {
		if w[i].Asset != asset {
			t.Errorf("entry %d asset = %s, want %s", i, w[i].Asset, asset)
		}
		if !w[i].Weight.Equal(decimal.NewFromInt(1)) {
			t.Errorf("entry %d weight = %s, want 1", i, w[i].Weight)
		}
	}

	if _, err := EqualWeights(""); err == nil {
		t.Error("expected error for empty asset list")
	}
	if _, err := EqualWeights("BTC,BTC"); err == nil {
		t.Error("expected error for duplicate assets")
	}
}
