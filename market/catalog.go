// Package market holds the in-memory exchange catalog: which symbols are
// tradable and the order-sizing constraints each one carries.
package market

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"balancedbuy/logger"
	"balancedbuy/models"
)

// Source provides the full exchange catalog. It is called exactly once per
// run; all lookups are served from the in-memory result.
type Source interface {
	FetchAll(ctx context.Context) ([]models.CatalogEntry, error)
}

// Catalog answers market lookups for one run.
type Catalog struct {
	entries  map[string]models.CatalogEntry
	reserves map[string]struct{}
	log      *logger.Log
}

// Load fetches the exchange catalog through src and indexes it by symbol.
// reserveAssets configures the pairing rule used by Symbol; the rule is
// exchange specific and must not be hardcoded by callers.
func Load(ctx context.Context, src Source, reserveAssets []string) (*Catalog, error) {
	log := logger.GetLogger()

	entries, err := src.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exchange catalog: %w", err)
	}

	catalog := &Catalog{
		entries:  make(map[string]models.CatalogEntry, len(entries)),
		reserves: make(map[string]struct{}, len(reserveAssets)),
		log:      log,
	}
	for _, entry := range entries {
		catalog.entries[strings.ToUpper(entry.Symbol)] = entry
	}
	for _, asset := range reserveAssets {
		catalog.reserves[strings.ToUpper(asset)] = struct{}{}
	}

	log.WithComponent("market_catalog").WithFields(logger.Fields{
		"symbols":        len(catalog.entries),
		"reserve_assets": reserveAssets,
	}).Info("exchange catalog loaded")

	return catalog, nil
}

// Symbol builds the market symbol for buying buyAsset with spendAsset. When
// the buy asset is a reserve asset the pairing is reversed: the spend asset
// becomes the base of the market instead of its quote.
func (c *Catalog) Symbol(spendAsset, buyAsset string) string {
	spendAsset = strings.ToUpper(spendAsset)
	buyAsset = strings.ToUpper(buyAsset)
	if _, ok := c.reserves[buyAsset]; ok {
		return spendAsset + buyAsset
	}
	return buyAsset + spendAsset
}

// ResolveMarket looks up the market for the given asset pair and extracts its
// minimum-notional and step-size constraints from the exchange filter list.
func (c *Catalog) ResolveMarket(spendAsset, buyAsset string) (models.MarketConstraint, error) {
	symbol := c.Symbol(spendAsset, buyAsset)

	entry, ok := c.entries[symbol]
	if !ok {
		return models.MarketConstraint{}, &models.UnknownMarketError{Market: symbol}
	}

	// The filter list is unordered and loosely typed; scan for the two
	// fields order sizing depends on.
	var minNotional, stepSize string
	for _, filter := range entry.Filters {
		if filter.MinNotional != "" {
			minNotional = filter.MinNotional
		}
		if filter.StepSize != "" {
			stepSize = filter.StepSize
		}
	}
	if minNotional == "" {
		return models.MarketConstraint{}, &models.MissingConstraintError{Market: symbol, Field: "minNotional"}
	}
	if stepSize == "" {
		return models.MarketConstraint{}, &models.MissingConstraintError{Market: symbol, Field: "stepSize"}
	}

	minNotionalDec, err := decimal.NewFromString(minNotional)
	if err != nil {
		return models.MarketConstraint{}, fmt.Errorf("invalid minNotional %q for %s: %w", minNotional, symbol, err)
	}
	stepSizeDec, err := decimal.NewFromString(stepSize)
	if err != nil {
		return models.MarketConstraint{}, fmt.Errorf("invalid stepSize %q for %s: %w", stepSize, symbol, err)
	}

	return models.MarketConstraint{
		Symbol:      symbol,
		BaseAsset:   entry.BaseAsset,
		QuoteAsset:  entry.QuoteAsset,
		MinNotional: minNotionalDec,
		StepSize:    stepSizeDec,
	}, nil
}
