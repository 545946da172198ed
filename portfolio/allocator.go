// Package portfolio turns target weights into per-market spend allocations.
package portfolio

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"balancedbuy/config"
	"balancedbuy/logger"
	"balancedbuy/market"
	"balancedbuy/models"
)

// Allocator splits a total spend amount across portfolio entries according to
// their weights and validates each resulting order against the market's
// minimum-notional constraint.
type Allocator struct {
	catalog   *market.Catalog
	policy    string
	precision int32
	log       *logger.Log
}

// NewAllocator creates an allocator over the loaded catalog. policy is one of
// config.PolicyAbort or config.PolicySkip and controls what happens when an
// allocation's target spend lands below the market minimum.
func NewAllocator(catalog *market.Catalog, policy string, precision int32) *Allocator {
	return &Allocator{
		catalog:   catalog,
		policy:    policy,
		precision: precision,
		log:       logger.GetLogger(),
	}
}

// EqualWeights builds a portfolio from a comma separated asset list, every
// entry weighted 1. Used by the manual override flag.
func EqualWeights(assets string) (models.PortfolioWeights, error) {
	weights := models.PortfolioWeights{}
	seen := make(map[string]struct{})
	for _, raw := range strings.Split(assets, ",") {
		asset := strings.ToUpper(strings.TrimSpace(raw))
		if asset == "" {
			continue
		}
		if _, dup := seen[asset]; dup {
			return nil, fmt.Errorf("duplicate asset %s in manual portfolio", asset)
		}
		seen[asset] = struct{}{}
		weights = append(weights, models.PortfolioWeight{Asset: asset, Weight: decimal.NewFromInt(1)})
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("manual portfolio contains no assets")
	}
	return weights, nil
}

// Allocate computes one spend allocation per portfolio entry, preserving the
// order of the weight entries. Target spends are weight/totalWeight of the
// total, rounded to the configured precision before the minimum-notional
// pre-check; the authoritative check happens again after quantization.
//
// Zero-weight entries are inert placeholders: they carry a zero target, skip
// both the catalog lookup and the minimum-notional check, and are excluded
// from submission later.
func (a *Allocator) Allocate(weights models.PortfolioWeights, totalSpend decimal.Decimal, spendAsset string) ([]models.SpendAllocation, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("portfolio weights are not configured")
	}
	if totalSpend.Sign() <= 0 {
		return nil, fmt.Errorf("total spend amount must be positive, got %s", totalSpend)
	}

	totalWeight := weights.Total()
	if totalWeight.IsZero() {
		return nil, models.ErrZeroWeightPortfolio
	}

	log := a.log.WithComponent("allocator")
	spendAsset = strings.ToUpper(spendAsset)

	allocations := make([]models.SpendAllocation, 0, len(weights))
	for _, entry := range weights {
		if entry.Weight.IsZero() {
			allocations = append(allocations, models.SpendAllocation{
				Market:   a.catalog.Symbol(spendAsset, entry.Asset),
				BuyAsset: entry.Asset,
				Weight:   entry.Weight,
			})
			continue
		}

		constraint, err := a.catalog.ResolveMarket(spendAsset, entry.Asset)
		if err != nil {
			return nil, err
		}

		target := entry.Weight.Mul(totalSpend).Div(totalWeight).Round(a.precision)

		log.WithFields(logger.Fields{
			"market":       constraint.Symbol,
			"target_spend": target.String(),
			"spend_asset":  spendAsset,
			"min_notional": constraint.MinNotional.String(),
			"step_size":    constraint.StepSize.String(),
		}).Info("target order size")

		if target.LessThan(constraint.MinNotional) {
			belowMin := &models.BelowMinNotionalError{
				Market:      constraint.Symbol,
				Asset:       entry.Asset,
				Spend:       target,
				MinNotional: constraint.MinNotional,
				Phase:       models.PhaseAllocation,
			}
			if a.policy == config.PolicySkip {
				log.WithFields(logger.Fields{
					"market":       constraint.Symbol,
					"target_spend": target.String(),
					"min_notional": constraint.MinNotional.String(),
				}).Warn("skipping market below minNotional")
				continue
			}
			return nil, belowMin
		}

		allocations = append(allocations, models.SpendAllocation{
			Market:      constraint.Symbol,
			BuyAsset:    entry.Asset,
			Weight:      entry.Weight,
			TargetSpend: target,
			MinNotional: constraint.MinNotional,
			StepSize:    constraint.StepSize,
		})
	}

	return allocations, nil
}
