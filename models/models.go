package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// PortfolioWeight is a single target-asset entry: the asset to buy and its
// relative weight. Weights are normalized by the sum of all weights at
// allocation time.
type PortfolioWeight struct {
	Asset  string
	Weight decimal.Decimal
}

// PortfolioWeights preserves the order in which entries appear in the
// configuration file. Submission order follows this order, so a plain map
// (which yaml would otherwise give us) is not enough.
type PortfolioWeights []PortfolioWeight

// UnmarshalYAML decodes a YAML mapping of asset -> weight while keeping
// document order and parsing weights as exact decimals.
func (w *PortfolioWeights) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("portfolio weights must be a mapping of asset to weight")
	}

	seen := make(map[string]struct{}, len(value.Content)/2)
	out := make(PortfolioWeights, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		asset := strings.ToUpper(strings.TrimSpace(value.Content[i].Value))
		if asset == "" {
			return fmt.Errorf("portfolio weights contain an empty asset symbol")
		}
		if _, dup := seen[asset]; dup {
			return fmt.Errorf("duplicate portfolio weight for %s", asset)
		}
		seen[asset] = struct{}{}

		weight, err := decimal.NewFromString(value.Content[i+1].Value)
		if err != nil {
			return fmt.Errorf("invalid weight for %s: %w", asset, err)
		}
		if weight.IsNegative() {
			return fmt.Errorf("weight for %s must not be negative, got %s", asset, weight)
		}
		out = append(out, PortfolioWeight{Asset: asset, Weight: weight})
	}

	*w = out
	return nil
}

// Total returns the sum of all weights.
func (w PortfolioWeights) Total() decimal.Decimal {
	total := decimal.Zero
	for _, entry := range w {
		total = total.Add(entry.Weight)
	}
	return total
}

// SymbolFilter is one exchange filter object for a tradable symbol. Binance
// returns these as an unordered list of loosely typed objects; only the
// fields relevant to order sizing are carried, left empty when the filter
// does not define them.
type SymbolFilter struct {
	Kind        string
	MinNotional string
	StepSize    string
}

// CatalogEntry is one tradable symbol from the exchange catalog fetch.
type CatalogEntry struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	Status     string
	Filters    []SymbolFilter
}

// MarketConstraint holds the order-sizing constraints for a resolved market.
type MarketConstraint struct {
	Symbol      string
	BaseAsset   string
	QuoteAsset  string
	MinNotional decimal.Decimal
	StepSize    decimal.Decimal
}

// SpendAllocation is the planned spend for one portfolio entry. Zero-weight
// entries carry a zero TargetSpend and are skipped at submission time.
type SpendAllocation struct {
	Market      string
	BuyAsset    string
	Weight      decimal.Decimal
	TargetSpend decimal.Decimal
	MinNotional decimal.Decimal
	StepSize    decimal.Decimal
}

// Quote is the top-of-book bid for a market, fetched at submission time and
// never cached across assets.
type Quote struct {
	Market  string
	BestBid decimal.Decimal
}

// OrderFill is what the exchange reports back for a submitted market buy.
type OrderFill struct {
	Market        string
	OrderID       int64
	ClientOrderID string
	ExecutedQty   decimal.Decimal
	QuoteSpent    decimal.Decimal
	Time          time.Time
}

// OrderResult is one processed allocation as it lands in the run summary.
// Spend is quantity*price at the quoted best bid, the same figure the
// pre-submission plan was built on.
type OrderResult struct {
	Market   string
	BuyAsset string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Spend    decimal.Decimal
}

// RunState tracks the orchestrator state machine.
type RunState string

const (
	StatePlanning             RunState = "planning"
	StateAwaitingConfirmation RunState = "awaiting_confirmation"
	StateSubmitting           RunState = "submitting"
	StateCompleted            RunState = "completed"
	StateAbortedByUser        RunState = "aborted_by_user"
	StateFailed               RunState = "failed"
)

// RunSummary accumulates results across one run. It is owned and mutated
// exclusively by the orchestrator, sequentially.
type RunSummary struct {
	SpendAsset string
	State      RunState
	Results    []OrderResult
	TotalSpent decimal.Decimal
}

// Add records a processed allocation and grows the running total.
func (s *RunSummary) Add(r OrderResult) {
	s.Results = append(s.Results, r)
	s.TotalSpent = s.TotalSpent.Add(r.Spend)
}

// Lines renders one human-readable line per processed allocation.
func (s *RunSummary) Lines() []string {
	lines := make([]string, 0, len(s.Results))
	for _, r := range s.Results {
		lines = append(lines, fmt.Sprintf("%s: %s @ %s %s = %s %s",
			r.BuyAsset,
			r.Quantity.String(),
			r.Price.StringFixed(8),
			s.SpendAsset,
			r.Spend.StringFixed(6),
			s.SpendAsset,
		))
	}
	return lines
}

// Text renders the full summary body as used for notifications and the final
// console report.
func (s *RunSummary) Text() string {
	return strings.Join(s.Lines(), "\n")
}
