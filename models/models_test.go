package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

func TestPortfolioWeightsUnmarshalYAML(t *testing.T) {
	var got struct {
		Weights PortfolioWeights `yaml:"weights"`
	}
	data := "weights:\n  btc: 2\n  eth: 1.5\n  ada: 0\n"
	if err := yaml.Unmarshal([]byte(data), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if len(got.Weights) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got.Weights))
	}
	for i, asset := range []string{"BTC", "ETH", "ADA"} {
		if got.Weights[i].Asset != asset {
			t.Errorf("entry %d = %s, want %s", i, got.Weights[i].Asset, asset)
		}
	}
	if got.Weights[1].Weight.String() != "1.5" {
		t.Errorf("ETH weight = %s, want 1.5", got.Weights[1].Weight)
	}
}

func TestPortfolioWeightsUnmarshalErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not a mapping", "weights:\n  - btc\n"},
		{"duplicate asset", "weights:\n  btc: 1\n  BTC: 2\n"},
		{"negative weight", "weights:\n  btc: -1\n"},
		{"non-numeric weight", "weights:\n  btc: lots\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var got struct {
				Weights PortfolioWeights `yaml:"weights"`
			}
			if err := yaml.Unmarshal([]byte(c.data), &got); err == nil {
				t.Fatalf("expected error for %s", c.name)
			}
		})
	}
}

func TestPortfolioWeightsTotal(t *testing.T) {
	weights := PortfolioWeights{
		{Asset: "BTC", Weight: decimal.RequireFromString("2")},
		{Asset: "ETH", Weight: decimal.RequireFromString("1.5")},
		{Asset: "ADA", Weight: decimal.Zero},
	}
	if weights.Total().String() != "3.5" {
		t.Errorf("total = %s, want 3.5", weights.Total())
	}
}

func TestRunSummaryLines(t *testing.T) {
	summary := &RunSummary{SpendAsset: "BTC", State: StateCompleted}
	summary.Add(OrderResult{
		Market:   "ETHBTC",
		BuyAsset: "ETH",
		Quantity: decimal.RequireFromString("3"),
		Price:    decimal.RequireFromString("0.05"),
		Spend:    decimal.RequireFromString("0.15"),
	})
	summary.Add(OrderResult{
		Market:   "LTCBTC",
		BuyAsset: "LTC",
		Quantity: decimal.RequireFromString("10"),
		Price:    decimal.RequireFromString("0.002"),
		Spend:    decimal.RequireFromString("0.02"),
	})

	if summary.TotalSpent.String() != "0.17" {
		t.Errorf("total spent = %s, want 0.17", summary.TotalSpent)
	}

	lines := summary.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "ETH: 3 @ 0.05000000 BTC = 0.150000 BTC" {
		t.Errorf("unexpected line: %q", lines[0])
	}
	if !strings.Contains(summary.Text(), "LTC: 10 @ 0.00200000 BTC") {
		t.Errorf("unexpected text: %q", summary.Text())
	}
}

func TestIsPlanningError(t *testing.T) {
	planning := []error{
		&UnknownMarketError{Market: "DOGEBTC"},
		&MissingConstraintError{Market: "ETHBTC", Field: "stepSize"},
		&BelowMinNotionalError{Market: "ETHBTC", Phase: PhaseAllocation},
		&InvalidStepSizeError{Market: "ETHBTC"},
		ErrZeroWeightPortfolio,
		fmt.Errorf("wrapped: %w", &UnknownMarketError{Market: "DOGEBTC"}),
	}
	for _, err := range planning {
		if !IsPlanningError(err) {
			t.Errorf("expected planning error: %v", err)
		}
	}

	execution := []error{
		&OrderRejectedError{Market: "ETHBTC", Err: errors.New("rejected")},
		errors.New("plain"),
		ErrAborted,
	}
	for _, err := range execution {
		if IsPlanningError(err) {
			t.Errorf("not a planning error: %v", err)
		}
	}
}

func TestErrorMessagesCarryContext(t *testing.T) {
	belowMin := &BelowMinNotionalError{
		Market:      "ETHBTC",
		Asset:       "ETH",
		Spend:       decimal.RequireFromString("0.00009"),
		MinNotional: decimal.RequireFromString("0.0001"),
		Phase:       PhaseQuantized,
	}
	msg := belowMin.Error()
	for _, want := range []string{"ETHBTC", "ETH", "0.00009", "0.0001", PhaseQuantized} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}

	rejected := &OrderRejectedError{
		Market:   "LTCBTC",
		Quantity: decimal.RequireFromString("10"),
		Err:      errors.New("insufficient balance"),
	}
	if !strings.Contains(rejected.Error(), "LTCBTC") || !strings.Contains(rejected.Error(), "insufficient balance") {
		t.Errorf("rejection message lacks context: %q", rejected.Error())
	}
	if !errors.Is(rejected, rejected.Err) {
		t.Error("OrderRejectedError must unwrap to the exchange error")
	}
}
