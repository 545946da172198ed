package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Phases at which a minimum-notional check can fail. The allocation-time
// check compares the target spend before quantization; the quantized check
// compares the realized order value and is authoritative.
const (
	PhaseAllocation = "allocation"
	PhaseQuantized  = "quantized"
)

// ErrZeroWeightPortfolio is returned when a non-empty portfolio has weights
// summing to zero.
var ErrZeroWeightPortfolio = errors.New("portfolio weights sum to zero")

// ErrAborted is returned when the user declines the confirmation prompt.
// Nothing has been submitted at that point; callers treat it as a clean exit.
var ErrAborted = errors.New("run aborted before submission")

// UnknownMarketError reports a portfolio entry whose market does not exist on
// the exchange.
type UnknownMarketError struct {
	Market string
}

func (e *UnknownMarketError) Error() string {
	return fmt.Sprintf("%s market not found in exchange info", e.Market)
}

// MissingConstraintError reports a resolved market whose filter list lacks a
// required order-sizing constraint.
type MissingConstraintError struct {
	Market string
	Field  string
}

func (e *MissingConstraintError) Error() string {
	return fmt.Sprintf("%s not found in %s exchange info", e.Field, e.Market)
}

// BelowMinNotionalError reports an order that would land below the exchange
// minimum order value. Spend and MinNotional are both in spend-asset units.
type BelowMinNotionalError struct {
	Market      string
	Asset       string
	Spend       decimal.Decimal
	MinNotional decimal.Decimal
	Phase       string
}

func (e *BelowMinNotionalError) Error() string {
	return fmt.Sprintf("cannot purchase %s: %s order of %s is below the minNotional value of %s (%s check)",
		e.Asset, e.Market, e.Spend, e.MinNotional, e.Phase)
}

// InvalidStepSizeError reports a market with a degenerate quantity step size.
type InvalidStepSizeError struct {
	Market string
	Step   decimal.Decimal
}

func (e *InvalidStepSizeError) Error() string {
	return fmt.Sprintf("invalid step size %s for %s", e.Step, e.Market)
}

// OrderRejectedError wraps an exchange-level rejection of a live market buy.
// By the time it surfaces, earlier fills in the same run stand.
type OrderRejectedError struct {
	Market   string
	Quantity decimal.Decimal
	Err      error
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("unable to place %s order for %s: %v", e.Market, e.Quantity, e.Err)
}

func (e *OrderRejectedError) Unwrap() error { return e.Err }

// IsPlanningError reports whether err belongs to the planning-phase taxonomy:
// detected before any order is placed, so the run aborts with no side
// effects.
func IsPlanningError(err error) bool {
	var unknown *UnknownMarketError
	var missing *MissingConstraintError
	var belowMin *BelowMinNotionalError
	var badStep *InvalidStepSizeError
	return errors.As(err, &unknown) ||
		errors.As(err, &missing) ||
		errors.As(err, &belowMin) ||
		errors.As(err, &badStep) ||
		errors.Is(err, ErrZeroWeightPortfolio)
}
