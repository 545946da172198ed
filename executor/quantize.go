package executor

import (
	"fmt"

	"github.com/shopspring/decimal"

	"balancedbuy/models"
)

// Quantize converts a target spend and a best-bid price into an order
// quantity rounded DOWN to the nearest multiple of the market's step size.
// Rounding up is never allowed: it would overspend beyond the allocated
// budget. The returned quantity therefore always satisfies
// quantity*bestBid <= targetSpend.
func Quantize(market string, targetSpend, bestBid, stepSize decimal.Decimal) (decimal.Decimal, error) {
	if stepSize.Sign() <= 0 {
		return decimal.Zero, &models.InvalidStepSizeError{Market: market, Step: stepSize}
	}
	if bestBid.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("non-positive best bid %s for %s", bestBid, market)
	}
	if targetSpend.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("negative target spend %s for %s", targetSpend, market)
	}

	steps := targetSpend.Div(bestBid).Div(stepSize).Floor()
	quantity := steps.Mul(stepSize)

	// Division is carried out at finite precision; if rounding nudged the
	// quotient across a step boundary, drop one step to restore the budget
	// invariant.
	if quantity.Mul(bestBid).GreaterThan(targetSpend) {
		quantity = quantity.Sub(stepSize)
	}

	return quantity, nil
}
