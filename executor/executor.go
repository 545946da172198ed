// Package executor drives one rebalancing run: confirmation gating, dry-run
// or live submission per allocation, fail-fast error handling and summary
// aggregation.
package executor

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"balancedbuy/logger"
	"balancedbuy/models"
)

// QuoteSource supplies the top of book for a market. Called once per
// non-zero allocation, at submission time.
type QuoteSource interface {
	TopOfBook(ctx context.Context, market string, depth int) (models.Quote, error)
}

// OrderSubmitter places orders against the exchange. Validate is the
// non-committing dry-run call; SubmitMarketBuy effects a real trade.
type OrderSubmitter interface {
	Validate(ctx context.Context, market string, quantity decimal.Decimal) error
	SubmitMarketBuy(ctx context.Context, market string, quantity decimal.Decimal) (models.OrderFill, error)
}

// NotificationSink receives run outcomes for out-of-band delivery.
type NotificationSink interface {
	Publish(ctx context.Context, subject, body string) error
}

// ConfirmFunc reads one confirmation response from the operator.
type ConfirmFunc func() (string, error)

// Options configures a single run.
type Options struct {
	SpendAsset      string
	Live            bool
	SuppressConfirm bool
	ConfirmToken    string
	DepthLimit      int
	// ManualAssets is the raw manual override list, used only to phrase the
	// success notification subject. Empty when weights came from config.
	ManualAssets string
}

// Executor sequences one run through the state machine
// Planning -> AwaitingConfirmation -> Submitting -> Completed, with
// AbortedByUser and Failed as terminal states. Strictly sequential: no
// parallel submission, no internal retries. A market buy retried blindly
// risks a double spend.
type Executor struct {
	quotes  QuoteSource
	orders  OrderSubmitter
	sink    NotificationSink
	confirm ConfirmFunc
	opts    Options
	log     *logger.Log
}

// New wires an executor. sink may be nil when notifications are not
// configured; confirm may be nil only when confirmation can never be
// required (dry-run or suppressed).
func New(quotes QuoteSource, orders OrderSubmitter, sink NotificationSink, confirm ConfirmFunc, opts Options) *Executor {
	return &Executor{
		quotes:  quotes,
		orders:  orders,
		sink:    sink,
		confirm: confirm,
		opts:    opts,
		log:     logger.GetLogger(),
	}
}

// Run processes the allocations in order. The returned summary is valid in
// every outcome; on failure it reports exactly what is known to have
// executed before the failure point. Fills already placed are never rolled
// back: a market order cannot be undone.
func (e *Executor) Run(ctx context.Context, allocations []models.SpendAllocation) (*models.RunSummary, error) {
	log := e.log.WithComponent("executor")

	summary := &models.RunSummary{
		SpendAsset: e.opts.SpendAsset,
		State:      models.StatePlanning,
		TotalSpent: decimal.Zero,
	}

	if e.opts.Live && !e.opts.SuppressConfirm {
		summary.State = models.StateAwaitingConfirmation
		response, err := e.confirm()
		if err != nil {
			log.WithError(err).Warn("failed to read confirmation, aborting")
			summary.State = models.StateAbortedByUser
			return summary, models.ErrAborted
		}
		if response != e.opts.ConfirmToken {
			log.WithFields(logger.Fields{"response": response}).Info("confirmation declined")
			summary.State = models.StateAbortedByUser
			return summary, models.ErrAborted
		}
	}

	summary.State = models.StateSubmitting
	for _, alloc := range allocations {
		if alloc.TargetSpend.IsZero() {
			log.WithFields(logger.Fields{"market": alloc.Market}).Info("skipping market because weight is set to 0")
			continue
		}

		quote, err := e.quotes.TopOfBook(ctx, alloc.Market, e.opts.DepthLimit)
		if err != nil {
			summary.State = models.StateFailed
			return summary, fmt.Errorf("failed to fetch quote for %s: %w", alloc.Market, err)
		}

		quantity, err := Quantize(alloc.Market, alloc.TargetSpend, quote.BestBid, alloc.StepSize)
		if err != nil {
			summary.State = models.StateFailed
			return summary, err
		}

		realized := quantity.Mul(quote.BestBid)

		// Authoritative minimum-notional check: price movement and step
		// rounding can push the realized order below the threshold even
		// when the allocation pre-check passed.
		if realized.LessThan(alloc.MinNotional) {
			summary.State = models.StateFailed
			return summary, &models.BelowMinNotionalError{
				Market:      alloc.Market,
				Asset:       alloc.BuyAsset,
				Spend:       realized,
				MinNotional: alloc.MinNotional,
				Phase:       models.PhaseQuantized,
			}
		}

		log.WithFields(logger.Fields{
			"market":      alloc.Market,
			"quantity":    quantity.String(),
			"price":       quote.BestBid.StringFixed(8),
			"spend":       realized.StringFixed(8),
			"spend_asset": e.opts.SpendAsset,
			"live":        e.opts.Live,
		}).Info("placing order")

		if e.opts.Live {
			fill, err := e.orders.SubmitMarketBuy(ctx, alloc.Market, quantity)
			if err != nil {
				rejection := &models.OrderRejectedError{Market: alloc.Market, Quantity: quantity, Err: err}
				log.WithError(err).WithFields(logger.Fields{"market": alloc.Market}).Error("unable to place order")
				e.notify(ctx, fmt.Sprintf("Unable to place %s order", alloc.Market), err.Error())
				summary.State = models.StateFailed
				return summary, rejection
			}
			log.WithFields(logger.Fields{
				"market":          alloc.Market,
				"order_id":        fill.OrderID,
				"client_order_id": fill.ClientOrderID,
				"executed_qty":    fill.ExecutedQty.String(),
			}).Info("order filled")
		} else {
			if err := e.orders.Validate(ctx, alloc.Market, quantity); err != nil {
				// Dry-run validation outcome is informational only.
				log.WithError(err).WithFields(logger.Fields{"market": alloc.Market}).Warn("test order validation failed")
			} else {
				log.WithFields(logger.Fields{"market": alloc.Market}).Info("test order accepted")
			}
		}

		summary.Add(models.OrderResult{
			Market:   alloc.Market,
			BuyAsset: alloc.BuyAsset,
			Quantity: quantity,
			Price:    quote.BestBid,
			Spend:    realized,
		})
	}

	summary.State = models.StateCompleted

	if e.opts.Live {
		e.notify(ctx, e.successSubject(summary), summary.Text())
	}

	log.WithFields(logger.Fields{
		"orders":      len(summary.Results),
		"total_spent": summary.TotalSpent.StringFixed(8),
		"spend_asset": e.opts.SpendAsset,
		"state":       string(summary.State),
	}).Info("run completed")

	return summary, nil
}

func (e *Executor) successSubject(summary *models.RunSummary) string {
	if e.opts.ManualAssets != "" {
		return fmt.Sprintf("%s %s manual %s buy order completed",
			summary.TotalSpent.StringFixed(4), e.opts.SpendAsset, e.opts.ManualAssets)
	}
	return fmt.Sprintf("%s %s portfolio buy order completed",
		summary.TotalSpent.StringFixed(4), e.opts.SpendAsset)
}

// notify publishes to the sink when one is configured. Delivery failures are
// logged and never alter the run outcome.
func (e *Executor) notify(ctx context.Context, subject, body string) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Publish(ctx, subject, body); err != nil {
		e.log.WithComponent("executor").WithError(err).Warn("failed to publish notification")
	}
}
