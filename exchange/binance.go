// Package exchange adapts the Binance spot REST API to the collaborator
// interfaces the rest of the program consumes.
package exchange

import (
	"context"
	"fmt"
	"net/http"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"balancedbuy/config"
	"balancedbuy/logger"
	"balancedbuy/models"
)

// Client wraps the go-binance spot client behind the catalog, quote and
// order-submission interfaces. All outbound requests pass through a shared
// rate limiter so a run never trips the exchange request-weight limits.
type Client struct {
	api     *binance.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// NewClient builds the Binance adapter from configuration. Timeouts live on
// the underlying HTTP client; there is no retry logic here. Orders retried
// blindly risk a double spend, so failures propagate to the caller as-is.
func NewClient(cfg *config.Config) *Client {
	log := logger.GetLogger()

	api := binance.NewClient(cfg.Binance.APIKey, cfg.Binance.SecretKey)
	api.HTTPClient = &http.Client{Timeout: cfg.Binance.Timeout}
	if cfg.Binance.Endpoint != "" {
		api.BaseURL = cfg.Binance.Endpoint
	}

	client := &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(cfg.Binance.RequestsPerSecond), cfg.Binance.Burst),
		log:     log,
	}

	log.WithComponent("binance_client").WithFields(logger.Fields{
		"endpoint":            api.BaseURL,
		"timeout":             cfg.Binance.Timeout,
		"requests_per_second": cfg.Binance.RequestsPerSecond,
	}).Info("binance client initialized")

	return client
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// FetchAll retrieves the full exchange catalog. Called once per run.
func (c *Client) FetchAll(ctx context.Context) ([]models.CatalogEntry, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	info, err := c.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("exchange info request failed: %w", err)
	}

	entries := make([]models.CatalogEntry, 0, len(info.Symbols))
	for _, symbol := range info.Symbols {
		entries = append(entries, models.CatalogEntry{
			Symbol:     symbol.Symbol,
			BaseAsset:  symbol.BaseAsset,
			QuoteAsset: symbol.QuoteAsset,
			Status:     symbol.Status,
			Filters:    convertFilters(symbol.Filters),
		})
	}

	c.log.WithComponent("binance_client").WithFields(logger.Fields{
		"symbols": len(entries),
	}).Debug("fetched exchange info")

	return entries, nil
}

// convertFilters carries over the order-sizing fields from Binance's loosely
// typed filter objects. Which filter kind holds minNotional has changed over
// the years (MIN_NOTIONAL vs NOTIONAL), so matching is by field presence
// rather than filter kind.
func convertFilters(raw []map[string]interface{}) []models.SymbolFilter {
	filters := make([]models.SymbolFilter, 0, len(raw))
	for _, f := range raw {
		filter := models.SymbolFilter{}
		if v, ok := f["filterType"].(string); ok {
			filter.Kind = v
		}
		if v, ok := f["minNotional"].(string); ok {
			filter.MinNotional = v
		}
		if v, ok := f["stepSize"].(string); ok {
			filter.StepSize = v
		}
		filters = append(filters, filter)
	}
	return filters
}

// TopOfBook fetches the order book for a market and returns the best bid.
func (c *Client) TopOfBook(ctx context.Context, market string, depth int) (models.Quote, error) {
	if err := c.wait(ctx); err != nil {
		return models.Quote{}, err
	}

	book, err := c.api.NewDepthService().Symbol(market).Limit(depth).Do(ctx)
	if err != nil {
		return models.Quote{}, fmt.Errorf("depth request for %s failed: %w", market, err)
	}
	if len(book.Bids) == 0 {
		return models.Quote{}, fmt.Errorf("no bids in %s order book", market)
	}

	bestBid, err := decimal.NewFromString(book.Bids[0].Price)
	if err != nil {
		return models.Quote{}, fmt.Errorf("invalid bid price %q for %s: %w", book.Bids[0].Price, market, err)
	}
	if bestBid.Sign() <= 0 {
		return models.Quote{}, fmt.Errorf("non-positive bid price %s for %s", bestBid, market)
	}

	return models.Quote{Market: market, BestBid: bestBid}, nil
}

// Validate places a test order: the exchange checks symbol, quantity and
// order type acceptance without effecting a trade.
func (c *Client) Validate(ctx context.Context, market string, quantity decimal.Decimal) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	return c.api.NewCreateOrderService().
		Symbol(market).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		Quantity(quantity.String()).
		Test(ctx)
}

// SubmitMarketBuy places a live market buy. The client order ID is a fresh
// UUID so a resubmitted request can be correlated on the exchange side.
func (c *Client) SubmitMarketBuy(ctx context.Context, market string, quantity decimal.Decimal) (models.OrderFill, error) {
	if err := c.wait(ctx); err != nil {
		return models.OrderFill{}, err
	}

	clientOrderID := uuid.NewString()
	order, err := c.api.NewCreateOrderService().
		Symbol(market).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		Quantity(quantity.String()).
		NewClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return models.OrderFill{}, err
	}

	fill := models.OrderFill{
		Market:        order.Symbol,
		OrderID:       order.OrderID,
		ClientOrderID: order.ClientOrderID,
		Time:          time.UnixMilli(order.TransactTime),
	}
	if v, err := decimal.NewFromString(order.ExecutedQuantity); err == nil {
		fill.ExecutedQty = v
	}
	if v, err := decimal.NewFromString(order.CummulativeQuoteQuantity); err == nil {
		fill.QuoteSpent = v
	}

	return fill, nil
}
