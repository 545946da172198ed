package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"balancedbuy/config"
	"balancedbuy/exchange"
	"balancedbuy/executor"
	"balancedbuy/logger"
	"balancedbuy/market"
	"balancedbuy/models"
	"balancedbuy/notify"
	"balancedbuy/portfolio"
)

const (
	exitOK        = 0
	exitPlanning  = 1
	exitExecution = 2
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	manualPortfolio := flag.String("portfolio", "", "Override configured weights and buy the comma-separated assets with equal weighting")
	liveMode := flag.Bool("live", false, "Submit live orders. When omitted, orders are only validated against the exchange")
	jobMode := flag.Bool("job", false, "Suppress the confirmation step before submitting live orders")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] SPEND_ASSET AMOUNT\n\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Splits AMOUNT of SPEND_ASSET across the configured portfolio weights\nand places market buy orders on Binance.\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(exitPlanning)
	}

	spendAsset := strings.ToUpper(strings.TrimSpace(flag.Arg(0)))
	totalSpend, err := decimal.NewFromString(flag.Arg(1))
	if err != nil || totalSpend.Sign() <= 0 {
		fmt.Fprintf(os.Stderr, "AMOUNT must be a positive decimal, got %q\n", flag.Arg(1))
		os.Exit(exitPlanning)
	}

	cfg, err := config.LoadConfig(config.ResolveConfigPath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(exitPlanning)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(exitPlanning)
	}

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.App.Name,
		"version":     cfg.App.Version,
		"spend_asset": spendAsset,
		"amount":      totalSpend.String(),
		"live":        *liveMode,
		"job":         *jobMode,
	}).Info("starting balanced buy run")

	if !*liveMode {
		fmt.Println()
		fmt.Println("\t================= NOT in Live mode =================")
		fmt.Println("\t*                                                  *")
		fmt.Println("\t*        No actual trades being submitted!         *")
		fmt.Println("\t*                                                  *")
		fmt.Println("\t====================================================")
		fmt.Println()
	}

	weights := cfg.Portfolio.Weights
	if *manualPortfolio != "" {
		weights, err = portfolio.EqualWeights(*manualPortfolio)
		if err != nil {
			log.WithError(err).Error("Invalid manual portfolio")
			os.Exit(exitPlanning)
		}
	}
	if len(weights) == 0 {
		log.Error("Your portfolio weights are not correctly configured")
		os.Exit(exitPlanning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := exchange.NewClient(cfg)

	catalog, err := market.Load(ctx, client, cfg.Exchange.ReserveAssets)
	if err != nil {
		log.WithError(err).Error("Failed to load exchange catalog")
		os.Exit(exitPlanning)
	}

	allocator := portfolio.NewAllocator(catalog, cfg.Execution.BelowMinNotional, cfg.Execution.SpendPrecision)
	allocations, err := allocator.Allocate(weights, totalSpend, spendAsset)
	if err != nil {
		log.WithError(err).Error("Portfolio allocation failed")
		os.Exit(exitPlanning)
	}

	var sink executor.NotificationSink
	if cfg.Notifications.SNS.Enabled {
		publisher, err := notify.NewSNSPublisher(ctx, cfg.Notifications.SNS)
		if err != nil {
			log.WithError(err).Error("Failed to initialize SNS publisher")
			os.Exit(exitPlanning)
		}
		sink = publisher
	}

	confirm := func() (string, error) {
		fmt.Println("\n================================================")
		fmt.Printf("\tLive purchase! Confirm %s/[n]: ", cfg.Execution.ConfirmToken)
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	exec := executor.New(client, client, sink, confirm, executor.Options{
		SpendAsset:      spendAsset,
		Live:            *liveMode,
		SuppressConfirm: *jobMode,
		ConfirmToken:    cfg.Execution.ConfirmToken,
		DepthLimit:      cfg.Binance.DepthLimit,
		ManualAssets:    *manualPortfolio,
	})

	summary, err := exec.Run(ctx, allocations)
	if err != nil {
		if errors.Is(err, models.ErrAborted) {
			fmt.Println("Exiting without submitting orders.")
			os.Exit(exitOK)
		}

		log.WithError(err).Error("Run failed")
		printSummary(summary, *liveMode)

		var rejection *models.OrderRejectedError
		if errors.As(err, &rejection) {
			os.Exit(exitExecution)
		}
		os.Exit(exitPlanning)
	}

	printSummary(summary, *liveMode)

	if cfg.Metrics.CloudWatch.Enabled && *liveMode {
		dims := logger.Fields{"spend_asset": spendAsset}
		logger.PublishRunMetric(ctx, "OrdersPlaced", float64(len(summary.Results)), dims)
		totalSpent, _ := summary.TotalSpent.Float64()
		logger.PublishRunMetric(ctx, "SpendTotal", totalSpent, dims)
	}
}

func printSummary(summary *models.RunSummary, liveMode bool) {
	if summary == nil {
		return
	}
	fmt.Println("\n================================================")
	if text := summary.Text(); text != "" {
		fmt.Println(text)
	}
	fmt.Printf("Total orders placed: %s %s\n", summary.TotalSpent.StringFixed(8), summary.SpendAsset)
	if !liveMode {
		fmt.Println("(NOT in live mode - no actual orders placed!)")
	}
}
