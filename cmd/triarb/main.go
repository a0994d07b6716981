// Command triarb runs the triangular-arbitrage detection and execution
// engine described in spec §6: load a configuration file, build the
// tradable catalog and cycle set over REST, subscribe the quote feed, and
// drive the evaluate/execute hot loop until interrupted.
//
// No CLI-flag library appears anywhere in the example corpus — every pack
// repo that takes flags uses the standard library's flag package directly
// (e.g. Song-Mao-bittap-watch/cmd/validator/main.go), so this entry point
// does too rather than introducing cobra or pflag for a two-flag surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"triarb/internal/book"
	"triarb/internal/broker"
	"triarb/internal/broker/restbroker"
	"triarb/internal/broker/simbroker"
	"triarb/internal/config"
	"triarb/internal/execution"
	"triarb/internal/feed"
	"triarb/internal/feed/binancefeed"
	"triarb/internal/logging"
	"triarb/internal/orchestrator"
	"triarb/internal/rest"
	"triarb/internal/rest/binancerest"
	"triarb/internal/signing"
	"triarb/internal/symbol"
)

const snapshotBarrierTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the engine configuration file (required)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: triarb --config <path>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *configPath == "" {
		flag.Usage()
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "triarb: %v\n", err)
		return 1
	}

	log, err := logging.New(cfg.Persistence.TradeLogDir, "info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "triarb: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	restClient := binancerest.New(cfg.Connection.RESTEndpoint, signing.New(cfg.Connection.APIKey, readKey(cfg.Connection.KeyPath)))

	cat, err := orchestrator.LoadCatalog(ctx, restClient)
	if err != nil {
		log.Error("catalog load failed", zap.Error(err))
		return 1
	}

	b := book.New()
	feedClient, brk := wireCollaborators(cfg, cat, b, log)
	o := orchestrator.New(cfg, feedClient, b, log)

	setupSignalHandling(cancel, o, log)

	balance := balanceRefresher(restClient, cfg.Strategy.StartingAsset)
	if err := o.Bootstrap(ctx, cat, brk, balance); err != nil {
		log.Error("bootstrap failed", zap.Error(err))
		return 1
	}
	if err := o.Subscribe(ctx, snapshotBarrierTimeout); err != nil {
		log.Error("subscribe failed", zap.Error(err))
		return 1
	}

	stake := stakeFromBalance(ctx, cfg, balance, log)
	if err := o.Run(ctx, stake, cfg.Strategy.LiveMode); err != nil && err != context.Canceled {
		log.Error("run loop exited", zap.Error(err))
		return 1
	}

	if a := o.Audit(); a != nil {
		log.Info("final audit checksum", zap.String("sha3_256", fmt.Sprintf("%x", a.Checksum())))
	}
	return 0
}

// wireCollaborators always subscribes the real binancefeed quote stream,
// but selects restbroker or simbroker for order entry per
// strategy.live_mode (spec §9's "Simulated vs. live order entry"):
// paper-trading mode still evaluates live prices, it just never submits a
// real order against them.
func wireCollaborators(cfg *config.Config, cat *symbol.Catalog, b *book.Book, log *zap.Logger) (feed.Feed, broker.Broker) {
	f := binancefeed.New(binancefeed.Config{URL: cfg.Connection.MDEndpoint}, b, cat.Registry, log)

	if !cfg.Strategy.LiveMode {
		return f, simbroker.New()
	}

	signer := signing.New(cfg.Connection.APIKey, readKey(cfg.Connection.KeyPath))
	return f, restbroker.New(cfg.Connection.OEEndpoint, signer)
}

func balanceRefresher(restClient rest.Client, startingAsset string) execution.BalanceRefresher {
	return func(ctx context.Context) (float64, error) {
		balances, err := restClient.FetchBalances(ctx)
		if err != nil {
			return 0, err
		}
		return balances[startingAsset], nil
	}
}

func readKey(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func stakeFromBalance(ctx context.Context, cfg *config.Config, balance execution.BalanceRefresher, log *zap.Logger) float64 {
	bal, err := balance(ctx)
	if err != nil {
		log.Warn("balance refresh failed at startup, defaulting stake to 0", zap.Error(err))
		return 0
	}
	return bal * cfg.Strategy.Risk
}

func setupSignalHandling(cancel context.CancelFunc, o *orchestrator.Orchestrator, log *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received interrupt, shutting down", zap.String("signal", sig.String()))
		o.Stop()
		cancel()
	}()
}
