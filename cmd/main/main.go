package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mtm-hub/src/aggregator"
	"mtm-hub/src/config"
	"mtm-hub/src/logger"
	"mtm-hub/src/observability"
	"mtm-hub/src/quote"
	"mtm-hub/src/server"
	"mtm-hub/src/state"
	"mtm-hub/src/utils"
)

// -----------------------------------------------------------------------------

func main() {

	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	dumpPath := flag.String("dump-config", "", "write the resolved config (defaults applied) to this path and exit")
	flag.Parse()

	// 2. Load config and accounts
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *dumpPath != "" {
		if err := conf.Save(*dumpPath); err != nil {
			fmt.Printf("Error writing config: %v\n", err)
			os.Exit(1)
		}
		return
	}

	appLogger := logger.NewLogger(conf.MConfig, conf.Name)
	defer appLogger.Sync()

	accounts, err := config.LoadAccounts(conf.AccountsFile, conf.Session)
	if err != nil {
		appLogger.Critical("Failed to load accounts: %v", err)
		os.Exit(1)
	}
	appLogger.Info("Loaded %d account(s) from %s", len(accounts.Accounts()), conf.AccountsFile)

	loc, err := conf.Location()
	if err != nil {
		appLogger.Critical("%v", err)
		os.Exit(1)
	}
	clock := utils.NewSystemClock(loc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Setup Components
	store, err := setupStore(conf.MConfig, appLogger)
	if err != nil {
		os.Exit(1)
	}
	defer store.Close()

	responseCache, err := setupCache(ctx, conf.MConfig, clock)
	if err != nil {
		appLogger.Critical("Failed to init cache: %v", err)
		os.Exit(1)
	}
	defer responseCache.Close()

	networkManager := setupNetwork(conf.MConfig)
	metrics := observability.NewMetrics("")

	gate := accounts.TimeGate()
	appLogger.Info("Session: %s (%s)", gate, loc)
	aggState := state.New(store, appLogger.Named("State"))
	aggState.SetHistoryLimit(utils.MaxHistoryPoints(gate.Opening))

	agg := aggregator.New(aggregator.Deps{
		Accounts: accounts,
		Gate:     gate,
		State:    aggState,
		Cache:    responseCache,
		Client:   quote.NewTerminalClient(networkManager, clock, logger.NewLogger(conf.MConfig, "TerminalClient")),
		Clock:    clock,
		Metrics:  metrics,
		Logger:   logger.NewLogger(conf.MConfig, "Aggregator"),

		FetchTimeout: conf.FetchTimeout(),
	})

	// 4. Background poller
	wg := &sync.WaitGroup{}
	bgPoller := setupPoller(conf, agg, accounts, clock, metrics, loc)
	var trigger server.BackgroundTrigger
	if bgPoller != nil {
		trigger = bgPoller
	}

	// 5. Servers
	srv := server.NewHubServer(conf.MConfig, agg, trigger, metrics, logger.NewLogger(conf.MConfig, "HubServer"))
	agg.SetExchanger(srv)
	grpcServer := startServers(srv, agg, bgPoller, conf, appLogger)

	if bgPoller != nil {
		if err := bgPoller.Start(ctx, wg); err != nil {
			appLogger.Critical("Failed to start poller: %v", err)
			os.Exit(1)
		}
	}

	// 6. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()
	if bgPoller != nil {
		bgPoller.Stop()
	}
	wg.Wait()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := srv.Stop(); err != nil {
		appLogger.Error("Server shutdown: %v", err)
	}
	appLogger.Info("Bye")
}
