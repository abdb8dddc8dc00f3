package main

import (
	"context"
	"time"

	"mtm-hub/src/aggregator"
	"mtm-hub/src/cache"
	"mtm-hub/src/config"
	"mtm-hub/src/helpers"
	"mtm-hub/src/interfaces"
	"mtm-hub/src/logger"
	"mtm-hub/src/models"
	"mtm-hub/src/network"
	"mtm-hub/src/observability"
	"mtm-hub/src/poller"
	"mtm-hub/src/storage"
	"mtm-hub/src/utils"
)

// -----------------------------------------------------------------------------

// setupStore opens the state store, retrying while the database comes up
func setupStore(config *models.MConfig, appLogger *logger.Logger) (interfaces.IStateStore, error) {
	store, err := storage.NewStateStore(config, logger.NewLogger(config, "StateStore"))
	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
		return nil, err
	}

	err = helpers.RetryWithBackoff(appLogger, "db initialize", 5, 500*time.Millisecond, store.Initialize)
	if err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
		return nil, err
	}
	return store, nil
}

// -----------------------------------------------------------------------------

func setupCache(ctx context.Context, config *models.MConfig, clock interfaces.IClock) (interfaces.IResponseCache, error) {
	return cache.NewResponseCache(ctx, config.Cache, clock, logger.NewLogger(config, "ResponseCache"))
}

// -----------------------------------------------------------------------------

// setupNetwork initializes the network manager
func setupNetwork(config *models.MConfig) interfaces.INetworkManager {
	return network.NewHTTPManager(config, logger.NewLogger(config, "NetworkManager"))
}

// -----------------------------------------------------------------------------

// setupPoller returns nil when background polling is disabled
func setupPoller(conf *config.Config, agg *aggregator.Aggregator, accounts interfaces.IAccountDirectory,
	clock interfaces.IClock, metrics *observability.Metrics, loc *time.Location) *poller.Poller {

	if !conf.Poller.Enabled {
		return nil
	}

	opts := poller.Options{
		Interval:      conf.PollInterval(),
		CheckInterval: conf.CheckInterval(),
		JobTimeout:    conf.FetchTimeout(),
		Concurrency:   conf.Network.ConcurrentRequests,
	}
	if conf.Session.SkipHolidays {
		opts.Calendar = utils.GetCalendar(conf.Session.Exchange, loc)
	}

	return poller.New(agg, accounts, agg.Gate, clock, metrics, logger.NewLogger(conf.MConfig, "Poller"), opts)
}
