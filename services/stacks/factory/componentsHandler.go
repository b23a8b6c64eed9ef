package factory

import (
	"context"
	"time"

	"github.com/iulianpascalau/devstats-stacks/commonGo"
	"github.com/iulianpascalau/devstats-stacks/services/stacks/aggregator"
	"github.com/iulianpascalau/devstats-stacks/services/stacks/api"
	"github.com/iulianpascalau/devstats-stacks/services/stacks/cache"
	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
	"github.com/iulianpascalau/devstats-stacks/services/stacks/config"
	"github.com/iulianpascalau/devstats-stacks/services/stacks/devstats"
	"github.com/iulianpascalau/devstats-stacks/services/stacks/registry"
	"github.com/iulianpascalau/devstats-stacks/services/stacks/storage"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("factory")

type storer interface {
	LoadComponentStacks(ctx context.Context) ([]common.Stack, error)
	Close() error
}

type componentsHandler struct {
	store      storer
	server     Server
	components ComponentsRefresher
	cacheTime  time.Duration
	cancelFunc context.CancelFunc
}

// NewComponentsHandler creates and wires all inner components of the stacks service
func NewComponentsHandler(cfg config.Config) (*componentsHandler, error) {
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	client, err := devstats.NewClient(devstats.ArgsClient{
		Hostname:   cfg.DevstatsHost,
		Timeout:    time.Duration(cfg.RequestTimeoutInSeconds) * time.Second,
		LogQueries: cfg.LogQueries,
	})
	if err != nil {
		return nil, err
	}

	cacheTime := time.Duration(cfg.CacheTimeInMinutes) * time.Minute
	metricsCache, err := cache.NewMetricsCache(cacheTime)
	if err != nil {
		return nil, err
	}

	agg, err := aggregator.NewAggregator(client, metricsCache, store)
	if err != nil {
		return nil, err
	}

	componentsRegistry, err := registry.NewComponentsRegistry(client, store)
	if err != nil {
		return nil, err
	}

	stacksRegistry, err := registry.NewStacksRegistry(store)
	if err != nil {
		return nil, err
	}

	seed, err := store.LoadComponentStacks(context.Background())
	if err != nil {
		log.Warn("failed to load mirrored stacks", "error", err)
	} else {
		stacksRegistry.Seed(seed)
	}

	serverArgs := api.ArgsWebServer{
		ListenAddress:  cfg.ListenAddress,
		StaticDir:      cfg.StaticDir,
		Components:     componentsRegistry,
		Stacks:         stacksRegistry,
		Aggregator:     agg,
		GeneralHandler: api.CORSMiddleware,
	}

	server, err := api.NewServer(serverArgs)
	if err != nil {
		return nil, err
	}

	return &componentsHandler{
		store:      store,
		server:     server,
		components: componentsRegistry,
		cacheTime:  cacheTime,
	}, nil
}

// GetServer returns the server component
func (ch *componentsHandler) GetServer() Server {
	return ch.server
}

// Start starts the inner components: the HTTP server and the periodic directory refresh
func (ch *componentsHandler) Start() {
	ch.server.Start()

	ctx, cancel := context.WithCancel(context.Background())
	ch.cancelFunc = cancel
	commonGo.CronJobStarter(ctx, func(c context.Context) {
		_ = ch.components.Refresh(c)
	}, ch.cacheTime)
}

// Close closes the inner components
func (ch *componentsHandler) Close() {
	if ch.cancelFunc != nil {
		ch.cancelFunc()
	}
	_ = ch.server.Close()
	_ = ch.store.Close()
}
