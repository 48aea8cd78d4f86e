package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Privex/go-exchange/pkg/config"
	"github.com/Privex/go-exchange/pkg/exchange"
	"github.com/Privex/go-exchange/pkg/exchange/adapters"
	"github.com/Privex/go-exchange/pkg/exchange/cache"
	"github.com/Privex/go-exchange/pkg/logging"
	"github.com/Privex/go-exchange/pkg/metrics"
	"github.com/Privex/go-exchange/pkg/server/api"
	"github.com/Privex/go-exchange/pkg/version"
)

var (
	configFile = flag.String("config", "", "Path to configuration file (empty runs built-in defaults)")
	logLevel   = flag.String("log-level", "", "Override the configured log level")
	showVer    = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("exchanged version %s\n", version.Version)
		os.Exit(0)
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("Starting exchanged", "version", version.Version)

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Listen)
			if err := metrics.ServeHTTP(cfg.Metrics.Listen); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- run(ctx, cfg, logger)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
		cancel()
		select {
		case <-errChan:
		case <-time.After(10 * time.Second):
			logger.Warn("Shutdown timed out")
		}
	case err := <-errChan:
		if err != nil {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	c, err := cache.New(cache.Config{
		Backend: cfg.Cache.Backend,
		Redis:   cfg.Cache.Redis,
	})
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	defer c.Close()

	adps, err := buildAdapters(cfg, c, logger)
	if err != nil {
		return err
	}
	logger.Info("Loading exchanges", "count", len(adps), "cache", cfg.Cache.Backend)

	reg := exchange.NewRegistry(exchange.RegistryConfig{
		DisableTetherAliases: !cfg.Exchange.TetherAliasing(),
		TetherAliases:        cfg.Exchange.AliasMap(),
	}, logger)
	if err := reg.Load(ctx, adps...); err != nil {
		// Failed exchanges stay registered pairless and can heal on reload.
		logger.Warn("Some exchanges failed to load", "error", err)
	}
	logger.Info("Exchanges loaded", "exchanges", len(reg.Adapters()), "pairs", len(reg.Pairs()))

	router := exchange.NewRouter(reg, cfg.Exchange.ProxyCoins)
	manager := exchange.NewManager(exchange.ManagerConfig{
		HubCoins:    cfg.Exchange.HubCoins,
		SnapshotTTL: cfg.Cache.SnapshotTTL.ToDuration(),
		FanoutLimit: cfg.Exchange.FanoutLimit,
	}, reg, router, c, logger)

	// Warm the hub snapshot so early requests hit a primed cache.
	go manager.ProxyRates(ctx)

	apiCfg := api.Config{
		Listen:       cfg.Server.Listen,
		ReadTimeout:  cfg.Server.ReadTimeout.ToDuration(),
		WriteTimeout: cfg.Server.WriteTimeout.ToDuration(),
		CacheTTL:     cfg.Server.CacheTTL.ToDuration(),
		CacheSize:    cfg.Server.CacheSize,
		WSEnabled:    cfg.Server.WebSocket.Enabled,
		WSInterval:   cfg.Server.WebSocket.Interval.ToDuration(),
	}
	if cfg.Server.TLS.Enabled {
		apiCfg.TLSCert = cfg.Server.TLS.Cert
		apiCfg.TLSKey = cfg.Server.TLS.Key
	}
	server := api.NewServer(apiCfg, manager, reg, logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			logger.Warn("Server shutdown failed", "error", err)
		}
	}()

	return server.Start()
}

// buildAdapters instantiates the configured exchange adapters, or the full
// built-in set when the config names none.
func buildAdapters(cfg *config.Config, c cache.Cache, logger *logging.Logger) ([]exchange.Adapter, error) {
	opts := adapters.Options{
		Cache:       c,
		Logger:      logger,
		TickerTTL:   cfg.Cache.PairTTL.ToDuration(),
		ProvidesTTL: cfg.Cache.ProvidesTTL.ToDuration(),
	}

	enabled := cfg.Exchange.EnabledAdapters()
	if len(enabled) == 0 {
		return adapters.DefaultAdapters(opts), nil
	}

	out := make([]exchange.Adapter, 0, len(enabled))
	for _, a := range enabled {
		aOpts := opts
		aOpts.BaseURL = a.URL
		aOpts.SkipProvidesCheck = a.SkipProvidesCheck
		for _, s := range a.ExtraPairs {
			p, err := exchange.ParsePair(s)
			if err != nil {
				return nil, fmt.Errorf("invalid extra pair %q for adapter %q: %w", s, a.Code, err)
			}
			aOpts.ExtraPairs = append(aOpts.ExtraPairs, p)
		}

		adp, err := adapters.ByCode(a.Code, aOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to create adapter %q: %w", a.Code, err)
		}
		out = append(out, adp)
	}
	return out, nil
}
