package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/catalog-gateway/internal/accessmethods"
	"github.com/mohammed-shakir/catalog-gateway/internal/auth"
	"github.com/mohammed-shakir/catalog-gateway/internal/backend"
	"github.com/mohammed-shakir/catalog-gateway/internal/cache/redisstore"
	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/request"
	"github.com/mohammed-shakir/catalog-gateway/internal/cmr/transform"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/config"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/executor"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/health"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/httpclient"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/observability"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/router"
	"github.com/mohammed-shakir/catalog-gateway/internal/core/server"
	"github.com/mohammed-shakir/catalog-gateway/internal/granules"
	"github.com/mohammed-shakir/catalog-gateway/internal/logger"
	"github.com/mohammed-shakir/catalog-gateway/internal/metrics"
	"github.com/mohammed-shakir/catalog-gateway/internal/scenarios"
	_ "github.com/mohammed-shakir/catalog-gateway/internal/scenarios/baseline"
	_ "github.com/mohammed-shakir/catalog-gateway/internal/scenarios/cache"
	"github.com/mohammed-shakir/catalog-gateway/internal/secrets"
	"github.com/mohammed-shakir/catalog-gateway/internal/state"
	"github.com/mohammed-shakir/catalog-gateway/internal/updates"
	"github.com/mohammed-shakir/catalog-gateway/pkg/invalidation/kafka"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	// overriding scenario via flag
	scenarioFlag := flag.String("scenario", "", "scenario name")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		// logger not built yet
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		return 1
	}
	if *scenarioFlag != "" {
		cfg.Scenario = strings.TrimSpace(*scenarioFlag)
	}
	if cfg.Version == "dev" {
		cfg.Version = Version
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Scenario:  cfg.Scenario,
		Component: "gateway",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	p := metrics.Init(metrics.Config{
		Enabled: cfg.MetricsEnabled,
		Build: metrics.BuildInfo{
			Version:   cfg.Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	observability.Init(p.Registerer(), cfg.MetricsEnabled)
	observability.SetScenario(cfg.Scenario)

	appLog.Info("starting gateway",
		"addr", cfg.Addr,
		"version", cfg.Version,
		"cmr", cfg.CMRHost,
		"api", cfg.APIHost,
		"scenario", cfg.Scenario)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider := secrets.Env()
	if cfg.SecretsFile != "" {
		provider = secrets.File(cfg.SecretsFile)
	}
	bridge := auth.New(provider)

	client := httpclient.NewOutbound(cfg.UpstreamTimeout)
	exec := executor.New(appLog, client, bridge)

	rc, err := redisstore.New(ctx, cfg.RedisAddr)
	if err != nil {
		appLog.Error("redis client setup failed", "err", err)
		return 1
	}
	defer func() { _ = rc.Close() }()

	store := state.NewTiered(
		state.NewMemoryStore(cfg.MetadataLRUSize, cfg.MetadataTTL),
		state.NewRedisStore(rc, cfg.MetadataTTL),
		appLog,
	)

	search, err := scenarios.New(cfg.Scenario, scenarios.Deps{
		Config:   cfg,
		Logger:   appLog,
		Exec:     exec,
		Verifier: bridge,
		KV:       rc,
	})
	if err != nil {
		appLog.Error("scenario setup failed", "err", err)
		return 1
	}

	sink := updates.Fanout{router.StoreSink(store)}
	if cfg.UpdatesEnabled {
		pub, err := updates.NewPublisher(cfg.Brokers(), cfg.UpdatesTopic, cfg.UpdatesQueue, appLog)
		if err != nil {
			appLog.Error("updates publisher setup failed", "err", err)
			return 1
		}
		defer func() { _ = pub.Close() }()
		sink = append(sink, pub)
	}

	cmr := request.New(cfg.CMRHost, appLog)
	api := request.New(cfg.APIHost, appLog)

	resolver := accessmethods.NewResolver(
		backend.New(cfg.APIHost, client, appLog),
		accessmethods.WithSink(sink),
		accessmethods.WithWorkers(cfg.ResolveMaxWorkers),
		accessmethods.WithChunkThreshold(cfg.OrderChunkSize),
		accessmethods.WithLogger(appLog),
	)
	fetcher := granules.NewFetcher(exec, cmr, api,
		granules.WithFetcherSink(sink),
		granules.WithFetcherWorkers(cfg.ResolveMaxWorkers),
		granules.WithFetcherLogger(appLog),
	)

	handlers := router.New(router.Deps{
		Logger:   appLog,
		Search:   search,
		CMR:      cmr,
		Store:    store,
		Resolver: resolver,
		Fetcher:  fetcher,
		Transform: transform.Config{
			CMRHost:          cfg.CMRHost,
			ThumbnailHeight:  cfg.ThumbnailSize.Height,
			ThumbnailWidth:   cfg.ThumbnailSize.Width,
			UnavailableImage: cfg.UnavailableImage,
		},
		DefaultTags: cfg.DefaultTags,
	})

	opts := server.Options{Ready: map[string]health.Pinger{"redis": rc}}
	if cfg.MetricsEnabled {
		opts.Metrics = p.Handler()
	}

	invCfg := kafka.FromEnv()
	runner := kafka.New(invCfg, store, kafka.Options{Logger: appLog, Register: p.Registerer()})
	if err := runner.Start(ctx); err != nil {
		appLog.Error("invalidation runner failed to start", "err", err)
		return 1
	}
	defer runner.Stop()
	if invCfg.Enabled && invCfg.Driver == kafka.DriverKafka {
		opts.Invalidate = runner
	}

	if err := server.Run(ctx, cfg, appLog, server.Handler(appLog, handlers, opts)); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
