// Package main runs the liquidation monitor against a synthetic-asset
// engine: it sweeps every open debt position on an interval and publishes
// a liquidation opportunity event for each position observed below the
// minimum health factor.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/archon-research/synth-engine/db/migrator"
	"github.com/archon-research/synth-engine/internal/adapters/outbound/chainlink"
	"github.com/archon-research/synth-engine/internal/adapters/outbound/coingecko"
	"github.com/archon-research/synth-engine/internal/adapters/outbound/memory"
	"github.com/archon-research/synth-engine/internal/adapters/outbound/postgres"
	"github.com/archon-research/synth-engine/internal/adapters/outbound/redis"
	"github.com/archon-research/synth-engine/internal/adapters/outbound/sns"
	"github.com/archon-research/synth-engine/internal/adapters/outbound/telemetry"
	"github.com/archon-research/synth-engine/internal/pkg/env"
	"github.com/archon-research/synth-engine/internal/ports/outbound"
	"github.com/archon-research/synth-engine/internal/services/engine"
	"github.com/archon-research/synth-engine/internal/services/liqmonitor"
)

// Mainnet collateral assets and their Chainlink USD feeds.
var (
	wethAddress = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	wbtcAddress = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")

	ethUSDFeed = common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419")
	btcUSDFeed = common.HexToAddress("0xF4030086522a5bEEa4988F8cA5B36dbC97BeE88c")
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics are optional: with no OTLP endpoint the no-op provider stays.
	shutdownMetrics, err := telemetry.InitMetrics(ctx, telemetry.MetricConfig{
		ServiceName:    "liquidation-watcher",
		ServiceVersion: env.Get("SERVICE_VERSION", "dev"),
		Environment:    env.Get("ENVIRONMENT", "local"),
		OTLPEndpoint:   env.Get("OTLP_ENDPOINT", ""),
	})
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			logger.Error("failed to shut down metrics", "error", err)
		}
	}()

	metrics, err := telemetry.NewMetrics("liquidation-watcher")
	if err != nil {
		logger.Error("failed to create metrics recorder", "error", err)
		os.Exit(1)
	}

	oracle, err := buildOracle(ctx, logger)
	if err != nil {
		logger.Error("failed to build price oracle", "error", err)
		os.Exit(1)
	}

	sink, err := buildEventSink(ctx, logger)
	if err != nil {
		logger.Error("failed to build event sink", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("failed to close event sink", "error", err)
		}
	}()

	snapshots, err := buildSnapshotRepository(ctx, logger)
	if err != nil {
		logger.Error("failed to build snapshot repository", "error", err)
		os.Exit(1)
	}

	custody := common.HexToAddress(env.Get("CUSTODY_ADDRESS",
		"0x00000000000000000000000000000000000C0DE5"))

	eng, err := engine.New(engine.Config{
		Assets:    []common.Address{wethAddress, wbtcAddress},
		Oracles:   []outbound.PriceOracle{oracle, oracle},
		Bank:      memory.NewBank(custody),
		Synth:     memory.NewSyntheticToken(custody),
		Custody:   custody,
		Snapshots: snapshots,
		Events:    sink,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	interval, err := time.ParseDuration(env.Get("SCAN_INTERVAL", "15s"))
	if err != nil {
		logger.Error("invalid SCAN_INTERVAL", "error", err)
		os.Exit(1)
	}

	monitor, err := liqmonitor.New(eng, sink, metrics, liqmonitor.Config{
		Interval: interval,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create liquidation monitor", "error", err)
		os.Exit(1)
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down...", "signal", sig)
		cancel()
	}()

	logger.Info("starting liquidation watcher", "interval", interval)
	if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("monitor stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// buildOracle selects the price source: Chainlink feeds over an Ethereum
// RPC endpoint when ETH_RPC_URL is set, the CoinGecko API otherwise.
// With REDIS_ADDR set, the chosen source is wrapped in a read-through cache.
func buildOracle(ctx context.Context, logger *slog.Logger) (outbound.PriceOracle, error) {
	var upstream outbound.PriceOracle

	if rpcURL := env.Get("ETH_RPC_URL", ""); rpcURL != "" {
		client, err := ethclient.DialContext(ctx, rpcURL)
		if err != nil {
			return nil, err
		}
		upstream, err = chainlink.NewOracle(client, map[common.Address]common.Address{
			wethAddress: ethUSDFeed,
			wbtcAddress: btcUSDFeed,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("using chainlink price feeds", "rpc", rpcURL)
	} else {
		cfg := coingecko.ConfigDefaults()
		cfg.APIKey = env.Get("COINGECKO_API_KEY", "")
		cfg.Logger = logger
		cfg.AssetIDs = map[common.Address]string{
			wethAddress: "ethereum",
			wbtcAddress: "wrapped-bitcoin",
		}
		var err error
		upstream, err = coingecko.NewOracle(cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("using coingecko price API")
	}

	redisAddr := env.Get("REDIS_ADDR", "")
	if redisAddr == "" {
		return upstream, nil
	}

	cacheCfg := redis.ConfigDefaults()
	cacheCfg.Addr = redisAddr
	cacheCfg.Password = env.Get("REDIS_PASSWORD", "")
	if ttl := env.Get("PRICE_CACHE_TTL", ""); ttl != "" {
		parsed, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, err
		}
		cacheCfg.TTL = parsed
	}

	cache, err := redis.NewPriceCache(cacheCfg, upstream, logger)
	if err != nil {
		return nil, err
	}
	if err := cache.Ping(ctx); err != nil {
		return nil, err
	}
	logger.Info("price cache enabled", "addr", redisAddr, "ttl", cacheCfg.TTL)
	return cache, nil
}

// buildEventSink publishes to SNS when both topic ARNs are configured and
// falls back to an in-memory sink otherwise.
func buildEventSink(ctx context.Context, logger *slog.Logger) (outbound.EventSink, error) {
	positionsARN := env.Get("SNS_POSITIONS_TOPIC_ARN", "")
	liquidationsARN := env.Get("SNS_LIQUIDATIONS_TOPIC_ARN", "")

	if positionsARN == "" || liquidationsARN == "" {
		logger.Warn("SNS topics not configured, events stay in memory")
		return memory.NewEventSink(), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	cfg := sns.ConfigDefaults()
	cfg.Topics = sns.TopicARNs{
		Positions:    positionsARN,
		Liquidations: liquidationsARN,
	}
	cfg.Logger = logger

	sink, err := sns.NewEventSink(awssns.NewFromConfig(awsCfg), cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("publishing events to SNS",
		"positionsTopic", shortARN(positionsARN),
		"liquidationsTopic", shortARN(liquidationsARN))
	return sink, nil
}

// buildSnapshotRepository persists snapshots to PostgreSQL when
// DATABASE_URL is set, applying pending migrations first. Snapshots are
// optional: without a database the engine simply skips them.
func buildSnapshotRepository(ctx context.Context, logger *slog.Logger) (outbound.SnapshotRepository, error) {
	databaseURL := env.Get("DATABASE_URL", "")
	if databaseURL == "" {
		logger.Warn("DATABASE_URL not set, snapshots disabled")
		return nil, nil
	}

	pool, err := postgres.OpenPool(ctx, postgres.DefaultDBConfig(databaseURL))
	if err != nil {
		return nil, err
	}

	if err := migrator.New(pool, env.Get("MIGRATIONS_DIR", "db/migrations")).ApplyAll(ctx); err != nil {
		return nil, err
	}

	repo, err := postgres.NewSnapshotRepository(pool, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("snapshot persistence enabled")
	return repo, nil
}

func shortARN(arn string) string {
	if idx := strings.LastIndex(arn, ":"); idx >= 0 {
		return arn[idx+1:]
	}
	return arn
}
