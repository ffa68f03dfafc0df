// Rollup Commitment Sentinel: a continuously running observer of Ethereum
// L1 activity that tracks the commitment lifecycle of multiple L2 rollups.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chainwatch/rollup-sentinel/internal/api"
	"github.com/chainwatch/rollup-sentinel/internal/chain"
	"github.com/chainwatch/rollup-sentinel/internal/hub"
	"github.com/chainwatch/rollup-sentinel/internal/sequencer"
	"github.com/chainwatch/rollup-sentinel/internal/util"
	"github.com/chainwatch/rollup-sentinel/internal/watcher"
	"github.com/chainwatch/rollup-sentinel/pkg/config"
	"github.com/chainwatch/rollup-sentinel/pkg/models"
)

const shutdownTimeout = 5 * time.Second

func main() {
	logger := util.InitLogger()
	logger.Info().Msg("starting rollup commitment sentinel")

	settings := util.LoadRuntimeSettings("config.toml")
	util.UpdateLogLevel(settings.LogLevel, logger)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration error")
	}

	logger.Info().
		Int("enabled_rollups", len(cfg.Rollups)).
		Dur("stale_filter_timeout", cfg.StaleFilterTimeout).
		Dur("sequencer_down_threshold", cfg.SequencerDownThreshold).
		Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCWS, cfg.StaleFilterTimeout, cfg.L1ChainID, *logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to L1")
	}
	defer chainClient.Close()

	h := hub.New(cfg.BroadcastRingCapacity, *logger)

	tasks := 0

	for _, id := range models.AllRollups {
		rc, enabled := cfg.Rollups[id]
		if !enabled {
			continue
		}

		spec := watcher.BuildSpec(id, rc.ContractAddr)
		w := watcher.New(spec, chainClient, h, *logger)
		tasks++
		go runWatcher(ctx, w, id, *logger)

		if !rc.SequencerEnabled() {
			continue
		}

		headClient, err := buildHeadClient(ctx, id, rc.L2RPC)
		if err != nil {
			logger.Error().Err(err).Str("rollup", string(id)).Msg("failed to build sequencer client, skipping poller")
			continue
		}

		poller := sequencer.New(id, headClient, h, rc.L2PollInterval, *logger)
		tasks++
		go runPoller(ctx, poller, id, *logger)
	}

	logger.Info().Int("tasks", tasks).Msg("watchers and pollers started")

	mux := http.NewServeMux()
	mux.Handle("/", api.NewServer(h, cfg, *logger).Handler())
	mux.Handle("/rollups/stream", api.NewWSHandler(h, *logger))

	httpServer := &http.Server{Addr: settings.HTTPAddr, Handler: mux}
	go func() {
		logger.Info().Str("address", settings.HTTPAddr).Msg("starting http api server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	metricsServer := &http.Server{Addr: settings.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		logger.Info().Str("address", settings.MetricsAddr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown error")
	}

	logger.Info().Msg("shutdown complete")
}

func runWatcher(ctx context.Context, w *watcher.Watcher, id models.RollupId, logger zerolog.Logger) {
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Str("rollup", string(id)).Msg("watcher stopped unexpectedly")
	}
}

func runPoller(ctx context.Context, p *sequencer.Poller, id models.RollupId, logger zerolog.Logger) {
	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Str("rollup", string(id)).Msg("sequencer poller stopped unexpectedly")
	}
}

// buildHeadClient constructs the right HeadClient implementation for a
// rollup's L2 RPC. Starknet speaks its own JSON-RPC method namespace;
// every other supported rollup is EVM-compatible.
func buildHeadClient(ctx context.Context, id models.RollupId, rpcURL string) (sequencer.HeadClient, error) {
	if id == models.Starknet {
		c, err := sequencer.NewStarknetHeadClient(ctx, rpcURL)
		if err != nil {
			return nil, fmt.Errorf("build starknet head client: %w", err)
		}
		return c, nil
	}

	c, err := sequencer.NewEVMHeadClient(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("build evm head client: %w", err)
	}
	return c, nil
}
