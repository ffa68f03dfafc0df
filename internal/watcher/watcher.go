package watcher

import (
	"context"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/chainwatch/rollup-sentinel/pkg/models"
)

var (
	eventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_watcher_events_ingested_total",
		Help: "Total number of decoded rollup events handed to the hub, by rollup and event type.",
	}, []string{"rollup", "event_type"})

	decodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_watcher_decode_errors_total",
		Help: "Total number of logs whose batch identifier failed to decode, by rollup.",
	}, []string{"rollup"})

	logsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_watcher_unhandled_logs_total",
		Help: "Total number of logs received with no registered handler, by rollup.",
	}, []string{"rollup"})
)

// LogSource is the subset of Client's contract a watcher needs: a log
// subscription and a block-timestamp lookup. Exists so tests can supply a
// fake without standing up a real WebSocket connection.
type LogSource interface {
	SubscribeLogs(ctx context.Context, query ethereum.FilterQuery, out chan<- types.Log) error
	GetBlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error)
}

// EventRecorder is the subset of Hub a watcher writes to.
type EventRecorder interface {
	RecordEvent(models.RollupEvent)
}

// Watcher runs one rollup's ingestion pipeline: subscribe, decode, submit.
// Event handling within a single watcher is serial, preserving per-rollup
// ordering; independent watchers run concurrently with each other.
type Watcher struct {
	spec   RollupSpec
	chain  LogSource
	hub    EventRecorder
	logger zerolog.Logger
}

// New constructs a Watcher for one rollup.
func New(spec RollupSpec, chain LogSource, hub EventRecorder, logger zerolog.Logger) *Watcher {
	return &Watcher{
		spec:   spec,
		chain:  chain,
		hub:    hub,
		logger: logger.With().Str("component", "watcher").Str("rollup", string(spec.Rollup)).Logger(),
	}
}

// Run subscribes to this watcher's filter set and processes logs serially
// until ctx is cancelled. Transport errors are invisible here: the Chain
// Client hides reconnects behind SubscribeLogs.
func (w *Watcher) Run(ctx context.Context) error {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{w.spec.Address},
		Topics:    [][]common.Hash{w.spec.Topics()},
	}

	logsCh := make(chan types.Log, 256)
	errCh := make(chan error, 1)

	go func() {
		errCh <- w.chain.SubscribeLogs(ctx, query, logsCh)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case log, ok := <-logsCh:
			if !ok {
				return nil
			}
			w.handle(ctx, log)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, log types.Log) {
	if len(log.Topics) == 0 {
		return
	}

	spec, ok := w.spec.Events[log.Topics[0]]
	if !ok {
		logsSkipped.WithLabelValues(string(w.spec.Rollup)).Inc()
		return
	}

	batchNumber, err := spec.Decode(log)
	if err != nil {
		decodeErrors.WithLabelValues(string(w.spec.Rollup)).Inc()
		w.logger.Warn().
			Err(err).
			Str("tx_hash", log.TxHash.Hex()).
			Str("event_type", string(spec.EventType)).
			Msg("batch identifier decode failed, forwarding event without status update")
	}

	timestamp, err := w.chain.GetBlockTimestamp(ctx, log.BlockNumber)
	if err != nil {
		w.logger.Error().
			Err(err).
			Uint64("block_number", log.BlockNumber).
			Msg("failed to resolve block timestamp, discarding log")
		return
	}

	event := models.RollupEvent{
		Rollup:      w.spec.Rollup,
		EventType:   spec.EventType,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		BatchNumber: batchNumber,
		Timestamp:   timestamp,
	}

	eventsIngested.WithLabelValues(string(w.spec.Rollup), string(spec.EventType)).Inc()
	w.hub.RecordEvent(event)
}
