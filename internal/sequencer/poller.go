// Package sequencer polls each configured rollup's L2 endpoint directly
// for block-number progression, independent of anything observed on L1.
package sequencer

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/chainwatch/rollup-sentinel/pkg/models"
)

const (
	l2RPCTimeout  = 5 * time.Second
	emaSmoothing  = 0.2
)

var pollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentinel_sequencer_poll_errors_total",
	Help: "Total number of failed L2 head queries, by rollup. Failures are not fatal.",
}, []string{"rollup"})

// HeadClient abstracts an L2 node's head query. EVM rollups implement it
// over eth_getBlockByNumber(latest); Starknet implements it over
// its own get_head-equivalent RPC. Either way the poller only ever sees
// (block_number, block_timestamp).
type HeadClient interface {
	Head(ctx context.Context) (blockNumber uint64, blockTimestamp int64, err error)
}

// MetricsRecorder is the subset of Hub a poller writes to.
type MetricsRecorder interface {
	RecordSequencer(rollup models.RollupId, metrics models.SequencerMetrics)
}

// nowFunc is overridden in tests to drive a fixed clock.
type nowFunc func() time.Time

// Poller periodically probes one rollup's L2 sequencer and republishes
// SequencerMetrics into the Hub. A failed poll is logged and counted but
// never stops the loop: failures are not fatal.
type Poller struct {
	rollup       models.RollupId
	client       HeadClient
	hub          MetricsRecorder
	pollInterval time.Duration
	logger       zerolog.Logger
	now          nowFunc

	lastBlock     uint64
	lastTimestamp int64
	lastAdvanceAt time.Time
	blocksPerSec  float64
	haveBaseline  bool
}

// New constructs a Poller for one rollup.
func New(rollup models.RollupId, client HeadClient, hub MetricsRecorder, pollInterval time.Duration, logger zerolog.Logger) *Poller {
	return &Poller{
		rollup:       rollup,
		client:       client,
		hub:          hub,
		pollInterval: pollInterval,
		logger:       logger.With().Str("component", "sequencer_poller").Str("rollup", string(rollup)).Logger(),
		now:          time.Now,
	}
}

// Run polls on a ticker until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, l2RPCTimeout)
	defer cancel()

	now := p.now()
	blockNumber, blockTimestamp, err := p.client.Head(pollCtx)
	if err != nil {
		// latest_block is left unchanged but seconds_since_last_block_advance
		// keeps advancing against wall clock, so a dead sequencer is still
		// detected even if polling itself starts failing.
		pollErrors.WithLabelValues(string(p.rollup)).Inc()
		p.logger.Warn().Err(err).Msg("l2 head query failed")
		if p.lastAdvanceAt.IsZero() {
			p.lastAdvanceAt = now
		}
		p.publish(now)
		return
	}

	if !p.haveBaseline || blockNumber > p.lastBlock {
		if p.haveBaseline && !p.lastAdvanceAt.IsZero() {
			elapsed := now.Sub(p.lastAdvanceAt).Seconds()
			if elapsed > 0 {
				instantRate := float64(blockNumber-p.lastBlock) / elapsed
				p.blocksPerSec = emaSmoothing*instantRate + (1-emaSmoothing)*p.blocksPerSec
			}
		}
		p.lastBlock = blockNumber
		p.lastAdvanceAt = now
		p.haveBaseline = true
	}
	p.lastTimestamp = blockTimestamp

	p.publish(now)
}

func (p *Poller) publish(now time.Time) {
	metrics := models.SequencerMetrics{
		LatestBlock:                  p.lastBlock,
		LatestBlockTimestamp:         p.lastTimestamp,
		BlocksPerSecond:              p.blocksPerSec,
		SecondsSinceLastBlockAdvance: now.Sub(p.lastAdvanceAt).Seconds(),
		LastPolled:                   now.Unix(),
	}
	p.hub.RecordSequencer(p.rollup, metrics)
}
