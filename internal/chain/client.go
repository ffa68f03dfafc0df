// Package chain wraps the L1 WebSocket connection the sentinel depends on
// for log subscription: reconnect-with-backoff, stale-filter detection, and
// a memoized block-timestamp lookup shared by every rollup watcher.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

const (
	blockTimestampCacheSize = 1024
	subscribeTimeout        = 10 * time.Second
	reconnectInitialBackoff = 1 * time.Second
	reconnectMaxBackoff     = 30 * time.Second
)

// logSubscriber is the subset of ethclient.Client's contract the chain
// client depends on: log/head subscription plus a header lookup. Exists so
// tests can drive reconnect and staleness behavior against a fake
// transport instead of a real WebSocket endpoint.
type logSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

var _ logSubscriber = (*ethclient.Client)(nil)

// dialFunc dials a new logSubscriber, overridden in tests to avoid a real
// WebSocket dial.
type dialFunc func(ctx context.Context, url string) (logSubscriber, error)

func dialEthclient(ctx context.Context, url string) (logSubscriber, error) {
	return ethclient.DialContext(ctx, url)
}

// Client holds the single L1 WebSocket connection and reconnects it
// transparently. Rollup Watchers never see a disconnect: SubscribeLogs blocks
// across reconnect attempts and keeps handing the same output channel to
// its caller.
type Client struct {
	wsURL              string
	staleFilterTimeout time.Duration
	logger             zerolog.Logger

	dial   dialFunc
	client logSubscriber

	tsCache *lru.Cache[uint64, int64]
}

// NewClient dials the L1 WebSocket endpoint once, failing fast if the
// initial dial fails, verifies it is actually talking to expectedChainID,
// and prepares the block-timestamp cache.
func NewClient(ctx context.Context, wsURL string, staleFilterTimeout time.Duration, expectedChainID int64, logger zerolog.Logger) (*Client, error) {
	return newClient(ctx, wsURL, staleFilterTimeout, expectedChainID, logger, dialEthclient)
}

func newClient(ctx context.Context, wsURL string, staleFilterTimeout time.Duration, expectedChainID int64, logger zerolog.Logger, dial dialFunc) (*Client, error) {
	logger = logger.With().Str("component", "chain_client").Logger()

	dialCtx, cancel := context.WithTimeout(ctx, subscribeTimeout)
	defer cancel()

	c, err := dial(dialCtx, wsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial L1 websocket endpoint: %w", err)
	}

	actual, err := c.ChainID(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to fetch L1 chain id: %w", err)
	}
	want := big.NewInt(expectedChainID)
	if actual.Cmp(want) != 0 {
		c.Close()
		return nil, fmt.Errorf("L1 chain id mismatch: expected %d, got %s", expectedChainID, actual)
	}

	cache, err := lru.New[uint64, int64](blockTimestampCacheSize)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to allocate block timestamp cache: %w", err)
	}

	logger.Info().Int64("chain_id", expectedChainID).Msg("connected to L1")

	return &Client{
		wsURL:              wsURL,
		staleFilterTimeout: staleFilterTimeout,
		logger:             logger,
		dial:               dial,
		client:             c,
		tsCache:            cache,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.client.Close()
}

// SubscribeLogs streams every log matching query to out until ctx is
// cancelled. It reconnects transparently on subscription error or
// filter staleness (no log delivered within staleFilterTimeout), applying
// exponential backoff between dial attempts. The
// caller never observes individual reconnects; it only stops receiving
// when ctx is done.
func (c *Client) SubscribeLogs(ctx context.Context, query ethereum.FilterQuery, out chan<- types.Log) error {
	backoff := reconnectInitialBackoff

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := c.subscribeOnce(ctx, query, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn().
			Err(err).
			Dur("backoff", backoff).
			Msg("log subscription dropped, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = nextBackoff(backoff)

		if err := c.redial(ctx); err != nil {
			c.logger.Error().Err(err).Msg("redial failed, will retry")
			continue
		}
		backoff = reconnectInitialBackoff
	}
}

// nextBackoff doubles backoff, capped at reconnectMaxBackoff.
func nextBackoff(backoff time.Duration) time.Duration {
	backoff *= 2
	if backoff > reconnectMaxBackoff {
		backoff = reconnectMaxBackoff
	}
	return backoff
}

// subscribeOnce runs a single subscription lifetime: it forwards logs to
// out and returns when the log or head subscription errors, or when no log
// has arrived within staleFilterTimeout, whether or not new heads keep
// landing (a stuck filter on some L1 providers never errors, it just goes
// quiet).
func (c *Client) subscribeOnce(ctx context.Context, query ethereum.FilterQuery, out chan<- types.Log) error {
	logsCh := make(chan types.Log)
	sub, err := c.client.SubscribeFilterLogs(ctx, query, logsCh)
	if err != nil {
		return fmt.Errorf("subscribe filter logs: %w", err)
	}
	defer sub.Unsubscribe()

	heads := make(chan *types.Header)
	headSub, err := c.client.SubscribeNewHead(ctx, heads)
	if err != nil {
		return fmt.Errorf("subscribe new heads: %w", err)
	}
	defer headSub.Unsubscribe()

	timer := time.NewTimer(c.staleFilterTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("log subscription error: %w", err)
		case err := <-headSub.Err():
			return fmt.Errorf("head subscription error: %w", err)
		case log := <-logsCh:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(c.staleFilterTimeout)
			select {
			case out <- log:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-heads:
			// a new head arrived; the filter timer is left running so a
			// genuinely stale filter (no matching logs, but heads still
			// flowing) trips the staleness check below.
		case <-timer.C:
			return fmt.Errorf("log filter stale: no logs in %s", c.staleFilterTimeout)
		}
	}
}

// redial replaces the underlying client connection, used after a
// subscription drops.
func (c *Client) redial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, subscribeTimeout)
	defer cancel()

	newClient, err := c.dial(dialCtx, c.wsURL)
	if err != nil {
		return fmt.Errorf("redial L1 websocket: %w", err)
	}

	c.client.Close()
	c.client = newClient
	return nil
}

// GetBlockTimestamp returns the Unix timestamp of blockNumber, memoized in
// an LRU cache (capacity 1024) since watchers repeatedly ask about recent
// blocks while decoding events.
func (c *Client) GetBlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error) {
	if ts, ok := c.tsCache.Get(blockNumber); ok {
		return ts, nil
	}

	header, err := c.client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return 0, fmt.Errorf("fetch header for block %d: %w", blockNumber, err)
	}

	ts := int64(header.Time)
	c.tsCache.Add(blockNumber, ts)
	return ts, nil
}
