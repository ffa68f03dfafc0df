package chain

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	backoff := reconnectInitialBackoff
	assert.Equal(t, 2*reconnectInitialBackoff, nextBackoff(backoff))

	backoff = reconnectMaxBackoff / 2
	assert.Equal(t, reconnectMaxBackoff, nextBackoff(backoff))

	backoff = reconnectMaxBackoff
	assert.Equal(t, reconnectMaxBackoff, nextBackoff(backoff), "stays capped once at the ceiling")
}

// fakeSubscription is a minimal ethereum.Subscription that never errors
// unless the test sends on errCh.
type fakeSubscription struct {
	errCh chan error
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{errCh: make(chan error)}
}

func (s *fakeSubscription) Err() <-chan error { return s.errCh }
func (s *fakeSubscription) Unsubscribe()      {}

// fakeTransport implements logSubscriber. Its first SubscribeFilterLogs
// call never delivers a log (so the caller's stale-filter timer fires);
// every subsequent call delivers one continuously, so only one staleness
// trip, and therefore one reconnect, ever happens.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []ethereum.FilterQuery
	chainID *big.Int
}

func newFakeTransport(chainID int64) *fakeTransport {
	return &fakeTransport{chainID: big.NewInt(chainID)}
}

func (f *fakeTransport) filterLogsCalls() []ethereum.FilterQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ethereum.FilterQuery, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeTransport) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	callNum := len(f.calls)
	f.mu.Unlock()

	sub := newFakeSubscription()
	if callNum >= 2 {
		go func() {
			ticker := time.NewTicker(5 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					select {
					case ch <- types.Log{}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}
	return sub, nil
}

func (f *fakeTransport) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	sub := newFakeSubscription()
	go func() {
		ticker := time.NewTicker(3 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case ch <- &types.Header{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return sub, nil
}

func (f *fakeTransport) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{}, nil
}

func (f *fakeTransport) ChainID(ctx context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeTransport) Close() {}

func TestNewClientVerifiesChainID(t *testing.T) {
	transport := newFakeTransport(1)
	dial := func(ctx context.Context, url string) (logSubscriber, error) { return transport, nil }

	c, err := newClient(context.Background(), "ws://fake-l1", time.Second, 1, zerolog.Nop(), dial)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestNewClientRejectsChainIDMismatch(t *testing.T) {
	transport := newFakeTransport(5) // not mainnet
	dial := func(ctx context.Context, url string) (logSubscriber, error) { return transport, nil }

	_, err := newClient(context.Background(), "ws://fake-l1", time.Second, 1, zerolog.Nop(), dial)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain id mismatch")
}

// TestSubscribeLogsReconnect exercises the stale filter reconnect path
// against a fake transport: the first subscription never delivers a log,
// so the staleness timer trips once, triggering exactly one reconnect
// (after SubscribeLogs's initial reconnectInitialBackoff wait); the second
// subscription then delivers logs continuously and never goes stale again
// before the context deadline.
func TestSubscribeLogsReconnect(t *testing.T) {
	transport := newFakeTransport(1)

	var mu sync.Mutex
	dialCalls := 0
	dial := func(ctx context.Context, url string) (logSubscriber, error) {
		mu.Lock()
		dialCalls++
		mu.Unlock()
		return transport, nil
	}

	c, err := newClient(context.Background(), "ws://fake-l1", 20*time.Millisecond, 1, zerolog.Nop(), dial)
	require.NoError(t, err)

	query := ethereum.FilterQuery{
		Addresses: []common.Address{common.HexToAddress("0x0000000000000000000000000000000000000001")},
		Topics:    [][]common.Hash{{common.HexToHash("0xaa")}},
	}

	// Must outlast one staleness trip (20ms) plus the fixed
	// reconnectInitialBackoff wait before SubscribeLogs redials.
	ctxTimeout := reconnectInitialBackoff + 300*time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	out := make(chan types.Log)
	done := make(chan error, 1)
	go func() {
		done <- c.SubscribeLogs(ctx, query, out)
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(ctxTimeout + 2*time.Second):
		t.Fatal("SubscribeLogs did not return after context deadline")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, dialCalls, "expected exactly one reconnect (initial dial + one redial)")

	calls := transport.filterLogsCalls()
	require.Len(t, calls, 2)
	for i, q := range calls {
		assert.Equal(t, query, q, "reconnect %d did not re-register the identical filter query", i)
	}
}
