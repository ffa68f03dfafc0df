package watcher

import (
	"context"
	"math/big"
	"sync"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainwatch/rollup-sentinel/pkg/models"
)

type fakeLogSource struct {
	logs      []types.Log
	timestamp int64
}

func (f *fakeLogSource) SubscribeLogs(ctx context.Context, query ethereum.FilterQuery, out chan<- types.Log) error {
	for _, l := range f.logs {
		select {
		case out <- l:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeLogSource) GetBlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error) {
	return f.timestamp, nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []models.RollupEvent
}

func (r *fakeRecorder) RecordEvent(e models.RollupEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *fakeRecorder) all() []models.RollupEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.RollupEvent, len(r.events))
	copy(out, r.events)
	return out
}

func arbitrumBatchLog(seq uint64) types.Log {
	return types.Log{
		Address: common.HexToAddress("0x0000000000000000000000000000000000000001"),
		Topics: []common.Hash{
			sequencerBatchDeliveredSig,
			common.BigToHash(new(big.Int).SetUint64(seq)),
		},
		TxHash:      common.HexToHash("0xaa00000000000000000000000000000000000000000000000000000000aa"),
		BlockNumber: 19_000_000,
	}
}

// Invariant 1: every emitted event has a positive block_number/timestamp
// and a 32-byte hex tx_hash.
func TestWatcherHandleEmitsWellFormedEvent(t *testing.T) {
	addr := common.HexToAddress("0x0000000000000000000000000000000000000001")
	spec := BuildSpec(models.Arbitrum, addr)
	source := &fakeLogSource{timestamp: 1_706_000_000}
	recorder := &fakeRecorder{}
	w := New(spec, source, recorder, zerolog.Nop())

	log := arbitrumBatchLog(12345)
	w.handle(context.Background(), log)

	events := recorder.all()
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, models.Arbitrum, e.Rollup)
	assert.Equal(t, models.BatchDelivered, e.EventType)
	assert.Greater(t, e.BlockNumber, uint64(0))
	assert.Greater(t, e.Timestamp, int64(0))
	require.Len(t, e.TxHash, 66) // "0x" + 64 hex chars = 32 bytes
	require.NotNil(t, e.BatchNumber)
	assert.Equal(t, "12345", *e.BatchNumber)
}

func TestWatcherHandleSkipsUnregisteredTopic(t *testing.T) {
	addr := common.HexToAddress("0x0000000000000000000000000000000000000001")
	spec := BuildSpec(models.Arbitrum, addr)
	source := &fakeLogSource{timestamp: 1_706_000_000}
	recorder := &fakeRecorder{}
	w := New(spec, source, recorder, zerolog.Nop())

	w.handle(context.Background(), types.Log{
		Topics:      []common.Hash{common.HexToHash("0xdeadbeef")},
		BlockNumber: 1,
	})

	assert.Empty(t, recorder.all())
}

func TestWatcherHandleForwardsEventOnDecodeFailureWithoutBatchNumber(t *testing.T) {
	addr := common.HexToAddress("0x0000000000000000000000000000000000000002")
	spec := BuildSpec(models.Arbitrum, addr)
	source := &fakeLogSource{timestamp: 1_706_000_000}
	recorder := &fakeRecorder{}
	w := New(spec, source, recorder, zerolog.Nop())

	// SequencerBatchDelivered with no second topic: decode fails, but the
	// event must still be forwarded (no status update, per the edge case).
	w.handle(context.Background(), types.Log{
		Topics:      []common.Hash{sequencerBatchDeliveredSig},
		TxHash:      common.HexToHash("0xbb00000000000000000000000000000000000000000000000000000000bb"),
		BlockNumber: 100,
	})

	events := recorder.all()
	require.Len(t, events, 1)
	assert.Nil(t, events[0].BatchNumber)
}

func TestBuildSpecClassificationTable(t *testing.T) {
	addr := common.HexToAddress("0x0000000000000000000000000000000000000003")

	starknet := BuildSpec(models.Starknet, addr)
	assert.ElementsMatch(t,
		[]models.StatusClass{models.ClassBatch, models.ClassProof, models.ClassFinalized},
		starknet.Events[logStateUpdateSig].Classes,
		"Starknet's LogStateUpdate collapses all three classes into one event")
	assert.Nil(t, starknet.Events[logMessageToL2Sig].Classes, "MessageLog is informational only")

	base := BuildSpec(models.Base, addr)
	assert.ElementsMatch(t,
		[]models.StatusClass{models.ClassBatch, models.ClassProof},
		base.Events[disputeGameCreatedSig].Classes)
}
