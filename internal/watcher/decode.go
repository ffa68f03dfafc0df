package watcher

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

// DecodeFunc extracts the rollup-specific batch/assertion/output-root
// identifier from a raw log. A nil, nil result means the event carries no
// well-identified commitment (MessageLog); a non-nil error means the
// identifier was present but malformed. The watcher still forwards the
// event with batch_number unset in that case, but does not advance status
// from it.
type DecodeFunc func(log types.Log) (batchNumber *string, err error)

func strPtr(s string) *string { return &s }

// decodeSequencerBatchDelivered reads Arbitrum's indexed batch sequence
// number directly off topic[1].
func decodeSequencerBatchDelivered(log types.Log) (*string, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("SequencerBatchDelivered: expected indexed batch sequence number, got %d topics", len(log.Topics))
	}
	seq := new(big.Int).SetBytes(log.Topics[1].Bytes())
	return strPtr(seq.String()), nil
}

// decodeAssertionCreated reads the indexed assertion hash as the
// commitment identifier (assertions are addressed by hash, not sequence).
func decodeAssertionCreated(log types.Log) (*string, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("AssertionCreated: expected indexed assertion hash, got %d topics", len(log.Topics))
	}
	return strPtr(log.Topics[1].Hex()), nil
}

func decodeAssertionConfirmed(log types.Log) (*string, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("AssertionConfirmed: expected indexed assertion hash, got %d topics", len(log.Topics))
	}
	return strPtr(log.Topics[1].Hex()), nil
}

// decodeLogStateUpdate reads Starknet's non-indexed (globalRoot,
// blockNumber, blockHash) tuple from log.Data and uses blockNumber as the
// identifier, since it collapses batch/proof/finalized into one event.
func decodeLogStateUpdate(log types.Log) (*string, error) {
	const wordSize = 32
	if len(log.Data) < 2*wordSize {
		return nil, fmt.Errorf("LogStateUpdate: data too short for (globalRoot, blockNumber): %d bytes", len(log.Data))
	}
	blockNumber := new(big.Int).SetBytes(log.Data[wordSize : 2*wordSize])
	return strPtr(blockNumber.String()), nil
}

// decodeLogMessageToL2 carries no well-identified commitment: it's
// informational per the classification table and never advances status.
func decodeLogMessageToL2(log types.Log) (*string, error) {
	return nil, nil
}

// decodeDisputeGameCreated reads the indexed root claim as the identifier
// for the dispute game, which simultaneously represents the batch and
// proof classes on OP-stack rollups.
func decodeDisputeGameCreated(log types.Log) (*string, error) {
	if len(log.Topics) < 4 {
		return nil, fmt.Errorf("DisputeGameCreated: expected 4 topics, got %d", len(log.Topics))
	}
	return strPtr(log.Topics[3].Hex()), nil
}

func decodeWithdrawalProven(log types.Log) (*string, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("WithdrawalProven: expected indexed withdrawal hash, got %d topics", len(log.Topics))
	}
	return strPtr(log.Topics[1].Hex()), nil
}

func decodeBlockCommit(log types.Log) (*string, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("BlockCommit: expected indexed block number, got %d topics", len(log.Topics))
	}
	blockNumber := new(big.Int).SetBytes(log.Topics[1].Bytes())
	return strPtr(blockNumber.String()), nil
}

// decodeBlocksVerification uses the current (not previous) verified block
// number as the identifier: it's the forward-moving watermark.
func decodeBlocksVerification(log types.Log) (*string, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("BlocksVerification: expected 2 indexed block numbers, got %d topics", len(log.Topics))
	}
	current := new(big.Int).SetBytes(log.Topics[2].Bytes())
	return strPtr(current.String()), nil
}

func decodeBlockExecution(log types.Log) (*string, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("BlockExecution: expected indexed block number, got %d topics", len(log.Topics))
	}
	blockNumber := new(big.Int).SetBytes(log.Topics[1].Bytes())
	return strPtr(blockNumber.String()), nil
}
