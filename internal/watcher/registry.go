// Package watcher runs one independent pipeline per rollup: subscribe to a
// declarative set of (contract, topic0) filter pairs, decode each log with
// the matching decoder, and hand the resulting event to the Hub. The
// per-rollup (contract, topic0, decoder) triples are data, not code paths,
// so adding a rollup is a registry entry.
package watcher

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/chainwatch/rollup-sentinel/pkg/models"
)

// Event signatures. Each is the keccak256 hash of the contract event's
// canonical signature.
var (
	sequencerBatchDeliveredSig = common.HexToHash("0x7394f4a19a13c7b92b5bb71033245305946ef78452f7b4986ac1390b5df4ebd7")
	assertionCreatedSig        = common.HexToHash("0x5110e6169607548ba8ed297fb1e3ce2597c0017e5b4288560db6bf523f381d30")
	assertionConfirmedSig      = common.HexToHash("0xfc42829b29c259a7370ab56c8f69fce23b5f351a9ce151da453281993ec0090c")

	logStateUpdateSig = common.HexToHash("0xd342ddf7a308dec111745b00315c14b7efb2bdae570a6856e088ed0c65a3576c")
	logMessageToL2Sig = common.HexToHash("0xdb80dd488acf86d17c747445b0eabb5d57c541d3bd7b6b87af987858e5066b2b")

	disputeGameCreatedSig = common.HexToHash("0x5b565efe82411da98814f356d0e7bcb8f0219b8d970307c5afb4a6903a8b2e35")
	withdrawalProvenSig   = common.HexToHash("0x67a6208cfcc0801d50f6cbe764733f4fddf66ac0b04442061a8a8c0cb6b63f62")

	blockCommitSig        = common.HexToHash("0x8f2916b2f2d78cc5890ead36c06c0f6d5d112c7e103589947e8e2f0d6eddb763")
	blocksVerificationSig = common.HexToHash("0x22c9005dd88c18b552a1cd7e8b3b937fcde9ca69213c1f658f54d572e4877a81")
	blockExecutionSig     = common.HexToHash("0x2402307311a4d6604e4e7b4c8a15a7e1213edb39c16a31efa70afb06030d3165")
)

// EventSpec binds one contract event signature to its internal
// classification and decoder. Classes lists every RollupStatus field class
// the event advances; Starknet's LogStateUpdate lists all three (its single
// event collapses batch, proof, and finalized together), most events list
// exactly one, and MessageLog lists none (informational only).
type EventSpec struct {
	EventType models.EventType
	Classes   []models.StatusClass
	Decode    DecodeFunc
}

// RollupSpec is the full per-rollup watcher configuration: which contract
// address to filter on and which topic0 values map to which EventSpec.
type RollupSpec struct {
	Rollup  models.RollupId
	Address common.Address
	Events  map[common.Hash]EventSpec
}

// Topics returns the topic0 filter list for this rollup's subscription.
func (s RollupSpec) Topics() []common.Hash {
	topics := make([]common.Hash, 0, len(s.Events))
	for topic := range s.Events {
		topics = append(topics, topic)
	}
	return topics
}

// BuildSpec constructs the declarative registry for one rollup, given its
// configured L1 contract address.
func BuildSpec(rollup models.RollupId, address common.Address) RollupSpec {
	switch rollup {
	case models.Arbitrum:
		return RollupSpec{
			Rollup:  rollup,
			Address: address,
			Events: map[common.Hash]EventSpec{
				sequencerBatchDeliveredSig: {EventType: models.BatchDelivered, Classes: []models.StatusClass{models.ClassBatch}, Decode: decodeSequencerBatchDelivered},
				assertionCreatedSig:        {EventType: models.ProofSubmitted, Classes: []models.StatusClass{models.ClassProof}, Decode: decodeAssertionCreated},
				assertionConfirmedSig:      {EventType: models.ProofVerified, Classes: []models.StatusClass{models.ClassFinalized}, Decode: decodeAssertionConfirmed},
			},
		}
	case models.Starknet:
		return RollupSpec{
			Rollup:  rollup,
			Address: address,
			Events: map[common.Hash]EventSpec{
				logStateUpdateSig: {
					EventType: models.StateUpdate,
					Classes:   []models.StatusClass{models.ClassBatch, models.ClassProof, models.ClassFinalized},
					Decode:    decodeLogStateUpdate,
				},
				logMessageToL2Sig: {EventType: models.MessageLog, Classes: nil, Decode: decodeLogMessageToL2},
			},
		}
	case models.Base, models.Optimism:
		return RollupSpec{
			Rollup:  rollup,
			Address: address,
			Events: map[common.Hash]EventSpec{
				disputeGameCreatedSig: {
					EventType: models.DisputeGameCreated,
					Classes:   []models.StatusClass{models.ClassBatch, models.ClassProof},
					Decode:    decodeDisputeGameCreated,
				},
				withdrawalProvenSig: {EventType: models.WithdrawalProven, Classes: []models.StatusClass{models.ClassFinalized}, Decode: decodeWithdrawalProven},
			},
		}
	case models.ZkSync:
		return RollupSpec{
			Rollup:  rollup,
			Address: address,
			Events: map[common.Hash]EventSpec{
				blockCommitSig:        {EventType: models.BlockCommit, Classes: []models.StatusClass{models.ClassBatch}, Decode: decodeBlockCommit},
				blocksVerificationSig: {EventType: models.BlocksVerification, Classes: []models.StatusClass{models.ClassProof}, Decode: decodeBlocksVerification},
				blockExecutionSig:     {EventType: models.BlockExecution, Classes: []models.StatusClass{models.ClassFinalized}, Decode: decodeBlockExecution},
			},
		}
	default:
		return RollupSpec{Rollup: rollup, Address: address, Events: map[common.Hash]EventSpec{}}
	}
}
