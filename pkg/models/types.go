// Package models defines the shared data shapes tracked by the sentinel:
// rollup identity, the uniform event envelope emitted by watchers, the
// mutable per-rollup status and sequencer metrics the Hub owns, and the
// read-only health report derived from them.
package models

// RollupId identifies one of the tracked rollups. It is a closed set: the
// sentinel does not support arbitrary/unknown rollups at runtime.
type RollupId string

const (
	Arbitrum RollupId = "arbitrum"
	Starknet RollupId = "starknet"
	Base     RollupId = "base"
	Optimism RollupId = "optimism"
	ZkSync   RollupId = "zksync"
)

// AllRollups lists every supported RollupId in a stable order, used by
// snapshot/listing endpoints.
var AllRollups = []RollupId{Arbitrum, Starknet, Base, Optimism, ZkSync}

// Valid reports whether id is one of the closed set of supported rollups.
func (id RollupId) Valid() bool {
	switch id {
	case Arbitrum, Starknet, Base, Optimism, ZkSync:
		return true
	default:
		return false
	}
}

// EventType enumerates the internal event classification a decoded L1 log
// is mapped to. See the classification table in the watcher registry.
type EventType string

const (
	BatchDelivered     EventType = "BatchDelivered"
	ProofSubmitted     EventType = "ProofSubmitted"
	ProofVerified      EventType = "ProofVerified"
	StateUpdate        EventType = "StateUpdate"
	MessageLog         EventType = "MessageLog"
	DisputeGameCreated EventType = "DisputeGameCreated"
	WithdrawalProven   EventType = "WithdrawalProven"
	BlockCommit        EventType = "BlockCommit"
	BlocksVerification EventType = "BlocksVerification"
	BlockExecution     EventType = "BlockExecution"
)

// StatusClass says which latest_* fields of RollupStatus an event type
// advances. An event can belong to more than one class (Starknet's
// LogStateUpdate collapses batch+proof+finalized into one log).
type StatusClass int

const (
	ClassNone StatusClass = iota
	ClassBatch
	ClassProof
	ClassFinalized
)

// classesByEventType is the single source of truth for the classification
// table: which RollupStatus fields each event type advances. It is keyed
// by event type, not by rollup, because the mapping is fixed regardless of
// which rollup emitted the event.
var classesByEventType = map[EventType][]StatusClass{
	BatchDelivered:     {ClassBatch},
	ProofSubmitted:     {ClassProof},
	ProofVerified:      {ClassFinalized},
	StateUpdate:        {ClassBatch, ClassProof, ClassFinalized},
	MessageLog:         nil,
	DisputeGameCreated: {ClassBatch, ClassProof},
	WithdrawalProven:   {ClassFinalized},
	BlockCommit:        {ClassBatch},
	BlocksVerification: {ClassProof},
	BlockExecution:     {ClassFinalized},
}

// ClassesForEventType returns the RollupStatus classes the given event type
// advances, per the classification table.
func ClassesForEventType(et EventType) []StatusClass {
	return classesByEventType[et]
}

// RollupEvent is the broadcast unit: one decoded L1 log, already classified.
// Every field is a value type except BatchNumber, a pointer to an immutable
// string, so a RollupEvent can be freely copied to subscribers without
// aliasing the Hub's mutable state.
type RollupEvent struct {
	Rollup      RollupId  `json:"rollup"`
	EventType   EventType `json:"event_type"`
	BlockNumber uint64    `json:"block_number"`
	TxHash      string    `json:"tx_hash"`
	BatchNumber *string   `json:"batch_number"`
	Timestamp   int64     `json:"timestamp"`
}

// RollupStatus is the Hub's authoritative, mutable per-rollup record. It
// reflects the most recent event of each semantic class.
type RollupStatus struct {
	LatestBatch       string `json:"latest_batch"`
	LatestBatchTx     string `json:"latest_batch_tx"`
	LatestProof       string `json:"latest_proof"`
	LatestProofTx     string `json:"latest_proof_tx"`
	LatestFinalized   string `json:"latest_finalized"`
	LatestFinalizedTx string `json:"latest_finalized_tx"`
	LastUpdated       int64  `json:"last_updated"`

	// LastBatchUpdated/LastProofUpdated back the cadence checks in the
	// health assessor and are not rendered in the public JSON view;
	// they track the L1 timestamp of the most recent event in each class
	// independently of LastUpdated (which advances on every class).
	LastBatchUpdated int64 `json:"-"`
	LastProofUpdated int64 `json:"-"`

	// LastBatchBlock/LastProofBlock/LastFinalizedBlock track the L1 block
	// number of the most recent event applied to each class, so the Hub can
	// drop out-of-order arrivals per class without conflating an
	// older batch log with a newer proof log for the same rollup.
	LastBatchBlock     uint64 `json:"-"`
	LastProofBlock     uint64 `json:"-"`
	LastFinalizedBlock uint64 `json:"-"`

	// HasEvent distinguishes "never updated" from "updated at Unix time
	// zero", which an all-zero-value struct cannot do on its own.
	HasEvent bool `json:"-"`
}

// SequencerMetrics is the Hub's per-rollup L2 liveness record, populated by
// a Sequencer Poller. IsProducing is derived on read, never stored, so
// callers always see a value consistent with the current wall clock.
type SequencerMetrics struct {
	LatestBlock                  uint64  `json:"latest_block"`
	LatestBlockTimestamp         int64   `json:"latest_block_timestamp"`
	BlocksPerSecond              float64 `json:"blocks_per_second"`
	SecondsSinceLastBlockAdvance float64 `json:"seconds_since_last_block_advance"`
	IsProducing                  bool    `json:"is_producing"`
	LastPolled                   int64   `json:"last_polled"`
}

// WithIsProducing returns a copy of m with IsProducing computed against
// thresholdSecs (SEQUENCER_DOWNTIME_THRESHOLD_SECS). The Sequencer Poller
// never sets IsProducing itself; it's derived fresh by readers so a value
// served a minute ago can't go stale relative to the wall clock.
func (m SequencerMetrics) WithIsProducing(thresholdSecs int64) SequencerMetrics {
	m.IsProducing = m.SecondsSinceLastBlockAdvance < float64(thresholdSecs)
	return m
}

// ThresholdSet holds the per-rollup health thresholds. Config loading
// enforces BatchCadenceSecs <= DelayedSecs <= HaltedSecs at startup.
type ThresholdSet struct {
	BatchCadenceSecs int64
	ProofCadenceSecs int64
	DelayedSecs      int64
	HaltedSecs       int64
}

// HealthStatus is the coarse health classification produced by the
// assessor. It is never stored; it's derived fresh on every read.
type HealthStatus string

const (
	Healthy      HealthStatus = "Healthy"
	Delayed      HealthStatus = "Delayed"
	Halted       HealthStatus = "Halted"
	Disconnected HealthStatus = "Disconnected"
)

// HealthReport is the read-only, derived health view for one rollup.
type HealthReport struct {
	Rollup           RollupId     `json:"rollup"`
	Status           HealthStatus `json:"status"`
	LastEventAgeSecs int64        `json:"last_event_age_secs"`
	LastBatchAgeSecs int64        `json:"last_batch_age_secs"`
	LastProofAgeSecs int64        `json:"last_proof_age_secs"`
	Issues           []string     `json:"issues"`
}
