// Package hub holds the sentinel's single point of shared state: the
// rendezvous between Rollup Watchers / Sequencer Pollers (writers) and pull
// readers / live subscribers (readers).
package hub

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/chainwatch/rollup-sentinel/pkg/models"
)

const defaultBroadcastRingCapacity = 1024

var (
	subscriberGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_hub_subscribers",
		Help: "Current number of live WebSocket subscribers.",
	})

	laggedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_hub_subscriber_lagged_total",
		Help: "Total number of times a subscriber fell behind the broadcast ring and was marked lagged.",
	})

	recordedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_hub_events_recorded_total",
		Help: "Total number of events recorded into hub state, by rollup.",
	}, []string{"rollup"})
)

// Snapshot is the coherent pair returned by Subscribe: the state as of the
// moment of subscription, plus a channel positioned at the next event.
type Snapshot struct {
	Status     map[models.RollupId]models.RollupStatus
	Sequencers map[models.RollupId]models.SequencerMetrics
}

// Frame is one message delivered to a live subscriber: either a decoded
// event, or a lagged marker telling the subscriber it missed events and
// should refetch a snapshot.
type Frame struct {
	Event  *models.RollupEvent
	Lagged bool
}

// Subscription is a handle to a live event stream. Callers must call
// Unsubscribe when done to release the Hub's reference.
type Subscription struct {
	C           <-chan Frame
	hub         *Hub
	internal    *subscriber
}

// Unsubscribe detaches this subscription from the Hub's broadcast list.
func (s Subscription) Unsubscribe() {
	s.hub.removeSubscriber(s.internal)
}

type subscriber struct {
	ch chan Frame
}

// Hub is the sole owner of all mutable rollup state. Writers (watchers,
// pollers) call RecordEvent/RecordSequencer, which take the state guard for
// exactly one field update and release it before broadcasting. Holding the
// state mutex across a subscriber send is forbidden: guard, mutate, release,
// then broadcast, since a full subscriber channel would otherwise block
// every other writer and reader.
type Hub struct {
	ringCapacity int
	logger       zerolog.Logger

	mu          sync.RWMutex
	status      map[models.RollupId]models.RollupStatus
	sequencers  map[models.RollupId]models.SequencerMetrics
	subscribers map[*subscriber]struct{}
}

// New constructs an empty Hub. ringCapacity <= 0 selects a default of 1024.
func New(ringCapacity int, logger zerolog.Logger) *Hub {
	if ringCapacity <= 0 {
		ringCapacity = defaultBroadcastRingCapacity
	}
	status := make(map[models.RollupId]models.RollupStatus, len(models.AllRollups))
	for _, id := range models.AllRollups {
		status[id] = models.RollupStatus{}
	}
	return &Hub{
		ringCapacity: ringCapacity,
		logger:       logger.With().Str("component", "hub").Logger(),
		status:       status,
		sequencers:   make(map[models.RollupId]models.SequencerMetrics),
		subscribers:  make(map[*subscriber]struct{}),
	}
}

// RecordEvent atomically updates the affected RollupStatus fields per the
// classification table, stamps last_updated, then broadcasts the event to
// all live subscribers. An event whose block_number is older than the
// rollup's current last_updated for an affected class is dropped for
// status purposes but still broadcast.
func (h *Hub) RecordEvent(event models.RollupEvent) {
	h.mu.Lock()
	status := h.status[event.Rollup]

	if event.BatchNumber != nil {
		for _, class := range models.ClassesForEventType(event.EventType) {
			switch class {
			case models.ClassBatch:
				if event.BlockNumber >= status.LastBatchBlock {
					status.LatestBatch = *event.BatchNumber
					status.LatestBatchTx = event.TxHash
					status.LastBatchUpdated = event.Timestamp
					status.LastBatchBlock = event.BlockNumber
				}
			case models.ClassProof:
				if event.BlockNumber >= status.LastProofBlock {
					status.LatestProof = *event.BatchNumber
					status.LatestProofTx = event.TxHash
					status.LastProofUpdated = event.Timestamp
					status.LastProofBlock = event.BlockNumber
				}
			case models.ClassFinalized:
				if event.BlockNumber >= status.LastFinalizedBlock {
					status.LatestFinalized = *event.BatchNumber
					status.LatestFinalizedTx = event.TxHash
					status.LastFinalizedBlock = event.BlockNumber
				}
			}
		}
	}
	status.LastUpdated = event.Timestamp
	status.HasEvent = true
	h.status[event.Rollup] = status
	// Only subscribers registered before this mutation receive the event;
	// a later Subscribe already sees it in its snapshot.
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	recordedCounter.WithLabelValues(string(event.Rollup)).Inc()
	h.broadcast(subs, Frame{Event: &event})
}

// RecordSequencer atomically replaces the SequencerMetrics for a rollup.
func (h *Hub) RecordSequencer(rollup models.RollupId, metrics models.SequencerMetrics) {
	h.mu.Lock()
	h.sequencers[rollup] = metrics
	h.mu.Unlock()
}

// SnapshotStatus returns a consistent copy of one rollup's status.
func (h *Hub) SnapshotStatus(rollup models.RollupId) models.RollupStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status[rollup]
}

// SnapshotAllStatus returns a consistent copy of every rollup's status.
func (h *Hub) SnapshotAllStatus() map[models.RollupId]models.RollupStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[models.RollupId]models.RollupStatus, len(h.status))
	for id, s := range h.status {
		out[id] = s
	}
	return out
}

// SnapshotSequencers returns a consistent copy of every rollup's sequencer
// metrics.
func (h *Hub) SnapshotSequencers() map[models.RollupId]models.SequencerMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[models.RollupId]models.SequencerMetrics, len(h.sequencers))
	for id, s := range h.sequencers {
		out[id] = s
	}
	return out
}

// Subscribe atomically produces the current (status, sequencers) snapshot
// and registers a new subscriber under the same exclusive guard, so no
// event reflected in the snapshot is redelivered on the stream and no event
// delivered on the stream was already applied to the snapshot.
func (h *Hub) Subscribe() (Snapshot, Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := Snapshot{
		Status:     make(map[models.RollupId]models.RollupStatus, len(h.status)),
		Sequencers: make(map[models.RollupId]models.SequencerMetrics, len(h.sequencers)),
	}
	for id, s := range h.status {
		snap.Status[id] = s
	}
	for id, s := range h.sequencers {
		snap.Sequencers[id] = s
	}

	sub := &subscriber{ch: make(chan Frame, h.ringCapacity)}
	h.subscribers[sub] = struct{}{}
	subscriberGauge.Set(float64(len(h.subscribers)))

	return snap, Subscription{C: sub.ch, hub: h, internal: sub}
}

func (h *Hub) removeSubscriber(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.ch)
		subscriberGauge.Set(float64(len(h.subscribers)))
	}
}

// broadcast delivers frame to subs without blocking: when a subscriber's
// channel is full, its oldest undelivered frame is dropped and a lagged
// marker is queued in place of frame, instead of applying backpressure to
// the writer; a writer is never blocked on a slow reader's channel.
func (h *Hub) broadcast(subs []*subscriber, frame Frame) {
	for _, sub := range subs {
		select {
		case sub.ch <- frame:
		default:
			laggedCounter.Inc()
			select {
			case <-sub.ch: // drop the oldest undelivered frame
			default:
			}
			select {
			case sub.ch <- Frame{Lagged: true}:
			default:
				// another writer refilled the freed slot first.
			}
		}
	}
}
