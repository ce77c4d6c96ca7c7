package strategy

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/minimum-finance/strategy-engine/internal/logger"
	"github.com/minimum-finance/strategy-engine/internal/types"
)

// EventStore persists events outside the process. The state package provides
// a Postgres-backed implementation.
type EventStore interface {
	SaveEvent(event types.Event) error
}

const eventRingSize = 512

// Recorder fans strategy events out to the log, a bounded in-memory ring for
// the status API, and an optional durable store. Safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	log   zerolog.Logger
	ring  []types.Event
	next  int
	full  bool
	store EventStore
}

// NewRecorder builds a recorder. store may be nil when persistence is
// disabled.
func NewRecorder(store EventStore) *Recorder {
	return &Recorder{
		log:   logger.GetForComponent("events"),
		ring:  make([]types.Event, eventRingSize),
		store: store,
	}
}

// Emit records one event. Store failures are logged and swallowed so that a
// database outage never blocks strategy operations.
func (r *Recorder) Emit(eventType types.EventType, height uint64, attrs map[string]string) types.Event {
	event := types.Event{
		ID:     uuid.New().String(),
		Type:   eventType,
		Height: height,
		Time:   time.Now().UTC(),
		Attrs:  attrs,
	}

	logEvent := r.log.Info().
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Uint64("height", event.Height)
	for k, v := range attrs {
		logEvent = logEvent.Str(k, v)
	}
	logEvent.Msg("strategy event")

	r.mu.Lock()
	r.ring[r.next] = event
	r.next = (r.next + 1) % len(r.ring)
	if r.next == 0 {
		r.full = true
	}
	store := r.store
	r.mu.Unlock()

	if store != nil {
		if err := store.SaveEvent(event); err != nil {
			r.log.Error().Err(err).Str("event_id", event.ID).Msg("failed to persist event")
		}
	}

	return event
}

// Recent returns up to limit events, newest first.
func (r *Recorder) Recent(limit int) []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := r.next
	if r.full {
		count = len(r.ring)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]types.Event, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (r.next - 1 - i + len(r.ring)) % len(r.ring)
		out = append(out, r.ring[idx])
	}
	return out
}
