package roomrelease

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/saaga0h/jeeves-roomrelease/pkg/metrics"
	"github.com/saaga0h/jeeves-roomrelease/pkg/redis"
)

const (
	// TTL for cached device status values
	statusTTL = 24 * time.Hour

	// Default number of log entries returned when no limit is given
	defaultEventLimit = 50
)

// Storage records lifecycle events to Redis, Prometheus and, when enabled,
// the Postgres release history. It implements Recorder.
type Storage struct {
	redis     redis.Client
	metrics   *metrics.Metrics
	history   *History
	maxEvents int
	logger    *slog.Logger
}

// NewStorage creates a new storage handler. m and history may be nil.
func NewStorage(redisClient redis.Client, m *metrics.Metrics, history *History, maxEvents int, logger *slog.Logger) *Storage {
	return &Storage{
		redis:     redisClient,
		metrics:   m,
		history:   history,
		maxEvents: maxEvents,
		logger:    logger,
	}
}

// Record stores one lifecycle event. Failures are logged only.
func (s *Storage) Record(ctx context.Context, ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	s.observe(ev)

	if err := s.storeEvent(ctx, ev); err != nil {
		s.logger.Warn("Failed to store release event", "room", ev.Room, "type", ev.Type, "error", err)
	}

	if s.history != nil && (ev.Type == EventDeclineSucceeded || ev.Type == EventDeclineFailed) {
		if err := s.history.RecordDecline(ctx, ev); err != nil {
			s.logger.Warn("Failed to write release history", "room", ev.Room, "error", err)
		}
	}
}

// observe updates the Prometheus collectors for ev
func (s *Storage) observe(ev Event) {
	if s.metrics == nil {
		return
	}

	switch ev.Type {
	case EventCountdownStarted:
		s.metrics.CountdownsStarted.WithLabelValues(ev.Room).Inc()
	case EventCountdownAborted:
		s.metrics.CountdownsAborted.WithLabelValues(ev.Room, ev.Reason).Inc()
	case EventDeclineSucceeded:
		s.metrics.Declines.WithLabelValues(ev.Room, "success").Inc()
	case EventDeclineFailed:
		s.metrics.Declines.WithLabelValues(ev.Room, "failure").Inc()
	case EventBookingExempt:
		s.metrics.BookingsExempt.WithLabelValues(ev.Room).Inc()
	}
	s.metrics.SetPhase(ev.Room, string(ev.Phase))
}

// storeEvent updates the state snapshot and appends to the capped log
// Pattern:
// - roomrelease:state:{room} (hash)
// - roomrelease:log:{room} (list, newest first)
func (s *Storage) storeEvent(ctx context.Context, ev Event) error {
	stateKey := redis.RoomStateKey(ev.Room)
	if err := s.redis.SetFields(ctx, stateKey, map[string]interface{}{
		"phase":      string(ev.Phase),
		"booking_id": ev.BookingID,
		"last_event": string(ev.Type),
		"updated_at": ev.Timestamp.UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("failed to update state snapshot: %w", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := s.redis.PushCapped(ctx, redis.RoomLogKey(ev.Room), data, int64(s.maxEvents)); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	s.logger.Debug("Stored release event", "room", ev.Room, "type", ev.Type, "phase", ev.Phase)
	return nil
}

// CacheStatus keeps the last value reported for a room's status metric
func (s *Storage) CacheStatus(ctx context.Context, room, metric, value string) error {
	if err := s.redis.SetFieldTTL(ctx, redis.RoomStatusKey(room), metric, value, statusTTL); err != nil {
		return fmt.Errorf("failed to cache status %s: %w", metric, err)
	}
	return nil
}

// RoomSnapshot is the last stored controller state and device status of a room
type RoomSnapshot struct {
	Room   string            `json:"room"`
	State  map[string]string `json:"state"`
	Status map[string]string `json:"status"`
}

// Snapshot reads a room's state hash and status cache
func (s *Storage) Snapshot(ctx context.Context, room string) (*RoomSnapshot, error) {
	state, err := s.redis.Fields(ctx, redis.RoomStateKey(room))
	if err != nil {
		return nil, fmt.Errorf("failed to read room state: %w", err)
	}
	status, err := s.redis.Fields(ctx, redis.RoomStatusKey(room))
	if err != nil {
		return nil, fmt.Errorf("failed to read room status: %w", err)
	}
	return &RoomSnapshot{Room: room, State: state, Status: status}, nil
}

// RecentEvents returns up to limit events for room, newest first.
// Entries that fail to decode are skipped.
func (s *Storage) RecentEvents(ctx context.Context, room string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}

	raw, err := s.redis.Newest(ctx, redis.RoomLogKey(room), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read release log: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			s.logger.Warn("Skipping malformed release event", "room", room, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
