package roomrelease

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/saaga0h/jeeves-roomrelease/pkg/config"
	"github.com/saaga0h/jeeves-roomrelease/pkg/metrics"
	"github.com/saaga0h/jeeves-roomrelease/pkg/mqtt"
	"github.com/saaga0h/jeeves-roomrelease/pkg/postgres"
	"github.com/saaga0h/jeeves-roomrelease/pkg/redis"
)

// Device events published on roomos/{room}/event/{name}
const (
	EventNameBookingStart        = "booking_start"
	EventNameBookingExtension    = "booking_extension"
	EventNameBookingEnd          = "booking_end"
	EventNamePresentationStarted = "presentation_started"
	EventNamePresentationStopped = "presentation_stopped"
	EventNamePromptResponse      = "prompt_response"
	EventNameUIExtension         = "ui_extension"
)

type devicePayload struct {
	ID                string `json:"id"`
	OriginalMeetingID string `json:"original_meeting_id"`
	FeedbackID        string `json:"feedback_id"`
	OptionID          string `json:"option_id"`
	WidgetID          string `json:"widget_id"`
}

type roomUnit struct {
	ctrl   *Controller
	runner *Runner
}

// Agent wires the room controllers to MQTT and the storage backends
type Agent struct {
	mqtt     mqtt.Client
	redis    redis.Client
	postgres postgres.Client
	cfg      *config.Config
	logger   *slog.Logger

	rpc     *Requester
	storage *Storage
	history *History
	rooms   map[string]*roomUnit

	wg sync.WaitGroup
}

// NewAgent creates a room release agent with one controller per configured
// room. postgresClient may be nil when release history is disabled; m may be
// nil to skip Prometheus.
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, postgresClient postgres.Client, m *metrics.Metrics, cfg *config.Config, logger *slog.Logger) *Agent {
	return newAgent(mqttClient, redisClient, postgresClient, m, cfg, logger, WallClock())
}

func newAgent(mqttClient mqtt.Client, redisClient redis.Client, postgresClient postgres.Client, m *metrics.Metrics, cfg *config.Config, logger *slog.Logger, clock Clock) *Agent {
	a := &Agent{
		mqtt:     mqttClient,
		redis:    redisClient,
		postgres: postgresClient,
		cfg:      cfg,
		logger:   logger,
		rpc:      NewRequester(mqttClient, cfg.RequestTimeout(), logger),
		rooms:    make(map[string]*roomUnit),
	}

	if cfg.EnableReleaseHistory && postgresClient != nil {
		a.history = NewHistory(postgresClient, logger)
	}
	a.storage = NewStorage(redisClient, m, a.history, cfg.MaxEventHistory, logger)

	settings := SettingsFromConfig(cfg)
	for _, room := range cfg.Rooms {
		ctrl := NewController(room, NewDevicePort(room, a.rpc), settings, clock, a.storage, logger)
		a.rooms[room] = &roomUnit{
			ctrl:   ctrl,
			runner: NewRunner(ctrl, logger),
		}
	}

	return a
}

// Start connects to the brokers, starts every room and blocks until ctx is cancelled
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting room release agent",
		"service_name", a.cfg.ServiceName,
		"rooms", a.cfg.Rooms,
		"empty_before_release_min", a.cfg.EmptyBeforeReleaseMinutes,
		"initial_release_delay_min", a.cfg.InitialReleaseDelayMinutes,
		"prompt_duration_sec", a.cfg.PromptDurationSeconds,
		"release_history", a.history != nil)

	// Connect to MQTT broker
	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// Verify Redis connection
	if err := a.redis.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	a.logger.Info("Connected to Redis", "address", a.cfg.RedisAddress())

	if a.history != nil {
		if err := a.postgres.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		if err := a.history.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	// Replies first, controllers block on them from startup on
	if err := a.mqtt.Subscribe(mqtt.TopicAllResponses, 1, a.rpc.HandleResponse); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", mqtt.TopicAllResponses, err)
	}
	if err := a.mqtt.Subscribe(mqtt.TopicAllStatus, 0, a.handleStatusMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", mqtt.TopicAllStatus, err)
	}
	if err := a.mqtt.Subscribe(mqtt.TopicAllEvents, 1, a.handleEventMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", mqtt.TopicAllEvents, err)
	}

	for _, unit := range a.rooms {
		a.wg.Add(1)
		go func(r *Runner) {
			defer a.wg.Done()
			r.Run(ctx)
		}(unit.runner)
		unit.runner.Submit(unit.ctrl.Start)
	}

	a.logger.Info("Room release agent started and ready", "room_count", len(a.rooms))

	// Block until context is cancelled
	<-ctx.Done()
	a.logger.Info("Room release agent stopping")
	a.wg.Wait()

	return nil
}

// Stop gracefully stops the agent
func (a *Agent) Stop() error {
	a.logger.Info("Stopping room release agent")

	a.mqtt.Disconnect()

	if a.history != nil {
		if err := a.postgres.Disconnect(); err != nil {
			a.logger.Error("Error closing Postgres connection", "error", err)
		}
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("Error closing Redis connection", "error", err)
		return err
	}

	a.logger.Info("Room release agent stopped")
	return nil
}

// handleStatusMessage routes roomos/{room}/status/{metric} to the room's controller
func (a *Agent) handleStatusMessage(msg mqtt.Message) {
	room, kind, metric, err := mqtt.ParseRoomTopic(msg.Topic())
	if err != nil || kind != "status" {
		a.logger.Warn("Invalid status topic format", "topic", msg.Topic())
		return
	}

	unit, ok := a.rooms[room]
	if !ok {
		a.logger.Debug("Ignoring status for unmanaged room", "room", room)
		return
	}

	signalKind, ok := SignalKindForMetric(metric)
	if !ok {
		a.logger.Warn("Ignoring unknown status metric", "room", room, "metric", metric)
		return
	}

	value := decodeStatusValue(msg.Payload())
	unit.runner.Submit(func(ctx context.Context) {
		if err := a.storage.CacheStatus(ctx, room, metric, value); err != nil {
			a.logger.Warn("Failed to cache status", "room", room, "error", err)
		}
		unit.ctrl.OnMetricSignal(ctx, Signal{Kind: signalKind, Value: value})
	})
}

// handleEventMessage routes roomos/{room}/event/{name} to the room's controller
func (a *Agent) handleEventMessage(msg mqtt.Message) {
	room, kind, name, err := mqtt.ParseRoomTopic(msg.Topic())
	if err != nil || kind != "event" {
		a.logger.Warn("Invalid event topic format", "topic", msg.Topic())
		return
	}

	unit, ok := a.rooms[room]
	if !ok {
		a.logger.Debug("Ignoring event for unmanaged room", "room", room)
		return
	}

	var p devicePayload
	if len(msg.Payload()) > 0 {
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			a.logger.Warn("Failed to parse device event", "room", room, "event", name, "error", err)
			return
		}
	}

	ctrl := unit.ctrl
	var fn func(ctx context.Context)

	switch name {
	case EventNameBookingStart:
		a.logger.Info("Booking detected", "room", room, "booking_id", p.ID)
		fn = func(ctx context.Context) { ctrl.OnBookingStarted(ctx, p.ID) }
	case EventNameBookingExtension:
		fn = func(ctx context.Context) { ctrl.OnBookingExtended(ctx, p.OriginalMeetingID) }
	case EventNameBookingEnd:
		fn = ctrl.OnBookingEnded
	case EventNamePresentationStarted:
		fn = func(ctx context.Context) { ctrl.OnMetricSignal(ctx, Signal{Kind: SignalSharing, Value: "on"}) }
	case EventNamePresentationStopped:
		fn = func(ctx context.Context) { ctrl.OnMetricSignal(ctx, Signal{Kind: SignalSharing, Value: "off"}) }
	case EventNamePromptResponse:
		fn = func(ctx context.Context) { ctrl.OnPromptResponse(ctx, p.FeedbackID, p.OptionID) }
	case EventNameUIExtension:
		fn = func(ctx context.Context) { ctrl.OnInteraction(ctx, p.WidgetID) }
	default:
		a.logger.Warn("Ignoring unknown device event", "room", room, "event", name)
		return
	}

	unit.runner.Submit(fn)
}

// EventsHandler serves a room's release log: GET ?room={room}&limit={n}
func (a *Agent) EventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, limit, ok := a.roomQuery(w, r)
		if !ok {
			return
		}

		events, err := a.storage.RecentEvents(r.Context(), room, limit)
		if err != nil {
			a.logger.Error("Failed to read release log", "room", room, "error", err)
			http.Error(w, "failed to read events", http.StatusInternalServerError)
			return
		}

		a.writeJSON(w, events)
	}
}

// StateHandler serves a room's stored state and cached status: GET ?room={room}
func (a *Agent) StateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := r.URL.Query().Get("room")
		if _, ok := a.rooms[room]; !ok {
			http.Error(w, "unknown room", http.StatusNotFound)
			return
		}

		snap, err := a.storage.Snapshot(r.Context(), room)
		if err != nil {
			a.logger.Error("Failed to read room snapshot", "room", room, "error", err)
			http.Error(w, "failed to read state", http.StatusInternalServerError)
			return
		}

		a.writeJSON(w, snap)
	}
}

// HistoryHandler serves stored decline attempts: GET ?room={room}&limit={n}
func (a *Agent) HistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.history == nil {
			http.Error(w, "release history disabled", http.StatusNotFound)
			return
		}

		room, limit, ok := a.roomQuery(w, r)
		if !ok {
			return
		}

		entries, err := a.history.Recent(r.Context(), room, limit)
		if err != nil {
			a.logger.Error("Failed to read release history", "room", room, "error", err)
			http.Error(w, "failed to read history", http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []HistoryEntry{}
		}

		a.writeJSON(w, entries)
	}
}

// roomQuery reads room and limit, answering the request itself when they are invalid
func (a *Agent) roomQuery(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	room := r.URL.Query().Get("room")
	if _, ok := a.rooms[room]; !ok {
		http.Error(w, "unknown room", http.StatusNotFound)
		return "", 0, false
	}

	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return "", 0, false
		}
		limit = n
	}

	return room, limit, true
}

func (a *Agent) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("Failed to encode response", "error", err)
	}
}
