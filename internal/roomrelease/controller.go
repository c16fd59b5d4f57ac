package roomrelease

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

// Countdown abort reasons
const (
	reasonCheckIn     = "check_in"
	reasonInteraction = "interaction"
	reasonOccupied    = "occupied"
	reasonFinalCheck  = "final_check"
	reasonRestarted   = "booking_restarted"
	reasonEnded       = "booking_ended"
)

// Dispatcher runs fn on the goroutine that owns the controller
type Dispatcher func(fn func(ctx context.Context))

// timerHandle is a controller-owned timer. A callback that was already
// queued when the handle got cancelled is dropped on dispatch.
type timerHandle struct {
	timer     Timer
	cancelled bool
}

func (h *timerHandle) stop() {
	if h == nil {
		return
	}
	h.cancelled = true
	if h.timer != nil {
		h.timer.Stop()
	}
}

// Controller owns the release lifecycle of one room. It is not safe for
// concurrent use: every method and timer callback must run on the owning
// goroutine (see Runner).
type Controller struct {
	room     string
	port     Port
	settings Settings
	clock    Clock
	recorder Recorder
	logger   *slog.Logger
	dispatch Dispatcher

	state     State
	booking   *Booking
	lastPhase Phase

	periodic  *timerHandle
	countdown *timerHandle
	remaining int
}

// NewController creates an idle controller for room
func NewController(room string, port Port, settings Settings, clock Clock, recorder Recorder, logger *slog.Logger) *Controller {
	if clock == nil {
		clock = WallClock()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		room:      room,
		port:      port,
		settings:  settings,
		clock:     clock,
		recorder:  recorder,
		logger:    logger.With("room", room),
		lastPhase: PhaseIdle,
	}
	c.dispatch = func(fn func(ctx context.Context)) { fn(context.Background()) }
	return c
}

// SetDispatcher routes timer callbacks through d
func (c *Controller) SetDispatcher(d Dispatcher) {
	c.dispatch = d
}

// Room returns the room this controller manages
func (c *Controller) Room() string {
	return c.room
}

// State returns a copy of the current state
func (c *Controller) State() State {
	return c.state
}

// Booking returns the tracked booking, or nil when idle
func (c *Controller) Booking() *Booking {
	if c.booking == nil {
		return nil
	}
	b := *c.booking
	return &b
}

// Start picks up a booking that is already in progress
func (c *Controller) Start(ctx context.Context) {
	id, err := c.port.GetCurrentBookingID(ctx)
	if err != nil {
		c.logger.Warn("Unable to read current booking", "error", err)
		return
	}
	if id == "" {
		c.logger.Info("No booking in progress")
		return
	}

	c.logger.Info("Booking in progress at startup", "booking_id", id)
	c.OnBookingStarted(ctx, id)
}

// OnBookingStarted validates the booking and starts tracking it
func (c *Controller) OnBookingStarted(ctx context.Context, id string) {
	defer c.observePhase(ctx)

	prev := c.state
	if prev.CountdownActive {
		c.clearAlerts(ctx, reasonRestarted)
	}
	c.stopTimers()

	availability, err := c.port.GetAvailabilityStatus(ctx)
	if err != nil || availability != AvailabilityBookedUntil {
		c.logger.Warn("Booking was detected without end time",
			"booking_id", id,
			"availability", availability,
			"error", err)
		c.reset()
		c.record(ctx, Event{Type: EventBookingUntracked, BookingID: id, Reason: "no_end_time"})
		return
	}

	booking := c.loadBooking(ctx, id)
	c.logger.Debug("Calculated meeting length",
		"booking_id", id,
		"duration_hours", booking.DurationHours)

	if booking.DurationHours >= c.settings.IgnoreLongerThanHours {
		c.logger.Info("Ignoring booking longer than threshold",
			"booking_id", id,
			"duration_hours", booking.DurationHours,
			"threshold_hours", c.settings.IgnoreLongerThanHours)
		c.reset()
		c.booking = &booking
		c.state.Exempt = true
		c.record(ctx, Event{Type: EventBookingExempt, BookingID: id, MeetingID: booking.MeetingID})
		return
	}

	c.booking = &booking
	c.state = State{
		BookingActive:         true,
		ListenerShouldProcess: true,
		InitialGraceDeadline:  booking.StartTime.Add(c.settings.InitialReleaseDelay),
		Metrics:               prev.Metrics,
	}

	c.logger.Info("Tracking booking",
		"booking_id", id,
		"meeting_id", booking.MeetingID,
		"grace_deadline", c.state.InitialGraceDeadline)
	c.record(ctx, Event{Type: EventBookingTracked, BookingID: id, MeetingID: booking.MeetingID})

	c.refresh(ctx)
	c.processOccupancy(ctx)
	if c.state.BookingActive && c.state.ListenerShouldProcess {
		c.armPeriodic()
	}
}

// OnBookingExtended re-validates a booking that is still being tracked
func (c *Controller) OnBookingExtended(ctx context.Context, id string) {
	if !c.state.BookingActive || !c.state.ListenerShouldProcess {
		c.logger.Debug("Ignoring extension of untracked booking", "booking_id", id)
		return
	}

	c.logger.Info("Booking extended, reprocessing", "booking_id", id)
	c.OnBookingStarted(ctx, id)
}

// OnBookingEnded stops everything and returns to idle. Safe to call in any state.
func (c *Controller) OnBookingEnded(ctx context.Context) {
	defer c.observePhase(ctx)

	wasActive := c.state.BookingActive || c.state.Exempt
	var id string
	if c.booking != nil {
		id = c.booking.ID
	}

	c.clearAlerts(ctx, reasonEnded)
	c.stopTimers()
	c.reset()

	if wasActive {
		c.logger.Info("Booking ended, checks stopped", "booking_id", id)
		c.record(ctx, Event{Type: EventBookingEnded, BookingID: id})
	}
}

// OnMetricSignal applies one pushed device reading
func (c *Controller) OnMetricSignal(ctx context.Context, sig Signal) {
	if !c.state.BookingActive {
		return
	}
	defer c.observePhase(ctx)

	positive, err := c.state.Metrics.apply(sig, c.settings.SoundThresholdDb)
	if err != nil {
		c.logger.Warn("Ignoring malformed signal", "signal", sig.Kind.String(), "value", sig.Value, "error", err)
		return
	}
	c.logger.Debug("Signal received", "signal", sig.Kind.String(), "value", sig.Value, "positive", positive)

	if positive && c.clearsAlerts(sig.Kind) {
		c.clearAlerts(ctx, reasonOccupied)
	}

	if c.state.ListenerShouldProcess {
		c.processOccupancy(ctx)
	}
}

// clearsAlerts reports whether a positive reading of kind is trusted enough
// to cancel a running countdown. Each channel follows the flag that enables
// it in IsOccupied.
func (c *Controller) clearsAlerts(kind SignalKind) bool {
	p := c.settings.Policy
	m := c.state.Metrics

	switch kind {
	case SignalPresence, SignalPeopleCount:
		if p.RequireUltrasound {
			return m.Ultrasound
		}
		return true
	case SignalActiveCalls:
		return p.UseActiveCall
	case SignalSoundLevel:
		return p.UseSoundLevel
	case SignalSharing:
		return p.UsePresentation
	case SignalUltrasound:
		return p.UseUltrasound || (p.RequireUltrasound && m.Presence)
	}
	return false
}

// OnPromptResponse handles an answer to a touch panel prompt
func (c *Controller) OnPromptResponse(ctx context.Context, feedbackID, optionID string) {
	if feedbackID != FeedbackID || optionID != CheckInOptionID {
		c.logger.Warn("Ignoring unknown prompt response", "feedback_id", feedbackID, "option_id", optionID)
		return
	}
	if !c.state.BookingActive {
		c.logger.Debug("Check-in without tracked booking")
		return
	}
	defer c.observePhase(ctx)

	c.logger.Info("Local check-in performed from touch panel")
	c.checkIn(ctx)
}

func (c *Controller) checkIn(ctx context.Context) {
	c.clearAlerts(ctx, reasonCheckIn)

	now := c.clock.Now()
	c.state.Metrics.Presence = true
	c.state.LastOccupiedAt = now
	c.state.LastEmptyAt = time.Time{}

	if c.state.ChecksStopped {
		return
	}
	if c.settings.StopChecksOnCheckIn {
		c.stopChecks(ctx, reasonCheckIn)
		return
	}

	c.state.ListenerShouldProcess = true
	if c.periodic == nil {
		c.armPeriodic()
	}
}

// OnInteraction treats touch panel activity as someone being in the room
func (c *Controller) OnInteraction(ctx context.Context, widgetID string) {
	if !c.state.BookingActive || !c.settings.Policy.UseInteraction {
		return
	}
	defer c.observePhase(ctx)

	c.logger.Debug("UI interaction detected", "widget_id", widgetID)
	c.clearAlerts(ctx, reasonInteraction)
	c.state.LastOccupiedAt = c.clock.Now()
	c.state.LastEmptyAt = time.Time{}

	if c.state.ListenerShouldProcess {
		c.processOccupancy(ctx)
	}
}

// processOccupancy advances the occupied/empty streaks and starts the
// countdown once the room has been empty long enough.
func (c *Controller) processOccupancy(ctx context.Context) {
	now := c.clock.Now()
	occupied := IsOccupied(c.state.Metrics, c.settings.Policy)
	c.logger.Debug("Evaluated occupancy",
		"occupied", occupied,
		"presence", c.state.Metrics.Presence,
		"people_count", c.state.Metrics.PeopleCount,
		"ultrasound", c.state.Metrics.Ultrasound,
		"in_call", c.state.Metrics.InCall,
		"sound", c.state.Metrics.SoundExceeded,
		"sharing", c.state.Metrics.Sharing)

	if occupied {
		if c.state.CountdownActive {
			c.clearAlerts(ctx, reasonOccupied)
		}
		if c.state.LastOccupiedAt.IsZero() {
			c.logger.Debug("Room occupancy detected, starting streak")
			c.state.RoomIsEmpty = false
			c.state.LastOccupiedAt = now
			c.state.LastEmptyAt = time.Time{}
		} else if now.Sub(c.state.LastOccupiedAt) >= c.settings.ConsideredOccupied {
			c.logger.Debug("Room considered occupied")
			c.state.RoomIsEmpty = false
			c.state.LastOccupiedAt = now
			if c.settings.OccupiedStopChecks {
				c.stopChecks(ctx, reasonOccupied)
			}
		}
	} else {
		if c.state.LastEmptyAt.IsZero() {
			c.logger.Debug("Room empty detected, starting streak")
			c.state.LastEmptyAt = now
			c.state.LastOccupiedAt = time.Time{}
		} else if now.Sub(c.state.LastEmptyAt) >= c.settings.EmptyBeforeRelease && !c.state.RoomIsEmpty {
			c.logger.Debug("Room considered empty")
			c.state.RoomIsEmpty = true
		}
	}

	if !c.state.RoomIsEmpty || c.state.CountdownActive {
		return
	}

	if now.Before(c.state.InitialGraceDeadline) {
		c.logger.Debug("Room empty but inside initial release delay", "grace_deadline", c.state.InitialGraceDeadline)
		return
	}

	// One more look before bothering anyone
	c.refresh(ctx)
	if IsOccupied(c.state.Metrics, c.settings.Policy) {
		c.logger.Info("Room occupied on recheck, countdown not started")
		c.state.RoomIsEmpty = false
		c.state.LastOccupiedAt = now
		c.state.LastEmptyAt = time.Time{}
		return
	}

	c.startCountdown(ctx)
}

// clearAlerts cancels a running countdown and its UI
func (c *Controller) clearAlerts(ctx context.Context, reason string) {
	wasCountdown := c.state.CountdownActive

	c.countdown.stop()
	c.countdown = nil
	c.state.RoomIsEmpty = false
	c.state.CountdownActive = false

	if !wasCountdown {
		return
	}

	c.logger.Info("Countdown aborted", "reason", reason)
	c.ui("clear prompt", c.port.ClearPrompt(ctx, FeedbackID))
	c.ui("clear countdown line", c.port.ClearCountdownLine(ctx))
	c.ui("stop sound", c.port.StopSound(ctx))
	c.record(ctx, Event{Type: EventCountdownAborted, Reason: reason})
}

// stopChecks disables further processing for the rest of this booking
func (c *Controller) stopChecks(ctx context.Context, reason string) {
	c.logger.Info("Future checks stopped for this booking", "reason", reason)
	c.state.ListenerShouldProcess = false
	c.state.ChecksStopped = true
	c.periodic.stop()
	c.periodic = nil
	c.record(ctx, Event{Type: EventChecksStopped, Reason: reason})
}

func (c *Controller) stopTimers() {
	c.periodic.stop()
	c.periodic = nil
	c.countdown.stop()
	c.countdown = nil
}

func (c *Controller) reset() {
	c.state = State{}
	c.booking = nil
	c.remaining = 0
}

// schedule arms a one-shot timer whose callback runs on the owning goroutine
func (c *Controller) schedule(d time.Duration, fn func(ctx context.Context)) *timerHandle {
	h := &timerHandle{}
	h.timer = c.clock.AfterFunc(d, func() {
		c.dispatch(func(ctx context.Context) {
			if h.cancelled {
				return
			}
			fn(ctx)
		})
	})
	return h
}

// armPeriodic schedules the next forced refresh. The next tick is only armed
// once the current one has finished, so ticks never overlap.
func (c *Controller) armPeriodic() {
	var h *timerHandle
	h = c.schedule(c.settings.PeriodicInterval, func(ctx context.Context) {
		if c.periodic != h {
			return
		}
		c.periodic = nil
		c.onPeriodicTick(ctx)
		if c.periodic == nil && c.state.BookingActive && c.state.ListenerShouldProcess {
			c.armPeriodic()
		}
	})
	c.periodic = h
}

func (c *Controller) onPeriodicTick(ctx context.Context) {
	defer c.observePhase(ctx)

	// the countdown runs its own final check
	if c.state.CountdownActive {
		return
	}

	c.logger.Debug("Periodic occupancy refresh")
	c.refresh(ctx)
	if c.state.ListenerShouldProcess {
		c.processOccupancy(ctx)
	}
}

// loadBooking fetches booking details. Failures fall back to a zero
// duration so the booking is still tracked.
func (c *Controller) loadBooking(ctx context.Context, id string) Booking {
	now := c.clock.Now()

	info, err := c.port.GetBooking(ctx, id)
	if err != nil {
		c.logger.Warn("Unable to get booking details", "booking_id", id, "error", err)
		return Booking{ID: id, StartTime: now, EndKnown: true}
	}

	booking, err := parseBooking(id, info, now)
	if err != nil {
		c.logger.Warn("Unable to parse meeting length", "booking_id", id, "error", err)
	}
	return booking
}

func parseBooking(id string, info *BookingInfo, now time.Time) (Booking, error) {
	b := Booking{
		ID:        id,
		MeetingID: info.MeetingID,
		StartTime: now,
		EndKnown:  true,
	}

	until, errUntil := strconv.ParseFloat(strings.TrimSpace(info.SecondsUntilEnd), 64)
	since, errSince := strconv.ParseFloat(strings.TrimSpace(info.SecondsSinceStart), 64)
	if err := errors.Join(errUntil, errSince); err != nil {
		return b, fmt.Errorf("invalid booking time: %w", err)
	}

	b.DurationHours = math.Round((until+since)/3600*100) / 100
	b.StartTime = now.Add(-time.Duration(since * float64(time.Second)))
	if info.StartTime != "" {
		if t, err := time.Parse(time.RFC3339, info.StartTime); err == nil {
			b.StartTime = t
		}
	}
	return b, nil
}

// ui logs a failed UI or audio command
func (c *Controller) ui(action string, err error) {
	if err != nil {
		c.logger.Warn("UI command failed", "action", action, "error", err)
	}
}

func (c *Controller) record(ctx context.Context, ev Event) {
	ev.Room = c.room
	ev.Phase = c.state.Phase()
	ev.Timestamp = c.clock.Now()
	if ev.BookingID == "" && c.booking != nil {
		ev.BookingID = c.booking.ID
	}
	c.recorder.Record(ctx, ev)
}

// observePhase records a phase change since the last call
func (c *Controller) observePhase(ctx context.Context) {
	phase := c.state.Phase()
	if phase == c.lastPhase {
		return
	}
	c.logger.Debug("Phase changed", "from", c.lastPhase, "to", phase)
	c.lastPhase = phase
	c.record(ctx, Event{Type: EventPhaseChanged, Reason: string(phase)})
}
