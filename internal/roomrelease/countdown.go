package roomrelease

import (
	"context"
	"fmt"
	"time"
)

func countdownText(remaining int) string {
	return fmt.Sprintf("Unoccupied Room Alert! It will be released in %d seconds.<br>Please use Touch Panel to retain booking.", remaining)
}

// startCountdown asks the room to check in and starts the one second tick
func (c *Controller) startCountdown(ctx context.Context) {
	c.logger.Warn("Room is empty, starting countdown to decline booking",
		"prompt_duration_sec", c.settings.PromptDurationSeconds)

	c.state.CountdownActive = true
	c.remaining = c.settings.PromptDurationSeconds
	c.record(ctx, Event{Type: EventCountdownStarted})

	c.promptUser(ctx)
	c.countdown = c.schedule(time.Second, c.onCountdownTick)
}

func (c *Controller) promptUser(ctx context.Context) {
	c.ui("display prompt", c.port.ShowPrompt(ctx, Prompt{
		Title:      PromptTitle,
		Text:       PromptText,
		FeedbackID: FeedbackID,
		Options:    []string{CheckInLabel},
	}))

	if c.settings.PlayAnnouncement {
		c.ui("play sound", c.port.PlaySound(ctx, AnnouncementSound))
	}
}

func (c *Controller) onCountdownTick(ctx context.Context) {
	c.countdown = nil
	c.remaining--

	if c.remaining <= 0 {
		c.expireCountdown(ctx)
		return
	}

	c.ui("display countdown line", c.port.ShowCountdownLine(ctx, countdownText(c.remaining)))
	if c.remaining%promptRepeatSeconds == 0 {
		c.promptUser(ctx)
	}

	c.countdown = c.schedule(time.Second, c.onCountdownTick)
}

// expireCountdown runs the final check and declines the booking if the
// room is still empty.
func (c *Controller) expireCountdown(ctx context.Context) {
	defer c.observePhase(ctx)

	c.logger.Debug("Countdown expired, final occupancy check")
	c.refresh(ctx)

	if IsOccupied(c.state.Metrics, c.settings.Policy) {
		c.logger.Info("Room occupied at countdown expiry, keeping booking")
		c.clearAlerts(ctx, reasonFinalCheck)
		c.state.LastOccupiedAt = c.clock.Now()
		c.state.LastEmptyAt = time.Time{}
		return
	}

	c.decline(ctx)
}

// decline releases the booking. The outcome is logged and the controller
// returns to idle either way.
func (c *Controller) decline(ctx context.Context) {
	c.logger.Info("Initiating booking removal from device")

	c.ui("clear prompt", c.port.ClearPrompt(ctx, FeedbackID))
	c.ui("stop sound", c.port.StopSound(ctx))
	c.ui("clear countdown line", c.port.ClearCountdownLine(ctx))
	c.stopTimers()

	var bookingID string
	if c.booking != nil {
		bookingID = c.booking.ID
	}
	defer c.reset()

	// The meeting id can change with extensions, ask for the live one
	info, err := c.port.GetBooking(ctx, bookingID)
	if err != nil {
		c.logger.Error("Unable to look up booking for decline", "booking_id", bookingID, "error", err)
		c.record(ctx, Event{Type: EventDeclineFailed, BookingID: bookingID, Error: err.Error()})
		return
	}

	if err := c.port.DeclineBooking(ctx, info.MeetingID); err != nil {
		c.logger.Error("Booking decline failed", "booking_id", bookingID, "meeting_id", info.MeetingID, "error", err)
		c.record(ctx, Event{Type: EventDeclineFailed, BookingID: bookingID, MeetingID: info.MeetingID, Error: err.Error()})
		return
	}

	c.logger.Info("Booking declined", "booking_id", bookingID, "meeting_id", info.MeetingID)
	c.record(ctx, Event{Type: EventDeclineSucceeded, BookingID: bookingID, MeetingID: info.MeetingID})
}
