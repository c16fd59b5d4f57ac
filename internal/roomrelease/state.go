package roomrelease

import "time"

// Phase is a coarse view of the controller state used for logs and metrics
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseTracking       Phase = "tracking"
	PhaseEmptyConfirmed Phase = "empty_confirmed"
	PhaseCountdown      Phase = "countdown"
	PhaseExempt         Phase = "exempt"
)

// State holds everything the controller knows about the current booking.
// A zero timestamp means the corresponding streak is not running.
type State struct {
	BookingActive         bool
	ListenerShouldProcess bool
	RoomIsEmpty           bool
	CountdownActive       bool
	Exempt                bool
	// ChecksStopped stays set until the booking ends or is replaced
	ChecksStopped bool

	LastOccupiedAt       time.Time
	LastEmptyAt          time.Time
	InitialGraceDeadline time.Time

	Metrics Metrics
}

// Phase derives the lifecycle phase from the state flags
func (s State) Phase() Phase {
	switch {
	case s.Exempt:
		return PhaseExempt
	case !s.BookingActive:
		return PhaseIdle
	case s.CountdownActive:
		return PhaseCountdown
	case s.RoomIsEmpty:
		return PhaseEmptyConfirmed
	default:
		return PhaseTracking
	}
}

// Booking is the controller's view of the tracked calendar booking
type Booking struct {
	ID            string
	MeetingID     string
	StartTime     time.Time
	DurationHours float64
	EndKnown      bool
}
