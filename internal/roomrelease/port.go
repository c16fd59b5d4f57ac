package roomrelease

import "context"

// Prompt is a touch panel prompt with selectable options
type Prompt struct {
	Title      string
	Text       string
	FeedbackID string
	Options    []string
}

// BookingInfo is the booking as reported by the device. Time fields are
// passed through unparsed.
type BookingInfo struct {
	MeetingID         string
	StartTime         string
	SecondsUntilEnd   string
	SecondsSinceStart string
}

// Port is everything the controller needs from the room device
type Port interface {
	GetStatus(ctx context.Context, metric string) (string, error)

	ShowPrompt(ctx context.Context, prompt Prompt) error
	ClearPrompt(ctx context.Context, feedbackID string) error
	ShowCountdownLine(ctx context.Context, text string) error
	ClearCountdownLine(ctx context.Context) error
	PlaySound(ctx context.Context, name string) error
	StopSound(ctx context.Context) error

	GetBooking(ctx context.Context, id string) (*BookingInfo, error)
	GetAvailabilityStatus(ctx context.Context) (string, error)
	DeclineBooking(ctx context.Context, meetingID string) error
	GetCurrentBookingID(ctx context.Context) (string, error)
}
