package roomrelease

import "context"

// Device bridge methods
const (
	methodStatusGet         = "status.get"
	methodPromptDisplay     = "ui.prompt.display"
	methodPromptClear       = "ui.prompt.clear"
	methodTextLineDisplay   = "ui.textline.display"
	methodTextLineClear     = "ui.textline.clear"
	methodSoundPlay         = "audio.sound.play"
	methodSoundStop         = "audio.sound.stop"
	methodBookingGet        = "bookings.get"
	methodBookingAvailable  = "bookings.availability"
	methodBookingRespond    = "bookings.respond"
	methodBookingCurrentID  = "bookings.current"
	bookingResponseDecline  = "Decline"
	soundLoopOff            = "off"
	textLineDurationForever = 0
)

type valueResult struct {
	Value flexString `json:"value"`
}

type idResult struct {
	ID flexString `json:"id"`
}

type bookingResult struct {
	MeetingID         flexString `json:"meeting_id"`
	StartTime         flexString `json:"start_time"`
	SecondsUntilEnd   flexString `json:"seconds_until_end"`
	SecondsSinceStart flexString `json:"seconds_since_start"`
}

// DevicePort is the Port of one room, spoken over the MQTT device bridge.
// UI and audio commands are fire-and-forget; queries and the decline wait
// for the bridge to answer.
type DevicePort struct {
	room string
	rpc  *Requester
}

// NewDevicePort creates the port for room
func NewDevicePort(room string, rpc *Requester) *DevicePort {
	return &DevicePort{room: room, rpc: rpc}
}

func (p *DevicePort) GetStatus(ctx context.Context, metric string) (string, error) {
	var res valueResult
	if err := p.rpc.Call(ctx, p.room, methodStatusGet, map[string]string{"metric": metric}, &res); err != nil {
		return "", err
	}
	return string(res.Value), nil
}

func (p *DevicePort) ShowPrompt(ctx context.Context, prompt Prompt) error {
	return p.rpc.Send(p.room, methodPromptDisplay, map[string]interface{}{
		"title":       prompt.Title,
		"text":        prompt.Text,
		"feedback_id": prompt.FeedbackID,
		"options":     prompt.Options,
	})
}

func (p *DevicePort) ClearPrompt(ctx context.Context, feedbackID string) error {
	return p.rpc.Send(p.room, methodPromptClear, map[string]string{"feedback_id": feedbackID})
}

func (p *DevicePort) ShowCountdownLine(ctx context.Context, text string) error {
	return p.rpc.Send(p.room, methodTextLineDisplay, map[string]interface{}{
		"text":     text,
		"duration": textLineDurationForever,
	})
}

func (p *DevicePort) ClearCountdownLine(ctx context.Context) error {
	return p.rpc.Send(p.room, methodTextLineClear, nil)
}

func (p *DevicePort) PlaySound(ctx context.Context, name string) error {
	return p.rpc.Send(p.room, methodSoundPlay, map[string]string{"sound": name, "loop": soundLoopOff})
}

func (p *DevicePort) StopSound(ctx context.Context) error {
	return p.rpc.Send(p.room, methodSoundStop, nil)
}

func (p *DevicePort) GetBooking(ctx context.Context, id string) (*BookingInfo, error) {
	var res bookingResult
	if err := p.rpc.Call(ctx, p.room, methodBookingGet, map[string]string{"id": id}, &res); err != nil {
		return nil, err
	}
	return &BookingInfo{
		MeetingID:         string(res.MeetingID),
		StartTime:         string(res.StartTime),
		SecondsUntilEnd:   string(res.SecondsUntilEnd),
		SecondsSinceStart: string(res.SecondsSinceStart),
	}, nil
}

func (p *DevicePort) GetAvailabilityStatus(ctx context.Context) (string, error) {
	var res valueResult
	if err := p.rpc.Call(ctx, p.room, methodBookingAvailable, nil, &res); err != nil {
		return "", err
	}
	return string(res.Value), nil
}

func (p *DevicePort) DeclineBooking(ctx context.Context, meetingID string) error {
	return p.rpc.Call(ctx, p.room, methodBookingRespond, map[string]string{
		"type":       bookingResponseDecline,
		"meeting_id": meetingID,
	}, nil)
}

func (p *DevicePort) GetCurrentBookingID(ctx context.Context) (string, error) {
	var res idResult
	if err := p.rpc.Call(ctx, p.room, methodBookingCurrentID, nil, &res); err != nil {
		return "", err
	}
	return string(res.ID), nil
}
