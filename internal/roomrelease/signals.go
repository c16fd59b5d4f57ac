package roomrelease

import (
	"fmt"
	"strconv"
	"strings"
)

// SignalKind identifies one of the room occupancy signals
type SignalKind int

const (
	SignalActiveCalls SignalKind = iota + 1
	SignalPresence
	SignalUltrasound
	SignalPeopleCount
	SignalSoundLevel
	SignalSharing
)

// Device status metric names, used both as status topic leaves and as
// GetStatus arguments.
const (
	MetricActiveCalls      = "active_calls"
	MetricPresence         = "presence"
	MetricUltrasound       = "ultrasound"
	MetricPeopleCount      = "people_count"
	MetricSoundLevel       = "sound_level"
	MetricPresentationMode = "presentation_mode"
)

var signalMetrics = map[SignalKind]string{
	SignalActiveCalls: MetricActiveCalls,
	SignalPresence:    MetricPresence,
	SignalUltrasound:  MetricUltrasound,
	SignalPeopleCount: MetricPeopleCount,
	SignalSoundLevel:  MetricSoundLevel,
	SignalSharing:     MetricPresentationMode,
}

// allSignals is the refresh order
var allSignals = []SignalKind{
	SignalActiveCalls,
	SignalUltrasound,
	SignalPresence,
	SignalPeopleCount,
	SignalSoundLevel,
	SignalSharing,
}

func (k SignalKind) String() string {
	if m, ok := signalMetrics[k]; ok {
		return m
	}
	return fmt.Sprintf("signal(%d)", int(k))
}

// Metric returns the device status metric backing this signal
func (k SignalKind) Metric() string {
	return signalMetrics[k]
}

// SignalKindForMetric maps a device status metric name to its signal
func SignalKindForMetric(metric string) (SignalKind, bool) {
	for kind, name := range signalMetrics {
		if name == metric {
			return kind, true
		}
	}
	return 0, false
}

// Signal is a single raw reading pushed by the device
type Signal struct {
	Kind  SignalKind
	Value string
}

// apply writes the signal into the metrics and reports whether the reading
// indicates presence. Malformed values leave the metrics untouched.
func (m *Metrics) apply(sig Signal, soundThresholdDb int) (bool, error) {
	switch sig.Kind {
	case SignalActiveCalls:
		n, err := parseCount(sig.Value)
		if err != nil {
			return false, err
		}
		m.InCall = n > 0
		return m.InCall, nil

	case SignalPresence:
		m.Presence = parseYes(sig.Value)
		return m.Presence, nil

	case SignalUltrasound:
		m.Ultrasound = parseYes(sig.Value)
		return m.Ultrasound, nil

	case SignalPeopleCount:
		n, err := parseCount(sig.Value)
		if err != nil {
			return false, err
		}
		// -1 means the camera cannot count
		if n < 0 {
			n = 0
		}
		m.PeopleCount = n
		return n > 0, nil

	case SignalSoundLevel:
		level, err := strconv.ParseFloat(strings.TrimSpace(sig.Value), 64)
		if err != nil {
			return false, fmt.Errorf("invalid sound level %q: %w", sig.Value, err)
		}
		m.SoundExceeded = level > float64(soundThresholdDb)
		return m.SoundExceeded, nil

	case SignalSharing:
		m.Sharing = parseSharing(sig.Value)
		return m.Sharing, nil
	}

	return false, fmt.Errorf("unknown signal kind %d", int(sig.Kind))
}

func parseCount(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid count %q: %w", v, err)
	}
	return n, nil
}

func parseYes(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "on", "1":
		return true
	}
	return false
}

// parseSharing treats any presentation mode other than Off as sharing
func parseSharing(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "off", "false", "0":
		return false
	}
	return true
}
