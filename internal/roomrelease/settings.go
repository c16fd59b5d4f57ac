package roomrelease

import (
	"time"

	"github.com/saaga0h/jeeves-roomrelease/pkg/config"
)

// Prompt identity and wording shown on the room's touch panel
const (
	FeedbackID        = "alertResponse"
	CheckInOptionID   = "1"
	PromptTitle       = "Unoccupied Room"
	PromptText        = "Please Check-In below to retain this Room Booking."
	CheckInLabel      = "Check-In"
	AnnouncementSound = "Announcement"

	// AvailabilityBookedUntil is the availability status of a booking with a known end
	AvailabilityBookedUntil = "BookedUntil"

	// promptRepeatSeconds re-issues the prompt in case it was dismissed or timed out
	promptRepeatSeconds = 5
)

// Settings are the tunables of one room's controller
type Settings struct {
	Policy Policy

	ConsideredOccupied    time.Duration
	EmptyBeforeRelease    time.Duration
	InitialReleaseDelay   time.Duration
	PeriodicInterval      time.Duration
	PromptDurationSeconds int
	SoundThresholdDb      int
	IgnoreLongerThanHours float64

	StopChecksOnCheckIn bool
	OccupiedStopChecks  bool
	PlayAnnouncement    bool
}

// SettingsFromConfig builds controller settings from the agent configuration
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Policy: Policy{
			UseActiveCall:     cfg.UseActiveCall,
			UseSoundLevel:     cfg.UseSoundLevel,
			UsePresentation:   cfg.UsePresentation,
			UseUltrasound:     cfg.UseUltrasound,
			RequireUltrasound: cfg.RequireUltrasound,
			UseInteraction:    cfg.UseInteraction,
		},
		ConsideredOccupied:    time.Duration(cfg.ConsideredOccupiedMinutes) * time.Minute,
		EmptyBeforeRelease:    time.Duration(cfg.EmptyBeforeReleaseMinutes) * time.Minute,
		InitialReleaseDelay:   time.Duration(cfg.InitialReleaseDelayMinutes) * time.Minute,
		PeriodicInterval:      time.Duration(cfg.PeriodicIntervalMinutes) * time.Minute,
		PromptDurationSeconds: cfg.PromptDurationSeconds,
		SoundThresholdDb:      cfg.SoundThresholdDb,
		IgnoreLongerThanHours: cfg.IgnoreLongerThanHours,
		StopChecksOnCheckIn:   cfg.StopChecksOnCheckIn,
		OccupiedStopChecks:    cfg.OccupiedStopChecks,
		PlayAnnouncement:      cfg.PlayAnnouncement,
	}
}
