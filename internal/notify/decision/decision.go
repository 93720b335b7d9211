// internal/notify/decision/decision.go

// Package decision holds the pure delivery rules: whether an event type is
// emailed or pushed for a recipient, whether the recipient is inside quiet
// hours, and when a queued email should be scheduled. No I/O happens here.
package decision

import (
	"fmt"
	"time"

	"inspection-notifications/internal/models"
)

// channelPrefsFor maps each configurable notification type to the accessor
// for its preference toggles. An explicit map, rather than a dynamic
// prefs[type+"_email"] key lookup, lets the mapping be checked against the
// type enum at startup instead of silently no-oping at runtime.
var channelPrefsFor = map[models.NotificationType]func(*models.NotificationPreferences) models.ChannelPrefs{
	models.TypeInspectionAssigned:  func(p *models.NotificationPreferences) models.ChannelPrefs { return p.InspectionAssigned },
	models.TypeInspectionCompleted: func(p *models.NotificationPreferences) models.ChannelPrefs { return p.InspectionCompleted },
	models.TypeInspectionReviewed:  func(p *models.NotificationPreferences) models.ChannelPrefs { return p.InspectionReviewed },
	models.TypeStatusChanged:       func(p *models.NotificationPreferences) models.ChannelPrefs { return p.StatusChanged },
	models.TypeUrgentAlert:         func(p *models.NotificationPreferences) models.ChannelPrefs { return p.UrgentAlert },
	models.TypeSystemAnnouncement:  func(p *models.NotificationPreferences) models.ChannelPrefs { return p.SystemAnnouncement },
}

// unconfigurableTypes are part of the enum but carry no preference columns.
// They are never emailed or pushed.
var unconfigurableTypes = map[models.NotificationType]bool{
	models.TypeUserMention: true,
}

// ValidateTypeMapping checks every enum member is either mapped to a
// preference pair or explicitly listed as unconfigurable. Called once at
// startup; a failure here means the enum and the preference schema drifted.
func ValidateTypeMapping() error {
	for _, t := range models.Types {
		_, mapped := channelPrefsFor[t]
		if !mapped && !unconfigurableTypes[t] {
			return fmt.Errorf("notification type %q has no preference mapping", t)
		}
	}
	return nil
}

// prefsOrDefault substitutes the documented defaults for an absent record.
func prefsOrDefault(p *models.NotificationPreferences) *models.NotificationPreferences {
	if p == nil {
		return models.DefaultPreferences("")
	}
	return p
}

// ShouldEmail reports whether an email is queued for this type. Types
// outside the mapping are treated as not-configured rather than an error,
// since the enum may evolve independently of the preference schema.
func ShouldEmail(p *models.NotificationPreferences, t models.NotificationType) bool {
	p = prefsOrDefault(p)
	accessor, ok := channelPrefsFor[t]
	if !ok {
		return false
	}
	return p.EmailEnabled && accessor(p).Email
}

// ShouldPush reports whether a push toast fires for this type.
func ShouldPush(p *models.NotificationPreferences, t models.NotificationType) bool {
	p = prefsOrDefault(p)
	accessor, ok := channelPrefsFor[t]
	if !ok {
		return false
	}
	return p.PushEnabled && accessor(p).Push
}

// UserLocation resolves the recipient timezone, falling back to UTC on a
// missing or unparseable name.
func UserLocation(p *models.NotificationPreferences) *time.Location {
	p = prefsOrDefault(p)
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsQuietHours reports whether now falls in the recipient's quiet window
// [start, end). When start > end the window wraps midnight, e.g. 22:00-08:00
// is quiet from 22:00 through 07:59. Quiet hours suppress the push toast
// only; record creation and email queueing are unaffected.
func IsQuietHours(p *models.NotificationPreferences, now time.Time) bool {
	p = prefsOrDefault(p)

	start, okStart := parseClock(p.QuietHoursStart)
	end, okEnd := parseClock(p.QuietHoursEnd)
	if !okStart || !okEnd || start == end {
		return false
	}

	local := now.In(UserLocation(p))
	minute := local.Hour()*60 + local.Minute()

	if start < end {
		return minute >= start && minute < end
	}
	// Wraps midnight.
	return minute >= start || minute < end
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// digestHour is the local send hour for daily and weekly digests.
const digestHour = 9

// ScheduleFor computes the scheduled-send time for a queued email from the
// recipient's digest frequency. The result is never before now.
func ScheduleFor(freq models.EmailFrequency, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	switch freq {
	case models.FrequencyHourly:
		return now.Add(time.Hour)
	case models.FrequencyDaily:
		local := now.In(loc)
		next := time.Date(local.Year(), local.Month(), local.Day()+1, digestHour, 0, 0, 0, loc)
		return next
	case models.FrequencyWeekly:
		local := now.In(loc)
		next := time.Date(local.Year(), local.Month(), local.Day()+7, digestHour, 0, 0, 0, loc)
		return next
	default:
		// immediate, or anything unknown
		return now
	}
}
