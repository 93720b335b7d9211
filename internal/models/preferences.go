// internal/models/preferences.go
package models

// EmailFrequency is the digest frequency for queued emails.
type EmailFrequency string

const (
	FrequencyImmediate EmailFrequency = "immediate"
	FrequencyHourly    EmailFrequency = "hourly"
	FrequencyDaily     EmailFrequency = "daily"
	FrequencyWeekly    EmailFrequency = "weekly"
)

// ChannelPrefs holds the per-type email/push toggles.
type ChannelPrefs struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
}

// NotificationPreferences is the persisted per-user preference record,
// upserted lazily. A user without a row behaves as DefaultPreferences.
type NotificationPreferences struct {
	UserID       string `json:"userId"`
	EmailEnabled bool   `json:"emailEnabled"`
	PushEnabled  bool   `json:"pushEnabled"`

	// Per-type toggles for the six persisted types. user_mention carries no
	// toggles and is treated as not-configured.
	InspectionAssigned  ChannelPrefs `json:"inspectionAssigned"`
	InspectionCompleted ChannelPrefs `json:"inspectionCompleted"`
	InspectionReviewed  ChannelPrefs `json:"inspectionReviewed"`
	StatusChanged       ChannelPrefs `json:"statusChanged"`
	UrgentAlert         ChannelPrefs `json:"urgentAlert"`
	SystemAnnouncement  ChannelPrefs `json:"systemAnnouncement"`

	EmailFrequency  EmailFrequency `json:"emailFrequency"`
	QuietHoursStart string         `json:"quietHoursStart"` // local "HH:MM"
	QuietHoursEnd   string         `json:"quietHoursEnd"`
	Timezone        string         `json:"timezone"`
}

// DefaultPreferences returns the documented default preference set applied
// when a user has no stored record: everything enabled except review and
// announcement emails, immediate frequency, quiet 22:00 through 08:00 UTC.
func DefaultPreferences(userID string) *NotificationPreferences {
	return &NotificationPreferences{
		UserID:              userID,
		EmailEnabled:        true,
		PushEnabled:         true,
		InspectionAssigned:  ChannelPrefs{Email: true, Push: true},
		InspectionCompleted: ChannelPrefs{Email: true, Push: true},
		InspectionReviewed:  ChannelPrefs{Email: false, Push: true},
		StatusChanged:       ChannelPrefs{Email: true, Push: true},
		UrgentAlert:         ChannelPrefs{Email: true, Push: true},
		SystemAnnouncement:  ChannelPrefs{Email: false, Push: true},
		EmailFrequency:      FrequencyImmediate,
		QuietHoursStart:     "22:00",
		QuietHoursEnd:       "08:00",
		Timezone:            "UTC",
	}
}
