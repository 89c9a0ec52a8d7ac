package models

import "time"

const (
	// DefaultPricePerHour is used when the settings table has no price_per_hour.
	DefaultPricePerHour int64 = 5000

	DefaultOperatingStartHour = 8
	DefaultOperatingEndHour   = 23

	// DefaultMaxAdvanceDays limits how far ahead a court can be booked.
	DefaultMaxAdvanceDays = 60

	// DefaultNotifyWindow applies to promotions caused by a freed slot.
	DefaultNotifyWindow = 5 * time.Minute

	// DefaultAdminNotifyWindow applies to promotions an administrator triggers.
	DefaultAdminNotifyWindow = 15 * time.Minute

	// MaxAlternatives is how many nearby start times a conflict suggests.
	MaxAlternatives = 3

	// AlternativeStep and AlternativeMaxOffset bound the alternative search, in minutes.
	AlternativeStep      = 30
	AlternativeMaxOffset = 180

	// WorkerQueueSize is the in-memory fallback queue size of the calendar worker.
	WorkerQueueSize = 1000
)

// Setting keys.
const (
	SettingPricePerHour       = "price_per_hour"
	SettingBankAlias          = "bank_alias"
	SettingOperatingStartHour = "operating_start_hour"
	SettingOperatingEndHour   = "operating_end_hour"
)

// Durations a reservation may have, in minutes.
var AllowedDurations = []int{60, 90}

func IsAllowedDuration(minutes int) bool {
	for _, d := range AllowedDurations {
		if d == minutes {
			return true
		}
	}
	return false
}
