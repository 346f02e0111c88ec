package config

import (
	"time"
)

// TimezoneConfig holds timezone configuration
type TimezoneConfig struct {
	Location *time.Location
}

// AppTimezone is the global timezone configuration
var AppTimezone *TimezoneConfig

// InitializeTimezone sets up the application timezone from APP_TIMEZONE
func InitializeTimezone() error {
	tzName := getEnv("APP_TIMEZONE", "UTC")

	location, err := time.LoadLocation(tzName)
	if err != nil {
		return err
	}

	AppTimezone = &TimezoneConfig{Location: location}
	return nil
}

func location() *time.Location {
	if AppTimezone != nil && AppTimezone.Location != nil {
		return AppTimezone.Location
	}
	return time.UTC
}

// GetCurrentTime returns current time in the application timezone
func GetCurrentTime() time.Time {
	return time.Now().In(location())
}

// FormatTimeInTimezone formats a time in the application timezone
func FormatTimeInTimezone(t time.Time, layout string) string {
	return t.In(location()).Format(layout)
}

// GetTimezoneString returns the timezone string
func GetTimezoneString() string {
	return location().String()
}
