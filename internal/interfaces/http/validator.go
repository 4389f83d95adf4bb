package http

import "regexp"

var (
	slugPattern      = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)
	timeOfDayPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// ValidSlug checks a username-style identifier.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// ValidTimeOfDay checks a 24-hour "HH:MM" string.
func ValidTimeOfDay(s string) bool {
	return timeOfDayPattern.MatchString(s)
}
