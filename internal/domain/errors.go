package domain

import "errors"

var (
	// ErrInvalidArgument marks a caller contract violation, such as an empty incident number.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicateIncident is returned when the history already holds the incident number.
	ErrDuplicateIncident = errors.New("duplicate incident")

	ErrGeocoding = errors.New("geocoding failed")
	ErrWeather   = errors.New("weather lookup failed")
	ErrMessenger = errors.New("messenger request failed")
)
