package domain

import "context"

// Geocoder resolves a free-form address to coordinates.
type Geocoder interface {
	// Geocode returns nil, nil when the provider has no match for query.
	Geocode(ctx context.Context, query string) (*Coordinates, error)
}

// WeatherClient fetches current conditions at a position.
type WeatherClient interface {
	// CurrentWeather returns nil, nil when the provider reports no current conditions.
	CurrentWeather(ctx context.Context, lat, lon float64) (Weather, error)
}

// Participant is a responder who acknowledged an emergency in the alarm messenger.
type Participant map[string]any

// Messenger links incidents to emergencies in an external alarm messenger.
type Messenger interface {
	RegisterEmergency(incidentNumber, emergencyID string)
	Participants(ctx context.Context, incidentNumber string) ([]Participant, error)
}
