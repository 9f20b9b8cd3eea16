package pipeline

import (
	"context"
	"log/slog"

	"github.com/TimUx/alarm-monitor/internal/domain"
)

// resolveCoordinates prefers the alarm's own position and falls back to
// geocoding its location. Any failure leaves the coordinates absent.
func (p *Pipeline) resolveCoordinates(ctx context.Context, logger *slog.Logger, alarm domain.Alarm) *domain.Coordinates {
	if coords, ok := alarm.Coordinates(); ok {
		return coords
	}
	if p.geocoder == nil || alarm.Location == "" {
		return nil
	}

	coords, err := p.geocoder.Geocode(ctx, alarm.Location)
	if err != nil {
		logger.Warn("geocoding failed", "location", alarm.Location, "error", err)
		p.metrics.EnrichmentRequests.WithLabelValues("geocode", "error").Inc()
		return nil
	}
	if coords == nil {
		logger.Info("location not found", "location", alarm.Location)
		p.metrics.EnrichmentRequests.WithLabelValues("geocode", "empty").Inc()
		return nil
	}
	p.metrics.EnrichmentRequests.WithLabelValues("geocode", "success").Inc()
	return coords
}

// resolveWeather is only attempted with coordinates. Any failure leaves the
// weather absent.
func (p *Pipeline) resolveWeather(ctx context.Context, logger *slog.Logger, coords *domain.Coordinates) domain.Weather {
	if p.weather == nil || coords == nil {
		return nil
	}

	weather, err := p.weather.CurrentWeather(ctx, coords.Lat, coords.Lon)
	if err != nil {
		logger.Warn("weather lookup failed", "lat", coords.Lat, "lon", coords.Lon, "error", err)
		p.metrics.EnrichmentRequests.WithLabelValues("weather", "error").Inc()
		return nil
	}
	if len(weather) == 0 {
		p.metrics.EnrichmentRequests.WithLabelValues("weather", "empty").Inc()
		return nil
	}
	p.metrics.EnrichmentRequests.WithLabelValues("weather", "success").Inc()
	return weather
}
