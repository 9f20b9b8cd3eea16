// Package messenger talks to the alarm messenger service, which tracks which
// members responded to an emergency.
package messenger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"

	"github.com/TimUx/alarm-monitor/internal/domain"
	"github.com/TimUx/alarm-monitor/internal/observability"
)

// registrationTTL bounds how long an incident stays linked to its emergency.
const registrationTTL = 24 * time.Hour

type participantsResponse struct {
	Participants []domain.Participant `json:"participants"`
}

// Client implements domain.Messenger.
type Client struct {
	http          *resty.Client
	registrations *cache.Cache
	metrics       *observability.Metrics
	logger        *slog.Logger
}

// NewClient returns a messenger client, or nil when either the URL or the API
// key is empty.
func NewClient(baseURL, apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" || apiKey == "" {
		return nil
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("X-API-Key", apiKey).
			SetHeader("Accept", "application/json"),
		registrations: cache.New(registrationTTL, time.Hour),
		metrics:       metrics,
		logger:        logger,
	}
}

// RegisterEmergency links an incident number to the messenger's emergency id.
// Empty values are ignored.
func (c *Client) RegisterEmergency(incidentNumber, emergencyID string) {
	incidentNumber = strings.TrimSpace(incidentNumber)
	emergencyID = strings.TrimSpace(emergencyID)
	if incidentNumber == "" || emergencyID == "" {
		return
	}
	c.registrations.Set(incidentNumber, emergencyID, cache.DefaultExpiration)
	c.logger.Debug("emergency registered", "incident_number", incidentNumber, "emergency_id", emergencyID)
}

// EmergencyID returns the emergency registered for an incident.
func (c *Client) EmergencyID(incidentNumber string) (string, bool) {
	v, ok := c.registrations.Get(strings.TrimSpace(incidentNumber))
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// Participants fetches the responders for an incident. It returns nil without
// error when no emergency is registered for the incident.
func (c *Client) Participants(ctx context.Context, incidentNumber string) ([]domain.Participant, error) {
	emergencyID, ok := c.EmergencyID(incidentNumber)
	if !ok {
		return nil, nil
	}

	start := time.Now()
	var result participantsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", emergencyID).
		SetResult(&result).
		Get("/api/emergencies/{id}/participants")
	c.metrics.EnrichmentDuration.WithLabelValues("messenger").Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.EnrichmentRequests.WithLabelValues("messenger", "error").Inc()
		return nil, fmt.Errorf("%w: participants request: %w", domain.ErrMessenger, err)
	}
	if resp.IsError() {
		c.metrics.EnrichmentRequests.WithLabelValues("messenger", "error").Inc()
		return nil, fmt.Errorf("%w: messenger API error: status %d", domain.ErrMessenger, resp.StatusCode())
	}

	c.metrics.EnrichmentRequests.WithLabelValues("messenger", "success").Inc()
	if result.Participants == nil {
		return []domain.Participant{}, nil
	}
	return result.Participants, nil
}
