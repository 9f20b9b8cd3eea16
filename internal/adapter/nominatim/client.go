// Package nominatim geocodes alarm addresses with the OpenStreetMap Nominatim
// search API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/TimUx/alarm-monitor/internal/domain"
	"github.com/TimUx/alarm-monitor/internal/observability"
)

// UserAgent identifies the service; the Nominatim usage policy rejects
// anonymous clients.
const UserAgent = "alarm-monitor/1.0 (fire dispatch dashboard)"

// Client implements domain.Geocoder using the Nominatim search endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. Requests are limited to one per
// second as the public instance requires.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		metrics: metrics,
		logger:  logger,
	}
}

// Geocode resolves a free-form address. It returns nil, nil when Nominatim
// has no match.
func (c *Client) Geocode(ctx context.Context, query string) (*domain.Coordinates, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %w", domain.ErrGeocoding, err)
	}

	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}

	start := time.Now()
	results, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	c.metrics.EnrichmentDuration.WithLabelValues("geocode").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGeocoding, err)
	}

	if len(results) == 0 {
		c.logger.Debug("geocoding returned no match", "query", query)
		return nil, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: parse lat %q: %w", domain.ErrGeocoding, results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: parse lon %q: %w", domain.ErrGeocoding, results[0].Lon, err)
	}
	return &domain.Coordinates{Lat: lat, Lon: lon}, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var results []place
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return results, nil
}

// Nominatim API response types. Coordinates arrive as strings.

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
