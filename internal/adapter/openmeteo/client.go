// Package openmeteo fetches current weather conditions from the Open-Meteo
// forecast API.
package openmeteo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/TimUx/alarm-monitor/internal/domain"
	"github.com/TimUx/alarm-monitor/internal/observability"
)

// hourlyFields are copied from the matching hourly entry into the current
// conditions, each with a "<field>_unit" companion when units are reported.
var hourlyFields = []string{
	"precipitation",
	"rain",
	"showers",
	"snowfall",
	"precipitation_probability",
}

// Client implements domain.WeatherClient.
type Client struct {
	baseURL    string
	params     url.Values
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client. extraParams is a query string such
// as "current_weather=true&hourly=precipitation"; bare keys are sent as "true".
func NewClient(baseURL, extraParams string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		params:  ParseParams(extraParams),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// ParseParams splits an "a=b&c" style string into query values.
func ParseParams(raw string) url.Values {
	params := url.Values{}
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			value = "true"
		}
		params.Set(key, value)
	}
	return params
}

// CurrentWeather returns the current conditions at lat/lon, or nil when the
// response carries no current block.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (domain.Weather, error) {
	params := url.Values{}
	for k, v := range c.params {
		params[k] = append([]string(nil), v...)
	}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))

	start := time.Now()
	body, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	c.metrics.EnrichmentDuration.WithLabelValues("weather").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrWeather, err)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: decode response: invalid JSON", domain.ErrWeather)
	}
	return parseCurrent(gjson.ParseBytes(body)), nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// parseCurrent extracts "current_weather" (or the newer "current") and adds
// precipitation figures from the hourly series at the current time, falling
// back to the last hourly entry when the time is not listed.
func parseCurrent(root gjson.Result) domain.Weather {
	current := root.Get("current_weather")
	if !current.IsObject() {
		current = root.Get("current")
	}
	if !current.IsObject() {
		return nil
	}

	raw, ok := current.Value().(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	weather := domain.Weather(raw)

	hourly := root.Get("hourly")
	times := hourly.Get("time")
	if !hourly.IsObject() || !times.IsArray() {
		return weather
	}
	timeValue := current.Get("time")
	if timeValue.Type != gjson.String {
		return weather
	}

	series := times.Array()
	if len(series) == 0 {
		return weather
	}
	index := len(series) - 1
	for i, t := range series {
		if t.Type == gjson.String && t.Str == timeValue.Str {
			index = i
			break
		}
	}

	units := root.Get("hourly_units")
	for _, field := range hourlyFields {
		values := hourly.Get(field)
		if !values.IsArray() {
			continue
		}
		items := values.Array()
		if index >= len(items) || items[index].Type == gjson.Null {
			continue
		}
		weather[field] = items[index].Value()
		if unit := units.Get(field); units.IsObject() && unit.Exists() {
			weather[field+"_unit"] = unit.Value()
		}
	}
	return weather
}
