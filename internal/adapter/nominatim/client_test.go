package nominatim

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/TimUx/alarm-monitor/internal/domain"
	"github.com/TimUx/alarm-monitor/internal/observability"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_Geocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Hauptstraße 12, Treysa", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[{"lat": "50.8123", "lon": "9.1876", "display_name": "Hauptstraße 12, Treysa"}]`))
	}))
	defer srv.Close()

	coords, err := testClient(srv.URL).Geocode(context.Background(), "Hauptstraße 12, Treysa")
	require.NoError(t, err)
	require.NotNil(t, coords)
	assert.Equal(t, 50.8123, coords.Lat)
	assert.Equal(t, 9.1876, coords.Lon)
}

func TestClient_Geocode_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	coords, err := testClient(srv.URL).Geocode(context.Background(), "Nirgendwo")
	require.NoError(t, err)
	assert.Nil(t, coords)
}

func TestClient_Geocode_EmptyQuerySkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer srv.Close()

	coords, err := testClient(srv.URL).Geocode(context.Background(), "  ")
	require.NoError(t, err)
	assert.Nil(t, coords)
	assert.False(t, called)
}

func TestClient_Geocode_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Geocode(context.Background(), "Treysa")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeocoding)
	assert.Contains(t, err.Error(), "429")
}

func TestClient_Geocode_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Geocode(context.Background(), "Treysa")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeocoding)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_Geocode_UnparseableCoordinate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"lat": "north", "lon": "9.1"}]`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Geocode(context.Background(), "Treysa")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeocoding)
}

func TestClient_Geocode_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL).Geocode(ctx, "Treysa")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeocoding)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("https://nominatim.example.org/search", 7*time.Second, observability.NewMetricsForTesting(), slog.Default())
	assert.Equal(t, 7*time.Second, c.httpClient.Timeout)
	assert.Equal(t, rate.Every(time.Second), c.limiter.Limit())
}
