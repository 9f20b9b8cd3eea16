package nominatim

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimUx/alarm-monitor/internal/domain"
	"github.com/TimUx/alarm-monitor/internal/observability"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	calls  int
	result *domain.Coordinates
	err    error
}

func (m *countingGeocoder) Geocode(_ context.Context, _ string) (*domain.Coordinates, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return nil, nil
	}
	c := *m.result
	return &c, nil
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{result: &domain.Coordinates{Lat: 50.8, Lon: 9.2}}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedGeocoder(inner, 10, metrics)

	c1, err := cached.Geocode(context.Background(), "Markt 1, Treysa")
	require.NoError(t, err)
	require.NotNil(t, c1)

	c2, err := cached.Geocode(context.Background(), "  markt 1,   TREYSA ")
	require.NoError(t, err)
	require.NotNil(t, c2)
	assert.Equal(t, *c1, *c2)

	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("miss")))
}

func TestCachedGeocoder_NoMatchNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	for range 2 {
		coords, err := cached.Geocode(context.Background(), "Nirgendwo")
		require.NoError(t, err)
		assert.Nil(t, coords)
	}
	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_ErrorNotCached(t *testing.T) {
	inner := &countingGeocoder{err: fmt.Errorf("%w: boom", domain.ErrGeocoding)}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.Geocode(context.Background(), "Treysa")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGeocoding))

	_, err = cached.Geocode(context.Background(), "Treysa")
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_ReturnsCopies(t *testing.T) {
	inner := &countingGeocoder{result: &domain.Coordinates{Lat: 1, Lon: 2}}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	c1, err := cached.Geocode(context.Background(), "Treysa")
	require.NoError(t, err)
	c1.Lat = 99

	c2, err := cached.Geocode(context.Background(), "Treysa")
	require.NoError(t, err)
	assert.Equal(t, 1.0, c2.Lat)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.Coordinates{Lat: 1})
	c.put("b", domain.Coordinates{Lat: 2})

	_, ok := c.get("a") // a becomes most recently used
	require.True(t, ok)

	c.put("c", domain.Coordinates{Lat: 3})

	_, ok = c.get("b")
	assert.False(t, ok, "b should be evicted")
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.Coordinates{Lat: 1})
	c.put("a", domain.Coordinates{Lat: 5})

	v, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 5.0, v.Lat)
	assert.Len(t, c.entries, 1)
}
