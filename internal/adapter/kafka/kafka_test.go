package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimUx/alarm-monitor/internal/config"
	"github.com/TimUx/alarm-monitor/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	received := time.Date(2024, 3, 5, 14, 7, 40, 0, time.UTC)
	rec := domain.AlarmRecord{
		ID:          "rec-1",
		Alarm:       domain.Alarm{IncidentNumber: "7850001123", Keyword: "F3Y – Brand Wohnhaus"},
		Coordinates: &domain.Coordinates{Lat: 50.81, Lon: 9.34},
		ReceivedAt:  received,
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("7850001123"), msg.Key)
	assert.Contains(t, string(msg.Value), `"incident_number":"7850001123"`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "incident_number", msg.Headers[0].Key)
	assert.Equal(t, []byte("7850001123"), msg.Headers[0].Value)
	assert.Equal(t, "received_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-03-05T14:07:40Z"), msg.Headers[1].Value)

	var decoded domain.AlarmRecord
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, rec.ID, decoded.ID)
	assert.True(t, received.Equal(decoded.ReceivedAt))
}

func TestNewWriter(t *testing.T) {
	w := NewWriter(&config.Config{
		KafkaBrokers:    []string{"localhost:9092"},
		KafkaAlarmTopic: "alarms",
		HTTPTimeout:     5 * time.Second,
	}, nil)
	defer w.Close()

	assert.Equal(t, "kafka", w.Name())
	assert.Equal(t, "alarms", w.writer.Topic)
	assert.Equal(t, 5*time.Second, w.writer.WriteTimeout)
}
