// Package kafka publishes recorded alarms to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/TimUx/alarm-monitor/internal/config"
	"github.com/TimUx/alarm-monitor/internal/domain"
)

// Writer produces one message per recorded alarm.
// It implements pipeline.Notifier.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured alarm topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlarmTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: cfg.HTTPTimeout,
	}
	return &Writer{writer: w, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Notify publishes rec keyed by incident number, so every alarm for an
// incident lands on the same partition.
func (w *Writer) Notify(ctx context.Context, rec domain.AlarmRecord) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alarm %s: %w", rec.Alarm.IncidentNumber, err)
	}
	w.logger.Debug("alarm published", "topic", w.writer.Topic, "incident_number", rec.Alarm.IncidentNumber)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an AlarmRecord into a Kafka message.
func serializeToMessage(rec domain.AlarmRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alarm record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Alarm.IncidentNumber),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "incident_number", Value: []byte(rec.Alarm.IncidentNumber)},
			{Key: "received_at", Value: []byte(rec.ReceivedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
