// Package mqtt publishes the latest recorded alarm as a retained MQTT message.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/TimUx/alarm-monitor/internal/config"
	"github.com/TimUx/alarm-monitor/internal/domain"
)

const qosAtLeastOnce byte = 1

// publisher is the subset of the paho client the sink needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// Publisher implements pipeline.Notifier. Messages are retained so a display
// subscribing later still receives the current alarm.
type Publisher struct {
	client publisher
	close  func()
	topic  string
	logger *slog.Logger
}

// NewPublisher connects to the configured broker.
func NewPublisher(cfg *config.Config, logger *slog.Logger) (*Publisher, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
	}
	if cfg.MQTTPassword != "" {
		opts.SetPassword(cfg.MQTTPassword)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(cfg.HTTPTimeout)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", cfg.MQTTBroker, "error", err)
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.HTTPTimeout) {
		return nil, fmt.Errorf("connect to MQTT broker %s: timed out", cfg.MQTTBroker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.MQTTBroker, err)
	}

	return &Publisher{
		client: client,
		close:  func() { client.Disconnect(250) },
		topic:  cfg.MQTTTopic,
		logger: logger,
	}, nil
}

func (p *Publisher) Name() string { return "mqtt" }

// Notify publishes rec and waits for the broker acknowledgement or ctx.
func (p *Publisher) Notify(ctx context.Context, rec domain.AlarmRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("serialize alarm record: %w", err)
	}

	token := p.client.Publish(p.topic, qosAtLeastOnce, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", p.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	p.logger.Debug("alarm published", "topic", p.topic, "incident_number", rec.Alarm.IncidentNumber)
	return nil
}

// Close disconnects, giving in-flight messages a short grace period.
func (p *Publisher) Close() {
	if p.close != nil {
		p.close()
	}
}
