package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	httpadapter "github.com/TimUx/alarm-monitor/internal/adapter/http"
	kafkaadapter "github.com/TimUx/alarm-monitor/internal/adapter/kafka"
	"github.com/TimUx/alarm-monitor/internal/adapter/mail"
	"github.com/TimUx/alarm-monitor/internal/adapter/messenger"
	mqttadapter "github.com/TimUx/alarm-monitor/internal/adapter/mqtt"
	"github.com/TimUx/alarm-monitor/internal/adapter/nominatim"
	"github.com/TimUx/alarm-monitor/internal/adapter/openmeteo"
	"github.com/TimUx/alarm-monitor/internal/config"
	"github.com/TimUx/alarm-monitor/internal/domain"
	"github.com/TimUx/alarm-monitor/internal/observability"
	"github.com/TimUx/alarm-monitor/internal/pipeline"
	"github.com/TimUx/alarm-monitor/internal/settings"
	"github.com/TimUx/alarm-monitor/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	history := store.New(cfg.HistoryFile, cfg.HistorySize, logger, metrics)
	logger.Info("history loaded", "file", cfg.HistoryFile, "records", history.Len())

	defaults := settings.Settings{
		ActivationGroups:       cfg.ActivationGroups,
		DisplayDurationMinutes: cfg.DisplayDurationMinutes,
	}
	var provider settings.Provider = settings.NewStatic(defaults)
	if cfg.SettingsFile != "" {
		provider = settings.NewFileProvider(cfg.SettingsFile, defaults, logger)
		logger.Info("settings file enabled", "file", cfg.SettingsFile)
	}

	geocoder := nominatim.NewCachedGeocoder(
		nominatim.NewClient(cfg.NominatimURL, cfg.HTTPTimeout, metrics, logger),
		cfg.GeocodeCacheSize, metrics,
	)
	weather := openmeteo.NewClient(cfg.WeatherURL, cfg.WeatherParams, cfg.HTTPTimeout, metrics, logger)

	var (
		opts         []pipeline.Option
		participants httpadapter.ParticipantLister
		closers      []func()
	)

	if cfg.MessengerEnabled() {
		client := messenger.NewClient(cfg.MessengerURL, cfg.MessengerAPIKey, cfg.HTTPTimeout, metrics, logger)
		opts = append(opts, pipeline.WithRegistrar(client))
		participants = client
		logger.Info("alarm messenger enabled", "url", cfg.MessengerURL)
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithNotifiers(writer))
		closers = append(closers, func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		})
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlarmTopic)
	}

	if cfg.MQTTBroker != "" {
		publisher, err := mqttadapter.NewPublisher(cfg, logger)
		if err != nil {
			logger.Error("mqtt sink disabled", "error", err)
		} else {
			opts = append(opts, pipeline.WithNotifiers(publisher))
			closers = append(closers, publisher.Close)
			logger.Info("mqtt sink enabled", "broker", cfg.MQTTBroker, "topic", cfg.MQTTTopic)
		}
	}

	p := pipeline.New(history, provider, geocoder, weather, logger, metrics, opts...)

	readiness := httpadapter.Readiness{history}

	var poller *mail.Poller
	if cfg.Mail.Enabled {
		mailbox, err := mail.NewIMAPMailbox(cfg.Mail, cfg.HTTPTimeout, logger)
		if err != nil {
			logger.Error("invalid mail configuration", "error", err)
			os.Exit(1)
		}
		poller = mail.NewPoller(mailbox, func(ctx context.Context, msg mail.Message) error {
			_, err := p.IngestMessage(ctx, msg.Raw)
			return err
		}, cfg.Mail.PollInterval, logger, metrics)
		readiness = append(readiness, poller)
	} else {
		logger.Info("mail polling disabled")
	}

	var defaultLocation *domain.Coordinates
	if cfg.DefaultLatitude != nil && cfg.DefaultLongitude != nil {
		defaultLocation = &domain.Coordinates{Lat: *cfg.DefaultLatitude, Lon: *cfg.DefaultLongitude}
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Options{
		APIKey:              cfg.APIKey,
		Ingester:            p,
		History:             history,
		Settings:            provider,
		Participants:        participants,
		Ready:               readiness,
		Weather:             weather,
		DefaultLocation:     defaultLocation,
		DefaultLocationName: cfg.DefaultLocationName,
	}, logger)
	if cfg.APIKey == "" {
		logger.Warn("no API key configured, POST /api/alarm rejects all requests")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if poller != nil {
		poller.Start(gctx)
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if poller != nil {
			poller.Stop()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		if err := p.Close(shutdownCtx); err != nil {
			logger.Error("pipeline close error", "error", err)
		}
		for _, closeFn := range closers {
			closeFn()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
