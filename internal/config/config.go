package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Prefix namespaces the alarm monitor's own environment variables.
const Prefix = "ALARM_DASHBOARD_"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	HistoryFile string
	HistorySize int

	// Activation filter and display window; SettingsFile overrides both when set.
	ActivationGroups       []string
	DisplayDurationMinutes int
	SettingsFile           string

	// Receiver shared secret. Empty rejects every POST.
	APIKey string

	Mail MailConfig

	// Enrichment endpoints.
	NominatimURL     string
	WeatherURL       string
	WeatherParams    string
	HTTPTimeout      time.Duration
	GeocodeCacheSize int

	// Idle-mode location; both coordinates or neither.
	DefaultLatitude     *float64
	DefaultLongitude    *float64
	DefaultLocationName string

	MessengerURL    string
	MessengerAPIKey string

	// Alarm sinks, disabled when empty.
	KafkaBrokers    []string
	KafkaAlarmTopic string
	MQTTBroker      string
	MQTTTopic       string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
}

// MailConfig configures the IMAP poller.
type MailConfig struct {
	Enabled      bool
	Host         string
	Port         int
	UseSSL       bool
	Username     string
	Password     string
	Mailbox      string
	Search       string
	PollInterval time.Duration
}

// MessengerEnabled reports whether both messenger settings are present.
func (c *Config) MessengerEnabled() bool {
	return c.MessengerURL != "" && c.MessengerAPIKey != ""
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mail, err := loadMail()
	if err != nil {
		return nil, err
	}

	historySize, err := positiveInt(Prefix+"HISTORY_SIZE", 100)
	if err != nil {
		return nil, err
	}
	displayDuration, err := positiveInt(Prefix+"DISPLAY_DURATION_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	cacheSize, err := positiveInt(Prefix+"GEOCODE_CACHE_SIZE", 500)
	if err != nil {
		return nil, err
	}
	httpTimeout, err := duration(Prefix+"HTTP_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	lat, err := optionalFloat(Prefix + "DEFAULT_LATITUDE")
	if err != nil {
		return nil, err
	}
	lon, err := optionalFloat(Prefix + "DEFAULT_LONGITUDE")
	if err != nil {
		return nil, err
	}
	if (lat == nil) != (lon == nil) {
		return nil, errors.New(Prefix + "DEFAULT_LATITUDE and " + Prefix + "DEFAULT_LONGITUDE must be set together")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8000"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		HistoryFile: sharedcfg.EnvOrDefault(Prefix+"HISTORY_FILE", "data/alarm_history.json"),
		HistorySize: historySize,

		ActivationGroups:       ParseGroups(os.Getenv(Prefix + "GRUPPEN")),
		DisplayDurationMinutes: displayDuration,
		SettingsFile:           strings.TrimSpace(os.Getenv(Prefix + "SETTINGS_FILE")),

		APIKey: strings.TrimSpace(os.Getenv(Prefix + "API_KEY")),

		Mail: mail,

		NominatimURL:     sharedcfg.EnvOrDefault(Prefix+"NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
		WeatherURL:       sharedcfg.EnvOrDefault(Prefix+"WEATHER_URL", "https://api.open-meteo.com/v1/forecast"),
		WeatherParams:    sharedcfg.EnvOrDefault(Prefix+"WEATHER_PARAMS", "current_weather=true"),
		HTTPTimeout:      httpTimeout,
		GeocodeCacheSize: cacheSize,

		DefaultLatitude:     lat,
		DefaultLongitude:    lon,
		DefaultLocationName: strings.TrimSpace(os.Getenv(Prefix + "DEFAULT_LOCATION_NAME")),

		MessengerURL:    strings.TrimRight(strings.TrimSpace(os.Getenv(Prefix+"MESSENGER_URL")), "/"),
		MessengerAPIKey: strings.TrimSpace(os.Getenv(Prefix + "MESSENGER_API_KEY")),

		KafkaBrokers:    parseBrokers(),
		KafkaAlarmTopic: sharedcfg.EnvOrDefault("KAFKA_ALARM_TOPIC", "alarms"),
		MQTTBroker:      strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		MQTTTopic:       sharedcfg.EnvOrDefault("MQTT_TOPIC", "alarm-monitor/alarm"),
		MQTTClientID:    sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "alarm-monitor"),
		MQTTUsername:    os.Getenv("MQTT_USERNAME"),
		MQTTPassword:    os.Getenv("MQTT_PASSWORD"),
	}

	if cfg.HistoryFile == "" {
		return nil, errors.New(Prefix + "HISTORY_FILE is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaAlarmTopic == "" {
		return nil, errors.New("KAFKA_ALARM_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// loadMail reads the IMAP settings. Without host, username and password the
// poller is disabled; a partial set is a configuration error.
func loadMail() (MailConfig, error) {
	host := strings.TrimSpace(os.Getenv(Prefix + "IMAP_HOST"))
	user := os.Getenv(Prefix + "IMAP_USERNAME")
	pass := os.Getenv(Prefix + "IMAP_PASSWORD")

	set := 0
	for _, v := range []string{host, user, pass} {
		if v != "" {
			set++
		}
	}
	if set > 0 && set < 3 {
		return MailConfig{}, errors.New(Prefix + "IMAP_HOST, " + Prefix + "IMAP_USERNAME and " + Prefix + "IMAP_PASSWORD must be set together")
	}

	port, err := positiveInt(Prefix+"IMAP_PORT", 993)
	if err != nil {
		return MailConfig{}, err
	}
	useSSL, err := boolean(Prefix+"IMAP_USE_SSL", true)
	if err != nil {
		return MailConfig{}, err
	}
	interval, err := pollInterval()
	if err != nil {
		return MailConfig{}, err
	}

	return MailConfig{
		Enabled:      set == 3,
		Host:         host,
		Port:         port,
		UseSSL:       useSSL,
		Username:     user,
		Password:     pass,
		Mailbox:      sharedcfg.EnvOrDefault(Prefix+"IMAP_MAILBOX", "INBOX"),
		Search:       strings.ToUpper(sharedcfg.EnvOrDefault(Prefix+"IMAP_SEARCH", "UNSEEN")),
		PollInterval: interval,
	}, nil
}

// ParseGroups splits a comma-separated activation group list into trimmed,
// uppercase, non-empty entries.
func ParseGroups(raw string) []string {
	var groups []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			groups = append(groups, part)
		}
	}
	return groups
}

func parseBrokers() []string {
	raw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if raw == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(raw)
}

// pollInterval accepts a Go duration or a plain number of seconds.
func pollInterval() (time.Duration, error) {
	key := Prefix + "POLL_INTERVAL"
	raw := sharedcfg.EnvOrDefault(key, "60s")
	if secs, err := strconv.Atoi(raw); err == nil {
		raw = strconv.Itoa(secs) + "s"
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func duration(key, def string) (time.Duration, error) {
	raw := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func positiveInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func boolean(key string, def bool) (bool, error) {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch raw {
	case "":
		return def, nil
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s: %q", key, raw)
	}
}

func optionalFloat(key string) (*float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: must be numeric", key)
	}
	return &f, nil
}
