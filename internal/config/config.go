package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// statuses are the incident statuses the map can be filtered to. "all"
// disables the filter.
var statuses = map[string]bool{
	"all":         true,
	"pending":     true,
	"verified":    true,
	"assigned":    true,
	"in_progress": true,
	"resolved":    true,
	"closed":      true,
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Incident API.
	IncidentAPIURL      string
	IncidentAPIToken    string
	IncidentAPITimeout  time.Duration
	IncidentAPIRPS      float64
	IncidentAPIMaxPages int

	// Map query and rendering.
	IncidentStatus  string
	MapDate         time.Time // zero means "today" at each refresh
	RefreshInterval time.Duration
	MapWidth        int
	MapHeight       int
	PopupCacheSize  int

	SessionFile string

	// Snapshot publishing.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSnapshotTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	apiTimeout, err := parseDuration("INCIDENT_API_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}

	rps, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("INCIDENT_API_RPS", "5"), 64)
	if err != nil || rps <= 0 {
		return nil, errors.New("invalid INCIDENT_API_RPS")
	}

	maxPages, err := parsePositiveInt("INCIDENT_API_MAX_PAGES", 50)
	if err != nil {
		return nil, err
	}
	width, err := parsePositiveInt("MAP_WIDTH", 1024)
	if err != nil {
		return nil, err
	}
	height, err := parsePositiveInt("MAP_HEIGHT", 500)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("POPUP_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	var mapDate time.Time
	if s := os.Getenv("MAP_DATE"); s != "" {
		mapDate, err = time.Parse(time.DateOnly, s)
		if err != nil {
			return nil, fmt.Errorf("invalid MAP_DATE %q: want YYYY-MM-DD", s)
		}
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		IncidentAPIURL:      sharedcfg.EnvOrDefault("INCIDENT_API_URL", "http://localhost:8000"),
		IncidentAPIToken:    os.Getenv("INCIDENT_API_TOKEN"),
		IncidentAPITimeout:  apiTimeout,
		IncidentAPIRPS:      rps,
		IncidentAPIMaxPages: maxPages,

		IncidentStatus:  sharedcfg.EnvOrDefault("INCIDENT_STATUS", "all"),
		MapDate:         mapDate,
		RefreshInterval: refreshInterval,
		MapWidth:        width,
		MapHeight:       height,
		PopupCacheSize:  cacheSize,

		SessionFile: os.Getenv("SESSION_FILE"),

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "incident-map-scenes"),
	}

	if u, err := url.Parse(cfg.IncidentAPIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid INCIDENT_API_URL %q", cfg.IncidentAPIURL)
	}
	if !statuses[cfg.IncidentStatus] {
		return nil, fmt.Errorf("invalid INCIDENT_STATUS %q", cfg.IncidentStatus)
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaSnapshotTopic == "" {
			return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
