// Package config loads the settings shared by the ring CLI and the watch daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ring "github.com/tj-smith47/ring-go"
)

// Config holds all application configuration.
type Config struct {
	Ring     RingConfig     `yaml:"ring"`
	Download DownloadConfig `yaml:"download"`
	Watch    WatchConfig    `yaml:"watch"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Redis    RedisConfig    `yaml:"redis"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// RingConfig holds the account credentials and the device fingerprint sent
// when opening a session.
type RingConfig struct {
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	Timeout      time.Duration `yaml:"timeout"`
	OS           string        `yaml:"os"`
	HardwareID   string        `yaml:"hardware_id"`
	AppBrand     string        `yaml:"app_brand"`
	DeviceModel  string        `yaml:"device_model"`
	DeviceName   string        `yaml:"device_name"`
	Resolution   string        `yaml:"resolution"`
	AppVersion   string        `yaml:"app_version"`
	Manufacturer string        `yaml:"manufacturer"`
	DeviceType   string        `yaml:"device_type"`
	Architecture string        `yaml:"architecture"`
	Language     string        `yaml:"language"`
}

// DownloadConfig controls where recordings are written.
type DownloadConfig struct {
	Dir string `yaml:"dir"`
}

// WatchConfig controls the history poll loop.
type WatchConfig struct {
	Interval    time.Duration `yaml:"interval"`
	SkipBacklog bool          `yaml:"skip_backlog"`
	Download    bool          `yaml:"download"`
}

// MQTTConfig holds MQTT broker configuration.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	DeviceID    string `yaml:"device_id"`
}

// RedisConfig holds the seen-event store configuration. When disabled the
// daemon keeps seen ids in memory.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	auth := ring.DefaultAuthOptions()
	return Config{
		Ring: RingConfig{
			Timeout:      ring.DefaultTimeout,
			OS:           auth.OperatingSystem,
			HardwareID:   auth.HardwareID,
			AppBrand:     auth.AppBrand,
			DeviceModel:  auth.DeviceModel,
			DeviceName:   auth.DeviceName,
			Resolution:   auth.Resolution,
			AppVersion:   auth.AppVersion,
			Manufacturer: auth.Manufacturer,
			DeviceType:   auth.DeviceType,
			Architecture: auth.Architecture,
			Language:     auth.Language,
		},
		Download: DownloadConfig{
			Dir: ".",
		},
		Watch: WatchConfig{
			Interval:    time.Minute,
			SkipBacklog: true,
		},
		MQTT: MQTTConfig{
			TopicPrefix: "ring",
			DeviceID:    "ring_account",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "ring:seen:",
			TTL:       30 * 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Addr: ":9108",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a YAML file at path, then loads a .env file
// from the working directory if one exists, then overlays RING_* environment
// variables. If path is empty, only defaults + env vars are used.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
			// file not found is ok, use defaults
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	// load .env silently (no error if missing)
	_ = godotenv.Load()

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables on top of the config.
// Env vars take precedence over YAML values.
func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"RING_USERNAME":          &cfg.Ring.Username,
		"RING_PASSWORD":          &cfg.Ring.Password,
		"RING_OS":                &cfg.Ring.OS,
		"RING_HARDWARE_ID":       &cfg.Ring.HardwareID,
		"RING_DEVICE_NAME":       &cfg.Ring.DeviceName,
		"RING_LANGUAGE":          &cfg.Ring.Language,
		"RING_DOWNLOAD_DIR":      &cfg.Download.Dir,
		"RING_MQTT_BROKER":       &cfg.MQTT.Broker,
		"RING_MQTT_USERNAME":     &cfg.MQTT.Username,
		"RING_MQTT_PASSWORD":     &cfg.MQTT.Password,
		"RING_MQTT_TOPIC_PREFIX": &cfg.MQTT.TopicPrefix,
		"RING_MQTT_DEVICE_ID":    &cfg.MQTT.DeviceID,
		"RING_REDIS_ADDR":        &cfg.Redis.Addr,
		"RING_REDIS_PASSWORD":    &cfg.Redis.Password,
		"RING_METRICS_ADDR":      &cfg.Metrics.Addr,
		"RING_LOG_LEVEL":         &cfg.Log.Level,
		"RING_LOG_FORMAT":        &cfg.Log.Format,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"RING_WATCH_SKIP_BACKLOG": &cfg.Watch.SkipBacklog,
		"RING_WATCH_DOWNLOAD":     &cfg.Watch.Download,
		"RING_MQTT_ENABLED":       &cfg.MQTT.Enabled,
		"RING_REDIS_ENABLED":      &cfg.Redis.Enabled,
		"RING_METRICS_ENABLED":    &cfg.Metrics.Enabled,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			*dst = parseBool(v)
		}
	}

	durations := map[string]*time.Duration{
		"RING_TIMEOUT":        &cfg.Ring.Timeout,
		"RING_WATCH_INTERVAL": &cfg.Watch.Interval,
		"RING_REDIS_TTL":      &cfg.Redis.TTL,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("RING_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: RING_REDIS_DB: %w", err)
		}
		cfg.Redis.DB = db
	}
	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	b, _ := strconv.ParseBool(s)
	return b
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	var errs []error
	if c.Ring.Username == "" {
		errs = append(errs, errors.New("ring.username is required"))
	}
	if c.Ring.Password == "" {
		errs = append(errs, errors.New("ring.password is required"))
	}
	if c.Watch.Interval <= 0 {
		errs = append(errs, errors.New("watch.interval must be positive"))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// AuthOptions returns the device fingerprint as session options.
func (c RingConfig) AuthOptions() ring.AuthOptions {
	return ring.AuthOptions{
		OperatingSystem: c.OS,
		HardwareID:      c.HardwareID,
		AppBrand:        c.AppBrand,
		DeviceModel:     c.DeviceModel,
		DeviceName:      c.DeviceName,
		Resolution:      c.Resolution,
		AppVersion:      c.AppVersion,
		Manufacturer:    c.Manufacturer,
		DeviceType:      c.DeviceType,
		Architecture:    c.Architecture,
		Language:        c.Language,
	}
}
