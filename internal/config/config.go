package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config holds runtime configuration for the simulator.
type Config struct {
	Account  AccountConfig  `mapstructure:"aio"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Sim      SimConfig      `mapstructure:"sim"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	LogLevel string         `mapstructure:"log_level"`
}

// AccountConfig identifies the broker account. The username doubles as
// the topic namespace.
type AccountConfig struct {
	Username string `mapstructure:"username"`
	Key      string `mapstructure:"key"`
}

// MQTTConfig describes the broker connection
type MQTTConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ClientID       string        `mapstructure:"client_id"`
	KeepAlive      time.Duration `mapstructure:"-"`
	ConnectTimeout time.Duration `mapstructure:"-"`
	PublishTimeout time.Duration `mapstructure:"-"`
}

// SimConfig controls the tick loop
type SimConfig struct {
	// Time between ticks
	Interval time.Duration `mapstructure:"-"`
	// Whether alerts are transmitted to the alerts feed
	NotifyEnabled bool `mapstructure:"notify_enabled"`
}

// DispatchConfig sizes the outbound publish queue
type DispatchConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue"`
}

// KafkaConfig configures the optional Kafka mirror. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"-"`
	Topic        string        `mapstructure:"topic"`
	Compression  string        `mapstructure:"compression"`
	WriteTimeout time.Duration `mapstructure:"-"`
	RequiredAcks int           `mapstructure:"required_acks"`
}

// Enabled reports whether the Kafka mirror should be started
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// HTTPConfig configures the local inspection server. Empty Addr disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Username: "YOUR_AIO_USER",
			Key:      "YOUR_AIO_KEY",
		},
		MQTT: MQTTConfig{
			Host:           "io.adafruit.com",
			Port:           1883,
			ClientID:       "deskhealth-" + uuid.New().String()[:8],
			KeepAlive:      60 * time.Second,
			ConnectTimeout: 10 * time.Second,
			PublishTimeout: 5 * time.Second,
		},
		Sim: SimConfig{
			Interval:      15 * time.Second,
			NotifyEnabled: true,
		},
		Dispatch: DispatchConfig{
			Workers:   1,
			QueueSize: 64,
		},
		Kafka: KafkaConfig{
			Topic:        "deskhealth.telemetry",
			Compression:  "snappy",
			WriteTimeout: 5 * time.Second,
			RequiredAcks: 1,
		},
		LogLevel: "info",
	}
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"aio.username":         "AIO_USERNAME",
	"aio.key":              "AIO_KEY",
	"mqtt.host":            "MQTT_HOST",
	"mqtt.port":            "MQTT_PORT",
	"mqtt.client_id":       "MQTT_CLIENT_ID",
	"mqtt.keepalive":       "MQTT_KEEPALIVE",
	"mqtt.connect_timeout": "MQTT_CONNECT_TIMEOUT",
	"mqtt.publish_timeout": "MQTT_PUBLISH_TIMEOUT",
	"sim.sleep":            "SIM_SLEEP",
	"sim.notify_enabled":   "NOTIFY_ENABLED",
	"dispatch.workers":     "DISPATCH_WORKERS",
	"dispatch.queue":       "DISPATCH_QUEUE",
	"kafka.brokers":        "KAFKA_BROKERS",
	"kafka.topic":          "KAFKA_TOPIC",
	"kafka.compression":    "KAFKA_COMPRESSION",
	"kafka.write_timeout":  "KAFKA_WRITE_TIMEOUT",
	"kafka.required_acks":  "KAFKA_REQUIRED_ACKS",
	"http.addr":            "HTTP_ADDR",
	"log_level":            "LOG_LEVEL",
}

// durationKeys are read as whole seconds, e.g. SIM_SLEEP=15.
var durationKeys = []string{
	"mqtt.keepalive",
	"mqtt.connect_timeout",
	"mqtt.publish_timeout",
	"sim.sleep",
	"kafka.write_timeout",
}

// Load reads configuration from the environment on top of Default.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	def := Default()
	setDefaults(v, def)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	for _, key := range durationKeys {
		d, err := seconds(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envBindings[key], err)
		}
		switch key {
		case "mqtt.keepalive":
			cfg.MQTT.KeepAlive = d
		case "mqtt.connect_timeout":
			cfg.MQTT.ConnectTimeout = d
		case "mqtt.publish_timeout":
			cfg.MQTT.PublishTimeout = d
		case "sim.sleep":
			cfg.Sim.Interval = d
		case "kafka.write_timeout":
			cfg.Kafka.WriteTimeout = d
		}
	}

	cfg.Kafka.Brokers = splitList(v.GetString("kafka.brokers"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("aio.username", def.Account.Username)
	v.SetDefault("aio.key", def.Account.Key)
	v.SetDefault("mqtt.host", def.MQTT.Host)
	v.SetDefault("mqtt.port", def.MQTT.Port)
	v.SetDefault("mqtt.client_id", def.MQTT.ClientID)
	v.SetDefault("mqtt.keepalive", int(def.MQTT.KeepAlive/time.Second))
	v.SetDefault("mqtt.connect_timeout", int(def.MQTT.ConnectTimeout/time.Second))
	v.SetDefault("mqtt.publish_timeout", int(def.MQTT.PublishTimeout/time.Second))
	v.SetDefault("sim.sleep", int(def.Sim.Interval/time.Second))
	v.SetDefault("sim.notify_enabled", def.Sim.NotifyEnabled)
	v.SetDefault("dispatch.workers", def.Dispatch.Workers)
	v.SetDefault("dispatch.queue", def.Dispatch.QueueSize)
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", def.Kafka.Topic)
	v.SetDefault("kafka.compression", def.Kafka.Compression)
	v.SetDefault("kafka.write_timeout", int(def.Kafka.WriteTimeout/time.Second))
	v.SetDefault("kafka.required_acks", def.Kafka.RequiredAcks)
	v.SetDefault("http.addr", def.HTTP.Addr)
	v.SetDefault("log_level", def.LogLevel)
}

// Config errors
var (
	ErrInvalidInterval = errors.New("tick interval must be positive")
	ErrInvalidPort     = errors.New("broker port out of range")
	ErrEmptyUsername   = errors.New("account username cannot be empty")
	ErrEmptyHost       = errors.New("broker host cannot be empty")
)

// Validate checks the config for values the simulator cannot run with
func (c *Config) Validate() error {
	if c.Sim.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.MQTT.Port)
	}
	if strings.TrimSpace(c.MQTT.Host) == "" {
		return ErrEmptyHost
	}
	if strings.TrimSpace(c.Account.Username) == "" {
		return ErrEmptyUsername
	}
	return nil
}

// BrokerURL returns the tcp:// URL paho expects
func (c *Config) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTT.Host, c.MQTT.Port)
}

func seconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// allow Go duration syntax as well, e.g. "1m30s"
		d, derr := time.ParseDuration(s)
		if derr != nil {
			return 0, fmt.Errorf("invalid seconds value %q", s)
		}
		return d, nil
	}
	return time.Duration(n) * time.Second, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
