package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/illmade-knight/go-pubsubbridge/pkg/bridge"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. Nested keys use a double
// underscore, e.g. BRIDGE_PUBSUB__MIN_BATCH_SIZE=10.
const EnvPrefix = "BRIDGE_"

const (
	DefaultMinBatchSize   = 5
	DefaultPublishTimeout = 60 * time.Second
	DefaultFlushInterval  = 10 * time.Second
	DefaultKafkaVersion   = "2.8.0"
	DefaultGroupID        = "pubsub-bridge"
	DefaultMetricsAddr    = ":9102"
)

// PubSubConfig identifies the sink topic and its batching behaviour.
type PubSubConfig struct {
	ProjectID       string        `koanf:"project_id"`
	TopicID         string        `koanf:"topic_id"`
	MinBatchSize    int           `koanf:"min_batch_size"`
	PublishTimeout  time.Duration `koanf:"publish_timeout"`
	CredentialsFile string        `koanf:"credentials_file"`
	EmulatorHost    string        `koanf:"emulator_host"`
}

// KafkaConfig identifies the source brokers and consumer group.
type KafkaConfig struct {
	Brokers       []string      `koanf:"brokers"`
	GroupID       string        `koanf:"group_id"`
	Topics        []string      `koanf:"topics"`
	Version       string        `koanf:"version"`
	StartFrom     string        `koanf:"start_from"` // oldest|newest
	FlushInterval time.Duration `koanf:"flush_interval"`
}

// Config is the bridge process configuration.
type Config struct {
	LogLevel    string       `koanf:"log_level"`
	MetricsAddr string       `koanf:"metrics_addr"`
	PubSub      PubSubConfig `koanf:"pubsub"`
	Kafka       KafkaConfig  `koanf:"kafka"`
}

// Load merges the YAML file at path (optional, skipped when missing) with
// BRIDGE_ environment overrides, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file '%s': %w", path, err)
		}
	}
	envProvider := env.Provider(EnvPrefix, "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.Kafka.Topics = splitList(cfg.Kafka.Topics)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitList lets list values come from a single comma-separated env var.
func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func applyDefaults(c *Config) {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = DefaultMetricsAddr
	}
	if c.PubSub.MinBatchSize == 0 {
		c.PubSub.MinBatchSize = DefaultMinBatchSize
	}
	if c.PubSub.PublishTimeout == 0 {
		c.PubSub.PublishTimeout = DefaultPublishTimeout
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = DefaultGroupID
	}
	if c.Kafka.Version == "" {
		c.Kafka.Version = DefaultKafkaVersion
	}
	if c.Kafka.StartFrom == "" {
		c.Kafka.StartFrom = "oldest"
	}
	if c.Kafka.FlushInterval == 0 {
		c.Kafka.FlushInterval = DefaultFlushInterval
	}
}

// Validate reports the first missing or invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.PubSub.ProjectID == "":
		return errors.New("validation error: pubsub.project_id is required")
	case c.PubSub.TopicID == "":
		return errors.New("validation error: pubsub.topic_id is required")
	case c.PubSub.MinBatchSize < 1:
		return fmt.Errorf("validation error: pubsub.min_batch_size must be positive, got %d", c.PubSub.MinBatchSize)
	case c.PubSub.MinBatchSize > bridge.MaxRequestMessages:
		return fmt.Errorf("validation error: pubsub.min_batch_size must not exceed %d messages per publish request, got %d",
			bridge.MaxRequestMessages, c.PubSub.MinBatchSize)
	case len(c.Kafka.Brokers) == 0:
		return errors.New("validation error: kafka.brokers is required")
	case len(c.Kafka.Topics) == 0:
		return errors.New("validation error: kafka.topics is required")
	case c.Kafka.StartFrom != "oldest" && c.Kafka.StartFrom != "newest":
		return fmt.Errorf("validation error: kafka.start_from must be oldest or newest, got %q", c.Kafka.StartFrom)
	case c.Kafka.FlushInterval < 0:
		return errors.New("validation error: kafka.flush_interval must not be negative")
	}
	return nil
}
