package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds runtime configuration for the consumer and producer
// binaries. Loaded once at startup, immutable afterwards.
type Config struct {
	Kafka  KafkaConfig  `koanf:"kafka"`
	Engine EngineConfig `koanf:"engine"`
	Replay ReplayConfig `koanf:"replay"`
	HTTP   HTTPConfig   `koanf:"http"`
	Log    LogConfig    `koanf:"log"`
}

type KafkaConfig struct {
	// Brokers is a comma-separated list of broker addresses
	Brokers  string         `koanf:"brokers"`
	Topic    string         `koanf:"topic"`
	GroupID  string         `koanf:"group_id"`
	Producer ProducerConfig `koanf:"producer"`
}

// BrokerList splits the CSV broker string into addresses.
func (k KafkaConfig) BrokerList() []string {
	parts := strings.Split(k.Brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type ProducerConfig struct {
	PoolSize     int           `koanf:"pool_size"`
	MaxRetries   int           `koanf:"max_retries"`
	RetryBackoff time.Duration `koanf:"retry_backoff"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	RequiredAcks int           `koanf:"required_acks"`
	Compression  string        `koanf:"compression"`
}

type EngineConfig struct {
	WindowCapacity    int      `koanf:"window_capacity"`
	StallThreshold    float64  `koanf:"stall_threshold"`
	MessageThreshold  int      `koanf:"message_threshold"`
	FrequentTimeFrame float64  `koanf:"frequent_time_frame"` // seconds
	WatchAuthor       string   `koanf:"watch_author"`
	WatchKeywords     []string `koanf:"watch_keywords"`
	StreamKey         string   `koanf:"stream_key"`
	RetentionMaxKeys  int      `koanf:"retention_max_keys"`
}

type ReplayConfig struct {
	DataFile string        `koanf:"data_file"`
	Interval time.Duration `koanf:"interval"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// Load builds the config from defaults overlaid with SMOKESIGNAL_*
// environment variables (double underscore separates nesting, e.g.
// SMOKESIGNAL_KAFKA__TOPIC), then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"kafka.brokers":                 "localhost:9092",
		"kafka.topic":                   "smoker_temps",
		"kafka.group_id":                "smokesignal",
		"kafka.producer.pool_size":      2,
		"kafka.producer.max_retries":    3,
		"kafka.producer.retry_backoff":  "100ms",
		"kafka.producer.write_timeout":  "10s",
		"kafka.producer.required_acks":  -1,
		"kafka.producer.compression":    "",
		"engine.window_capacity":        5,
		"engine.stall_threshold":        0.2,
		"engine.message_threshold":      100,
		"engine.frequent_time_frame":    10.0,
		"engine.watch_author":           "alice",
		"engine.watch_keywords":         []string{"urgent", "error"},
		"engine.stream_key":             "smoker",
		"engine.retention_max_keys":     0,
		"replay.data_file":              "data/smoker_temps.csv",
		"replay.interval":               "1s",
		"http.addr":                     ":8080",
		"log.level":                     "info",
		"log.pretty":                    false,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if err := k.Load(env.Provider("SMOKESIGNAL_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SMOKESIGNAL_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with. Failures
// here are fatal at startup.
func (c *Config) Validate() error {
	if len(c.Kafka.BrokerList()) == 0 {
		return fmt.Errorf("kafka.brokers is required")
	}
	if strings.TrimSpace(c.Kafka.Topic) == "" {
		return fmt.Errorf("kafka.topic is required")
	}
	if strings.TrimSpace(c.Kafka.GroupID) == "" {
		return fmt.Errorf("kafka.group_id is required")
	}
	if c.Kafka.Producer.PoolSize <= 0 {
		return fmt.Errorf("kafka.producer.pool_size must be > 0")
	}
	if c.Kafka.Producer.MaxRetries < 0 {
		return fmt.Errorf("kafka.producer.max_retries must be >= 0")
	}

	if c.Engine.WindowCapacity <= 0 {
		return fmt.Errorf("engine.window_capacity must be > 0")
	}
	if c.Engine.StallThreshold < 0 {
		return fmt.Errorf("engine.stall_threshold must be >= 0")
	}
	if c.Engine.MessageThreshold <= 0 {
		return fmt.Errorf("engine.message_threshold must be > 0")
	}
	if c.Engine.FrequentTimeFrame <= 0 {
		return fmt.Errorf("engine.frequent_time_frame must be > 0")
	}
	if c.Engine.RetentionMaxKeys < 0 {
		return fmt.Errorf("engine.retention_max_keys must be >= 0")
	}
	if strings.TrimSpace(c.Engine.StreamKey) == "" {
		return fmt.Errorf("engine.stream_key is required")
	}

	if c.Replay.Interval <= 0 {
		return fmt.Errorf("replay.interval must be > 0")
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("http.addr is required")
	}
	return nil
}
