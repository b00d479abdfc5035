package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
}

type ServerConfig struct {
	GRPCAddr    string `mapstructure:"grpc_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type StoreConfig struct {
	JournalDir  string `mapstructure:"journal_dir"`
	OutboxDir   string `mapstructure:"outbox_dir"`
	SnapshotDir string `mapstructure:"snapshot_dir"`
}

type JournalConfig struct {
	SegmentSize     int64         `mapstructure:"segment_size"`
	SegmentDuration time.Duration `mapstructure:"segment_duration"`
	SyncEveryWrite  bool          `mapstructure:"sync_every_write"`
}

type SnapshotConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Keep     int           `mapstructure:"keep"`
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Client       string        `mapstructure:"client"` // "sarama" or "kafka-go"
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxRetries   uint32        `mapstructure:"max_retries"`
}

type ExchangeConfig struct {
	StartingBalance float64 `mapstructure:"starting_balance"`
	Depth           int     `mapstructure:"depth"`
}

// Load reads path (YAML) if non-empty, then FORECAST_* environment
// overrides, e.g. FORECAST_SERVER_GRPC_ADDR.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FORECAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.grpc_addr", ":50051")
	v.SetDefault("server.metrics_addr", ":9102")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", true)
	v.SetDefault("store.journal_dir", "./data/journal")
	v.SetDefault("store.outbox_dir", "./data/outbox")
	v.SetDefault("store.snapshot_dir", "./data/snapshots")
	v.SetDefault("journal.segment_size", 8<<20)
	v.SetDefault("journal.segment_duration", "1h")
	v.SetDefault("journal.sync_every_write", true)
	v.SetDefault("snapshot.interval", "1m")
	v.SetDefault("snapshot.keep", 5)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.client", "sarama")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "forecast.events")
	v.SetDefault("kafka.poll_interval", "250ms")
	v.SetDefault("kafka.max_retries", 10)
	v.SetDefault("exchange.starting_balance", 1000)
	v.SetDefault("exchange.depth", 5)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Kafka.Client {
	case "sarama", "kafka-go":
	default:
		return errors.Errorf("kafka.client must be sarama or kafka-go, got %q", c.Kafka.Client)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}
	if c.Exchange.StartingBalance < 0 {
		return errors.New("exchange.starting_balance must not be negative")
	}
	if c.Snapshot.Keep < 0 {
		return errors.New("snapshot.keep must not be negative")
	}
	return nil
}
