package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	CursorFile     = "file"
	CursorPostgres = "postgres"
	CursorRedis    = "redis"

	SinkJsonl      = "jsonl"
	SinkClickhouse = "clickhouse"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Network          string
	RPCURL           string
	Protocols        []string
	PriorityTokens   []string
	FromBlock        uint64
	ToBlock          uint64
	BatchSize        uint64
	PollInterval     time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	MaxRetryDelay    time.Duration
	StreamID         string
	Cursor           string
	Checkpoint       string
	RedisAddr        string
	PGDSN            string
	PoolMissTTL      time.Duration
	Sink             string
	Out              string
	ClickhouseDSN    string
	ClickhouseTable  string
	MulticallChunk   int
	MulticallWorkers int
	MetricsAddr      string
	LogLevel         string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SWAPS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("batch-size", uint64(500))
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("max-retry-delay", 30*time.Second)
	v.SetDefault("cursor", CursorFile)
	v.SetDefault("checkpoint", "./data/cursor.json")
	v.SetDefault("pool-miss-ttl", time.Minute)
	v.SetDefault("sink", SinkJsonl)
	v.SetDefault("out", "./data/swaps.jsonl")
	v.SetDefault("clickhouse-table", "evm_swaps")
	v.SetDefault("multicall-chunk", 100)
	v.SetDefault("multicall-workers", 4)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Network:          strings.ToLower(strings.TrimSpace(v.GetString("network"))),
		RPCURL:           v.GetString("rpc"),
		Protocols:        getStringSlice(v, "protocols"),
		PriorityTokens:   getStringSlice(v, "priority-tokens"),
		FromBlock:        v.GetUint64("from"),
		ToBlock:          v.GetUint64("to"),
		BatchSize:        v.GetUint64("batch-size"),
		PollInterval:     v.GetDuration("poll-interval"),
		MaxRetries:       v.GetInt("max-retries"),
		RetryBackoff:     v.GetDuration("retry-backoff"),
		MaxRetryDelay:    v.GetDuration("max-retry-delay"),
		StreamID:         v.GetString("stream-id"),
		Cursor:           v.GetString("cursor"),
		Checkpoint:       v.GetString("checkpoint"),
		RedisAddr:        v.GetString("redis-addr"),
		PGDSN:            v.GetString("pg-dsn"),
		PoolMissTTL:      v.GetDuration("pool-miss-ttl"),
		Sink:             v.GetString("sink"),
		Out:              v.GetString("out"),
		ClickhouseDSN:    v.GetString("clickhouse-dsn"),
		ClickhouseTable:  v.GetString("clickhouse-table"),
		MulticallChunk:   v.GetInt("multicall-chunk"),
		MulticallWorkers: v.GetInt("multicall-workers"),
		MetricsAddr:      v.GetString("metrics-addr"),
		LogLevel:         v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the keys a run needs. withSink is false in pools-only
// mode, which writes no swaps.
func (c Config) Validate(withSink bool) error {
	if c.Network == "" {
		return fmt.Errorf("network is required")
	}
	if c.RPCURL == "" {
		return fmt.Errorf("rpc is required")
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("batch-size must be positive")
	}
	if c.ToBlock > 0 && c.ToBlock < c.FromBlock {
		return fmt.Errorf("to (%d) is before from (%d)", c.ToBlock, c.FromBlock)
	}

	switch c.Cursor {
	case CursorFile:
		if c.Checkpoint == "" {
			return fmt.Errorf("checkpoint is required for the file cursor")
		}
	case CursorPostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres cursor")
		}
	case CursorRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis-addr is required for the redis cursor")
		}
	default:
		return fmt.Errorf("unknown cursor %q (want file, postgres or redis)", c.Cursor)
	}

	if !withSink {
		return nil
	}
	switch c.Sink {
	case SinkJsonl:
		if c.Out == "" {
			return fmt.Errorf("out is required for the jsonl sink")
		}
	case SinkClickhouse:
		if c.ClickhouseDSN == "" {
			return fmt.Errorf("clickhouse-dsn is required for the clickhouse sink")
		}
	default:
		return fmt.Errorf("unknown sink %q (want jsonl or clickhouse)", c.Sink)
	}
	return nil
}

// StreamIDFor returns the configured stream id or "<network>-<mode>".
func (c Config) StreamIDFor(mode string) string {
	if c.StreamID != "" {
		return c.StreamID
	}
	return c.Network + "-" + mode
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
