package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DatabaseURL string // WARREN_DATABASE_URL (required)
	HTTPAddr    string // WARREN_HTTP_ADDR (default ":8080")
	NATSURL     string // WARREN_NATS_URL (optional, empty = no events)
	AuthToken   string // WARREN_AUTH_TOKEN (optional, empty = auth disabled)

	// Environment lifecycle
	EnvironmentTTL time.Duration // WARREN_ENVIRONMENT_TTL (default 30m)
	ReapInterval   time.Duration // WARREN_REAP_INTERVAL (default 30s; 0 = reaper disabled)

	// Change capture
	Replication ReplicationConfig

	// Journal archive settings
	ArchiveInterval   time.Duration // WARREN_ARCHIVE_INTERVAL (default 0 = disabled)
	ArchiveS3Bucket   string        // WARREN_ARCHIVE_S3_BUCKET (enables S3 when set)
	ArchiveS3Endpoint string        // WARREN_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // WARREN_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Prefix   string        // WARREN_ARCHIVE_S3_PREFIX (default "warren/journal")
}

// ReplicationConfig holds the change-capture settings. It is read once at
// startup and never mutated afterwards.
type ReplicationConfig struct {
	DSN           string            // WARREN_REPLICATION_DSN (defaults to DatabaseURL)
	Plugin        string            // WARREN_REPLICATION_PLUGIN (default "wal2json")
	SlotPrefix    string            // WARREN_REPLICATION_SLOT_PREFIX (default "warrenslot")
	PollInterval  time.Duration     // WARREN_REPLICATION_POLL_INTERVAL (default 1s)
	BatchSize     int               // WARREN_REPLICATION_BATCH_SIZE (default 100)
	PluginOptions map[string]string // WARREN_REPLICATION_PLUGIN_OPTIONS ("k=v,k=v")
}

// fileConfig mirrors the optional TOML file (WARREN_CONFIG_FILE). File values
// fill fields the environment left unset; env vars always win.
type fileConfig struct {
	DatabaseURL    string `toml:"database_url"`
	HTTPAddr       string `toml:"http_addr"`
	NATSURL        string `toml:"nats_url"`
	AuthToken      string `toml:"auth_token"`
	EnvironmentTTL string `toml:"environment_ttl"`
	ReapInterval   string `toml:"reap_interval"`

	Replication struct {
		DSN           string `toml:"dsn"`
		Plugin        string `toml:"plugin"`
		SlotPrefix    string `toml:"slot_prefix"`
		PollInterval  string `toml:"poll_interval"`
		BatchSize     int    `toml:"batch_size"`
		PluginOptions string `toml:"plugin_options"`
	} `toml:"replication"`

	Archive struct {
		Interval   string `toml:"interval"`
		S3Bucket   string `toml:"s3_bucket"`
		S3Endpoint string `toml:"s3_endpoint"`
		S3Region   string `toml:"s3_region"`
		S3Prefix   string `toml:"s3_prefix"`
	} `toml:"archive"`
}

func Load() (*Config, error) {
	var file fileConfig
	if path := os.Getenv("WARREN_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("WARREN_CONFIG_FILE: %w", err)
		}
	}

	c := &Config{
		DatabaseURL:       firstOf(os.Getenv("WARREN_DATABASE_URL"), file.DatabaseURL),
		HTTPAddr:          firstOf(os.Getenv("WARREN_HTTP_ADDR"), file.HTTPAddr, ":8080"),
		NATSURL:           firstOf(os.Getenv("WARREN_NATS_URL"), file.NATSURL),
		AuthToken:         firstOf(os.Getenv("WARREN_AUTH_TOKEN"), file.AuthToken),
		ArchiveS3Bucket:   firstOf(os.Getenv("WARREN_ARCHIVE_S3_BUCKET"), file.Archive.S3Bucket),
		ArchiveS3Endpoint: firstOf(os.Getenv("WARREN_ARCHIVE_S3_ENDPOINT"), file.Archive.S3Endpoint),
		ArchiveS3Region:   firstOf(os.Getenv("WARREN_ARCHIVE_S3_REGION"), file.Archive.S3Region, "us-east-1"),
		ArchiveS3Prefix:   firstOf(os.Getenv("WARREN_ARCHIVE_S3_PREFIX"), file.Archive.S3Prefix, "warren/journal"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("WARREN_DATABASE_URL is required")
	}

	var err error
	c.EnvironmentTTL, err = durationOf("WARREN_ENVIRONMENT_TTL", file.EnvironmentTTL, 30*time.Minute)
	if err != nil {
		return nil, err
	}
	c.ReapInterval, err = durationOf("WARREN_REAP_INTERVAL", file.ReapInterval, 30*time.Second)
	if err != nil {
		return nil, err
	}
	c.ArchiveInterval, err = durationOf("WARREN_ARCHIVE_INTERVAL", file.Archive.Interval, 0)
	if err != nil {
		return nil, err
	}

	r := &c.Replication
	r.DSN = firstOf(os.Getenv("WARREN_REPLICATION_DSN"), file.Replication.DSN, c.DatabaseURL)
	r.Plugin = firstOf(os.Getenv("WARREN_REPLICATION_PLUGIN"), file.Replication.Plugin, "wal2json")
	r.SlotPrefix = firstOf(os.Getenv("WARREN_REPLICATION_SLOT_PREFIX"), file.Replication.SlotPrefix, "warrenslot")
	r.PollInterval, err = durationOf("WARREN_REPLICATION_POLL_INTERVAL", file.Replication.PollInterval, time.Second)
	if err != nil {
		return nil, err
	}

	r.BatchSize = 100
	if v := os.Getenv("WARREN_REPLICATION_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("WARREN_REPLICATION_BATCH_SIZE: %w", err)
		}
		r.BatchSize = n
	} else if file.Replication.BatchSize > 0 {
		r.BatchSize = file.Replication.BatchSize
	}

	r.PluginOptions = ParsePluginOptions(
		firstOf(os.Getenv("WARREN_REPLICATION_PLUGIN_OPTIONS"), file.Replication.PluginOptions))

	return c, nil
}

// ParsePluginOptions parses a "key=value,key=value" list into a map.
// Empty input and entries without an "=" are ignored; returns nil when
// nothing parses.
func ParsePluginOptions(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	opts := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		opts[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func durationOf(envKey, fileValue string, fallback time.Duration) (time.Duration, error) {
	raw := firstOf(os.Getenv(envKey), fileValue)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", envKey, err)
	}
	return d, nil
}
