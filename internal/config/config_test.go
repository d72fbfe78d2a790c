package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// warrenEnvVars lists every env var Load reads; cleared between tests.
var warrenEnvVars = []string{
	"WARREN_DATABASE_URL", "WARREN_HTTP_ADDR", "WARREN_NATS_URL", "WARREN_AUTH_TOKEN",
	"WARREN_ENVIRONMENT_TTL", "WARREN_REAP_INTERVAL", "WARREN_CONFIG_FILE",
	"WARREN_REPLICATION_DSN", "WARREN_REPLICATION_PLUGIN", "WARREN_REPLICATION_SLOT_PREFIX",
	"WARREN_REPLICATION_POLL_INTERVAL", "WARREN_REPLICATION_BATCH_SIZE",
	"WARREN_REPLICATION_PLUGIN_OPTIONS",
	"WARREN_ARCHIVE_INTERVAL", "WARREN_ARCHIVE_S3_BUCKET", "WARREN_ARCHIVE_S3_ENDPOINT",
	"WARREN_ARCHIVE_S3_REGION", "WARREN_ARCHIVE_S3_KEY",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range warrenEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name           string
		env            map[string]string
		wantErr        bool
		wantHTTPAddr   string
		wantPlugin     string
		wantSlotPrefix string
		wantBatchSize  int
		wantPoll       time.Duration
	}{
		{
			name:    "MissingDatabaseURL",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:           "Defaults",
			env:            map[string]string{"WARREN_DATABASE_URL": "postgres://localhost/warren"},
			wantHTTPAddr:   ":8080",
			wantPlugin:     "wal2json",
			wantSlotPrefix: "warrenslot",
			wantBatchSize:  100,
			wantPoll:       time.Second,
		},
		{
			name: "Overrides",
			env: map[string]string{
				"WARREN_DATABASE_URL":              "postgres://db:5432/warren",
				"WARREN_HTTP_ADDR":                 ":3000",
				"WARREN_REPLICATION_PLUGIN":        "test_decoding",
				"WARREN_REPLICATION_SLOT_PREFIX":   "evalslot",
				"WARREN_REPLICATION_BATCH_SIZE":    "25",
				"WARREN_REPLICATION_POLL_INTERVAL": "250ms",
			},
			wantHTTPAddr:   ":3000",
			wantPlugin:     "test_decoding",
			wantSlotPrefix: "evalslot",
			wantBatchSize:  25,
			wantPoll:       250 * time.Millisecond,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("Load() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if cfg.HTTPAddr != tc.wantHTTPAddr {
				t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, tc.wantHTTPAddr)
			}
			if cfg.Replication.Plugin != tc.wantPlugin {
				t.Errorf("Replication.Plugin = %q, want %q", cfg.Replication.Plugin, tc.wantPlugin)
			}
			if cfg.Replication.SlotPrefix != tc.wantSlotPrefix {
				t.Errorf("Replication.SlotPrefix = %q, want %q", cfg.Replication.SlotPrefix, tc.wantSlotPrefix)
			}
			if cfg.Replication.BatchSize != tc.wantBatchSize {
				t.Errorf("Replication.BatchSize = %d, want %d", cfg.Replication.BatchSize, tc.wantBatchSize)
			}
			if cfg.Replication.PollInterval != tc.wantPoll {
				t.Errorf("Replication.PollInterval = %v, want %v", cfg.Replication.PollInterval, tc.wantPoll)
			}
		})
	}
}

func TestLoad_ReplicationDSNFallsBackToDatabaseURL(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("WARREN_DATABASE_URL", "postgres://localhost/warren")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Replication.DSN != "postgres://localhost/warren" {
		t.Errorf("Replication.DSN = %q, want database URL", cfg.Replication.DSN)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearAllEnv(t)
	path := filepath.Join(t.TempDir(), "warren.toml")
	body := `
database_url = "postgres://file/warren"
http_addr = ":9000"

[replication]
plugin = "test_decoding"
batch_size = 10

[archive]
interval = "5m"
s3_bucket = "journal-archive"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WARREN_CONFIG_FILE", path)
	// Env still wins over the file.
	t.Setenv("WARREN_HTTP_ADDR", ":7000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://file/warren" {
		t.Errorf("DatabaseURL = %q, want file value", cfg.DatabaseURL)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Errorf("HTTPAddr = %q, want env override :7000", cfg.HTTPAddr)
	}
	if cfg.Replication.Plugin != "test_decoding" {
		t.Errorf("Replication.Plugin = %q, want file value", cfg.Replication.Plugin)
	}
	if cfg.Replication.BatchSize != 10 {
		t.Errorf("Replication.BatchSize = %d, want 10", cfg.Replication.BatchSize)
	}
	if cfg.ArchiveInterval != 5*time.Minute {
		t.Errorf("ArchiveInterval = %v, want 5m", cfg.ArchiveInterval)
	}
	if cfg.ArchiveS3Bucket != "journal-archive" {
		t.Errorf("ArchiveS3Bucket = %q, want journal-archive", cfg.ArchiveS3Bucket)
	}
}

func TestParsePluginOptions(t *testing.T) {
	for _, tc := range []struct {
		input string
		want  map[string]string
	}{
		{"", nil},
		{"no-equals", nil},
		{"include-xids=true", map[string]string{"include-xids": "true"}},
		{"a=1, b = 2,,junk", map[string]string{"a": "1", "b": "2"}},
	} {
		if got := ParsePluginOptions(tc.input); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParsePluginOptions(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
