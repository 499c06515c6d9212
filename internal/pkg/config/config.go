package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"sqlite://adru-export.db"`
	VocabularyFile string `env:"VOCABULARY_FILE"` // empty: embedded default

	InputDir     string `env:"ADRU_INPUT_DIR" envDefault:"input"`
	TextDir      string `env:"TEXT_DIR" envDefault:"text"`
	CSVInputDir  string `env:"CSV_INPUT_DIR" envDefault:"csv"`
	CSVOutputDir string `env:"CSV_OUTPUT_DIR" envDefault:"output"`

	EnrichKeyColumn  string   `env:"ENRICH_KEY_COLUMN" envDefault:"N°"`
	EnrichWorkers    int      `env:"ENRICH_WORKERS" envDefault:"8"`
	RedactAttributes []string `env:"REDACT_ATTRIBUTES" envSeparator:","`

	HashAlgorithm    string        `env:"HASH_ALGORITHM" envDefault:"md5"`
	HashChunkSize    int           `env:"HASH_CHUNK_SIZE" envDefault:"4194304"` // 4MiB
	ProgressInterval time.Duration `env:"PROGRESS_INTERVAL" envDefault:"2s"`

	RedisAddr           string        `env:"REDIS_ADDR"` // empty: reports are not published
	ReportStream        string        `env:"REPORT_STREAM" envDefault:"adru_ingest_reports"`
	ReportMaxLen        int64         `env:"REPORT_MAX_LEN" envDefault:"10000"`
	RedisHealthInterval time.Duration `env:"REDIS_HEALTH_INTERVAL" envDefault:"5s"`
	WALPath             string        `env:"WAL_PATH" envDefault:"wal"`
	WALSegmentSize      int64         `env:"WAL_SEGMENT_SIZE_BYTES" envDefault:"10485760"`   // 10MB
	WALMaxDiskSize      int64         `env:"WAL_MAX_DISK_SIZE_BYTES" envDefault:"104857600"` // 100MB

	MetricsAddr     string `env:"METRICS_ADDR"`
	MetricsTextfile string `env:"METRICS_TEXTFILE"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if c.EnrichWorkers <= 0 {
		return fmt.Errorf("ENRICH_WORKERS must be positive, got %d", c.EnrichWorkers)
	}
	if c.HashChunkSize <= 0 {
		return fmt.Errorf("HASH_CHUNK_SIZE must be positive, got %d", c.HashChunkSize)
	}
	if c.WALSegmentSize <= 0 || c.WALMaxDiskSize < c.WALSegmentSize {
		return fmt.Errorf("WAL sizes are inconsistent: segment %d, max %d", c.WALSegmentSize, c.WALMaxDiskSize)
	}
	return nil
}
