package config

import (
	"time"

	"github.com/dmitrijs2005/waffle/internal/week"
)

// Store backends.
const (
	BackendGist     = "gist"
	BackendMemory   = "memory"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

// S3 holds settings of the S3-compatible backend.
type S3 struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Config holds runtime settings for the Waffle client.
type Config struct {
	StoreBackend       string
	GistAPIBase        string
	EncryptedBootstrap string
	S3                 S3
	DatabaseDSN        string

	LocalDBPath   string
	CredentialTTL time.Duration

	WeekOffset       time.Duration
	CleanupSchedule  string
	PropagationDelay time.Duration
	RequestTimeout   time.Duration
	APIRateLimit     float64
	MaxVoiceBytes    int64

	LogLevel string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.StoreBackend = BackendGist
	c.GistAPIBase = "https://api.github.com"
	c.S3.Prefix = "waffle/"
	c.S3.Region = "us-east-1"
	c.LocalDBPath = "waffle.db"
	c.CredentialTTL = 365 * 24 * time.Hour
	c.WeekOffset = week.DefaultOffset
	c.CleanupSchedule = "@every 6h"
	c.PropagationDelay = 1500 * time.Millisecond
	c.RequestTimeout = 15 * time.Second
	c.APIRateLimit = 5
	c.MaxVoiceBytes = 8 << 20
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if -c/-config is present) and command-line flags. Later sources take
// precedence over earlier ones. It panics on unreadable input, like flag
// parsing does with flag.PanicOnError.
func LoadConfig(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseFlags(cfg, args)
	return cfg
}
