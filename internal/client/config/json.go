package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/waffle/internal/flagx"
	"github.com/dmitrijs2005/waffle/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration so they can be strings like "1.5s" or integer nanoseconds.
// Absent fields leave the current value untouched.
type JsonConfig struct {
	StoreBackend       string `json:"store_backend"`
	GistAPIBase        string `json:"gist_api_base"`
	EncryptedBootstrap string `json:"encrypted_bootstrap"`
	S3                 struct {
		Bucket    string `json:"bucket"`
		Prefix    string `json:"prefix"`
		Region    string `json:"region"`
		Endpoint  string `json:"endpoint"`
		AccessKey string `json:"access_key"`
		SecretKey string `json:"secret_key"`
	} `json:"s3"`
	DatabaseDSN string `json:"database_dsn"`

	LocalDBPath   string          `json:"local_db_path"`
	CredentialTTL *timex.Duration `json:"credential_ttl"`

	WeekOffset       *timex.Duration `json:"week_offset"`
	CleanupSchedule  string          `json:"cleanup_schedule"`
	PropagationDelay *timex.Duration `json:"propagation_delay"`
	RequestTimeout   *timex.Duration `json:"request_timeout"`
	APIRateLimit     float64         `json:"api_rate_limit"`
	MaxVoiceBytes    int64           `json:"max_voice_bytes"`

	LogLevel string `json:"log_level"`
}

// ApplyFile overlays c with the JSON file at path.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return err
	}

	setString(&c.StoreBackend, jc.StoreBackend)
	setString(&c.GistAPIBase, jc.GistAPIBase)
	setString(&c.EncryptedBootstrap, jc.EncryptedBootstrap)
	setString(&c.S3.Bucket, jc.S3.Bucket)
	setString(&c.S3.Prefix, jc.S3.Prefix)
	setString(&c.S3.Region, jc.S3.Region)
	setString(&c.S3.Endpoint, jc.S3.Endpoint)
	setString(&c.S3.AccessKey, jc.S3.AccessKey)
	setString(&c.S3.SecretKey, jc.S3.SecretKey)
	setString(&c.DatabaseDSN, jc.DatabaseDSN)
	setString(&c.LocalDBPath, jc.LocalDBPath)
	setString(&c.CleanupSchedule, jc.CleanupSchedule)
	setString(&c.LogLevel, jc.LogLevel)

	if jc.CredentialTTL != nil {
		c.CredentialTTL = jc.CredentialTTL.Duration
	}
	if jc.WeekOffset != nil {
		c.WeekOffset = jc.WeekOffset.Duration
	}
	if jc.PropagationDelay != nil {
		c.PropagationDelay = jc.PropagationDelay.Duration
	}
	if jc.RequestTimeout != nil {
		c.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.APIRateLimit > 0 {
		c.APIRateLimit = jc.APIRateLimit
	}
	if jc.MaxVoiceBytes > 0 {
		c.MaxVoiceBytes = jc.MaxVoiceBytes
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseJson overlays cfg with the file named by -c or -config in args, if
// any. It panics on read or unmarshal errors.
func parseJson(cfg *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}
	if err := cfg.ApplyFile(path); err != nil {
		panic(err)
	}
}
