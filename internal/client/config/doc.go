// Package config loads runtime configuration for the Waffle client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config (see (*Config).ApplyFile).
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
// Durations are strings like "1.5s" or integer nanoseconds:
//
//	{
//	  "store_backend": "gist",
//	  "encrypted_bootstrap": "base64...",
//	  "week_offset": "-5h",
//	  "propagation_delay": "1.5s",
//	  "cleanup_schedule": "@every 6h",
//	  "s3": {"bucket": "waffle", "region": "us-east-1"}
//	}
//
// The package does not read environment variables; the S3 backend falls back
// to the AWS SDK's own credential chain when no keys are configured.
package config
