package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/waffle/internal/flagx"
)

var knownFlags = []string{
	"-s", "-b", "-g", "-d", "-dsn", "-bucket", "-prefix", "-region", "-endpoint",
	"-o", "-p", "-t", "-r", "-l",
}

// parseFlags populates Config fields from command-line flags. Flags owned by
// other parsers (such as -c) are filtered out first.
//
//	-s string     store backend: gist, memory, s3, postgres
//	-b string     encrypted bootstrap blob
//	-g string     Gist API base URL
//	-d string     local SQLite database path
//	-dsn string   PostgreSQL DSN
//	-bucket, -prefix, -region, -endpoint   S3 settings
//	-o duration   week clock UTC offset; negative values need -o=-5h
//	-p duration   propagation delay after writes
//	-t duration   store request timeout
//	-r float      store API requests per second
//	-l string     log level
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.StoreBackend, "s", cfg.StoreBackend, "store backend")
	fs.StringVar(&cfg.EncryptedBootstrap, "b", cfg.EncryptedBootstrap, "encrypted bootstrap blob")
	fs.StringVar(&cfg.GistAPIBase, "g", cfg.GistAPIBase, "Gist API base URL")
	fs.StringVar(&cfg.LocalDBPath, "d", cfg.LocalDBPath, "local database path")
	fs.StringVar(&cfg.DatabaseDSN, "dsn", cfg.DatabaseDSN, "PostgreSQL DSN")
	fs.StringVar(&cfg.S3.Bucket, "bucket", cfg.S3.Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3.Prefix, "prefix", cfg.S3.Prefix, "S3 key prefix")
	fs.StringVar(&cfg.S3.Region, "region", cfg.S3.Region, "S3 region")
	fs.StringVar(&cfg.S3.Endpoint, "endpoint", cfg.S3.Endpoint, "S3 endpoint override")
	fs.DurationVar(&cfg.WeekOffset, "o", cfg.WeekOffset, "week clock UTC offset")
	fs.DurationVar(&cfg.PropagationDelay, "p", cfg.PropagationDelay, "delay before re-reading after a write")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "store request timeout")
	fs.Float64Var(&cfg.APIRateLimit, "r", cfg.APIRateLimit, "store API requests per second")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
