package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/chronovault/internal/flagx"
)

var knownFlags = []string{
	"-r", "-db", "-pg", "-redis", "-x", "-o",
	"-b", "-g", "-e", "-u", "-p",
	"-w", "-i", "-l", "-log-format",
	"-store-passphrase", "-kdf-time", "-kdf-memory", "-kdf-threads",
}

// parseFlags populates Config fields from command-line flags.
//
//	-r string            registry backend (sqlite, postgres, redis, memory)
//	-db string           SQLite database path
//	-pg string           PostgreSQL DSN
//	-redis string        Redis address
//	-x string            export backend (file, s3)
//	-o string            export directory
//	-b, -g, -e           S3 bucket, region and base endpoint
//	-u, -p               S3 root user and password
//	-w int               parallel crypto workers (0 = one per CPU)
//	-i int               countdown refresh interval, seconds
//	-l string            log level
//	-log-format string   text or json
//	-store-passphrase    keep passphrases in the registry
//	-kdf-time, -kdf-memory, -kdf-threads   argon2id cost
//
// Arguments are filtered through flagx.FilterArgs first, so flags meant for
// other components never reach this FlagSet.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("chronovault", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.RegistryBackend, "r", cfg.RegistryBackend, "registry backend")
	fs.StringVar(&cfg.SQLitePath, "db", cfg.SQLitePath, "sqlite database path")
	fs.StringVar(&cfg.PostgresDSN, "pg", cfg.PostgresDSN, "postgres DSN")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "redis address")
	fs.StringVar(&cfg.ExportBackend, "x", cfg.ExportBackend, "export backend")
	fs.StringVar(&cfg.ExportDir, "o", cfg.ExportDir, "export directory")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&cfg.S3RootUser, "u", cfg.S3RootUser, "S3 root user")
	fs.StringVar(&cfg.S3RootPassword, "p", cfg.S3RootPassword, "S3 root password")
	fs.IntVar(&cfg.Workers, "w", cfg.Workers, "parallel crypto workers")
	interval := fs.Int("i", int(cfg.CountdownInterval.Seconds()), "countdown interval (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format")
	fs.BoolVar(&cfg.StorePassphrase, "store-passphrase", cfg.StorePassphrase, "keep passphrases in the registry")
	kdfTime := fs.Uint("kdf-time", uint(cfg.KDFTime), "argon2id iterations")
	kdfMemory := fs.Uint("kdf-memory", uint(cfg.KDFMemoryKiB), "argon2id memory (KiB)")
	kdfThreads := fs.Uint("kdf-threads", uint(cfg.KDFThreads), "argon2id threads")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Only an explicit -i replaces the interval, so sub-second values from
	// the file or environment survive.
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "i" {
			cfg.CountdownInterval = time.Duration(*interval) * time.Second
		}
	})
	cfg.KDFTime = uint32(*kdfTime)
	cfg.KDFMemoryKiB = uint32(*kdfMemory)
	cfg.KDFThreads = uint8(*kdfThreads)
	return nil
}
