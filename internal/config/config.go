package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/chronovault/internal/cryptox"
	"github.com/dmitrijs2005/chronovault/internal/flagx"
	"github.com/dmitrijs2005/chronovault/internal/repositories/kv"
)

const (
	ExportFile = "file"
	ExportS3   = "s3"
)

// Config holds runtime settings for the chronovault CLI.
//
// StorePassphrase makes the registry keep each capsule's passphrase, which
// turns the registry backend into secret-bearing storage.
type Config struct {
	RegistryBackend string
	SQLitePath      string
	PostgresDSN     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	StorePassphrase bool

	ExportBackend  string
	ExportDir      string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3RootUser     string
	S3RootPassword string

	KDFTime      uint32
	KDFMemoryKiB uint32
	KDFThreads   uint8
	Workers      int

	CountdownInterval time.Duration

	LogLevel  string
	LogFormat string
}

// LoadDefaults populates c with defaults suitable for a single local user.
func (c *Config) LoadDefaults() {
	kdf := cryptox.DefaultKDFParams()

	c.RegistryBackend = kv.BackendSQLite
	c.SQLitePath = "chronovault.db"
	c.RedisAddr = "localhost:6379"
	c.StorePassphrase = true

	c.ExportBackend = ExportFile
	c.ExportDir = "capsules"
	c.S3Bucket = "capsules"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"

	c.KDFTime = kdf.Time
	c.KDFMemoryKiB = kdf.MemoryKiB
	c.KDFThreads = kdf.Threads

	c.CountdownInterval = time.Second

	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig builds a Config from defaults, the optional config file, the
// environment and command-line flags, then validates it.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	path := flagx.ConfigFileFlag()
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := parseEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, os.Args[1:]); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// KDFParams returns the key derivation cost parameters.
func (c *Config) KDFParams() cryptox.KDFParams {
	return cryptox.KDFParams{Time: c.KDFTime, MemoryKiB: c.KDFMemoryKiB, Threads: c.KDFThreads}
}

// KVOptions returns the options for opening the registry store.
func (c *Config) KVOptions() kv.Options {
	return kv.Options{
		Backend:       c.RegistryBackend,
		SQLitePath:    c.SQLitePath,
		PostgresDSN:   c.PostgresDSN,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		RedisPrefix:   "chronovault:",
	}
}

// Validate rejects unknown backends, missing backend settings and unsafe
// KDF parameters.
func (c *Config) Validate() error {
	switch c.RegistryBackend {
	case kv.BackendSQLite, kv.BackendMemory:
	case kv.BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("config: postgres registry requires postgres_dsn")
		}
	case kv.BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("config: redis registry requires redis_addr")
		}
	default:
		return fmt.Errorf("config: unknown registry backend %q", c.RegistryBackend)
	}

	switch c.ExportBackend {
	case ExportFile:
		if c.ExportDir == "" {
			return fmt.Errorf("config: file export requires export_dir")
		}
	case ExportS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("config: s3 export requires s3_bucket")
		}
	default:
		return fmt.Errorf("config: unknown export backend %q", c.ExportBackend)
	}

	if err := c.KDFParams().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative")
	}
	if c.CountdownInterval <= 0 {
		return fmt.Errorf("config: countdown_interval must be positive")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}
