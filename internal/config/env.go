package config

import (
	"fmt"
	"strconv"
	"time"
)

const envPrefix = "CHRONOVAULT_"

// parseEnv overlays cfg with CHRONOVAULT_* variables. lookup is usually
// os.LookupEnv. Malformed numeric or boolean values are errors rather than
// being silently ignored.
func parseEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return "", false
		}
		return v, true
	}

	str := func(name string, dst *string) {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	str("REGISTRY_BACKEND", &cfg.RegistryBackend)
	str("SQLITE_PATH", &cfg.SQLitePath)
	str("POSTGRES_DSN", &cfg.PostgresDSN)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("REDIS_PASSWORD", &cfg.RedisPassword)
	str("EXPORT_BACKEND", &cfg.ExportBackend)
	str("EXPORT_DIR", &cfg.ExportDir)
	str("S3_BUCKET", &cfg.S3Bucket)
	str("S3_REGION", &cfg.S3Region)
	str("S3_BASE_ENDPOINT", &cfg.S3BaseEndpoint)
	str("S3_ROOT_USER", &cfg.S3RootUser)
	str("S3_ROOT_PASSWORD", &cfg.S3RootPassword)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	if v, ok := get("REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_DB: %w", envPrefix, err)
		}
		cfg.RedisDB = n
	}
	if v, ok := get("WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKERS: %w", envPrefix, err)
		}
		cfg.Workers = n
	}
	if v, ok := get("STORE_PASSPHRASE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSTORE_PASSPHRASE: %w", envPrefix, err)
		}
		cfg.StorePassphrase = b
	}
	if v, ok := get("COUNTDOWN_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sCOUNTDOWN_INTERVAL: %w", envPrefix, err)
		}
		cfg.CountdownInterval = d
	}
	if v, ok := get("KDF_TIME"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%sKDF_TIME: %w", envPrefix, err)
		}
		cfg.KDFTime = uint32(n)
	}
	if v, ok := get("KDF_MEMORY_KIB"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%sKDF_MEMORY_KIB: %w", envPrefix, err)
		}
		cfg.KDFMemoryKiB = uint32(n)
	}
	if v, ok := get("KDF_THREADS"); ok {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return fmt.Errorf("%sKDF_THREADS: %w", envPrefix, err)
		}
		cfg.KDFThreads = uint8(n)
	}
	return nil
}
