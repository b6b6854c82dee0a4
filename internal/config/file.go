package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/chronovault/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is the DTO for config files. Pointer fields distinguish an
// absent key from a zero value, so a file only overrides what it names.
type fileConfig struct {
	RegistryBackend *string `json:"registry_backend" yaml:"registry_backend"`
	SQLitePath      *string `json:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN     *string `json:"postgres_dsn" yaml:"postgres_dsn"`
	RedisAddr       *string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword   *string `json:"redis_password" yaml:"redis_password"`
	RedisDB         *int    `json:"redis_db" yaml:"redis_db"`
	StorePassphrase *bool   `json:"store_passphrase" yaml:"store_passphrase"`

	ExportBackend  *string `json:"export_backend" yaml:"export_backend"`
	ExportDir      *string `json:"export_dir" yaml:"export_dir"`
	S3Bucket       *string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       *string `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3RootUser     *string `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword *string `json:"s3_root_password" yaml:"s3_root_password"`

	KDFTime      *uint32 `json:"kdf_time" yaml:"kdf_time"`
	KDFMemoryKiB *uint32 `json:"kdf_memory_kib" yaml:"kdf_memory_kib"`
	KDFThreads   *uint8  `json:"kdf_threads" yaml:"kdf_threads"`
	Workers      *int    `json:"workers" yaml:"workers"`

	CountdownInterval *timex.Duration `json:"countdown_interval" yaml:"countdown_interval"`

	LogLevel  *string `json:"log_level" yaml:"log_level"`
	LogFormat *string `json:"log_format" yaml:"log_format"`
}

// parseFile overlays cfg with the keys present in the file at path.
func parseFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setIf(&cfg.RegistryBackend, fc.RegistryBackend)
	setIf(&cfg.SQLitePath, fc.SQLitePath)
	setIf(&cfg.PostgresDSN, fc.PostgresDSN)
	setIf(&cfg.RedisAddr, fc.RedisAddr)
	setIf(&cfg.RedisPassword, fc.RedisPassword)
	setIf(&cfg.RedisDB, fc.RedisDB)
	setIf(&cfg.StorePassphrase, fc.StorePassphrase)

	setIf(&cfg.ExportBackend, fc.ExportBackend)
	setIf(&cfg.ExportDir, fc.ExportDir)
	setIf(&cfg.S3Bucket, fc.S3Bucket)
	setIf(&cfg.S3Region, fc.S3Region)
	setIf(&cfg.S3BaseEndpoint, fc.S3BaseEndpoint)
	setIf(&cfg.S3RootUser, fc.S3RootUser)
	setIf(&cfg.S3RootPassword, fc.S3RootPassword)

	setIf(&cfg.KDFTime, fc.KDFTime)
	setIf(&cfg.KDFMemoryKiB, fc.KDFMemoryKiB)
	setIf(&cfg.KDFThreads, fc.KDFThreads)
	setIf(&cfg.Workers, fc.Workers)

	if fc.CountdownInterval != nil {
		cfg.CountdownInterval = fc.CountdownInterval.Duration
	}

	setIf(&cfg.LogLevel, fc.LogLevel)
	setIf(&cfg.LogFormat, fc.LogFormat)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
