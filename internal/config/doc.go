// Package config loads runtime configuration for the chronovault CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected with -c or -config (or CHRONOVAULT_CONFIG).
//     Files ending in .yaml or .yml are read as YAML, anything else as JSON.
//  3. Environment variables prefixed with CHRONOVAULT_.
//  4. Command-line flags, which override everything else.
//
// # File schema
//
// Intervals use timex.Duration, so they may be strings like "1s" or integer
// nanoseconds. Every key is optional:
//
//	{
//	  "registry_backend": "sqlite",
//	  "sqlite_path": "chronovault.db",
//	  "postgres_dsn": "",
//	  "redis_addr": "localhost:6379",
//	  "redis_password": "",
//	  "redis_db": 0,
//	  "store_passphrase": true,
//	  "export_backend": "file",
//	  "export_dir": "capsules",
//	  "s3_bucket": "capsules",
//	  "s3_region": "us-east-1",
//	  "s3_base_endpoint": "http://127.0.0.1:9000/",
//	  "s3_root_user": "admin",
//	  "s3_root_password": "secretpassword",
//	  "kdf_time": 1,
//	  "kdf_memory_kib": 65536,
//	  "kdf_threads": 4,
//	  "workers": 0,
//	  "countdown_interval": "1s",
//	  "log_level": "info",
//	  "log_format": "text"
//	}
package config
