// Package config loads the configuration of an injector-backed application.
//
// It uses Viper to read a YAML file and environment variables, with .env files
// loaded through godotenv. Environment variables override file values using
// underscore-separated paths (e.g. LOGGING_LEVEL=debug, TRACING_ENABLED=true).
//
// # Usage
//
//	var cfg config.Config
//	if err := config.LoadConfig("orders", &cfg); err != nil { ... }
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil { ... }
package config
