package config

import (
	"github.com/kbukum/injectkit/logger"
	"github.com/kbukum/injectkit/validation"
)

// Stages understood by the injector.
const (
	StageDevelopment = "development"
	StageProduction  = "production"
)

// Config contains the settings every injector-backed application needs.
// Projects extend it by embedding it in their own config structs:
//
//	type MyConfig struct {
//	    config.Config `yaml:",inline" mapstructure:",squash"`
//	    Orders OrdersConfig `yaml:"orders" mapstructure:"orders"`
//	}
type Config struct {
	Name        string `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	// Stage selects lazy (development) or eager (production) singleton creation.
	Stage string `yaml:"stage" mapstructure:"stage" validate:"oneof=development production"`
	// Scopes lists the context scopes to bind, by annotation.
	Scopes []string `yaml:"scopes" mapstructure:"scopes" validate:"dive,annotation"`
	// Summary prints the binding summary after the injector is created.
	Summary bool          `yaml:"summary" mapstructure:"summary"`
	Logging logger.Config `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}

// TracingConfig controls OpenTelemetry export for provisioning and intercepted calls.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Metrics    bool    `yaml:"metrics" mapstructure:"metrics"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// GetConfig returns the base Config. Promoted through embedding so any
// project config can be handed to code that only needs the base settings.
func (c *Config) GetConfig() *Config {
	return c
}

// ApplyDefaults applies default values. The stage follows the environment
// unless set explicitly.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Stage == "" {
		if c.Environment == "production" {
			c.Stage = StageProduction
		} else {
			c.Stage = StageDevelopment
		}
	}
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4318"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}
	c.Logging.ApplyDefaults()
}

// Validate validates the configuration fields.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

// IsProduction reports whether singletons are created eagerly.
func (c *Config) IsProduction() bool {
	return c.Stage == StageProduction
}
