package bootstrap

import (
	"github.com/kbukum/injectkit/config"
)

// Config is the interface constraint for application configuration types.
// Any struct that embeds config.Config (value embedding) automatically
// satisfies this interface via promoted methods.
//
// Example:
//
//	type MyConfig struct {
//	    config.Config `yaml:",inline" mapstructure:",squash"`
//	    Orders OrdersConfig `yaml:"orders" mapstructure:"orders"`
//	}
//
//	app, err := bootstrap.NewApp[*MyConfig](&cfg)
type Config interface {
	GetConfig() *config.Config
	ApplyDefaults()
	Validate() error
}

// LoadConfig reads cfg for serviceName from its config file, .env file and
// environment, then applies defaults and validates it.
func LoadConfig[C Config](serviceName string, cfg C, opts ...config.LoaderOption) error {
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return err
	}
	cfg.ApplyDefaults()
	return cfg.Validate()
}
