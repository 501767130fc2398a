// Package config loads the daemon configuration from an optional YAML file,
// environment variables, and defaults.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the daemon configuration.
type Config struct {
	// Device is the search term identifying the controller among the input
	// devices, e.g. "Nintendo".
	Device string `mapstructure:"device"`
	// Profile is a builtin profile name or the path to a profile YAML file.
	Profile string `mapstructure:"profile"`
	// ScaleStep is how far one cross-pad press moves a scale factor.
	ScaleStep float64 `mapstructure:"scale_step"`
	// Addr is the monitor HTTP listen address.
	Addr string `mapstructure:"addr"`
	// MaxReadRetries bounds consecutive device read failures.
	MaxReadRetries int `mapstructure:"max_read_retries"`
	// ReadBackoff is the base delay between read retries.
	ReadBackoff time.Duration `mapstructure:"read_backoff"`
	// Debug enables debug logging.
	Debug bool `mapstructure:"debug"`
}

// Load reads the configuration. path may be empty, in which case only
// defaults and BTCAR_* environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("device", "Nintendo")
	v.SetDefault("profile", "wiiu")
	v.SetDefault("scale_step", 0.05)
	v.SetDefault("addr", ":8080")
	v.SetDefault("max_read_retries", 5)
	v.SetDefault("read_backoff", 100*time.Millisecond)
	v.SetDefault("debug", false)

	v.SetEnvPrefix("btcar")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config %q", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if cfg.ScaleStep <= 0 || cfg.ScaleStep > 1 {
		return nil, errors.Errorf("scale_step %v outside (0, 1]", cfg.ScaleStep)
	}
	return &cfg, nil
}
