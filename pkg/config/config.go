// Package config loads application configuration from a YAML file,
// FINANCE_APP_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	MinOccurrences int    `mapstructure:"min_occurrences"`
	MonthsAhead    int    `mapstructure:"months_ahead"`
	DaysAhead      int    `mapstructure:"days_ahead"`
}

// Build assembles the configuration. cfgFile may be empty, in which case
// config.yaml in the working directory is used when present. flags may be
// nil; bound flags override both file and environment values.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", "0.0.0.0:3000")
	v.SetDefault("min_occurrences", 3)
	v.SetDefault("months_ahead", 3)
	v.SetDefault("days_ahead", 30)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FINANCE_APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; anything else is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
