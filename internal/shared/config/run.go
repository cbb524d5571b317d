package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// RunConfig contains the execution settings of a run. Positional CLI
// arguments and flags take precedence over these values.
type RunConfig struct {
	RecordsPerSplit int           `mapstructure:"records_per_split"`
	Workers         int           `mapstructure:"workers"`
	Reducers        int           `mapstructure:"reducers"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	TaskTimeout     time.Duration `mapstructure:"task_timeout"`
	Progress        bool          `mapstructure:"progress"`
	Logging         LoggingConfig `mapstructure:"logging"`
}

// LoadRun loads the run configuration from the given path.
// If configPath is empty, it looks for protalign.yaml in the config/ directory.
// Environment variables with PROTALIGN_ prefix override config file values.
func LoadRun(configPath string) (*RunConfig, error) {
	v := viper.New()

	v.SetDefault("records_per_split", 0)
	v.SetDefault("workers", 0)
	v.SetDefault("reducers", 1)
	v.SetDefault("max_attempts", 3)
	v.SetDefault("task_timeout", time.Duration(0))
	v.SetDefault("progress", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("protalign")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := readOptional(v); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	bindEnv(v, "PROTALIGN")

	var cfg RunConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}
