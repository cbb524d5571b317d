package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultAlgorithm is used when a scoring config names no algorithm, and
// for bare substitution matrix files.
const DefaultAlgorithm = "nw"

// ScoringConfig selects a scoring method and its options.
type ScoringConfig struct {
	Algorithm string            `mapstructure:"algorithm"`
	Options   map[string]string `mapstructure:"options"`
}

// LoadScoring reads a YAML, JSON or TOML scoring config. A relative
// options.matrix is resolved against the config file's directory. A file
// with any other extension is taken as a substitution matrix for the
// default algorithm.
func LoadScoring(path string) (*ScoringConfig, error) {
	if path == "" {
		return nil, errors.New("scoring config path is required")
	}

	var cfg ScoringConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
		v := viper.New()
		v.SetDefault("algorithm", DefaultAlgorithm)
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading scoring config: %w", err)
		}
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, fmt.Errorf("error unmarshaling scoring config: %w", err)
		}
	default:
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("error reading scoring config: %w", err)
		}
		cfg = ScoringConfig{
			Algorithm: DefaultAlgorithm,
			Options:   map[string]string{"matrix": path},
		}
	}

	cfg.Algorithm = strings.ToLower(strings.TrimSpace(cfg.Algorithm))
	if cfg.Algorithm == "" {
		cfg.Algorithm = DefaultAlgorithm
	}
	if cfg.Options == nil {
		cfg.Options = make(map[string]string)
	}
	if m := cfg.Options["matrix"]; m != "" && !filepath.IsAbs(m) {
		cfg.Options["matrix"] = filepath.Join(filepath.Dir(path), m)
	}
	return &cfg, nil
}
