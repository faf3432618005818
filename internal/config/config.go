// Package config loads the OWL-QN trainer's hyperparameters and runtime
// settings from a YAML file and OWLQN_-prefixed environment variables,
// the latter taking precedence. It reads no command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/atlas-desktop/owlqn-trainer/internal/state"
)

// Config is the full set of settings a training run needs.
type Config struct {
	// Hyperparameters feed directly into state.New (spec.md §6), except
	// MaxFeatureNumber: it is loaded but nothing reads it, and dense
	// working vectors take their size from the seed iterate.
	MemorySize           int     `mapstructure:"memory_size"`
	L1Weight             float64 `mapstructure:"l1weight"`
	MaxLineSearchSteps    int     `mapstructure:"max_line_search_steps"`
	MaxIterations         int     `mapstructure:"max_iterations"`
	ConvergenceTolerance  float64 `mapstructure:"convergence_tolerance"`
	MaxFeatureNumber      int     `mapstructure:"max_feature_number"`

	// Runtime settings.
	DataDir           string `mapstructure:"data_dir"`
	CheckpointDir     string `mapstructure:"checkpoint_dir"`
	StatesFilebase    string `mapstructure:"states_filebase"`
	TerminationFlag   string `mapstructure:"termination_flag"`
	ShardCount        int    `mapstructure:"shard_count"`
	LogLevel          string `mapstructure:"log_level"`
	APIAddr           string `mapstructure:"api_addr"`
}

// Defaults returns the baseline configuration applied before any file,
// environment, or flag override is layered on top.
func Defaults() Config {
	return Config{
		MemorySize:           10,
		L1Weight:             1.0,
		MaxLineSearchSteps:   20,
		MaxIterations:        1000,
		ConvergenceTolerance: 1e-4,
		MaxFeatureNumber:     0,

		DataDir:         "./data",
		CheckpointDir:   "./checkpoints",
		StatesFilebase:  "model",
		TerminationFlag: "./termination_flag",
		ShardCount:      1,
		LogLevel:        "info",
		APIAddr:         "localhost:8080",
	}
}

// Load reads configPath (if non-empty) over the defaults, then applies
// OWLQN_-prefixed environment overrides (e.g. OWLQN_L1WEIGHT).
func Load(configPath string) (Config, error) {
	v := viper.New()
	cfg := Defaults()

	v.SetConfigType("yaml")
	v.SetEnvPrefix("owlqn")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows, so each key is bound to
	// its environment variable explicitly.
	for _, key := range []string{
		"memory_size", "l1weight", "max_line_search_steps", "max_iterations",
		"convergence_tolerance", "max_feature_number", "data_dir", "checkpoint_dir",
		"states_filebase", "termination_flag", "shard_count", "log_level", "api_addr",
	} {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("config: binding %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshalling: %w", err)
	}
	return cfg, nil
}

// HyperParameters projects the fields state.New needs out of Config.
func (c Config) HyperParameters() state.HyperParameters {
	return state.HyperParameters{
		MemorySize:           c.MemorySize,
		L1Weight:             c.L1Weight,
		MaxLineSearchSteps:   c.MaxLineSearchSteps,
		MaxIterations:        c.MaxIterations,
		ConvergenceTolerance: c.ConvergenceTolerance,
	}
}
