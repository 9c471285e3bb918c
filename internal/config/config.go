// Package config provides unified configuration loading for coherence.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/coherence/internal/coherence"
	"github.com/nvandessel/coherence/internal/constants"
	"github.com/nvandessel/coherence/internal/resolution"
	"github.com/nvandessel/coherence/internal/simulation"
)

// CoherenceConfig contains all coherence configuration settings.
type CoherenceConfig struct {
	// Scoring contains the coherence scoring weight.
	Scoring ScoringConfig `json:"scoring" yaml:"scoring"`

	// Dynamics contains the thresholds and bounds of the dynamics loop.
	Dynamics DynamicsConfig `json:"dynamics" yaml:"dynamics"`

	// Resolution contains settings for conflict resolution.
	Resolution ResolutionConfig `json:"resolution" yaml:"resolution"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Store contains settings for the run store.
	Store StoreConfig `json:"store" yaml:"store"`
}

// ScoringConfig configures the scoring engine.
type ScoringConfig struct {
	// Weight is the contribution of one connected, differently-aspected
	// distinction (w). Must be positive.
	Weight float64 `json:"weight" yaml:"weight"`
}

// DynamicsConfig configures the dynamics loop.
type DynamicsConfig struct {
	// Steps is the number of discrete steps (T). Range: 1 to 10000.
	Steps int `json:"steps" yaml:"steps"`

	// Seed seeds the random source. Identical seeds replay identical runs.
	Seed uint64 `json:"seed" yaml:"seed"`

	// LowThreshold is the coherence below which the scene expands.
	LowThreshold float64 `json:"low_threshold" yaml:"low_threshold"`

	// HighThreshold is the coherence above which the scene contracts.
	HighThreshold float64 `json:"high_threshold" yaml:"high_threshold"`

	// MinSceneSize is the size at or below which contraction is a no-op.
	MinSceneSize int `json:"min_scene_size" yaml:"min_scene_size"`

	// DiversifyProposals is how many distinctions diversify attempts.
	DiversifyProposals int `json:"diversify_proposals" yaml:"diversify_proposals"`

	// EntityPrefix labels entities introduced by diversification.
	EntityPrefix string `json:"entity_prefix" yaml:"entity_prefix"`
}

// ResolutionConfig configures the conflict resolution selector.
type ResolutionConfig struct {
	// BonusFactor scales the structural bonus per auxiliary distinction.
	BonusFactor float64 `json:"bonus_factor" yaml:"bonus_factor"`

	// RetentionThreshold is the minimum relation coherence a distinction of
	// the original scene needs to be kept in candidate scenes.
	RetentionThreshold float64 `json:"retention_threshold" yaml:"retention_threshold"`
}

// LoggingConfig configures coherence's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to decisions.jsonl in Dir.
	Level string `json:"level" yaml:"level"`

	// Dir is where decisions.jsonl is written. Defaults to ~/.coherence.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// StoreConfig configures the SQLite run store.
type StoreConfig struct {
	// Path is the database file. Supports ${VAR} syntax. Defaults to
	// ~/.coherence/runs.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns a CoherenceConfig with sensible defaults.
func Default() *CoherenceConfig {
	return &CoherenceConfig{
		Scoring: ScoringConfig{
			Weight: constants.DefaultCoherenceWeight,
		},
		Dynamics: DynamicsConfig{
			Steps:              constants.DefaultSteps,
			Seed:               constants.DefaultSeed,
			LowThreshold:       constants.DefaultLowThreshold,
			HighThreshold:      constants.DefaultHighThreshold,
			MinSceneSize:       constants.DefaultMinSceneSize,
			DiversifyProposals: constants.DefaultDiversifyProposals,
			EntityPrefix:       constants.DefaultEntityPrefix,
		},
		Resolution: ResolutionConfig{
			BonusFactor:        constants.DefaultBonusFactor,
			RetentionThreshold: constants.DefaultRetentionThreshold,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Dir returns the coherence home directory (~/.coherence).
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.ConfigDirName), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.coherence/config.yaml -> environment variables
func Load() (*CoherenceConfig, error) {
	config := Default()

	// Try to load from default config file
	if dir, err := Dir(); err == nil {
		configPath := filepath.Join(dir, "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*CoherenceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.Path = expandEnvVars(config.Store.Path)
	config.Logging.Dir = expandEnvVars(config.Logging.Dir)

	return config, nil
}

// LoadOverride loads path in place of ~/.coherence/config.yaml, then applies
// environment variable overrides.
func LoadOverride(path string) (*CoherenceConfig, error) {
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// Save writes the configuration as YAML to path, creating the parent
// directory if needed.
func (c *CoherenceConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FilePath returns the default config file path, ~/.coherence/config.yaml.
func FilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Validate checks that the configuration is valid.
func (c *CoherenceConfig) Validate() error {
	if c.Scoring.Weight <= 0 {
		return fmt.Errorf("weight must be positive, got %f", c.Scoring.Weight)
	}

	d := c.Dynamics
	if d.Steps < 1 || d.Steps > constants.MaxSteps {
		return fmt.Errorf("steps must be between 1 and %d, got %d", constants.MaxSteps, d.Steps)
	}
	if d.LowThreshold < 0 {
		return fmt.Errorf("low_threshold must be non-negative, got %f", d.LowThreshold)
	}
	if d.HighThreshold < d.LowThreshold {
		return fmt.Errorf("high_threshold (%f) must not be below low_threshold (%f)", d.HighThreshold, d.LowThreshold)
	}
	if d.MinSceneSize < 0 {
		return fmt.Errorf("min_scene_size must be non-negative, got %d", d.MinSceneSize)
	}
	if d.DiversifyProposals < 0 {
		return fmt.Errorf("diversify_proposals must be non-negative, got %d", d.DiversifyProposals)
	}
	if d.EntityPrefix == "" {
		return fmt.Errorf("entity_prefix must not be empty")
	}

	if c.Resolution.BonusFactor < 0 {
		return fmt.Errorf("bonus_factor must be non-negative, got %f", c.Resolution.BonusFactor)
	}
	if c.Resolution.RetentionThreshold < 0 {
		return fmt.Errorf("retention_threshold must be non-negative, got %f", c.Resolution.RetentionThreshold)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// ScorerConfig returns the scoring engine configuration.
func (c *CoherenceConfig) ScorerConfig() coherence.Config {
	return coherence.Config{Weight: c.Scoring.Weight}
}

// SimulationConfig returns the dynamics loop configuration.
func (c *CoherenceConfig) SimulationConfig() simulation.Config {
	return simulation.Config{
		Steps:              c.Dynamics.Steps,
		LowThreshold:       c.Dynamics.LowThreshold,
		HighThreshold:      c.Dynamics.HighThreshold,
		MinSceneSize:       c.Dynamics.MinSceneSize,
		DiversifyProposals: c.Dynamics.DiversifyProposals,
		EntityPrefix:       c.Dynamics.EntityPrefix,
	}
}

// ResolutionConfig returns the selector configuration.
func (c *CoherenceConfig) ResolutionConfig() resolution.Config {
	return resolution.Config{
		BonusFactor:        c.Resolution.BonusFactor,
		RetentionThreshold: c.Resolution.RetentionThreshold,
	}
}

// StorePath returns the configured run store path, or the default
// ~/.coherence/runs.db.
func (c *CoherenceConfig) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.StoreFileName), nil
}

// LogDir returns the decision log directory, or the default ~/.coherence.
func (c *CoherenceConfig) LogDir() (string, error) {
	if c.Logging.Dir != "" {
		return c.Logging.Dir, nil
	}
	return Dir()
}

// applyEnvOverrides applies environment variable overrides to the config.
// Values that fail to parse are ignored.
func applyEnvOverrides(config *CoherenceConfig) {
	if v := os.Getenv("COHERENCE_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Scoring.Weight = f
		}
	}

	if v := os.Getenv("COHERENCE_LOW"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Dynamics.LowThreshold = f
		}
	}

	if v := os.Getenv("COHERENCE_HIGH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Dynamics.HighThreshold = f
		}
	}

	if v := os.Getenv("COHERENCE_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Dynamics.Steps = n
		}
	}

	if v := os.Getenv("COHERENCE_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Dynamics.Seed = n
		}
	}

	if v := os.Getenv("COHERENCE_BONUS_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Resolution.BonusFactor = f
		}
	}

	if v := os.Getenv("COHERENCE_RETENTION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Resolution.RetentionThreshold = f
		}
	}

	if v := os.Getenv("COHERENCE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("COHERENCE_STORE_PATH"); v != "" {
		config.Store.Path = expandEnvVars(v)
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
