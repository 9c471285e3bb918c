package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	config := Default()

	// Scoring defaults
	if config.Scoring.Weight != 0.3 {
		t.Errorf("expected Weight 0.3, got %f", config.Scoring.Weight)
	}

	// Dynamics defaults
	if config.Dynamics.Steps != 15 {
		t.Errorf("expected Steps 15, got %d", config.Dynamics.Steps)
	}
	if config.Dynamics.LowThreshold != 0.4 {
		t.Errorf("expected LowThreshold 0.4, got %f", config.Dynamics.LowThreshold)
	}
	if config.Dynamics.HighThreshold != 1.0 {
		t.Errorf("expected HighThreshold 1.0, got %f", config.Dynamics.HighThreshold)
	}
	if config.Dynamics.MinSceneSize != 3 {
		t.Errorf("expected MinSceneSize 3, got %d", config.Dynamics.MinSceneSize)
	}
	if config.Dynamics.DiversifyProposals != 2 {
		t.Errorf("expected DiversifyProposals 2, got %d", config.Dynamics.DiversifyProposals)
	}
	if config.Dynamics.EntityPrefix != "X" {
		t.Errorf("expected EntityPrefix 'X', got '%s'", config.Dynamics.EntityPrefix)
	}

	// Resolution defaults
	if config.Resolution.BonusFactor != 0.1 {
		t.Errorf("expected BonusFactor 0.1, got %f", config.Resolution.BonusFactor)
	}
	if config.Resolution.RetentionThreshold != 0.3 {
		t.Errorf("expected RetentionThreshold 0.3, got %f", config.Resolution.RetentionThreshold)
	}

	// Logging defaults
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
scoring:
  weight: 0.5

dynamics:
  steps: 40
  seed: 7
  low_threshold: 0.2
  high_threshold: 1.4

resolution:
  bonus_factor: 0.25
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Scoring.Weight != 0.5 {
		t.Errorf("expected Weight 0.5, got %f", config.Scoring.Weight)
	}
	if config.Dynamics.Steps != 40 {
		t.Errorf("expected Steps 40, got %d", config.Dynamics.Steps)
	}
	if config.Dynamics.Seed != 7 {
		t.Errorf("expected Seed 7, got %d", config.Dynamics.Seed)
	}
	if config.Dynamics.LowThreshold != 0.2 || config.Dynamics.HighThreshold != 1.4 {
		t.Errorf("expected thresholds 0.2/1.4, got %f/%f", config.Dynamics.LowThreshold, config.Dynamics.HighThreshold)
	}
	if config.Resolution.BonusFactor != 0.25 {
		t.Errorf("expected BonusFactor 0.25, got %f", config.Resolution.BonusFactor)
	}

	// Unset keys keep their defaults
	if config.Dynamics.MinSceneSize != 3 {
		t.Errorf("expected MinSceneSize default 3, got %d", config.Dynamics.MinSceneSize)
	}
	if config.Resolution.RetentionThreshold != 0.3 {
		t.Errorf("expected RetentionThreshold default 0.3, got %f", config.Resolution.RetentionThreshold)
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
store:
  path: ${TEST_STORE_DIR}/runs.db
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("TEST_STORE_DIR", "/tmp/coherence-test")

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Store.Path != "/tmp/coherence-test/runs.db" {
		t.Errorf("expected expanded store path, got '%s'", config.Store.Path)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COHERENCE_WEIGHT", "0.6")
	t.Setenv("COHERENCE_LOW", "0.1")
	t.Setenv("COHERENCE_HIGH", "2.5")
	t.Setenv("COHERENCE_STEPS", "100")
	t.Setenv("COHERENCE_SEED", "99")
	t.Setenv("COHERENCE_BONUS_FACTOR", "0.2")
	t.Setenv("COHERENCE_RETENTION_THRESHOLD", "0.9")
	t.Setenv("COHERENCE_STORE_PATH", "/tmp/runs.db")

	config := Default()
	applyEnvOverrides(config)

	if config.Scoring.Weight != 0.6 {
		t.Errorf("expected Weight 0.6, got %f", config.Scoring.Weight)
	}
	if config.Dynamics.LowThreshold != 0.1 {
		t.Errorf("expected LowThreshold 0.1, got %f", config.Dynamics.LowThreshold)
	}
	if config.Dynamics.HighThreshold != 2.5 {
		t.Errorf("expected HighThreshold 2.5, got %f", config.Dynamics.HighThreshold)
	}
	if config.Dynamics.Steps != 100 {
		t.Errorf("expected Steps 100, got %d", config.Dynamics.Steps)
	}
	if config.Dynamics.Seed != 99 {
		t.Errorf("expected Seed 99, got %d", config.Dynamics.Seed)
	}
	if config.Resolution.BonusFactor != 0.2 {
		t.Errorf("expected BonusFactor 0.2, got %f", config.Resolution.BonusFactor)
	}
	if config.Resolution.RetentionThreshold != 0.9 {
		t.Errorf("expected RetentionThreshold 0.9, got %f", config.Resolution.RetentionThreshold)
	}
	if config.Store.Path != "/tmp/runs.db" {
		t.Errorf("expected Store.Path '/tmp/runs.db', got '%s'", config.Store.Path)
	}
}

func TestEnvOverrides_IgnoresUnparseable(t *testing.T) {
	t.Setenv("COHERENCE_WEIGHT", "heavy")
	t.Setenv("COHERENCE_STEPS", "many")
	t.Setenv("COHERENCE_SEED", "-1")

	config := Default()
	applyEnvOverrides(config)

	if config.Scoring.Weight != 0.3 {
		t.Errorf("expected Weight to stay 0.3, got %f", config.Scoring.Weight)
	}
	if config.Dynamics.Steps != 15 {
		t.Errorf("expected Steps to stay 15, got %d", config.Dynamics.Steps)
	}
	if config.Dynamics.Seed != 1 {
		t.Errorf("expected Seed to stay 1, got %d", config.Dynamics.Seed)
	}
}

func TestEnvOverrides_LogLevel(t *testing.T) {
	t.Setenv("COHERENCE_LOG_LEVEL", "debug")

	config := Default()
	applyEnvOverrides(config)

	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
}

func TestLoad_HomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	dir := filepath.Join(home, ".coherence")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("dynamics:\n  steps: 30\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("COHERENCE_STEPS", "31")

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Dynamics.Steps != 31 {
		t.Errorf("expected env to win with Steps 31, got %d", config.Dynamics.Steps)
	}

	path, err := config.StorePath()
	if err != nil {
		t.Fatalf("StorePath failed: %v", err)
	}
	if path != filepath.Join(dir, "runs.db") {
		t.Errorf("expected default store path under %s, got %s", dir, path)
	}
}

func TestValidate_Valid(t *testing.T) {
	config := Default()
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CoherenceConfig)
	}{
		{"zero weight", func(c *CoherenceConfig) { c.Scoring.Weight = 0 }},
		{"negative weight", func(c *CoherenceConfig) { c.Scoring.Weight = -0.3 }},
		{"zero steps", func(c *CoherenceConfig) { c.Dynamics.Steps = 0 }},
		{"too many steps", func(c *CoherenceConfig) { c.Dynamics.Steps = 10001 }},
		{"negative low", func(c *CoherenceConfig) { c.Dynamics.LowThreshold = -0.1 }},
		{"high below low", func(c *CoherenceConfig) { c.Dynamics.HighThreshold = 0.2 }},
		{"negative min size", func(c *CoherenceConfig) { c.Dynamics.MinSceneSize = -1 }},
		{"negative proposals", func(c *CoherenceConfig) { c.Dynamics.DiversifyProposals = -1 }},
		{"empty prefix", func(c *CoherenceConfig) { c.Dynamics.EntityPrefix = "" }},
		{"negative bonus", func(c *CoherenceConfig) { c.Resolution.BonusFactor = -0.1 }},
		{"negative retention", func(c *CoherenceConfig) { c.Resolution.RetentionThreshold = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_EqualThresholds(t *testing.T) {
	config := Default()
	config.Dynamics.LowThreshold = 0.7
	config.Dynamics.HighThreshold = 0.7
	if err := config.Validate(); err != nil {
		t.Errorf("expected equal thresholds to be valid, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	config := Default()
	config.Logging.Level = "verbose"
	if err := config.Validate(); err == nil {
		t.Error("expected validation error for invalid log level")
	}
}

func TestValidate_ValidLogLevels(t *testing.T) {
	validLevels := []string{"", "info", "debug", "trace"}

	for _, level := range validLevels {
		t.Run(level, func(t *testing.T) {
			config := Default()
			config.Logging.Level = level
			if err := config.Validate(); err != nil {
				t.Errorf("expected log level '%s' to be valid, got error: %v", level, err)
			}
		})
	}
}

func TestComponentConfigs(t *testing.T) {
	config := Default()
	config.Scoring.Weight = 0.45
	config.Dynamics.Steps = 9
	config.Resolution.BonusFactor = 0.3

	if got := config.ScorerConfig().Weight; got != 0.45 {
		t.Errorf("ScorerConfig().Weight = %f, want 0.45", got)
	}
	sim := config.SimulationConfig()
	if sim.Steps != 9 || sim.LowThreshold != 0.4 || sim.MinSceneSize != 3 {
		t.Errorf("SimulationConfig() = %+v", sim)
	}
	if got := config.ResolutionConfig().BonusFactor; got != 0.3 {
		t.Errorf("ResolutionConfig().BonusFactor = %f, want 0.3", got)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidYAML := `
dynamics:
  steps: [invalid yaml
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadOverride_AppliesEnv(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(configPath, []byte("scoring:\n  weight: 0.5\ndynamics:\n  steps: 20\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("COHERENCE_STEPS", "25")

	config, err := LoadOverride(configPath)
	if err != nil {
		t.Fatalf("LoadOverride failed: %v", err)
	}
	if config.Scoring.Weight != 0.5 {
		t.Errorf("Weight = %f, want 0.5 from file", config.Scoring.Weight)
	}
	if config.Dynamics.Steps != 25 {
		t.Errorf("Steps = %d, want 25 from env", config.Dynamics.Steps)
	}
}

func TestLoadOverride_NotFound(t *testing.T) {
	if _, err := LoadOverride(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := Default()
	config.Scoring.Weight = 0.45
	config.Dynamics.Seed = 99
	config.Logging.Level = "debug"
	if err := config.Save(configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Scoring.Weight != 0.45 || loaded.Dynamics.Seed != 99 || loaded.Logging.Level != "debug" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
	if loaded.Dynamics.Steps != config.Dynamics.Steps {
		t.Errorf("Steps = %d, want %d", loaded.Dynamics.Steps, config.Dynamics.Steps)
	}
}

func TestFilePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	got, err := FilePath()
	if err != nil {
		t.Fatalf("FilePath failed: %v", err)
	}
	if want := filepath.Join(home, ".coherence", "config.yaml"); got != want {
		t.Errorf("FilePath() = %q, want %q", got, want)
	}
}
