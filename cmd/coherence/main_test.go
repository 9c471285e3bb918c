package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolateHome sets HOME to a temp directory to avoid touching the real
// ~/.coherence. MUST be called for any test that records runs or saves config.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	return home
}

// runCmd executes the root command with args and returns its stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// mustRun is runCmd that fails the test on error.
func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("coherence %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func decodeJSON(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	want := []string{"version", "score", "simulate", "resolve", "graph", "scenarios", "runs", "config", "mcp-server"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command missing subcommand %q", name)
		}
	}
}

func TestNewRootCmd_PersistentFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"json", "config", "log-level", "root"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing persistent flag --%s", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	isolateHome(t)

	out := mustRun(t, "version")
	if !strings.Contains(out, "coherence version "+version) {
		t.Errorf("version output = %q", out)
	}

	var v map[string]string
	decodeJSON(t, mustRun(t, "version", "--json"), &v)
	if v["version"] != version {
		t.Errorf("version = %q, want %q", v["version"], version)
	}
}

func TestLoadSettings_ConfigFlag(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("scoring:\n  weight: 0.6\n"), 0600); err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	decodeJSON(t, mustRun(t, "score", "growth", "--config", path, "--json"), &got)
	if got["weight"] != 0.6 {
		t.Errorf("weight = %v, want 0.6", got["weight"])
	}
	if c, _ := got["coherence"].(float64); c < 0.399 || c > 0.401 {
		t.Errorf("coherence = %v, want 0.4", got["coherence"])
	}
}

func TestLoadSettings_InvalidLogLevel(t *testing.T) {
	isolateHome(t)
	if _, err := runCmd(t, "score", "growth", "--log-level", "verbose"); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestLoadSettings_MissingConfigFile(t *testing.T) {
	isolateHome(t)
	if _, err := runCmd(t, "score", "growth", "--config", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing --config file")
	}
}

func TestWriteJSON_Indented(t *testing.T) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "{\n  \"a\": 1\n}\n" {
		t.Errorf("writeJSON = %q", buf.String())
	}
}
