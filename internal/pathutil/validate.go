// Package pathutil confines scenario file access to allowed directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/coherence/internal/constants"
)

// ErrOutsideAllowedDirs is returned when a path resolves outside every
// allowed directory.
var ErrOutsideAllowedDirs = errors.New("path is outside allowed directories")

// scenarioExtensions are the file extensions accepted for scenario files.
var scenarioExtensions = []string{".yaml", ".yml"}

// RedactPath reduces a full path to .../<parent>/<basename> for error messages.
// For example, "/home/user/.coherence/scenarios/a.yaml" becomes ".../scenarios/a.yaml".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	base := filepath.Base(cleaned)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// ScenarioPath checks that path names a YAML file inside one of allowedDirs
// and returns its cleaned absolute form with symlinks resolved. The file
// itself need not exist yet.
func ScenarioPath(path string, allowedDirs []string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("scenario path is empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("scenario path contains null byte")
	}
	if !hasScenarioExtension(path) {
		return "", fmt.Errorf("scenario path %q must end in .yaml or .yml", RedactPath(path))
	}
	if len(allowedDirs) == 0 {
		return "", fmt.Errorf("no allowed scenario directories configured")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolving scenario path: %w", err)
	}
	dir, err := resolveExisting(filepath.Dir(abs))
	if err != nil {
		return "", err
	}
	resolved := filepath.Join(dir, filepath.Base(abs))

	for _, allowed := range allowedDirs {
		allowedAbs, err := filepath.Abs(filepath.Clean(allowed))
		if err != nil {
			continue
		}
		allowedResolved, err := resolveExisting(allowedAbs)
		if err != nil {
			continue
		}
		if within(resolved, allowedResolved) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrOutsideAllowedDirs, RedactPath(abs))
}

// ScenarioDirs returns the directories scenario files may be read from:
// ~/.coherence/scenarios and, when root is non-empty, root itself.
func ScenarioDirs(root string) ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	dirs := []string{filepath.Join(home, constants.ConfigDirName, "scenarios")}
	if root != "" {
		dirs = append(dirs, root)
	}
	return dirs, nil
}

func hasScenarioExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range scenarioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// resolveExisting resolves symlinks on the deepest existing ancestor of dir
// and re-appends the missing tail.
func resolveExisting(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}
	resolvedParent, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// within reports whether path equals base or lies beneath it.
func within(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(os.PathSeparator))
}
