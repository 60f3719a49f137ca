// Package testutil provides testing utilities for isolated test environments.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/emalign/emsolve/internal/config"
)

// TestEnv provides an isolated test environment with its own config directory.
type TestEnv struct {
	t         *testing.T
	ConfigDir string
}

// NewTestEnv creates an isolated test environment.
// It uses environment variables to override all paths, ensuring complete
// isolation even when tests run in parallel across packages.
// Cleanup is automatic via t.Cleanup.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	configDir := filepath.Join(t.TempDir(), "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create test config dir: %v", err)
	}

	// t.Setenv is test-scoped; these override viper settings via
	// AutomaticEnv().
	t.Setenv("EMSOLVE_CONFIG_DIR", configDir)
	t.Setenv("EMSOLVE_LOG_FILE", filepath.Join(configDir, "emsolve.log"))
	t.Setenv("EMSOLVE_SPOOL_DIR", filepath.Join(configDir, "spool"))
	t.Setenv("EMSOLVE_STORE_PATH", filepath.Join(configDir, "matches.db"))
	t.Setenv("EMSOLVE_REGISTRY_PATH", filepath.Join(configDir, "registry.db"))

	config.Reset()
	if err := config.Init(); err != nil {
		t.Fatalf("failed to initialize test config: %v", err)
	}

	env := &TestEnv{
		t:         t,
		ConfigDir: configDir,
	}

	t.Cleanup(func() {
		config.Reset()
	})

	return env
}

// SpoolDir returns the path of the test spool directory.
func (e *TestEnv) SpoolDir() string {
	return filepath.Join(e.ConfigDir, "spool")
}

// StorePath returns the path of the test point-match database.
func (e *TestEnv) StorePath() string {
	return filepath.Join(e.ConfigDir, "matches.db")
}

// RegistryPath returns the path of the test job registry database.
func (e *TestEnv) RegistryPath() string {
	return filepath.Join(e.ConfigDir, "registry.db")
}

// CreateTestDir creates a test directory within the test environment's temp
// space. Returns the absolute path to the created directory.
func (e *TestEnv) CreateTestDir(name string) string {
	e.t.Helper()

	dir := filepath.Join(e.t.TempDir(), "testdata", name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		e.t.Fatalf("failed to create test dir %s: %v", name, err)
	}
	return dir
}

// CreateTestFile creates a test file with the given content.
// Returns the absolute path to the created file.
func (e *TestEnv) CreateTestFile(dir, name, content string) string {
	e.t.Helper()

	filePath := filepath.Join(dir, name)
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		e.t.Fatalf("failed to create test file %s: %v", filePath, err)
	}
	return filePath
}
