package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestConfig(t *testing.T) string {
	t.Helper()

	configDir := t.TempDir()
	t.Setenv("EMSOLVE_CONFIG_DIR", configDir)
	t.Cleanup(Reset)
	Reset()
	return configDir
}

func TestInitDefaults(t *testing.T) {
	setupTestConfig(t)

	require.NoError(t, Init())
	cfg := Get()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "emconnectome", cfg.Cluster.Queue)
	assert.Equal(t, 2, cfg.Cluster.Nodes)
	assert.Equal(t, 1, cfg.Cluster.PPN)
	assert.Equal(t, "08:00:00", cfg.Cluster.Walltime)
	assert.Equal(t, "em_dist_solve", cfg.Cluster.SolverBinary)
	assert.Equal(t, "preonly", cfg.Solver.KSPType)
	assert.Equal(t, "lu", cfg.Solver.PCType)
	assert.Equal(t, "superlu_dist", cfg.Solver.FactorPackage)
	assert.True(t, cfg.Solver.LogView)
	assert.Equal(t, "affine", cfg.Assembly.Transform)
	assert.Equal(t, 1000.0, cfg.Assembly.Lambda)
	assert.Empty(t, ConfigFilePath())
}

func TestInitReadsConfigFile(t *testing.T) {
	configDir := setupTestConfig(t)

	content := `log_level: debug
cluster:
  queue: overnight
  nodes: 4
solver:
  ksp_type: cg
  pc_type: jacobi
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644))

	require.NoError(t, Init())
	cfg := Get()

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "overnight", cfg.Cluster.Queue)
	assert.Equal(t, 4, cfg.Cluster.Nodes)
	// Unset keys keep their defaults.
	assert.Equal(t, 1, cfg.Cluster.PPN)
	assert.Equal(t, "cg", cfg.Solver.KSPType)
	assert.NotEmpty(t, ConfigFilePath())
}

func TestInitRejectsInvalidConfig(t *testing.T) {
	configDir := setupTestConfig(t)

	content := `cluster:
  walltime: eight hours
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0644))

	err := Init()
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestEnvOverride(t *testing.T) {
	setupTestConfig(t)
	t.Setenv("EMSOLVE_CLUSTER_QUEUE", "weekend")

	require.NoError(t, Init())
	assert.Equal(t, "weekend", Get().Cluster.Queue)
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "empty queue",
			mutate:  func(cfg *Config) { cfg.Cluster.Queue = "" },
			wantErr: "cluster.queue",
		},
		{
			name:    "zero nodes",
			mutate:  func(cfg *Config) { cfg.Cluster.Nodes = 0 },
			wantErr: "cluster.nodes",
		},
		{
			name:    "bad walltime",
			mutate:  func(cfg *Config) { cfg.Cluster.Walltime = "8h" },
			wantErr: "cluster.walltime",
		},
		{
			name:    "unknown ksp type",
			mutate:  func(cfg *Config) { cfg.Solver.KSPType = "gmres" },
			wantErr: "solver.ksp_type",
		},
		{
			name: "preonly needs lu",
			mutate: func(cfg *Config) {
				cfg.Solver.KSPType = "preonly"
				cfg.Solver.PCType = "jacobi"
			},
			wantErr: "solver.pc_type",
		},
		{
			name:    "rtol out of range",
			mutate:  func(cfg *Config) { cfg.Solver.RTol = 2 },
			wantErr: "solver.rtol",
		},
		{
			name:    "unknown transform",
			mutate:  func(cfg *Config) { cfg.Assembly.Transform = "polynomial" },
			wantErr: "assembly.transform",
		},
		{
			name: "depth weights length mismatch",
			mutate: func(cfg *Config) {
				cfg.Assembly.Depth = 2
				cfg.Assembly.DepthWeights = []float64{1, 0.5}
			},
			wantErr: "assembly.depth_weights",
		},
		{
			name: "max points below min",
			mutate: func(cfg *Config) {
				cfg.Assembly.MinPoints = 10
				cfg.Assembly.MaxPoints = 5
			},
			wantErr: "assembly.max_points",
		},
		{
			name:    "non-positive lambda",
			mutate:  func(cfg *Config) { cfg.Assembly.Lambda = 0 },
			wantErr: "assembly.lambda",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(&cfg)

			err := Validate(&cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x"), ExpandPath("~/x"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
	assert.Equal(t, "~user/x", ExpandPath("~user/x"))
}
