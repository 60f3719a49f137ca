package pbs

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJobSpec() *JobSpec {
	return &JobSpec{
		Name:       "em_abc123",
		Queue:      "emconnectome",
		Nodes:      2,
		PPN:        1,
		Walltime:   "08:00:00",
		LogPath:    "/data/runs/abc123/job.log",
		Email:      "ops@example.org",
		ModuleLoad: "mpi/mvapich2-2.2-x86_64",

		MPIExec:       "mpiexec",
		SolverBinary:  "em_dist_solve",
		InputPath:     "/data/runs/abc123/solution_input.h5",
		OutputPath:    "/data/runs/abc123/solution_output.h5",
		KSPType:       "preonly",
		PCType:        "lu",
		FactorPackage: "superlu_dist",
		LogView:       true,
	}
}

func TestRenderJobScript(t *testing.T) {
	var b strings.Builder
	require.NoError(t, Render(&b, testJobSpec()))
	script := b.String()

	assert.True(t, strings.HasPrefix(script, "#!/bin/bash\n"))
	assert.Contains(t, script, "#PBS -N em_abc123")
	assert.Contains(t, script, "#PBS -q emconnectome")
	assert.Contains(t, script, "#PBS -l nodes=2:ppn=1")
	assert.Contains(t, script, "#PBS -l walltime=08:00:00")
	assert.Contains(t, script, "#PBS -j oe")
	assert.Contains(t, script, "#PBS -o /data/runs/abc123/job.log")
	assert.Contains(t, script, "#PBS -m a")
	assert.Contains(t, script, "#PBS -M ops@example.org")
	assert.Contains(t, script, "module load mpi/mvapich2-2.2-x86_64")
	assert.Contains(t, script,
		"mpiexec -n 2 em_dist_solve"+
			" -input /data/runs/abc123/solution_input.h5"+
			" -output /data/runs/abc123/solution_output.h5"+
			" -ksp_type preonly -pc_type lu"+
			" -pc_factor_mat_solver_package superlu_dist -log_view")
}

func TestRenderOmitsOptionalDirectives(t *testing.T) {
	spec := testJobSpec()
	spec.Email = ""
	spec.ModuleLoad = ""
	spec.LogView = false

	var b strings.Builder
	require.NoError(t, Render(&b, spec))
	script := b.String()

	assert.NotContains(t, script, "#PBS -m")
	assert.NotContains(t, script, "#PBS -M")
	assert.NotContains(t, script, "module load")
	assert.NotContains(t, script, "-log_view")
}

func TestRanks(t *testing.T) {
	spec := &JobSpec{Nodes: 4, PPN: 3}
	assert.Equal(t, 12, spec.Ranks())
}

func TestWriteScript(t *testing.T) {
	dir := t.TempDir()
	spec := testJobSpec()

	path, err := WriteScript(dir, spec)
	require.NoError(t, err)
	assert.Equal(t, dir+"/em_abc123.pbs", path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	// qsub runs the script; it must be executable.
	assert.NotZero(t, info.Mode()&0100)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "#PBS -N em_abc123")
}
