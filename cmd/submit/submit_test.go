package submit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emalign/emsolve/internal/config"
	"github.com/emalign/emsolve/internal/spool"
	"github.com/emalign/emsolve/internal/testutil"
)

func TestValidateSubmitDefaultConfig(t *testing.T) {
	testutil.NewTestEnv(t)

	assert.NoError(t, validateSubmit(SubmitCmd, []string{"run"}))
}

func TestValidateSubmitRejectsLocalSolverConfig(t *testing.T) {
	testutil.NewTestEnv(t)

	// cg with an iterative preconditioner is exactly what emsolve solve
	// runs; shipping it to the cluster would run the MPI binary with a
	// solver mode submit never intends.
	t.Setenv("EMSOLVE_SOLVER_KSP_TYPE", "cg")
	t.Setenv("EMSOLVE_SOLVER_PC_TYPE", "jacobi")
	config.Reset()
	require.NoError(t, config.Init())

	err := validateSubmit(SubmitCmd, []string{"run"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solves locally")
}

func TestJobSpecFromConfig(t *testing.T) {
	testutil.NewTestEnv(t)

	meta := &spool.RunMeta{ID: "2f1c4a9e-dead-beef"}
	spec := jobSpec(config.Get(), meta, "/spool/run", "/spool/run/in.h5", "/spool/run/out.h5")

	assert.Equal(t, "em_2f1c4a9e", spec.Name)
	assert.Equal(t, "preonly", spec.KSPType)
	assert.Equal(t, "lu", spec.PCType)
	assert.Equal(t, "superlu_dist", spec.FactorPackage)
	assert.Equal(t, "/spool/run/job.log", spec.LogPath)
}

func TestJobSpecFlagOverrides(t *testing.T) {
	testutil.NewTestEnv(t)

	submitQueue = "overnight"
	submitWalltime = "24:00:00"
	t.Cleanup(func() {
		submitQueue = ""
		submitWalltime = ""
	})

	spec := jobSpec(config.Get(), &spool.RunMeta{ID: "abc"}, "/spool/run", "in", "out")

	assert.Equal(t, "overnight", spec.Queue)
	assert.Equal(t, "24:00:00", spec.Walltime)
	assert.Equal(t, 2, spec.Nodes)
}
