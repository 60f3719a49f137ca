package subcommands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emalign/emsolve/internal/config"
	"github.com/emalign/emsolve/internal/testutil"
)

func TestValidateWithoutConfigFile(t *testing.T) {
	testutil.NewTestEnv(t)

	assert.NoError(t, runValidate(ValidateCmd, nil))
}

func TestValidateWithConfigFile(t *testing.T) {
	env := testutil.NewTestEnv(t)

	env.CreateTestFile(env.ConfigDir, "config.yaml", "log_level: debug\n")
	config.Reset()
	require.NoError(t, config.Init())

	assert.NoError(t, runValidate(ValidateCmd, nil))
}

func TestValidateRejectsBadConfigFile(t *testing.T) {
	env := testutil.NewTestEnv(t)

	env.CreateTestFile(env.ConfigDir, "config.yaml", "cluster:\n  nodes: 0\n")
	config.Reset()

	// Init itself refuses the invalid file.
	assert.Error(t, config.Init())
}

func TestShowEffectiveConfig(t *testing.T) {
	testutil.NewTestEnv(t)

	showRaw = false
	assert.NoError(t, runShow(ShowCmd, nil))
}
