package pbs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCommand writes an executable shell script that emulates a scheduler
// tool and returns its path.
func fakeCommand(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestSubmitParsesJobID(t *testing.T) {
	dir := t.TempDir()
	qsub := fakeCommand(t, dir, "qsub", `echo "12345.headnode"`)

	client := NewClient(WithCommands(qsub, "qstat"))
	scriptPath := filepath.Join(dir, "job.pbs")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/bin/bash\n"), 0755))

	jobID, err := client.Submit(context.Background(), scriptPath)
	require.NoError(t, err)
	assert.Equal(t, "12345.headnode", jobID)
}

func TestSubmitFailure(t *testing.T) {
	dir := t.TempDir()
	qsub := fakeCommand(t, dir, "qsub", `echo "qsub: submit error" >&2; exit 1`)

	client := NewClient(WithCommands(qsub, "qstat"))
	scriptPath := filepath.Join(dir, "job.pbs")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/bin/bash\n"), 0755))

	_, err := client.Submit(context.Background(), scriptPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "submit error")
}

func TestStatusParsesQstatOutput(t *testing.T) {
	dir := t.TempDir()
	qstat := fakeCommand(t, dir, "qstat", `cat <<'EOF'
Job Id: 12345.headnode
    Job_Name = em_abc123
    Job_Owner = aligner@headnode
    job_state = R
    queue = emconnectome
EOF`)

	client := NewClient(WithCommands("qsub", qstat))
	status, err := client.Status(context.Background(), "12345.headnode")
	require.NoError(t, err)

	assert.Equal(t, "12345.headnode", status.ID)
	assert.Equal(t, "em_abc123", status.Name)
	assert.Equal(t, "emconnectome", status.Queue)
	assert.Equal(t, StateRunning, status.State)
	assert.False(t, status.HasExit)
}

func TestStatusUnknownJob(t *testing.T) {
	dir := t.TempDir()
	qstat := fakeCommand(t, dir, "qstat",
		`echo "qstat: Unknown Job Id 999.headnode" >&2; exit 153`)

	client := NewClient(WithCommands("qsub", qstat))
	_, err := client.Status(context.Background(), "999.headnode")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestParseQstatCompletedJob(t *testing.T) {
	out := `Job Id: 777.headnode
    Job_Name = em_ffff
    job_state = C
    queue = emconnectome
    exit_status = 0
    Variable_List = PBS_O_HOME=/home/aligner,
	PBS_O_PATH=/usr/bin
`
	status := parseQstat(out)

	assert.Equal(t, "777.headnode", status.ID)
	assert.Equal(t, StateCompleted, status.State)
	assert.True(t, status.HasExit)
	assert.Equal(t, 0, status.ExitStatus)
}

func TestParseState(t *testing.T) {
	tests := []struct {
		letter string
		want   State
	}{
		{"Q", StateQueued},
		{"W", StateQueued},
		{"R", StateRunning},
		{"E", StateExiting},
		{"C", StateCompleted},
		{"H", StateHeld},
		{"X", StateUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseState(tt.letter), "letter %s", tt.letter)
	}
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.False(t, StateQueued.Terminal())
}
