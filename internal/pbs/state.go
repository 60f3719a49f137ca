package pbs

// State is a scheduler job state.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateExiting   State = "exiting"
	StateCompleted State = "completed"
	StateHeld      State = "held"
	StateUnknown   State = "unknown"
)

// ParseState maps a qstat job_state letter to a State.
func ParseState(s string) State {
	switch s {
	case "Q", "W", "T":
		return StateQueued
	case "R":
		return StateRunning
	case "E":
		return StateExiting
	case "C":
		return StateCompleted
	case "H":
		return StateHeld
	default:
		return StateUnknown
	}
}

// Terminal reports whether the job has finished.
func (s State) Terminal() bool {
	return s == StateCompleted
}
