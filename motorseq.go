// Package motorseq holds the shared vocabulary for the motor sequencer:
// the lifecycle of a run/stop sequence and the unit conversions between
// RPM and the raw counts the motor firmware works in.
package motorseq

// Phase is the part of a cycle the sequencer is currently in
type Phase int

const (
	PhaseRun Phase = iota
	PhaseStop
)

func (p Phase) String() string {
	switch p {
	case PhaseRun:
		return "Run"
	case PhaseStop:
		return "Stop"
	default:
		return "Unknown"
	}
}

// State is the lifecycle state of a sequence run
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateCompleted
	StateStoppedByUser
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCompleted:
		return "Completed"
	case StateStoppedByUser:
		return "Stopped by user"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the run is over. A terminal sequencer can accept
// a new Start; the state sticks around so displays can show how the last
// run ended.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStoppedByUser
}
