package session

// State is the lifecycle position of a recording session. Transitions
// only ever move forward, a terminal state is never left.
type State int32

const (
	Idle State = iota
	Starting
	Recording
	Stopping
	Finalizing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	case Finalizing:
		return "finalizing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

func (s State) Terminal() bool { return s == Completed || s == Failed }
