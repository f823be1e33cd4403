package capture

// State of the capture pipeline: Idle -> Armed -> Recording -> Flushing -> Idle.
type State int

const (
	Idle State = iota
	Armed
	Recording
	Flushing
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Recording:
		return "recording"
	case Flushing:
		return "flushing"
	default:
		return "idle"
	}
}
