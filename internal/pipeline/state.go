package pipeline

// State is the coordinator's position in the cycle.
type State int32

const (
	StateBootstrapping State = iota
	StateWaiting
	StateFetching
	StateDiffing
	StatePublishing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateWaiting:
		return "waiting"
	case StateFetching:
		return "fetching"
	case StateDiffing:
		return "diffing"
	case StatePublishing:
		return "publishing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
