package session

// State is the lifecycle phase of a run. A run moves through the phases in declaration order,
// entering each one once.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateDownloading
	StateReassembling
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateDownloading:
		return "downloading"
	case StateReassembling:
		return "reassembling"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// State returns the current phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// setState only moves forward by exactly one phase.
func (s *Session) setState(next State) {
	if !s.state.CompareAndSwap(int32(next-1), int32(next)) {
		s.logger.Errorf("Ignoring state transition %s -> %s", s.State(), next)
		return
	}
	s.logger.Debugf("State %s -> %s", next-1, next)
}
