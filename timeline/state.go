package timeline

// State is a discrete playback state.
type State int

const (
	StateStopped State = iota
	StateStarted
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarted:
		return "started"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

// StateEvent records a transition into State at time T. Offset carries the
// tick counter value a started transition resumes from.
type StateEvent struct {
	State  State
	T      float64
	Offset int64
}

func (e *StateEvent) Time() float64 { return e.T }

// StateTimeline stores playback state transitions and answers "what was the
// state as of this time". Queries before the first recorded transition
// resolve to the configured initial state.
type StateTimeline struct {
	*Timeline[float64, *StateEvent]
	initial State
}

func NewStateTimeline(initial State) *StateTimeline {
	return &StateTimeline{
		Timeline: New[float64, *StateEvent](0),
		initial:  initial,
	}
}

// GetValueAtTime returns the state as of the given time.
func (s *StateTimeline) GetValueAtTime(time float64) State {
	if ev, ok := s.Get(time); ok {
		return ev.State
	}
	return s.initial
}

// SetStateAtTime records a transition into the given state.
func (s *StateTimeline) SetStateAtTime(state State, time float64) *StateEvent {
	ev := &StateEvent{State: state, T: time}
	s.Add(ev)
	return ev
}

// GetLastState returns the most recent event of the given state at or
// before the given time.
func (s *StateTimeline) GetLastState(state State, time float64) (*StateEvent, bool) {
	for i := s.search(time); i >= 0; i-- {
		if s.events[i].State == state {
			return s.events[i], true
		}
	}
	return nil, false
}

// ForEachBetween visits every transition in [lower, upper) in time order.
func (s *StateTimeline) ForEachBetween(lower, upper float64, fn func(*StateEvent)) {
	s.ForEachFrom(lower, func(ev *StateEvent) {
		if ev.T < upper {
			fn(ev)
		}
	})
}
