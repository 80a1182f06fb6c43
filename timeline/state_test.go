package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTimelineInitialValue(t *testing.T) {
	t.Parallel()

	st := NewStateTimeline(StateStopped)
	assert.Equal(t, StateStopped, st.GetValueAtTime(0))
	assert.Equal(t, StateStopped, st.GetValueAtTime(100))
}

func TestStateTimelineTransitions(t *testing.T) {
	t.Parallel()

	st := NewStateTimeline(StateStopped)
	st.SetStateAtTime(StateStarted, 1)
	st.SetStateAtTime(StatePaused, 5)
	st.SetStateAtTime(StateStarted, 8)
	st.SetStateAtTime(StateStopped, 10)

	assert.Equal(t, StateStopped, st.GetValueAtTime(0.5))
	assert.Equal(t, StateStarted, st.GetValueAtTime(1))
	assert.Equal(t, StateStarted, st.GetValueAtTime(4))
	assert.Equal(t, StatePaused, st.GetValueAtTime(6))
	assert.Equal(t, StateStarted, st.GetValueAtTime(9))
	assert.Equal(t, StateStopped, st.GetValueAtTime(11))
}

func TestStateTimelineEqualTimeLastWins(t *testing.T) {
	t.Parallel()

	// a stop+start pair at the same instant reads back as started
	st := NewStateTimeline(StateStopped)
	st.SetStateAtTime(StateStarted, 0)
	st.SetStateAtTime(StateStopped, 4)
	st.SetStateAtTime(StateStarted, 4)

	assert.Equal(t, StateStarted, st.GetValueAtTime(4))
}

func TestStateTimelineGetLastState(t *testing.T) {
	t.Parallel()

	st := NewStateTimeline(StateStopped)
	st.SetStateAtTime(StateStarted, 1)
	st.SetStateAtTime(StateStopped, 5)
	st.SetStateAtTime(StateStarted, 9)

	ev, ok := st.GetLastState(StateStarted, 6)
	require.True(t, ok)
	assert.Equal(t, 1.0, ev.T)

	ev, ok = st.GetLastState(StateStarted, 20)
	require.True(t, ok)
	assert.Equal(t, 9.0, ev.T)

	_, ok = st.GetLastState(StatePaused, 20)
	assert.False(t, ok)
}

func TestStateTimelineForEachBetween(t *testing.T) {
	t.Parallel()

	st := NewStateTimeline(StateStopped)
	st.SetStateAtTime(StateStarted, 1)
	st.SetStateAtTime(StatePaused, 3)
	st.SetStateAtTime(StateStarted, 5)

	var times []float64
	st.ForEachBetween(1, 5, func(e *StateEvent) {
		times = append(times, e.T)
	})
	assert.Equal(t, []float64{1, 3}, times)
}
