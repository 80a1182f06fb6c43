package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	t    float64
	name string
}

func (e *testEvent) Time() float64 { return e.t }

func newTestTimeline(memory int, events ...*testEvent) *Timeline[float64, *testEvent] {
	tl := New[float64, *testEvent](memory)
	for _, e := range events {
		tl.Add(e)
	}
	return tl
}

func TestTimelineSortInvariant(t *testing.T) {
	t.Parallel()

	tl := newTestTimeline(0,
		&testEvent{t: 3, name: "c"},
		&testEvent{t: 1, name: "a"},
		&testEvent{t: 2, name: "b"},
		&testEvent{t: 1, name: "a2"},
		&testEvent{t: 0, name: "zero"},
	)

	var times []float64
	tl.ForEach(func(e *testEvent) {
		times = append(times, e.t)
	})
	require.Len(t, times, 5)
	for i := 1; i < len(times); i++ {
		assert.LessOrEqual(t, times[i-1], times[i])
	}
}

func TestTimelineGetLastOfEqualRun(t *testing.T) {
	t.Parallel()

	tl := newTestTimeline(0,
		&testEvent{t: 0, name: "first"},
		&testEvent{t: 1, name: "one-a"},
		&testEvent{t: 1, name: "one-b"},
		&testEvent{t: 1, name: "one-c"},
		&testEvent{t: 2, name: "two"},
	)

	ev, ok := tl.Get(1)
	require.True(t, ok)
	assert.Equal(t, "one-c", ev.name)

	ev, ok = tl.Get(1.5)
	require.True(t, ok)
	assert.Equal(t, "one-c", ev.name)

	ev, ok = tl.Get(0.5)
	require.True(t, ok)
	assert.Equal(t, "first", ev.name)
}

func TestTimelineNeighbors(t *testing.T) {
	t.Parallel()

	tl := newTestTimeline(0,
		&testEvent{t: 0, name: "a"},
		&testEvent{t: 1, name: "b"},
		&testEvent{t: 2, name: "c"},
	)

	ev, ok := tl.GetBefore(1)
	require.True(t, ok)
	assert.Equal(t, "a", ev.name)

	ev, ok = tl.GetAfter(1)
	require.True(t, ok)
	assert.Equal(t, "c", ev.name)

	_, ok = tl.GetBefore(0)
	assert.False(t, ok)

	_, ok = tl.GetAfter(2)
	assert.False(t, ok)
}

func TestTimelineEmptyQueries(t *testing.T) {
	t.Parallel()

	tl := newTestTimeline(0)
	_, ok := tl.Get(0)
	assert.False(t, ok)
	_, ok = tl.GetBefore(0)
	assert.False(t, ok)
	_, ok = tl.GetAfter(0)
	assert.False(t, ok)
}

func TestTimelineCancel(t *testing.T) {
	t.Parallel()

	tl := newTestTimeline(0,
		&testEvent{t: 5, name: "a"},
		&testEvent{t: 10, name: "b"},
		&testEvent{t: 10, name: "b2"},
		&testEvent{t: 15, name: "c"},
	)

	tl.Cancel(10)
	require.Equal(t, 1, tl.Len())
	ev, ok := tl.Get(100)
	require.True(t, ok)
	assert.Equal(t, "a", ev.name)
}

func TestTimelineCancelSingleElement(t *testing.T) {
	t.Parallel()

	tl := newTestTimeline(0, &testEvent{t: 20, name: "late"})
	tl.Cancel(10)
	assert.Equal(t, 0, tl.Len())
}

func TestTimelineCancelBefore(t *testing.T) {
	t.Parallel()

	tl := newTestTimeline(0,
		&testEvent{t: 5, name: "a"},
		&testEvent{t: 10, name: "b"},
		&testEvent{t: 15, name: "c"},
	)

	tl.CancelBefore(10)
	require.Equal(t, 1, tl.Len())
	ev, ok := tl.Get(100)
	require.True(t, ok)
	assert.Equal(t, "c", ev.name)
}

func TestTimelineForEachSlices(t *testing.T) {
	t.Parallel()

	tl := newTestTimeline(0,
		&testEvent{t: 0, name: "a"},
		&testEvent{t: 1, name: "b"},
		&testEvent{t: 1, name: "b2"},
		&testEvent{t: 2, name: "c"},
	)

	collect := func(run func(fn func(e *testEvent))) []string {
		var names []string
		run(func(e *testEvent) {
			names = append(names, e.name)
		})
		return names
	}

	assert.Equal(t, []string{"a"}, collect(func(fn func(*testEvent)) { tl.ForEachBefore(1, fn) }))
	assert.Equal(t, []string{"c"}, collect(func(fn func(*testEvent)) { tl.ForEachAfter(1, fn) }))
	assert.Equal(t, []string{"b", "b2", "c"}, collect(func(fn func(*testEvent)) { tl.ForEachFrom(1, fn) }))
	assert.Equal(t, []string{"b", "b2"}, collect(func(fn func(*testEvent)) { tl.ForEachAtTime(1, fn) }))
	assert.Equal(t, []string{"a", "b", "b2", "c"}, collect(func(fn func(*testEvent)) { tl.ForEach(fn) }))
}

func TestTimelineRemoveDuringIterationIsDeferred(t *testing.T) {
	t.Parallel()

	a := &testEvent{t: 0, name: "a"}
	b := &testEvent{t: 1, name: "b"}
	c := &testEvent{t: 2, name: "c"}
	tl := newTestTimeline(0, a, b, c)

	var visited []string
	tl.ForEach(func(e *testEvent) {
		visited = append(visited, e.name)
		if e == a {
			// removing mid-scan must not skip b or c
			tl.Remove(b)
			tl.Remove(a)
		}
	})

	assert.Equal(t, []string{"a", "b", "c"}, visited)
	require.Equal(t, 1, tl.Len())
	ev, ok := tl.Get(10)
	require.True(t, ok)
	assert.Equal(t, "c", ev.name)
}

func TestTimelineMemoryBound(t *testing.T) {
	t.Parallel()

	tl := New[float64, *testEvent](3)
	for i := 0; i < 6; i++ {
		tl.Add(&testEvent{t: float64(i)})
	}

	require.Equal(t, 3, tl.Len())
	// the oldest events were evicted
	_, ok := tl.Get(2)
	assert.False(t, ok)
	ev, ok := tl.Get(5)
	require.True(t, ok)
	assert.Equal(t, 5.0, ev.t)
}
