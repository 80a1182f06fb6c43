package timeline

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// Entry is anything that can live on a Timeline: an event with a timestamp
// in whatever unit the owning component uses (seconds, ticks).
type Entry[T constraints.Ordered] interface {
	comparable
	Time() T
}

// Timeline is an ordered event store keyed by time. Events are kept sorted
// ascending by their timestamp; events with equal timestamps keep insertion
// order, and lookups that land on a run of equal times resolve to the
// last-inserted event, so the most recent write wins.
//
// A Timeline is not safe for concurrent use; it is owned by exactly one
// component which serializes access.
type Timeline[T constraints.Ordered, E Entry[T]] struct {
	events    []E
	memory    int
	iterating int
	pending   []E
}

// New creates an empty Timeline. If memory is greater than zero the store
// is bounded: once it holds more than memory events the oldest ones are
// dropped silently.
func New[T constraints.Ordered, E Entry[T]](memory int) *Timeline[T, E] {
	return &Timeline[T, E]{memory: memory}
}

func (t *Timeline[T, E]) Len() int {
	return len(t.events)
}

// Add inserts the event preserving sort order. The caller is responsible
// for ensuring the event's time is well-formed; the transport and param
// layers validate before anything reaches the store.
func (t *Timeline[T, E]) Add(event E) {
	i := sort.Search(len(t.events), func(i int) bool {
		return t.events[i].Time() > event.Time()
	})
	t.events = append(t.events, event)
	copy(t.events[i+1:], t.events[i:])
	t.events[i] = event

	if t.memory > 0 && len(t.events) > t.memory {
		drop := len(t.events) - t.memory
		t.events = append(t.events[:0], t.events[drop:]...)
	}
}

// Remove takes the event out of the store. If an iteration is in flight the
// removal is deferred until the outermost iteration completes, so callbacks
// can remove events without perturbing the scan.
func (t *Timeline[T, E]) Remove(event E) {
	if t.iterating > 0 {
		t.pending = append(t.pending, event)
		return
	}
	for i, e := range t.events {
		if e == event {
			t.events = append(t.events[:i], t.events[i+1:]...)
			return
		}
	}
}

// search returns the index of the last event whose time is at or before the
// query, or -1 if every event is later. Within a run of equal times this is
// the last-inserted event.
func (t *Timeline[T, E]) search(time T) int {
	return sort.Search(len(t.events), func(i int) bool {
		return t.events[i].Time() > time
	}) - 1
}

// Get returns the event nearest to and at or before the given time.
func (t *Timeline[T, E]) Get(time T) (E, bool) {
	var zero E
	i := t.search(time)
	if i < 0 {
		return zero, false
	}
	return t.events[i], true
}

// GetBefore returns the nearest event strictly before the given time.
func (t *Timeline[T, E]) GetBefore(time T) (E, bool) {
	var zero E
	i := sort.Search(len(t.events), func(i int) bool {
		return t.events[i].Time() >= time
	}) - 1
	if i < 0 {
		return zero, false
	}
	return t.events[i], true
}

// GetAfter returns the nearest event strictly after the given time.
func (t *Timeline[T, E]) GetAfter(time T) (E, bool) {
	var zero E
	i := sort.Search(len(t.events), func(i int) bool {
		return t.events[i].Time() > time
	})
	if i >= len(t.events) {
		return zero, false
	}
	return t.events[i], true
}

// Cancel discards every event whose time is at or after the given time.
// A whole run of equal-time events at the boundary is removed together;
// anything earlier is untouched.
func (t *Timeline[T, E]) Cancel(after T) {
	i := sort.Search(len(t.events), func(i int) bool {
		return t.events[i].Time() >= after
	})
	t.events = t.events[:i]
}

// CancelBefore discards every event whose time is at or before the given time.
func (t *Timeline[T, E]) CancelBefore(time T) {
	i := sort.Search(len(t.events), func(i int) bool {
		return t.events[i].Time() > time
	})
	t.events = append(t.events[:0], t.events[i:]...)
}

// iterate walks events[lower..upper] applying any removals requested by the
// callbacks once the outermost iteration has finished.
func (t *Timeline[T, E]) iterate(lower, upper int, fn func(E)) {
	t.iterating++
	for i := lower; i <= upper && i < len(t.events); i++ {
		fn(t.events[i])
	}
	t.iterating--
	if t.iterating == 0 && len(t.pending) > 0 {
		pending := t.pending
		t.pending = nil
		for _, e := range pending {
			t.Remove(e)
		}
	}
}

// ForEach visits every event in time order.
func (t *Timeline[T, E]) ForEach(fn func(E)) {
	t.iterate(0, len(t.events)-1, fn)
}

// ForEachBefore visits every event strictly before the given time.
func (t *Timeline[T, E]) ForEachBefore(time T, fn func(E)) {
	i := sort.Search(len(t.events), func(i int) bool {
		return t.events[i].Time() >= time
	})
	t.iterate(0, i-1, fn)
}

// ForEachAfter visits every event strictly after the given time.
func (t *Timeline[T, E]) ForEachAfter(time T, fn func(E)) {
	i := sort.Search(len(t.events), func(i int) bool {
		return t.events[i].Time() > time
	})
	t.iterate(i, len(t.events)-1, fn)
}

// ForEachFrom visits every event at or after the given time.
func (t *Timeline[T, E]) ForEachFrom(time T, fn func(E)) {
	i := sort.Search(len(t.events), func(i int) bool {
		return t.events[i].Time() >= time
	})
	t.iterate(i, len(t.events)-1, fn)
}

// ForEachAtTime visits every event at exactly the given time, in insertion
// order.
func (t *Timeline[T, E]) ForEachAtTime(time T, fn func(E)) {
	lo := sort.Search(len(t.events), func(i int) bool {
		return t.events[i].Time() >= time
	})
	hi := sort.Search(len(t.events), func(i int) bool {
		return t.events[i].Time() > time
	}) - 1
	if lo <= hi {
		t.iterate(lo, hi, fn)
	}
}
