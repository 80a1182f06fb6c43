package transport

import (
	"fmt"

	"github.com/micahscopes/pulse/timeline"
)

// Position renders the playhead as "bars:beats:sixteenths". The sixteenths
// field is fractional when the playhead sits between sixteenth notes.
func (t *Transport) Position() string {
	ticks := t.clock.Ticks()
	t.mu.Lock()
	ppq := int64(t.ppq)
	beatsPerBar := int64(t.timeSig)
	t.mu.Unlock()
	beats := ticks / ppq
	bars := beats / beatsPerBar
	beat := beats % beatsPerBar
	sixteenths := float64(ticks%ppq) / float64(ppq) * 4
	return fmt.Sprintf("%d:%d:%g", bars, beat, sixteenths)
}

// Progress is how far through the loop region the playhead is, from 0 at
// loop start to just under 1 at the wrap. Zero when looping is off or the
// transport is not started.
func (t *Transport) Progress() float64 {
	if t.State() != timeline.StateStarted {
		return 0
	}
	ticks := t.clock.Ticks()
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.loop || t.loopEnd <= t.loopStart {
		return 0
	}
	p := float64(ticks-t.loopStart) / float64(t.loopEnd-t.loopStart)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// NextSubdivision is the time of the next tick boundary aligned to the
// given subdivision, in seconds. A boundary that falls exactly on the
// playhead counts as already passed. Zero when the transport is not
// started.
func (t *Transport) NextSubdivision(subdivision int64) float64 {
	if subdivision < 1 {
		return 0
	}
	if t.State() != timeline.StateStarted {
		return 0
	}
	ticks := t.clock.Ticks()
	remaining := subdivision - ticks%subdivision
	return t.clock.Now() + t.TicksToSeconds(float64(remaining))
}
