package transport

import (
	"fmt"
	"math"

	"github.com/micahscopes/pulse/signal"
)

// BPM is the tempo as of the current scheduling time.
func (t *Transport) BPM() float64 {
	t.mu.Lock()
	ppq := t.ppq
	t.mu.Unlock()
	freq := t.clock.Frequency().GetValueAtTime(t.clock.Now())
	return freq * 60 / float64(ppq)
}

// SetBPM changes the tempo immediately and pushes the scaled value to every
// synced signal.
func (t *Transport) SetBPM(bpm float64) error {
	if err := validBPM(bpm); err != nil {
		return err
	}
	now := t.clock.Now()
	t.mu.Lock()
	freq := bpm / 60 * float64(t.ppq)
	synced := append([]*syncedSignal(nil), t.synced...)
	t.mu.Unlock()
	if err := t.clock.Frequency().SetValueAtTime(freq, now); err != nil {
		return err
	}
	for _, s := range synced {
		s.sig.SetValueAtTime(bpm*s.ratio, now)
	}
	t.log.WithField("bpm", bpm).Debug("Tempo set")
	return nil
}

// RampBPMTo glides the tempo linearly over rampTime seconds. Already
// scheduled ticks keep their times; ticks past the ramp start spread out or
// bunch up as the rate changes. Synced signals ramp in lockstep.
func (t *Transport) RampBPMTo(bpm float64, rampTime float64) error {
	if err := validBPM(bpm); err != nil {
		return err
	}
	if rampTime <= 0 || math.IsNaN(rampTime) || math.IsInf(rampTime, 0) {
		return fmt.Errorf("ramp time must be a positive finite number, got %v", rampTime)
	}
	now := t.clock.Now()
	t.mu.Lock()
	freq := bpm / 60 * float64(t.ppq)
	synced := append([]*syncedSignal(nil), t.synced...)
	t.mu.Unlock()
	f := t.clock.Frequency()
	f.SetRampPoint(now)
	if err := f.LinearRampToValueAtTime(freq, now+rampTime); err != nil {
		return err
	}
	for _, s := range synced {
		s.sig.LinearRampToValueAtTime(bpm*s.ratio, now+rampTime)
	}
	t.log.WithField("bpm", bpm).WithField("ramp", rampTime).Debug("Tempo ramp scheduled")
	return nil
}

func validBPM(bpm float64) error {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return fmt.Errorf("bpm must be a positive finite number, got %v", bpm)
	}
	return nil
}

func (t *Transport) PPQ() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ppq
}

func (t *Transport) TimeSignature() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeSig
}

// SetTimeSignature sets the number of beats per bar. Only Position and the
// swing downbeat exemption care; stored ticks are unaffected.
func (t *Transport) SetTimeSignature(beats int) error {
	if beats < 1 {
		return fmt.Errorf("time signature must be at least 1 beat per bar, got %d", beats)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeSig = beats
	return nil
}

func (t *Transport) Swing() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.swing
}

// SetSwing sets the swing amount between 0 (straight) and 1 (full triplet
// feel). Swing shifts the reported event times only; stored ticks are never
// perturbed, so disabling swing snaps everything back to the grid.
func (t *Transport) SetSwing(amount float64) error {
	if amount < 0 || amount > 1 || math.IsNaN(amount) {
		return fmt.Errorf("swing must be between 0 and 1, got %v", amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.swing = amount
	return nil
}

func (t *Transport) SwingSubdivision() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.swingSub
}

func (t *Transport) SetSwingSubdivision(ticks int64) error {
	if ticks < 1 {
		return fmt.Errorf("swing subdivision must be at least 1 tick, got %d", ticks)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.swingSub = ticks
	return nil
}

func (t *Transport) Loop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loop
}

func (t *Transport) SetLoop(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loop = enabled
}

func (t *Transport) LoopStart() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loopStart
}

func (t *Transport) LoopEnd() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loopEnd
}

// SetLoopPoints sets the loop region in ticks. The end is exclusive: the
// playhead wraps to start the moment it reaches end.
func (t *Transport) SetLoopPoints(start, end int64) error {
	if start < 0 {
		return fmt.Errorf("loop start must be non-negative, got %d", start)
	}
	if end <= start {
		return fmt.Errorf("loop end (%d) must be after loop start (%d)", end, start)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loopStart = start
	t.loopEnd = end
	return nil
}

// TicksToSeconds converts a tick span to seconds at the current tempo.
func (t *Transport) TicksToSeconds(ticks float64) float64 {
	return ticks / t.tickRate(t.clock.Now())
}

// SecondsToTicks converts a span of seconds to ticks at the current tempo.
func (t *Transport) SecondsToTicks(seconds float64) float64 {
	return seconds * t.tickRate(t.clock.Now())
}

func (t *Transport) tickRate(at float64) float64 {
	rate := t.clock.Frequency().GetValueAtTime(at)
	if rate <= 0 {
		rate = 1e-7
	}
	return rate
}

// ticksToSecondsLocked converts a tick span at the tempo in effect at the
// given time. Callers hold t.mu; the frequency param has its own lock.
func (t *Transport) ticksToSecondsLocked(ticks float64, at float64) float64 {
	rate := t.clock.Frequency().GetValueAtTime(at)
	if rate <= 0 {
		rate = 1e-7
	}
	return ticks / rate
}

// SyncSignal slaves a signal to the tempo so tempo changes and ramps scale
// it proportionally. Without an explicit ratio the current signal value
// over the current tempo is used, so the signal keeps its value at sync
// time. UnsyncSignal undoes the coupling.
func (t *Transport) SyncSignal(sig *signal.Signal, ratio ...float64) error {
	if sig == nil {
		return fmt.Errorf("signal must not be nil")
	}
	bpm := t.BPM()
	r := sig.Value() / bpm
	if len(ratio) > 0 {
		r = ratio[0]
		if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("sync ratio must be a positive finite number, got %v", r)
		}
	}
	prev := sig.Value()
	t.mu.Lock()
	t.synced = append(t.synced, &syncedSignal{sig: sig, ratio: r, prev: prev})
	t.mu.Unlock()
	sig.SetValueAtTime(bpm*r, t.clock.Now())
	return nil
}

// UnsyncSignal detaches a signal from the tempo and restores the value it
// had when it was synced. Unknown signals are ignored.
func (t *Transport) UnsyncSignal(sig *signal.Signal) {
	t.mu.Lock()
	var found *syncedSignal
	for i, s := range t.synced {
		if s.sig == sig {
			found = s
			t.synced = append(t.synced[:i], t.synced[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
	if found == nil {
		return
	}
	sig.CancelScheduledValues(0)
	sig.SetValue(found.prev)
}
