// Package param shadows the automation schedule of a natively driven
// parameter. Native automation primitives cannot be read back, so every
// scheduling call is mirrored onto an internal timeline from which the
// parameter's value at any past, present or future time can be
// reconstructed in closed form.
package param

import (
	"fmt"
	"math"
	"sync"

	"github.com/fogleman/ease"

	"github.com/micahscopes/pulse/timeline"
)

// minOutput is the numerical floor substituted wherever exponential math
// would be undefined at zero.
const minOutput = 1e-7

// curveSamples is how many points an eased ramp is sampled into.
const curveSamples = 32

// Target is the native automation surface a Param drives. Implementations
// must tolerate the same call sequence the Param records; a nil Target
// leaves the Param shadow-only.
type Target interface {
	SetValueAtTime(value, time float64)
	LinearRampToValueAtTime(value, time float64)
	ExponentialRampToValueAtTime(value, time float64)
	SetTargetAtTime(value, startTime, timeConstant float64)
	SetValueCurveAtTime(values []float64, startTime, duration float64)
	CancelScheduledValues(time float64)
}

type segmentKind int

const (
	kindSet segmentKind = iota
	kindLinear
	kindExponential
	kindTarget
	kindCurve
)

type segment struct {
	kind     segmentKind
	value    float64
	time     float64
	constant float64   // kindTarget
	values   []float64 // kindCurve
	duration float64   // kindCurve
}

func (s *segment) Time() float64 { return s.time }

// Param is the shadow timeline for one driven parameter.
type Param struct {
	mu      sync.Mutex
	events  *timeline.Timeline[float64, *segment]
	target  Target
	initial float64
}

// New creates a Param starting at the initial value. target may be nil.
func New(initial float64, target Target) *Param {
	return &Param{
		events:  timeline.New[float64, *segment](1000),
		target:  target,
		initial: initial,
	}
}

// Initial returns the value the parameter holds before any automation.
func (p *Param) Initial() float64 {
	return p.initial
}

func validTime(time float64) error {
	if math.IsNaN(time) || math.IsInf(time, 0) || time < 0 {
		return fmt.Errorf("automation time must be a finite non-negative number, got %v", time)
	}
	return nil
}

func validValue(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("automation value must be finite, got %v", value)
	}
	return nil
}

// SetValueAtTime schedules an instantaneous change to value at time.
func (p *Param) SetValueAtTime(value, time float64) error {
	if err := validTime(time); err != nil {
		return err
	}
	if err := validValue(value); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events.Add(&segment{kind: kindSet, value: value, time: time})
	if p.target != nil {
		p.target.SetValueAtTime(value, time)
	}
	return nil
}

// LinearRampToValueAtTime schedules a linear ramp ending at value at time,
// starting from the previous scheduled point.
func (p *Param) LinearRampToValueAtTime(value, time float64) error {
	if err := validTime(time); err != nil {
		return err
	}
	if err := validValue(value); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events.Add(&segment{kind: kindLinear, value: value, time: time})
	if p.target != nil {
		p.target.LinearRampToValueAtTime(value, time)
	}
	return nil
}

// ExponentialRampToValueAtTime schedules a geometric ramp ending at value at
// time. A zero target value is clamped to a small positive floor because the
// exponential curve is undefined at zero.
func (p *Param) ExponentialRampToValueAtTime(value, time float64) error {
	if err := validTime(time); err != nil {
		return err
	}
	if err := validValue(value); err != nil {
		return err
	}
	if math.Abs(value) < minOutput {
		value = minOutput
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events.Add(&segment{kind: kindExponential, value: value, time: time})
	if p.target != nil {
		p.target.ExponentialRampToValueAtTime(value, time)
	}
	return nil
}

// SetTargetAtTime schedules an exponential approach toward value beginning
// at startTime with the given time constant. A non-positive time constant is
// clamped to a small floor.
func (p *Param) SetTargetAtTime(value, startTime, timeConstant float64) error {
	if err := validTime(startTime); err != nil {
		return err
	}
	if err := validValue(value); err != nil {
		return err
	}
	if timeConstant <= 0 {
		timeConstant = minOutput
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events.Add(&segment{kind: kindTarget, value: value, time: startTime, constant: timeConstant})
	if p.target != nil {
		p.target.SetTargetAtTime(value, startTime, timeConstant)
	}
	return nil
}

// SetValueCurveAtTime schedules a multi-point curve spread over
// [startTime, startTime+duration].
func (p *Param) SetValueCurveAtTime(values []float64, startTime, duration float64) error {
	if err := validTime(startTime); err != nil {
		return err
	}
	if len(values) < 2 {
		return fmt.Errorf("curve needs at least two points, got %d", len(values))
	}
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return fmt.Errorf("curve duration must be a positive finite number, got %v", duration)
	}
	for _, v := range values {
		if err := validValue(v); err != nil {
			return err
		}
	}
	stored := make([]float64, len(values))
	copy(stored, values)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events.Add(&segment{
		kind:     kindCurve,
		value:    stored[len(stored)-1],
		time:     startTime,
		values:   stored,
		duration: duration,
	})
	if p.target != nil {
		p.target.SetValueCurveAtTime(stored, startTime, duration)
	}
	return nil
}

// RampCurveTo schedules an eased ramp from the value at startTime to the
// given value, shaped by the easing function and sampled as a value curve.
func (p *Param) RampCurveTo(value float64, fn ease.Function, startTime, duration float64) error {
	if fn == nil {
		return fmt.Errorf("easing function is required")
	}
	if err := validValue(value); err != nil {
		return err
	}
	from := p.GetValueAtTime(startTime)
	values := make([]float64, curveSamples)
	for i := range values {
		progress := float64(i) / float64(curveSamples-1)
		values[i] = from + (value-from)*fn(progress)
	}
	return p.SetValueCurveAtTime(values, startTime, duration)
}

// CancelScheduledValues discards every automation segment at or after the
// given time.
func (p *Param) CancelScheduledValues(time float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events.Cancel(time)
	if p.target != nil {
		p.target.CancelScheduledValues(time)
	}
}

// SetRampPoint snapshots the interpolated value at time and re-anchors the
// schedule there: a ramp the anchor would cut through is truncated to end at
// the anchor, and everything later is discarded. Changing a ramp's target
// mid-flight therefore never produces a discontinuity. The anchored value is
// returned.
func (p *Param) SetRampPoint(time float64) float64 {
	value := p.GetValueAtTime(time)

	p.mu.Lock()
	before, haveBefore := p.events.Get(time)
	after, haveAfter := p.events.GetAfter(time)
	switch {
	case haveBefore && before.time == time:
		// cut everything after the exact-time segment
		if haveAfter {
			p.events.Cancel(after.time)
			if p.target != nil {
				p.target.CancelScheduledValues(after.time)
			}
		}
	case haveAfter:
		p.events.Cancel(after.time)
		if p.target != nil {
			p.target.CancelScheduledValues(after.time)
		}
		if after.kind == kindLinear || after.kind == kindExponential {
			// re-terminate the interrupted ramp at the anchor
			end := &segment{kind: after.kind, value: value, time: time}
			if end.kind == kindExponential && math.Abs(end.value) < minOutput {
				end.value = minOutput
			}
			p.events.Add(end)
			if p.target != nil {
				if end.kind == kindLinear {
					p.target.LinearRampToValueAtTime(end.value, end.time)
				} else {
					p.target.ExponentialRampToValueAtTime(end.value, end.time)
				}
			}
		}
	}
	p.events.Add(&segment{kind: kindSet, value: value, time: time})
	if p.target != nil {
		p.target.SetValueAtTime(value, time)
	}
	p.mu.Unlock()
	return value
}

// GetValueAtTime reconstructs the parameter's value as of the given time.
func (p *Param) GetValueAtTime(time float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valueAtTime(time)
}

func (p *Param) valueAtTime(time float64) float64 {
	before, haveBefore := p.events.Get(time)
	if !haveBefore {
		return p.initial
	}
	after, haveAfter := p.events.GetAfter(time)

	if before.kind == kindTarget && (!haveAfter || after.kind == kindSet) {
		return exponentialApproach(before.time, p.valueBefore(before), before.value, before.constant, time)
	}
	if before.kind == kindCurve && time < before.time+before.duration {
		return sampleCurve(before, time)
	}
	if !haveAfter {
		return before.value
	}
	switch after.kind {
	case kindLinear:
		return linearInterpolate(before.time, p.rampOrigin(before), after.time, after.value, time)
	case kindExponential:
		return exponentialInterpolate(before.time, p.rampOrigin(before), after.time, after.value, time)
	}
	return before.value
}

// valueBefore is the value the schedule held just before a segment began.
func (p *Param) valueBefore(s *segment) float64 {
	if prev, ok := p.events.GetBefore(s.time); ok {
		return prev.value
	}
	return p.initial
}

// rampOrigin is the value a following ramp departs from. A Target segment
// never settles, so the ramp anchors to the value before it instead.
func (p *Param) rampOrigin(s *segment) float64 {
	if s.kind == kindTarget {
		return p.valueBefore(s)
	}
	return s.value
}

func sampleCurve(s *segment, time float64) float64 {
	progress := toUnitClamp(s.time, s.time+s.duration)(time)
	pos := progress * float64(len(s.values)-1)
	i := int(math.Floor(pos))
	if i >= len(s.values)-1 {
		return s.values[len(s.values)-1]
	}
	frac := pos - float64(i)
	return s.values[i] + frac*(s.values[i+1]-s.values[i])
}

func linearInterpolate(t0, v0, t1, v1, t float64) float64 {
	if t1 == t0 {
		return v1
	}
	return v0 + (v1-v0)*((t-t0)/(t1-t0))
}

func exponentialInterpolate(t0, v0, t1, v1, t float64) float64 {
	if math.Abs(v0) < minOutput {
		v0 = minOutput
	}
	if t1 == t0 {
		return v1
	}
	return v0 * math.Pow(v1/v0, (t-t0)/(t1-t0))
}

func exponentialApproach(t0, v0, v1, timeConstant, t float64) float64 {
	return v1 + (v0-v1)*math.Exp(-(t-t0)/timeConstant)
}
