// Package signal provides a concrete automatable value: the stand-in for a
// natively driven parameter wherever this engine is run without a real
// audio graph. A Signal implements param.Target, so it can sit behind a
// param.Param and record everything pushed to it, and it exposes its own
// shadow so consumers can ask "anything with a GetValueAtTime" questions.
package signal

import (
	"sync"

	"github.com/micahscopes/pulse/param"
)

// Signal is a named, thread-safe value holder with an automation shadow.
type Signal struct {
	mu     sync.Mutex
	name   string
	value  float64
	dirty  bool
	shadow *param.Param
}

// New creates a Signal holding the initial value.
func New(name string, initial float64) *Signal {
	s := &Signal{name: name, value: initial}
	s.shadow = param.New(initial, nil)
	return s
}

func (s *Signal) Name() string {
	return s.name
}

// Value returns the instantaneous value last pushed to the signal.
func (s *Signal) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// SetValue overwrites the instantaneous value without recording automation.
func (s *Signal) SetValue(v float64) {
	s.mu.Lock()
	s.value = v
	s.dirty = true
	s.mu.Unlock()
}

// NeedsUpdate reports whether the value changed since the last Updated call.
func (s *Signal) NeedsUpdate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Updated clears the dirty flag once a consumer has observed the value.
func (s *Signal) Updated() {
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}

// GetValueAtTime reconstructs the scheduled value as of the given time.
func (s *Signal) GetValueAtTime(time float64) float64 {
	return s.shadow.GetValueAtTime(time)
}

// Shadow exposes the automation record for callers that need the full
// param surface.
func (s *Signal) Shadow() *param.Param {
	return s.shadow
}

// The methods below implement param.Target: each records the instruction on
// the shadow and keeps the instantaneous value current.

func (s *Signal) SetValueAtTime(value, time float64) {
	if err := s.shadow.SetValueAtTime(value, time); err != nil {
		return
	}
	s.SetValue(value)
}

func (s *Signal) LinearRampToValueAtTime(value, time float64) {
	if err := s.shadow.LinearRampToValueAtTime(value, time); err != nil {
		return
	}
	s.SetValue(value)
}

func (s *Signal) ExponentialRampToValueAtTime(value, time float64) {
	if err := s.shadow.ExponentialRampToValueAtTime(value, time); err != nil {
		return
	}
	s.SetValue(value)
}

func (s *Signal) SetTargetAtTime(value, startTime, timeConstant float64) {
	if err := s.shadow.SetTargetAtTime(value, startTime, timeConstant); err != nil {
		return
	}
	s.SetValue(value)
}

func (s *Signal) SetValueCurveAtTime(values []float64, startTime, duration float64) {
	if err := s.shadow.SetValueCurveAtTime(values, startTime, duration); err != nil {
		return
	}
	s.SetValue(values[len(values)-1])
}

func (s *Signal) CancelScheduledValues(time float64) {
	s.shadow.CancelScheduledValues(time)
}
