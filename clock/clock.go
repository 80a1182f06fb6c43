// Package clock drives a monotonically increasing tick counter with
// sample-accurate timing on top of a jittery periodic heartbeat. Every
// heartbeat the clock computes a forward-looking window sized by its
// lookahead, its update interval and twice the measured heartbeat lag, and
// fires the tick callback for every tick boundary that falls inside it, so
// ticks are always handed downstream before they are due to sound.
package clock

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	kclock "k8s.io/utils/clock"

	"github.com/micahscopes/pulse/logger"
	"github.com/micahscopes/pulse/param"
	"github.com/micahscopes/pulse/timeline"
)

// minRate is the floor substituted for a non-positive tick rate so the tick
// spacing division stays defined.
const minRate = 1e-7

// Config holds the clock's timing parameters, all in seconds except
// Frequency which is in ticks per second.
type Config struct {
	Frequency      float64 `yaml:"frequency"`
	LookAhead      float64 `yaml:"look_ahead"`
	UpdateInterval float64 `yaml:"update_interval"`
}

func DefaultConfig() Config {
	return Config{
		Frequency:      1,
		LookAhead:      0.1,
		UpdateInterval: 0.05,
	}
}

func (c Config) Validate() error {
	if c.Frequency <= 0 || math.IsNaN(c.Frequency) || math.IsInf(c.Frequency, 0) {
		return fmt.Errorf("clock frequency must be a positive finite number, got %v", c.Frequency)
	}
	if c.LookAhead < 0 || math.IsNaN(c.LookAhead) {
		return fmt.Errorf("clock look ahead must be non-negative, got %v", c.LookAhead)
	}
	if c.UpdateInterval <= 0 || math.IsNaN(c.UpdateInterval) {
		return fmt.Errorf("clock update interval must be positive, got %v", c.UpdateInterval)
	}
	return nil
}

// Callback receives the precise, non-jittered time of each tick and its
// tick number.
type Callback func(time float64, ticks int64)

// Clock schedules its own state transitions on an internal state timeline,
// so "what was the state at time T" stays answerable retroactively.
type Clock struct {
	// Transition notifications, fired when a scheduled transition is
	// processed at its musical time. Assign before the first heartbeat.
	OnStarted func(time float64, offset int64)
	OnStopped func(time float64)
	OnPaused  func(time float64)

	log       *logrus.Entry
	cfg       Config
	wall      kclock.WithTicker
	epoch     time.Time
	callback  Callback
	frequency *param.Param

	ticks atomic.Int64

	mu        sync.Mutex
	state     *timeline.StateTimeline
	nextTick  float64
	windowEnd float64
	lastBeat  float64
}

// New creates a Clock. A nil wall clock falls back to the real one.
func New(cfg Config, wall kclock.WithTicker, cb Callback) (*Clock, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if wall == nil {
		wall = kclock.RealClock{}
	}
	return &Clock{
		log:       logger.GetProjectLogger().WithField("component", "clock"),
		cfg:       cfg,
		wall:      wall,
		epoch:     wall.Now(),
		callback:  cb,
		frequency: param.New(cfg.Frequency, nil),
		state:     timeline.NewStateTimeline(timeline.StateStopped),
		lastBeat:  -1,
	}, nil
}

// now is the raw wall time in seconds since the clock was created.
func (c *Clock) now() float64 {
	return c.wall.Since(c.epoch).Seconds()
}

// Now returns the current scheduling time: raw wall time pushed forward by
// the lookahead, so anything scheduled at Now or later is guaranteed to
// land inside a window that has not been processed yet.
func (c *Clock) Now() float64 {
	return c.now() + c.cfg.LookAhead
}

// Frequency is the clock's tick rate in ticks per second, an automatable
// parameter resampled at every tick boundary, which is what makes rate
// ramps take effect mid-flight.
func (c *Clock) Frequency() *param.Param {
	return c.frequency
}

func (c *Clock) Ticks() int64 {
	return c.ticks.Load()
}

// SetTicks overwrites the tick counter. Safe to call from within the tick
// callback; the counter resumes counting from the new value.
func (c *Clock) SetTicks(ticks int64) {
	c.ticks.Store(ticks)
}

// Start schedules a started transition at the given time. The optional
// offset is the tick number the counter restarts from; without one the
// counter resumes from its current value. Starting an already started clock
// is a no-op.
func (c *Clock) Start(time float64, offset ...int64) error {
	if err := validTime(time); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	time = c.clampToWindow(time)
	if c.state.GetValueAtTime(time) == timeline.StateStarted {
		c.log.Debugf("clock already started at %0.3f", time)
		return nil
	}
	off := c.ticks.Load()
	if len(offset) > 0 {
		off = offset[0]
	}
	ev := c.state.SetStateAtTime(timeline.StateStarted, time)
	ev.Offset = off
	c.log.Debugf("clock start scheduled at %0.3f (offset %d)", time, off)
	return nil
}

// Stop cancels every scheduled transition at or after the given time, then
// records a stopped transition there. Processing the transition resets the
// tick counter to zero.
func (c *Clock) Stop(time float64) error {
	if err := validTime(time); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	time = c.clampToWindow(time)
	c.state.Cancel(time)
	c.state.SetStateAtTime(timeline.StateStopped, time)
	c.log.Debugf("clock stop scheduled at %0.3f", time)
	return nil
}

// Pause records a paused transition at the given time. Pausing leaves the
// tick counter untouched and is only valid while started.
func (c *Clock) Pause(time float64) error {
	if err := validTime(time); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	time = c.clampToWindow(time)
	if c.state.GetValueAtTime(time) != timeline.StateStarted {
		return fmt.Errorf("cannot pause a clock that is not started")
	}
	c.state.SetStateAtTime(timeline.StatePaused, time)
	return nil
}

// GetStateAtTime answers what the clock's state was, is, or will be at the
// given time.
func (c *Clock) GetStateAtTime(time float64) timeline.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.GetValueAtTime(time)
}

// State is the state as of the current scheduling time.
func (c *Clock) State() timeline.State {
	return c.GetStateAtTime(c.Now())
}

// Seconds is how long the clock has been running since its most recent
// started transition, or zero when it is not running.
func (c *Clock) Seconds() float64 {
	now := c.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.GetValueAtTime(now) != timeline.StateStarted {
		return 0
	}
	if ev, ok := c.state.GetLastState(timeline.StateStarted, now); ok {
		return now - ev.T
	}
	return 0
}

// GetTicksAtTime reconstructs the tick counter as of the given time from
// the state timeline, sampling the rate at the relevant start transition.
func (c *Clock) GetTicksAtTime(time float64) int64 {
	c.mu.Lock()
	if c.state.GetValueAtTime(time) != timeline.StateStarted {
		c.mu.Unlock()
		return 0
	}
	ev, ok := c.state.GetLastState(timeline.StateStarted, time)
	c.mu.Unlock()
	if !ok {
		return 0
	}
	rate := c.frequency.GetValueAtTime(ev.T)
	if rate < minRate {
		rate = minRate
	}
	return ev.Offset + int64((time-ev.T)*rate)
}

// clampToWindow pulls a transition time forward into the first window that
// has not been processed yet, so nothing is scheduled into the past.
// Callers hold c.mu.
func (c *Clock) clampToWindow(time float64) float64 {
	if time < c.windowEnd {
		return c.windowEnd
	}
	return time
}

func validTime(time float64) error {
	if math.IsNaN(time) || math.IsInf(time, 0) || time < 0 {
		return fmt.Errorf("clock time must be a finite non-negative number, got %v", time)
	}
	return nil
}

// Heartbeat advances the clock by one update of its external heartbeat.
// It measures the gap between the expected and the actual heartbeat
// arrival, widens the scheduling window by twice that lag, and fires every
// tick and transition that falls inside the window.
func (c *Clock) Heartbeat() {
	c.mu.Lock()
	now := c.now()
	var lag float64
	if c.lastBeat >= 0 {
		expected := c.lastBeat + c.cfg.UpdateInterval
		if now > expected {
			lag = now - expected
		}
	}
	c.lastBeat = now
	horizon := now + c.cfg.LookAhead + c.cfg.UpdateInterval + 2*lag
	if horizon <= c.windowEnd {
		c.mu.Unlock()
		return
	}
	windowStart := c.windowEnd
	c.windowEnd = horizon
	var trans []*timeline.StateEvent
	c.state.ForEachBetween(windowStart, horizon, func(e *timeline.StateEvent) {
		trans = append(trans, e)
	})
	c.mu.Unlock()

	ti := 0
	for {
		// transitions due at or before the next tick boundary apply first
		for ti < len(trans) && trans[ti].T <= c.peekNextTick() {
			c.applyTransition(trans[ti])
			ti++
		}
		c.mu.Lock()
		tickTime := c.nextTick
		if tickTime >= horizon {
			c.mu.Unlock()
			break
		}
		rate := c.frequency.GetValueAtTime(tickTime)
		if rate < minRate {
			rate = minRate
		}
		c.nextTick = tickTime + 1/rate
		started := c.state.GetValueAtTime(tickTime) == timeline.StateStarted
		c.mu.Unlock()
		if started {
			n := c.ticks.Load()
			if c.callback != nil {
				c.callback(tickTime, n)
			}
			// the callback may have rewound the counter (loop jumps)
			c.ticks.Store(c.ticks.Load() + 1)
		}
	}
	for ti < len(trans) {
		c.applyTransition(trans[ti])
		ti++
	}

	c.mu.Lock()
	if c.state.GetValueAtTime(horizon) != timeline.StateStarted && c.nextTick < horizon {
		// nothing to fire while idle; keep the boundary from falling behind
		c.nextTick = horizon
	}
	c.mu.Unlock()
}

func (c *Clock) peekNextTick() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextTick
}

func (c *Clock) applyTransition(e *timeline.StateEvent) {
	switch e.State {
	case timeline.StateStarted:
		c.ticks.Store(e.Offset)
		c.mu.Lock()
		// the tick grid re-anchors at the start point
		c.nextTick = e.T
		c.mu.Unlock()
		c.log.WithFields(logrus.Fields{"time": e.T, "offset": e.Offset}).Debug("clock started")
		if c.OnStarted != nil {
			c.OnStarted(e.T, e.Offset)
		}
	case timeline.StateStopped:
		c.ticks.Store(0)
		c.log.WithFields(logrus.Fields{"time": e.T}).Debug("clock stopped")
		if c.OnStopped != nil {
			c.OnStopped(e.T)
		}
	case timeline.StatePaused:
		c.log.WithFields(logrus.Fields{"time": e.T}).Debug("clock paused")
		if c.OnPaused != nil {
			c.OnPaused(e.T)
		}
	}
}

// Run drives the clock from a real heartbeat until the context is
// canceled. Most callers run it on its own goroutine.
func (c *Clock) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.UpdateInterval * float64(time.Second))
	NewTicker(c.wall, interval).Run(ctx, c.Heartbeat)
}
