package transport

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	kclock "k8s.io/utils/clock"

	"github.com/micahscopes/pulse/clock"
	"github.com/micahscopes/pulse/logger"
	"github.com/micahscopes/pulse/signal"
	"github.com/micahscopes/pulse/timeline"
)

// Transport sequences musical events against a tick clock. Events are
// scheduled in ticks so tempo changes move them in wall time without
// rescheduling; one-off events live on plain timelines and repeats live in
// an interval index keyed by their active span.
type Transport struct {
	// Lifecycle notifications, fired when the corresponding transition is
	// processed at its musical time. Assign before the first heartbeat.
	OnStart     Callback
	OnStop      Callback
	OnPause     Callback
	OnLoopStart Callback
	OnLoopEnd   Callback

	log   *logrus.Entry
	clock *clock.Clock

	mu        sync.Mutex
	ppq       int
	timeSig   int
	swing     float64
	swingSub  int64
	loop      bool
	loopStart int64
	loopEnd   int64
	nextID    int64
	oneShot   *timeline.Timeline[int64, *tickEvent]
	once      *timeline.Timeline[int64, *tickEvent]
	repeats   *timeline.IntervalTree[float64, *repeatEvent]
	scheduled map[int64]any
	synced    []*syncedSignal
	evaluator TimeEvaluator
}

type syncedSignal struct {
	sig   *signal.Signal
	ratio float64
	prev  float64
}

// New creates a Transport driven by the given heartbeat settings. The clock
// config's Frequency is derived from BPM and PPQ; only its LookAhead and
// UpdateInterval are taken as given. A nil wall clock falls back to the
// real one.
func New(cfg Config, clockCfg clock.Config, wall kclock.WithTicker) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Transport{
		log:       logger.GetProjectLogger().WithField("component", "transport"),
		ppq:       cfg.PPQ,
		timeSig:   cfg.TimeSignature,
		swing:     cfg.Swing,
		swingSub:  cfg.SwingSubdivision,
		loop:      cfg.Loop,
		loopStart: cfg.LoopStart,
		loopEnd:   cfg.LoopEnd,
		oneShot:   timeline.New[int64, *tickEvent](0),
		once:      timeline.New[int64, *tickEvent](0),
		repeats:   timeline.NewIntervalTree[float64, *repeatEvent](),
		scheduled: make(map[int64]any),
	}
	clockCfg.Frequency = cfg.BPM / 60 * float64(cfg.PPQ)
	c, err := clock.New(clockCfg, wall, t.processTick)
	if err != nil {
		return nil, err
	}
	c.OnStarted = func(time float64, offset int64) {
		t.log.WithField("offset", offset).Debug("Transport started")
		if t.OnStart != nil {
			t.OnStart(time)
		}
	}
	c.OnStopped = func(time float64) {
		t.log.Debug("Transport stopped")
		if t.OnStop != nil {
			t.OnStop(time)
		}
	}
	c.OnPaused = func(time float64) {
		t.log.Debug("Transport paused")
		if t.OnPause != nil {
			t.OnPause(time)
		}
	}
	t.clock = c
	return t, nil
}

// Now is the current transport time in seconds, shifted by the clock's
// look ahead so that scheduling against it always lands in a window the
// heartbeat has not processed yet.
func (t *Transport) Now() float64 {
	return t.clock.Now()
}

// Seconds is the time elapsed since the transport last started, carrying
// through pauses the way a tape counter would.
func (t *Transport) Seconds() float64 {
	return t.clock.Seconds()
}

func (t *Transport) State() timeline.State {
	return t.clock.State()
}

func (t *Transport) Ticks() int64 {
	return t.clock.Ticks()
}

// SetTicks jumps the playhead. While started this is a stop/start pair at
// the same instant so the position acts like a fresh start offset and the
// state timeline records the seam.
func (t *Transport) SetTicks(ticks int64) {
	now := t.clock.Now()
	if t.clock.GetStateAtTime(now) == timeline.StateStarted {
		t.clock.Stop(now)
		t.clock.Start(now, ticks)
		return
	}
	t.clock.SetTicks(ticks)
}

// Start begins playback at the next unprocessed moment.
func (t *Transport) Start() error {
	return t.clock.Start(t.clock.Now())
}

// StartAt begins playback at the given time, optionally from a tick offset.
func (t *Transport) StartAt(time float64, offset ...int64) error {
	return t.clock.Start(time, offset...)
}

func (t *Transport) Stop() error {
	return t.clock.Stop(t.clock.Now())
}

func (t *Transport) StopAt(time float64) error {
	return t.clock.Stop(time)
}

func (t *Transport) Pause() error {
	return t.clock.Pause(t.clock.Now())
}

func (t *Transport) PauseAt(time float64) error {
	return t.clock.Pause(time)
}

// Clock exposes the underlying tick clock, mostly for tests and for wiring
// external drivers.
func (t *Transport) Clock() *clock.Clock {
	return t.clock
}

// Heartbeat processes one scheduling window. Production callers use Run;
// tests drive this directly against a fake wall clock.
func (t *Transport) Heartbeat() {
	t.clock.Heartbeat()
}

// Run drives heartbeats until the context is cancelled.
func (t *Transport) Run(ctx context.Context) {
	t.clock.Run(ctx)
}

// Schedule registers a callback on a single tick. The returned id can be
// handed to Clear. Events persist across loop iterations, so a scheduled
// tick inside the loop region fires every pass.
func (t *Transport) Schedule(cb Callback, tick int64) (int64, error) {
	ev, err := t.newTickEvent(cb, tick)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.oneShot.Add(ev)
	t.scheduled[ev.id] = ev
	return ev.id, nil
}

// ScheduleOnce registers a callback that fires a single time and is then
// forgotten. If the tick is already in the past it fires on the next
// processed tick.
func (t *Transport) ScheduleOnce(cb Callback, tick int64) (int64, error) {
	ev, err := t.newTickEvent(cb, tick)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.once.Add(ev)
	t.scheduled[ev.id] = ev
	return ev.id, nil
}

// ScheduleRepeat registers a callback every interval ticks starting at
// startTick. An optional duration bounds the repeat span in ticks; the
// boundary is inclusive, so interval 4 over duration 12 fires at
// startTick+{0,4,8,12}. Without a duration the repeat runs forever.
func (t *Transport) ScheduleRepeat(cb Callback, interval, startTick int64, durationTicks ...float64) (int64, error) {
	if cb == nil {
		return 0, fmt.Errorf("callback must not be nil")
	}
	if interval < 1 {
		return 0, fmt.Errorf("repeat interval must be at least 1 tick, got %d", interval)
	}
	if startTick < 0 {
		return 0, fmt.Errorf("start tick must be non-negative, got %d", startTick)
	}
	duration := math.Inf(1)
	if len(durationTicks) > 0 {
		duration = durationTicks[0]
		if duration <= 0 || math.IsNaN(duration) {
			return 0, fmt.Errorf("repeat duration must be positive, got %v", duration)
		}
	}
	ev := &repeatEvent{tick: startTick, interval: interval, duration: duration, callback: cb}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.repeats.Add(ev); err != nil {
		return 0, err
	}
	ev.id = t.nextID
	t.nextID++
	t.scheduled[ev.id] = ev
	return ev.id, nil
}

// ScheduleAt registers a one-shot callback at a musical time expression,
// resolved through the configured time evaluator.
func (t *Transport) ScheduleAt(cb Callback, expr string) (int64, error) {
	t.mu.Lock()
	eval := t.evaluator
	t.mu.Unlock()
	if eval == nil {
		return 0, fmt.Errorf("no time evaluator configured")
	}
	ticks, err := eval.ToTicks(expr)
	if err != nil {
		return 0, fmt.Errorf("evaluating %q: %w", expr, err)
	}
	return t.Schedule(cb, int64(math.Round(ticks)))
}

// Clear removes a scheduled event by id. Unknown ids are ignored.
func (t *Transport) Clear(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch ev := t.scheduled[id].(type) {
	case *tickEvent:
		t.oneShot.Remove(ev)
		t.once.Remove(ev)
	case *repeatEvent:
		t.repeats.Remove(ev)
	}
	delete(t.scheduled, id)
}

// Cancel removes every event starting at or after the given tick. Repeats
// that started earlier keep running even when their span reaches past the
// cancel point.
func (t *Transport) Cancel(after int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.oneShot.Cancel(after)
	t.once.Cancel(after)
	t.repeats.Cancel(float64(after))
	for id, e := range t.scheduled {
		switch ev := e.(type) {
		case *tickEvent:
			if ev.tick >= after {
				delete(t.scheduled, id)
			}
		case *repeatEvent:
			if ev.tick >= after {
				delete(t.scheduled, id)
			}
		}
	}
}

// SetTimeEvaluator installs the converter used by ScheduleAt and friends.
func (t *Transport) SetTimeEvaluator(e TimeEvaluator) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evaluator = e
}

func (t *Transport) newTickEvent(cb Callback, tick int64) (*tickEvent, error) {
	if cb == nil {
		return nil, fmt.Errorf("callback must not be nil")
	}
	if tick < 0 {
		return nil, fmt.Errorf("tick must be non-negative, got %d", tick)
	}
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.mu.Unlock()
	return &tickEvent{id: id, tick: tick, callback: cb}, nil
}

// processTick is the clock callback. Loop wraparound is applied before any
// event fires so the wrapped tick's events run with the wrapped number, and
// callbacks are collected under the lock but invoked outside it so they can
// schedule, clear, or move the playhead freely.
func (t *Transport) processTick(tickTime float64, ticks int64) {
	t.mu.Lock()
	if t.swing > 0 && ticks%int64(t.ppq) != 0 {
		period := t.swingSub * 2
		progress := float64(ticks%period) / float64(period)
		amount := math.Sin(progress*math.Pi) * t.swing
		tickTime += t.ticksToSecondsLocked(float64(t.swingSub)*2/3, tickTime) * amount
	}
	var fires []Callback
	if t.loop && ticks >= t.loopEnd {
		if t.OnLoopEnd != nil {
			fires = append(fires, t.OnLoopEnd)
		}
		t.clock.SetTicks(t.loopStart)
		ticks = t.loopStart
		if t.OnLoopStart != nil {
			fires = append(fires, t.OnLoopStart)
		}
	}
	t.once.ForEachBefore(ticks+1, func(ev *tickEvent) {
		fires = append(fires, ev.callback)
		t.once.Remove(ev)
		delete(t.scheduled, ev.id)
	})
	t.oneShot.ForEachAtTime(ticks, func(ev *tickEvent) {
		fires = append(fires, ev.callback)
	})
	t.repeats.ForEachAtTime(float64(ticks), func(ev *repeatEvent) {
		if (ticks-ev.tick)%ev.interval == 0 {
			fires = append(fires, ev.callback)
		}
	})
	t.mu.Unlock()

	for _, fn := range fires {
		fn(tickTime)
	}
}
