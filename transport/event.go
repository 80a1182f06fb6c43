package transport

import "math"

// Callback receives the precise time the event falls on, which may differ
// from wall time when the heartbeat schedules ticks ahead or swing nudges
// off-beat events late.
type Callback func(time float64)

// tickEvent is a callback pinned to a single tick.
type tickEvent struct {
	id       int64
	tick     int64
	callback Callback
}

func (e *tickEvent) Time() int64 { return e.tick }

// repeatEvent fires every interval ticks starting at tick, for duration
// ticks (infinite when no duration was given). It lives in the interval
// index keyed by its active span so only spans covering the current tick
// are consulted.
type repeatEvent struct {
	id       int64
	tick     int64
	interval int64
	duration float64
	callback Callback
}

func (e *repeatEvent) Low() float64 { return float64(e.tick) }

func (e *repeatEvent) High() float64 {
	if math.IsInf(e.duration, 1) {
		return math.Inf(1)
	}
	return float64(e.tick) + e.duration
}

// TimeEvaluator converts musical time expressions such as "4n" or "1:2:0"
// into concrete units. The transport only consumes the conversions; parsing
// lives with the caller.
type TimeEvaluator interface {
	ToSeconds(expr string) (float64, error)
	ToTicks(expr string) (float64, error)
	ToFrequency(expr string) (float64, error)
}
