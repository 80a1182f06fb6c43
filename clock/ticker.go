package clock

import (
	"context"
	"time"

	kclock "k8s.io/utils/clock"

	"github.com/micahscopes/pulse/logger"
)

// Ticker is the external heartbeat: it invokes a beat function at a fixed
// interval until its context is canceled. The wall clock is injected so
// tests can drive beats from a fake clock.
type Ticker struct {
	wall     kclock.WithTicker
	interval time.Duration
}

func NewTicker(wall kclock.WithTicker, interval time.Duration) *Ticker {
	if wall == nil {
		wall = kclock.RealClock{}
	}
	return &Ticker{wall: wall, interval: interval}
}

// Run blocks, beating until the context is done.
func (t *Ticker) Run(ctx context.Context, beat func()) {
	log := logger.GetProjectLogger()
	tk := t.wall.NewTicker(t.interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debugf("ticker shutdown after %v interval beats", t.interval)
			return
		case <-tk.C():
			beat()
		}
	}
}
