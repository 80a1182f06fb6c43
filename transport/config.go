package transport

import (
	"fmt"
	"math"
)

// Config is the transport's musical configuration. Times and spans are in
// ticks; PPQ is the number of ticks per quarter note.
type Config struct {
	BPM              float64 `yaml:"bpm"`
	TimeSignature    int     `yaml:"time_signature"`
	PPQ              int     `yaml:"ppq"`
	Swing            float64 `yaml:"swing"`
	SwingSubdivision int64   `yaml:"swing_subdivision"`
	Loop             bool    `yaml:"loop"`
	LoopStart        int64   `yaml:"loop_start"`
	LoopEnd          int64   `yaml:"loop_end"`
}

// DefaultConfig is 120bpm common time with 192 ticks per quarter and swing
// on the eighth-note grid (disabled until a swing amount is set).
func DefaultConfig() Config {
	return Config{
		BPM:              120,
		TimeSignature:    4,
		PPQ:              192,
		Swing:            0,
		SwingSubdivision: 96,
	}
}

func (c Config) Validate() error {
	if c.BPM <= 0 || math.IsNaN(c.BPM) || math.IsInf(c.BPM, 0) {
		return fmt.Errorf("bpm must be a positive finite number, got %v", c.BPM)
	}
	if c.TimeSignature < 1 {
		return fmt.Errorf("time signature must be at least 1 beat per bar, got %d", c.TimeSignature)
	}
	if c.PPQ < 1 {
		return fmt.Errorf("ppq must be at least 1, got %d", c.PPQ)
	}
	if c.Swing < 0 || c.Swing > 1 || math.IsNaN(c.Swing) {
		return fmt.Errorf("swing must be between 0 and 1, got %v", c.Swing)
	}
	if c.SwingSubdivision < 1 {
		return fmt.Errorf("swing subdivision must be at least 1 tick, got %d", c.SwingSubdivision)
	}
	if c.LoopStart < 0 {
		return fmt.Errorf("loop start must be non-negative, got %d", c.LoopStart)
	}
	if c.Loop && c.LoopEnd <= c.LoopStart {
		return fmt.Errorf("loop end (%d) must be after loop start (%d)", c.LoopEnd, c.LoopStart)
	}
	return nil
}
