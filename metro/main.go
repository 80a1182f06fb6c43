package main

// metro is a terminal metronome driven by the pulse transport. It prints a
// colored pulse on every beat, accents the downbeat, and can glide the
// tempo over the run.

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/micahscopes/pulse/clock"
	"github.com/micahscopes/pulse/logger"
	"github.com/micahscopes/pulse/transport"
)

var (
	configPath string
	bpm        float64
	swing      float64
	rampTo     float64
	rampOver   float64
	duration   time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "metro",
		Short:        "Terminal metronome driven by the pulse transport",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "transport config file (yaml)")
	rootCmd.Flags().Float64Var(&bpm, "bpm", 0, "tempo override in beats per minute")
	rootCmd.Flags().Float64Var(&swing, "swing", 0, "swing amount between 0 and 1")
	rootCmd.Flags().Float64Var(&rampTo, "ramp-to", 0, "tempo to glide towards")
	rootCmd.Flags().Float64Var(&rampOver, "ramp-over", 10, "seconds the tempo glide takes")
	rootCmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logger.GetProjectLogger()

	cfg := transport.DefaultConfig()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}
	if bpm > 0 {
		cfg.BPM = bpm
	}
	if swing > 0 {
		cfg.Swing = swing
	}

	tr, err := transport.New(cfg, clock.DefaultConfig(), nil)
	if err != nil {
		return err
	}

	ppq := int64(cfg.PPQ)
	beatsPerBar := int64(cfg.TimeSignature)
	_, err = tr.ScheduleRepeat(func(float64) {
		beat := (tr.Ticks() / ppq) % beatsPerBar
		printBeat(tr.Position(), beat, beatsPerBar, tr.BPM())
	}, ppq, 0)
	if err != nil {
		return err
	}

	if rampTo > 0 {
		if err := tr.RampBPMTo(rampTo, rampOver); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := tr.Start(); err != nil {
		return err
	}
	go tr.Run(ctx)

	// handle CTRL+C interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	if duration > 0 {
		select {
		case <-quit:
		case <-time.After(duration):
		}
	} else {
		<-quit
	}
	log.Info("shutting down metro")
	return tr.Stop()
}

// printBeat renders one pulse, hue-rotated through the bar with the
// downbeat accented.
func printBeat(position string, beat, beatsPerBar int64, bpm float64) {
	hue := 360 * float64(beat) / float64(beatsPerBar)
	col := colorful.Hsv(hue, 0.9, 1.0)
	r, g, b := col.RGB255()
	mark := "·"
	if beat == 0 {
		mark = "●"
	}
	fmt.Printf("\x1b[38;2;%d;%d;%dm%s\x1b[0m %s  %.1f bpm\n", r, g, b, mark, position, bpm)
}
