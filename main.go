// Package main provides a capture tool that reads fixed-size blocks of PCM audio
// from a host capture device and writes them to stdout for a visualization pipeline.
//
// Usage:
//
//	audiotap [-driver alsa] [-device default] [-channels 1] [-rate 44100] [-frames 1024] | consumer
//	audiotap -list
//	audiotap -events capture.jsonl -history 20
//
// Samples are written as interleaved signed 16-bit little-endian values, one
// negotiated frame block at a time. Logs go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/oszuidwest/zwfm-audiotap/internal/audio"
	"github.com/oszuidwest/zwfm-audiotap/internal/config"
	"github.com/oszuidwest/zwfm-audiotap/internal/events"
	"github.com/oszuidwest/zwfm-audiotap/internal/logging"
	"github.com/oszuidwest/zwfm-audiotap/internal/tap"
	"github.com/oszuidwest/zwfm-audiotap/internal/util"
)

func main() {
	os.Exit(run(os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit code.
func run(args []string, lookupEnv func(string) (string, bool), stdout, stderr io.Writer) int {
	cfg := config.New()

	fs := flag.NewFlagSet("audiotap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showVersion := fs.Bool("version", false, "Print version information and exit")
	listDevices := fs.Bool("list", false, "List capture devices and exit")
	history := fs.Int("history", 0, "Print the last N events from the event journal and exit")

	// Environment first so that flags win.
	envErr := cfg.ApplyEnv(lookupEnv)
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	slog.SetDefault(logging.New(stderr, cfg.Log.Level, cfg.Log.Format))

	if *showVersion {
		info := buildInfo()
		slog.Info("version info", "version", info.Version, "commit", info.Commit,
			"build_time", info.BuildTime, "release", info.Release)
		return 0
	}

	if envErr != nil {
		slog.Error("invalid environment", "error", envErr)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}

	if *history > 0 {
		if err := printHistory(stdout, cfg.Events.Path, *history); err != nil {
			slog.Error("failed to read event journal", "error", err)
			return 1
		}
		return 0
	}

	drv, err := audio.NewDriver(cfg.Audio.Driver)
	if err != nil {
		slog.Error("failed to load audio driver", "error", err)
		return 1
	}

	if *listDevices {
		if err := printDevices(stdout, drv); err != nil {
			slog.Error("failed to list audio devices", "error", err)
			return 1
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), util.ShutdownSignals()...)
	defer stop()

	if err := capture(ctx, cfg, drv, stdout); err != nil {
		slog.Error("capture failed", "error", err)
		return 1
	}
	return 0
}

// capture opens the configured device and runs the tap until done.
func capture(ctx context.Context, cfg *config.Config, drv audio.Driver, stdout io.Writer) error {
	journal, err := openJournal(cfg.Events.Path)
	if err != nil {
		return util.WrapError("open event journal", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			slog.Warn("failed to close event journal", "error", err)
		}
	}()

	want := audio.Params{
		Channels:       cfg.Audio.Channels,
		SampleRate:     cfg.Audio.SampleRate,
		FrameBlockSize: cfg.Audio.FrameBlockSize,
	}
	dev, err := audio.Open(drv, cfg.Audio.Device, want)
	if err != nil {
		logJournal(journal, &events.CaptureEvent{
			Driver:  drv.Name(),
			Device:  cfg.Audio.Device,
			Event:   events.EventError,
			Message: "open failed",
			Error:   err.Error(),
		})
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			slog.Warn("failed to close capture device", "error", err)
		}
		logJournal(journal, &events.CaptureEvent{
			Driver:  dev.Driver(),
			Device:  dev.Device(),
			Event:   events.EventClosed,
			Message: "capture device closed",
		})
	}()

	params := dev.Params()
	slog.Info("capture device opened",
		"driver", dev.Driver(), "device", dev.Device(),
		"channels", params.Channels, "rate", params.SampleRate, "frames", params.FrameBlockSize)
	logJournal(journal, &events.CaptureEvent{
		Driver:     dev.Driver(),
		Device:     dev.Device(),
		Event:      events.EventOpened,
		Message:    "capture device opened",
		Channels:   params.Channels,
		SampleRate: params.SampleRate,
		Frames:     params.FrameBlockSize,
	})

	t := tap.New(dev, stdout, tap.Options{
		MaxRetries: cfg.Tap.MaxRetries,
		Events:     journal,
	})
	start := time.Now()
	runErr := t.Run(ctx, cfg.Tap.Blocks)

	stats := t.Stats()
	slog.Info("capture finished",
		"blocks", stats.Blocks, "frames", stats.Frames, "overruns", stats.Overruns,
		"duration", util.FormatDuration(time.Since(start)))
	return runErr
}

// openJournal opens the event journal, or returns nil when path is empty.
func openJournal(path string) (*events.Logger, error) {
	if path == "" {
		return nil, nil
	}
	return events.NewLogger(path)
}

func logJournal(journal *events.Logger, event *events.CaptureEvent) {
	if err := journal.Log(event); err != nil {
		slog.Warn("failed to write capture event", "event", event.Event, "error", err)
	}
}

// printDevices writes one line per input device.
func printDevices(w io.Writer, drv audio.Driver) error {
	devices, err := audio.ListInputDevices(drv)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, dev := range devices {
		direction := string(dev.Direction)
		if direction == "" {
			direction = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", dev.Name, direction, dev.Description)
	}
	return tw.Flush()
}

// printHistory writes the newest events of the journal at path, newest first.
func printHistory(w io.Writer, path string, n int) error {
	if path == "" {
		return errors.New("no event journal configured (use -events)")
	}

	recent, err := events.ReadLast(path, n)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range recent {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Event, e.Device, e.Message, e.Error)
	}
	return tw.Flush()
}
