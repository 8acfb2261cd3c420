// Package tap runs the capture loop that feeds raw PCM blocks downstream.
// It owns the overrun retry policy; the capture layer itself never retries.
package tap

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-audiotap/internal/audio"
	"github.com/oszuidwest/zwfm-audiotap/internal/events"
	"github.com/oszuidwest/zwfm-audiotap/internal/types"
	"github.com/oszuidwest/zwfm-audiotap/internal/util"
)

// Sentinel errors for tap operations.
var (
	ErrAlreadyRunning   = errors.New("tap already running")
	ErrRetriesExhausted = errors.New("too many consecutive overruns")
)

// Source is the subset of *audio.CaptureDevice the tap reads from.
type Source interface {
	Capture(buf []int16) (int, error)
	Params() audio.Params
	Driver() string
	Device() string
}

// Options configures a Tap.
type Options struct {
	// MaxRetries is the number of consecutive overruns tolerated. Zero gives up on the first.
	MaxRetries int
	// Events receives lifecycle events; nil disables the journal.
	Events *events.Logger
	// Backoff paces overrun retries; nil uses the default delays.
	Backoff *util.Backoff
}

// Stats is a point-in-time copy of the tap counters.
type Stats struct {
	State      types.TapState
	Blocks     uint64
	Frames     uint64
	Overruns   uint64
	RetryCount int
	LastError  string
}

// Tap captures frame blocks from a Source and writes them as S16LE to a writer.
// Run must not be called concurrently; Stats is safe for concurrent use.
type Tap struct {
	src        Source
	out        io.Writer
	journal    *events.Logger
	backoff    *util.Backoff
	maxRetries int

	mu    sync.RWMutex
	stats Stats

	// wait blocks for d or until ctx is done; replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// New creates a Tap reading from src and writing to out.
func New(src Source, out io.Writer, opts Options) *Tap {
	backoff := opts.Backoff
	if backoff == nil {
		backoff = util.NewBackoff(types.InitialRetryDelay, types.MaxRetryDelay)
	}
	return &Tap{
		src:        src,
		out:        out,
		journal:    opts.Events,
		backoff:    backoff,
		maxRetries: opts.MaxRetries,
		stats:      Stats{State: types.StateStopped},
		wait:       sleepContext,
	}
}

// Run captures blocks until blocks have been written, ctx is done, or an
// unrecoverable error occurs. blocks == 0 runs until ctx is done. A cancelled
// context ends the run without error.
func (t *Tap) Run(ctx context.Context, blocks int) error {
	t.mu.Lock()
	if t.stats.State != types.StateStopped {
		t.mu.Unlock()
		return ErrAlreadyRunning
	}
	t.stats.State = types.StateRunning
	t.stats.RetryCount = 0
	t.mu.Unlock()
	t.backoff.Reset()

	err := t.loop(ctx, blocks)

	t.mu.Lock()
	t.stats.State = types.StateStopped
	if err != nil {
		t.stats.LastError = err.Error()
	}
	snapshot := t.stats
	t.mu.Unlock()

	if err != nil {
		t.logEvent(events.EventError, "capture stopped with error", err, snapshot)
		return err
	}
	t.logEvent(events.EventStopped, "capture stopped", nil, snapshot)
	return nil
}

func (t *Tap) loop(ctx context.Context, blocks int) error {
	params := t.src.Params()
	buf := make([]int16, params.Samples())

	for written := 0; blocks == 0 || written < blocks; {
		if ctx.Err() != nil {
			t.setState(types.StateStopping)
			return nil
		}

		frames, err := t.src.Capture(buf)
		if err != nil {
			if !errors.Is(err, audio.ErrOverrun) {
				return err
			}
			if err := t.retry(ctx, err); err != nil {
				return err
			}
			continue
		}

		if frames > 0 {
			if err := binary.Write(t.out, binary.LittleEndian, buf[:frames*params.Channels]); err != nil {
				return util.WrapError("write block", err)
			}
		}

		t.mu.Lock()
		t.stats.State = types.StateRunning
		t.stats.Blocks++
		t.stats.Frames += uint64(frames)
		if t.stats.RetryCount > 0 {
			t.stats.RetryCount = 0
			t.backoff.Reset()
		}
		t.mu.Unlock()
		written++
	}
	return nil
}

// retry records an overrun and waits before the next attempt. It returns an
// error once more than maxRetries consecutive overruns occurred.
func (t *Tap) retry(ctx context.Context, cause error) error {
	t.mu.Lock()
	t.stats.Overruns++
	t.stats.RetryCount++
	t.stats.LastError = cause.Error()
	attempt := t.stats.RetryCount
	snapshot := t.stats
	t.mu.Unlock()

	t.logEvent(events.EventOverrun, "capture overrun", cause, snapshot)

	if attempt > t.maxRetries {
		slog.Error("capture overrun, giving up", "attempts", attempt, "error", cause)
		return fmt.Errorf("%w: %d attempts: %w", ErrRetriesExhausted, attempt, cause)
	}

	delay := t.backoff.Next()
	t.setState(types.StateRetrying)
	slog.Warn("capture overrun, retrying",
		"delay", delay, "attempt", attempt, "max_retries", t.maxRetries, "error", cause)
	t.logEvent(events.EventRetry, fmt.Sprintf("retrying in %s", delay), nil, snapshot)

	// A cancelled wait ends the run at the top of the loop.
	_ = t.wait(ctx, delay)
	return nil
}

// Stats returns a copy of the current counters.
func (t *Tap) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}

func (t *Tap) setState(state types.TapState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.State = state
}

func (t *Tap) logEvent(kind events.EventType, msg string, cause error, stats Stats) {
	params := t.src.Params()
	event := &events.CaptureEvent{
		Driver:     t.src.Driver(),
		Device:     t.src.Device(),
		Event:      kind,
		Message:    msg,
		Channels:   params.Channels,
		SampleRate: params.SampleRate,
		Frames:     params.FrameBlockSize,
		Blocks:     stats.Blocks,
		RetryCount: stats.RetryCount,
		MaxRetries: t.maxRetries,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if err := t.journal.Log(event); err != nil {
		slog.Warn("failed to write capture event", "event", kind, "error", err)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
