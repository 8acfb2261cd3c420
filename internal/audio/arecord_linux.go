//go:build linux

package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-audiotap/internal/util"
	"golang.org/x/sys/unix"
)

const (
	// arecordCommand is the capture tool from alsa-utils.
	arecordCommand = "arecord"
	// arecordStopTimeout bounds how long Close waits for arecord to exit.
	arecordStopTimeout = 3000 * time.Millisecond
)

func init() {
	Register("arecord", func() Driver { return &arecordDriver{command: arecordCommand} })
}

// arecordDriver captures through an arecord subprocess, which also gives
// access to ALSA plugin devices such as default, dsnoop and pulse.
type arecordDriver struct {
	command string
}

func (a *arecordDriver) Name() string { return "arecord" }

// Devices returns the PCM hints arecord lists for capture. arecord already
// filters by stream direction, so every entry has an unspecified direction.
func (a *arecordDriver) Devices() ([]Device, error) {
	output, err := runListCommand(a.command, "-L")
	if err != nil {
		return nil, err
	}
	return parseHintList(output), nil
}

func (a *arecordDriver) Open(device string) (PCM, error) {
	path, err := exec.LookPath(a.command)
	if err != nil {
		return nil, util.WrapError("find arecord", err)
	}
	if device == "" {
		device = "default"
	}
	return &arecordPCM{command: path, device: device}, nil
}

// buildArecordArgs returns arguments for raw interleaved S16_LE capture to stdout.
func buildArecordArgs(device string, channels, rate, period int) []string {
	return []string{
		"-D", device,
		"-f", "S16_LE",
		"-c", strconv.Itoa(channels),
		"-r", strconv.Itoa(rate),
		"--period-size=" + strconv.Itoa(period),
		"-t", "raw",
		"-q",
		"-",
	}
}

// arecordPCM stages parameters until Commit starts the subprocess.
type arecordPCM struct {
	command  string
	device   string
	channels int
	rate     int
	period   int

	cmd      *exec.Cmd
	stdout   *os.File
	stderr   bytes.Buffer
	waitOnce sync.Once
	waitErr  error
}

func (p *arecordPCM) SetAccess() error { return nil }

func (p *arecordPCM) SetFormat() error { return nil }

func (p *arecordPCM) SetChannels(n int) error {
	p.channels = n
	return nil
}

// SetRateNear accepts the rate as is; arecord resamples through the plug layer.
func (p *arecordPCM) SetRateNear(rate int) (int, error) {
	p.rate = rate
	return rate, nil
}

func (p *arecordPCM) SetPeriodSizeNear(frames int) (int, error) {
	p.period = frames
	return frames, nil
}

func (p *arecordPCM) Commit() error {
	r, w, err := os.Pipe()
	if err != nil {
		return util.WrapError("create stdout pipe", err)
	}

	cmd := exec.Command(p.command, buildArecordArgs(p.device, p.channels, p.rate, p.period)...)
	cmd.Stdout = w
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return util.WrapError("start arecord", err)
	}
	if err := w.Close(); err != nil {
		slog.Warn("failed to close arecord pipe writer", "error", err)
	}

	slog.Debug("arecord started", "device", p.device, "pid", cmd.Process.Pid)
	p.cmd = cmd
	p.stdout = r
	return nil
}

func (p *arecordPCM) frameBytes() int {
	return p.channels * BytesPerSample
}

func (p *arecordPCM) Read(buf []byte) (int, error) {
	n, err := io.ReadFull(p.stdout, buf)
	frames := n / p.frameBytes()
	if err == nil {
		return frames, nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return frames, fmt.Errorf("%w: arecord exited: %s", ErrDisconnected, p.exitReason())
	}
	return frames, err
}

// pending returns the number of bytes buffered in the pipe.
func (p *arecordPCM) pending() (int, error) {
	return unix.IoctlGetInt(int(p.stdout.Fd()), unix.TIOCINQ)
}

func (p *arecordPCM) Avail() (int, error) {
	n, err := p.pending()
	if err != nil {
		return 0, util.WrapError("query pipe", err)
	}
	return n / p.frameBytes(), nil
}

// Discard drops whatever arecord has written but nobody has read.
func (p *arecordPCM) Discard() error {
	n, err := p.pending()
	if err != nil {
		return util.WrapError("query pipe", err)
	}
	if n == 0 {
		return nil
	}
	_, err = io.CopyN(io.Discard, p.stdout, int64(n))
	return err
}

func (p *arecordPCM) Drain() error {
	if p.cmd == nil {
		return nil
	}
	return util.GracefulSignal(p.cmd.Process)
}

func (p *arecordPCM) Close() error {
	if p.cmd == nil {
		return nil
	}

	closeErr := p.stdout.Close()

	done := make(chan struct{})
	go func() {
		_ = p.wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(arecordStopTimeout):
		slog.Warn("arecord did not exit, killing", "device", p.device)
		if err := p.cmd.Process.Kill(); err != nil {
			slog.Warn("failed to kill arecord", "error", err)
		}
		<-done
	}
	return closeErr
}

func (p *arecordPCM) wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
	})
	return p.waitErr
}

// exitReason waits for arecord and returns its last stderr line.
func (p *arecordPCM) exitReason() string {
	err := p.wait()
	if msg := util.ExtractLastError(p.stderr.String()); msg != "" {
		return msg
	}
	if err != nil {
		return err.Error()
	}
	return "end of stream"
}
