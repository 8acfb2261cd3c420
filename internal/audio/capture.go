package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// errZeroNegotiated is the cause reported when a driver snaps a value to zero.
var errZeroNegotiated = errors.New("driver negotiated zero")

// CaptureDevice is one open capture handle with fixed S16_LE interleaved format.
// Methods are serialized by an internal mutex; Capture blocks other callers
// for the duration of a read.
type CaptureDevice struct {
	mu         sync.Mutex
	driver     string
	device     string
	pcm        PCM
	state      State
	requested  Params
	negotiated Params
	raw        []byte
}

// Open opens device through drv and applies interleaved access, S16_LE format,
// the channel count, a rate near want.SampleRate and a period size near
// want.FrameBlockSize. The first failing step aborts and releases the handle.
//
// The negotiated parameters returned by Params may differ from want.
func Open(drv Driver, device string, want Params) (*CaptureDevice, error) {
	if drv == nil {
		return nil, &Error{Op: "open", Device: device, Kind: ErrUnknownDriver}
	}

	d := &CaptureDevice{
		driver:    drv.Name(),
		device:    device,
		requested: want,
	}

	if !want.valid() {
		return nil, d.newError("validate params", ErrInvalidParams, fmt.Errorf("%+v", want))
	}

	pcm, err := drv.Open(device)
	if err != nil {
		return nil, d.newError("open", ErrDeviceOpen, err)
	}

	got, err := d.configure(pcm, want)
	if err != nil {
		if closeErr := pcm.Close(); closeErr != nil {
			slog.Warn("failed to release PCM after configuration error",
				"driver", d.driver, "device", device, "error", closeErr)
		}
		return nil, err
	}

	if got != want {
		slog.Info("driver adjusted capture parameters",
			"driver", d.driver, "device", device,
			"requested_rate", want.SampleRate, "rate", got.SampleRate,
			"requested_frames", want.FrameBlockSize, "frames", got.FrameBlockSize)
	}

	d.pcm = pcm
	d.negotiated = got
	d.raw = make([]byte, got.BlockBytes())
	d.state = StateOpen
	return d, nil
}

// configure runs the hardware parameter steps in order and stops at the first failure.
func (d *CaptureDevice) configure(pcm PCM, want Params) (Params, error) {
	got := Params{Channels: want.Channels}

	steps := []struct {
		op   string
		kind error
		run  func() error
	}{
		{"set access", ErrAccessMode, pcm.SetAccess},
		{"set format", ErrFormat, pcm.SetFormat},
		{"set channels", ErrChannelCount, func() error {
			return pcm.SetChannels(want.Channels)
		}},
		{"set rate", ErrRate, func() error {
			rate, err := pcm.SetRateNear(want.SampleRate)
			if err == nil && rate <= 0 {
				err = errZeroNegotiated
			}
			got.SampleRate = rate
			return err
		}},
		{"set period size", ErrPeriodSize, func() error {
			frames, err := pcm.SetPeriodSizeNear(want.FrameBlockSize)
			if err == nil && frames <= 0 {
				err = errZeroNegotiated
			}
			got.FrameBlockSize = frames
			return err
		}},
		{"commit", ErrParameterCommit, pcm.Commit},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			return Params{}, d.newError(step.op, step.kind, err)
		}
	}
	return got, nil
}

// Capture blocks until one frame block is available and copies it into buf,
// which must hold at least Params().Samples() values. It returns the number of
// frames copied. Data not consumed by the read is discarded afterwards, so
// successive calls are independent windows rather than a continuous stream.
//
// Driver failures are returned as-is, wrapped in an *Error matching ErrCapture;
// nothing is retried.
func (d *CaptureDevice) Capture(buf []int16) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkOpen("capture"); err != nil {
		return 0, err
	}
	if need := d.negotiated.Samples(); len(buf) < need {
		return 0, d.newError("capture", ErrBufferTooSmall,
			fmt.Errorf("have %d samples, need %d", len(buf), need))
	}

	frames, err := d.pcm.Read(d.raw)
	frames = min(max(frames, 0), d.negotiated.FrameBlockSize)
	decodeS16LE(buf, d.raw[:frames*d.negotiated.FrameBytes()])
	if err != nil {
		return frames, d.newError("capture", captureKind(err), err)
	}

	if err := d.pcm.Discard(); err != nil {
		slog.Warn("failed to reset capture stream",
			"driver", d.driver, "device", d.device, "error", err)
	}
	return frames, nil
}

// Avail returns the number of frames readable without blocking.
// It matches errors.ErrUnsupported when the driver cannot report it.
func (d *CaptureDevice) Avail() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkOpen("avail"); err != nil {
		return 0, err
	}
	n, err := d.pcm.Avail()
	if err != nil {
		if errors.Is(err, errors.ErrUnsupported) {
			return 0, fmt.Errorf("%s avail: %w", d.driver, err)
		}
		return 0, d.newError("avail", captureKind(err), err)
	}
	return n, nil
}

// Close drains and releases the handle. Any later call returns ErrClosed.
func (d *CaptureDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkOpen("close"); err != nil {
		return err
	}

	pcm := d.pcm
	d.pcm = nil
	d.state = StateClosed

	var errs []error
	if err := pcm.Drain(); err != nil {
		errs = append(errs, fmt.Errorf("drain: %w", err))
	}
	if err := pcm.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	return errors.Join(errs...)
}

// Params returns the negotiated parameters. Size buffers from these, not the request.
func (d *CaptureDevice) Params() Params {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.negotiated
}

// Requested returns the parameters passed to Open.
func (d *CaptureDevice) Requested() Params {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requested
}

// Device returns the device identifier the handle was opened with.
func (d *CaptureDevice) Device() string {
	return d.device
}

// Driver returns the name of the driver that owns the handle.
func (d *CaptureDevice) Driver() string {
	return d.driver
}

// State returns the lifecycle state.
func (d *CaptureDevice) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// checkOpen rejects calls outside the open state. Caller must hold d.mu.
func (d *CaptureDevice) checkOpen(op string) error {
	switch d.state {
	case StateOpen:
		return nil
	case StateClosed:
		return d.newError(op, ErrClosed, nil)
	default:
		return d.newError(op, ErrNotOpen, nil)
	}
}

func (d *CaptureDevice) newError(op string, kind, err error) *Error {
	return &Error{Op: op, Driver: d.driver, Device: d.device, Kind: kind, Err: err}
}

// captureKind maps a driver read error to the most specific capture sentinel.
func captureKind(err error) error {
	switch {
	case errors.Is(err, ErrOverrun):
		return ErrOverrun
	case errors.Is(err, ErrDisconnected):
		return ErrDisconnected
	default:
		return ErrCapture
	}
}

// decodeS16LE converts interleaved S16_LE bytes into samples.
func decodeS16LE(dst []int16, src []byte) {
	for i := 0; i+1 < len(src); i += BytesPerSample {
		dst[i/BytesPerSample] = int16(binary.LittleEndian.Uint16(src[i:]))
	}
}

// encodeS16LE converts samples into interleaved S16_LE bytes.
func encodeS16LE(dst []byte, src []int16) {
	for i, s := range src {
		binary.LittleEndian.PutUint16(dst[i*BytesPerSample:], uint16(s))
	}
}
