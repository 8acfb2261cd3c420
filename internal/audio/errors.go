package audio

import (
	"errors"
	"fmt"
)

// Initialization errors, one per configuration step.
var (
	ErrDeviceOpen      = errors.New("cannot open PCM device")
	ErrAccessMode      = errors.New("interleaved access not supported")
	ErrFormat          = errors.New("S16_LE sample format not supported")
	ErrChannelCount    = errors.New("channel count not supported")
	ErrRate            = errors.New("sample rate not supported")
	ErrPeriodSize      = errors.New("period size not supported")
	ErrParameterCommit = errors.New("cannot apply hardware parameters")
	ErrInvalidParams   = errors.New("channels, sample rate and frame block size must be positive")
)

// Capture errors. ErrOverrun and ErrDisconnected both match ErrCapture.
var (
	ErrCapture        = errors.New("capture failed")
	ErrOverrun        = fmt.Errorf("%w: buffer overrun", ErrCapture)
	ErrDisconnected   = fmt.Errorf("%w: device disconnected", ErrCapture)
	ErrBufferTooSmall = errors.New("buffer smaller than one frame block")
)

// Lifecycle and lookup errors.
var (
	ErrNotOpen       = errors.New("capture device not open")
	ErrClosed        = errors.New("capture device closed")
	ErrNoAudioDevice = errors.New("no audio input device found")
	ErrUnknownDriver = errors.New("unknown audio driver")
)

// Error describes a failed operation on a capture handle.
// It matches both its Kind and the underlying driver error with errors.Is.
type Error struct {
	Op     string // operation, e.g. "set rate"
	Driver string // driver name
	Device string // device identifier
	Kind   error  // one of the sentinel errors above
	Err    error  // driver cause, may be nil
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %q: %s: %v", e.Driver, e.Device, e.Op, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
