package audio

// Direction is the stream direction tag of an enumerated device.
type Direction string

const (
	// DirectionAny marks a device usable for both capture and playback.
	DirectionAny Direction = ""
	// DirectionInput marks a capture-only device.
	DirectionInput Direction = "Input"
	// DirectionOutput marks a playback-only device.
	DirectionOutput Direction = "Output"
)

// Device is a read-only enumeration record for a PCM device.
type Device struct {
	// Name is the identifier to pass to Open.
	Name string `json:"name"`
	// Description is the human-readable device description.
	Description string `json:"description"`
	// Direction is the stream direction tag.
	Direction Direction `json:"direction,omitzero"`
}

// BytesPerSample is the size of one S16_LE sample.
const BytesPerSample = 2

// Params describes the stream shape of a capture handle.
type Params struct {
	// Channels is the number of interleaved channels per frame.
	Channels int `json:"channels"`
	// SampleRate is the rate in frames per second.
	SampleRate int `json:"sample_rate"`
	// FrameBlockSize is the number of frames returned by one Capture call.
	FrameBlockSize int `json:"frame_block_size"`
}

// Samples returns the number of int16 values in one frame block.
func (p Params) Samples() int {
	return p.FrameBlockSize * p.Channels
}

// FrameBytes returns the size of one interleaved frame in bytes.
func (p Params) FrameBytes() int {
	return p.Channels * BytesPerSample
}

// BlockBytes returns the size of one frame block in bytes.
func (p Params) BlockBytes() int {
	return p.FrameBlockSize * p.FrameBytes()
}

// valid reports whether every field is positive.
func (p Params) valid() bool {
	return p.Channels > 0 && p.SampleRate > 0 && p.FrameBlockSize > 0
}

// State is the lifecycle state of a CaptureDevice.
type State string

const (
	// StateUninitialized is the state of a CaptureDevice that was never opened.
	StateUninitialized State = ""
	// StateOpen indicates a configured handle ready for capture.
	StateOpen State = "open"
	// StateClosed is terminal; the handle has been released.
	StateClosed State = "closed"
)
