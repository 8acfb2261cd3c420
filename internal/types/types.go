// Package types provides shared type definitions used across the audio tap.
package types

import "time"

// TapState represents the current state of the capture loop.
type TapState string

const (
	// StateStopped indicates the tap is not running.
	StateStopped TapState = "stopped"
	// StateRunning indicates the tap is capturing blocks.
	StateRunning TapState = "running"
	// StateRetrying indicates the tap is waiting to retry after an overrun.
	StateRetrying TapState = "retrying"
	// StateStopping indicates the tap is shutting down.
	StateStopping TapState = "stopping"
)

const (
	// InitialRetryDelay is the starting delay between overrun retries.
	InitialRetryDelay = 20 * time.Millisecond
	// MaxRetryDelay is the maximum delay between overrun retries.
	MaxRetryDelay = 1000 * time.Millisecond
	// MaxRetries is the number of consecutive overruns tolerated before giving up.
	MaxRetries = 10
)

// Capture defaults. Most hosts capture mono or stereo at 44.1 kHz.
const (
	// DefaultDriver is the audio driver used when none is configured.
	DefaultDriver = "alsa"
	// DefaultDevice is the capture device used when none is configured.
	DefaultDevice = "default"
	// DefaultChannels is the default number of interleaved channels.
	DefaultChannels = 1
	// DefaultSampleRate is the default sample rate in Hz.
	DefaultSampleRate = 44100
	// DefaultFrameBlockSize is the default number of frames per capture block.
	DefaultFrameBlockSize = 1024
)
