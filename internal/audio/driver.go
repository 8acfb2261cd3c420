package audio

import (
	"fmt"
	"slices"
	"sync"
)

// Driver opens capture handles and enumerates devices for one host audio backend.
type Driver interface {
	// Name returns the registry name of the driver.
	Name() string
	// Open opens the named device for capture without configuring it.
	Open(device string) (PCM, error)
	// Devices returns every PCM device the host hints at, in host order.
	Devices() ([]Device, error)
}

// PCM is an open capture handle. The Set methods stage hardware parameters and
// Commit applies them together; the remaining methods are only valid after Commit.
//
// Read fills p with whole interleaved S16_LE frames and returns the frame count.
// Overrun and disconnect conditions are reported by wrapping ErrOverrun and
// ErrDisconnected. Avail returns errors.ErrUnsupported when the backend cannot
// report readable frames.
type PCM interface {
	SetAccess() error
	SetFormat() error
	SetChannels(n int) error
	SetRateNear(rate int) (int, error)
	SetPeriodSizeNear(frames int) (int, error)
	Commit() error
	Read(p []byte) (int, error)
	Avail() (int, error)
	Discard() error
	Drain() error
	Close() error
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]func() Driver)
)

// Register makes a driver constructor available under name.
// It panics when name is registered twice.
func Register(name string, newDriver func() Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[name]; dup {
		panic("audio: Register called twice for driver " + name)
	}
	drivers[name] = newDriver
}

// NewDriver returns a new instance of the named driver.
func NewDriver(name string) (Driver, error) {
	driversMu.RLock()
	newDriver, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDriver, name, Drivers())
	}
	return newDriver(), nil
}

// Drivers returns the sorted names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
