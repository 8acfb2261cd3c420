//go:build linux

package audio

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

// ioctlError formats an errno the way yobert/alsa reports failed ioctls.
func ioctlError(errno unix.Errno) error {
	return fmt.Errorf("%s failed: %v", "ioctl(R, 0x4151, 24)", errno)
}

func TestClassifyErrno(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"bare EPIPE", unix.EPIPE, ErrOverrun},
		{"wrapped EPIPE", fmt.Errorf("read: %w", unix.EPIPE), ErrOverrun},
		{"ioctl EPIPE", ioctlError(unix.EPIPE), ErrOverrun},
		{"prepare EPIPE", fmt.Errorf("Device prepare failure: %v", ioctlError(unix.EPIPE)), ErrOverrun},
		{"bare ENODEV", unix.ENODEV, ErrDisconnected},
		{"ioctl ENODEV", ioctlError(unix.ENODEV), ErrDisconnected},
		{"ioctl ESHUTDOWN", ioctlError(unix.ESHUTDOWN), ErrDisconnected},
		{"ioctl EBADFD", ioctlError(unix.EBADFD), ErrDisconnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyErrno(tt.err)
			if !errors.Is(got, tt.want) || !errors.Is(got, ErrCapture) {
				t.Errorf("classifyErrno(%v) = %v, want %v", tt.err, got, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classifyErrno(%v) = %v, want the cause kept", tt.err, got)
			}
		})
	}

	if err := classifyErrno(nil); err != nil {
		t.Errorf("classifyErrno(nil) = %v, want nil", err)
	}
	for _, err := range []error{unix.EIO, ioctlError(unix.EIO), errors.New("pipe buffer full")} {
		if got := classifyErrno(err); errors.Is(got, ErrCapture) {
			t.Errorf("classifyErrno(%v) = %v, want unclassified", err, got)
		}
	}
}

func TestAlsaOpenRejectsPluginNames(t *testing.T) {
	for _, id := range []string{"plughw:1,0", "dsnoop:CARD=PCH,DEV=0"} {
		_, err := alsaDriver{}.Open(id)
		if !errors.Is(err, ErrNoAudioDevice) || !strings.Contains(err.Error(), "arecord driver") {
			t.Errorf("Open(%q) error = %v, want a pointer to the arecord driver", id, err)
		}
	}
}

func TestAlsaReadAfterFailedReset(t *testing.T) {
	p := &alsaPCM{channels: 1, resetErr: ioctlError(unix.ENODEV)}
	_, err := p.Read(make([]byte, 64))
	if !errors.Is(err, ErrDisconnected) {
		t.Errorf("Read() error = %v, want %v", err, ErrDisconnected)
	}
}

func TestAlsaAvailUnsupported(t *testing.T) {
	var p alsaPCM
	if _, err := p.Avail(); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("Avail() error = %v, want %v", err, errors.ErrUnsupported)
	}
}
