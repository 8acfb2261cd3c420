//go:build linux

package audio

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// writeScript installs an executable shell script standing in for arecord.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arecord")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildArecordArgs(t *testing.T) {
	got := buildArecordArgs("plughw:1,0", 2, 48000, 512)
	want := []string{
		"-D", "plughw:1,0",
		"-f", "S16_LE",
		"-c", "2",
		"-r", "48000",
		"--period-size=512",
		"-t", "raw",
		"-q",
		"-",
	}
	if !slices.Equal(got, want) {
		t.Errorf("buildArecordArgs() = %v, want %v", got, want)
	}
}

func TestArecordMissingCommand(t *testing.T) {
	drv := &arecordDriver{command: "audiotap-no-such-arecord"}

	if _, err := drv.Open("default"); err == nil {
		t.Error("Open() error = nil, want lookup failure")
	}
	if _, err := drv.Devices(); err == nil {
		t.Error("Devices() error = nil, want exec failure")
	}
}

func TestArecordDefaultDevice(t *testing.T) {
	// sh exists on every Linux host and stands in for the binary lookup.
	drv := &arecordDriver{command: "sh"}
	pcm, err := drv.Open("")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := pcm.(*arecordPCM).device; got != "default" {
		t.Errorf("device = %q, want default", got)
	}
}

func TestArecordCaptureFromStream(t *testing.T) {
	drv := &arecordDriver{command: writeScript(t, "exec cat /dev/zero")}

	d, err := Open(drv, "default", defaultParams)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	buf := make([]int16, d.Params().Samples())
	frames, err := d.Capture(buf)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if frames != 1024 {
		t.Errorf("Capture() frames = %d, want 1024", frames)
	}

	if n, err := d.Avail(); err != nil || n < 0 {
		t.Errorf("Avail() = %d, %v, want a frame count", n, err)
	}

	if err := d.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestArecordExitReason(t *testing.T) {
	script := writeScript(t, "echo 'arecord: main:831: audio open error: Device or resource busy' >&2\nexit 1")
	d, err := Open(&arecordDriver{command: script}, "hw:0,0", defaultParams)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()

	_, err = d.Capture(make([]int16, 1024))
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("Capture() error = %v, want %v", err, ErrDisconnected)
	}
	if !strings.Contains(err.Error(), "Device or resource busy") {
		t.Errorf("Capture() error = %q, want arecord's stderr", err)
	}
}
