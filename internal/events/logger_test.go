package events

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoggerReadLast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")

	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger.Path() != path {
		t.Errorf("Path() = %q, want %q", logger.Path(), path)
	}

	for i := range 5 {
		event := &CaptureEvent{
			Driver: "alsa",
			Device: "hw:1,0",
			Event:  EventOverrun,
			Blocks: uint64(i),
		}
		if err := logger.Log(event); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
		if event.Timestamp.IsZero() {
			t.Error("Log() did not set Timestamp")
		}
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := ReadLast(path, 3)
	if err != nil {
		t.Fatalf("ReadLast() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadLast() returned %d events, want 3", len(got))
	}
	for i, want := range []uint64{4, 3, 2} {
		if got[i].Blocks != want {
			t.Errorf("event %d Blocks = %d, want %d", i, got[i].Blocks, want)
		}
	}
	if got[0].Device != "hw:1,0" || got[0].Event != EventOverrun {
		t.Errorf("event = %+v", got[0])
	}

	all, err := ReadLast(path, 100)
	if err != nil || len(all) != 5 {
		t.Errorf("ReadLast(100) = %d events, %v, want 5", len(all), err)
	}
}

func TestLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, kind := range []EventType{EventOpened, EventClosed} {
		logger, err := NewLogger(path)
		if err != nil {
			t.Fatalf("NewLogger() error = %v", err)
		}
		if err := logger.Log(&CaptureEvent{Timestamp: ts, Event: kind}); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
		if err := logger.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}

	got, err := ReadLast(path, 10)
	if err != nil {
		t.Fatalf("ReadLast() error = %v", err)
	}
	if len(got) != 2 || got[0].Event != EventClosed || got[1].Event != EventOpened {
		t.Fatalf("ReadLast() = %+v", got)
	}
	if !got[0].Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got[0].Timestamp, ts)
	}
}

func TestReadLastSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := fmt.Sprintf("%s\nnot json\n%s\n",
		`{"event":"opened","device":"default"}`,
		`{"event":"stopped","device":"default"}`)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadLast(path, 10)
	if err != nil {
		t.Fatalf("ReadLast() error = %v", err)
	}
	if len(got) != 2 || got[0].Event != EventStopped || got[1].Event != EventOpened {
		t.Errorf("ReadLast() = %+v", got)
	}
}

func TestReadLastMissingFile(t *testing.T) {
	got, err := ReadLast(filepath.Join(t.TempDir(), "missing.jsonl"), 10)
	if err != nil {
		t.Fatalf("ReadLast() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ReadLast() = %#v, want empty slice", got)
	}
}

func TestReadLastNonPositive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	if err := os.WriteFile(path, []byte(`{"event":"opened"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{0, -1} {
		got, err := ReadLast(path, n)
		if err != nil || len(got) != 0 {
			t.Errorf("ReadLast(%d) = %v, %v, want no events", n, got, err)
		}
	}
}

func TestNilLogger(t *testing.T) {
	var logger *Logger
	if err := logger.Log(&CaptureEvent{Event: EventOpened}); err != nil {
		t.Errorf("Log() on nil logger error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() on nil logger error = %v", err)
	}
}
