// Package events records capture lifecycle events to a JSON lines journal.
package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of capture event.
type EventType string

const (
	EventOpened  EventType = "opened"
	EventOverrun EventType = "overrun"
	EventRetry   EventType = "retry"
	EventError   EventType = "error"
	EventStopped EventType = "stopped"
	EventClosed  EventType = "closed"
)

// CaptureEvent represents a single capture event.
type CaptureEvent struct {
	Timestamp  time.Time `json:"ts"`
	Driver     string    `json:"driver"`
	Device     string    `json:"device"`
	Event      EventType `json:"event"`
	Message    string    `json:"msg"`
	Error      string    `json:"error,omitempty"`
	Channels   int       `json:"channels,omitempty"`
	SampleRate int       `json:"sample_rate,omitempty"`
	Frames     int       `json:"frames,omitempty"`
	Blocks     uint64    `json:"blocks,omitempty"`
	RetryCount int       `json:"retry,omitempty"`
	MaxRetries int       `json:"max_retries,omitempty"`
}

// Logger writes capture events to a JSON lines file. It is safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
	encoder  *json.Encoder
}

// NewLogger creates a new event logger.
func NewLogger(filePath string) (*Logger, error) {
	// Ensure directory exists
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	return &Logger{
		filePath: filePath,
		file:     file,
		encoder:  json.NewEncoder(file),
	}, nil
}

// Log writes an event to the log file. A nil Logger discards the event.
func (l *Logger) Log(event *CaptureEvent) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	return l.encoder.Encode(event)
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Path returns the path to the log file.
func (l *Logger) Path() string {
	return l.filePath
}

// ReadLast reads the last n events from the log file, newest first.
// A missing file yields no events.
func ReadLast(filePath string, n int) ([]CaptureEvent, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []CaptureEvent{}, nil
		}
		return nil, err
	}
	defer file.Close() //nolint:errcheck // Read-only operation, close error not critical

	// Keep a window of the last n lines.
	lines := make([]string, 0, max(n, 0))
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if n <= 0 {
			continue
		}
		if len(lines) == n {
			lines = lines[1:]
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	events := make([]CaptureEvent, 0, len(lines))
	for i := len(lines) - 1; i >= 0; i-- {
		var event CaptureEvent
		if err := json.Unmarshal([]byte(lines[i]), &event); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, event)
	}

	return events, nil
}
