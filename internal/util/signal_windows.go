//go:build windows

package util

import "os"

// ShutdownSignals returns the signals to listen for graceful shutdown.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// GracefulSignal is a no-op on Windows, which cannot deliver SIGINT to a child.
// Callers fall back to closing the child's pipes and killing it.
func GracefulSignal(p *os.Process) error {
	return nil
}
