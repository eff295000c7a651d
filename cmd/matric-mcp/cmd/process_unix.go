//go:build !windows

package cmd

import (
	"os"
	"syscall"
)

// gracefulSignals lists the signals the serving loop shuts down on.
// `matric-mcp stop` sends SIGTERM; Ctrl+C delivers SIGINT.
func gracefulSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// processIsAlive probes the pidfile's process with signal 0.
func processIsAlive(proc *os.Process) bool {
	return proc.Signal(syscall.Signal(0)) == nil
}

// sendGracefulStop asks a running gateway to drain and exit.
func sendGracefulStop(proc *os.Process) error {
	return proc.Signal(syscall.SIGTERM)
}
