//go:build windows

package cmd

import (
	"os"

	"golang.org/x/sys/windows"
)

// gracefulSignals lists the signals the serving loop shuts down on.
// Windows has no SIGTERM; os.Interrupt (CTRL_C_EVENT) is the only
// signal reliably delivered to the gateway.
func gracefulSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// processIsAlive probes the pidfile's process by opening a handle and
// reading its exit code.
func processIsAlive(proc *os.Process) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(proc.Pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false
	}
	// STILL_ACTIVE (259) means the process has not exited yet.
	return exitCode == 259
}

// sendGracefulStop stops a running gateway. With no SIGTERM to send,
// Kill (TerminateProcess) is the only portable option here.
func sendGracefulStop(proc *os.Process) error {
	return proc.Kill()
}
