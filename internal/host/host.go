// Package host defines the bridge's view of the hosting application.
package host

// Environment is the external collaborator an async task drives and
// observes. Implementations must tolerate redundant calls: the state
// machine may force an exit after a restart without knowing whether the
// matching enter ever completed.
type Environment interface {
	// EnterPlayMode switches the host into its execution mode. This may
	// trigger a domain reload.
	EnterPlayMode() error

	// ExitPlayMode reverts to edit mode. Exiting while not in play mode
	// is a no-op.
	ExitPlayMode() error

	// PlayModeReady reports the environment-ready condition: execution
	// mode running and not paused.
	PlayModeReady() bool

	// InPlayMode reports whether execution mode is active at all,
	// including paused.
	InPlayMode() bool

	// CaptureScreenshot writes the current view to path.
	CaptureScreenshot(path string) error

	// RequestRebuild initiates the out-of-process rebuild step. A
	// successful rebuild restarts the host process.
	RequestRebuild() error

	// RebuildError returns the diagnostics of a failed rebuild, or ""
	// while none has been reported.
	RebuildError() string
}
