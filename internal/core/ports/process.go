package ports

import (
	"context"
	"io"
	"time"
)

// LaunchSpec describes a server process to start.
type LaunchSpec struct {
	JavaPath string
	JarFile  string
	WorkDir  string
	MemoryGB int
	Args     []string

	// Detach starts the server in its own session so it outlives the CLI
	Detach bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Grace is how long Launch watches for an immediate exit before
	// reporting success
	Grace time.Duration
}

// Process is a launched server.
type Process interface {
	// PID returns the process ID
	PID() int

	// Wait blocks until the process exits
	Wait() error
}

// ProcessLauncher starts server processes.
type ProcessLauncher interface {
	// Launch starts the process and returns once it is running
	Launch(ctx context.Context, spec LaunchSpec) (Process, error)
}

// ProgressReporter receives per-artifact download progress.
type ProgressReporter interface {
	// Track begins reporting for one artifact; total is -1 when unknown
	Track(name string, total int64) ProgressTracker
}

// ProgressTracker follows one download.
type ProgressTracker interface {
	Add(n int64)
	Done(err error)
}
