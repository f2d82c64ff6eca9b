// Package process launches game servers.
package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/core/ports"
)

// Launcher starts server jars with the configured Java runtime.
type Launcher struct {
	logger *slog.Logger
}

var _ ports.ProcessLauncher = (*Launcher)(nil)

// NewLauncher creates a new launcher
func NewLauncher(logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Launcher{logger: logger}
}

// Command builds the java invocation for spec.
func Command(spec ports.LaunchSpec) []string {
	javaPath := spec.JavaPath
	if javaPath == "" {
		javaPath = "java"
	}
	memory := strconv.Itoa(spec.MemoryGB) + "G"
	args := []string{javaPath, "-Xmx" + memory, "-Xms" + memory, "-jar", spec.JarFile, "nogui"}
	return append(args, spec.Args...)
}

// Launch starts the server and watches it for spec.Grace. A process that
// exits during the grace period is reported as a failed launch.
func (l *Launcher) Launch(ctx context.Context, spec ports.LaunchSpec) (ports.Process, error) {
	if spec.MemoryGB < 1 {
		return nil, domain.NewError(domain.ErrInvalidInput, "launch", spec.WorkDir, fmt.Errorf("memory must be at least 1G"))
	}
	argv := Command(spec)
	javaPath, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, domain.NotFoundError("launch", argv[0], fmt.Errorf("java runtime not found: %w", err))
	}

	cmd := exec.Command(javaPath, argv[1:]...)
	cmd.Dir = spec.WorkDir
	cmd.Stdin = spec.Stdin
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	if spec.Detach {
		cmd.SysProcAttr = detachedAttr()
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start server: %w", err)
	}
	l.logger.Debug("server process started", "pid", cmd.Process.Pid, "dir", spec.WorkDir, "args", argv)

	p := &serverProcess{cmd: cmd, done: make(chan struct{})}
	go p.monitor()

	if spec.Grace <= 0 {
		return p, nil
	}
	timer := time.NewTimer(spec.Grace)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil, fmt.Errorf("server exited during startup: %w", p.Wait())
	case <-ctx.Done():
		cmd.Process.Kill()
		return nil, ctx.Err()
	case <-timer.C:
		return p, nil
	}
}

type serverProcess struct {
	cmd  *exec.Cmd
	mu   sync.Mutex
	err  error
	done chan struct{}
}

func (p *serverProcess) PID() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// Wait blocks until the process exits. A zero exit status is success even
// when the process was started detached.
func (p *serverProcess) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *serverProcess) monitor() {
	err := p.cmd.Wait()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		err = fmt.Errorf("server exited with status %d", exitErr.ExitCode())
	}

	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	close(p.done)
}
