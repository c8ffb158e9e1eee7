// Package installer runs the per-client MCP install subprocess. The
// installer writes the conduit entry into the IDE client's config; this
// package only supervises the process and reports how it exited.
package installer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	apperrors "github.com/conduit-dev/conduit/internal/errors"
	"github.com/conduit-dev/conduit/internal/events"
	"github.com/conduit-dev/conduit/internal/logger"
)

// killGrace is how long the process gets after cancellation before a
// hard kill.
const killGrace = 3 * time.Second

// stderrTailLines bounds how much stderr a failure report carries.
const stderrTailLines = 20

// Result is the outcome of one installer run.
type Result struct {
	// Success is true iff the process exited 0.
	Success bool

	// ExitCode is the process exit code, -1 if it never ran or was killed.
	ExitCode int

	// Stdout and Stderr hold the full captured output.
	Stdout string
	Stderr string

	// Err is set when the process could not be run or exited nonzero.
	Err error

	// Cancelled is true when the context was cancelled; distinct from an
	// installer failure.
	Cancelled bool
}

// StderrTail returns the last few stderr lines for failure messages.
func (r *Result) StderrTail() string {
	lines := strings.Split(strings.TrimRight(r.Stderr, "\n"), "\n")
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	return strings.Join(lines, "\n")
}

// Runner spawns installer subprocesses.
type Runner struct {
	// Command is the installer argv; the client identifier is appended.
	Command []string

	// Bus, when set, receives a log event per captured output line.
	Bus *events.Bus
}

// NewRunner creates a runner for the configured installer command.
func NewRunner(command []string, bus *events.Bus) *Runner {
	return &Runner{Command: command, Bus: bus}
}

// Run executes the installer for one client. The API key and base URL
// travel via environment only; they never touch argv or temp files.
func (r *Runner) Run(ctx context.Context, projectID, client, apiKey, apiBaseURL, workDir string) Result {
	if len(r.Command) == 0 {
		return Result{
			ExitCode: -1,
			Err:      apperrors.NewConfigurationError("installer command is not configured", nil),
		}
	}

	args := append(append([]string{}, r.Command[1:]...), client)
	cmd := exec.CommandContext(ctx, r.Command[0], args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"CONDUIT_API_KEY="+apiKey,
		"CONDUIT_API_URL="+apiBaseURL,
	)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = killGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1, Err: apperrors.NewTransportError("start installer", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{ExitCode: -1, Err: apperrors.NewTransportError("start installer", err)}
	}

	logger.Debugf("running installer for %s (key %s)", client, logger.Redact(apiKey))

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1, Err: apperrors.NewTransportError("start installer", err)}
	}

	var outBuf, errBuf strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)
	go r.capture(&wg, stdout, &outBuf, projectID, false)
	go r.capture(&wg, stderr, &errBuf, projectID, true)
	wg.Wait()

	waitErr := cmd.Wait()

	result := Result{
		Stdout: outBuf.String(),
		Stderr: errBuf.String(),
	}

	if ctx.Err() != nil {
		result.Cancelled = true
		result.ExitCode = -1
		result.Err = apperrors.NewCancelledError("install cancelled", ctx.Err())
		return result
	}

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			result.Err = fmt.Errorf("installer exited with code %d: %s",
				result.ExitCode, result.StderrTail())
		} else {
			result.ExitCode = -1
			result.Err = apperrors.NewTransportError("installer", waitErr)
		}
		return result
	}

	result.Success = true
	result.ExitCode = 0
	return result
}

// capture reads one output stream line by line so progress reaches the
// bus while the installer is still running.
func (r *Runner) capture(wg *sync.WaitGroup, stream io.Reader, buf *strings.Builder, projectID string, isStderr bool) {
	defer wg.Done()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		if r.Bus != nil {
			r.Bus.Publish(events.NewInstallerLogEvent(projectID, line, isStderr))
		}
	}
}
