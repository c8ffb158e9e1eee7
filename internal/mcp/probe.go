package mcp

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
	"github.com/conduit-dev/conduit/internal/logger"
)

const (
	// DefaultProbeTimeout bounds one probe attempt end to end.
	DefaultProbeTimeout = 15 * time.Second

	// toolsListDelay is how long after initialize the tools/list request
	// is sent. Some servers need a beat to register their tools.
	toolsListDelay = 300 * time.Millisecond

	// probeKillGrace is how long the server process gets after the
	// outcome is known before a hard kill.
	probeKillGrace = 2 * time.Second
)

// ProbeState is the explicit three-state probe outcome.
type ProbeState string

const (
	// ProbePending means no terminal event has happened yet.
	ProbePending ProbeState = "pending"
	// ProbeSucceeded means a tools list came back.
	ProbeSucceeded ProbeState = "succeeded"
	// ProbeFailed means an error envelope, fatal stderr, process exit,
	// or timeout happened first.
	ProbeFailed ProbeState = "failed"
)

// ProbeResult is the outcome of one probe attempt.
type ProbeResult struct {
	State ProbeState
	Tools []string
	Err   error
}

// ProbeOptions configures one probe attempt.
type ProbeOptions struct {
	// Command is the MCP server argv.
	Command []string

	// APIKey and APIBaseURL are injected via environment, same contract
	// as the installed client entry.
	APIKey     string
	APIBaseURL string

	// Timeout bounds the whole attempt. Zero means DefaultProbeTimeout.
	Timeout time.Duration
}

// resolver collapses concurrent terminal events into exactly one outcome.
// Whichever of stdout classification, stderr heuristic, process exit, or
// timeout fires first wins; later events are ignored.
type resolver struct {
	once sync.Once
	ch   chan ProbeResult
}

func newResolver() *resolver {
	return &resolver{ch: make(chan ProbeResult, 1)}
}

func (r *resolver) resolve(result ProbeResult) {
	r.once.Do(func() {
		r.ch <- result
	})
}

// Probe spawns the server and runs the initialize + tools/list handshake.
// The returned result is always terminal (succeeded or failed); the error
// return is only for setup problems before the process started.
func Probe(ctx context.Context, opts ProbeOptions) (*ProbeResult, error) {
	if len(opts.Command) == 0 {
		return nil, apperrors.NewConfigurationError("MCP server command is not configured", nil)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultProbeTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, opts.Command[0], opts.Command[1:]...)
	cmd.Env = append(os.Environ(),
		"CONDUIT_API_KEY="+opts.APIKey,
		"CONDUIT_API_URL="+opts.APIBaseURL,
	)
	cmd.WaitDelay = probeKillGrace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, apperrors.NewTransportError("start MCP server", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperrors.NewTransportError("start MCP server", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, apperrors.NewTransportError("start MCP server", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, apperrors.NewTransportError("start MCP server", err)
	}

	transport := NewStdioTransport(stdin, stdout)
	res := newResolver()

	go watchStdout(ctx, transport, res)
	go watchStderr(stderr, res)
	go runHandshake(ctx, transport, res)

	var result ProbeResult
	select {
	case result = <-res.ch:
	case <-ctx.Done():
		res.resolve(ProbeResult{
			State: ProbeFailed,
			Err:   apperrors.NewTimeoutError(fmt.Sprintf("MCP server did not respond within %s", timeout), ctx.Err()),
		})
		result = <-res.ch
	}

	// Tear the process down regardless of outcome; the probe never
	// leaves the server running.
	_ = transport.Close()
	cancel()
	_ = cmd.Wait()

	return &result, nil
}

// runHandshake drives the request side: initialize, the initialized
// notification, then tools/list after a short delay.
func runHandshake(ctx context.Context, transport Transport, res *resolver) {
	send := func(build func() ([]byte, error)) bool {
		msg, err := build()
		if err == nil {
			err = transport.Send(ctx, msg)
		}
		if err != nil {
			if ctx.Err() == nil {
				res.resolve(ProbeResult{
					State: ProbeFailed,
					Err:   apperrors.NewTransportError("write to MCP server", err),
				})
			}
			return false
		}
		return true
	}

	if !send(newInitializeRequest) {
		return
	}
	if !send(newInitializedNotification) {
		return
	}

	select {
	case <-time.After(toolsListDelay):
	case <-ctx.Done():
		return
	}

	send(newToolsListRequest)
}

// watchStdout classifies incoming lines until one resolves the probe.
func watchStdout(ctx context.Context, transport Transport, res *resolver) {
	for {
		line, err := transport.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil {
				res.resolve(ProbeResult{
					State: ProbeFailed,
					Err:   apperrors.NewTransportError("MCP server closed its output", err),
				})
			}
			return
		}

		switch outcome, tools, lineErr := classifyLine(line); outcome {
		case lineTools:
			res.resolve(ProbeResult{State: ProbeSucceeded, Tools: tools})
			return
		case lineError:
			res.resolve(ProbeResult{
				State: ProbeFailed,
				Err:   apperrors.NewProviderError("MCP server reported an error", lineErr),
			})
			return
		}
	}
}

// watchStderr applies the fatal-line heuristic: lines containing "error"
// or "failed" (case-insensitive) fail the probe early; everything else is
// diagnostic noise and only logged.
func watchStderr(stream io.Reader, res *resolver) {
	scanner := bufio.NewScanner(stream)
	for scanner.Scan() {
		line := scanner.Text()
		if isFatalStderrLine(line) {
			res.resolve(ProbeResult{
				State: ProbeFailed,
				Err:   apperrors.NewProviderError(fmt.Sprintf("MCP server: %s", line), nil),
			})
			return
		}
		logger.Debugf("mcp stderr: %s", line)
	}
}

func isFatalStderrLine(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "error") || strings.Contains(lower, "failed")
}
