// Package verify is the retry loop that decides whether an install
// actually works: read the client config for credentials, probe the MCP
// server, repeat until success or the attempt budget runs out.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/conduit-dev/conduit/internal/clients"
	apperrors "github.com/conduit-dev/conduit/internal/errors"
	"github.com/conduit-dev/conduit/internal/logger"
	"github.com/conduit-dev/conduit/internal/mcp"
)

const (
	// DefaultMaxAttempts is how many read+probe cycles a verify gets.
	DefaultMaxAttempts = 5

	// DefaultDelay is slept before every attempt, including the first:
	// the installer's config write may still be in flight.
	DefaultDelay = 2 * time.Second
)

// Options configures one verify run.
type Options struct {
	MaxAttempts int
	Delay       time.Duration

	// WorkDir anchors project-scoped client configs.
	WorkDir string

	// ServerCommand is the MCP server argv for probes.
	ServerCommand []string

	// ProbeTimeout bounds each individual probe.
	ProbeTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Delay <= 0 {
		o.Delay = DefaultDelay
	}
}

// Result is the outcome of a verify run.
type Result struct {
	// Verified is true when some attempt's probe succeeded.
	Verified bool

	// Tools are the tool names from the successful probe.
	Tools []string

	// Attempts is how many attempts actually ran.
	Attempts int

	// Err is the most specific diagnostic when not verified.
	Err error
}

// readCredsFunc and probeFunc exist so tests can run the loop without
// real files or subprocesses.
type readCredsFunc func(client clients.ClientType, workDir string) (*clients.Credentials, error)
type probeFunc func(ctx context.Context, opts mcp.ProbeOptions) (*mcp.ProbeResult, error)

// Verifier runs verify loops.
type Verifier struct {
	readCreds readCredsFunc
	probe     probeFunc
}

// New creates a verifier using the real config reader and prober.
func New() *Verifier {
	return &Verifier{
		readCreds: clients.ReadCredentials,
		probe:     mcp.Probe,
	}
}

// Run executes the retry loop for one client. Every attempt sleeps first,
// then reads the config, then probes. diagnostics are monotonic: once the
// file or the credentials have been seen, later misses don't regress the
// reported cause.
func (v *Verifier) Run(ctx context.Context, client clients.ClientType, opts Options) Result {
	opts.applyDefaults()

	var (
		fileEverFound  bool
		credsEverFound bool
		lastPathErr    error
		lastEntryErr   error
		lastProbeErr   error
	)

	result := Result{}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		select {
		case <-time.After(opts.Delay):
		case <-ctx.Done():
			result.Err = apperrors.NewCancelledError("verification cancelled", ctx.Err())
			return result
		}
		result.Attempts = attempt

		creds, err := v.readCreds(client, opts.WorkDir)
		if err != nil {
			if apperrors.IsNotFound(err) {
				// Entry-missing means the file itself was seen.
				if errors.Is(err, clients.ErrEntryMissing) {
					fileEverFound = true
					lastEntryErr = err
				} else {
					lastPathErr = err
				}
				logger.Debugf("verify attempt %d/%d: %v", attempt, opts.MaxAttempts, err)
				continue
			}
			result.Err = err
			return result
		}
		fileEverFound = true

		// External clients come back with placeholder tools and no key;
		// their install proof is the installer's own exit status.
		if len(creds.Tools) > 0 && creds.APIKey == "" {
			result.Verified = true
			result.Tools = creds.Tools
			return result
		}
		credsEverFound = true

		probeResult, err := v.probe(ctx, mcp.ProbeOptions{
			Command:    opts.ServerCommand,
			APIKey:     creds.APIKey,
			APIBaseURL: creds.BaseURL,
			Timeout:    opts.ProbeTimeout,
		})
		if err != nil {
			result.Err = err
			return result
		}

		if probeResult.State == mcp.ProbeSucceeded {
			result.Verified = true
			result.Tools = probeResult.Tools
			return result
		}

		lastProbeErr = probeResult.Err
		logger.Debugf("verify attempt %d/%d failed: %v", attempt, opts.MaxAttempts, probeResult.Err)
	}

	result.Err = diagnose(fileEverFound, credsEverFound, lastPathErr, lastEntryErr, lastProbeErr)
	return result
}

// diagnose picks the most specific failure cause observed across the
// whole run. A generic message only happens when nothing specific was
// ever seen, which the monotonic flags make impossible in practice.
func diagnose(fileEverFound, credsEverFound bool, lastPathErr, lastEntryErr, lastProbeErr error) error {
	switch {
	case !fileEverFound:
		if lastPathErr != nil {
			return lastPathErr
		}
		return apperrors.NewNotFoundError("config file never appeared", nil)
	case !credsEverFound:
		if lastEntryErr != nil {
			return lastEntryErr
		}
		return apperrors.NewNotFoundError("config file exists but credentials never appeared", nil)
	case lastProbeErr != nil:
		return fmt.Errorf("MCP server kept failing verification: %w", lastProbeErr)
	default:
		return fmt.Errorf("verification did not succeed")
	}
}
