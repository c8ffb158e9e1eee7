package mcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/conduit-dev/conduit/internal/logger"
)

var errTransportClosed = errors.New("transport closed")

// StdioTransport frames JSON-RPC messages as newline-delimited JSON over
// a subprocess's stdin/stdout pipes.
type StdioTransport struct {
	writeMu sync.Mutex
	stdin   io.WriteCloser

	stdout io.ReadCloser
	lines  *bufio.Scanner

	closeOnce sync.Once
	closed    chan struct{}
}

// NewStdioTransport wraps the given pipes. The scanner buffer is sized for
// large tools/list results.
func NewStdioTransport(stdin io.WriteCloser, stdout io.ReadCloser) *StdioTransport {
	lines := bufio.NewScanner(stdout)
	lines.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &StdioTransport{
		stdin:  stdin,
		stdout: stdout,
		lines:  lines,
		closed: make(chan struct{}),
	}
}

// Send writes one message followed by a newline.
func (t *StdioTransport) Send(_ context.Context, msg []byte) error {
	select {
	case <-t.closed:
		return errTransportClosed
	default:
	}

	logger.Debugf("mcp send: %s", msg)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.stdin.Write(append(msg, '\n')); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Receive returns the next non-empty line. Cancellation closes the stdout
// pipe, which is the only way to unblock the underlying read.
func (t *StdioTransport) Receive(ctx context.Context) ([]byte, error) {
	type scanned struct {
		line []byte
		err  error
	}
	ch := make(chan scanned, 1)

	go func() {
		for t.lines.Scan() {
			line := bytes.TrimSpace(t.lines.Bytes())
			if len(line) == 0 {
				continue
			}
			out := make([]byte, len(line))
			copy(out, line)
			ch <- scanned{line: out}
			return
		}
		err := t.lines.Err()
		if err == nil {
			err = io.EOF
		}
		ch <- scanned{err: err}
	}()

	select {
	case s := <-ch:
		if s.err != nil {
			return nil, fmt.Errorf("read line: %w", s.err)
		}
		logger.Debugf("mcp recv: %s", s.line)
		return s.line, nil
	case <-ctx.Done():
		_ = t.stdout.Close()
		return nil, ctx.Err()
	case <-t.closed:
		return nil, errTransportClosed
	}
}

// Close closes both pipes. Safe to call more than once.
func (t *StdioTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		inErr := t.stdin.Close()
		outErr := t.stdout.Close()
		if inErr != nil {
			err = fmt.Errorf("close stdin: %w", inErr)
		} else if outErr != nil {
			err = fmt.Errorf("close stdout: %w", outErr)
		}
	})
	return err
}
