package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"syscall"

	apperrors "github.com/conduit-dev/conduit/internal/errors"
)

// ErrPortInUse indicates the fixed callback port is already bound,
// usually by another login attempt still in progress.
var ErrPortInUse = errors.New("callback port already in use")

// CallbackResult holds the query parameters delivered to the redirect URI.
type CallbackResult struct {
	// Code is the authorization code from the callback.
	Code string

	// State is the state parameter from the callback.
	State string

	// Error is the error code if authorization failed.
	Error string

	// ErrorDescription provides more detail about the error.
	ErrorDescription string
}

// CallbackServer is a loopback HTTP server that receives the OAuth
// redirect. It binds a fixed port because the client registration
// carries an exact redirect URI.
type CallbackServer struct {
	listener net.Listener
	server   *http.Server
	result   chan CallbackResult
	port     int
	mu       sync.Mutex
	started  bool
}

// NewCallbackServer binds 127.0.0.1 on the given port.
func NewCallbackServer(port int) (*CallbackServer, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, apperrors.NewConfigurationError(
				fmt.Sprintf("port %d is already in use; is another login in progress?", port),
				ErrPortInUse)
		}
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}

	cs := &CallbackServer{
		listener: listener,
		result:   make(chan CallbackResult, 1),
		port:     listener.Addr().(*net.TCPAddr).Port,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", cs.handleCallback)

	cs.server = &http.Server{Handler: mux}

	return cs, nil
}

// Port returns the port the server is listening on.
func (s *CallbackServer) Port() int {
	return s.port
}

// RedirectURI returns the redirect URI to use for the authorization request.
func (s *CallbackServer) RedirectURI() string {
	return fmt.Sprintf("http://127.0.0.1:%d/callback", s.port)
}

// Start begins serving HTTP requests.
func (s *CallbackServer) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.mu.Unlock()

	go s.server.Serve(s.listener)
	return nil
}

// Wait blocks until a callback is received or the context is cancelled.
func (s *CallbackServer) Wait(ctx context.Context) (*CallbackResult, error) {
	select {
	case result := <-s.result:
		return &result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop shuts down the server.
func (s *CallbackServer) Stop() error {
	return s.server.Shutdown(context.Background())
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	result := CallbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	// Non-blocking in case Wait isn't running.
	select {
	case s.result <- result:
	default:
	}

	if result.Error != "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Conduit - Sign-in Failed</title></head>
<body style="font-family: sans-serif; padding: 40px; text-align: center;">
<h1>Sign-in Failed</h1>
<p>Error: %s</p>
<p>%s</p>
<p>You can close this window.</p>
</body>
</html>`, result.Error, result.ErrorDescription)
		return
	}

	if result.Code == "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Conduit - Error</title></head>
<body style="font-family: sans-serif; padding: 40px; text-align: center;">
<h1>Error</h1>
<p>No authorization code received.</p>
<p>You can close this window.</p>
</body>
</html>`)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Conduit - Signed In</title></head>
<body style="font-family: sans-serif; padding: 40px; text-align: center;">
<h1>&#10003; Signed In</h1>
<p>You can close this window and return to your terminal.</p>
</body>
</html>`)
}
