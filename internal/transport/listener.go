// Package transport owns the TLS accept loop and per-connection
// session state machine (C8): a plain net.Listener wrapped in TLS,
// handing each accepted connection to a session that reads requests
// with net/http.ReadRequest and writes responses back by hand,
// mirroring the reference implementation's Listener/Session split
// (original_source/src/server/{Listener,Session}.cpp) without an
// async reactor — Go's blocking-per-goroutine model replaces
// Boost.Asio's callback chain directly.
package transport

import (
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"novachat/internal/httpapi"
)

// Dispatcher resolves a request to a response. *router.Router
// satisfies this without transport importing the router package,
// keeping the dependency direction router -> httpapi, transport ->
// httpapi, wired together only in internal/server.
type Dispatcher interface {
	Dispatch(req *httpapi.Request) *httpapi.Response
}

// Config bounds every timing aspect of a connection's lifecycle,
// named after the reference implementation's TIMEOUT_* constants.
type Config struct {
	HandshakeTimeout time.Duration
	ReadWriteTimeout time.Duration
	ShutdownTimeout  time.Duration
	MaxRequestBytes  int64
}

// DefaultConfig mirrors Session.cpp's TIMEOUT_HANDSHAKE=30s,
// TIMEOUT_READ_WRITE=30s, TIMEOUT_SHUTDOWN=5s, and a generous request
// body ceiling the original leaves to Boost.Beast's own buffer limit.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 30 * time.Second,
		ReadWriteTimeout: 30 * time.Second,
		ShutdownTimeout:  5 * time.Second,
		MaxRequestBytes:  1 << 20,
	}
}

// Listener accepts TLS connections and spawns one session goroutine
// per connection, matching Listener::onAccept spawning one Session
// per accepted socket.
type Listener struct {
	ln         net.Listener
	dispatcher Dispatcher
	log        *slog.Logger
	cfg        Config

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// Listen opens a TLS listener on address and returns a Listener ready
// for Serve. tlsConfig must already carry the server certificate.
func Listen(address string, tlsConfig *tls.Config, dispatcher Dispatcher, log *slog.Logger, cfg Config) (*Listener, error) {
	ln, err := tls.Listen("tcp", address, tlsConfig)
	if err != nil {
		return nil, err
	}
	if log != nil {
		log.Info("listener created", "address", address)
	}
	return &Listener{ln: ln, dispatcher: dispatcher, log: log, cfg: cfg}, nil
}

// Addr returns the bound network address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve blocks accepting connections until Close is called, at which
// point it returns nil. Each connection is served on its own
// goroutine; nothing here or in internal/server caps how many
// connections are served concurrently.
func (l *Listener) Serve() error {
	if l.log != nil {
		l.log.Info("starting listener")
	}
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.isClosing() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if l.log != nil {
				l.log.Error("accept error", "error", err)
			}
			continue
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			s := newSession(conn, l.dispatcher, l.log, l.cfg)
			s.run()
		}()
	}
}

// Close stops accepting new connections. In-flight sessions continue
// until they close on their own; Shutdown only waits for them up to its
// deadline and does not close them.
func (l *Listener) Close() error {
	l.mu.Lock()
	l.closing = true
	l.mu.Unlock()
	err := l.ln.Close()
	if l.log != nil {
		if err != nil {
			l.log.Error("error stopping listener", "error", err)
		} else {
			l.log.Info("listener stopped")
		}
	}
	return err
}

// Shutdown closes the listener, then waits up to cfg.ShutdownTimeout
// for in-flight sessions to finish. This is TIMEOUT_SHUTDOWN's own
// short window (matching Session::doClose's own shutdown deadline),
// suitable for standalone use of a Listener; the server-level
// GRACEFUL_SHUTDOWN_TIMEOUT{30}/SHUTDOWN_CHECK_INTERVAL{1} drain loop
// from Server::waitForGracefulShutdown is a separate, longer-running
// concern layered on top by DrainWithPoll.
func (l *Listener) Shutdown() {
	_ = l.Close()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(l.cfg.ShutdownTimeout):
		if l.log != nil {
			l.log.Warn("shutdown timed out waiting for sessions to drain")
		}
	}
}

// DrainWithPoll closes the listener, then polls every interval, up to
// timeout, for every in-flight session to finish, matching
// Server::waitForGracefulShutdown's steady_clock loop: it sleeps
// SHUTDOWN_CHECK_INTERVAL between checks and logs elapsed time each
// pass. Reports whether every session drained naturally before the
// deadline.
func (l *Listener) DrainWithPoll(timeout, interval time.Duration) bool {
	_ = l.Close()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	startTime := time.Now()
	deadline := startTime.Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			if l.log != nil {
				l.log.Debug("all sessions drained")
			}
			return true
		case <-ticker.C:
			if time.Now().After(deadline) {
				if l.log != nil {
					l.log.Warn("graceful shutdown timeout exceeded, forcing shutdown")
				}
				return false
			}
			if l.log != nil {
				l.log.Debug("waiting for shutdown", "elapsed", time.Since(startTime).Round(time.Second))
			}
		}
	}
}

func (l *Listener) isClosing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closing
}
