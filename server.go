/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package goftpd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// DeadlineListener is a net.Listener that supports deadlines, letting Serve's
// accept loop notice ctx cancellation promptly instead of blocking forever
// in Accept.
type DeadlineListener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

// Option sets optional Server behavior; required behavior is set in
// NewServer.
type Option func(s *Server)

// SetLoginTimeout overrides the default TimeoutLogin duration (the window a
// client has to complete USER/PASS before the control connection is closed
// with a 421).
func SetLoginTimeout(d time.Duration) Option {
	return func(s *Server) { s.loginTimeout = d }
}

const defaultLoginTimeout = 30 * time.Second

// loginBackstop bounds the 421 write once the login timer has expired, so a
// peer that stops reading cannot hold the connection open past
// loginTimeout+loginBackstop.
const loginBackstop = 10 * time.Second

// NewServer returns a new Server. l is the structured logger, h is the
// initial Handler every new connection starts in (ordinarily a
// gatekeeper.Gatekeeper awaiting USER).
func NewServer(l Logger, h Handler, opts ...Option) *Server {
	s := &Server{
		Logger:       l,
		initial:      h,
		registry:     newSessionRegistry(),
		loginTimeout: defaultLoginTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Server accepts control-channel connections and drives each through its
// Handler chain, one goroutine per connection.
type Server struct {
	Logger

	initial      Handler
	registry     *sessionRegistry
	loginTimeout time.Duration

	active int
}

// SetHandler sets the Handler every new connection starts in. Lets a daemon
// build the Server first and hand it to its initial Handler (e.g. a
// gatekeeper.Gatekeeper that needs to query Counts for admission control)
// before wiring the Handler back with SetHandler.
func (s *Server) SetHandler(h Handler) {
	s.initial = h
}

// Counts reports the current total session count and the count for the
// given peer host, letting admission control (MaxClients/MaxClientsPerHost)
// live outside this package.
func (s *Server) Counts(host string) (total, perHost int) {
	return s.registry.Counts(host)
}

// Serve blocks, accepting connections from listener until ctx is canceled or
// the listener returns a non-temporary error.
func (s *Server) Serve(ctx context.Context, listener DeadlineListener) error {
	defer func() {
		s.Infof(ctx, "stopping listener %v", listener.Addr())
		if err := listener.Close(); err != nil {
			s.Errorf(ctx, "closing listener: %s", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			// mirrors the teacher's bounded accept-deadline loop: without it
			// a canceled ctx would not be noticed until the next connection
			// arrived.
			if err := listener.SetDeadline(time.Now().Add(10 * time.Second)); err != nil {
				s.Errorf(ctx, "cannot set listener deadline: %s", err)
			}
			conn, err := listener.Accept()
			if err != nil {
				var opE *net.OpError
				if errors.As(err, &opE) {
					if opE.Temporary() {
						continue
					}
					serveAcceptedError.Inc()
					return nil
				}
				s.Errorf(ctx, "accept: %s", err)
				serveAcceptedError.Inc()
				continue
			}
			timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
				connectionDuration.Observe(v * 1000)
			}))
			serveAccepted.Inc()
			go func() {
				s.handle(ctx, conn)
				serveAccepted.Dec()
				timer.ObserveDuration()
			}()
		}
	}
}

// handle drives one connection's control channel: a USER/PASS exchange
// bounded by TimeoutLogin/backstop, followed by whatever the Gatekeeper
// chains to on success. Meant to run in its own goroutine.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	reqID := uuid.New().String()
	ctx = context.WithValue(ctx, ContextReqID, reqID)
	ctx = context.WithValue(ctx, ContextConnRemoteAddr, stripPort(conn.RemoteAddr().String()))

	session := &SessionContext{
		ID:         reqID,
		RemoteAddr: conn.RemoteAddr(),
	}

	total, perHost := s.registry.Add(session)
	s.Debugf(ctx, "session %s admitted (total=%d perHost=%d)", session.ID, total, perHost)
	defer s.registry.Remove(session.ID, session.RemoteAddr)

	bw := bufio.NewWriter(conn)
	resp := newResponse(bw)

	if err := resp.Reply(NewReply(StatusReady, "Service ready.")); err != nil {
		s.Errorf(ctx, "writing banner to %s: %s", conn.RemoteAddr(), err)
		return
	}

	scanner := bufio.NewScanner(conn)
	handler := s.initial

	// the login timer runs from connection start and is not re-armed per
	// command line: USER/PASS must complete within loginTimeout.
	if err := conn.SetReadDeadline(time.Now().Add(s.loginTimeout)); err != nil {
		s.Errorf(ctx, "set read deadline on %s: %s", conn.RemoteAddr(), err)
	}

	for {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				var netErr net.Error
				if !session.LoggedIn && errors.As(err, &netErr) && netErr.Timeout() {
					loginTimeouts.Inc()
					_ = conn.SetWriteDeadline(time.Now().Add(loginBackstop))
					_ = resp.Reply(NewReply(StatusTimeout, fmt.Sprintf(TextLoginTimeoutFmt, int(s.loginTimeout/time.Second))))
					return
				}
				s.Debugf(ctx, "closing connection to %s: %s", conn.RemoteAddr(), err)
			}
			return
		}

		req := NewRequest(ctx, scanner.Text(), session)
		handlersActive.Inc()
		err := handler.Handle(req, resp)
		handlersActive.Dec()
		if err != nil {
			s.Errorf(ctx, "handler error for %s: %s", conn.RemoteAddr(), err)
			return
		}

		if next := resp.popNext(); next != nil {
			handler = next
		} else {
			handler = s.initial
		}

		if session.LoggedIn {
			// once established, this connection is no longer this package's
			// concern; post-login command modules take over on the same
			// conn/scanner outside the auth/session-establishment core.
			return
		}
	}
}

// stripPort removes the :port suffix from a v4 or v6 address string.
func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	if i := strings.LastIndex(addr, ":"); i != -1 {
		return addr[:i]
	}
	return addr
}
