package chat

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// State is a position in the session's handshake/lifecycle state
// machine.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateConnecting
	StateConnected
	StateJoined
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const defaultPingInterval = 60 * time.Second

// ticker is the minimal interface Session needs from a clock, so
// tests can drive keepalive cadence deterministically instead of
// waiting on a real 60-second timer.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Config configures a Session. The zero value is valid; unset fields
// take documented defaults.
type Config struct {
	// InsecureSkipVerify disables TLS peer verification on the
	// WebSocket dial. Defaults to false (verify). This is a
	// development-only escape hatch, never the default posture.
	InsecureSkipVerify bool

	// Logger receives structured logs for the session's lifecycle.
	// Defaults to slog.Default().
	Logger *slog.Logger

	// HTTPClient is used by the Resolver. A nil client builds the
	// Resolver's own HTTP/2-capable default.
	HTTPClient *http.Client

	// Dialer is used for the WebSocket handshake. A nil dialer builds
	// one with InsecureSkipVerify applied to its TLS config.
	Dialer *websocket.Dialer

	// PingInterval is the keepalive cadence once joined. Defaults to 60s.
	PingInterval time.Duration

	// SendRateLimit and SendBurst bound outbound CONNECT/JOIN/PING
	// sends, guarding against a caller invoking Run in a tight loop.
	// Defaults to 50 events/sec with a burst of 10, matching the
	// pack's outbound-call throttling convention.
	SendRateLimit rate.Limit
	SendBurst     int

	// newTicker builds the keepalive ticker; overridable in tests.
	newTicker func(time.Duration) ticker
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.PingInterval == 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.SendRateLimit == 0 {
		c.SendRateLimit = 50
	}
	if c.SendBurst == 0 {
		c.SendBurst = 10
	}
	if c.newTicker == nil {
		c.newTicker = newRealTicker
	}
	if c.Dialer == nil {
		c.Dialer = &websocket.Dialer{
			Subprotocols:    []string{"chat"},
			TLSClientConfig: &tls.Config{InsecureSkipVerify: c.InsecureSkipVerify},
		}
	}
	return c
}

// Session drives one room's resolve → connect → join → active →
// closing → closed lifecycle. A Session is used once: construct with
// NewSession, Subscribe handlers, then call Run.
type Session struct {
	id       string
	cfg      Config
	resolver *Resolver
	dispatch *Dispatcher
	limiter  *rate.Limiter

	stateMu sync.Mutex
	state   State
	room    RoomDescriptor

	connMu sync.Mutex
	conn   *websocket.Conn

	cancel context.CancelFunc

	disconnectOnce sync.Once
	closeOnce      sync.Once
	closed         chan struct{}
}

// NewSession builds a Session ready to Run. cfg's zero value is valid.
func NewSession(cfg Config) *Session {
	cfg = cfg.withDefaults()
	id := uuid.NewString()
	logger := cfg.Logger.With("session_id", id)
	return &Session{
		id:       id,
		cfg:      cfg,
		resolver: NewResolver(cfg.HTTPClient),
		dispatch: NewDispatcher(func(kind Kind, r any) {
			logger.Error("chat: handler panicked", "kind", kind.String(), "panic", r)
		}),
		limiter: rate.NewLimiter(cfg.SendRateLimit, cfg.SendBurst),
		state:   StateIdle,
		closed:  make(chan struct{}),
	}
}

// Subscribe registers handler to run, in registration order and on
// the Session's receive goroutine, whenever an event of kind is
// dispatched. Must be called before Run.
func (s *Session) Subscribe(kind Kind, handler Handler) {
	s.dispatch.Subscribe(kind, handler)
}

// State reports the session's current position in its lifecycle.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// Run drives the full lifecycle for roomID until the context is
// cancelled, Close is called, or the peer closes the session. It
// returns the terminal error, if any: *NotLiveError, *ResolveError,
// or *HandshakeError end the session before a socket is ever opened,
// and *ProtocolError reports a failed CONNECT or JOIN send. Once the
// receive loop is running, a server disconnect, cancellation, Close,
// a socket read error or a failed PING all return nil; the
// DisconnectEvent's Reason and ErrorKind tell them apart.
func (s *Session) Run(ctx context.Context, roomID string) error {
	s.setState(StateResolving)
	room, err := s.resolver.Resolve(ctx, roomID)
	if err != nil {
		s.setState(StateClosed)
		s.closeOnce.Do(func() { close(s.closed) })
		return err
	}
	s.room = room

	return s.runFromURL(ctx, room.WebSocketURL(roomID))
}

// runFromURL drives the connecting → closed portion of the lifecycle
// against an already-resolved WebSocket URL. Split out from Run so
// tests can point a Session at a local WebSocket server without going
// through the HTTP resolve step.
func (s *Session) runFromURL(ctx context.Context, wsURL string) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	logger := s.cfg.Logger.With("session_id", s.id)

	s.setState(StateConnecting)
	conn, _, err := s.cfg.Dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		s.setState(StateClosed)
		s.closeOnce.Do(func() { close(s.closed) })
		return &HandshakeError{URL: wsURL, Cause: err}
	}
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	s.setState(StateConnected)
	logger.Info("chat: connected", "url", wsURL)

	if err := s.send(ctx, EncodeConnect()); err != nil {
		s.teardown(logger, "connect send failed", "protocol_error")
		return &ProtocolError{Stage: "connect", Cause: err}
	}

	// watcher: cancellation unblocks a blocked ReadMessage by closing
	// the connection out from under it.
	go func() {
		<-ctx.Done()
		s.connMu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.connMu.Unlock()
	}()

	var keepaliveDone chan struct{}
	startKeepalive := func() {
		keepaliveDone = make(chan struct{})
		go s.runKeepalive(ctx, logger, keepaliveDone)
	}

	for {
		_, raw, err := s.readMessage()
		if err != nil {
			s.teardown(logger, err.Error(), "read_error")
			if keepaliveDone != nil {
				<-keepaliveDone
			}
			return nil
		}

		now := time.Now()
		frame, ferr := DecodeFrame(raw)
		if ferr != nil {
			logger.Warn("chat: dropping malformed frame", "error", ferr)
			continue
		}

		s.dispatch.emit(RawEvent{base: newBase(now), Data: raw})

		switch s.State() {
		case StateConnected:
			if frame.TypeCode == TypeConnect {
				s.setState(StateJoined)
				if err := s.send(ctx, EncodeJoin(s.room.ChatNo)); err != nil {
					s.teardown(logger, "join send failed", "protocol_error")
					if keepaliveDone != nil {
						<-keepaliveDone
					}
					return &ProtocolError{Stage: "join", Cause: err}
				}
				startKeepalive()
			}
		case StateJoined:
			if frame.TypeCode == TypeEnterChatRoom {
				s.setState(StateActive)
			}
		}

		if frame.TypeCode == TypeDisconnect {
			s.teardown(logger, "server disconnect", "")
			if keepaliveDone != nil {
				<-keepaliveDone
			}
			return nil
		}

		s.dispatch.emit(decodeEvent(frame, now))
	}
}

func (s *Session) readMessage() (int, []byte, error) {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return 0, nil, fmt.Errorf("chat: no connection")
	}
	return conn.ReadMessage()
}

func (s *Session) send(ctx context.Context, payload []byte) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("chat: no connection")
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (s *Session) runKeepalive(ctx context.Context, logger *slog.Logger, done chan struct{}) {
	defer close(done)
	t := s.cfg.newTicker(s.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if err := s.send(ctx, EncodePing()); err != nil {
				logger.Warn("chat: ping failed", "error", err)
				s.teardown(logger, "ping send failed", "protocol_error")
				return
			}
		}
	}
}

// teardown releases the connection and cancels the session's
// context, then emits the disconnect event exactly once. Resources
// are released before disconnect is emitted so subscribers can assume
// the session is fully torn down when they see it.
func (s *Session) teardown(logger *slog.Logger, reason, errorKind string) {
	s.setState(StateClosing)

	if s.cancel != nil {
		s.cancel()
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	s.setState(StateClosed)

	s.disconnectOnce.Do(func() {
		logger.Info("chat: disconnected", "reason", reason)
		s.dispatch.emit(DisconnectEvent{
			base:      newBase(time.Now()),
			Reason:    reason,
			ErrorKind: errorKind,
		})
	})

	s.closeOnce.Do(func() { close(s.closed) })
}

// Close is idempotent and safe to call from any goroutine. Once Run
// has reached the WebSocket dial, Close cancels the session, which
// drives it to closing then closed and emits disconnect exactly once,
// and waits up to 5 seconds for that to finish; calling it after the
// session has already ended is a no-op. Before the dial (idle or
// resolving), Close does not stop the session: it waits up to 5
// seconds for the session to end and then returns.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case <-s.closed:
	case <-time.After(5 * time.Second):
	}
}
