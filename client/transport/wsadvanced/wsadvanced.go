// Package wsadvanced implements the Advanced WebSocket Transport (spec
// §4.10): from the outside it behaves like any other transport.Transport,
// internally it maintains a long-lived socket with reconnect, heartbeat,
// first-message auth, and protocol-version negotiation.
//
// Grounded on the reconnect-loop shape in
// thatcooperguy-nvremote/apps/host-agent/internal/heartbeat/websocket.go
// (exponential backoff capped at a max delay, context-cancellable sleep)
// and the teacher's ping/pong deadline management in
// server/internal/websocket/client.go, recombined for a bidirectional
// request/response transport rather than a push-only feed.
package wsadvanced

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/arkeep-io/actorrpc/rpcerr"
)

// VersionMismatchMode controls what happens when a server frame's "version"
// field fails the major-version compatibility check (spec §4.10).
type VersionMismatchMode int

const (
	ModeWarn VersionMismatchMode = iota
	ModeError
	ModeIgnore
)

// State is one node of the spec §4.10 state diagram.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

const (
	defaultBaseBackoff      = 1 * time.Second
	defaultMaxBackoff       = 30 * time.Second
	defaultBackoffMult      = 2.0
	defaultHeartbeatPeriod  = 30 * time.Second
	defaultHeartbeatTimeout = 5 * time.Second
	defaultRequestTimeout   = 30 * time.Second

	closeNormal           = 1000
	closeHeartbeatTimeout = 4000
	closeInsecureAuth     = 4002
)

// Config configures a Transport.
type Config struct {
	URL   string
	Token string
	// AllowInsecureAuth must be explicitly set to send a first-message auth
	// token over a non-TLS (ws://) URL (spec §4.10).
	AllowInsecureAuth bool

	ProtocolVersion     int
	VersionMismatchMode VersionMismatchMode

	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
	BackoffMult      float64
	MaxAttempts      int // 0 = unlimited
	// DisableJitter turns off the randomized jitter added on top of the
	// backoff delay, making reconnect wait times deterministic for tests.
	DisableJitter    bool
	HeartbeatPeriod  time.Duration
	HeartbeatTimeout time.Duration
	RequestTimeout   time.Duration

	// OnReconnecting fires before each reconnect attempt.
	OnReconnecting func(attempt, max int)
	// OnMessage receives any inbound frame with no "id" (pongs, broadcasts).
	OnMessage func(raw json.RawMessage)
	// OnError fires on transport-level failures that don't reject a
	// specific pending call (heartbeat timeout, reconnect exhaustion).
	OnError func(err error)
}

func (c *Config) setDefaults() {
	if c.BaseBackoff == 0 {
		c.BaseBackoff = defaultBaseBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.BackoffMult == 0 {
		c.BackoffMult = defaultBackoffMult
	}
	if c.HeartbeatPeriod == 0 {
		c.HeartbeatPeriod = defaultHeartbeatPeriod
	}
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
}

type callFrame struct {
	ID     int             `json:"id"`
	Method string          `json:"method"`
	Path   string          `json:"path"`
	Args   json.RawMessage `json:"args"`
}

type authFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type inboundFrame struct {
	ID      *int            `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcerr.Error   `json:"error"`
	Type    string          `json:"type"`
	Valid   bool            `json:"valid"`
	Message string          `json:"message"`
	Version int             `json:"version"`
}

type pendingCall struct {
	result json.RawMessage
	err    error
	done   chan struct{}
	once   sync.Once
}

func (p *pendingCall) settle(result json.RawMessage, err error) {
	p.once.Do(func() {
		p.result, p.err = result, err
		close(p.done)
	})
}

// Transport is the advanced WebSocket client transport.
type Transport struct {
	cfg Config

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	waiting map[int]*pendingCall
	nextID  int

	seenVersion bool

	// pongTimer fires HeartbeatTimeout after the most recently sent ping if
	// no pong arrives first, independent of the heartbeat ticker's own
	// period — this is what bounds dead-peer detection to
	// HeartbeatPeriod+HeartbeatTimeout rather than up to 2xHeartbeatPeriod.
	pongTimer *time.Timer

	// pingLimiter paces outgoing pings to at most one per HeartbeatPeriod;
	// heartbeatLoop's ticker is the only caller of sendPing.
	pingLimiter *rate.Limiter

	closeOnce sync.Once
	stop      chan struct{}
}

// Connect dials cfg.URL, performs first-message auth if configured, and
// starts the background reconnect/heartbeat/read loop. It blocks until the
// first connection attempt either succeeds or is rejected with a fatal
// error (insecure-auth-blocked, unauthorized).
func Connect(ctx context.Context, cfg Config) (*Transport, error) {
	cfg.setDefaults()

	t := &Transport{
		cfg:         cfg,
		waiting:     make(map[int]*pendingCall),
		stop:        make(chan struct{}),
		pingLimiter: rate.NewLimiter(rate.Every(cfg.HeartbeatPeriod), 1),
	}

	t.setState(StateConnecting)
	if err := t.dialAndAuth(ctx); err != nil {
		t.setState(StateClosed)
		return nil, err
	}
	t.setState(StateConnected)

	go t.readLoop()
	go t.heartbeatLoop()

	return t, nil
}

func isInsecureURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	return u.Scheme == "ws"
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// dialAndAuth opens the socket and, if a token is configured, sends it as
// the first frame and waits for the auth_result frame before returning.
//
// The insecure-auth-blocked check runs after the dial, not before it: spec
// §4.10/S5 requires the socket to actually exist and be closed with code
// 4002, not merely for the caller to receive an error with no frame ever
// sent over the wire.
func (t *Transport) dialAndAuth(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.cfg.URL, nil)
	if err != nil {
		return rpcerr.Wrap(rpcerr.CodeConnectionFailed, err)
	}

	if t.cfg.Token != "" && !t.cfg.AllowInsecureAuth && isInsecureURL(t.cfg.URL) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeInsecureAuth, "refusing to send auth token over an insecure URL"),
			time.Now().Add(time.Second))
		conn.Close()
		return rpcerr.New(rpcerr.CodeInsecureAuthBlocked, "refusing to send auth token over an insecure URL")
	}

	if t.cfg.Token != "" {
		frame, _ := json.Marshal(authFrame{Type: "auth", Token: t.cfg.Token})
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			conn.Close()
			return rpcerr.Wrap(rpcerr.CodeConnectionFailed, err)
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return rpcerr.Wrap(rpcerr.CodeConnectionFailed, err)
		}
		var result inboundFrame
		if err := json.Unmarshal(raw, &result); err != nil || result.Type != "auth_result" {
			conn.Close()
			return rpcerr.New(rpcerr.CodeUnauthorized, "malformed auth result")
		}
		if !result.Valid {
			conn.Close()
			return rpcerr.New(rpcerr.CodeUnauthorized, result.Message)
		}
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

// Call implements transport.Transport.
func (t *Transport) Call(ctx context.Context, path string, args json.RawMessage) (json.RawMessage, error) {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return nil, rpcerr.New(rpcerr.CodeConnectionLost, "transport closed")
	}
	t.nextID++
	id := t.nextID
	conn := t.conn
	p := &pendingCall{done: make(chan struct{})}
	t.waiting[id] = p
	t.mu.Unlock()

	frame, err := json.Marshal(callFrame{ID: id, Method: "do", Path: path, Args: args})
	if err != nil {
		return nil, err
	}
	if conn == nil || conn.WriteMessage(websocket.TextMessage, frame) != nil {
		t.forget(id)
		return nil, rpcerr.New(rpcerr.CodeConnectionLost, "no active connection")
	}

	timeout := time.NewTimer(t.cfg.RequestTimeout)
	defer timeout.Stop()

	select {
	case <-ctx.Done():
		t.forget(id)
		return nil, fmt.Errorf("wsadvanced: %w", ctx.Err())
	case <-timeout.C:
		t.forget(id)
		return nil, rpcerr.New(rpcerr.CodeTimeout, "request timed out")
	case <-p.done:
		return p.result, p.err
	}
}

func (t *Transport) forget(id int) {
	t.mu.Lock()
	delete(t.waiting, id)
	t.mu.Unlock()
}

func (t *Transport) readLoop() {
	for {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.onDisconnect(err)
			if !t.reconnect() {
				return
			}
			continue
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		t.checkVersion(frame.Version)

		switch {
		case frame.Type == "pong":
			t.disarmPongTimer()
		case frame.ID != nil:
			t.resolve(*frame.ID, frame.Result, frame.Error)
		default:
			if t.cfg.OnMessage != nil {
				t.cfg.OnMessage(raw)
			}
		}
	}
}

func (t *Transport) checkVersion(v int) {
	if v == 0 || t.seenVersion {
		return
	}
	t.seenVersion = true
	if v == t.cfg.ProtocolVersion {
		return
	}
	err := rpcerr.Newf(rpcerr.CodeProtocolVersion, "server protocol major version %d != client %d", v, t.cfg.ProtocolVersion)
	switch t.cfg.VersionMismatchMode {
	case ModeError:
		if t.cfg.OnError != nil {
			t.cfg.OnError(err)
		}
		_ = t.Close()
	case ModeWarn:
		if t.cfg.OnError != nil {
			t.cfg.OnError(err)
		}
	case ModeIgnore:
	}
}

func (t *Transport) resolve(id int, result json.RawMessage, wireErr *rpcerr.Error) {
	t.mu.Lock()
	p, ok := t.waiting[id]
	if ok {
		delete(t.waiting, id)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	if wireErr != nil {
		p.settle(nil, wireErr)
		return
	}
	p.settle(result, nil)
}

func (t *Transport) onDisconnect(err error) {
	t.disarmPongTimer()

	t.mu.Lock()
	waiting := t.waiting
	t.waiting = make(map[int]*pendingCall)
	t.conn = nil
	t.mu.Unlock()

	for _, p := range waiting {
		p.settle(nil, rpcerr.Wrap(rpcerr.CodeConnectionLost, err))
	}
}

// reconnect drives the bounded exponential backoff loop (spec §4.10). It
// returns false if the transport was closed or max attempts were exhausted.
func (t *Transport) reconnect() bool {
	if t.State() == StateClosed {
		return false
	}
	t.setState(StateReconnecting)

	attempt := 0
	for {
		attempt++
		if t.cfg.MaxAttempts > 0 && attempt > t.cfg.MaxAttempts {
			if t.cfg.OnError != nil {
				t.cfg.OnError(rpcerr.New(rpcerr.CodeConnectionLost, "max reconnect attempts exceeded"))
			}
			t.setState(StateClosed)
			return false
		}
		if t.cfg.OnReconnecting != nil {
			t.cfg.OnReconnecting(attempt, t.cfg.MaxAttempts)
		}

		select {
		case <-t.stop:
			t.setState(StateClosed)
			return false
		case <-time.After(backoffDelay(attempt, t.cfg.BaseBackoff, t.cfg.MaxBackoff, t.cfg.BackoffMult, t.cfg.DisableJitter)):
		}

		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.RequestTimeout)
		err := t.dialAndAuth(ctx)
		cancel()
		if err != nil {
			continue
		}
		t.setState(StateConnected)
		return true
	}
}

// backoffDelay computes min(base*mult^(attempt-1), max) plus up to 20%
// jitter. disableJitter skips the jitter term entirely, making the sequence
// deterministic for tests that assert exact wait times.
func backoffDelay(attempt int, base, max time.Duration, mult float64, disableJitter bool) time.Duration {
	d := time.Duration(float64(base) * math.Pow(mult, float64(attempt-1)))
	if d > max || d <= 0 {
		d = max
	}
	if disableJitter {
		return d
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 5 + 1))
	return d + jitter
}

func (t *Transport) heartbeatLoop() {
	ticker := time.NewTicker(t.cfg.HeartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.sendPing()
		}
	}
}

func (t *Transport) sendPing() {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil || !t.pingLimiter.Allow() {
		return
	}

	frame, _ := json.Marshal(struct {
		Type      string `json:"type"`
		ID        int    `json:"id"`
		Timestamp int64  `json:"timestamp"`
	}{Type: "ping", ID: 0, Timestamp: time.Now().UnixMilli()})

	if conn.WriteMessage(websocket.TextMessage, frame) != nil {
		return
	}

	t.armPongTimer(conn)
}

// armPongTimer (re)starts the independent deadline for the pong reply to the
// ping just sent. It fires at most HeartbeatTimeout after this call,
// regardless of when heartbeatLoop's ticker next fires, so a dead peer is
// detected within HeartbeatPeriod+HeartbeatTimeout of the last good pong.
func (t *Transport) armPongTimer(conn *websocket.Conn) {
	t.mu.Lock()
	if t.pongTimer != nil {
		t.pongTimer.Stop()
	}
	t.pongTimer = time.AfterFunc(t.cfg.HeartbeatTimeout, func() {
		t.onHeartbeatTimeout(conn)
	})
	t.mu.Unlock()
}

func (t *Transport) disarmPongTimer() {
	t.mu.Lock()
	if t.pongTimer != nil {
		t.pongTimer.Stop()
		t.pongTimer = nil
	}
	t.mu.Unlock()
}

// onHeartbeatTimeout fires from its own timer goroutine, not from
// heartbeatLoop, when conn hasn't returned a pong within HeartbeatTimeout.
func (t *Transport) onHeartbeatTimeout(conn *websocket.Conn) {
	if t.cfg.OnError != nil {
		t.cfg.OnError(rpcerr.New(rpcerr.CodeHeartbeatTimeout, "no pong received within heartbeat timeout"))
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeHeartbeatTimeout, "heartbeat timeout"),
		time.Now().Add(time.Second))
	conn.Close()
}

// Close is idempotent; it marks the transport user-closed (no reconnect
// engages) and fails every pending call with connection-lost.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.setState(StateClosed)
		close(t.stop)
		t.disarmPongTimer()
		t.mu.Lock()
		conn := t.conn
		waiting := t.waiting
		t.waiting = make(map[int]*pendingCall)
		t.mu.Unlock()

		for _, p := range waiting {
			p.settle(nil, rpcerr.New(rpcerr.CodeConnectionLost, "transport closed"))
		}
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(closeNormal, ""), time.Now().Add(time.Second))
			err = conn.Close()
		}
	})
	return err
}
