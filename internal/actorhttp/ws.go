package actorhttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/arkeep-io/actorrpc/internal/session"
	"github.com/arkeep-io/actorrpc/internal/wsstate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBufferSize = 32
)

// upgrader performs the HTTP -> WebSocket handshake. Origin validation is
// left to a reverse proxy in front of the actor host, matching the
// teacher's CheckOrigin posture in server/internal/websocket/client.go.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsTransport is one socket's transportreg.Transport: readPump decodes
// inbound RPC frames and dispatches them through the bound Session,
// writePump serializes outgoing frames (replies and broadcasts) onto the
// wire — the same split-goroutine shape as the teacher's Client, adapted
// from push-only pub/sub to bidirectional request/response.
type wsTransport struct {
	id         string
	conn       *websocket.Conn
	send       chan []byte
	session    *session.Session
	attachment *wsstate.Attachment
	host       *Host
	logger     *zap.Logger
}

func (t *wsTransport) ID() string { return t.id }

// acceptWebSocket implements spec §4.6 step 3's "Upgrade: websocket -> accept,
// attach, register transport, create session, respond 101" sequence.
func (h *Host) acceptWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	transportID := r.URL.Query().Get("transportId")
	var attachment *wsstate.Attachment
	if transportID == "" {
		transportID = uuid.NewString()
		attachment = h.newAttachment(transportID)
	} else {
		var woke bool
		attachment, woke = h.rebindOrSynthesize(transportID)
		if woke {
			h.logger.Info("transport woke from hibernation", zap.String("transport_id", transportID))
		}
	}
	if err := attachment.Transition(wsstate.StateActive); err != nil {
		h.logger.Debug("attachment transition on connect", zap.Error(err))
	}

	t := &wsTransport{
		id:         transportID,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		session:    session.New(h.cfg.Target, h.cfg.Auth, h.logger, h.cfg.ProtocolVersion),
		attachment: attachment,
		host:       h,
		logger:     h.logger.With(zap.String("transport_id", transportID)),
	}

	h.transports.Register(t)
	h.metrics.activeSockets.Set(float64(h.transports.Len()))

	go t.writePump()
	t.readPump()
}

// send enqueues payload for delivery, matching the teacher's non-blocking
// "full buffer means too slow" semantics: a blocked peer is dropped rather
// than stalling the broadcaster.
func (t *wsTransport) send_(b []byte) error {
	select {
	case t.send <- b:
		return nil
	default:
		t.conn.Close()
		return errTransportBackedUp
	}
}

// send marshals payload exactly like the composed broadcast helper (strings
// verbatim, everything else JSON) and enqueues it.
func (t *wsTransport) send(payload any) error {
	if s, ok := payload.(string); ok {
		return t.send_([]byte(s))
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return t.send_(b)
}

func (t *wsTransport) readPump() {
	var readErr error
	defer func() {
		t.host.transports.Remove(t.id)
		t.host.metrics.activeSockets.Set(float64(t.host.transports.Len()))
		t.host.finishAttachment(t.id, t.attachment, readErr)
		close(t.send)
		t.conn.Close()
	}()

	t.conn.SetReadLimit(maxMessageSize)
	_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			readErr = err
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				t.logger.Warn("ws unexpected close", zap.Error(err))
			}
			return
		}

		reply, err := t.host.dispatchMessage(t, raw)
		if err != nil {
			t.logger.Debug("frame handling failed", zap.Error(err))
			continue
		}
		if reply == nil {
			continue
		}
		if sendErr := t.send_(reply); sendErr != nil {
			return
		}
	}
}

// isCleanClose reports whether err is the peer's own normal/going-away
// close frame as opposed to a network failure or read timeout.
func isCleanClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func (t *wsTransport) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		t.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-t.send:
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = t.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := t.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				t.logger.Warn("ws write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.logger.Warn("ws ping error", zap.Error(err))
				return
			}
		}
	}
}
