// Package actorhttp implements the Actor Host (spec §4.6): for each inbound
// request it captures the request, runs plugin onFetch hooks, then routes
// to the schema document, a WebSocket upgrade, or the HTTP batch handler.
// Grounded on the teacher's server/internal/api router/middleware/ws
// construction, scoped down from a multi-resource REST API to the single
// per-actor fetch dispatch the spec describes.
package actorhttp

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arkeep-io/actorrpc/capnwire"
	"github.com/arkeep-io/actorrpc/internal/plugin"
	"github.com/arkeep-io/actorrpc/internal/schema"
	"github.com/arkeep-io/actorrpc/internal/session"
	"github.com/arkeep-io/actorrpc/internal/sqlstore"
	"github.com/arkeep-io/actorrpc/internal/surface"
	"github.com/arkeep-io/actorrpc/internal/transportreg"
	"github.com/arkeep-io/actorrpc/internal/wsstate"
)

// Config gathers everything a Host needs to serve one actor instance.
type Config struct {
	ActorID         string
	Target          capnwire.Target
	Surface         *surface.Surface
	Store           *sqlstore.Store // optional: nil actors have no SQL sub-schema
	Auth            session.AuthValidator
	ProtocolVersion int
	Colo            string
	Logger          *zap.Logger
	OnFetch         []plugin.OnFetcher // optional plugin hooks, registration order
}

// Host serves one actor instance's HTTP surface: schema document, WebSocket
// upgrade, and batch RPC, plus /__metrics.
type Host struct {
	cfg        Config
	logger     *zap.Logger
	transports *transportreg.Registry
	metrics    *metrics
	router     http.Handler

	mu          sync.Mutex
	dispatchMu  sync.Mutex // serializes RPC dispatch for this actor (spec §5)
	attachments map[string]*wsstate.Attachment
}

// NewHost builds a Host ready to serve cfg.ActorID.
func NewHost(cfg Config) *Host {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Host{
		cfg:         cfg,
		logger:      logger.Named("actorhttp").With(zap.String("actor_id", cfg.ActorID)),
		transports:  transportreg.New(logger),
		metrics:     newMetrics(cfg.ActorID),
		attachments: make(map[string]*wsstate.Attachment),
	}
	h.router = h.buildRouter()
	return h
}

func (h *Host) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chimw.Recoverer)
	r.HandleFunc("/*", h.fetch)
	return r
}

// Handler returns the http.Handler that implements the actor's fetch entry
// point, suitable for mounting under a gateway router (internal/router).
func (h *Host) Handler() http.Handler { return h.router }

// fetch realizes spec §4.6's numbered steps: capture request, run onFetch
// hooks, then route by upgrade header / path / method.
func (h *Host) fetch(w http.ResponseWriter, r *http.Request) {
	composed := h.composedContext(r)

	for _, hook := range h.cfg.OnFetch {
		if err := hook.OnFetch(r, composed); err != nil {
			writeRPCError(w, err)
			return
		}
	}

	switch {
	case isWebSocketUpgrade(r):
		h.acceptWebSocket(w, r)
	case r.Method == http.MethodGet && (r.URL.Path == "/" || r.URL.Path == "/__schema"):
		h.serveSchema(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/__metrics":
		promhttp.HandlerFor(h.metrics.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	case r.Method == http.MethodPost:
		h.serveBatch(w, r)
	default:
		writeMethodNotAllowed(w)
	}
}

func (h *Host) composedContext(r *http.Request) *plugin.Context {
	return &plugin.Context{Ctx: r.Context(), Request: r, Broadcaster: h}
}

func isWebSocketUpgrade(r *http.Request) bool {
	return r.Header.Get("Upgrade") == "websocket"
}

func (h *Host) serveSchema(w http.ResponseWriter, r *http.Request) {
	doc := schema.FromSurface(h.cfg.Surface)
	doc.Colo = h.cfg.Colo

	if h.cfg.Store != nil {
		sqlDB, err := h.cfg.Store.SQLDB()
		if err == nil {
			if dbDoc, derr := schema.DescribeDatabase(sqlDB); derr == nil {
				doc = doc.WithDatabase(dbDoc)
			} else {
				h.logger.Warn("describing database schema", zap.Error(derr))
			}
		}
	}

	if err := schema.Validate(doc); err != nil {
		h.logger.Error("schema document failed meta-schema validation", zap.Error(err))
		writeRPCError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// dispatchContext returns a background context for WebSocket-originated
// calls, which have no per-request context.Context the way an HTTP handler
// does.
func (h *Host) dispatchContext() context.Context { return context.Background() }

// dispatchMessage serializes one WebSocket frame's dispatch behind the
// per-actor mutex (spec §5: "the Actor Host serializes method dispatch for
// a given actor instance").
func (h *Host) dispatchMessage(t *wsTransport, raw []byte) ([]byte, error) {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()
	return t.session.HandleMessage(h.dispatchContext(), raw)
}

func (h *Host) serveBatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeRPCError(w, err)
		return
	}

	h.dispatchMu.Lock()
	resp, err := session.HandleBatch(r.Context(), h.cfg.Target, body)
	h.dispatchMu.Unlock()
	if err != nil {
		writeRPCError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(resp)
}

// Broadcast implements plugin.Broadcaster: it iterates every accepted
// socket and sends payload, swallowing per-socket send errors — spec §4.6
// "exceptions on a per-socket send are swallowed (socket may have just
// closed)".
func (h *Host) Broadcast(payload any) {
	h.transports.Each(func(t transportreg.Transport) {
		ws, ok := t.(*wsTransport)
		if !ok {
			return
		}
		if err := ws.send(payload); err != nil {
			h.logger.Debug("broadcast send failed, dropping", zap.String("transport_id", ws.ID()), zap.Error(err))
		}
	})
}

// ConnectionCount implements plugin.Broadcaster.
func (h *Host) ConnectionCount() int { return h.transports.Len() }

// MetricsMiddleware returns a surface.Middleware that records per-call
// metrics; callers wire it into surface.Bind alongside their own
// middleware so /__metrics reflects real RPC traffic.
func (h *Host) MetricsMiddleware() surface.Middleware { return newMetricsMiddleware(h.metrics) }

// rebindOrSynthesize returns the durable attachment for transportID,
// synthesizing a defensive one for a socket observed with none (spec §4.3)
// and observing a wake transition for a cold-start reconnect (spec §4.4).
//
// A cold wake is recognized by h.transports.Get(transportID) missing for an
// attachment that still exists: the registry only ever holds the transport
// of a currently-connected socket, so a miss against a known transportID
// means the connection that held it is gone and whatever reconnects now is,
// at best, a different socket picking the identity back up.
func (h *Host) rebindOrSynthesize(transportID string) (*wsstate.Attachment, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, ok := h.attachments[transportID]
	if !ok {
		a = wsstate.Synthesize(transportID)
		h.attachments[transportID] = a
		return a, false
	}

	if _, live := h.transports.Get(transportID); live {
		h.logger.Debug("transportId still registered, not a cold wake", zap.String("transport_id", transportID))
		return a, false
	}

	woke := a.ObserveWake()
	return a, woke
}

// finishAttachment records a socket's end state. A clean close (the peer
// sent a normal/going-away close frame) retires the attachment for good; any
// other disconnect (network failure, process eviction) is recorded as
// hibernated rather than closed, so a reconnect presenting the same
// transportId is recognized as a cold wake by rebindOrSynthesize instead of
// starting a brand new attachment.
func (h *Host) finishAttachment(transportID string, a *wsstate.Attachment, readErr error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if isCleanClose(readErr) {
		_ = a.Transition(wsstate.StateClosed)
		delete(h.attachments, transportID)
		return
	}
	wasActive := a.State == wsstate.StateActive
	a.MarkHibernated()
	if wasActive {
		h.metrics.hibernations.Inc()
	}
}

func (h *Host) newAttachment(transportID string) *wsstate.Attachment {
	h.mu.Lock()
	defer h.mu.Unlock()
	a := wsstate.New(transportID)
	h.attachments[transportID] = a
	return a
}
