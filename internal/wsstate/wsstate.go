// Package wsstate implements the hibernatable WebSocket state machine
// described in spec §4.3: a per-socket attachment that survives process
// suspension and the legal transitions between connecting, active,
// hibernated, and closed.
//
// The attachment is the only state this package trusts across a suspend
// boundary — nothing here assumes in-memory continuity. This mirrors the
// teacher's own "never trust anything except what's durable" posture in
// server/internal/db/encrypt.go (the encryption key, not the ciphertext, is
// the thing that must survive) and is spelled out as a design rule in
// spec §9.
package wsstate

import "fmt"

// State is one of the four states in the diagram in spec §4.3.
type State string

const (
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateHibernated State = "hibernated"
	StateClosed     State = "closed"
)

// Attachment is the small, serializable blob glued to a socket by the host.
// It is the continuity key across hibernation: TransportID, not the socket
// object or the in-memory Transport, identifies "the same logical
// connection" before and after a suspend/resume cycle.
type Attachment struct {
	TransportID    string `json:"transportId"`
	State          State  `json:"state"`
	ConnectedAtMS  int64  `json:"connectedAt"`
	LastTransition int64  `json:"lastTransition"`
}

// nowFunc is overridable in tests so transition timestamps are deterministic.
var nowFunc = defaultNow

// New creates the attachment for a freshly created socket pair, in the
// connecting state, per spec §4.3 ("connecting is entered when a socket pair
// is created but before accept").
func New(transportID string) *Attachment {
	now := nowFunc()
	return &Attachment{
		TransportID:    transportID,
		State:          StateConnecting,
		ConnectedAtMS:  now,
		LastTransition: now,
	}
}

// legalTransitions encodes the diagram in spec §4.3. hibernated is reached
// implicitly (the host suspends the process, not a transition we drive
// ourselves) and is handled separately by ObserveWake; it is included here
// so Transition rejects anything the diagram forbids.
var legalTransitions = map[State]map[State]bool{
	StateConnecting: {StateActive: true, StateClosed: true},
	StateActive:     {StateHibernated: true, StateClosed: true},
	StateHibernated: {StateActive: true, StateClosed: true},
	StateClosed:     {}, // terminal
}

// Transition moves the attachment to next in place, updating State and
// LastTransition together. It does not serialize anything: callers are
// responsible for persisting the attachment (serializeAttachment, spec §5)
// before the next possible suspension point.
func (a *Attachment) Transition(next State) error {
	if a.State == next {
		return nil // no-op transitions (e.g. duplicate close) are harmless
	}
	allowed := legalTransitions[a.State]
	if allowed == nil || !allowed[next] {
		return fmt.Errorf("wsstate: illegal transition %s -> %s", a.State, next)
	}
	a.State = next
	a.LastTransition = nowFunc()
	return nil
}

// ObserveWake implements the "cold wake" rule from spec §4.3/§4.4: a missing
// transport-registry entry on an inbound frame means the socket was
// hibernated while the runtime was not resident. It rebinds the attachment
// to active and returns whether a transition actually happened (so callers
// can distinguish a genuine wake from an already-active socket).
func (a *Attachment) ObserveWake() bool {
	if a.State == StateHibernated {
		a.State = StateActive
		a.LastTransition = nowFunc()
		return true
	}
	return false
}

// MarkHibernated records the implicit active->hibernated transition for a
// socket that disconnected without a clean close handshake — the host's
// best available signal that the process may have been evicted rather than
// the peer simply hanging up. A no-op outside the active state, so an
// already-closed or already-hibernated attachment is left alone.
func (a *Attachment) MarkHibernated() {
	if a.State == StateActive {
		a.State = StateHibernated
		a.LastTransition = nowFunc()
	}
}

// Synthesize builds a defensive attachment for a socket observed without one
// (spec §4.3: "the implementation synthesizes one and marks state active").
func Synthesize(transportID string) *Attachment {
	a := New(transportID)
	a.State = StateActive
	a.LastTransition = a.ConnectedAtMS
	return a
}

// Rebind updates TransportID after a cold wake creates a fresh in-memory
// Transport for the same durable socket (spec §4.4/§9: "first-class
// transport identity, not socket identity").
func (a *Attachment) Rebind(newTransportID string) {
	a.TransportID = newTransportID
}
