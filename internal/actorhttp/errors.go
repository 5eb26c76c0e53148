package actorhttp

import "errors"

// errTransportBackedUp is returned by wsTransport.send when the peer's
// outbound buffer is full — the same "too slow, drop it" situation the
// teacher's hub handles by unregistering the client (hub.go Publish).
var errTransportBackedUp = errors.New("actorhttp: transport send buffer full")
