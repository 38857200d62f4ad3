// Package transport provides the byte streams a session runs over.
//
// TCP and WebSocket connections carry a single duplex stream; one-shot
// messages are written on that same stream. QUIC connections open a fresh
// bidirectional stream for the session and a unidirectional stream for
// each one-shot message. Server certificates are checked according to a
// caller supplied TrustPolicy.
package transport
