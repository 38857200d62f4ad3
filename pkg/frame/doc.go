// Package frame owns the buffers behind outbound and inbound frames.
//
// Outbound frames are encoded into a buffer rented from a Pool and
// released by the session's send loop once written, or by Stop when they
// were never sent. Inbound payloads are rented at exactly the size the
// header declares and released as soon as the payload is decoded.
//
// Buffers are never returned implicitly. Each frame carries a released
// flag; the first Release returns the buffer and any further call is
// counted in Stats.DoubleReleases and otherwise ignored.
package frame
