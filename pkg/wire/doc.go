// Package wire defines the spire frame format.
//
// Every frame on the wire is a fixed 4-byte header followed by exactly
// Header.Length bytes of message payload:
//
//	+----------------+----------------+-------------------+
//	| length (u16)   | protocol (u16) | payload (length)  |
//	+----------------+----------------+-------------------+
//
// Both header fields use network byte order by default. The byte order is a
// configuration point (see Codec) so a client can be matched to a peer that
// disagrees.
//
// A typed message satisfies Message to be framed and Unmarshaler to be
// decoded. Decoding never retains references into the input slice.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package wire
