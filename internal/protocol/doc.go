// Package protocol implements parsing and serialization of the session
// management datagram envelope. Only the fixed header is interpreted here;
// the payload is opaque and belongs to the session management layer.
package protocol
