package protocol

import (
	"encoding/binary"
	"fmt"
)

// Envelope constants
const (
	// Magic marks the first two bytes of every session management datagram.
	Magic = 0xE59C

	// Packet types, mirroring the session management handshake
	PktTypeConnectReq     = 0x01
	PktTypeConnectResp    = 0x02
	PktTypeDisconnectReq  = 0x03
	PktTypeDisconnectResp = 0x04

	// HeaderSize is the fixed envelope header length in bytes.
	// Layout: [Magic:2][PktType:1][DestTID:1][PayloadLen:4]
	HeaderSize = 8

	// MaxPayloadSize bounds the opaque payload carried after the header.
	MaxPayloadSize = 1400
)

// SMPkt is one parsed session management datagram. The payload is owned by
// the session management protocol layer and is opaque to the nexus; the
// nexus only needs DestTID to route the packet to a registered endpoint.
type SMPkt struct {
	PktType uint8  // handshake packet type
	DestTID uint8  // destination endpoint identity within the process
	Payload []byte // opaque session management payload
}

// ParseEnvelope parses a session management datagram into an SMPkt.
// The payload slice references data; callers that reuse the read buffer
// must copy before parsing.
func ParseEnvelope(data []byte) (*SMPkt, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("envelope too short: expected at least %d bytes, got %d", HeaderSize, len(data))
	}

	if magic := binary.BigEndian.Uint16(data[0:2]); magic != Magic {
		return nil, fmt.Errorf("bad envelope magic: 0x%04x", magic)
	}

	pktType := data[2]
	if pktType < PktTypeConnectReq || pktType > PktTypeDisconnectResp {
		return nil, fmt.Errorf("unknown packet type: 0x%02x", pktType)
	}

	payloadLen := binary.BigEndian.Uint32(data[4:8])
	if payloadLen > MaxPayloadSize {
		return nil, fmt.Errorf("payload length %d exceeds maximum %d", payloadLen, MaxPayloadSize)
	}
	if uint32(len(data)-HeaderSize) < payloadLen {
		return nil, fmt.Errorf("truncated payload: header declares %d bytes, got %d", payloadLen, len(data)-HeaderSize)
	}

	return &SMPkt{
		PktType: pktType,
		DestTID: data[3],
		Payload: data[HeaderSize : HeaderSize+int(payloadLen)],
	}, nil
}

// Marshal serializes the packet into a datagram ready for transmission.
func (p *SMPkt) Marshal() ([]byte, error) {
	if len(p.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload length %d exceeds maximum %d", len(p.Payload), MaxPayloadSize)
	}

	buf := make([]byte, HeaderSize+len(p.Payload))
	binary.BigEndian.PutUint16(buf[0:2], Magic)
	buf[2] = p.PktType
	buf[3] = p.DestTID
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(p.Payload)))
	copy(buf[HeaderSize:], p.Payload)
	return buf, nil
}

// PktTypeString converts a packet type to a human-readable string.
func PktTypeString(pktType uint8) string {
	switch pktType {
	case PktTypeConnectReq:
		return "connect_req"
	case PktTypeConnectResp:
		return "connect_resp"
	case PktTypeDisconnectReq:
		return "disconnect_req"
	case PktTypeDisconnectResp:
		return "disconnect_resp"
	default:
		return fmt.Sprintf("unknown(0x%02x)", pktType)
	}
}
