package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildEnvelope(magic uint16, pktType, destTID uint8, payloadLen uint32, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], magic)
	buf[2] = pktType
	buf[3] = destTID
	binary.BigEndian.PutUint32(buf[4:8], payloadLen)
	copy(buf[HeaderSize:], payload)
	return buf
}

func TestParseEnvelope(t *testing.T) {
	payload := []byte("session metadata")

	tests := []struct {
		name        string
		data        []byte
		expectError bool
		wantType    uint8
		wantTID     uint8
	}{
		{
			name:     "valid connect request",
			data:     buildEnvelope(Magic, PktTypeConnectReq, 3, uint32(len(payload)), payload),
			wantType: PktTypeConnectReq,
			wantTID:  3,
		},
		{
			name:     "valid disconnect response, empty payload",
			data:     buildEnvelope(Magic, PktTypeDisconnectResp, 255, 0, nil),
			wantType: PktTypeDisconnectResp,
			wantTID:  255,
		},
		{
			name:        "too short",
			data:        []byte{0xE5, 0x9C, 0x01},
			expectError: true,
		},
		{
			name:        "bad magic",
			data:        buildEnvelope(0xBEEF, PktTypeConnectReq, 3, 0, nil),
			expectError: true,
		},
		{
			name:        "unknown packet type",
			data:        buildEnvelope(Magic, 0x09, 3, 0, nil),
			expectError: true,
		},
		{
			name:        "declared payload longer than datagram",
			data:        buildEnvelope(Magic, PktTypeConnectReq, 3, 64, []byte("short")),
			expectError: true,
		},
		{
			name:        "payload length above maximum",
			data:        buildEnvelope(Magic, PktTypeConnectReq, 3, MaxPayloadSize+1, nil),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt, err := ParseEnvelope(tt.data)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if pkt.PktType != tt.wantType {
				t.Errorf("PktType = 0x%02x, want 0x%02x", pkt.PktType, tt.wantType)
			}
			if pkt.DestTID != tt.wantTID {
				t.Errorf("DestTID = %d, want %d", pkt.DestTID, tt.wantTID)
			}
		})
	}
}

func TestMarshalParseRoundTrip(t *testing.T) {
	orig := &SMPkt{
		PktType: PktTypeConnectResp,
		DestTID: 7,
		Payload: []byte{0xde, 0xad, 0xbe, 0xef},
	}

	data, err := orig.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if len(data) != HeaderSize+len(orig.Payload) {
		t.Fatalf("Marshal produced %d bytes, want %d", len(data), HeaderSize+len(orig.Payload))
	}

	parsed, err := ParseEnvelope(data)
	if err != nil {
		t.Fatalf("ParseEnvelope failed: %v", err)
	}
	if parsed.PktType != orig.PktType || parsed.DestTID != orig.DestTID {
		t.Errorf("header mismatch: got type=0x%02x tid=%d", parsed.PktType, parsed.DestTID)
	}
	if !bytes.Equal(parsed.Payload, orig.Payload) {
		t.Errorf("payload mismatch: got %x, want %x", parsed.Payload, orig.Payload)
	}
}

func TestMarshalRejectsOversizePayload(t *testing.T) {
	pkt := &SMPkt{
		PktType: PktTypeConnectReq,
		DestTID: 1,
		Payload: make([]byte, MaxPayloadSize+1),
	}
	if _, err := pkt.Marshal(); err == nil {
		t.Fatal("expected error for oversize payload, got nil")
	}
}

func TestPktTypeString(t *testing.T) {
	tests := []struct {
		pktType uint8
		want    string
	}{
		{PktTypeConnectReq, "connect_req"},
		{PktTypeConnectResp, "connect_resp"},
		{PktTypeDisconnectReq, "disconnect_req"},
		{PktTypeDisconnectResp, "disconnect_resp"},
		{0x7f, "unknown(0x7f)"},
	}
	for _, tt := range tests {
		if got := PktTypeString(tt.pktType); got != tt.want {
			t.Errorf("PktTypeString(0x%02x) = %q, want %q", tt.pktType, got, tt.want)
		}
	}
}
