package l2cap

import (
	"encoding/binary"
	"fmt"
)

// Fixed channel identifiers relevant to an LE connection-oriented link.
const (
	ChannelNULL      uint16 = 0x0000
	ChannelSignaling uint16 = 0x0001
	ChannelATT       uint16 = 0x0004
	ChannelLESignal  uint16 = 0x0005
	ChannelSMP       uint16 = 0x0006
)

// ATT MTU bounds (Bluetooth Core Spec v5.2, Vol 3, Part F, Section 3.2.8).
const (
	MinATTMTU = 23
	MaxATTMTU = 513

	HeaderLen = 4 // Length(2) + Channel ID(2)
)

// Packet is a single L2CAP basic-mode frame: a length-prefixed payload
// addressed to a fixed channel.
type Packet struct {
	ChannelID uint16
	Payload   []byte
}

// Encode serialises the frame to its wire form.
func (p *Packet) Encode() []byte {
	buf := make([]byte, HeaderLen+len(p.Payload))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(p.Payload)))
	binary.LittleEndian.PutUint16(buf[2:4], p.ChannelID)
	copy(buf[4:], p.Payload)
	return buf
}

// Decode parses one complete frame from data. It does not consume a
// streaming buffer. StreamTransport.Read does not reassemble frames: it
// returns whatever one read of the connection delivered, and the session's
// reader passes those bytes to Decode as one frame.
func Decode(data []byte) (*Packet, error) {
	if len(data) < HeaderLen {
		return nil, fmt.Errorf("l2cap: frame too short (need %d, got %d)", HeaderLen, len(data))
	}
	length := binary.LittleEndian.Uint16(data[0:2])
	channelID := binary.LittleEndian.Uint16(data[2:4])
	if len(data) < HeaderLen+int(length) {
		return nil, fmt.Errorf("l2cap: incomplete frame (declared %d, got %d)", length, len(data)-HeaderLen)
	}
	payload := make([]byte, length)
	copy(payload, data[4:4+int(length)])
	return &Packet{ChannelID: channelID, Payload: payload}, nil
}

// NewATTPacket wraps an ATT PDU for transmission over the fixed ATT channel.
func NewATTPacket(payload []byte) *Packet {
	return &Packet{ChannelID: ChannelATT, Payload: payload}
}
