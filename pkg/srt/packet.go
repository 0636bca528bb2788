// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package srt

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PacketType is the 16 bit type field at the start of every packet. For SRT
// control packets the highest bit is set.
type PacketType uint16

const (
	TypeHandshake PacketType = 0x8000
	TypeAck       PacketType = 0x8002
	TypeNak       PacketType = 0x8003
	TypeShutdown  PacketType = 0x8005
)

// controlBit marks control packets, both in the type field and in the first
// 32 bit word of a packet.
const controlBit uint32 = 1 << 31

func (pt PacketType) String() string {
	switch pt {
	case TypeHandshake:
		return "handshake"
	case TypeAck:
		return "ack"
	case TypeNak:
		return "nak"
	case TypeShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("0x%04x", uint16(pt))
	}
}

// Type of a raw packet. Buffers shorter than the type field yield 0.
func Type(pkt []byte) PacketType {
	if len(pkt) < 2 {
		return 0
	}
	return PacketType(binary.BigEndian.Uint16(pkt))
}

// IsAck checks if a raw packet is an SRT acknowledgement.
func IsAck(pkt []byte) bool {
	return len(pkt) >= MinLen && Type(pkt) == TypeAck
}

// SequenceNumber of a data packet. The second return value is false for
// control packets and for buffers too short to carry a sequence number.
func SequenceNumber(pkt []byte) (uint32, bool) {
	if len(pkt) < 4 {
		return 0, false
	}

	sn := binary.BigEndian.Uint32(pkt)
	if sn&controlBit != 0 {
		return 0, false
	}
	return sn, true
}

// Header is the generic SRT packet header. Only the Type is inspected by the
// receiver, the other fields are passed through.
type Header struct {
	Type      PacketType
	Subtype   uint16
	Info      uint32
	Timestamp uint32
	DestID    uint32
}

func (h Header) String() string {
	return fmt.Sprintf("Header(type=%v, subtype=%d, dest=%d)", h.Type, h.Subtype, h.DestID)
}

// Marshal the Header in network byte order.
func (h Header) Marshal(w io.Writer) error {
	return binary.Write(w, binary.BigEndian, h)
}

// Unmarshal a Header in network byte order.
func (h *Header) Unmarshal(r io.Reader) error {
	return binary.Read(r, binary.BigEndian, h)
}
