// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package srtla

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dtn7/srtla-go/pkg/srt"
)

// Type of an SRTLA control message.
type Type uint16

const (
	TypeKeepalive  Type = 0x9000
	TypeAck        Type = 0x9100
	TypeReg1       Type = 0x9200
	TypeReg2       Type = 0x9201
	TypeReg3       Type = 0x9202
	TypeRegErr     Type = 0x9210
	TypeRegNoGroup Type = 0x9211
	TypeRegNak     Type = 0x9212
)

func (t Type) String() string {
	switch t {
	case TypeKeepalive:
		return "KEEPALIVE"
	case TypeAck:
		return "ACK"
	case TypeReg1:
		return "REG1"
	case TypeReg2:
		return "REG2"
	case TypeReg3:
		return "REG3"
	case TypeRegErr:
		return "REG_ERR"
	case TypeRegNoGroup:
		return "REG_NGP"
	case TypeRegNak:
		return "REG_NAK"
	default:
		return fmt.Sprintf("0x%04x", uint16(t))
	}
}

// Kind is the classification of a received datagram.
type Kind uint8

const (
	KindMalformed Kind = iota
	KindData
	KindControl
	KindHandshake
	KindAck
	KindKeepalive
	KindReg1
	KindReg2
	KindReg3
	KindRegErr
	KindRegNoGroup
	KindRegNak
	KindSrtlaAck
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindData:
		return "data"
	case KindControl:
		return "control"
	case KindHandshake:
		return "handshake"
	case KindAck:
		return "ack"
	case KindKeepalive:
		return "keepalive"
	case KindReg1:
		return "reg1"
	case KindReg2:
		return "reg2"
	case KindReg3:
		return "reg3"
	case KindRegErr:
		return "reg-err"
	case KindRegNoGroup:
		return "reg-no-group"
	case KindRegNak:
		return "reg-nak"
	case KindSrtlaAck:
		return "srtla-ack"
	default:
		return "unknown"
	}
}

// Classify a received datagram.
func Classify(pkt []byte) Kind {
	if len(pkt) < 2 {
		return KindMalformed
	}

	t := Type(binary.BigEndian.Uint16(pkt))
	switch {
	case len(pkt) == RegLen && t == TypeReg1:
		return KindReg1
	case len(pkt) == RegLen && t == TypeReg2:
		return KindReg2
	case len(pkt) == Reg3Len && t == TypeReg3:
		return KindReg3
	}

	switch t {
	case TypeKeepalive:
		return KindKeepalive
	case TypeAck:
		return KindSrtlaAck
	case TypeRegErr:
		return KindRegErr
	case TypeRegNoGroup:
		return KindRegNoGroup
	case TypeRegNak:
		return KindRegNak
	}

	if len(pkt) < minLen {
		return KindMalformed
	}

	switch srt.Type(pkt) {
	case srt.TypeHandshake:
		return KindHandshake
	case srt.TypeAck:
		return KindAck
	}

	if _, ok := srt.SequenceNumber(pkt); !ok {
		return KindControl
	}
	return KindData
}

// MarshalType creates a message only consisting of its type, e.g., REG3 or
// one of the registration error replies.
func MarshalType(t Type) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(t))
	return buf
}

// RegistrationMessage is the shared layout of REG1 and REG2. A REG1 carries
// the sender's half of the ID, a REG2 the full group ID.
type RegistrationMessage struct {
	Type Type
	ID   [IDLen]byte
}

// NewRegistrationMessage of the given type for an ID.
func NewRegistrationMessage(t Type, id [IDLen]byte) RegistrationMessage {
	return RegistrationMessage{Type: t, ID: id}
}

func (rm RegistrationMessage) String() string {
	return fmt.Sprintf("%v(id=%x...)", rm.Type, rm.ID[:8])
}

func (rm RegistrationMessage) checkType() error {
	if rm.Type != TypeReg1 && rm.Type != TypeReg2 {
		return fmt.Errorf("registration message's type is %v instead of REG1 or REG2", rm.Type)
	}
	return nil
}

func (rm RegistrationMessage) Marshal(w io.Writer) error {
	if err := rm.checkType(); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, rm)
}

func (rm *RegistrationMessage) Unmarshal(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, rm); err != nil {
		return err
	}
	return rm.checkType()
}

// Bytes returns the marshalled RegistrationMessage.
func (rm RegistrationMessage) Bytes() []byte {
	buf := make([]byte, RegLen)
	binary.BigEndian.PutUint16(buf, uint16(rm.Type))
	copy(buf[2:], rm.ID[:])
	return buf
}
