// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package srtla

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ackType is the first word of an AckMessage; the SRTLA type sits in the
// upper 16 bits.
const ackType = uint32(TypeAck) << 16

// AckMessage acknowledges the last AckBatch data packets received on a link.
type AckMessage struct {
	Type      uint32
	Sequences [AckBatch]uint32
}

// NewAckMessage for a batch of sequence numbers in their order of receipt.
func NewAckMessage(seqs [AckBatch]uint32) AckMessage {
	return AckMessage{Type: ackType, Sequences: seqs}
}

func (am AckMessage) String() string {
	return fmt.Sprintf("ACK(%v)", am.Sequences)
}

func (am AckMessage) Marshal(w io.Writer) error {
	if am.Type != ackType {
		return fmt.Errorf("ACK's type is %x instead of %x", am.Type, ackType)
	}
	return binary.Write(w, binary.BigEndian, am)
}

func (am *AckMessage) Unmarshal(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, am); err != nil {
		return err
	}

	if am.Type != ackType {
		return fmt.Errorf("ACK's type is %x instead of %x", am.Type, ackType)
	}
	return nil
}

// Bytes returns the marshalled AckMessage.
func (am AckMessage) Bytes() []byte {
	buf := make([]byte, AckLen)
	binary.BigEndian.PutUint32(buf, am.Type)
	for i, sn := range am.Sequences {
		binary.BigEndian.PutUint32(buf[4+4*i:], sn)
	}
	return buf
}
