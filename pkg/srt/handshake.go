// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package srt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// HandshakeLen is the size of a marshalled Handshake. An SRT server
	// answers an induction with a packet of exactly this size.
	HandshakeLen = MinLen + 48

	handshakeVersion   uint32 = 4
	handshakeExtension uint16 = 2
	handshakeInduction uint32 = 1
)

// Handshake is the SRT handshake control packet.
type Handshake struct {
	Header

	Version       uint32
	EncField      uint16
	ExtField      uint16
	InitialSeq    uint32
	MTU           uint32
	FlowWindow    uint32
	HandshakeType uint32
	SourceID      uint32
	SynCookie     uint32
	PeerIP        [16]byte
}

// NewInduction creates the induction request a caller sends to find out if an
// SRT server is listening.
func NewInduction() Handshake {
	return Handshake{
		Header:        Header{Type: TypeHandshake},
		Version:       handshakeVersion,
		ExtField:      handshakeExtension,
		HandshakeType: handshakeInduction,
	}
}

func (hs Handshake) String() string {
	return fmt.Sprintf("Handshake(version=%d, type=%d, cookie=%x)", hs.Version, hs.HandshakeType, hs.SynCookie)
}

// Marshal the Handshake in network byte order.
func (hs Handshake) Marshal(w io.Writer) error {
	return binary.Write(w, binary.BigEndian, hs)
}

// Unmarshal a Handshake and check its packet type.
func (hs *Handshake) Unmarshal(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, hs); err != nil {
		return err
	}

	if hs.Type != TypeHandshake {
		return fmt.Errorf("handshake's type is %v instead of %v", hs.Type, TypeHandshake)
	}
	return nil
}

// Bytes returns the marshalled Handshake.
func (hs Handshake) Bytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, HandshakeLen))
	// Writing a fixed size struct into a bytes.Buffer cannot fail.
	_ = hs.Marshal(buf)
	return buf.Bytes()
}
