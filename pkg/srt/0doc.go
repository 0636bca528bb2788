// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package srt knows just enough of the SRT wire format to route packets
// between SRTLA links and an SRT server: the generic 16 byte header, the data
// packet sequence number and the handshake induction request used to probe a
// server.
//
// All multi-byte fields are big endian on the wire. Accessors operating on raw
// buffers never read out of bounds; too short buffers yield a "not
// applicable" result instead.
package srt

const (
	// MTU is the largest datagram handled. Larger datagrams are truncated by
	// the socket layer.
	MTU = 1500

	// MinLen is the length of the generic SRT header and therefore the
	// smallest valid SRT packet.
	MinLen = 16
)
