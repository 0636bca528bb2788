// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package receiver

import "errors"

var (
	// ErrShortPacket is a downstream packet below the SRT minimum length.
	ErrShortPacket = errors.New("packet is shorter than an SRT header")

	// ErrHandshakeReply is an unexpected reply to a handshake induction.
	ErrHandshakeReply = errors.New("unexpected handshake reply")

	// ErrNoDownstream is returned when the downstream host has no address.
	ErrNoDownstream = errors.New("downstream host has no address")
)
