// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package srtla implements the SRT Link Aggregation (SRTLA) control messages
// exchanged between a sender and the receiver on every link: the three-phase
// registration, its error replies, keepalives and batched acknowledgements.
//
// Classify decides what kind of packet a received datagram is without
// allocating. Registration messages are recognized by their exact length,
// everything else by the 16 bit type field in front of the packet.
package srtla

import "github.com/dtn7/srtla-go/pkg/srt"

const (
	// IDLen is the length of a group identifier. The sender proposes the
	// first half, the receiver generates the second one.
	IDLen = 256

	// RegLen is the length of both REG1 and REG2 messages.
	RegLen = 2 + IDLen

	// Reg3Len is the length of a REG3 message and of all error replies.
	Reg3Len = 2

	// AckBatch is the number of sequence numbers collected per link before a
	// batched acknowledgement is sent back.
	AckBatch = 10

	// AckLen is the length of a batched acknowledgement.
	AckLen = 4 + 4*AckBatch
)

// minLen is the shortest datagram which is not classified as malformed.
const minLen = srt.MinLen
