// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package group

import (
	"net/netip"
	"time"

	"github.com/dtn7/srtla-go/pkg/srtla"
)

// Link is one network path of a sender, registered to exactly one Group.
type Link struct {
	Addr         netip.AddrPort
	RegisteredAt time.Time
	LastReceived time.Time

	// Received counts packets from this link.
	Received Traffic

	acks   [srtla.AckBatch]uint32
	ackIdx int

	group *Group
}

func newLink(g *Group, addr netip.AddrPort, now time.Time) *Link {
	return &Link{
		Addr:         addr,
		RegisteredAt: now,
		LastReceived: now,
		group:        g,
	}
}

func (l *Link) String() string {
	return l.Addr.String()
}

// Group this Link belongs to.
func (l *Link) Group() *Group {
	return l.group
}

// Idle time since the last received packet.
func (l *Link) Idle(now time.Time) time.Duration {
	return now.Sub(l.LastReceived)
}

// RecordSequence appends a received sequence number to the Link's ack ring.
// When the ring is full, its contents are returned in order of receipt and
// the ring starts over.
func (l *Link) RecordSequence(sn uint32) (batch [srtla.AckBatch]uint32, full bool) {
	l.acks[l.ackIdx] = sn
	l.ackIdx++

	if l.ackIdx < srtla.AckBatch {
		return
	}

	batch, full = l.acks, true
	l.ackIdx = 0
	return
}

// PendingAcks returns the sequence numbers recorded since the last batch.
func (l *Link) PendingAcks() []uint32 {
	pending := make([]uint32, l.ackIdx)
	copy(pending, l.acks[:l.ackIdx])
	return pending
}
