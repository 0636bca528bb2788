// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package receiver

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtn7/srtla-go/pkg/group"
	"github.com/dtn7/srtla-go/pkg/srt"
	"github.com/dtn7/srtla-go/pkg/srtla"
)

// activeGroup registers a group with two links and returns it.
func activeGroup(t *testing.T, h *harness) (*group.Group, *group.Link, *group.Link) {
	g := h.registerGroup(t, linkAddr(1), 1)
	l1 := h.registerLink(t, g, linkAddr(1))
	l2 := h.registerLink(t, g, linkAddr(2))

	h.conn.reset()
	h.drainEvents()
	return g, l1, l2
}

func TestAckBatching(t *testing.T) {
	h := newHarness(t)
	g, l1, _ := activeGroup(t, h)

	for sn := uint32(100); sn < 100+srtla.AckBatch-1; sn++ {
		h.r.handleLinkPacket(dataPacket(sn), l1.Addr, h.clock.Now())
	}
	assert.Empty(t, h.conn.sent)
	assert.Len(t, l1.PendingAcks(), srtla.AckBatch-1)

	h.r.handleLinkPacket(dataPacket(100+srtla.AckBatch-1), l1.Addr, h.clock.Now())

	acks := h.conn.sentTo(l1.Addr)
	require.Len(t, acks, 1)
	require.Len(t, acks[0], srtla.AckLen)

	var ack srtla.AckMessage
	require.NoError(t, ack.Unmarshal(bytes.NewReader(acks[0])))
	for i, sn := range ack.Sequences {
		assert.Equal(t, uint32(100+i), sn)
	}
	assert.Empty(t, l1.PendingAcks())
	assert.Len(t, h.conn.sent, 1)

	// All packets were forwarded regardless of the acks.
	assert.Len(t, h.dialer.lastDialed().written, srtla.AckBatch)
	assert.Equal(t, uint64(srtla.AckBatch), g.Upstream.Packets)
}

func TestAckBatchingControlPackets(t *testing.T) {
	h := newHarness(t)
	_, l1, _ := activeGroup(t, h)

	for i := 0; i < 2*srtla.AckBatch; i++ {
		h.r.handleLinkPacket(srtPacket(srt.TypeNak), l1.Addr, h.clock.Now())
	}
	assert.Empty(t, h.conn.sent, "control packets carry no sequence number")
	assert.Empty(t, l1.PendingAcks())
}

func TestKeepaliveEcho(t *testing.T) {
	h := newHarness(t)
	g, l1, _ := activeGroup(t, h)

	h.clock.Advance(5 * time.Second)
	h.r.handleLinkPacket(keepalive(), l1.Addr, h.clock.Now())

	assert.Equal(t, [][]byte{keepalive()}, h.conn.sentTo(l1.Addr))
	assert.Equal(t, h.clock.Now(), l1.LastReceived)
	assert.Equal(t, linkAddr(2), g.LastActive(), "keepalives do not change the last active link")
	assert.Empty(t, h.dialer.dialed)
}

func TestUnregisteredAddressIsIgnored(t *testing.T) {
	h := newHarness(t)
	g := h.registerGroup(t, linkAddr(1), 1)
	h.conn.reset()

	// linkAddr(1) is only the group's last active address.
	for _, addr := range []byte{1, 99} {
		h.r.handleLinkPacket(keepalive(), linkAddr(addr), h.clock.Now())
		h.r.handleLinkPacket(dataPacket(1), linkAddr(addr), h.clock.Now())
	}

	assert.Empty(t, h.conn.sent)
	assert.Empty(t, h.dialer.dialed)
	assert.Equal(t, uint64(0), g.Upstream.Packets)
}

func TestShortPacketIsNotForwarded(t *testing.T) {
	h := newHarness(t)
	g, l1, _ := activeGroup(t, h)

	h.clock.Advance(time.Second)
	h.r.handleLinkPacket(dataPacket(1)[:srt.MinLen-1], l1.Addr, h.clock.Now())

	assert.Equal(t, h.clock.Now(), l1.LastReceived)
	assert.Equal(t, linkAddr(2), g.LastActive())
	assert.Empty(t, h.dialer.dialed)
}

func TestForward(t *testing.T) {
	h := newHarness(t)
	g, l1, l2 := activeGroup(t, h)

	pkt := dataPacket(5)
	h.r.handleLinkPacket(pkt, l1.Addr, h.clock.Now())

	require.Len(t, h.dialer.dialed, 1)
	ds := h.dialer.dialed[0]
	assert.Equal(t, [][]byte{pkt}, ds.written)
	assert.Equal(t, group.Downstream(ds), g.Downstream())
	assert.Contains(t, h.poller.tokens, g.Seq)
	assert.Equal(t, l1.Addr, g.LastActive())

	h.r.handleLinkPacket(dataPacket(6), l2.Addr, h.clock.Now())
	assert.Len(t, h.dialer.dialed, 1, "the downstream socket is reused")
	assert.Len(t, ds.written, 2)
	assert.Equal(t, l2.Addr, g.LastActive())
	assert.Equal(t, group.Traffic{Packets: 2, Bytes: uint64(2 * len(pkt))}, g.Upstream)
}

func TestForwardFailureDestroysGroup(t *testing.T) {
	for _, autoReconnect := range []bool{true, false} {
		h := newHarness(t, func(conf *Config) { conf.AutoReconnect = autoReconnect })
		g, l1, _ := activeGroup(t, h)

		h.r.handleLinkPacket(dataPacket(1), l1.Addr, h.clock.Now())
		ds := h.dialer.lastDialed()
		ds.writeErr = errFake

		h.r.handleLinkPacket(dataPacket(2), l1.Addr, h.clock.Now())

		assert.False(t, g.Registered())
		assert.Equal(t, 0, h.r.registry.Len())
		assert.True(t, ds.closed)
		assert.NotContains(t, h.poller.tokens, g.Seq)

		events := h.drainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, GroupRemoved, events[0].Type)
		assert.Equal(t, ReasonForwardFailed, events[0].Reason)
		assert.Len(t, events[0].Group.Links, 2)
	}
}

func TestConnectFailure(t *testing.T) {
	tests := []struct {
		name      string
		dialErr   error
		pollerErr error
	}{
		{"dial", errFake, nil},
		{"poller", nil, errFake},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := newHarness(t)
			g, l1, _ := activeGroup(t, h)
			h.dialer.err = test.dialErr
			h.poller.addErr = test.pollerErr

			h.r.handleLinkPacket(dataPacket(1), l1.Addr, h.clock.Now())

			assert.True(t, g.Registered())
			assert.Equal(t, group.WaitingDownstream, g.State)
			assert.Equal(t, 1, g.RetryAttempts)
			assert.Equal(t, h.clock.Now().Add(500*time.Millisecond), g.NextRetry)
			assert.Nil(t, g.Downstream())
			assert.Equal(t, 2, g.LinkCount())

			if ds := h.dialer.lastDialed(); ds != nil {
				assert.True(t, ds.closed)
			}

			events := h.drainEvents()
			require.Len(t, events, 1)
			assert.Equal(t, DownstreamLost, events[0].Type)
			assert.Equal(t, ReasonDownstreamConnect, events[0].Reason)
		})
	}
}

func TestConnectFailureWithoutReconnect(t *testing.T) {
	h := newHarness(t, func(conf *Config) { conf.AutoReconnect = false })
	g, l1, _ := activeGroup(t, h)
	h.dialer.err = errFake

	h.r.handleLinkPacket(dataPacket(1), l1.Addr, h.clock.Now())

	assert.False(t, g.Registered())

	events := h.drainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, GroupRemoved, events[0].Type)
	assert.Equal(t, ReasonDownstreamConnect, events[0].Reason)
}

// connectedGroup is an activeGroup with a downstream socket.
func connectedGroup(t *testing.T, h *harness) (*group.Group, *fakeDownstream) {
	g, l1, _ := activeGroup(t, h)
	h.r.handleLinkPacket(dataPacket(1), l1.Addr, h.clock.Now())
	require.NotNil(t, g.Downstream())

	// The packet came in over linkAddr(1), but linkAddr(2) should be the
	// last active one for the following tests.
	h.r.handleLinkPacket(dataPacket(2), linkAddr(2), h.clock.Now())
	h.conn.reset()

	return g, h.dialer.lastDialed()
}

func TestDownstreamAckBroadcast(t *testing.T) {
	h := newHarness(t)
	g, ds := connectedGroup(t, h)

	ack := srtPacket(srt.TypeAck)
	ds.reads = [][]byte{ack}
	h.r.handleDownstream(g)

	assert.Equal(t, [][]byte{ack}, h.conn.sentTo(linkAddr(1)))
	assert.Equal(t, [][]byte{ack}, h.conn.sentTo(linkAddr(2)))
	assert.Equal(t, uint64(2), g.Returned.Packets)
}

func TestDownstreamUnicast(t *testing.T) {
	h := newHarness(t)
	g, ds := connectedGroup(t, h)

	for _, pkt := range [][]byte{srtPacket(srt.TypeNak), srtPacket(srt.TypeHandshake), dataPacket(7)} {
		h.conn.reset()
		ds.reads = [][]byte{pkt}
		h.r.handleDownstream(g)

		require.Len(t, h.conn.sent, 1)
		assert.Equal(t, sentPacket{data: pkt, addr: linkAddr(2)}, h.conn.sent[0])
	}
}

func TestDownstreamSpuriousWakeup(t *testing.T) {
	h := newHarness(t)
	g, ds := connectedGroup(t, h)

	h.r.handleDownstream(g)

	assert.Empty(t, h.conn.sent)
	assert.Equal(t, group.Active, g.State)
	assert.False(t, ds.closed)
}

func TestDownstreamLost(t *testing.T) {
	tests := []struct {
		name  string
		reads [][]byte
		err   error
	}{
		{"error", nil, errFake},
		{"short", [][]byte{make([]byte, srt.MinLen-1)}, nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := newHarness(t)
			g, ds := connectedGroup(t, h)
			h.drainEvents()

			ds.reads = test.reads
			ds.readErr = test.err
			h.r.handleDownstream(g)

			assert.Equal(t, group.WaitingDownstream, g.State)
			assert.True(t, ds.closed)
			assert.Nil(t, g.Downstream())
			assert.NotContains(t, h.poller.tokens, g.Seq)
			assert.Equal(t, 2, g.LinkCount(), "links survive a lost downstream")

			events := h.drainEvents()
			require.Len(t, events, 1)
			assert.Equal(t, DownstreamLost, events[0].Type)
			assert.Equal(t, ReasonDownstreamLost, events[0].Reason)
		})
	}
}

func TestDownstreamLostWithoutReconnect(t *testing.T) {
	h := newHarness(t, func(conf *Config) { conf.AutoReconnect = false })
	g, ds := connectedGroup(t, h)
	h.drainEvents()

	ds.readErr = errFake
	h.r.handleDownstream(g)

	assert.False(t, g.Registered())
	assert.True(t, ds.closed)

	events := h.drainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, GroupRemoved, events[0].Type)
	assert.Equal(t, ReasonDownstreamLost, events[0].Reason)
}

func TestWaitingGroupKeepsLinksAlive(t *testing.T) {
	h := newHarness(t)
	g, ds := connectedGroup(t, h)
	ds.readErr = errFake
	h.r.handleDownstream(g)
	require.Equal(t, group.WaitingDownstream, g.State)
	dialed := len(h.dialer.dialed)

	l1 := g.Link(linkAddr(1))
	for sn := uint32(0); sn < srtla.AckBatch; sn++ {
		h.r.handleLinkPacket(dataPacket(sn), l1.Addr, h.clock.Now())
	}
	h.r.handleLinkPacket(keepalive(), l1.Addr, h.clock.Now())

	sent := h.conn.sentTo(l1.Addr)
	require.Len(t, sent, 2)
	assert.Len(t, sent[0], srtla.AckLen)
	assert.Equal(t, keepalive(), sent[1])

	assert.Equal(t, l1.Addr, g.LastActive())
	assert.Len(t, h.dialer.dialed, dialed, "no lazy connect while waiting")
	assert.Equal(t, group.WaitingDownstream, g.State)
}
