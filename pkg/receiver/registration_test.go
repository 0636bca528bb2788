// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package receiver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtn7/srtla-go/pkg/group"
	"github.com/dtn7/srtla-go/pkg/srtla"
)

func TestRegisterGroup(t *testing.T) {
	h := newHarness(t)

	seen := make(map[group.ID]bool)
	for i := byte(1); i <= 20; i++ {
		g := h.registerGroup(t, linkAddr(i), i)

		assert.False(t, seen[g.ID], "group ID was handed out twice")
		seen[g.ID] = true

		assert.Equal(t, linkAddr(i), g.LastActive())
		assert.Equal(t, 0, g.LinkCount())
	}

	assert.Equal(t, 20, h.r.registry.Len())

	events := h.drainEvents()
	require.Len(t, events, 20)
	for _, e := range events {
		assert.Equal(t, GroupRegistered, e.Type)
	}
}

func TestRegisterGroupAddressInUse(t *testing.T) {
	h := newHarness(t)

	// linkAddr(1) is the last active address of one group, linkAddr(2) a
	// link of another one.
	h.registerGroup(t, linkAddr(1), 1)
	g := h.registerGroup(t, linkAddr(3), 3)
	h.registerLink(t, g, linkAddr(2))

	for _, addr := range []byte{1, 2} {
		h.conn.reset()
		h.r.handleLinkPacket(reg1(9), linkAddr(addr), h.clock.Now())

		assert.Equal(t, [][]byte{srtla.MarshalType(srtla.TypeRegErr)}, h.conn.sentTo(linkAddr(addr)))
	}
	assert.Equal(t, 2, h.r.registry.Len())
}

func TestRegisterGroupLimit(t *testing.T) {
	h := newHarness(t, func(conf *Config) { conf.MaxGroups = 3 })

	groups := make([]*group.Group, 0, 3)
	for i := byte(1); i <= 3; i++ {
		groups = append(groups, h.registerGroup(t, linkAddr(i), i))
	}

	for i := byte(4); i <= 6; i++ {
		h.r.handleLinkPacket(reg1(i), linkAddr(i), h.clock.Now())
		assert.Equal(t, [][]byte{srtla.MarshalType(srtla.TypeRegErr)}, h.conn.sentTo(linkAddr(i)))
	}
	assert.Equal(t, 3, h.r.registry.Len())

	h.r.destroyGroup(groups[1], ReasonTimeout)
	h.registerGroup(t, linkAddr(7), 7)
	assert.Equal(t, 3, h.r.registry.Len())
}

func TestRegisterGroupReplyFails(t *testing.T) {
	h := newHarness(t)
	h.conn.errs[linkAddr(1)] = errFake

	h.r.handleLinkPacket(reg1(1), linkAddr(1), h.clock.Now())

	stats := h.r.registry.Stats()
	assert.Equal(t, 0, stats.Groups)
	assert.Equal(t, stats.Created, stats.Destroyed)
	assert.Empty(t, h.drainEvents())

	// The address is free again.
	delete(h.conn.errs, linkAddr(1))
	h.registerGroup(t, linkAddr(1), 1)
}

func TestRegisterLink(t *testing.T) {
	h := newHarness(t)

	g := h.registerGroup(t, linkAddr(1), 1)
	l1 := h.registerLink(t, g, linkAddr(1))
	l2 := h.registerLink(t, g, linkAddr(2))

	assert.Equal(t, []*group.Link{l1, l2}, g.Links())
	assert.Equal(t, linkAddr(2), g.LastActive())

	events := h.drainEvents()
	assert.Equal(t, []EventType{GroupRegistered, LinkRegistered, LinkRegistered}, eventTypes(events))
	assert.Equal(t, linkAddr(2), events[2].Link)
	assert.Len(t, events[2].Group.Links, 2)
}

func TestRegisterLinkIdempotent(t *testing.T) {
	h := newHarness(t)

	g := h.registerGroup(t, linkAddr(1), 1)
	l := h.registerLink(t, g, linkAddr(2))
	h.registerLink(t, g, linkAddr(3))
	require.Equal(t, linkAddr(3), g.LastActive())

	h.conn.reset()
	again := h.registerLink(t, g, linkAddr(2))

	assert.Same(t, l, again)
	assert.Equal(t, 2, g.LinkCount())
	assert.Equal(t, linkAddr(2), g.LastActive())
	assert.Equal(t, [][]byte{srtla.MarshalType(srtla.TypeReg3)}, h.conn.sentTo(linkAddr(2)))
}

func TestRegisterLinkUnknownGroup(t *testing.T) {
	h := newHarness(t)
	g := h.registerGroup(t, linkAddr(1), 1)

	var unknown group.ID
	copy(unknown[:], g.ID[:])
	unknown[srtla.IDLen-1] ^= 0xff

	h.conn.reset()
	h.r.handleLinkPacket(reg2(unknown), linkAddr(2), h.clock.Now())

	assert.Equal(t, [][]byte{srtla.MarshalType(srtla.TypeRegNoGroup)}, h.conn.sentTo(linkAddr(2)))
	assert.Equal(t, 0, g.LinkCount())
	_, _, match := h.r.registry.FindByAddr(linkAddr(2))
	assert.Equal(t, group.Unknown, match)
}

func TestRegisterLinkOtherGroup(t *testing.T) {
	h := newHarness(t)

	g1 := h.registerGroup(t, linkAddr(1), 1)
	g2 := h.registerGroup(t, linkAddr(2), 2)
	h.registerLink(t, g1, linkAddr(3))

	for _, addr := range []byte{2, 3} {
		h.conn.reset()
		h.r.handleLinkPacket(reg2(g1.ID), linkAddr(addr), h.clock.Now())
		h.r.handleLinkPacket(reg2(g2.ID), linkAddr(addr), h.clock.Now())
	}

	// linkAddr(2) is g2's last active address, linkAddr(3) a member of g1.
	assert.Nil(t, g1.Link(linkAddr(2)))
	assert.NotNil(t, g2.Link(linkAddr(2)))
	assert.NotNil(t, g1.Link(linkAddr(3)))
	assert.Nil(t, g2.Link(linkAddr(3)))
	assert.Equal(t, [][]byte{
		srtla.MarshalType(srtla.TypeReg3),
		srtla.MarshalType(srtla.TypeRegErr),
	}, h.conn.sentTo(linkAddr(3)))
}

func TestRegisterLinkLimit(t *testing.T) {
	h := newHarness(t, func(conf *Config) { conf.MaxLinksPerGroup = 2 })

	full := h.registerGroup(t, linkAddr(1), 1)
	other := h.registerGroup(t, linkAddr(10), 10)

	h.registerLink(t, full, linkAddr(1))
	h.registerLink(t, full, linkAddr(2))

	for i := byte(3); i <= 5; i++ {
		h.r.handleLinkPacket(reg2(full.ID), linkAddr(i), h.clock.Now())
		assert.Equal(t, [][]byte{srtla.MarshalType(srtla.TypeRegErr)}, h.conn.sentTo(linkAddr(i)))
	}
	assert.Equal(t, 2, full.LinkCount())

	h.registerLink(t, other, linkAddr(10))
	h.registerLink(t, other, linkAddr(11))
	assert.Equal(t, 2, other.LinkCount())
}

func TestRegisterLinkReplyFails(t *testing.T) {
	h := newHarness(t)

	g := h.registerGroup(t, linkAddr(1), 1)
	h.conn.errs[linkAddr(2)] = errFake

	h.r.handleLinkPacket(reg2(g.ID), linkAddr(2), h.clock.Now())

	assert.Equal(t, 0, g.LinkCount())
	_, _, match := h.r.registry.FindByAddr(linkAddr(2))
	assert.Equal(t, group.Unknown, match)
	assert.Equal(t, linkAddr(1), g.LastActive())
}

func TestRegistrationMalformed(t *testing.T) {
	h := newHarness(t)

	// A REG1 of the wrong length is no registration at all.
	h.r.handleLinkPacket(reg1(1)[:srtla.RegLen-1], linkAddr(1), h.clock.Now())
	assert.Empty(t, h.conn.sent)
	assert.Equal(t, 0, h.r.registry.Len())
}
