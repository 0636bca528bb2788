// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package group

import (
	"fmt"
	"io"
	"net/netip"
	"syscall"
	"time"
)

// State of a Group's downstream leg.
type State uint8

const (
	// Active groups have a usable downstream socket or will lazily create one.
	Active State = iota

	// WaitingDownstream groups lost their downstream socket and wait for the
	// next reconnection attempt.
	WaitingDownstream

	// Closed groups are being shut down and will be removed.
	Closed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case WaitingDownstream:
		return "waiting-downstream"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText allows States to be used in JSON documents.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Downstream is the connected UDP socket between a Group and the SRT server.
type Downstream interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	syscall.Conn
}

// Traffic counts packets and bytes passing in one direction.
type Traffic struct {
	Packets uint64 `json:"packets"`
	Bytes   uint64 `json:"bytes"`
}

// Add a single packet of n bytes.
func (t *Traffic) Add(n int) {
	t.Packets++
	t.Bytes += uint64(n)
}

// Group is one aggregated SRTLA session.
type Group struct {
	ID        ID
	Seq       uint64
	State     State
	CreatedAt time.Time

	// RetryAttempts and NextRetry are only meaningful while WaitingDownstream.
	RetryAttempts int
	NextRetry     time.Time

	// Upstream counts packets forwarded to the SRT server, Returned those
	// sent back over the links.
	Upstream Traffic
	Returned Traffic

	lastActive netip.AddrPort
	downstream Downstream

	links    []*Link
	linkAddr map[netip.AddrPort]*Link

	registered bool
}

func newGroup(id ID, seq uint64, now time.Time) *Group {
	return &Group{
		ID:        id,
		Seq:       seq,
		State:     Active,
		CreatedAt: now,
		linkAddr:  make(map[netip.AddrPort]*Link),
	}
}

func (g *Group) String() string {
	return fmt.Sprintf("#%d", g.Seq)
}

// LastActive is the address of the most recently active link. It is the
// destination of all non-ACK packets from the SRT server.
func (g *Group) LastActive() netip.AddrPort {
	return g.lastActive
}

// Downstream socket of this Group or nil if there is none.
func (g *Group) Downstream() Downstream {
	return g.downstream
}

// SetDownstream hands the ownership of a connected socket to this Group. A
// previous socket is closed.
func (g *Group) SetDownstream(d Downstream) {
	if g.downstream != nil && g.downstream != d {
		_ = g.downstream.Close()
	}
	g.downstream = d
}

// CloseDownstream closes and forgets the Group's downstream socket.
func (g *Group) CloseDownstream() (err error) {
	if g.downstream != nil {
		err = g.downstream.Close()
		g.downstream = nil
	}
	return
}

// Links of this Group in their order of registration. The returned slice is
// a copy and may be iterated while links are being removed.
func (g *Group) Links() []*Link {
	links := make([]*Link, len(g.links))
	copy(links, g.links)
	return links
}

// LinkCount returns the number of registered links.
func (g *Group) LinkCount() int {
	return len(g.links)
}

// Link registered for an address or nil.
func (g *Group) Link(addr netip.AddrPort) *Link {
	return g.linkAddr[addr]
}

// Age of this Group at the given time.
func (g *Group) Age(now time.Time) time.Duration {
	return now.Sub(g.CreatedAt)
}

// Registered reports if this Group is still part of its Registry.
func (g *Group) Registered() bool {
	return g.registered
}

func (g *Group) appendLink(l *Link) {
	g.links = append(g.links, l)
	g.linkAddr[l.Addr] = l
}

func (g *Group) removeLink(addr netip.AddrPort) (l *Link) {
	l, ok := g.linkAddr[addr]
	if !ok {
		return nil
	}

	delete(g.linkAddr, addr)
	for i, other := range g.links {
		if other == l {
			g.links = append(g.links[:i], g.links[i+1:]...)
			break
		}
	}
	return l
}
