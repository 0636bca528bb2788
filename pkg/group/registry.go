// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package group

import (
	"fmt"
	"io"
	"net/netip"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/dtn7/srtla-go/pkg/srtla"
)

// idAttempts bounds the search for an unused group ID. With 128 random bytes
// a single collision is already unrealistic.
const idAttempts = 8

// Match describes how an address relates to the registered groups.
type Match uint8

const (
	// Unknown addresses are neither bound to a link nor a group's last
	// active address.
	Unknown Match = iota

	// LastActive addresses are some group's last active address without
	// being one of its links.
	LastActive

	// Bound addresses belong to a registered link.
	Bound
)

func (m Match) String() string {
	switch m {
	case Unknown:
		return "unknown"
	case LastActive:
		return "last-active"
	case Bound:
		return "bound"
	default:
		return "invalid"
	}
}

// Stats about the Registry's lifetime. Created and Destroyed only grow;
// their difference is the number of live groups.
type Stats struct {
	Groups    int    `json:"groups"`
	Links     int    `json:"links"`
	Created   uint64 `json:"created"`
	Destroyed uint64 `json:"destroyed"`
}

// Registry is the directory of all Groups and their Links.
type Registry struct {
	maxGroups int
	maxLinks  int
	rand      io.Reader

	// indexKey keys the BLAKE2b hash used to index group IDs. The hash lookup
	// narrows the search to one candidate, which is then compared in
	// constant time.
	indexKey []byte

	groups     []*Group
	bySeq      map[uint64]*Group
	byID       map[[blake2b.Size256]byte]*Group
	byAddr     map[netip.AddrPort]*Link
	lastActive map[netip.AddrPort]*Group

	nextSeq   uint64
	created   uint64
	destroyed uint64
}

// NewRegistry for at most maxGroups groups with up to maxLinks links each.
// The random source is used for group IDs and the index key.
func NewRegistry(maxGroups, maxLinks int, rand io.Reader) (*Registry, error) {
	if maxGroups <= 0 || maxLinks <= 0 {
		return nil, fmt.Errorf("invalid limits: %d groups, %d links per group", maxGroups, maxLinks)
	}

	indexKey := make([]byte, blake2b.Size256)
	if _, err := io.ReadFull(rand, indexKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropy, err)
	}

	return &Registry{
		maxGroups: maxGroups,
		maxLinks:  maxLinks,
		rand:      rand,
		indexKey:  indexKey,

		bySeq:      make(map[uint64]*Group),
		byID:       make(map[[blake2b.Size256]byte]*Group),
		byAddr:     make(map[netip.AddrPort]*Link),
		lastActive: make(map[netip.AddrPort]*Group),

		nextSeq: 1,
	}, nil
}

func (r *Registry) indexOf(id ID) (key [blake2b.Size256]byte) {
	h, err := blake2b.New256(r.indexKey)
	if err != nil {
		// Only possible for keys longer than 64 bytes.
		panic(err)
	}
	_, _ = h.Write(id[:])
	copy(key[:], h.Sum(nil))
	return
}

// Create a new Group for a sender's ID proposal. The Group's ID is unique
// among all registered groups.
func (r *Registry) Create(proposal [srtla.IDLen]byte, now time.Time) (*Group, error) {
	if len(r.groups) >= r.maxGroups {
		return nil, ErrGroupLimit
	}

	for i := 0; i < idAttempts; i++ {
		id, err := NewID(proposal, r.rand)
		if err != nil {
			return nil, err
		}

		if r.FindByID(id) != nil {
			continue
		}

		g := newGroup(id, r.nextSeq, now)
		g.registered = true
		r.nextSeq++

		r.groups = append(r.groups, g)
		r.bySeq[g.Seq] = g
		r.byID[r.indexOf(id)] = g
		r.created++

		return g, nil
	}

	return nil, fmt.Errorf("%w: no unique group ID after %d attempts", ErrEntropy, idAttempts)
}

// FindByID looks up a Group by its full ID.
func (r *Registry) FindByID(id ID) *Group {
	g, ok := r.byID[r.indexOf(id)]
	if !ok || !g.ID.Equal(id) {
		return nil
	}
	return g
}

// FindByAddr reports how an address relates to the registered groups. For
// Bound addresses both Group and Link are returned, for LastActive addresses
// only the Group.
func (r *Registry) FindByAddr(addr netip.AddrPort) (*Group, *Link, Match) {
	if l, ok := r.byAddr[addr]; ok {
		return l.group, l, Bound
	}
	if g, ok := r.lastActive[addr]; ok {
		return g, nil, LastActive
	}
	return nil, nil, Unknown
}

// Get a Group by its sequence number.
func (r *Registry) Get(seq uint64) *Group {
	return r.bySeq[seq]
}

// Groups in their order of creation. The returned slice is a copy and may be
// iterated while groups are being destroyed.
func (r *Registry) Groups() []*Group {
	groups := make([]*Group, len(r.groups))
	copy(groups, r.groups)
	return groups
}

// Len is the number of registered groups.
func (r *Registry) Len() int {
	return len(r.groups)
}

// Stats of this Registry.
func (r *Registry) Stats() Stats {
	return Stats{
		Groups:    len(r.groups),
		Links:     len(r.byAddr),
		Created:   r.created,
		Destroyed: r.destroyed,
	}
}

// AddLink registers a new Link for an address to a Group.
func (r *Registry) AddLink(g *Group, addr netip.AddrPort, now time.Time) (*Link, error) {
	if r.bySeq[g.Seq] != g {
		return nil, ErrUnknownGroup
	}

	if _, ok := r.byAddr[addr]; ok {
		return nil, ErrAddressInUse
	}
	if other, ok := r.lastActive[addr]; ok && other != g {
		return nil, ErrAddressInUse
	}

	if g.LinkCount() >= r.maxLinks {
		return nil, ErrLinkLimit
	}

	l := newLink(g, addr, now)
	g.appendLink(l)
	r.byAddr[addr] = l

	return l, nil
}

// RemoveLink unregisters the Link for an address from its Group. The Group's
// last active address is left untouched.
func (r *Registry) RemoveLink(g *Group, addr netip.AddrPort) bool {
	l := g.removeLink(addr)
	if l == nil {
		return false
	}

	if r.byAddr[addr] == l {
		delete(r.byAddr, addr)
	}
	return true
}

// SetLastActive marks an address as the Group's most recently active one.
func (r *Registry) SetLastActive(g *Group, addr netip.AddrPort) {
	if g.lastActive == addr {
		if g.registered {
			r.lastActive[addr] = g
		}
		return
	}

	if old := g.lastActive; old.IsValid() && r.lastActive[old] == g {
		delete(r.lastActive, old)
	}

	g.lastActive = addr
	if g.registered {
		r.lastActive[addr] = g
	}
}

// Destroy a Group: its downstream socket is closed, its links are freed and
// it is removed from all indices. Destroying a Group twice is a no-op,
// reported by a false return value.
func (r *Registry) Destroy(g *Group) bool {
	if g == nil || !g.registered || r.bySeq[g.Seq] != g {
		return false
	}

	_ = g.CloseDownstream()

	for _, l := range g.links {
		if r.byAddr[l.Addr] == l {
			delete(r.byAddr, l.Addr)
		}
	}
	g.links = nil
	g.linkAddr = make(map[netip.AddrPort]*Link)

	if r.lastActive[g.lastActive] == g {
		delete(r.lastActive, g.lastActive)
	}

	delete(r.byID, r.indexOf(g.ID))
	delete(r.bySeq, g.Seq)
	for i, other := range r.groups {
		if other == g {
			r.groups = append(r.groups[:i], r.groups[i+1:]...)
			break
		}
	}

	g.registered = false
	r.destroyed++

	return true
}
