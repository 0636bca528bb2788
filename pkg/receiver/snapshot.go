// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package receiver

import (
	"net/netip"
	"time"

	"github.com/dtn7/srtla-go/pkg/group"
)

// snapshotInterval limits how often an unchanged Snapshot is refreshed.
const snapshotInterval = time.Second

// LinkInfo is a copy of a link's state.
type LinkInfo struct {
	Addr         netip.AddrPort `json:"addr"`
	RegisteredAt time.Time      `json:"registered_at"`
	LastReceived time.Time      `json:"last_received"`
	Received     group.Traffic  `json:"received"`
	PendingAcks  int            `json:"pending_acks"`
}

// GroupInfo is a copy of a group's state.
type GroupInfo struct {
	Seq           uint64         `json:"seq"`
	ID            string         `json:"id"`
	State         group.State    `json:"state"`
	CreatedAt     time.Time      `json:"created_at"`
	LastActive    netip.AddrPort `json:"last_active"`
	RetryAttempts int            `json:"retry_attempts"`
	NextRetry     time.Time      `json:"next_retry"`
	Upstream      group.Traffic  `json:"upstream"`
	Returned      group.Traffic  `json:"returned"`
	Links         []LinkInfo     `json:"links"`
}

func groupInfo(g *group.Group) GroupInfo {
	links := g.Links()
	info := GroupInfo{
		Seq:           g.Seq,
		ID:            g.ID.String(),
		State:         g.State,
		CreatedAt:     g.CreatedAt,
		LastActive:    g.LastActive(),
		RetryAttempts: g.RetryAttempts,
		NextRetry:     g.NextRetry,
		Upstream:      g.Upstream,
		Returned:      g.Returned,
		Links:         make([]LinkInfo, 0, len(links)),
	}

	for _, l := range links {
		info.Links = append(info.Links, LinkInfo{
			Addr:         l.Addr,
			RegisteredAt: l.RegisteredAt,
			LastReceived: l.LastReceived,
			Received:     l.Received,
			PendingAcks:  len(l.PendingAcks()),
		})
	}
	return info
}

// Snapshot is an immutable view of the Receiver's groups.
type Snapshot struct {
	Time   time.Time   `json:"time"`
	Stats  group.Stats `json:"stats"`
	Groups []GroupInfo `json:"groups"`
}

// Group returns the GroupInfo for a sequence number.
func (s *Snapshot) Group(seq uint64) (GroupInfo, bool) {
	for _, g := range s.Groups {
		if g.Seq == seq {
			return g, true
		}
	}
	return GroupInfo{}, false
}

// Snapshot returns the most recently published view of the Receiver. It is
// safe to call from any goroutine.
func (r *Receiver) Snapshot() *Snapshot {
	return r.snapshot.Load()
}

func (r *Receiver) publishSnapshot(now time.Time) {
	if !r.dirty && now.Sub(r.lastSnapshot) < snapshotInterval {
		return
	}

	groups := r.registry.Groups()
	s := &Snapshot{
		Time:   now,
		Stats:  r.registry.Stats(),
		Groups: make([]GroupInfo, 0, len(groups)),
	}
	for _, g := range groups {
		s.Groups = append(s.Groups, groupInfo(g))
	}

	r.snapshot.Store(s)
	r.dirty = false
	r.lastSnapshot = now
}
