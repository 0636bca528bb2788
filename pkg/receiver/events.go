// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package receiver

import (
	"fmt"
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/srtla-go/pkg/group"
)

// EventType describes a change in a group's life.
type EventType uint8

const (
	// GroupRegistered after a successful REG1.
	GroupRegistered EventType = iota

	// GroupRemoved after a group was destroyed, see Reason.
	GroupRemoved

	// LinkRegistered after a successful REG2 for a new address.
	LinkRegistered

	// LinkRemoved after a link timed out or became unreachable.
	LinkRemoved

	// DownstreamLost after the downstream socket failed while the group is
	// kept for reconnection.
	DownstreamLost

	// DownstreamRestored after a successful reconnection.
	DownstreamRestored
)

func (et EventType) String() string {
	switch et {
	case GroupRegistered:
		return "group-registered"
	case GroupRemoved:
		return "group-removed"
	case LinkRegistered:
		return "link-registered"
	case LinkRemoved:
		return "link-removed"
	case DownstreamLost:
		return "downstream-lost"
	case DownstreamRestored:
		return "downstream-restored"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(et))
	}
}

// MarshalText allows EventTypes to be used in JSON documents.
func (et EventType) MarshalText() ([]byte, error) {
	return []byte(et.String()), nil
}

// Reasons for removed groups and links.
const (
	ReasonTimeout           = "timeout"
	ReasonUnreachable       = "unreachable"
	ReasonDownstreamLost    = "downstream lost"
	ReasonDownstreamConnect = "downstream connect failed"
	ReasonForwardFailed     = "forward failed"
	ReasonShutdown          = "shutdown"
)

// Event is published by the Receiver for every lifecycle change.
type Event struct {
	Type  EventType `json:"type"`
	Time  time.Time `json:"time"`
	Group GroupInfo `json:"group"`

	// Link is the affected address for link events.
	Link netip.AddrPort `json:"link"`

	// Reason is set for removals.
	Reason string `json:"reason,omitempty"`
}

func (e Event) String() string {
	return fmt.Sprintf("%v(group=#%d)", e.Type, e.Group.Seq)
}

// Events returns the channel of lifecycle events. Events are dropped while
// the channel is full; the Receiver never waits for a reader. The channel is
// closed when Run returns.
func (r *Receiver) Events() <-chan Event {
	return r.events
}

func (r *Receiver) emit(et EventType, g *group.Group, link netip.AddrPort, reason string) {
	r.publish(Event{Type: et, Group: groupInfo(g), Link: link, Reason: reason})
}

func (r *Receiver) publish(e Event) {
	r.dirty = true
	e.Time = r.clock()

	select {
	case r.events <- e:
	default:
		log.WithField("event", e).Debug("Event channel is full, dropping event")
	}
}
