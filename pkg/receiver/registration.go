// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package receiver

import (
	"bytes"
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/srtla-go/pkg/group"
	"github.com/dtn7/srtla-go/pkg/srtla"
)

// reject a registration by sending an error reply.
func (r *Receiver) reject(t srtla.Type, addr netip.AddrPort, cause error) {
	entry := log.WithFields(log.Fields{
		"address": addr,
		"reply":   t,
	})
	if cause != nil {
		entry = entry.WithError(cause)
	}
	entry.Info("Rejecting registration")

	if err := r.send(srtla.MarshalType(t), addr); err != nil {
		entry.WithField("send-error", err).Warn("Failed to send registration error reply")
	}
}

// registerGroup handles a REG1: a new group is created for the sender's half
// of the ID and the full ID is sent back within a REG2.
func (r *Receiver) registerGroup(pkt []byte, addr netip.AddrPort, now time.Time) {
	var msg srtla.RegistrationMessage
	if err := msg.Unmarshal(bytes.NewReader(pkt)); err != nil {
		r.reject(srtla.TypeRegErr, addr, err)
		return
	}

	if r.registry.Len() >= r.conf.MaxGroups {
		r.reject(srtla.TypeRegErr, addr, group.ErrGroupLimit)
		return
	}
	if _, _, match := r.registry.FindByAddr(addr); match != group.Unknown {
		r.reject(srtla.TypeRegErr, addr, group.ErrAddressInUse)
		return
	}

	g, err := r.registry.Create(msg.ID, now)
	if err != nil {
		r.reject(srtla.TypeRegErr, addr, err)
		return
	}
	r.registry.SetLastActive(g, addr)

	reply := srtla.NewRegistrationMessage(srtla.TypeReg2, g.ID)
	if err := r.send(reply.Bytes(), addr); err != nil {
		r.registry.Destroy(g)
		r.reject(srtla.TypeRegErr, addr, err)
		return
	}

	log.WithFields(log.Fields{
		"address": addr,
		"group":   g,
		"id":      g.ID,
	}).Info("Group registered")
	r.emit(GroupRegistered, g, addr, "")
}

// registerLink handles a REG2: the sender's address joins the named group,
// confirmed by a REG3. Repeated registrations of a member are confirmed again.
func (r *Receiver) registerLink(pkt []byte, addr netip.AddrPort, now time.Time) {
	var msg srtla.RegistrationMessage
	if err := msg.Unmarshal(bytes.NewReader(pkt)); err != nil {
		r.reject(srtla.TypeRegErr, addr, err)
		return
	}

	g := r.registry.FindByID(group.ID(msg.ID))
	if g == nil {
		r.reject(srtla.TypeRegNoGroup, addr, group.ErrUnknownGroup)
		return
	}

	owner, _, match := r.registry.FindByAddr(addr)
	if match != group.Unknown && owner != g {
		r.reject(srtla.TypeRegErr, addr, group.ErrAddressInUse)
		return
	}

	var added *group.Link
	if match != group.Bound {
		l, err := r.registry.AddLink(g, addr, now)
		if err != nil {
			r.reject(srtla.TypeRegErr, addr, err)
			return
		}
		added = l
	}

	if err := r.send(srtla.MarshalType(srtla.TypeReg3), addr); err != nil {
		if added != nil {
			r.registry.RemoveLink(g, addr)
		}
		r.reject(srtla.TypeRegErr, addr, err)
		return
	}

	r.registry.SetLastActive(g, addr)

	entry := log.WithFields(log.Fields{
		"address": addr,
		"group":   g,
		"links":   g.LinkCount(),
	})
	if added == nil {
		entry.Debug("Link registration repeated")
		return
	}
	entry.Info("Link registered")
	r.emit(LinkRegistered, g, addr, "")
}
