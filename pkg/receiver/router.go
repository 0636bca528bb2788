// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package receiver

import (
	"fmt"
	"io"
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/srtla-go/pkg/group"
	"github.com/dtn7/srtla-go/pkg/srt"
	"github.com/dtn7/srtla-go/pkg/srtla"
)

// handleListener reads one packet from the shared link socket.
func (r *Receiver) handleListener() {
	if err := r.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		log.WithError(err).Warn("Failed to set the link socket's read deadline")
	}

	n, addr, err := r.conn.ReadFromUDPAddrPort(r.buf[:])
	if isTimeout(err) {
		return
	} else if err != nil {
		log.WithError(err).Warn("Failed to read a packet from the link socket")
		return
	}

	r.handleLinkPacket(r.buf[:n], addr, r.clock())
}

// handleLinkPacket dispatches a packet received from a link. Payload is only
// forwarded for Active groups, which connect their downstream lazily. Links of
// a group waiting for its downstream are still kept alive and acknowledged.
func (r *Receiver) handleLinkPacket(pkt []byte, addr netip.AddrPort, now time.Time) {
	kind := srtla.Classify(pkt)
	switch kind {
	case srtla.KindReg1:
		r.registerGroup(pkt, addr, now)
		return
	case srtla.KindReg2:
		r.registerLink(pkt, addr, now)
		return
	}

	// Only members of a group are served.
	g, l, match := r.registry.FindByAddr(addr)
	if match != group.Bound {
		return
	}

	l.LastReceived = now
	l.Received.Add(len(pkt))

	if kind == srtla.KindKeepalive {
		if err := r.send(pkt, addr); err != nil {
			r.logEntry(g, err).WithField("address", addr).Warn("Failed to echo keepalive")
		}
		return
	}

	if len(pkt) < srt.MinLen {
		return
	}

	r.registry.SetLastActive(g, addr)

	if sn, ok := srt.SequenceNumber(pkt); ok {
		r.recordSequence(g, l, sn)
	}

	// A waiting group drops payload and does not connect lazily. Restoring
	// its downstream is left to the reconnection tick.
	if g.State != group.Active {
		return
	}

	if g.Downstream() == nil && !r.connectDownstream(g, now) {
		return
	}

	n, err := g.Downstream().Write(pkt)
	if err == nil && n != len(pkt) {
		err = io.ErrShortWrite
	}
	if err != nil {
		r.logEntry(g, err).Warn("Failed to forward packet to the SRT server, removing group")
		r.destroyGroup(g, ReasonForwardFailed)
		return
	}
	g.Upstream.Add(n)
}

// recordSequence remembers a data packet's sequence number and sends a
// batched acknowledgement over the link once enough were collected.
func (r *Receiver) recordSequence(g *group.Group, l *group.Link, sn uint32) {
	batch, full := l.RecordSequence(sn)
	if !full {
		return
	}

	ack := srtla.NewAckMessage(batch)
	if err := r.send(ack.Bytes(), l.Addr); err != nil {
		r.logEntry(g, err).WithField("address", l.Addr).Warn("Failed to send SRTLA ack")
	}
}

// connectDownstream lazily creates a group's downstream socket. A failure is
// handled like a lost downstream.
func (r *Receiver) connectDownstream(g *group.Group, now time.Time) bool {
	d, err := r.dialer.Dial()
	if err != nil {
		r.downstreamLost(g, ReasonDownstreamConnect, fmt.Errorf("connecting downstream: %w", err), now)
		return false
	}

	g.SetDownstream(d)
	if err := r.poller.Add(d, g.Seq); err != nil {
		_ = g.CloseDownstream()
		r.downstreamLost(g, ReasonDownstreamConnect, fmt.Errorf("polling downstream: %w", err), now)
		return false
	}

	log.WithField("group", g).Debug("Connected downstream socket")
	return true
}

// handleDownstream reads one packet from a group's downstream socket and
// sends it back to the sender. ACKs go out over all links, everything else
// over the last active one.
func (r *Receiver) handleDownstream(g *group.Group) {
	d := g.Downstream()
	if d == nil {
		return
	}

	if err := d.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		r.logEntry(g, err).Warn("Failed to set the downstream socket's read deadline")
	}

	n, err := d.Read(r.buf[:])
	if isTimeout(err) {
		return
	}
	if err == nil && n < srt.MinLen {
		err = fmt.Errorf("%w: %d bytes", ErrShortPacket, n)
	}
	if err != nil {
		r.downstreamLost(g, ReasonDownstreamLost, err, r.clock())
		return
	}

	pkt := r.buf[:n]

	if srt.IsAck(pkt) {
		for _, l := range g.Links() {
			if err := r.send(pkt, l.Addr); err != nil {
				r.logEntry(g, err).WithField("address", l.Addr).Warn("Failed to send SRT ack")
				continue
			}
			g.Returned.Add(n)
		}
		return
	}

	dst := g.LastActive()
	if err := r.send(pkt, dst); err != nil {
		r.logEntry(g, err).WithField("address", dst).Warn("Failed to send SRT packet")

		if isFatal(err) && r.registry.RemoveLink(g, dst) {
			log.WithFields(log.Fields{
				"group":   g,
				"address": dst,
			}).Info("Link removed, address is unreachable")
			r.emit(LinkRemoved, g, dst, ReasonUnreachable)
		}
		return
	}
	g.Returned.Add(n)
}
