// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package receiver

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/srtla-go/pkg/group"
)

// releaseDownstream unregisters and closes a group's downstream socket.
func (r *Receiver) releaseDownstream(g *group.Group) {
	if g.Downstream() == nil {
		return
	}

	if err := r.poller.Remove(g.Seq); err != nil {
		log.WithField("group", g).WithError(err).Warn("Failed to remove downstream socket from poller")
	}
	_ = g.CloseDownstream()
}

// destroyGroup removes a group with all its links.
func (r *Receiver) destroyGroup(g *group.Group, reason string) {
	info := groupInfo(g)

	r.releaseDownstream(g)
	if !r.registry.Destroy(g) {
		return
	}

	log.WithFields(log.Fields{
		"group":  g,
		"reason": reason,
	}).Info("Group removed")

	r.publish(Event{Type: GroupRemoved, Group: info, Reason: reason})
}

// downstreamLost handles a failed downstream socket. The group waits for its
// reconnection, or is removed if reconnecting is disabled. Its links stay.
// The reason is attached to the resulting event.
func (r *Receiver) downstreamLost(g *group.Group, reason string, cause error, now time.Time) {
	r.releaseDownstream(g)

	if !r.conf.AutoReconnect {
		r.logEntry(g, cause).Warn("Downstream socket failed, removing group")
		r.destroyGroup(g, reason)
		return
	}

	g.State = group.WaitingDownstream
	backoff := r.scheduleReconnect(g, now)

	r.logEntry(g, cause).WithField("retry-in", backoff).Warn("Downstream socket failed, waiting for reconnection")
	r.emit(DownstreamLost, g, g.LastActive(), reason)
}

// scheduleReconnect counts a failed attempt and sets the next deadline.
func (r *Receiver) scheduleReconnect(g *group.Group, now time.Time) time.Duration {
	g.RetryAttempts++
	backoff := r.conf.Backoff(g.RetryAttempts)
	g.NextRetry = now.Add(backoff)
	return backoff
}

// reconnectTick tries to reconnect every waiting group whose deadline passed.
func (r *Receiver) reconnectTick(now time.Time) {
	for _, g := range r.registry.Groups() {
		if g.State != group.WaitingDownstream || now.Before(g.NextRetry) {
			continue
		}

		log.WithFields(log.Fields{
			"group":   g,
			"attempt": g.RetryAttempts,
		}).Info("Retrying SRT handshake")

		if err := r.tryReconnect(g); err != nil {
			backoff := r.scheduleReconnect(g, r.clock())
			r.logEntry(g, err).WithField("retry-in", backoff).Info("SRT handshake failed, scheduling next retry")
			continue
		}

		log.WithField("group", g).Info("SRT handshake succeeded, group is active again")
		r.emit(DownstreamRestored, g, g.LastActive(), "")
	}
}

// tryReconnect probes the SRT server on a fresh socket and adopts it.
func (r *Receiver) tryReconnect(g *group.Group) error {
	d, err := handshake(r.dialer, r.conf.HandshakeTimeout)
	if err != nil {
		return err
	}

	g.SetDownstream(d)
	if err := r.poller.Add(d, g.Seq); err != nil {
		_ = g.CloseDownstream()
		return fmt.Errorf("polling downstream: %w", err)
	}

	g.State = group.Active
	g.RetryAttempts = 0
	g.NextRetry = time.Time{}
	return nil
}
