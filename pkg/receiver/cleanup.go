// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package receiver

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// cleanup removes idle links and groups which have no links left and are
// older than the group timeout. Afterwards, waiting groups are reconnected.
// Calls within CleanupPeriod of the previous run do nothing. The period starts
// after the reconnection probes, which may block for a while.
func (r *Receiver) cleanup(now time.Time) {
	if !r.lastCleanup.IsZero() && now.Sub(r.lastCleanup) < r.conf.CleanupPeriod {
		return
	}
	r.lastCleanup = now

	var groups, links, removedGroups, removedLinks int

	for _, g := range r.registry.Groups() {
		groups++

		for _, l := range g.Links() {
			links++
			if l.Idle(now) <= r.conf.LinkTimeout {
				continue
			}

			if r.registry.RemoveLink(g, l.Addr) {
				removedLinks++
				log.WithFields(log.Fields{
					"group":   g,
					"address": l.Addr,
				}).Info("Link removed, timed out")
				r.emit(LinkRemoved, g, l.Addr, ReasonTimeout)
			}
		}

		if g.LinkCount() == 0 && g.Age(now) > r.conf.GroupTimeout {
			removedGroups++
			r.destroyGroup(g, ReasonTimeout)
		}
	}

	r.reconnectTick(now)
	if end := r.clock(); end.After(now) {
		r.lastCleanup = end
	}

	log.WithFields(log.Fields{
		"groups":         groups,
		"links":          links,
		"removed-groups": removedGroups,
		"removed-links":  removedLinks,
	}).Debug("Cleanup run finished")
}
