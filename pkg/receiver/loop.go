// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package receiver

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/srtla-go/pkg/group"
	"github.com/dtn7/srtla-go/pkg/poll"
)

// Run the Receiver until the context is cancelled. All groups are removed
// before Run returns and the Events channel is closed. An error is only
// returned if waiting for readiness failed.
func (r *Receiver) Run(ctx context.Context) error {
	defer close(r.events)

	if err := r.poller.Add(r.conn, listenerToken); err != nil {
		return fmt.Errorf("polling link socket: %w", err)
	}
	defer func() { _ = r.poller.Remove(listenerToken) }()
	defer r.shutdown()

	log.WithField("address", r.conn.LocalAddr()).Info("SRTLA receiver is running")

	events := make([]poll.Event, r.conf.MaxGroups+1)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := r.poller.Wait(events, r.conf.PollTimeout)
		if err != nil {
			return fmt.Errorf("waiting for readiness: %w", err)
		}

		r.dispatch(events[:n])

		now := r.clock()
		r.cleanup(now)
		r.publishSnapshot(now)
	}
}

// dispatch a batch of readiness events. Handling an event might destroy any
// group, which invalidates the rest of the batch. Unhandled sockets will be
// reported again by the next Wait.
func (r *Receiver) dispatch(events []poll.Event) {
	destroyed := r.registry.Stats().Destroyed

	for _, ev := range events {
		if ev.Token == listenerToken {
			r.handleListener()
		} else if g := r.registry.Get(ev.Token); g != nil {
			r.handleDownstream(g)
		}

		if r.registry.Stats().Destroyed != destroyed {
			return
		}
	}
}

// shutdown closes and removes all groups.
func (r *Receiver) shutdown() {
	groups := r.registry.Groups()
	for _, g := range groups {
		g.State = group.Closed
	}
	for _, g := range groups {
		r.destroyGroup(g, ReasonShutdown)
	}

	r.publishSnapshot(r.clock())
	log.WithField("groups", len(groups)).Info("SRTLA receiver stopped")
}
