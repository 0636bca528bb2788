// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package receiver

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Config of a Receiver.
type Config struct {
	// MaxGroups is the maximum number of concurrently registered groups.
	MaxGroups int

	// MaxLinksPerGroup is the maximum number of links per group.
	MaxLinksPerGroup int

	// CleanupPeriod is the minimum time between two cleanup runs.
	CleanupPeriod time.Duration

	// GroupTimeout is the age after which a group without links is removed.
	GroupTimeout time.Duration

	// LinkTimeout is the idle time after which a link is removed.
	LinkTimeout time.Duration

	// AutoReconnect keeps a group alive after its downstream socket failed
	// and tries to reconnect. Otherwise, the group is removed.
	AutoReconnect bool

	// ReconnectBase is the delay before the first reconnection attempt. Each
	// further attempt doubles the delay up to ReconnectMax.
	ReconnectBase time.Duration
	ReconnectMax  time.Duration

	// HandshakeTimeout bounds waiting for the SRT server's handshake reply.
	HandshakeTimeout time.Duration

	// PollTimeout is the longest time to wait for socket readiness. It also
	// bounds the reaction time to a cancelled context.
	PollTimeout time.Duration

	// LogErrors attaches the underlying socket errors to log messages.
	LogErrors bool

	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
}

// DefaultConfig returns the default Receiver configuration.
func DefaultConfig() Config {
	return Config{
		MaxGroups:        200,
		MaxLinksPerGroup: 8,
		CleanupPeriod:    3 * time.Second,
		GroupTimeout:     10 * time.Second,
		LinkTimeout:      10 * time.Second,
		AutoReconnect:    true,
		ReconnectBase:    500 * time.Millisecond,
		ReconnectMax:     4 * time.Second,
		HandshakeTimeout: time.Second,
		PollTimeout:      time.Second,
		EventBuffer:      256,
	}
}

// Validate checks all values and reports every invalid one.
func (c Config) Validate() (err error) {
	positive := []struct {
		name  string
		value int64
	}{
		{"max groups", int64(c.MaxGroups)},
		{"max links per group", int64(c.MaxLinksPerGroup)},
		{"cleanup period", int64(c.CleanupPeriod)},
		{"group timeout", int64(c.GroupTimeout)},
		{"link timeout", int64(c.LinkTimeout)},
		{"reconnect base", int64(c.ReconnectBase)},
		{"reconnect max", int64(c.ReconnectMax)},
		{"handshake timeout", int64(c.HandshakeTimeout)},
		{"poll timeout", int64(c.PollTimeout)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			err = multierror.Append(err, fmt.Errorf("%s must be positive, got %d", p.name, p.value))
		}
	}

	if c.ReconnectBase > c.ReconnectMax {
		err = multierror.Append(err, fmt.Errorf("reconnect base %v exceeds reconnect max %v", c.ReconnectBase, c.ReconnectMax))
	}
	if c.EventBuffer < 0 {
		err = multierror.Append(err, fmt.Errorf("event buffer must not be negative, got %d", c.EventBuffer))
	}
	return
}

// Backoff is the delay before the next reconnection attempt after the given
// number of attempts: ReconnectBase doubled for every attempt after the first
// one, capped at ReconnectMax.
func (c Config) Backoff(attempts int) time.Duration {
	d := c.ReconnectBase
	for i := 1; i < attempts && d < c.ReconnectMax; i++ {
		d <<= 1
	}

	if d > c.ReconnectMax {
		d = c.ReconnectMax
	}
	return d
}
