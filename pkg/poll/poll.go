// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package poll waits for read readiness on a dynamic set of sockets.
//
// A Poller reports readiness only; it never consumes data. Sockets are
// identified by a caller chosen token. On Linux the Poller is backed by
// epoll, other unix systems and Windows use a portable implementation on top
// of the Go runtime's network poller.
package poll

import (
	"errors"
	"syscall"
	"time"
)

var (
	// ErrClosed is returned by operations on a closed Poller.
	ErrClosed = errors.New("poller is closed")

	// ErrTokenInUse is returned when adding a socket for a known token.
	ErrTokenInUse = errors.New("token is already registered")
)

// Event reports a socket being readable.
type Event struct {
	Token uint64
}

// Poller waits for read readiness of registered sockets.
type Poller interface {
	// Add a socket under the given token.
	Add(conn syscall.Conn, token uint64) error

	// Remove the socket registered for a token. Unknown tokens are ignored.
	// A socket must be removed before it is closed.
	Remove(token uint64) error

	// Wait up to timeout for at least one readable socket. The returned
	// number of events were stored in the events slice.
	Wait(events []Event, timeout time.Duration) (int, error)

	// Close the Poller. Registered sockets are not closed.
	Close() error
}

// New creates the preferred Poller for this platform.
func New() (Poller, error) {
	return newPlatformPoller()
}
