// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package receiver

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/srtla-go/pkg/group"
	"github.com/dtn7/srtla-go/pkg/poll"
	"github.com/dtn7/srtla-go/pkg/srt"
)

// listenerToken identifies the shared link socket at the Poller. Groups use
// their sequence number, which starts at one.
const listenerToken uint64 = 0

// readTimeout guards reads after a readiness notification against spurious
// wakeups.
const readTimeout = 5 * time.Millisecond

// Options to create a Receiver. Only Conn and Dialer are mandatory.
type Options struct {
	Config Config

	// Conn is the shared socket for all links.
	Conn PacketConn

	// Dialer creates the groups' downstream sockets.
	Dialer Dialer

	// Poller defaults to poll.New.
	Poller poll.Poller

	// Rand is the entropy source for group IDs, crypto/rand by default.
	Rand io.Reader

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Receiver terminates the links of SRTLA senders and forwards their streams
// to an SRT server.
type Receiver struct {
	conf     Config
	conn     PacketConn
	dialer   Dialer
	poller   poll.Poller
	registry *group.Registry
	clock    func() time.Time

	lastCleanup time.Time

	events       chan Event
	snapshot     atomic.Pointer[Snapshot]
	lastSnapshot time.Time
	dirty        bool

	buf [srt.MTU]byte
}

// New creates a Receiver. The Receiver takes ownership of the Conn and the
// Poller and closes them on Close.
func New(opts Options) (*Receiver, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if opts.Conn == nil || opts.Dialer == nil {
		return nil, errors.New("both a Conn and a Dialer are required")
	}

	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Poller == nil {
		p, err := poll.New()
		if err != nil {
			return nil, fmt.Errorf("creating poller: %w", err)
		}
		opts.Poller = p
	}

	registry, err := group.NewRegistry(opts.Config.MaxGroups, opts.Config.MaxLinksPerGroup, opts.Rand)
	if err != nil {
		return nil, err
	}

	r := &Receiver{
		conf:     opts.Config,
		conn:     opts.Conn,
		dialer:   opts.Dialer,
		poller:   opts.Poller,
		registry: registry,
		clock:    opts.Clock,
		events:   make(chan Event, opts.Config.EventBuffer),
		dirty:    true,
	}
	r.publishSnapshot(r.clock())

	return r, nil
}

// Listen creates a Receiver listening on the given UDP port of all interfaces
// and forwarding to the SRT server at downstream.
func Listen(conf Config, port uint16, downstream netip.AddrPort) (*Receiver, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return nil, fmt.Errorf("listening on UDP port %d: %w", port, err)
	}

	r, err := New(Options{
		Config: conf,
		Conn:   conn,
		Dialer: UDPDialer{Addr: downstream},
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return r, nil
}

// Addr of the shared link socket.
func (r *Receiver) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Close the shared socket and the Poller. Run must have returned before.
func (r *Receiver) Close() error {
	connErr := r.conn.Close()
	pollErr := r.poller.Close()
	if connErr != nil {
		return connErr
	}
	return pollErr
}

// send a packet over the shared socket.
func (r *Receiver) send(pkt []byte, addr netip.AddrPort) error {
	n, err := r.conn.WriteToUDPAddrPort(pkt, addr)
	if err == nil && n != len(pkt) {
		err = io.ErrShortWrite
	}
	return err
}

// logEntry for a group, extended by the error if LogErrors is set.
func (r *Receiver) logEntry(g *group.Group, err error) *log.Entry {
	entry := log.WithField("group", g)
	if r.conf.LogErrors && err != nil {
		entry = entry.WithError(err)
	}
	return entry
}
