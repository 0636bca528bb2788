// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package receiver

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"net"
	"net/netip"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dtn7/srtla-go/pkg/group"
	"github.com/dtn7/srtla-go/pkg/poll"
	"github.com/dtn7/srtla-go/pkg/srt"
	"github.com/dtn7/srtla-go/pkg/srtla"
)

var errFake = errors.New("fake failure")

type sentPacket struct {
	data []byte
	addr netip.AddrPort
}

// fakeConn records all packets sent over the shared socket.
type fakeConn struct {
	sent   []sentPacket
	errs   map[netip.AddrPort]error
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{errs: make(map[netip.AddrPort]error)}
}

func (c *fakeConn) ReadFromUDPAddrPort([]byte) (int, netip.AddrPort, error) {
	return 0, netip.AddrPort{}, os.ErrDeadlineExceeded
}

func (c *fakeConn) WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error) {
	if err := c.errs[addr]; err != nil {
		return 0, err
	}
	c.sent = append(c.sent, sentPacket{data: append([]byte(nil), b...), addr: addr})
	return len(b), nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (c *fakeConn) LocalAddr() net.Addr             { return &net.UDPAddr{} }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) SyscallConn() (syscall.RawConn, error) {
	return nil, errors.New("fake connection has no file descriptor")
}

func (c *fakeConn) sentTo(addr netip.AddrPort) (pkts [][]byte) {
	for _, p := range c.sent {
		if p.addr == addr {
			pkts = append(pkts, p.data)
		}
	}
	return
}

func (c *fakeConn) last() sentPacket {
	if len(c.sent) == 0 {
		return sentPacket{}
	}
	return c.sent[len(c.sent)-1]
}

func (c *fakeConn) reset() {
	c.sent = nil
}

// fakeDownstream is a downstream socket returning queued packets.
type fakeDownstream struct {
	written  [][]byte
	reads    [][]byte
	readErr  error
	writeErr error
	closed   bool
}

func (d *fakeDownstream) Read(b []byte) (int, error) {
	if d.closed {
		return 0, net.ErrClosed
	}
	if len(d.reads) > 0 {
		n := copy(b, d.reads[0])
		d.reads = d.reads[1:]
		return n, nil
	}
	if d.readErr != nil {
		return 0, d.readErr
	}
	return 0, os.ErrDeadlineExceeded
}

func (d *fakeDownstream) Write(b []byte) (int, error) {
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	d.written = append(d.written, append([]byte(nil), b...))
	return len(b), nil
}

func (d *fakeDownstream) Close() error {
	d.closed = true
	return nil
}

func (d *fakeDownstream) SetReadDeadline(time.Time) error { return nil }

func (d *fakeDownstream) SyscallConn() (syscall.RawConn, error) {
	return nil, errors.New("fake downstream has no file descriptor")
}

// fakeDialer hands out fakeDownstreams, optionally answering a handshake.
type fakeDialer struct {
	err    error
	reply  []byte
	dialed []*fakeDownstream

	// onDial is called on every Dial, e.g., to let time pass.
	onDial func()
}

func (d *fakeDialer) Dial() (group.Downstream, error) {
	if d.onDial != nil {
		d.onDial()
	}
	if d.err != nil {
		return nil, d.err
	}

	ds := &fakeDownstream{}
	if d.reply != nil {
		ds.reads = [][]byte{d.reply}
	}
	d.dialed = append(d.dialed, ds)
	return ds, nil
}

func (d *fakeDialer) lastDialed() *fakeDownstream {
	if len(d.dialed) == 0 {
		return nil
	}
	return d.dialed[len(d.dialed)-1]
}

type fakePoller struct {
	tokens map[uint64]syscall.Conn
	addErr error
	closed bool
}

func newFakePoller() *fakePoller {
	return &fakePoller{tokens: make(map[uint64]syscall.Conn)}
}

func (p *fakePoller) Add(conn syscall.Conn, token uint64) error {
	if p.addErr != nil {
		return p.addErr
	}
	p.tokens[token] = conn
	return nil
}

func (p *fakePoller) Remove(token uint64) error {
	delete(p.tokens, token)
	return nil
}

func (p *fakePoller) Wait([]poll.Event, time.Duration) (int, error) {
	return 0, nil
}

func (p *fakePoller) Close() error {
	p.closed = true
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	r      *Receiver
	conn   *fakeConn
	dialer *fakeDialer
	poller *fakePoller
	clock  *fakeClock
}

func newHarness(t *testing.T, modify ...func(*Config)) *harness {
	conf := DefaultConfig()
	for _, m := range modify {
		m(&conf)
	}

	h := &harness{
		conn:   newFakeConn(),
		dialer: &fakeDialer{},
		poller: newFakePoller(),
		clock:  &fakeClock{now: time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)},
	}

	r, err := New(Options{
		Config: conf,
		Conn:   h.conn,
		Dialer: h.dialer,
		Poller: h.poller,
		Rand:   rand.Reader,
		Clock:  h.clock.Now,
	})
	require.NoError(t, err)
	h.r = r

	return h
}

func linkAddr(n byte) netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 0, 0, n}), 4000+uint16(n))
}

func fill(b byte) (id [srtla.IDLen]byte) {
	for i := range id {
		id[i] = b
	}
	return
}

func reg1(b byte) []byte {
	return srtla.NewRegistrationMessage(srtla.TypeReg1, fill(b)).Bytes()
}

func reg2(id group.ID) []byte {
	return srtla.NewRegistrationMessage(srtla.TypeReg2, id).Bytes()
}

func keepalive() []byte {
	return append(srtla.MarshalType(srtla.TypeKeepalive), 0, 1, 2, 3, 4, 5, 6, 7)
}

// dataPacket is an SRT data packet with the given sequence number.
func dataPacket(sn uint32) []byte {
	pkt := make([]byte, srt.MinLen+32)
	binary.BigEndian.PutUint32(pkt, sn)
	copy(pkt[srt.MinLen:], "payload")
	return pkt
}

// srtPacket is an SRT control packet of the given type.
func srtPacket(t srt.PacketType) []byte {
	pkt := make([]byte, srt.MinLen+8)
	binary.BigEndian.PutUint16(pkt, uint16(t))
	return pkt
}

func isType(pkt []byte, t srtla.Type) bool {
	return len(pkt) >= 2 && binary.BigEndian.Uint16(pkt) == uint16(t)
}

// registerGroup performs a REG1 and returns the new group.
func (h *harness) registerGroup(t *testing.T, addr netip.AddrPort, proposal byte) *group.Group {
	h.r.handleLinkPacket(reg1(proposal), addr, h.clock.Now())

	reply := h.conn.last()
	require.Equal(t, addr, reply.addr)
	require.Len(t, reply.data, srtla.RegLen)
	require.True(t, isType(reply.data, srtla.TypeReg2), "expected REG2, got %x", reply.data[:2])

	var id group.ID
	copy(id[:], reply.data[2:])
	require.True(t, bytes.Equal(id[:srtla.IDLen/2], bytes.Repeat([]byte{proposal}, srtla.IDLen/2)))

	g := h.r.registry.FindByID(id)
	require.NotNil(t, g)
	return g
}

// registerLink performs a REG2 and checks for the REG3.
func (h *harness) registerLink(t *testing.T, g *group.Group, addr netip.AddrPort) *group.Link {
	h.r.handleLinkPacket(reg2(g.ID), addr, h.clock.Now())

	reply := h.conn.last()
	require.Equal(t, addr, reply.addr)
	require.Equal(t, srtla.MarshalType(srtla.TypeReg3), reply.data)

	l := g.Link(addr)
	require.NotNil(t, l)
	return l
}

// drainEvents returns all buffered events.
func (h *harness) drainEvents() (events []Event) {
	for {
		select {
		case e := <-h.r.Events():
			events = append(events, e)
		default:
			return
		}
	}
}

func eventTypes(events []Event) (types []EventType) {
	for _, e := range events {
		types = append(types, e.Type)
	}
	return
}
