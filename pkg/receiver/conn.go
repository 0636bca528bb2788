// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package receiver

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"syscall"
	"time"

	"github.com/dtn7/srtla-go/pkg/group"
	"github.com/dtn7/srtla-go/pkg/srt"
)

// PacketConn is the shared socket all links send to, e.g., a *net.UDPConn.
type PacketConn interface {
	ReadFromUDPAddrPort(b []byte) (n int, addr netip.AddrPort, err error)
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)
	SetReadDeadline(t time.Time) error
	LocalAddr() net.Addr
	Close() error
	syscall.Conn
}

// Dialer creates connected downstream sockets.
type Dialer interface {
	Dial() (group.Downstream, error)
}

// UDPDialer connects UDP sockets to the SRT server's address.
type UDPDialer struct {
	Addr netip.AddrPort
}

func (d UDPDialer) Dial() (group.Downstream, error) {
	conn, err := net.DialUDP("udp", nil, net.UDPAddrFromAddrPort(d.Addr))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (d UDPDialer) String() string {
	return d.Addr.String()
}

// isTimeout reports an exceeded read deadline, i.e., a spurious wakeup.
func isTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// exchangeInduction sends an SRT handshake induction and waits for a reply of
// the handshake's size. The connection's read deadline is reset afterwards.
func exchangeInduction(conn group.Downstream, timeout time.Duration) error {
	if n, err := conn.Write(srt.NewInduction().Bytes()); err != nil {
		return err
	} else if n != srt.HandshakeLen {
		return io.ErrShortWrite
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	buf := make([]byte, srt.MTU)
	n, err := conn.Read(buf)
	if err != nil {
		return err
	} else if n != srt.HandshakeLen {
		return fmt.Errorf("%w: %d bytes instead of %d", ErrHandshakeReply, n, srt.HandshakeLen)
	}

	return conn.SetReadDeadline(time.Time{})
}

// handshake dials a new downstream socket and checks that an SRT server
// answers on it. On success, the caller owns the socket.
func handshake(d Dialer, timeout time.Duration) (group.Downstream, error) {
	conn, err := d.Dial()
	if err != nil {
		return nil, err
	}

	if err := exchangeInduction(conn, timeout); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}
