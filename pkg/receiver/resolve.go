// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package receiver

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"
)

// ResolveDownstream looks up the SRT server's host and picks the first address
// answering a handshake induction. An SRT server does not react to anything
// else before a handshake. If no address answers, the first one is used.
func ResolveDownstream(ctx context.Context, host string, port uint16, timeout time.Duration) (netip.AddrPort, error) {
	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("resolving %s: %w", host, err)
	} else if len(ips) == 0 {
		return netip.AddrPort{}, fmt.Errorf("%w: %s", ErrNoDownstream, host)
	}

	var addrs []netip.AddrPort
	for _, ip := range ips {
		addrs = append(addrs, netip.AddrPortFrom(ip.Unmap(), port))
	}
	return probeDownstream(addrs, timeout), nil
}

func probeDownstream(addrs []netip.AddrPort, timeout time.Duration) netip.AddrPort {
	for _, addr := range addrs {
		conn, err := handshake(UDPDialer{Addr: addr}, timeout)
		if err != nil {
			log.WithFields(log.Fields{
				"address": addr,
				"error":   err,
			}).Info("SRT server does not answer at address")
			continue
		}

		_ = conn.Close()
		log.WithField("address", addr).Info("SRT server is reachable")
		return addr
	}

	log.WithField("address", addrs[0]).Warn(
		"Failed to confirm that an SRT server is reachable at any address, proceeding with the first one")
	return addrs[0]
}
