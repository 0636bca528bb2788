// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build unix
// +build unix

package poll

import (
	"errors"

	"golang.org/x/sys/unix"
)

// readable returns a check for RawConn.Read which peeks at the socket without
// consuming the datagram. Pending errors count as readable, the following read
// reports them.
func readable() func(fd uintptr) bool {
	return func(fd uintptr) bool {
		var b [1]byte
		_, _, err := unix.Recvfrom(int(fd), b[:], unix.MSG_PEEK)
		return !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EWOULDBLOCK)
	}
}
