// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build windows
// +build windows

package receiver

import (
	"errors"
	"syscall"
)

// Winsock error codes, see WSAENETUNREACH and friends.
const (
	wsaeaddrnotavail syscall.Errno = 10049
	wsaenetunreach   syscall.Errno = 10051
	wsaeconnreset    syscall.Errno = 10054
	wsaehostunreach  syscall.Errno = 10065
)

// isFatal reports a send error proving the destination unreachable.
func isFatal(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	switch errno {
	case wsaenetunreach, wsaehostunreach, wsaeaddrnotavail, wsaeconnreset:
		return true
	default:
		return false
	}
}
