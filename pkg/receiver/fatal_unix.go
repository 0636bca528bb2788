// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build unix
// +build unix

package receiver

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isFatal reports a send error proving the destination unreachable.
func isFatal(err error) bool {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return false
	}

	switch errno {
	case unix.ENETUNREACH, unix.EHOSTUNREACH, unix.EADDRNOTAVAIL, unix.ECONNRESET:
		return true
	default:
		return false
	}
}
