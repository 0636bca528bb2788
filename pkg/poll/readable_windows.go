// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build windows
// +build windows

package poll

// readable returns a check for RawConn.Read. On Windows the runtime waits for
// readability with an overlapped zero-byte MSG_PEEK receive, which completes
// once a datagram or an error is queued. Go's sockets are not in non-blocking
// mode and a peek of our own would block the thread, so the first check
// always fails and only the runtime's wakeup counts.
func readable() func(fd uintptr) bool {
	woken := false
	return func(uintptr) bool {
		if woken {
			return true
		}
		woken = true
		return false
	}
}
