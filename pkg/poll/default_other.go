// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build (unix && !linux) || windows
// +build unix,!linux windows

package poll

func newPlatformPoller() (Poller, error) {
	return NewPortable(), nil
}
