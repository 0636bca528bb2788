// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !unix && !windows
// +build !unix,!windows

package poll

import (
	"fmt"
	"runtime"
)

func newPlatformPoller() (Poller, error) {
	return nil, fmt.Errorf("no poller available for %s", runtime.GOOS)
}
