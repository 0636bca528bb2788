// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !unix && !windows
// +build !unix,!windows

package receiver

func isFatal(error) bool {
	return false
}
