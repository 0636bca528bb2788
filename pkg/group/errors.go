// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package group

import "errors"

var (
	// ErrGroupLimit is returned when the maximum number of groups is reached.
	ErrGroupLimit = errors.New("group limit reached")

	// ErrLinkLimit is returned when a group already has its maximum number of links.
	ErrLinkLimit = errors.New("link limit of group reached")

	// ErrAddressInUse is returned when an address is already bound to a group.
	ErrAddressInUse = errors.New("address is already registered")

	// ErrEntropy is returned when no random group ID could be generated.
	ErrEntropy = errors.New("failed to read random bytes")

	// ErrUnknownGroup is returned for operations on a group which is not registered.
	ErrUnknownGroup = errors.New("group is not registered")
)
