// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package group holds the receiver's directory of SRTLA groups and their
// links. A Group is one aggregated session of a sender, bound to a single
// downstream SRT connection; a Link is one of the sender's network paths,
// identified by its UDP address.
//
// The Registry owns all identity and membership state. It is not safe for
// concurrent use; the receiver's event loop is its only user.
package group
