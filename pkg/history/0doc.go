// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package history journals removed groups in a badgerhold database.
//
// A Record is written for every removed group, keeping its lifetime, links,
// traffic and the reason for its removal beyond the receiver's lifetime.
package history
