// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package receiver implements the receiving end of SRT Link Aggregation.
//
// A sender splits one SRT stream over several network links. All links reach
// the Receiver on one shared UDP socket. After the three-phase registration,
// the Receiver forwards each group's packets to the SRT server over a
// downstream socket owned by that group and distributes the server's answers
// back over the group's links.
//
// The Receiver is driven by a single goroutine, Run. It owns all group state,
// therefore no locking is involved. Other goroutines may only observe the
// Receiver through Events and Snapshot.
package receiver
