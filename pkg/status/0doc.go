// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package status serves a receiver's state over HTTP.
//
// The JSON API is bound to a gorilla/mux Router:
//
//	GET /groups          all groups with their links
//	GET /groups/{seq}    a single group
//	GET /stats           registry counters
//	GET /history?since=  removed groups, since is an RFC 3339 timestamp
//	GET /peers           other receivers found by discovery
//	GET /events          WebSocket stream of lifecycle events
package status
