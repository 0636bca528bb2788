// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package history

import (
	"fmt"
	"time"

	"github.com/dtn7/srtla-go/pkg/group"
	"github.com/dtn7/srtla-go/pkg/receiver"
)

// Record of a removed group.
type Record struct {
	// Key is unique over restarts, in contrast to the group's Seq.
	Key string `badgerhold:"key" json:"-"`

	Seq       uint64    `json:"seq"`
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	RemovedAt time.Time `json:"removed_at" badgerholdIndex:"RemovedAt"`
	Reason    string    `json:"reason"`

	Links    []string      `json:"links"`
	Upstream group.Traffic `json:"upstream"`
	Returned group.Traffic `json:"returned"`
}

// NewRecord from a GroupRemoved event.
func NewRecord(e receiver.Event) (Record, error) {
	if e.Type != receiver.GroupRemoved {
		return Record{}, fmt.Errorf("event %v is no group removal", e)
	}

	links := make([]string, 0, len(e.Group.Links))
	for _, l := range e.Group.Links {
		links = append(links, l.Addr.String())
	}

	return Record{
		Key:       fmt.Sprintf("%020d-%d", e.Time.UnixNano(), e.Group.Seq),
		Seq:       e.Group.Seq,
		ID:        e.Group.ID,
		CreatedAt: e.Group.CreatedAt,
		RemovedAt: e.Time,
		Reason:    e.Reason,
		Links:     links,
		Upstream:  e.Group.Upstream,
		Returned:  e.Group.Returned,
	}, nil
}

// Lifetime of the recorded group.
func (r Record) Lifetime() time.Duration {
	return r.RemovedAt.Sub(r.CreatedAt)
}
