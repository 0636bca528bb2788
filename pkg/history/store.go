// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package history

import (
	"os"
	"path"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/timshannon/badgerhold"

	"github.com/dtn7/srtla-go/pkg/receiver"
)

const dirBadger string = "db"

// Store of Records.
type Store struct {
	bh *badgerhold.Store
}

// Open a new or existing Store within the given directory.
func Open(dir string) (s *Store, err error) {
	badgerDir := path.Join(dir, dirBadger)

	opts := badgerhold.DefaultOptions
	opts.Dir = badgerDir
	opts.ValueDir = badgerDir
	opts.Logger = log.StandardLogger()
	opts.Options.ValueLogFileSize = 1<<26 - 1

	if dirErr := os.MkdirAll(badgerDir, 0700); dirErr != nil {
		err = dirErr
		return
	}

	if bh, bhErr := badgerhold.Open(opts); bhErr != nil {
		err = bhErr
	} else {
		s = &Store{bh: bh}
	}
	return
}

// Close the Store. It must not be used afterwards.
func (s *Store) Close() error {
	return s.bh.Close()
}

// Add a Record.
func (s *Store) Add(r Record) error {
	log.WithFields(log.Fields{
		"group":  r.Seq,
		"reason": r.Reason,
	}).Debug("Storing group record")

	return s.bh.Insert(r.Key, r)
}

// Since returns all Records of groups removed at or after t, ordered by their
// removal.
func (s *Store) Since(t time.Time) (rs []Record, err error) {
	if err = s.bh.Find(&rs, badgerhold.Where("RemovedAt").Ge(t)); err != nil {
		return
	}

	sort.Slice(rs, func(i, j int) bool {
		return rs[i].RemovedAt.Before(rs[j].RemovedAt)
	})
	return
}

// Prune deletes all Records of groups removed before t and returns their
// number.
func (s *Store) Prune(t time.Time) (n int, err error) {
	var rs []Record
	if err = s.bh.Find(&rs, badgerhold.Where("RemovedAt").Lt(t)); err != nil {
		return
	}

	for _, r := range rs {
		if err = s.bh.Delete(r.Key, Record{}); err != nil {
			return
		}
		n++
	}
	return
}

// Journal stores a Record for each GroupRemoved event until the channel is
// closed. Records older than retention are pruned once per hour; a zero
// retention keeps everything.
func (s *Store) Journal(events <-chan receiver.Event, retention time.Duration) {
	pruneTicker := time.NewTicker(time.Hour)
	defer pruneTicker.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Type != receiver.GroupRemoved {
				continue
			}

			r, _ := NewRecord(e)
			if err := s.Add(r); err != nil {
				log.WithError(err).WithField("group", r.Seq).Warn("Failed to store group record")
			}

		case <-pruneTicker.C:
			if retention <= 0 {
				continue
			}

			if n, err := s.Prune(time.Now().Add(-retention)); err != nil {
				log.WithError(err).Warn("Failed to prune group records")
			} else if n > 0 {
				log.WithField("records", n).Info("Pruned group records")
			}
		}
	}
}
