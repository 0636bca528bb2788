// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package group

import (
	"net/netip"
	"testing"
	"time"

	"github.com/dtn7/srtla-go/pkg/srtla"
)

func TestLinkRecordSequence(t *testing.T) {
	l := newLink(nil, netip.MustParseAddrPort("192.0.2.1:4000"), time.Now())

	for round := 0; round < 3; round++ {
		for i := 0; i < srtla.AckBatch-1; i++ {
			if _, full := l.RecordSequence(uint32(round*100 + i)); full {
				t.Fatalf("Round %d: batch was full after %d sequence numbers", round, i+1)
			}
		}

		if pending := l.PendingAcks(); len(pending) != srtla.AckBatch-1 {
			t.Fatalf("Round %d: %d pending acks instead of %d", round, len(pending), srtla.AckBatch-1)
		}

		batch, full := l.RecordSequence(uint32(round*100 + srtla.AckBatch - 1))
		if !full {
			t.Fatalf("Round %d: batch was not full", round)
		}
		for i, sn := range batch {
			if sn != uint32(round*100+i) {
				t.Fatalf("Round %d: batch[%d] is %d", round, i, sn)
			}
		}

		if pending := l.PendingAcks(); len(pending) != 0 {
			t.Fatalf("Round %d: %d acks are pending after a full batch", round, len(pending))
		}
	}
}
