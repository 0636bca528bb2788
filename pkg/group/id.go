// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package group

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/dtn7/srtla-go/pkg/srtla"
)

// ID identifies a Group towards the sender. The first half is proposed by the
// sender in its REG1, the second half is random.
type ID [srtla.IDLen]byte

// NewID from the sender's proposal and fresh randomness.
func NewID(proposal [srtla.IDLen]byte, rand io.Reader) (id ID, err error) {
	copy(id[:srtla.IDLen/2], proposal[:srtla.IDLen/2])
	if _, err = io.ReadFull(rand, id[srtla.IDLen/2:]); err != nil {
		err = fmt.Errorf("%w: %v", ErrEntropy, err)
	}
	return
}

// Equal compares two IDs in constant time.
func (id ID) Equal(other ID) bool {
	return subtle.ConstantTimeCompare(id[:], other[:]) == 1
}

func (id ID) String() string {
	return hex.EncodeToString(id[:8])
}
