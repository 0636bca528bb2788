// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dtn7/cboring"
)

// Announcement of a receiver.
type Announcement struct {
	// Name identifies the receiver, e.g., its host name.
	Name string

	// Version of the announcing receiver.
	Version string

	// Port of the receiver's SRTLA socket.
	Port uint

	// StatusPort of the HTTP status API or zero if it is disabled.
	StatusPort uint
}

// UnmarshalAnnouncement from its CBOR representation.
func UnmarshalAnnouncement(data []byte) (a Announcement, err error) {
	err = cboring.Unmarshal(&a, bytes.NewBuffer(data))
	return
}

// MarshalAnnouncement into its CBOR representation.
func MarshalAnnouncement(a Announcement) ([]byte, error) {
	buff := new(bytes.Buffer)
	if err := cboring.Marshal(&a, buff); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// MarshalCbor creates a CBOR representation for an Announcement.
func (a *Announcement) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(4, w); err != nil {
		return err
	}

	for _, s := range []string{a.Name, a.Version} {
		if err := cboring.WriteTextString(s, w); err != nil {
			return err
		}
	}

	for _, n := range []uint{a.Port, a.StatusPort} {
		if err := cboring.WriteUInt(uint64(n), w); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalCbor creates an Announcement from its CBOR representation.
func (a *Announcement) UnmarshalCbor(r io.Reader) error {
	if l, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if l != 4 {
		return fmt.Errorf("wrong array length: %d instead of 4", l)
	}

	for _, s := range []*string{&a.Name, &a.Version} {
		if str, err := cboring.ReadTextString(r); err != nil {
			return err
		} else {
			*s = str
		}
	}

	for _, n := range []*uint{&a.Port, &a.StatusPort} {
		if x, err := cboring.ReadUInt(r); err != nil {
			return err
		} else if x > 0xffff {
			return fmt.Errorf("port %d exceeds the port range", x)
		} else {
			*n = uint(x)
		}
	}
	return nil
}

func (a Announcement) String() string {
	return fmt.Sprintf("Announcement(%s,%s,%d,%d)", a.Name, a.Version, a.Port, a.StatusPort)
}
