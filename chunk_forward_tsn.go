// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"fmt"
	"strings"
)

/*
chunkForwardTSN represents an SCTP Chunk of type FORWARD TSN (RFC 3758 section 3.2)

	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|   Type = 192  |  Flags = 0x00 |        Length = Variable      |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                      New Cumulative TSN                       |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|         Stream-1              |       Stream Sequence-1       |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	/                              ...                              /
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

The stream entries list, for ordered streams only, the largest SSN the
receiver should consider delivered.
*/
type chunkForwardTSN struct {
	chunkHeader

	newCumulativeTSN uint32
	streams          []chunkForwardTSNStream
}

type chunkForwardTSNStream struct {
	identifier uint16
	sequence   uint16
}

const (
	newCumulativeTSNLength = 4
	forwardTSNStreamLength = 4
)

// ErrForwardTSNInvalidLength is returned for a malformed FORWARD TSN.
var ErrForwardTSNInvalidLength = fmt.Errorf("%w: FORWARD TSN length invalid", ErrInvalidChunk)

func (c *chunkForwardTSN) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshalAs(ctForwardTSN, raw); err != nil {
		return err
	}

	if len(c.raw) < newCumulativeTSNLength ||
		(len(c.raw)-newCumulativeTSNLength)%forwardTSNStreamLength != 0 {
		return fmt.Errorf("%w: %d bytes", ErrForwardTSNInvalidLength, len(c.raw))
	}

	c.newCumulativeTSN = binary.BigEndian.Uint32(c.raw[0:])
	c.streams = make([]chunkForwardTSNStream, 0, (len(c.raw)-newCumulativeTSNLength)/forwardTSNStreamLength)
	for off := newCumulativeTSNLength; off < len(c.raw); off += forwardTSNStreamLength {
		c.streams = append(c.streams, chunkForwardTSNStream{
			identifier: binary.BigEndian.Uint16(c.raw[off:]),
			sequence:   binary.BigEndian.Uint16(c.raw[off+2:]),
		})
	}

	return nil
}

func (c *chunkForwardTSN) marshal() ([]byte, error) {
	out := make([]byte, newCumulativeTSNLength+len(c.streams)*forwardTSNStreamLength)
	binary.BigEndian.PutUint32(out[0:], c.newCumulativeTSN)
	for i, s := range c.streams {
		off := newCumulativeTSNLength + i*forwardTSNStreamLength
		binary.BigEndian.PutUint16(out[off:], s.identifier)
		binary.BigEndian.PutUint16(out[off+2:], s.sequence)
	}

	c.chunkHeader.typ = ctForwardTSN
	c.chunkHeader.flags = 0
	c.chunkHeader.raw = out

	return c.chunkHeader.marshal()
}

func (c *chunkForwardTSN) check() (abort bool, err error) {
	return false, nil
}

// String makes chunkForwardTSN printable.
func (c *chunkForwardTSN) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "FORWARD-TSN newCumulativeTSN=%d", c.newCumulativeTSN)
	for _, s := range c.streams {
		fmt.Fprintf(&b, "\n - si=%d, ssn=%d", s.identifier, s.sequence)
	}

	return b.String()
}
