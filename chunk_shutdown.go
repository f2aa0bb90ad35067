// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"fmt"
)

/*
chunkShutdown represents an SCTP Chunk of type SHUTDOWN (RFC 9260 section 3.3.8)

	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|   Type = 7    | Chunk  Flags  |      Length = 8               |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                      Cumulative TSN Ack                       |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type chunkShutdown struct {
	chunkHeader
	cumulativeTSNAck uint32
}

const (
	cumulativeTSNAckLength = 4
)

// ErrInvalidChunkSize is returned when a fixed size chunk has another length.
var ErrInvalidChunkSize = fmt.Errorf("%w: invalid chunk size", ErrInvalidChunk)

func (c *chunkShutdown) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshalAs(ctShutdown, raw); err != nil {
		return err
	}

	if len(c.raw) != cumulativeTSNAckLength {
		return fmt.Errorf("%w: SHUTDOWN value of %d bytes", ErrInvalidChunkSize, len(c.raw))
	}

	c.cumulativeTSNAck = binary.BigEndian.Uint32(c.raw[0:])

	return nil
}

func (c *chunkShutdown) marshal() ([]byte, error) {
	out := make([]byte, cumulativeTSNAckLength)
	binary.BigEndian.PutUint32(out[0:], c.cumulativeTSNAck)

	c.typ = ctShutdown
	c.flags = 0
	c.raw = out

	return c.chunkHeader.marshal()
}

func (c *chunkShutdown) check() (abort bool, err error) {
	return false, nil
}

// String makes chunkShutdown printable.
func (c *chunkShutdown) String() string {
	return fmt.Sprintf("%s cumTsnAck=%d", c.chunkHeader, c.cumulativeTSNAck)
}
