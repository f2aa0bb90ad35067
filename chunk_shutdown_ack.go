// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import "fmt"

// chunkShutdownAck represents an SCTP Chunk of type SHUTDOWN ACK
// (RFC 9260 section 3.3.9). It has no value.
type chunkShutdownAck struct {
	chunkHeader
}

func (c *chunkShutdownAck) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshalAs(ctShutdownAck, raw); err != nil {
		return err
	}
	if len(c.raw) != 0 {
		return fmt.Errorf("%w: SHUTDOWN ACK value of %d bytes", ErrInvalidChunkSize, len(c.raw))
	}

	return nil
}

func (c *chunkShutdownAck) marshal() ([]byte, error) {
	c.typ = ctShutdownAck
	c.flags = 0
	c.raw = nil

	return c.chunkHeader.marshal()
}

func (c *chunkShutdownAck) check() (abort bool, err error) {
	return false, nil
}
