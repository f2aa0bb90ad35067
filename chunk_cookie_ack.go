// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import "fmt"

// chunkCookieAck represents an SCTP Chunk of type COOKIE ACK
// (RFC 9260 section 3.3.12).
type chunkCookieAck struct {
	chunkHeader
}

func (c *chunkCookieAck) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshalAs(ctCookieAck, raw); err != nil {
		return err
	}
	if len(c.raw) != 0 {
		return fmt.Errorf("%w: COOKIE ACK value of %d bytes", ErrInvalidChunkSize, len(c.raw))
	}

	return nil
}

func (c *chunkCookieAck) marshal() ([]byte, error) {
	c.chunkHeader.typ = ctCookieAck
	c.chunkHeader.flags = 0
	c.chunkHeader.raw = nil

	return c.chunkHeader.marshal()
}

func (c *chunkCookieAck) check() (abort bool, err error) {
	return false, nil
}
