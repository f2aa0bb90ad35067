// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import "fmt"

// chunkShutdownComplete represents an SCTP Chunk of type SHUTDOWN COMPLETE
// (RFC 9260 section 3.3.13).
type chunkShutdownComplete struct {
	chunkHeader
}

func (c *chunkShutdownComplete) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshalAs(ctShutdownComplete, raw); err != nil {
		return err
	}
	if len(c.raw) != 0 {
		return fmt.Errorf("%w: SHUTDOWN COMPLETE value of %d bytes", ErrInvalidChunkSize, len(c.raw))
	}

	return nil
}

func (c *chunkShutdownComplete) marshal() ([]byte, error) {
	c.typ = ctShutdownComplete
	c.flags = 0
	c.raw = nil

	return c.chunkHeader.marshal()
}

func (c *chunkShutdownComplete) check() (abort bool, err error) {
	return false, nil
}
