// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import "fmt"

/*
chunkCookieEcho represents an SCTP Chunk of type COOKIE ECHO (RFC 9260 section 3.3.11)

	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|   Type = 10   |Chunk  Flags   |         Length                |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                     Cookie                                    |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type chunkCookieEcho struct {
	chunkHeader
	cookie []byte
}

// ErrCookieEchoEmpty is returned for a COOKIE ECHO without a cookie.
var ErrCookieEchoEmpty = fmt.Errorf("%w: COOKIE ECHO without cookie", ErrInvalidChunk)

func (c *chunkCookieEcho) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshalAs(ctCookieEcho, raw); err != nil {
		return err
	}
	if len(c.raw) == 0 {
		return ErrCookieEchoEmpty
	}
	c.cookie = c.raw

	return nil
}

func (c *chunkCookieEcho) marshal() ([]byte, error) {
	if len(c.cookie) == 0 {
		return nil, ErrCookieEchoEmpty
	}

	c.chunkHeader.typ = ctCookieEcho
	c.chunkHeader.flags = 0
	c.chunkHeader.raw = c.cookie

	return c.chunkHeader.marshal()
}

func (c *chunkCookieEcho) check() (abort bool, err error) {
	return false, nil
}
