// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"fmt"
)

/*
chunkReconfig represents an SCTP Chunk of type RECONFIG (RFC 6525 section 3.1)

	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	| Type = 130    |  Chunk Flags  |      Chunk Length             |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	\                  Re-configuration Parameter                   /
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	\             Re-configuration Parameter (optional)             /
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type chunkReconfig struct {
	chunkHeader
	paramA param
	paramB param
}

// Reconfig chunk errors.
var (
	ErrReconfigNoParams       = fmt.Errorf("%w: RECONFIG without parameters", ErrInvalidChunk)
	ErrReconfigTooManyParams  = fmt.Errorf("%w: RECONFIG carries more than two parameters", ErrInvalidChunk)
	ErrReconfigUnexpectedType = fmt.Errorf("%w: unexpected RECONFIG parameter", ErrInvalidChunk)
)

func (c *chunkReconfig) unmarshal(raw []byte) error {
	if err := c.chunkHeader.unmarshalAs(ctReconfig, raw); err != nil {
		return err
	}

	params, _, err := parseParams(c.raw)
	if err != nil {
		return err
	}

	switch len(params) {
	case 0:
		return ErrReconfigNoParams
	case 1:
		c.paramA = params[0]
	case 2:
		c.paramA, c.paramB = params[0], params[1]
	default:
		return ErrReconfigTooManyParams
	}

	for _, p := range params {
		switch p.(type) {
		case *paramOutgoingResetRequest, *paramReconfigResponse:
		default:
			return fmt.Errorf("%w: %T", ErrReconfigUnexpectedType, p)
		}
	}

	return nil
}

func (c *chunkReconfig) marshal() ([]byte, error) {
	if c.paramA == nil {
		return nil, ErrReconfigNoParams
	}

	params := []param{c.paramA}
	if c.paramB != nil {
		params = append(params, c.paramB)
	}

	out, err := marshalParams(nil, params)
	if err != nil {
		return nil, err
	}

	c.typ = ctReconfig
	c.flags = 0
	c.raw = out

	return c.chunkHeader.marshal()
}

func (c *chunkReconfig) check() (abort bool, err error) {
	return false, nil
}

// String makes chunkReconfig printable.
func (c *chunkReconfig) String() string {
	res := fmt.Sprintf("RECONFIG paramA: %v", c.paramA)
	if c.paramB != nil {
		res += fmt.Sprintf(" paramB: %v", c.paramB)
	}

	return res
}
