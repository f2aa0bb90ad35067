// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"fmt"
)

/*
chunkHeader represents a SCTP Chunk header, defined in https://tools.ietf.org/html/rfc9260#section-3.2
The figure below illustrates the field format for the chunks to be
transmitted in the SCTP packet.  Each chunk is formatted with a Chunk
Type field, a chunk-specific Flag field, a Chunk Length field, and a
Value field.

	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|   Chunk Type  | Chunk  Flags  |        Chunk Length           |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                                                               |
	|                          Chunk Value                          |
	|                                                               |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type chunkHeader struct {
	typ   chunkType
	flags byte
	raw   []byte
}

const (
	chunkHeaderSize = 4
)

// SCTP chunk header errors.
var (
	ErrChunkHeaderTooSmall       = fmt.Errorf("%w: raw is too small for a SCTP chunk", ErrInvalidChunk)
	ErrChunkHeaderNotEnoughSpace = fmt.Errorf("%w: not enough data left in SCTP packet to satisfy requested length", ErrInvalidChunk)
	ErrChunkHeaderPaddingNonZero = fmt.Errorf("%w: chunk padding is non-zero at offset", ErrInvalidChunk)
	ErrChunkHeaderInvalidLength  = fmt.Errorf("%w: chunk length field smaller than header length", ErrInvalidChunk)
	ErrChunkTypeMismatch         = fmt.Errorf("%w: chunk type does not match the decoder", ErrInvalidChunk)
)

func (c *chunkHeader) unmarshal(raw []byte) error {
	if len(raw) < chunkHeaderSize {
		return fmt.Errorf("%w: raw only %d bytes, %d is the minimum length",
			ErrChunkHeaderTooSmall, len(raw), chunkHeaderSize)
	}

	c.typ = chunkType(raw[0])
	c.flags = raw[1]
	length := int(binary.BigEndian.Uint16(raw[2:]))

	if length < chunkHeaderSize {
		return fmt.Errorf("%w: length=%d", ErrChunkHeaderInvalidLength, length)
	}
	if length > len(raw) {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrChunkHeaderNotEnoughSpace, length, len(raw))
	}

	c.raw = raw[chunkHeaderSize:length]

	// The receiver ignores padding, but the padding present in this slice
	// must be zeroes.
	pad := getPadding(length)
	for i := length; i < length+pad && i < len(raw); i++ {
		if raw[i] != 0 {
			return fmt.Errorf("%w: %d", ErrChunkHeaderPaddingNonZero, i)
		}
	}

	return nil
}

// unmarshalAs decodes the header and verifies the chunk type.
func (c *chunkHeader) unmarshalAs(typ chunkType, raw []byte) error {
	if err := c.unmarshal(raw); err != nil {
		return err
	}
	if c.typ != typ {
		return fmt.Errorf("%w: expected %s, got %s", ErrChunkTypeMismatch, typ, c.typ)
	}

	return nil
}

func (c *chunkHeader) marshal() ([]byte, error) {
	raw := make([]byte, chunkHeaderSize+len(c.raw))

	raw[0] = uint8(c.typ)
	raw[1] = c.flags
	binary.BigEndian.PutUint16(raw[2:], uint16(len(c.raw)+chunkHeaderSize)) //nolint:gosec // G115
	copy(raw[chunkHeaderSize:], c.raw)

	return raw, nil
}

func (c *chunkHeader) valueLength() int {
	return len(c.raw)
}

// String makes chunkHeader printable.
func (c chunkHeader) String() string {
	return c.typ.String()
}
