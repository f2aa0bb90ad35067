// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawChunk(typ chunkType, flags byte, value []byte, pad []byte) []byte {
	b := make([]byte, chunkHeaderSize+len(value), chunkHeaderSize+len(value)+len(pad))
	b[0] = byte(typ)
	b[1] = flags
	binary.BigEndian.PutUint16(b[2:], uint16(chunkHeaderSize+len(value))) //nolint:gosec
	copy(b[chunkHeaderSize:], value)

	return append(b, pad...)
}

func TestChunkHeader_Unmarshal(t *testing.T) {
	t.Run("valid with padding", func(t *testing.T) {
		var ch chunkHeader
		require.NoError(t, ch.unmarshal(rawChunk(ctError, 0x05, []byte{1, 2, 3}, []byte{0})))
		assert.Equal(t, ctError, ch.typ)
		assert.Equal(t, byte(0x05), ch.flags)
		assert.Equal(t, []byte{1, 2, 3}, ch.raw)
		assert.Equal(t, 3, ch.valueLength())
	})

	t.Run("too short", func(t *testing.T) {
		var ch chunkHeader
		assert.ErrorIs(t, ch.unmarshal([]byte{0x01, 0x00, 0x00}), ErrChunkHeaderTooSmall)
	})

	t.Run("length below header", func(t *testing.T) {
		var ch chunkHeader
		assert.ErrorIs(t, ch.unmarshal([]byte{0x01, 0x00, 0x00, 0x03}), ErrChunkHeaderInvalidLength)
	})

	t.Run("length beyond buffer", func(t *testing.T) {
		raw := rawChunk(ctError, 0, []byte{1, 2, 3, 4}, nil)
		var ch chunkHeader
		assert.ErrorIs(t, ch.unmarshal(raw[:6]), ErrChunkHeaderNotEnoughSpace)
	})

	t.Run("non-zero padding", func(t *testing.T) {
		var ch chunkHeader
		err := ch.unmarshal(rawChunk(ctError, 0, []byte{1}, []byte{0, 0xff, 0}))
		assert.ErrorIs(t, err, ErrChunkHeaderPaddingNonZero)
		assert.ErrorIs(t, err, ErrInvalidChunk)
	})

	t.Run("type mismatch", func(t *testing.T) {
		var ch chunkHeader
		assert.ErrorIs(t, ch.unmarshalAs(ctSack, rawChunk(ctError, 0, nil, nil)), ErrChunkTypeMismatch)
	})
}

func TestChunkHeader_Marshal(t *testing.T) {
	ch := chunkHeader{typ: ctCookieEcho, flags: 0, raw: []byte{0xaa, 0xbb}}
	raw, err := ch.marshal()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x00, 0x00, 0x06, 0xaa, 0xbb}, raw)
	assert.Equal(t, "COOKIE-ECHO", ch.String())
}
