// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checksummed fills in the CRC32c of a hand written packet.
func checksummed(raw []byte) []byte {
	binary.LittleEndian.PutUint32(raw[8:], generatePacketChecksum(raw))

	return raw
}

func TestPacketUnmarshal(t *testing.T) {
	pkt := &packet{}
	assert.ErrorIs(t, pkt.unmarshal([]byte{}), ErrPacketRawTooSmall)

	headerOnly := []byte{0x13, 0x88, 0x13, 0x88, 0x00, 0x00, 0x00, 0x00, 0x06, 0xa9, 0x00, 0xe1}
	require.NoError(t, pkt.unmarshal(headerOnly))
	assert.Equal(t, uint16(defaultSCTPSrcDstPort), pkt.sourcePort)
	assert.Equal(t, uint16(defaultSCTPSrcDstPort), pkt.destinationPort)
	assert.Equal(t, uint32(0), pkt.verificationTag)
	assert.Empty(t, pkt.chunks)

	// INIT captured from a browser, with unknown skippable parameters
	rawInit := []byte{
		0x13, 0x88, 0x13, 0x88, 0x00, 0x00, 0x00, 0x00, 0x81, 0x46, 0x9d, 0xfc, 0x01, 0x00, 0x00, 0x56, 0x55,
		0xb9, 0x64, 0xa5, 0x00, 0x02, 0x00, 0x00, 0x04, 0x00, 0x08, 0x00, 0xe8, 0x6d, 0x10, 0x30, 0xc0, 0x00,
		0x00, 0x04, 0x80, 0x08, 0x00, 0x09, 0xc0, 0x0f, 0xc1, 0x80, 0x82, 0x00, 0x00, 0x00, 0x80, 0x02, 0x00,
		0x24, 0x9f, 0xeb, 0xbb, 0x5c, 0x50, 0xc9, 0xbf, 0x75, 0x9c, 0xb1, 0x2c, 0x57, 0x4f, 0xa4, 0x5a, 0x51,
		0xba, 0x60, 0x17, 0x78, 0x27, 0x94, 0x5c, 0x31, 0xe6, 0x5d, 0x5b, 0x09, 0x47, 0xe2, 0x22, 0x06, 0x80,
		0x04, 0x00, 0x06, 0x00, 0x01, 0x00, 0x00, 0x80, 0x03, 0x00, 0x06, 0x80, 0xc1, 0x00, 0x00,
	}
	pkt = &packet{}
	require.NoError(t, pkt.unmarshal(rawInit))
	require.Len(t, pkt.chunks, 1)

	initChunk, ok := pkt.chunks[0].(*chunkInit)
	require.True(t, ok)
	assert.Equal(t, uint32(0x55b964a5), initChunk.initiateTag)
	assert.True(t, initChunk.forwardTSNSupported())
	assert.True(t, initChunk.reconfigSupported())
	assert.Empty(t, initChunk.unrecognizedParams)
}

func TestPacketUnmarshal_ChecksumMismatch(t *testing.T) {
	raw := []byte{0x13, 0x88, 0x13, 0x88, 0x00, 0x00, 0x00, 0x00, 0x06, 0xa9, 0x00, 0xe2}
	assert.ErrorIs(t, (&packet{}).unmarshal(raw), ErrChecksumMismatch)

	// a zero checksum is not accepted either
	raw = []byte{0x13, 0x88, 0x13, 0x88, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	assert.ErrorIs(t, (&packet{}).unmarshal(raw), ErrChecksumMismatch)
}

func TestPacketMarshal(t *testing.T) {
	pkt := &packet{
		sourcePort:      5000,
		destinationPort: 5000,
		verificationTag: 0x01020304,
		chunks: []chunk{
			&chunkCookieAck{},
			&chunkPayloadData{
				beginningFragment: true,
				endingFragment:    true,
				tsn:               1,
				userData:          []byte{0x01},
			},
			&chunkSelectiveAck{cumulativeTSNAck: 1, advertisedReceiverWindowCredit: 1500},
		},
	}

	raw, err := pkt.marshal()
	require.NoError(t, err)
	// header, COOKIE-ACK, DATA padded to 20, SACK
	assert.Len(t, raw, packetHeaderSize+4+20+16)
	assert.Equal(t, generatePacketChecksum(raw), binary.LittleEndian.Uint32(raw[8:]))

	got := &packet{}
	require.NoError(t, got.unmarshal(raw))
	assert.Equal(t, uint32(0x01020304), got.verificationTag)
	require.Len(t, got.chunks, 3)
	assert.IsType(t, &chunkCookieAck{}, got.chunks[0])
	assert.IsType(t, &chunkPayloadData{}, got.chunks[1])
	assert.IsType(t, &chunkSelectiveAck{}, got.chunks[2])

	again, err := got.marshal()
	require.NoError(t, err)
	assert.Equal(t, raw, again)

	headerOnly := []byte{0x13, 0x88, 0x13, 0x88, 0x00, 0x00, 0x00, 0x00, 0x06, 0xa9, 0x00, 0xe1}
	raw, err = (&packet{sourcePort: 5000, destinationPort: 5000}).marshal()
	require.NoError(t, err)
	assert.Equal(t, headerOnly, raw)
}

func TestPacketUnmarshal_UnrecognizedChunks(t *testing.T) {
	header := []byte{0x13, 0x88, 0x13, 0x88, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	cookieAck := []byte{0x0b, 0x00, 0x00, 0x04}
	shutdownAck := []byte{0x08, 0x00, 0x00, 0x04}

	build := func(unknownType byte) []byte {
		raw := append([]byte{}, header...)
		raw = append(raw, cookieAck...)
		raw = append(raw, unknownType, 0x00, 0x00, 0x05, 0xee, 0x00, 0x00, 0x00)
		raw = append(raw, shutdownAck...)

		return checksummed(raw)
	}

	tt := []struct {
		typ        byte
		chunks     int
		reported int
	}{
		{0x3f, 1, 0}, // stop, silent
		{0x7f, 1, 1}, // stop, report
		{0xbf, 2, 0}, // skip, silent
		{0xff, 2, 1}, // skip, report
	}

	for _, tc := range tt {
		pkt := &packet{}
		require.NoError(t, pkt.unmarshal(build(tc.typ)), "type %#x", tc.typ)
		assert.Len(t, pkt.chunks, tc.chunks, "type %#x", tc.typ)
		require.Len(t, pkt.unrecognizedChunks, tc.reported, "type %#x", tc.typ)
		if tc.reported > 0 {
			assert.Equal(t, []byte{tc.typ, 0x00, 0x00, 0x05, 0xee}, pkt.unrecognizedChunks[0])
		}
		assert.IsType(t, &chunkCookieAck{}, pkt.chunks[0])
	}
}

func TestPacketUnmarshal_Truncated(t *testing.T) {
	raw := checksummed([]byte{
		0x13, 0x88, 0x13, 0x88, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00,
		0x0b, 0x00,
	})
	assert.ErrorIs(t, (&packet{}).unmarshal(raw), ErrInvalidChunk)

	raw = checksummed([]byte{
		0x13, 0x88, 0x13, 0x88, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00,
		0x07, 0x00, 0x00, 0x08, 0x00, 0x00,
	})
	assert.ErrorIs(t, (&packet{}).unmarshal(raw), ErrChunkHeaderNotEnoughSpace)
}

func FuzzPacketUnmarshal(f *testing.F) {
	f.Add([]byte{0x13, 0x88, 0x13, 0x88, 0x00, 0x00, 0x00, 0x00, 0x06, 0xa9, 0x00, 0xe1})
	f.Fuzz(func(t *testing.T, input []byte) {
		data := append([]byte{}, input...)
		if len(data) >= packetHeaderSize {
			checksummed(data)
		}

		pkt := &packet{}
		if err := pkt.unmarshal(data); err != nil {
			return
		}
		_, _ = pkt.marshal()
	})
}
