// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli) // nolint:gochecknoglobals

var fourZeroes [4]byte // nolint:gochecknoglobals

/*
packet represents an SCTP packet, defined in https://tools.ietf.org/html/rfc9260#section-3
An SCTP packet is composed of a common header and chunks.

					SCTP Common Header Format
	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|     Source Port Number       |     Destination Port Number    |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                      Verification Tag                         |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                           Checksum                            |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type packet struct {
	sourcePort      uint16
	destinationPort uint16
	verificationTag uint32
	chunks          []chunk

	// chunks of unknown type whose report bit was set, filled by unmarshal
	unrecognizedChunks [][]byte
}

const (
	packetHeaderSize = 12
)

// Packet parse errors.
var (
	ErrPacketRawTooSmall           = fmt.Errorf("%w: raw is smaller than the minimum length for a SCTP packet", ErrInvalidChunk)
	ErrParseSCTPChunkNotEnoughData = fmt.Errorf("%w: not enough data for a complete chunk header", ErrInvalidChunk)
)

func newChunk(t chunkType) chunk { //nolint:cyclop
	switch t {
	case ctPayloadData:
		return &chunkPayloadData{}
	case ctInit:
		return &chunkInit{}
	case ctInitAck:
		return &chunkInitAck{}
	case ctSack:
		return &chunkSelectiveAck{}
	case ctHeartbeat:
		return &chunkHeartbeat{}
	case ctHeartbeatAck:
		return &chunkHeartbeatAck{}
	case ctAbort:
		return &chunkAbort{}
	case ctShutdown:
		return &chunkShutdown{}
	case ctShutdownAck:
		return &chunkShutdownAck{}
	case ctError:
		return &chunkError{}
	case ctCookieEcho:
		return &chunkCookieEcho{}
	case ctCookieAck:
		return &chunkCookieAck{}
	case ctShutdownComplete:
		return &chunkShutdownComplete{}
	case ctReconfig:
		return &chunkReconfig{}
	case ctForwardTSN:
		return &chunkForwardTSN{}
	default:
		return nil
	}
}

// unmarshal verifies the checksum and decodes every chunk. Chunks of unknown
// type are handled according to the two high bits of their type; when told
// to stop, the chunks decoded so far are kept.
func (p *packet) unmarshal(raw []byte) error {
	if len(raw) < packetHeaderSize {
		return fmt.Errorf("%w: raw only %d bytes, %d is the minimum length", ErrPacketRawTooSmall, len(raw), packetHeaderSize)
	}

	theirChecksum := binary.LittleEndian.Uint32(raw[8:])
	ourChecksum := generatePacketChecksum(raw)
	if theirChecksum != ourChecksum {
		return fmt.Errorf("%w: theirs %d ours %d", ErrChecksumMismatch, theirChecksum, ourChecksum)
	}

	p.sourcePort = binary.BigEndian.Uint16(raw[0:])
	p.destinationPort = binary.BigEndian.Uint16(raw[2:])
	p.verificationTag = binary.BigEndian.Uint32(raw[4:])

	offset := packetHeaderSize
	for offset < len(raw) {
		if offset+chunkHeaderSize > len(raw) {
			return fmt.Errorf("%w: offset %d remaining %d", ErrParseSCTPChunkNotEnoughData, offset, len(raw)-offset)
		}

		typ := chunkType(raw[offset])
		c := newChunk(typ)
		if c == nil {
			var hdr chunkHeader
			if err := hdr.unmarshal(raw[offset:]); err != nil {
				return err
			}

			skip, report := typ.unrecognizedAction()
			if report {
				p.unrecognizedChunks = append(p.unrecognizedChunks, raw[offset:offset+chunkHeaderSize+hdr.valueLength()])
			}
			if !skip {
				return nil
			}
			offset += chunkHeaderSize + hdr.valueLength() + getPadding(hdr.valueLength())

			continue
		}

		if err := c.unmarshal(raw[offset:]); err != nil {
			return err
		}

		p.chunks = append(p.chunks, c)
		offset += chunkHeaderSize + c.valueLength() + getPadding(c.valueLength())
	}

	return nil
}

func (p *packet) marshal() ([]byte, error) {
	raw := make([]byte, packetHeaderSize, packetHeaderSize+p.chunksLength())
	binary.BigEndian.PutUint16(raw[0:], p.sourcePort)
	binary.BigEndian.PutUint16(raw[2:], p.destinationPort)
	binary.BigEndian.PutUint32(raw[4:], p.verificationTag)

	for _, c := range p.chunks {
		chunkRaw, err := c.marshal()
		if err != nil {
			return nil, err
		}
		raw = append(raw, chunkRaw...)
		raw = padByte(raw, getPadding(len(raw)))
	}

	binary.LittleEndian.PutUint32(raw[8:], generatePacketChecksum(raw))

	return raw, nil
}

// chunksLength is a capacity hint; chunks that have not been marshaled yet
// report a zero value length.
func (p *packet) chunksLength() int {
	n := 0
	for _, c := range p.chunks {
		n += chunkHeaderSize + c.valueLength() + getPadding(c.valueLength())
	}

	return n
}

// generatePacketChecksum computes the CRC32c of a packet with the checksum
// field treated as zero.
func generatePacketChecksum(raw []byte) (sum uint32) {
	sum = crc32.Update(sum, castagnoliTable, raw[0:8])
	sum = crc32.Update(sum, castagnoliTable, fourZeroes[:])
	sum = crc32.Update(sum, castagnoliTable, raw[12:])

	return sum
}

// String makes packet printable.
func (p *packet) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Packet:\n\tsourcePort: %d\n\tdestinationPort: %d\n\tverificationTag: %d\n",
		p.sourcePort, p.destinationPort, p.verificationTag)
	for i, c := range p.chunks {
		fmt.Fprintf(&b, "Chunk %d:\n %s\n", i, c)
	}

	return b.String()
}
