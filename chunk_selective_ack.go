// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"fmt"
	"strings"
)

/*
chunkSelectiveAck represents an SCTP Chunk of type SACK (RFC 9260 section 3.3.4).

	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|   Type = 3    |Chunk  Flags   |      Chunk Length             |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                      Cumulative TSN Ack                       |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|          Advertised Receiver Window Credit (a_rwnd)           |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	| Number of Gap Ack Blocks = N  |  Number of Duplicate TSNs = X |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|  Gap Ack Block #1 Start       |   Gap Ack Block #1 End        |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	/                              ...                              /
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                       Duplicate TSN 1                         |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	/                              ...                              /
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type chunkSelectiveAck struct {
	chunkHeader
	cumulativeTSNAck               uint32
	advertisedReceiverWindowCredit uint32
	gapAckBlocks                   []gapAckBlock
	duplicateTSN                   []uint32
}

// gapAckBlock offsets are relative to the cumulative TSN ack.
type gapAckBlock struct {
	start uint16
	end   uint16
}

// String makes gapAckBlock printable.
func (g gapAckBlock) String() string {
	return fmt.Sprintf("%d - %d", g.start, g.end)
}

const (
	selectiveAckHeaderSize = 12
	gapAckBlockSize        = 4
	duplicateTSNSize       = 4
)

// Selective ack chunk errors.
var (
	ErrSackSizeNotLargeEnoughInfo = fmt.Errorf("%w: SACK chunk smaller than its header", ErrInvalidChunk)
	ErrSackSizeNotMatchPredicted  = fmt.Errorf("%w: SACK chunk size does not match its block counts", ErrInvalidChunk)
	ErrSackGapBlockInvalidRange   = fmt.Errorf("%w: SACK gap ack block has an invalid range", ErrInvalidChunk)
)

func (s *chunkSelectiveAck) unmarshal(raw []byte) error {
	if err := s.chunkHeader.unmarshalAs(ctSack, raw); err != nil {
		return err
	}

	if len(s.raw) < selectiveAckHeaderSize {
		return fmt.Errorf("%w: %d < %d", ErrSackSizeNotLargeEnoughInfo, len(s.raw), selectiveAckHeaderSize)
	}

	s.cumulativeTSNAck = binary.BigEndian.Uint32(s.raw[0:])
	s.advertisedReceiverWindowCredit = binary.BigEndian.Uint32(s.raw[4:])
	nGap := int(binary.BigEndian.Uint16(s.raw[8:]))
	nDup := int(binary.BigEndian.Uint16(s.raw[10:]))

	if len(s.raw) != selectiveAckHeaderSize+gapAckBlockSize*nGap+duplicateTSNSize*nDup {
		return ErrSackSizeNotMatchPredicted
	}

	offset := selectiveAckHeaderSize
	s.gapAckBlocks = make([]gapAckBlock, nGap)
	for i := range s.gapAckBlocks {
		g := gapAckBlock{
			start: binary.BigEndian.Uint16(s.raw[offset:]),
			end:   binary.BigEndian.Uint16(s.raw[offset+2:]),
		}
		if g.start == 0 || g.end < g.start {
			return fmt.Errorf("%w: %s", ErrSackGapBlockInvalidRange, g)
		}
		s.gapAckBlocks[i] = g
		offset += gapAckBlockSize
	}

	s.duplicateTSN = make([]uint32, nDup)
	for i := range s.duplicateTSN {
		s.duplicateTSN[i] = binary.BigEndian.Uint32(s.raw[offset:])
		offset += duplicateTSNSize
	}

	return nil
}

func (s *chunkSelectiveAck) marshal() ([]byte, error) {
	sackRaw := make([]byte,
		selectiveAckHeaderSize+gapAckBlockSize*len(s.gapAckBlocks)+duplicateTSNSize*len(s.duplicateTSN))
	binary.BigEndian.PutUint32(sackRaw[0:], s.cumulativeTSNAck)
	binary.BigEndian.PutUint32(sackRaw[4:], s.advertisedReceiverWindowCredit)
	binary.BigEndian.PutUint16(sackRaw[8:], uint16(len(s.gapAckBlocks)))  //nolint:gosec // G115
	binary.BigEndian.PutUint16(sackRaw[10:], uint16(len(s.duplicateTSN))) //nolint:gosec // G115

	offset := selectiveAckHeaderSize
	for _, g := range s.gapAckBlocks {
		if g.start == 0 || g.end < g.start {
			return nil, fmt.Errorf("%w: %s", ErrSackGapBlockInvalidRange, g)
		}
		binary.BigEndian.PutUint16(sackRaw[offset:], g.start)
		binary.BigEndian.PutUint16(sackRaw[offset+2:], g.end)
		offset += gapAckBlockSize
	}
	for _, t := range s.duplicateTSN {
		binary.BigEndian.PutUint32(sackRaw[offset:], t)
		offset += duplicateTSNSize
	}

	s.chunkHeader.typ = ctSack
	s.chunkHeader.flags = 0
	s.chunkHeader.raw = sackRaw

	return s.chunkHeader.marshal()
}

func (s *chunkSelectiveAck) check() (abort bool, err error) {
	return false, nil
}

// String makes chunkSelectiveAck printable.
func (s *chunkSelectiveAck) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SACK cumTsnAck=%d arwnd=%d dupTsn=%v",
		s.cumulativeTSNAck, s.advertisedReceiverWindowCredit, s.duplicateTSN)
	for _, gap := range s.gapAckBlocks {
		fmt.Fprintf(&b, "\n gap ack: %s", gap)
	}

	return b.String()
}
