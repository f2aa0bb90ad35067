// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"fmt"
	"sort"
	"strings"
)

// payloadQueue maps TSN to DATA chunk. On the receive side it holds chunks
// above the cumulative TSN until the gap below them is filled, and yields
// gap ack blocks and duplicate TSNs for the next SACK. On the send side it is
// the inflight queue.
type payloadQueue struct {
	chunkMap map[uint32]*chunkPayloadData
	sorted   []uint32
	dupTSN   []uint32
	nBytes   int
}

// maxDupTSNs bounds the duplicates reported in one SACK.
const maxDupTSNs = 32

func newPayloadQueue() *payloadQueue {
	return &payloadQueue{chunkMap: map[uint32]*chunkPayloadData{}}
}

func (q *payloadQueue) updateSortedKeys() {
	if q.sorted != nil {
		return
	}

	q.sorted = make([]uint32, 0, len(q.chunkMap))
	for tsn := range q.chunkMap {
		q.sorted = append(q.sorted, tsn)
	}
	sort.Slice(q.sorted, func(i, j int) bool {
		return sna32LT(q.sorted[i], q.sorted[j])
	})
}

// canPush reports whether tsn is new: above the cumulative TSN and not held.
func (q *payloadQueue) canPush(p *chunkPayloadData, cumulativeTSN uint32) bool {
	_, ok := q.chunkMap[p.tsn]

	return !ok && sna32GT(p.tsn, cumulativeTSN)
}

func (q *payloadQueue) pushNoCheck(p *chunkPayloadData) {
	q.chunkMap[p.tsn] = p
	q.nBytes += len(p.userData)
	q.sorted = nil
}

// push stores p unless it is a duplicate, in which case its TSN is recorded
// for the next SACK and false is returned.
func (q *payloadQueue) push(p *chunkPayloadData, cumulativeTSN uint32) bool {
	if !q.canPush(p, cumulativeTSN) {
		if len(q.dupTSN) < maxDupTSNs {
			q.dupTSN = append(q.dupTSN, p.tsn)
		}

		return false
	}

	q.pushNoCheck(p)

	return true
}

// pop removes the chunk with the given TSN only if it is the lowest held.
func (q *payloadQueue) pop(tsn uint32) (*chunkPayloadData, bool) {
	q.updateSortedKeys()

	if len(q.sorted) == 0 || q.sorted[0] != tsn {
		return nil, false
	}

	q.sorted = q.sorted[1:]
	c, ok := q.chunkMap[tsn]
	if !ok {
		return nil, false
	}
	delete(q.chunkMap, tsn)
	q.nBytes -= len(c.userData)

	return c, true
}

// popUpTo removes every chunk with a TSN at or below tsn and returns how
// many were removed. It visits held chunks only, however far tsn is ahead.
func (q *payloadQueue) popUpTo(tsn uint32) int {
	q.updateSortedKeys()

	n := 0
	for n < len(q.sorted) && sna32LTE(q.sorted[n], tsn) {
		c := q.chunkMap[q.sorted[n]]
		delete(q.chunkMap, q.sorted[n])
		q.nBytes -= len(c.userData)
		n++
	}
	q.sorted = q.sorted[n:]

	return n
}

func (q *payloadQueue) get(tsn uint32) (*chunkPayloadData, bool) {
	c, ok := q.chunkMap[tsn]

	return c, ok
}

func (q *payloadQueue) popDuplicates() []uint32 {
	dups := q.dupTSN
	q.dupTSN = nil

	return dups
}

// getGapAckBlocks returns the runs of held TSNs above cumulativeTSN as
// offsets from it. TSNs too far ahead to be expressed as a 16 bit offset are
// left out.
func (q *payloadQueue) getGapAckBlocks(cumulativeTSN uint32) []gapAckBlock {
	if len(q.chunkMap) == 0 {
		return nil
	}

	q.updateSortedKeys()

	var blocks []gapAckBlock
	var cur gapAckBlock
	for _, tsn := range q.sorted {
		if sna32LTE(tsn, cumulativeTSN) {
			continue
		}
		diff := tsn - cumulativeTSN
		if diff > 0xffff {
			break
		}

		offset := uint16(diff)
		switch {
		case cur.start == 0:
			cur = gapAckBlock{start: offset, end: offset}
		case cur.end+1 == offset:
			cur.end++
		default:
			blocks = append(blocks, cur)
			cur = gapAckBlock{start: offset, end: offset}
		}
	}
	if cur.start != 0 {
		blocks = append(blocks, cur)
	}

	return blocks
}

func (q *payloadQueue) getGapAckBlocksString(cumulativeTSN uint32) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cumTSN=%d", cumulativeTSN)
	for _, g := range q.getGapAckBlocks(cumulativeTSN) {
		fmt.Fprintf(&b, ",%d-%d", g.start, g.end)
	}

	return b.String()
}

// getLastTSNReceived returns the highest TSN held.
func (q *payloadQueue) getLastTSNReceived() (uint32, bool) {
	q.updateSortedKeys()

	if len(q.sorted) == 0 {
		return 0, false
	}

	return q.sorted[len(q.sorted)-1], true
}

// markAsAcked flags an inflight chunk as acknowledged, releases its payload
// and returns the number of bytes it held.
func (q *payloadQueue) markAsAcked(tsn uint32) int {
	c, ok := q.chunkMap[tsn]
	if !ok {
		return 0
	}

	c.acked = true
	c.retransmit = false
	n := len(c.userData)
	q.nBytes -= n
	c.userData = []byte{}

	return n
}

// markAllToRetransmit is used on T3-rtx expiry.
func (q *payloadQueue) markAllToRetransmit() {
	for _, c := range q.chunkMap {
		if c.acked || c.abandoned() {
			continue
		}
		c.retransmit = true
	}
}

func (q *payloadQueue) getNumBytes() int {
	return q.nBytes
}

func (q *payloadQueue) size() int {
	return len(q.chunkMap)
}
