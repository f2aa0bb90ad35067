// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"sort"
	"sync/atomic"
)

func sortChunksByTSN(a []*chunkPayloadData) {
	sort.Slice(a, func(i, j int) bool {
		return sna32LT(a[i].tsn, a[j].tsn)
	})
}

func sortChunksBySSN(a []*chunkSet) {
	sort.Slice(a, func(i, j int) bool {
		return sna16LT(a[i].ssn, a[j].ssn)
	})
}

// chunkSet is a set of chunks that share the same SSN.
type chunkSet struct {
	ssn    uint16 // used only with the ordered chunks
	ppi    PayloadProtocolIdentifier
	chunks []*chunkPayloadData
}

func newChunkSet(ssn uint16, ppi PayloadProtocolIdentifier) *chunkSet {
	return &chunkSet{
		ssn:    ssn,
		ppi:    ppi,
		chunks: []*chunkPayloadData{},
	}
}

// push adds chunk to the set and reports whether the set became complete.
// A chunk whose TSN is already held is ignored.
func (set *chunkSet) push(chunk *chunkPayloadData) bool {
	for _, c := range set.chunks {
		if c.tsn == chunk.tsn {
			return false
		}
	}

	set.chunks = append(set.chunks, chunk)
	sortChunksByTSN(set.chunks)

	return set.isComplete()
}

// isComplete holds when the first chunk has the B bit, the last has the E
// bit and the TSNs in between are contiguous.
func (set *chunkSet) isComplete() bool {
	nChunks := len(set.chunks)
	if nChunks == 0 {
		return false
	}

	if !set.chunks[0].beginningFragment {
		return false
	}

	if !set.chunks[nChunks-1].endingFragment {
		return false
	}

	var lastTSN uint32
	for i, c := range set.chunks {
		if i > 0 && c.tsn != lastTSN+1 {
			return false
		}

		lastTSN = c.tsn
	}

	return true
}

func (set *chunkSet) numBytes() int {
	n := 0
	for _, c := range set.chunks {
		n += len(c.userData)
	}

	return n
}

// reassemblyQueue rebuilds messages of one stream. Ordered messages are
// released in SSN order starting at nextSSN; unordered messages as soon as
// all their fragments arrived.
type reassemblyQueue struct {
	si              uint16
	nextSSN         uint16 // expected SSN for next ordered chunk
	ordered         []*chunkSet
	unordered       []*chunkSet
	unorderedChunks []*chunkPayloadData
	nBytes          uint64
}

func newReassemblyQueue(si uint16) *reassemblyQueue {
	// RFC 4960 Sec 6.5: the first SSN of every stream is 0.
	return &reassemblyQueue{
		si:        si,
		nextSSN:   0,
		ordered:   make([]*chunkSet, 0),
		unordered: make([]*chunkSet, 0),
	}
}

// push queues a DATA chunk and reports whether it completed a message.
func (r *reassemblyQueue) push(chunk *chunkPayloadData) bool {
	if chunk.streamIdentifier != r.si {
		return false
	}

	if chunk.unordered {
		for _, c := range r.unorderedChunks {
			if c.tsn == chunk.tsn {
				return false
			}
		}

		r.unorderedChunks = append(r.unorderedChunks, chunk)
		atomic.AddUint64(&r.nBytes, uint64(len(chunk.userData)))
		sortChunksByTSN(r.unorderedChunks)

		cset := r.findCompleteUnorderedChunkSet()
		if cset == nil {
			return false
		}
		r.unordered = append(r.unordered, cset)

		return true
	}

	// Already delivered or forwarded past.
	if sna16LT(chunk.streamSequenceNumber, r.nextSSN) {
		return false
	}

	var cset *chunkSet
	for _, set := range r.ordered {
		if set.ssn == chunk.streamSequenceNumber {
			cset = set

			break
		}
	}

	if cset == nil {
		cset = newChunkSet(chunk.streamSequenceNumber, chunk.payloadType)
		r.ordered = append(r.ordered, cset)
		sortChunksBySSN(r.ordered)
	}

	for _, c := range cset.chunks {
		if c.tsn == chunk.tsn {
			return false
		}
	}

	atomic.AddUint64(&r.nBytes, uint64(len(chunk.userData)))

	return cset.push(chunk)
}

// findCompleteUnorderedChunkSet extracts the first run of TSN-contiguous
// chunks starting with B and ending with E, if any.
func (r *reassemblyQueue) findCompleteUnorderedChunkSet() *chunkSet {
	startIdx := -1
	nChunks := 0
	var lastTSN uint32
	var found bool

	for i, c := range r.unorderedChunks {
		if c.beginningFragment {
			startIdx = i
			nChunks = 1
			lastTSN = c.tsn

			if c.endingFragment {
				found = true

				break
			}

			continue
		}

		if startIdx < 0 {
			continue
		}

		if c.tsn != lastTSN+1 {
			startIdx = -1

			continue
		}

		lastTSN = c.tsn
		nChunks++

		if c.endingFragment {
			found = true

			break
		}
	}

	if !found {
		return nil
	}

	chunks := make([]*chunkPayloadData, nChunks)
	copy(chunks, r.unorderedChunks[startIdx:startIdx+nChunks])

	r.unorderedChunks = append(
		r.unorderedChunks[:startIdx],
		r.unorderedChunks[startIdx+nChunks:]...)

	cset := newChunkSet(0, chunks[0].payloadType)
	cset.chunks = chunks

	return cset
}

func (r *reassemblyQueue) isReadable() bool {
	if len(r.unordered) > 0 {
		return true
	}

	if len(r.ordered) > 0 {
		cset := r.ordered[0]
		if cset.isComplete() && sna16LTE(cset.ssn, r.nextSSN) {
			return true
		}
	}

	return false
}

// read copies the next deliverable message into buf. Unordered messages are
// preferred. When buf is too small a *ShortBufferError is returned and the
// message stays queued. ErrTryAgain means nothing is deliverable.
func (r *reassemblyQueue) read(buf []byte) (int, PayloadProtocolIdentifier, error) {
	var cset *chunkSet
	var isUnordered bool

	switch {
	case len(r.unordered) > 0:
		cset = r.unordered[0]
		isUnordered = true
	case len(r.ordered) > 0:
		cset = r.ordered[0]
		if !cset.isComplete() || sna16GT(cset.ssn, r.nextSSN) {
			return 0, 0, ErrTryAgain
		}
	default:
		return 0, 0, ErrTryAgain
	}

	size := cset.numBytes()
	if size > len(buf) {
		return 0, 0, &ShortBufferError{Size: size}
	}

	if isUnordered {
		r.unordered = r.unordered[1:]
	} else {
		r.ordered = r.ordered[1:]
		if cset.ssn == r.nextSSN {
			r.nextSSN++
		}
	}

	nWritten := 0
	for _, c := range cset.chunks {
		nWritten += copy(buf[nWritten:], c.userData)
	}
	r.subtractNumBytes(nWritten)

	return nWritten, cset.ppi, nil
}

// forwardTSNForOrdered drops incomplete messages with SSN <= lastSSN and
// moves nextSSN past lastSSN. Complete messages stay readable.
func (r *reassemblyQueue) forwardTSNForOrdered(lastSSN uint16) {
	keep := []*chunkSet{}
	for _, set := range r.ordered {
		if sna16LTE(set.ssn, lastSSN) && !set.isComplete() {
			r.subtractNumBytes(set.numBytes())

			continue
		}
		keep = append(keep, set)
	}
	r.ordered = keep

	if sna16LTE(r.nextSSN, lastSSN) {
		r.nextSSN = lastSSN + 1
	}
}

// forwardTSNForUnordered drops unordered fragments with TSN <= newCumulativeTSN.
// Fragments for a message that was abandoned can no longer complete.
func (r *reassemblyQueue) forwardTSNForUnordered(newCumulativeTSN uint32) {
	lastIdx := -1
	for i, c := range r.unorderedChunks {
		if sna32GT(c.tsn, newCumulativeTSN) {
			break
		}
		lastIdx = i
	}

	if lastIdx >= 0 {
		for _, c := range r.unorderedChunks[:lastIdx+1] {
			r.subtractNumBytes(len(c.userData))
		}
		r.unorderedChunks = r.unorderedChunks[lastIdx+1:]
	}
}

// dropPartial discards every fragment that does not belong to a complete
// message. Used when the inbound stream is reset.
func (r *reassemblyQueue) dropPartial() {
	for _, c := range r.unorderedChunks {
		r.subtractNumBytes(len(c.userData))
	}
	r.unorderedChunks = nil

	keep := []*chunkSet{}
	for _, set := range r.ordered {
		if !set.isComplete() {
			r.subtractNumBytes(set.numBytes())

			continue
		}
		keep = append(keep, set)
	}
	r.ordered = keep
}

func (r *reassemblyQueue) subtractNumBytes(nBytes int) {
	cur := atomic.LoadUint64(&r.nBytes)
	if int(cur) >= nBytes { //nolint:gosec
		atomic.AddUint64(&r.nBytes, -uint64(nBytes)) //nolint:gosec
	} else {
		atomic.StoreUint64(&r.nBytes, 0)
	}
}

func (r *reassemblyQueue) getNumBytes() int {
	return int(atomic.LoadUint64(&r.nBytes)) //nolint:gosec
}
