// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"errors"
)

// pendingQueue holds DATA chunks that were written but not sent yet.
// Ordered and unordered messages are kept apart so an unordered message can
// overtake ordered ones. Once the first fragment of a message has been
// popped, that message is "selected" and only its fragments are returned
// until the E fragment is popped.
type pendingQueue struct {
	unorderedQueue      *queue[*chunkPayloadData]
	orderedQueue        *queue[*chunkPayloadData]
	nBytes              int
	selected            bool
	unorderedIsSelected bool
}

// Pending queue errors.
var (
	ErrUnexpectedChunkPoppedUnordered = errors.New("unexpected chunk popped (unordered)")
	ErrUnexpectedChunkPoppedOrdered   = errors.New("unexpected chunk popped (ordered)")
	ErrUnexpectedQState               = errors.New("unexpected q state (should've been selected)")
)

func newPendingQueue() *pendingQueue {
	return &pendingQueue{
		unorderedQueue: newQueue[*chunkPayloadData](minQueueCap),
		orderedQueue:   newQueue[*chunkPayloadData](minQueueCap),
	}
}

func (q *pendingQueue) push(c *chunkPayloadData) {
	if c.unordered {
		q.unorderedQueue.pushBack(c)
	} else {
		q.orderedQueue.pushBack(c)
	}
	q.nBytes += len(c.userData)
}

// append pushes all fragments of one message. They land in the same
// sub-queue back to back.
func (q *pendingQueue) append(chunks []*chunkPayloadData) {
	for _, c := range chunks {
		q.push(c)
	}
}

// peek returns the chunk pop is allowed to take next, or nil.
func (q *pendingQueue) peek() *chunkPayloadData {
	if q.selected {
		if q.unorderedIsSelected {
			c, _ := q.unorderedQueue.at(0)

			return c
		}
		c, _ := q.orderedQueue.at(0)

		return c
	}

	if c, ok := q.unorderedQueue.at(0); ok {
		return c
	}
	c, _ := q.orderedQueue.at(0)

	return c
}

// pop removes c, which must be the chunk peek returned.
func (q *pendingQueue) pop(c *chunkPayloadData) error {
	if q.selected {
		sub, errPop := q.orderedQueue, ErrUnexpectedChunkPoppedOrdered
		if q.unorderedIsSelected {
			sub, errPop = q.unorderedQueue, ErrUnexpectedChunkPoppedUnordered
		}
		if popped, _ := sub.popFront(); popped != c {
			return errPop
		}
		if c.endingFragment {
			q.selected = false
		}
	} else {
		if !c.beginningFragment {
			return ErrUnexpectedQState
		}
		sub, errPop := q.orderedQueue, ErrUnexpectedChunkPoppedOrdered
		if c.unordered {
			sub, errPop = q.unorderedQueue, ErrUnexpectedChunkPoppedUnordered
		}
		if popped, _ := sub.popFront(); popped != c {
			return errPop
		}
		if !c.endingFragment {
			q.selected = true
			q.unorderedIsSelected = c.unordered
		}
	}

	q.nBytes -= len(c.userData)

	return nil
}

func (q *pendingQueue) getNumBytes() int {
	return q.nBytes
}

func (q *pendingQueue) size() int {
	return q.unorderedQueue.len() + q.orderedQueue.len()
}
