// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

// queue is a growable ring buffer.
type queue[T any] struct {
	buf   []T
	head  int
	tail  int
	count int
}

const minQueueCap = 16

func newQueue[T any](capacity int) *queue[T] {
	queueCap := minQueueCap
	for queueCap < capacity {
		queueCap <<= 1
	}

	return &queue[T]{
		buf: make([]T, queueCap),
	}
}

func (q *queue[T]) len() int {
	return q.count
}

func (q *queue[T]) pushBack(ele T) {
	q.growIfFull()
	q.buf[q.tail] = ele
	q.tail = (q.tail + 1) & (len(q.buf) - 1)
	q.count++
}

// popFront removes the first element. ok is false on an empty queue.
func (q *queue[T]) popFront() (ele T, ok bool) {
	if q.count == 0 {
		return ele, false
	}

	ele = q.buf[q.head]
	var zeroVal T
	q.buf[q.head] = zeroVal
	q.head = (q.head + 1) & (len(q.buf) - 1)
	q.count--

	return ele, true
}

// at returns the i-th element from the front.
func (q *queue[T]) at(i int) (ele T, ok bool) {
	if i < 0 || i >= q.count {
		return ele, false
	}

	return q.buf[(q.head+i)&(len(q.buf)-1)], true
}

func (q *queue[T]) growIfFull() {
	if q.count < len(q.buf) {
		return
	}

	newBuf := make([]T, q.count<<1)
	n := copy(newBuf, q.buf[q.head:])
	copy(newBuf[n:], q.buf[:q.tail])

	q.head = 0
	q.tail = q.count
	q.buf = newBuf
}
