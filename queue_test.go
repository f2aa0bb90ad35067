// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue(t *testing.T) {
	q := newQueue[int](20)
	assert.Zero(t, q.len())
	assert.Len(t, q.buf, 32, "capacity rounds up to a power of two")

	_, ok := q.popFront()
	assert.False(t, ok)

	for i := 1; i <= 32; i++ {
		q.pushBack(i)
	}
	assert.Equal(t, 32, q.len())

	v, ok := q.at(4)
	assert.True(t, ok)
	assert.Equal(t, 5, v)

	_, ok = q.at(32)
	assert.False(t, ok)

	for i := 1; i <= 20; i++ {
		v, ok := q.popFront()
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}

	// wrap the tail around, then grow while wrapped
	for i := 33; i <= 70; i++ {
		q.pushBack(i)
	}
	assert.Equal(t, 50, q.len())
	assert.Len(t, q.buf, 64)

	for i := 21; i <= 70; i++ {
		v, ok := q.at(0)
		assert.True(t, ok)
		assert.Equal(t, i, v)

		v, ok = q.popFront()
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Zero(t, q.len())
}
