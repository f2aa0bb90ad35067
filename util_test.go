// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadByte(t *testing.T) {
	tt := []struct {
		value    []byte
		padLen   int
		expected []byte
	}{
		{[]byte{0x1, 0x2}, 0, []byte{0x1, 0x2}},
		{[]byte{0x1, 0x2}, 1, []byte{0x1, 0x2, 0x0}},
		{[]byte{0x1, 0x2}, 3, []byte{0x1, 0x2, 0x0, 0x0, 0x0}},
		{[]byte{0x1, 0x2}, -1, []byte{0x1, 0x2}},
	}

	for i, tc := range tt {
		assert.Equal(t, tc.expected, padByte(tc.value, tc.padLen), "case %d", i)
	}
}

func TestGetPadding(t *testing.T) {
	for l, want := range map[int]int{0: 0, 1: 3, 2: 2, 3: 1, 4: 0, 17: 3} {
		assert.Equal(t, want, getPadding(l), "len %d", l)
	}
}

func TestSerialNumberArithmetic32(t *testing.T) {
	const div = 16

	t.Run("forward", func(t *testing.T) {
		for i := uint32(0); i < 1<<div; i++ {
			s1 := i << (32 - div)
			s2 := s1 + 1<<(32-div-1)

			assert.True(t, sna32LT(s1, s2), "%d < %d", s1, s2)
			assert.True(t, sna32LTE(s1, s2), "%d <= %d", s1, s2)
			assert.False(t, sna32GT(s1, s2), "%d > %d", s1, s2)
			assert.False(t, sna32GTE(s1, s2), "%d >= %d", s1, s2)
		}
	})

	t.Run("wrap", func(t *testing.T) {
		assert.True(t, sna32LT(0xffffffff, 0), "max before zero")
		assert.True(t, sna32GT(0, 0xffffffff), "zero after max")
		assert.True(t, sna32LTE(7, 7))
		assert.True(t, sna32GTE(7, 7))
		assert.True(t, sna32EQ(7, 7))
	})
}

func TestSerialNumberArithmetic16(t *testing.T) {
	assert.True(t, sna16LT(0xffff, 0), "max before zero")
	assert.True(t, sna16GT(0, 0xffff), "zero after max")
	assert.True(t, sna16LT(1, 2))
	assert.False(t, sna16LT(2, 2))
	assert.True(t, sna16LTE(2, 2))
	assert.True(t, sna16GTE(2, 2))
}
