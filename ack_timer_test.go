// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSackTrigger(t *testing.T) {
	tt := []struct {
		name      string
		state     ackState
		mode      ackMode
		iBit      bool
		gap       bool
		dup       bool
		delayed   bool
		immediate bool
	}{
		{"first in order chunk is delayed", ackStateIdle, ackModeNormal, false, false, false, true, false},
		{"second chunk while delayed", ackStateDelay, ackModeNormal, false, false, false, false, true},
		{"I bit", ackStateIdle, ackModeNormal, true, false, false, false, true},
		{"gap", ackStateIdle, ackModeNormal, false, true, false, false, true},
		{"duplicate", ackStateIdle, ackModeNormal, false, false, true, false, true},
		{"no delay mode", ackStateIdle, ackModeNoDelay, false, false, false, false, true},
		{"always delay mode", ackStateIdle, ackModeAlwaysDelay, true, true, false, true, false},
		{"already immediate", ackStateImmediate, ackModeNormal, false, false, false, false, true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			var trig sackTrigger
			trig.onReceive(tc.state, tc.mode, tc.iBit, tc.gap, tc.dup)
			assert.Equal(t, tc.delayed, trig.delayed)
			assert.Equal(t, tc.immediate, trig.immediate)

			trig.reset()
			assert.False(t, trig.delayed || trig.immediate)
		})
	}
}

func TestSackTrigger_TwoChunksInOnePacket(t *testing.T) {
	var trig sackTrigger
	trig.onReceive(ackStateIdle, ackModeNormal, false, false, false)
	assert.True(t, trig.delayed)
	assert.False(t, trig.immediate)

	trig.onReceive(ackStateIdle, ackModeNormal, false, false, false)
	assert.True(t, trig.immediate)

	trig.reset()
	trig.onReceive(ackStateIdle, ackModeNormal, false, false, false)
	assert.False(t, trig.immediate)
}

func TestAckMode_String(t *testing.T) {
	assert.Equal(t, "no-delay", ackModeNoDelay.String())
	assert.Equal(t, "ackMode(9)", ackMode(9).String())
}
