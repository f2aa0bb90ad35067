// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"fmt"
	"time"
)

const (
	// Default SACK delay per RFC 9260 (protocol parameter 'SACK.Delay').
	ackInterval time.Duration = 200 * time.Millisecond
	// Implementations MUST NOT allow SACK.Delay > 500ms (RFC 9260).
	ackMaxDelay time.Duration = 500 * time.Millisecond
)

// ack mode (for testing).
type ackMode int

const (
	ackModeNormal ackMode = iota
	ackModeNoDelay
	ackModeAlwaysDelay
)

func (m ackMode) String() string {
	switch m {
	case ackModeNormal:
		return "normal"
	case ackModeNoDelay:
		return "no-delay"
	case ackModeAlwaysDelay:
		return "always-delay"
	default:
		return fmt.Sprintf("ackMode(%d)", int(m))
	}
}

// ack transmission state.
type ackState int

const (
	ackStateIdle      ackState = iota // ack timer is off
	ackStateImmediate                 // will send ack immediately
	ackStateDelay                     // ack timer is on (ack is being delayed)
)

// sackTrigger collects, over one inbound packet, what kind of SACK the DATA
// and FORWARD-TSN chunks asked for.
type sackTrigger struct {
	delayed   bool
	immediate bool
	received  int
}

// onReceive applies the delayed ack rules of RFC 9260 Sec 6.2 for one
// received chunk. A SACK is delayed only when the ack timer is idle and the
// chunk neither set the I bit, revealed a gap nor was a duplicate. A second
// chunk arriving while a SACK is delayed, or in the same packet, makes it
// immediate.
func (t *sackTrigger) onReceive(state ackState, mode ackMode, sackImmediately, hasGap, duplicate bool) {
	t.received++

	delayable := state != ackStateImmediate && !sackImmediately && !hasGap && !duplicate &&
		mode == ackModeNormal
	if delayable || mode == ackModeAlwaysDelay {
		if state == ackStateIdle && (t.received == 1 || mode == ackModeAlwaysDelay) {
			t.delayed = true
		} else {
			t.immediate = true
		}

		return
	}

	t.immediate = true
}

func (t *sackTrigger) reset() {
	t.delayed = false
	t.immediate = false
	t.received = 0
}
