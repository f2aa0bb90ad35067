// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import "github.com/pion/sctp/v2/cc_alg"

// CongestionController is the sender side window of RFC 4960 Sec 7. The
// association calls it under its lock; implementations need no locking.
type CongestionController interface {
	// OnAck is called for every SACK that advances the cumulative TSN ack
	// point. cwndLimited reports whether the sender was limited by cwnd
	// before the SACK arrived.
	OnAck(bytesAcked uint32, cwndLimited bool, cumulativeTSN uint32)
	// OnFastRetransmit enters fast recovery unless already in it. Returns
	// true when the window was reduced.
	OnFastRetransmit(exitPoint uint32) bool
	// OnRetransmissionTimeout collapses the window after a T3-rtx expiry.
	OnRetransmissionTimeout()
	// OnIdle is called when nothing is outstanding anymore.
	OnIdle()
	InFastRecovery() bool
	CongestionWindow() uint32
	SlowStartThreshold() uint32
	PartialBytesAcked() uint32
}

// CongestionControllerFactory builds a controller once the peer's a_rwnd is
// known.
type CongestionControllerFactory func(mtu, peerRwnd uint32) CongestionController

func newRenoController(mtu, peerRwnd uint32) CongestionController {
	return cc_alg.NewReno(mtu, peerRwnd)
}
