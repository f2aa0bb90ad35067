// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package cc_alg holds the congestion control algorithms of the association.
package cc_alg //nolint:revive,stylecheck

// Reno is the slow start, congestion avoidance and fast recovery scheme of
// RFC 4960 Sec 7.2.
type Reno struct {
	mtu                  uint32
	cwnd                 uint32
	ssthresh             uint32
	partialBytesAcked    uint32
	inFastRecovery       bool
	fastRecoverExitPoint uint32
}

// NewReno creates a controller. The initial ssthresh is the peer's
// advertised receiver window.
func NewReno(mtu, peerRwnd uint32) *Reno {
	return &Reno{
		mtu:      mtu,
		cwnd:     InitialWindow(mtu),
		ssthresh: peerRwnd,
	}
}

// OnAck grows the window on a SACK that advanced the cumulative ack point.
func (r *Reno) OnAck(bytesAcked uint32, cwndLimited bool, cumulativeTSN uint32) {
	if r.inFastRecovery && serialGTE(cumulativeTSN, r.fastRecoverExitPoint) {
		r.inFastRecovery = false
	}

	if r.cwnd <= r.ssthresh {
		// Slow start: only when the window is fully used and not in fast
		// recovery, by at most one MTU.
		if cwndLimited && !r.inFastRecovery {
			r.cwnd += min(bytesAcked, r.mtu)
		}

		return
	}

	// Congestion avoidance
	r.partialBytesAcked += bytesAcked
	if r.partialBytesAcked >= r.cwnd && cwndLimited {
		r.partialBytesAcked -= r.cwnd
		r.cwnd += r.mtu
	}
}

// OnFastRetransmit enters fast recovery with the given exit point.
func (r *Reno) OnFastRetransmit(exitPoint uint32) bool {
	if r.inFastRecovery {
		return false
	}

	r.inFastRecovery = true
	r.fastRecoverExitPoint = exitPoint
	r.ssthresh = max(r.cwnd/2, 4*r.mtu)
	r.cwnd = r.ssthresh
	r.partialBytesAcked = 0

	return true
}

// OnRetransmissionTimeout is the only path that shrinks cwnd to one MTU.
func (r *Reno) OnRetransmissionTimeout() {
	r.ssthresh = max(r.cwnd/2, 4*r.mtu)
	r.cwnd = r.mtu
	r.partialBytesAcked = 0
	r.inFastRecovery = false
}

// OnIdle resets partial_bytes_acked once all data was acknowledged.
func (r *Reno) OnIdle() {
	r.partialBytesAcked = 0
}

// InFastRecovery reports the fast recovery flag.
func (r *Reno) InFastRecovery() bool {
	return r.inFastRecovery
}

// FastRecoverExitPoint is the TSN ending fast recovery.
func (r *Reno) FastRecoverExitPoint() uint32 {
	return r.fastRecoverExitPoint
}

// CongestionWindow returns cwnd in bytes.
func (r *Reno) CongestionWindow() uint32 {
	return r.cwnd
}

// SlowStartThreshold returns ssthresh in bytes.
func (r *Reno) SlowStartThreshold() uint32 {
	return r.ssthresh
}

// PartialBytesAcked returns partial_bytes_acked.
func (r *Reno) PartialBytesAcked() uint32 {
	return r.partialBytesAcked
}
