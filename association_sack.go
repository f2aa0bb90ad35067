// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"time"
)

// The caller should hold the lock.
func (a *Association) handleData(d *chunkPayloadData) []*packet {
	switch state := a.getState(); state {
	case cookieEchoed, established, shutdownPending, shutdownSent:
	default:
		a.log.Debugf("[%s] dropping DATA in state %s", a.name, getAssociationStateString(state))

		return nil
	}

	a.log.Tracef("[%s] DATA: tsn=%d immediateSack=%v len=%d",
		a.name, d.tsn, d.immediateSack, len(d.userData))
	a.stats.incDATAsReceived()

	var reply []*packet
	duplicate := !a.payloadQueue.canPush(d, a.peerLastTSN)

	switch {
	case duplicate:
		// records the TSN for the next SACK
		a.payloadQueue.push(d, a.peerLastTSN)
	case d.streamIdentifier >= a.myMaxNumInboundStreams:
		// RFC 9260 Sec 6.5: acknowledge the TSN, discard the data and
		// report the stream.
		a.log.Debugf("[%s] DATA on invalid stream %d", a.name, d.streamIdentifier)
		d.userData = []byte{}
		a.payloadQueue.pushNoCheck(d)
		reply = append(reply, a.createPacket([]chunk{&chunkError{
			errorCauses: []errorCause{&errorCauseInvalidStreamIdentifier{streamIdentifier: d.streamIdentifier}},
		}}))
	case a.getMyReceiverWindowCredit() > 0 || a.fillsGap(d.tsn):
		s := a.getOrCreateStream(d.streamIdentifier)
		if s == nil {
			// silently discard the data. (sender will retry on T3-rtx timeout)
			// see pion/sctp#30
			a.log.Debugf("[%s] discard %d", a.name, d.streamSequenceNumber)

			return reply
		}

		// Pass the new chunk to stream level as soon as it arrives
		a.payloadQueue.pushNoCheck(d)
		s.handleData(d)
	default:
		a.log.Debugf("[%s] receive buffer full. dropping DATA with tsn=%d ssn=%d",
			a.name, d.tsn, d.streamSequenceNumber)
	}

	return append(reply, a.handlePeerLastTSNAndAcknowledgement(d.immediateSack, duplicate)...)
}

// fillsGap reports whether tsn is below the highest TSN received, which
// lets it in even with a full receive buffer.
func (a *Association) fillsGap(tsn uint32) bool {
	lastTSN, ok := a.payloadQueue.getLastTSNReceived()

	return ok && sna32LT(tsn, lastTSN)
}

// handlePeerLastTSNAndAcknowledgement is the routine common to DATA and
// FORWARD-TSN. The caller should hold the lock.
func (a *Association) handlePeerLastTSNAndAcknowledgement(sackImmediately, duplicate bool) []*packet {
	var reply []*packet

	// From RFC 3758 Sec 3.6:
	//   .. and then MUST further advance its cumulative TSN point locally
	//   if possible
	// Meaning, if peerLastTSN+1 points to a chunk that is received,
	// advance peerLastTSN until peerLastTSN+1 points to unreceived chunk.
	advanced := false
	for {
		if _, popOk := a.payloadQueue.pop(a.peerLastTSN + 1); !popOk {
			break
		}
		a.peerLastTSN++
		advanced = true
	}

	if advanced {
		for _, rstReq := range a.reconfigRequests {
			if resp := a.resetStreamsIfAny(rstReq); resp != nil {
				a.log.Debugf("[%s] RESET RESPONSE: %+v", a.name, resp)
				reply = append(reply, resp)
			}
		}
	}

	hasPacketLoss := a.payloadQueue.size() > 0
	if hasPacketLoss {
		a.log.Tracef("[%s] packetloss: %s", a.name, a.payloadQueue.getGapAckBlocksString(a.peerLastTSN))
	}

	a.sackTrigger.onReceive(a.ackState, a.ackMode, sackImmediately, hasPacketLoss, duplicate)

	return reply
}

// getMyReceiverWindowCredit is the receive buffer minus what streams hold.
// The caller should hold the lock.
func (a *Association) getMyReceiverWindowCredit() uint32 {
	var bytesQueued uint32
	for _, s := range a.streams {
		bytesQueued += uint32(s.getNumBytesInReassemblyQueue()) //nolint:gosec
	}

	if bytesQueued >= a.maxReceiveBufferSize {
		return 0
	}

	return a.maxReceiveBufferSize - bytesQueued
}

// createSelectiveAckChunk reports what was received. Duplicates, then the
// highest gap blocks, are left out when the SACK would not fit the MTU.
// The caller should hold the lock.
func (a *Association) createSelectiveAckChunk() *chunkSelectiveAck {
	sack := &chunkSelectiveAck{
		cumulativeTSNAck:               a.peerLastTSN,
		advertisedReceiverWindowCredit: a.getMyReceiverWindowCredit(),
		duplicateTSN:                   a.payloadQueue.popDuplicates(),
		gapAckBlocks:                   a.payloadQueue.getGapAckBlocks(a.peerLastTSN),
	}

	room := (int(a.mtu) - int(commonHeaderSize) - chunkHeaderSize - selectiveAckHeaderSize) / 4
	for len(sack.gapAckBlocks)+len(sack.duplicateTSN) > room {
		if len(sack.duplicateTSN) > 0 {
			sack.duplicateTSN = sack.duplicateTSN[:len(sack.duplicateTSN)-1]
		} else {
			sack.gapAckBlocks = sack.gapAckBlocks[:len(sack.gapAckBlocks)-1]
		}
	}

	return sack
}

// The caller should hold the lock.
func (a *Association) handleForwardTSN(c *chunkForwardTSN) []*packet {
	a.log.Tracef("[%s] FwdTSN: %s", a.name, c.String())

	switch state := a.getState(); state {
	case established, shutdownPending, shutdownSent:
	default:
		return nil
	}

	if !a.useForwardTSN {
		a.log.Warnf("[%s] received FwdTSN but not enabled", a.name)
		raw, err := c.marshal()
		if err != nil {
			return nil
		}

		return []*packet{a.createPacket([]chunk{&chunkError{
			errorCauses: []errorCause{&errorCauseUnrecognizedChunkType{unrecognizedChunk: raw}},
		}})}
	}

	// From RFC 3758 Sec 3.6:
	//   Note, if the "New Cumulative TSN" value carried in the arrived
	//   FORWARD TSN chunk is found to be behind or at the current cumulative
	//   TSN point, the data receiver MUST treat this FORWARD TSN as out-of-
	//   date and MUST NOT update its Cumulative TSN.  The receiver SHOULD
	//   send a SACK to its peer (the sender of the FORWARD TSN) since such a
	//   duplicate may indicate the previous SACK was lost in the network.
	if sna32LTE(c.newCumulativeTSN, a.peerLastTSN) {
		a.log.Tracef("[%s] sending ack on Forward TSN", a.name)
		a.sackTrigger.immediate = true

		return nil
	}

	// From RFC 3758 Sec 3.6:
	//   When a FORWARD TSN chunk arrives, the data receiver MUST first update
	//   its cumulative TSN point to the value carried in the FORWARD TSN
	//   chunk,
	if n := a.payloadQueue.popUpTo(c.newCumulativeTSN); n > 0 {
		a.log.Tracef("[%s] FORWARD-TSN: dropped %d held chunks", a.name, n)
	}
	a.peerLastTSN = c.newCumulativeTSN

	// Report new peerLastTSN value and abandoned largest SSN value to
	// corresponding streams so that the abandoned chunks can be removed
	// from the reassemblyQueue.
	for _, forwarded := range c.streams {
		if s, ok := a.streams[forwarded.identifier]; ok {
			s.handleForwardTSNForOrdered(forwarded.sequence)
		}
	}

	// TSN may be forewared for unordered chunks. ForwardTSN chunk does not
	// report which stream identifier it skipped for unordered chunks.
	// Therefore, we need to broadcast this event to all existing streams for
	// unordered chunks.
	// See https://github.com/pion/sctp/issues/106
	for _, s := range a.streams {
		s.handleForwardTSNForUnordered(c.newCumulativeTSN)
	}

	return a.handlePeerLastTSNAndAcknowledgement(false, false)
}

// processSelectiveAck pops what the cumulative TSN acknowledges and marks
// what the gap blocks acknowledge. It returns the bytes acked per stream
// and the highest TSN newly acknowledged.
// The caller should hold the lock.
func (a *Association) processSelectiveAck(d *chunkSelectiveAck) (map[uint16]int, uint32) {
	bytesAckedPerStream := map[uint16]int{}
	now := time.Now()

	// New ack point, so pop all ACKed packets from inflightQueue
	// We add 1 because the "currentAckPoint" has already been popped from the inflight queue
	for i := a.cumulativeTSNAckPoint + 1; sna32LTE(i, d.cumulativeTSNAck); i++ {
		c, ok := a.inflightQueue.pop(i)
		if !ok {
			a.log.Errorf("[%s] %s: tsn=%d", a.name, errInflightQueueTSNPop, i)

			break
		}

		if !c.acked {
			bytesAckedPerStream[c.streamIdentifier] += len(c.userData)
			a.measureRTT(c, now)
		}
	}

	htna := a.markGapAcked(d, bytesAckedPerStream, now)

	return bytesAckedPerStream, htna
}

// markGapAcked marks the inflight chunks listed in the gap blocks of d as
// acked and adds their bytes to bytesAckedPerStream. RTT is sampled only
// when now is non-zero. It returns the highest TSN newly acknowledged.
// The caller should hold the lock.
func (a *Association) markGapAcked(d *chunkSelectiveAck, bytesAckedPerStream map[uint16]int, now time.Time) uint32 {
	htna := d.cumulativeTSNAck

	// The offset wraps to zero after 0xffff, which ends the block.
	for _, g := range d.gapAckBlocks {
		for i := g.start; i <= g.end && i != 0; i++ {
			tsn := d.cumulativeTSNAck + uint32(i)
			c, ok := a.inflightQueue.get(tsn)
			if !ok {
				a.log.Debugf("[%s] SACK: ignoring unknown tsn=%d", a.name, tsn)

				continue
			}
			if c.acked {
				continue
			}

			if !now.IsZero() {
				a.measureRTT(c, now)
			}
			bytesAckedPerStream[c.streamIdentifier] += a.inflightQueue.markAsAcked(tsn)
			a.log.Tracef("[%s] tsn=%d has been sacked", a.name, c.tsn)

			if sna32LT(htna, tsn) {
				htna = tsn
			}
		}
	}

	return htna
}

// measureRTT takes one sample per round trip from chunks sent once.
// The caller should hold the lock.
func (a *Association) measureRTT(c *chunkPayloadData, now time.Time) {
	// RFC 4960 sec 6.3.1.  RTO Calculation
	//   C5)  Karn's algorithm: RTT measurements MUST NOT be made using
	//        packets that were retransmitted (and thus for which it is
	//        ambiguous whether the reply was for the first instance of the
	//        chunk or for a later instance)
	if c.nSent != 1 || sna32LT(c.tsn, a.minTSN2MeasureRTT) {
		return
	}

	a.minTSN2MeasureRTT = a.myNextTSN
	rtt := now.Sub(c.since)
	srtt := a.rtoMgr.setNewRTT(float64(rtt) / float64(time.Millisecond))
	a.minRTT.add(now, rtt)
	a.log.Tracef("[%s] SACK: measured-rtt=%v srtt=%f new-rto=%f",
		a.name, rtt, srtt, a.rtoMgr.getRTO())
}

// The caller should hold the lock.
func (a *Association) onCumulativeTSNAckPointAdvanced(totalBytesAcked int, cwndLimited bool) {
	// RFC 4096, sec 6.3.2.  Retransmission Timer Rules
	//   R2)  Whenever all outstanding data sent to an address have been
	//        acknowledged, turn off the T3-rtx timer of that address.
	//   R3)  Whenever a SACK is received that acknowledges the DATA chunk
	//        with the earliest outstanding TSN for that address, restart the
	//        T3-rtx timer for that address with its current RTO.
	if a.inflightQueue.size() == 0 {
		a.log.Tracef("[%s] SACK: no more packet in-flight (pending=%d)", a.name, a.pendingQueue.size())
		a.timers.stop(timerT3RTX)
		a.cc.OnIdle()
	} else {
		a.log.Tracef("[%s] T3-rtx timer start (pt2)", a.name)
		a.timers.restart(timerT3RTX, time.Now(), a.rtoMgr.getRTO())
	}

	a.cc.OnAck(uint32(totalBytesAcked), cwndLimited, a.cumulativeTSNAckPoint) //nolint:gosec
	a.log.Tracef("[%s] updated cwnd=%d ssthresh=%d acked=%d",
		a.name, a.cc.CongestionWindow(), a.cc.SlowStartThreshold(), totalBytesAcked)
}

// processFastRetransmission runs the HTNA algorithm of RFC 4960 Sec 7.2.4.
// The caller should hold the lock.
func (a *Association) processFastRetransmission(cumTSNAckPoint, htna uint32, cumTSNAckPointAdvanced bool) {
	// Increment missIndicator of each chunks that the SACK reported missing
	// when either of the following is met:
	// a)  Not in fast-recovery
	//     miss indications are incremented only for missing TSNs prior to the
	//     highest TSN newly acknowledged in the SACK.
	// b)  In fast-recovery AND the Cumulative TSN Ack Point advanced
	//     the miss indications are incremented for all TSNs reported missing
	//     in the SACK.
	inFastRecovery := a.cc.InFastRecovery()
	if inFastRecovery && !cumTSNAckPointAdvanced {
		return
	}

	maxTSN := htna
	if inFastRecovery {
		maxTSN = a.myNextTSN
	}

	for tsn := cumTSNAckPoint + 1; sna32LT(tsn, maxTSN); tsn++ {
		c, ok := a.inflightQueue.get(tsn)
		if !ok {
			continue
		}
		if c.acked || c.abandoned() || c.missIndicator >= 3 {
			continue
		}

		c.missIndicator++
		if c.missIndicator != 3 {
			continue
		}

		// 3)  Determine how many of the earliest (i.e., lowest TSN) DATA chunks
		//     marked for retransmission will fit into a single packet ...
		c.retransmit = true
		a.willRetransmitFast = true
		a.stats.incFastRetrans()

		// 2)  If not in Fast Recovery, adjust the ssthresh and cwnd of the
		//     destination address(es) to which the missing DATA chunks were
		//     last sent, according to the formula described in Section 7.2.3.
		if a.cc.OnFastRetransmit(a.myNextTSN - 1) {
			a.log.Tracef("[%s] updated cwnd=%d ssthresh=%d inflight=%d (FR)",
				a.name, a.cc.CongestionWindow(), a.cc.SlowStartThreshold(), a.inflightQueue.getNumBytes())
		}
	}
}

// The caller should hold the lock.
func (a *Association) handleSack(d *chunkSelectiveAck) { //nolint:cyclop
	a.log.Tracef("[%s] SACK: cumTSN=%d a_rwnd=%d", a.name, d.cumulativeTSNAck, d.advertisedReceiverWindowCredit)

	switch a.getState() {
	case established, shutdownPending, shutdownSent, shutdownReceived:
	default:
		return
	}

	a.stats.incSACKsReceived()

	if sna32GT(d.cumulativeTSNAck, a.myNextTSN-1) {
		a.log.Warnf("[%s] SACK cumulative TSN %d beyond the last TSN sent %d",
			a.name, d.cumulativeTSNAck, a.myNextTSN-1)
		a.abortLocked(&errorCauseProtocolViolation{
			additionalInformation: []byte(errSackCumulativeTSNTooNew.Error()),
		}, errSackCumulativeTSNTooNew)

		return
	}

	if sna32GT(a.cumulativeTSNAckPoint, d.cumulativeTSNAck) {
		// An out-of-order SACK. Its gap blocks may still report chunks the
		// newer SACKs have not, so mark those. The ack point, rwnd, cwnd and
		// miss indicators stay as the newest SACK left them.
		a.log.Debugf("[%s] SACK Cumulative ACK %v is older than ACK point %v",
			a.name, d.cumulativeTSNAck, a.cumulativeTSNAckPoint)

		bytesAckedPerStream := map[uint16]int{}
		a.markGapAcked(d, bytesAckedPerStream, time.Time{})
		a.releaseStreamBuffers(bytesAckedPerStream)

		return
	}

	cwndLimited := a.pendingQueue.size() > 0 ||
		uint32(a.inflightQueue.getNumBytes()) >= a.cc.CongestionWindow() //nolint:gosec

	bytesAckedPerStream, htna := a.processSelectiveAck(d)

	var totalBytesAcked int
	for _, nBytesAcked := range bytesAckedPerStream {
		totalBytesAcked += nBytesAcked
	}

	cumTSNAckPointAdvanced := false
	if sna32LT(a.cumulativeTSNAckPoint, d.cumulativeTSNAck) {
		a.log.Tracef("[%s] SACK: cumTSN advanced: %d -> %d",
			a.name, a.cumulativeTSNAckPoint, d.cumulativeTSNAck)

		a.cumulativeTSNAckPoint = d.cumulativeTSNAck
		cumTSNAckPointAdvanced = true
		a.onCumulativeTSNAckPointAdvanced(totalBytesAcked, cwndLimited)
	}

	a.releaseStreamBuffers(bytesAckedPerStream)

	// RFC 4960 sec 6.2.1.  Processing a Received SACK
	// D)
	//   ii) Set rwnd equal to the newly received a_rwnd minus the number
	//       of bytes still outstanding after processing the Cumulative
	//       TSN Ack and the Gap Ack Blocks.

	// bytes acked were already subtracted by markAsAcked() method
	bytesOutstanding := uint32(a.inflightQueue.getNumBytes()) //nolint:gosec
	if bytesOutstanding >= d.advertisedReceiverWindowCredit {
		a.rwnd = 0
	} else {
		a.rwnd = d.advertisedReceiverWindowCredit - bytesOutstanding
	}

	a.processFastRetransmission(d.cumulativeTSNAck, htna, cumTSNAckPointAdvanced)

	if a.useForwardTSN {
		a.updateAdvancedPeerAckPoint()
	}

	if a.inflightQueue.size() > 0 {
		// Start timer. (noop if already started)
		a.timers.start(timerT3RTX, time.Now(), a.rtoMgr.getRTO())
	}

	if cumTSNAckPointAdvanced {
		a.checkShutdownProgress()
	}
}

// releaseStreamBuffers lowers each stream's buffered amount by the bytes
// acked on it and wakes blocked writers.
// The caller should hold the lock.
func (a *Association) releaseStreamBuffers(bytesAckedPerStream map[uint16]int) {
	total := 0
	for si, nBytesAcked := range bytesAckedPerStream {
		total += nBytesAcked
		if s, ok := a.streams[si]; ok {
			if cb := s.onBufferReleased(nBytesAcked); cb != nil {
				a.callbacks = append(a.callbacks, cb)
			}
		}
	}
	if total > 0 {
		a.notifyWriters()
	}
}

// updateAdvancedPeerAckPoint applies RFC 3758 Sec 3.5 C1 to C3.
// The caller should hold the lock.
func (a *Association) updateAdvancedPeerAckPoint() {
	// RFC 3758 Sec 3.5 C1
	if sna32LT(a.advancedPeerTSNAckPoint, a.cumulativeTSNAckPoint) {
		a.advancedPeerTSNAckPoint = a.cumulativeTSNAckPoint
	}

	// RFC 3758 Sec 3.5 C2
	for i := a.advancedPeerTSNAckPoint + 1; ; i++ {
		c, ok := a.inflightQueue.get(i)
		if !ok || !c.abandoned() {
			break
		}
		a.advancedPeerTSNAckPoint = i
	}

	// RFC 3758 Sec 3.5 C3
	if sna32GT(a.advancedPeerTSNAckPoint, a.cumulativeTSNAckPoint) {
		a.willSendForwardTSN = true
	}
}
