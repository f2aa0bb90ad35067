// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"context"
	"fmt"
	"time"
)

// sendPayloadData queues the DATA chunks of one message.
func (a *Association) sendPayloadData(chunks []*chunkPayloadData) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.closeErr != nil {
		return a.closeErr
	}

	if state := a.getState(); state != established {
		return fmt.Errorf("%w: sending payload data in state %s",
			errAssociationNotEstablished, getAssociationStateString(state))
	}

	// Push the chunks into the pending queue first.
	a.pendingQueue.append(chunks)
	a.awake()

	return nil
}

// waitForBufferSpace blocks while n more bytes would overflow the outbound
// buffer. A message larger than the whole buffer is let in once the buffer
// is empty.
func (a *Association) waitForBufferSpace(ctx context.Context, n int) error {
	if a.maxOutboundBufferSize == 0 {
		return nil
	}

	for {
		a.lock.RLock()
		closeErr := a.closeErr
		used := a.pendingQueue.getNumBytes() + a.inflightQueue.getNumBytes()
		notify := a.writeNotify
		a.lock.RUnlock()

		if closeErr != nil {
			return closeErr
		}
		if used == 0 || used+n <= int(a.maxOutboundBufferSize) {
			return nil
		}

		select {
		case <-notify:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrCanceled, context.Cause(ctx))
		}
	}
}

// gatherOutbound collects every packet ready to go, control packets first.
// The caller should hold the lock.
func (a *Association) gatherOutbound() []*packet {
	if a.closeErr != nil {
		return a.gatherTerminalPackets()
	}

	packets := a.controlQueue.popAll()

	state := a.getState()
	if state == closed || state == cookieWait {
		return packets
	}

	var control []chunk

	if a.ackState == ackStateImmediate {
		a.ackState = ackStateIdle
		sack := a.createSelectiveAckChunk()
		a.stats.incSACKsSent()
		a.log.Tracef("[%s] sending SACK: %s", a.name, sack)
		control = append(control, sack)
	}

	if a.willSendForwardTSN {
		a.willSendForwardTSN = false
		if sna32GT(a.advancedPeerTSNAckPoint, a.cumulativeTSNAckPoint) {
			control = append(control, a.createForwardTSN())
		}
	}

	if a.willRetransmitReconfig {
		a.willRetransmitReconfig = false
		for _, c := range a.reconfigs {
			control = append(control, c)
		}
	}

	var data []*chunkPayloadData
	switch state {
	case established, shutdownPending, shutdownReceived:
		var resets []chunk
		data, resets = a.gatherDataChunks(true)
		control = append(control, resets...)
	case shutdownSent:
		data, _ = a.gatherDataChunks(false)
	}

	// RFC 9260 Sec 9.2: the last DATA before SHUTDOWN asks for an
	// immediate SACK.
	if state == shutdownPending && len(data) > 0 && a.pendingQueue.size() == 0 {
		data[len(data)-1].immediateSack = true
	}

	packets = append(packets, a.bundle(control, data)...)

	return append(packets, a.gatherShutdownPackets()...)
}

// gatherDataChunks returns fast retransmissions, T3 retransmissions and,
// if sendNew, new DATA in that order, plus RECONFIG chunks for streams
// whose reset marker was reached.
// The caller should hold the lock.
func (a *Association) gatherDataChunks(sendNew bool) ([]*chunkPayloadData, []chunk) {
	var data []*chunkPayloadData
	var resets []chunk

	if a.willRetransmitFast {
		a.willRetransmitFast = false
		data = append(data, a.getFastRetransmitChunks()...)
	}

	data = append(data, a.getChunksToRetransmit()...)

	if sendNew {
		chunks, sisToReset := a.popPendingDataChunksToSend()
		data = append(data, chunks...)
		if len(sisToReset) > 0 {
			resets = append(resets, a.createResetRequest(sisToReset))
		}
	}

	if len(data) > 0 {
		a.stats.addDATAsSent(len(data))
		// Start timer. (noop if already started)
		a.timers.start(timerT3RTX, time.Now(), a.rtoMgr.getRTO())
	}

	return data, resets
}

// getFastRetransmitChunks returns the lowest chunks marked by the HTNA
// algorithm that fit in one packet, regardless of cwnd (RFC 4960 Sec 7.2.4).
// The caller should hold the lock.
func (a *Association) getFastRetransmitChunks() []*chunkPayloadData {
	var chunks []*chunkPayloadData
	budget := int(a.mtu - commonHeaderSize)

	for tsn := a.cumulativeTSNAckPoint + 1; sna32LT(tsn, a.myNextTSN); tsn++ {
		c, ok := a.inflightQueue.get(tsn)
		if !ok {
			break
		}
		if !c.retransmit {
			continue
		}
		if c.acked || c.abandoned() {
			c.retransmit = false

			continue
		}

		size := int(dataChunkHeaderSize) + len(c.userData)
		size += getPadding(size)
		if size > budget {
			break
		}
		budget -= size

		c.retransmit = false
		c.nSent++
		a.checkPartialReliabilityStatus(c)
		a.log.Tracef("[%s] fast-retransmit: tsn=%d sent=%d", a.name, c.tsn, c.nSent)

		chunks = append(chunks, c)
	}

	return chunks
}

// getChunksToRetransmit returns chunks marked for retransmission that
// min(cwnd, rwnd) allows. The first one always goes, as a zero window probe
// if need be.
// The caller should hold the lock.
func (a *Association) getChunksToRetransmit() []*chunkPayloadData {
	awnd := min(a.cc.CongestionWindow(), a.rwnd)
	var chunks []*chunkPayloadData
	var bytesToSend int

	for i := 0; ; i++ {
		c, ok := a.inflightQueue.get(a.cumulativeTSNAckPoint + uint32(i) + 1) //nolint:gosec
		if !ok {
			break // end of pending data
		}

		if !c.retransmit {
			continue
		}
		if c.abandoned() {
			c.retransmit = false

			continue
		}

		if len(chunks) > 0 && bytesToSend+len(c.userData) > int(awnd) {
			break
		}

		// reset the retransmit flag not to retransmit again before the next
		// t3-rtx timer fires
		c.retransmit = false
		bytesToSend += len(c.userData)

		c.nSent++

		a.checkPartialReliabilityStatus(c)

		a.log.Tracef("[%s] retransmitting tsn=%d ssn=%d sent=%d", a.name, c.tsn, c.streamSequenceNumber, c.nSent)

		chunks = append(chunks, c)
	}

	return chunks
}

// popPendingDataChunksToSend pops chunks from the pending queues as many as
// the cwnd and rwnd allows to send.
// The caller should hold the lock.
func (a *Association) popPendingDataChunksToSend() ([]*chunkPayloadData, []uint16) {
	var chunks []*chunkPayloadData
	var sisToReset []uint16 // stream identifiers to reset

	if a.pendingQueue.size() == 0 {
		return nil, nil
	}

	// RFC 4960 sec 6.1.  Transmission of DATA Chunks
	//   A) At any given time, the data sender MUST NOT transmit new data to
	//      any destination transport address if its peer's rwnd indicates
	//      that the peer has no buffer space (i.e., rwnd is 0; see Section
	//      6.2.1).  However, regardless of the value of rwnd (including if it
	//      is 0), the data sender can always have one DATA chunk in flight to
	//      the receiver if allowed by cwnd (see rule B, below).
	for {
		c := a.pendingQueue.peek()
		if c == nil {
			break // no more pending data
		}

		dataLen := uint32(len(c.userData)) //nolint:gosec
		if dataLen == 0 {
			sisToReset = append(sisToReset, c.streamIdentifier)
			if err := a.pendingQueue.pop(c); err != nil {
				a.log.Errorf("[%s] failed to pop from pending queue: %s", a.name, err)
			}

			continue
		}

		if uint32(a.inflightQueue.getNumBytes())+dataLen > a.cc.CongestionWindow() { //nolint:gosec
			break // would exceed cwnd
		}

		if dataLen > a.rwnd {
			break // no more rwnd
		}

		a.rwnd -= dataLen

		a.movePendingDataChunkToInflightQueue(c)
		chunks = append(chunks, c)
	}

	// the data sender can always have one DATA chunk in flight to the receiver
	if len(chunks) == 0 && a.inflightQueue.size() == 0 {
		// Send zero window probe
		if c := a.pendingQueue.peek(); c != nil && len(c.userData) > 0 {
			a.movePendingDataChunkToInflightQueue(c)
			chunks = append(chunks, c)
		}
	}

	return chunks, sisToReset
}

// The caller should hold the lock.
func (a *Association) movePendingDataChunkToInflightQueue(c *chunkPayloadData) {
	if err := a.pendingQueue.pop(c); err != nil {
		a.log.Errorf("[%s] failed to pop from pending queue: %s", a.name, err)
	}

	// Mark all fragements are in-flight now
	c.setAllInflight()

	// Assign TSN
	c.tsn = a.myNextTSN
	a.myNextTSN++

	c.since = time.Now() // use to calculate RTT and also for maxPacketLifeTime
	c.nSent = 1          // being sent for the first time

	a.checkPartialReliabilityStatus(c)

	a.log.Tracef("[%s] sending ppi=%d tsn=%d ssn=%d sent=%d len=%d (%v,%v)",
		a.name, c.payloadType, c.tsn, c.streamSequenceNumber, c.nSent, len(c.userData),
		c.beginningFragment, c.endingFragment)

	a.inflightQueue.pushNoCheck(c)
}

// checkPartialReliabilityStatus abandons c once it ran out of retransmissions
// or lifetime. The parameters are the ones the message was written with.
// The caller should hold the lock.
func (a *Association) checkPartialReliabilityStatus(c *chunkPayloadData) {
	if !a.useForwardTSN {
		return
	}

	// draft-ietf-rtcweb-data-protocol-09.txt section 6
	//	6.  Procedures
	//		All Data Channel Establishment Protocol messages MUST be sent using
	//		ordered delivery and reliable transmission.
	if c.payloadType == PayloadTypeWebRTCDCEP {
		return
	}

	switch c.relType {
	case ReliabilityTypeRexmit:
		if c.nSent >= c.relVal {
			c.setAbandoned(true)
			a.log.Tracef("[%s] marked as abandoned: tsn=%d ppi=%d (rexmit: %d)",
				a.name, c.tsn, c.payloadType, c.nSent)
		}
	case ReliabilityTypeTimed:
		elapsed := time.Since(c.since).Milliseconds()
		if elapsed >= int64(c.relVal) {
			c.setAbandoned(true)
			a.log.Tracef("[%s] marked as abandoned: tsn=%d ppi=%d (timed: %d)",
				a.name, c.tsn, c.payloadType, elapsed)
		}
	default:
	}
}

// createForwardTSN lists, per ordered stream, the highest SSN skipped up to
// the advanced peer ack point (RFC 3758 Sec 3.5 C4).
// The caller should hold the lock.
func (a *Association) createForwardTSN() *chunkForwardTSN {
	fwdtsn := &chunkForwardTSN{newCumulativeTSN: a.advancedPeerTSNAckPoint}
	index := map[uint16]int{} // to report only once per SI

	for i := a.cumulativeTSNAckPoint + 1; sna32LTE(i, a.advancedPeerTSNAckPoint); i++ {
		c, ok := a.inflightQueue.get(i)
		if !ok {
			break
		}
		if c.unordered {
			continue
		}

		idx, ok := index[c.streamIdentifier]
		if !ok {
			index[c.streamIdentifier] = len(fwdtsn.streams)
			fwdtsn.streams = append(fwdtsn.streams, chunkForwardTSNStream{
				identifier: c.streamIdentifier,
				sequence:   c.streamSequenceNumber,
			})

			continue
		}
		if sna16LT(fwdtsn.streams[idx].sequence, c.streamSequenceNumber) {
			// to report only once with greatest SSN
			fwdtsn.streams[idx].sequence = c.streamSequenceNumber
		}
	}

	a.log.Tracef("[%s] building fwdtsn: %s cumTSN=%d", a.name, fwdtsn, a.cumulativeTSNAckPoint)

	return fwdtsn
}

// onT3Timeout handles a T3-rtx expiry (RFC 4960 Sec 6.3.3).
// The caller should hold the lock.
func (a *Association) onT3Timeout(nRtos uint) {
	a.stats.incT3Timeouts()

	// E1) ssthresh = max(cwnd/2, 4*MTU), cwnd = 1*MTU
	a.cc.OnRetransmissionTimeout()
	// E2) RTO = RTO * 2
	a.rtoMgr.backoff()

	a.log.Debugf("[%s] T3-rtx timed out: nRtos=%d cwnd=%d ssthresh=%d rto=%f",
		a.name, nRtos, a.cc.CongestionWindow(), a.cc.SlowStartThreshold(), a.rtoMgr.getRTO())

	// RFC 3758 Sec 3.5 A5: abandoned chunks are skipped before retransmitting.
	if a.useForwardTSN {
		a.updateAdvancedPeerAckPoint()
	}

	// E3) retransmit the earliest outstanding DATA chunks that fit.
	a.inflightQueue.markAllToRetransmit()
}

// bundle packs control chunks, then DATA chunks, into as few packets as the
// MTU allows (RFC 4960 Sec 6.10).
// The caller should hold the lock.
func (a *Association) bundle(control []chunk, data []*chunkPayloadData) []*packet {
	var packets []*packet
	var chunks []chunk
	bytesInPacket := int(commonHeaderSize)

	add := func(c chunk, size int) {
		if len(chunks) > 0 && bytesInPacket+size > int(a.mtu) {
			packets = append(packets, a.createPacket(chunks))
			chunks = nil
			bytesInPacket = int(commonHeaderSize)
		}
		chunks = append(chunks, c)
		bytesInPacket += size
	}

	for _, c := range control {
		raw, err := c.marshal()
		if err != nil {
			a.log.Warnf("[%s] dropping %T: %v", a.name, c, err)

			continue
		}
		add(c, len(raw)+getPadding(len(raw)))
	}

	for _, c := range data {
		size := int(dataChunkHeaderSize) + len(c.userData)
		add(c, size+getPadding(size))
	}

	if len(chunks) > 0 {
		packets = append(packets, a.createPacket(chunks))
	}

	return packets
}

// gatherShutdownPackets emits SHUTDOWN or SHUTDOWN-ACK once requested.
// The caller should hold the lock.
func (a *Association) gatherShutdownPackets() []*packet {
	var packets []*packet

	switch {
	case a.willSendShutdown:
		a.willSendShutdown = false
		packets = append(packets, a.createPacket([]chunk{&chunkShutdown{cumulativeTSNAck: a.peerLastTSN}}))
		a.timers.start(timerT2Shutdown, time.Now(), a.rtoMgr.getRTO())
	case a.willSendShutdownAck:
		a.willSendShutdownAck = false
		packets = append(packets, a.createPacket([]chunk{&chunkShutdownAck{}}))
		a.timers.start(timerT2Shutdown, time.Now(), a.rtoMgr.getRTO())
	}

	return packets
}

// gatherTerminalPackets emits the last packet of a terminated association.
// The caller should hold the lock.
func (a *Association) gatherTerminalPackets() []*packet {
	var packets []*packet

	if a.willSendAbort {
		a.willSendAbort = false
		abort := &chunkAbort{}
		if a.willSendAbortCause != nil {
			abort.errorCauses = []errorCause{a.willSendAbortCause}
		}
		packets = append(packets, a.createPacket([]chunk{abort}))
	}

	if a.willSendShutdownComplete {
		a.willSendShutdownComplete = false
		packets = append(packets, a.createPacket([]chunk{&chunkShutdownComplete{}}))
	}

	return packets
}
