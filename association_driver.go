// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"context"
	"sync/atomic"
	"time"
)

// readLoop hands every datagram read from netConn to the driver.
func (a *Association) readLoop(ctx context.Context) error {
	a.log.Debugf("[%s] readLoop entered", a.name)
	defer a.log.Debugf("[%s] readLoop exited", a.name)

	buffer := make([]byte, receiveMTU)
	for {
		n, err := a.netConn.Read(buffer)
		if err != nil {
			return err
		}

		// Make a buffer sized to what we read, then copy the data we
		// read from the underlying transport.
		inbound := make([]byte, n)
		copy(inbound, buffer[:n])
		atomic.AddUint64(&a.bytesReceived, uint64(n)) //nolint:gosec

		select {
		case a.inboundCh <- inbound:
		case <-a.closeCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// driveLoop is the only goroutine that mutates protocol state on its own
// and the only writer of netConn. It handles inbound packets, fires expired
// timers, writes whatever became sendable, then sleeps until the next event.
func (a *Association) driveLoop(ctx context.Context) error {
	a.log.Debugf("[%s] driveLoop entered", a.name)
	defer a.finish()

	timer := time.NewTimer(time.Hour)
	drainTimer(timer)

	for {
		if done := a.step(); done {
			return nil
		}

		a.lock.RLock()
		next, armed := a.timers.nextDeadline()
		a.lock.RUnlock()

		var timerCh <-chan time.Time
		if armed {
			timer.Reset(time.Until(next))
			timerCh = timer.C
		}

		select {
		case raw := <-a.inboundCh:
			a.handleInbound(raw)
		case <-a.awakeCh:
		case <-timerCh:
		case <-ctx.Done():
			a.lock.Lock()
			a.terminate(context.Cause(ctx))
			a.lock.Unlock()
		}

		if armed {
			drainTimer(timer)
		}
	}
}

// step fires due timers and writes the outbound packets. It reports whether
// the association reached its terminal state.
func (a *Association) step() bool {
	a.lock.Lock()
	if a.closeErr == nil {
		a.timers.expire(time.Now(), a)
	}
	packets := a.gatherOutbound()
	callbacks := a.callbacks
	a.callbacks = nil
	done := a.closeErr != nil
	a.lock.Unlock()

	a.queueCallbacks(callbacks)

	for _, p := range packets {
		a.writePacket(p)
	}

	return done
}

func (a *Association) queueCallbacks(callbacks []func()) {
	if len(callbacks) == 0 {
		return
	}

	a.callbackMu.Lock()
	a.callbackQueue = append(a.callbackQueue, callbacks...)
	a.callbackMu.Unlock()

	select {
	case a.callbackCh <- struct{}{}:
	default:
	}
}

// callbackLoop runs user callbacks in the order they were queued, off the
// driver goroutine, so a callback may block on a Write. It drains the queue
// and exits once the association is closed.
func (a *Association) callbackLoop() {
	for {
		select {
		case <-a.callbackCh:
			a.runCallbacks()
		case <-a.closeCh:
			a.runCallbacks()

			return
		}
	}
}

func (a *Association) runCallbacks() {
	for {
		a.callbackMu.Lock()
		callbacks := a.callbackQueue
		a.callbackQueue = nil
		a.callbackMu.Unlock()

		if len(callbacks) == 0 {
			return
		}

		for _, f := range callbacks {
			f()
		}
	}
}

func (a *Association) writePacket(p *packet) {
	raw, err := p.marshal()
	if err != nil {
		a.log.Warnf("[%s] failed to serialize a packet: %v", a.name, err)

		return
	}

	if _, err := a.netConn.Write(raw); err != nil {
		a.log.Warnf("[%s] failed to write packets on netConn: %v", a.name, err)

		return
	}

	atomic.AddUint64(&a.bytesSent, uint64(len(raw)))
	a.stats.incPacketsSent()
}

// finish runs once the driver stops.
func (a *Association) finish() {
	a.lock.Lock()
	a.terminate(ErrAssociationClosed)
	err := a.closeErr
	a.lock.Unlock()

	if cerr := a.netConn.Close(); cerr != nil {
		a.log.Debugf("[%s] failed to close netConn: %v", a.name, cerr)
	}

	close(a.acceptCh)
	close(a.closeCh)

	a.log.Debugf("[%s] driveLoop exited: %v", a.name, err)
}

// terminate records the terminal error and moves to CLOSED. Packets queued
// by the caller (ABORT, SHUTDOWN-COMPLETE) still go out on the driver's
// last step. The caller should hold the lock.
func (a *Association) terminate(err error) {
	if a.closeErr != nil {
		return
	}
	if err == nil {
		err = ErrAssociationClosed
	}

	a.log.Debugf("[%s] association terminated: %v", a.name, err)
	a.closeErr = err
	a.setState(closed)
	a.timers.stopAll()
	a.completeHandshake(err)

	for _, s := range a.streams {
		s.closeWithError(err)
	}

	a.notifyWriters()
	a.awake()
}

// awake wakes the driver. It never blocks.
func (a *Association) awake() {
	select {
	case a.awakeCh <- struct{}{}:
	default:
	}
}

// notifyWriters wakes every writer waiting for buffer space.
// The caller should hold the lock.
func (a *Association) notifyWriters() {
	close(a.writeNotify)
	a.writeNotify = make(chan struct{})
}

func (a *Association) handleInbound(raw []byte) {
	pkt := &packet{}
	if err := pkt.unmarshal(raw); err != nil {
		a.stats.incPacketsDropped()
		a.log.Warnf("[%s] unable to parse SCTP packet %s", a.name, err)

		return
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	if a.closeErr != nil {
		return
	}

	if err := a.checkPacket(pkt); err != nil {
		a.stats.incPacketsDropped()
		a.log.Warnf("[%s] failed validating packet %s", a.name, err)

		return
	}

	if !a.checkVerificationTag(pkt) {
		a.stats.incPacketsDropped()
		a.log.Tracef("[%s] dropping packet with verification tag %d", a.name, pkt.verificationTag)

		return
	}

	a.stats.incPacketsReceived()
	a.handleChunksStart()

	for _, c := range pkt.chunks {
		a.handleChunk(pkt, c)
		if a.closeErr != nil {
			return
		}
	}

	if len(pkt.unrecognizedChunks) > 0 && a.peerVerificationTag != 0 {
		causes := make([]errorCause, 0, len(pkt.unrecognizedChunks))
		for _, raw := range pkt.unrecognizedChunks {
			causes = append(causes, &errorCauseUnrecognizedChunkType{unrecognizedChunk: raw})
		}
		a.controlQueue.push(a.createPacket([]chunk{&chunkError{errorCauses: causes}}))
	}

	a.handleChunksEnd()
}

// checkPacket applies the rules every inbound packet must follow.
func (a *Association) checkPacket(pkt *packet) error {
	// All packets must adhere to these rules

	// This is the SCTP sender's port number.  It can be used by the
	// receiver in combination with the source IP address, the SCTP
	// destination port, and possibly the destination IP address to
	// identify the association to which this packet belongs.  The port
	// number 0 MUST NOT be used.
	if pkt.sourcePort == 0 || pkt.destinationPort == 0 {
		return errZeroPort
	}

	// The INIT chunk MUST be the only chunk in the SCTP packet carrying it,
	// and the packet MUST carry verification tag 0.
	for _, c := range pkt.chunks {
		if _, ok := c.(*chunkInit); !ok {
			continue
		}
		if len(pkt.chunks) != 1 || len(pkt.unrecognizedChunks) != 0 {
			return errInitOnlyChunk
		}
		if pkt.verificationTag != 0 {
			return errInitWithNonZeroTag
		}

		return nil
	}

	if a.strictPortValidation && a.getState() != closed &&
		(pkt.sourcePort != a.destinationPort || pkt.destinationPort != a.sourcePort) {
		return errPortMismatch
	}

	return nil
}

// checkVerificationTag follows RFC 9260 Sec 8.5. A COOKIE-ECHO carries our
// tag like any other chunk; its cookie is checked against it again.
func (a *Association) checkVerificationTag(pkt *packet) bool {
	if len(pkt.chunks) == 0 {
		return pkt.verificationTag == a.myVerificationTag
	}

	switch c := pkt.chunks[0].(type) {
	case *chunkInit:
		return true
	case *chunkAbort:
		return a.reflectedTagOK(pkt, c.flags)
	case *chunkShutdownComplete:
		return a.reflectedTagOK(pkt, c.flags)
	}

	return pkt.verificationTag == a.myVerificationTag
}

// reflectedTagOK accepts the peer's own tag when the T bit is set (RFC 9260 Sec 8.5.1).
func (a *Association) reflectedTagOK(pkt *packet, flags byte) bool {
	if flags&0x01 != 0 {
		return a.peerVerificationTag != 0 && pkt.verificationTag == a.peerVerificationTag
	}

	return pkt.verificationTag == a.myVerificationTag
}

// The caller should hold the lock.
func (a *Association) handleChunksStart() {
	a.sackTrigger.reset()
}

// handleChunksEnd turns what the packet's DATA asked for into the ack state.
// The caller should hold the lock.
func (a *Association) handleChunksEnd() {
	switch {
	case a.sackTrigger.immediate:
		a.ackState = ackStateImmediate
		a.timers.stop(timerAck)
	case a.sackTrigger.delayed:
		a.ackState = ackStateDelay
		a.timers.start(timerAck, time.Now(), float64(a.ackDelay.Milliseconds()))
	}
}

// The caller should hold the lock.
func (a *Association) handleChunk(pkt *packet, receivedChunk chunk) { //nolint:cyclop
	if abort, err := receivedChunk.check(); err != nil {
		a.log.Warnf("[%s] failed validating chunk: %s", a.name, err)
		if !abort {
			return
		}

		switch c := receivedChunk.(type) {
		case *chunkInit, *chunkInitAck:
			// a bad handshake chunk says nothing about an association
			return
		case *chunkPayloadData:
			a.abortLocked(&errorCauseNoUserData{tsn: c.tsn}, err)
		default:
			a.abortLocked(&errorCauseProtocolViolation{additionalInformation: []byte(err.Error())}, err)
		}

		return
	}

	var packets []*packet

	switch c := receivedChunk.(type) {
	case *chunkInit:
		packets = a.handleInit(pkt, c)
	case *chunkInitAck:
		a.handleInitAck(pkt, c)
	case *chunkAbort:
		a.handleAbort(c)
	case *chunkError:
		a.handleError(c)
	case *chunkHeartbeat:
		packets = a.handleHeartbeat(c)
	case *chunkHeartbeatAck:
		a.handleHeartbeatAck(c)
	case *chunkCookieEcho:
		packets = a.handleCookieEcho(pkt, c)
	case *chunkCookieAck:
		a.handleCookieAck()
	case *chunkPayloadData:
		packets = a.handleData(c)
	case *chunkSelectiveAck:
		a.handleSack(c)
	case *chunkReconfig:
		packets = a.handleReconfig(c)
	case *chunkForwardTSN:
		packets = a.handleForwardTSN(c)
	case *chunkShutdown:
		a.handleShutdown(c)
	case *chunkShutdownAck:
		a.handleShutdownAck()
	case *chunkShutdownComplete:
		a.handleShutdownComplete()
	default:
		a.log.Warnf("[%s] unhandled chunk type %T", a.name, c)
	}

	a.controlQueue.pushAll(packets)
}

// createPacket wraps chunks for the peer. The caller should hold the lock.
func (a *Association) createPacket(chunks []chunk) *packet {
	return &packet{
		verificationTag: a.peerVerificationTag,
		sourcePort:      a.sourcePort,
		destinationPort: a.destinationPort,
		chunks:          chunks,
	}
}

// onRetransmissionTimeout is called by the timer table.
// The caller should hold the lock.
func (a *Association) onRetransmissionTimeout(id timerID, nRtos uint) {
	switch id {
	case timerT1Init:
		a.log.Debugf("[%s] T1-init timed out (nRtos=%d)", a.name, nRtos)
		a.sendInit()
	case timerT1Cookie:
		a.log.Debugf("[%s] T1-cookie timed out (nRtos=%d)", a.name, nRtos)
		a.sendCookieEcho()
	case timerT2Shutdown:
		a.log.Debugf("[%s] retransmission of shutdown timeout (nRtos=%d)", a.name, nRtos)
		switch a.getState() {
		case shutdownSent:
			a.willSendShutdown = true
		case shutdownAckSent:
			a.willSendShutdownAck = true
		}
	case timerT3RTX:
		a.onT3Timeout(nRtos)
	case timerReconfig:
		a.willRetransmitReconfig = true
	case timerHeartbeat:
		if a.getState() != established {
			a.timers.stop(timerHeartbeat)

			return
		}
		a.sendHeartbeat()
	default:
	}
}

// The caller should hold the lock.
func (a *Association) onRetransmissionFailure(id timerID) {
	switch id {
	case timerT1Init, timerT1Cookie:
		a.log.Errorf("[%s] retransmission failure: %s", a.name, id)
		a.terminate(ErrHandshakeFailed)
	case timerT2Shutdown:
		a.log.Errorf("[%s] retransmission failure: T2-shutdown", a.name)
		a.abortLocked(nil, errShutdownFailure)
	case timerHeartbeat:
		a.log.Errorf("[%s] retransmission failure: heartbeat", a.name)
		a.abortLocked(nil, errHeartbeatFailure)
	case timerT3RTX:
		// only bounded during shutdown
		a.log.Errorf("[%s] retransmission failure: T3-rtx (DATA)", a.name)
		a.abortLocked(nil, errShutdownFailure)
	default:
	}
}

// The caller should hold the lock.
func (a *Association) onAckTimeout() {
	a.log.Tracef("[%s] ack timed out (ackState: %d)", a.name, a.ackState)
	a.stats.incAckTimeouts()
	a.ackState = ackStateImmediate
}

// drainTimer stops t and empties its channel.
func drainTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
