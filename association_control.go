// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// The caller should hold the lock.
func (a *Association) handleAbort(c *chunkAbort) {
	err := &PeerAbortedError{Causes: c.causes()}
	a.log.Debugf("[%s] ABORT received: %s", a.name, err)
	a.terminate(err)
}

// The caller should hold the lock.
func (a *Association) handleError(c *chunkError) {
	for _, cause := range c.errorCauses {
		if stale, ok := cause.(*errorCauseStaleCookie); ok && a.getState() == cookieEchoed {
			// RFC 9260 Sec 5.2.6: start over with a fresh INIT.
			a.log.Debugf("[%s] stale cookie (%d usec), restarting handshake", a.name, stale.staleness)
			a.restartHandshake()

			return
		}
		a.log.Warnf("[%s] ERROR received: %s", a.name, cause)
	}
}

// The caller should hold the lock.
func (a *Association) handleHeartbeat(c *chunkHeartbeat) []*packet {
	a.log.Tracef("[%s] chunkHeartbeat", a.name)

	return []*packet{a.createPacket([]chunk{&chunkHeartbeatAck{
		info: &paramHeartbeatInfo{heartbeatInformation: c.info.heartbeatInformation},
	}})}
}

// sendHeartbeat probes the peer carrying the send time.
// The caller should hold the lock.
func (a *Association) sendHeartbeat() {
	info := make([]byte, 8)
	binary.BigEndian.PutUint64(info, uint64(time.Now().UnixNano())) //nolint:gosec

	a.controlQueue.push(a.createPacket([]chunk{&chunkHeartbeat{
		info: &paramHeartbeatInfo{heartbeatInformation: info},
	}}))
}

// The caller should hold the lock.
func (a *Association) handleHeartbeatAck(c *chunkHeartbeatAck) {
	if a.getState() != established || c.info == nil || len(c.info.heartbeatInformation) != 8 {
		return
	}

	now := time.Now()
	sent := time.Unix(0, int64(binary.BigEndian.Uint64(c.info.heartbeatInformation))) //nolint:gosec
	if rtt := now.Sub(sent); rtt >= 0 && rtt < time.Duration(a.rtoMgr.rtoMax)*time.Millisecond {
		srtt := a.rtoMgr.setNewRTT(float64(rtt.Microseconds()) / 1000)
		a.minRTT.add(now, rtt)
		a.log.Tracef("[%s] heartbeat RTT: %v, SRTT: %f RTO: %f", a.name, rtt, srtt, a.rtoMgr.getRTO())
	}

	// the peer is alive, clear the error counter
	a.timers.restart(timerHeartbeat, now, float64(a.heartbeatInterval.Milliseconds()))
}

// checkShutdownProgress moves a pending shutdown on once nothing is left
// outstanding (RFC 9260 Sec 9.2).
// The caller should hold the lock.
func (a *Association) checkShutdownProgress() {
	if a.inflightQueue.size() > 0 || a.pendingQueue.size() > 0 {
		return
	}

	switch a.getState() {
	case shutdownPending:
		a.log.Debugf("[%s] all data acknowledged, sending SHUTDOWN", a.name)
		a.willSendShutdown = true
		a.setState(shutdownSent)
		a.awake()
	case shutdownReceived:
		a.log.Debugf("[%s] all data acknowledged, sending SHUTDOWN-ACK", a.name)
		a.willSendShutdownAck = true
		a.setState(shutdownAckSent)
		a.awake()
	}
}

// The caller should hold the lock.
func (a *Association) handleShutdown(c *chunkShutdown) {
	state := a.getState()
	a.log.Debugf("[%s] SHUTDOWN: cumTSN=%d state=%s", a.name, c.cumulativeTSNAck, getAssociationStateString(state))

	switch state {
	case established, shutdownPending:
		a.timers.stop(timerHeartbeat)
		a.setState(shutdownReceived)
	case shutdownSent:
		// both ends shut down at once
		a.timers.stop(timerT2Shutdown)
		a.willSendShutdown = false
		a.willSendShutdownAck = true
		a.setState(shutdownAckSent)
		a.awake()

		return
	case shutdownReceived:
	default:
		return
	}

	// The cumulative TSN acks like a SACK without gap blocks.
	if sna32GT(c.cumulativeTSNAck, a.cumulativeTSNAckPoint) && sna32LT(c.cumulativeTSNAck, a.myNextTSN) {
		a.handleSack(&chunkSelectiveAck{
			cumulativeTSNAck:               c.cumulativeTSNAck,
			advertisedReceiverWindowCredit: a.rwnd + uint32(a.inflightQueue.getNumBytes()), //nolint:gosec
		})
	}

	a.checkShutdownProgress()
}

// The caller should hold the lock.
func (a *Association) handleShutdownAck() {
	switch a.getState() {
	case shutdownSent, shutdownAckSent:
	default:
		return
	}

	a.timers.stop(timerT2Shutdown)
	a.willSendShutdownComplete = true
	a.terminate(ErrAssociationClosed)
}

// The caller should hold the lock.
func (a *Association) handleShutdownComplete() {
	if a.getState() != shutdownAckSent {
		return
	}

	a.timers.stop(timerT2Shutdown)
	if a.localShutdown {
		a.terminate(ErrAssociationClosed)
	} else {
		a.terminate(io.EOF)
	}
}

// sendResetRequest queues an empty DATA chunk marking where the outgoing
// stream ends. The RECONFIG goes out once the marker reaches the head of
// the pending queue.
func (a *Association) sendResetRequest(streamIdentifier uint16) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.closeErr != nil {
		return a.closeErr
	}

	state := a.getState()
	if state != established {
		return fmt.Errorf("%w: resetting stream in state %s",
			errAssociationNotEstablished, getAssociationStateString(state))
	}

	a.pendingQueue.push(&chunkPayloadData{
		streamIdentifier:  streamIdentifier,
		beginningFragment: true,
		endingFragment:    true,
		userData:          nil,
	})
	a.awake()

	return nil
}

// createResetRequest builds an Outgoing SSN Reset Request covering every
// TSN sent so far and arms the reconfig timer.
// The caller should hold the lock.
func (a *Association) createResetRequest(streamIdentifiers []uint16) *chunkReconfig {
	rsn := a.generateNextRSN()
	c := &chunkReconfig{
		paramA: &paramOutgoingResetRequest{
			reconfigRequestSequenceNumber: rsn,
			senderLastTSN:                 a.myNextTSN - 1,
			streamIdentifiers:             streamIdentifiers,
		},
	}
	a.reconfigs[rsn] = c // store in the map for retransmission
	a.log.Debugf("[%s] sending RECONFIG: rsn=%d sids=%v", a.name, rsn, streamIdentifiers)

	a.timers.start(timerReconfig, time.Now(), a.rtoMgr.getRTO())

	return c
}

// The caller should hold the lock.
func (a *Association) handleReconfig(c *chunkReconfig) []*packet {
	a.log.Tracef("[%s] handleReconfig", a.name)

	switch a.getState() {
	case established, shutdownPending, shutdownSent, shutdownReceived:
	default:
		return nil
	}

	var packets []*packet
	for _, p := range []param{c.paramA, c.paramB} {
		if p == nil {
			continue
		}
		if pkt := a.handleReconfigParam(p); pkt != nil {
			packets = append(packets, pkt)
		}
	}

	return packets
}

// The caller should hold the lock.
func (a *Association) handleReconfigParam(raw param) *packet {
	switch p := raw.(type) {
	case *paramOutgoingResetRequest:
		if _, ok := a.reconfigRequests[p.reconfigRequestSequenceNumber]; !ok &&
			sna32LT(a.peerLastTSN, p.senderLastTSN) && len(a.reconfigRequests) >= maxReconfigRequests {
			// A well behaved peer has one request in flight. Drop and let it
			// retransmit.
			a.log.Warnf("[%s] too many reconfig requests outstanding: %d", a.name, len(a.reconfigRequests))

			return nil
		}
		a.reconfigRequests[p.reconfigRequestSequenceNumber] = p

		return a.resetStreamsIfAny(p)
	case *paramReconfigResponse:
		if _, ok := a.reconfigs[p.reconfigResponseSequenceNumber]; !ok {
			return nil
		}
		if p.result == reconfigResultInProgress {
			// RFC 6525 Sec 5.2.7: start the timer again without counting
			// an error.
			a.timers.restart(timerReconfig, time.Now(), a.rtoMgr.getRTO())

			return nil
		}
		a.log.Debugf("[%s] RECONFIG response: rsn=%d result=%d",
			a.name, p.reconfigResponseSequenceNumber, p.result)
		delete(a.reconfigs, p.reconfigResponseSequenceNumber)
		if len(a.reconfigs) == 0 {
			a.timers.stop(timerReconfig)
		}

		return nil
	default:
		a.log.Warnf("[%s] unexpected reconfig parameter %T", a.name, p)

		return nil
	}
}

// resetStreamsIfAny resets the inbound streams of a request once every TSN
// up to its sender's last TSN was received, and answers it either way.
// The caller should hold the lock.
func (a *Association) resetStreamsIfAny(p *paramOutgoingResetRequest) *packet {
	result := reconfigResultSuccessPerformed
	if sna32LTE(p.senderLastTSN, a.peerLastTSN) {
		a.log.Debugf("[%s] resetStream(): senderLastTSN=%d <= peerLastTSN=%d",
			a.name, p.senderLastTSN, a.peerLastTSN)
		for _, id := range p.streamIdentifiers {
			s, ok := a.streams[id]
			if !ok {
				continue
			}
			s.onInboundStreamReset()
			a.log.Debugf("[%s] deleting stream %d", a.name, id)
			delete(a.streams, id)
		}
		delete(a.reconfigRequests, p.reconfigRequestSequenceNumber)
	} else {
		a.log.Debugf("[%s] resetStream(): senderLastTSN=%d > peerLastTSN=%d",
			a.name, p.senderLastTSN, a.peerLastTSN)
		result = reconfigResultInProgress
	}

	return a.createPacket([]chunk{&chunkReconfig{
		paramA: &paramReconfigResponse{
			reconfigResponseSequenceNumber: p.reconfigRequestSequenceNumber,
			result:                         result,
		},
	}})
}

// The caller should hold the lock.
func (a *Association) generateNextRSN() uint32 {
	rsn := a.myNextRSN
	a.myNextRSN++

	return rsn
}
