// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pion/sctp/v2/cookie"
)

var errCookieBodyTooShort = fmt.Errorf("%w: state cookie body too short", ErrInvalidChunk)

const associationCookieFixedSize = 31

// associationCookie is what the server needs to build the TCB when the
// COOKIE-ECHO comes back. It keeps nothing else between INIT and COOKIE-ECHO.
type associationCookie struct {
	myTag          uint32
	peerTag        uint32
	myInitialTSN   uint32
	peerInitialTSN uint32
	peerRwnd       uint32
	numOutbound    uint16
	numInbound     uint16
	useForwardTSN  bool
	sourcePort     uint16
	destPort       uint16
	remoteAddr     string
}

func (c *associationCookie) marshal() []byte {
	addr := c.remoteAddr
	if len(addr) > math.MaxUint16 {
		addr = addr[:math.MaxUint16]
	}

	out := make([]byte, associationCookieFixedSize, associationCookieFixedSize+len(addr))
	binary.BigEndian.PutUint32(out[0:], c.myTag)
	binary.BigEndian.PutUint32(out[4:], c.peerTag)
	binary.BigEndian.PutUint32(out[8:], c.myInitialTSN)
	binary.BigEndian.PutUint32(out[12:], c.peerInitialTSN)
	binary.BigEndian.PutUint32(out[16:], c.peerRwnd)
	binary.BigEndian.PutUint16(out[20:], c.numOutbound)
	binary.BigEndian.PutUint16(out[22:], c.numInbound)
	if c.useForwardTSN {
		out[24] = 1
	}
	binary.BigEndian.PutUint16(out[25:], c.sourcePort)
	binary.BigEndian.PutUint16(out[27:], c.destPort)
	binary.BigEndian.PutUint16(out[29:], uint16(len(addr))) //nolint:gosec

	return append(out, addr...)
}

func (c *associationCookie) unmarshal(raw []byte) error {
	if len(raw) < associationCookieFixedSize {
		return errCookieBodyTooShort
	}

	c.myTag = binary.BigEndian.Uint32(raw[0:])
	c.peerTag = binary.BigEndian.Uint32(raw[4:])
	c.myInitialTSN = binary.BigEndian.Uint32(raw[8:])
	c.peerInitialTSN = binary.BigEndian.Uint32(raw[12:])
	c.peerRwnd = binary.BigEndian.Uint32(raw[16:])
	c.numOutbound = binary.BigEndian.Uint16(raw[20:])
	c.numInbound = binary.BigEndian.Uint16(raw[22:])
	c.useForwardTSN = raw[24] == 1
	c.sourcePort = binary.BigEndian.Uint16(raw[25:])
	c.destPort = binary.BigEndian.Uint16(raw[27:])

	addrLen := int(binary.BigEndian.Uint16(raw[29:]))
	if len(raw) < associationCookieFixedSize+addrLen {
		return errCookieBodyTooShort
	}
	c.remoteAddr = string(raw[associationCookieFixedSize : associationCookieFixedSize+addrLen])

	return nil
}

func setSupportedExtensions(init *chunkInitCommon) {
	// nolint:godox
	// TODO RFC5061 https://tools.ietf.org/html/rfc6525#section-5.2
	// An implementation supporting this (Supported Extensions Parameter)
	// extension MUST list the ASCONF, the ASCONF-ACK, and the AUTH chunks
	// in its INIT and INIT-ACK parameters.
	init.params = append(init.params, &paramSupportedExtensions{
		ChunkTypes: []chunkType{ctReconfig, ctForwardTSN},
	})
}

// startHandshake moves a client to COOKIE-WAIT and queues the INIT.
// The caller should hold the lock.
func (a *Association) startHandshake() {
	init := &chunkInit{}
	init.initialTSN = a.initialTSN
	init.numOutboundStreams = a.myMaxNumOutboundStreams
	init.numInboundStreams = a.myMaxNumInboundStreams
	init.initiateTag = a.myVerificationTag
	init.advertisedReceiverWindowCredit = a.maxReceiveBufferSize
	setSupportedExtensions(&init.chunkInitCommon)

	a.storedInit = init
	a.peerVerificationTag = 0
	a.setState(cookieWait)
	a.sendInit()
	a.timers.start(timerT1Init, time.Now(), a.rtoMgr.getRTO())
}

// The caller should hold the lock.
func (a *Association) sendInit() {
	a.log.Debugf("[%s] sending INIT", a.name)
	if a.storedInit == nil {
		a.log.Errorf("[%s] INIT not stored to send", a.name)

		return
	}

	outbound := &packet{
		verificationTag: 0,
		sourcePort:      a.sourcePort,
		destinationPort: a.destinationPort,
		chunks:          []chunk{a.storedInit},
	}
	a.controlQueue.push(outbound)
	a.awake()
}

// The caller should hold the lock.
func (a *Association) sendCookieEcho() {
	if a.storedCookieEcho == nil {
		a.log.Errorf("[%s] cookieEcho not stored to send", a.name)

		return
	}

	a.log.Debugf("[%s] sending COOKIE-ECHO", a.name)
	a.controlQueue.push(a.createPacket([]chunk{a.storedCookieEcho}))
	a.awake()
}

func (a *Association) remoteAddrString() string {
	if addr := a.netConn.RemoteAddr(); addr != nil {
		return addr.String()
	}

	return ""
}

// handleInit answers with an INIT-ACK whose cookie carries every negotiated
// value. No state changes here, so a flood of INITs costs nothing.
// The caller should hold the lock.
func (a *Association) handleInit(pkt *packet, initChunk *chunkInit) []*packet {
	state := a.getState()
	a.log.Debugf("[%s] chunkInit received in state '%s'", a.name, getAssociationStateString(state))

	// https://tools.ietf.org/html/rfc4960#section-5.2.1
	// Upon receipt of an INIT in the COOKIE-WAIT state, an endpoint MUST
	// respond with an INIT ACK using the same parameters it sent in its
	// original INIT chunk (including its Initiate Tag, unchanged).
	if state != closed && state != cookieWait && state != cookieEchoed {
		// 5.2.2.  Unexpected INIT in States Other than CLOSED, COOKIE-ECHOED,
		//        COOKIE-WAIT, and SHUTDOWN-ACK-SENT
		a.log.Warnf("[%s] dropping INIT in state %s", a.name, getAssociationStateString(state))

		return nil
	}

	body := &associationCookie{
		myTag:          a.myVerificationTag,
		peerTag:        initChunk.initiateTag,
		myInitialTSN:   a.initialTSN,
		peerInitialTSN: initChunk.initialTSN,
		peerRwnd:       initChunk.advertisedReceiverWindowCredit,
		// https://www.rfc-editor.org/rfc/rfc9260#sec_handle_stream_parameters
		numOutbound:   min16(initChunk.numInboundStreams, a.myMaxNumOutboundStreams),
		numInbound:    min16(initChunk.numOutboundStreams, a.myMaxNumInboundStreams),
		useForwardTSN: initChunk.forwardTSNSupported(),
		sourcePort:    pkt.destinationPort,
		destPort:      pkt.sourcePort,
		remoteAddr:    a.remoteAddrString(),
	}

	initAck := &chunkInitAck{}
	initAck.initialTSN = a.initialTSN
	initAck.numOutboundStreams = a.myMaxNumOutboundStreams
	initAck.numInboundStreams = a.myMaxNumInboundStreams
	initAck.initiateTag = a.myVerificationTag
	initAck.advertisedReceiverWindowCredit = a.maxReceiveBufferSize
	initAck.params = []param{&paramStateCookie{cookie: a.cookieJar.Seal(body.marshal())}}
	for _, raw := range initChunk.unrecognizedParams {
		initAck.params = append(initAck.params, &paramUnrecognized{unrecognized: raw})
	}
	setSupportedExtensions(&initAck.chunkInitCommon)

	a.log.Debugf("[%s] sending INIT-ACK", a.name)

	return []*packet{{
		verificationTag: initChunk.initiateTag,
		sourcePort:      pkt.destinationPort,
		destinationPort: pkt.sourcePort,
		chunks:          []chunk{initAck},
	}}
}

// The caller should hold the lock.
func (a *Association) handleInitAck(pkt *packet, initChunkAck *chunkInitAck) {
	state := a.getState()
	a.log.Debugf("[%s] chunkInitAck received in state '%s'", a.name, getAssociationStateString(state))
	if state != cookieWait {
		// RFC 4960
		// 5.2.3.  Unexpected INIT ACK
		//   If an INIT ACK is received by an endpoint in any state other than the
		//   COOKIE-WAIT state, the endpoint should discard the INIT ACK chunk.
		return
	}

	if a.sourcePort != pkt.destinationPort || a.destinationPort != pkt.sourcePort {
		a.log.Warnf("[%s] handleInitAck: port mismatch", a.name)

		return
	}

	a.timers.stop(timerT1Init)

	a.myMaxNumInboundStreams = min16(initChunkAck.numOutboundStreams, a.myMaxNumInboundStreams)
	a.myMaxNumOutboundStreams = min16(initChunkAck.numInboundStreams, a.myMaxNumOutboundStreams)
	a.peerVerificationTag = initChunkAck.initiateTag
	// 13.2 This is the last TSN received in sequence.  This value
	// is set initially by taking the peer's initial TSN,
	// received in the INIT or INIT ACK chunk, and
	// subtracting one from it.
	a.peerLastTSN = initChunkAck.initialTSN - 1

	a.rwnd = initChunkAck.advertisedReceiverWindowCredit
	a.cc = a.ccFactory(a.mtu, a.rwnd)
	a.log.Debugf("[%s] initial rwnd=%d cwnd=%d ssthresh=%d",
		a.name, a.rwnd, a.cc.CongestionWindow(), a.cc.SlowStartThreshold())

	a.useForwardTSN = initChunkAck.forwardTSNSupported()
	if !a.useForwardTSN {
		a.log.Warnf("[%s] not using ForwardTSN (on initAck)", a.name)
	}
	if len(initChunkAck.unrecognizedParams) > 0 {
		a.log.Debugf("[%s] peer did not recognize %d INIT parameter(s)",
			a.name, len(initChunkAck.unrecognizedParams))
	}

	a.storedCookieEcho = &chunkCookieEcho{cookie: initChunkAck.stateCookie().cookie}
	a.setState(cookieEchoed)
	a.sendCookieEcho()
	a.timers.start(timerT1Cookie, time.Now(), a.rtoMgr.getRTO())
}

// The caller should hold the lock.
func (a *Association) handleCookieEcho(pkt *packet, cookieEcho *chunkCookieEcho) []*packet { //nolint:cyclop
	state := a.getState()
	a.log.Debugf("[%s] COOKIE-ECHO received in state '%s'", a.name, getAssociationStateString(state))

	switch state {
	case established, shutdownPending, shutdownSent, shutdownReceived:
		// Our COOKIE-ACK was lost.
		if pkt.verificationTag == a.myVerificationTag && bytes.Equal(a.myCookie, cookieEcho.cookie) {
			return []*packet{a.createPacket([]chunk{&chunkCookieAck{}})}
		}

		return nil
	case shutdownAckSent:
		return nil
	}

	raw, err := a.cookieJar.Open(cookieEcho.cookie)
	var staleErr *cookie.StaleError
	if errors.As(err, &staleErr) {
		return a.staleCookieError(pkt, raw, staleErr)
	}
	if err != nil {
		a.log.Warnf("[%s] dropping COOKIE-ECHO: %v", a.name, err)

		return nil
	}

	var body associationCookie
	if err := body.unmarshal(raw); err != nil {
		a.log.Warnf("[%s] dropping COOKIE-ECHO: %v", a.name, err)

		return nil
	}

	if pkt.verificationTag != body.myTag || body.myTag != a.myVerificationTag {
		a.log.Warnf("[%s] dropping COOKIE-ECHO: tag mismatch", a.name)

		return nil
	}
	if body.remoteAddr != a.remoteAddrString() {
		a.log.Warnf("[%s] dropping COOKIE-ECHO: minted for %q", a.name, body.remoteAddr)

		return nil
	}
	if !a.cookieJar.Consume(cookieEcho.cookie) {
		a.log.Warnf("[%s] dropping COOKIE-ECHO: cookie already used", a.name)

		return nil
	}

	a.peerVerificationTag = body.peerTag
	a.peerLastTSN = body.peerInitialTSN - 1
	a.myMaxNumOutboundStreams = body.numOutbound
	a.myMaxNumInboundStreams = body.numInbound
	a.rwnd = body.peerRwnd
	a.cc = a.ccFactory(a.mtu, a.rwnd)
	a.useForwardTSN = body.useForwardTSN
	a.sourcePort = body.sourcePort
	a.destinationPort = body.destPort
	if !a.useForwardTSN {
		a.log.Warnf("[%s] not using ForwardTSN (on cookieEcho)", a.name)
	}

	// Handshake collision: both sides sent INIT.
	a.timers.stop(timerT1Init)
	a.timers.stop(timerT1Cookie)
	a.storedInit = nil
	a.storedCookieEcho = nil

	a.myCookie = cookieEcho.cookie
	a.setState(established)
	a.onEstablished()

	return []*packet{a.createPacket([]chunk{&chunkCookieAck{}})}
}

// staleCookieError answers an expired cookie (RFC 9260 Sec 5.2.6). The body
// still names the peer's tag since the MAC was good.
func (a *Association) staleCookieError(pkt *packet, raw []byte, staleErr *cookie.StaleError) []*packet {
	var body associationCookie
	if err := body.unmarshal(raw); err != nil {
		return nil
	}

	staleness := staleErr.Staleness.Microseconds()
	if staleness > math.MaxUint32 {
		staleness = math.MaxUint32
	}
	a.log.Debugf("[%s] stale COOKIE-ECHO: %v late", a.name, staleErr.Staleness)

	return []*packet{{
		verificationTag: body.peerTag,
		sourcePort:      pkt.destinationPort,
		destinationPort: pkt.sourcePort,
		chunks: []chunk{&chunkError{
			errorCauses: []errorCause{&errorCauseStaleCookie{staleness: uint32(staleness)}},
		}},
	}}
}

// The caller should hold the lock.
func (a *Association) handleCookieAck() {
	state := a.getState()
	a.log.Debugf("[%s] COOKIE-ACK received in state '%s'", a.name, getAssociationStateString(state))
	if state != cookieEchoed {
		// RFC 4960
		// 5.2.5.  Handle Duplicate COOKIE-ACK.
		//   At any state other than COOKIE-ECHOED, an endpoint should silently
		//   discard a received COOKIE ACK chunk.
		return
	}

	a.timers.stop(timerT1Cookie)
	a.storedInit = nil
	a.storedCookieEcho = nil

	a.setState(established)
	a.onEstablished()
}

// restartHandshake is the client's answer to a Stale Cookie error.
// The caller should hold the lock.
func (a *Association) restartHandshake() {
	a.log.Debugf("[%s] cookie went stale, restarting from INIT", a.name)

	a.timers.stop(timerT1Cookie)
	a.storedCookieEcho = nil
	a.rtoMgr.reset()
	a.startHandshake()
}

// The caller should hold the lock.
func (a *Association) onEstablished() {
	if a.heartbeatInterval > 0 {
		a.timers.start(timerHeartbeat, time.Now(), float64(a.heartbeatInterval.Milliseconds()))
	}
	a.completeHandshake(nil)
}

// completeHandshake reports the outcome of the handshake once.
// The caller should hold the lock.
func (a *Association) completeHandshake(handshakeErr error) {
	if a.handshakeCompleted {
		return
	}
	a.handshakeCompleted = true
	a.handshakeCompletedCh <- handshakeErr
}
