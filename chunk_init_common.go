// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"fmt"
	"strings"
)

/*
chunkInitCommon represents an SCTP Chunk body of type INIT and INIT ACK (RFC 9260 section 3.3.2)

	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                         Initiate Tag                          |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|           Advertised Receiver Window Credit (a_rwnd)          |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|  Number of Outbound Streams   |  Number of Inbound Streams    |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                          Initial TSN                          |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|              Optional/Variable-Length Parameters              |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type chunkInitCommon struct {
	initiateTag                    uint32
	advertisedReceiverWindowCredit uint32
	numOutboundStreams             uint16
	numInboundStreams              uint16
	initialTSN                     uint32
	params                         []param

	// raw parameters of unknown type whose report bit was set
	unrecognizedParams [][]byte
}

const (
	initChunkMinLength = 16
	minInitRwnd        = 1500
)

// Init chunk errors.
var (
	ErrInitChunkMinLength         = fmt.Errorf("%w: INIT body smaller than minimum length", ErrInvalidChunk)
	ErrInitInitiateTagZero        = fmt.Errorf("%w: initiate tag must not be 0", ErrProtocolViolation)
	ErrInitInboundStreamsZero     = fmt.Errorf("%w: inbound stream count must be > 0", ErrProtocolViolation)
	ErrInitOutboundStreamsZero    = fmt.Errorf("%w: outbound stream count must be > 0", ErrProtocolViolation)
	ErrInitAdvertisedReceiver1500 = fmt.Errorf("%w: a_rwnd must be >= 1500", ErrProtocolViolation)
)

func (i *chunkInitCommon) unmarshal(raw []byte) error {
	if len(raw) < initChunkMinLength {
		return fmt.Errorf("%w: %d", ErrInitChunkMinLength, len(raw))
	}

	i.initiateTag = binary.BigEndian.Uint32(raw[0:])
	i.advertisedReceiverWindowCredit = binary.BigEndian.Uint32(raw[4:])
	i.numOutboundStreams = binary.BigEndian.Uint16(raw[8:])
	i.numInboundStreams = binary.BigEndian.Uint16(raw[10:])
	i.initialTSN = binary.BigEndian.Uint32(raw[12:])

	params, unrecognized, err := parseParams(raw[initChunkMinLength:])
	if err != nil {
		return err
	}
	i.params = params
	i.unrecognizedParams = unrecognized

	return nil
}

func (i *chunkInitCommon) marshal() ([]byte, error) {
	out := make([]byte, initChunkMinLength)
	binary.BigEndian.PutUint32(out[0:], i.initiateTag)
	binary.BigEndian.PutUint32(out[4:], i.advertisedReceiverWindowCredit)
	binary.BigEndian.PutUint16(out[8:], i.numOutboundStreams)
	binary.BigEndian.PutUint16(out[10:], i.numInboundStreams)
	binary.BigEndian.PutUint32(out[12:], i.initialTSN)

	return marshalParams(out, i.params)
}

// check validates the fixed fields shared by INIT and INIT-ACK.
func (i *chunkInitCommon) check() (abort bool, err error) {
	switch {
	case i.initiateTag == 0:
		return true, ErrInitInitiateTagZero
	case i.numInboundStreams == 0:
		return true, ErrInitInboundStreamsZero
	case i.numOutboundStreams == 0:
		return true, ErrInitOutboundStreamsZero
	case i.advertisedReceiverWindowCredit < minInitRwnd:
		return true, ErrInitAdvertisedReceiver1500
	}

	return false, nil
}

// supportedExtensions returns the chunk types the peer advertised.
func (i *chunkInitCommon) supportedExtensions() *paramSupportedExtensions {
	for _, p := range i.params {
		if ext, ok := p.(*paramSupportedExtensions); ok {
			return ext
		}
	}

	return nil
}

func (i *chunkInitCommon) forwardTSNSupported() bool {
	for _, p := range i.params {
		if _, ok := p.(*paramForwardTSNSupported); ok {
			return true
		}
	}
	if ext := i.supportedExtensions(); ext != nil {
		return ext.supports(ctForwardTSN)
	}

	return false
}

func (i *chunkInitCommon) reconfigSupported() bool {
	if ext := i.supportedExtensions(); ext != nil {
		return ext.supports(ctReconfig)
	}

	return false
}

func (i *chunkInitCommon) stateCookie() *paramStateCookie {
	for _, p := range i.params {
		if c, ok := p.(*paramStateCookie); ok {
			return c
		}
	}

	return nil
}

// String makes chunkInitCommon printable.
func (i chunkInitCommon) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "initiateTag: %d\n\tadvertisedReceiverWindowCredit: %d\n\t"+
		"numOutboundStreams: %d\n\tnumInboundStreams: %d\n\tinitialTSN: %d",
		i.initiateTag, i.advertisedReceiverWindowCredit,
		i.numOutboundStreams, i.numInboundStreams, i.initialTSN)
	for n, p := range i.params {
		fmt.Fprintf(&b, "\nParam %d: %v", n, p)
	}

	return b.String()
}
