// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"fmt"
)

// outgoingResetFixedLen covers the three sequence and TSN words that come
// before the optional stream list.
const outgoingResetFixedLen = 12

// paramOutgoingResetRequest asks the peer to reset some of our outgoing
// streams (RFC 6525 Sec 4.1).
//
//	+--------------------------------+--------------------------------+
//	| Type = 13                      | Length = 16 + 2 * N            |
//	+--------------------------------+--------------------------------+
//	| Re-configuration Request Sequence Number                        |
//	| Re-configuration Response Sequence Number                       |
//	| Sender's Last Assigned TSN                                      |
//	+--------------------------------+--------------------------------+
//	| Stream Number 1 (optional)     | ...  Stream Number N           |
//	+--------------------------------+--------------------------------+
type paramOutgoingResetRequest struct {
	paramHeader

	reconfigRequestSequenceNumber  uint32
	reconfigResponseSequenceNumber uint32
	// senderLastTSN is the sender's next TSN minus one. The receiver
	// resets the streams only after everything up to it arrived.
	senderLastTSN uint32
	// An empty list resets every stream.
	streamIdentifiers []uint16
}

// Outgoing reset request parameter errors.
var (
	ErrSSNResetRequestParamTooShort      = fmt.Errorf("%w: outgoing SSN reset request parameter too short", ErrInvalidChunk)
	ErrSSNResetRequestParamInvalidLength = fmt.Errorf("%w: outgoing SSN reset request parameter invalid length", ErrInvalidChunk)
)

func (r *paramOutgoingResetRequest) marshal() ([]byte, error) {
	buf := make([]byte, 0, outgoingResetFixedLen+2*len(r.streamIdentifiers))
	buf = binary.BigEndian.AppendUint32(buf, r.reconfigRequestSequenceNumber)
	buf = binary.BigEndian.AppendUint32(buf, r.reconfigResponseSequenceNumber)
	buf = binary.BigEndian.AppendUint32(buf, r.senderLastTSN)
	for _, id := range r.streamIdentifiers {
		buf = binary.BigEndian.AppendUint16(buf, id)
	}

	r.typ = outSSNResetReq
	r.raw = buf

	return r.paramHeader.marshal()
}

func (r *paramOutgoingResetRequest) unmarshal(raw []byte) (param, error) {
	if err := r.paramHeader.unmarshal(raw); err != nil {
		return nil, err
	}

	value := r.raw
	switch {
	case len(value) < outgoingResetFixedLen:
		return nil, fmt.Errorf("%w: %d bytes", ErrSSNResetRequestParamTooShort, len(value))
	case (len(value)-outgoingResetFixedLen)%2 != 0:
		return nil, ErrSSNResetRequestParamInvalidLength
	}

	r.reconfigRequestSequenceNumber = binary.BigEndian.Uint32(value[0:])
	r.reconfigResponseSequenceNumber = binary.BigEndian.Uint32(value[4:])
	r.senderLastTSN = binary.BigEndian.Uint32(value[8:])

	r.streamIdentifiers = []uint16{}
	for ids := value[outgoingResetFixedLen:]; len(ids) >= 2; ids = ids[2:] {
		r.streamIdentifiers = append(r.streamIdentifiers, binary.BigEndian.Uint16(ids))
	}

	return r, nil
}
