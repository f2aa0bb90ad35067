// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"fmt"
)

// paramReconfigResponse answers a re-configuration request (RFC 6525 Sec 4.4).
//
//	+--------------------------------+--------------------------------+
//	| Type = 16                      | Length                         |
//	+--------------------------------+--------------------------------+
//	| Re-configuration Response Sequence Number                       |
//	| Result                                                          |
//	| Sender's Next TSN (optional)                                    |
//	| Receiver's Next TSN (optional)                                  |
//	+-----------------------------------------------------------------+
type paramReconfigResponse struct {
	paramHeader

	// reconfigResponseSequenceNumber echoes the request's sequence number.
	reconfigResponseSequenceNumber uint32
	result                         reconfigResult
	// nextTSNs carries the optional sender's and receiver's next TSN, in
	// that order. Only SSN/TSN reset responses use them.
	nextTSNs []uint32
}

type reconfigResult uint32

const (
	reconfigResultSuccessNOP reconfigResult = iota
	reconfigResultSuccessPerformed
	reconfigResultDenied
	reconfigResultErrorWrongSSN
	reconfigResultErrorRequestAlreadyInProgress
	reconfigResultErrorBadSequenceNumber
	reconfigResultInProgress
)

var reconfigResultNames = [...]string{
	reconfigResultSuccessNOP:                    "Success - Nothing to do",
	reconfigResultSuccessPerformed:              "Success - Performed",
	reconfigResultDenied:                        "Denied",
	reconfigResultErrorWrongSSN:                 "Error - Wrong SSN",
	reconfigResultErrorRequestAlreadyInProgress: "Error - Request already in progress",
	reconfigResultErrorBadSequenceNumber:        "Error - Bad Sequence Number",
	reconfigResultInProgress:                    "In progress",
}

const reconfigResponseFixedLen = 8

// ErrReconfigRespParamInvalidLength is returned for a response whose value
// is not 8, 12 or 16 bytes long.
var ErrReconfigRespParamInvalidLength = fmt.Errorf("%w: reconfig response parameter invalid length", ErrInvalidChunk)

func (t reconfigResult) String() string {
	if int(t) < len(reconfigResultNames) {
		return fmt.Sprintf("%d: %s", uint32(t), reconfigResultNames[t])
	}

	return fmt.Sprintf("Unknown reconfigResult: %d", uint32(t))
}

func (r *paramReconfigResponse) marshal() ([]byte, error) {
	if len(r.nextTSNs) > 2 {
		return nil, fmt.Errorf("%w: %d optional TSNs", ErrReconfigRespParamInvalidLength, len(r.nextTSNs))
	}

	buf := make([]byte, 0, reconfigResponseFixedLen+4*len(r.nextTSNs))
	buf = binary.BigEndian.AppendUint32(buf, r.reconfigResponseSequenceNumber)
	buf = binary.BigEndian.AppendUint32(buf, uint32(r.result))
	for _, tsn := range r.nextTSNs {
		buf = binary.BigEndian.AppendUint32(buf, tsn)
	}

	r.typ = reconfigResp
	r.raw = buf

	return r.paramHeader.marshal()
}

func (r *paramReconfigResponse) unmarshal(raw []byte) (param, error) {
	if err := r.paramHeader.unmarshal(raw); err != nil {
		return nil, err
	}

	value := r.raw
	if len(value) < reconfigResponseFixedLen || len(value) > reconfigResponseFixedLen+8 || len(value)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrReconfigRespParamInvalidLength, len(value))
	}

	r.reconfigResponseSequenceNumber = binary.BigEndian.Uint32(value[0:])
	r.result = reconfigResult(binary.BigEndian.Uint32(value[4:]))

	r.nextTSNs = nil
	for rest := value[reconfigResponseFixedLen:]; len(rest) > 0; rest = rest[4:] {
		r.nextTSNs = append(r.nextTSNs, binary.BigEndian.Uint32(rest))
	}

	return r, nil
}
