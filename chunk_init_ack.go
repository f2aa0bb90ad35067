// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"fmt"
)

// chunkInitAck represents an SCTP Chunk of type INIT ACK (RFC 9260 section 3.3.2).
// Unlike INIT it must carry a State Cookie parameter.
type chunkInitAck struct {
	chunkHeader
	chunkInitCommon
}

// ErrInitAckNoCookie means the INIT ACK had no State Cookie parameter.
var ErrInitAckNoCookie = fmt.Errorf("%w: INIT ACK without state cookie", ErrProtocolViolation)

func (i *chunkInitAck) unmarshal(raw []byte) error {
	if err := i.chunkHeader.unmarshalAs(ctInitAck, raw); err != nil {
		return err
	}

	return i.chunkInitCommon.unmarshal(i.raw)
}

func (i *chunkInitAck) marshal() ([]byte, error) {
	body, err := i.chunkInitCommon.marshal()
	if err != nil {
		return nil, err
	}

	i.chunkHeader.typ = ctInitAck
	i.chunkHeader.flags = 0
	i.chunkHeader.raw = body

	return i.chunkHeader.marshal()
}

func (i *chunkInitAck) check() (abort bool, err error) {
	if abort, err = i.chunkInitCommon.check(); err != nil {
		return abort, err
	}
	if i.stateCookie() == nil {
		return true, ErrInitAckNoCookie
	}

	return false, nil
}

// String makes chunkInitAck printable.
func (i *chunkInitAck) String() string {
	return fmt.Sprintf("%s\n%s", i.chunkHeader, i.chunkInitCommon)
}
