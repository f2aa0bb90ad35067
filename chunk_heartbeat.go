// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"fmt"
)

/*
chunkHeartbeat represents an SCTP Chunk of type HEARTBEAT (RFC 9260 section 3.3.5)

	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|   Type = 4    | Chunk  Flags  |      Heartbeat Length         |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|            Heartbeat Information TLV (Variable-Length)        |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type chunkHeartbeat struct {
	chunkHeader
	info *paramHeartbeatInfo
}

// Heartbeat chunk errors.
var (
	ErrHeartbeatNoInfo = fmt.Errorf("%w: heartbeat must carry a Heartbeat Info parameter", ErrInvalidChunk)
)

// unmarshalHeartbeatInfo reads the single Heartbeat Info parameter shared by
// HEARTBEAT and HEARTBEAT ACK.
func unmarshalHeartbeatInfo(raw []byte) (*paramHeartbeatInfo, error) {
	params, _, err := parseParams(raw)
	if err != nil {
		return nil, err
	}
	for _, p := range params {
		if info, ok := p.(*paramHeartbeatInfo); ok {
			return info, nil
		}
	}

	return nil, ErrHeartbeatNoInfo
}

func (h *chunkHeartbeat) unmarshal(raw []byte) error {
	if err := h.chunkHeader.unmarshalAs(ctHeartbeat, raw); err != nil {
		return err
	}

	info, err := unmarshalHeartbeatInfo(h.raw)
	if err != nil {
		return err
	}
	h.info = info

	return nil
}

func (h *chunkHeartbeat) marshal() ([]byte, error) {
	if h.info == nil {
		return nil, ErrHeartbeatNoInfo
	}

	pp, err := h.info.marshal()
	if err != nil {
		return nil, err
	}

	h.chunkHeader.typ = ctHeartbeat
	h.chunkHeader.flags = 0
	h.chunkHeader.raw = pp

	return h.chunkHeader.marshal()
}

func (h *chunkHeartbeat) check() (abort bool, err error) {
	return false, nil
}
