// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

// chunkHeartbeatAck represents an SCTP Chunk of type HEARTBEAT ACK
// (RFC 9260 section 3.3.6). It echoes the Heartbeat Info of the HEARTBEAT
// it answers unchanged.
type chunkHeartbeatAck struct {
	chunkHeader
	info *paramHeartbeatInfo
}

func (h *chunkHeartbeatAck) unmarshal(raw []byte) error {
	if err := h.chunkHeader.unmarshalAs(ctHeartbeatAck, raw); err != nil {
		return err
	}

	info, err := unmarshalHeartbeatInfo(h.raw)
	if err != nil {
		return err
	}
	h.info = info

	return nil
}

func (h *chunkHeartbeatAck) marshal() ([]byte, error) {
	if h.info == nil {
		return nil, ErrHeartbeatNoInfo
	}

	pp, err := h.info.marshal()
	if err != nil {
		return nil, err
	}

	h.chunkHeader.typ = ctHeartbeatAck
	h.chunkHeader.flags = 0
	h.chunkHeader.raw = pp

	return h.chunkHeader.marshal()
}

func (h *chunkHeartbeatAck) check() (abort bool, err error) {
	return false, nil
}
