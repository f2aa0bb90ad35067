// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

// paramUnrecognized wraps a parameter the INIT sender used that we did not
// understand and whose report bit was set. It is returned in the INIT-ACK
// (RFC 9260 section 3.3.3.1).
type paramUnrecognized struct {
	paramHeader
	unrecognized []byte
}

func (u *paramUnrecognized) marshal() ([]byte, error) {
	u.typ = unrecognizedParam
	u.raw = u.unrecognized

	return u.paramHeader.marshal()
}

func (u *paramUnrecognized) unmarshal(raw []byte) (param, error) {
	if err := u.paramHeader.unmarshal(raw); err != nil {
		return nil, err
	}
	u.unrecognized = u.raw

	return u, nil
}
