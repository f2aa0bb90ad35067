// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"fmt"
)

// paramStateCookie carries the opaque cookie minted by the cookie.Jar.
type paramStateCookie struct {
	paramHeader
	cookie []byte
}

func (s *paramStateCookie) marshal() ([]byte, error) {
	s.typ = stateCookie
	s.raw = s.cookie

	return s.paramHeader.marshal()
}

func (s *paramStateCookie) unmarshal(raw []byte) (param, error) {
	if err := s.paramHeader.unmarshal(raw); err != nil {
		return nil, err
	}
	s.cookie = s.raw

	return s, nil
}

// String makes paramStateCookie printable.
func (s *paramStateCookie) String() string {
	return fmt.Sprintf("%s: %d bytes", s.typ, len(s.cookie))
}
