// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"fmt"
	"strings"
)

// chunkError is an Operation Error (ERROR) chunk (RFC 9260 section 3.3.10).
// It notifies the peer of conditions that do not tear the association down.
type chunkError struct {
	chunkHeader
	errorCauses []errorCause
}

// ErrErrorNoCauses is returned for ERROR chunks without any cause.
var ErrErrorNoCauses = fmt.Errorf("%w: ERROR chunk contains no error causes", ErrInvalidChunk)

func (a *chunkError) unmarshal(raw []byte) error {
	if err := a.chunkHeader.unmarshalAs(ctError, raw); err != nil {
		return err
	}

	causes, err := parseErrorCauses(a.raw)
	if err != nil {
		return err
	}
	if len(causes) == 0 {
		return ErrErrorNoCauses
	}
	a.errorCauses = causes

	return nil
}

func (a *chunkError) marshal() ([]byte, error) {
	if len(a.errorCauses) == 0 {
		return nil, ErrErrorNoCauses
	}

	out, err := marshalErrorCauses(nil, a.errorCauses)
	if err != nil {
		return nil, err
	}

	a.chunkHeader.typ = ctError
	a.chunkHeader.flags = 0
	a.chunkHeader.raw = out

	return a.chunkHeader.marshal()
}

func (a *chunkError) check() (abort bool, err error) {
	return false, nil
}

// String makes chunkError printable.
func (a *chunkError) String() string {
	var b strings.Builder
	b.WriteString(a.chunkHeader.String())
	for _, cause := range a.errorCauses {
		fmt.Fprintf(&b, "\n - %s", cause)
	}

	return b.String()
}
