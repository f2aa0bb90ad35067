// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"fmt"
	"strings"
)

/*
chunkAbort represents an SCTP Chunk of type ABORT (RFC 9260 section 3.3.7).

	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|   Type = 6    |Reserved     |T|           Length              |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                   zero or more Error Causes                   |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type chunkAbort struct {
	chunkHeader
	errorCauses []errorCause
}

func (a *chunkAbort) unmarshal(raw []byte) error {
	if err := a.chunkHeader.unmarshalAs(ctAbort, raw); err != nil {
		return err
	}

	causes, err := parseErrorCauses(a.raw)
	if err != nil {
		return err
	}
	a.errorCauses = causes

	return nil
}

func (a *chunkAbort) marshal() ([]byte, error) {
	out, err := marshalErrorCauses(nil, a.errorCauses)
	if err != nil {
		return nil, err
	}

	a.chunkHeader.typ = ctAbort
	a.chunkHeader.flags = 0
	a.chunkHeader.raw = out

	return a.chunkHeader.marshal()
}

func (a *chunkAbort) check() (abort bool, err error) {
	return false, nil
}

// causes renders the error causes for PeerAbortedError.
func (a *chunkAbort) causes() []string {
	out := make([]string, 0, len(a.errorCauses))
	for _, c := range a.errorCauses {
		out = append(out, c.String())
	}

	return out
}

// String makes chunkAbort printable.
func (a *chunkAbort) String() string {
	var b strings.Builder
	b.WriteString(a.chunkHeader.String())
	for _, cause := range a.errorCauses {
		fmt.Fprintf(&b, "\n - %s", cause)
	}

	return b.String()
}
