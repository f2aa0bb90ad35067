// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"fmt"
)

// chunkInit represents an SCTP Chunk of type INIT (RFC 9260 section 3.3.2).
// See chunkInitCommon for the fixed headers.
type chunkInit struct {
	chunkHeader
	chunkInitCommon
}

func (i *chunkInit) unmarshal(raw []byte) error {
	if err := i.chunkHeader.unmarshalAs(ctInit, raw); err != nil {
		return err
	}

	// flags are reserved and ignored on receipt
	return i.chunkInitCommon.unmarshal(i.raw)
}

func (i *chunkInit) marshal() ([]byte, error) {
	body, err := i.chunkInitCommon.marshal()
	if err != nil {
		return nil, err
	}

	i.chunkHeader.typ = ctInit
	i.chunkHeader.flags = 0
	i.chunkHeader.raw = body

	return i.chunkHeader.marshal()
}

func (i *chunkInit) check() (abort bool, err error) {
	return i.chunkInitCommon.check()
}

// String makes chunkInit printable.
func (i *chunkInit) String() string {
	return fmt.Sprintf("%s\n%s", i.chunkHeader, i.chunkInitCommon)
}
