// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

type paramHeader struct {
	typ paramType
	len int
	raw []byte
}

const (
	paramHeaderLength = 4
)

// Parameter header parse errors.
var (
	ErrParamHeaderTooShort                  = fmt.Errorf("%w: param header too short", ErrInvalidChunk)
	ErrParamHeaderSelfReportedLengthShorter = fmt.Errorf("%w: param self reported length is shorter than header length", ErrInvalidChunk)
	ErrParamHeaderSelfReportedLengthLonger  = fmt.Errorf("%w: param self reported length is longer than header length", ErrInvalidChunk)
)

func (p *paramHeader) marshal() ([]byte, error) {
	paramLengthPlusHeader := paramHeaderLength + len(p.raw)

	rawParam := make([]byte, paramLengthPlusHeader)
	binary.BigEndian.PutUint16(rawParam[0:], uint16(p.typ))
	binary.BigEndian.PutUint16(rawParam[2:], uint16(paramLengthPlusHeader)) //nolint:gosec // G115
	copy(rawParam[paramHeaderLength:], p.raw)

	return rawParam, nil
}

func (p *paramHeader) unmarshal(raw []byte) error {
	typ, err := parseParamType(raw)
	if err != nil {
		return err
	}
	if len(raw) < paramHeaderLength {
		return ErrParamHeaderTooShort
	}

	paramLengthPlusHeader := int(binary.BigEndian.Uint16(raw[2:]))
	if paramLengthPlusHeader < paramHeaderLength {
		return fmt.Errorf("%w: %d < %d", ErrParamHeaderSelfReportedLengthShorter, paramLengthPlusHeader, paramHeaderLength)
	}
	if len(raw) < paramLengthPlusHeader {
		return fmt.Errorf("%w: have %d, want %d", ErrParamHeaderSelfReportedLengthLonger, len(raw), paramLengthPlusHeader)
	}

	p.typ = typ
	p.raw = raw[paramHeaderLength:paramLengthPlusHeader]
	p.len = paramLengthPlusHeader

	return nil
}

func (p *paramHeader) length() int {
	return p.len
}

// String makes paramHeader printable.
func (p paramHeader) String() string {
	return fmt.Sprintf("%s (%d): %s", p.typ, p.len, hex.EncodeToString(p.raw))
}
