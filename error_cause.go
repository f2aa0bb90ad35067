// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"fmt"
)

// errorCauseCode is a cause code that appears in either an ERROR or ABORT chunk (RFC 9260 section 3.3.10).
type errorCauseCode uint16

type errorCause interface {
	unmarshal([]byte) error
	marshal() ([]byte, error)
	length() uint16
	String() string

	errorCauseCode() errorCauseCode
}

// Error cause parse errors.
var (
	ErrCauseTooShort      = fmt.Errorf("%w: error cause too short", ErrInvalidChunk)
	ErrCauseLengthInvalid = fmt.Errorf("%w: error cause length invalid", ErrInvalidChunk)
)

const errorCauseHeaderLength = 4

// errorCauseHeader is the TLV shell every cause shares. Causes whose body we
// do not interpret are kept as a bare header.
type errorCauseHeader struct {
	code errorCauseCode
	len  uint16
	raw  []byte
}

func (e *errorCauseHeader) marshal() ([]byte, error) {
	e.len = uint16(len(e.raw)) + errorCauseHeaderLength //nolint:gosec // G115
	out := make([]byte, e.len)
	binary.BigEndian.PutUint16(out[0:], uint16(e.code))
	binary.BigEndian.PutUint16(out[2:], e.len)
	copy(out[errorCauseHeaderLength:], e.raw)

	return out, nil
}

func (e *errorCauseHeader) unmarshal(raw []byte) error {
	if len(raw) < errorCauseHeaderLength {
		return ErrCauseTooShort
	}
	e.code = errorCauseCode(binary.BigEndian.Uint16(raw[0:]))
	e.len = binary.BigEndian.Uint16(raw[2:])
	if int(e.len) < errorCauseHeaderLength || int(e.len) > len(raw) {
		return ErrCauseLengthInvalid
	}
	e.raw = raw[errorCauseHeaderLength:e.len]

	return nil
}

func (e *errorCauseHeader) length() uint16 {
	return e.len
}

func (e *errorCauseHeader) errorCauseCode() errorCauseCode {
	return e.code
}

// String makes errorCauseHeader printable.
func (e errorCauseHeader) String() string {
	return e.code.String()
}

// buildErrorCause decodes one cause. Unknown codes are returned as a bare
// errorCauseHeader so an ABORT carrying them is still understood.
func buildErrorCause(raw []byte) (errorCause, error) { //nolint:cyclop
	var hdr errorCauseHeader
	if err := hdr.unmarshal(raw); err != nil {
		return nil, err
	}

	var errCause errorCause
	switch hdr.code {
	case invalidStreamIdentifier:
		errCause = &errorCauseInvalidStreamIdentifier{}
	case missingMandatoryParameter:
		errCause = &errorCauseMissingMandatoryParameter{}
	case staleCookieError:
		errCause = &errorCauseStaleCookie{}
	case outOfResource:
		errCause = &errorCauseOutOfResource{}
	case unrecognizedChunkType:
		errCause = &errorCauseUnrecognizedChunkType{}
	case invalidMandatoryParameter:
		errCause = &errorCauseInvalidMandatoryParameter{}
	case unrecognizedParameters:
		errCause = &errorCauseUnrecognizedParameters{}
	case noUserData:
		errCause = &errorCauseNoUserData{}
	case userInitiatedAbort:
		errCause = &errorCauseUserInitiatedAbort{}
	case protocolViolation:
		errCause = &errorCauseProtocolViolation{}
	default:
		return &hdr, nil
	}

	if err := errCause.unmarshal(raw[:hdr.len]); err != nil {
		return nil, err
	}

	return errCause, nil
}

// parseErrorCauses decodes the cause list of an ERROR or ABORT chunk.
func parseErrorCauses(raw []byte) ([]errorCause, error) {
	var causes []errorCause
	offset := 0
	for len(raw)-offset >= errorCauseHeaderLength {
		cause, err := buildErrorCause(raw[offset:])
		if err != nil {
			return nil, err
		}
		causes = append(causes, cause)
		offset += int(cause.length()) + getPadding(int(cause.length()))
	}

	return causes, nil
}

// marshalErrorCauses pads every cause except the last.
func marshalErrorCauses(out []byte, causes []errorCause) ([]byte, error) {
	for i, cause := range causes {
		raw, err := cause.marshal()
		if err != nil {
			return nil, err
		}
		out = append(out, raw...)
		if i != len(causes)-1 {
			out = padByte(out, getPadding(len(raw)))
		}
	}

	return out, nil
}

// RFC 9260 section 3.3.10 "Error Causes".
const (
	invalidStreamIdentifier                errorCauseCode = 1
	missingMandatoryParameter              errorCauseCode = 2
	staleCookieError                       errorCauseCode = 3
	outOfResource                          errorCauseCode = 4
	unresolvableAddress                    errorCauseCode = 5
	unrecognizedChunkType                  errorCauseCode = 6
	invalidMandatoryParameter              errorCauseCode = 7
	unrecognizedParameters                 errorCauseCode = 8
	noUserData                             errorCauseCode = 9
	cookieReceivedWhileShuttingDown        errorCauseCode = 10
	restartOfAnAssociationWithNewAddresses errorCauseCode = 11
	userInitiatedAbort                     errorCauseCode = 12
	protocolViolation                      errorCauseCode = 13
)

func (e errorCauseCode) String() string { //nolint:cyclop
	switch e {
	case invalidStreamIdentifier:
		return "Invalid Stream Identifier"
	case missingMandatoryParameter:
		return "Missing Mandatory Parameter"
	case staleCookieError:
		return "Stale Cookie Error"
	case outOfResource:
		return "Out of Resource"
	case unresolvableAddress:
		return "Unresolvable Address"
	case unrecognizedChunkType:
		return "Unrecognized Chunk Type"
	case invalidMandatoryParameter:
		return "Invalid Mandatory Parameter"
	case unrecognizedParameters:
		return "Unrecognized Parameters"
	case noUserData:
		return "No User Data"
	case cookieReceivedWhileShuttingDown:
		return "Cookie Received While Shutting Down"
	case restartOfAnAssociationWithNewAddresses:
		return "Restart of an Association with New Addresses"
	case userInitiatedAbort:
		return "User Initiated Abort"
	case protocolViolation:
		return "Protocol Violation"
	default:
		return fmt.Sprintf("Unknown CauseCode: %d", e)
	}
}
