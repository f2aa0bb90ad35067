// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"fmt"
)

// Indicates endpoint received a DATA chunk sent to a nonexistent stream.
type errorCauseInvalidStreamIdentifier struct {
	errorCauseHeader
	streamIdentifier uint16
}

func (e *errorCauseInvalidStreamIdentifier) marshal() ([]byte, error) {
	e.code = invalidStreamIdentifier
	e.raw = make([]byte, 4)
	binary.BigEndian.PutUint16(e.raw, e.streamIdentifier)

	return e.errorCauseHeader.marshal()
}

func (e *errorCauseInvalidStreamIdentifier) unmarshal(raw []byte) error {
	if err := e.errorCauseHeader.unmarshal(raw); err != nil {
		return err
	}
	if len(e.raw) < 2 {
		return ErrCauseLengthInvalid
	}
	e.streamIdentifier = binary.BigEndian.Uint16(e.raw)

	return nil
}

func (e *errorCauseInvalidStreamIdentifier) String() string {
	return fmt.Sprintf("%s: %d", e.code, e.streamIdentifier)
}

// errorCauseMissingMandatoryParameter lists the parameter types that were
// expected in an INIT or INIT-ACK but not found.
type errorCauseMissingMandatoryParameter struct {
	errorCauseHeader
	missing []paramType
}

func (e *errorCauseMissingMandatoryParameter) marshal() ([]byte, error) {
	e.code = missingMandatoryParameter
	e.raw = make([]byte, 4+2*len(e.missing))
	binary.BigEndian.PutUint32(e.raw, uint32(len(e.missing))) //nolint:gosec // G115
	for i, t := range e.missing {
		binary.BigEndian.PutUint16(e.raw[4+2*i:], uint16(t))
	}

	return e.errorCauseHeader.marshal()
}

func (e *errorCauseMissingMandatoryParameter) unmarshal(raw []byte) error {
	if err := e.errorCauseHeader.unmarshal(raw); err != nil {
		return err
	}
	if len(e.raw) < 4 {
		return ErrCauseLengthInvalid
	}
	n := int(binary.BigEndian.Uint32(e.raw))
	if len(e.raw) < 4+2*n {
		return ErrCauseLengthInvalid
	}
	e.missing = make([]paramType, n)
	for i := range e.missing {
		e.missing[i] = paramType(binary.BigEndian.Uint16(e.raw[4+2*i:]))
	}

	return nil
}

// errorCauseStaleCookie reports how late a cookie arrived, in microseconds.
type errorCauseStaleCookie struct {
	errorCauseHeader
	staleness uint32
}

func (e *errorCauseStaleCookie) marshal() ([]byte, error) {
	e.code = staleCookieError
	e.raw = make([]byte, 4)
	binary.BigEndian.PutUint32(e.raw, e.staleness)

	return e.errorCauseHeader.marshal()
}

func (e *errorCauseStaleCookie) unmarshal(raw []byte) error {
	if err := e.errorCauseHeader.unmarshal(raw); err != nil {
		return err
	}
	if len(e.raw) < 4 {
		return ErrCauseLengthInvalid
	}
	e.staleness = binary.BigEndian.Uint32(e.raw)

	return nil
}

func (e *errorCauseStaleCookie) String() string {
	return fmt.Sprintf("%s: %dus", e.code, e.staleness)
}

type errorCauseOutOfResource struct {
	errorCauseHeader
}

func (e *errorCauseOutOfResource) marshal() ([]byte, error) {
	e.code = outOfResource
	e.raw = nil

	return e.errorCauseHeader.marshal()
}

// errorCauseUnrecognizedChunkType echoes the chunk we could not process.
type errorCauseUnrecognizedChunkType struct {
	errorCauseHeader
	unrecognizedChunk []byte
}

func (e *errorCauseUnrecognizedChunkType) marshal() ([]byte, error) {
	e.code = unrecognizedChunkType
	e.raw = e.unrecognizedChunk

	return e.errorCauseHeader.marshal()
}

func (e *errorCauseUnrecognizedChunkType) unmarshal(raw []byte) error {
	if err := e.errorCauseHeader.unmarshal(raw); err != nil {
		return err
	}
	e.unrecognizedChunk = e.raw

	return nil
}

func (e *errorCauseUnrecognizedChunkType) String() string {
	if len(e.unrecognizedChunk) == 0 {
		return e.code.String()
	}

	return fmt.Sprintf("%s: %s", e.code, chunkType(e.unrecognizedChunk[0]))
}

type errorCauseInvalidMandatoryParameter struct {
	errorCauseHeader
}

func (e *errorCauseInvalidMandatoryParameter) marshal() ([]byte, error) {
	e.code = invalidMandatoryParameter
	e.raw = nil

	return e.errorCauseHeader.marshal()
}

// errorCauseUnrecognizedParameters carries the raw parameters, each padded,
// as they appeared in the INIT-ACK.
type errorCauseUnrecognizedParameters struct {
	errorCauseHeader
	unrecognizedParameters []byte
}

func (e *errorCauseUnrecognizedParameters) marshal() ([]byte, error) {
	e.code = unrecognizedParameters
	e.raw = e.unrecognizedParameters

	return e.errorCauseHeader.marshal()
}

func (e *errorCauseUnrecognizedParameters) unmarshal(raw []byte) error {
	if err := e.errorCauseHeader.unmarshal(raw); err != nil {
		return err
	}
	e.unrecognizedParameters = e.raw

	return nil
}

// errorCauseNoUserData names the TSN of a DATA chunk without payload.
type errorCauseNoUserData struct {
	errorCauseHeader
	tsn uint32
}

func (e *errorCauseNoUserData) marshal() ([]byte, error) {
	e.code = noUserData
	e.raw = make([]byte, 4)
	binary.BigEndian.PutUint32(e.raw, e.tsn)

	return e.errorCauseHeader.marshal()
}

func (e *errorCauseNoUserData) unmarshal(raw []byte) error {
	if err := e.errorCauseHeader.unmarshal(raw); err != nil {
		return err
	}
	if len(e.raw) < 4 {
		return ErrCauseLengthInvalid
	}
	e.tsn = binary.BigEndian.Uint32(e.raw)

	return nil
}

func (e *errorCauseNoUserData) String() string {
	return fmt.Sprintf("%s: tsn=%d", e.code, e.tsn)
}

// errorCauseUserInitiatedAbort carries the upper layer's abort reason.
type errorCauseUserInitiatedAbort struct {
	errorCauseHeader
	upperLayerAbortReason []byte
}

func (e *errorCauseUserInitiatedAbort) marshal() ([]byte, error) {
	e.code = userInitiatedAbort
	e.raw = e.upperLayerAbortReason

	return e.errorCauseHeader.marshal()
}

func (e *errorCauseUserInitiatedAbort) unmarshal(raw []byte) error {
	if err := e.errorCauseHeader.unmarshal(raw); err != nil {
		return err
	}
	e.upperLayerAbortReason = e.raw

	return nil
}

func (e *errorCauseUserInitiatedAbort) String() string {
	return fmt.Sprintf("%s: %s", e.code, e.upperLayerAbortReason)
}

type errorCauseProtocolViolation struct {
	errorCauseHeader
	additionalInformation []byte
}

func (e *errorCauseProtocolViolation) marshal() ([]byte, error) {
	e.code = protocolViolation
	e.raw = e.additionalInformation

	return e.errorCauseHeader.marshal()
}

func (e *errorCauseProtocolViolation) unmarshal(raw []byte) error {
	if err := e.errorCauseHeader.unmarshal(raw); err != nil {
		return err
	}
	e.additionalInformation = e.raw

	return nil
}

func (e *errorCauseProtocolViolation) String() string {
	return fmt.Sprintf("%s: %s", e.code, e.additionalInformation)
}
