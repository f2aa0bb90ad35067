// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Error kinds returned by associations and streams.
var (
	// ErrStreamClosed is returned when writing to a stream whose write half is
	// shut down, or after the stream was reset.
	ErrStreamClosed = errors.New("stream closed")
	// ErrOutboundPacketTooLarge is returned when a message exceeds the
	// association's maximum message size.
	ErrOutboundPacketTooLarge = errors.New("outbound packet larger than maximum message size")
	// ErrHandshakeFailed is returned when the INIT or COOKIE-ECHO timers
	// exhausted their retransmissions.
	ErrHandshakeFailed = errors.New("handshake failed")
	// ErrAssociationClosed is returned once the association was closed locally.
	ErrAssociationClosed = errors.New("association closed")
	// ErrChecksumMismatch is reported for packets whose CRC32c is wrong.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrInvalidChunk is the root of every chunk or parameter decode error.
	ErrInvalidChunk = errors.New("invalid chunk")
	// ErrProtocolViolation is the root of errors that make the association abort.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrTryAgain means the queue is empty but still open.
	ErrTryAgain = errors.New("try again")
	// ErrCanceled is returned when a blocking call observed cancellation or
	// an expired deadline. It wraps the underlying cause.
	ErrCanceled = errors.New("operation canceled")
)

// ShortBufferError is returned by Stream.Read when the caller's buffer cannot
// hold the next message. The message stays queued.
type ShortBufferError struct {
	Size int
}

func (e *ShortBufferError) Error() string {
	return fmt.Sprintf("%s: message of %d bytes", io.ErrShortBuffer, e.Size)
}

// Is makes ShortBufferError match io.ErrShortBuffer.
func (e *ShortBufferError) Is(target error) bool {
	return target == io.ErrShortBuffer //nolint:errorlint
}

// PeerAbortedError is the terminal error of an association that received
// an ABORT chunk.
type PeerAbortedError struct {
	Causes []string
}

func (e *PeerAbortedError) Error() string {
	if len(e.Causes) == 0 {
		return "association aborted by peer"
	}

	return "association aborted by peer: " + strings.Join(e.Causes, ", ")
}

// Option validation errors.
var (
	errNilNetConn                 = errors.New("netConn must not be nil")
	errNilLoggerFactory           = errors.New("loggerFactory must not be nil")
	errZeroMTUOption              = errors.New("MTU option cannot be set to zero")
	errZeroMaxReceiveBufferOption = errors.New("MaxReceiveBuffer option cannot be set to zero")
	errZeroMaxMessageSize         = errors.New("MaxMessageSize option cannot be set to zero")
	errInvalidRTOMax              = errors.New("RTO max was set to <= 0")
	errMTUTooSmall                = errors.New("MTU is too small to carry a DATA chunk")
	errNegativeHeartbeatInterval  = errors.New("heartbeat interval must not be negative")
	errNilCookieJar               = errors.New("cookie jar must not be nil")
)

// Internal association errors.
var (
	errAssociationNotEstablished = errors.New("association is not established")
	errStreamAlreadyExist        = errors.New("stream already exists")
	errAcceptChannelClosed       = errors.New("accept channel closed")
	errInflightQueueTSNPop       = errors.New("unable to pop from inflight queue")
	errSackCumulativeTSNTooNew   = fmt.Errorf("%w: cumulative TSN ack beyond highest TSN sent", ErrProtocolViolation)
	errInitOnlyChunk             = fmt.Errorf("%w: INIT must be the only chunk in its packet", ErrProtocolViolation)
	errInitWithNonZeroTag        = fmt.Errorf("%w: INIT packet must carry verification tag 0", ErrProtocolViolation)
	errZeroPort                  = fmt.Errorf("%w: SCTP port must not be zero", ErrProtocolViolation)
	errPortMismatch              = errors.New("SCTP ports do not match the association")
	errHeartbeatFailure          = errors.New("peer stopped answering heartbeats")
	errShutdownFailure           = errors.New("shutdown retransmissions exhausted")
)
