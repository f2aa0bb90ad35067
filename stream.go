// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/deadline"
)

// ReliabilityType selects how persistently a message is retransmitted.
type ReliabilityType byte

const (
	// ReliabilityTypeReliable is used for reliable transmission
	ReliabilityTypeReliable ReliabilityType = 0
	// ReliabilityTypeRexmit is used for partial reliability by retransmission count
	ReliabilityTypeRexmit ReliabilityType = 1
	// ReliabilityTypeTimed is used for partial reliability by retransmission duration
	ReliabilityTypeTimed ReliabilityType = 2
)

func (r ReliabilityType) String() string {
	switch r {
	case ReliabilityTypeReliable:
		return "reliable"
	case ReliabilityTypeRexmit:
		return "rexmit"
	case ReliabilityTypeTimed:
		return "timed"
	default:
		return fmt.Sprintf("ReliabilityType(%d)", byte(r))
	}
}

// StreamState is an enum for SCTP Stream state field
// This field identifies the state of stream.
type StreamState int

// StreamState enums
const (
	StreamStateOpen    StreamState = iota // Stream object starts with StreamStateOpen
	StreamStateClosing                    // Outgoing stream is being reset
	StreamStateClosed                     // Stream has been closed
)

func (ss StreamState) String() string {
	switch ss {
	case StreamStateOpen:
		return "open"
	case StreamStateClosing:
		return "closing"
	case StreamStateClosed:
		return "closed"
	}

	return "unknown"
}

// Shutdown selects which half of a stream Stream.Shutdown closes.
type Shutdown int

// Shutdown enums
const (
	ShutdownRead Shutdown = iota
	ShutdownWrite
	ShutdownBoth
)

var (
	errEmptyPayload    = errors.New("empty user data is only allowed for WebRTC string and binary payloads")
	errInvalidShutdown = errors.New("invalid shutdown direction")
)

// Stream represents an SCTP stream
type Stream struct {
	association *Association
	lock        sync.RWMutex

	streamIdentifier   uint16
	defaultPayloadType PayloadProtocolIdentifier
	reassemblyQueue    *reassemblyQueue
	sequenceNumber     uint16

	// readCh is closed and replaced to wake every blocked reader.
	readCh        chan struct{}
	readErr       error
	readShutdown  bool
	writeErr      error
	readDeadline  *deadline.Deadline
	writeDeadline *deadline.Deadline

	unordered        bool
	reliabilityType  ReliabilityType
	reliabilityValue uint32

	bufferedAmount      uint64
	bufferedAmountLow   uint64
	onBufferedAmountLow func()

	state StreamState
	log   logging.LeveledLogger
	name  string
}

func newStream(a *Association, streamIdentifier uint16) *Stream {
	return &Stream{
		association:      a,
		streamIdentifier: streamIdentifier,
		reassemblyQueue:  newReassemblyQueue(streamIdentifier),
		readCh:           make(chan struct{}),
		readDeadline:     deadline.New(),
		writeDeadline:    deadline.New(),
		state:            StreamStateOpen,
		log:              a.log,
		name:             fmt.Sprintf("%d:%s", streamIdentifier, a.name),
	}
}

// Association returns the association the stream belongs to.
func (s *Stream) Association() *Association {
	return s.association
}

// StreamIdentifier returns the Stream identifier associated to the stream.
func (s *Stream) StreamIdentifier() uint16 {
	return s.streamIdentifier
}

// SetDefaultPayloadType sets the default payload type used by Write.
func (s *Stream) SetDefaultPayloadType(defaultPayloadType PayloadProtocolIdentifier) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.defaultPayloadType = defaultPayloadType
}

// SetReliabilityParams sets reliability parameters for this stream. They
// apply to messages written afterwards; queued messages keep the parameters
// they were written with.
func (s *Stream) SetReliabilityParams(unordered bool, relType ReliabilityType, relVal uint32) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.log.Debugf("[%s] reliability params: ordered=%v type=%s value=%d",
		s.name, !unordered, relType, relVal)
	s.unordered = unordered
	s.reliabilityType = relType
	s.reliabilityValue = relVal
}

// Read reads a packet of len(p) bytes, dropping the Payload Protocol Identifier.
// Returns EOF when the stream is reset or an error if the stream is closed
// otherwise.
func (s *Stream) Read(p []byte) (int, error) {
	n, _, err := s.ReadSCTP(p)

	return n, err
}

// ReadSCTP reads a packet of len(p) bytes and returns the associated Payload
// Protocol Identifier.
func (s *Stream) ReadSCTP(p []byte) (int, PayloadProtocolIdentifier, error) {
	return s.ReadSCTPContext(context.Background(), p)
}

// ReadSCTPContext is ReadSCTP with cancellation. A canceled read returns
// ErrCanceled wrapping the cause and consumes nothing. When p cannot hold
// the next message a *ShortBufferError is returned and the message stays
// queued.
func (s *Stream) ReadSCTPContext(ctx context.Context, p []byte) (int, PayloadProtocolIdentifier, error) {
	for {
		s.lock.Lock()
		if s.readShutdown {
			s.lock.Unlock()

			return 0, PayloadProtocolIdentifier(0), io.EOF
		}

		n, ppi, err := s.reassemblyQueue.read(p)
		if err == nil {
			s.lock.Unlock()
			if ppi == PayloadTypeWebRTCStringEmpty || ppi == PayloadTypeWebRTCBinaryEmpty {
				n = 0
			}

			return n, ppi, nil
		}

		var sbErr *ShortBufferError
		if errors.As(err, &sbErr) {
			s.lock.Unlock()

			return 0, PayloadProtocolIdentifier(0), err
		}

		if s.readErr != nil {
			err = s.readErr
			s.lock.Unlock()

			return 0, PayloadProtocolIdentifier(0), err
		}

		readCh := s.readCh
		s.lock.Unlock()

		select {
		case <-readCh:
		case <-ctx.Done():
			return 0, PayloadProtocolIdentifier(0), fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
		case <-s.readDeadline.Done():
			return 0, PayloadProtocolIdentifier(0), fmt.Errorf("%w: %w", ErrCanceled, os.ErrDeadlineExceeded)
		}
	}
}

// SetReadDeadline sets the read deadline in an identical way to net.Conn.
func (s *Stream) SetReadDeadline(t time.Time) error {
	s.readDeadline.Set(t)

	return nil
}

// SetWriteDeadline bounds how long Write blocks on a full outbound buffer.
func (s *Stream) SetWriteDeadline(t time.Time) error {
	s.writeDeadline.Set(t)

	return nil
}

// SetDeadline sets both deadlines.
func (s *Stream) SetDeadline(t time.Time) error {
	s.readDeadline.Set(t)
	s.writeDeadline.Set(t)

	return nil
}

// notifyReaders wakes every blocked reader. The caller holds s.lock.
func (s *Stream) notifyReaders() {
	close(s.readCh)
	s.readCh = make(chan struct{})
}

// handleData is called by the association, which holds its own lock.
func (s *Stream) handleData(pd *chunkPayloadData) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.readShutdown {
		return
	}

	if s.reassemblyQueue.push(pd) && s.reassemblyQueue.isReadable() {
		s.notifyReaders()
	}
}

func (s *Stream) handleForwardTSNForOrdered(ssn uint16) {
	s.lock.Lock()
	defer s.lock.Unlock()

	// Remove all chunks older than or equal to the new TSN from
	// the reassemblyQueue.
	s.reassemblyQueue.forwardTSNForOrdered(ssn)
	if s.reassemblyQueue.isReadable() {
		s.notifyReaders()
	}
}

// handleForwardTSNForUnordered runs for every stream since FORWARD-TSN does
// not list the streams of abandoned unordered messages.
func (s *Stream) handleForwardTSNForUnordered(newCumulativeTSN uint32) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.reassemblyQueue.forwardTSNForUnordered(newCumulativeTSN)
	if s.reassemblyQueue.isReadable() {
		s.notifyReaders()
	}
}

// Write writes len(p) bytes from p with the default Payload Protocol Identifier
func (s *Stream) Write(p []byte) (n int, err error) {
	s.lock.RLock()
	ppi := s.defaultPayloadType
	s.lock.RUnlock()

	return s.WriteSCTP(p, ppi)
}

// WriteSCTP writes len(p) bytes from p to the DTLS connection
func (s *Stream) WriteSCTP(p []byte, ppi PayloadProtocolIdentifier) (int, error) {
	return s.WriteSCTPContext(context.Background(), p, ppi)
}

// WriteSCTPContext queues p as one message. It blocks only when the
// association bounds its outbound buffer and the buffer is full.
func (s *Stream) WriteSCTPContext(ctx context.Context, p []byte, ppi PayloadProtocolIdentifier) (int, error) {
	maxMessageSize := s.association.MaxMessageSize()
	if len(p) > int(maxMessageSize) {
		return 0, fmt.Errorf("%w: %v", ErrOutboundPacketTooLarge, maxMessageSize)
	}

	userData := p
	if len(p) == 0 {
		// RFC 8831 Sec 6.6: empty messages go out as a single zero byte.
		switch ppi {
		case PayloadTypeWebRTCString, PayloadTypeWebRTCStringEmpty:
			ppi = PayloadTypeWebRTCStringEmpty
		case PayloadTypeWebRTCBinary, PayloadTypeWebRTCBinaryEmpty:
			ppi = PayloadTypeWebRTCBinaryEmpty
		default:
			return 0, errEmptyPayload
		}
		userData = []byte{0}
	}

	s.lock.RLock()
	err := s.writeErr
	s.lock.RUnlock()
	if err != nil {
		return 0, err
	}

	ctx, cancel := mergeDeadline(ctx, s.writeDeadline)
	defer cancel()

	if err := s.association.waitForBufferSpace(ctx, len(userData)); err != nil {
		return 0, err
	}

	chunks := s.packetize(userData, ppi)
	if err := s.association.sendPayloadData(chunks); err != nil {
		s.onBufferReleased(len(userData))

		return 0, err
	}

	return len(p), nil
}

// mergeDeadline returns a context canceled when either ctx or d is done.
func mergeDeadline(ctx context.Context, d *deadline.Deadline) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(d, func() {
		cancel(os.ErrDeadlineExceeded)
	})

	return merged, func() {
		stop()
		cancel(context.Canceled)
	}
}

// packetize splits raw into DATA chunks of at most maxPayloadSize bytes
// sharing one abandonment head.
func (s *Stream) packetize(raw []byte, ppi PayloadProtocolIdentifier) []*chunkPayloadData {
	s.lock.Lock()
	defer s.lock.Unlock()

	i := uint32(0)
	remaining := uint32(len(raw)) //nolint:gosec
	maxPayloadSize := s.association.maxPayloadSize

	// From draft-ietf-rtcweb-data-protocol-09, section 6:
	//   All Data Channel Establishment Protocol messages MUST be sent using
	//   ordered delivery and reliable transmission.
	unordered := ppi != PayloadTypeWebRTCDCEP && s.unordered
	relType, relVal := s.reliabilityType, s.reliabilityValue
	if ppi == PayloadTypeWebRTCDCEP {
		relType, relVal = ReliabilityTypeReliable, 0
	}

	var chunks []*chunkPayloadData
	var head *chunkPayloadData
	for remaining != 0 {
		fragmentSize := min(maxPayloadSize, remaining)

		// Copy the userdata since we'll have to store it until acked
		// and the caller may re-use the buffer in the mean time
		userData := make([]byte, fragmentSize)
		copy(userData, raw[i:i+fragmentSize])

		chunk := &chunkPayloadData{
			streamIdentifier:     s.streamIdentifier,
			userData:             userData,
			unordered:            unordered,
			beginningFragment:    i == 0,
			endingFragment:       remaining-fragmentSize == 0,
			immediateSack:        false,
			payloadType:          ppi,
			streamSequenceNumber: s.sequenceNumber,
			relType:              relType,
			relVal:               relVal,
			head:                 head,
		}

		if head == nil {
			head = chunk
		}

		chunks = append(chunks, chunk)

		remaining -= fragmentSize
		i += fragmentSize
	}

	// RFC 4960 Sec 6.6
	// Note: When transmitting ordered and unordered data, an endpoint does
	// not increment its Stream Sequence Number when transmitting a DATA
	// chunk with U flag set to 1.
	if !unordered {
		s.sequenceNumber++
	}

	s.bufferedAmount += uint64(len(raw))
	s.log.Tracef("[%s] bufferedAmount = %d", s.name, s.bufferedAmount)

	return chunks
}

// Shutdown closes the read half, the write half or both. Closing the write
// half resets the outgoing stream (RFC 6525); the peer reads io.EOF once
// everything sent before the reset was delivered.
func (s *Stream) Shutdown(how Shutdown) error {
	if how < ShutdownRead || how > ShutdownBoth {
		return errInvalidShutdown
	}

	s.lock.Lock()
	if how == ShutdownRead || how == ShutdownBoth {
		if !s.readShutdown {
			s.readShutdown = true
			s.reassemblyQueue.dropPartial()
			s.notifyReaders()
		}
	}

	resetOutbound := false
	if (how == ShutdownWrite || how == ShutdownBoth) && s.writeErr == nil {
		s.writeErr = ErrStreamClosed
		if s.state == StreamStateOpen {
			if s.readErr == nil {
				s.state = StreamStateClosing
			} else {
				s.state = StreamStateClosed
			}
			s.log.Debugf("[%s] state change: open => %s", s.name, s.state)
			resetOutbound = true
		}
	}
	sid := s.streamIdentifier
	s.lock.Unlock()

	if resetOutbound {
		// Reset the outgoing stream
		// https://tools.ietf.org/html/rfc6525
		return s.association.sendResetRequest(sid)
	}

	return nil
}

// Close closes both halves of the stream.
func (s *Stream) Close() error {
	return s.Shutdown(ShutdownBoth)
}

// BufferedAmount returns the number of bytes of data currently queued to be sent over this stream.
func (s *Stream) BufferedAmount() uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.bufferedAmount
}

// BufferedAmountLowThreshold returns the number of bytes of buffered outgoing data that is
// considered "low." Defaults to 0.
func (s *Stream) BufferedAmountLowThreshold() uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.bufferedAmountLow
}

// SetBufferedAmountLowThreshold is used to update the threshold.
// See BufferedAmountLowThreshold().
func (s *Stream) SetBufferedAmountLowThreshold(th uint64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.bufferedAmountLow = th
}

// OnBufferedAmountLow sets the callback handler which would be called when the number of
// bytes of outgoing data buffered is lower than the threshold.
func (s *Stream) OnBufferedAmountLow(f func()) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.onBufferedAmountLow = f
}

// onBufferReleased is told that nBytesReleased of outgoing data were acked
// or abandoned. It returns the buffered-amount-low callback to run, if the
// amount crossed the threshold. The caller runs it without holding locks.
func (s *Stream) onBufferReleased(nBytesReleased int) func() {
	if nBytesReleased <= 0 {
		return nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	fromAmount := s.bufferedAmount

	if s.bufferedAmount < uint64(nBytesReleased) {
		s.log.Errorf("[%s] released buffer size %d should be <= %d",
			s.name, nBytesReleased, s.bufferedAmount)
		s.bufferedAmount = 0
	} else {
		s.bufferedAmount -= uint64(nBytesReleased)
	}

	s.log.Tracef("[%s] bufferedAmount = %d", s.name, s.bufferedAmount)

	if s.onBufferedAmountLow != nil && fromAmount > s.bufferedAmountLow && s.bufferedAmount <= s.bufferedAmountLow {
		return s.onBufferedAmountLow
	}

	return nil
}

func (s *Stream) getNumBytesInReassemblyQueue() int {
	// No lock is required as it reads the size with atomic load function.
	return s.reassemblyQueue.getNumBytes()
}

// onInboundStreamReset ends the inbound half: complete messages stay
// readable, partial ones are dropped, then Read returns io.EOF.
func (s *Stream) onInboundStreamReset() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.log.Debugf("[%s] onInboundStreamReset: state=%s", s.name, s.state)

	// See RFC 8831 section 6.7:
	//	if one side decides to close the data channel, it resets the corresponding
	//	outgoing stream.  When the peer sees that an incoming stream was
	//	reset, it also resets its corresponding outgoing stream.  Once this
	//	is completed, the data channel is closed.
	s.reassemblyQueue.dropPartial()
	if s.readErr == nil {
		s.readErr = io.EOF
	}
	s.notifyReaders()

	if s.state == StreamStateClosing {
		s.log.Debugf("[%s] state change: closing => closed", s.name)
		s.state = StreamStateClosed
	}
}

// closeWithError ends both halves with the association's terminal error.
func (s *Stream) closeWithError(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.readErr == nil {
		s.readErr = err
	}
	if s.writeErr == nil {
		s.writeErr = err
	}
	s.state = StreamStateClosed
	s.notifyReaders()
}

// State return the stream state.
func (s *Stream) State() StreamState {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.state
}
