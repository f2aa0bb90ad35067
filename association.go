// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/pion/randutil"
	"github.com/pion/sctp/v2/cookie"
	"golang.org/x/sync/errgroup"
)

// Port 5000 shows up in examples for SDPs used by WebRTC. Since this implementation
// assumes it will be used by DTLS over UDP, the port is only meaningful for de-multiplexing
// but more-so verification.
// Example usage: https://www.rfc-editor.org/rfc/rfc8841.html#section-13.1-2
const defaultSCTPSrcDstPort = 5000

// Use global random generator to properly seed by crypto grade random.
var globalMathRandomGenerator = randutil.NewMathRandomGenerator() // nolint:gochecknoglobals

const (
	receiveMTU            uint32 = 8192 // MTU for inbound packet (from DTLS)
	initialMTU            uint32 = 1228 // initial MTU for outgoing packets (to DTLS)
	initialRecvBufSize    uint32 = 1024 * 1024
	commonHeaderSize      uint32 = 12
	dataChunkHeaderSize   uint32 = 16
	defaultMaxMessageSize uint32 = 65536
)

// association state enums.
const (
	closed uint32 = iota
	cookieWait
	cookieEchoed
	established
	shutdownPending
	shutdownSent
	shutdownReceived
	shutdownAckSent
)

// other constants.
const (
	acceptChSize  = 16
	inboundChSize = 64
	// maxReconfigRequests is the maximum number of reconfig requests we will keep outstanding.
	maxReconfigRequests = 1000
)

func getAssociationStateString(assoc uint32) string {
	switch assoc {
	case closed:
		return "Closed"
	case cookieWait:
		return "CookieWait"
	case cookieEchoed:
		return "CookieEchoed"
	case established:
		return "Established"
	case shutdownPending:
		return "ShutdownPending"
	case shutdownSent:
		return "ShutdownSent"
	case shutdownReceived:
		return "ShutdownReceived"
	case shutdownAckSent:
		return "ShutdownAckSent"
	default:
		return fmt.Sprintf("Invalid association state %d", assoc)
	}
}

// Association represents an SCTP association
// 13.2.  Parameters Necessary per Association (i.e., the TCB)
//
// Peer : Tag value to be sent in every packet and is received
// Verification: in the INIT or INIT ACK chunk.
// Tag :
//
// My : Tag expected in every inbound packet and sent in the
// Verification: INIT or INIT ACK chunk.
//
// Tag :
// State : A state variable indicating what state the association
// : is in, i.e., COOKIE-WAIT, COOKIE-ECHOED, ESTABLISHED,
// : SHUTDOWN-PENDING, SHUTDOWN-SENT, SHUTDOWN-RECEIVED,
// : SHUTDOWN-ACK-SENT.
//
// Note: No "CLOSED" state is illustrated since if a
// association is "CLOSED" its TCB SHOULD be removed.
//
// Every field below is owned by the driver goroutine and guarded by lock.
// Public methods take the lock, mutate, and wake the driver through awakeCh.
type Association struct {
	bytesReceived uint64
	bytesSent     uint64

	lock sync.RWMutex

	netConn net.Conn

	peerVerificationTag    uint32
	myVerificationTag      uint32
	state                  uint32
	initialTSN             uint32
	myNextTSN              uint32 // nextTSN
	peerLastTSN            uint32 // lastRcvdTSN
	minTSN2MeasureRTT      uint32 // for RTT measurement
	willSendForwardTSN     bool
	willRetransmitFast     bool
	willRetransmitReconfig bool

	willSendShutdown         bool
	willSendShutdownAck      bool
	willSendShutdownComplete bool

	willSendAbort      bool
	willSendAbortCause errorCause

	// Reconfig
	myNextRSN        uint32
	reconfigs        map[uint32]*chunkReconfig
	reconfigRequests map[uint32]*paramOutgoingResetRequest

	// Non-RFC internal data
	sourcePort              uint16
	destinationPort         uint16
	myMaxNumInboundStreams  uint16
	myMaxNumOutboundStreams uint16
	cookieJar               *cookie.Jar
	myCookie                []byte
	payloadQueue            *payloadQueue
	inflightQueue           *payloadQueue
	pendingQueue            *pendingQueue
	controlQueue            *controlQueue
	mtu                     uint32
	maxPayloadSize          uint32 // max DATA chunk payload size
	cumulativeTSNAckPoint   uint32
	advancedPeerTSNAckPoint uint32
	useForwardTSN           bool

	// Congestion control parameters
	maxReceiveBufferSize  uint32
	maxMessageSize        uint32
	maxOutboundBufferSize uint32
	rwnd                  uint32 // rwnd
	cc                    CongestionController
	ccFactory             CongestionControllerFactory

	// RTX & Ack timer
	rtoMgr            *rtoManager
	timers            *timerTable
	ackDelay          time.Duration
	heartbeatInterval time.Duration

	// Chunks stored for retransmission
	storedInit       *chunkInit
	storedCookieEcho *chunkCookieEcho

	streams              map[uint16]*Stream
	acceptCh             chan *Stream
	awakeCh              chan struct{}
	inboundCh            chan []byte
	closeCh              chan struct{}
	handshakeCompletedCh chan error
	handshakeCompleted   bool
	writeNotify          chan struct{}

	// callbacks collected under the lock, handed to callbackLoop by the driver
	callbacks     []func()
	callbackMu    sync.Mutex
	callbackQueue []func()
	callbackCh    chan struct{}

	closeErr      error
	localShutdown bool
	group         *errgroup.Group

	// local error
	silentError error

	ackState    ackState
	ackMode     ackMode // for testing
	sackTrigger sackTrigger

	// stats
	stats  *associationStats
	minRTT *minRTTFilter

	strictPortValidation bool

	name string
	log  logging.LeveledLogger
}

// Config collects the arguments to createAssociation construction into
// a single structure.
type Config struct {
	Name                 string
	NetConn              net.Conn
	MaxReceiveBufferSize uint32
	MaxMessageSize       uint32
	LoggerFactory        logging.LoggerFactory
	MTU                  uint32

	// RTOMax is the maximum retransmission timeout in milliseconds
	RTOMax float64

	// MaxOutboundBufferSize bounds pending plus in-flight bytes. Writes
	// block while the bound is reached. Zero means unbounded.
	MaxOutboundBufferSize uint32
	// HeartbeatInterval enables active heartbeats when positive.
	HeartbeatInterval time.Duration
	// MaxInitRetransmits overrides the T1-init and T1-cookie limit.
	MaxInitRetransmits uint
	// StrictPortValidation drops packets whose ports do not match the
	// association once they are known.
	StrictPortValidation bool
	// CookieJar mints and verifies state cookies. Listeners share one jar
	// between their associations.
	CookieJar *cookie.Jar
	// CongestionController builds the sender's congestion controller.
	// Defaults to Reno.
	CongestionController CongestionControllerFactory
	// AckDelay is the delayed SACK timeout, 200ms by default and at most 500ms.
	AckDelay time.Duration
}

// Server accepts a SCTP stream over a conn.
func Server(config Config) (*Association, error) {
	return createServerWithContext(context.Background(), config)
}

// Client opens a SCTP stream over a conn.
func Client(config Config) (*Association, error) {
	return createClientWithContext(context.Background(), config)
}

// NewServer builds a Config from opts and waits for a peer to complete the
// handshake. Canceling ctx aborts the handshake with ErrCanceled.
func NewServer(ctx context.Context, opts ...ServerOption) (*Association, error) {
	var config Config
	for _, o := range opts {
		if err := o.applyServer(&config); err != nil {
			return nil, err
		}
	}

	return createServerWithContext(ctx, config)
}

// NewClient builds a Config from opts and performs the handshake.
// Canceling ctx aborts the handshake with ErrCanceled.
func NewClient(ctx context.Context, opts ...ClientOption) (*Association, error) {
	var config Config
	for _, o := range opts {
		if err := o.applyClient(&config); err != nil {
			return nil, err
		}
	}

	return createClientWithContext(ctx, config)
}

func createServerWithContext(ctx context.Context, config Config) (*Association, error) {
	assoc, err := createAssociation(config)
	if err != nil {
		return nil, err
	}
	assoc.init(false)

	return assoc.waitForHandshake(ctx)
}

func createClientWithContext(ctx context.Context, config Config) (*Association, error) {
	assoc, err := createAssociation(config)
	if err != nil {
		return nil, err
	}
	assoc.init(true)

	return assoc.waitForHandshake(ctx)
}

func (a *Association) waitForHandshake(ctx context.Context) (*Association, error) {
	select {
	case err := <-a.handshakeCompletedCh:
		if err != nil {
			<-a.closeCh
			_ = a.group.Wait()

			return nil, err
		}

		return a, nil
	case <-ctx.Done():
		a.log.Errorf("[%s] handshake canceled: state=%s", a.name, getAssociationStateString(a.getState()))
		a.abort(nil, ErrCanceled)

		return nil, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	}
}

func createAssociation(config Config) (*Association, error) {
	if config.NetConn == nil {
		return nil, errNilNetConn
	}

	loggerFactory := config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	maxReceiveBufferSize := config.MaxReceiveBufferSize
	if maxReceiveBufferSize == 0 {
		maxReceiveBufferSize = initialRecvBufSize
	}

	maxMessageSize := config.MaxMessageSize
	if maxMessageSize == 0 {
		maxMessageSize = defaultMaxMessageSize
	}

	mtu := config.MTU
	if mtu == 0 {
		mtu = initialMTU
	}
	if mtu <= commonHeaderSize+dataChunkHeaderSize {
		return nil, fmt.Errorf("%w: %d", errMTUTooSmall, mtu)
	}

	if config.HeartbeatInterval < 0 {
		return nil, errNegativeHeartbeatInterval
	}

	jar := config.CookieJar
	if jar == nil {
		var err error
		if jar, err = cookie.NewJar(); err != nil {
			return nil, err
		}
	}

	ccFactory := config.CongestionController
	if ccFactory == nil {
		ccFactory = newRenoController
	}

	ackDelay := config.AckDelay
	if ackDelay <= 0 {
		ackDelay = ackInterval
	}
	if ackDelay > ackMaxDelay {
		ackDelay = ackMaxDelay
	}

	tsn := globalMathRandomGenerator.Uint32()
	assoc := &Association{
		netConn:               config.NetConn,
		maxReceiveBufferSize:  maxReceiveBufferSize,
		maxMessageSize:        maxMessageSize,
		maxOutboundBufferSize: config.MaxOutboundBufferSize,

		// These two max values have us not need to follow
		// 5.1.1 where this peer may be incapable of supporting
		// the requested amount of outbound streams from the other
		// peer.
		myMaxNumOutboundStreams: math.MaxUint16,
		myMaxNumInboundStreams:  math.MaxUint16,

		payloadQueue:            newPayloadQueue(),
		inflightQueue:           newPayloadQueue(),
		pendingQueue:            newPendingQueue(),
		controlQueue:            newControlQueue(),
		mtu:                     mtu,
		maxPayloadSize:          mtu - (commonHeaderSize + dataChunkHeaderSize),
		myVerificationTag:       generateVerificationTag(),
		initialTSN:              tsn,
		myNextTSN:               tsn,
		myNextRSN:               tsn,
		minTSN2MeasureRTT:       tsn,
		cumulativeTSNAckPoint:   tsn - 1,
		advancedPeerTSNAckPoint: tsn - 1,
		sourcePort:              defaultSCTPSrcDstPort,
		destinationPort:         defaultSCTPSrcDstPort,
		state:                   closed,
		cookieJar:               jar,
		ccFactory:               ccFactory,
		rtoMgr:                  newRTOManager(config.RTOMax),
		timers:                  newTimerTable(config.RTOMax),
		ackDelay:                ackDelay,
		heartbeatInterval:       config.HeartbeatInterval,
		streams:                 map[uint16]*Stream{},
		reconfigs:               map[uint32]*chunkReconfig{},
		reconfigRequests:        map[uint32]*paramOutgoingResetRequest{},
		acceptCh:                make(chan *Stream, acceptChSize),
		awakeCh:                 make(chan struct{}, 1),
		inboundCh:               make(chan []byte, inboundChSize),
		closeCh:                 make(chan struct{}),
		handshakeCompletedCh:    make(chan error, 1),
		writeNotify:             make(chan struct{}),
		callbackCh:              make(chan struct{}, 1),
		silentError:             ErrTryAgain,
		stats:                   &associationStats{},
		minRTT:                  newMinRTTFilter(defaultMinRTTWindow),
		strictPortValidation:    config.StrictPortValidation,
		log:                     loggerFactory.NewLogger("sctp"),
		name:                    config.Name,
	}

	// The peer's a_rwnd is not known yet; the controller is rebuilt once it is.
	assoc.cc = ccFactory(mtu, initialRecvBufSize)

	if config.MaxInitRetransmits > 0 {
		assoc.timers.setMaxRetrans(timerT1Init, config.MaxInitRetransmits)
		assoc.timers.setMaxRetrans(timerT1Cookie, config.MaxInitRetransmits)
	}

	if assoc.name == "" {
		assoc.name = fmt.Sprintf("%p", assoc)
	}

	return assoc, nil
}

// generateVerificationTag returns a random non-zero tag.
func generateVerificationTag() uint32 {
	for {
		if tag := globalMathRandomGenerator.Uint32(); tag != 0 {
			return tag
		}
	}
}

func (a *Association) init(isClient bool) {
	a.lock.Lock()
	defer a.lock.Unlock()

	group, ctx := errgroup.WithContext(context.Background())
	a.group = group
	group.Go(func() error { return a.readLoop(ctx) })
	group.Go(func() error { return a.driveLoop(ctx) })

	// Not part of the group: a callback may call Close.
	go a.callbackLoop()

	if isClient {
		a.startHandshake()
	}
}

// Shutdown initiates the shutdown sequence. The method blocks until the
// shutdown sequence is completed and the connection is closed, or until the
// passed context is done, in which case the association is aborted and
// ErrCanceled is returned.
func (a *Association) Shutdown(ctx context.Context) error {
	a.log.Debugf("[%s] shutting down association..", a.name)

	a.lock.Lock()
	if a.closeErr == nil {
		switch a.getState() {
		case established:
			a.localShutdown = true
			a.timers.setMaxRetrans(timerT3RTX, maxShutdownRetrans)
			a.setState(shutdownPending)
			a.checkShutdownProgress()
			a.awake()
		case closed, cookieWait, cookieEchoed:
			a.lock.Unlock()
			a.abort(nil, ErrAssociationClosed)

			return nil
		default:
			a.localShutdown = true
		}
	}
	a.lock.Unlock()

	select {
	case <-a.closeCh:
	case <-ctx.Done():
		a.abort(&errorCauseUserInitiatedAbort{upperLayerAbortReason: []byte("shutdown canceled")}, ErrCanceled)

		return fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	}

	_ = a.group.Wait()

	a.lock.RLock()
	defer a.lock.RUnlock()
	if a.isGracefulClose(a.closeErr) {
		return nil
	}

	return a.closeErr
}

func (a *Association) isGracefulClose(err error) bool {
	return err == ErrAssociationClosed || err == io.EOF //nolint:errorlint
}

// Close ends the SCTP Association gracefully. It is safe to call Close more
// than once.
func (a *Association) Close() error {
	a.lock.RLock()
	alreadyClosed := a.closeErr != nil
	a.lock.RUnlock()

	if alreadyClosed {
		<-a.closeCh
		_ = a.group.Wait()

		return nil
	}

	err := a.Shutdown(context.Background())

	a.log.Debugf("[%s] association closed", a.name)
	a.log.Debugf("[%s] stats nPackets (in) : %d", a.name, a.stats.getNumPacketsReceived())
	a.log.Debugf("[%s] stats nPackets (out) : %d", a.name, a.stats.getNumPacketsSent())
	a.log.Debugf("[%s] stats nDATAs (in) : %d", a.name, a.stats.getNumDATAsReceived())
	a.log.Debugf("[%s] stats nSACKs (in) : %d", a.name, a.stats.getNumSACKsReceived())
	a.log.Debugf("[%s] stats nSACKs (out) : %d", a.name, a.stats.getNumSACKsSent())
	a.log.Debugf("[%s] stats nT3Timeouts : %d", a.name, a.stats.getNumT3Timeouts())
	a.log.Debugf("[%s] stats nAckTimeouts: %d", a.name, a.stats.getNumAckTimeouts())
	a.log.Debugf("[%s] stats nFastRetrans: %d", a.name, a.stats.getNumFastRetrans())

	return err
}

// Abort sends the abort packet with user initiated abort and immediately
// closes the connection.
func (a *Association) Abort(reason string) {
	a.log.Debugf("[%s] aborting association: %s", a.name, reason)

	a.abort(&errorCauseUserInitiatedAbort{upperLayerAbortReason: []byte(reason)}, ErrAssociationClosed)
}

// abort queues an ABORT, if the peer can be addressed, terminates with err
// and waits for the driver to exit.
func (a *Association) abort(cause errorCause, err error) {
	a.lock.Lock()
	a.abortLocked(cause, err)
	a.lock.Unlock()

	<-a.closeCh
	_ = a.group.Wait()
}

// The caller should hold the lock.
func (a *Association) abortLocked(cause errorCause, err error) {
	if a.closeErr != nil {
		return
	}

	if state := a.getState(); state != closed && state != cookieWait {
		a.willSendAbort = true
		a.willSendAbortCause = cause
	}
	a.terminate(err)
}

// OpenStream opens a stream.
func (a *Association) OpenStream(
	streamIdentifier uint16,
	defaultPayloadType PayloadProtocolIdentifier,
) (*Stream, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.closeErr != nil {
		return nil, a.closeErr
	}

	if _, ok := a.streams[streamIdentifier]; ok {
		return nil, fmt.Errorf("%w: %d", errStreamAlreadyExist, streamIdentifier)
	}

	s := a.createStream(streamIdentifier, false)
	s.SetDefaultPayloadType(defaultPayloadType)

	return s, nil
}

// AcceptStream accepts a stream.
func (a *Association) AcceptStream() (*Stream, error) {
	return a.AcceptStreamContext(context.Background())
}

// AcceptStreamContext accepts a stream opened by the peer. Once the
// association is closed it returns the terminal error.
func (a *Association) AcceptStreamContext(ctx context.Context) (*Stream, error) {
	select {
	case s, ok := <-a.acceptCh:
		if !ok {
			a.lock.RLock()
			err := a.closeErr
			a.lock.RUnlock()
			if err == nil {
				err = errAcceptChannelClosed
			}

			return nil, err
		}

		return s, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	}
}

// createStream creates a stream. The caller should hold the lock and check no stream exists for this id.
func (a *Association) createStream(streamIdentifier uint16, accept bool) *Stream {
	s := newStream(a, streamIdentifier)

	if accept {
		select {
		case a.acceptCh <- s:
			a.streams[streamIdentifier] = s
			a.log.Debugf("[%s] accepted a new stream (streamIdentifier: %d)",
				a.name, streamIdentifier)
		default:
			a.log.Debugf("[%s] dropped a new stream (acceptCh size: %d)",
				a.name, len(a.acceptCh))

			return nil
		}
	} else {
		a.streams[streamIdentifier] = s
	}

	return s
}

// getOrCreateStream gets or creates a stream. The caller should hold the lock.
func (a *Association) getOrCreateStream(streamIdentifier uint16) *Stream {
	if s, ok := a.streams[streamIdentifier]; ok {
		return s
	}

	return a.createStream(streamIdentifier, true)
}

// setState atomically sets the state of the Association.
// The caller should hold the lock.
func (a *Association) setState(newState uint32) {
	oldState := atomic.SwapUint32(&a.state, newState)
	if newState != oldState {
		a.log.Debugf("[%s] state change: '%s' => '%s'",
			a.name,
			getAssociationStateString(oldState),
			getAssociationStateString(newState))
	}
}

// getState atomically returns the state of the Association.
func (a *Association) getState() uint32 {
	return atomic.LoadUint32(&a.state)
}

// Name returns the name used in logs.
func (a *Association) Name() string {
	return a.name
}

// LocalAddr returns the local address of the underlying conn.
func (a *Association) LocalAddr() net.Addr {
	return a.netConn.LocalAddr()
}

// RemoteAddr returns the remote address of the underlying conn.
func (a *Association) RemoteAddr() net.Addr {
	return a.netConn.RemoteAddr()
}

// BytesSent returns the number of bytes sent.
func (a *Association) BytesSent() uint64 {
	return atomic.LoadUint64(&a.bytesSent)
}

// BytesReceived returns the number of bytes received.
func (a *Association) BytesReceived() uint64 {
	return atomic.LoadUint64(&a.bytesReceived)
}

// MTU returns the association's current MTU.
func (a *Association) MTU() uint32 {
	return a.mtu
}

// CWND returns the association's current congestion window (cwnd).
func (a *Association) CWND() uint32 {
	a.lock.RLock()
	defer a.lock.RUnlock()

	return a.cc.CongestionWindow()
}

// RWND returns the association's current receiver window (rwnd).
func (a *Association) RWND() uint32 {
	a.lock.RLock()
	defer a.lock.RUnlock()

	return a.rwnd
}

// SRTT returns the latest smoothed round-trip time (srrt) in milliseconds.
func (a *Association) SRTT() float64 {
	a.lock.RLock()
	defer a.lock.RUnlock()

	return a.rtoMgr.srtt
}

// BufferedAmount returns total amount (in bytes) of currently buffered user data.
func (a *Association) BufferedAmount() int {
	a.lock.RLock()
	defer a.lock.RUnlock()

	return a.pendingQueue.getNumBytes() + a.inflightQueue.getNumBytes()
}

// MaxMessageSize returns the maximum message size you can send.
func (a *Association) MaxMessageSize() uint32 {
	return atomic.LoadUint32(&a.maxMessageSize)
}

// SetMaxMessageSize sets the maximum message size you can send.
func (a *Association) SetMaxMessageSize(maxMsgSize uint32) {
	atomic.StoreUint32(&a.maxMessageSize, maxMsgSize)
}

func min16(a, b uint16) uint16 {
	if a < b {
		return a
	}

	return b
}
