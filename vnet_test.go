// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"bytes"
	"crypto/rand"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
	"github.com/pion/transport/v3/vnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vNetEnvConfig struct {
	minDelay      time.Duration
	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger
}

type vNetEnv struct {
	wan                 *vnet.Router
	net0                *vnet.Net
	net1                *vnet.Net
	numToDropData       atomic.Int32
	numToDropReconfig   atomic.Int32
	numToDropCookieEcho atomic.Int32
	numToDropCookieAck  atomic.Int32
}

// takeOne decrements n when positive and reports whether it did.
func takeOne(n *atomic.Int32) bool {
	for {
		cur := n.Load()
		if cur <= 0 {
			return false
		}
		if n.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// chunkFilter drops packets carrying the chunks the test asked to lose.
// DATA drops lock on the first TSN seen so that only that TSN is lost,
// however often it is retransmitted.
func (venv *vNetEnv) chunkFilter(log logging.LeveledLogger) func(vnet.Chunk) bool {
	var lockedOnTSN bool
	var tsn uint32

	return func(c vnet.Chunk) bool {
		p := &packet{}
		if err := p.unmarshal(c.UserData()); err != nil {
			log.Warnf("chunk filter: unable to parse SCTP packet: %v", err)

			return true
		}

		for _, ch := range p.chunks {
			switch ch := ch.(type) {
			case *chunkPayloadData:
				if venv.numToDropData.Load() <= 0 {
					continue
				}
				if !lockedOnTSN {
					tsn = ch.tsn
					lockedOnTSN = true
					log.Infof("chunk filter: lock on TSN %d", tsn)
				}
				if ch.tsn == tsn && takeOne(&venv.numToDropData) {
					log.Infof("chunk filter: drop TSN %d", tsn)

					return false
				}
			case *chunkReconfig:
				if takeOne(&venv.numToDropReconfig) {
					log.Infof("chunk filter: drop %s", ch)

					return false
				}
			case *chunkCookieEcho:
				if takeOne(&venv.numToDropCookieEcho) {
					log.Info("chunk filter: drop COOKIE-ECHO")

					return false
				}
			case *chunkCookieAck:
				if takeOne(&venv.numToDropCookieAck) {
					log.Info("chunk filter: drop COOKIE-ACK")

					return false
				}
			}
		}

		return true
	}
}

func buildVNetEnv(t *testing.T, cfg *vNetEnvConfig) *vNetEnv {
	t.Helper()

	wan, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "0.0.0.0/0",
		MinDelay:      cfg.minDelay,
		MaxJitter:     0,
		LoggerFactory: cfg.loggerFactory,
	})
	require.NoError(t, err)

	venv := &vNetEnv{wan: wan}
	wan.AddChunkFilter(venv.chunkFilter(cfg.log))

	venv.net0, err = vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"1.1.1.1"}})
	require.NoError(t, err)
	require.NoError(t, wan.AddNet(venv.net0))

	venv.net1, err = vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"2.2.2.2"}})
	require.NoError(t, err)
	require.NoError(t, wan.AddNet(venv.net1))

	require.NoError(t, wan.Start())
	t.Cleanup(func() {
		_ = wan.Stop()
	})

	return venv
}

func (venv *vNetEnv) serverConn(t *testing.T) net.Conn {
	t.Helper()

	conn, err := venv.net0.DialUDP("udp4",
		&net.UDPAddr{IP: net.ParseIP("1.1.1.1"), Port: 5000},
		&net.UDPAddr{IP: net.ParseIP("2.2.2.2"), Port: 5000},
	)
	require.NoError(t, err)

	return conn
}

func (venv *vNetEnv) clientConn(t *testing.T) net.Conn {
	t.Helper()

	conn, err := venv.net1.DialUDP("udp4",
		&net.UDPAddr{IP: net.ParseIP("2.2.2.2"), Port: 5000},
		&net.UDPAddr{IP: net.ParseIP("1.1.1.1"), Port: 5000},
	)
	require.NoError(t, err)

	return conn
}

// fixedWindow is a congestion controller whose window never moves.
type fixedWindow struct {
	cwnd uint32
}

func (f *fixedWindow) OnAck(uint32, bool, uint32) {}
func (f *fixedWindow) OnFastRetransmit(uint32) bool { return false }
func (f *fixedWindow) OnRetransmissionTimeout() {}
func (f *fixedWindow) OnIdle() {}
func (f *fixedWindow) InFastRecovery() bool { return false }
func (f *fixedWindow) CongestionWindow() uint32 { return f.cwnd }
func (f *fixedWindow) SlowStartThreshold() uint32 { return f.cwnd }
func (f *fixedWindow) PartialBytesAcked() uint32 { return 0 }

func testRwndFull(t *testing.T, unordered bool) { //nolint:cyclop
	loggerFactory := logging.NewDefaultLoggerFactory()
	log := loggerFactory.NewLogger("test")

	venv := buildVNetEnv(t, &vNetEnvConfig{
		minDelay:      200 * time.Millisecond,
		loggerFactory: loggerFactory,
		log:           log,
	})

	serverHandshakeDone := make(chan struct{})
	clientHandshakeDone := make(chan struct{})
	serverStreamReady := make(chan struct{})
	clientStreamReady := make(chan struct{})
	clientStartWrite := make(chan struct{})
	serverRecvBufFull := make(chan struct{})
	serverStartRead := make(chan struct{})
	serverReadAll := make(chan struct{})
	clientShutDown := make(chan struct{})
	serverShutDown := make(chan struct{})
	shutDownClient := make(chan struct{})
	shutDownServer := make(chan struct{})

	maxReceiveBufferSize := uint32(64 * 1024)
	msgSize := int(float32(maxReceiveBufferSize)/2) + int(initialMTU)
	msg := make([]byte, msgSize)
	_, err := rand.Read(msg)
	require.NoError(t, err)

	serverConn := venv.serverConn(t)
	clientConn := venv.clientConn(t)

	go func() {
		defer close(serverShutDown)

		assoc, err := Server(Config{
			NetConn:              serverConn,
			MaxReceiveBufferSize: maxReceiveBufferSize,
			LoggerFactory:        loggerFactory,
			Name:                 "server",
		})
		if !assert.NoError(t, err) {
			return
		}
		defer assoc.Close() //nolint:errcheck

		log.Info("server handshake complete")
		close(serverHandshakeDone)

		stream, err := assoc.AcceptStream()
		if !assert.NoError(t, err) {
			return
		}

		// Expunge the first HELLO packet
		buf := make([]byte, 64*1024)
		n, err := stream.Read(buf)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "HELLO", string(buf[:n]))

		log.Info("server stream ready")
		close(serverStreamReady)

		for {
			assoc.lock.RLock()
			rbufSize := assoc.getMyReceiverWindowCredit()
			assoc.lock.RUnlock()
			log.Infof("rbufSize = %d", rbufSize)
			if rbufSize == 0 {
				break
			}
			time.Sleep(50 * time.Millisecond)
		}
		close(serverRecvBufFull)

		<-serverStartRead
		for i := 0; i < 2; i++ {
			n, err = stream.Read(buf)
			if !assert.NoError(t, err) {
				return
			}
			log.Infof("server read %d bytes", n)
			assert.True(t, bytes.Equal(msg, buf[:n]), "msg %d should match", i)
		}

		close(serverReadAll)
		<-shutDownServer
		log.Info("server closing")
	}()

	go func() {
		defer close(clientShutDown)

		// A window wide enough to put both messages on the wire at once.
		assoc, err := Client(Config{
			NetConn:              clientConn,
			MaxReceiveBufferSize: maxReceiveBufferSize,
			LoggerFactory:        loggerFactory,
			Name:                 "client",
			CongestionController: func(uint32, uint32) CongestionController {
				return &fixedWindow{cwnd: 2 * maxReceiveBufferSize}
			},
		})
		if !assert.NoError(t, err) {
			return
		}
		defer assoc.Close() //nolint:errcheck

		log.Info("client handshake complete")
		close(clientHandshakeDone)

		stream, err := assoc.OpenStream(777, PayloadTypeWebRTCBinary)
		if !assert.NoError(t, err) {
			return
		}

		// Send a message to let server side stream to open
		_, err = stream.Write([]byte("HELLO"))
		if !assert.NoError(t, err) {
			return
		}

		stream.SetReliabilityParams(unordered, ReliabilityTypeReliable, 0)

		log.Info("client stream ready")
		close(clientStreamReady)

		<-clientStartWrite

		// Pretend the peer advertised more than it did so the second
		// message overruns the receive buffer.
		assoc.lock.Lock()
		assoc.rwnd = 2 * maxReceiveBufferSize
		assoc.lock.Unlock()

		for i := 0; i < 2; i++ {
			_, err = stream.Write(msg)
			if !assert.NoError(t, err) {
				return
			}
		}

		<-shutDownClient
		log.Info("client closing")
	}()

	<-clientHandshakeDone
	<-serverHandshakeDone
	log.Info("handshake complete")

	<-clientStreamReady
	<-serverStreamReady
	log.Info("stream ready")

	// lose the first DATA chunk of the large messages so nothing can be
	// delivered until it is retransmitted
	venv.numToDropData.Store(1)

	close(clientStartWrite)

	<-serverRecvBufFull
	close(serverStartRead)

	<-serverReadAll
	log.Info("server received all data")

	close(shutDownClient)
	<-clientShutDown
	close(shutDownServer)
	<-serverShutDown
	log.Info("all done")
}

func TestRwndFull(t *testing.T) {
	t.Run("Ordered", func(t *testing.T) {
		// Limit runtime in case of deadlocks
		lim := test.TimeOut(time.Second * 20)
		defer lim.Stop()

		testRwndFull(t, false)
	})

	t.Run("Unordered", func(t *testing.T) {
		// Limit runtime in case of deadlocks
		lim := test.TimeOut(time.Second * 20)
		defer lim.Stop()

		testRwndFull(t, true)
	})
}

func testStreamClose(t *testing.T, dropReconfig bool) { //nolint:cyclop
	lim := test.TimeOut(time.Second * 20)
	defer lim.Stop()

	loggerFactory := logging.NewDefaultLoggerFactory()
	log := loggerFactory.NewLogger("test")

	venv := buildVNetEnv(t, &vNetEnvConfig{
		loggerFactory: loggerFactory,
		log:           log,
	})

	serverStreamReady := make(chan struct{})
	clientStreamReady := make(chan struct{})
	clientStartClose := make(chan struct{})
	serverStreamClosed := make(chan struct{})
	shutDownClient := make(chan struct{})
	shutDownServer := make(chan struct{})
	clientShutDown := make(chan struct{})
	serverShutDown := make(chan struct{})

	serverConn := venv.serverConn(t)
	clientConn := venv.clientConn(t)

	go func() {
		defer close(serverShutDown)

		assoc, err := Server(Config{
			NetConn:       serverConn,
			LoggerFactory: loggerFactory,
			Name:          "server",
		})
		if !assert.NoError(t, err) {
			return
		}
		defer assoc.Close() //nolint:errcheck

		log.Info("server handshake complete")

		stream, err := assoc.AcceptStream()
		if !assert.NoError(t, err) {
			return
		}

		buf := make([]byte, 1500)
		for {
			n, err := stream.Read(buf)
			if err != nil {
				t.Logf("server: Read returned %v", err)

				break
			}

			if !assert.Equal(t, "HELLO", string(buf[:n])) {
				continue
			}

			log.Info("server stream ready")
			close(serverStreamReady)
		}

		// answer the peer's reset with ours
		assert.NoError(t, stream.Close())
		close(serverStreamClosed)

		<-shutDownServer
		log.Info("server closing")
	}()

	go func() {
		defer close(clientShutDown)

		assoc, err := Client(Config{
			NetConn:       clientConn,
			LoggerFactory: loggerFactory,
			Name:          "client",
		})
		if !assert.NoError(t, err) {
			return
		}
		defer assoc.Close() //nolint:errcheck

		log.Info("client handshake complete")

		stream, err := assoc.OpenStream(777, PayloadTypeWebRTCBinary)
		if !assert.NoError(t, err) {
			return
		}

		stream.SetReliabilityParams(false, ReliabilityTypeReliable, 0)

		// Send a message to let server side stream to open
		_, err = stream.Write([]byte("HELLO"))
		if !assert.NoError(t, err) {
			return
		}

		done := make(chan struct{})
		go func() {
			buf := make([]byte, 1500)
			for {
				_, err2 := stream.Read(buf)
				if err2 != nil {
					t.Logf("client: Read returned %v", err2)

					break
				}
			}
			close(done)
		}()

		log.Info("client stream ready")
		close(clientStreamReady)

		<-clientStartClose

		if dropReconfig {
			venv.numToDropReconfig.Store(1)
		}

		assert.NoError(t, stream.Close())

		log.Info("client wait for exit reading..")
		<-done

		<-shutDownClient

		assert.Equal(t, int32(0), venv.numToDropReconfig.Load(), "RECONFIG should have been dropped")

		assert.Eventually(t, func() bool {
			assoc.lock.RLock()
			defer assoc.lock.RUnlock()

			return len(assoc.reconfigs) == 0
		}, 5*time.Second, 50*time.Millisecond, "no reset request should stay pending")

		log.Info("client closing")
	}()

	<-clientStreamReady
	<-serverStreamReady
	log.Info("stream ready")

	close(clientStartClose)

	<-serverStreamClosed
	close(shutDownClient)
	<-clientShutDown
	close(shutDownServer)
	<-serverShutDown
	log.Info("all done")
}

func TestStreamClose(t *testing.T) {
	t.Run("Normal close", func(t *testing.T) {
		testStreamClose(t, false)
	})

	t.Run("Drop reconfig packet", func(t *testing.T) {
		testStreamClose(t, true)
	})
}

// Both ends open simultaneously and the first COOKIE-ECHO and COOKIE-ACK
// are both lost. The handshake must still complete on T1-cookie
// retransmission.
func TestCookieEchoRetransmission(t *testing.T) {
	lim := test.TimeOut(time.Second * 20)
	defer lim.Stop()

	loggerFactory := logging.NewDefaultLoggerFactory()
	log := loggerFactory.NewLogger("test")

	venv := buildVNetEnv(t, &vNetEnvConfig{
		minDelay:      200 * time.Millisecond,
		loggerFactory: loggerFactory,
		log:           log,
	})

	venv.numToDropCookieEcho.Store(1)
	venv.numToDropCookieAck.Store(1)

	conns := []net.Conn{venv.serverConn(t), venv.clientConn(t)}
	handshakeDone := make(chan *Association, len(conns))
	waitAllHandshakeDone := make(chan struct{})
	shutDown := make(chan struct{}, len(conns))

	for i, conn := range conns {
		i, conn := i, conn
		go func() {
			defer func() { shutDown <- struct{}{} }()

			assoc, err := Client(Config{
				NetConn:              conn,
				MaxReceiveBufferSize: 64 * 1024,
				LoggerFactory:        loggerFactory,
				Name:                 []string{"one", "two"}[i],
			})
			if !assert.NoError(t, err) {
				handshakeDone <- nil

				return
			}
			defer assoc.Close() //nolint:errcheck

			handshakeDone <- assoc
			<-waitAllHandshakeDone
		}()
	}

	for range conns {
		if assoc := <-handshakeDone; assoc != nil {
			assert.Equal(t, "Established", assoc.Stats().State)
		}
	}
	close(waitAllHandshakeDone)
	log.Info("handshake complete")

	assert.Equal(t, int32(0), venv.numToDropCookieEcho.Load())
	assert.Equal(t, int32(0), venv.numToDropCookieAck.Load())

	for range conns {
		<-shutDown
	}
	log.Info("all done")
}
