// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenAndDial(t *testing.T) {
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()

	l, err := ListenAssociation("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}, Config{Name: "listener"})
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, l.Close())
	}()

	type result struct {
		s   *Stream
		err error
	}
	dialed := make(chan result, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		d := &Dialer{PayloadType: PayloadTypeWebRTCString, Config: &Config{Name: "dialer"}}
		s, dialErr := d.DialContext(ctx, "udp", l.Addr().(*net.UDPAddr), 7) //nolint:forcetypeassert
		dialed <- result{s, dialErr}
	}()

	server, err := l.Accept()
	require.NoError(t, err)
	assert.Equal(t, "listener", server.Name())

	res := <-dialed
	require.NoError(t, res.err)
	client := res.s.Association()
	assert.Equal(t, "dialer", client.Name())
	assert.Equal(t, server.LocalAddr().String(), client.RemoteAddr().String())

	_, err = res.s.Write([]byte("over udp"))
	require.NoError(t, err)

	ss, err := server.AcceptStream()
	require.NoError(t, err)
	assert.Equal(t, uint16(7), ss.StreamIdentifier())

	buf := make([]byte, 32)
	n, ppi, err := ss.ReadSCTP(buf)
	require.NoError(t, err)
	assert.Equal(t, "over udp", string(buf[:n]))
	assert.Equal(t, PayloadTypeWebRTCString, ppi)

	assert.NoError(t, client.Close())
	assert.NoError(t, server.Close())
}

func TestDialCanceled(t *testing.T) {
	// nothing answers on this socket
	pc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer func() {
		_ = pc.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = (&Dialer{}).DialContext(ctx, "udp", pc.LocalAddr().(*net.UDPAddr), 1) //nolint:forcetypeassert
	assert.ErrorIs(t, err, ErrCanceled)
}
