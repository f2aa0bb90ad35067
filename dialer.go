// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"context"
	"net"
)

// Dial connects to the given network address and establishes a
// SCTP stream on top. For more control use DialAssociation.
func Dial(network string, raddr *net.UDPAddr, streamIdentifier uint16) (*Stream, error) {
	return (&Dialer{}).Dial(network, raddr, streamIdentifier)
}

// DialAssociation connects to the given network address and performs the
// SCTP handshake. The net.Conn in the config is ignored.
func DialAssociation(network string, raddr *net.UDPAddr, config Config) (*Association, error) {
	return dialAssociation(context.Background(), network, raddr, config)
}

func dialAssociation(ctx context.Context, network string, raddr *net.UDPAddr, config Config) (*Association, error) {
	var d net.Dialer
	pc, err := d.DialContext(ctx, network, raddr.String())
	if err != nil {
		return nil, err
	}

	config.NetConn = pc
	a, err := createClientWithContext(ctx, config)
	if err != nil {
		_ = pc.Close()

		return nil, err
	}

	return a, nil
}

// A Dialer contains options for connecting to an address.
//
// The zero value for each field is equivalent to dialing without that option.
// Dialing with the zero value of Dialer is therefore equivalent
// to just calling the Dial function.
//
// The net.Conn in the config is ignored.
type Dialer struct {
	// PayloadType determines the PayloadProtocolIdentifier used
	PayloadType PayloadProtocolIdentifier

	// Config holds common config
	Config *Config
}

// Dial connects to the given network address and establishes a
// SCTP stream on top. The net.Conn in the config is ignored.
func (d *Dialer) Dial(network string, raddr *net.UDPAddr, streamIdentifier uint16) (*Stream, error) {
	return d.DialContext(context.Background(), network, raddr, streamIdentifier)
}

// DialContext is Dial with the handshake bounded by ctx.
func (d *Dialer) DialContext(
	ctx context.Context, network string, raddr *net.UDPAddr, streamIdentifier uint16,
) (*Stream, error) {
	var config Config
	if d.Config != nil {
		config = *d.Config
	}

	a, err := dialAssociation(ctx, network, raddr, config)
	if err != nil {
		return nil, err
	}

	s, err := a.OpenStream(streamIdentifier, d.PayloadType)
	if err != nil {
		a.Abort(err.Error())

		return nil, err
	}

	return s, nil
}
