// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"context"
	"net"

	"github.com/pion/sctp/v2/cookie"
	"github.com/pion/transport/v3/udp"
)

// ListenAssociation creates a SCTP association listener on a UDP address.
// Each remote address gets its own association.
func ListenAssociation(network string, laddr *net.UDPAddr, config Config) (*AssociationListener, error) {
	lc := udp.ListenConfig{}
	parent, err := lc.Listen(network, laddr)
	if err != nil {
		return nil, err
	}

	l, err := NewAssociationListener(parent, config)
	if err != nil {
		_ = parent.Close()

		return nil, err
	}

	return l, nil
}

// NewAssociationListener creates a SCTP association listener
// which accepts connections from an inner Listener.
// The net.Conn in the config is ignored.
func NewAssociationListener(inner net.Listener, config Config) (*AssociationListener, error) {
	// One jar for every association, so a cookie is accepted once per
	// listener.
	if config.CookieJar == nil {
		jar, err := cookie.NewJar()
		if err != nil {
			return nil, err
		}
		config.CookieJar = jar
	}

	return &AssociationListener{
		config: config,
		parent: inner,
	}, nil
}

// AssociationListener represents a SCTP association listener
type AssociationListener struct {
	config Config
	parent net.Listener
}

// Accept waits for and returns the next association to the listener.
// You have to either close or read on all connection that are created.
func (l *AssociationListener) Accept() (*Association, error) {
	return l.AcceptContext(context.Background())
}

// AcceptContext is Accept with a handshake bounded by ctx.
func (l *AssociationListener) AcceptContext(ctx context.Context) (*Association, error) {
	c, err := l.parent.Accept()
	if err != nil {
		return nil, err
	}

	config := l.config
	config.NetConn = c

	return createServerWithContext(ctx, config)
}

// Close closes the listener.
// Any blocked Accept operations will be unblocked and return errors.
// Already Accepted connections are not closed.
func (l *AssociationListener) Close() error {
	return l.parent.Close()
}

// Addr returns the listener's network address.
func (l *AssociationListener) Addr() net.Addr {
	return l.parent.Addr()
}
