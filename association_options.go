// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"net"
	"time"

	"github.com/pion/logging"
	"github.com/pion/sctp/v2/cookie"
)

// ServerOption configures a Server.
type ServerOption interface {
	applyServer(*Config) error
}

// ClientOption configures a Client.
type ClientOption interface {
	applyClient(*Config) error
}

// AssociationOption applies to both client and server.
type AssociationOption interface {
	ServerOption
	ClientOption
}

// sharedOption wraps an apply function that works for both client and server.
type sharedOption func(*Config) error

func (o sharedOption) applyServer(c *Config) error { return o(c) }
func (o sharedOption) applyClient(c *Config) error { return o(c) }

// WithLoggerFactory sets the logger factory for the association.
func WithLoggerFactory(loggerFactory logging.LoggerFactory) AssociationOption {
	return sharedOption(func(c *Config) error {
		if loggerFactory == nil {
			return errNilLoggerFactory
		}
		c.LoggerFactory = loggerFactory

		return nil
	})
}

// WithName sets the name of the association.
func WithName(name string) AssociationOption {
	return sharedOption(func(c *Config) error {
		c.Name = name

		return nil
	})
}

// WithNetConn sets the net.Conn used by the association.
func WithNetConn(conn net.Conn) AssociationOption {
	return sharedOption(func(c *Config) error {
		if conn == nil {
			return errNilNetConn
		}
		c.NetConn = conn

		return nil
	})
}

// WithMTU sets the MTU size for the association.
// By default this is 1228.
func WithMTU(size uint32) AssociationOption {
	return sharedOption(func(c *Config) error {
		if size == 0 {
			return errZeroMTUOption
		}
		c.MTU = size

		return nil
	})
}

// Congestion control options //

// WithMaxReceiveBufferSize sets the maximum receive buffer size for the association.
// By default this is 1024 * 1024 = 1048576.
func WithMaxReceiveBufferSize(size uint32) AssociationOption {
	return sharedOption(func(c *Config) error {
		if size == 0 {
			return errZeroMaxReceiveBufferOption
		}
		c.MaxReceiveBufferSize = size

		return nil
	})
}

// WithMaxMessageSize sets the maximum message size for the association.
// By default this is 65536.
func WithMaxMessageSize(size uint32) AssociationOption {
	return sharedOption(func(c *Config) error {
		if size == 0 {
			return errZeroMaxMessageSize
		}
		c.MaxMessageSize = size

		return nil
	})
}

// WithRTOMax sets the max retransmission timeout in ms for the association.
func WithRTOMax(rtoMax float64) AssociationOption {
	return sharedOption(func(c *Config) error {
		if rtoMax <= 0 {
			return errInvalidRTOMax
		}
		c.RTOMax = rtoMax

		return nil
	})
}

// WithMaxOutboundBufferSize bounds the bytes queued or in flight. Writes
// block once the bound is reached. Zero, the default, means unbounded.
func WithMaxOutboundBufferSize(size uint32) AssociationOption {
	return sharedOption(func(c *Config) error {
		c.MaxOutboundBufferSize = size

		return nil
	})
}

// WithHeartbeatInterval enables heartbeats on an idle association.
func WithHeartbeatInterval(interval time.Duration) AssociationOption {
	return sharedOption(func(c *Config) error {
		if interval < 0 {
			return errNegativeHeartbeatInterval
		}
		c.HeartbeatInterval = interval

		return nil
	})
}

// WithMaxInitRetransmits limits how many times INIT and COOKIE-ECHO are
// retransmitted before the handshake fails. By default this is 10.
func WithMaxInitRetransmits(n uint) ClientOption {
	return sharedOption(func(c *Config) error {
		c.MaxInitRetransmits = n

		return nil
	})
}

// WithStrictPortValidation drops packets whose ports do not match the
// association.
func WithStrictPortValidation(strict bool) AssociationOption {
	return sharedOption(func(c *Config) error {
		c.StrictPortValidation = strict

		return nil
	})
}

// WithCookieJar sets the jar that mints and verifies state cookies.
func WithCookieJar(jar *cookie.Jar) ServerOption {
	return sharedOption(func(c *Config) error {
		if jar == nil {
			return errNilCookieJar
		}
		c.CookieJar = jar

		return nil
	})
}

// WithCongestionController replaces the default Reno controller.
func WithCongestionController(factory CongestionControllerFactory) AssociationOption {
	return sharedOption(func(c *Config) error {
		c.CongestionController = factory

		return nil
	})
}

// WithAckDelay sets the delayed SACK timeout. Values above 500ms are clamped.
func WithAckDelay(delay time.Duration) AssociationOption {
	return sharedOption(func(c *Config) error {
		c.AckDelay = delay

		return nil
	})
}

// ApplyOptions returns config with opts applied, for callers building a
// Config for ListenAssociation or DialAssociation from options.
func ApplyOptions(config Config, opts ...AssociationOption) (Config, error) {
	for _, o := range opts {
		if err := o.applyClient(&config); err != nil {
			return config, err
		}
	}

	return config, nil
}
