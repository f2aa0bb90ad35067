// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var errInvalidFileConfig = errors.New("invalid association config file")

// FileConfig is the YAML form of the association options.
//
//	name: pong
//	mtu: 1200
//	max_receive_buffer_size: 1048576
//	max_message_size: 65536
//	max_outbound_buffer_size: 262144
//	rto_max: 2s
//	heartbeat_interval: 30s
//	ack_delay: 200ms
//	max_init_retransmits: 8
//	strict_port_validation: true
//
// Durations use time.ParseDuration syntax. Omitted fields keep the defaults.
type FileConfig struct {
	Name                  string `yaml:"name"`
	MTU                   uint32 `yaml:"mtu"`
	MaxReceiveBufferSize  uint32 `yaml:"max_receive_buffer_size"`
	MaxMessageSize        uint32 `yaml:"max_message_size"`
	MaxOutboundBufferSize uint32 `yaml:"max_outbound_buffer_size"`
	RTOMax                string `yaml:"rto_max"`
	HeartbeatInterval     string `yaml:"heartbeat_interval"`
	AckDelay              string `yaml:"ack_delay"`
	MaxInitRetransmits    uint   `yaml:"max_init_retransmits"`
	StrictPortValidation  bool   `yaml:"strict_port_validation"`
}

// LoadFileConfig decodes a YAML document. Unknown keys are rejected.
func LoadFileConfig(r io.Reader) (*FileConfig, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fc FileConfig
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", errInvalidFileConfig, err)
	}

	if _, err := fc.Options(); err != nil {
		return nil, err
	}

	return &fc, nil
}

// ReadFileConfig loads the YAML file at path.
func ReadFileConfig(path string) (*FileConfig, error) {
	raw, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, err
	}

	return LoadFileConfig(bytes.NewReader(raw))
}

// Options turns the document into association options.
func (fc *FileConfig) Options() ([]AssociationOption, error) {
	var opts []AssociationOption

	if fc.Name != "" {
		opts = append(opts, WithName(fc.Name))
	}
	if fc.MTU != 0 {
		opts = append(opts, WithMTU(fc.MTU))
	}
	if fc.MaxReceiveBufferSize != 0 {
		opts = append(opts, WithMaxReceiveBufferSize(fc.MaxReceiveBufferSize))
	}
	if fc.MaxMessageSize != 0 {
		opts = append(opts, WithMaxMessageSize(fc.MaxMessageSize))
	}
	if fc.MaxOutboundBufferSize != 0 {
		opts = append(opts, WithMaxOutboundBufferSize(fc.MaxOutboundBufferSize))
	}

	rtoMax, err := parseFileDuration("rto_max", fc.RTOMax)
	if err != nil {
		return nil, err
	}
	if rtoMax > 0 {
		opts = append(opts, WithRTOMax(float64(rtoMax.Milliseconds())))
	}

	heartbeat, err := parseFileDuration("heartbeat_interval", fc.HeartbeatInterval)
	if err != nil {
		return nil, err
	}
	if heartbeat > 0 {
		opts = append(opts, WithHeartbeatInterval(heartbeat))
	}

	ackDelay, err := parseFileDuration("ack_delay", fc.AckDelay)
	if err != nil {
		return nil, err
	}
	if ackDelay > 0 {
		opts = append(opts, WithAckDelay(ackDelay))
	}

	if n := fc.MaxInitRetransmits; n != 0 {
		// only clients send INIT, servers ignore it
		opts = append(opts, sharedOption(func(c *Config) error {
			c.MaxInitRetransmits = n

			return nil
		}))
	}
	if fc.StrictPortValidation {
		opts = append(opts, WithStrictPortValidation(true))
	}

	return opts, nil
}

func parseFileDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", errInvalidFileConfig, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", errInvalidFileConfig, key)
	}

	return d, nil
}
