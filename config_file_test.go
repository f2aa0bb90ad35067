// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFileConfig = `
name: pong
mtu: 1200
max_receive_buffer_size: 65536
max_message_size: 4096
max_outbound_buffer_size: 131072
rto_max: 2500ms
heartbeat_interval: 15s
ack_delay: 100ms
max_init_retransmits: 4
strict_port_validation: true
`

func applyFileConfig(t *testing.T, fc *FileConfig) Config {
	t.Helper()

	opts, err := fc.Options()
	require.NoError(t, err)

	var cfg Config
	for _, o := range opts {
		require.NoError(t, o.applyClient(&cfg))
	}

	return cfg
}

func TestFileConfig_Load(t *testing.T) {
	fc, err := LoadFileConfig(strings.NewReader(testFileConfig))
	require.NoError(t, err)

	cfg := applyFileConfig(t, fc)
	assert.Equal(t, "pong", cfg.Name)
	assert.Equal(t, uint32(1200), cfg.MTU)
	assert.Equal(t, uint32(65536), cfg.MaxReceiveBufferSize)
	assert.Equal(t, uint32(4096), cfg.MaxMessageSize)
	assert.Equal(t, uint32(131072), cfg.MaxOutboundBufferSize)
	assert.Equal(t, 2500.0, cfg.RTOMax)
	assert.Equal(t, 15*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.AckDelay)
	assert.Equal(t, uint(4), cfg.MaxInitRetransmits)
	assert.True(t, cfg.StrictPortValidation)
}

func TestFileConfig_Empty(t *testing.T) {
	fc, err := LoadFileConfig(strings.NewReader(""))
	require.NoError(t, err)

	opts, err := fc.Options()
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestFileConfig_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown key":       "mtu: 1200\nwindow: 3\n",
		"bad duration":      "rto_max: soon\n",
		"negative duration": "ack_delay: -1s\n",
		"bad type":          "mtu: big\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFileConfig(strings.NewReader(doc))
			assert.ErrorIs(t, err, errInvalidFileConfig)
		})
	}
}

func TestFileConfig_Read(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sctp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testFileConfig), 0o600))

	fc, err := ReadFileConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "pong", fc.Name)

	_, err = ReadFileConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
