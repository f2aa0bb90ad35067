// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamHeader(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		ph := paramHeader{typ: heartbeatInfo, raw: []byte{1, 2, 3}}
		raw, err := ph.marshal()
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x07, 1, 2, 3}, raw)

		var got paramHeader
		require.NoError(t, got.unmarshal(raw))
		assert.Equal(t, heartbeatInfo, got.typ)
		assert.Equal(t, 7, got.length())
	})

	t.Run("short", func(t *testing.T) {
		var ph paramHeader
		assert.ErrorIs(t, ph.unmarshal([]byte{0x00}), ErrParamHeaderTooShort)
		assert.ErrorIs(t, ph.unmarshal([]byte{0x00, 0x01, 0x00}), ErrParamHeaderTooShort)
	})

	t.Run("bad length", func(t *testing.T) {
		var ph paramHeader
		assert.ErrorIs(t, ph.unmarshal([]byte{0x00, 0x01, 0x00, 0x02}), ErrParamHeaderSelfReportedLengthShorter)
		assert.ErrorIs(t, ph.unmarshal([]byte{0x00, 0x01, 0x00, 0x09, 0x01}), ErrParamHeaderSelfReportedLengthLonger)
		assert.ErrorIs(t, ph.unmarshal([]byte{0x00, 0x01, 0x00, 0x09, 0x01}), ErrInvalidChunk)
	})
}

func TestParamType_UnrecognizedAction(t *testing.T) {
	skip, report := paramType(0x0101).unrecognizedAction()
	assert.False(t, skip)
	assert.False(t, report)

	skip, report = paramType(0xc101).unrecognizedAction()
	assert.True(t, skip)
	assert.True(t, report)

	skip, report = paramType(0x8101).unrecognizedAction()
	assert.True(t, skip)
	assert.False(t, report)
}

func TestParseParams(t *testing.T) {
	cookie := &paramStateCookie{cookie: []byte{0xaa, 0xbb, 0xcc}}
	ext := &paramSupportedExtensions{ChunkTypes: []chunkType{ctReconfig, ctForwardTSN}}

	known, err := marshalParams(nil, []param{cookie, ext})
	require.NoError(t, err)
	// cookie is 7 bytes and padded to 8 because it is not the last parameter
	assert.Len(t, known, 8+6)

	t.Run("known only", func(t *testing.T) {
		params, unrecognized, err := parseParams(known)
		require.NoError(t, err)
		assert.Empty(t, unrecognized)
		require.Len(t, params, 2)

		gotCookie, ok := params[0].(*paramStateCookie)
		require.True(t, ok)
		assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, gotCookie.cookie)

		gotExt, ok := params[1].(*paramSupportedExtensions)
		require.True(t, ok)
		assert.True(t, gotExt.supports(ctForwardTSN))
		assert.False(t, gotExt.supports(ctAbort))
	})

	t.Run("skip and report", func(t *testing.T) {
		unknown := []byte{0xc1, 0x23, 0x00, 0x05, 0x01, 0x00, 0x00, 0x00}
		raw := append(append([]byte{}, unknown...), known...)

		params, unrecognized, err := parseParams(raw)
		require.NoError(t, err)
		assert.Len(t, params, 2)
		require.Len(t, unrecognized, 1)
		assert.Equal(t, unknown[:5], unrecognized[0])
	})

	t.Run("skip silently", func(t *testing.T) {
		raw := append([]byte{0x81, 0x23, 0x00, 0x04}, known...)

		params, unrecognized, err := parseParams(raw)
		require.NoError(t, err)
		assert.Len(t, params, 2)
		assert.Empty(t, unrecognized)
	})

	t.Run("stop", func(t *testing.T) {
		raw := append([]byte{0x41, 0x23, 0x00, 0x04}, known...)

		params, unrecognized, err := parseParams(raw)
		require.NoError(t, err)
		assert.Empty(t, params)
		assert.Len(t, unrecognized, 1)
	})
}

func TestParamOutgoingResetRequest(t *testing.T) {
	req := &paramOutgoingResetRequest{
		reconfigRequestSequenceNumber:  1,
		reconfigResponseSequenceNumber: 2,
		senderLastTSN:                  3,
		streamIdentifiers:              []uint16{4, 5},
	}
	raw, err := req.marshal()
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x00, 0x0d, 0x00, 0x14,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x03,
		0x00, 0x04, 0x00, 0x05,
	}, raw)

	got := &paramOutgoingResetRequest{}
	_, err = got.unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, []uint16{4, 5}, got.streamIdentifiers)
	assert.Equal(t, uint32(3), got.senderLastTSN)

	_, err = (&paramOutgoingResetRequest{}).unmarshal([]byte{0x00, 0x0d, 0x00, 0x08, 0, 0, 0, 1})
	assert.ErrorIs(t, err, ErrSSNResetRequestParamTooShort)
}

func TestParamReconfigResponse(t *testing.T) {
	resp := &paramReconfigResponse{
		reconfigResponseSequenceNumber: 9,
		result:                         reconfigResultInProgress,
	}
	raw, err := resp.marshal()
	require.NoError(t, err)

	got := &paramReconfigResponse{}
	_, err = got.unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), got.reconfigResponseSequenceNumber)
	assert.Equal(t, reconfigResultInProgress, got.result)
	assert.Empty(t, got.nextTSNs)
	assert.Equal(t, "6: In progress", got.result.String())

	_, err = (&paramReconfigResponse{}).unmarshal([]byte{0x00, 0x10, 0x00, 0x0a, 0, 0, 0, 1, 0, 0})
	assert.ErrorIs(t, err, ErrInvalidChunk)

	withTSNs := &paramReconfigResponse{result: reconfigResultSuccessPerformed, nextTSNs: []uint32{100, 200}}
	raw, err = withTSNs.marshal()
	require.NoError(t, err)
	assert.Len(t, raw, 20)

	got = &paramReconfigResponse{}
	_, err = got.unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, []uint32{100, 200}, got.nextTSNs)

	_, err = (&paramReconfigResponse{nextTSNs: []uint32{1, 2, 3}}).marshal()
	assert.ErrorIs(t, err, ErrReconfigRespParamInvalidLength)
	assert.Equal(t, "Unknown reconfigResult: 42", reconfigResult(42).String())
}
