// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"fmt"
)

type param interface {
	marshal() ([]byte, error)
	length() int
}

// ErrParamTypeUnhandled is returned if unknown parameter type is specified.
var ErrParamTypeUnhandled = fmt.Errorf("%w: unhandled ParamType", ErrInvalidChunk)

func buildParam(t paramType, rawParam []byte) (param, error) { //nolint:cyclop
	switch t {
	case forwardTSNSupp:
		return (&paramForwardTSNSupported{}).unmarshal(rawParam)
	case supportedExt:
		return (&paramSupportedExtensions{}).unmarshal(rawParam)
	case ecnCapable:
		return (&paramECNCapable{}).unmarshal(rawParam)
	case stateCookie:
		return (&paramStateCookie{}).unmarshal(rawParam)
	case heartbeatInfo:
		return (&paramHeartbeatInfo{}).unmarshal(rawParam)
	case outSSNResetReq:
		return (&paramOutgoingResetRequest{}).unmarshal(rawParam)
	case reconfigResp:
		return (&paramReconfigResponse{}).unmarshal(rawParam)
	case unrecognizedParam:
		return (&paramUnrecognized{}).unmarshal(rawParam)
	default:
		return nil, fmt.Errorf("%w: %v", ErrParamTypeUnhandled, t)
	}
}

// marshalParams concatenates parameters, padding every one except the last.
// The caller pads the enclosing chunk.
func marshalParams(out []byte, params []param) ([]byte, error) {
	for idx, p := range params {
		pp, err := p.marshal()
		if err != nil {
			return nil, err
		}

		out = append(out, pp...)
		if idx != len(params)-1 {
			out = padByte(out, getPadding(len(pp)))
		}
	}

	return out, nil
}

// parseParams decodes a run of TLV parameters. Parameters of unknown type are
// handled with their action bits; those with the report bit set are returned
// raw so they can be echoed back in an Unrecognized Parameters cause.
func parseParams(raw []byte) (params []param, unrecognized [][]byte, err error) {
	offset := 0
	for len(raw)-offset >= paramHeaderLength {
		var hdr paramHeader
		if err = hdr.unmarshal(raw[offset:]); err != nil {
			return nil, nil, err
		}

		p, buildErr := buildParam(hdr.typ, raw[offset:offset+hdr.length()])
		if buildErr != nil {
			if !isUnknownParam(hdr.typ) {
				return nil, nil, buildErr
			}

			skip, report := hdr.typ.unrecognizedAction()
			if report {
				unrecognized = append(unrecognized, raw[offset:offset+hdr.length()])
			}
			if !skip {
				return params, unrecognized, nil
			}
		} else {
			params = append(params, p)
		}

		offset += hdr.length() + getPadding(hdr.length())
	}

	return params, unrecognized, nil
}

func isUnknownParam(t paramType) bool {
	switch t {
	case forwardTSNSupp, supportedExt, ecnCapable, stateCookie, heartbeatInfo,
		outSSNResetReq, reconfigResp, unrecognizedParam:
		return false
	default:
		return true
	}
}
