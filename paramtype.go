// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"encoding/binary"
	"fmt"
)

// paramType represents a SCTP INIT/INITACK parameter.
type paramType uint16

const (
	heartbeatInfo      paramType = 1     // Heartbeat Info	[RFC9260]
	ipV4Addr           paramType = 5     // IPv4 IP	[RFC9260]
	ipV6Addr           paramType = 6     // IPv6 IP	[RFC9260]
	stateCookie        paramType = 7     // State Cookie	[RFC9260]
	unrecognizedParam  paramType = 8     // Unrecognized Parameters	[RFC9260]
	cookiePreservative paramType = 9     // Cookie Preservative	[RFC9260]
	supportedAddrTypes paramType = 12    // Supported IP Types	[RFC9260]
	outSSNResetReq     paramType = 13    // Outgoing SSN Reset Request Parameter	[RFC6525]
	incSSNResetReq     paramType = 14    // Incoming SSN Reset Request Parameter	[RFC6525]
	reconfigResp       paramType = 16    // Re-configuration Response Parameter	[RFC6525]
	ecnCapable         paramType = 32768 // ECN Capable (0x8000)
	supportedExt       paramType = 32776 // Supported Extensions (0x8008)	[RFC5061]
	forwardTSNSupp     paramType = 49152 // Forward TSN supported (0xC000)	[RFC3758]
)

func parseParamType(raw []byte) (paramType, error) {
	if len(raw) < 2 {
		return paramType(0), ErrParamHeaderTooShort
	}

	return paramType(binary.BigEndian.Uint16(raw)), nil
}

func (p paramType) String() string { //nolint:cyclop
	switch p {
	case heartbeatInfo:
		return "Heartbeat Info"
	case ipV4Addr:
		return "IPv4 IP"
	case ipV6Addr:
		return "IPv6 IP"
	case stateCookie:
		return "State Cookie"
	case unrecognizedParam:
		return "Unrecognized Parameters"
	case cookiePreservative:
		return "Cookie Preservative"
	case supportedAddrTypes:
		return "Supported IP Types"
	case outSSNResetReq:
		return "Outgoing SSN Reset Request Parameter"
	case incSSNResetReq:
		return "Incoming SSN Reset Request Parameter"
	case reconfigResp:
		return "Re-configuration Response Parameter"
	case ecnCapable:
		return "ECN Capable"
	case supportedExt:
		return "Supported Extensions"
	case forwardTSNSupp:
		return "Forward TSN supported"
	default:
		return fmt.Sprintf("Unknown ParamType: %d", p)
	}
}

// unrecognizedAction mirrors chunkType.unrecognizedAction for parameters
// (RFC 9260 section 3.2.1).
func (p paramType) unrecognizedAction() (skip, report bool) {
	return p&0x8000 != 0, p&0x4000 != 0
}
