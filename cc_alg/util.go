// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package cc_alg //nolint:revive,stylecheck

const serialHalf = 1 << 31

// serialGTE compares TSNs with RFC 1982 serial number arithmetic.
func serialGTE(i1, i2 uint32) bool {
	return i1 == i2 || (i1 < i2 && i2-i1 > serialHalf) || (i1 > i2 && i1-i2 < serialHalf)
}

// InitialWindow returns min(4*MTU, max(2*MTU, 4380)) from RFC 4960 Sec 7.2.1.
func InitialWindow(mtu uint32) uint32 {
	return min(4*mtu, max(2*mtu, 4380))
}
