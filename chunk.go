// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

// chunk is one decoded SCTP chunk. check reports whether the chunk is
// acceptable, and if not whether the association must abort because of it.
type chunk interface {
	unmarshal(raw []byte) error
	marshal() ([]byte, error)
	check() (abort bool, err error)

	valueLength() int
	String() string
}
