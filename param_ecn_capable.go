// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

// paramECNCapable is recognized so that peers advertising ECN are not
// answered with an Unrecognized Parameters cause. ECN itself is not used.
type paramECNCapable struct {
	paramHeader
}

func (r *paramECNCapable) marshal() ([]byte, error) {
	r.typ = ecnCapable
	r.raw = []byte{}

	return r.paramHeader.marshal()
}

func (r *paramECNCapable) unmarshal(raw []byte) (param, error) {
	if err := r.paramHeader.unmarshal(raw); err != nil {
		return nil, err
	}

	return r, nil
}
