// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

// paramSupportedExtensions lists the extension chunk types an endpoint
// understands (RFC 5061 section 4.2.7).
type paramSupportedExtensions struct {
	paramHeader
	ChunkTypes []chunkType
}

func (s *paramSupportedExtensions) marshal() ([]byte, error) {
	s.typ = supportedExt
	s.raw = make([]byte, len(s.ChunkTypes))
	for i, c := range s.ChunkTypes {
		s.raw[i] = byte(c)
	}

	return s.paramHeader.marshal()
}

func (s *paramSupportedExtensions) unmarshal(raw []byte) (param, error) {
	if err := s.paramHeader.unmarshal(raw); err != nil {
		return nil, err
	}

	s.ChunkTypes = make([]chunkType, 0, len(s.raw))
	for _, t := range s.raw {
		s.ChunkTypes = append(s.ChunkTypes, chunkType(t))
	}

	return s, nil
}

func (s *paramSupportedExtensions) supports(t chunkType) bool {
	for _, c := range s.ChunkTypes {
		if c == t {
			return true
		}
	}

	return false
}
