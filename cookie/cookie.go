// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package cookie mints and verifies SCTP State Cookies (RFC 9260 Sec 5.1.3).
//
// A cookie is an opaque body sealed with a creation time, a lifetime and a
// keyed BLAKE2b-256 MAC. The endpoint that minted it keeps no state until the
// cookie comes back, and a Jar remembers which cookies were already used.
package cookie

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/pion/randutil"
	"golang.org/x/crypto/blake2b"
)

const (
	version         byte = 1
	headerSize           = 1 + 8 + 4
	macSize              = blake2b.Size256
	keySize              = 32
	defaultLifetime      = 60 * time.Second

	// replay filter sizing, per generation
	expectedCookies   = 100000
	falsePositiveRate = 0.0001
)

var (
	// ErrMalformed is returned for a cookie too short or of an unknown version.
	ErrMalformed = errors.New("malformed state cookie")
	// ErrBadMAC is returned for a cookie that was not minted by this jar or
	// was altered.
	ErrBadMAC = errors.New("state cookie MAC mismatch")
	// ErrInvalidLifetime is returned by WithLifetime for a non-positive value.
	ErrInvalidLifetime = errors.New("cookie lifetime must be positive")
)

// StaleError is returned by Open for an authentic cookie whose lifetime has
// passed. Staleness is how long ago it expired.
type StaleError struct {
	Staleness time.Duration
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("stale state cookie: expired %s ago", e.Staleness)
}

// Option configures a Jar.
type Option func(*Jar) error

// WithLifetime sets how long a minted cookie stays valid.
func WithLifetime(d time.Duration) Option {
	return func(j *Jar) error {
		if d <= 0 {
			return ErrInvalidLifetime
		}
		j.lifetime = d

		return nil
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(j *Jar) error {
		j.now = now

		return nil
	}
}

// Jar seals cookies with a per-jar secret and guards against replay. A Jar
// is safe for concurrent use; listeners share one between associations.
type Jar struct {
	key      [keySize]byte
	lifetime time.Duration
	now      func() time.Time

	mu sync.Mutex
	// Two generations of consumed cookies, each covering one lifetime.
	// Anything older is stale and never reaches the filter.
	current  *bloom.BloomFilter
	previous *bloom.BloomFilter
	rotated  time.Time
}

// NewJar creates a Jar with a fresh random secret.
func NewJar(opts ...Option) (*Jar, error) {
	j := &Jar{
		lifetime: defaultLifetime,
		now:      time.Now,
		current:  bloom.NewWithEstimates(expectedCookies, falsePositiveRate),
		previous: bloom.NewWithEstimates(expectedCookies, falsePositiveRate),
	}

	for _, o := range opts {
		if err := o(j); err != nil {
			return nil, err
		}
	}

	for i := 0; i < keySize; i += 8 {
		v, err := randutil.CryptoUint64()
		if err != nil {
			return nil, err
		}
		binary.BigEndian.PutUint64(j.key[i:], v)
	}
	j.rotated = j.now()

	return j, nil
}

// Lifetime returns the validity period of minted cookies.
func (j *Jar) Lifetime() time.Duration {
	return j.lifetime
}

func (j *Jar) mac(data []byte) []byte {
	h, err := blake2b.New256(j.key[:])
	if err != nil {
		// only fails for keys longer than 64 bytes
		panic(err)
	}
	h.Write(data) //nolint:errcheck

	return h.Sum(nil)
}

// Seal wraps body into a cookie valid for the jar's lifetime.
//
//	version | created (unix ms) | lifetime (ms) | body | MAC
func (j *Jar) Seal(body []byte) []byte {
	out := make([]byte, headerSize, headerSize+len(body)+macSize)
	out[0] = version
	binary.BigEndian.PutUint64(out[1:], uint64(j.now().UnixMilli())) //nolint:gosec
	binary.BigEndian.PutUint32(out[9:], uint32(j.lifetime.Milliseconds())) //nolint:gosec
	out = append(out, body...)

	return append(out, j.mac(out)...)
}

// Open authenticates a cookie and returns its body. An authentic but
// expired cookie returns the body along with a *StaleError so the caller can
// still address the peer.
func (j *Jar) Open(cookie []byte) ([]byte, error) {
	if len(cookie) < headerSize+macSize || cookie[0] != version {
		return nil, ErrMalformed
	}

	signed := cookie[:len(cookie)-macSize]
	if subtle.ConstantTimeCompare(j.mac(signed), cookie[len(signed):]) != 1 {
		return nil, ErrBadMAC
	}

	created := time.UnixMilli(int64(binary.BigEndian.Uint64(cookie[1:]))) //nolint:gosec
	lifetime := time.Duration(binary.BigEndian.Uint32(cookie[9:])) * time.Millisecond
	body := signed[headerSize:]

	if late := j.now().Sub(created.Add(lifetime)); late > 0 {
		return body, &StaleError{Staleness: late}
	}

	return body, nil
}

// Consume marks an opened cookie as used. It returns false if the cookie
// was consumed before. False positives of the filter make a fresh cookie
// look used at the configured rate; the peer then retries from INIT.
func (j *Jar) Consume(cookie []byte) bool {
	if len(cookie) < macSize {
		return false
	}
	tag := cookie[len(cookie)-macSize:]

	j.mu.Lock()
	defer j.mu.Unlock()

	if now := j.now(); now.Sub(j.rotated) >= j.lifetime {
		j.previous, j.current = j.current, j.previous.ClearAll()
		j.rotated = now
	}

	if j.previous.Test(tag) {
		return false
	}

	return !j.current.TestOrAdd(tag)
}
