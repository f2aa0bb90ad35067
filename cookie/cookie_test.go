// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package cookie

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func newTestJar(t *testing.T, clock *fakeClock, lifetime time.Duration) *Jar {
	t.Helper()

	jar, err := NewJar(WithClock(clock.now), WithLifetime(lifetime))
	require.NoError(t, err)

	return jar
}

func TestJar_SealOpen(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	jar := newTestJar(t, clock, 10*time.Second)

	sealed := jar.Seal([]byte("association state"))
	body, err := jar.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("association state"), body)
	assert.Equal(t, 10*time.Second, jar.Lifetime())
}

func TestJar_Tampered(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	jar := newTestJar(t, clock, 10*time.Second)

	sealed := jar.Seal([]byte{1, 2, 3, 4})

	for i := range sealed {
		if i == 0 {
			continue
		}
		bad := append([]byte{}, sealed...)
		bad[i] ^= 0x40
		_, err := jar.Open(bad)
		assert.ErrorIs(t, err, ErrBadMAC, "byte %d", i)
	}

	other := newTestJar(t, clock, 10*time.Second)
	_, err := other.Open(sealed)
	assert.ErrorIs(t, err, ErrBadMAC, "different secret")
}

func TestJar_Malformed(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	jar := newTestJar(t, clock, 10*time.Second)

	_, err := jar.Open(nil)
	assert.ErrorIs(t, err, ErrMalformed)

	sealed := jar.Seal(nil)
	sealed[0] = 9
	_, err = jar.Open(sealed)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestJar_Stale(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	jar := newTestJar(t, clock, 10*time.Second)

	sealed := jar.Seal([]byte("tags"))

	clock.t = clock.t.Add(10 * time.Second)
	_, err := jar.Open(sealed)
	require.NoError(t, err, "valid up to the end of its lifetime")

	clock.t = clock.t.Add(1500 * time.Millisecond)
	body, err := jar.Open(sealed)
	var stale *StaleError
	require.True(t, errors.As(err, &stale))
	assert.Equal(t, 1500*time.Millisecond, stale.Staleness)
	assert.Equal(t, []byte("tags"), body, "body is still returned")
}

func TestJar_Consume(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	jar := newTestJar(t, clock, 10*time.Second)

	a := jar.Seal([]byte("a"))
	b := jar.Seal([]byte("b"))

	assert.True(t, jar.Consume(a))
	assert.False(t, jar.Consume(a), "replay")
	assert.True(t, jar.Consume(b))

	// one rotation keeps the previous generation
	clock.t = clock.t.Add(11 * time.Second)
	assert.False(t, jar.Consume(a))

	// after two rotations the cookie is long stale and forgotten
	clock.t = clock.t.Add(11 * time.Second)
	assert.True(t, jar.Consume(b))
	assert.False(t, jar.Consume(b))

	assert.False(t, jar.Consume([]byte{1}))
}

func TestJar_InvalidLifetime(t *testing.T) {
	_, err := NewJar(WithLifetime(0))
	assert.ErrorIs(t, err, ErrInvalidLifetime)
}
