// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"sort"
	"time"
)

const defaultMinRTTWindow = 30 * time.Second

// minRTTFilter tracks the smallest RTT sample seen within a sliding window.
// Samples are kept in a deque with non-decreasing values so the head is
// always the minimum. The caller holds the association lock.
type minRTTFilter struct {
	window  time.Duration
	samples []rttSample
}

type rttSample struct {
	at  time.Time
	rtt time.Duration
}

func newMinRTTFilter(window time.Duration) *minRTTFilter {
	if window <= 0 {
		window = defaultMinRTTWindow
	}

	return &minRTTFilter{window: window}
}

func (f *minRTTFilter) expire(now time.Time) {
	if len(f.samples) == 0 {
		return
	}

	cutoff := now.Add(-f.window)
	first := sort.Search(len(f.samples), func(i int) bool {
		return !f.samples[i].at.Before(cutoff)
	})
	if first > 0 {
		f.samples = f.samples[first:]
	}
}

// add records a sample, dropping older samples that can no longer be the
// minimum.
func (f *minRTTFilter) add(now time.Time, rtt time.Duration) {
	f.expire(now)

	i := len(f.samples)
	for i > 0 && f.samples[i-1].rtt >= rtt {
		i--
	}
	f.samples = append(f.samples[:i], rttSample{at: now, rtt: rtt})
}

// min returns the windowed minimum, or 0 without samples.
func (f *minRTTFilter) min(now time.Time) time.Duration {
	f.expire(now)

	if len(f.samples) == 0 {
		return 0
	}

	return f.samples[0].rtt
}
