// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"sync/atomic"
	"time"
)

type associationStats struct {
	nPacketsSent     atomic.Uint64
	nPacketsReceived atomic.Uint64
	nPacketsDropped  atomic.Uint64
	nDATAsSent       atomic.Uint64
	nDATAsReceived   atomic.Uint64
	nSACKsSent       atomic.Uint64
	nSACKsReceived   atomic.Uint64
	nT3Timeouts      atomic.Uint64
	nAckTimeouts     atomic.Uint64
	nFastRetrans     atomic.Uint64
}

func (s *associationStats) incPacketsSent()     { s.nPacketsSent.Add(1) }
func (s *associationStats) incPacketsReceived() { s.nPacketsReceived.Add(1) }
func (s *associationStats) incPacketsDropped()  { s.nPacketsDropped.Add(1) }
func (s *associationStats) addDATAsSent(n int)  { s.nDATAsSent.Add(uint64(n)) } //nolint:gosec
func (s *associationStats) incDATAsReceived()   { s.nDATAsReceived.Add(1) }
func (s *associationStats) incSACKsSent()       { s.nSACKsSent.Add(1) }
func (s *associationStats) incSACKsReceived()   { s.nSACKsReceived.Add(1) }
func (s *associationStats) incT3Timeouts()      { s.nT3Timeouts.Add(1) }
func (s *associationStats) incAckTimeouts()     { s.nAckTimeouts.Add(1) }
func (s *associationStats) incFastRetrans()     { s.nFastRetrans.Add(1) }

func (s *associationStats) getNumPacketsSent() uint64     { return s.nPacketsSent.Load() }
func (s *associationStats) getNumPacketsReceived() uint64 { return s.nPacketsReceived.Load() }
func (s *associationStats) getNumPacketsDropped() uint64  { return s.nPacketsDropped.Load() }
func (s *associationStats) getNumDATAsSent() uint64       { return s.nDATAsSent.Load() }
func (s *associationStats) getNumDATAsReceived() uint64   { return s.nDATAsReceived.Load() }
func (s *associationStats) getNumSACKsSent() uint64       { return s.nSACKsSent.Load() }
func (s *associationStats) getNumSACKsReceived() uint64   { return s.nSACKsReceived.Load() }
func (s *associationStats) getNumT3Timeouts() uint64      { return s.nT3Timeouts.Load() }
func (s *associationStats) getNumAckTimeouts() uint64     { return s.nAckTimeouts.Load() }
func (s *associationStats) getNumFastRetrans() uint64     { return s.nFastRetrans.Load() }

// Stats is a point in time snapshot of an association.
type Stats struct {
	State string

	PacketsSent     uint64
	PacketsReceived uint64
	PacketsDropped  uint64
	BytesSent       uint64
	BytesReceived   uint64
	DATAsSent       uint64
	DATAsReceived   uint64
	SACKsSent       uint64
	SACKsReceived   uint64
	T3Timeouts      uint64
	AckTimeouts     uint64
	FastRetransmits uint64

	CongestionWindow   uint32
	SlowStartThreshold uint32
	ReceiverWindow     uint32

	RTO    time.Duration
	SRTT   time.Duration
	MinRTT time.Duration

	// Outstanding is the number of bytes sent and not yet acknowledged.
	Outstanding    int
	BufferedAmount int
}

// Stats returns a snapshot of the association's counters and windows.
func (a *Association) Stats() Stats {
	// the min RTT filter expires samples on read
	a.lock.Lock()
	defer a.lock.Unlock()

	return Stats{
		State:              getAssociationStateString(a.getState()),
		PacketsSent:        a.stats.getNumPacketsSent(),
		PacketsReceived:    a.stats.getNumPacketsReceived(),
		PacketsDropped:     a.stats.getNumPacketsDropped(),
		BytesSent:          atomic.LoadUint64(&a.bytesSent),
		BytesReceived:      atomic.LoadUint64(&a.bytesReceived),
		DATAsSent:          a.stats.getNumDATAsSent(),
		DATAsReceived:      a.stats.getNumDATAsReceived(),
		SACKsSent:          a.stats.getNumSACKsSent(),
		SACKsReceived:      a.stats.getNumSACKsReceived(),
		T3Timeouts:         a.stats.getNumT3Timeouts(),
		AckTimeouts:        a.stats.getNumAckTimeouts(),
		FastRetransmits:    a.stats.getNumFastRetrans(),
		CongestionWindow:   a.cc.CongestionWindow(),
		SlowStartThreshold: a.cc.SlowStartThreshold(),
		ReceiverWindow:     a.rwnd,
		RTO:                msToDuration(a.rtoMgr.getRTO()),
		SRTT:               msToDuration(a.rtoMgr.srtt),
		MinRTT:             a.minRTT.min(time.Now()),
		Outstanding:        a.inflightQueue.getNumBytes(),
		BufferedAmount:     a.pendingQueue.getNumBytes() + a.inflightQueue.getNumBytes(),
	}
}
