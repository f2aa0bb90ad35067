// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sctp

import (
	"math"
	"time"
)

// RTO values in milliseconds (RFC 4960 Sec 15).
const (
	rtoInitial float64 = 3.0 * 1000 // msec
	rtoMin     float64 = 1.0 * 1000 // msec
	rtoMax     float64 = 60.0 * 1000
	rtoAlpha   float64 = 0.125
	rtoBeta    float64 = 0.25
)

// Retransmission limits.
const (
	maxInitRetrans     uint = 10
	maxShutdownRetrans uint = 10
	pathMaxRetrans     uint = 5
	noMaxRetrans       uint = 0
)

// rtoManager computes the retransmission timeout per RFC 6298.
type rtoManager struct {
	srtt     float64
	rttvar   float64
	rto      float64
	noUpdate bool
	rtoMax   float64
}

func newRTOManager(maxRTO float64) *rtoManager {
	if maxRTO <= 0 {
		maxRTO = rtoMax
	}

	return &rtoManager{
		rto:    rtoInitial,
		rtoMax: maxRTO,
	}
}

// setNewRTT takes a newly measured RTT then adjusts the RTO in msec.
func (m *rtoManager) setNewRTT(rtt float64) float64 {
	if m.noUpdate {
		return m.srtt
	}

	if m.srtt == 0 {
		// First measurement
		m.srtt = rtt
		m.rttvar = rtt / 2
	} else {
		// Subsequent rtt measurement
		m.rttvar = (1-rtoBeta)*m.rttvar + rtoBeta*(math.Abs(m.srtt-rtt))
		m.srtt = (1-rtoAlpha)*m.srtt + rtoAlpha*rtt
	}
	m.rto = math.Min(math.Max(m.srtt+4*m.rttvar, rtoMin), m.rtoMax)

	return m.srtt
}

// getRTO simply returns the current RTO in msec.
func (m *rtoManager) getRTO() float64 {
	return m.rto
}

// backoff doubles the RTO after a T3-rtx expiry, bounded by rtoMax.
func (m *rtoManager) backoff() {
	m.rto = math.Min(m.rto*2, m.rtoMax)
}

// reset resets the RTO variables to the initial values.
func (m *rtoManager) reset() {
	if m.noUpdate {
		return
	}

	m.srtt = 0
	m.rttvar = 0
	m.rto = rtoInitial
}

// set RTO value for testing.
func (m *rtoManager) setRTO(rto float64, noUpdate bool) {
	m.rto = rto
	m.noUpdate = noUpdate
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// timerID names a slot of the timer table.
type timerID int

const (
	timerT1Init timerID = iota
	timerT1Cookie
	timerT2Shutdown
	timerT3RTX
	timerReconfig
	timerAck
	timerHeartbeat
	numTimers
)

func (id timerID) String() string {
	switch id {
	case timerT1Init:
		return "T1-init"
	case timerT1Cookie:
		return "T1-cookie"
	case timerT2Shutdown:
		return "T2-shutdown"
	case timerT3RTX:
		return "T3-rtx"
	case timerReconfig:
		return "T-reconfig"
	case timerAck:
		return "ack"
	case timerHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// timerObserver receives expiries dispatched by timerTable.expire.
type timerObserver interface {
	onRetransmissionTimeout(id timerID, n uint)
	onRetransmissionFailure(id timerID)
	onAckTimeout()
}

type timerSlot struct {
	running    bool
	deadline   time.Time
	interval   float64 // msec
	nRtos      uint
	maxRetrans uint // 0 means unbounded
	backoff    bool
}

// timerTable holds every association timer. It owns no goroutine: the
// driver asks for the earliest deadline, sleeps until then and calls expire.
type timerTable struct {
	slots  [numTimers]timerSlot
	rtoMax float64
}

func newTimerTable(maxRTO float64) *timerTable {
	if maxRTO <= 0 {
		maxRTO = rtoMax
	}

	t := &timerTable{rtoMax: maxRTO}
	t.slots[timerT1Init] = timerSlot{maxRetrans: maxInitRetrans, backoff: true}
	t.slots[timerT1Cookie] = timerSlot{maxRetrans: maxInitRetrans, backoff: true}
	t.slots[timerT2Shutdown] = timerSlot{maxRetrans: maxShutdownRetrans, backoff: true}
	t.slots[timerT3RTX] = timerSlot{maxRetrans: noMaxRetrans, backoff: true}
	t.slots[timerReconfig] = timerSlot{maxRetrans: noMaxRetrans, backoff: true}
	t.slots[timerAck] = timerSlot{}
	t.slots[timerHeartbeat] = timerSlot{maxRetrans: pathMaxRetrans}

	return t
}

func (t *timerTable) setMaxRetrans(id timerID, n uint) {
	t.slots[id].maxRetrans = n
}

// start arms the slot unless it is already running. Returns true if armed.
func (t *timerTable) start(id timerID, now time.Time, interval float64) bool {
	slot := &t.slots[id]
	if slot.running {
		return false
	}

	slot.running = true
	slot.interval = interval
	slot.nRtos = 0
	slot.deadline = now.Add(msToDuration(interval))

	return true
}

// restart re-arms the slot with a fresh interval and retransmit count.
func (t *timerTable) restart(id timerID, now time.Time, interval float64) {
	t.slots[id].running = false
	t.start(id, now, interval)
}

func (t *timerTable) stop(id timerID) {
	slot := &t.slots[id]
	slot.running = false
	slot.nRtos = 0
}

func (t *timerTable) stopAll() {
	for id := range t.slots {
		t.stop(timerID(id))
	}
}

func (t *timerTable) isRunning(id timerID) bool {
	return t.slots[id].running
}

// nextDeadline returns the earliest deadline among running slots.
func (t *timerTable) nextDeadline() (time.Time, bool) {
	var next time.Time
	found := false
	for i := range t.slots {
		slot := &t.slots[i]
		if !slot.running {
			continue
		}
		if !found || slot.deadline.Before(next) {
			next = slot.deadline
			found = true
		}
	}

	return next, found
}

// expire fires every slot whose deadline is not after now. Retransmission
// slots re-arm with min(interval*2^n, rtoMax); a slot exceeding its
// maxRetrans stops and reports a failure instead.
func (t *timerTable) expire(now time.Time, observer timerObserver) {
	for i := range t.slots {
		id := timerID(i)
		slot := &t.slots[i]
		if !slot.running || slot.deadline.After(now) {
			continue
		}

		if id == timerAck {
			slot.running = false
			observer.onAckTimeout()

			continue
		}

		slot.nRtos++
		if slot.maxRetrans != noMaxRetrans && slot.nRtos > slot.maxRetrans {
			slot.running = false
			slot.nRtos = 0
			observer.onRetransmissionFailure(id)

			continue
		}

		next := slot.interval
		if slot.backoff {
			next = calculateNextTimeout(slot.interval, slot.nRtos, t.rtoMax)
		}
		slot.deadline = now.Add(msToDuration(next))
		observer.onRetransmissionTimeout(id, slot.nRtos)
	}
}

func calculateNextTimeout(rto float64, nRtos uint, maxRTO float64) float64 {
	// RFC 4096 sec 6.3.3.  Handle T3-rtx Expiration
	//   E2)  For the destination address for which the timer expires, set RTO
	//        <- RTO * 2 ("back off the timer").  The maximum value discussed
	//        in rule C7 above (RTO.max) may be used to provide an upper bound
	//        to this doubling operation.
	if nRtos < 31 {
		return math.Min(rto*float64(uint(1)<<nRtos), maxRTO)
	}

	return maxRTO
}
