// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package metrics exports association statistics to Prometheus.
package metrics

import (
	"sync"

	"github.com/pion/sctp/v2"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sctp"

// Source is anything that reports association stats, usually an
// *sctp.Association.
type Source interface {
	Name() string
	Stats() sctp.Stats
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(sctp.Stats) float64
}

// Collector is a prometheus.Collector over a set of associations. Every
// metric carries an "association" label with the association's name.
type Collector struct {
	mu      sync.RWMutex
	sources map[string]Source

	counters []counterDesc
	gauges   []counterDesc
	state    *prometheus.Desc
}

// NewCollector returns an empty collector. Register it once and Add
// associations as they come and go.
func NewCollector() *Collector {
	labels := []string{"association"}
	newDesc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "association", name), help, labels, nil)
	}

	return &Collector{
		sources: map[string]Source{},
		counters: []counterDesc{
			{newDesc("packets_sent_total", "Packets written to the lower layer."),
				func(s sctp.Stats) float64 { return float64(s.PacketsSent) }},
			{newDesc("packets_received_total", "Packets accepted from the lower layer."),
				func(s sctp.Stats) float64 { return float64(s.PacketsReceived) }},
			{newDesc("packets_dropped_total", "Inbound packets dropped by validation."),
				func(s sctp.Stats) float64 { return float64(s.PacketsDropped) }},
			{newDesc("bytes_sent_total", "Bytes written to the lower layer."),
				func(s sctp.Stats) float64 { return float64(s.BytesSent) }},
			{newDesc("bytes_received_total", "Bytes read from the lower layer."),
				func(s sctp.Stats) float64 { return float64(s.BytesReceived) }},
			{newDesc("data_chunks_sent_total", "DATA chunks sent, retransmissions included."),
				func(s sctp.Stats) float64 { return float64(s.DATAsSent) }},
			{newDesc("data_chunks_received_total", "DATA chunks received."),
				func(s sctp.Stats) float64 { return float64(s.DATAsReceived) }},
			{newDesc("sacks_sent_total", "SACK chunks sent."),
				func(s sctp.Stats) float64 { return float64(s.SACKsSent) }},
			{newDesc("sacks_received_total", "SACK chunks received."),
				func(s sctp.Stats) float64 { return float64(s.SACKsReceived) }},
			{newDesc("t3_timeouts_total", "T3-rtx expiries."),
				func(s sctp.Stats) float64 { return float64(s.T3Timeouts) }},
			{newDesc("ack_timeouts_total", "Delayed SACK timer expiries."),
				func(s sctp.Stats) float64 { return float64(s.AckTimeouts) }},
			{newDesc("fast_retransmits_total", "Chunks marked for fast retransmission."),
				func(s sctp.Stats) float64 { return float64(s.FastRetransmits) }},
		},
		gauges: []counterDesc{
			{newDesc("cwnd_bytes", "Congestion window."),
				func(s sctp.Stats) float64 { return float64(s.CongestionWindow) }},
			{newDesc("ssthresh_bytes", "Slow start threshold."),
				func(s sctp.Stats) float64 { return float64(s.SlowStartThreshold) }},
			{newDesc("rwnd_bytes", "Peer receiver window."),
				func(s sctp.Stats) float64 { return float64(s.ReceiverWindow) }},
			{newDesc("rto_seconds", "Retransmission timeout."),
				func(s sctp.Stats) float64 { return s.RTO.Seconds() }},
			{newDesc("srtt_seconds", "Smoothed round trip time."),
				func(s sctp.Stats) float64 { return s.SRTT.Seconds() }},
			{newDesc("min_rtt_seconds", "Windowed minimum round trip time."),
				func(s sctp.Stats) float64 { return s.MinRTT.Seconds() }},
			{newDesc("outstanding_bytes", "Bytes sent and not yet acknowledged."),
				func(s sctp.Stats) float64 { return float64(s.Outstanding) }},
			{newDesc("buffered_bytes", "Bytes queued or in flight."),
				func(s sctp.Stats) float64 { return float64(s.BufferedAmount) }},
		},
		state: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "association", "state"),
			"Association state (1 = current)",
			[]string{"association", "state"}, nil,
		),
	}
}

// Add starts exporting src under its name, replacing any source with the
// same name.
func (c *Collector) Add(src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sources[src.Name()] = src
}

// Remove stops exporting the source with the given name.
func (c *Collector) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.sources, name)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.gauges {
		ch <- d.desc
	}
	ch <- c.state
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	sources := make([]Source, 0, len(c.sources))
	for _, src := range c.sources {
		sources = append(sources, src)
	}
	c.mu.RUnlock()

	for _, src := range sources {
		name := src.Name()
		stats := src.Stats()

		for _, d := range c.counters {
			ch <- prometheus.MustNewConstMetric(d.desc, prometheus.CounterValue, d.value(stats), name)
		}
		for _, d := range c.gauges {
			ch <- prometheus.MustNewConstMetric(d.desc, prometheus.GaugeValue, d.value(stats), name)
		}
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, 1, name, stats.State)
	}
}
