// Package metrics holds the Prometheus collectors of the VL1 pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vl1"

// Receive results
const (
	ResultPacket    = "packet"
	ResultHead      = "head"
	ResultFragment  = "fragment"
	ResultAssembled = "assembled"
	ResultDuplicate = "duplicate"
	ResultLate      = "late"
	ResultMalformed = "malformed"
	ResultRelayed   = "relayed"
	ResultDropped   = "dropped"
)

// Eviction reasons
const (
	ReasonExpired  = "expired"
	ReasonCapacity = "capacity"
)

type Metrics struct {
	UnitsReceived    *prometheus.CounterVec
	Evictions        *prometheus.CounterVec
	PacketsAssembled prometheus.Counter
	AuthFailures     prometheus.Counter
	PacketsSent      prometheus.Counter
	UnitsSent        prometheus.Counter
	PacketsRelayed   prometheus.Counter
	PacketsDelivered prometheus.Counter
	Incomplete       prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg
// creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UnitsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_received_total",
			Help:      "Datagram units received, by what became of them.",
		}, []string{"result"}),
		Evictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reassembly_evictions_total",
			Help:      "Incomplete reassembly entries discarded.",
		}, []string{"reason"}),
		PacketsAssembled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_assembled_total",
			Help:      "Fragmented packets fully reassembled.",
		}),
		AuthFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Packets that failed AES-GMAC-SIV authentication.",
		}),
		PacketsSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Logical packets armored and sent.",
		}),
		UnitsSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_sent_total",
			Help:      "Datagram units written to interfaces.",
		}),
		PacketsRelayed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_relayed_total",
			Help:      "Units forwarded for other nodes.",
		}),
		PacketsDelivered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_delivered_total",
			Help:      "Authenticated payloads handed to the delivery handler.",
		}),
		Incomplete: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reassembly_incomplete",
			Help:      "Incomplete reassembly entries across all paths.",
		}),
	}
}

func (m *Metrics) Received(result string) {
	if m == nil {
		return
	}
	m.UnitsReceived.WithLabelValues(result).Inc()
}

func (m *Metrics) Evicted(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Evictions.WithLabelValues(reason).Add(float64(n))
	m.Incomplete.Sub(float64(n))
}

func (m *Metrics) EntryAdded() {
	if m == nil {
		return
	}
	m.Incomplete.Inc()
}

// Assembled records a completed packet, whose entry leaves the table.
func (m *Metrics) Assembled() {
	if m == nil {
		return
	}
	m.PacketsAssembled.Inc()
	m.Incomplete.Dec()
}

// EntryDropped records an entry removed for any reason other than
// completion or eviction.
func (m *Metrics) EntryDropped() {
	if m == nil {
		return
	}
	m.Incomplete.Dec()
}

func (m *Metrics) AuthFailed() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}

func (m *Metrics) Sent(units int) {
	if m == nil {
		return
	}
	m.PacketsSent.Inc()
	m.UnitsSent.Add(float64(units))
}

func (m *Metrics) Relayed() {
	if m == nil {
		return
	}
	m.PacketsRelayed.Inc()
}

func (m *Metrics) Delivered() {
	if m == nil {
		return
	}
	m.PacketsDelivered.Inc()
}
