package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Received(ResultPacket)
	m.Evicted(ReasonExpired, 3)
	m.EntryAdded()
	m.Assembled()
	m.EntryDropped()
	m.AuthFailed()
	m.Sent(2)
	m.Relayed()
	m.Delivered()
}

func TestMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Received(ResultFragment)
	m.Received(ResultFragment)
	m.Received(ResultMalformed)
	if got := testutil.ToFloat64(m.UnitsReceived.WithLabelValues(ResultFragment)); got != 2 {
		t.Errorf("fragment count = %v; want 2", got)
	}

	m.EntryAdded()
	m.EntryAdded()
	m.EntryAdded()
	m.Assembled()
	m.Evicted(ReasonCapacity, 1)
	if got := testutil.ToFloat64(m.Incomplete); got != 1 {
		t.Errorf("incomplete = %v; want 1", got)
	}
	if got := testutil.ToFloat64(m.Evictions.WithLabelValues(ReasonCapacity)); got != 1 {
		t.Errorf("capacity evictions = %v; want 1", got)
	}

	m.Sent(3)
	if got := testutil.ToFloat64(m.UnitsSent); got != 3 {
		t.Errorf("units sent = %v; want 3", got)
	}

	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if n == 0 {
		t.Error("no metrics registered")
	}
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		if recover() == nil {
			t.Error("second registration did not panic")
		}
	}()
	New(reg)
}
