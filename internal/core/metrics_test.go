package core

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"ghostwatch/pkg/domain"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	at := time.Unix(1700000000, 0).UTC()
	m.CycleFinished("changed")
	m.CycleFinished("changed")
	m.FetchRetried()
	m.EventsDetected(domain.ChangeSet{CapturedAt: at, Events: []domain.ChangeEvent{
		{Kind: domain.KindTownAppeared, At: at, EntityID: 1},
		{Kind: domain.KindTownAppeared, At: at, EntityID: 2},
		{Kind: domain.KindPlayerDeparted, At: at, EntityID: 3},
	}})
	m.DiffObserved(5 * time.Millisecond)
	m.BaselineAdvanced(at)
	m.SetState("waiting")
	m.SetState("fetching")

	if got := testutil.ToFloat64(m.cycles.WithLabelValues("changed")); got != 2 {
		t.Fatalf("cycles = %v", got)
	}
	if got := testutil.ToFloat64(m.fetchRetries); got != 1 {
		t.Fatalf("retries = %v", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues(string(domain.KindTownAppeared))); got != 2 {
		t.Fatalf("appeared = %v", got)
	}
	if got := testutil.ToFloat64(m.baseline); got != 1700000000 {
		t.Fatalf("baseline = %v", got)
	}
	if got := testutil.CollectAndCount(m.state); got != 1 {
		t.Fatalf("expected a single state series, got %d", got)
	}
	if got := testutil.ToFloat64(m.state.WithLabelValues("fetching")); got != 1 {
		t.Fatalf("state = %v", got)
	}
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() == "ghostwatch_cycles_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("cycles family not registered")
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.CycleFinished("failed")
	m.FetchRetried()
	m.EventsDetected(domain.ChangeSet{})
	m.DiffObserved(time.Second)
	m.BaselineAdvanced(time.Now())
	m.SetState("waiting")
	if m.Registry() != nil {
		t.Fatalf("nil metrics should have nil registry")
	}
}
