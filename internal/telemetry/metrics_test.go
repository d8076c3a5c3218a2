package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// ---------------------------------------------------------------------------
// Metric registration sanity checks
//
// Registration is checked via Describe() because Gather() omits *Vec metrics
// that have no observed label combinations yet.
// ---------------------------------------------------------------------------

func TestMetrics_AllRegistered(t *testing.T) {
	type describer interface {
		Describe(chan<- *prometheus.Desc)
	}

	cases := []struct {
		name string
		c    describer
	}{
		{"projecthub_http_requests_total", HTTPRequestsTotal},
		{"projecthub_http_request_duration_seconds", HTTPRequestDuration},
		{"projecthub_login_attempts_total", LoginAttemptsTotal},
		{"projecthub_capacity_rejections_total", CapacityRejectionsTotal},
		{"projecthub_rate_limit_rejections_total", RateLimitRejectionsTotal},
		{"projecthub_audit_events_total", AuditEventsTotal},
		{"projecthub_audit_failures_total", AuditFailuresTotal},
		{"projecthub_db_open_connections", DBOpenConnections},
		{"projecthub_db_in_use_connections", DBInUseConnections},
		{"projecthub_db_idle_connections", DBIdleConnections},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := make(chan *prometheus.Desc, 10)
			tc.c.Describe(ch)
			close(ch)
			for desc := range ch {
				if strings.Contains(desc.String(), `"`+tc.name+`"`) {
					return
				}
			}
			t.Errorf("metric %q: Describe() returned no descriptor with this fqName", tc.name)
		})
	}
}

func TestMetrics_LoginAttemptsTotal_CanBeIncremented(t *testing.T) {
	labels := prometheus.Labels{"outcome": "success"}
	before := counterValue(t, LoginAttemptsTotal, labels)
	LoginAttemptsTotal.WithLabelValues("success").Inc()
	after := counterValue(t, LoginAttemptsTotal, labels)
	if after-before < 1 {
		t.Errorf("LoginAttemptsTotal.Inc() did not increase counter (before=%.0f after=%.0f)", before, after)
	}
}

func TestMetrics_AuditFailuresTotal_CanBeIncremented(t *testing.T) {
	before := plainCounterValue(t, AuditFailuresTotal)
	AuditFailuresTotal.Inc()
	if after := plainCounterValue(t, AuditFailuresTotal); after-before < 1 {
		t.Error("AuditFailuresTotal.Inc() did not increase counter")
	}
}

type fakeStats struct{ stats sql.DBStats }

func (f fakeStats) Stats() sql.DBStats { return f.stats }

func TestRecordDBStats(t *testing.T) {
	RecordDBStats(fakeStats{sql.DBStats{OpenConnections: 7, InUse: 3, Idle: 4}})

	if got := gaugeValue(t, DBOpenConnections); got != 7 {
		t.Errorf("db_open_connections = %v, want 7", got)
	}
	if got := gaugeValue(t, DBInUseConnections); got != 3 {
		t.Errorf("db_in_use_connections = %v, want 3", got)
	}
	if got := gaugeValue(t, DBIdleConnections); got != 4 {
		t.Errorf("db_idle_connections = %v, want 4", got)
	}
}

func TestStartDBStatsCollector_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	StartDBStatsCollector(ctx, fakeStats{sql.DBStats{OpenConnections: 2}}, 5*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for gaugeValue(t, DBOpenConnections) != 2 {
		if time.Now().After(deadline) {
			t.Fatal("collector never recorded pool stats")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// counterValue reads the current value of a CounterVec for the given label set.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels prometheus.Labels) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 20)
	cv.Collect(ch)
	close(ch)
	for m := range ch {
		var dm dto.Metric
		if err := m.Write(&dm); err != nil {
			continue
		}
		if labelsMatch(dm.GetLabel(), labels) {
			return dm.GetCounter().GetValue()
		}
	}
	return 0
}

// plainCounterValue reads the value of a plain (non-vec) Counter.
func plainCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var dm dto.Metric
	if err := c.Write(&dm); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return dm.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var dm dto.Metric
	if err := g.Write(&dm); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return dm.GetGauge().GetValue()
}

// labelsMatch returns true when all entries in want appear in got.
func labelsMatch(got []*dto.LabelPair, want prometheus.Labels) bool {
	for k, v := range want {
		found := false
		for _, lp := range got {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
