package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerCountsOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("backup_manual").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("backup_manual").End(boom), boom)

	require.InDelta(t, 1, testutil.ToFloat64(m.runs.WithLabelValues("backup_manual", "success")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.runs.WithLabelValues("backup_manual", "failure")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.failures.WithLabelValues("backup_manual")), 0)
}

func TestGaugesAndCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetSnapshots("manual", 5)
	m.AddNotified(3)
	m.AddNotified(0)

	require.InDelta(t, 5, testutil.ToFloat64(m.snapshots.WithLabelValues("manual")), 0)
	require.InDelta(t, 3, testutil.ToFloat64(m.notified), 0)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("noop").End(nil))
	m.SetSnapshots("auto", 1)
	m.AddNotified(2)
}
