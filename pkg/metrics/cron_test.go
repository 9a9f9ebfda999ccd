package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.Observe("job", time.Second, nil)
	NewCronJobMetrics(nil).Observe("job", time.Second, errors.New("boom"))
}

func TestCronJobMetricsSplitsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.Observe("stale-reservations", 250*time.Millisecond, nil)
	m.Observe("stale-reservations", time.Second, nil)
	m.Observe("stale-reservations", time.Second, errors.New("db down"))
	m.Observe("", time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("stale-reservations", CronOutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("stale-reservations", CronOutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", CronOutcomeSuccess)))

	expected := `
# HELP cron_job_runs_total Cron job runs partitioned by job and outcome.
# TYPE cron_job_runs_total counter
cron_job_runs_total{job="stale-reservations",outcome="failure"} 1
cron_job_runs_total{job="stale-reservations",outcome="success"} 2
cron_job_runs_total{job="unknown",outcome="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "cron_job_runs_total"))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	hist := findMetricFamily(mfs, "cron_job_duration_seconds")
	require.NotNil(t, hist)
	for _, metric := range hist.GetMetric() {
		if matchesLabel(metric.GetLabel(), "job", "stale-reservations") {
			assert.Equal(t, uint64(3), metric.GetHistogram().GetSampleCount())
			assert.InDelta(t, 2.25, metric.GetHistogram().GetSampleSum(), 0.001)
		}
	}
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
