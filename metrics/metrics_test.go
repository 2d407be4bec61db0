package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.IncRun("succeeded")
	m.IncRun("failed")
	m.IncRun("failed")
	m.IncFailure("ACCOUNT_SELECTION_REQUIRED")
	m.AddRows(7)
	m.AddRows(0)
	m.IncPage()
	m.IncPage()
	m.IncArtifact("html")
	m.ObserveRun(3 * time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("ACCOUNT_SELECTION_REQUIRED")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.RowsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArtifactsTotal.WithLabelValues("html")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncRun("succeeded")
		m.IncFailure("X")
		m.AddRows(1)
		m.IncPage()
		m.IncArtifact("png")
		m.ObserveRun(time.Second)
	})
}
