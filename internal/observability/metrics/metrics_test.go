package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkflowMetrics(reg)

	m.ObserveSubmission(true, "")
	m.ObserveSubmission(false, "email")
	m.ObserveSubmission(false, "")
	m.ObserveTransition("idle", "confirmation")
	m.ObserveNotification("info")
	m.ObserveHandoff("log", nil)
	m.ObserveHandoff("sqs", errors.New("boom"))
	m.ObserveSubmitDelay(2)
	m.ObserveUnlistedService()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.unlistedServices))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validationFailures.WithLabelValues("email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validationFailures.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handoffs.WithLabelValues("sqs", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handoffs.WithLabelValues("log", "sent")))
}

func TestWorkflowMetricsHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkflowMetrics(reg)
	m.ObserveSubmitDelay(2)
	m.ObserveSubmitDelay(2)

	families, err := reg.Gather()
	require.NoError(t, err)

	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "clinic_appointments_submit_delay_seconds" {
			hist = mf.GetMetric()[0].GetHistogram()
		}
	}
	require.NotNil(t, hist)
	assert.Equal(t, uint64(2), hist.GetSampleCount())
	assert.Equal(t, 4.0, hist.GetSampleSum())
}

func TestWorkflowMetricsNilSafe(t *testing.T) {
	var m *WorkflowMetrics
	m.ObserveSubmission(true, "")
	m.ObserveTransition("a", "b")
	m.ObserveNotification("info")
	m.ObserveHandoff("log", nil)
	m.ObserveUnlistedService()
	m.ObserveSubmitDelay(0.1)
}
