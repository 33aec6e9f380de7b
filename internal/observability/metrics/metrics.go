package metrics

import "github.com/prometheus/client_golang/prometheus"

// WorkflowMetrics exposes counters/histograms for the appointment workflow.
type WorkflowMetrics struct {
	submissions        *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	transitions        *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	handoffs           *prometheus.CounterVec
	unlistedServices   prometheus.Counter
	submitDelay        prometheus.Histogram
}

func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	m := &WorkflowMetrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "submissions_total",
			Help:      "Appointment requests submitted, by outcome",
		}, []string{"outcome"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "validation_failures_total",
			Help:      "Rejected appointment requests, by first failing field",
		}, []string{"field"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Workflow state transitions",
		}, []string{"from", "to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "notifications_total",
			Help:      "Notifications shown to patients, by severity",
		}, []string{"severity"}),
		handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "handoff_total",
			Help:      "Backend hand-offs of confirmed requests",
		}, []string{"transport", "status"}),
		unlistedServices: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "unlisted_services_total",
			Help:      "Accepted requests whose service code is not in the directory",
		}),
		submitDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "submit_delay_seconds",
			Help:      "Time spent in the submitting state",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 10},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissions, m.validationFailures, m.transitions, m.notifications, m.handoffs, m.unlistedServices, m.submitDelay)
	return m
}

// ObserveSubmission records a submit attempt; field is the failing field
// when rejected.
func (m *WorkflowMetrics) ObserveSubmission(accepted bool, field string) {
	if m == nil {
		return
	}
	if accepted {
		m.submissions.WithLabelValues("accepted").Inc()
		return
	}
	m.submissions.WithLabelValues("rejected").Inc()
	if field == "" {
		field = "unknown"
	}
	m.validationFailures.WithLabelValues(field).Inc()
}

func (m *WorkflowMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *WorkflowMetrics) ObserveNotification(severity string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(severity).Inc()
}

func (m *WorkflowMetrics) ObserveHandoff(transport string, err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.handoffs.WithLabelValues(transport, status).Inc()
}

func (m *WorkflowMetrics) ObserveUnlistedService() {
	if m == nil {
		return
	}
	m.unlistedServices.Inc()
}

func (m *WorkflowMetrics) ObserveSubmitDelay(seconds float64) {
	if m == nil {
		return
	}
	m.submitDelay.Observe(seconds)
}
