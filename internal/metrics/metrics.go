package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry. All recording methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration    *prometheus.HistogramVec
	bookingsCreated    *prometheus.CounterVec
	capacityRejections prometheus.Counter
	statusTransitions  *prometheus.CounterVec
	invitationResolves *prometheus.CounterVec
	meetingLinks       *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	followupJobs       *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		bookingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_bookings_created_total",
			Help: "Bookings created, by kind (slot or direct)",
		}, []string{"kind"}),
		capacityRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interview_booking_capacity_rejections_total",
			Help: "Booking attempts rejected because the slot was full",
		}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_booking_status_transitions_total",
			Help: "Booking status transitions, by target status",
		}, []string{"status"}),
		invitationResolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_invitation_resolves_total",
			Help: "Invitation token resolutions, by outcome",
		}, []string{"outcome"}),
		meetingLinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_meeting_links_total",
			Help: "Meeting link provisioning attempts, by provider and outcome",
		}, []string{"provider", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_notifications_total",
			Help: "Notifications handed to the transport, by kind and outcome",
		}, []string{"kind", "outcome"}),
		followupJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interview_followup_jobs_total",
			Help: "Follow-up jobs processed, by type and outcome",
		}, []string{"type", "outcome"}),
	}

	registry.MustRegister(
		m.requestDuration, m.bookingsCreated, m.capacityRejections, m.statusTransitions,
		m.invitationResolves, m.meetingLinks, m.notifications, m.followupJobs,
		collectors.NewGoCollector(),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestDuration.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) BookingCreated(kind string) {
	if m == nil {
		return
	}
	m.bookingsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) CapacityRejected() {
	if m == nil {
		return
	}
	m.capacityRejections.Inc()
}

func (m *Metrics) StatusTransition(status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) InvitationResolved(outcome string) {
	if m == nil {
		return
	}
	m.invitationResolves.WithLabelValues(outcome).Inc()
}

func (m *Metrics) MeetingLink(provider, outcome string) {
	if m == nil {
		return
	}
	m.meetingLinks.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) Notification(kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) FollowupJob(jobType, outcome string) {
	if m == nil {
		return
	}
	m.followupJobs.WithLabelValues(jobType, outcome).Inc()
}
