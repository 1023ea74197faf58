// Package followup turns durable booking changes into meeting links and
// candidate emails, off the request path.
package followup

import (
	"context"

	"go.uber.org/zap"

	"interview-scheduler/internal/jobs"
	"interview-scheduler/internal/metrics"
	"interview-scheduler/internal/model"
)

const (
	TypeConfirmation jobs.Type = "booking.confirmation"
	TypeInvitation   jobs.Type = "booking.invitation"
	TypeStatus       jobs.Type = "booking.status"
)

type enqueuer interface {
	Enqueue(job jobs.Job) error
}

// Dispatcher enqueues follow-up jobs. A job that cannot be queued is logged
// and dropped; the booking itself is already committed.
type Dispatcher struct {
	queue   enqueuer
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewDispatcher(queue enqueuer, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{queue: queue, metrics: m, logger: logger}
}

func (d *Dispatcher) BookingConfirmed(_ context.Context, bookingID string) {
	d.enqueue(jobs.Job{Type: TypeConfirmation, BookingID: bookingID})
}

func (d *Dispatcher) DirectInvitation(_ context.Context, bookingID string) {
	d.enqueue(jobs.Job{Type: TypeInvitation, BookingID: bookingID})
}

func (d *Dispatcher) StatusChanged(_ context.Context, bookingID string, status model.BookingStatus) {
	d.enqueue(jobs.Job{Type: TypeStatus, BookingID: bookingID, Status: string(status)})
}

func (d *Dispatcher) enqueue(job jobs.Job) {
	if err := d.queue.Enqueue(job); err != nil {
		d.metrics.FollowupJob(string(job.Type), "dropped")
		d.logger.Error("follow-up not queued",
			zap.String("type", string(job.Type)),
			zap.String("booking_id", job.BookingID),
			zap.Error(err),
		)
	}
}
