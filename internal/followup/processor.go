package followup

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"interview-scheduler/internal/apperr"
	"interview-scheduler/internal/calendarexport"
	"interview-scheduler/internal/jobs"
	"interview-scheduler/internal/meeting"
	"interview-scheduler/internal/metrics"
	"interview-scheduler/internal/model"
	"interview-scheduler/internal/notify"
)

type bookingStore interface {
	Get(ctx context.Context, id string) (*model.Booking, error)
	SetMeetingLink(ctx context.Context, id, link string) error
}

type slotReader interface {
	Get(ctx context.Context, id string) (*model.Slot, error)
}

type directory interface {
	GetEmployer(ctx context.Context, id string) (*model.Employer, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
}

type inviter interface {
	Issue(ctx context.Context, bookingID, candidateEmail string) (*model.Invitation, error)
	Link(token string) string
}

type provisioner interface {
	Provision(ctx context.Context, req meeting.Request) meeting.Link
}

type exporter interface {
	Build(b *model.Booking, slot *model.Slot, job *model.Job, employer *model.Employer, meetingLink string) *calendarexport.Export
	Cancel(b *model.Booking, slot *model.Slot, job *model.Job, employer *model.Employer) *calendarexport.Export
}

type renderer interface {
	Render(kind notify.Kind, data notify.EmailData) (string, string, error)
}

type Deps struct {
	Bookings  bookingStore
	Slots     slotReader
	Directory directory
	Inviter   inviter
	Meetings  provisioner
	Exporter  exporter
	Renderer  renderer
	Sender    notify.Sender
}

type Processor struct {
	Deps
	from    string
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewProcessor(deps Deps, from string, m *metrics.Metrics, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{Deps: deps, from: from, metrics: m, logger: logger}
}

// Handle is the jobs.Handler for follow-up work.
func (p *Processor) Handle(ctx context.Context, job jobs.Job) error {
	var err error
	switch job.Type {
	case TypeConfirmation:
		err = p.confirm(ctx, job.BookingID)
	case TypeInvitation:
		err = p.invite(ctx, job.BookingID)
	case TypeStatus:
		err = p.statusChanged(ctx, job.BookingID, model.BookingStatus(job.Status))
	default:
		err = jobs.Permanent(fmt.Errorf("unknown job type %q", job.Type))
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.FollowupJob(string(job.Type), outcome)
	return err
}

// bookingContext loads the booking with its job, employer and, when bound, slot.
type bookingContext struct {
	booking  *model.Booking
	slot     *model.Slot
	job      *model.Job
	employer *model.Employer
}

func (p *Processor) load(ctx context.Context, bookingID string) (*bookingContext, error) {
	b, err := p.Bookings.Get(ctx, bookingID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, jobs.Permanent(err)
	}
	if err != nil {
		return nil, err
	}
	out := &bookingContext{booking: b}
	if out.job, err = p.Directory.GetJob(ctx, b.JobID); err != nil {
		return nil, err
	}
	if out.employer, err = p.Directory.GetEmployer(ctx, b.EmployerID); err != nil {
		return nil, err
	}
	if b.HasSlot() {
		out.slot, err = p.Slots.Get(ctx, *b.SlotID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}
	return out, nil
}

func (p *Processor) confirm(ctx context.Context, bookingID string) error {
	bc, err := p.load(ctx, bookingID)
	if err != nil {
		return err
	}
	b := bc.booking
	if b.Status != model.BookingStatusScheduled {
		p.logger.Info("booking closed before confirmation, skipping", zap.String("booking_id", b.ID), zap.String("status", string(b.Status)))
		return nil
	}
	if bc.slot == nil {
		return jobs.Permanent(fmt.Errorf("booking %s has no slot to confirm", b.ID))
	}

	if b.MeetingLink == "" {
		link := p.Meetings.Provision(ctx, meeting.Request{Booking: *b, Slot: bc.slot, Job: bc.job, Employer: bc.employer})
		if err := p.Bookings.SetMeetingLink(ctx, b.ID, link.URL); err != nil {
			return fmt.Errorf("store meeting link: %w", err)
		}
		b.MeetingLink = link.URL
	}

	data := emailData(bc)
	if inv, err := p.Inviter.Issue(ctx, b.ID, b.CandidateEmail); err != nil {
		p.logger.Warn("confirmation sent without invitation link", zap.String("booking_id", b.ID), zap.Error(err))
	} else {
		data.InvitationLink = p.Inviter.Link(inv.Token)
	}

	msg, err := p.message(notify.KindConfirmation, b, data)
	if err != nil {
		return err
	}
	attach(&msg, p.Exporter.Build(b, bc.slot, bc.job, bc.employer, b.MeetingLink))
	return p.send(ctx, msg)
}

func (p *Processor) invite(ctx context.Context, bookingID string) error {
	bc, err := p.load(ctx, bookingID)
	if err != nil {
		return err
	}
	b := bc.booking
	if b.Status != model.BookingStatusScheduled || b.HasSlot() {
		p.logger.Info("invitation no longer pending, skipping", zap.String("booking_id", b.ID))
		return nil
	}

	inv, err := p.Inviter.Issue(ctx, b.ID, b.CandidateEmail)
	if err != nil {
		return fmt.Errorf("issue invitation: %w", err)
	}
	data := emailData(bc)
	data.InvitationLink = p.Inviter.Link(inv.Token)

	msg, err := p.message(notify.KindInvitation, b, data)
	if err != nil {
		return err
	}
	return p.send(ctx, msg)
}

var statusKinds = map[model.BookingStatus]notify.Kind{
	model.BookingStatusCancelled: notify.KindCancelled,
	model.BookingStatusCompleted: notify.KindCompleted,
	model.BookingStatusNoShow:    notify.KindNoShow,
}

func (p *Processor) statusChanged(ctx context.Context, bookingID string, status model.BookingStatus) error {
	kind, ok := statusKinds[status]
	if !ok {
		return jobs.Permanent(fmt.Errorf("no notification for status %q", status))
	}
	bc, err := p.load(ctx, bookingID)
	if err != nil {
		return err
	}

	msg, err := p.message(kind, bc.booking, emailData(bc))
	if err != nil {
		return err
	}
	if status == model.BookingStatusCancelled && bc.slot != nil {
		attach(&msg, p.Exporter.Cancel(bc.booking, bc.slot, bc.job, bc.employer))
	}
	return p.send(ctx, msg)
}

func (p *Processor) message(kind notify.Kind, b *model.Booking, data notify.EmailData) (notify.Message, error) {
	subject, html, err := p.Renderer.Render(kind, data)
	if err != nil {
		return notify.Message{}, jobs.Permanent(err)
	}
	return notify.Message{
		Key:     b.ID,
		Kind:    kind,
		From:    p.from,
		To:      b.CandidateEmail,
		Subject: subject,
		HTML:    html,
	}, nil
}

func (p *Processor) send(ctx context.Context, msg notify.Message) error {
	if err := p.Sender.Send(ctx, msg); err != nil {
		p.metrics.Notification(string(msg.Kind), "error")
		return apperr.Wrap(err, apperr.ErrExternalProvider, "send notification")
	}
	p.metrics.Notification(string(msg.Kind), "ok")
	return nil
}

func attach(msg *notify.Message, export *calendarexport.Export) {
	if export == nil {
		return
	}
	attachment := export.Attachment
	event := export.ICalEvent
	msg.Attachment = &attachment
	msg.ICalEvent = &event
}

func emailData(bc *bookingContext) notify.EmailData {
	data := notify.EmailData{
		CandidateName: bc.booking.CandidateName,
		CompanyName:   bc.employer.CompanyName,
		JobTitle:      bc.job.Title,
		MeetingLink:   bc.booking.MeetingLink,
		Notes:         bc.booking.Notes,
	}
	if bc.slot != nil {
		data.Date = bc.slot.Date
		data.StartTime = bc.slot.StartTime
		data.EndTime = bc.slot.EndTime
		data.Timezone = bc.slot.Location().String()
	}
	return data
}
