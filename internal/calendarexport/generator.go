// Package calendarexport builds the iCalendar invite sent with booking emails.
package calendarexport

import (
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"interview-scheduler/internal/model"
	"interview-scheduler/internal/notify"
)

const (
	DefaultUIDDomain = "interview-scheduler"

	productID = "-//interview-scheduler//bookings//EN"
	filename  = "interview.ics"
)

var reminders = []time.Duration{60 * time.Minute, 15 * time.Minute}

// Export carries the same event as a file attachment and as an inline invite.
type Export struct {
	UID        string
	Method     ics.Method
	Attachment notify.Attachment
	ICalEvent  notify.ICalEvent
}

type Generator struct {
	uidDomain     string
	fallbackEmail string
	logger        *zap.Logger
	now           func() time.Time
}

// NewGenerator uses fallbackEmail as organizer when an employer has no email.
func NewGenerator(uidDomain, fallbackEmail string, logger *zap.Logger) *Generator {
	if uidDomain == "" {
		uidDomain = DefaultUIDDomain
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{uidDomain: uidDomain, fallbackEmail: fallbackEmail, logger: logger, now: time.Now}
}

// UID is stable per booking so a re-send updates the event in place.
func (g *Generator) UID(bookingID string) string {
	return bookingID + "@" + g.uidDomain
}

// Build returns the invite or nil when the event cannot be built. Errors are
// logged; callers send the email without an attachment.
func (g *Generator) Build(b *model.Booking, slot *model.Slot, job *model.Job, employer *model.Employer, meetingLink string) *Export {
	return g.export(ics.MethodRequest, b, slot, job, employer, meetingLink)
}

// Cancel builds a METHOD:CANCEL version of the booking's event.
func (g *Generator) Cancel(b *model.Booking, slot *model.Slot, job *model.Job, employer *model.Employer) *Export {
	return g.export(ics.MethodCancel, b, slot, job, employer, b.MeetingLink)
}

func (g *Generator) export(method ics.Method, b *model.Booking, slot *model.Slot, job *model.Job, employer *model.Employer, link string) *Export {
	content, err := g.serialize(method, b, slot, job, employer, link)
	if err != nil {
		bookingID := ""
		if b != nil {
			bookingID = b.ID
		}
		g.logger.Warn("calendar export failed, sending without attachment", zap.String("booking_id", bookingID), zap.Error(err))
		return nil
	}
	return &Export{
		UID:    g.UID(b.ID),
		Method: method,
		Attachment: notify.Attachment{
			Filename:    filename,
			ContentType: fmt.Sprintf("text/calendar; charset=utf-8; method=%s", method),
			Content:     []byte(content),
		},
		ICalEvent: notify.ICalEvent{
			Method:   string(method),
			Filename: filename,
			Content:  content,
		},
	}
}

func (g *Generator) serialize(method ics.Method, b *model.Booking, slot *model.Slot, job *model.Job, employer *model.Employer, link string) (string, error) {
	if b == nil || b.ID == "" {
		return "", errors.New("booking is required")
	}
	if slot == nil {
		return "", errors.New("booking has no slot")
	}
	start, err := slot.StartsAt()
	if err != nil {
		return "", fmt.Errorf("slot start: %w", err)
	}
	end, err := slot.EndsAt()
	if err != nil {
		return "", fmt.Errorf("slot end: %w", err)
	}
	if !end.After(start) {
		return "", fmt.Errorf("slot ends at %s before it starts", slot.EndTime)
	}

	organizerName, organizerEmail := g.fallbackEmail, g.fallbackEmail
	if employer != nil {
		organizerName = employer.CompanyName
		if employer.Email != "" {
			organizerEmail = employer.Email
		}
	}
	if organizerEmail == "" {
		return "", errors.New("no organizer email")
	}

	summary := "Interview"
	if job != nil && job.Title != "" {
		summary = "Interview: " + job.Title
	}
	if organizerName != "" {
		summary += " at " + organizerName
	}

	now := g.now().UTC()
	cal := ics.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(method)

	ev := cal.AddEvent(g.UID(b.ID))
	ev.SetDtStampTime(now)
	ev.SetModifiedAt(now)
	ev.SetStartAt(start)
	ev.SetEndAt(end)
	ev.SetSummary(summary)
	if link != "" {
		ev.SetLocation(link)
		ev.SetURL(link)
		ev.SetDescription("Join the interview: " + link)
	}
	if method == ics.MethodCancel {
		ev.SetStatus(ics.ObjectStatusCancelled)
	} else {
		ev.SetStatus(ics.ObjectStatusConfirmed)
	}
	ev.SetOrganizer("mailto:"+organizerEmail, ics.WithCN(organizerName))
	ev.AddAttendee(b.CandidateEmail,
		ics.WithCN(b.CandidateName),
		ics.CalendarUserTypeIndividual,
		ics.ParticipationStatusNeedsAction,
		ics.ParticipationRoleReqParticipant,
		ics.WithRSVP(true),
	)

	for _, before := range reminders {
		alarm := ev.AddAlarm()
		alarm.SetAction(ics.ActionDisplay)
		alarm.SetTrigger(fmt.Sprintf("-PT%dM", int(before.Minutes())))
		alarm.SetProperty(ics.ComponentPropertyDescription, summary)
	}

	return cal.Serialize(), nil
}
