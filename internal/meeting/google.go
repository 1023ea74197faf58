package meeting

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"interview-scheduler/internal/apperr"
	"interview-scheduler/internal/model"
)

const (
	DefaultGoogleTimeout = 4 * time.Second

	meetSolution = "hangoutsMeet"
)

var eventIDEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

type credentialStore interface {
	Get(ctx context.Context, employerID string) (*model.CalendarCredential, error)
}

// GoogleProvider inserts an event with a Meet conference on the employer's
// connected calendar. The event id is derived from the booking id, so a
// retried insert finds the existing event instead of creating another.
type GoogleProvider struct {
	oauth      *oauth2.Config
	creds      credentialStore
	calendarID string
	timeout    time.Duration
	options    []option.ClientOption
	logger     *zap.Logger
}

func NewGoogleProvider(oauth *oauth2.Config, creds credentialStore, calendarID string, timeout time.Duration, logger *zap.Logger, opts ...option.ClientOption) *GoogleProvider {
	if calendarID == "" {
		calendarID = "primary"
	}
	if timeout <= 0 {
		timeout = DefaultGoogleTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleProvider{oauth: oauth, creds: creds, calendarID: calendarID, timeout: timeout, options: opts, logger: logger}
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Provision(ctx context.Context, req Request) (string, error) {
	if req.Slot == nil {
		return "", apperr.Clone(apperr.ErrExternalProvider, "booking has no slot")
	}
	cred, err := p.creds.Get(ctx, req.Booking.EmployerID)
	if err != nil {
		return "", apperr.Wrap(err, apperr.ErrExternalProvider, "employer calendar not connected")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    cred.TokenType,
		Expiry:       cred.Expiry,
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(p.oauth.Client(ctx, token))}, p.options...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return "", apperr.Wrap(err, apperr.ErrExternalProvider, "create calendar service")
	}

	calendarID := p.calendarID
	if cred.CalendarID != "" {
		calendarID = cred.CalendarID
	}

	event, err := buildEvent(req)
	if err != nil {
		return "", apperr.Wrap(err, apperr.ErrExternalProvider, "build calendar event")
	}

	created, err := srv.Events.Insert(calendarID, event).
		ConferenceDataVersion(1).
		SendUpdates("none").
		Context(ctx).
		Do()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
		p.logger.Debug("calendar event exists, reusing", zap.String("booking_id", req.Booking.ID))
		created, err = srv.Events.Get(calendarID, event.Id).Context(ctx).Do()
	}
	if err != nil {
		return "", apperr.Wrap(err, apperr.ErrExternalProvider, "insert calendar event")
	}

	link := conferenceURL(created)
	if link == "" {
		return "", apperr.Clone(apperr.ErrExternalProvider, "calendar event has no conference link")
	}
	return link, nil
}

func buildEvent(req Request) (*calendar.Event, error) {
	start, err := req.Slot.StartsAt()
	if err != nil {
		return nil, fmt.Errorf("slot start: %w", err)
	}
	end, err := req.Slot.EndsAt()
	if err != nil {
		return nil, fmt.Errorf("slot end: %w", err)
	}

	summary := "Interview with " + req.Booking.CandidateName
	if req.Job != nil && req.Job.Title != "" {
		summary = fmt.Sprintf("Interview: %s - %s", req.Job.Title, req.Booking.CandidateName)
	}

	return &calendar.Event{
		Id:          eventID(req.Booking.ID),
		Summary:     summary,
		Description: req.Booking.Notes,
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: req.Slot.Location().String()},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: req.Slot.Location().String()},
		Attendees: []*calendar.EventAttendee{
			{Email: req.Booking.CandidateEmail, DisplayName: req.Booking.CandidateName},
		},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             req.Booking.ID,
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: meetSolution},
			},
		},
	}, nil
}

// eventID maps a booking id into Google's base32hex event id alphabet.
func eventID(bookingID string) string {
	return "bk" + strings.ToLower(eventIDEncoding.EncodeToString([]byte(bookingID)))
}

func conferenceURL(ev *calendar.Event) string {
	if ev == nil {
		return ""
	}
	if ev.HangoutLink != "" {
		return ev.HangoutLink
	}
	if ev.ConferenceData == nil {
		return ""
	}
	for _, ep := range ev.ConferenceData.EntryPoints {
		if ep.EntryPointType == "video" && ep.Uri != "" {
			return ep.Uri
		}
	}
	return ""
}
