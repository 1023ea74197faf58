package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"interview-scheduler/internal/apperr"
	"interview-scheduler/internal/booking"
	"interview-scheduler/internal/config"
	"interview-scheduler/internal/model"
	"interview-scheduler/internal/slots"
)

const jwtSecret = "test-secret"

type slotServiceStub struct {
	setInputs []slots.SlotInput
	days      []model.AvailableDay
	filter    model.SlotFilter
	err       error
}

func (s *slotServiceStub) SetAvailability(ctx context.Context, employerID string, inputs []slots.SlotInput) ([]model.Slot, error) {
	s.setInputs = inputs
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.Slot, len(inputs))
	for i, in := range inputs {
		out[i] = model.Slot{ID: "s", EmployerID: employerID, Date: in.Date, StartTime: in.StartTime, EndTime: in.EndTime}
	}
	return out, nil
}

func (s *slotServiceStub) ListAvailable(ctx context.Context, filter model.SlotFilter) ([]model.AvailableDay, error) {
	s.filter = filter
	return s.days, s.err
}

func (s *slotServiceStub) EmployerCalendar(ctx context.Context, employerID string, rng model.DateRange) ([]model.CalendarDay, error) {
	return []model.CalendarDay{}, s.err
}

type bookingServiceStub struct {
	result   *booking.Result
	booking  *model.Booking
	released bool
	err      error
	status   model.BookingStatus
}

func (s *bookingServiceStub) CreateBooking(ctx context.Context, in booking.CreateBookingInput) (*booking.Result, error) {
	return s.result, s.err
}

func (s *bookingServiceStub) CreateDirectInvitation(ctx context.Context, in booking.DirectInvitationInput) (*booking.Result, error) {
	return s.result, s.err
}

func (s *bookingServiceStub) UpdateStatus(ctx context.Context, id string, status model.BookingStatus, notes *string) (*model.Booking, error) {
	s.status = status
	return s.booking, s.err
}

func (s *bookingServiceStub) ReleaseSlot(ctx context.Context, id string) (bool, error) {
	return s.released, s.err
}

func (s *bookingServiceStub) SelectSlot(ctx context.Context, token, slotID string) (*model.Booking, error) {
	return s.booking, s.err
}

type invitationServiceStub struct {
	ctx *model.InvitationContext
	err error
}

func (s *invitationServiceStub) Resolve(ctx context.Context, token string) (*model.InvitationContext, error) {
	return s.ctx, s.err
}

func (s *invitationServiceStub) Link(token string) string {
	return "https://jobs.example.com/interview/schedule/" + token
}

type exchangerStub struct {
	token *oauth2.Token
	err   error
}

func (e *exchangerStub) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (e *exchangerStub) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	return e.token, e.err
}

type credentialStub struct{ saved *model.CalendarCredential }

func (s *credentialStub) Upsert(ctx context.Context, c *model.CalendarCredential) error {
	s.saved = c
	return nil
}

type pingStub struct{ err error }

func (p pingStub) Ping(ctx context.Context) error { return p.err }

type harness struct {
	app         *App
	router      *gin.Engine
	slots       *slotServiceStub
	bookings    *bookingServiceStub
	invitations *invitationServiceStub
	exchanger   *exchangerStub
	creds       *credentialStub
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{
		slots:       &slotServiceStub{},
		bookings:    &bookingServiceStub{},
		invitations: &invitationServiceStub{},
		exchanger:   &exchangerStub{},
		creds:       &credentialStub{},
	}
	h.app = &App{
		Slots:       h.slots,
		Bookings:    h.bookings,
		Invitations: h.invitations,
		OAuth:       h.exchanger,
		Credentials: h.creds,
		StateSecret: []byte("state-secret"),
		DB:          pingStub{},
	}
	h.router = gin.New()
	h.app.Register(h.router, h.app.AuthMiddleware(config.AuthConfig{StaticTokens: []string{"static-token"}, JWTSecret: jwtSecret}))
	return h
}

func (h *harness) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error errorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func signedJWT(t *testing.T, method jwt.SigningMethod, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   "employer-admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestAuthMiddleware(t *testing.T) {
	h := newHarness(t)
	h.bookings.result = &booking.Result{Booking: &model.Booking{ID: "b1"}}
	body := booking.CreateBookingInput{SlotID: "s1", JobID: "j1"}

	w := h.do(http.MethodPost, "/api/bookings", body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))

	w = h.do(http.MethodPost, "/api/bookings", body, "nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/api/bookings", body, signedJWT(t, jwt.SigningMethodHS256, []byte("wrong")))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/api/bookings", body, "static-token")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = h.do(http.MethodPost, "/api/bookings", body, signedJWT(t, jwt.SigningMethodHS256, []byte(jwtSecret)))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateBookingHandler(t *testing.T) {
	h := newHarness(t)
	h.bookings.result = &booking.Result{
		Booking:    &model.Booking{ID: "b1", Status: model.BookingStatusScheduled},
		Invitation: &model.Invitation{ID: "i1", Token: "tok", Status: model.InvitationStatusSent},
	}

	w := h.do(http.MethodPost, "/api/bookings", booking.CreateBookingInput{SlotID: "s1", JobID: "j1"}, "static-token")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://jobs.example.com/interview/schedule/tok", resp["invitation_link"])
	assert.NotContains(t, resp["invitation"], "token")
}

func TestCreateBookingHandlerErrors(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/bookings", "{not json", "static-token")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	h.bookings.err = apperr.ErrCapacityExceeded
	w = h.do(http.MethodPost, "/api/bookings", booking.CreateBookingInput{SlotID: "s1", JobID: "j1"}, "static-token")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CAPACITY_EXCEEDED", errorCode(t, w))

	h.bookings.err = errors.New("connection reset")
	w = h.do(http.MethodPost, "/api/bookings", booking.CreateBookingInput{SlotID: "s1", JobID: "j1"}, "static-token")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestSetAvailabilityHandler(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPut, "/api/employers/emp-1/availability", map[string]any{"date": "2026-03-10"}, "static-token")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	payload := []slots.SlotInput{{Date: "2026-03-10", StartTime: "09:00", EndTime: "09:30", MaxCandidates: 1}}
	w = h.do(http.MethodPut, "/api/employers/emp-1/availability", payload, "static-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payload, h.slots.setInputs)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestListSlotsIsPublic(t *testing.T) {
	h := newHarness(t)
	h.slots.days = []model.AvailableDay{{Date: "2026-03-10"}}

	w := h.do(http.MethodGet, "/api/slots?employer_id=emp-1&from=2026-03-01&to=2026-03-31", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.SlotFilter{EmployerID: "emp-1", Range: model.DateRange{From: "2026-03-01", To: "2026-03-31"}}, h.slots.filter)
}

func TestUpdateStatusHandler(t *testing.T) {
	h := newHarness(t)
	h.bookings.booking = &model.Booking{ID: "b1", Status: model.BookingStatusCompleted}

	w := h.do(http.MethodPatch, "/api/bookings/b1/status", map[string]string{}, "static-token")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPatch, "/api/bookings/b1/status", map[string]string{"status": "completed"}, "static-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.BookingStatusCompleted, h.bookings.status)

	h.bookings.err = apperr.ErrInvalidTransition
	w = h.do(http.MethodPatch, "/api/bookings/b1/status", map[string]string{"status": "cancelled"}, "static-token")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", errorCode(t, w))
}

func TestReleaseSlotHandler(t *testing.T) {
	h := newHarness(t)
	h.bookings.released = true

	w := h.do(http.MethodPost, "/api/bookings/b1/release", nil, "static-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"booking_id":"b1","released":true}`, w.Body.String())
}

func TestResolveInvitationHandler(t *testing.T) {
	h := newHarness(t)
	h.invitations.ctx = &model.InvitationContext{
		Invitation: model.Invitation{ID: "i1", Token: "secret-token", Status: model.InvitationStatusOpened},
		Booking:    model.Booking{ID: "b1", EmployerID: "emp-1", Status: model.BookingStatusScheduled},
		Job:        model.Job{ID: "j1", Title: "Backend Engineer"},
		Employer:   model.Employer{ID: "emp-1", CompanyName: "Acme"},
	}
	h.slots.days = []model.AvailableDay{{Date: "2026-03-10"}}

	w := h.do(http.MethodGet, "/api/interview/schedule/secret-token", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-token")
	assert.Equal(t, "emp-1", h.slots.filter.EmployerID)

	var resp scheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Acme", resp.Employer.CompanyName)
	assert.Len(t, resp.AvailableSlots, 1)

	h.invitations.err = apperr.ErrInvalidToken
	w = h.do(http.MethodGet, "/api/interview/schedule/old", nil, "")
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "EXPIRED_OR_INVALID_TOKEN", errorCode(t, w))
}

func TestSelectSlotHandler(t *testing.T) {
	h := newHarness(t)
	slotID := "s1"
	h.bookings.booking = &model.Booking{ID: "b1", SlotID: &slotID}

	w := h.do(http.MethodPost, "/api/interview/schedule/tok/slot", selectSlotRequest{SlotID: "s1"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	h.bookings.err = apperr.ErrCapacityExceeded
	w = h.do(http.MethodPost, "/api/interview/schedule/tok/slot", selectSlotRequest{SlotID: "s1"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCalendarConnectFlow(t *testing.T) {
	h := newHarness(t)
	h.exchanger.token = &oauth2.Token{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}

	w := h.do(http.MethodGet, "/api/calendar/auth", nil, "static-token")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/calendar/auth?employer_id=emp-1", nil, "static-token")
	require.Equal(t, http.StatusOK, w.Code)
	var auth struct {
		AuthURL string `json:"auth_url"`
		State   string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &auth))
	assert.Contains(t, auth.AuthURL, url.QueryEscape(auth.State))

	w = h.do(http.MethodGet, "/oauth2callback?code=abc&state="+url.QueryEscape(auth.State), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, h.creds.saved)
	assert.Equal(t, "emp-1", h.creds.saved.EmployerID)
	assert.Equal(t, "rt", h.creds.saved.RefreshToken)
}

func TestCalendarCallbackRejectsBadState(t *testing.T) {
	h := newHarness(t)
	h.app.now = func() time.Time { return time.Now().Add(-time.Hour) }
	w := h.do(http.MethodGet, "/api/calendar/auth?employer_id=emp-1", nil, "static-token")
	require.Equal(t, http.StatusOK, w.Code)
	var auth struct {
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &auth))

	h.app.now = nil
	w = h.do(http.MethodGet, "/oauth2callback?code=abc&state="+url.QueryEscape(auth.State), nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodGet, "/oauth2callback?code=abc&state=forged", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, h.creds.saved)

	h.app.OAuth = nil
	w = h.do(http.MethodGet, "/oauth2callback?code=abc", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthHandler(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	h.app.DB = pingStub{err: errors.New("down")}
	w = h.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
