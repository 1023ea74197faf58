package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-scheduler/internal/apperr"
	"interview-scheduler/internal/invitation"
	"interview-scheduler/internal/model"
)

// memoryStore mirrors the SQL store's conditional updates under one mutex.
type memoryStore struct {
	mu       sync.Mutex
	slots    map[string]*model.Slot
	bookings map[string]*model.Booking
}

func newMemoryStore(slots ...model.Slot) *memoryStore {
	s := &memoryStore{slots: map[string]*model.Slot{}, bookings: map[string]*model.Booking{}}
	for i := range slots {
		sl := slots[i]
		s.slots[sl.ID] = &sl
	}
	return s
}

func (s *memoryStore) reserve(slotID string) error {
	sl, ok := s.slots[slotID]
	if !ok || !sl.IsAvailable || sl.CurrentBookings >= sl.MaxCandidates {
		return apperr.ErrCapacityExceeded
	}
	sl.CurrentBookings++
	return nil
}

func (s *memoryStore) slotGetter() slotGetter { return slotGetter{s} }

func (s *memoryStore) CreateWithReservation(ctx context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reserve(*b.SlotID); err != nil {
		return err
	}
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *memoryStore) Create(ctx context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *memoryStore) AttachSlot(ctx context.Context, bookingID, slotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.HasSlot() || b.Status != model.BookingStatusScheduled {
		return apperr.ErrConflict
	}
	if err := s.reserve(slotID); err != nil {
		return err
	}
	id := slotID
	b.SlotID = &id
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, apperr.Clone(apperr.ErrNotFound, "booking not found")
	}
	cp := *b
	return &cp, nil
}

func (s *memoryStore) Transition(ctx context.Context, id string, status model.BookingStatus, notes *string, completedAt *time.Time) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if b.Status != model.BookingStatusScheduled {
		return nil, apperr.ErrInvalidTransition
	}
	b.Status = status
	if notes != nil {
		b.Notes = *notes
	}
	b.CompletedAt = completedAt
	cp := *b
	return &cp, nil
}

func (s *memoryStore) ReleaseSlot(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bookings[id]
	if b.SlotReleased {
		return false, nil
	}
	b.SlotReleased = true
	if sl := s.slots[*b.SlotID]; sl.CurrentBookings > 0 {
		sl.CurrentBookings--
	}
	return true, nil
}

func (s *memoryStore) slot(id string) model.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.slots[id]
}

// slotGetter exposes slot reads; the booking Get lives on memoryStore itself.
type slotGetter struct{ s *memoryStore }

func (g slotGetter) Get(ctx context.Context, id string) (*model.Slot, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	sl, ok := g.s.slots[id]
	if !ok {
		return nil, apperr.Clone(apperr.ErrNotFound, "slot not found")
	}
	cp := *sl
	return &cp, nil
}

type directoryStub struct{}

func (directoryStub) GetJob(ctx context.Context, id string) (*model.Job, error) {
	if id != "job-1" {
		return nil, apperr.Clone(apperr.ErrNotFound, "job not found")
	}
	return &model.Job{ID: "job-1", EmployerID: "emp-1", Title: "Backend Engineer"}, nil
}

func (directoryStub) GetEmployer(ctx context.Context, id string) (*model.Employer, error) {
	return &model.Employer{ID: id, CompanyName: "Acme", Email: "hr@acme.test"}, nil
}

func (directoryStub) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	return &model.Candidate{ID: id, Name: "Grace Hopper", Email: "grace@example.com"}, nil
}

type invitationMemory struct {
	mu   sync.Mutex
	byID map[string]*model.Invitation
	fail error
}

func (m *invitationMemory) Create(ctx context.Context, inv *model.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	cp := *inv
	m.byID[inv.ID] = &cp
	return nil
}

func (m *invitationMemory) find(match func(*model.Invitation) bool) (*model.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.byID {
		if match(inv) {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *invitationMemory) FindByToken(ctx context.Context, token string) (*model.Invitation, error) {
	return m.find(func(i *model.Invitation) bool { return i.Token == token })
}

func (m *invitationMemory) FindByBooking(ctx context.Context, bookingID string) (*model.Invitation, error) {
	return m.find(func(i *model.Invitation) bool { return i.BookingID == bookingID })
}

func (m *invitationMemory) MarkOpened(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := m.byID[id]
	if inv.Status != model.InvitationStatusSent {
		return false, nil
	}
	inv.Status = model.InvitationStatusOpened
	return true, nil
}

type recordedFollowups struct {
	mu        sync.Mutex
	confirmed []string
	direct    []string
	statuses  []model.BookingStatus
}

func (r *recordedFollowups) BookingConfirmed(ctx context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = append(r.confirmed, id)
}

func (r *recordedFollowups) DirectInvitation(ctx context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct = append(r.direct, id)
}

func (r *recordedFollowups) StatusChanged(ctx context.Context, id string, status model.BookingStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

type fixture struct {
	engine      *Engine
	store       *memoryStore
	invitations *invitationMemory
	followups   *recordedFollowups
}

func newFixture(t *testing.T, slots ...model.Slot) *fixture {
	t.Helper()
	store := newMemoryStore(slots...)
	invs := &invitationMemory{byID: map[string]*model.Invitation{}}
	inviteSvc := invitation.NewService(invs, store, store.slotGetter(), directoryStub{}, 0, "https://jobs.example.com", nil, nil)
	followups := &recordedFollowups{}
	return &fixture{
		engine:      NewEngine(store, store.slotGetter(), directoryStub{}, inviteSvc, followups, nil, nil, nil),
		store:       store,
		invitations: invs,
		followups:   followups,
	}
}

func interviewSlot(max int) model.Slot {
	return model.Slot{
		ID:            "slot-1",
		EmployerID:    "emp-1",
		Date:          "2026-03-10",
		StartTime:     "09:00",
		EndTime:       "09:30",
		Timezone:      "UTC",
		IsAvailable:   true,
		MaxCandidates: max,
	}
}

func bookingFor(name string) CreateBookingInput {
	return CreateBookingInput{
		SlotID: "slot-1",
		JobID:  "job-1",
		Candidate: model.CandidateContact{
			Name:  name,
			Email: fmt.Sprintf("%s@example.com", name),
		},
	}
}

func TestCreateBookingSecondCandidateHitsCapacity(t *testing.T) {
	f := newFixture(t, interviewSlot(1))
	ctx := context.Background()

	res, err := f.engine.CreateBooking(ctx, bookingFor("ada"))
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusScheduled, res.Booking.Status)
	assert.Equal(t, 1, f.store.slot("slot-1").CurrentBookings)
	require.NotNil(t, res.Invitation)
	assert.Equal(t, model.InvitationStatusSent, res.Invitation.Status)
	assert.Equal(t, []string{res.Booking.ID}, f.followups.confirmed)

	_, err = f.engine.CreateBooking(ctx, bookingFor("bob"))
	assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)
	assert.Equal(t, 1, f.store.slot("slot-1").CurrentBookings)
}

func TestCreateBookingConcurrentLastSeat(t *testing.T) {
	const callers = 25
	f := newFixture(t, interviewSlot(1))

	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		errs     = make(chan error, callers)
		successN int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.engine.CreateBooking(context.Background(), bookingFor(fmt.Sprintf("cand%d", i)))
			errs <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err == nil {
			successN++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)
	}
	assert.Equal(t, 1, successN)
	assert.Equal(t, 1, f.store.slot("slot-1").CurrentBookings)
}

func TestCreateBookingNeverOverbooksUnderLoad(t *testing.T) {
	f := newFixture(t, interviewSlot(3))

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.engine.CreateBooking(context.Background(), bookingFor(fmt.Sprintf("cand%d", i)))
		}(i)
	}
	wg.Wait()

	sl := f.store.slot("slot-1")
	assert.GreaterOrEqual(t, sl.CurrentBookings, 0)
	assert.LessOrEqual(t, sl.CurrentBookings, sl.MaxCandidates)
	assert.Equal(t, 3, sl.CurrentBookings)
}

func TestCreateBookingRejections(t *testing.T) {
	closed := interviewSlot(2)
	closed.IsAvailable = false

	tests := []struct {
		name  string
		slots []model.Slot
		in    CreateBookingInput
		want  error
	}{
		{name: "missing slot", in: bookingFor("ada"), want: apperr.ErrNotFound},
		{name: "closed slot", slots: []model.Slot{closed}, in: bookingFor("ada"), want: apperr.ErrCapacityExceeded},
		{
			name:  "unknown job",
			slots: []model.Slot{interviewSlot(1)},
			in:    CreateBookingInput{SlotID: "slot-1", JobID: "job-9", Candidate: model.CandidateContact{Name: "Ada", Email: "ada@example.com"}},
			want:  apperr.ErrNotFound,
		},
		{
			name:  "bad email",
			slots: []model.Slot{interviewSlot(1)},
			in:    CreateBookingInput{SlotID: "slot-1", JobID: "job-1", Candidate: model.CandidateContact{Name: "Ada", Email: "ada"}},
			want:  apperr.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.slots...)
			_, err := f.engine.CreateBooking(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.followups.confirmed)
		})
	}
}

func TestCreateBookingSurvivesInvitationFailure(t *testing.T) {
	f := newFixture(t, interviewSlot(1))
	f.invitations.fail = errors.New("insert failed")

	res, err := f.engine.CreateBooking(context.Background(), bookingFor("ada"))
	require.NoError(t, err)
	assert.Nil(t, res.Invitation)
	assert.Equal(t, 1, f.store.slot("slot-1").CurrentBookings)
	assert.Len(t, f.followups.confirmed, 1)
}

func TestUpdateStatusTerminalOnce(t *testing.T) {
	for _, target := range []model.BookingStatus{model.BookingStatusCompleted, model.BookingStatusCancelled, model.BookingStatusNoShow} {
		t.Run(string(target), func(t *testing.T) {
			f := newFixture(t, interviewSlot(1))
			ctx := context.Background()
			res, err := f.engine.CreateBooking(ctx, bookingFor("ada"))
			require.NoError(t, err)

			notes := "went well"
			b, err := f.engine.UpdateStatus(ctx, res.Booking.ID, target, &notes)
			require.NoError(t, err)
			assert.Equal(t, target, b.Status)
			assert.Equal(t, target == model.BookingStatusCompleted, b.CompletedAt != nil)

			for _, next := range []model.BookingStatus{model.BookingStatusCompleted, model.BookingStatusCancelled, model.BookingStatusNoShow} {
				_, err = f.engine.UpdateStatus(ctx, res.Booking.ID, next, nil)
				assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
			}
			assert.Equal(t, []model.BookingStatus{target}, f.followups.statuses)
		})
	}
}

func TestUpdateStatusRejectsNonTerminalTargets(t *testing.T) {
	f := newFixture(t, interviewSlot(1))
	res, err := f.engine.CreateBooking(context.Background(), bookingFor("ada"))
	require.NoError(t, err)

	_, err = f.engine.UpdateStatus(context.Background(), res.Booking.ID, model.BookingStatusScheduled, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = f.engine.UpdateStatus(context.Background(), res.Booking.ID, "rescheduled", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.engine.UpdateStatus(context.Background(), "missing", model.BookingStatusCancelled, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReleaseSlotIsExplicitAndIdempotent(t *testing.T) {
	f := newFixture(t, interviewSlot(1))
	ctx := context.Background()
	res, err := f.engine.CreateBooking(ctx, bookingFor("ada"))
	require.NoError(t, err)

	_, err = f.engine.ReleaseSlot(ctx, res.Booking.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = f.engine.UpdateStatus(ctx, res.Booking.ID, model.BookingStatusCancelled, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.slot("slot-1").CurrentBookings)

	released, err := f.engine.ReleaseSlot(ctx, res.Booking.ID)
	require.NoError(t, err)
	assert.True(t, released)
	assert.Equal(t, 0, f.store.slot("slot-1").CurrentBookings)

	released, err = f.engine.ReleaseSlot(ctx, res.Booking.ID)
	require.NoError(t, err)
	assert.False(t, released)
	assert.Equal(t, 0, f.store.slot("slot-1").CurrentBookings)
}

func TestDirectInvitationResolveAndSelectSlot(t *testing.T) {
	f := newFixture(t, interviewSlot(1))
	ctx := context.Background()
	inviteSvc := f.engine.inviter

	res, err := f.engine.CreateDirectInvitation(ctx, DirectInvitationInput{CandidateID: "cand-1", JobID: "job-1"})
	require.NoError(t, err)
	assert.False(t, res.Booking.HasSlot())
	assert.Equal(t, "grace@example.com", res.Booking.CandidateEmail)
	require.NotNil(t, res.Invitation)
	assert.Equal(t, []string{res.Booking.ID}, f.followups.direct)

	first, err := inviteSvc.Resolve(ctx, res.Invitation.Token)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationStatusOpened, first.Invitation.Status)
	assert.Equal(t, res.Booking.ID, first.Booking.ID)
	assert.Equal(t, "Backend Engineer", first.Job.Title)
	assert.Equal(t, "Acme", first.Employer.CompanyName)

	second, err := inviteSvc.Resolve(ctx, res.Invitation.Token)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationStatusOpened, second.Invitation.Status)

	b, err := f.engine.SelectSlot(ctx, res.Invitation.Token, "slot-1")
	require.NoError(t, err)
	require.True(t, b.HasSlot())
	assert.Equal(t, "slot-1", *b.SlotID)
	assert.Equal(t, 1, f.store.slot("slot-1").CurrentBookings)
	assert.Equal(t, []string{res.Booking.ID}, f.followups.confirmed)

	_, err = f.engine.SelectSlot(ctx, res.Invitation.Token, "slot-1")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestSelectSlotRejectsBadToken(t *testing.T) {
	f := newFixture(t, interviewSlot(1))
	_, err := f.engine.SelectSlot(context.Background(), "nope", "slot-1")
	assert.ErrorIs(t, err, apperr.ErrInvalidToken)
}
