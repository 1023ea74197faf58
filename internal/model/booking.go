package model

import "time"

type BookingStatus string

const (
	BookingStatusScheduled BookingStatus = "scheduled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusNoShow    BookingStatus = "no_show"
)

func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow:
		return true
	}
	return false
}

// ReleasesCapacity reports whether a booking in this status may give its seat back.
func (s BookingStatus) ReleasesCapacity() bool {
	return s == BookingStatusCancelled || s == BookingStatusNoShow
}

// Booking is a candidate's claim on a slot. SlotID is nil for a direct
// invitation that is still waiting for the candidate to pick a slot.
type Booking struct {
	ID                   string        `json:"id"`
	SlotID               *string       `json:"slot_id"`
	EmployerID           string        `json:"employer_id"`
	JobID                string        `json:"job_id"`
	CandidateID          *string       `json:"candidate_id,omitempty"`
	RecruitmentPartnerID *string       `json:"recruitment_partner_id,omitempty"`
	CandidateName        string        `json:"candidate_name"`
	CandidateEmail       string        `json:"candidate_email"`
	CandidatePhone       string        `json:"candidate_phone,omitempty"`
	Status               BookingStatus `json:"status"`
	Notes                string        `json:"notes,omitempty"`
	MeetingLink          string        `json:"meeting_link,omitempty"`
	SlotReleased         bool          `json:"slot_released,omitempty"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

func (b *Booking) HasSlot() bool {
	return b.SlotID != nil && *b.SlotID != ""
}

type CandidateContact struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,max=40"`
}
