package model

import "time"

type InvitationStatus string

const (
	InvitationStatusSent   InvitationStatus = "sent"
	InvitationStatusOpened InvitationStatus = "opened"
)

// Invitation gates unauthenticated access to a booking. The token is opaque;
// it never encodes booking data.
type Invitation struct {
	ID             string           `json:"id"`
	BookingID      string           `json:"booking_id"`
	Token          string           `json:"-"`
	CandidateEmail string           `json:"candidate_email"`
	Status         InvitationStatus `json:"status"`
	ExpiresAt      time.Time        `json:"expires_at"`
	CreatedAt      time.Time        `json:"created_at"`
}

// ExpiredAt ignores the stored status: once past ExpiresAt the invitation is dead.
func (i *Invitation) ExpiredAt(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// InvitationContext is what the candidate scheduling page needs.
type InvitationContext struct {
	Invitation Invitation `json:"invitation"`
	Booking    Booking    `json:"booking"`
	Job        Job        `json:"job"`
	Employer   Employer   `json:"employer"`
	Slot       *Slot      `json:"slot,omitempty"`
}
