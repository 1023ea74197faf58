package store

import (
	"context"
	"fmt"

	"interview-scheduler/internal/apperr"
	"interview-scheduler/internal/model"
)

const invitationColumns = `id, booking_id, token, candidate_email, status, expires_at, created_at`

type InvitationRepository struct {
	db DB
}

func NewInvitationRepository(db DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

func scanInvitation(row scanner) (*model.Invitation, error) {
	var inv model.Invitation
	if err := row.Scan(&inv.ID, &inv.BookingID, &inv.Token, &inv.CandidateEmail, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Create returns ErrConflict when the token or booking already has an invitation.
func (r *InvitationRepository) Create(ctx context.Context, inv *model.Invitation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO invitations (id, booking_id, token, candidate_email, status, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inv.ID, inv.BookingID, inv.Token, inv.CandidateEmail, inv.Status, inv.ExpiresAt, inv.CreatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.Wrap(err, apperr.ErrConflict, "invitation already exists")
	}
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

func (r *InvitationRepository) FindByToken(ctx context.Context, token string) (*model.Invitation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE token = $1`, token)
	inv, err := scanInvitation(row)
	if err != nil {
		return nil, notFound(err, "invitation")
	}
	return inv, nil
}

func (r *InvitationRepository) FindByBooking(ctx context.Context, bookingID string) (*model.Invitation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE booking_id = $1`, bookingID)
	inv, err := scanInvitation(row)
	if err != nil {
		return nil, notFound(err, "invitation")
	}
	return inv, nil
}

// MarkOpened flips sent to opened. It reports false if the invitation was already opened.
func (r *InvitationRepository) MarkOpened(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE invitations SET status = 'opened' WHERE id = $1 AND status = 'sent'`, id)
	if err != nil {
		return false, fmt.Errorf("mark invitation opened: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
