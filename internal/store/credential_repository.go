package store

import (
	"context"
	"fmt"

	"interview-scheduler/internal/model"
)

type CredentialRepository struct {
	db DB
}

func NewCredentialRepository(db DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Get(ctx context.Context, employerID string) (*model.CalendarCredential, error) {
	var c model.CalendarCredential
	err := r.db.QueryRow(ctx,
		`SELECT employer_id, access_token, refresh_token, token_type, expiry, calendar_id, updated_at
		 FROM calendar_credentials WHERE employer_id = $1`, employerID,
	).Scan(&c.EmployerID, &c.AccessToken, &c.RefreshToken, &c.TokenType, &c.Expiry, &c.CalendarID, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "calendar credential")
	}
	return &c, nil
}

// Upsert keeps the stored refresh token when the new grant does not carry one.
func (r *CredentialRepository) Upsert(ctx context.Context, c *model.CalendarCredential) error {
	if c.CalendarID == "" {
		c.CalendarID = "primary"
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO calendar_credentials (employer_id, access_token, refresh_token, token_type, expiry, calendar_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (employer_id) DO UPDATE SET
		   access_token = EXCLUDED.access_token,
		   refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), calendar_credentials.refresh_token),
		   token_type = EXCLUDED.token_type,
		   expiry = EXCLUDED.expiry,
		   calendar_id = EXCLUDED.calendar_id,
		   updated_at = now()`,
		c.EmployerID, c.AccessToken, c.RefreshToken, c.TokenType, c.Expiry, c.CalendarID,
	)
	if err != nil {
		return fmt.Errorf("upsert calendar credential: %w", err)
	}
	return nil
}
