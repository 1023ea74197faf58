package model

import "time"

// Employer, Job and Candidate are owned by other modules and read-only here.

type Employer struct {
	ID          string `json:"id"`
	CompanyName string `json:"company_name"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
}

type Job struct {
	ID         string `json:"id"`
	EmployerID string `json:"employer_id"`
	Title      string `json:"title"`
	Location   string `json:"location,omitempty"`
}

type Candidate struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// CalendarCredential is an employer's stored OAuth2 grant for the calendar integration.
type CalendarCredential struct {
	EmployerID   string    `json:"employer_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
	CalendarID   string    `json:"calendar_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}
