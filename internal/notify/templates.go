package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindInvitation   Kind = "invitation"
	KindCancelled    Kind = "cancelled"
	KindCompleted    Kind = "completed"
	KindNoShow       Kind = "no_show"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[Kind]string{
	KindConfirmation: "Your interview with %s is confirmed",
	KindInvitation:   "%s invites you to schedule an interview",
	KindCancelled:    "Your interview with %s has been cancelled",
	KindCompleted:    "Thank you for interviewing with %s",
	KindNoShow:       "We missed you at your interview with %s",
}

// EmailData feeds every template. Empty fields are skipped by the templates.
type EmailData struct {
	CandidateName  string
	CompanyName    string
	JobTitle       string
	Date           string
	StartTime      string
	EndTime        string
	Timezone       string
	MeetingLink    string
	InvitationLink string
	Notes          string
}

type Renderer struct {
	templates *template.Template
}

func NewRenderer() (*Renderer, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Renderer{templates: t}, nil
}

// Render returns the subject and HTML body for kind.
func (r *Renderer) Render(kind Kind, data EmailData) (string, string, error) {
	subject, ok := subjects[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notification kind %q", kind)
	}
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, string(kind)+".html", data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", kind, err)
	}
	return fmt.Sprintf(subject, data.CompanyName), buf.String(), nil
}
