// Package notify renders candidate emails and hands them to a transport.
package notify

import "context"

// Attachment is the raw calendar file form.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// ICalEvent is the inline calendar invite form some mail clients prefer.
type ICalEvent struct {
	Method   string `json:"method"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type Message struct {
	Key        string      `json:"key"`
	Kind       Kind        `json:"kind"`
	From       string      `json:"from,omitempty"`
	To         string      `json:"to"`
	Subject    string      `json:"subject"`
	HTML       string      `json:"html"`
	Attachment *Attachment `json:"attachment,omitempty"`
	ICalEvent  *ICalEvent  `json:"ical_event,omitempty"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}
