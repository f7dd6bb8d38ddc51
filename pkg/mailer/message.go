package mailer

import (
	"errors"
	"time"
)

var ErrNoRecipients = errors.New("message has no recipients")

type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// Message is one outgoing email. The delivery fields are maintained by the offline queue.
type Message struct {
	ID            string       `json:"id"`
	To            []string     `json:"to"`
	Subject       string       `json:"subject"`
	HTMLBody      string       `json:"html_body,omitempty"`
	TextBody      string       `json:"text_body,omitempty"`
	Attachments   []Attachment `json:"attachments,omitempty"`
	Attempts      int          `json:"attempts"`
	NextAttemptAt time.Time    `json:"next_attempt_at"`
	LastError     string       `json:"last_error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

type Result struct {
	ID     string
	Queued bool
}
