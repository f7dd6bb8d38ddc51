package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

const (
	TemplateOTPVerify        = "otp_verify"
	TemplateOTPReset         = "otp_reset"
	TemplateBookingConfirmed = "booking_confirmed"
	TemplateBookingCancelled = "booking_cancelled"
	TemplateVehicleApproved  = "vehicle_approved"
	TemplateVehicleRejected  = "vehicle_rejected"
)

//go:embed templates/*.html.tmpl templates/*.txt.tmpl
var templateFS embed.FS

var templateFuncs = map[string]any{
	"date": func(t time.Time) string {
		return t.Format("02 Jan 2006, 15:04 MST")
	},
	"money": func(v float64) string {
		return fmt.Sprintf("%.2f", v)
	},
}

// Renderer renders the embedded email templates. Each template name has a
// text file defining "<name>.subject" and "<name>.text", and an HTML file defining "<name>.html".
type Renderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

func NewRenderer() (*Renderer, error) {
	html, err := htmltemplate.New("mail").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse html templates: %w", err)
	}
	text, err := texttemplate.New("mail").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse text templates: %w", err)
	}
	return &Renderer{html: html, text: text}, nil
}

// Compose renders the named template into a message for to.
func (r *Renderer) Compose(name string, to string, data any) (Message, error) {
	var subject, text, html bytes.Buffer

	if err := r.text.ExecuteTemplate(&subject, name+".subject", data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s subject: %w", name, err)
	}
	if err := r.text.ExecuteTemplate(&text, name+".text", data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s text: %w", name, err)
	}
	if err := r.html.ExecuteTemplate(&html, name+".html", data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s html: %w", name, err)
	}

	return Message{
		To:       []string{to},
		Subject:  strings.TrimSpace(subject.String()),
		TextBody: strings.TrimSpace(text.String()) + "\n",
		HTMLBody: html.String(),
	}, nil
}
