package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"driveo/pkg/config"
	"driveo/pkg/logger"

	"github.com/go-mail/mail/v2"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Sender interface {
	Send(ctx context.Context, msg *Message) error
	Name() string
	// CheckAddr is the host:port the connectivity check dials. Empty means always reachable.
	CheckAddr() string
}

// NewSender picks the sender configured by MAIL_PROVIDER.
func NewSender(cfg *config.Config, log *logger.Logger) (Sender, error) {
	switch cfg.MailProvider {
	case config.MailProviderSMTP:
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("SMTP_HOST is required for the smtp mail provider")
		}
		return NewSMTPSender(SMTPOptions{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			StartTLS: cfg.SMTPStartTLS,
			From:     cfg.MailFrom,
			FromName: cfg.MailFromName,
			Timeout:  cfg.MailCheckTimeout * 5,
		}), nil
	case config.MailProviderSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required for the sendgrid mail provider")
		}
		return NewSendGridSender(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName), nil
	case config.MailProviderConsole, "":
		return NewConsoleSender(log), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
	}
}

type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	StartTLS bool
	From     string
	FromName string
	Timeout  time.Duration
}

type SMTPSender struct {
	opts SMTPOptions
}

func NewSMTPSender(opts SMTPOptions) *SMTPSender {
	return &SMTPSender{opts: opts}
}

func (s *SMTPSender) Name() string { return config.MailProviderSMTP }

func (s *SMTPSender) CheckAddr() string {
	return net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetAddressHeader("From", s.opts.From, s.opts.FromName)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBody("text/html", msg.HTMLBody)
	default:
		m.SetBody("text/plain", msg.TextBody)
	}
	for _, a := range msg.Attachments {
		m.AttachReader(a.Filename, bytes.NewReader(a.Content), mail.SetHeader(map[string][]string{
			"Content-Type": {a.ContentType},
		}))
	}

	d := mail.NewDialer(s.opts.Host, s.opts.Port, s.opts.Username, s.opts.Password)
	if s.opts.StartTLS {
		d.StartTLSPolicy = mail.MandatoryStartTLS
	} else {
		d.StartTLSPolicy = mail.OpportunisticStartTLS
	}
	if s.opts.Timeout > 0 {
		d.Timeout = s.opts.Timeout
	}
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
	sendGridCheck    = "api.sendgrid.com:443"
)

type SendGridSender struct {
	key  string
	from *sgmail.Email
}

func NewSendGridSender(key, fromEmail, fromName string) *SendGridSender {
	return &SendGridSender{key: key, from: sgmail.NewEmail(fromName, fromEmail)}
}

func (s *SendGridSender) Name() string { return config.MailProviderSendGrid }

func (s *SendGridSender) CheckAddr() string { return sendGridCheck }

func (s *SendGridSender) prepare(msg *Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	if msg.TextBody != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextBody))
	}
	if msg.HTMLBody != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLBody))
	}
	for _, a := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			Type:        a.ContentType,
			Filename:    a.Filename,
			Disposition: "attachment",
		})
	}
	return m
}

func (s *SendGridSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.key, sendGridEndpoint, sendGridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// ConsoleSender logs messages instead of delivering them.
type ConsoleSender struct {
	log *logger.Logger
}

func NewConsoleSender(log *logger.Logger) *ConsoleSender {
	return &ConsoleSender{log: log}
}

func (s *ConsoleSender) Name() string { return config.MailProviderConsole }

func (s *ConsoleSender) CheckAddr() string { return "" }

func (s *ConsoleSender) Send(_ context.Context, msg *Message) error {
	s.log.Info("Email (console)",
		"id", msg.ID,
		"to", msg.To,
		"subject", msg.Subject,
		"attachments", len(msg.Attachments),
		"body", msg.TextBody,
	)
	return nil
}
