// Package notifications turns domain events into customer and vendor emails.
package notifications

import (
	"context"
	"errors"
	"fmt"

	"driveo/internal/events"
	"driveo/pkg/kafka"
	"driveo/pkg/logger"
	"driveo/pkg/mailer"
	"driveo/pkg/model"
)

var ErrMissingRecipient = errors.New("event has no recipient email")

type Composer interface {
	Compose(name string, to string, data any) (mailer.Message, error)
}

type MailSender interface {
	Send(ctx context.Context, msg mailer.Message) (mailer.Result, error)
}

type InvoiceDocuments interface {
	Document(ctx context.Context, bookingID string) ([]byte, *model.Invoice, error)
}

type Handler struct {
	templates Composer
	mail      MailSender
	invoices  InvoiceDocuments
	log       *logger.Logger
}

// NewHandler builds the handler. invoices may be nil, in which case
// confirmations go out without the PDF.
func NewHandler(templates Composer, mail MailSender, invoices InvoiceDocuments, log *logger.Logger) *Handler {
	return &Handler{
		templates: templates,
		mail:      mail,
		invoices:  invoices,
		log:       log,
	}
}

var _ events.Handler = (*Handler)(nil)

func (h *Handler) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.TypeBookingConfirmed:
		return h.bookingConfirmed(ctx, event)
	case events.TypeBookingCancelled:
		return h.bookingCancelled(ctx, event)
	case events.TypeVehicleApproved:
		return h.vehicleDecision(ctx, event, mailer.TemplateVehicleApproved)
	case events.TypeVehicleRejected:
		return h.vehicleDecision(ctx, event, mailer.TemplateVehicleRejected)
	default:
		h.log.Debug("Ignoring event", "event_id", event.ID, "type", event.Type)
		return nil
	}
}

func (h *Handler) bookingConfirmed(ctx context.Context, event events.Event) error {
	b := event.Booking
	if b == nil || b.UserEmail == "" {
		return missingRecipient(event)
	}

	msg, err := h.templates.Compose(mailer.TemplateBookingConfirmed, b.UserEmail, map[string]any{
		"Name":            b.UserName,
		"BookingNumber":   b.BookingNumber,
		"VehicleName":     b.VehicleName,
		"PickupDate":      b.PickupDate,
		"PickupLocation":  b.PickupLocation,
		"DropoffDate":     b.DropoffDate,
		"DropoffLocation": b.DropoffLocation,
		"Currency":        b.Currency,
		"Total":           b.TotalPrice,
		"InvoiceNumber":   b.InvoiceNumber,
	})
	if err != nil {
		return err
	}

	if h.invoices != nil && b.InvoiceNumber != "" {
		body, inv, err := h.invoices.Document(ctx, b.BookingID)
		if err != nil {
			h.log.Warn("Sending confirmation without invoice", "booking_id", b.BookingID, "error", err)
		} else {
			msg.Attachments = append(msg.Attachments, mailer.Attachment{
				Filename:    inv.InvoiceNumber + ".pdf",
				ContentType: "application/pdf",
				Content:     body,
			})
		}
	}

	return h.send(ctx, event, msg)
}

func (h *Handler) bookingCancelled(ctx context.Context, event events.Event) error {
	b := event.Booking
	if b == nil || b.UserEmail == "" {
		return missingRecipient(event)
	}

	msg, err := h.templates.Compose(mailer.TemplateBookingCancelled, b.UserEmail, map[string]any{
		"Name":          b.UserName,
		"BookingNumber": b.BookingNumber,
		"VehicleName":   b.VehicleName,
		"Reason":        b.CancelReason,
		"Refunded":      b.PaymentStatus == model.PaymentRefunded,
		"Currency":      b.Currency,
		"Total":         b.TotalPrice,
	})
	if err != nil {
		return err
	}
	return h.send(ctx, event, msg)
}

func (h *Handler) vehicleDecision(ctx context.Context, event events.Event, template string) error {
	v := event.Vehicle
	if v == nil || v.VendorEmail == "" {
		return missingRecipient(event)
	}

	msg, err := h.templates.Compose(template, v.VendorEmail, map[string]any{
		"Name":               v.VendorName,
		"VehicleName":        v.VehicleName,
		"RegistrationNumber": v.RegistrationNumber,
		"Reason":             v.Reason,
	})
	if err != nil {
		return err
	}
	return h.send(ctx, event, msg)
}

func (h *Handler) send(ctx context.Context, event events.Event, msg mailer.Message) error {
	res, err := h.mail.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", event.Type, err)
	}
	h.log.Info("Notification sent",
		"event_id", event.ID,
		"type", event.Type,
		"message_id", res.ID,
		"queued", res.Queued,
	)
	return nil
}

// missingRecipient cannot succeed on retry, so it is marked permanent.
func missingRecipient(event events.Event) error {
	return kafka.NewPermanentError("notification skipped",
		fmt.Errorf("%w: %s %s", ErrMissingRecipient, event.Type, event.ID))
}
