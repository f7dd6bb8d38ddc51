package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	invoiceserrors "driveo/internal/invoices/errors"
	"driveo/internal/invoices/repository"
	"driveo/pkg/config"
	"driveo/pkg/counter"
	apperrors "driveo/pkg/errors"
	"driveo/pkg/model"
	"driveo/pkg/storage"
)

const objectPrefix = "invoices"

type Renderer interface {
	Render(inv *model.Invoice) ([]byte, error)
}

type InvoiceService interface {
	// Issue returns the booking's existing invoice when one was already issued.
	Issue(ctx context.Context, booking *model.Booking, user *model.User, vehicle *model.Vehicle) (*model.Invoice, error)
	GetByBooking(ctx context.Context, bookingID string) (*model.Invoice, error)
	PDF(ctx context.Context, actor model.Actor, bookingID string) ([]byte, *model.Invoice, error)
	Document(ctx context.Context, bookingID string) ([]byte, *model.Invoice, error)
	ListMine(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Invoice, int64, error)
	ListAll(ctx context.Context, limit int, offset int64) ([]*model.Invoice, int64, error)
}

type invoiceService struct {
	repo     repository.InvoiceRepository
	seq      counter.Sequencer
	renderer Renderer
	store    storage.ObjectStore
	cfg      *config.Config
	now      func() time.Time
}

// NewInvoiceService builds the service. store may be nil, in which case PDFs
// are rendered on every download.
func NewInvoiceService(repo repository.InvoiceRepository, seq counter.Sequencer, renderer Renderer, store storage.ObjectStore, cfg *config.Config) InvoiceService {
	return &invoiceService{
		repo:     repo,
		seq:      seq,
		renderer: renderer,
		store:    store,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *invoiceService) Issue(ctx context.Context, booking *model.Booking, user *model.User, vehicle *model.Vehicle) (*model.Invoice, error) {
	existing, err := s.repo.FindByBookingID(ctx, booking.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, invoiceserrors.ErrNotFound) {
		s.cfg.Log.Error("Failed to look up invoice", "booking_id", booking.ID, "error", err)
		return nil, apperrors.Internal("Failed to issue invoice", err)
	}

	n, err := s.seq.Next(ctx, counter.Invoice)
	if err != nil {
		s.cfg.Log.Error("Failed to draw invoice number", "booking_id", booking.ID, "error", err)
		return nil, apperrors.Internal("Failed to issue invoice", err)
	}

	inv := s.build(counter.Format(counter.InvoicePrefix, n), booking, user, vehicle)

	body, err := s.renderer.Render(inv)
	if err != nil {
		s.cfg.Log.Error("Failed to render invoice", "invoice_number", inv.InvoiceNumber, "error", err)
		return nil, apperrors.Internal("Failed to render invoice", err)
	}

	if s.store != nil {
		key := fmt.Sprintf("%s/%s.pdf", objectPrefix, inv.InvoiceNumber)
		if err := s.store.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "application/pdf"); err != nil {
			s.cfg.Log.Warn("Failed to upload invoice, it will be rendered on demand",
				"invoice_number", inv.InvoiceNumber, "error", err)
		} else {
			inv.ObjectKey = key
		}
	}

	if err := s.repo.Create(ctx, inv); err != nil {
		if errors.Is(err, invoiceserrors.ErrDuplicateBooking) {
			s.discard(ctx, inv)
			return s.GetByBooking(ctx, booking.ID)
		}
		s.discard(ctx, inv)
		s.cfg.Log.Error("Failed to store invoice", "invoice_number", inv.InvoiceNumber, "error", err)
		return nil, apperrors.Internal("Failed to issue invoice", err)
	}

	s.cfg.Log.Info("Invoice issued",
		"invoice_number", inv.InvoiceNumber,
		"booking_id", booking.ID,
		"total", inv.Total,
	)
	return inv, nil
}

func (s *invoiceService) build(number string, booking *model.Booking, user *model.User, vehicle *model.Vehicle) *model.Invoice {
	days := booking.Days
	if days < 1 {
		days = model.RentalDays(booking.PickupDate, booking.DropoffDate)
	}

	rental := model.InvoiceItem{
		Description: fmt.Sprintf("Vehicle rental, %d day(s)", days),
		Quantity:    days,
		UnitPrice:   booking.PricePerDay,
		Amount:      model.RoundMoney(float64(days) * booking.PricePerDay),
	}

	inv := &model.Invoice{
		InvoiceNumber:    number,
		BookingID:        booking.ID,
		BookingNumber:    booking.BookingNumber,
		UserID:           booking.UserID,
		VehicleID:        booking.VehicleID,
		PickupDate:       booking.PickupDate,
		DropoffDate:      booking.DropoffDate,
		PickupLocation:   booking.PickupLocation,
		DropoffLocation:  booking.DropoffLocation,
		Items:            []model.InvoiceItem{rental},
		Subtotal:         rental.Amount,
		TaxRate:          s.cfg.InvoiceTaxRate,
		Currency:         s.cfg.InvoiceCurrency,
		PaymentReference: booking.PaymentReference,
		IssuedAt:         s.now().UTC().Truncate(time.Millisecond),
	}
	inv.Tax = model.RoundMoney(inv.Subtotal * inv.TaxRate)
	inv.Total = model.RoundMoney(inv.Subtotal + inv.Tax)

	if user != nil {
		inv.CustomerName = user.Username
		inv.CustomerEmail = user.Email
	}
	if vehicle != nil {
		inv.VehicleName = vehicle.DisplayName()
		inv.RegistrationNumber = vehicle.RegistrationNumber
	}
	return inv
}

func (s *invoiceService) discard(ctx context.Context, inv *model.Invoice) {
	if s.store == nil || inv.ObjectKey == "" {
		return
	}
	if err := s.store.Delete(ctx, inv.ObjectKey); err != nil {
		s.cfg.Log.Warn("Failed to delete orphaned invoice object", "key", inv.ObjectKey, "error", err)
	}
}

func (s *invoiceService) GetByBooking(ctx context.Context, bookingID string) (*model.Invoice, error) {
	inv, err := s.repo.FindByBookingID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, invoiceserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Invoice")
		}
		s.cfg.Log.Error("Failed to retrieve invoice", "booking_id", bookingID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve invoice", err)
	}
	return inv, nil
}

func (s *invoiceService) PDF(ctx context.Context, actor model.Actor, bookingID string) ([]byte, *model.Invoice, error) {
	inv, err := s.GetByBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(inv.UserID) {
		return nil, nil, apperrors.Forbidden("You cannot access this invoice")
	}
	return s.document(ctx, inv)
}

// Document returns the PDF without an access check. It is used by the
// notification worker to attach invoices to emails.
func (s *invoiceService) Document(ctx context.Context, bookingID string) ([]byte, *model.Invoice, error) {
	inv, err := s.GetByBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	return s.document(ctx, inv)
}

// document serves the stored object when there is one and falls back to
// rendering from the invoice document.
func (s *invoiceService) document(ctx context.Context, inv *model.Invoice) ([]byte, *model.Invoice, error) {
	if s.store != nil && inv.ObjectKey != "" {
		body, err := s.fetch(ctx, inv.ObjectKey)
		if err == nil {
			return body, inv, nil
		}
		s.cfg.Log.Warn("Failed to fetch stored invoice, rendering instead", "key", inv.ObjectKey, "error", err)
	}

	body, err := s.renderer.Render(inv)
	if err != nil {
		s.cfg.Log.Error("Failed to render invoice", "invoice_number", inv.InvoiceNumber, "error", err)
		return nil, nil, apperrors.Internal("Failed to render invoice", err)
	}
	return body, inv, nil
}

func (s *invoiceService) fetch(ctx context.Context, key string) ([]byte, error) {
	rc, _, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *invoiceService) ListMine(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Invoice, int64, error) {
	if actor.Anonymous() {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}
	return s.list(ctx, actor.UserID, limit, offset)
}

func (s *invoiceService) ListAll(ctx context.Context, limit int, offset int64) ([]*model.Invoice, int64, error) {
	return s.list(ctx, "", limit, offset)
}

func (s *invoiceService) list(ctx context.Context, userID string, limit int, offset int64) ([]*model.Invoice, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		invoices []*model.Invoice
		count    int64
		findErr  error
		countErr error
		wg       sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		invoices, findErr = s.repo.Find(ctx, userID, limit, offset)
	}()
	go func() {
		defer wg.Done()
		count, countErr = s.repo.Count(ctx, userID)
	}()
	wg.Wait()

	if findErr != nil {
		s.cfg.Log.Error("Failed to list invoices", "user_id", userID, "error", findErr)
		return nil, 0, apperrors.Internal("Failed to retrieve invoices", findErr)
	}
	if countErr != nil {
		s.cfg.Log.Error("Failed to count invoices", "user_id", userID, "error", countErr)
		return nil, 0, apperrors.Internal("Failed to count invoices", countErr)
	}
	return invoices, count, nil
}
