package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"driveo/internal/availability"
	bookingserrors "driveo/internal/bookings/errors"
	"driveo/internal/bookings/repository"
	"driveo/internal/bookings/validator"
	"driveo/internal/events"
	vehicleserrors "driveo/internal/vehicles/errors"
	"driveo/pkg/config"
	"driveo/pkg/counter"
	apperrors "driveo/pkg/errors"
	"driveo/pkg/model"
	"driveo/pkg/sanitizer"
	"driveo/pkg/validation"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	reasonPaymentTimeout = "payment timeout"
	reasonCustomer       = "cancelled by customer"
	reasonAdmin          = "cancelled by admin"

	reapBatchSize = 100
)

type VehicleFinder interface {
	FindByID(ctx context.Context, id string) (*model.Vehicle, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type InvoiceIssuer interface {
	Issue(ctx context.Context, booking *model.Booking, user *model.User, vehicle *model.Vehicle) (*model.Invoice, error)
}

type ReapResult struct {
	Expired int `json:"expired"`
	Overdue int `json:"overdue"`
}

type BookingService interface {
	Create(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, actor model.Actor, id string) (*model.Booking, error)
	ListMine(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Booking, int64, error)
	ListForVendor(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Booking, int64, error)
	List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error)
	Pay(ctx context.Context, actor model.Actor, id, reference string) (*model.Booking, error)
	Cancel(ctx context.Context, actor model.Actor, id, reason string) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id, status string) (*model.Booking, error)
	// Reap cancels unpaid bookings past the payment window and flags trips
	// past their drop-off as overdue.
	Reap(ctx context.Context) (ReapResult, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	locks     repository.BookingLockRepository
	validator *validator.BookingValidator
	index     *availability.Index
	seq       counter.Sequencer
	vehicles  VehicleFinder
	users     UserFinder
	invoices  InvoiceIssuer
	publisher events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	locks repository.BookingLockRepository,
	validator *validator.BookingValidator,
	index *availability.Index,
	seq counter.Sequencer,
	vehicles VehicleFinder,
	users UserFinder,
	invoices InvoiceIssuer,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		locks:     locks,
		validator: validator,
		index:     index,
		seq:       seq,
		vehicles:  vehicles,
		users:     users,
		invoices:  invoices,
		publisher: publisher,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create reserves the vehicle for the requested window. The advisory lock
// serializes creators across instances, the index rejects overlaps in memory
// and the transaction re-checks against the stored bookings.
func (s *bookingService) Create(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error) {
	if actor.Anonymous() {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	req.PickupLocation = sanitizer.TrimAndNormalize(req.PickupLocation)
	req.DropoffLocation = sanitizer.TrimAndNormalize(req.DropoffLocation)
	req.PickupDate = req.PickupDate.UTC().Truncate(time.Millisecond)
	req.DropoffDate = req.DropoffDate.UTC().Truncate(time.Millisecond)
	if err := s.validator.ValidateRequest(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return nil, validation.ToAppError(err)
	}

	vehicle, err := s.vehicles.FindByID(ctx, req.VehicleID)
	if err != nil {
		return nil, s.mapVehicleError(err, req.VehicleID)
	}
	if !vehicle.Rentable(req.DropoffDate) {
		return nil, apperrors.Conflict("Vehicle is not available for booking")
	}

	owner := uuid.NewString()
	if err := s.locks.Acquire(ctx, vehicle.ID, owner, s.cfg.BookingLockTTL); err != nil {
		if errors.Is(err, bookingserrors.ErrLockHeld) {
			return nil, apperrors.Conflict("This vehicle is being booked by another request, please retry")
		}
		s.cfg.Log.Error("Failed to acquire booking lock", "vehicle_id", vehicle.ID, "error", err)
		return nil, apperrors.Internal("Failed to acquire booking lock", err)
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), vehicle.ID, owner); err != nil {
			s.cfg.Log.Warn("Failed to release booking lock", "vehicle_id", vehicle.ID, "error", err)
		}
	}()

	days := model.RentalDays(req.PickupDate, req.DropoffDate)
	booking := &model.Booking{
		ID:              s.repo.NewID(),
		VehicleID:       vehicle.ID,
		UserID:          actor.UserID,
		VendorID:        vehicle.VendorID,
		PickupDate:      req.PickupDate,
		DropoffDate:     req.DropoffDate,
		PickupLocation:  req.PickupLocation,
		DropoffLocation: req.DropoffLocation,
		District:        vehicle.District,
		Days:            days,
		PricePerDay:     vehicle.PricePerDay,
		TotalPrice:      model.RoundMoney(float64(days) * vehicle.PricePerDay),
		Status:          model.BookingPending,
		PaymentStatus:   model.PaymentPending,
	}

	interval := availability.Interval{Start: booking.PickupDate, End: booking.DropoffDate, BookingID: booking.ID}
	if err := s.index.Reserve(vehicle.ID, interval); err != nil {
		return nil, s.conflictError(err)
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		existing, err := s.repo.FindOverlap(sessCtx, booking.VehicleID, booking.PickupDate, booking.DropoffDate)
		if err != nil {
			return apperrors.Internal("Failed to check existing bookings", err)
		}
		if existing != nil {
			return overlapConflict(existing.PickupDate, existing.DropoffDate)
		}

		n, err := s.seq.Next(sessCtx, counter.Booking)
		if err != nil {
			return apperrors.Internal("Failed to allocate booking number", err)
		}
		booking.BookingNumber = counter.Format(counter.BookingPrefix, n)

		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		s.index.Release(vehicle.ID, booking.ID)
		s.cfg.Log.Error("Failed to create booking", "vehicle_id", vehicle.ID, "error", err)
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"booking_number", booking.BookingNumber,
		"vehicle_id", booking.VehicleID,
		"pickup_date", booking.PickupDate,
		"dropoff_date", booking.DropoffDate,
	)
	s.publish(ctx, events.TypeBookingCreated, booking, vehicle)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, actor model.Actor, id string) (*model.Booking, error) {
	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, booking) {
		return nil, apperrors.Forbidden("You cannot access this booking")
	}
	return booking, nil
}

func (s *bookingService) ListMine(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Booking, int64, error) {
	if actor.Anonymous() {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}
	return s.list(ctx, model.BookingFilter{UserID: actor.UserID}, limit, offset)
}

func (s *bookingService) ListForVendor(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Booking, int64, error) {
	if !actor.IsVendor() {
		return nil, 0, apperrors.Forbidden("Only vendors have vehicle bookings")
	}
	return s.list(ctx, model.BookingFilter{VendorID: actor.UserID}, limit, offset)
}

func (s *bookingService) List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error) {
	if filter.Status != "" {
		if err := s.validator.ValidateStatus(filter.Status); err != nil {
			return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid status: %s", filter.Status))
		}
	}
	return s.list(ctx, filter, limit, offset)
}

func (s *bookingService) list(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.Find(ctx, filter, limit, offset)
	}()

	wg.Wait()
	if errCount != nil {
		s.cfg.Log.Error("Failed to count bookings", "error", errCount)
		return nil, 0, apperrors.Internal("Failed to count bookings", errCount)
	}
	if errFind != nil {
		s.cfg.Log.Error("Failed to list bookings", "error", errFind)
		return nil, 0, apperrors.Internal("Failed to retrieve bookings", errFind)
	}

	return bookings, count, nil
}

// Pay records the payment and issues the invoice. Repeating the call with the
// same reference resumes a payment whose invoice could not be issued.
func (s *bookingService) Pay(ctx context.Context, actor model.Actor, id, reference string) (*model.Booking, error) {
	reference = sanitizer.TrimAndNormalize(reference)
	if err := s.validator.ValidatePayment(reference); err != nil {
		return nil, validation.ToAppError(err)
	}

	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(booking.UserID) {
		return nil, apperrors.Forbidden("Only the customer can pay for this booking")
	}

	switch {
	case booking.Status == model.BookingPending:
		booking, err = s.repo.UpdateStatus(ctx, id, model.BookingPending, repository.StatusChange{
			Status:           model.BookingBooked,
			PaymentStatus:    model.PaymentPaid,
			PaymentReference: reference,
		})
		if err != nil {
			return nil, s.mapError(err, id, "Failed to record payment")
		}
		s.cfg.Log.Info("Booking paid", "id", id, "reference", reference)
	case booking.PaymentStatus == model.PaymentPaid && booking.PaymentReference == reference:
		if booking.InvoiceNumber != "" {
			return booking, nil
		}
	default:
		return nil, apperrors.Conflict(fmt.Sprintf("Booking is %s and cannot be paid", booking.Status))
	}

	user, vehicle := s.parties(ctx, booking)
	invoice, err := s.invoices.Issue(ctx, booking, user, vehicle)
	if err != nil {
		s.cfg.Log.Error("Payment recorded but invoice not issued", "id", id, "error", err)
		return nil, err
	}
	if err := s.repo.SetInvoiceNumber(ctx, id, invoice.InvoiceNumber); err != nil {
		s.cfg.Log.Error("Failed to link invoice to booking", "id", id, "invoice_number", invoice.InvoiceNumber, "error", err)
		return nil, apperrors.Internal("Failed to link invoice", err)
	}
	booking.InvoiceNumber = invoice.InvoiceNumber

	s.publishWith(ctx, events.TypeBookingConfirmed, booking, user, vehicle)
	return booking, nil
}

func (s *bookingService) Cancel(ctx context.Context, actor model.Actor, id, reason string) (*model.Booking, error) {
	reason = sanitizer.TrimAndNormalize(reason)
	if err := s.validator.ValidateReason(reason); err != nil {
		return nil, validation.ToAppError(err)
	}

	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(booking.UserID) {
		return nil, apperrors.Forbidden("You cannot cancel this booking")
	}
	if booking.Status != model.BookingPending && booking.Status != model.BookingBooked {
		return nil, apperrors.Conflict(fmt.Sprintf("Booking is %s and cannot be cancelled", booking.Status))
	}

	if reason == "" {
		reason = reasonCustomer
		if actor.IsAdmin() && !actor.Owns(booking.UserID) {
			reason = reasonAdmin
		}
	}
	return s.transition(ctx, booking, model.BookingCancelled, reason)
}

func (s *bookingService) UpdateStatus(ctx context.Context, id, status string) (*model.Booking, error) {
	if err := s.validator.ValidateStatus(status); err != nil {
		return nil, validation.ToAppError(err)
	}

	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !model.CanTransition(booking.Status, status) {
		return nil, apperrors.Conflict(fmt.Sprintf("Booking cannot move from %s to %s", booking.Status, status))
	}
	// booked carries a payment and an invoice, so only Pay may set it.
	if status == model.BookingBooked {
		return nil, apperrors.Conflict("Bookings are confirmed by payment only")
	}

	reason := ""
	if status == model.BookingCancelled {
		reason = reasonAdmin
	}
	return s.transition(ctx, booking, status, reason)
}

func (s *bookingService) Reap(ctx context.Context) (ReapResult, error) {
	var result ReapResult
	now := s.now()

	stale, err := s.repo.FindStalePending(ctx, now.Add(-s.cfg.BookingPendingTTL), reapBatchSize)
	if err != nil {
		return result, fmt.Errorf("failed to find stale bookings: %w", err)
	}
	for _, b := range stale {
		if _, err := s.transition(ctx, b, model.BookingCancelled, reasonPaymentTimeout); err != nil {
			if !apperrors.HasCode(err, apperrors.CodeConflict) {
				s.cfg.Log.Warn("Failed to expire booking", "id", b.ID, "error", err)
			}
			continue
		}
		result.Expired++
	}

	trips, err := s.repo.FindOverdueTrips(ctx, now, reapBatchSize)
	if err != nil {
		return result, fmt.Errorf("failed to find overdue trips: %w", err)
	}
	for _, b := range trips {
		if _, err := s.transition(ctx, b, model.BookingOverdue, ""); err != nil {
			if !apperrors.HasCode(err, apperrors.CodeConflict) {
				s.cfg.Log.Warn("Failed to mark booking overdue", "id", b.ID, "error", err)
			}
			continue
		}
		result.Overdue++
	}

	if result.Expired > 0 || result.Overdue > 0 {
		s.cfg.Log.Info("Reaper pass finished", "expired", result.Expired, "overdue", result.Overdue)
	}
	return result, nil
}

// transition writes the status change guarded on the current status, then
// releases the calendar window if the booking stopped being active and
// publishes the matching event.
func (s *bookingService) transition(ctx context.Context, booking *model.Booking, to, reason string) (*model.Booking, error) {
	change := repository.StatusChange{Status: to, CancelReason: reason}
	if to == model.BookingCancelled && booking.PaymentStatus == model.PaymentPaid {
		change.PaymentStatus = model.PaymentRefunded
	}

	updated, err := s.repo.UpdateStatus(ctx, booking.ID, booking.Status, change)
	if err != nil {
		return nil, s.mapError(err, booking.ID, "Failed to update booking")
	}

	if !model.IsActiveBookingStatus(updated.Status) {
		s.index.Release(updated.VehicleID, updated.ID)
	}

	s.cfg.Log.Info("Booking status changed",
		"id", updated.ID,
		"from", booking.Status,
		"to", updated.Status,
		"payment_status", updated.PaymentStatus,
	)

	if eventType, ok := statusEvents[updated.Status]; ok {
		s.publish(ctx, eventType, updated, nil)
	}
	return updated, nil
}

var statusEvents = map[string]string{
	model.BookingBooked:    events.TypeBookingConfirmed,
	model.BookingCancelled: events.TypeBookingCancelled,
	model.BookingCompleted: events.TypeBookingCompleted,
	model.BookingOverdue:   events.TypeBookingOverdue,
}

func (s *bookingService) publish(ctx context.Context, eventType string, booking *model.Booking, vehicle *model.Vehicle) {
	if vehicle == nil {
		vehicle = s.loadVehicle(ctx, booking.VehicleID)
	}
	s.publishWith(ctx, eventType, booking, s.loadUser(ctx, booking.UserID), vehicle)
}

func (s *bookingService) publishWith(ctx context.Context, eventType string, booking *model.Booking, user *model.User, vehicle *model.Vehicle) {
	payload := events.BookingPayloadFrom(booking, user, vehicle)
	payload.Currency = s.cfg.InvoiceCurrency

	if err := s.publisher.Publish(ctx, events.NewBookingEvent(eventType, payload)); err != nil {
		s.cfg.Log.Error("Failed to publish booking event", "id", booking.ID, "event", eventType, "error", err)
	}
}

// parties loads the customer and vehicle of a booking. Either may come back
// nil; events and invoices tolerate missing details.
func (s *bookingService) parties(ctx context.Context, booking *model.Booking) (*model.User, *model.Vehicle) {
	return s.loadUser(ctx, booking.UserID), s.loadVehicle(ctx, booking.VehicleID)
}

func (s *bookingService) loadUser(ctx context.Context, id string) *model.User {
	if id == "" {
		return nil
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		s.cfg.Log.Warn("Failed to load booking customer", "user_id", id, "error", err)
		return nil
	}
	return user
}

func (s *bookingService) loadVehicle(ctx context.Context, id string) *model.Vehicle {
	if id == "" {
		return nil
	}
	vehicle, err := s.vehicles.FindByID(ctx, id)
	if err != nil {
		s.cfg.Log.Warn("Failed to load booking vehicle", "vehicle_id", id, "error", err)
		return nil
	}
	return vehicle
}

func (s *bookingService) find(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id, "Failed to retrieve booking")
	}
	return booking, nil
}

func (s *bookingService) mapError(err error, id, message string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	case errors.Is(err, bookingserrors.ErrStatusChanged):
		return apperrors.Conflict("Booking was modified by another request, please reload")
	default:
		s.cfg.Log.Error(message, "id", id, "error", err)
		return apperrors.Internal(message, err)
	}
}

func (s *bookingService) mapVehicleError(err error, id string) error {
	switch {
	case errors.Is(err, vehicleserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Vehicle", id)
	case errors.Is(err, vehicleserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid vehicle ID format")
	default:
		s.cfg.Log.Error("Failed to load vehicle", "vehicle_id", id, "error", err)
		return apperrors.Internal("Failed to load vehicle", err)
	}
}

func (s *bookingService) conflictError(err error) error {
	var conflict *availability.ConflictError
	if errors.As(err, &conflict) {
		return overlapConflict(conflict.Conflict.Start, conflict.Conflict.End)
	}
	if errors.Is(err, availability.ErrInvalidInterval) {
		return validation.Field("dropoff_date", "dropoff_date must be after pickup_date").AppError()
	}
	return apperrors.Internal("Failed to reserve vehicle", err)
}

func overlapConflict(start, end time.Time) error {
	return apperrors.Conflict(fmt.Sprintf(
		"Vehicle is already booked from %s to %s",
		start.Format(time.RFC3339),
		end.Format(time.RFC3339),
	)).WithDetails(map[string]any{
		"conflict_start": start,
		"conflict_end":   end,
	})
}

func canView(actor model.Actor, b *model.Booking) bool {
	return actor.IsAdmin() ||
		actor.Owns(b.UserID) ||
		(actor.IsVendor() && actor.Owns(b.VendorID))
}
