package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"driveo/internal/availability"
	"driveo/internal/events"
	vehicleserrors "driveo/internal/vehicles/errors"
	"driveo/internal/vehicles/repository"
	"driveo/internal/vehicles/validator"
	"driveo/pkg/config"
	apperrors "driveo/pkg/errors"
	"driveo/pkg/model"
	"driveo/pkg/sanitizer"
	"driveo/pkg/storage"
	"driveo/pkg/validation"
)

const (
	defaultAvailabilityWindow = 30 * 24 * time.Hour
	maxAvailabilityWindow     = 366 * 24 * time.Hour
	// pickupGrace absorbs clock skew between client and server.
	pickupGrace = time.Minute
)

type LocationChecker interface {
	LocationExists(ctx context.Context, district, name string) (bool, error)
}

type BookingCounter interface {
	CountActiveByVehicle(ctx context.Context, vehicleID string, after time.Time) (int64, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AvailabilityView struct {
	VehicleID string    `json:"vehicle_id"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Free      bool      `json:"free"`
	Busy      []Window  `json:"busy"`
}

type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type VehicleService interface {
	Create(ctx context.Context, actor model.Actor, vehicle *model.Vehicle) error
	GetByID(ctx context.Context, actor model.Actor, id string) (*model.Vehicle, error)
	Search(ctx context.Context, filter model.VehicleFilter, limit int, offset int64) ([]*model.Vehicle, int64, error)
	Available(ctx context.Context, filter model.VehicleFilter, pickup, dropoff time.Time) ([]*model.Vehicle, error)
	Availability(ctx context.Context, id string, from, to time.Time) (*AvailabilityView, error)
	Update(ctx context.Context, actor model.Actor, id string, updates *model.VehicleUpdate) (*model.Vehicle, error)
	Delete(ctx context.Context, actor model.Actor, id string) error
	AddImage(ctx context.Context, actor model.Actor, id string, upload ImageUpload) (*model.Vehicle, error)
	ListByVendor(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Vehicle, int64, error)
	ListPending(ctx context.Context, limit int, offset int64) ([]*model.Vehicle, int64, error)
	Approve(ctx context.Context, id string) (*model.Vehicle, error)
	Reject(ctx context.Context, id string, reason string) (*model.Vehicle, error)
}

type vehicleService struct {
	repo      repository.VehicleRepository
	validator *validator.VehicleValidator
	locations LocationChecker
	bookings  BookingCounter
	users     UserFinder
	index     *availability.Index
	store     storage.ObjectStore
	publisher events.Publisher
	cfg       *config.Config
	now       func() time.Time
}

func NewVehicleService(
	repo repository.VehicleRepository,
	validator *validator.VehicleValidator,
	locations LocationChecker,
	bookings BookingCounter,
	users UserFinder,
	index *availability.Index,
	store storage.ObjectStore,
	publisher events.Publisher,
	cfg *config.Config,
) VehicleService {
	return &vehicleService{
		repo:      repo,
		validator: validator,
		locations: locations,
		bookings:  bookings,
		users:     users,
		index:     index,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *vehicleService) Create(ctx context.Context, actor model.Actor, vehicle *model.Vehicle) error {
	if !actor.IsAdmin() && !actor.IsVendor() {
		return apperrors.Forbidden("Only vendors and admins can list vehicles")
	}

	sanitize(vehicle)
	vehicle.ID = ""
	vehicle.Images = []string{}
	vehicle.IsDeleted = false
	vehicle.IsRejected = false
	vehicle.RejectionReason = ""

	if actor.IsAdmin() {
		vehicle.IsAdminApproved = true
	} else {
		vehicle.VendorID = actor.UserID
		vehicle.IsAdminApproved = false
	}

	if err := s.validator.Validate(vehicle); err != nil {
		return validation.ToAppError(err)
	}
	if err := s.checkLocation(ctx, vehicle.District, vehicle.Location); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, vehicle); err != nil {
		if errors.Is(err, vehicleserrors.ErrDuplicateRegistration) {
			return apperrors.Conflict(fmt.Sprintf("Vehicle with registration number %s already exists", vehicle.RegistrationNumber))
		}
		s.cfg.Log.Error("Failed to create vehicle", "registration_number", vehicle.RegistrationNumber, "error", err)
		return apperrors.Internal("Failed to create vehicle", err)
	}

	s.cfg.Log.Info("Vehicle created",
		"vehicle_id", vehicle.ID,
		"registration_number", vehicle.RegistrationNumber,
		"vendor_id", vehicle.VendorID,
		"approved", vehicle.IsAdminApproved,
	)
	return nil
}

func (s *vehicleService) GetByID(ctx context.Context, actor model.Actor, id string) (*model.Vehicle, error) {
	vehicle, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !vehicle.IsAdminApproved && !actor.IsAdmin() && !actor.Owns(vehicle.VendorID) {
		return nil, apperrors.NotFoundWithID("Vehicle", id)
	}
	s.present(ctx, vehicle)
	return vehicle, nil
}

func (s *vehicleService) Search(ctx context.Context, filter model.VehicleFilter, limit int, offset int64) ([]*model.Vehicle, int64, error) {
	sanitizeFilter(&filter)
	filter.Approval = model.ApprovalApproved
	filter.VendorID = ""
	return s.list(ctx, filter, limit, offset)
}

func (s *vehicleService) ListByVendor(ctx context.Context, actor model.Actor, limit int, offset int64) ([]*model.Vehicle, int64, error) {
	if actor.Anonymous() {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}
	return s.list(ctx, model.VehicleFilter{VendorID: actor.UserID, Approval: model.ApprovalAny}, limit, offset)
}

func (s *vehicleService) ListPending(ctx context.Context, limit int, offset int64) ([]*model.Vehicle, int64, error) {
	return s.list(ctx, model.VehicleFilter{Approval: model.ApprovalPending}, limit, offset)
}

func (s *vehicleService) list(ctx context.Context, filter model.VehicleFilter, limit int, offset int64) ([]*model.Vehicle, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		vehicles []*model.Vehicle
		count    int64
		findErr  error
		countErr error
		wg       sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		vehicles, findErr = s.repo.Find(ctx, filter, limit, offset)
	}()
	go func() {
		defer wg.Done()
		count, countErr = s.repo.Count(ctx, filter)
	}()
	wg.Wait()

	if findErr != nil {
		s.cfg.Log.Error("Failed to list vehicles", "error", findErr)
		return nil, 0, apperrors.Internal("Failed to retrieve vehicles", findErr)
	}
	if countErr != nil {
		s.cfg.Log.Error("Failed to count vehicles", "error", countErr)
		return nil, 0, apperrors.Internal("Failed to count vehicles", countErr)
	}

	for _, v := range vehicles {
		s.present(ctx, v)
	}
	return vehicles, count, nil
}

// Available returns the rentable vehicles matching filter that have no active
// booking overlapping [pickup, dropoff).
func (s *vehicleService) Available(ctx context.Context, filter model.VehicleFilter, pickup, dropoff time.Time) ([]*model.Vehicle, error) {
	if pickup.IsZero() || dropoff.IsZero() {
		return nil, apperrors.InvalidInput("pickup and dropoff are required")
	}
	if !pickup.Before(dropoff) {
		return nil, apperrors.InvalidInput("pickup must be before dropoff")
	}
	if pickup.Before(s.now().Add(-pickupGrace)) {
		return nil, apperrors.InvalidInput("pickup cannot be in the past")
	}

	sanitizeFilter(&filter)
	filter.Approval = model.ApprovalApproved
	filter.ValidUntil = dropoff

	candidates, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		s.cfg.Log.Error("Failed to load availability candidates", "error", err)
		return nil, apperrors.Internal("Failed to search vehicles", err)
	}

	ids := make([]string, len(candidates))
	byID := make(map[string]*model.Vehicle, len(candidates))
	for i, v := range candidates {
		ids[i] = v.ID
		byID[v.ID] = v
	}

	free := s.index.FreeAmong(ids, pickup, dropoff)
	out := make([]*model.Vehicle, 0, len(free))
	for _, id := range free {
		v := byID[id]
		s.present(ctx, v)
		out = append(out, v)
	}

	s.cfg.Log.Debug("Availability search",
		"district", filter.District,
		"location", filter.Location,
		"candidates", len(candidates),
		"free", len(out),
	)
	return out, nil
}

func (s *vehicleService) Availability(ctx context.Context, id string, from, to time.Time) (*AvailabilityView, error) {
	if from.IsZero() {
		from = s.now().UTC().Truncate(time.Minute)
	}
	if to.IsZero() {
		to = from.Add(defaultAvailabilityWindow)
	}
	if !from.Before(to) {
		return nil, apperrors.InvalidInput("from must be before to")
	}
	if to.Sub(from) > maxAvailabilityWindow {
		return nil, apperrors.InvalidInput("availability window cannot exceed one year")
	}

	vehicle, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !vehicle.IsAdminApproved {
		return nil, apperrors.NotFoundWithID("Vehicle", id)
	}

	free, _ := s.index.Check(id, from, to)
	busy := s.index.Busy(id, from, to)

	view := &AvailabilityView{
		VehicleID: id,
		From:      from,
		To:        to,
		Free:      free,
		Busy:      make([]Window, len(busy)),
	}
	for i, iv := range busy {
		view.Busy[i] = Window{Start: iv.Start, End: iv.End}
	}
	return view, nil
}

func (s *vehicleService) Update(ctx context.Context, actor model.Actor, id string, updates *model.VehicleUpdate) (*model.Vehicle, error) {
	if err := s.validator.ValidateUpdate(updates); err != nil {
		return nil, validation.ToAppError(err)
	}

	vehicle, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(vehicle.VendorID) {
		return nil, apperrors.Forbidden("You can only edit your own vehicles")
	}

	district, location := vehicle.District, vehicle.Location
	applyUpdate(vehicle, updates)
	sanitize(vehicle)

	// A vendor edit has to be approved again before the listing goes live.
	if !actor.IsAdmin() {
		vehicle.IsAdminApproved = false
		vehicle.IsRejected = false
		vehicle.RejectionReason = ""
	}

	if err := s.validator.Validate(vehicle); err != nil {
		return nil, validation.ToAppError(err)
	}
	if vehicle.District != district || vehicle.Location != location {
		if err := s.checkLocation(ctx, vehicle.District, vehicle.Location); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, id, vehicle); err != nil {
		return nil, s.mapError(err, id, "Failed to update vehicle")
	}

	s.cfg.Log.Info("Vehicle updated", "vehicle_id", id, "by", actor.UserID, "approved", vehicle.IsAdminApproved)
	s.present(ctx, vehicle)
	return vehicle, nil
}

func (s *vehicleService) Delete(ctx context.Context, actor model.Actor, id string) error {
	vehicle, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && !actor.Owns(vehicle.VendorID) {
		return apperrors.Forbidden("You can only delete your own vehicles")
	}

	active, err := s.bookings.CountActiveByVehicle(ctx, id, s.now())
	if err != nil {
		s.cfg.Log.Error("Failed to count active bookings", "vehicle_id", id, "error", err)
		return apperrors.Internal("Failed to check vehicle bookings", err)
	}
	if active > 0 {
		return apperrors.Conflict(fmt.Sprintf("Vehicle has %d active booking(s) and cannot be deleted", active))
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return s.mapError(err, id, "Failed to delete vehicle")
	}
	s.index.Forget(id)

	s.cfg.Log.Info("Vehicle deleted", "vehicle_id", id, "by", actor.UserID)
	return nil
}

func (s *vehicleService) AddImage(ctx context.Context, actor model.Actor, id string, upload ImageUpload) (*model.Vehicle, error) {
	if s.store == nil {
		return nil, apperrors.Unavailable("object storage")
	}
	if err := s.validator.ValidateImage(upload.ContentType, upload.Size); err != nil {
		return nil, validation.ToAppError(err)
	}

	vehicle, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(vehicle.VendorID) {
		return nil, apperrors.Forbidden("You can only upload images for your own vehicles")
	}

	key := storage.NewKey("vehicles/"+id, upload.Filename)
	if err := s.store.Put(ctx, key, upload.Body, upload.Size, upload.ContentType); err != nil {
		s.cfg.Log.Error("Failed to upload vehicle image", "vehicle_id", id, "key", key, "error", err)
		return nil, apperrors.Internal("Failed to upload image", err)
	}

	if err := s.repo.AddImage(ctx, id, key); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.cfg.Log.Warn("Failed to remove orphaned image", "key", key, "error", delErr)
		}
		return nil, s.mapError(err, id, "Failed to save image")
	}

	vehicle.Images = append(vehicle.Images, key)
	s.cfg.Log.Info("Vehicle image uploaded", "vehicle_id", id, "key", key, "size", upload.Size)
	s.present(ctx, vehicle)
	return vehicle, nil
}

func (s *vehicleService) Approve(ctx context.Context, id string) (*model.Vehicle, error) {
	return s.setApproval(ctx, id, true, "")
}

func (s *vehicleService) Reject(ctx context.Context, id string, reason string) (*model.Vehicle, error) {
	reason = strings.TrimSpace(reason)
	if err := s.validator.ValidateRejection(reason); err != nil {
		return nil, validation.ToAppError(err)
	}
	return s.setApproval(ctx, id, false, reason)
}

func (s *vehicleService) setApproval(ctx context.Context, id string, approved bool, reason string) (*model.Vehicle, error) {
	vehicle, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetApproval(ctx, id, approved, reason); err != nil {
		return nil, s.mapError(err, id, "Failed to update vehicle approval")
	}
	vehicle.IsAdminApproved = approved
	vehicle.IsRejected = !approved
	vehicle.RejectionReason = reason

	eventType := events.TypeVehicleApproved
	if !approved {
		eventType = events.TypeVehicleRejected
	}
	s.cfg.Log.Info("Vehicle approval changed", "vehicle_id", id, "event", eventType)
	s.publish(ctx, eventType, vehicle)

	s.present(ctx, vehicle)
	return vehicle, nil
}

func (s *vehicleService) publish(ctx context.Context, eventType string, vehicle *model.Vehicle) {
	payload := events.VehiclePayload{
		VehicleID:          vehicle.ID,
		VendorID:           vehicle.VendorID,
		VehicleName:        vehicle.DisplayName(),
		RegistrationNumber: vehicle.RegistrationNumber,
		Reason:             vehicle.RejectionReason,
	}
	if vehicle.VendorID != "" {
		vendor, err := s.users.FindByID(ctx, vehicle.VendorID)
		if err != nil {
			s.cfg.Log.Warn("Failed to load vendor for notification", "vendor_id", vehicle.VendorID, "error", err)
		} else {
			payload.VendorEmail = vendor.Email
			payload.VendorName = vendor.Username
		}
	}

	if err := s.publisher.Publish(ctx, events.NewVehicleEvent(eventType, payload)); err != nil {
		s.cfg.Log.Error("Failed to publish vehicle event", "vehicle_id", vehicle.ID, "event", eventType, "error", err)
	}
}

func (s *vehicleService) find(ctx context.Context, id string) (*model.Vehicle, error) {
	vehicle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id, "Failed to retrieve vehicle")
	}
	return vehicle, nil
}

func (s *vehicleService) checkLocation(ctx context.Context, district, location string) error {
	ok, err := s.locations.LocationExists(ctx, district, location)
	if err != nil {
		s.cfg.Log.Error("Failed to check location", "district", district, "location", location, "error", err)
		return apperrors.Internal("Failed to check location", err)
	}
	if !ok {
		return validation.Field("location", vehicleserrors.ErrUnknownLocation.Error()).AppError()
	}
	return nil
}

func (s *vehicleService) mapError(err error, id, message string) error {
	switch {
	case errors.Is(err, vehicleserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Vehicle", id)
	case errors.Is(err, vehicleserrors.ErrInvalidID):
		return apperrors.InvalidInput(fmt.Sprintf("Invalid vehicle ID: %s", id))
	default:
		s.cfg.Log.Error(message, "vehicle_id", id, "error", err)
		return apperrors.Internal(message, err)
	}
}

// present swaps stored image keys for presigned URLs. Keys that fail to sign
// are left as they are.
func (s *vehicleService) present(ctx context.Context, vehicle *model.Vehicle) {
	if s.store == nil || vehicle == nil {
		return
	}
	for i, img := range vehicle.Images {
		if strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") {
			continue
		}
		url, err := s.store.PresignGet(ctx, img, s.cfg.StoragePresignTTL)
		if err != nil {
			s.cfg.Log.Warn("Failed to presign image", "key", img, "error", err)
			continue
		}
		vehicle.Images[i] = url
	}
}

func sanitize(v *model.Vehicle) {
	v.RegistrationNumber = sanitizer.SanitizeRegistration(v.RegistrationNumber)
	v.Brand = sanitizer.TrimAndNormalize(v.Brand)
	v.Model = sanitizer.TrimAndNormalize(v.Model)
	v.Name = sanitizer.TrimAndNormalize(v.Name)
	v.CarType = sanitizer.SanitizeLabel(v.CarType)
	v.FuelType = sanitizer.SanitizeLabel(v.FuelType)
	v.Transmission = sanitizer.SanitizeLabel(v.Transmission)
	v.District = sanitizer.SanitizePlace(v.District)
	v.Location = sanitizer.SanitizePlace(v.Location)
	v.Description = strings.TrimSpace(v.Description)
	v.InsuranceEnd = v.InsuranceEnd.UTC()
	v.RegistrationEnd = v.RegistrationEnd.UTC()
	v.PollutionEnd = v.PollutionEnd.UTC()
}

func sanitizeFilter(f *model.VehicleFilter) {
	f.District = sanitizer.SanitizePlace(f.District)
	f.Location = sanitizer.SanitizePlace(f.Location)
	f.Brand = sanitizer.TrimAndNormalize(f.Brand)
	f.CarType = sanitizer.SanitizeLabel(f.CarType)
	f.FuelType = sanitizer.SanitizeLabel(f.FuelType)
	f.Transmission = sanitizer.SanitizeLabel(f.Transmission)
}

func applyUpdate(v *model.Vehicle, u *model.VehicleUpdate) {
	if u.Brand != nil {
		v.Brand = *u.Brand
	}
	if u.Model != nil {
		v.Model = *u.Model
	}
	if u.Name != nil {
		v.Name = *u.Name
	}
	if u.Year != nil {
		v.Year = *u.Year
	}
	if u.CarType != nil {
		v.CarType = *u.CarType
	}
	if u.FuelType != nil {
		v.FuelType = *u.FuelType
	}
	if u.Transmission != nil {
		v.Transmission = *u.Transmission
	}
	if u.Seats != nil {
		v.Seats = *u.Seats
	}
	if u.PricePerDay != nil {
		v.PricePerDay = *u.PricePerDay
	}
	if u.District != nil {
		v.District = *u.District
	}
	if u.Location != nil {
		v.Location = *u.Location
	}
	if u.Description != nil {
		v.Description = *u.Description
	}
	if u.InsuranceEnd != nil {
		v.InsuranceEnd = *u.InsuranceEnd
	}
	if u.RegistrationEnd != nil {
		v.RegistrationEnd = *u.RegistrationEnd
	}
	if u.PollutionEnd != nil {
		v.PollutionEnd = *u.PollutionEnd
	}
}
