package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	userserrors "driveo/internal/users/errors"
	"driveo/internal/users/repository"
	"driveo/pkg/config"
	apperrors "driveo/pkg/errors"
	"driveo/pkg/model"
	"driveo/pkg/sanitizer"
	"driveo/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type ActiveBookingCounter interface {
	CountActiveByUser(ctx context.Context, userID string) (int64, error)
}

type UserService interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, actor model.Actor, updates *model.UserProfileUpdate) (*model.User, error)
	List(ctx context.Context, filter model.UserFilter, limit int, offset int64) ([]*model.User, int64, error)
	Delete(ctx context.Context, id string) error
}

type userService struct {
	repo     repository.UserRepository
	bookings ActiveBookingCounter
	validate *validator.Validate
	cfg      *config.Config
}

func NewUserService(repo repository.UserRepository, bookings ActiveBookingCounter, cfg *config.Config) UserService {
	return &userService{
		repo:     repo,
		bookings: bookings,
		validate: validation.New(cfg.Log),
		cfg:      cfg,
	}
}

func (s *userService) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id, "Failed to retrieve user")
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, actor model.Actor, updates *model.UserProfileUpdate) (*model.User, error) {
	if actor.Anonymous() {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if err := validation.Struct(s.validate, updates); err != nil {
		return nil, validation.ToAppError(err)
	}

	user, err := s.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	if updates.Username != nil {
		user.Username = sanitizer.TrimAndNormalize(*updates.Username)
	}
	if updates.Address != nil {
		user.Address = strings.TrimSpace(*updates.Address)
	}
	if updates.Phone != nil {
		raw := strings.TrimSpace(*updates.Phone)
		user.Phone = sanitizer.NormalizePhone(raw, s.cfg.DefaultPhoneRegion)
		if raw != "" && user.Phone == "" {
			return nil, validation.Field("phone", "phone is not a valid phone number").AppError()
		}
	}

	if err := validation.Struct(s.validate, user); err != nil {
		return nil, validation.ToAppError(err)
	}

	if err := s.repo.Update(ctx, user.ID, user); err != nil {
		return nil, s.mapError(err, user.ID, "Failed to update profile")
	}

	s.cfg.Log.Info("User profile updated", "user_id", user.ID)
	return user, nil
}

func (s *userService) List(ctx context.Context, filter model.UserFilter, limit int, offset int64) ([]*model.User, int64, error) {
	if filter.Role != "" && filter.Role != model.RoleUser && filter.Role != model.RoleVendor && filter.Role != model.RoleAdmin {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid role: %s", filter.Role))
	}
	filter.Search = sanitizer.TrimAndNormalize(filter.Search)
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		users    []*model.User
		count    int64
		findErr  error
		countErr error
		wg       sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		users, findErr = s.repo.Find(ctx, filter, limit, offset)
	}()
	go func() {
		defer wg.Done()
		count, countErr = s.repo.Count(ctx, filter)
	}()
	wg.Wait()

	if findErr != nil {
		s.cfg.Log.Error("Failed to list users", "error", findErr)
		return nil, 0, apperrors.Internal("Failed to retrieve users", findErr)
	}
	if countErr != nil {
		s.cfg.Log.Error("Failed to count users", "error", countErr)
		return nil, 0, apperrors.Internal("Failed to count users", countErr)
	}
	return users, count, nil
}

func (s *userService) Delete(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	active, err := s.bookings.CountActiveByUser(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to count active bookings", "user_id", id, "error", err)
		return apperrors.Internal("Failed to check user bookings", err)
	}
	if active > 0 {
		return apperrors.Conflict(fmt.Sprintf("User has %d active booking(s) and cannot be deleted", active))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapError(err, id, "Failed to delete user")
	}

	s.cfg.Log.Info("User deleted", "user_id", id)
	return nil
}

func (s *userService) mapError(err error, id, message string) error {
	switch {
	case errors.Is(err, userserrors.ErrNotFound):
		return apperrors.NotFoundWithID("User", id)
	case errors.Is(err, userserrors.ErrInvalidID):
		return apperrors.InvalidInput(fmt.Sprintf("Invalid user ID: %s", id))
	default:
		s.cfg.Log.Error(message, "user_id", id, "error", err)
		return apperrors.Internal(message, err)
	}
}
