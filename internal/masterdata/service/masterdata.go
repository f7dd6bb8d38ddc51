package service

import (
	"context"
	"errors"
	"fmt"

	mdErrors "driveo/internal/masterdata/errors"
	"driveo/internal/masterdata/repository"
	"driveo/pkg/config"
	apperrors "driveo/pkg/errors"
	"driveo/pkg/model"
	"driveo/pkg/sanitizer"
	"driveo/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type MasterDataService interface {
	Locations(ctx context.Context, district string) ([]*model.Location, error)
	Districts(ctx context.Context) ([]string, error)
	CreateLocation(ctx context.Context, location *model.Location) error
	DeleteLocation(ctx context.Context, id string) error
	LocationExists(ctx context.Context, district, name string) (bool, error)

	CarModels(ctx context.Context, brand string) ([]*model.CarModel, error)
	CreateCarModel(ctx context.Context, carModel *model.CarModel) error
	DeleteCarModel(ctx context.Context, id string) error
}

type masterDataService struct {
	locations repository.LocationRepository
	carModels repository.CarModelRepository
	validate  *validator.Validate
	cfg       *config.Config
}

func NewMasterDataService(locations repository.LocationRepository, carModels repository.CarModelRepository, cfg *config.Config) MasterDataService {
	return &masterDataService{
		locations: locations,
		carModels: carModels,
		validate:  validation.New(cfg.Log),
		cfg:       cfg,
	}
}

func (s *masterDataService) Locations(ctx context.Context, district string) ([]*model.Location, error) {
	locations, err := s.locations.Find(ctx, sanitizer.SanitizePlace(district))
	if err != nil {
		s.cfg.Log.Error("Failed to list locations", "district", district, "error", err)
		return nil, apperrors.Internal("Failed to retrieve locations", err)
	}
	return locations, nil
}

func (s *masterDataService) Districts(ctx context.Context) ([]string, error) {
	districts, err := s.locations.Districts(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list districts", "error", err)
		return nil, apperrors.Internal("Failed to retrieve districts", err)
	}
	return districts, nil
}

func (s *masterDataService) CreateLocation(ctx context.Context, location *model.Location) error {
	location.ID = ""
	location.District = sanitizer.SanitizePlace(location.District)
	location.Name = sanitizer.SanitizePlace(location.Name)
	location.IsActive = true

	if err := validation.Struct(s.validate, location); err != nil {
		return validation.ToAppError(err)
	}

	if err := s.locations.Create(ctx, location); err != nil {
		if errors.Is(err, mdErrors.ErrDuplicate) {
			return apperrors.Conflict(fmt.Sprintf("Location %s already exists in %s", location.Name, location.District))
		}
		s.cfg.Log.Error("Failed to create location", "district", location.District, "name", location.Name, "error", err)
		return apperrors.Internal("Failed to create location", err)
	}

	s.cfg.Log.Info("Location created", "id", location.ID, "district", location.District, "name", location.Name)
	return nil
}

func (s *masterDataService) DeleteLocation(ctx context.Context, id string) error {
	if err := s.locations.Delete(ctx, id); err != nil {
		return s.mapError(err, "Location", id)
	}
	s.cfg.Log.Info("Location deleted", "id", id)
	return nil
}

// LocationExists expects raw input and sanitizes it the same way CreateLocation does.
func (s *masterDataService) LocationExists(ctx context.Context, district, name string) (bool, error) {
	return s.locations.Exists(ctx, sanitizer.SanitizePlace(district), sanitizer.SanitizePlace(name))
}

func (s *masterDataService) CarModels(ctx context.Context, brand string) ([]*model.CarModel, error) {
	models, err := s.carModels.Find(ctx, sanitizer.TrimAndNormalize(brand))
	if err != nil {
		s.cfg.Log.Error("Failed to list car models", "brand", brand, "error", err)
		return nil, apperrors.Internal("Failed to retrieve car models", err)
	}
	return models, nil
}

func (s *masterDataService) CreateCarModel(ctx context.Context, carModel *model.CarModel) error {
	carModel.ID = ""
	carModel.Brand = sanitizer.TrimAndNormalize(carModel.Brand)
	carModel.Model = sanitizer.TrimAndNormalize(carModel.Model)
	carModel.CarType = sanitizer.SanitizeLabel(carModel.CarType)

	if err := validation.Struct(s.validate, carModel); err != nil {
		return validation.ToAppError(err)
	}

	if err := s.carModels.Create(ctx, carModel); err != nil {
		if errors.Is(err, mdErrors.ErrDuplicate) {
			return apperrors.Conflict(fmt.Sprintf("Car model %s %s already exists", carModel.Brand, carModel.Model))
		}
		s.cfg.Log.Error("Failed to create car model", "brand", carModel.Brand, "model", carModel.Model, "error", err)
		return apperrors.Internal("Failed to create car model", err)
	}

	s.cfg.Log.Info("Car model created", "id", carModel.ID, "brand", carModel.Brand, "model", carModel.Model)
	return nil
}

func (s *masterDataService) DeleteCarModel(ctx context.Context, id string) error {
	if err := s.carModels.Delete(ctx, id); err != nil {
		return s.mapError(err, "Car model", id)
	}
	s.cfg.Log.Info("Car model deleted", "id", id)
	return nil
}

func (s *masterDataService) mapError(err error, resource, id string) error {
	switch {
	case errors.Is(err, mdErrors.ErrNotFound):
		return apperrors.NotFoundWithID(resource, id)
	case errors.Is(err, mdErrors.ErrInvalidID):
		return apperrors.InvalidInput(fmt.Sprintf("Invalid %s ID: %s", resource, id))
	default:
		s.cfg.Log.Error("Master data operation failed", "resource", resource, "id", id, "error", err)
		return apperrors.Internal("Failed to update "+resource, err)
	}
}
