package service

import (
	"context"
	"sync"

	"driveo/internal/availability"
	"driveo/pkg/config"
	apperrors "driveo/pkg/errors"
	"driveo/pkg/model"
)

type UserCounter interface {
	Count(ctx context.Context, filter model.UserFilter) (int64, error)
}

type VehicleCounter interface {
	Count(ctx context.Context, filter model.VehicleFilter) (int64, error)
}

type BookingStats interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
	Revenue(ctx context.Context) (float64, error)
}

type IndexStats interface {
	Stats() availability.Stats
}

type Stats struct {
	Users    UserStats          `json:"users"`
	Vehicles VehicleStats       `json:"vehicles"`
	Bookings BookingStatsView   `json:"bookings"`
	Revenue  Revenue            `json:"revenue"`
	Index    availability.Stats `json:"availability_index"`
}

type UserStats struct {
	Customers int64 `json:"customers"`
	Vendors   int64 `json:"vendors"`
}

type VehicleStats struct {
	Total    int64 `json:"total"`
	Approved int64 `json:"approved"`
	Pending  int64 `json:"pending"`
}

type BookingStatsView struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

type Revenue struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type StatsService interface {
	Get(ctx context.Context) (*Stats, error)
}

type statsService struct {
	users    UserCounter
	vehicles VehicleCounter
	bookings BookingStats
	index    IndexStats
	cfg      *config.Config
}

func NewStatsService(users UserCounter, vehicles VehicleCounter, bookings BookingStats, index IndexStats, cfg *config.Config) StatsService {
	return &statsService{
		users:    users,
		vehicles: vehicles,
		bookings: bookings,
		index:    index,
		cfg:      cfg,
	}
}

// Get runs every count concurrently and fails if any of them fails.
func (s *statsService) Get(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Bookings: BookingStatsView{ByStatus: map[string]int64{}},
		Revenue:  Revenue{Currency: s.cfg.InvoiceCurrency},
	}

	var mu sync.Mutex
	var firstErr error
	var wg sync.WaitGroup

	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				s.cfg.Log.Error("Failed to compute dashboard stat", "stat", name, "error", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}

	run("customers", func() (err error) {
		stats.Users.Customers, err = s.users.Count(ctx, model.UserFilter{Role: model.RoleUser})
		return err
	})
	run("vendors", func() (err error) {
		stats.Users.Vendors, err = s.users.Count(ctx, model.UserFilter{Role: model.RoleVendor})
		return err
	})
	run("vehicles", func() (err error) {
		stats.Vehicles.Total, err = s.vehicles.Count(ctx, model.VehicleFilter{Approval: model.ApprovalAny})
		return err
	})
	run("approved_vehicles", func() (err error) {
		stats.Vehicles.Approved, err = s.vehicles.Count(ctx, model.VehicleFilter{Approval: model.ApprovalApproved})
		return err
	})
	run("pending_vehicles", func() (err error) {
		stats.Vehicles.Pending, err = s.vehicles.Count(ctx, model.VehicleFilter{Approval: model.ApprovalPending})
		return err
	})
	run("bookings", func() error {
		counts, err := s.bookings.CountByStatus(ctx)
		if err != nil {
			return err
		}
		stats.Bookings.ByStatus = counts
		for _, n := range counts {
			stats.Bookings.Total += n
		}
		return nil
	})
	run("revenue", func() (err error) {
		stats.Revenue.Amount, err = s.bookings.Revenue(ctx)
		return err
	})

	wg.Wait()
	if firstErr != nil {
		return nil, apperrors.Internal("Failed to compute dashboard statistics", firstErr)
	}

	stats.Revenue.Amount = model.RoundMoney(stats.Revenue.Amount)
	stats.Index = s.index.Stats()
	return stats, nil
}
