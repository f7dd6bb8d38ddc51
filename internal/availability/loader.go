package availability

import (
	"context"
	"fmt"
	"time"

	"driveo/pkg/logger"
)

// VehicleInterval is one active booking as read from the store.
type VehicleInterval struct {
	VehicleID string
	Interval  Interval
}

type Source interface {
	// ActiveIntervals returns active bookings whose drop-off is after since.
	ActiveIntervals(ctx context.Context, since time.Time) ([]VehicleInterval, error)
}

// Loader warms the index from the booking store.
type Loader struct {
	source Source
	index  *Index
	log    *logger.Logger
}

func NewLoader(source Source, index *Index, log *logger.Logger) *Loader {
	return &Loader{source: source, index: index, log: log}
}

// Warm loads every active future booking. Vehicles whose stored bookings
// overlap are logged and skipped, leaving the Mongo re-check as their only guard.
func (l *Loader) Warm(ctx context.Context, now time.Time) (Stats, error) {
	rows, err := l.source.ActiveIntervals(ctx, now)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read active bookings: %w", err)
	}

	byVehicle := make(map[string][]Interval)
	for _, row := range rows {
		byVehicle[row.VehicleID] = append(byVehicle[row.VehicleID], row.Interval)
	}

	for vehicleID, intervals := range byVehicle {
		if err := l.index.Load(vehicleID, intervals); err != nil {
			l.log.Error("Skipping vehicle with inconsistent bookings", "vehicle_id", vehicleID, "error", err)
		}
	}

	stats := l.index.Stats()
	l.log.Info("Availability index warmed", "vehicles", stats.Vehicles, "intervals", stats.Intervals)
	return stats, nil
}
