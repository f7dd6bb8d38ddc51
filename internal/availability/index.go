package availability

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

var (
	ErrInvalidInterval = errors.New("interval end must be after its start")
	ErrOverlappingLoad = errors.New("loaded intervals overlap")
)

// Interval is the half-open window [Start, End) held by one booking.
type Interval struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	BookingID string    `json:"booking_id,omitempty"`
}

func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Overlaps treats touching intervals as disjoint.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

type ConflictError struct {
	VehicleID string
	Conflict  Interval
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("vehicle %s is already booked from %s to %s",
		e.VehicleID, e.Conflict.Start.Format(time.RFC3339), e.Conflict.End.Format(time.RFC3339))
}

type Stats struct {
	Vehicles  int `json:"vehicles"`
	Intervals int `json:"intervals"`
}

type calendar struct {
	mu        sync.RWMutex
	intervals []Interval // sorted by Start, pairwise disjoint
}

// firstEndingAfter is the index of the first interval with End > t. Since the
// intervals are disjoint and sorted by Start, their Ends are sorted too.
func (c *calendar) firstEndingAfter(t time.Time) int {
	return sort.Search(len(c.intervals), func(i int) bool {
		return c.intervals[i].End.After(t)
	})
}

func (c *calendar) conflict(start, end time.Time) (Interval, bool) {
	i := c.firstEndingAfter(start)
	if i < len(c.intervals) && c.intervals[i].Start.Before(end) {
		return c.intervals[i], true
	}
	return Interval{}, false
}

// Index keeps the reserved intervals of every vehicle in memory.
type Index struct {
	mu        sync.RWMutex
	calendars map[string]*calendar
}

func NewIndex() *Index {
	return &Index{calendars: make(map[string]*calendar)}
}

func (x *Index) lookup(vehicleID string) *calendar {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.calendars[vehicleID]
}

func (x *Index) lookupOrCreate(vehicleID string) *calendar {
	if c := x.lookup(vehicleID); c != nil {
		return c
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	c, ok := x.calendars[vehicleID]
	if !ok {
		c = &calendar{}
		x.calendars[vehicleID] = c
	}
	return c
}

// lockLive returns the vehicle's calendar write-locked. A calendar dropped by
// Forget between the lookup and the lock is skipped, so writes never land in a
// calendar that is no longer indexed.
func (x *Index) lockLive(vehicleID string) *calendar {
	for {
		c := x.lookupOrCreate(vehicleID)
		c.mu.Lock()
		if x.lookup(vehicleID) == c {
			return c
		}
		c.mu.Unlock()
	}
}

// Reserve inserts iv for the vehicle. An overlap yields *ConflictError.
// Reserving a booking again with the same bounds is a no-op.
func (x *Index) Reserve(vehicleID string, iv Interval) error {
	if !iv.Valid() {
		return ErrInvalidInterval
	}

	c := x.lockLive(vehicleID)
	defer c.mu.Unlock()

	if existing, ok := c.conflict(iv.Start, iv.End); ok {
		if iv.BookingID != "" && existing.BookingID == iv.BookingID &&
			existing.Start.Equal(iv.Start) && existing.End.Equal(iv.End) {
			return nil
		}
		return &ConflictError{VehicleID: vehicleID, Conflict: existing}
	}

	pos := sort.Search(len(c.intervals), func(i int) bool {
		return !c.intervals[i].Start.Before(iv.Start)
	})
	c.intervals = slices.Insert(c.intervals, pos, iv)
	return nil
}

// Check reports whether [start, end) is free, returning the first conflict otherwise.
func (x *Index) Check(vehicleID string, start, end time.Time) (bool, *Interval) {
	c := x.lookup(vehicleID)
	if c == nil {
		return true, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if existing, ok := c.conflict(start, end); ok {
		return false, &existing
	}
	return true, nil
}

// Busy lists the intervals intersecting [from, to) in start order.
func (x *Index) Busy(vehicleID string, from, to time.Time) []Interval {
	c := x.lookup(vehicleID)
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Interval
	for i := c.firstEndingAfter(from); i < len(c.intervals) && c.intervals[i].Start.Before(to); i++ {
		out = append(out, c.intervals[i])
	}
	return out
}

// FreeAmong keeps the vehicles free for [start, end), preserving input order.
func (x *Index) FreeAmong(vehicleIDs []string, start, end time.Time) []string {
	free := make([]string, 0, len(vehicleIDs))
	for _, id := range vehicleIDs {
		if ok, _ := x.Check(id, start, end); ok {
			free = append(free, id)
		}
	}
	return free
}

// Release drops the booking's interval. It reports whether one was found.
func (x *Index) Release(vehicleID, bookingID string) bool {
	c := x.lookup(vehicleID)
	if c == nil || bookingID == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := slices.IndexFunc(c.intervals, func(iv Interval) bool { return iv.BookingID == bookingID })
	if idx < 0 {
		return false
	}
	c.intervals = slices.Delete(c.intervals, idx, idx+1)
	return true
}

// Load replaces a vehicle's calendar. The input is sorted here; overlapping or
// invalid intervals reject the whole load.
func (x *Index) Load(vehicleID string, intervals []Interval) error {
	sorted := slices.Clone(intervals)
	slices.SortFunc(sorted, func(a, b Interval) int { return a.Start.Compare(b.Start) })
	for i, iv := range sorted {
		if !iv.Valid() {
			return ErrInvalidInterval
		}
		if i > 0 && sorted[i-1].Overlaps(iv) {
			return fmt.Errorf("%w: bookings %s and %s on vehicle %s",
				ErrOverlappingLoad, sorted[i-1].BookingID, iv.BookingID, vehicleID)
		}
	}

	c := x.lockLive(vehicleID)
	c.intervals = sorted
	c.mu.Unlock()
	return nil
}

func (x *Index) Forget(vehicleID string) {
	x.mu.Lock()
	delete(x.calendars, vehicleID)
	x.mu.Unlock()
}

func (x *Index) Stats() Stats {
	x.mu.RLock()
	cals := make([]*calendar, 0, len(x.calendars))
	for _, c := range x.calendars {
		cals = append(cals, c)
	}
	x.mu.RUnlock()

	s := Stats{Vehicles: len(cals)}
	for _, c := range cals {
		c.mu.RLock()
		s.Intervals += len(c.intervals)
		c.mu.RUnlock()
	}
	return s
}
