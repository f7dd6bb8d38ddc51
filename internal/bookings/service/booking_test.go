package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"driveo/internal/availability"
	bookingserrors "driveo/internal/bookings/errors"
	"driveo/internal/bookings/repository"
	"driveo/internal/bookings/validator"
	"driveo/internal/events"
	vehicleserrors "driveo/internal/vehicles/errors"
	"driveo/pkg/config"
	mongotx "driveo/pkg/db/mongo"
	apperrors "driveo/pkg/errors"
	"driveo/pkg/logger"
	"driveo/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

// memBookings is an in-memory BookingRepository. Only the methods the
// service calls are meaningful.
type memBookings struct {
	repository.BookingRepository

	mu        sync.Mutex
	seq       int
	items     map[string]*model.Booking
	createErr error
}

func newMemBookings() *memBookings {
	return &memBookings{items: map[string]*model.Booking{}}
}

func (m *memBookings) NewID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return fmt.Sprintf("65f0000000000000000%05d", m.seq)
}

func (m *memBookings) Create(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *b
	m.items[b.ID] = &cp
	return nil
}

func (m *memBookings) FindByID(_ context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.items[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBookings) matching(f model.BookingFilter) []*model.Booking {
	var out []*model.Booking
	for _, b := range m.items {
		if (f.UserID == "" || b.UserID == f.UserID) &&
			(f.VendorID == "" || b.VendorID == f.VendorID) &&
			(f.VehicleID == "" || b.VehicleID == f.VehicleID) &&
			(f.Status == "" || b.Status == f.Status) {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out
}

func (m *memBookings) Find(_ context.Context, f model.BookingFilter, _ int, _ int64) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matching(f), nil
}

func (m *memBookings) Count(_ context.Context, f model.BookingFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.matching(f))), nil
}

func (m *memBookings) FindOverlap(_ context.Context, vehicleID string, start, end time.Time) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.items {
		if b.VehicleID == vehicleID && model.IsActiveBookingStatus(b.Status) &&
			b.PickupDate.Before(end) && start.Before(b.DropoffDate) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memBookings) FindStalePending(_ context.Context, before time.Time, _ int) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.items {
		if b.Status == model.BookingPending && b.CreatedAt.Before(before) {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memBookings) FindOverdueTrips(_ context.Context, now time.Time, _ int) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.items {
		if b.Status == model.BookingOnTrip && b.DropoffDate.Before(now) {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memBookings) UpdateStatus(_ context.Context, id, from string, c repository.StatusChange) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.items[id]
	if !ok || b.Status != from {
		return nil, bookingserrors.ErrStatusChanged
	}
	b.Status = c.Status
	if c.PaymentStatus != "" {
		b.PaymentStatus = c.PaymentStatus
	}
	if c.PaymentReference != "" {
		b.PaymentReference = c.PaymentReference
	}
	if c.CancelReason != "" {
		b.CancelReason = c.CancelReason
	}
	cp := *b
	return &cp, nil
}

func (m *memBookings) SetInvoiceNumber(_ context.Context, id, number string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id].InvoiceNumber = number
	return nil
}

func (m *memBookings) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

func (m *memBookings) put(b *model.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.items[b.ID] = &cp
}

type memLocks struct {
	mu     sync.Mutex
	owners map[string]string
	// hold keeps a lock busy to simulate a concurrent creator
	hold string
}

func (l *memLocks) Acquire(_ context.Context, vehicleID, owner string, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owners == nil {
		l.owners = map[string]string{}
	}
	if vehicleID == l.hold {
		return bookingserrors.ErrLockHeld
	}
	if _, ok := l.owners[vehicleID]; ok {
		return bookingserrors.ErrLockHeld
	}
	l.owners[vehicleID] = owner
	return nil
}

func (l *memLocks) Release(_ context.Context, vehicleID, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owners[vehicleID] == owner {
		delete(l.owners, vehicleID)
	}
	return nil
}

type mockVehicles map[string]*model.Vehicle

func (m mockVehicles) FindByID(_ context.Context, id string) (*model.Vehicle, error) {
	v, ok := m[id]
	if !ok {
		return nil, vehicleserrors.ErrNotFound
	}
	return v, nil
}

type mockUsers struct{}

func (mockUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	return &model.User{ID: id, Username: "asha", Email: id + "@example.com"}, nil
}

type mockSequencer struct {
	mu sync.Mutex
	n  int64
}

func (s *mockSequencer) Next(context.Context, string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n, nil
}

type mockInvoices struct {
	calls int
	err   error
}

func (m *mockInvoices) Issue(_ context.Context, b *model.Booking, _ *model.User, _ *model.Vehicle) (*model.Invoice, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &model.Invoice{BookingID: b.ID, InvoiceNumber: "INV-000001"}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// ────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────

const (
	vehicleID = "65f0000000000000000000aa"
	vendorID  = "vendor1"
	userID    = "user1"
)

var (
	customer = model.Actor{UserID: userID, Role: model.RoleUser}
	admin    = model.Actor{UserID: "admin1", Role: model.RoleAdmin}
	vendor   = model.Actor{UserID: vendorID, Role: model.RoleVendor}
)

type fixture struct {
	repo      *memBookings
	locks     *memLocks
	index     *availability.Index
	invoices  *mockInvoices
	publisher *recordingPublisher
	service   *bookingService
}

func newFixture() *fixture {
	log := logger.Discard()
	cfg := &config.Config{
		Log:               log,
		BookingLockTTL:    10 * time.Second,
		BookingPendingTTL: 15 * time.Minute,
		InvoiceCurrency:   "INR",
	}
	f := &fixture{
		repo:      newMemBookings(),
		locks:     &memLocks{},
		index:     availability.NewIndex(),
		invoices:  &mockInvoices{},
		publisher: &recordingPublisher{},
	}
	vehicles := mockVehicles{vehicleID: rentableVehicle()}
	f.service = NewBookingService(
		f.repo, f.locks, validator.NewBookingValidator(log, 30), f.index, &mockSequencer{},
		vehicles, mockUsers{}, f.invoices, f.publisher, cfg,
	).(*bookingService)
	return f
}

func rentableVehicle() *model.Vehicle {
	far := time.Now().AddDate(2, 0, 0)
	return &model.Vehicle{
		ID:              vehicleID,
		Brand:           "Maruti",
		Name:            "Swift VXI",
		PricePerDay:     1499.5,
		District:        "Bengaluru Urban",
		VendorID:        vendorID,
		IsAdminApproved: true,
		InsuranceEnd:    far,
		RegistrationEnd: far,
		PollutionEnd:    far,
	}
}

func request(startInDays, days int) *model.BookingRequest {
	start := time.Now().UTC().Truncate(time.Hour).Add(time.Duration(startInDays) * 24 * time.Hour)
	return &model.BookingRequest{
		VehicleID:       vehicleID,
		PickupDate:      start,
		DropoffDate:     start.Add(time.Duration(days) * 24 * time.Hour),
		PickupLocation:  " Indiranagar ",
		DropoffLocation: "Koramangala",
	}
}

func assertStatus(t *testing.T, err error, want int) {
	t.Helper()
	if !apperrors.IsAppError(err) {
		t.Fatalf("expected AppError with status %d, got %v", want, err)
	}
	if got := apperrors.AsAppError(err).StatusCode(); got != want {
		t.Fatalf("status = %d, want %d (%v)", got, want, err)
	}
}

func mustCreate(t *testing.T, f *fixture, req *model.BookingRequest) *model.Booking {
	t.Helper()
	b, err := f.service.Create(context.Background(), customer, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return b
}

// ────────────────────────────────────────────────
// Tests
// ────────────────────────────────────────────────

func TestCreate_PricesAndReserves(t *testing.T) {
	f := newFixture()
	req := request(2, 3)
	req.DropoffDate = req.DropoffDate.Add(time.Hour)

	b := mustCreate(t, f, req)

	if b.BookingNumber != "BK-000001" {
		t.Errorf("booking number = %q", b.BookingNumber)
	}
	if b.Days != 4 || b.TotalPrice != 5998 {
		t.Errorf("days = %d total = %v, want 4 and 5998", b.Days, b.TotalPrice)
	}
	if b.Status != model.BookingPending || b.PaymentStatus != model.PaymentPending {
		t.Errorf("status = %s/%s", b.Status, b.PaymentStatus)
	}
	if b.VendorID != vendorID || b.District != "Bengaluru Urban" || b.PickupLocation != "Indiranagar" {
		t.Errorf("denormalized fields wrong: %+v", b)
	}
	if ok, _ := f.index.Check(vehicleID, req.PickupDate, req.DropoffDate); ok {
		t.Error("window should be reserved in the index")
	}
	if len(f.locks.owners) != 0 {
		t.Errorf("lock not released: %v", f.locks.owners)
	}
	if got := f.publisher.types(); len(got) != 1 || got[0] != events.TypeBookingCreated {
		t.Errorf("events = %v", got)
	}
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		actor  model.Actor
		mutate func(f *fixture, r *model.BookingRequest)
		want   int
	}{
		{"anonymous", model.Actor{}, nil, http.StatusUnauthorized},
		{"pickup in the past", customer, func(_ *fixture, r *model.BookingRequest) {
			r.PickupDate = time.Now().Add(-time.Hour)
		}, http.StatusUnprocessableEntity},
		{"dropoff before pickup", customer, func(_ *fixture, r *model.BookingRequest) {
			r.DropoffDate = r.PickupDate.Add(-time.Hour)
		}, http.StatusUnprocessableEntity},
		{"too long", customer, func(_ *fixture, r *model.BookingRequest) {
			r.DropoffDate = r.PickupDate.AddDate(0, 0, 31)
		}, http.StatusUnprocessableEntity},
		{"unknown vehicle", customer, func(_ *fixture, r *model.BookingRequest) {
			r.VehicleID = "65f0000000000000000000ff"
		}, http.StatusNotFound},
		{"unapproved vehicle", customer, func(f *fixture, _ *model.BookingRequest) {
			f.service.vehicles.(mockVehicles)[vehicleID].IsAdminApproved = false
		}, http.StatusConflict},
		{"insurance lapses mid trip", customer, func(f *fixture, r *model.BookingRequest) {
			f.service.vehicles.(mockVehicles)[vehicleID].InsuranceEnd = r.PickupDate.Add(time.Hour)
		}, http.StatusConflict},
		{"lock held", customer, func(f *fixture, _ *model.BookingRequest) {
			f.locks.hold = vehicleID
		}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := request(2, 2)
			if tt.mutate != nil {
				tt.mutate(f, req)
			}
			_, err := f.service.Create(context.Background(), tt.actor, req)
			assertStatus(t, err, tt.want)
			if len(f.repo.items) != 0 {
				t.Errorf("no booking should be stored")
			}
		})
	}
}

func TestCreate_OverlapConflict(t *testing.T) {
	f := newFixture()
	first := mustCreate(t, f, request(2, 3))

	_, err := f.service.Create(context.Background(), customer, request(3, 1))
	assertStatus(t, err, http.StatusConflict)
	details := apperrors.AsAppError(err).Details
	if !details["conflict_start"].(time.Time).Equal(first.PickupDate) {
		t.Errorf("conflict details = %v", details)
	}

	// back-to-back is allowed
	adjacent := request(5, 1)
	if _, err := f.service.Create(context.Background(), customer, adjacent); err != nil {
		t.Fatalf("adjacent booking rejected: %v", err)
	}
}

func TestCreate_StoredOverlapMissingFromIndex(t *testing.T) {
	f := newFixture()
	req := request(2, 2)
	f.repo.put(&model.Booking{
		ID: "65f0000000000000000000bb", VehicleID: vehicleID, Status: model.BookingBooked,
		PickupDate: req.PickupDate.Add(time.Hour), DropoffDate: req.DropoffDate,
	})

	_, err := f.service.Create(context.Background(), customer, req)
	assertStatus(t, err, http.StatusConflict)
	if ok, _ := f.index.Check(vehicleID, req.PickupDate, req.DropoffDate); !ok {
		t.Error("failed create must release its index reservation")
	}
}

func TestCreate_StoreFailureReleasesReservation(t *testing.T) {
	f := newFixture()
	f.repo.createErr = errors.New("write failed")
	req := request(2, 2)

	_, err := f.service.Create(context.Background(), customer, req)
	assertStatus(t, err, http.StatusInternalServerError)
	if ok, _ := f.index.Check(vehicleID, req.PickupDate, req.DropoffDate); !ok {
		t.Error("reservation leaked")
	}
	if len(f.publisher.types()) != 0 {
		t.Error("no event expected")
	}
}

func TestCreate_ConcurrentSameWindow(t *testing.T) {
	f := newFixture()
	const n = 8

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Create(context.Background(), customer, request(2, 2))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !apperrors.HasCode(err, apperrors.CodeConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want exactly 1", succeeded)
	}
	if len(f.repo.items) != 1 {
		t.Fatalf("stored = %d, want 1", len(f.repo.items))
	}
}

func TestGetByID_Visibility(t *testing.T) {
	f := newFixture()
	b := mustCreate(t, f, request(2, 1))

	tests := []struct {
		name  string
		actor model.Actor
		want  int
	}{
		{"owner", customer, 0},
		{"vendor of vehicle", vendor, 0},
		{"admin", admin, 0},
		{"other user", model.Actor{UserID: "user2", Role: model.RoleUser}, http.StatusForbidden},
		{"other vendor", model.Actor{UserID: "vendor2", Role: model.RoleVendor}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.GetByID(context.Background(), tt.actor, b.ID)
			if tt.want == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			assertStatus(t, err, tt.want)
		})
	}

	_, err := f.service.GetByID(context.Background(), admin, "65f0000000000000000000ff")
	assertStatus(t, err, http.StatusNotFound)
}

func TestPay_IssuesInvoiceOnce(t *testing.T) {
	f := newFixture()
	b := mustCreate(t, f, request(2, 1))

	_, err := f.service.Pay(context.Background(), model.Actor{UserID: "user2", Role: model.RoleUser}, b.ID, "pay_1")
	assertStatus(t, err, http.StatusForbidden)

	_, err = f.service.Pay(context.Background(), customer, b.ID, "  ")
	assertStatus(t, err, http.StatusUnprocessableEntity)

	paid, err := f.service.Pay(context.Background(), customer, b.ID, "pay_1")
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != model.BookingBooked || paid.PaymentStatus != model.PaymentPaid || paid.InvoiceNumber != "INV-000001" {
		t.Fatalf("paid booking = %+v", paid)
	}

	again, err := f.service.Pay(context.Background(), customer, b.ID, "pay_1")
	if err != nil {
		t.Fatalf("repeat pay: %v", err)
	}
	if again.InvoiceNumber != "INV-000001" || f.invoices.calls != 1 {
		t.Errorf("repeat pay should be a no-op, invoice calls = %d", f.invoices.calls)
	}

	_, err = f.service.Pay(context.Background(), customer, b.ID, "pay_2")
	assertStatus(t, err, http.StatusConflict)

	got := f.publisher.types()
	if len(got) != 2 || got[1] != events.TypeBookingConfirmed {
		t.Errorf("events = %v", got)
	}
}

func TestPay_RetryAfterInvoiceFailure(t *testing.T) {
	f := newFixture()
	b := mustCreate(t, f, request(2, 1))
	f.invoices.err = apperrors.Internal("Failed to store invoice", errors.New("boom"))

	_, err := f.service.Pay(context.Background(), customer, b.ID, "pay_1")
	assertStatus(t, err, http.StatusInternalServerError)

	stored, _ := f.repo.FindByID(context.Background(), b.ID)
	if stored.PaymentStatus != model.PaymentPaid || stored.InvoiceNumber != "" {
		t.Fatalf("payment should be recorded without invoice: %+v", stored)
	}

	f.invoices.err = nil
	paid, err := f.service.Pay(context.Background(), customer, b.ID, "pay_1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if paid.InvoiceNumber == "" {
		t.Error("retry should issue the invoice")
	}
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name       string
		actor      model.Actor
		pay        bool
		reason     string
		want       int
		wantPay    string
		wantReason string
	}{
		{"owner unpaid", customer, false, "", 0, model.PaymentPending, reasonCustomer},
		{"owner paid is refunded", customer, true, "plans changed", 0, model.PaymentRefunded, "plans changed"},
		{"admin", admin, false, "", 0, model.PaymentPending, reasonAdmin},
		{"vendor cannot cancel", vendor, false, "", http.StatusForbidden, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := request(2, 2)
			b := mustCreate(t, f, req)
			if tt.pay {
				if _, err := f.service.Pay(context.Background(), customer, b.ID, "pay_1"); err != nil {
					t.Fatalf("pay: %v", err)
				}
			}

			got, err := f.service.Cancel(context.Background(), tt.actor, b.ID, tt.reason)
			if tt.want != 0 {
				assertStatus(t, err, tt.want)
				return
			}
			if err != nil {
				t.Fatalf("cancel: %v", err)
			}
			if got.Status != model.BookingCancelled || got.PaymentStatus != tt.wantPay || got.CancelReason != tt.wantReason {
				t.Errorf("cancelled = %+v", got)
			}
			if ok, _ := f.index.Check(vehicleID, req.PickupDate, req.DropoffDate); !ok {
				t.Error("window should be free after cancel")
			}
			types := f.publisher.types()
			if types[len(types)-1] != events.TypeBookingCancelled {
				t.Errorf("events = %v", types)
			}

			_, err = f.service.Cancel(context.Background(), tt.actor, b.ID, "")
			assertStatus(t, err, http.StatusConflict)
		})
	}
}

func TestUpdateStatus_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		from  string
		to    string
		want  int
		event string
	}{
		{"start trip", model.BookingBooked, model.BookingOnTrip, 0, ""},
		{"complete", model.BookingOnTrip, model.BookingCompleted, 0, events.TypeBookingCompleted},
		{"complete overdue", model.BookingOverdue, model.BookingCompleted, 0, events.TypeBookingCompleted},
		{"skip payment", model.BookingPending, model.BookingOnTrip, http.StatusConflict, ""},
		{"confirm without payment", model.BookingPending, model.BookingBooked, http.StatusConflict, ""},
		{"reopen", model.BookingCancelled, model.BookingPending, http.StatusConflict, ""},
		{"unknown status", model.BookingBooked, "lost", http.StatusUnprocessableEntity, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			b := mustCreate(t, f, request(2, 2))
			f.repo.items[b.ID].Status = tt.from
			before := len(f.publisher.types())

			got, err := f.service.UpdateStatus(context.Background(), b.ID, tt.to)
			if tt.want != 0 {
				assertStatus(t, err, tt.want)
				return
			}
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if got.Status != tt.to {
				t.Errorf("status = %s, want %s", got.Status, tt.to)
			}

			free, _ := f.index.Check(vehicleID, b.PickupDate, b.DropoffDate)
			if model.IsActiveBookingStatus(tt.to) == free {
				t.Errorf("window free = %v for status %s", free, tt.to)
			}

			types := f.publisher.types()[before:]
			if tt.event == "" && len(types) != 0 || tt.event != "" && (len(types) != 1 || types[0] != tt.event) {
				t.Errorf("events = %v, want %q", types, tt.event)
			}
		})
	}
}

func TestUpdateStatus_PaymentStillPossibleAfterRejectedConfirm(t *testing.T) {
	f := newFixture()
	b := mustCreate(t, f, request(2, 1))

	_, err := f.service.UpdateStatus(context.Background(), b.ID, model.BookingBooked)
	assertStatus(t, err, http.StatusConflict)
	if got := f.repo.items[b.ID]; got.Status != model.BookingPending || got.PaymentStatus != model.PaymentPending {
		t.Fatalf("booking changed to %s/%s", got.Status, got.PaymentStatus)
	}

	paid, err := f.service.Pay(context.Background(), customer, b.ID, "pay_1")
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.InvoiceNumber == "" || f.invoices.calls != 1 {
		t.Errorf("payment should issue the invoice, calls = %d", f.invoices.calls)
	}
}

func TestReap(t *testing.T) {
	f := newFixture()
	now := time.Now().UTC()
	f.service.now = func() time.Time { return now }

	stale := &model.Booking{
		ID: "65f0000000000000000000c1", VehicleID: vehicleID, UserID: userID, Status: model.BookingPending,
		PaymentStatus: model.PaymentPending, CreatedAt: now.Add(-time.Hour),
		PickupDate: now.Add(48 * time.Hour), DropoffDate: now.Add(72 * time.Hour),
	}
	fresh := &model.Booking{
		ID: "65f0000000000000000000c2", VehicleID: vehicleID, UserID: userID, Status: model.BookingPending,
		PaymentStatus: model.PaymentPending, CreatedAt: now.Add(-time.Minute),
		PickupDate: now.Add(96 * time.Hour), DropoffDate: now.Add(120 * time.Hour),
	}
	late := &model.Booking{
		ID: "65f0000000000000000000c3", VehicleID: vehicleID, UserID: userID, Status: model.BookingOnTrip,
		PaymentStatus: model.PaymentPaid, CreatedAt: now.Add(-96 * time.Hour),
		PickupDate: now.Add(-72 * time.Hour), DropoffDate: now.Add(-time.Hour),
	}
	for _, b := range []*model.Booking{stale, fresh, late} {
		f.repo.put(b)
		if err := f.index.Reserve(vehicleID, availability.Interval{Start: b.PickupDate, End: b.DropoffDate, BookingID: b.ID}); err != nil {
			t.Fatal(err)
		}
	}

	res, err := f.service.Reap(context.Background())
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if res.Expired != 1 || res.Overdue != 1 {
		t.Fatalf("result = %+v", res)
	}

	got, _ := f.repo.FindByID(context.Background(), stale.ID)
	if got.Status != model.BookingCancelled || got.CancelReason != reasonPaymentTimeout {
		t.Errorf("stale booking = %s (%s)", got.Status, got.CancelReason)
	}
	if ok, _ := f.index.Check(vehicleID, stale.PickupDate, stale.DropoffDate); !ok {
		t.Error("expired booking should free its window")
	}
	got, _ = f.repo.FindByID(context.Background(), fresh.ID)
	if got.Status != model.BookingPending {
		t.Errorf("fresh booking = %s", got.Status)
	}
	got, _ = f.repo.FindByID(context.Background(), late.ID)
	if got.Status != model.BookingOverdue {
		t.Errorf("late trip = %s", got.Status)
	}
	if ok, _ := f.index.Check(vehicleID, late.PickupDate, late.DropoffDate); ok {
		t.Error("overdue trip keeps its window")
	}
}

func TestListScopes(t *testing.T) {
	f := newFixture()
	mustCreate(t, f, request(2, 1))
	f.repo.put(&model.Booking{ID: "65f0000000000000000000d1", UserID: "user2", VendorID: "vendor2", Status: model.BookingBooked})

	mine, total, err := f.service.ListMine(context.Background(), customer, 10, 0)
	if err != nil || total != 1 || len(mine) != 1 {
		t.Fatalf("mine = %d/%d err=%v", len(mine), total, err)
	}

	forVendor, total, err := f.service.ListForVendor(context.Background(), vendor, 10, 0)
	if err != nil || total != 1 || forVendor[0].VendorID != vendorID {
		t.Fatalf("vendor = %v/%d err=%v", forVendor, total, err)
	}

	_, _, err = f.service.ListForVendor(context.Background(), customer, 10, 0)
	assertStatus(t, err, http.StatusForbidden)

	all, total, err := f.service.List(context.Background(), model.BookingFilter{Status: model.BookingBooked}, 10, 0)
	if err != nil || total != 1 || all[0].ID != "65f0000000000000000000d1" {
		t.Fatalf("all = %v/%d err=%v", all, total, err)
	}

	_, _, err = f.service.List(context.Background(), model.BookingFilter{Status: "lost"}, 10, 0)
	assertStatus(t, err, http.StatusBadRequest)
}

func TestReaper_StartStop(t *testing.T) {
	f := newFixture()
	r := NewReaper(f.service, time.Hour, logger.Discard())
	r.Start(context.Background())
	r.Stop()
}
