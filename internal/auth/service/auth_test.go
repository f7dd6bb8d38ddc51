package service

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	autherrors "driveo/internal/auth/errors"
	"driveo/internal/auth/validator"
	userserrors "driveo/internal/users/errors"
	"driveo/pkg/config"
	apperrors "driveo/pkg/errors"
	"driveo/pkg/logger"
	"driveo/pkg/mailer"
	"driveo/pkg/model"
	"driveo/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryUsers struct {
	mu     sync.Mutex
	byID   map[string]*model.User
	nextID int
	logins int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]*model.User{}}
}

func (m *memoryUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return userserrors.ErrDuplicateEmail
		}
	}
	m.nextID++
	u.ID = strings.Repeat("0", 23) + string(rune('0'+m.nextID))
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, userserrors.ErrNotFound
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, userserrors.ErrNotFound
}

func (m *memoryUsers) Find(context.Context, model.UserFilter, int, int64) ([]*model.User, error) {
	return nil, nil
}

func (m *memoryUsers) Count(context.Context, model.UserFilter) (int64, error) { return 0, nil }

func (m *memoryUsers) Update(_ context.Context, id string, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byID[id] = &cp
	return nil
}

func (m *memoryUsers) MarkVerified(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			u.IsVerified = true
		}
	}
	return nil
}

func (m *memoryUsers) SetPassword(_ context.Context, email, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			u.PasswordHash = hash
		}
	}
	return nil
}

func (m *memoryUsers) TouchLogin(context.Context, string, time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins++
	return nil
}

func (m *memoryUsers) Delete(context.Context, string) error { return nil }

type memoryOTPs struct {
	mu    sync.Mutex
	items  map[string]*model.OTP
	claims int
	// readers, when set, holds every Find until all expected readers arrive.
	readers *sync.WaitGroup
}

func (m *memoryOTPs) Save(_ context.Context, otp *model.OTP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	otp.ID = model.OTPKey(otp.Email, otp.Purpose)
	cp := *otp
	m.items[otp.ID] = &cp
	return nil
}

func (m *memoryOTPs) Find(_ context.Context, email, purpose string) (*model.OTP, error) {
	if m.readers != nil {
		m.readers.Done()
		m.readers.Wait()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if otp, ok := m.items[model.OTPKey(email, purpose)]; ok {
		cp := *otp
		return &cp, nil
	}
	return nil, autherrors.ErrOTPNotFound
}

func (m *memoryOTPs) ClaimAttempt(_ context.Context, id string, maxAttempts int, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	otp, ok := m.items[id]
	if !ok || otp.Attempts >= maxAttempts || !now.Before(otp.ExpiresAt) {
		return 0, autherrors.ErrOTPNotFound
	}
	otp.Attempts++
	m.claims++
	return otp.Attempts, nil
}

func (m *memoryOTPs) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memoryOTPs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) (mailer.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return mailer.Result{ID: "m"}, nil
}

type fixture struct {
	svc   *authService
	users *memoryUsers
	otps  *memoryOTPs
	mail  *outbox
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	renderer, err := mailer.NewRenderer()
	require.NoError(t, err)

	cfg := &config.Config{
		Log:                logger.Discard(),
		OTPTTL:             10 * time.Minute,
		OTPMaxAttempts:     3,
		OTPResendCooldown:  time.Minute,
		DefaultPhoneRegion: "IN",
	}
	f := &fixture{
		users: newMemoryUsers(),
		otps:  &memoryOTPs{items: map[string]*model.OTP{}},
		mail:  &outbox{},
		clock: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
	}
	tokens := token.NewManager(strings.Repeat("s", 32), "driveo", 15*time.Minute, time.Hour)
	svc := NewAuthService(f.users, f.otps, validator.NewAuthValidator(cfg.Log), tokens, f.mail, renderer, cfg).(*authService)
	svc.hashCost = bcrypt.MinCost
	svc.now = func() time.Time { return f.clock }
	svc.generate = func() (string, error) { return "123456", nil }
	f.svc = svc
	return f
}

func registerRequest() *model.RegisterRequest {
	return &model.RegisterRequest{
		Username: "Asha Rao",
		Email:    " Asha@Example.com ",
		Phone:    "9876543210",
		Password: "secret123",
	}
}

func statusOf(err error) int {
	if !apperrors.IsAppError(err) {
		return 0
	}
	return apperrors.AsAppError(err).StatusCode()
}

func TestRegister_SendsVerificationCode(t *testing.T) {
	f := newFixture(t)

	user, err := f.svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	assert.Equal(t, "asha@example.com", user.Email)
	assert.Equal(t, "+919876543210", user.Phone)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.False(t, user.IsVerified)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, []string{"asha@example.com"}, f.mail.sent[0].To)
	assert.Contains(t, f.mail.sent[0].TextBody, "123456")

	otp, err := f.otps.Find(context.Background(), "asha@example.com", model.OTPPurposeVerify)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte("123456")))
	assert.Equal(t, f.clock.Add(10*time.Minute), otp.ExpiresAt)
}

func TestRegister_Rules(t *testing.T) {
	t.Run("admin role is not self-assignable", func(t *testing.T) {
		f := newFixture(t)
		req := registerRequest()
		req.Role = model.RoleAdmin
		_, err := f.svc.Register(context.Background(), req)
		assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
	})

	t.Run("weak password", func(t *testing.T) {
		f := newFixture(t)
		req := registerRequest()
		req.Password = "password"
		_, err := f.svc.Register(context.Background(), req)
		assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
	})

	t.Run("verified email conflicts", func(t *testing.T) {
		f := newFixture(t)
		user, err := f.svc.Register(context.Background(), registerRequest())
		require.NoError(t, err)
		require.NoError(t, f.users.MarkVerified(context.Background(), user.Email))

		_, err = f.svc.Register(context.Background(), registerRequest())
		assert.Equal(t, http.StatusConflict, statusOf(err))
	})

	t.Run("unverified email is refreshed", func(t *testing.T) {
		f := newFixture(t)
		first, err := f.svc.Register(context.Background(), registerRequest())
		require.NoError(t, err)

		f.clock = f.clock.Add(61 * time.Second)
		req := registerRequest()
		req.Username = "Asha R"
		req.Role = model.RoleVendor
		second, err := f.svc.Register(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, model.RoleVendor, second.Role)
		assert.Len(t, f.mail.sent, 2)
	})
}

func TestRegister_ResendCooldownApplies(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	req := registerRequest()
	req.Username = "Someone Else"
	_, err = f.svc.Register(context.Background(), req)
	assert.Equal(t, http.StatusTooManyRequests, statusOf(err))
	assert.Len(t, f.mail.sent, 1)

	user, err := f.users.FindByEmail(context.Background(), "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", user.Username, "a throttled re-registration leaves the account untouched")
}

func TestVerifyOTP(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	_, err = f.svc.VerifyOTP(context.Background(), &model.VerifyOTPRequest{Email: "asha@example.com", OTP: "000000"})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	pair, err := f.svc.VerifyOTP(context.Background(), &model.VerifyOTPRequest{Email: "asha@example.com", OTP: "123456"})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	user, err := f.users.FindByEmail(context.Background(), "asha@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsVerified)

	_, err = f.svc.VerifyOTP(context.Background(), &model.VerifyOTPRequest{Email: "asha@example.com", OTP: "123456"})
	assert.Equal(t, http.StatusBadRequest, statusOf(err), "a code is single use")
}

func TestVerifyOTP_AttemptsExhausted(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	for range 3 {
		_, err = f.svc.VerifyOTP(context.Background(), &model.VerifyOTPRequest{Email: "asha@example.com", OTP: "999999"})
		assert.Equal(t, http.StatusBadRequest, statusOf(err))
	}

	_, err = f.svc.VerifyOTP(context.Background(), &model.VerifyOTPRequest{Email: "asha@example.com", OTP: "123456"})
	assert.Equal(t, http.StatusBadRequest, statusOf(err), "the code is burned after the last wrong attempt")
}

func TestVerifyOTP_ParallelGuessesRespectBudget(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	// Every guess reads the OTP before any of them claims an attempt.
	const guesses = 20
	f.otps.readers = &sync.WaitGroup{}
	f.otps.readers.Add(guesses)

	var wg sync.WaitGroup
	results := make([]error, guesses)
	for i := range guesses {
		code := "999999"
		if i == guesses-1 {
			code = "123456"
		}
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			_, results[i] = f.svc.VerifyOTP(context.Background(), &model.VerifyOTPRequest{Email: "asha@example.com", OTP: code})
		}(i, code)
	}
	wg.Wait()

	claims := f.otps.claims
	assert.LessOrEqual(t, claims, f.svc.cfg.OTPMaxAttempts)
	verified := 0
	for _, err := range results {
		if err == nil {
			verified++
			continue
		}
		assert.Equal(t, http.StatusBadRequest, statusOf(err))
	}
	assert.LessOrEqual(t, verified, 1)
	assert.Zero(t, f.otps.count(), "the code is burned once the budget is spent")
}

func TestVerifyOTP_Expired(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	f.clock = f.clock.Add(11 * time.Minute)
	_, err = f.svc.VerifyOTP(context.Background(), &model.VerifyOTPRequest{Email: "asha@example.com", OTP: "123456"})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
	assert.Zero(t, f.otps.count())
}

func TestResendOTP_Cooldown(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	err = f.svc.ResendOTP(context.Background(), &model.EmailRequest{Email: "asha@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, statusOf(err))

	f.clock = f.clock.Add(61 * time.Second)
	require.NoError(t, f.svc.ResendOTP(context.Background(), &model.EmailRequest{Email: "asha@example.com"}))
	assert.Len(t, f.mail.sent, 2)

	assert.NoError(t, f.svc.ResendOTP(context.Background(), &model.EmailRequest{Email: "nobody@example.com"}))
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	t.Run("unverified gets 403 and a fresh code", func(t *testing.T) {
		f.clock = f.clock.Add(2 * time.Minute)
		_, err := f.svc.Login(context.Background(), &model.LoginRequest{Email: "asha@example.com", Password: "secret123"})
		assert.Equal(t, http.StatusForbidden, statusOf(err))
		assert.Len(t, f.mail.sent, 2)
	})

	require.NoError(t, f.users.MarkVerified(context.Background(), "asha@example.com"))

	wrongPassword, err := f.svc.Login(context.Background(), &model.LoginRequest{Email: "asha@example.com", Password: "nope12345"})
	assert.Nil(t, wrongPassword)
	wrongEmail, err2 := f.svc.Login(context.Background(), &model.LoginRequest{Email: "who@example.com", Password: "secret123"})
	assert.Nil(t, wrongEmail)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
	assert.Equal(t, err.Error(), err2.Error(), "both failures read the same")

	pair, err := f.svc.Login(context.Background(), &model.LoginRequest{Email: "ASHA@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, 1, f.users.logins)
}

func TestRefresh_RequiresRefreshToken(t *testing.T) {
	f := newFixture(t)
	user, err := f.svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)
	require.NoError(t, f.users.MarkVerified(context.Background(), user.Email))

	pair, err := f.svc.Login(context.Background(), &model.LoginRequest{Email: user.Email, Password: "secret123"})
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), &model.RefreshRequest{RefreshToken: pair.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))

	next, err := f.svc.Refresh(context.Background(), &model.RefreshRequest{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	require.NoError(t, f.svc.ForgotPassword(context.Background(), &model.EmailRequest{Email: "nobody@example.com"}))
	require.NoError(t, f.svc.ForgotPassword(context.Background(), &model.EmailRequest{Email: "asha@example.com"}))
	require.Len(t, f.mail.sent, 2)
	assert.Contains(t, f.mail.sent[1].Subject, "Reset")

	err = f.svc.ResetPassword(context.Background(), &model.ResetPasswordRequest{Email: "asha@example.com", OTP: "123456", NewPassword: "newsecret1"})
	require.NoError(t, err)

	user, err := f.users.FindByEmail(context.Background(), "asha@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsVerified)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("newsecret1")))

	_, err = f.svc.Login(context.Background(), &model.LoginRequest{Email: "asha@example.com", Password: "newsecret1"})
	assert.NoError(t, err)
}
