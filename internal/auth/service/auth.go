package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	autherrors "driveo/internal/auth/errors"
	"driveo/internal/auth/repository"
	"driveo/internal/auth/validator"
	userserrors "driveo/internal/users/errors"
	usersrepo "driveo/internal/users/repository"
	"driveo/pkg/config"
	apperrors "driveo/pkg/errors"
	"driveo/pkg/mailer"
	"driveo/pkg/model"
	"driveo/pkg/sanitizer"
	"driveo/pkg/token"
	"driveo/pkg/validation"

	"golang.org/x/crypto/bcrypt"
)

const invalidCredentials = "Invalid email or password"

const invalidCode = "Invalid or expired code"

type TokenIssuer interface {
	Issue(user *model.User) (*token.Pair, error)
	Parse(raw, typ string) (*token.Claims, error)
}

type MailSender interface {
	Send(ctx context.Context, msg mailer.Message) (mailer.Result, error)
}

type Composer interface {
	Compose(name string, to string, data any) (mailer.Message, error)
}

type AuthService interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	VerifyOTP(ctx context.Context, req *model.VerifyOTPRequest) (*token.Pair, error)
	ResendOTP(ctx context.Context, req *model.EmailRequest) error
	Login(ctx context.Context, req *model.LoginRequest) (*token.Pair, error)
	Refresh(ctx context.Context, req *model.RefreshRequest) (*token.Pair, error)
	ForgotPassword(ctx context.Context, req *model.EmailRequest) error
	ResetPassword(ctx context.Context, req *model.ResetPasswordRequest) error
}

type authService struct {
	users     usersrepo.UserRepository
	otps      repository.OTPRepository
	validator *validator.AuthValidator
	tokens    TokenIssuer
	mail      MailSender
	templates Composer
	cfg       *config.Config

	hashCost int
	now      func() time.Time
	generate func() (string, error)
}

func NewAuthService(
	users usersrepo.UserRepository,
	otps repository.OTPRepository,
	validator *validator.AuthValidator,
	tokens TokenIssuer,
	mail MailSender,
	templates Composer,
	cfg *config.Config,
) AuthService {
	return &authService{
		users:     users,
		otps:      otps,
		validator: validator,
		tokens:    tokens,
		mail:      mail,
		templates: templates,
		cfg:       cfg,
		hashCost:  bcrypt.DefaultCost,
		now:       func() time.Time { return time.Now().UTC() },
		generate:  generateCode,
	}
}

// Register creates an unverified account and mails a verification code. An
// unverified account with the same email is overwritten with the new details.
func (s *authService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	req.Email = sanitizer.SanitizeEmail(req.Email)
	req.Username = sanitizer.TrimAndNormalize(req.Username)
	if err := s.validator.Validate(req); err != nil {
		return nil, validation.ToAppError(err)
	}

	phone := sanitizer.NormalizePhone(req.Phone, s.cfg.DefaultPhoneRegion)
	if strings.TrimSpace(req.Phone) != "" && phone == "" {
		return nil, validation.Field("phone", "phone is not a valid phone number").AppError()
	}

	role := req.Role
	if role == "" {
		role = model.RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	existing, err := s.users.FindByEmail(ctx, req.Email)
	switch {
	case err == nil && existing.IsVerified:
		return nil, apperrors.Conflict("Email is already registered")
	case err == nil:
		if err := s.checkCooldown(ctx, existing.Email, model.OTPPurposeVerify); err != nil {
			return nil, err
		}
		existing.Username = req.Username
		existing.Phone = phone
		existing.PasswordHash = string(hash)
		existing.Role = role
		if err := s.users.Update(ctx, existing.ID, existing); err != nil {
			s.cfg.Log.Error("Failed to refresh unverified account", "email", req.Email, "error", err)
			return nil, apperrors.Internal("Failed to register user", err)
		}
		s.cfg.Log.Info("Unverified account re-registered", "user_id", existing.ID)
		return existing, s.sendOTP(ctx, existing, model.OTPPurposeVerify, true)
	case !errors.Is(err, userserrors.ErrNotFound):
		s.cfg.Log.Error("Failed to look up email", "email", req.Email, "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		Phone:        phone,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, userserrors.ErrDuplicateEmail) {
			return nil, apperrors.Conflict("Email is already registered")
		}
		s.cfg.Log.Error("Failed to create user", "email", req.Email, "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	s.cfg.Log.Info("User registered", "user_id", user.ID, "role", user.Role)
	return user, s.sendOTP(ctx, user, model.OTPPurposeVerify, false)
}

func (s *authService) VerifyOTP(ctx context.Context, req *model.VerifyOTPRequest) (*token.Pair, error) {
	req.Email = sanitizer.SanitizeEmail(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, validation.ToAppError(err)
	}

	user, err := s.findUser(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.InvalidInput(invalidCode)
	}

	if err := s.consumeOTP(ctx, req.Email, model.OTPPurposeVerify, req.OTP); err != nil {
		return nil, err
	}

	if err := s.users.MarkVerified(ctx, user.Email); err != nil {
		s.cfg.Log.Error("Failed to mark user verified", "user_id", user.ID, "error", err)
		return nil, apperrors.Internal("Failed to verify account", err)
	}
	user.IsVerified = true

	s.cfg.Log.Info("User verified", "user_id", user.ID)
	return s.issue(ctx, user)
}

// ResendOTP succeeds silently for unknown or already verified emails.
func (s *authService) ResendOTP(ctx context.Context, req *model.EmailRequest) error {
	req.Email = sanitizer.SanitizeEmail(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return validation.ToAppError(err)
	}

	user, err := s.findUser(ctx, req.Email)
	if err != nil {
		return err
	}
	if user == nil || user.IsVerified {
		return nil
	}
	return s.sendOTP(ctx, user, model.OTPPurposeVerify, true)
}

func (s *authService) Login(ctx context.Context, req *model.LoginRequest) (*token.Pair, error) {
	req.Email = sanitizer.SanitizeEmail(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, validation.ToAppError(err)
	}

	user, err := s.findUser(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.Unauthorized(invalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.cfg.Log.Warn("Login rejected", "user_id", user.ID)
		return nil, apperrors.Unauthorized(invalidCredentials)
	}

	if !user.IsVerified {
		if err := s.sendOTP(ctx, user, model.OTPPurposeVerify, true); err != nil {
			if !apperrors.HasCode(err, apperrors.CodeTooManyRequests) {
				return nil, err
			}
		}
		return nil, apperrors.Forbidden("Email is not verified. A verification code has been sent")
	}

	return s.issue(ctx, user)
}

func (s *authService) Refresh(ctx context.Context, req *model.RefreshRequest) (*token.Pair, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, validation.ToAppError(err)
	}

	claims, err := s.tokens.Parse(req.RefreshToken, token.TypeRefresh)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid or expired refresh token")
	}

	user, err := s.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) || errors.Is(err, userserrors.ErrInvalidID) {
			return nil, apperrors.Unauthorized("Invalid or expired refresh token")
		}
		return nil, apperrors.Internal("Failed to refresh token", err)
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue tokens", err)
	}
	return pair, nil
}

// ForgotPassword reports success whether or not the account exists.
func (s *authService) ForgotPassword(ctx context.Context, req *model.EmailRequest) error {
	req.Email = sanitizer.SanitizeEmail(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return validation.ToAppError(err)
	}

	user, err := s.findUser(ctx, req.Email)
	if err != nil || user == nil {
		return nil
	}
	if err := s.sendOTP(ctx, user, model.OTPPurposeReset, true); err != nil {
		s.cfg.Log.Warn("Password reset code not sent", "user_id", user.ID, "error", err)
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, req *model.ResetPasswordRequest) error {
	req.Email = sanitizer.SanitizeEmail(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return validation.ToAppError(err)
	}

	user, err := s.findUser(ctx, req.Email)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.InvalidInput(invalidCode)
	}

	if err := s.consumeOTP(ctx, req.Email, model.OTPPurposeReset, req.OTP); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.hashCost)
	if err != nil {
		return apperrors.Internal("Failed to hash password", err)
	}
	if err := s.users.SetPassword(ctx, user.Email, string(hash)); err != nil {
		s.cfg.Log.Error("Failed to reset password", "user_id", user.ID, "error", err)
		return apperrors.Internal("Failed to reset password", err)
	}
	// The reset code proves ownership of the mailbox.
	if !user.IsVerified {
		if err := s.users.MarkVerified(ctx, user.Email); err != nil {
			s.cfg.Log.Warn("Failed to mark user verified after reset", "user_id", user.ID, "error", err)
		}
	}

	s.cfg.Log.Info("Password reset", "user_id", user.ID)
	return nil
}

// findUser returns nil without error when no account has the email.
func (s *authService) findUser(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return nil, nil
		}
		s.cfg.Log.Error("Failed to look up email", "email", email, "error", err)
		return nil, apperrors.Internal("Failed to look up account", err)
	}
	return user, nil
}

func (s *authService) issue(ctx context.Context, user *model.User) (*token.Pair, error) {
	pair, err := s.tokens.Issue(user)
	if err != nil {
		s.cfg.Log.Error("Failed to issue tokens", "user_id", user.ID, "error", err)
		return nil, apperrors.Internal("Failed to issue tokens", err)
	}
	if err := s.users.TouchLogin(ctx, user.ID, s.now()); err != nil {
		s.cfg.Log.Warn("Failed to record login", "user_id", user.ID, "error", err)
	}
	return pair, nil
}

func (s *authService) sendOTP(ctx context.Context, user *model.User, purpose string, cooldown bool) error {
	now := s.now()

	if cooldown {
		if err := s.checkCooldown(ctx, user.Email, purpose); err != nil {
			return err
		}
	}

	code, err := s.generate()
	if err != nil {
		return apperrors.Internal("Failed to generate code", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return apperrors.Internal("Failed to hash code", err)
	}

	otp := &model.OTP{
		Email:     user.Email,
		Purpose:   purpose,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.cfg.OTPTTL),
		CreatedAt: now,
	}
	if err := s.otps.Save(ctx, otp); err != nil {
		s.cfg.Log.Error("Failed to store otp", "user_id", user.ID, "purpose", purpose, "error", err)
		return apperrors.Internal("Failed to send code", err)
	}

	template := mailer.TemplateOTPVerify
	if purpose == model.OTPPurposeReset {
		template = mailer.TemplateOTPReset
	}
	msg, err := s.templates.Compose(template, user.Email, map[string]any{
		"Name":             user.Username,
		"Code":             code,
		"ExpiresInMinutes": int(s.cfg.OTPTTL.Minutes()),
	})
	if err != nil {
		return apperrors.Internal("Failed to render email", err)
	}

	result, err := s.mail.Send(ctx, msg)
	if err != nil {
		s.cfg.Log.Error("Failed to send otp email", "user_id", user.ID, "error", err)
		return apperrors.Internal("Failed to send code", err)
	}

	s.cfg.Log.Info("OTP sent", "user_id", user.ID, "purpose", purpose, "queued", result.Queued)
	return nil
}

func (s *authService) checkCooldown(ctx context.Context, email, purpose string) error {
	prev, err := s.otps.Find(ctx, email, purpose)
	if err != nil && !errors.Is(err, autherrors.ErrOTPNotFound) {
		return apperrors.Internal("Failed to send code", err)
	}
	if prev != nil {
		if wait := prev.CreatedAt.Add(s.cfg.OTPResendCooldown).Sub(s.now()); wait > 0 {
			return apperrors.TooManyRequests(fmt.Sprintf("Please wait %d seconds before requesting a new code", int(wait.Seconds())+1))
		}
	}
	return nil
}

// consumeOTP checks code and deletes the OTP on success, on expiry and once the
// wrong-attempt budget is spent. Each comparison first claims an attempt, so
// parallel guesses cannot exceed the budget.
func (s *authService) consumeOTP(ctx context.Context, email, purpose, code string) error {
	otp, err := s.otps.Find(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, autherrors.ErrOTPNotFound) {
			return apperrors.InvalidInput(invalidCode)
		}
		return apperrors.Internal("Failed to verify code", err)
	}

	now := s.now()
	if !now.Before(otp.ExpiresAt) {
		s.burn(ctx, otp)
		return apperrors.InvalidInput(invalidCode)
	}

	attempts, err := s.otps.ClaimAttempt(ctx, otp.ID, s.cfg.OTPMaxAttempts, now)
	if err != nil {
		if errors.Is(err, autherrors.ErrOTPNotFound) {
			s.burn(ctx, otp)
			return apperrors.InvalidInput(invalidCode)
		}
		return apperrors.Internal("Failed to verify code", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)); err != nil {
		if attempts >= s.cfg.OTPMaxAttempts {
			s.cfg.Log.Warn("OTP attempts exhausted", "email", email, "purpose", purpose)
			s.burn(ctx, otp)
		}
		return apperrors.InvalidInput(invalidCode)
	}

	s.burn(ctx, otp)
	return nil
}

func (s *authService) burn(ctx context.Context, otp *model.OTP) {
	if err := s.otps.Delete(ctx, otp.ID); err != nil {
		s.cfg.Log.Warn("Failed to delete otp", "otp_id", otp.ID, "error", err)
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
