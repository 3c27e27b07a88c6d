package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"hygienix/backend/internal/auth"
	"hygienix/backend/internal/model"
	"hygienix/backend/internal/otp"
	"hygienix/backend/internal/repository"
)

const (
	EventOTPIssued     = "auth.otp"
	EventPasswordReset = "auth.password_reset"

	guestCustomerName = "Guest Customer"
)

// OTPIssuer issues and checks one-time login codes.
type OTPIssuer interface {
	Issue(ctx context.Context, phone string) (string, error)
	Verify(ctx context.Context, phone, code string) error
}

type AuthConfig struct {
	// AutoProvision creates a customer account on the first successful OTP
	// login for an unknown phone. When false such logins are rejected.
	AutoProvision        bool
	SyntheticEmailDomain string
	ResetTTL             time.Duration
	FrontendURL          string
}

// Session is the result of every successful sign-in.
type Session struct {
	User  model.User
	Token string
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

type AdminInitInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

type AuthService struct {
	users    repository.UserRepository
	tokens   *auth.TokenManager
	codes    OTPIssuer
	notifier Notifier
	cfg      AuthConfig
	now      func() time.Time
	log      *slog.Logger
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager, codes OTPIssuer, notifier Notifier, cfg AuthConfig, logger *slog.Logger) *AuthService {
	if cfg.SyntheticEmailDomain == "" {
		cfg.SyntheticEmailDomain = "hygienix.in"
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:    users,
		tokens:   tokens,
		codes:    codes,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		log:      logger.With("component", "auth"),
	}
}

func (s *AuthService) Signup(ctx context.Context, input SignupInput) (Session, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	phone := normalizePhone(input.Phone)
	if email == "" {
		return Session{}, validationErr("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return Session{}, validationErr("password is required")
	}
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return Session{}, err
	}
	user, err := s.users.CreateUser(ctx, repository.CreateUserInput{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.UserRoleCustomer,
		Phone:        phone,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return Session{}, fmt.Errorf("%w: email or phone already registered", ErrConflict)
	}
	if err != nil {
		return Session{}, err
	}
	return s.session(user)
}

// Login accepts an email or a phone as identifier.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (Session, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		identifier = normalizeEmail(identifier)
	}
	if identifier == "" || password == "" {
		return Session{}, validationErr("identifier and password are required")
	}

	user, err := s.users.FindUserByIdentifier(ctx, identifier)
	if errors.Is(err, repository.ErrUserNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !user.HasPassword() || !CheckPassword(user.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(user)
}

// SendOTP issues a login code for phone and hands it to the notifier. A
// throttled request is reported as success without issuing a new code.
func (s *AuthService) SendOTP(ctx context.Context, phone string) error {
	phone = normalizePhone(phone)
	if phone == "" {
		return validationErr("phone is required")
	}

	code, err := s.codes.Issue(ctx, phone)
	if errors.Is(err, otp.ErrThrottled) {
		s.log.Info("otp request throttled", "phone", phone)
		return nil
	}
	if err != nil {
		return err
	}

	s.notifier.Dispatch(notifyOTP(phone, code))
	return nil
}

// LoginOTP signs in with a phone and a code from SendOTP. Unknown phones are
// provisioned as customers when AutoProvision is set.
func (s *AuthService) LoginOTP(ctx context.Context, phone, code string) (Session, error) {
	phone = normalizePhone(phone)
	code = strings.TrimSpace(code)
	if phone == "" || code == "" {
		return Session{}, validationErr("phone and otp are required")
	}

	if err := s.codes.Verify(ctx, phone, code); err != nil {
		if errors.Is(err, otp.ErrInvalidCode) {
			return Session{}, ErrInvalidOTP
		}
		return Session{}, err
	}

	user, err := s.users.FindUserByPhone(ctx, phone)
	if errors.Is(err, repository.ErrUserNotFound) {
		if !s.cfg.AutoProvision {
			return Session{}, ErrInvalidCredentials
		}
		user, err = s.ProvisionByPhone(ctx, phone)
	}
	if err != nil {
		return Session{}, err
	}
	return s.session(user)
}

// ProvisionByPhone returns the account for phone, creating a passwordless
// customer with a synthetic email if none exists.
func (s *AuthService) ProvisionByPhone(ctx context.Context, phone string) (model.User, error) {
	phone = normalizePhone(phone)
	if phone == "" {
		return model.User{}, validationErr("phone is required")
	}
	existing, err := s.users.FindUserByPhone(ctx, phone)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return model.User{}, err
	}

	user, err := s.users.CreateUser(ctx, repository.CreateUserInput{
		Name:  guestCustomerName,
		Email: phone + "@" + s.cfg.SyntheticEmailDomain,
		Role:  model.UserRoleCustomer,
		Phone: phone,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// either a concurrent login for the same phone won the insert, or the
		// synthetic email already belongs to another account
		raced, findErr := s.users.FindUserByPhone(ctx, phone)
		if errors.Is(findErr, repository.ErrUserNotFound) {
			return model.User{}, fmt.Errorf("%w: email %s@%s already registered", ErrConflict, phone, s.cfg.SyntheticEmailDomain)
		}
		return raced, findErr
	}
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("customer provisioned", "user_id", user.ID, "phone", phone)
	return user, nil
}

// ForgotPassword starts a reset for email. Unknown emails are not reported so
// callers cannot enumerate accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return validationErr("email is required")
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := randomToken()
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordReset(ctx, user.ID, hashToken(token), s.now().Add(s.cfg.ResetTTL)); err != nil {
		return err
	}

	link := strings.TrimRight(s.cfg.FrontendURL, "/") + "/reset-password/" + token
	s.notifier.Dispatch(notifyPasswordReset(user.Email, link))
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidResetToken
	}
	if strings.TrimSpace(password) == "" {
		return validationErr("password is required")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	userID, err := s.users.ConsumePasswordReset(ctx, hashToken(token), s.now(), hash)
	if errors.Is(err, repository.ErrResetTokenNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}
	s.log.Info("password reset", "user_id", userID)
	return nil
}

// InitFirstAdmin creates or promotes the first admin. It is a no-op once any
// admin exists. Promoting an existing account requires its password.
func (s *AuthService) InitFirstAdmin(ctx context.Context, input AdminInitInput) error {
	email := normalizeEmail(input.Email)
	phone := normalizePhone(input.Phone)
	if email == "" || strings.TrimSpace(input.Password) == "" {
		return validationErr("email and password are required")
	}

	admins, err := s.users.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if admins > 0 {
		return nil
	}

	existing, err := s.users.FindUserByEmail(ctx, email)
	if err == nil {
		if !existing.HasPassword() || !CheckPassword(existing.PasswordHash, input.Password) {
			return ErrInvalidCredentials
		}
		return s.users.SetRole(ctx, existing.ID, model.UserRoleAdmin)
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Admin"
	}
	_, err = s.users.CreateUser(ctx, repository.CreateUserInput{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.UserRoleAdmin,
		Phone:        phone,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil
	}
	return err
}

// PromoteByPhone grants the admin role to the account registered with phone.
// Tokens issued before the promotion keep the old role until they expire.
func (s *AuthService) PromoteByPhone(ctx context.Context, phone string) (model.User, error) {
	user, err := s.findByPhone(ctx, phone)
	if err != nil {
		return model.User{}, err
	}
	if user.Role == model.UserRoleAdmin {
		return user, nil
	}
	if err := s.users.SetRole(ctx, user.ID, model.UserRoleAdmin); err != nil {
		return model.User{}, err
	}
	user.Role = model.UserRoleAdmin
	s.log.Info("user promoted", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) SetPasswordByPhone(ctx context.Context, phone, password string) error {
	if strings.TrimSpace(password) == "" {
		return validationErr("password is required")
	}
	user, err := s.findByPhone(ctx, phone)
	if err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.users.SetPasswordHash(ctx, user.ID, hash)
}

func (s *AuthService) findByPhone(ctx context.Context, phone string) (model.User, error) {
	phone = normalizePhone(phone)
	if phone == "" {
		return model.User{}, validationErr("phone is required")
	}
	user, err := s.users.FindUserByPhone(ctx, phone)
	if errors.Is(err, repository.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("%w: no user with phone %s", ErrNotFound, phone)
	}
	return user, err
}

func (s *AuthService) session(user model.User) (Session, error) {
	token, err := s.tokens.Issue(auth.IdentityFromUser(user))
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{User: user, Token: token}, nil
}

func HashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func normalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
