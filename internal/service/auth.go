package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"groceryDelivery/internal/apperrors"
	"groceryDelivery/internal/auth"
	"groceryDelivery/models"
	"groceryDelivery/repository"
)

// Session is returned by every login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Kind      string    `json:"kind"`
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
}

// AuthService logs in admins and agents with passwords and customers with phone OTPs.
type AuthService struct {
	Admins    repository.AdminRepositoryI
	Agents    repository.AgentRepositoryI
	Customers repository.CustomerRepositoryI
	OTP       *auth.OTPStore
	Secret    string
	TokenTTL  time.Duration
	Logger    *zap.Logger
}

func (s *AuthService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

var errBadLogin = &apperrors.Unauthorized{Message: "invalid credentials"}

func (s *AuthService) AdminLogin(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, &apperrors.Validation{Message: "username and password are required"}
	}
	a, err := s.Admins.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}
	if a == nil || auth.CheckPassword(a.PasswordHash, password) != nil {
		s.logger().Info("admin login failed", zap.String("username", username))
		return nil, errBadLogin
	}
	return s.issue(auth.Principal{ID: a.ID, Name: a.Username, Kind: auth.KindAdmin})
}

func (s *AuthService) AgentLogin(ctx context.Context, phone, password string) (*Session, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}
	a, err := s.Agents.GetByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	if a == nil || auth.CheckPassword(a.PasswordHash, password) != nil {
		s.logger().Info("agent login failed", zap.String("phone", phone))
		return nil, errBadLogin
	}
	return s.issue(auth.Principal{ID: a.ID, Name: a.Phone, Kind: auth.KindAgent})
}

// RequestOTP issues a code for phone. Delivery of the code is outside this service;
// the caller decides whether to reveal it.
func (s *AuthService) RequestOTP(ctx context.Context, phone string) (string, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return "", err
	}
	code, err := s.OTP.Issue(ctx, phone)
	if err != nil {
		return "", fmt.Errorf("issue otp: %w", err)
	}
	s.logger().Info("otp issued", zap.String("phone", phone))
	return code, nil
}

// VerifyOTP checks the code and logs the customer in, creating the account on first login.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code, name string) (*Session, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if err := s.OTP.Verify(ctx, phone, strings.TrimSpace(code)); err != nil {
		switch {
		case errors.Is(err, auth.ErrOTPExpired), errors.Is(err, auth.ErrOTPMismatch):
			return nil, &apperrors.Unauthorized{Message: err.Error()}
		case errors.Is(err, auth.ErrOTPTooManyAttempts):
			return nil, &apperrors.Forbidden{Message: err.Error()}
		}
		return nil, fmt.Errorf("verify otp: %w", err)
	}

	c, err := s.Customers.GetByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if c == nil {
		c, err = s.Customers.Create(ctx, &models.Customer{Name: strings.TrimSpace(name), Phone: phone})
		if err != nil {
			return nil, fmt.Errorf("create customer: %w", err)
		}
		s.logger().Info("customer registered", zap.Int64("customer_id", c.ID))
	}
	return s.issue(auth.Principal{ID: c.ID, Name: c.Phone, Kind: auth.KindCustomer})
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	existing, err := s.Admins.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("get admin: %w", err)
	}
	if existing != nil {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := s.Admins.Create(ctx, username, hash); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	s.logger().Info("bootstrap admin created", zap.String("username", username))
	return nil
}

func (s *AuthService) issue(p auth.Principal) (*Session, error) {
	tok, exp, err := auth.IssueToken(s.Secret, p, s.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: tok, ExpiresAt: exp, Kind: p.Kind, ID: p.ID, Name: p.Name}, nil
}

// normalizePhone keeps digits and a leading plus, and requires at least 10 digits.
func normalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", &apperrors.Validation{Message: "invalid phone number", Fields: map[string]string{"phone": "digits only"}}
		}
	}
	out := b.String()
	if digits := len(strings.TrimPrefix(out, "+")); digits < 10 || digits > 15 {
		return "", &apperrors.Validation{Message: "invalid phone number", Fields: map[string]string{"phone": strconv.Itoa(digits) + " digits"}}
	}
	return out, nil
}
