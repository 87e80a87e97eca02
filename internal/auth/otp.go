package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"groceryDelivery/internal/cache"
)

const (
	OTPDigits      = 6
	OTPTTL         = 5 * time.Minute
	OTPMaxAttempts = 5
	// OTPAttemptWindow is how long failed attempts count against a phone. Issuing a
	// new code does not reset it.
	OTPAttemptWindow = 15 * time.Minute
)

var (
	ErrOTPExpired         = errors.New("otp expired or not requested")
	ErrOTPMismatch        = errors.New("otp does not match")
	ErrOTPTooManyAttempts = errors.New("too many otp attempts")
)

type otpEntry struct {
	Hash      string    `json:"hash"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OTPStore keeps bcrypt-hashed one-time codes in a cache.Store keyed by phone.
type OTPStore struct {
	store cache.Store
	now   func() time.Time
	// generate is swapped in tests.
	generate func() (string, error)
}

func NewOTPStore(store cache.Store) *OTPStore {
	return &OTPStore{store: store, now: time.Now, generate: randomCode}
}

func otpKey(phone string) string { return "otp:" + phone }

func attemptsKey(phone string) string { return "otp-attempts:" + phone }

func randomCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", OTPDigits, n.Int64()), nil
}

// Issue creates a new code for phone, replacing any previous one.
func (s *OTPStore) Issue(ctx context.Context, phone string) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	e := otpEntry{Hash: string(h), ExpiresAt: s.now().Add(OTPTTL)}
	if err := s.put(ctx, phone, e); err != nil {
		return "", err
	}
	return code, nil
}

func (s *OTPStore) put(ctx context.Context, phone string, e otpEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ttl := e.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.store.Delete(ctx, otpKey(phone))
	}
	return s.store.Set(ctx, otpKey(phone), b, ttl)
}

// Verify checks code for phone. A successful check consumes the code. Every check
// counts against OTPMaxAttempts for the phone within OTPAttemptWindow.
func (s *OTPStore) Verify(ctx context.Context, phone, code string) error {
	raw, err := s.store.Get(ctx, otpKey(phone))
	if errors.Is(err, cache.ErrMiss) {
		return ErrOTPExpired
	}
	if err != nil {
		return err
	}
	var e otpEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		_ = s.store.Delete(ctx, otpKey(phone))
		return ErrOTPExpired
	}
	if !s.now().Before(e.ExpiresAt) {
		_ = s.store.Delete(ctx, otpKey(phone))
		return ErrOTPExpired
	}
	n, err := s.store.Incr(ctx, attemptsKey(phone), OTPAttemptWindow)
	if err != nil {
		return fmt.Errorf("count otp attempt: %w", err)
	}
	if n > OTPMaxAttempts {
		return ErrOTPTooManyAttempts
	}
	if bcrypt.CompareHashAndPassword([]byte(e.Hash), []byte(code)) != nil {
		if n >= OTPMaxAttempts {
			return ErrOTPTooManyAttempts
		}
		return ErrOTPMismatch
	}
	_ = s.store.Delete(ctx, attemptsKey(phone))
	return s.store.Delete(ctx, otpKey(phone))
}
