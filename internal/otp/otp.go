// Package otp issues and verifies one-time login codes. A code is bound to the
// phone it was issued for, expires after a TTL and can be used once.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hygienix/backend/internal/repository"
)

var (
	ErrInvalidCode = errors.New("invalid or expired code")
	ErrThrottled   = errors.New("a code was issued recently for this phone")
)

type Config struct {
	TTL            time.Duration
	Length         int
	MaxAttempts    int
	ResendInterval time.Duration
}

type Issuer struct {
	cfg      Config
	repo     repository.OTPRepository
	generate func(length int) (string, error)
	now      func() time.Time

	mu        sync.Mutex
	limiters  map[string]*phoneLimiter
	lastSweep time.Time
}

type phoneLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewIssuer(cfg Config, repo repository.OTPRepository) *Issuer {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Length <= 0 {
		cfg.Length = 6
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Issuer{
		cfg:      cfg,
		repo:     repo,
		generate: randomDigits,
		now:      time.Now,
		limiters: make(map[string]*phoneLimiter),
	}
}

// WithGenerator replaces the code generator. Used by tests that need a known code.
func (i *Issuer) WithGenerator(fn func(length int) (string, error)) *Issuer {
	i.generate = fn
	return i
}

// Issue creates a fresh code for phone and returns it in clear text so the
// caller can deliver it. Only its hash is stored.
func (i *Issuer) Issue(ctx context.Context, phone string) (string, error) {
	if !i.allow(phone) {
		return "", ErrThrottled
	}
	code, err := i.generate(i.cfg.Length)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	if _, err := i.repo.CreateCode(ctx, phone, hashCode(phone, code), i.now().Add(i.cfg.TTL)); err != nil {
		return "", err
	}
	return code, nil
}

// Verify consumes the latest outstanding code for phone when it matches.
func (i *Issuer) Verify(ctx context.Context, phone, code string) error {
	stored, err := i.repo.LatestUnusedCode(ctx, phone)
	if errors.Is(err, repository.ErrOTPNotFound) {
		return ErrInvalidCode
	}
	if err != nil {
		return err
	}
	if !i.now().Before(stored.ExpiresAt) || stored.Attempts >= i.cfg.MaxAttempts {
		return ErrInvalidCode
	}

	want := []byte(stored.CodeHash)
	got := []byte(hashCode(phone, code))
	if subtle.ConstantTimeCompare(want, got) != 1 {
		if err := i.repo.IncrementAttempts(ctx, stored.ID); err != nil {
			return err
		}
		return ErrInvalidCode
	}

	if err := i.repo.MarkUsed(ctx, stored.ID, i.now()); err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return ErrInvalidCode
		}
		return err
	}
	return nil
}

func (i *Issuer) allow(phone string) bool {
	if i.cfg.ResendInterval <= 0 {
		return true
	}
	now := i.now()
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sweep(now)
	entry, ok := i.limiters[phone]
	if !ok {
		entry = &phoneLimiter{lim: rate.NewLimiter(rate.Every(i.cfg.ResendInterval), 1)}
		i.limiters[phone] = entry
	}
	entry.seen = now
	return entry.lim.AllowN(now, 1)
}

// sweep drops limiters idle for a full resend interval. Their bucket has
// refilled by then, so a fresh limiter behaves the same. Runs at most once per
// interval; callers hold mu.
func (i *Issuer) sweep(now time.Time) {
	if now.Sub(i.lastSweep) < i.cfg.ResendInterval {
		return
	}
	i.lastSweep = now
	for phone, entry := range i.limiters {
		if now.Sub(entry.seen) >= i.cfg.ResendInterval {
			delete(i.limiters, phone)
		}
	}
}

func hashCode(phone, code string) string {
	sum := sha256.Sum256([]byte(phone + ":" + code))
	return hex.EncodeToString(sum[:])
}

func randomDigits(length int) (string, error) {
	buf := make([]byte, length)
	for idx := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		buf[idx] = byte('0' + n.Int64())
	}
	return string(buf), nil
}
