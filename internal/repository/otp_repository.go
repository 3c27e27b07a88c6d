package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type OTPCode struct {
	ID        int64
	Phone     string
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
}

type OTPRepository interface {
	CreateCode(ctx context.Context, phone, codeHash string, expiresAt time.Time) (int64, error)
	LatestUnusedCode(ctx context.Context, phone string) (OTPCode, error)
	IncrementAttempts(ctx context.Context, id int64) error
	MarkUsed(ctx context.Context, id int64, usedAt time.Time) error
}

var ErrOTPNotFound = errors.New("one-time code not found")

type SQLOTPRepository struct {
	db *sql.DB
}

func NewSQLOTPRepository(db *sql.DB) *SQLOTPRepository {
	return &SQLOTPRepository{db: db}
}

func (r *SQLOTPRepository) CreateCode(ctx context.Context, phone, codeHash string, expiresAt time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO otp_codes (phone, code_hash, expires_at) VALUES (?, ?, ?)`,
		phone, codeHash, expiresAt.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LatestUnusedCode returns the most recently issued code for phone that has not
// been consumed. Expiry is left to the caller.
func (r *SQLOTPRepository) LatestUnusedCode(ctx context.Context, phone string) (OTPCode, error) {
	code := OTPCode{}
	err := r.db.QueryRowContext(ctx, `
SELECT id, phone, code_hash, expires_at, attempts
FROM otp_codes
WHERE phone = ? AND used_at IS NULL
ORDER BY id DESC
LIMIT 1
`, phone).Scan(&code.ID, &code.Phone, &code.CodeHash, &code.ExpiresAt, &code.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return OTPCode{}, ErrOTPNotFound
	}
	return code, err
}

func (r *SQLOTPRepository) IncrementAttempts(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE otp_codes SET attempts = attempts + 1 WHERE id = ?`, id)
	return err
}

// MarkUsed consumes a code. A second caller racing on the same code gets ErrOTPNotFound.
func (r *SQLOTPRepository) MarkUsed(ctx context.Context, id int64, usedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE otp_codes SET used_at = ? WHERE id = ? AND used_at IS NULL`, usedAt.UTC(), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOTPNotFound
	}
	return nil
}
