package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"hygienix/backend/internal/model"
)

type CreateUserInput struct {
	Name         string
	Email        string
	PasswordHash string
	Role         model.UserRole
	Phone        string
}

type UserRepository interface {
	CreateUser(ctx context.Context, input CreateUserInput) (model.User, error)
	GetUserByID(ctx context.Context, id int64) (model.User, error)
	FindUserByEmail(ctx context.Context, email string) (model.User, error)
	FindUserByPhone(ctx context.Context, phone string) (model.User, error)
	FindUserByIdentifier(ctx context.Context, identifier string) (model.User, error)
	CountAdmins(ctx context.Context) (int, error)
	SetRole(ctx context.Context, userID int64, role model.UserRole) error
	SetPasswordHash(ctx context.Context, userID int64, passwordHash string) error
	SetPasswordReset(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (int64, error)
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrResetTokenNotFound = errors.New("reset token not found or expired")
)

const insertUserSQL = `
INSERT INTO users (name, email, password_hash, role, phone)
VALUES (?, ?, ?, ?, ?)
`

const selectUserSQL = `
SELECT id, name, email, password_hash, role, phone, created_at
FROM users
`

type SQLUserRepository struct {
	db *sql.DB
}

func NewSQLUserRepository(db *sql.DB) *SQLUserRepository {
	return &SQLUserRepository{db: db}
}

func (r *SQLUserRepository) CreateUser(ctx context.Context, input CreateUserInput) (model.User, error) {
	role := input.Role
	if role == "" {
		role = model.UserRoleCustomer
	}
	res, err := r.db.ExecContext(ctx, insertUserSQL,
		input.Name,
		nullString(input.Email),
		nullString(input.PasswordHash),
		role,
		nullString(input.Phone),
	)
	if err != nil {
		if isDuplicateErr(err) {
			return model.User{}, ErrDuplicate
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.GetUserByID(ctx, id)
}

func (r *SQLUserRepository) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	return r.findOne(ctx, "WHERE id = ?", id)
}

func (r *SQLUserRepository) FindUserByEmail(ctx context.Context, email string) (model.User, error) {
	return r.findOne(ctx, "WHERE email = ?", email)
}

func (r *SQLUserRepository) FindUserByPhone(ctx context.Context, phone string) (model.User, error) {
	return r.findOne(ctx, "WHERE phone = ? ORDER BY id ASC", phone)
}

// FindUserByIdentifier matches either the email or the phone column.
func (r *SQLUserRepository) FindUserByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	return r.findOne(ctx, "WHERE email = ? OR phone = ? ORDER BY id ASC", identifier, identifier)
}

func (r *SQLUserRepository) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE role = ?`, model.UserRoleAdmin).Scan(&n)
	return n, err
}

func (r *SQLUserRepository) SetRole(ctx context.Context, userID int64, role model.UserRole) error {
	return r.updateOne(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, userID)
}

func (r *SQLUserRepository) SetPasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	return r.updateOne(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID)
}

func (r *SQLUserRepository) SetPasswordReset(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	return r.updateOne(ctx,
		`UPDATE users SET password_reset_token = ?, password_reset_expires = ? WHERE id = ?`,
		tokenHash, expiresAt.UTC(), userID,
	)
}

// ConsumePasswordReset swaps in the new password hash and clears the reset
// token in one statement, so a token can only ever be used once.
func (r *SQLUserRepository) ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (int64, error) {
	var userID int64
	var expires sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, password_reset_expires FROM users WHERE password_reset_token = ? LIMIT 1`,
		tokenHash,
	).Scan(&userID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrResetTokenNotFound
	}
	if err != nil {
		return 0, err
	}
	if !expires.Valid || !expires.Time.After(now) {
		return 0, ErrResetTokenNotFound
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, password_reset_token = NULL, password_reset_expires = NULL
		WHERE id = ? AND password_reset_token = ?`,
		passwordHash, userID, tokenHash,
	)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, ErrResetTokenNotFound
	}
	return userID, nil
}

func (r *SQLUserRepository) findOne(ctx context.Context, where string, args ...any) (model.User, error) {
	var (
		user  model.User
		email sql.NullString
		hash  sql.NullString
		phone sql.NullString
	)
	err := r.db.QueryRowContext(ctx, selectUserSQL+where+" LIMIT 1", args...).Scan(
		&user.ID,
		&user.Name,
		&email,
		&hash,
		&user.Role,
		&phone,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	user.Email = email.String
	user.PasswordHash = hash.String
	user.Phone = phone.String
	return user, nil
}

func (r *SQLUserRepository) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
