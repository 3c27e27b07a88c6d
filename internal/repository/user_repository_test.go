package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hygienix/backend/internal/model"
)

func TestUserRepository_CreateDefaultsToCustomer(t *testing.T) {
	repo := NewSQLUserRepository(openTestDB(t))
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, CreateUserInput{Name: "Asha", Email: "asha@example.com", PasswordHash: "hash"})
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.Equal(t, model.UserRoleCustomer, user.Role)
	assert.Equal(t, "", user.Phone)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	repo := NewSQLUserRepository(openTestDB(t))
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, CreateUserInput{Email: "dup@example.com"})
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, CreateUserInput{Email: "dup@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepository_PhoneOnlyAccountsDoNotCollide(t *testing.T) {
	repo := NewSQLUserRepository(openTestDB(t))
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, CreateUserInput{Phone: "111"})
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, CreateUserInput{Phone: "222"})
	assert.NoError(t, err)
}

func TestUserRepository_FindByIdentifier(t *testing.T) {
	repo := NewSQLUserRepository(openTestDB(t))
	ctx := context.Background()

	created, err := repo.CreateUser(ctx, CreateUserInput{Name: "Ravi", Email: "ravi@example.com", Phone: "9876543210"})
	require.NoError(t, err)

	byEmail, err := repo.FindUserByIdentifier(ctx, "ravi@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byPhone, err := repo.FindUserByIdentifier(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byPhone.ID)

	_, err = repo.FindUserByIdentifier(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_SetRoleAndCountAdmins(t *testing.T) {
	repo := NewSQLUserRepository(openTestDB(t))
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, CreateUserInput{Phone: "9000000000"})
	require.NoError(t, err)

	n, err := repo.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, repo.SetRole(ctx, user.ID, model.UserRoleAdmin))
	n, err = repo.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, repo.SetRole(ctx, 999, model.UserRoleAdmin), ErrUserNotFound)
}

func TestUserRepository_PasswordReset(t *testing.T) {
	repo := NewSQLUserRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	user, err := repo.CreateUser(ctx, CreateUserInput{Email: "reset@example.com", PasswordHash: "old"})
	require.NoError(t, err)
	require.NoError(t, repo.SetPasswordReset(ctx, user.ID, "tokenhash", now.Add(time.Hour)))

	userID, err := repo.ConsumePasswordReset(ctx, "tokenhash", now, "new")
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	reloaded, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", reloaded.PasswordHash)

	_, err = repo.ConsumePasswordReset(ctx, "tokenhash", now, "again")
	assert.ErrorIs(t, err, ErrResetTokenNotFound)
}

func TestUserRepository_PasswordResetExpired(t *testing.T) {
	repo := NewSQLUserRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	user, err := repo.CreateUser(ctx, CreateUserInput{Email: "late@example.com"})
	require.NoError(t, err)
	require.NoError(t, repo.SetPasswordReset(ctx, user.ID, "stale", now.Add(-time.Minute)))

	_, err = repo.ConsumePasswordReset(ctx, "stale", now, "new")
	assert.ErrorIs(t, err, ErrResetTokenNotFound)
}
