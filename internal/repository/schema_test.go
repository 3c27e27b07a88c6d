package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(context.Background(), db, DriverSQLite))

	for _, table := range []string{"users", "contacts", "orders", "notifications", "otp_codes"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestMigrate_UnknownDriver(t *testing.T) {
	db := openTestDB(t)
	assert.Error(t, Migrate(context.Background(), db, "postgres"))
}

func TestIsDuplicateErr_FallsBackToMessage(t *testing.T) {
	assert.True(t, isDuplicateErr(errors.New("Error 1062: Duplicate entry 'a@b.c'")))
	assert.False(t, isDuplicateErr(errors.New("connection refused")))
}
