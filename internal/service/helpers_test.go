package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"hygienix/backend/internal/auth"
	"hygienix/backend/internal/model"
	"hygienix/backend/internal/notify"
	"hygienix/backend/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "service.db")
	db, err := sql.Open(repository.DriverSQLite, path+"?_busy_timeout=5000")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, repository.Migrate(context.Background(), db, repository.DriverSQLite))
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureNotifier records dispatched messages. onDispatch, when set, runs
// before the messages are recorded.
type captureNotifier struct {
	mu         sync.Mutex
	msgs       []notify.Message
	onDispatch func(msgs []notify.Message)
}

func (n *captureNotifier) Dispatch(msgs ...notify.Message) {
	if n.onDispatch != nil {
		n.onDispatch(msgs)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msgs...)
}

func (n *captureNotifier) Messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.msgs...)
}

func (n *captureNotifier) Last() notify.Message {
	msgs := n.Messages()
	if len(msgs) == 0 {
		return notify.Message{}
	}
	return msgs[len(msgs)-1]
}

func adminIdentity() auth.Identity {
	return auth.Identity{ID: 1, Name: "Admin", Role: model.UserRoleAdmin}
}

func customerIdentity(id int64) auth.Identity {
	return auth.Identity{ID: id, Name: "Customer", Role: model.UserRoleCustomer}
}

func floatPtr(v float64) *float64 {
	return &v
}
