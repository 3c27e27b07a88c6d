package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hygienix/backend/internal/model"
	"hygienix/backend/internal/repository"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func useSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("SQLITE_PATH", path)
	return path
}

func openDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open(repository.DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{
		{"admin", "init"},
		{"users", "promote"},
		{"users", "set-password"},
		{"orders", "watch"},
		{"orders", "set-status"},
	} {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}

	watch, _, err := cmd.Find([]string{"orders", "watch"})
	require.NoError(t, err)
	interval := watch.Flags().Lookup("interval")
	require.NotNil(t, interval)
	assert.Equal(t, "10s", interval.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "orders", "watch", "--format", "yaml", "--token", "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestAdminInitAndUserCommands(t *testing.T) {
	path := useSQLite(t)

	out, err := execute(t, "admin", "init", "--email", "admin@hygienix.in", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "admin ready")

	users := repository.NewSQLUserRepository(openDB(t, path))
	ctx := context.Background()
	admins, err := users.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, admins)

	_, err = users.CreateUser(ctx, repository.CreateUserInput{Name: "Staff", Email: "staff@hygienix.in", Phone: "5555555555"})
	require.NoError(t, err)

	out, err = execute(t, "users", "promote", "5555555555")
	require.NoError(t, err)
	assert.Contains(t, out, "is now admin")

	_, err = execute(t, "users", "set-password", "5555555555", "--password", "fresh")
	require.NoError(t, err)

	staff, err := users.FindUserByPhone(ctx, "5555555555")
	require.NoError(t, err)
	assert.Equal(t, model.UserRoleAdmin, staff.Role)
	assert.True(t, staff.HasPassword())

	_, err = execute(t, "users", "promote", "0000000000")
	require.Error(t, err)
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	status := "pending"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer admin-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/orders/admin":
			_, _ = w.Write([]byte(`[{"id":1,"customer_name":"A","customer_phone":"9999999999","items":[],"total":500,"status":"` + status + `","created_at":"2026-10-16T10:00:00Z"}]`))
		case r.Method == http.MethodPatch && r.URL.Path == "/api/orders/1/status":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			status = body["status"]
			_, _ = w.Write([]byte(`{"id":1,"status":"` + status + `","items":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOrdersWatchOnce(t *testing.T) {
	srv := feedServer(t)

	out, err := execute(t, "orders", "watch", "--once", "--api", srv.URL, "--token", "admin-token")
	require.NoError(t, err)
	assert.Contains(t, out, "orders=1")
	assert.Contains(t, out, "pending=1")

	out, err = execute(t, "orders", "watch", "--once", "--format", "json", "--api", srv.URL, "--token", "admin-token")
	require.NoError(t, err)
	var snap snapshotJSON
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, 1, snap.Total)
	assert.Equal(t, 1, snap.Counts[model.OrderStatusPending])
}

func TestOrdersSetStatusRepolls(t *testing.T) {
	srv := feedServer(t)

	out, err := execute(t, "orders", "set-status", "1", "completed", "--api", srv.URL, "--token", "admin-token")
	require.NoError(t, err)
	assert.Contains(t, out, "order #1 is now completed")
	assert.Contains(t, out, "completed=1")

	_, err = execute(t, "orders", "set-status", "x", "completed", "--api", srv.URL, "--token", "admin-token")
	require.Error(t, err)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestOrdersWatchInteractiveRepolls(t *testing.T) {
	srv := feedServer(t)

	cmd := NewRootCommand()
	var out, errOut syncBuffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader("garbage\n1 completed\n"))
	cmd.SetArgs([]string{"orders", "watch", "--interactive", "--interval", "1h", "--api", srv.URL, "--token", "admin-token"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	// the hour-long interval means only the post-update refresh can report the new status
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "order #1 is now completed") &&
			strings.Contains(out.String(), "completed=1")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "pending=1")
	assert.Contains(t, errOut.String(), `skip "garbage"`)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestOrdersNeedToken(t *testing.T) {
	t.Setenv("HYGIENIX_TOKEN", "")
	_, err := execute(t, "orders", "watch", "--once", "--api", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}
