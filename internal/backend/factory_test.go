package backend

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtadmin/internal/config"
	"rtadmin/internal/core"
	applog "rtadmin/internal/log"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote, embedded")

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:      "embedded",
		SQLiteDBPath:     "./data/rt.db",
		DevAPIStorageDir: "./data/storage",
		APITimeout:       5 * time.Second,
		AMQPExchange:     "rt",
	})
	require.NoError(t, err)
	assert.Equal(t, EmbeddedBackend, cfg.Type)
	assert.Equal(t, "./data/storage", cfg.StorageDir)
	assert.Equal(t, "rt", cfg.AMQPExchange)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"remote", Config{Type: RemoteBackend, APIURL: "http://localhost:8000/api"}, false},
		{"remote without url", Config{Type: RemoteBackend}, true},
		{"embedded", Config{Type: EmbeddedBackend, SQLiteDBPath: "rt.db", StorageDir: "files"}, false},
		{"embedded without storage", Config{Type: EmbeddedBackend, SQLiteDBPath: "rt.db"}, true},
		{"unknown", Config{Type: "memory"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestCreateBackend_Remote(t *testing.T) {
	res, err := NewFactory(quietLogger()).CreateBackend(context.Background(), Config{
		Type:       RemoteBackend,
		APIURL:     "http://localhost:8000/api",
		StorageURL: "http://localhost:8000/storage",
		APITimeout: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/storage", res.StorageURL)
	assert.Nil(t, res.StorageHandler)
	assert.Nil(t, res.Publisher)
	assert.Nil(t, res.Cleanup)
}

func TestCreateBackend_EmbeddedServesTheRESTContract(t *testing.T) {
	dir := t.TempDir()
	res, err := NewFactory(quietLogger()).CreateBackend(context.Background(), Config{
		Type:         EmbeddedBackend,
		SQLiteDBPath: filepath.Join(dir, "rt.db"),
		StorageDir:   filepath.Join(dir, "storage"),
		APITimeout:   5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	assert.Equal(t, "/storage", res.StorageURL)
	require.NotNil(t, res.StorageHandler)

	ctx := context.Background()
	require.NoError(t, res.API.Ping(ctx))

	created, err := res.API.Expenses.Create(ctx, core.ExpenseInput{
		Name:   "Alat Kebersihan",
		Amount: 150000,
		Date:   "2024-01-10",
	})
	require.NoError(t, err)

	got, err := res.API.Expenses.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Rupiah(150000), got.Amount)

	rr := httptest.NewRecorder()
	res.StorageHandler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/storage/ktp/missing.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
