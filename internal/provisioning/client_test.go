package provisioning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-telemetry/internal/models"
)

func TestRegisterDevice_Success(t *testing.T) {
	var got DeviceRegistration
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/devices", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zap.NewNop())
	err := c.RegisterDevice(context.Background(), models.Device{
		ID:       "dev-abc123",
		Name:     "New Device dev-abc123",
		Category: models.CategoryWearable,
	})
	require.NoError(t, err)
	assert.Equal(t, "dev-abc123", got.DeviceID)
	assert.Equal(t, models.CategoryWearable, got.Category)
	assert.NotZero(t, got.PairedAt)
}

func TestRegisterDevice_ServerErrorIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zap.NewNop())
	err := c.RegisterDevice(context.Background(), models.Device{ID: "dev-abc123"})
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRegisterDevice_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, zap.NewNop())
	err := c.RegisterDevice(context.Background(), models.Device{ID: "dev-abc123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRegisterDevice_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond, zap.NewNop())
	err := c.RegisterDevice(context.Background(), models.Device{ID: "dev-abc123"})
	assert.Error(t, err)
}
