package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-telemetry/internal/models"
	"wisefido-telemetry/internal/registry"
)

// feedServer upgrades one client and writes whatever is sent on frames
func feedServer(t *testing.T, frames <-chan string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type registrySink struct{ *registry.Registry }

func (s registrySink) PushReading(deviceID string, reading models.Reading) error {
	_, err := s.Registry.PushReading(deviceID, reading)
	return err
}

func seeded(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New(zap.NewNop())
	r.Seed()
	return r
}

func TestWebSocketSource_AppliesFramesAndDropsMalformed(t *testing.T) {
	frames := make(chan string, 8)
	srv := feedServer(t, frames)
	reg := seeded(t)

	src := NewWebSocketSource(wsURL(srv), registrySink{reg}, zap.NewNop())
	require.NoError(t, src.Start(context.Background()))
	defer close(frames)
	defer src.Stop()

	require.Eventually(t, func() bool { return src.Status().Connected }, 2*time.Second, 10*time.Millisecond)

	frames <- `{"deviceId":"dev-001","ts":1000,"vitals":{"heartRate":88}}`
	frames <- `{"ts":1001,"vitals":{"heartRate":90}}`
	frames <- `not json`
	frames <- `{"deviceId":"dev-unknown","vitals":{"heartRate":90}}`
	frames <- `{"deviceId":"dev-001","ts":1002,"vitals":{"spo2":97}}`

	require.Eventually(t, func() bool {
		rs, _ := reg.Readings("dev-001")
		return len(rs) == 2
	}, 2*time.Second, 10*time.Millisecond)

	rs, _ := reg.Readings("dev-001")
	assert.Equal(t, int64(1000), rs[0].Timestamp)
	assert.Equal(t, int64(1002), rs[1].Timestamp)

	for _, id := range []string{"dev-ambulance-01", "dev-drone-01"} {
		other, _ := reg.Readings(id)
		assert.Empty(t, other)
	}
	assert.Equal(t, "websocket", src.Status().Transport)
}

func TestWebSocketSource_StopHaltsMutation(t *testing.T) {
	frames := make(chan string, 8)
	srv := feedServer(t, frames)
	reg := seeded(t)

	src := NewWebSocketSource(wsURL(srv), registrySink{reg}, zap.NewNop())
	require.NoError(t, src.Start(context.Background()))
	require.Eventually(t, func() bool { return src.Status().Connected }, 2*time.Second, 10*time.Millisecond)

	src.Stop()
	assert.False(t, src.Status().Connected)

	frames <- `{"deviceId":"dev-001","ts":1000,"vitals":{"heartRate":88}}`
	time.Sleep(50 * time.Millisecond)
	rs, _ := reg.Readings("dev-001")
	assert.Empty(t, rs)
	close(frames)
}

func TestWebSocketSource_DialFailureSurfacesDisconnected(t *testing.T) {
	reg := seeded(t)
	src := NewWebSocketSource("ws://127.0.0.1:1/none", registrySink{reg}, zap.NewNop())

	require.NoError(t, src.Start(context.Background()))
	defer src.Stop()

	require.Eventually(t, func() bool { return src.Status().LastError != "" }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, src.Status().Connected)
	assert.ErrorIs(t, src.Start(context.Background()), ErrAlreadyStarted)
}

func TestWebSocketSource_ServerCloseSurfacesDisconnected(t *testing.T) {
	frames := make(chan string)
	srv := feedServer(t, frames)
	reg := seeded(t)

	src := NewWebSocketSource(wsURL(srv), registrySink{reg}, zap.NewNop())
	require.NoError(t, src.Start(context.Background()))
	defer src.Stop()
	require.Eventually(t, func() bool { return src.Status().Connected }, 2*time.Second, 10*time.Millisecond)

	close(frames)
	require.Eventually(t, func() bool { return !src.Status().Connected }, 2*time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, src.Status().LastError)
}

func TestWebSocketSource_OversizedFrameDisconnects(t *testing.T) {
	frames := make(chan string, 2)
	srv := feedServer(t, frames)
	reg := seeded(t)

	src := NewWebSocketSource(wsURL(srv), registrySink{reg}, zap.NewNop())
	require.NoError(t, src.Start(context.Background()))
	defer src.Stop()
	defer close(frames)
	require.Eventually(t, func() bool { return src.Status().Connected }, 2*time.Second, 10*time.Millisecond)

	padding := strings.Repeat(" ", MaxFrameBytes)
	frames <- `{"deviceId":"dev-001","ts":1000,"vitals":{"heartRate":88}` + padding + `}`

	require.Eventually(t, func() bool { return !src.Status().Connected }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, src.Status().LastError, "read limit")
	rs, _ := reg.Readings("dev-001")
	assert.Empty(t, rs)
}
