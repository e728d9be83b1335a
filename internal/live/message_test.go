package live

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	arrival := time.UnixMilli(1_700_000_000_500)

	tests := []struct {
		name     string
		payload  string
		fallback string
		wantID   string
		wantTS   int64
		wantErr  bool
	}{
		{
			name:    "full frame",
			payload: `{"deviceId":"dev-001","ts":1700000000000,"vitals":{"heartRate":80,"spo2":98,"temperature":36.7}}`,
			wantID:  "dev-001",
			wantTS:  1_700_000_000_000,
		},
		{
			name:    "missing ts defaults to arrival",
			payload: `{"deviceId":"dev-001","vitals":{"heartRate":80}}`,
			wantID:  "dev-001",
			wantTS:  arrival.UnixMilli(),
		},
		{
			name:     "device id from topic",
			payload:  `{"vitals":{"spo2":95}}`,
			fallback: "dev-drone-01",
			wantID:   "dev-drone-01",
			wantTS:   arrival.UnixMilli(),
		},
		{
			name:    "float ts is truncated",
			payload: `{"deviceId":"dev-001","ts":1700000000000.9,"vitals":{"spo2":97.0}}`,
			wantID:  "dev-001",
			wantTS:  1_700_000_000_000,
		},
		{
			name:    "float vitals",
			payload: `{"deviceId":"dev-001","ts":1000,"vitals":{"spo2":97.0,"temperature":36.6}}`,
			wantID:  "dev-001",
			wantTS:  1000,
		},
		{name: "missing device id", payload: `{"vitals":{"spo2":95}}`, wantErr: true},
		{name: "missing vitals", payload: `{"deviceId":"dev-001","ts":5}`, wantErr: true},
		{name: "not json", payload: `hello`, wantErr: true},
		{name: "wrong type", payload: `{"deviceId":"dev-001","vitals":{"heartRate":"fast"}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, r, err := Decode([]byte(tt.payload), tt.fallback, arrival)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedMessage))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantTS, r.Timestamp)
		})
	}
}

func TestDecode_MapsVitals(t *testing.T) {
	_, r, err := Decode([]byte(`{"deviceId":"d","vitals":{"heartRate":81,"spo2":97,"systolic":121,"diastolic":79,"temperature":36.9}}`), "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 81, *r.HeartRate)
	assert.Equal(t, 97, *r.SpO2)
	assert.Equal(t, 121, *r.Systolic)
	assert.Equal(t, 79, *r.Diastolic)
	assert.Equal(t, 36.9, *r.Temperature)
}

func TestDecode_RoundsFloatVitals(t *testing.T) {
	_, r, err := Decode([]byte(`{"deviceId":"d","ts":1700000000000.0,"vitals":{"heartRate":72.5,"spo2":97.0,"systolic":120.4,"diastolic":79.6,"temperature":36.6}}`), "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000), r.Timestamp)
	assert.Equal(t, 73, *r.HeartRate)
	assert.Equal(t, 97, *r.SpO2)
	assert.Equal(t, 120, *r.Systolic)
	assert.Equal(t, 80, *r.Diastolic)
	assert.Equal(t, 36.6, *r.Temperature)

	_, empty, err := Decode([]byte(`{"deviceId":"d","vitals":{}}`), "", time.Now())
	require.NoError(t, err)
	assert.Nil(t, empty.HeartRate)
}

func TestDeviceFromTopic(t *testing.T) {
	assert.Equal(t, "dev-001", deviceFromTopic("telemetry/dev-001/vitals"))
	assert.Equal(t, "", deviceFromTopic("telemetry"))
}
