package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"wisefido-telemetry/internal/models"
)

var ErrMalformedMessage = errors.New("malformed telemetry message")

// Decode parses one live frame. fallbackID is used when the frame carries no deviceId
// (MQTT topics encode it). A missing ts defaults to arrival.
func Decode(payload []byte, fallbackID string, arrival time.Time) (string, models.Reading, error) {
	var msg models.LiveMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", models.Reading{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	deviceID := msg.DeviceID
	if deviceID == "" {
		deviceID = fallbackID
	}
	if deviceID == "" {
		return "", models.Reading{}, fmt.Errorf("%w: missing deviceId", ErrMalformedMessage)
	}
	if msg.Vitals == nil {
		return "", models.Reading{}, fmt.Errorf("%w: missing vitals", ErrMalformedMessage)
	}

	ts := arrival.UnixMilli()
	if msg.Timestamp != nil && *msg.Timestamp >= 1 {
		ts = int64(*msg.Timestamp)
	}

	return deviceID, models.Reading{
		Timestamp:   ts,
		HeartRate:   roundInt(msg.Vitals.HeartRate),
		SpO2:        roundInt(msg.Vitals.SpO2),
		Systolic:    roundInt(msg.Vitals.Systolic),
		Diastolic:   roundInt(msg.Vitals.Diastolic),
		Temperature: msg.Vitals.Temperature,
	}, nil
}

func roundInt(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}
