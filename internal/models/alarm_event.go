package models

import "time"

// AlarmEvent raised by the alert evaluator when a vital leaves its range
type AlarmEvent struct {
	EventID     string    `json:"event_id"`
	DeviceID    string    `json:"device_id"`
	DeviceName  string    `json:"device_name"`
	EventType   string    `json:"event_type"`  // AbnormalHeartRate, LowSpO2, ...
	AlarmLevel  string    `json:"alarm_level"` // WARNING / ALERT
	AlarmStatus string    `json:"alarm_status"`
	Value       float64   `json:"value"`
	Threshold   float64   `json:"threshold"`
	TriggeredAt time.Time `json:"triggered_at"`
}
