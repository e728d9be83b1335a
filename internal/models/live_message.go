package models

// LiveMessage inbound frame from a live feed:
// {"deviceId":"dev-001","ts":1700000000000,"vitals":{"heartRate":80,"spo2":98}}
// Any JSON number is accepted; the decoder rounds integer vitals and truncates ts.
type LiveMessage struct {
	DeviceID  string      `json:"deviceId"`
	Timestamp *float64    `json:"ts,omitempty"` // defaults to arrival time
	Vitals    *LiveVitals `json:"vitals"`
}

// LiveVitals vitals block of a LiveMessage
type LiveVitals struct {
	HeartRate   *float64 `json:"heartRate,omitempty"`
	SpO2        *float64 `json:"spo2,omitempty"`
	Systolic    *float64 `json:"systolic,omitempty"`
	Diastolic   *float64 `json:"diastolic,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}
