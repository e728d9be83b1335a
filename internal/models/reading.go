package models

// Reading one timestamped vital-sign snapshot. Any vital may be absent.
type Reading struct {
	Timestamp   int64    `json:"ts"` // ms since epoch
	HeartRate   *int     `json:"heart_rate,omitempty"`
	SpO2        *int     `json:"spo2,omitempty"`
	Systolic    *int     `json:"systolic,omitempty"`
	Diastolic   *int     `json:"diastolic,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Clone copies the optional fields
func (r Reading) Clone() Reading {
	out := Reading{Timestamp: r.Timestamp}
	out.HeartRate = copyInt(r.HeartRate)
	out.SpO2 = copyInt(r.SpO2)
	out.Systolic = copyInt(r.Systolic)
	out.Diastolic = copyInt(r.Diastolic)
	if r.Temperature != nil {
		v := *r.Temperature
		out.Temperature = &v
	}
	return out
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IntPtr helper for building readings
func IntPtr(v int) *int {
	return &v
}

// FloatPtr helper for building readings
func FloatPtr(v float64) *float64 {
	return &v
}
