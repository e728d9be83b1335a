package alerting

import (
	"wisefido-telemetry/internal/config"
	"wisefido-telemetry/internal/models"
)

// Alarm types
const (
	EventAbnormalHeartRate     = "AbnormalHeartRate"
	EventLowSpO2               = "LowSpO2"
	EventAbnormalBloodPressure = "AbnormalBloodPressure"
	EventAbnormalTemperature   = "AbnormalTemperature"
)

// Alarm levels
const (
	LevelWarning = "WARNING"
	LevelAlert   = "ALERT"
)

// Thresholds inclusive normal ranges; a value outside raises an alarm
type Thresholds struct {
	HeartRateLow, HeartRateHigh int
	SpO2Low                     int
	SystolicLow, SystolicHigh   int
	DiastolicLow, DiastolicHigh int
	TempLow, TempHigh           float64
}

// ThresholdsFromConfig copies the configured ranges
func ThresholdsFromConfig(cfg config.AlertingConfig) Thresholds {
	return Thresholds{
		HeartRateLow:  cfg.HeartRateLow,
		HeartRateHigh: cfg.HeartRateHigh,
		SpO2Low:       cfg.SpO2Low,
		SystolicLow:   cfg.SystolicLow,
		SystolicHigh:  cfg.SystolicHigh,
		DiastolicLow:  cfg.DiastolicLow,
		DiastolicHigh: cfg.DiastolicHigh,
		TempLow:       cfg.TempLow,
		TempHigh:      cfg.TempHigh,
	}
}

// violation one out-of-range vital
type violation struct {
	eventType string
	level     string
	value     float64
	threshold float64
}

// check returns at most one violation per event type
func (t Thresholds) check(r models.Reading) []violation {
	var out []violation

	if r.HeartRate != nil {
		hr := *r.HeartRate
		switch {
		case hr < t.HeartRateLow:
			out = append(out, violation{EventAbnormalHeartRate, LevelWarning, float64(hr), float64(t.HeartRateLow)})
		case hr > t.HeartRateHigh:
			out = append(out, violation{EventAbnormalHeartRate, LevelWarning, float64(hr), float64(t.HeartRateHigh)})
		}
	}

	if r.SpO2 != nil && *r.SpO2 < t.SpO2Low {
		out = append(out, violation{EventLowSpO2, LevelAlert, float64(*r.SpO2), float64(t.SpO2Low)})
	}

	// systolic takes precedence over diastolic for the single blood pressure alarm
	if v, ok := t.bloodPressure(r); ok {
		out = append(out, v)
	}

	if r.Temperature != nil {
		temp := *r.Temperature
		switch {
		case temp > t.TempHigh:
			out = append(out, violation{EventAbnormalTemperature, LevelWarning, temp, t.TempHigh})
		case temp < t.TempLow:
			out = append(out, violation{EventAbnormalTemperature, LevelWarning, temp, t.TempLow})
		}
	}
	return out
}

func (t Thresholds) bloodPressure(r models.Reading) (violation, bool) {
	if r.Systolic != nil {
		sys := *r.Systolic
		if sys > t.SystolicHigh {
			return violation{EventAbnormalBloodPressure, LevelAlert, float64(sys), float64(t.SystolicHigh)}, true
		}
		if sys < t.SystolicLow {
			return violation{EventAbnormalBloodPressure, LevelWarning, float64(sys), float64(t.SystolicLow)}, true
		}
	}
	if r.Diastolic != nil {
		dia := *r.Diastolic
		if dia > t.DiastolicHigh {
			return violation{EventAbnormalBloodPressure, LevelAlert, float64(dia), float64(t.DiastolicHigh)}, true
		}
		if dia < t.DiastolicLow {
			return violation{EventAbnormalBloodPressure, LevelWarning, float64(dia), float64(t.DiastolicLow)}, true
		}
	}
	return violation{}, false
}
