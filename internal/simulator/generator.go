package simulator

import (
	"math/rand"
	"time"

	"wisefido-telemetry/internal/models"
)

// Physiological bounds of generated readings, inclusive
const (
	HeartRateMin = 60
	HeartRateMax = 100
	SpO2Min      = 92
	SpO2Max      = 100
	SystolicMin  = 110
	SystolicMax  = 140
	DiastolicMin = 70
	DiastolicMax = 90
	TempMin      = 36.0
	TempMax      = 37.8
)

// GenerateReading draws every vital independently and uniformly within its bounds.
// Temperature has one decimal place.
func GenerateReading(now time.Time) models.Reading {
	tempTenths := int(TempMin*10) + rand.Intn(int(TempMax*10)-int(TempMin*10)+1)
	return models.Reading{
		Timestamp:   now.UnixMilli(),
		HeartRate:   models.IntPtr(between(HeartRateMin, HeartRateMax)),
		SpO2:        models.IntPtr(between(SpO2Min, SpO2Max)),
		Systolic:    models.IntPtr(between(SystolicMin, SystolicMax)),
		Diastolic:   models.IntPtr(between(DiastolicMin, DiastolicMax)),
		Temperature: models.FloatPtr(float64(tempTenths) / 10),
	}
}

func between(lo, hi int) int {
	return lo + rand.Intn(hi-lo+1)
}
