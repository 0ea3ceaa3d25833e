package twin

import "math"

// Results are the figures reported when a run completes. They are derived
// from the simulated load and are illustrative, not measured.
type Results struct {
	Accuracy           float64 `json:"accuracy"`
	Loss               float64 `json:"loss"`
	CPUUtilization     float64 `json:"cpuUtilization"`
	MemoryUtilization  float64 `json:"memoryUtilization"`
	PowerKW            float64 `json:"powerKw"`
	AverageTemperature float64 `json:"averageTemperature"`
	FramesRendered     int     `json:"framesRendered"`
	DurationSeconds    float64 `json:"durationSeconds"`
}

// Accuracy bounds.
const (
	MinAccuracy = 0.80
	MaxAccuracy = 0.99
)

// computeResults turns engine statistics into run results. basePowerKW is the
// nameplate draw of the simulated hardware.
func computeResults(e *Engine, basePowerKW, durationSeconds float64) Results {
	stats := e.Stats()
	// Busier clusters train "better" within the accuracy band.
	spread := MaxAccuracy - MinAccuracy
	accuracy := MinAccuracy + spread*(0.5*e.Rand().Float64()+0.5*stats.AvgUtilization/100)
	accuracy = clamp(accuracy, MinAccuracy, MaxAccuracy)
	accuracy = round(accuracy, 4)
	return Results{
		Accuracy:           accuracy,
		Loss:               round((1-accuracy)*1.8, 4),
		CPUUtilization:     round(stats.AvgUtilization, 1),
		MemoryUtilization:  round(clamp(stats.AvgUtilization*0.85+10, 0, 100), 1),
		PowerKW:            round(basePowerKW*(0.4+0.6*stats.AvgUtilization/100), 2),
		AverageTemperature: round(stats.AvgTemperature, 1),
		FramesRendered:     stats.Frames,
		DurationSeconds:    round(durationSeconds, 2),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
