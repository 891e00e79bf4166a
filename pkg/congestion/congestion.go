// Package congestion derives congestion levels from speed observations.
// The upstream provider never reports a congestion level; it is always
// computed locally from the ratio of current speed to free-flow speed.
package congestion

// Level represents a congestion severity classification.
type Level string

const (
	// LevelLow indicates traffic at or near free-flow speed (ratio >= 0.8).
	LevelLow Level = "LOW"

	// LevelModerate indicates mildly slowed traffic (0.6 <= ratio < 0.8).
	LevelModerate Level = "MODERATE"

	// LevelHigh indicates heavily slowed traffic (0.4 <= ratio < 0.6).
	LevelHigh Level = "HIGH"

	// LevelSevere indicates near-standstill traffic (ratio < 0.4).
	LevelSevere Level = "SEVERE"

	// LevelUnknown indicates the ratio is undefined (free-flow speed is zero).
	LevelUnknown Level = "UNKNOWN"
)

// Classify maps a current speed and free-flow speed (both km/h) to a Level.
// A zero free-flow speed yields LevelUnknown rather than dividing by zero.
// Band boundaries are inclusive on the lower bound.
func Classify(currentSpeed, freeFlowSpeed float64) Level {
	if freeFlowSpeed == 0 {
		return LevelUnknown
	}

	ratio := currentSpeed / freeFlowSpeed

	switch {
	case ratio >= 0.8:
		return LevelLow
	case ratio >= 0.6:
		return LevelModerate
	case ratio >= 0.4:
		return LevelHigh
	default:
		return LevelSevere
	}
}
