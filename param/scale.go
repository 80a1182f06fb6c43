package param

import "math"

func clamp(t, min, max float64) float64 {
	min, max = math.Min(min, max), math.Max(min, max)
	return math.Max(math.Min(t, max), min)
}

// toUnitClamp returns a function that scales a number from the interval
// [rMin,rMax] to the unit interval ([0,1]), clamping results that fall
// outside [0,1].
func toUnitClamp(rMin, rMax float64) func(m float64) float64 {
	return func(m float64) float64 {
		if rMax == rMin {
			return 1
		}
		return clamp((m-rMin)/(rMax-rMin), 0, 1)
	}
}
