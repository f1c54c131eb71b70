// Package mathx holds small numeric helpers shared by the ranging and light paths.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Remap maps x in [inMin,inMax] linearly onto [outMin,outMax].
// x is clamped to the input range first, so the result never leaves the output range.
// Reversed output ranges (outMin > outMax) invert the mapping.
func Remap(x, inMin, inMax, outMin, outMax float64) float64 {
	if inMax == inMin {
		return outMin
	}
	x = Clamp(x, inMin, inMax)
	return outMin + (x-inMin)*(outMax-outMin)/(inMax-inMin)
}

// RemapInt is Remap with integer arithmetic, truncating toward outMin.
func RemapInt(x, inMin, inMax, outMin, outMax int) int {
	if inMax == inMin {
		return outMin
	}
	x = Clamp(x, inMin, inMax)
	return outMin + (x-inMin)*(outMax-outMin)/(inMax-inMin)
}
