// SPDX-License-Identifier: GPL-2.0-or-later

package math

type number interface {
	~int | ~int64 | ~float32 | ~float64
}

func Clamp[N number](min, val, max N) N {
	if min > val {
		return min
	} else if max < val {
		return max
	}
	return val
}

// Clamp01 clamps a gain value to the unit interval.
func Clamp01(val float32) float32 {
	return Clamp(0, val, 1)
}
