// SPDX-License-Identifier: GPL-2.0-or-later

// Package gain converts between linear and perceptual (logarithmic) gain
// values. Both directions run over the same fixed breakpoint table, so a
// round trip is accurate to one table step, not bit-exact.
package gain

// breakpoints of the perceptual curve, index scaled over [0,1]
var logtab = [...]float32{
	0.00, 0.001, 0.002, 0.003, 0.004,
	0.005, 0.01, 0.011, 0.012, 0.013,
	0.014, 0.015, 0.016, 0.02, 0.021,
	0.022, 0.023, 0.024, 0.025, 0.03,
	0.031, 0.032, 0.033, 0.034, 0.04,
	0.041, 0.042, 0.043, 0.044, 0.05,
	0.051, 0.052, 0.053, 0.054, 0.06,
	0.061, 0.062, 0.063, 0.064, 0.07,
	0.071, 0.072, 0.073, 0.08, 0.081,
	0.082, 0.083, 0.084, 0.09, 0.091,
	0.092, 0.093, 0.094, 0.10, 0.101,
	0.102, 0.103, 0.11, 0.111, 0.112,
	0.113, 0.12, 0.121, 0.122, 0.123,
	0.124, 0.13, 0.131, 0.132, 0.14,
	0.141, 0.142, 0.143, 0.15, 0.151,
	0.152, 0.16, 0.161, 0.162, 0.17,
	0.171, 0.172, 0.18, 0.181, 0.19,
	0.191, 0.192, 0.20, 0.201, 0.21,
	0.211, 0.22, 0.221, 0.23, 0.231,
	0.24, 0.25, 0.251, 0.26, 0.27,
	0.271, 0.28, 0.29, 0.30, 0.301,
	0.31, 0.32, 0.33, 0.34, 0.35,
	0.36, 0.37, 0.38, 0.39, 0.40,
	0.41, 0.43, 0.50, 0.60, 0.65,
	0.70, 0.75, 0.80, 0.85, 0.90,
	0.95, 0.97, 0.99,
}

const logmax = len(logtab)

// LinearToDB maps a linear gain in [0,1] onto the perceptual curve.
// Values outside [0,1] clamp to 0 and 1.
func LinearToDB(value float32) float32 {
	if value <= 0 {
		return 0
	}
	if value >= 1 {
		return 1
	}
	return logtab[int(float32(logmax)*value)]
}

// DBToLinear maps a perceptual gain in [0,1] back to linear by binary
// searching the breakpoint table for the closest stored value.
// Values outside [0,1] clamp to 0 and 1.
func DBToLinear(value float32) float32 {
	if value <= 0 {
		return 0
	}
	if value >= 1 {
		return 1
	}

	max := logmax
	min := 0
	last := -1

	mid := (max - min) / 2
	for last != mid {
		last = mid

		if logtab[mid] == value {
			break
		}
		if logtab[mid] < value {
			min = mid
		} else {
			max = mid
		}
		mid = min + (max-min)/2
	}

	return float32(mid) / float32(logmax)
}
