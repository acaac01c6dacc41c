package util

// AbsFloat64 returns the absolute value of x.
func AbsFloat64(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// ClampFloat64 constrains v to the inclusive range [lo, hi].
func ClampFloat64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
