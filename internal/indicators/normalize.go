package indicators

// normalize maps a value onto a 0-100 scale across [min, max], clamping at
// the bounds. A nil value scores neutral 50 so one absent field does not
// drag a whole category. invert flips the scale for lower-is-better inputs.
func normalize(value *float64, min, max float64, invert bool) float64 {
	if value == nil {
		return 50
	}
	return normalizeVal(*value, min, max, invert)
}

func normalizeVal(v, min, max float64, invert bool) float64 {
	score := (v - min) / (max - min) * 100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	if invert {
		return 100 - score
	}
	return score
}

// sma is the simple moving average of the last window values ending at
// index i inclusive. Returns 0 when not enough samples exist.
func sma(values []float64, i, window int) float64 {
	if window <= 0 || i+1 < window || i >= len(values) {
		return 0
	}
	sum := 0.0
	for j := i - window + 1; j <= i; j++ {
		sum += values[j]
	}
	return sum / float64(window)
}

// ema computes an exponential moving average series with the given span,
// seeded from the first value (no adjust).
func ema(values []float64, span int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
