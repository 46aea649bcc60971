package collector

import "math"

// mean returns the arithmetic mean, 0 for an empty slice.
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

// stdDev returns the population standard deviation.
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// coefficientOfVariation returns stddev/mean, 0 when the mean is 0.
func coefficientOfVariation(values []float64) float64 {
	m := mean(values)
	if m == 0 {
		return 0
	}
	return stdDev(values) / m
}

// skewness returns the standardized third moment. Near-zero skew combined
// with low variance is characteristic of generated timing.
func skewness(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}
	m := mean(values)
	sd := stdDev(values)
	if sd == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		z := (v - m) / sd
		sum += z * z * z
	}
	return sum / float64(len(values))
}

// shannonEntropy computes Shannon entropy over a histogram of counts.
func shannonEntropy(histogram []int) float64 {
	n := 0
	for _, count := range histogram {
		n += count
	}
	if n == 0 {
		return 0
	}

	entropy := 0.0
	nFloat := float64(n)
	for _, count := range histogram {
		if count > 0 {
			p := float64(count) / nFloat
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

// fractionWithin returns the fraction of values inside [lo, hi].
func fractionWithin(values []float64, lo, hi float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v >= lo && v <= hi {
			count++
		}
	}
	return float64(count) / float64(len(values))
}
