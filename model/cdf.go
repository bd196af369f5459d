package model

import "math"

// pi is truncated to the precision the reference model was fit with, so
// objective values stay comparable across implementations.
const pi = 3.14159265

// Abramowitz & Stegun 26.2.17 coefficients.
const (
	cdfB1 = 0.319381530
	cdfB2 = -0.356563782
	cdfB3 = 1.781477937
	cdfB4 = -1.821255978
	cdfB5 = 1.330274429
	cdfP  = 0.2316419
	cdfC  = 0.39894228
)

// CDF approximates the standard normal cumulative distribution function
// P(Z <= x) with absolute error below 7.5e-8.
func CDF(x float64) float64 {
	if x >= 0.0 {
		t := 1.0 / (1.0 + cdfP*x)
		return 1.0 - cdfC*math.Exp(-x*x/2.0)*t*
			(t*(t*(t*(t*cdfB5+cdfB4)+cdfB3)+cdfB2)+cdfB1)
	}
	t := 1.0 / (1.0 - cdfP*x)
	return cdfC * math.Exp(-x*x/2.0) * t *
		(t*(t*(t*(t*cdfB5+cdfB4)+cdfB3)+cdfB2) + cdfB1)
}

// normPDF is the standard normal density.
func normPDF(a float64) float64 {
	return math.Exp(-0.5*a*a) / math.Sqrt(2.0*pi)
}
