package model

import "math"

// logNormal is the log density of N(mu, sig²) at v.
func logNormal(v, mu, sig float64) float64 {
	return -0.5 * (math.Log(2.0*pi) + 2.0*math.Log(sig) + (v-mu)*(v-mu)/sig/sig)
}

// mixtureDensity is the isotropic normal kernel evaluated at a squared
// distance sq, not at a linear deviation.
func mixtureDensity(sq, sig float64) float64 {
	return math.Exp(-0.5*sq/(sig*sig)) / (sig * math.Sqrt(2.0*pi))
}

// vertexDistances returns the squared distances of x from the -1 and +1
// vertices.
func vertexDistances(x []float64) (s0, s1 float64) {
	for _, v := range x {
		s0 += (v + 1.0) * (v + 1.0)
		s1 += (v - 1.0) * (v - 1.0)
	}
	return s0, s1
}

// logPriorItem is the log density of the two-component mixture pulling x
// toward the +1 vertex (mass beta) or the -1 vertex. The mixture is
// evaluated directly, so very large |x| underflows both components and
// yields -Inf.
func logPriorItem(x []float64, h Hyperparameters) float64 {
	s0, s1 := vertexDistances(x)
	sx2 := h.SigmaX * h.SigmaX
	return -0.5*float64(len(x))*math.Log(2.0*pi*sx2) +
		math.Log(h.Beta*math.Exp(-0.5*s1/sx2)+(1.0-h.Beta)*math.Exp(-0.5*s0/sx2))
}

// logPriorWorker is the log prior of one competence vector and bias.
func logPriorWorker(w []float64, t float64, h Hyperparameters) float64 {
	lp := logNormal(t, 0.0, h.SigmaT)
	for _, v := range w {
		lp += logNormal(v, h.MuW, h.SigmaW)
	}
	return lp
}

// probitArg is the argument <x, w> - t of the probit link.
func probitArg(x, w []float64, t float64) float64 {
	var a float64
	for d := range x {
		a += x[d] * w[d]
	}
	return a - t
}

// logLikelihood is log P(value | a). The sign of a picks which side of the
// CDF is evaluated so that 1-Φ is never taken of a value close to 1.
func logLikelihood(a float64, value int) float64 {
	if value == 0 {
		if a < 0.0 {
			return math.Log(1.0 - CDF(a))
		}
		return math.Log(CDF(-a))
	}
	if a < 0.0 {
		return math.Log(CDF(a))
	}
	return math.Log(1.0 - CDF(-a))
}

// lambda is d/da log P(value | a) divided by φ(a), branched exactly as
// logLikelihood.
func lambda(a float64, value int) float64 {
	if value == 0 {
		if a < 0.0 {
			return -1.0 / (1.0 - CDF(a))
		}
		return -1.0 / CDF(-a)
	}
	if a < 0.0 {
		return 1.0 / CDF(a)
	}
	return 1.0 / (1.0 - CDF(-a))
}

// itemPriorGradient writes the gradient of -logPriorItem(x) into out.
func itemPriorGradient(x []float64, h Hyperparameters, out []float64) {
	s0, s1 := vertexDistances(x)
	n0 := mixtureDensity(s0, h.SigmaX)
	n1 := mixtureDensity(s1, h.SigmaX)
	den := h.Beta*n1 + (1.0-h.Beta)*n0
	for d, v := range x {
		out[d] = (h.Beta*(v-1.0)*n1 + (1.0-h.Beta)*(v+1.0)*n0) /
			h.SigmaX / h.SigmaX / den
	}
}
