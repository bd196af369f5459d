package baseline

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/happyhackingspace/cubam/model"
)

// ErrInvalidBiasConfig is returned for bias model settings that cannot be used.
var ErrInvalidBiasConfig = errors.New("baseline: invalid bias config")

// BiasWorker holds one worker's per-class accuracies.
type BiasWorker struct {
	Sensitivity float64 // P(label 1 | positive)
	Specificity float64 // P(label 0 | negative)
}

// BiasPrior is one mixture component of the prior over (specificity,
// sensitivity). A Ridge component puts equal mass on the grid cells just
// above the line specificity + sensitivity = 1; otherwise the component
// is a product of Beta(Alpha, Beta) densities.
type BiasPrior struct {
	Weight      float64
	Alpha, Beta float64
	Ridge       bool
}

// BiasConfig controls the bias model.
type BiasConfig struct {
	PriorPositive float64 // prior probability that an image is positive
	Resolution    int     // grid points per accuracy axis
	Init          BiasWorker
	Prior         []BiasPrior
	Iterations    int
}

// DefaultBiasConfig returns the bias model settings of the benchmark scripts.
func DefaultBiasConfig() BiasConfig {
	return BiasConfig{
		PriorPositive: 0.5,
		Resolution:    100,
		Init:          BiasWorker{Sensitivity: 0.7, Specificity: 0.7},
		Prior: []BiasPrior{
			{Weight: 0.9, Alpha: 10, Beta: 2},
			{Weight: 0.05, Alpha: 2, Beta: 10},
			{Weight: 0.05, Ridge: true},
		},
		Iterations: 30,
	}
}

// BiasResult is the outcome of Bias.
type BiasResult struct {
	Posterior []float64 // P(positive) per image
	Workers   []BiasWorker
}

// Labels thresholds the posteriors at one half.
func (r *BiasResult) Labels() []int {
	out := make([]int, len(r.Posterior))
	for i, p := range r.Posterior {
		if p > 0.5 {
			out[i] = 1
		}
	}
	return out
}

// Bias estimates image posteriors and per-worker sensitivity and
// specificity by alternating closed-form updates. The image step combines
// worker likelihood ratios with the class prior; the worker step picks the
// MAP grid cell given soft counts of each (class, label) pair.
func Bias(ds *model.Dataset, cfg BiasConfig) (*BiasResult, error) {
	g, err := newBiasGrid(cfg)
	if err != nil {
		return nil, err
	}
	res := &BiasResult{
		Posterior: make([]float64, ds.NumItems),
		Workers:   make([]BiasWorker, ds.NumWorkers),
	}
	for j := range res.Workers {
		res.Workers[j] = cfg.Init
	}
	for range cfg.Iterations {
		updateImages(ds, cfg.PriorPositive, res)
		g.updateWorkers(ds, res)
	}
	return res, nil
}

func updateImages(ds *model.Dataset, prior float64, res *BiasResult) {
	logOdds := math.Log10(prior / (1 - prior))
	for i, entries := range ds.ByItem {
		s := logOdds
		for _, e := range entries {
			w := res.Workers[e.Index]
			if e.Value == 1 {
				s += math.Log10(w.Sensitivity / (1 - w.Specificity))
			} else {
				s += math.Log10((1 - w.Sensitivity) / w.Specificity)
			}
		}
		res.Posterior[i] = 1 / (1 + math.Pow(10, -s))
	}
}

// biasGrid is the flattened (specificity, sensitivity) grid with the log
// prior of each cell. Cell r*n+c has specificity axis[c] and sensitivity
// axis[r].
type biasGrid struct {
	spec, sens []float64
	logPrior   []float64
	opt        []float64
}

func newBiasGrid(cfg BiasConfig) (*biasGrid, error) {
	n := cfg.Resolution
	switch {
	case n < 3:
		return nil, fmt.Errorf("%w: resolution %d", ErrInvalidBiasConfig, n)
	case cfg.PriorPositive <= 0 || cfg.PriorPositive >= 1:
		return nil, fmt.Errorf("%w: prior %v outside (0, 1)", ErrInvalidBiasConfig, cfg.PriorPositive)
	case len(cfg.Prior) == 0:
		return nil, fmt.Errorf("%w: no prior components", ErrInvalidBiasConfig)
	}
	axis := floats.Span(make([]float64, n), 1e-10, 1-1e-10)
	g := &biasGrid{
		spec:     make([]float64, n*n),
		sens:     make([]float64, n*n),
		logPrior: make([]float64, n*n),
		opt:      make([]float64, n*n),
	}
	for r := range n {
		for c := range n {
			g.spec[r*n+c] = axis[c]
			g.sens[r*n+c] = axis[r]
		}
	}

	prior := g.logPrior
	p := make([]float64, n*n)
	for _, comp := range cfg.Prior {
		if comp.Weight < 0 {
			return nil, fmt.Errorf("%w: negative component weight %v", ErrInvalidBiasConfig, comp.Weight)
		}
		if comp.Ridge {
			clear(p)
			for r := 2; r < n; r++ {
				p[r*n+n+1-r] = 1
			}
		} else {
			if comp.Alpha <= 0 || comp.Beta <= 0 {
				return nil, fmt.Errorf("%w: beta(%v, %v)", ErrInvalidBiasConfig, comp.Alpha, comp.Beta)
			}
			b := distuv.Beta{Alpha: comp.Alpha, Beta: comp.Beta}
			for k := range p {
				p[k] = b.Prob(g.spec[k]) * b.Prob(g.sens[k])
			}
		}
		floats.AddScaled(prior, comp.Weight/floats.Sum(p), p)
	}
	total := floats.Sum(prior)
	if !(total > 0) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("%w: prior mass %v", ErrInvalidBiasConfig, total)
	}
	for k, v := range prior {
		prior[k] = math.Log(v / total)
	}
	return g, nil
}

func (g *biasGrid) updateWorkers(ds *model.Dataset, res *BiasResult) {
	for j, entries := range ds.ByWorker {
		// n[class][label], soft-counted by the image posteriors
		var n [2][2]float64
		for _, e := range entries {
			p1 := res.Posterior[e.Index]
			n[1][e.Value] += p1
			n[0][e.Value] += 1 - p1
		}
		for k := range g.opt {
			g.opt[k] = n[0][0]*math.Log(g.spec[k]) + n[0][1]*math.Log(1-g.spec[k]) +
				n[1][1]*math.Log(g.sens[k]) + n[1][0]*math.Log(1-g.sens[k]) + g.logPrior[k]
		}
		idx := floats.MaxIdx(g.opt)
		res.Workers[j] = BiasWorker{Sensitivity: g.sens[idx], Specificity: g.spec[idx]}
	}
}
