// Package synth samples worker and item parameters from the generative
// signal model and draws a full labeling from them.
package synth

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/happyhackingspace/cubam/model"
)

// Config controls sampling. Worker noise s_j is drawn from
// Gamma(SigmaShape, SigmaScale), clamped to [SigmaMin, SigmaMax].
//
// Dim 0 or 1 samples the scalar model. Larger dimensions sample the vector
// model: in two dimensions competences point at 45 degrees plus
// N(0, Angle) radians with length 1/s_j, otherwise each coordinate is
// N(CompetenceMean, CompetenceSD).
type Config struct {
	NumItems   int
	NumWorkers int
	Dim        int

	Beta  float64 // fraction of positive items
	Theta float64 // item signal spread around ±1

	SigmaShape float64
	SigmaScale float64
	SigmaMin   float64
	SigmaMax   float64

	TauScale        float64
	TauMin, TauMax  float64
	AdversarialRate float64 // scalar model only

	Angle          float64
	CompetenceMean float64
	CompetenceSD   float64
}

// DefaultConfig returns the scalar sampling settings of the benchmark scripts.
func DefaultConfig(numItems, numWorkers int) Config {
	return Config{
		NumItems:        numItems,
		NumWorkers:      numWorkers,
		Dim:             1,
		Beta:            0.5,
		Theta:           0.5,
		SigmaShape:      1.5,
		SigmaScale:      0.3,
		SigmaMin:        0.05,
		SigmaMax:        3.0,
		TauScale:        0.8,
		TauMin:          -2.0,
		TauMax:          2.0,
		AdversarialRate: 0.01,
	}
}

// DefaultVectorConfig returns the vector model's sampling settings.
func DefaultVectorConfig(numItems, numWorkers, dim int) Config {
	cfg := DefaultConfig(numItems, numWorkers)
	cfg.Dim = dim
	cfg.Theta = 0.8
	cfg.TauMin, cfg.TauMax = -1.5, 1.5
	cfg.AdversarialRate = 0
	cfg.Angle = 0.3
	cfg.CompetenceMean = 2.0
	cfg.CompetenceSD = 1.0
	return cfg
}

// ErrInvalidConfig is returned for configs that cannot be sampled.
var ErrInvalidConfig = errors.New("synth: invalid config")

// Worker holds sampled worker parameters in the model's convention.
type Worker struct {
	W []float64 // competence, length Dim
	T float64   // bias
}

// Sample is a generated dataset plus the parameters that produced it.
// Items is flat, Dim values per item.
type Sample struct {
	Dataset *model.Dataset
	Dim     int
	Items   []float64
	Workers []Worker
}

// Truth returns the binary ground-truth class of each item: 1 when its
// coordinates sum to a positive value.
func (s *Sample) Truth() []int {
	n := len(s.Items) / s.Dim
	out := make([]int, n)
	for i := range out {
		if floats.Sum(s.Items[i*s.Dim:(i+1)*s.Dim]) > 0 {
			out[i] = 1
		}
	}
	return out
}

// WorkerParams returns the workers in the model's flat layout: all
// competences followed by all biases.
func (s *Sample) WorkerParams() []float64 {
	n := len(s.Workers)
	out := make([]float64, n*s.Dim+n)
	for j, w := range s.Workers {
		copy(out[j*s.Dim:], w.W)
		out[n*s.Dim+j] = w.T
	}
	return out
}

// Generate draws workers, items and every item-worker label.
func Generate(cfg Config, src rand.Source) (*Sample, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = rand.NewPCG(3, 3)
	}
	dim := max(cfg.Dim, 1)
	rng := rand.New(src)
	unit := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	workers := sampleWorkers(cfg, dim, rng, unit)
	items := sampleItems(cfg, dim, rng, unit)

	label := sampleVectorLabel
	if dim == 1 {
		label = sampleScalarLabel
	}
	labels := make([]model.Label, 0, cfg.NumItems*cfg.NumWorkers)
	for i := range cfg.NumItems {
		x := items[i*dim : (i+1)*dim]
		for j, w := range workers {
			labels = append(labels, model.Label{Item: i, Worker: j, Value: label(w, x, unit)})
		}
	}
	ds, err := model.NewDataset(cfg.NumItems, cfg.NumWorkers, labels)
	if err != nil {
		return nil, err
	}
	return &Sample{Dataset: ds, Dim: dim, Items: items, Workers: workers}, nil
}

func sampleWorkers(cfg Config, dim int, rng *rand.Rand, unit distuv.Normal) []Worker {
	sigma := distuv.Gamma{Alpha: cfg.SigmaShape, Beta: 1 / cfg.SigmaScale, Src: unit.Src}
	out := make([]Worker, cfg.NumWorkers)
	for j := range out {
		s := math.Min(math.Max(sigma.Rand(), cfg.SigmaMin), cfg.SigmaMax)
		w := make([]float64, dim)
		switch dim {
		case 1:
			w[0] = 1 / s
			if rng.Float64() < cfg.AdversarialRate {
				w[0] = -w[0]
			}
		case 2:
			a := math.Pi/4 + unit.Rand()*cfg.Angle
			w[0], w[1] = math.Sin(a)/s, math.Cos(a)/s
		default:
			for k := range w {
				w[k] = unit.Rand()*cfg.CompetenceSD + cfg.CompetenceMean
			}
		}
		out[j] = Worker{
			W: w,
			T: TruncNormal(rng, cfg.TauMin, cfg.TauMax) * cfg.TauScale * floats.Norm(w, 2),
		}
	}
	return out
}

// sampleItems draws each coordinate from N(0, Theta) and shifts all of an
// item's coordinates by +1 with probability Beta, -1 otherwise.
func sampleItems(cfg Config, dim int, rng *rand.Rand, unit distuv.Normal) []float64 {
	out := make([]float64, cfg.NumItems*dim)
	for i := range cfg.NumItems {
		shift := -1.0
		if rng.Float64() < cfg.Beta {
			shift = 1.0
		}
		for k := range dim {
			out[i*dim+k] = unit.Rand()*cfg.Theta + shift
		}
	}
	return out
}

// sampleScalarLabel maps (w, t) to (sign, threshold, noise) form and
// thresholds a noisy copy of the item signal.
func sampleScalarLabel(w Worker, x []float64, unit distuv.Normal) int {
	wj := w.W[0]
	s := 1 / math.Abs(wj)
	t := w.T / math.Abs(wj)
	sign := math.Copysign(1, wj)
	if sign*((x[0]+unit.Rand()*s)-t) > 0 {
		return 1
	}
	return 0
}

// sampleVectorLabel projects a noisy copy of the item onto the worker's
// unit competence direction and compares it with the scaled bias.
func sampleVectorLabel(w Worker, x []float64, unit distuv.Normal) int {
	norm := floats.Norm(w.W, 2)
	s := 1 / norm
	proj := 0.0
	for k, xk := range x {
		proj += (xk + unit.Rand()*s) * w.W[k] * s
	}
	if proj > w.T*s {
		return 1
	}
	return 0
}

// TruncNormal samples a unit normal restricted to [lo, hi] by inverting
// the CDF over the interval's probability mass.
func TruncNormal(rng *rand.Rand, lo, hi float64) float64 {
	if lo >= hi {
		return lo
	}
	plo := distuv.UnitNormal.CDF(lo)
	phi := distuv.UnitNormal.CDF(hi)
	if phi <= plo {
		return (lo + hi) / 2
	}
	v := distuv.UnitNormal.Quantile(plo + rng.Float64()*(phi-plo))
	return math.Min(math.Max(v, lo), hi)
}

func (c Config) validate() error {
	switch {
	case c.NumItems < 1 || c.NumWorkers < 1:
		return fmt.Errorf("%w: need at least one item and one worker", ErrInvalidConfig)
	case c.Dim < 0:
		return fmt.Errorf("%w: dimension %d", ErrInvalidConfig, c.Dim)
	case c.SigmaShape <= 0 || c.SigmaScale <= 0:
		return fmt.Errorf("%w: gamma shape and scale must be positive", ErrInvalidConfig)
	case c.SigmaMin <= 0 || c.SigmaMax < c.SigmaMin:
		return fmt.Errorf("%w: noise bounds [%v, %v]", ErrInvalidConfig, c.SigmaMin, c.SigmaMax)
	case c.TauMax < c.TauMin || c.TauMax < -5 || c.TauMin > 5:
		return fmt.Errorf("%w: threshold bounds [%v, %v]", ErrInvalidConfig, c.TauMin, c.TauMax)
	}
	return nil
}
