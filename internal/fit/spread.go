package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/happyhackingspace/cubam/model"
)

// Grid sizes for the posterior spread estimates.
const (
	ImageGrid  = 200
	WorkerGrid = 50
)

// ErrDimension is returned by the spread estimates for models whose latents
// are not scalars.
var ErrDimension = errors.New("fit: spread needs a one-dimensional model")

// ImageSpread estimates the posterior standard deviation of image i's
// signal around its current value, and the posterior mass on positive
// signals, from ItemObjective evaluated on an even grid covering at least
// [-4, 4] and 1.5 either side of the current value.
func ImageSpread(m model.Model, i int) (sd, positive float64, err error) {
	if m.Dim() != 1 {
		return 0, 0, ErrDimension
	}
	xis, err := m.ItemParams()
	if err != nil {
		return 0, 0, err
	}
	if i < 0 || i >= len(xis) {
		return 0, 0, fmt.Errorf("%w: item %d of %d", model.ErrIndexRange, i, len(xis))
	}
	bx := xis[i]
	grid := floats.Span(make([]float64, ImageGrid), math.Min(-4, bx-1.5), math.Max(4, bx+1.5))
	p := make([]float64, ImageGrid)
	if err := m.ItemObjective(i, grid, p); err != nil {
		return 0, 0, err
	}
	if err := normalize(p); err != nil {
		return 0, 0, fmt.Errorf("image %d: %w", i, err)
	}
	for k, x := range grid {
		sd += (x - bx) * (x - bx) * p[k]
		if x > 0 {
			positive += p[k]
		}
	}
	return math.Sqrt(sd), positive, nil
}

// WorkerSpread estimates the posterior standard deviation of worker j's
// (competence, bias) pair around its current value from WorkerObjective
// evaluated on a square grid of half-width 2.
func WorkerSpread(m model.Model, j int) (float64, error) {
	if m.Dim() != 1 {
		return 0, ErrDimension
	}
	prm, err := m.WorkerParams()
	if err != nil {
		return 0, err
	}
	n := m.NumWorkers()
	if j < 0 || j >= n {
		return 0, fmt.Errorf("%w: worker %d of %d", model.ErrIndexRange, j, n)
	}
	bw, bt := prm[j], prm[n+j]
	ws := floats.Span(make([]float64, WorkerGrid), bw+2, bw-2)
	ts := floats.Span(make([]float64, WorkerGrid), bt-2, bt+2)

	size := WorkerGrid * WorkerGrid
	candidates := make([]float64, 2*size)
	for a, w := range ws {
		for b, t := range ts {
			k := a*WorkerGrid + b
			candidates[k] = w
			candidates[size+k] = t
		}
	}
	p := make([]float64, size)
	if err := m.WorkerObjective(j, candidates, p); err != nil {
		return 0, err
	}
	if err := normalize(p); err != nil {
		return 0, fmt.Errorf("worker %d: %w", j, err)
	}
	v := 0.0
	for k := range p {
		dw, dt := candidates[k]-bw, candidates[size+k]-bt
		v += (dw*dw + dt*dt) * p[k]
	}
	return math.Sqrt(v), nil
}

// normalize turns log-densities into probabilities in place.
func normalize(logp []float64) error {
	lse := floats.LogSumExp(logp)
	if math.IsNaN(lse) || math.IsInf(lse, 0) {
		return ErrNonFinite
	}
	for k, v := range logp {
		logp[k] = math.Exp(v - lse)
	}
	return nil
}
