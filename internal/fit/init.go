package fit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/happyhackingspace/cubam/internal/synth"
	"github.com/happyhackingspace/cubam/model"
)

// InitOptions shape the item latents InitFromScalar seeds.
type InitOptions struct {
	Clamp      float64 // fitted scalar signals are clipped to ±Clamp
	NoiseSD    float64
	NoiseBound float64 // perturbations are N(0,1) truncated to ±NoiseBound, times NoiseSD
}

// DefaultInitOptions returns the settings used by "fit --init-scalar".
func DefaultInitOptions() InitOptions {
	return InitOptions{Clamp: 2, NoiseSD: 1, NoiseBound: 2}
}

// InitFromScalar fits a scalar model with v's hyperparameters on v's
// dataset and seeds v's item latents from it. Each fitted signal x is
// clipped, then placed at x·1 + p·(-1, 1, 0, ...)/√2 for a truncated normal
// perturbation p, so coordinates sum to x times D. Worker parameters of v
// are left untouched.
func InitFromScalar(ctx context.Context, v model.Model, cfg Config, opts InitOptions, src rand.Source) (*Result, error) {
	if !v.Loaded() {
		return nil, model.ErrNotLoaded
	}
	d := v.Dim()
	if d < 2 {
		return nil, fmt.Errorf("%w: scalar initialisation needs at least two dimensions, have %d",
			model.ErrInvalidOperation, d)
	}
	if src == nil {
		src = rand.NewPCG(1, 2)
	}

	s := model.NewScalar()
	if err := s.SetModelParams(v.ModelParams()[:s.ModelParamLen()]); err != nil {
		return nil, err
	}
	if err := s.Load(v.Dataset()); err != nil {
		return nil, err
	}
	res, err := Fit(ctx, s, cfg, src)
	if err != nil {
		return res, err
	}
	xs, err := s.ItemParams()
	if err != nil {
		return res, err
	}

	rng := rand.New(src)
	dir := 1 / math.Sqrt2
	out := make([]float64, len(xs)*d)
	for i, x := range xs {
		x = math.Min(math.Max(x, -opts.Clamp), opts.Clamp)
		p := synth.TruncNormal(rng, -opts.NoiseBound, opts.NoiseBound) * opts.NoiseSD
		xi := out[i*d : (i+1)*d]
		for k := range xi {
			xi[k] = x
		}
		xi[0] -= dir * p
		xi[1] += dir * p
	}
	slog.Debug("Initialised items from scalar fit", "images", len(xs), "dim", d, "objective", res.Objective)
	return res, v.SetItemParams(out)
}
