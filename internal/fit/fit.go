// Package fit finds MAP estimates of item and worker parameters by
// alternating L-BFGS minimisation of the model objective over one block at
// a time.
package fit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/happyhackingspace/cubam/model"
)

// Config holds optimiser settings.
type Config struct {
	Iterations        int     // alternating item/worker rounds
	MaxFuncEvals      int     // per block minimisation
	GradientThreshold float64 // block gradient infinity-norm stop
	MaxReseeds        int     // item restarts from noise on non-finite gradients
	ReseedScale       float64
}

// DefaultConfig returns the settings used by the command line tools.
func DefaultConfig() Config {
	return Config{
		Iterations:        30,
		MaxFuncEvals:      100,
		GradientThreshold: 1e-5,
		MaxReseeds:        10,
		ReseedScale:       0.1,
	}
}

// Result summarises a fit.
type Result struct {
	Iterations int
	Objective  float64
	Reseeds    int
	Duration   time.Duration
}

// ErrNonFinite is returned when the objective cannot be made finite.
var ErrNonFinite = errors.New("fit: objective is not finite")

// Fit alternates an item step and a worker step cfg.Iterations times. The
// model is left holding the best parameters found. src seeds item restarts
// and may be nil for a fixed seed.
func Fit(ctx context.Context, m model.Model, cfg Config, src rand.Source) (*Result, error) {
	if !m.Loaded() {
		return nil, model.ErrNotLoaded
	}
	if src == nil {
		src = rand.NewPCG(1, 2)
	}
	start := time.Now()
	res := &Result{}
	f := newFitter(m)

	for n := range cfg.Iterations {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		reseeds, err := f.reseedItems(cfg, src)
		res.Reseeds += reseeds
		if err != nil {
			return res, err
		}
		if err := f.minimize(itemBlock, cfg); err != nil {
			return res, err
		}
		if err := f.minimize(workerBlock, cfg); err != nil {
			return res, err
		}
		obj, err := m.Objective()
		if err != nil {
			return res, err
		}
		res.Iterations = n + 1
		res.Objective = obj
		slog.Debug("Fit iteration", "iteration", n+1, "of", cfg.Iterations, "objective", obj)
	}
	res.Duration = time.Since(start)
	return res, nil
}

type block int

const (
	itemBlock block = iota
	workerBlock
)

func (b block) String() string {
	if b == itemBlock {
		return "items"
	}
	return "workers"
}

// fitter evaluates the full objective while one block varies.
type fitter struct {
	m    model.Model
	grad []float64
	err  error
}

func newFitter(m model.Model) *fitter {
	return &fitter{
		m:    m,
		grad: make([]float64, m.ItemParamLen()+m.WorkerParamLen()),
	}
}

func (f *fitter) get(b block) ([]float64, error) {
	if b == itemBlock {
		return f.m.ItemParams()
	}
	return f.m.WorkerParams()
}

func (f *fitter) set(b block, x []float64) error {
	if b == itemBlock {
		return f.m.SetItemParams(x)
	}
	return f.m.SetWorkerParams(x)
}

// span returns the gradient slice belonging to b.
func (f *fitter) span(b block) []float64 {
	n := f.m.ItemParamLen()
	if b == itemBlock {
		return f.grad[:n]
	}
	return f.grad[n:]
}

func (f *fitter) objective(b block, x []float64) float64 {
	if err := f.set(b, x); err != nil {
		f.err = err
		return math.NaN()
	}
	obj, err := f.m.Objective()
	if err != nil {
		f.err = err
		return math.NaN()
	}
	if math.IsNaN(obj) {
		return math.Inf(1)
	}
	return obj
}

func (f *fitter) gradient(b block, out, x []float64) {
	if err := f.set(b, x); err != nil {
		f.err = err
		return
	}
	if err := f.m.Gradient(f.grad); err != nil {
		f.err = err
		return
	}
	copy(out, f.span(b))
}

// minimize runs L-BFGS on block b and commits the best point found.
// Line search failures keep the best point reached so far.
func (f *fitter) minimize(b block, cfg Config) error {
	x0, err := f.get(b)
	if err != nil {
		return err
	}
	if len(x0) == 0 {
		return nil
	}
	f0 := f.objective(b, x0)
	if f.err != nil {
		return f.err
	}

	p := optimize.Problem{
		Func: func(x []float64) float64 { return f.objective(b, x) },
		Grad: func(grad, x []float64) { f.gradient(b, grad, x) },
	}
	settings := &optimize.Settings{
		FuncEvaluations:   cfg.MaxFuncEvals,
		GradientThreshold: cfg.GradientThreshold,
	}
	result, err := optimize.Minimize(p, x0, settings, &optimize.LBFGS{})
	if f.err != nil {
		return f.err
	}

	best := x0
	if result != nil && result.F <= f0 && allFinite(result.X) {
		best = result.X
	}
	if err != nil {
		slog.Debug("Block minimisation stopped early", "block", b.String(), "error", err)
	} else {
		slog.Debug("Block minimised", "block", b.String(), "status", result.Status,
			"evaluations", result.FuncEvaluations, "objective", result.F)
	}
	return f.set(b, best)
}

// reseedItems replaces item latents with small noise while the gradient
// or objective is non-finite.
func (f *fitter) reseedItems(cfg Config, src rand.Source) (int, error) {
	noise := distuv.Normal{Mu: 0, Sigma: cfg.ReseedScale, Src: src}
	for trial := range cfg.MaxReseeds + 1 {
		obj, err := f.m.Objective()
		if err != nil {
			return trial, err
		}
		if err := f.m.Gradient(f.grad); err != nil {
			return trial, err
		}
		g := f.span(itemBlock)
		if !math.IsInf(obj, 0) && !math.IsNaN(obj) && allFinite(g) {
			return trial, nil
		}
		if trial == cfg.MaxReseeds {
			break
		}
		x := make([]float64, len(g))
		for k := range x {
			x[k] = noise.Rand()
		}
		slog.Debug("Reseeding item parameters", "trial", trial+1, "gradient-norm", floats.Norm(g, 2))
		if err := f.m.SetItemParams(x); err != nil {
			return trial, err
		}
	}
	return cfg.MaxReseeds, fmt.Errorf("%w after %d reseeds", ErrNonFinite, cfg.MaxReseeds)
}

func allFinite(xs []float64) bool {
	if floats.HasNaN(xs) {
		return false
	}
	for _, x := range xs {
		if math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
