// Package model implements probit signal models for aggregating noisy
// binary labels from many workers about many items.
//
// Each worker j has a competence w_j and a bias t_j, each item i a latent
// x_i relaxed toward +1 or -1. A label l_ij is 1 with probability
// Φ(<x_i, w_j> - t_j). A Model evaluates the negated log-posterior of all
// latents, its analytic gradient, and per-entity partial log-posteriors for
// block-coordinate optimization. Optimization itself is left to the caller.
//
// Flat parameter vectors follow one layout throughout:
//
//	items:   [x_0 (D) | x_1 (D) | ...]
//	workers: [w_0 (D) | w_1 (D) | ... | t_0 | t_1 | ...]
//	full:    [items | workers]
package model

// Model is the contract shared by the scalar and vector signal models.
// A Model is not safe for concurrent use.
type Model interface {
	// Name returns the variant name the model is registered under.
	Name() string

	// Load takes ownership of ds and resets all latents to their defaults.
	Load(ds *Dataset) error
	// LoadFile reads a label file and loads it.
	LoadFile(path string) error
	// Clear drops the dataset and the latent arrays.
	Clear()
	Loaded() bool
	Dataset() *Dataset

	ModelParams() []float64
	SetModelParams(prm []float64) error

	WorkerParams() ([]float64, error)
	SetWorkerParams(prm []float64) error
	ItemParams() ([]float64, error)
	SetItemParams(prm []float64) error
	ResetWorkerParams() error
	ResetItemParams() error

	// Objective returns the negated joint log-posterior.
	Objective() (float64, error)
	// Gradient writes the gradient of Objective into out, which must have
	// length ItemParamLen()+WorkerParamLen().
	Gradient(out []float64) error
	// WorkerObjective writes one un-negated log-posterior contribution of
	// worker j per candidate into out.
	WorkerObjective(j int, candidates, out []float64) error
	// ItemObjective writes one un-negated log-posterior contribution of
	// item i per candidate into out.
	ItemObjective(i int, candidates, out []float64) error

	NumWorkers() int
	NumItems() int
	NumLabels() int
	Dim() int
	WorkerParamLen() int
	ItemParamLen() int
	ModelParamLen() int
}

var (
	_ Model = (*Scalar)(nil)
	_ Model = (*Vector)(nil)
)

// Variant names accepted by New.
const (
	ScalarName = "Binary1dSignalModel"
	VectorName = "BinaryNdSignalModel"
)

// New returns an empty model of the named variant, or false if the name
// is unknown.
func New(name string) (Model, bool) {
	switch name {
	case ScalarName:
		return NewScalar(), true
	case VectorName:
		return NewVector(), true
	}
	return nil, false
}
