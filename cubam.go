// Package cubam exposes the crowd-label signal models behind opaque
// handles and flat float64 buffers, the shape expected by foreign callers.
//
//	r := cubam.NewRegistry()
//	h, _ := r.Create("Binary1dSignalModel")
//	_ = r.Load(h, "labels.txt")
//	obj, _ := r.Objective(h)
//	grad := make([]float64, r.GetImageParamLen(h)+r.GetWorkerParamLen(h))
//	_ = r.Gradient(h, grad)
//	r.Destroy(h)
//
// Each handle exclusively owns one model.Model. The registry guards its own
// table, but a single handle must not be used from several goroutines at
// once.
package cubam

import (
	"errors"
	"fmt"
	"sync"

	"github.com/happyhackingspace/cubam/model"
)

var (
	// ErrUnknownVariant is returned by Create for an unregistered model name.
	ErrUnknownVariant = errors.New("cubam: unknown model variant")
	// ErrUnknownHandle is returned for handles that were never created or
	// have been destroyed.
	ErrUnknownHandle = errors.New("cubam: unknown model handle")
)

// Handle identifies a model owned by a Registry. Handles are never reused.
type Handle uint64

// Registry maps handles to the models they own.
type Registry struct {
	mu     sync.Mutex
	next   Handle
	models map[Handle]model.Model
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[Handle]model.Model)}
}

// Create instantiates a model of the named variant.
func (r *Registry) Create(variant string) (Handle, error) {
	m, ok := model.New(variant)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.models[r.next] = m
	return r.next, nil
}

// Destroy releases the model behind h. Destroying an unknown handle is a
// no-op.
func (r *Registry) Destroy(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.models[h]; ok {
		m.Clear()
		delete(r.models, h)
	}
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.models)
}

// Model returns the model behind h.
func (r *Registry) Model(h Handle) (model.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return m, nil
}

// Load reads a label file into the model behind h.
func (r *Registry) Load(h Handle, path string) error {
	m, err := r.Model(h)
	if err != nil {
		return err
	}
	return m.LoadFile(path)
}

// GetModelParams copies the hyperparameter vector into out, which must
// have length GetModelParamLen(h).
func (r *Registry) GetModelParams(h Handle, out []float64) error {
	m, err := r.Model(h)
	if err != nil {
		return err
	}
	return copyExact("model params", out, m.ModelParams())
}

// SetModelParams sets the hyperparameter vector
// [beta, sigx, sigw, muw, sigt] plus dim for the vector variant.
func (r *Registry) SetModelParams(h Handle, prm []float64) error {
	m, err := r.Model(h)
	if err != nil {
		return err
	}
	return m.SetModelParams(prm)
}

// GetWorkerParams copies [competences | biases] into out.
func (r *Registry) GetWorkerParams(h Handle, out []float64) error {
	m, err := r.Model(h)
	if err != nil {
		return err
	}
	prm, err := m.WorkerParams()
	if err != nil {
		return err
	}
	return copyExact("worker params", out, prm)
}

// SetWorkerParams overwrites [competences | biases].
func (r *Registry) SetWorkerParams(h Handle, prm []float64) error {
	m, err := r.Model(h)
	if err != nil {
		return err
	}
	return m.SetWorkerParams(prm)
}

// GetImageParams copies the item latents into out.
func (r *Registry) GetImageParams(h Handle, out []float64) error {
	m, err := r.Model(h)
	if err != nil {
		return err
	}
	prm, err := m.ItemParams()
	if err != nil {
		return err
	}
	return copyExact("image params", out, prm)
}

// SetImageParams overwrites the item latents.
func (r *Registry) SetImageParams(h Handle, prm []float64) error {
	m, err := r.Model(h)
	if err != nil {
		return err
	}
	return m.SetItemParams(prm)
}

// Objective returns the negated log-posterior.
func (r *Registry) Objective(h Handle) (float64, error) {
	m, err := r.Model(h)
	if err != nil {
		return 0, err
	}
	return m.Objective()
}

// Gradient writes the gradient of Objective into out.
func (r *Registry) Gradient(h Handle, out []float64) error {
	m, err := r.Model(h)
	if err != nil {
		return err
	}
	return m.Gradient(out)
}

// WorkerObjective evaluates candidate parameters of one worker.
func (r *Registry) WorkerObjective(h Handle, wkrID int, prm, out []float64) error {
	m, err := r.Model(h)
	if err != nil {
		return err
	}
	return m.WorkerObjective(wkrID, prm, out)
}

// ImageObjective evaluates candidate latents of one image.
func (r *Registry) ImageObjective(h Handle, imgID int, prm, out []float64) error {
	m, err := r.Model(h)
	if err != nil {
		return err
	}
	return m.ItemObjective(imgID, prm, out)
}

// GetNumWkrLbls copies each worker's label count into out.
func (r *Registry) GetNumWkrLbls(h Handle, out []int) error {
	m, err := r.Model(h)
	if err != nil {
		return err
	}
	if !m.Loaded() {
		return model.ErrNotLoaded
	}
	return copyExact("worker label counts", out, m.Dataset().WorkerDegrees())
}

// GetNumImgLbls copies each image's label count into out.
func (r *Registry) GetNumImgLbls(h Handle, out []int) error {
	m, err := r.Model(h)
	if err != nil {
		return err
	}
	if !m.Loaded() {
		return model.ErrNotLoaded
	}
	return copyExact("image label counts", out, m.Dataset().ItemDegrees())
}

// The count and length accessors report zero for unknown handles.

func (r *Registry) GetNumWkrs(h Handle) int {
	return r.count(h, model.Model.NumWorkers)
}

func (r *Registry) GetNumImgs(h Handle) int {
	return r.count(h, model.Model.NumItems)
}

func (r *Registry) GetNumLbls(h Handle) int {
	return r.count(h, model.Model.NumLabels)
}

func (r *Registry) GetWorkerParamLen(h Handle) int {
	return r.count(h, model.Model.WorkerParamLen)
}

func (r *Registry) GetImageParamLen(h Handle) int {
	return r.count(h, model.Model.ItemParamLen)
}

func (r *Registry) GetModelParamLen(h Handle) int {
	return r.count(h, model.Model.ModelParamLen)
}

func (r *Registry) count(h Handle, fn func(model.Model) int) int {
	m, err := r.Model(h)
	if err != nil {
		return 0
	}
	return fn(m)
}

func copyExact[T any](what string, dst, src []T) error {
	if len(dst) != len(src) {
		return fmt.Errorf("%w: %s buffer has length %d, want %d",
			model.ErrBufferLength, what, len(dst), len(src))
	}
	copy(dst, src)
	return nil
}
