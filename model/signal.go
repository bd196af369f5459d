package model

import "fmt"

// signal holds the dataset, hyperparameters and latent arrays shared by
// both variants. The math is written for D-dimensional latents; the scalar
// variant runs it with D = 1.
type signal struct {
	hyper    Hyperparameters
	dim      int
	itemInit float64 // value item latents are reset to

	ds  *Dataset
	xis []float64 // numItems*dim
	wjs []float64 // numWorkers*dim
	tjs []float64 // numWorkers
}

func newSignal(dim int, itemInit float64) signal {
	return signal{
		hyper:    DefaultHyperparameters(),
		dim:      dim,
		itemInit: itemInit,
	}
}

// Hyperparameters returns the current priors.
func (s *signal) Hyperparameters() Hyperparameters {
	return s.hyper
}

// SetHyperparameters replaces the current priors.
func (s *signal) SetHyperparameters(h Hyperparameters) {
	s.hyper = h
}

// Load attaches ds and resets all latents. A model loads at most once.
func (s *signal) Load(ds *Dataset) error {
	if s.ds != nil {
		return ErrAlreadyLoaded
	}
	if ds == nil {
		return fmt.Errorf("%w: nil dataset", ErrInvalidOperation)
	}
	s.ds = ds
	if err := s.ResetWorkerParams(); err != nil {
		return err
	}
	return s.ResetItemParams()
}

// LoadFile reads a label file leniently and loads it.
func (s *signal) LoadFile(path string) error {
	if s.ds != nil {
		return ErrAlreadyLoaded
	}
	ds, err := LoadDataset(path, ReadOptions{})
	if err != nil {
		return err
	}
	return s.Load(ds)
}

// Clear detaches the dataset and drops all latents.
func (s *signal) Clear() {
	s.ds = nil
	s.xis = nil
	s.wjs = nil
	s.tjs = nil
}

// Loaded reports whether a dataset is attached.
func (s *signal) Loaded() bool { return s.ds != nil }

// Dataset returns the attached dataset, or nil.
func (s *signal) Dataset() *Dataset { return s.ds }

// Dim returns the latent dimension.
func (s *signal) Dim() int { return s.dim }

// NumWorkers returns the worker count, or 0 before Load.
func (s *signal) NumWorkers() int {
	if s.ds == nil {
		return 0
	}
	return s.ds.NumWorkers
}

// NumItems returns the item count, or 0 before Load.
func (s *signal) NumItems() int {
	if s.ds == nil {
		return 0
	}
	return s.ds.NumItems
}

// NumLabels returns the label count, or 0 before Load.
func (s *signal) NumLabels() int {
	if s.ds == nil {
		return 0
	}
	return s.ds.NumLabels()
}

// WorkerParamLen is the length of the flat worker block.
func (s *signal) WorkerParamLen() int { return s.NumWorkers() * (1 + s.dim) }

// ItemParamLen is the length of the flat item block.
func (s *signal) ItemParamLen() int { return s.NumItems() * s.dim }

// ResetWorkerParams sets competences to 1 and biases to 0.
func (s *signal) ResetWorkerParams() error {
	if s.ds == nil {
		return ErrNotLoaded
	}
	s.wjs = make([]float64, s.ds.NumWorkers*s.dim)
	for k := range s.wjs {
		s.wjs[k] = 1.0
	}
	s.tjs = make([]float64, s.ds.NumWorkers)
	return nil
}

// ResetItemParams sets every item coordinate to the variant's initial value.
func (s *signal) ResetItemParams() error {
	if s.ds == nil {
		return ErrNotLoaded
	}
	s.xis = make([]float64, s.ds.NumItems*s.dim)
	for k := range s.xis {
		s.xis[k] = s.itemInit
	}
	return nil
}

// WorkerParams returns a copy of all competences followed by all biases.
func (s *signal) WorkerParams() ([]float64, error) {
	if s.ds == nil {
		return nil, ErrNotLoaded
	}
	out := make([]float64, 0, len(s.wjs)+len(s.tjs))
	out = append(out, s.wjs...)
	return append(out, s.tjs...), nil
}

// SetWorkerParams replaces the worker block from the layout of WorkerParams.
func (s *signal) SetWorkerParams(prm []float64) error {
	if s.ds == nil {
		return ErrNotLoaded
	}
	if err := checkLen("worker params", prm, s.WorkerParamLen()); err != nil {
		return err
	}
	n := copy(s.wjs, prm)
	copy(s.tjs, prm[n:])
	return nil
}

// ItemParams returns a copy of the item latents.
func (s *signal) ItemParams() ([]float64, error) {
	if s.ds == nil {
		return nil, ErrNotLoaded
	}
	out := make([]float64, len(s.xis))
	copy(out, s.xis)
	return out, nil
}

// SetItemParams replaces the item latents.
func (s *signal) SetItemParams(prm []float64) error {
	if s.ds == nil {
		return ErrNotLoaded
	}
	if err := checkLen("item params", prm, s.ItemParamLen()); err != nil {
		return err
	}
	copy(s.xis, prm)
	return nil
}

func (s *signal) item(i int) []float64 {
	return s.xis[i*s.dim : (i+1)*s.dim]
}

func (s *signal) competence(j int) []float64 {
	return s.wjs[j*s.dim : (j+1)*s.dim]
}

// Objective returns the negated log posterior of the current parameters.
func (s *signal) Objective() (float64, error) {
	if s.ds == nil {
		return 0, ErrNotLoaded
	}
	h := s.hyper
	obj := 0.0
	for i := 0; i < s.ds.NumItems; i++ {
		obj += logPriorItem(s.item(i), h)
	}
	for _, w := range s.wjs {
		obj += logNormal(w, h.MuW, h.SigmaW)
	}
	for _, t := range s.tjs {
		obj += logNormal(t, 0.0, h.SigmaT)
	}
	for _, l := range s.ds.Labels {
		a := probitArg(s.item(l.Item), s.competence(l.Worker), s.tjs[l.Worker])
		obj += logLikelihood(a, l.Value)
	}
	return -obj, nil
}

// Gradient writes the gradient of Objective into out, items first.
func (s *signal) Gradient(out []float64) error {
	if s.ds == nil {
		return ErrNotLoaded
	}
	if err := checkLen("gradient", out, s.ItemParamLen()+s.WorkerParamLen()); err != nil {
		return err
	}
	h := s.hyper
	d := s.dim
	gx := out[:len(s.xis)]
	gw := out[len(s.xis) : len(s.xis)+len(s.wjs)]
	gt := out[len(s.xis)+len(s.wjs):]

	for i := 0; i < s.ds.NumItems; i++ {
		itemPriorGradient(s.item(i), h, gx[i*d:(i+1)*d])
	}
	for j, t := range s.tjs {
		gt[j] = t / h.SigmaT / h.SigmaT
	}
	for k, w := range s.wjs {
		gw[k] = (w - h.MuW) / h.SigmaW / h.SigmaW
	}

	for _, l := range s.ds.Labels {
		x := s.item(l.Item)
		w := s.competence(l.Worker)
		a := probitArg(x, w, s.tjs[l.Worker])
		phiLambda := normPDF(a) * lambda(a, l.Value)
		for k := range d {
			gx[l.Item*d+k] -= w[k] * phiLambda
			gw[l.Worker*d+k] -= x[k] * phiLambda
		}
		gt[l.Worker] += phiLambda
	}
	return nil
}

// WorkerObjective evaluates worker j's prior plus the likelihood of every
// label it produced, against the stored item latents. candidates holds n
// competence vectors followed by n biases and out receives n values.
func (s *signal) WorkerObjective(j int, candidates, out []float64) error {
	if s.ds == nil {
		return ErrNotLoaded
	}
	if j < 0 || j >= s.ds.NumWorkers {
		return fmt.Errorf("%w: worker %d of %d", ErrIndexRange, j, s.ds.NumWorkers)
	}
	n, err := numCandidates(candidates, s.dim+1, out)
	if err != nil {
		return err
	}
	d := s.dim
	toff := n * d
	for k := range n {
		out[k] = logPriorWorker(candidates[k*d:(k+1)*d], candidates[toff+k], s.hyper)
	}
	for _, e := range s.ds.ByWorker[j] {
		x := s.item(e.Index)
		for k := range n {
			a := probitArg(x, candidates[k*d:(k+1)*d], candidates[toff+k])
			out[k] += logLikelihood(a, e.Value)
		}
	}
	return nil
}

// ItemObjective evaluates item i's prior plus the likelihood of every
// label it received, against the stored worker parameters. candidates
// holds n latent vectors and out receives n values.
func (s *signal) ItemObjective(i int, candidates, out []float64) error {
	if s.ds == nil {
		return ErrNotLoaded
	}
	if i < 0 || i >= s.ds.NumItems {
		return fmt.Errorf("%w: item %d of %d", ErrIndexRange, i, s.ds.NumItems)
	}
	n, err := numCandidates(candidates, s.dim, out)
	if err != nil {
		return err
	}
	d := s.dim
	for k := range n {
		out[k] = logPriorItem(candidates[k*d:(k+1)*d], s.hyper)
	}
	for _, e := range s.ds.ByItem[i] {
		w := s.competence(e.Index)
		t := s.tjs[e.Index]
		for k := range n {
			a := probitArg(candidates[k*d:(k+1)*d], w, t)
			out[k] += logLikelihood(a, e.Value)
		}
	}
	return nil
}

func checkLen(what string, buf []float64, want int) error {
	if len(buf) != want {
		return fmt.Errorf("%w: %s has length %d, want %d", ErrBufferLength, what, len(buf), want)
	}
	return nil
}

// numCandidates returns how many blocks of size block candidates holds,
// checking that out has room for exactly one value per block.
func numCandidates(candidates []float64, block int, out []float64) (int, error) {
	if len(candidates)%block != 0 {
		return 0, fmt.Errorf("%w: %d candidate values is not a multiple of %d",
			ErrBufferLength, len(candidates), block)
	}
	n := len(candidates) / block
	if len(out) != n {
		return 0, fmt.Errorf("%w: output has length %d, want %d", ErrBufferLength, len(out), n)
	}
	return n, nil
}
