package model

import (
	"fmt"
	"math"
)

// Vector is the D-dimensional signal model: competences and item latents
// are D-vectors and the probit argument is <x_i, w_j> - t_j.
//
// All latent arrays are sized from D, so D can only change while no
// dataset is loaded.
type Vector struct {
	signal
}

// NewVector returns an empty vector model with default hyperparameters
// and DefaultDim dimensions.
func NewVector() *Vector {
	return &Vector{signal: newSignal(DefaultDim, 0.0)}
}

// Name returns VectorName.
func (m *Vector) Name() string { return VectorName }

// ModelParamLen returns the number of hyperparameters plus one for the dimension.
func (m *Vector) ModelParamLen() int { return numHyper + 1 }

// SetDim changes the latent dimensionality. It fails with
// ErrInvalidOperation while a dataset is loaded and d differs from the
// current value.
func (m *Vector) SetDim(d int) error {
	if d < 1 {
		return fmt.Errorf("%w: dimension %d must be positive", ErrInvalidOperation, d)
	}
	if m.ds != nil && d != m.dim {
		return fmt.Errorf("%w: cannot change dimension from %d to %d while data is loaded",
			ErrInvalidOperation, m.dim, d)
	}
	m.dim = d
	return nil
}

// ModelParams returns [beta, sigx, sigw, muw, sigt, dim].
func (m *Vector) ModelParams() []float64 {
	return append(m.hyper.flat(), float64(m.dim))
}

// SetModelParams sets [beta, sigx, sigw, muw, sigt, dim]. Nothing is
// changed when the dimension is rejected.
func (m *Vector) SetModelParams(prm []float64) error {
	if err := checkLen("model params", prm, numHyper+1); err != nil {
		return err
	}
	d := prm[numHyper]
	if math.IsInf(d, 0) || d != math.Trunc(d) {
		return fmt.Errorf("%w: dimension %v is not an integer", ErrInvalidOperation, d)
	}
	if err := m.SetDim(int(d)); err != nil {
		return err
	}
	m.hyper = hyperFromFlat(prm)
	return nil
}
