package model

// Scalar is the one-dimensional signal model: competence and item latent
// are scalars and the probit argument is x_i*w_j - t_j.
//
// Item latents reset to 1.0, unlike Vector which resets them to 0.0.
type Scalar struct {
	signal
}

// NewScalar returns an empty scalar model with default hyperparameters.
func NewScalar() *Scalar {
	return &Scalar{signal: newSignal(1, 1.0)}
}

// Name returns ScalarName.
func (m *Scalar) Name() string { return ScalarName }

// ModelParamLen returns the number of hyperparameters.
func (m *Scalar) ModelParamLen() int { return numHyper }

// ModelParams returns [beta, sigx, sigw, muw, sigt].
func (m *Scalar) ModelParams() []float64 {
	return m.hyper.flat()
}

// SetModelParams sets [beta, sigx, sigw, muw, sigt].
func (m *Scalar) SetModelParams(prm []float64) error {
	if err := checkLen("model params", prm, numHyper); err != nil {
		return err
	}
	m.hyper = hyperFromFlat(prm)
	return nil
}
