package model

// Hyperparameters are the fixed prior settings of a signal model.
type Hyperparameters struct {
	Beta   float64 `yaml:"beta"` // prior mass of the +1 class
	SigmaX float64 `yaml:"sigx"` // spread of item latents around ±1
	SigmaW float64 `yaml:"sigw"` // competence prior std
	MuW    float64 `yaml:"muw"`  // competence prior mean
	SigmaT float64 `yaml:"sigt"` // bias prior std
}

// DefaultDim is the competence dimensionality of a new vector model.
const DefaultDim = 2

// DefaultHyperparameters returns the priors used by a freshly created model.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		Beta:   0.5,
		SigmaX: 0.8,
		SigmaW: 1.0,
		MuW:    1.0,
		SigmaT: 3.0,
	}
}

// numHyper is the length of the flat vector written by Hyperparameters.flat.
const numHyper = 5

func (h Hyperparameters) flat() []float64 {
	return []float64{h.Beta, h.SigmaX, h.SigmaW, h.MuW, h.SigmaT}
}

func hyperFromFlat(prm []float64) Hyperparameters {
	return Hyperparameters{
		Beta:   prm[0],
		SigmaX: prm[1],
		SigmaW: prm[2],
		MuW:    prm[3],
		SigmaT: prm[4],
	}
}
