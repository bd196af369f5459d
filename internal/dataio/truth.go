package dataio

import (
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/happyhackingspace/cubam/model"
)

// WorkerTruth is one sampled worker in (competence, bias) form.
type WorkerTruth struct {
	W []float64 `yaml:"w,flow"`
	T float64   `yaml:"t"`
}

// Truth records the parameters a synthetic dataset was generated from.
// Images is flat with Dim values per image; a zero Dim means one.
type Truth struct {
	Dim     int           `yaml:"dim,omitempty"`
	Images  []float64     `yaml:"images"`
	Workers []WorkerTruth `yaml:"workers"`
}

// Labels returns the binary class of each image: 1 when its coordinates
// sum to a positive value.
func (t *Truth) Labels() []int {
	d := max(t.Dim, 1)
	out := make([]int, len(t.Images)/d)
	for i := range out {
		if floats.Sum(t.Images[i*d:(i+1)*d]) > 0 {
			out[i] = 1
		}
	}
	return out
}

// WriteTruth writes t as YAML to path.
func WriteTruth(path string, t *Truth) error {
	return writeFile(path, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return err
		}
		return enc.Close()
	})
}

// ReadTruth loads a file written by WriteTruth.
func ReadTruth(path string) (*Truth, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}
	var t Truth
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: truth: %w", model.ErrInvalidRecord, err)
	}
	if t.Dim < 0 || len(t.Images)%max(t.Dim, 1) != 0 {
		return nil, fmt.Errorf("%w: truth: %d image values for dimension %d",
			model.ErrInvalidRecord, len(t.Images), t.Dim)
	}
	return &t, nil
}
