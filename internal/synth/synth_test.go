package synth

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestGenerateShape(t *testing.T) {
	s, err := Generate(DefaultConfig(40, 5), rand.NewPCG(1, 1))
	require.NoError(t, err)

	ds := s.Dataset
	assert.Equal(t, 40, ds.NumItems)
	assert.Equal(t, 5, ds.NumWorkers)
	assert.Equal(t, 200, ds.NumLabels())
	for _, d := range ds.ItemDegrees() {
		assert.Equal(t, 5, d)
	}
	assert.Len(t, s.Items, 40)
	assert.Len(t, s.WorkerParams(), 10)
}

func TestGenerateWorkerBounds(t *testing.T) {
	cfg := DefaultConfig(1, 500)
	s, err := Generate(cfg, rand.NewPCG(2, 2))
	require.NoError(t, err)

	for j, w := range s.Workers {
		sigma := 1 / math.Abs(w.W[0])
		assert.GreaterOrEqual(t, sigma, cfg.SigmaMin-1e-12, "worker %d", j)
		assert.LessOrEqual(t, sigma, cfg.SigmaMax+1e-12, "worker %d", j)
		// |t| <= TauMax * TauScale / s
		assert.LessOrEqual(t, math.Abs(w.T)*sigma, cfg.TauMax*cfg.TauScale+1e-9, "worker %d", j)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate(DefaultConfig(10, 3), rand.NewPCG(9, 9))
	require.NoError(t, err)
	b, err := Generate(DefaultConfig(10, 3), rand.NewPCG(9, 9))
	require.NoError(t, err)
	assert.Equal(t, a.Dataset.Labels, b.Dataset.Labels)
	assert.Equal(t, a.Items, b.Items)
}

func TestGenerateReliableWorkersAgreeWithTruth(t *testing.T) {
	cfg := DefaultConfig(300, 1)
	cfg.SigmaMin, cfg.SigmaMax = 0.05, 0.05
	cfg.TauMin, cfg.TauMax = -0.01, 0.01
	cfg.AdversarialRate = 0
	s, err := Generate(cfg, rand.NewPCG(4, 4))
	require.NoError(t, err)

	truth := s.Truth()
	agree := 0
	for _, l := range s.Dataset.Labels {
		if l.Value == truth[l.Item] {
			agree++
		}
	}
	assert.Greater(t, float64(agree)/300, 0.95)
}

func TestTruncNormalStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	for _, b := range [][2]float64{{-0.01, 0.01}, {-1.5, 1.5}, {2.5, 3}, {-5, -4.9}} {
		for range 200 {
			v := TruncNormal(rng, b[0], b[1])
			assert.GreaterOrEqual(t, v, b[0])
			assert.LessOrEqual(t, v, b[1])
		}
	}
	assert.Equal(t, 1.0, TruncNormal(rng, 1, 1))
}

func TestGenerateDegenerateThreshold(t *testing.T) {
	cfg := DefaultConfig(2, 20)
	cfg.TauMin, cfg.TauMax = 1, 1
	s, err := Generate(cfg, rand.NewPCG(6, 6))
	require.NoError(t, err)
	for _, w := range s.Workers {
		assert.InDelta(t, cfg.TauScale, w.T/math.Abs(w.W[0]), 1e-9)
	}
}

func TestGenerateVectorTwoDim(t *testing.T) {
	cfg := DefaultVectorConfig(30, 200, 2)
	s, err := Generate(cfg, rand.NewPCG(8, 8))
	require.NoError(t, err)

	assert.Equal(t, 2, s.Dim)
	assert.Len(t, s.Items, 60)
	assert.Len(t, s.WorkerParams(), 600)
	assert.Equal(t, 6000, s.Dataset.NumLabels())
	mean := 0.0
	for j, w := range s.Workers {
		require.Len(t, w.W, 2)
		sigma := 1 / floats.Norm(w.W, 2)
		assert.GreaterOrEqual(t, sigma, cfg.SigmaMin-1e-12, "worker %d", j)
		assert.LessOrEqual(t, sigma, cfg.SigmaMax+1e-12, "worker %d", j)
		assert.LessOrEqual(t, math.Abs(w.T)*sigma, cfg.TauMax*cfg.TauScale+1e-9, "worker %d", j)
		mean += math.Atan2(w.W[0], w.W[1])
	}
	assert.InDelta(t, math.Pi/4, mean/200, 0.1)

	prm := s.WorkerParams()
	assert.Equal(t, s.Workers[3].W[1], prm[7])
	assert.Equal(t, s.Workers[3].T, prm[400+3])
}

func TestGenerateVectorHigherDim(t *testing.T) {
	cfg := DefaultVectorConfig(50, 1, 3)
	cfg.SigmaMin, cfg.SigmaMax = 0.05, 0.05
	s, err := Generate(cfg, rand.NewPCG(10, 10))
	require.NoError(t, err)
	require.Len(t, s.Workers[0].W, 3)

	truth := s.Truth()
	assert.Len(t, truth, 50)
	pos := 0
	for _, c := range truth {
		pos += c
	}
	assert.Greater(t, pos, 10)
	assert.Less(t, pos, 40)
}

func TestGenerateInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"no items", func(c *Config) { c.NumItems = 0 }},
		{"no workers", func(c *Config) { c.NumWorkers = 0 }},
		{"bad gamma", func(c *Config) { c.SigmaScale = 0 }},
		{"bad noise bounds", func(c *Config) { c.SigmaMax = 0.01 }},
		{"bad threshold bounds", func(c *Config) { c.TauMin, c.TauMax = 1, -1 }},
		{"negative dimension", func(c *Config) { c.Dim = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(5, 5)
			tt.edit(&cfg)
			_, err := Generate(cfg, nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
