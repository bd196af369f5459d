package baseline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/cubam/model"
)

func TestBiasPriorNormalised(t *testing.T) {
	g, err := newBiasGrid(DefaultBiasConfig())
	require.NoError(t, err)
	require.Len(t, g.logPrior, 100*100)
	sum := 0.0
	for _, lp := range g.logPrior {
		sum += math.Exp(lp)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 1e-10, g.spec[0], 1e-15)
	assert.InDelta(t, 1-1e-10, g.sens[len(g.sens)-1], 1e-15)
}

func TestBiasRidgePrior(t *testing.T) {
	cfg := DefaultBiasConfig()
	cfg.Resolution = 5
	cfg.Prior = []BiasPrior{{Weight: 1, Ridge: true}}
	g, err := newBiasGrid(cfg)
	require.NoError(t, err)

	var cells []int
	for k, lp := range g.logPrior {
		if !math.IsInf(lp, -1) {
			cells = append(cells, k)
			assert.InDelta(t, math.Log(1.0/3), lp, 1e-12)
		}
	}
	// row*5 + col with row + col = 6
	assert.Equal(t, []int{14, 18, 22}, cells)
	for _, k := range cells {
		assert.Greater(t, g.spec[k]+g.sens[k], 1.0)
	}
}

func TestBiasImageUpdate(t *testing.T) {
	ds, err := model.NewDataset(2, 1, []model.Label{
		{Item: 0, Worker: 0, Value: 1},
		{Item: 1, Worker: 0, Value: 0},
	})
	require.NoError(t, err)
	res := &BiasResult{
		Posterior: make([]float64, 2),
		Workers:   []BiasWorker{{Sensitivity: 0.9, Specificity: 0.8}},
	}
	updateImages(ds, 0.5, res)
	assert.InDelta(t, 0.9/(0.9+0.2), res.Posterior[0], 1e-12)
	assert.InDelta(t, 0.1/(0.1+0.8), res.Posterior[1], 1e-12)
	assert.Equal(t, []int{1, 0}, res.Labels())

	updateImages(ds, 0.8, res)
	assert.InDelta(t, 4*0.9/(4*0.9+0.2), res.Posterior[0], 1e-12)
}

func TestBiasFindsAdversary(t *testing.T) {
	const items = 20
	truth := make([]int, items)
	var labels []model.Label
	for i := range items {
		truth[i] = i % 2
		for j := range 3 {
			labels = append(labels, model.Label{Item: i, Worker: j, Value: truth[i]})
		}
		labels = append(labels, model.Label{Item: i, Worker: 3, Value: 1 - truth[i]})
	}
	ds, err := model.NewDataset(items, 5, labels)
	require.NoError(t, err)

	res, err := Bias(ds, DefaultBiasConfig())
	require.NoError(t, err)
	assert.Equal(t, truth, res.Labels())
	for j := range 3 {
		assert.Greater(t, res.Workers[j].Sensitivity, 0.9, "worker %d", j)
		assert.Greater(t, res.Workers[j].Specificity, 0.9, "worker %d", j)
	}
	assert.Less(t, res.Workers[3].Sensitivity, 0.5)
	assert.Less(t, res.Workers[3].Specificity, 0.5)

	// worker 4 has no labels and lands on the prior mode
	assert.Greater(t, res.Workers[4].Sensitivity, 0.8)
	assert.Greater(t, res.Workers[4].Specificity, 0.8)
}

func TestBiasInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		edit func(*BiasConfig)
	}{
		{"coarse grid", func(c *BiasConfig) { c.Resolution = 2 }},
		{"prior at one", func(c *BiasConfig) { c.PriorPositive = 1 }},
		{"no components", func(c *BiasConfig) { c.Prior = nil }},
		{"bad beta", func(c *BiasConfig) { c.Prior = []BiasPrior{{Weight: 1, Alpha: 0, Beta: 2}} }},
		{"negative weight", func(c *BiasConfig) { c.Prior = []BiasPrior{{Weight: -1, Ridge: true}} }},
	}
	ds, err := model.NewDataset(1, 1, nil)
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBiasConfig()
			tt.edit(&cfg)
			_, err := Bias(ds, cfg)
			assert.ErrorIs(t, err, ErrInvalidBiasConfig)
		})
	}
}
