package cubam

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/cubam/model"
)

const toyData = "2 2 4\n0 0 1\n0 1 0\n1 0 0\n1 1 1\n"

func toyFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toy.txt")
	require.NoError(t, os.WriteFile(path, []byte(toyData), 0644))
	return path
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	h, err := r.Create(model.ScalarName)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	require.NoError(t, r.Load(h, toyFile(t)))
	assert.Equal(t, 2, r.GetNumImgs(h))
	assert.Equal(t, 2, r.GetNumWkrs(h))
	assert.Equal(t, 4, r.GetNumLbls(h))
	assert.Equal(t, 4, r.GetWorkerParamLen(h))
	assert.Equal(t, 2, r.GetImageParamLen(h))
	assert.Equal(t, 5, r.GetModelParamLen(h))

	obj, err := r.Objective(h)
	require.NoError(t, err)
	assert.InDelta(t, 12.5924, obj, 1e-3)

	r.Destroy(h)
	assert.Equal(t, 0, r.Len())
	_, err = r.Objective(h)
	assert.ErrorIs(t, err, ErrUnknownHandle)
	assert.Equal(t, 0, r.GetNumImgs(h))
	r.Destroy(h)
}

func TestRegistryHandlesAreNotReused(t *testing.T) {
	r := NewRegistry()
	a, err := r.Create(model.ScalarName)
	require.NoError(t, err)
	r.Destroy(a)
	b, err := r.Create(model.VectorName)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestRegistryUnknownVariant(t *testing.T) {
	_, err := NewRegistry().Create("BinaryBiasModel")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestRegistryFlatBuffers(t *testing.T) {
	r := NewRegistry()
	h, err := r.Create(model.VectorName)
	require.NoError(t, err)
	require.NoError(t, r.SetModelParams(h, []float64{0.5, 0.8, 1, 1, 3, 1}))
	require.NoError(t, r.Load(h, toyFile(t)))

	mp := make([]float64, r.GetModelParamLen(h))
	require.NoError(t, r.GetModelParams(h, mp))
	assert.Equal(t, []float64{0.5, 0.8, 1, 1, 3, 1}, mp)

	wkr := []float64{1.1, 0.9, 0.2, -0.1}
	require.NoError(t, r.SetWorkerParams(h, wkr))
	got := make([]float64, 4)
	require.NoError(t, r.GetWorkerParams(h, got))
	assert.Equal(t, wkr, got)

	img := []float64{0.4, -0.6}
	require.NoError(t, r.SetImageParams(h, img))
	gotImg := make([]float64, 2)
	require.NoError(t, r.GetImageParams(h, gotImg))
	assert.Equal(t, img, gotImg)

	grad := make([]float64, r.GetImageParamLen(h)+r.GetWorkerParamLen(h))
	require.NoError(t, r.Gradient(h, grad))

	out := make([]float64, 1)
	require.NoError(t, r.WorkerObjective(h, 1, []float64{0.9, -0.1}, out))
	require.NoError(t, r.ImageObjective(h, 0, []float64{0.4}, out))

	wl := make([]int, 2)
	require.NoError(t, r.GetNumWkrLbls(h, wl))
	assert.Equal(t, []int{2, 2}, wl)
	il := make([]int, 2)
	require.NoError(t, r.GetNumImgLbls(h, il))
	assert.Equal(t, []int{2, 2}, il)
}

func TestRegistryBufferLength(t *testing.T) {
	r := NewRegistry()
	h, err := r.Create(model.ScalarName)
	require.NoError(t, err)
	require.NoError(t, r.Load(h, toyFile(t)))

	assert.ErrorIs(t, r.GetWorkerParams(h, make([]float64, 3)), model.ErrBufferLength)
	assert.ErrorIs(t, r.GetImageParams(h, make([]float64, 5)), model.ErrBufferLength)
	assert.ErrorIs(t, r.GetModelParams(h, make([]float64, 6)), model.ErrBufferLength)
	assert.ErrorIs(t, r.GetNumWkrLbls(h, make([]int, 1)), model.ErrBufferLength)
	assert.ErrorIs(t, r.GetNumImgLbls(h, make([]int, 3)), model.ErrBufferLength)
	assert.ErrorIs(t, r.Gradient(h, make([]float64, 2)), model.ErrBufferLength)
}

func TestRegistryNotLoaded(t *testing.T) {
	r := NewRegistry()
	h, err := r.Create(model.ScalarName)
	require.NoError(t, err)

	_, err = r.Objective(h)
	assert.ErrorIs(t, err, model.ErrNotLoaded)
	assert.ErrorIs(t, r.GetNumImgLbls(h, nil), model.ErrNotLoaded)
	assert.ErrorIs(t, r.GetWorkerParams(h, nil), model.ErrNotLoaded)
	assert.Equal(t, 0, r.GetWorkerParamLen(h))
	assert.ErrorIs(t, r.Load(h, filepath.Join(t.TempDir(), "missing.txt")), model.ErrSourceUnavailable)
}

func TestRegistryConcurrentHandles(t *testing.T) {
	r := NewRegistry()
	path := toyFile(t)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := r.Create(model.ScalarName)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, r.Load(h, path))
			_, err = r.Objective(h)
			assert.NoError(t, err)
			r.Destroy(h)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
}
