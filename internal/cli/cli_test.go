package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/cubam/internal/baseline"
	"github.com/happyhackingspace/cubam/internal/dataio"
	"github.com/happyhackingspace/cubam/internal/fit"
	"github.com/happyhackingspace/cubam/model"
)

const toyData = "2 2 4\n0 0 1\n0 1 0\n1 0 0\n1 1 1\n"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New("test")
	c.logOutput = io.Discard
	var out bytes.Buffer
	c.rootCmd.SetOut(&out)
	c.rootCmd.SetErr(io.Discard)
	c.rootCmd.SetArgs(args)
	err := c.Run()
	return out.String(), err
}

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestObjectiveCommand(t *testing.T) {
	out, err := run(t, "objective", writeFile(t, "toy.txt", toyData))
	require.NoError(t, err)
	assert.Contains(t, out, "model: Binary1dSignalModel (dim 1)")
	assert.Contains(t, out, "images: 2  workers: 2  labels: 4")
	assert.Contains(t, out, "objective: 12.59")
}

func TestObjectiveConfigFile(t *testing.T) {
	labels := writeFile(t, "toy.txt", toyData)
	cfg := writeFile(t, "model.yaml", "model: vector\ndim: 1\nbeta: 0.7\n")

	out, err := run(t, "objective", labels, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "model: BinaryNdSignalModel (dim 1)")

	// explicit flags win over the file
	out, err = run(t, "objective", labels, "--config", cfg, "--dim", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "model: BinaryNdSignalModel (dim 3)")
}

func TestResolvePrecedence(t *testing.T) {
	c := New("test")
	cmd := c.newObjectiveCommand()
	var opts modelOptions
	cmd.ResetFlags()
	opts.register(cmd)
	opts.config = writeFile(t, "model.yaml", "beta: 0.7\nsigt: 2.5\n")
	require.NoError(t, cmd.Flags().Set("sigt", "4"))

	cfg, err := opts.resolve(cmd)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Beta)
	assert.Equal(t, 4.0, cfg.SigmaT)
	assert.Equal(t, model.DefaultHyperparameters().SigmaX, cfg.SigmaX)
	assert.Equal(t, "scalar", cfg.Model)
}

func TestUnknownModel(t *testing.T) {
	_, err := run(t, "objective", writeFile(t, "toy.txt", toyData), "--model", "bias")
	assert.ErrorIs(t, err, errUnknownModel)
}

func TestGradientCommand(t *testing.T) {
	out, err := run(t, "gradient", writeFile(t, "toy.txt", toyData))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "# images", lines[0])
	assert.Equal(t, "# competences", lines[3])
	assert.Equal(t, "# biases", lines[6])
}

func TestMajorityCommand(t *testing.T) {
	out, err := run(t, "majority", writeFile(t, "toy.txt", toyData))
	require.NoError(t, err)
	assert.Contains(t, out, "0\t0\t0.500\t2\n")
	assert.Contains(t, out, "1\t0\t0.500\t2\n")
}

func TestBiasCommand(t *testing.T) {
	out, err := run(t, "bias", writeFile(t, "toy.txt", toyData), "--workers", "--iterations", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "# image\tlabel\tp(positive)\n")
	assert.Contains(t, out, "# worker\tsensitivity\tspecificity\n")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 6)

	_, err = run(t, "bias", writeFile(t, "toy.txt", toyData), "--resolution", "1")
	assert.ErrorIs(t, err, baseline.ErrInvalidBiasConfig)
}

func TestFitUncertainty(t *testing.T) {
	out, err := run(t, "fit", writeFile(t, "toy.txt", toyData), "--iterations", "1", "--uncertainty", "--workers")
	require.NoError(t, err)
	assert.Contains(t, out, "# image\tlabel\tsignal\tspread\tp(positive)\n")
	assert.Contains(t, out, "# worker\tcompetence\tbias\tspread\n")

	_, err = run(t, "fit", writeFile(t, "toy.txt", toyData), "--model", "vector", "--uncertainty")
	assert.ErrorIs(t, err, fit.ErrDimension)
}

func TestGenerateVectorAndInitScalar(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "synth2d.txt")
	truth := filepath.Join(dir, "synth2d-truth.yaml")

	_, err := run(t, "generate", data, "--dim", "2", "--images", "30", "--workers", "5", "--truth", truth)
	require.NoError(t, err)
	tr, err := dataio.ReadTruth(truth)
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Dim)
	assert.Len(t, tr.Images, 60)
	assert.Len(t, tr.Workers[0].W, 2)

	out, err := run(t, "fit", data, "--model", "vector", "--init-scalar", "--iterations", "2", "--truth", truth)
	require.NoError(t, err)
	assert.Contains(t, out, "error rate: ")

	_, err = run(t, "fit", data, "--init-scalar", "--iterations", "1")
	assert.ErrorIs(t, err, model.ErrInvalidOperation)
}

func TestGenerateAndFit(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "synth.txt")
	truth := filepath.Join(dir, "synth-truth.yaml")

	_, err := run(t, "generate", data, "--images", "40", "--workers", "6", "--truth", truth)
	require.NoError(t, err)
	ds, err := model.LoadDataset(data, model.ReadOptions{Strict: true})
	require.NoError(t, err)
	assert.Equal(t, 240, ds.NumLabels())

	out, err := run(t, "fit", data, "--iterations", "2", "--truth", truth, "--workers")
	require.NoError(t, err)
	assert.Contains(t, out, "objective: ")
	assert.Contains(t, out, "# worker\tcompetence\tbias")
	assert.Contains(t, out, "error rate: ")

	out, err = run(t, "majority", data, "--noise", "--truth", truth)
	require.NoError(t, err)
	assert.Contains(t, out, "false alarm rate: ")
}

func TestNormalizeThenFitWithMapping(t *testing.T) {
	dir := t.TempDir()
	raw := writeFile(t, "raw.txt", "17 900 1\n17 42 0\n5 900 0\n5 42 1\n")
	prefix := filepath.Join(dir, "norm")

	_, err := run(t, "normalize", raw, prefix)
	require.NoError(t, err)
	require.FileExists(t, prefix+".txt")
	require.FileExists(t, prefix+"-mapping.yaml")

	out, err := run(t, "fit", prefix+".txt", "--iterations", "1", "--mapping", prefix+"-mapping.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "\n17\t")
	assert.Contains(t, out, "\n5\t")
}

func TestMissingLabelFile(t *testing.T) {
	_, err := run(t, "objective", filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, model.ErrSourceUnavailable)
}
