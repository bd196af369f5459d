package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/happyhackingspace/cubam/model"
)

var errUnknownModel = errors.New("cli: unknown model")

// modelConfig is the YAML layout accepted by --config.
type modelConfig struct {
	Model                 string `yaml:"model"`
	model.Hyperparameters `yaml:",inline"`
	Dim                   int `yaml:"dim"`
}

// modelOptions collects the flags shared by commands that load a model.
type modelOptions struct {
	config string
	strict bool
	flags  modelConfig
}

func (o *modelOptions) register(cmd *cobra.Command) {
	h := model.DefaultHyperparameters()
	fs := cmd.Flags()
	fs.StringVarP(&o.flags.Model, "model", "m", "scalar", "Model variant: scalar or vector")
	fs.StringVar(&o.config, "config", "", "YAML file with model and hyperparameter settings")
	fs.BoolVar(&o.strict, "strict", false, "Fail on malformed label lines instead of skipping them")
	fs.Float64Var(&o.flags.Beta, "beta", h.Beta, "Prior probability that an image is positive")
	fs.Float64Var(&o.flags.SigmaX, "sigx", h.SigmaX, "Spread of image signals around each class vertex")
	fs.Float64Var(&o.flags.SigmaW, "sigw", h.SigmaW, "Spread of the worker competence prior")
	fs.Float64Var(&o.flags.MuW, "muw", h.MuW, "Mean of the worker competence prior")
	fs.Float64Var(&o.flags.SigmaT, "sigt", h.SigmaT, "Spread of the worker bias prior")
	fs.IntVar(&o.flags.Dim, "dim", model.DefaultDim, "Signal dimension of the vector model")
}

// resolve merges defaults, the --config file and explicitly set flags, in
// increasing precedence.
func (o *modelOptions) resolve(cmd *cobra.Command) (modelConfig, error) {
	cfg := modelConfig{
		Model:           "scalar",
		Hyperparameters: model.DefaultHyperparameters(),
		Dim:             model.DefaultDim,
	}
	if o.config != "" {
		data, err := os.ReadFile(o.config)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", o.config, err)
		}
	}
	fs := cmd.Flags()
	set := map[string]func(){
		"model": func() { cfg.Model = o.flags.Model },
		"beta":  func() { cfg.Beta = o.flags.Beta },
		"sigx":  func() { cfg.SigmaX = o.flags.SigmaX },
		"sigw":  func() { cfg.SigmaW = o.flags.SigmaW },
		"muw":   func() { cfg.MuW = o.flags.MuW },
		"sigt":  func() { cfg.SigmaT = o.flags.SigmaT },
		"dim":   func() { cfg.Dim = o.flags.Dim },
	}
	for name, apply := range set {
		if fs.Changed(name) {
			apply()
		}
	}
	return cfg, nil
}

// variantName maps short variant names onto registered model names.
func variantName(s string) (string, error) {
	switch strings.ToLower(s) {
	case "scalar", "1d", strings.ToLower(model.ScalarName):
		return model.ScalarName, nil
	case "vector", "nd", strings.ToLower(model.VectorName):
		return model.VectorName, nil
	}
	return "", fmt.Errorf("%w %q", errUnknownModel, s)
}

// load builds the configured model and loads the label file at path.
func (o *modelOptions) load(cmd *cobra.Command, path string) (model.Model, error) {
	cfg, err := o.resolve(cmd)
	if err != nil {
		return nil, err
	}
	name, err := variantName(cfg.Model)
	if err != nil {
		return nil, err
	}
	m, _ := model.New(name)

	prm := []float64{cfg.Beta, cfg.SigmaX, cfg.SigmaW, cfg.MuW, cfg.SigmaT}
	if name == model.VectorName {
		prm = append(prm, float64(cfg.Dim))
	}
	if err := m.SetModelParams(prm); err != nil {
		return nil, err
	}

	ds, err := model.LoadDataset(path, model.ReadOptions{Strict: o.strict})
	if err != nil {
		return nil, err
	}
	if err := m.Load(ds); err != nil {
		return nil, err
	}
	slog.Debug("Model ready", "model", m.Name(), "dim", m.Dim(),
		"images", m.NumItems(), "workers", m.NumWorkers(), "labels", m.NumLabels())
	return m, nil
}
