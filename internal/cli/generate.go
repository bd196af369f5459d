package cli

import (
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/cubam/internal/dataio"
	"github.com/happyhackingspace/cubam/internal/synth"
	"github.com/happyhackingspace/cubam/model"
)

func (c *CLI) newGenerateCommand() *cobra.Command {
	var images, workers, dim int
	var beta, theta, adversarial float64
	var seed uint64
	var truthPath string

	cmd := &cobra.Command{
		Use:   "generate <output>",
		Short: "Sample a synthetic fully-labeled dataset",
		Args:  cobra.ExactArgs(1),
		Example: `  cubam generate synth.txt --images 500 --workers 12
  cubam generate synth.txt --truth synth-truth.yaml --seed 3
  cubam generate synth2d.txt --dim 2 --theta 0.8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := synth.DefaultConfig(images, workers)
			if dim > 1 {
				cfg = synth.DefaultVectorConfig(images, workers, dim)
			}
			cfg.Beta = beta
			if cmd.Flags().Changed("theta") || dim <= 1 {
				cfg.Theta = theta
			}
			cfg.AdversarialRate = adversarial

			s, err := synth.Generate(cfg, rand.NewPCG(seed, seed))
			if err != nil {
				return err
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := model.WriteDataset(f, s.Dataset); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			slog.Info("Dataset written", "path", args[0], "dim", s.Dim, "images", images, "workers", workers,
				"labels", s.Dataset.NumLabels())

			if truthPath == "" {
				return nil
			}
			truth := &dataio.Truth{Dim: s.Dim, Images: s.Items, Workers: make([]dataio.WorkerTruth, len(s.Workers))}
			for j, w := range s.Workers {
				truth.Workers[j] = dataio.WorkerTruth{W: w.W, T: w.T}
			}
			if err := dataio.WriteTruth(truthPath, truth); err != nil {
				return err
			}
			slog.Info("Ground truth written", "path", truthPath)
			return nil
		},
	}

	cmd.Flags().IntVar(&images, "images", 500, "Number of images")
	cmd.Flags().IntVar(&workers, "workers", 10, "Number of workers, each labeling every image")
	cmd.Flags().Float64Var(&beta, "beta", 0.5, "Fraction of positive images")
	cmd.Flags().IntVar(&dim, "dim", 1, "Signal dimension; above 1 samples the vector model")
	cmd.Flags().Float64Var(&theta, "theta", 0.5, "Spread of image signals around each class (0.8 by default when --dim > 1)")
	cmd.Flags().Float64Var(&adversarial, "adversarial", 0.01, "Probability that a worker is adversarial (scalar model only)")
	cmd.Flags().Uint64Var(&seed, "seed", 3, "Random seed")
	cmd.Flags().StringVar(&truthPath, "truth", "", "Also write the sampled parameters as YAML")
	return cmd
}
