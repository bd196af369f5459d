package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/cubam/internal/baseline"
	"github.com/happyhackingspace/cubam/model"
)

func (c *CLI) newBiasCommand() *cobra.Command {
	var strict, showWorkers bool
	var truthPath string
	cfg := baseline.DefaultBiasConfig()

	cmd := &cobra.Command{
		Use:   "bias <labels>",
		Short: "Label images with the per-class worker accuracy model",
		Args:  cobra.ExactArgs(1),
		Example: `  cubam bias labels.txt --workers
  cubam bias synth.txt --truth synth-truth.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := model.LoadDataset(args[0], model.ReadOptions{Strict: strict})
			if err != nil {
				return err
			}
			slog.Info("Fitting bias model", "images", ds.NumItems, "workers", ds.NumWorkers,
				"iterations", cfg.Iterations)
			res, err := baseline.Bias(ds, cfg)
			if err != nil {
				return err
			}

			labels := res.Labels()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# image\tlabel\tp(positive)\n")
			for i, l := range labels {
				fmt.Fprintf(out, "%d\t%d\t%.4f\n", i, l, res.Posterior[i])
			}
			if showWorkers {
				fmt.Fprintf(out, "# worker\tsensitivity\tspecificity\n")
				for j, w := range res.Workers {
					fmt.Fprintf(out, "%d\t%.4f\t%.4f\n", j, w.Sensitivity, w.Specificity)
				}
			}
			if truthPath != "" {
				return printRates(out, labels, truthPath)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.Iterations, "iterations", cfg.Iterations, "Alternating image/worker update rounds")
	cmd.Flags().Float64Var(&cfg.PriorPositive, "pz1", cfg.PriorPositive, "Prior probability that an image is positive")
	cmd.Flags().IntVar(&cfg.Resolution, "resolution", cfg.Resolution, "Grid points per worker accuracy axis")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on malformed label lines instead of skipping them")
	cmd.Flags().BoolVar(&showWorkers, "workers", false, "Also print estimated worker accuracies")
	cmd.Flags().StringVar(&truthPath, "truth", "", "Ground truth YAML from 'cubam generate' to score against")
	return cmd
}
