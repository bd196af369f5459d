package cli

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/cubam/internal/baseline"
	"github.com/happyhackingspace/cubam/internal/dataio"
	"github.com/happyhackingspace/cubam/internal/fit"
	"github.com/happyhackingspace/cubam/model"
)

func (c *CLI) newFitCommand() *cobra.Command {
	var opts modelOptions
	var iterations, maxFun int
	var seed uint64
	var truthPath, mappingPath string
	var showWorkers, uncertainty, initScalar bool

	cmd := &cobra.Command{
		Use:   "fit <labels>",
		Short: "Estimate image labels and worker parameters",
		Args:  cobra.ExactArgs(1),
		Example: `  cubam fit labels.txt
  cubam fit labels.txt --iterations 10 --workers
  cubam fit synth.txt --truth synth-truth.yaml
  cubam fit labels.txt --uncertainty --workers
  cubam fit synth2d.txt --model vector --init-scalar`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			cfg := fit.DefaultConfig()
			cfg.Iterations = iterations
			cfg.MaxFuncEvals = maxFun

			if uncertainty && m.Dim() != 1 {
				return fit.ErrDimension
			}
			src := rand.NewPCG(seed, seed)
			if initScalar {
				res, err := fit.InitFromScalar(cmd.Context(), m, cfg, fit.DefaultInitOptions(), src)
				if err != nil {
					return err
				}
				slog.Info("Images initialised from scalar fit", "objective", res.Objective)
			}

			slog.Info("Fitting", "model", m.Name(), "images", m.NumItems(), "workers", m.NumWorkers(),
				"iterations", cfg.Iterations)
			res, err := fit.Fit(cmd.Context(), m, cfg, src)
			if err != nil {
				return err
			}
			slog.Debug("Fit completed", "duration", res.Duration, "reseeds", res.Reseeds)

			var images, workers []int
			if mappingPath != "" {
				mp, err := dataio.ReadMapping(mappingPath)
				if err != nil {
					return err
				}
				images, workers = mp.Inverse()
			}

			xis, err := m.ItemParams()
			if err != nil {
				return err
			}
			labels := baseline.Labels(xis, m.Dim())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "objective: %.6f\n", res.Objective)
			if uncertainty {
				if err := printImageSpreads(out, m, xis, labels, images); err != nil {
					return err
				}
			} else {
				printImages(out, m.Dim(), xis, labels, images)
			}
			if showWorkers {
				if err := printWorkers(out, m, workers, uncertainty); err != nil {
					return err
				}
			}
			if truthPath != "" {
				return printRates(out, labels, truthPath)
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().IntVar(&iterations, "iterations", 30, "Alternating image/worker optimisation rounds")
	cmd.Flags().IntVar(&maxFun, "maxfun", 100, "Objective evaluations per block minimisation")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Seed for restarting non-finite image parameters")
	cmd.Flags().StringVar(&truthPath, "truth", "", "Ground truth YAML from 'cubam generate' to score against")
	cmd.Flags().StringVar(&mappingPath, "mapping", "", "Id mapping YAML from 'cubam normalize' to print original ids")
	cmd.Flags().BoolVar(&showWorkers, "workers", false, "Also print estimated worker parameters")
	cmd.Flags().BoolVar(&uncertainty, "uncertainty", false, "Print posterior spreads next to the estimates (scalar model)")
	cmd.Flags().BoolVar(&initScalar, "init-scalar", false, "Seed vector model images from a scalar fit first")
	return cmd
}

// printImages writes "id label latent..." per image. ids maps indices to
// original ids when non-nil.
func printImages(w io.Writer, dim int, xis []float64, labels, ids []int) {
	fmt.Fprintf(w, "# image\tlabel\tsignal\n")
	for i, l := range labels {
		fmt.Fprintf(w, "%d\t%d\t%s\n", idOf(ids, i), l, joinFloats(xis[i*dim:(i+1)*dim]))
	}
}

// printImageSpreads adds each image's posterior spread and positive mass.
func printImageSpreads(w io.Writer, m model.Model, xis []float64, labels, ids []int) error {
	fmt.Fprintf(w, "# image\tlabel\tsignal\tspread\tp(positive)\n")
	for i, l := range labels {
		sd, pos, err := fit.ImageSpread(m, i)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%d\t%.6f\t%.6f\t%.4f\n", idOf(ids, i), l, xis[i], sd, pos)
	}
	return nil
}

func printWorkers(w io.Writer, m model.Model, ids []int, spread bool) error {
	prm, err := m.WorkerParams()
	if err != nil {
		return err
	}
	d := m.Dim()
	n := m.NumWorkers()
	if !spread {
		fmt.Fprintf(w, "# worker\tcompetence\tbias\n")
		for j := range n {
			fmt.Fprintf(w, "%d\t%s\t%.6f\n", idOf(ids, j), joinFloats(prm[j*d:(j+1)*d]), prm[n*d+j])
		}
		return nil
	}
	fmt.Fprintf(w, "# worker\tcompetence\tbias\tspread\n")
	for j := range n {
		sd, err := fit.WorkerSpread(m, j)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%.6f\t%.6f\n", idOf(ids, j), joinFloats(prm[j*d:(j+1)*d]), prm[n*d+j], sd)
	}
	return nil
}

func printRates(w io.Writer, est []int, truthPath string) error {
	truth, err := dataio.ReadTruth(truthPath)
	if err != nil {
		return err
	}
	r, err := baseline.ErrorRates(est, truth.Labels())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "error rate: %.1f%%  false alarm rate: %.1f%%  miss rate: %.1f%%\n",
		r.Error*100, r.FalseAlarm*100, r.Miss*100)
	return nil
}

func idOf(ids []int, i int) int {
	if i < len(ids) {
		return ids[i]
	}
	return i
}
