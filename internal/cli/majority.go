package cli

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/cubam/internal/baseline"
	"github.com/happyhackingspace/cubam/model"
)

func (c *CLI) newMajorityCommand() *cobra.Command {
	var noise, strict bool
	var seed uint64
	var truthPath string

	cmd := &cobra.Command{
		Use:   "majority <labels>",
		Short: "Label images by majority vote",
		Args:  cobra.ExactArgs(1),
		Example: `  cubam majority labels.txt
  cubam majority synth.txt --noise --truth synth-truth.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := model.LoadDataset(args[0], model.ReadOptions{Strict: strict})
			if err != nil {
				return err
			}
			var src rand.Source
			if noise {
				src = rand.NewPCG(seed, seed)
			}
			labels := baseline.MajorityVote(ds, src)
			votes := baseline.Votes(ds)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# image\tlabel\tpositive\tvotes\n")
			for i, l := range labels {
				fmt.Fprintf(out, "%d\t%d\t%.3f\t%d\n", i, l, votes[i].Positive, votes[i].Count)
			}
			if truthPath != "" {
				return printRates(out, labels, truthPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noise, "noise", false, "Break ties with uniform noise")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Seed for tie-breaking noise")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on malformed label lines instead of skipping them")
	cmd.Flags().StringVar(&truthPath, "truth", "", "Ground truth YAML from 'cubam generate' to score against")
	return cmd
}
