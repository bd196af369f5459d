package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/cubam/internal/dataio"
)

func (c *CLI) newNormalizeCommand() *cobra.Command {
	var skipFirst bool

	cmd := &cobra.Command{
		Use:   "normalize <input> <output-prefix>",
		Short: "Re-index raw image/worker ids from 0 and write the id mapping",
		Args:  cobra.ExactArgs(2),
		Example: `  cubam normalize raw.txt data/birds
  cubam normalize export.txt data/ducks --skip-first`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, prefix := args[0], args[1]
			ds, err := dataio.NormalizeFile(in, prefix, skipFirst)
			if err != nil {
				return err
			}
			slog.Info("Labels normalized", "output", prefix+".txt", "mapping", dataio.MappingPath(prefix),
				"images", ds.NumItems, "workers", ds.NumWorkers, "labels", ds.NumLabels())
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipFirst, "skip-first", false, "Skip the first line of the input")
	return cmd
}
