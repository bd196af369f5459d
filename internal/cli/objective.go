package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/happyhackingspace/cubam/model"
)

func (c *CLI) newObjectiveCommand() *cobra.Command {
	var opts modelOptions

	cmd := &cobra.Command{
		Use:   "objective <labels>",
		Short: "Print the negated log-posterior at the initial parameters",
		Args:  cobra.ExactArgs(1),
		Example: `  cubam objective labels.txt
  cubam objective labels.txt --model vector --dim 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			obj, err := m.Objective()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printSummary(out, m)
			fmt.Fprintf(out, "objective: %.6f\n", obj)
			return nil
		},
	}

	opts.register(cmd)
	return cmd
}

func (c *CLI) newGradientCommand() *cobra.Command {
	var opts modelOptions

	cmd := &cobra.Command{
		Use:     "gradient <labels>",
		Short:   "Print the objective gradient at the initial parameters",
		Args:    cobra.ExactArgs(1),
		Example: `  cubam gradient labels.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			grad := make([]float64, m.ItemParamLen()+m.WorkerParamLen())
			if err := m.Gradient(grad); err != nil {
				return err
			}
			printGradient(cmd.OutOrStdout(), m, grad)
			return nil
		},
	}

	opts.register(cmd)
	return cmd
}

func printSummary(w io.Writer, m model.Model) {
	fmt.Fprintf(w, "model: %s (dim %d)\n", m.Name(), m.Dim())
	fmt.Fprintf(w, "images: %d  workers: %d  labels: %d\n", m.NumItems(), m.NumWorkers(), m.NumLabels())
}

// printGradient writes one line per parameter, grouped by block.
func printGradient(w io.Writer, m model.Model, grad []float64) {
	d := m.Dim()
	nx := m.ItemParamLen()
	nw := m.NumWorkers() * d

	fmt.Fprintf(w, "# images\n")
	for i := range m.NumItems() {
		fmt.Fprintf(w, "%d\t%s\n", i, joinFloats(grad[i*d:(i+1)*d]))
	}
	fmt.Fprintf(w, "# competences\n")
	for j := range m.NumWorkers() {
		fmt.Fprintf(w, "%d\t%s\n", j, joinFloats(grad[nx+j*d:nx+(j+1)*d]))
	}
	fmt.Fprintf(w, "# biases\n")
	for j := range m.NumWorkers() {
		fmt.Fprintf(w, "%d\t%.6f\n", j, grad[nx+nw+j])
	}
}

func joinFloats(xs []float64) string {
	s := ""
	for k, x := range xs {
		if k > 0 {
			s += " "
		}
		s += fmt.Sprintf("%.6f", x)
	}
	return s
}
