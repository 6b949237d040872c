package main

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rt-planning/trots-eval/internal/archive"
	"github.com/rt-planning/trots-eval/internal/nlp"
	"github.com/rt-planning/trots-eval/internal/problem"
)

var probeOutPath string

var probeCmd = &cobra.Command{
	Use:   "probe <archive_path>",
	Short: "Load a problem archive and report objective/constraint values at a fixed test point",
	Long: `probe loads a treatment-plan problem archive, builds its objective and
constraint callbacks, evaluates them at the uniform test point x=100 (the
same sanity check the original driver ran before handing the problem to a
solver), and, when --dump is given, writes the test point to that path in
the solver's dump format.

This repo does not embed a nonlinear solver: driving the callbacks to
convergence is left to an external collaborator through internal/nlp's
adapter.`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&probeOutPath, "dump", "", "Write the test point to this path in little-endian float64 format")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	runID := uuid.New().String()
	path := args[0]

	loader := archive.NewJSONLoader()
	a, err := loader.Load(path)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}

	p, err := problem.New(a)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}

	slog.Info("loaded archive", "run_id", runID, "path", path, "num_vars", p.NumVars(), "num_constraints", p.NumConstraints())

	x := make([]float64, p.NumVars())
	for i := range x {
		x[i] = 100.0
	}

	adapter := nlp.NewAdapter(p)
	objVal := adapter.EvalF(x)
	g := make([]float64, p.NumConstraints())
	adapter.EvalG(x, g)

	fmt.Printf("Obj_val: %g\n", objVal)
	fmt.Printf("Cons vals: %v\n", g)

	if probeOutPath != "" {
		if err := adapter.FinalizeSolution(nlp.StatusSuccess, x, objVal, probeOutPath); err != nil {
			return fmt.Errorf("probe: %w", err)
		}
		slog.Info("wrote test point", "path", probeOutPath)
	}

	return nil
}
