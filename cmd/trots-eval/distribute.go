package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rt-planning/trots-eval/internal/archive"
	"github.com/rt-planning/trots-eval/internal/cluster"
	"github.com/rt-planning/trots-eval/internal/distribute"
	"github.com/rt-planning/trots-eval/internal/problem"
)

var numWorkerRanks int

var distributeCmd = &cobra.Command{
	Use:   "distribute <archive_path>",
	Short: "Evaluate a problem archive across simulated worker ranks",
	Long: `distribute partitions a problem's entries across the given number of
simulated worker ranks with greedy longest-processing-time-first load
balancing, runs one coordinator/worker evaluation round in-process over
channel-based transport, and reports the objective and constraint values it
gathered back.`,
	Args: cobra.ExactArgs(1),
	RunE: runDistribute,
}

func init() {
	distributeCmd.Flags().IntVar(&numWorkerRanks, "ranks", 4, "Number of simulated worker ranks")
	rootCmd.AddCommand(distributeCmd)
}

func runDistribute(cmd *cobra.Command, args []string) error {
	path := args[0]

	loader := archive.NewJSONLoader()
	a, err := loader.Load(path)
	if err != nil {
		return fmt.Errorf("distribute: %w", err)
	}

	p, err := problem.New(a)
	if err != nil {
		return fmt.Errorf("distribute: %w", err)
	}

	numRanks := numWorkerRanks + 1
	objWeighted := make([]distribute.Weighted, len(p.ObjectiveEntries()))
	for i, e := range p.ObjectiveEntries() {
		objWeighted[i] = e
	}
	consWeighted := make([]distribute.Weighted, len(p.ConstraintEntries()))
	for i, e := range p.ConstraintEntries() {
		consWeighted[i] = e
	}
	objAssigned := distribute.Distribute(objWeighted, numRanks)
	consAssigned := distribute.Distribute(consWeighted, numRanks)

	for r := 1; r < numRanks; r++ {
		slog.Info("rank assignment", "rank", r, "objective_entries", len(objAssigned[r]), "constraint_entries", len(consAssigned[r]))
	}

	hub := cluster.NewHub(numWorkerRanks)
	coord := cluster.NewCoordinator(p, hub.Coordinator(), objAssigned, consAssigned)

	done := make(chan error, numWorkerRanks)
	for r := 1; r <= numWorkerRanks; r++ {
		go func(r int) { done <- cluster.RunWorker(r, hub.Worker(r)) }(r)
	}
	coord.SendSetup()

	x := make([]float64, p.NumVars())
	for i := range x {
		x[i] = 100.0
	}

	objVal := coord.CalcObjective(x)
	g := make([]float64, p.NumConstraints())
	coord.CalcConstraints(x, g)

	fmt.Printf("Obj_val: %g\n", objVal)
	fmt.Printf("Cons vals: %v\n", g)

	coord.Shutdown()
	for r := 1; r <= numWorkerRanks; r++ {
		if err := <-done; err != nil {
			return fmt.Errorf("distribute: worker %d: %w", r, err)
		}
	}

	return nil
}
