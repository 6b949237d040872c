package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rt-planning/trots-eval/internal/archive"
	"github.com/rt-planning/trots-eval/internal/diag"
	"github.com/rt-planning/trots-eval/internal/distribute"
	"github.com/rt-planning/trots-eval/internal/problem"
)

var plotOutPath string

var plotCmd = &cobra.Command{
	Use:   "plot <archive_path>",
	Short: "Render the per-rank load-balance chart for a problem archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlot,
}

func init() {
	plotCmd.Flags().StringVar(&plotOutPath, "out", "load.png", "Output PNG path")
	plotCmd.Flags().IntVar(&numWorkerRanks, "ranks", 4, "Number of simulated worker ranks")
	rootCmd.AddCommand(plotCmd)
}

func runPlot(cmd *cobra.Command, args []string) error {
	loader := archive.NewJSONLoader()
	a, err := loader.Load(args[0])
	if err != nil {
		return fmt.Errorf("plot: %w", err)
	}

	p, err := problem.New(a)
	if err != nil {
		return fmt.Errorf("plot: %w", err)
	}

	numRanks := numWorkerRanks + 1
	all := make([]distribute.Weighted, 0, len(p.ObjectiveEntries())+len(p.ConstraintEntries()))
	for _, e := range p.ObjectiveEntries() {
		all = append(all, e)
	}
	for _, e := range p.ConstraintEntries() {
		all = append(all, e)
	}
	assigned := distribute.Distribute(all, numRanks)

	loads := make([]diag.RankLoad, 0, numWorkerRanks)
	for r := 1; r < numRanks; r++ {
		nnz := 0
		for _, idx := range assigned[r] {
			nnz += all[idx].NNZ()
		}
		loads = append(loads, diag.RankLoad{Rank: r, NNZ: nnz})
	}

	if err := diag.PlotRankLoad(loads, "per-rank workload", plotOutPath); err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	fmt.Printf("Wrote %s\n", plotOutPath)
	return nil
}
