// Package distribute implements the load distributor: it partitions
// entries across worker ranks so each worker's cumulative matrix-nonzero
// workload is balanced, using greedy longest-processing-time-first
// (LPT) bin packing.
package distribute

import "sort"

// Weighted is anything the distributor can assign a workload weight to,
// satisfied by *entry.Entry via its NNZ() method. The interface keeps
// this package free of a dependency on internal/entry.
type Weighted interface {
	NNZ() int
}

// Assignment is the distributor's result for one entry sequence: for
// each entry index (into the original slice passed to Distribute),
// Rank is the worker rank (1..R-1) it was assigned to. Rank 0, the
// coordinator, never receives entries.
type Assignment struct {
	EntryIndex int
	Rank       int
}

// Distribute assigns each entry in entries to a rank in [1, numRanks)
// using greedy LPT: entries are sorted by NNZ() descending, then each is
// given to whichever worker currently has the smallest cumulative NNZ.
// It returns, for rank r, the sorted list of original entry indices
// assigned to it; rank 0's list is always empty.
func Distribute(entries []Weighted, numRanks int) [][]int {
	perRank := make([][]int, numRanks)
	if numRanks <= 1 {
		return perRank
	}

	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return entries[order[a]].NNZ() > entries[order[b]].NNZ()
	})

	load := make([]int, numRanks) // load[0] stays 0 and is never chosen
	for _, idx := range order {
		best := 1
		for r := 2; r < numRanks; r++ {
			if load[r] < load[best] {
				best = r
			}
		}
		perRank[best] = append(perRank[best], idx)
		load[best] += entries[idx].NNZ()
	}

	for r := range perRank {
		sort.Ints(perRank[r])
	}
	return perRank
}

// MatricesForRank returns the set of distinct data ids a rank needs,
// given the entries assigned to it. dataIDOf extracts the data id for
// an original entry index.
func MatricesForRank(assigned []int, dataIDOf func(entryIndex int) int) []int {
	seen := make(map[int]bool)
	var ids []int
	for _, idx := range assigned {
		id := dataIDOf(idx)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
