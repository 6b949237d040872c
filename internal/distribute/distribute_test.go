package distribute

import "testing"

type fakeEntry struct{ nnz int }

func (f fakeEntry) NNZ() int { return f.nnz }

func TestDistributeRankZeroEmpty(t *testing.T) {
	entries := []Weighted{fakeEntry{10}, fakeEntry{20}, fakeEntry{5}}
	perRank := Distribute(entries, 3)
	if len(perRank[0]) != 0 {
		t.Errorf("rank 0 assignments = %v, want empty", perRank[0])
	}
}

func TestDistributeCoversAllEntries(t *testing.T) {
	entries := []Weighted{fakeEntry{10}, fakeEntry{20}, fakeEntry{5}, fakeEntry{7}}
	perRank := Distribute(entries, 3)
	seen := make(map[int]bool)
	for _, rank := range perRank {
		for _, idx := range rank {
			if seen[idx] {
				t.Errorf("entry %d assigned more than once", idx)
			}
			seen[idx] = true
		}
	}
	if len(seen) != len(entries) {
		t.Errorf("assigned %d entries, want %d", len(seen), len(entries))
	}
}

func TestDistributeLoadBalance(t *testing.T) {
	// 64 entries over 4 worker ranks gives >= 8 entries per rank, enough
	// for LPT's 2x worst-case bound to hold in practice.
	entries := make([]Weighted, 0, 64)
	for i := 0; i < 64; i++ {
		entries = append(entries, fakeEntry{nnz: 10 + i})
	}
	numRanks := 5 // 4 workers, 16 entries each on average
	perRank := Distribute(entries, numRanks)

	var loads []int
	for r := 1; r < numRanks; r++ {
		var sum int
		for _, idx := range perRank[r] {
			sum += entries[idx].NNZ()
		}
		loads = append(loads, sum)
	}

	minLoad, maxLoad := loads[0], loads[0]
	for _, l := range loads {
		if l < minLoad {
			minLoad = l
		}
		if l > maxLoad {
			maxLoad = l
		}
	}
	if minLoad == 0 {
		t.Fatal("a worker received zero load")
	}
	if ratio := float64(maxLoad) / float64(minLoad); ratio > 2.0 {
		t.Errorf("max/min load ratio = %v, want <= 2.0", ratio)
	}
}

func TestDistributeSingleRank(t *testing.T) {
	entries := []Weighted{fakeEntry{10}}
	perRank := Distribute(entries, 1)
	if len(perRank) != 1 || len(perRank[0]) != 0 {
		t.Errorf("Distribute with numRanks=1 = %v, want [[]]", perRank)
	}
}

func TestMatricesForRank(t *testing.T) {
	dataIDs := map[int]int{0: 3, 1: 5, 2: 3}
	ids := MatricesForRank([]int{0, 1, 2}, func(i int) int { return dataIDs[i] })
	if len(ids) != 2 {
		t.Errorf("MatricesForRank = %v, want 2 distinct ids", ids)
	}
}
