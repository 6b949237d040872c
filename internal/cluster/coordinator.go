package cluster

import (
	"fmt"

	"github.com/rt-planning/trots-eval/internal/archive"
	"github.com/rt-planning/trots-eval/internal/entry"
	"github.com/rt-planning/trots-eval/internal/problem"
	"github.com/rt-planning/trots-eval/internal/sparsemat"
)

// Coordinator is rank 0 of a distributed evaluator: it embeds a Problem
// for its metadata (NumVars, JacobianStructure, ...) but overrides the
// four compute methods to broadcast the iterate to worker ranks and
// reduce their contributions instead of evaluating entries itself.
type Coordinator struct {
	*problem.Problem

	transport CoordinatorSide
	numRanks  int // numWorkers + 1, rank 0 included

	// assigned[r] holds the global objective/constraint indices rank r
	// owns, mirroring distribute.Distribute's output. assigned[0] is
	// always empty: the coordinator never evaluates entries itself.
	objAssigned  [][]int
	consAssigned [][]int

	// jacOffset[j] is the starting position of constraint j's segment in
	// the flat Jacobian values array, precomputed once so gathered
	// per-rank segments can be spliced back without recomputing the
	// prefix sum on every call.
	jacOffset []int
}

// NewCoordinator builds a Coordinator that drives the given workers over
// transport. objAssigned and consAssigned are 1-indexed by rank (index 0
// unused) and come from distribute.Distribute applied separately to the
// problem's objective and constraint entries.
func NewCoordinator(p *problem.Problem, transport CoordinatorSide, objAssigned, consAssigned [][]int) *Coordinator {
	c := &Coordinator{
		Problem:      p,
		transport:    transport,
		numRanks:     transport.NumWorkers() + 1,
		objAssigned:  objAssigned,
		consAssigned: consAssigned,
	}

	cons := p.ConstraintEntries()
	c.jacOffset = make([]int, len(cons)+1)
	for j, e := range cons {
		n := 0
		if e.Active {
			n = len(e.GradNonzeroIdxs())
		}
		c.jacOffset[j+1] = c.jacOffset[j] + n
	}

	return c
}

// SendSetup ships every worker rank its share of matrices and entries.
// It must be called once, before the first evaluator-loop call.
func (c *Coordinator) SendSetup() {
	objEntries := c.Problem.ObjectiveEntries()
	consEntries := c.Problem.ConstraintEntries()

	for r := 1; r < c.numRanks; r++ {
		needed := map[int]bool{}
		for _, i := range c.objAssigned[r] {
			needed[objEntries[i].DataID] = true
		}
		for _, j := range c.consAssigned[r] {
			needed[consEntries[j].DataID] = true
		}

		matrices := make([]MatrixWireMsg, 0, len(needed))
		for dataID := range needed {
			artifact, ok := c.Problem.MatrixArtifact(dataID)
			if !ok {
				panic(fmt.Errorf("cluster: coordinator has no artifact for data id %d", dataID))
			}
			meta, _ := c.Problem.MatrixMeta(dataID)
			matrices = append(matrices, encodeArtifact(dataID, artifact, meta))
		}

		entries := EntriesMsg{
			Objective:  make([]EntryWireMsg, len(c.objAssigned[r])),
			Constraint: make([]EntryWireMsg, len(c.consAssigned[r])),
		}
		for k, i := range c.objAssigned[r] {
			entries.Objective[k] = entryToWire(objEntries[i], i)
		}
		for k, j := range c.consAssigned[r] {
			entries.Constraint[k] = entryToWire(consEntries[j], j)
		}

		c.transport.SendTo(r, encode(MatricesMsg{Matrices: matrices}))
		c.transport.SendTo(r, encode(entries))
	}
}

func entryToWire(e *entry.Entry, globalIndex int) EntryWireMsg {
	return EntryWireMsg{
		Name:         e.ROIName,
		DataID:       e.DataID,
		Type:         e.Type,
		Minimise:     e.Minimise,
		Active:       e.Active,
		IsConstraint: e.IsConstraint,
		RHS:          e.RHS,
		Weight:       e.Weight,
		Parameters:   e.Parameters,
		NumVars:      e.NumVars,
		GlobalIndex:  globalIndex,
	}
}

func encodeArtifact(dataID int, a sparsemat.Artifact, meta archive.MatrixMeta) MatrixWireMsg {
	switch v := a.(type) {
	case *sparsemat.MeanVector:
		return MatrixWireMsg{DataID: dataID, Name: meta.Name, C: meta.C, IsVector: true, Vector: v.Data()}
	case *sparsemat.CSR:
		return MatrixWireMsg{
			DataID:   dataID,
			Name:     meta.Name,
			C:        meta.C,
			Cols:     v.Cols(),
			Values:   v.Values(),
			ColIndex: v.ColIndex(),
			RowPtr:   v.RowPtr(),
		}
	default:
		panic(fmt.Errorf("cluster: unsupported artifact type %T", a))
	}
}

// CalcObjective broadcasts TagEvalObj and sums the workers' partial
// weighted sums.
func (c *Coordinator) CalcObjective(x []float64) float64 {
	c.transport.Broadcast(encode(BroadcastMsg{Tag: TagEvalObj, X: x}))
	var sum float64
	for _, payload := range c.transport.GatherAll() {
		var v float64
		if err := decode(payload, &v); err != nil {
			panic(fmt.Errorf("cluster: decode objective contribution: %w", err))
		}
		sum += v
	}
	return sum
}

// CalcObjGradient broadcasts TagEvalObjGrad and sums the workers'
// partial dense gradients elementwise.
func (c *Coordinator) CalcObjGradient(x []float64, out []float64) {
	c.transport.Broadcast(encode(BroadcastMsg{Tag: TagEvalObjGrad, X: x}))
	for i := range out {
		out[i] = 0
	}
	for _, payload := range c.transport.GatherAll() {
		var partial []float64
		if err := decode(payload, &partial); err != nil {
			panic(fmt.Errorf("cluster: decode gradient contribution: %w", err))
		}
		for i, v := range partial {
			out[i] += v
		}
	}
}

// CalcConstraints broadcasts TagEvalCons and places each worker's
// (global index, value) pairs into out.
func (c *Coordinator) CalcConstraints(x []float64, out []float64) {
	for j := range out {
		out[j] = 0
	}
	c.transport.Broadcast(encode(BroadcastMsg{Tag: TagEvalCons, X: x}))
	for _, payload := range c.transport.GatherAll() {
		var contributions []ConstraintContribution
		if err := decode(payload, &contributions); err != nil {
			panic(fmt.Errorf("cluster: decode constraint contribution: %w", err))
		}
		for _, ct := range contributions {
			out[ct.GlobalIndex] = ct.Value
		}
	}
}

// CalcJacobianVals broadcasts TagEvalJac and splices each worker's flat
// segment of Jacobian values back into out at the positions
// JacobianStructure declared for its assigned constraints.
func (c *Coordinator) CalcJacobianVals(x []float64, out []float64) {
	c.transport.Broadcast(encode(BroadcastMsg{Tag: TagEvalJac, X: x}))
	for r, payload := range c.transport.GatherAll() {
		var seg jacSegment
		if err := decode(payload, &seg); err != nil {
			panic(fmt.Errorf("cluster: decode jacobian contribution: %w", err))
		}
		pos := 0
		for _, j := range c.consAssigned[r+1] {
			n := c.jacOffset[j+1] - c.jacOffset[j]
			copy(out[c.jacOffset[j]:c.jacOffset[j]+n], seg.Values[pos:pos+n])
			pos += n
		}
	}
}

// jacSegment is a worker's flat, concatenated Jacobian values for its
// assigned constraints, in the same order as its EntriesMsg.Constraint.
type jacSegment struct {
	Values []float64
}

// Shutdown broadcasts TagShutdown so every worker's RunWorker loop
// returns.
func (c *Coordinator) Shutdown() {
	c.transport.Broadcast(encode(BroadcastMsg{Tag: TagShutdown}))
}
