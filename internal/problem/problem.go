// Package problem implements the problem aggregator: it owns every
// matrix artifact and entry, sums weighted objective values and
// gradients, and produces the constraint vector and Jacobian in the
// solver's expected sparse layout.
package problem

import (
	"fmt"

	"github.com/rt-planning/trots-eval/internal/archive"
	"github.com/rt-planning/trots-eval/internal/entry"
	"github.com/rt-planning/trots-eval/internal/sparsemat"
)

// Evaluator is the callback surface the solver adapter drives. Both a
// single-process Problem and a distributed cluster.Coordinator satisfy
// it, so internal/nlp.Adapter can wrap either.
type Evaluator interface {
	NumVars() int
	NumConstraints() int
	NnzJacCons() int
	JacobianStructure() (rows, cols []int)
	ConstraintIsMinimise(j int) bool
	ConstraintFunctionType(j int) entry.FunctionType
	ObjectiveFunctionTypes() []entry.FunctionType
	CalcObjective(x []float64) float64
	CalcObjGradient(x []float64, grad []float64)
	CalcConstraints(x []float64, g []float64)
	CalcJacobianVals(x []float64, vals []float64)
}

// Problem owns the matrix artifacts (by data id) and the two ordered
// entry sequences. It is immutable after construction except for
// entries' own scratch buffers.
type Problem struct {
	numVars     int
	matrices    map[int]sparsemat.Artifact
	matrixMetas map[int]archive.MatrixMeta
	objective   []*entry.Entry
	constraint  []*entry.Entry
	nnzJacCons  int
}

// New constructs a Problem from an already-loaded archive.
func New(a *archive.Archive) (*Problem, error) {
	p := &Problem{
		numVars:     a.NumVars,
		matrices:    a.Matrices,
		matrixMetas: a.MatrixMetas,
	}

	for i, d := range a.Entries {
		artifact, ok := a.Matrices[d.DataID]
		if !ok {
			return nil, fmt.Errorf("problem: entry %d (%q) references unknown data id %d", i, d.Name, d.DataID)
		}
		meta := a.MatrixMetas[d.DataID]

		e, err := entry.New(entry.Descriptor{
			ROIName:      d.Name,
			DataID:       d.DataID,
			Minimise:     d.Minimise,
			Active:       d.Active,
			IsConstraint: d.IsConstraint,
			RHS:          d.RHS,
			RawType:      d.Type,
			Weight:       d.Weight,
			Parameters:   d.Parameters,
		}, artifact, meta.Name, meta.C)
		if err != nil {
			return nil, fmt.Errorf("problem: failed to construct entry %d (%q): %w", i, d.Name, err)
		}
		if e.NumVars != p.numVars {
			return nil, fmt.Errorf("problem: entry %q has num_vars %d, want %d", d.Name, e.NumVars, p.numVars)
		}

		if e.IsConstraint {
			p.constraint = append(p.constraint, e)
		} else {
			p.objective = append(p.objective, e)
		}
	}

	for _, c := range p.constraint {
		if c.Active {
			p.nnzJacCons += len(c.GradNonzeroIdxs())
		}
	}

	return p, nil
}

// NumVars is the problem-wide number of decision variables.
func (p *Problem) NumVars() int { return p.numVars }

// NumConstraints is the number of constraint entries, active or not;
// the solver sees a fixed-size constraint vector.
func (p *Problem) NumConstraints() int { return len(p.constraint) }

// NnzJacCons is Σ|grad_nonzero_idxs| over active constraint entries.
func (p *Problem) NnzJacCons() int { return p.nnzJacCons }

// MatrixArtifact returns the matrix or mean-vector artifact stored
// under dataID, used by cluster setup to transport exactly the matrices
// a given worker's share of entries references.
func (p *Problem) MatrixArtifact(dataID int) (sparsemat.Artifact, bool) {
	a, ok := p.matrices[dataID]
	return a, ok
}

// MatrixMeta returns the display name and Quadratic constant archived
// for dataID, used by cluster setup to carry both over the wire so a
// worker reconstructs the same Entry.C a single-process Problem would.
func (p *Problem) MatrixMeta(dataID int) (archive.MatrixMeta, bool) {
	m, ok := p.matrixMetas[dataID]
	return m, ok
}

// ObjectiveEntryValue evaluates a single objective entry by its
// declaration index, unweighted. The solver adapter's starting-point
// heuristic uses this to probe LTCP objectives without evaluating the
// whole problem.
func (p *Problem) ObjectiveEntryValue(i int, x []float64) float64 {
	return p.objective[i].Value(x)
}

// ObjectiveEntries exposes the objective entries in declaration order.
func (p *Problem) ObjectiveEntries() []*entry.Entry { return p.objective }

// ConstraintEntries exposes the constraint entries in declaration order.
func (p *Problem) ConstraintEntries() []*entry.Entry { return p.constraint }

// ConstraintIsMinimise reports the Minimise flag of constraint j, used
// by the solver adapter's bounds computation.
func (p *Problem) ConstraintIsMinimise(j int) bool { return p.constraint[j].Minimise }

// ConstraintFunctionType reports the function type of constraint j.
func (p *Problem) ConstraintFunctionType(j int) entry.FunctionType { return p.constraint[j].Type }

// ObjectiveFunctionTypes reports the function type of every objective
// entry, in declaration order, used by the solver adapter to find the
// LTCP objectives for starting-point initialization.
func (p *Problem) ObjectiveFunctionTypes() []entry.FunctionType {
	types := make([]entry.FunctionType, len(p.objective))
	for i, e := range p.objective {
		types[i] = e.Type
	}
	return types
}

// JacobianStructure returns the Jacobian's declared sparsity pattern:
// for active constraint j, one (row=j, col) pair per entry in
// grad_nonzero_idxs(j), in that order. This is what eval_jac_g reports
// when its vals argument is nil.
func (p *Problem) JacobianStructure() (rows, cols []int) {
	rows = make([]int, 0, p.nnzJacCons)
	cols = make([]int, 0, p.nnzJacCons)
	for j, c := range p.constraint {
		if !c.Active {
			continue
		}
		for _, col := range c.GradNonzeroIdxs() {
			rows = append(rows, j)
			cols = append(cols, col)
		}
	}
	return rows, cols
}

// CalcObjective returns Σ wᵢ·fᵢ(x) over active objective entries.
func (p *Problem) CalcObjective(x []float64) float64 {
	var sum float64
	for _, e := range p.objective {
		if !e.Active {
			continue
		}
		sum += e.Weight * e.Value(x)
	}
	return sum
}

// CalcObjGradient zeroes out, then accumulates Σ wᵢ·∇fᵢ(x) over active
// objective entries into out, using one shared temporary dense gradient
// buffer across every entry.
func (p *Problem) CalcObjGradient(x []float64, out []float64) {
	for i := range out {
		out[i] = 0
	}
	tmp := make([]float64, p.numVars)
	for _, e := range p.objective {
		if !e.Active {
			continue
		}
		// Gradient is always computed from a fresh x here: the preceding
		// Value call (if any) belongs to the caller, not this loop, so
		// no cached-dose reuse is safe across distinct entries.
		e.Gradient(x, tmp, false)
		for i, v := range tmp {
			out[i] += e.Weight * v
		}
	}
}

// CalcConstraints writes fⱼ(x) for every constraint entry, in
// declaration order, into out. Inactive entries write 0. No weight is
// applied to a constraint's value, unlike an objective term.
func (p *Problem) CalcConstraints(x []float64, out []float64) {
	for j, e := range p.constraint {
		if !e.Active {
			out[j] = 0
			continue
		}
		out[j] = e.Value(x)
	}
}

// CalcJacobianVals writes the sparse gradient values for every active
// constraint, concatenated in declaration order and ordered within each
// constraint by grad_nonzero_idxs, matching the structure returned by
// JacobianStructure.
func (p *Problem) CalcJacobianVals(x []float64, out []float64) {
	dense := make([]float64, p.numVars)
	pos := 0
	for _, e := range p.constraint {
		if !e.Active {
			continue
		}
		n := len(e.GradNonzeroIdxs())
		e.SparseGradient(x, dense, out[pos:pos+n], false)
		pos += n
	}
}
