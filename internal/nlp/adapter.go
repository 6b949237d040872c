// Package nlp adapts a problem.Evaluator to a nonlinear-solver callback
// protocol shaped after IPOPT's TNLP interface: get_nlp_info,
// get_bounds_info, get_starting_point, eval_f/eval_grad_f/eval_g/
// eval_jac_g (structure pass when vals is nil, value pass otherwise),
// and finalize_solution.
package nlp

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/rt-planning/trots-eval/internal/entry"
	"github.com/rt-planning/trots-eval/internal/problem"
)

// Bound +/- this magnitude is treated as infinite by solvers shaped like
// IPOPT (anything with |bound| > 1e19).
const (
	negInf = -1e20
	posInf = 1e20
)

// Adapter wraps any problem.Evaluator, a single-process Problem or a
// distributed cluster.Coordinator, as a TNLP-shaped callback surface.
type Adapter struct {
	eval problem.Evaluator
}

// NewAdapter wraps eval.
func NewAdapter(eval problem.Evaluator) *Adapter {
	return &Adapter{eval: eval}
}

// Info is the static problem-size information get_nlp_info reports.
type Info struct {
	NumVars    int
	NumCons    int
	NnzJacG    int
	NnzHessLag int // n*n/2, matching the original driver; the Hessian itself is never built (quasi-Newton)
}

// GetNLPInfo reports the problem's fixed dimensions.
func (a *Adapter) GetNLPInfo() Info {
	n := a.eval.NumVars()
	return Info{
		NumVars:    n,
		NumCons:    a.eval.NumConstraints(),
		NnzJacG:    a.eval.NnzJacCons(),
		NnzHessLag: n * n / 2,
	}
}

// GetBoundsInfo fills variable and constraint bounds. Variables are
// bounded below by zero (beamlet intensities cannot be negative) and
// unbounded above. A constraint's bound direction follows its function
// type: Min and Max constraints (and any constraint entry explicitly
// marked as a minimisation) are bounded above by zero, everything else
// is bounded below by zero.
func (a *Adapter) GetBoundsInfo(xLo, xHi []float64, gLo, gHi []float64) {
	for i := range xLo {
		xLo[i] = 0.0
		xHi[i] = posInf
	}
	for j := range gLo {
		ft := a.eval.ConstraintFunctionType(j)
		if a.eval.ConstraintIsMinimise(j) || ft == entry.Min || ft == entry.Max {
			gLo[j] = negInf
			gHi[j] = 0.0
		} else {
			gLo[j] = 0.0
			gHi[j] = posInf
		}
	}
}

// ltcpScaleCeiling is the threshold the starting-point heuristic scales
// x against: every LTCP objective's value must fall at or below this
// before the initial iterate is accepted.
const ltcpScaleCeiling = 1500.0

// ltcpScaleFactor is the multiplier applied to every component of x on
// each iteration of the starting-point heuristic.
const ltcpScaleFactor = 1.5

// GetStartingPoint fills an initial iterate for x, and zero/one defaults
// for the bound multipliers and constraint multipliers the solver also
// wants initialized. x starts uniform at 100 and is scaled up by 1.5x
// repeatedly until every LTCP objective entry's value is at or below
// 1500, the "simple" initialization strategy for tumour-control
// objectives, which otherwise start implausibly large.
func (a *Adapter) GetStartingPoint(x []float64, zLo, zHi []float64, lambda []float64) {
	for i := range x {
		x[i] = 100.0
	}

	ltcpIdx := []int{}
	types := a.eval.ObjectiveFunctionTypes()
	for i, t := range types {
		if t == entry.LTCP {
			ltcpIdx = append(ltcpIdx, i)
		}
	}

	if p, ok := a.eval.(objectiveValuer); ok && len(ltcpIdx) > 0 {
		for anyExceeds(p, ltcpIdx, x) {
			for i := range x {
				x[i] *= ltcpScaleFactor
			}
		}
	}

	for i := range zLo {
		zLo[i] = 0.0
		zHi[i] = 0.0
	}
	for j := range lambda {
		lambda[j] = 1.0
	}
}

// objectiveValuer is satisfied by evaluators that can report individual
// objective-entry values, needed by the LTCP starting-point heuristic.
// problem.Problem satisfies it directly; cluster.Coordinator satisfies it
// through its embedded Problem, so the heuristic evaluates the entries
// held on rank 0 rather than asking the workers. Any other evaluator
// skips the heuristic and x keeps its uniform start.
type objectiveValuer interface {
	ObjectiveEntryValue(i int, x []float64) float64
}

func anyExceeds(p objectiveValuer, idxs []int, x []float64) bool {
	for _, i := range idxs {
		if p.ObjectiveEntryValue(i, x) > ltcpScaleCeiling {
			return true
		}
	}
	return false
}

// EvalF computes the objective value.
func (a *Adapter) EvalF(x []float64) float64 {
	return a.eval.CalcObjective(x)
}

// EvalGradF computes the objective gradient.
func (a *Adapter) EvalGradF(x []float64, gradF []float64) {
	a.eval.CalcObjGradient(x, gradF)
}

// EvalG computes the constraint values.
func (a *Adapter) EvalG(x []float64, g []float64) {
	a.eval.CalcConstraints(x, g)
}

// EvalJacG either reports the Jacobian's sparsity structure (when vals
// is nil) or its values at x, mirroring the structure-pass/value-pass
// split of the callback protocol this package is shaped after.
func (a *Adapter) EvalJacG(x []float64, rows, cols []int, vals []float64) {
	if vals == nil {
		r, c := a.eval.JacobianStructure()
		copy(rows, r)
		copy(cols, c)
		return
	}
	a.eval.CalcJacobianVals(x, vals)
}

// SolveStatus mirrors the handful of termination states a solver can
// report to finalize_solution-shaped callbacks; the adapter only needs
// enough of them to log something meaningful.
type SolveStatus int

const (
	StatusSuccess SolveStatus = iota
	StatusMaxIterations
	StatusError
)

func (s SolveStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusMaxIterations:
		return "max iterations exceeded"
	default:
		return "error"
	}
}

// FinalizeSolution writes the final iterate to path as a flat
// little-endian float64 array, matching the solution-dump format the
// original driver used for downstream plan evaluation.
func (a *Adapter) FinalizeSolution(status SolveStatus, x []float64, objVal float64, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("nlp: finalize solution: %w", err)
	}
	defer f.Close()

	for _, xi := range x {
		if err := binary.Write(f, binary.LittleEndian, xi); err != nil {
			return fmt.Errorf("nlp: finalize solution: write %q: %w", path, err)
		}
	}
	return nil
}
