// Package entry implements the per-term objective/constraint evaluator:
// one weighted function over a region of interest, sharing a matrix or
// mean-vector artifact owned by the problem.
package entry

import (
	"fmt"
	"math"

	"github.com/rt-planning/trots-eval/internal/sparsemat"
)

// Descriptor carries the archive fields needed to construct an Entry,
// independent of how the archive itself is stored.
type Descriptor struct {
	ROIName      string
	DataID       int
	Minimise     bool
	Active       bool
	IsConstraint bool
	RHS          float64 // archive's "Objective" field
	RawType      int     // archive type id, 1-based
	Weight       float64
	Parameters   []float64
}

// Entry is one weighted objective or constraint term. It holds exactly
// one of {matrix, meanVec} and never mutates after construction except
// for its scratch buffers yVec/gradTmp, which are "as if" stack
// scratch: callers must never observe them across calls and must never
// call into the same Entry concurrently.
type Entry struct {
	ROIName      string
	DataID       int
	Type         FunctionType
	IsConstraint bool
	Minimise     bool
	Active       bool
	RHS          float64
	Weight       float64
	Parameters   []float64
	C            float64 // Quadratic constant, read from the matrix artifact
	NumVars      int

	gradNonzeroIdxs []int

	matrix  *sparsemat.CSR
	meanVec *sparsemat.MeanVector

	yVec    []float64
	gradTmp []float64
}

// New constructs an Entry from its descriptor and the matrix artifact it
// references (already resolved by the caller via DataID). matrixC is
// the Quadratic constant looked up from the archive's per-matrix
// metadata; it is ignored for every other function type.
func New(d Descriptor, artifact sparsemat.Artifact, matrixName string, matrixC float64) (*Entry, error) {
	var ft FunctionType
	if d.RawType == 1 {
		ft = ResolveLinearType(d.Minimise, matrixName)
	} else {
		ft = ResolveNonlinearType(d.RawType)
	}
	return NewWithType(d, ft, artifact, matrixC)
}

// NewWithType constructs an Entry when the function type has already
// been resolved elsewhere, the shape cluster transport uses, since the
// coordinator resolves the type once and sends it to the worker instead
// of re-resolving it from a raw archive type id.
func NewWithType(d Descriptor, ft FunctionType, artifact sparsemat.Artifact, matrixC float64) (*Entry, error) {
	e := &Entry{
		ROIName:      d.ROIName,
		DataID:       d.DataID,
		Type:         ft,
		IsConstraint: d.IsConstraint,
		Minimise:     d.Minimise,
		Active:       d.Active,
		RHS:          d.RHS,
		Weight:       d.Weight,
		Parameters:   d.Parameters,
	}

	switch v := artifact.(type) {
	case *sparsemat.CSR:
		e.matrix = v
		e.yVec = make([]float64, v.Rows())
		e.gradTmp = make([]float64, v.Rows())
		e.NumVars = v.Cols()
	case *sparsemat.MeanVector:
		e.meanVec = v
		e.NumVars = v.Len()
	default:
		return nil, fmt.Errorf("entry: unsupported matrix artifact type %T for data id %d", artifact, d.DataID)
	}

	if (e.Type == Mean) != (e.meanVec != nil) {
		return nil, fmt.Errorf("entry: function type %s for %q does not match artifact shape (mean vector present=%v)", e.Type, e.ROIName, e.meanVec != nil)
	}

	if e.Type == Quadratic {
		e.C = matrixC
	}

	e.gradNonzeroIdxs = e.calcGradNonzeroIdxs()
	return e, nil
}

// GradNonzeroIdxs returns the strictly ascending column indices that can
// produce a nonzero gradient component.
func (e *Entry) GradNonzeroIdxs() []int { return e.gradNonzeroIdxs }

func (e *Entry) calcGradNonzeroIdxs() []int {
	if e.Type == Mean {
		return e.meanVec.NonzeroIndices()
	}
	return e.matrix.NonzeroColumns()
}

// NNZ returns the workload weight the load distributor uses for this
// entry: the matrix's nonzero count, or the mean vector's length when
// there is no matrix (see DESIGN.md for why a Mean entry's length
// stands in for a nonzero count it doesn't otherwise have).
func (e *Entry) NNZ() int {
	if e.Type == Mean {
		return e.meanVec.Len()
	}
	return e.matrix.NNZ()
}

// dose computes y = A*x into the entry's scratch buffer and returns it.
// Callers that already hold a fresh y from a preceding Value call should
// pass cachedDose=true to Gradient/SparseGradient instead of calling
// this again.
func (e *Entry) dose(x []float64) []float64 {
	e.matrix.MulVec(e.yVec, x)
	return e.yVec
}

// Value computes f(x) for this entry's function type. Unknown or
// unimplemented types (DVH, Chain) return 0 rather than erroring.
func (e *Entry) Value(x []float64) float64 {
	switch e.Type {
	case Quadratic:
		return 0.5*e.matrix.QuadMul(x, e.yVec) + e.C
	case Min:
		return e.quadraticPenalty(x, false)
	case Max:
		return e.quadraticPenalty(x, true)
	case Mean:
		return e.meanVec.Dot(x)
	case GEUD:
		return e.geudValue(x)
	case LTCP:
		return e.ltcpValue(x)
	default:
		return 0
	}
}

// quadraticPenalty implements both Min ((1/m)Σmin(y-rhs,0)²) and Max
// ((1/m)Σmax(y-rhs,0)²); overdose is the `overdose=true` branch.
func (e *Entry) quadraticPenalty(x []float64, overdose bool) float64 {
	y := e.dose(x)
	var sum float64
	for _, yi := range y {
		diff := yi - e.RHS
		if overdose {
			diff = math.Max(diff, 0)
		} else {
			diff = math.Min(diff, 0)
		}
		sum += diff * diff
	}
	return sum / float64(len(y))
}

func (e *Entry) geudValue(x []float64) float64 {
	y := e.dose(x)
	a := e.Parameters[0]
	var sum float64
	for _, yi := range y {
		sum += math.Pow(math.Max(yi, 0), a)
	}
	return math.Pow(sum/float64(len(y)), 1/a)
}

func (e *Entry) ltcpValue(x []float64) float64 {
	y := e.dose(x)
	d := e.Parameters[0]
	alpha := e.Parameters[1]
	var sum float64
	for _, yi := range y {
		sum += math.Exp(-alpha * (yi - d))
	}
	return sum / float64(len(y))
}

// Gradient writes ∇f(x) into grad, which must have length NumVars. When
// cachedDose is true, the caller guarantees the entry's y scratch still
// holds A·x from an immediately preceding Value(x) call on the same x,
// letting Gradient skip recomputing the spmv.
func (e *Entry) Gradient(x []float64, grad []float64, cachedDose bool) {
	switch e.Type {
	case Quadratic:
		e.matrix.MulTransVec(grad, e.ensureDose(x, cachedDose))
	case Min:
		e.penaltyGradient(x, grad, cachedDose, false)
	case Max:
		e.penaltyGradient(x, grad, cachedDose, true)
	case Mean:
		copy(grad, e.meanVec.Data())
	case GEUD:
		e.geudGradient(x, grad, cachedDose)
	case LTCP:
		e.ltcpGradient(x, grad, cachedDose)
	default:
		for i := range grad {
			grad[i] = 0
		}
	}
}

func (e *Entry) ensureDose(x []float64, cachedDose bool) []float64 {
	if cachedDose {
		return e.yVec
	}
	return e.dose(x)
}

func (e *Entry) penaltyGradient(x []float64, grad []float64, cachedDose bool, overdose bool) {
	y := e.ensureDose(x, cachedDose)
	for i, yi := range y {
		diff := yi - e.RHS
		if overdose {
			diff = math.Max(diff, 0)
		} else {
			diff = math.Min(diff, 0)
		}
		e.gradTmp[i] = 2 * diff
	}
	e.matrix.MulTransVec(grad, e.gradTmp)
}

func (e *Entry) geudGradient(x []float64, grad []float64, cachedDose bool) {
	y := e.ensureDose(x, cachedDose)
	a := e.Parameters[0]
	m := float64(len(y))

	var powerSum float64
	for _, yi := range y {
		powerSum += math.Pow(math.Max(yi, 0), a)
	}
	commonFactor := math.Pow(powerSum, 1/a-1) * math.Pow(m, -1/a)

	for i, yi := range y {
		e.gradTmp[i] = math.Pow(math.Max(yi, 0), a-1) * commonFactor
	}
	e.matrix.MulTransVec(grad, e.gradTmp)
}

func (e *Entry) ltcpGradient(x []float64, grad []float64, cachedDose bool) {
	y := e.ensureDose(x, cachedDose)
	d := e.Parameters[0]
	alpha := e.Parameters[1]
	m := float64(len(y))

	for i, yi := range y {
		e.gradTmp[i] = -alpha / m * math.Exp(-alpha*(yi-d))
	}
	e.matrix.MulTransVec(grad, e.gradTmp)
}

// SparseGradient gathers the dense gradient at GradNonzeroIdxs(), in
// that order, into out (which must have length len(GradNonzeroIdxs())).
// This is the shape the Jacobian values array expects.
func (e *Entry) SparseGradient(x []float64, dense []float64, out []float64, cachedDose bool) {
	e.Gradient(x, dense, cachedDose)
	for i, idx := range e.gradNonzeroIdxs {
		out[i] = dense[idx]
	}
}
