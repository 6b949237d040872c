package sparsemat

import "gonum.org/v1/gonum/floats"

// MeanVector is the dense-vector artifact used when an entry's matrix has
// been pre-collapsed to (1/|R|)·𝟙ᵀ·A for a region-mean objective or
// constraint.
type MeanVector struct {
	data []float64
}

// NewMeanVector wraps a dense vector as a mean-vector artifact.
func NewMeanVector(data []float64) *MeanVector {
	return &MeanVector{data: data}
}

// Len returns the number of decision variables the vector spans.
func (v *MeanVector) Len() int { return len(v.data) }

// Data exposes the raw dense payload, needed by cluster transport.
func (v *MeanVector) Data() []float64 { return v.data }

// Dot computes ⟨v, x⟩, the value of a Mean entry.
func (v *MeanVector) Dot(x []float64) float64 {
	if len(x) != len(v.data) {
		panic("sparsemat: MeanVector.Dot dimension mismatch")
	}
	return floats.Dot(v.data, x)
}

// NonzeroIndices returns the ascending indices where the vector exceeds
// 1e-20, the gradient sparsity pattern for Mean entries.
func (v *MeanVector) NonzeroIndices() []int {
	const threshold = 1e-20
	idxs := make([]int, 0, len(v.data))
	for i, val := range v.data {
		if val > threshold {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// Artifact is the sum type over the two matrix-artifact shapes: a CSR
// sparse matrix, or a dense mean vector. Every entry references exactly
// one.
type Artifact interface {
	// NumVars is the number of decision variables the artifact spans
	// (Cols() for a CSR matrix, Len() for a mean vector).
	NumVars() int
}

func (m *CSR) NumVars() int        { return m.cols }
func (v *MeanVector) NumVars() int { return len(v.data) }
