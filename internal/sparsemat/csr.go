// Package sparsemat implements the sparse-matrix and dense-vector artifacts
// shared by every entry in a treatment-plan problem: a dose-deposition
// matrix stored in compressed sparse row form, or its pre-collapsed
// mean-vector form.
package sparsemat

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// CSR is a compressed-sparse-row matrix. Values, col indices and row
// pointers follow the conventional triplet layout: row i's nonzeros are
// Values[RowPtr[i]:RowPtr[i+1]] at columns ColIndex[RowPtr[i]:RowPtr[i+1]].
type CSR struct {
	rows, cols int
	values     []float64
	colIndex   []int
	rowPtr     []int
}

// NewCSR builds a CSR matrix directly from row-pointer triplets, as used
// on the receiving side of cluster transport: the wire format already
// carries CSR arrays, so no CSC transpose is needed there.
func NewCSR(rows, cols int, values []float64, colIndex []int, rowPtr []int) (*CSR, error) {
	if len(rowPtr) != rows+1 {
		return nil, fmt.Errorf("sparsemat: row pointer length %d does not match rows+1 (%d)", len(rowPtr), rows+1)
	}
	if len(values) != len(colIndex) {
		return nil, fmt.Errorf("sparsemat: values length %d does not match column-index length %d", len(values), len(colIndex))
	}
	if rowPtr[rows] != len(values) {
		return nil, fmt.Errorf("sparsemat: row pointer end %d does not match nnz %d", rowPtr[rows], len(values))
	}
	return &CSR{rows: rows, cols: cols, values: values, colIndex: colIndex, rowPtr: rowPtr}, nil
}

// NewCSRFromCSC converts column-major (CSC) triplets, the layout the
// archive loader presents on disk, transposing to CSR on construction.
// nnz is the number of stored values; rows/cols are the dense shape;
// colPtr has length cols+1 and rowIndex/data have length nnz.
func NewCSRFromCSC(nnz, rows, cols int, data []float64, rowIndex []int, colPtr []int) (*CSR, error) {
	if len(colPtr) != cols+1 {
		return nil, fmt.Errorf("sparsemat: CSC column pointer length %d does not match cols+1 (%d)", len(colPtr), cols+1)
	}
	if len(data) != nnz || len(rowIndex) != nnz {
		return nil, fmt.Errorf("sparsemat: CSC data/rowIndex length must equal nnz (%d)", nnz)
	}

	rowCounts := make([]int, rows)
	for _, r := range rowIndex {
		if r < 0 || r >= rows {
			return nil, fmt.Errorf("sparsemat: CSC row index %d out of range [0,%d)", r, rows)
		}
		rowCounts[r]++
	}

	rowPtr := make([]int, rows+1)
	for i := 0; i < rows; i++ {
		rowPtr[i+1] = rowPtr[i] + rowCounts[i]
	}

	values := make([]float64, nnz)
	colIndex := make([]int, nnz)
	cursor := append([]int(nil), rowPtr[:rows]...)

	for c := 0; c < cols; c++ {
		for k := colPtr[c]; k < colPtr[c+1]; k++ {
			r := rowIndex[k]
			dst := cursor[r]
			values[dst] = data[k]
			colIndex[dst] = c
			cursor[r]++
		}
	}

	return &CSR{rows: rows, cols: cols, values: values, colIndex: colIndex, rowPtr: rowPtr}, nil
}

// Rows returns the number of voxel rows.
func (m *CSR) Rows() int { return m.rows }

// Cols returns the number of beamlet columns (decision variables).
func (m *CSR) Cols() int { return m.cols }

// NNZ returns the number of stored nonzero entries.
func (m *CSR) NNZ() int { return len(m.values) }

// Values exposes the raw CSR value array, needed by cluster transport.
func (m *CSR) Values() []float64 { return m.values }

// ColIndex exposes the raw CSR column-index array.
func (m *CSR) ColIndex() []int { return m.colIndex }

// RowPtr exposes the raw CSR row-pointer array.
func (m *CSR) RowPtr() []int { return m.rowPtr }

// MulVec computes dst = A*x, the dose vector for a beamlet intensity x.
func (m *CSR) MulVec(dst, x []float64) {
	if len(x) != m.cols {
		panic("sparsemat: MulVec dimension mismatch")
	}
	if len(dst) != m.rows {
		panic("sparsemat: MulVec destination dimension mismatch")
	}
	for i := 0; i < m.rows; i++ {
		var sum float64
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			sum += m.values[k] * x[m.colIndex[k]]
		}
		dst[i] = sum
	}
}

// MulTransVec computes dst = Aᵀ*v, the adjoint used by every gradient.
func (m *CSR) MulTransVec(dst, v []float64) {
	if len(v) != m.rows {
		panic("sparsemat: MulTransVec source dimension mismatch")
	}
	if len(dst) != m.cols {
		panic("sparsemat: MulTransVec destination dimension mismatch")
	}
	for i := range dst {
		dst[i] = 0
	}
	for i := 0; i < m.rows; i++ {
		vi := v[i]
		if vi == 0 {
			continue
		}
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			dst[m.colIndex[k]] += m.values[k] * vi
		}
	}
}

// QuadMul computes ‖A·x‖² using scratch as the intermediate A·x buffer:
// y = A·x, then returns yᵀy. scratch must have length Rows().
func (m *CSR) QuadMul(x, scratch []float64) float64 {
	m.MulVec(scratch, x)
	return floats.Dot(scratch, scratch)
}

// NonzeroColumns returns the strictly ascending, deduplicated set of
// column indices that appear anywhere in the matrix, the gradient
// sparsity pattern for every matrix-backed entry.
func (m *CSR) NonzeroColumns() []int {
	seen := make([]bool, m.cols)
	for _, c := range m.colIndex {
		seen[c] = true
	}
	cols := make([]int, 0, len(m.colIndex))
	for c, present := range seen {
		if present {
			cols = append(cols, c)
		}
	}
	return cols
}
