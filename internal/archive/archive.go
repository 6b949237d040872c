// Package archive defines the contract for the problem-archive loader.
// The real on-disk reader is an external collaborator outside this
// repo's scope; this package provides the contract plus a reference
// fixture implementation for development and tests.
package archive

import "github.com/rt-planning/trots-eval/internal/sparsemat"

// MatrixMeta is the per-matrix metadata the archive carries alongside
// the matrix payload itself: a display Name (used solely to disambiguate
// Min/Max/Mean) and C (the Quadratic constant, which lives on the
// matrix artifact in the source archive rather than the entry).
type MatrixMeta struct {
	DataID int
	Name   string
	C      float64
}

// EntryDescriptor is the archive's raw view of one problem entry, before
// function-type resolution.
type EntryDescriptor struct {
	Name         string
	DataID       int
	Minimise     bool
	Active       bool
	IsConstraint bool
	RHS          float64 // archive's "Objective" field
	Type         int     // raw archive type id, 1-based
	Weight       float64
	Parameters   []float64
}

// Archive is everything a problem needs to construct itself: the number
// of decision variables, the matrix artifacts keyed by 1-based data id,
// their metadata, and the entry descriptors in archive order.
type Archive struct {
	NumVars     int
	Matrices    map[int]sparsemat.Artifact
	MatrixMetas map[int]MatrixMeta
	Entries     []EntryDescriptor
}

// Loader materializes an Archive from a problem file on disk. The real
// implementation (reading the on-disk MATLAB-based problem archive) is
// an external collaborator outside this repo's scope; only the contract
// and a reference fixture loader live here.
type Loader interface {
	Load(path string) (*Archive, error)
}
