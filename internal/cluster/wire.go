// Package cluster implements the distributed evaluator: a coordinator
// (rank 0) that partitions matrices and entries over worker ranks, then
// repeatedly broadcasts the current iterate and gathers per-entry
// contributions.
package cluster

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/rt-planning/trots-eval/internal/entry"
)

// Tag selects which collective operation a broadcast triggers. Tags are
// stable small integers, not strings, to keep the wire format compact.
type Tag int32

const (
	TagEvalObj Tag = iota
	TagEvalObjGrad
	TagEvalCons
	TagEvalJac
	TagShutdown
)

// BroadcastMsg is what the coordinator sends on every callback
// invocation: a tag selecting the operation, and the current iterate.
// X is empty for TagShutdown.
type BroadcastMsg struct {
	Tag Tag
	X   []float64
}

// MatrixWireMsg is the transport shape of one matrix artifact: a
// discriminator (IsVector), the data id, and either the dense payload
// or the three CSR arrays. nnz and rows are recovered from len(Values)
// and len(RowPtr)-1 on the receiver rather than sent explicitly.
type MatrixWireMsg struct {
	DataID   int
	Name     string
	C        float64
	IsVector bool
	Vector   []float64
	Cols     int
	Values   []float64
	ColIndex []int
	RowPtr   []int
}

// MatricesMsg bundles every matrix a worker needs for its share of
// entries, sent once per worker during setup.
type MatricesMsg struct {
	Matrices []MatrixWireMsg
}

// EntryWireMsg is the transport shape of one entry's metadata: its
// already-resolved function type, flags, rhs, weight, parameters,
// roi_name, data_id and num_vars. GlobalIndex is only meaningful for
// constraint entries: it is that constraint's index in the
// coordinator's constraint sequence, needed to place results in the
// right output slot.
type EntryWireMsg struct {
	Name         string
	DataID       int
	Type         entry.FunctionType
	Minimise     bool
	Active       bool
	IsConstraint bool
	RHS          float64
	Weight       float64
	Parameters   []float64
	NumVars      int
	GlobalIndex  int
}

// EntriesMsg bundles a worker's share of objective and constraint
// entries, in the order the distributor produced.
type EntriesMsg struct {
	Objective  []EntryWireMsg
	Constraint []EntryWireMsg
}

// ConstraintContribution is one (global index, value) pair a worker
// reports back for a local constraint.
type ConstraintContribution struct {
	GlobalIndex int
	Value       float64
}

func encode(v any) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		panic(fmt.Errorf("cluster: failed to encode wire message: %w", err))
	}
	return buf.Bytes()
}

func decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
