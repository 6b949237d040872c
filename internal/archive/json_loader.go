package archive

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rt-planning/trots-eval/internal/sparsemat"
)

// jsonMatrix is the on-disk shape of one matrix artifact. A matrix entry
// carries either (Rows, Cols, Values, ColIndex, RowPtr) for a CSR matrix,
// or Mean for a pre-collapsed dense vector, never both.
type jsonMatrix struct {
	DataID   int       `json:"data_id"`
	Name     string    `json:"name"`
	C        float64   `json:"c"`
	Rows     int       `json:"rows,omitempty"`
	Cols     int       `json:"cols,omitempty"`
	Values   []float64 `json:"values,omitempty"`
	ColIndex []int     `json:"col_index,omitempty"`
	RowPtr   []int     `json:"row_ptr,omitempty"`
	Mean     []float64 `json:"mean,omitempty"`
}

type jsonEntry struct {
	Name         string    `json:"name"`
	DataID       int       `json:"data_id"`
	Minimise     bool      `json:"minimise"`
	Active       bool      `json:"active"`
	IsConstraint bool      `json:"is_constraint"`
	RHS          float64   `json:"rhs"`
	Type         int       `json:"type"`
	Weight       float64   `json:"weight"`
	Parameters   []float64 `json:"parameters"`
}

type jsonArchive struct {
	NumVars  int          `json:"num_vars"`
	Matrices []jsonMatrix `json:"matrices"`
	Entries  []jsonEntry  `json:"entries"`
}

// JSONLoader reads a JSON-encoded problem fixture. It is a reference
// implementation for development and tests, not a reader for the real
// on-disk archive format, which is an external collaborator.
type JSONLoader struct{}

// NewJSONLoader returns a Loader for the JSON fixture format.
func NewJSONLoader() *JSONLoader { return &JSONLoader{} }

// Load parses path and builds an Archive, failing fast with a diagnostic
// naming the offending field on any shape mismatch.
func (l *JSONLoader) Load(path string) (*Archive, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to read %q: %w", path, err)
	}

	var doc jsonArchive
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("archive: failed to parse %q as JSON: %w", path, err)
	}

	if doc.NumVars <= 0 {
		return nil, fmt.Errorf("archive: missing or non-positive field %q in %q", "num_vars", path)
	}
	if len(doc.Entries) == 0 {
		return nil, fmt.Errorf("archive: missing field %q in %q (no entries)", "entries", path)
	}

	matrices := make(map[int]sparsemat.Artifact, len(doc.Matrices))
	metas := make(map[int]MatrixMeta, len(doc.Matrices))
	for i, jm := range doc.Matrices {
		if jm.DataID <= 0 {
			return nil, fmt.Errorf("archive: matrix %d has missing or non-positive field %q", i, "data_id")
		}
		metas[jm.DataID] = MatrixMeta{DataID: jm.DataID, Name: jm.Name, C: jm.C}

		switch {
		case jm.Mean != nil:
			matrices[jm.DataID] = sparsemat.NewMeanVector(jm.Mean)
		case jm.RowPtr != nil:
			m, err := sparsemat.NewCSR(jm.Rows, jm.Cols, jm.Values, jm.ColIndex, jm.RowPtr)
			if err != nil {
				return nil, fmt.Errorf("archive: matrix %d (data_id %d) invalid CSR shape: %w", i, jm.DataID, err)
			}
			matrices[jm.DataID] = m
		default:
			return nil, fmt.Errorf("archive: matrix %d (data_id %d) has neither %q nor %q; unexpected matrix class", i, jm.DataID, "mean", "row_ptr")
		}
	}

	entries := make([]EntryDescriptor, 0, len(doc.Entries))
	for i, je := range doc.Entries {
		if je.DataID <= 0 {
			return nil, fmt.Errorf("archive: entry %d (%q) has missing or non-positive field %q", i, je.Name, "data_id")
		}
		if _, ok := metas[je.DataID]; !ok {
			return nil, fmt.Errorf("archive: entry %d (%q) references unknown data_id %d", i, je.Name, je.DataID)
		}
		if je.Type <= 0 {
			return nil, fmt.Errorf("archive: entry %d (%q) has missing or non-positive field %q", i, je.Name, "type")
		}
		if len(je.Parameters) > 0 {
			// The archive stores Parameters as a 1xN row vector; the
			// JSON fixture's flat array already encodes that shape, so
			// there is nothing further to validate beyond "not a
			// nested/matrix shape", which json.Unmarshal already rejects
			// for a []float64 target.
		}
		entries = append(entries, EntryDescriptor{
			Name:         je.Name,
			DataID:       je.DataID,
			Minimise:     je.Minimise,
			Active:       je.Active,
			IsConstraint: je.IsConstraint,
			RHS:          je.RHS,
			Type:         je.Type,
			Weight:       je.Weight,
			Parameters:   je.Parameters,
		})
	}

	return &Archive{
		NumVars:     doc.NumVars,
		Matrices:    matrices,
		MatrixMetas: metas,
		Entries:     entries,
	}, nil
}
