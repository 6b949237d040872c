package cluster

import (
	"fmt"

	"github.com/rt-planning/trots-eval/internal/entry"
	"github.com/rt-planning/trots-eval/internal/sparsemat"
)

// RunWorker blocks, serving broadcast requests on transport until it
// receives TagShutdown, then returns. It is meant to run as the body of
// a worker rank's goroutine (or, with a socket transport, its own
// process).
func RunWorker(rank int, transport WorkerSide) error {
	var matricesMsg MatricesMsg
	if err := decode(transport.Recv(rank), &matricesMsg); err != nil {
		return fmt.Errorf("cluster: worker %d: decode matrices: %w", rank, err)
	}
	var entriesMsg EntriesMsg
	if err := decode(transport.Recv(rank), &entriesMsg); err != nil {
		return fmt.Errorf("cluster: worker %d: decode entries: %w", rank, err)
	}

	matrices := make(map[int]sparsemat.Artifact, len(matricesMsg.Matrices))
	matrixC := make(map[int]float64, len(matricesMsg.Matrices))
	for _, m := range matricesMsg.Matrices {
		a, err := decodeArtifact(m)
		if err != nil {
			return fmt.Errorf("cluster: worker %d: %w", rank, err)
		}
		matrices[m.DataID] = a
		matrixC[m.DataID] = m.C
	}

	objEntries := make([]*entry.Entry, len(entriesMsg.Objective))
	for i, w := range entriesMsg.Objective {
		e, err := wireToEntry(w, matrices, matrixC)
		if err != nil {
			return fmt.Errorf("cluster: worker %d: objective entry %d: %w", rank, i, err)
		}
		objEntries[i] = e
	}
	consEntries := make([]*entry.Entry, len(entriesMsg.Constraint))
	consGlobalIdx := make([]int, len(entriesMsg.Constraint))
	for i, w := range entriesMsg.Constraint {
		e, err := wireToEntry(w, matrices, matrixC)
		if err != nil {
			return fmt.Errorf("cluster: worker %d: constraint entry %d: %w", rank, i, err)
		}
		consEntries[i] = e
		consGlobalIdx[i] = w.GlobalIndex
	}

	numVars := 0
	for _, e := range objEntries {
		if e.NumVars > numVars {
			numVars = e.NumVars
		}
	}
	for _, e := range consEntries {
		if e.NumVars > numVars {
			numVars = e.NumVars
		}
	}

	for {
		var msg BroadcastMsg
		if err := decode(transport.Recv(rank), &msg); err != nil {
			return fmt.Errorf("cluster: worker %d: decode broadcast: %w", rank, err)
		}

		switch msg.Tag {
		case TagShutdown:
			return nil

		case TagEvalObj:
			var sum float64
			for _, e := range objEntries {
				if e.Active {
					sum += e.Weight * e.Value(msg.X)
				}
			}
			transport.Send(rank, encode(sum))

		case TagEvalObjGrad:
			partial := make([]float64, numVars)
			tmp := make([]float64, numVars)
			for _, e := range objEntries {
				if !e.Active {
					continue
				}
				e.Gradient(msg.X, tmp, false)
				for i, v := range tmp {
					partial[i] += e.Weight * v
				}
			}
			transport.Send(rank, encode(partial))

		case TagEvalCons:
			contributions := make([]ConstraintContribution, 0, len(consEntries))
			for i, e := range consEntries {
				v := 0.0
				if e.Active {
					v = e.Value(msg.X)
				}
				contributions = append(contributions, ConstraintContribution{GlobalIndex: consGlobalIdx[i], Value: v})
			}
			transport.Send(rank, encode(contributions))

		case TagEvalJac:
			dense := make([]float64, numVars)
			var values []float64
			for _, e := range consEntries {
				if !e.Active {
					continue
				}
				n := len(e.GradNonzeroIdxs())
				seg := make([]float64, n)
				e.SparseGradient(msg.X, dense, seg, false)
				values = append(values, seg...)
			}
			transport.Send(rank, encode(jacSegment{Values: values}))

		default:
			return fmt.Errorf("cluster: worker %d: unknown tag %d", rank, msg.Tag)
		}
	}
}

func decodeArtifact(m MatrixWireMsg) (sparsemat.Artifact, error) {
	if m.IsVector {
		return sparsemat.NewMeanVector(m.Vector), nil
	}
	rows := len(m.RowPtr) - 1
	return sparsemat.NewCSR(rows, m.Cols, m.Values, m.ColIndex, m.RowPtr)
}

func wireToEntry(w EntryWireMsg, matrices map[int]sparsemat.Artifact, matrixC map[int]float64) (*entry.Entry, error) {
	artifact, ok := matrices[w.DataID]
	if !ok {
		return nil, fmt.Errorf("no artifact for data id %d", w.DataID)
	}
	return entry.NewWithType(entry.Descriptor{
		ROIName:      w.Name,
		DataID:       w.DataID,
		Minimise:     w.Minimise,
		Active:       w.Active,
		IsConstraint: w.IsConstraint,
		RHS:          w.RHS,
		Weight:       w.Weight,
		Parameters:   w.Parameters,
	}, w.Type, artifact, matrixC[w.DataID])
}
