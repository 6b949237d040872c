package problem

import (
	"math"
	"testing"

	"github.com/rt-planning/trots-eval/internal/archive"
	"github.com/rt-planning/trots-eval/internal/sparsemat"
)

func identityArtifact(n int) *sparsemat.CSR {
	values := make([]float64, n)
	colIndex := make([]int, n)
	rowPtr := make([]int, n+1)
	for i := 0; i < n; i++ {
		values[i] = 1
		colIndex[i] = i
		rowPtr[i+1] = i + 1
	}
	m, _ := sparsemat.NewCSR(n, n, values, colIndex, rowPtr)
	return m
}

func buildTestProblem(t *testing.T) *Problem {
	t.Helper()
	n := 4
	a := &archive.Archive{
		NumVars: n,
		Matrices: map[int]sparsemat.Artifact{
			1: identityArtifact(n),
			2: identityArtifact(n),
		},
		MatrixMetas: map[int]archive.MatrixMeta{
			1: {DataID: 1, Name: "PTV quad"},
			2: {DataID: 2, Name: "OAR max"},
		},
		Entries: []archive.EntryDescriptor{
			{Name: "PTV quad", DataID: 1, Type: 2, Weight: 1, Active: true, IsConstraint: false},
			{Name: "OAR max", DataID: 2, Type: 1, Minimise: true, RHS: 1, Weight: 2, Active: true, IsConstraint: true},
		},
	}
	p, err := New(a)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestProblemBasics(t *testing.T) {
	p := buildTestProblem(t)
	if p.NumVars() != 4 {
		t.Errorf("NumVars = %d, want 4", p.NumVars())
	}
	if p.NumConstraints() != 1 {
		t.Errorf("NumConstraints = %d, want 1", p.NumConstraints())
	}
	if p.NnzJacCons() != 4 {
		t.Errorf("NnzJacCons = %d, want 4", p.NnzJacCons())
	}
}

func TestProblemObjectiveAndGradient(t *testing.T) {
	p := buildTestProblem(t)
	x := []float64{1, 1, 1, 1}
	// Quadratic: 0.5*||x||^2 = 2.0, weight 1 -> 2.0.
	got := p.CalcObjective(x)
	if math.Abs(got-2.0) > 1e-12 {
		t.Errorf("CalcObjective = %v, want 2.0", got)
	}

	grad := make([]float64, 4)
	p.CalcObjGradient(x, grad)
	for _, g := range grad {
		if math.Abs(g-1.0) > 1e-12 {
			t.Errorf("grad = %v, want all 1.0", grad)
		}
	}
}

func TestProblemConstraintsAndJacobian(t *testing.T) {
	p := buildTestProblem(t)
	x := []float64{2, 0, 0, 0} // OAR Max: rhs=1, y=(2,0,0,0)
	g := make([]float64, p.NumConstraints())
	p.CalcConstraints(x, g)
	// Max penalty: (1/4)*(max(2-1,0)^2) = 0.25
	if math.Abs(g[0]-0.25) > 1e-12 {
		t.Errorf("constraint[0] = %v, want 0.25", g[0])
	}

	vals := make([]float64, p.NnzJacCons())
	p.CalcJacobianVals(x, vals)
	rows, cols := p.JacobianStructure()
	if len(rows) != len(vals) || len(cols) != len(vals) {
		t.Fatalf("structure/value length mismatch: %d rows, %d cols, %d vals", len(rows), len(cols), len(vals))
	}
	// No weight applied to constraints: the entry's own weight (2) must
	// not appear in the constraint value or Jacobian.
	found := false
	for i, c := range cols {
		if rows[i] == 0 && c == 0 {
			found = true
			// grad for Max at index 0: 2*max(2-1,0) = 2
			if math.Abs(vals[i]-2.0) > 1e-12 {
				t.Errorf("jac val at col 0 = %v, want 2.0", vals[i])
			}
		}
	}
	if !found {
		t.Fatal("expected a Jacobian entry at column 0")
	}
}

func TestProblemInactiveEntriesSkipped(t *testing.T) {
	n := 2
	a := &archive.Archive{
		NumVars: n,
		Matrices: map[int]sparsemat.Artifact{
			1: identityArtifact(n),
		},
		MatrixMetas: map[int]archive.MatrixMeta{
			1: {DataID: 1, Name: "inactive"},
		},
		Entries: []archive.EntryDescriptor{
			{Name: "inactive", DataID: 1, Type: 2, Weight: 5, Active: false, IsConstraint: false},
		},
	}
	p, err := New(a)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.CalcObjective([]float64{10, 10}); got != 0 {
		t.Errorf("CalcObjective = %v, want 0 for inactive entry", got)
	}
}

func TestProblemRejectsUnknownDataID(t *testing.T) {
	a := &archive.Archive{
		NumVars:     2,
		Matrices:    map[int]sparsemat.Artifact{},
		MatrixMetas: map[int]archive.MatrixMeta{},
		Entries: []archive.EntryDescriptor{
			{Name: "bad", DataID: 99, Type: 2},
		},
	}
	if _, err := New(a); err == nil {
		t.Fatal("expected error for unknown data id")
	}
}
