package entry

import (
	"math"
	"testing"

	"github.com/rt-planning/trots-eval/internal/sparsemat"
)

func identityCSR(t *testing.T, n int) *sparsemat.CSR {
	values := make([]float64, n)
	colIndex := make([]int, n)
	rowPtr := make([]int, n+1)
	for i := 0; i < n; i++ {
		values[i] = 1
		colIndex[i] = i
		rowPtr[i+1] = i + 1
	}
	m, err := sparsemat.NewCSR(n, n, values, colIndex, rowPtr)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func approxEqual(t *testing.T, got, want float64, tol float64, what string) {
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func approxEqualVec(t *testing.T, got, want []float64, tol float64, what string) {
	if len(got) != len(want) {
		t.Fatalf("%s length = %d, want %d", what, len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > tol {
			t.Errorf("%s[%d] = %v, want %v", what, i, got[i], want[i])
		}
	}
}

// Scenario 1: Quadratic entry with A = I_4, c = 0, x = (1,1,1,1).
func TestQuadraticScenario(t *testing.T) {
	m := identityCSR(t, 4)
	e, err := New(Descriptor{ROIName: "PTV", DataID: 1, RawType: 3 - 1, Weight: 1}, m, "PTV", 0)
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != Quadratic {
		t.Fatalf("type = %v, want Quadratic", e.Type)
	}
	x := []float64{1, 1, 1, 1}
	approxEqual(t, e.Value(x), 2.0, 1e-12, "f")
	grad := make([]float64, 4)
	e.Gradient(x, grad, false)
	approxEqualVec(t, grad, []float64{1, 1, 1, 1}, 1e-12, "grad")
}

// Scenario 2: Max entry with A = I_2, rhs = 1, x = (2, 0).
func TestMaxScenario(t *testing.T) {
	m := identityCSR(t, 2)
	e, err := New(Descriptor{ROIName: "OAR", DataID: 1, RawType: 1, Minimise: true, RHS: 1, Weight: 1}, m, "OAR", 0)
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != Max {
		t.Fatalf("type = %v, want Max", e.Type)
	}
	x := []float64{2, 0}
	approxEqual(t, e.Value(x), 0.5, 1e-12, "f")
	grad := make([]float64, 2)
	e.Gradient(x, grad, true)
	approxEqualVec(t, grad, []float64{2, 0}, 1e-12, "grad")
}

// Scenario 3: Mean entry with μ = (0.5, 0.5), x = (3, 5).
func TestMeanScenario(t *testing.T) {
	v := sparsemat.NewMeanVector([]float64{0.5, 0.5})
	e, err := New(Descriptor{ROIName: "Mean ROI", DataID: 1, RawType: 1, Minimise: false}, v, "Mean ROI (mean)", 0)
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != Mean {
		t.Fatalf("type = %v, want Mean", e.Type)
	}
	x := []float64{3, 5}
	approxEqual(t, e.Value(x), 4.0, 1e-12, "f")
	grad := make([]float64, 2)
	e.Gradient(x, grad, false)
	approxEqualVec(t, grad, []float64{0.5, 0.5}, 1e-12, "grad")
	idxs := e.GradNonzeroIdxs()
	if len(idxs) != 2 || idxs[0] != 0 || idxs[1] != 1 {
		t.Errorf("GradNonzeroIdxs = %v, want [0 1]", idxs)
	}
}

// Scenario 4: gEUD entry, a=2, A = I_3, x = (1, 2, 2).
func TestGEUDScenario(t *testing.T) {
	m := identityCSR(t, 3)
	e, err := New(Descriptor{ROIName: "PTV", DataID: 1, RawType: 4 - 1, Parameters: []float64{2}}, m, "PTV", 0)
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != GEUD {
		t.Fatalf("type = %v, want GEUD", e.Type)
	}
	x := []float64{1, 2, 2}
	approxEqual(t, e.Value(x), math.Sqrt(3), 1e-9, "f")
}

// Scenario 5: LTCP entry, alpha=1, D=0, A = I_2, x = (0, 0).
func TestLTCPScenario(t *testing.T) {
	m := identityCSR(t, 2)
	e, err := New(Descriptor{ROIName: "PTV", DataID: 1, RawType: 5 - 1, Parameters: []float64{0, 1}}, m, "PTV", 0)
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != LTCP {
		t.Fatalf("type = %v, want LTCP", e.Type)
	}
	x := []float64{0, 0}
	approxEqual(t, e.Value(x), 1.0, 1e-12, "f")
	grad := make([]float64, 2)
	e.Gradient(x, grad, true)
	approxEqualVec(t, grad, []float64{-0.5, -0.5}, 1e-12, "grad")
}

// gEUD homogeneity: f(t*x) = t*f(x) for t > 0.
func TestGEUDHomogeneity(t *testing.T) {
	m := identityCSR(t, 3)
	e, err := New(Descriptor{ROIName: "PTV", DataID: 1, RawType: 4 - 1, Parameters: []float64{3}}, m, "PTV", 0)
	if err != nil {
		t.Fatal(err)
	}
	x := []float64{1, 2, 3}
	base := e.Value(x)
	const scale = 2.5
	scaled := make([]float64, len(x))
	for i, xi := range x {
		scaled[i] = scale * xi
	}
	approxEqual(t, e.Value(scaled), scale*base, 1e-9, "f(t*x)")
}

// Max penalizes overdose: A·x <= rhs elementwise => Max penalty is 0.
func TestMaxPenaltyZeroWhenBelowRHS(t *testing.T) {
	m := identityCSR(t, 2)
	e, err := New(Descriptor{ROIName: "OAR", DataID: 1, RawType: 1, Minimise: true, RHS: 1}, m, "OAR", 0)
	if err != nil {
		t.Fatal(err)
	}
	approxEqual(t, e.Value([]float64{0, 1}), 0.0, 1e-12, "f")
}

// Min penalizes underdose: A·x >= rhs elementwise => Min penalty is 0.
func TestMinPenaltyZeroWhenAboveRHS(t *testing.T) {
	m := identityCSR(t, 2)
	e, err := New(Descriptor{ROIName: "PTV", DataID: 1, RawType: 1, Minimise: false, RHS: 1}, m, "PTV", 0)
	if err != nil {
		t.Fatal(err)
	}
	approxEqual(t, e.Value([]float64{2, 3}), 0.0, 1e-12, "f")
}

func centralDiffGradient(t *testing.T, e *Entry, x []float64) []float64 {
	const h = 1e-6
	grad := make([]float64, len(x))
	for i := range x {
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[i] += h
		xm[i] -= h
		grad[i] = (e.Value(xp) - e.Value(xm)) / (2 * h)
	}
	return grad
}

func TestGradientAgreementAllTypes(t *testing.T) {
	cases := []struct {
		name     string
		rawType  int
		minimise bool
		rhs      float64
		params   []float64
	}{
		{"Quadratic", 2, false, 0, nil},
		{"Min", 1, false, 3, nil},
		{"Max", 1, true, 3, nil},
		{"gEUD", 3, false, 0, []float64{2.0}},
		{"LTCP", 4, false, 0, []float64{1.0, 0.3}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := identityCSR(t, 5)
			e, err := New(Descriptor{ROIName: "t", DataID: 1, RawType: c.rawType, Minimise: c.minimise, RHS: c.rhs, Parameters: c.params}, m, "t", 0)
			if err != nil {
				t.Fatal(err)
			}
			x := []float64{1.1, 2.3, 0.7, 3.9, 1.5}
			f := e.Value(x)
			analytic := make([]float64, 5)
			e.Gradient(x, analytic, true)
			numeric := centralDiffGradient(t, e, x)
			tol := 1e-5 * (1 + math.Abs(f))
			approxEqualVec(t, analytic, numeric, tol, "gradient")
		})
	}
}

func TestUnknownTypeReturnsZero(t *testing.T) {
	m := identityCSR(t, 2)
	e, err := New(Descriptor{ROIName: "t", DataID: 1, RawType: 6 - 1}, m, "t", 0) // -> DVH
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != DVH {
		t.Fatalf("type = %v, want DVH", e.Type)
	}
	if v := e.Value([]float64{1, 2}); v != 0 {
		t.Errorf("Value = %v, want 0", v)
	}
	grad := make([]float64, 2)
	e.Gradient([]float64{1, 2}, grad, false)
	approxEqualVec(t, grad, []float64{0, 0}, 0, "grad")
}

func TestGradNonzeroIdxsAscendingAndInRange(t *testing.T) {
	m, err := sparsemat.NewCSR(2, 5, []float64{1, 2, 3}, []int{3, 0, 1}, []int{0, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(Descriptor{ROIName: "t", DataID: 1, RawType: 2, RHS: 0}, m, "t", 0)
	if err != nil {
		t.Fatal(err)
	}
	idxs := e.GradNonzeroIdxs()
	for i := 1; i < len(idxs); i++ {
		if idxs[i] <= idxs[i-1] {
			t.Errorf("GradNonzeroIdxs not strictly ascending: %v", idxs)
		}
	}
	for _, idx := range idxs {
		if idx < 0 || idx >= e.NumVars {
			t.Errorf("index %d out of range [0,%d)", idx, e.NumVars)
		}
	}
}
