package entry

// FunctionType is the sum type over the objective/penalty families a
// treatment-plan entry can take. DVH and Chain are enumerated for
// archive compatibility but never produce a nonzero value or gradient:
// neither formula is implemented here.
type FunctionType int

const (
	Min FunctionType = iota
	Max
	Mean
	Quadratic
	GEUD
	LTCP
	DVH
	Chain
)

func (t FunctionType) String() string {
	switch t {
	case Min:
		return "Min"
	case Max:
		return "Max"
	case Mean:
		return "Mean"
	case Quadratic:
		return "Quadratic"
	case GEUD:
		return "gEUD"
	case LTCP:
		return "LTCP"
	case DVH:
		return "DVH"
	case Chain:
		return "Chain"
	default:
		return "Unknown"
	}
}

// ResolveLinearType disambiguates the archive's single "linear" type id
// (1) into Min, Max or Mean by inspecting the matrix's display name: a
// name containing "(mean)" is Mean; otherwise Max when minimise is
// true, Min when it is false.
func ResolveLinearType(minimise bool, matrixName string) FunctionType {
	if containsMeanSuffix(matrixName) {
		return Mean
	}
	if minimise {
		return Max
	}
	return Min
}

// ResolveNonlinearType maps a raw nonlinear archive type id (>=2,
// 1-based) to its FunctionType: FunctionType(id+1), so archive id 2 is
// Quadratic, 3 gEUD, 4 LTCP, 5 DVH and 6 Chain.
func ResolveNonlinearType(rawTypeID int) FunctionType {
	return FunctionType(rawTypeID + 1)
}

func containsMeanSuffix(name string) bool {
	const marker = "(mean)"
	if len(name) < len(marker) {
		return false
	}
	for i := 0; i+len(marker) <= len(name); i++ {
		if name[i:i+len(marker)] == marker {
			return true
		}
	}
	return false
}
