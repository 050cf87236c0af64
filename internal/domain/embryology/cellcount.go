package embryology

// CellCountRange is the expected blastomere count for a culture day.
type CellCountRange struct {
	Min   int `json:"min"`
	Ideal int `json:"ideal"`
	Max   int `json:"max"`
}

// Blastocysts are assessed by expansion, so days 5 and 6 have no entry.
var expectedCellCounts = map[int]CellCountRange{
	1: {Min: 2, Ideal: 2, Max: 2}, // pronuclear
	2: {Min: 2, Ideal: 4, Max: 6},
	3: {Min: 6, Ideal: 8, Max: 10},
	4: {Min: 10, Ideal: 16, Max: 32},
}

// ExpectedCellCount returns the expected range for day, if one is defined.
func ExpectedCellCount(day int) (CellCountRange, bool) {
	r, ok := expectedCellCounts[day]
	return r, ok
}

// CellCountAssessment compares an observed count with the expected range.
type CellCountAssessment string

const (
	CellCountUnknown CellCountAssessment = "unknown"
	CellCountBelow   CellCountAssessment = "below_expected"
	CellCountWithin  CellCountAssessment = "within_expected"
	CellCountAbove   CellCountAssessment = "above_expected"
)

// AssessCellCount reports whether count is in the expected range for day.
func AssessCellCount(day int, count *int) CellCountAssessment {
	r, ok := ExpectedCellCount(day)
	if !ok || count == nil {
		return CellCountUnknown
	}
	switch {
	case *count < r.Min:
		return CellCountBelow
	case *count > r.Max:
		return CellCountAbove
	default:
		return CellCountWithin
	}
}
