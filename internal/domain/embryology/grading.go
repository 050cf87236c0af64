package embryology

import (
	"fmt"
	"math"
	"strings"
)

// Result is the outcome of grading one observation.
type Result struct {
	Grade   string  `json:"grade"`
	Quality Quality `json:"quality"`
	Stage   Stage   `json:"stage"`
}

// Cleavage sub-grade thresholds (fragmentation percent, exclusive).
const (
	fragmentationGrade2 = 10
	fragmentationGrade3 = 25
)

// Classify grades an observation. It is pure: the same observation always
// yields the same result.
func Classify(obs Observation) (Result, error) {
	if err := validate(obs); err != nil {
		return Result{}, err
	}

	if obs.Day == nil {
		return Result{Grade: NotGraded, Quality: fallbackQuality(obs.Quality, QualityFair), Stage: StageUnknown}, nil
	}

	day := *obs.Day
	switch StageForDay(day) {
	case StageCleavage:
		m, _ := obs.Morphology.(CleavageMorphology)
		return classifyCleavage(day, m, obs.Quality), nil
	case StageBlastocyst:
		m, _ := obs.Morphology.(BlastocystMorphology)
		return classifyBlastocyst(day, m), nil
	default:
		grade := NotGraded
		if g := strings.TrimSpace(obs.ManualGrade); g != "" {
			grade = g
		}
		return Result{Grade: grade, Quality: fallbackQuality(obs.Quality, QualityFair), Stage: StageMorula}, nil
	}
}

func classifyCleavage(day int, m CleavageMorphology, supplied Quality) Result {
	if m.CellCount == nil {
		return Result{Grade: NotGraded, Quality: QualityFromGrade(NotGraded, day), Stage: StageCleavage}
	}

	// Cell count recorded without a morphology assessment.
	if !m.hasDetail() {
		return Result{
			Grade:   fmt.Sprintf("%d-cell", *m.CellCount),
			Quality: fallbackQuality(supplied, QualityGood),
			Stage:   StageCleavage,
		}
	}

	grade := CleavageGrade(*m.CellCount, m.FragmentationPercent, m.Symmetry)
	return Result{Grade: grade, Quality: QualityFromGrade(grade, day), Stage: StageCleavage}
}

func classifyBlastocyst(day int, m BlastocystMorphology) Result {
	if m.Expansion == nil {
		return Result{Grade: NotGraded, Quality: QualityFromGrade(NotGraded, day), Stage: StageBlastocyst}
	}
	grade := BlastocystGrade(*m.Expansion, m.ICMGrade, m.TEGrade)
	return Result{Grade: grade, Quality: QualityFromGrade(grade, day), Stage: StageBlastocyst}
}

// CleavageSubGrade returns 1 (best) to 3. A missing fragmentation reading
// counts as 0% and a missing symmetry reading as equal.
func CleavageSubGrade(fragmentation *float64, symmetry *Symmetry) int {
	var frag float64
	if fragmentation != nil {
		frag = *fragmentation
	}
	sym := SymmetryEqual
	if symmetry != nil {
		sym = *symmetry
	}

	switch {
	case frag > fragmentationGrade3 || sym == SymmetrySevere:
		return 3
	case frag > fragmentationGrade2 || sym == SymmetryUnequal:
		return 2
	default:
		return 1
	}
}

// CleavageGrade formats a cleavage grade, e.g. "8-cell Grade 1".
func CleavageGrade(cellCount int, fragmentation *float64, symmetry *Symmetry) string {
	return fmt.Sprintf("%d-cell Grade %d", cellCount, CleavageSubGrade(fragmentation, symmetry))
}

// BlastocystGrade formats a Gardner grade, e.g. "4AA". Unassessed letters
// are left out.
func BlastocystGrade(expansion int, icm, te *GradeLetter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", expansion)
	if icm != nil {
		b.WriteString(string(*icm))
	}
	if te != nil {
		b.WriteString(string(*te))
	}
	return b.String()
}

// QualityFromGrade maps a grade label to its quality tier. Cleavage labels
// (day <= 3) are read by sub-grade, blastocyst labels by letter pair.
func QualityFromGrade(grade string, day int) Quality {
	if day <= 3 {
		switch {
		case strings.Contains(grade, "Grade 1"):
			return QualityExcellent
		case strings.Contains(grade, "Grade 2"):
			return QualityGood
		case strings.Contains(grade, "Grade 3"):
			return QualityFair
		}
		return QualityPoor
	}

	switch {
	case strings.Contains(grade, "AA"):
		return QualityExcellent
	case strings.Contains(grade, "AB"), strings.Contains(grade, "BA"), strings.Contains(grade, "BB"):
		return QualityGood
	case strings.Contains(grade, "BC"), strings.Contains(grade, "CB"):
		return QualityFair
	}
	return QualityPoor
}

func fallbackQuality(supplied, def Quality) Quality {
	if supplied != "" {
		return supplied
	}
	return def
}

func validate(obs Observation) error {
	if obs.Quality != "" && !obs.Quality.IsValid() {
		return invalidData("quality", "must be excellent, good, fair or poor", obs.Quality)
	}

	if obs.Day == nil {
		if obs.Morphology != nil {
			return invalidData("day", "is required when morphology is recorded", nil)
		}
		return nil
	}

	day := *obs.Day
	stage := StageForDay(day)
	if stage == StageUnknown {
		return invalidData("day", fmt.Sprintf("must be between %d and %d", MinDay, MaxDay), day)
	}

	if obs.Morphology == nil {
		return nil
	}
	if obs.Morphology.Stage() != stage {
		return invalidData("day", fmt.Sprintf("%s fields recorded on day %d (%s stage)", obs.Morphology.Stage(), day, stage), day)
	}

	switch m := obs.Morphology.(type) {
	case CleavageMorphology:
		return validateCleavage(m)
	case BlastocystMorphology:
		return validateBlastocyst(m)
	}
	return nil
}

func validateCleavage(m CleavageMorphology) error {
	if m.CellCount != nil && *m.CellCount <= 0 {
		return invalidData("cell_count", "must be a positive integer", *m.CellCount)
	}
	if f := m.FragmentationPercent; f != nil && (math.IsNaN(*f) || *f < 0 || *f > 100) {
		return invalidData("fragmentation_percent", "must be between 0 and 100", *f)
	}
	if m.Symmetry != nil && !m.Symmetry.IsValid() {
		return invalidData("symmetry", "must be equal, unequal or severe", *m.Symmetry)
	}
	return nil
}

func validateBlastocyst(m BlastocystMorphology) error {
	if x := m.Expansion; x != nil && (*x < MinExpansion || *x > MaxExpansion) {
		return invalidData("expansion", fmt.Sprintf("must be between %d and %d", MinExpansion, MaxExpansion), *x)
	}
	if m.ICMGrade != nil && !m.ICMGrade.IsValid() {
		return invalidData("icm_grade", "must be A, B or C", *m.ICMGrade)
	}
	if m.TEGrade != nil && !m.TEGrade.IsValid() {
		return invalidData("te_grade", "must be A, B or C", *m.TEGrade)
	}
	return nil
}
