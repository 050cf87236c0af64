package embryology

// Stage is the development stage implied by the culture day.
type Stage string

const (
	StageUnknown    Stage = "unknown"
	StageCleavage   Stage = "cleavage"
	StageMorula     Stage = "morula"
	StageBlastocyst Stage = "blastocyst"
)

// StageForDay maps a culture day to its stage. Days outside 0-6 are unknown.
func StageForDay(day int) Stage {
	switch {
	case day < MinDay || day > MaxDay:
		return StageUnknown
	case day <= 3:
		return StageCleavage
	case day == 4:
		return StageMorula
	default:
		return StageBlastocyst
	}
}

// Morphology is one stage-specific group of observed fields. Only
// CleavageMorphology and BlastocystMorphology satisfy it, so an observation
// can never carry both groups at once.
type Morphology interface {
	Stage() Stage
	isMorphology()
}

// CleavageMorphology holds day 0-3 observations.
type CleavageMorphology struct {
	CellCount            *int      `json:"cell_count,omitempty"`
	FragmentationPercent *float64  `json:"fragmentation_percent,omitempty"`
	Symmetry             *Symmetry `json:"symmetry,omitempty"`
}

func (CleavageMorphology) Stage() Stage { return StageCleavage }
func (CleavageMorphology) isMorphology() {}

// hasDetail reports whether anything beyond the cell count was assessed.
func (m CleavageMorphology) hasDetail() bool {
	return m.FragmentationPercent != nil || m.Symmetry != nil
}

// BlastocystMorphology holds day 5-6 Gardner observations.
type BlastocystMorphology struct {
	Expansion *int         `json:"expansion,omitempty"`
	ICMGrade  *GradeLetter `json:"icm_grade,omitempty"`
	TEGrade   *GradeLetter `json:"te_grade,omitempty"`
}

func (BlastocystMorphology) Stage() Stage { return StageBlastocyst }
func (BlastocystMorphology) isMorphology() {}

// Observation is the input to Classify.
type Observation struct {
	// Day is nil when the culture day was not recorded.
	Day *int

	// Morphology is nil when nothing was assessed.
	Morphology Morphology

	// ManualGrade is honoured only for morula (day 4) embryos, which the
	// grading rules do not cover.
	ManualGrade string

	// Quality is the caller-supplied tier used where the rules cannot derive
	// one (cell count only, morula, unknown day).
	Quality Quality
}
